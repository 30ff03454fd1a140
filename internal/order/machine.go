// Package order is the order lifecycle engine: the role-conditioned state
// machine that is the single writer of order status, and the queue
// estimator derived from the live order table.
package order

import (
	"context"
	"time"

	"foodcourt/internal/apperr"
	"foodcourt/internal/models"
)

// Notifier is told about every committed transition, synchronously, after
// the write. Delivery problems must never fail the originating request, so
// the interface has no error return.
type Notifier interface {
	OnTransition(ctx context.Context, before, after *models.Order)
}

// Machine validates and applies order status transitions. No other
// component mutates order status.
type Machine struct {
	store    Store
	notifier Notifier
	locks    keyedMutex
	now      func() int64
}

func NewMachine(store Store, notifier Notifier) *Machine {
	return &Machine{
		store:    store,
		notifier: notifier,
		now:      func() int64 { return time.Now().Unix() },
	}
}

// AttemptTransition applies one requested transition on behalf of the
// caller. Authorization is checked before any transition logic; an edge
// missing from the table is an invalid-argument error naming the violated
// rule. The read-validate-write sequence holds the order's write guard, so
// concurrent requests against the same order are linearized.
func (m *Machine) AttemptTransition(ctx context.Context, callerID int, role models.Role, orderID int, req TransitionRequest) (*models.Order, error) {
	switch req.Target {
	case models.StatusPreparing, models.StatusReady, models.StatusSettled, models.StatusCancelled:
	default:
		return nil, apperr.InvalidArgument("unknown transition target %q", req.Target)
	}

	mu := m.locks.lock(orderID)
	defer mu.Unlock()

	before, err := m.store.Order(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if err := Authorize(ctx, m.store, before, callerID, role); err != nil {
		return nil, err
	}

	apply, ok := transitionTable[transitionKey{role, before.Status, req.Target}]
	if !ok {
		return nil, apperr.InvalidArgument("%s", rejectionReason(role, req.Target))
	}

	detail := apply(m.now(), req)
	if err := m.store.SetStatus(ctx, orderID, detail); err != nil {
		return nil, err
	}

	after := *before
	after.Status = detail.Status()

	if m.notifier != nil {
		m.notifier.OnTransition(ctx, before, &after)
	}
	return &after, nil
}

// Status returns the audit detail for the order's current state, after
// checking that the caller may see the order.
func (m *Machine) Status(ctx context.Context, callerID int, role models.Role, orderID int) (models.StatusDetail, error) {
	o, err := m.store.Order(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if err := Authorize(ctx, m.store, o, callerID, role); err != nil {
		return nil, err
	}
	if o.Status == models.StatusOrdered {
		return models.OrderedDetail{}, nil
	}
	return m.store.StatusDetail(ctx, orderID, o.Status)
}
