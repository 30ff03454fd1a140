package order

import "foodcourt/internal/models"

// TransitionRequest carries the caller's intent: the target state plus any
// caller-supplied fields. Timestamps are stamped by the machine.
type TransitionRequest struct {
	Target models.OrderStatus
	Reason *string // cancellation reason, ignored for other targets
}

type transitionKey struct {
	role   models.Role
	from   models.OrderStatus
	target models.OrderStatus
}

// transitionTable enumerates every permitted edge of the order lifecycle,
// keyed by (role, current state, requested target). Anything not in the
// table falls through to rejectionReason. Keeping the edges in one map makes
// the rules auditable row by row.
var transitionTable = map[transitionKey]func(now int64, req TransitionRequest) models.StatusDetail{
	{models.RoleCustomer, models.StatusOrdered, models.StatusCancelled}: cancelledBy(models.CancelledByCustomer),
	{models.RoleCustomer, models.StatusReady, models.StatusSettled}: func(now int64, _ TransitionRequest) models.StatusDetail {
		return models.SettledDetail{SettledAt: now}
	},
	{models.RoleMerchant, models.StatusOrdered, models.StatusPreparing}: func(now int64, _ TransitionRequest) models.StatusDetail {
		return models.PreparingDetail{PreparedAt: now}
	},
	{models.RoleMerchant, models.StatusPreparing, models.StatusReady}: func(now int64, _ TransitionRequest) models.StatusDetail {
		return models.ReadyDetail{ReadyAt: now}
	},
	{models.RoleMerchant, models.StatusOrdered, models.StatusCancelled}:   cancelledBy(models.CancelledByMerchant),
	{models.RoleMerchant, models.StatusPreparing, models.StatusCancelled}: cancelledBy(models.CancelledByMerchant),
}

func cancelledBy(by models.CancelledBy) func(now int64, req TransitionRequest) models.StatusDetail {
	return func(now int64, req TransitionRequest) models.StatusDetail {
		return models.CancelledDetail{CancelledBy: by, CancelledTime: now, Reason: req.Reason}
	}
}

// rejectionReason names the specific rule that blocked a (role, target) pair
// after the table lookup missed, so clients can disable the offending
// action.
func rejectionReason(role models.Role, target models.OrderStatus) string {
	switch {
	case role == models.RoleCustomer && target == models.StatusCancelled:
		return "order can no longer be cancelled"
	case role == models.RoleCustomer && target == models.StatusSettled:
		return "order can only be settled once it is ready"
	case role == models.RoleCustomer:
		return "customers may only cancel or settle an order"
	case target == models.StatusPreparing:
		return "order can be prepared only once"
	case target == models.StatusReady:
		return "order can be marked ready only while it is preparing"
	case target == models.StatusCancelled:
		return "order can no longer be cancelled"
	default:
		return "merchants cannot settle an order"
	}
}
