package order

import (
	"context"

	"foodcourt/internal/apperr"
	"foodcourt/internal/models"
)

// Store is the durable order repository the engine runs against. Both the
// pgx-backed store and the in-memory store implement it.
type Store interface {
	// Order returns the order with its items, or a not-found error.
	Order(ctx context.Context, id int) (*models.Order, error)
	// Restaurant returns the restaurant, or a not-found error.
	Restaurant(ctx context.Context, id int) (*models.Restaurant, error)
	// ActiveOrders returns every order in the restaurant whose status is
	// ORDERED or PREPARING, items included.
	ActiveOrders(ctx context.Context, restaurantID int) ([]models.Order, error)
	// CreateOrder persists a new order with its items and returns it with
	// ids assigned.
	CreateOrder(ctx context.Context, o *models.Order) (*models.Order, error)
	// SetStatus atomically updates the order's status column and inserts
	// the audit record for the state being entered.
	SetStatus(ctx context.Context, orderID int, detail models.StatusDetail) error
	// StatusDetail returns the audit record for the given state of the
	// order. A missing record for a state the order claims to be in is an
	// internal error: some prior write lost it.
	StatusDetail(ctx context.Context, orderID int, status models.OrderStatus) (models.StatusDetail, error)
	// Menu returns the menu, or a not-found error.
	Menu(ctx context.Context, id int) (*models.Menu, error)
	// Option returns the option, or a not-found error.
	Option(ctx context.Context, id int) (*models.Option, error)
	// EstimatedPrepTime returns the menu's estimated preparation time, nil
	// when the menu does not declare one.
	EstimatedPrepTime(ctx context.Context, menuID int) (*int, error)
}

// Authorize checks that the caller may act on the order: a customer must own
// the order, a merchant must own the restaurant it belongs to. The check
// precedes any transition logic and its failure is distinct from an invalid
// transition.
func Authorize(ctx context.Context, store Store, o *models.Order, callerID int, role models.Role) error {
	switch role {
	case models.RoleCustomer:
		if o.CustomerID != callerID {
			return apperr.Unauthorized("customer does not own the order")
		}
	case models.RoleMerchant:
		r, err := store.Restaurant(ctx, o.RestaurantID)
		if err != nil {
			return err
		}
		if r.MerchantID != callerID {
			return apperr.Unauthorized("merchant does not own the order")
		}
	default:
		return apperr.Unauthorized("unknown role %q", role)
	}
	return nil
}
