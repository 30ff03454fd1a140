package event

import (
	"context"
	"log/slog"

	"foodcourt/internal/metrics"
	"foodcourt/internal/models"
	"foodcourt/internal/order"
)

// Store is the slice of the repository the coordinator reads. It never
// writes order state.
type Store interface {
	Restaurant(ctx context.Context, id int) (*models.Restaurant, error)
	ActiveOrders(ctx context.Context, restaurantID int) ([]models.Order, error)
	StatusDetail(ctx context.Context, orderID int, status models.OrderStatus) (models.StatusDetail, error)
}

// Coordinator reacts to committed status transitions: it tells both parties
// about the new status and, when an order vacates the active queue, tells
// the customers behind it that the line moved. By the time it runs the
// transition has committed, so nothing here ever fails the original
// request; delivery problems are logged and swallowed.
type Coordinator struct {
	store     Store
	estimator *order.Estimator
	hub       *Hub
	log       *slog.Logger
}

func NewCoordinator(store Store, estimator *order.Estimator, hub *Hub, log *slog.Logger) *Coordinator {
	return &Coordinator{store: store, estimator: estimator, hub: hub, log: log}
}

// OnTransition runs synchronously after every successful transition.
func (c *Coordinator) OnTransition(ctx context.Context, before, after *models.Order) {
	detail, err := c.statusDetail(ctx, after)
	if err != nil {
		c.log.Error("resolve status detail", "order_id", after.ID, "err", err)
		return
	}
	restaurant, err := c.store.Restaurant(ctx, after.RestaurantID)
	if err != nil {
		c.log.Error("resolve restaurant owner", "order_id", after.ID, "err", err)
		return
	}

	change := OrderStatusChange{OrderID: after.ID, Status: detail}
	c.publish(User{UserID: after.CustomerID, Role: models.RoleCustomer}, change)
	c.publish(User{UserID: restaurant.MerchantID, Role: models.RoleMerchant}, change)

	// Non-terminal transitions keep the order in the active set, so
	// siblings' positions are unaffected.
	if !after.Status.Terminal() {
		return
	}

	siblings, err := c.store.ActiveOrders(ctx, after.RestaurantID)
	if err != nil {
		c.log.Error("list active orders", "restaurant_id", after.RestaurantID, "err", err)
		return
	}
	for _, sibling := range siblings {
		if sibling.ID == after.ID {
			continue
		}
		queue, err := c.estimator.OrderQueue(ctx, &sibling)
		if err != nil {
			c.log.Error("recompute queue", "order_id", sibling.ID, "err", err)
			continue
		}
		c.publish(
			User{UserID: sibling.CustomerID, Role: models.RoleCustomer},
			OrderQueueChange{OrderID: sibling.ID, Queue: queue},
		)
	}
}

func (c *Coordinator) statusDetail(ctx context.Context, o *models.Order) (models.StatusDetail, error) {
	if o.Status == models.StatusOrdered {
		return models.OrderedDetail{}, nil
	}
	return c.store.StatusDetail(ctx, o.ID, o.Status)
}

func (c *Coordinator) publish(user User, n Notification) {
	c.hub.Publish(user, n)
	metrics.NotificationsPublished.Inc()
}
