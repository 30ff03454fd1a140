package order

import (
	"context"

	"foodcourt/internal/apperr"
	"foodcourt/internal/models"
)

// Estimator answers "how long until my order" from the live order table.
// Estimates are recomputed from scratch on every call; no cached queue value
// is ever trusted. The scan is O(active orders), which a physical kitchen
// keeps small.
type Estimator struct {
	store Store
}

func NewEstimator(store Store) *Estimator {
	return &Estimator{store: store}
}

// OrderQueue estimates the queue ahead of one order: the active orders in
// its restaurant whose (ordered_at, id) strictly precedes its own. Ordering
// on the id tie break avoids duplicate-timestamp races.
func (e *Estimator) OrderQueue(ctx context.Context, o *models.Order) (models.Queue, error) {
	active, err := e.store.ActiveOrders(ctx, o.RestaurantID)
	if err != nil {
		return models.Queue{}, err
	}

	var ahead []models.Order
	for _, a := range active {
		if a.ID == o.ID {
			continue
		}
		if a.OrderedAt < o.OrderedAt || (a.OrderedAt == o.OrderedAt && a.ID < o.ID) {
			ahead = append(ahead, a)
		}
	}
	return e.tally(ctx, ahead)
}

// RestaurantQueue aggregates the restaurant's whole active line.
func (e *Estimator) RestaurantQueue(ctx context.Context, restaurantID int) (models.Queue, error) {
	active, err := e.store.ActiveOrders(ctx, restaurantID)
	if err != nil {
		return models.Queue{}, err
	}
	return e.tally(ctx, active)
}

func (e *Estimator) tally(ctx context.Context, orders []models.Order) (models.Queue, error) {
	total := 0
	for _, o := range orders {
		for _, item := range o.Items {
			prep, err := e.store.EstimatedPrepTime(ctx, item.MenuID)
			if err != nil {
				if apperr.KindOf(err) == apperr.KindNotFound {
					// an order item referencing a missing menu is a prior
					// write bug, not a caller mistake
					return models.Queue{}, apperr.Internal("menu %d missing for an order item", item.MenuID)
				}
				return models.Queue{}, err
			}
			t := 1
			if prep != nil {
				t = *prep
			}
			total += t * item.Quantity
		}
	}
	return models.Queue{QueueCount: len(orders), EstimatedTime: total}, nil
}
