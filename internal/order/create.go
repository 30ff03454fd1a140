package order

import (
	"context"

	"foodcourt/internal/apperr"
	"foodcourt/internal/models"

	"github.com/shopspring/decimal"
)

type PlaceOrderItem struct {
	MenuID        int
	Quantity      int
	ExtraRequests *string
	OptionIDs     []int
}

type PlaceOrderRequest struct {
	RestaurantID int
	Items        []PlaceOrderItem
}

// PlaceOrder creates a new order for the customer: every item's menu must
// belong to the restaurant, quantities must be at least 1 and options must
// belong to their item's menu. The price is summed here and fixed for the
// order's lifetime; the order enters ORDERED.
func (m *Machine) PlaceOrder(ctx context.Context, customerID int, req PlaceOrderRequest) (*models.Order, error) {
	if len(req.Items) == 0 {
		return nil, apperr.InvalidArgument("order must contain at least one item")
	}

	restaurant, err := m.store.Restaurant(ctx, req.RestaurantID)
	if err != nil {
		return nil, err
	}

	price := decimal.Zero
	items := make([]models.OrderItem, 0, len(req.Items))

	for _, item := range req.Items {
		menu, err := m.store.Menu(ctx, item.MenuID)
		if err != nil {
			return nil, err
		}
		if menu.RestaurantID != restaurant.ID {
			return nil, apperr.InvalidArgument("menu %d is not in restaurant %d", menu.ID, restaurant.ID)
		}
		if item.Quantity < 1 {
			return nil, apperr.InvalidArgument("menu %d must have a quantity of at least 1", menu.ID)
		}

		linePrice := menu.Price
		for _, optionID := range item.OptionIDs {
			option, err := m.store.Option(ctx, optionID)
			if err != nil {
				return nil, err
			}
			if option.MenuID != menu.ID {
				return nil, apperr.InvalidArgument("option %d is not in menu %d", option.ID, menu.ID)
			}
			if option.ExtraPrice != nil {
				linePrice = linePrice.Add(*option.ExtraPrice)
			}
		}
		price = price.Add(linePrice.Mul(decimal.NewFromInt(int64(item.Quantity))))

		items = append(items, models.OrderItem{
			MenuID:        item.MenuID,
			Quantity:      item.Quantity,
			ExtraRequests: item.ExtraRequests,
			OptionIDs:     item.OptionIDs,
		})
	}

	return m.store.CreateOrder(ctx, &models.Order{
		RestaurantID: restaurant.ID,
		CustomerID:   customerID,
		Status:       models.StatusOrdered,
		PricePaid:    price,
		OrderedAt:    m.now(),
		Items:        items,
	})
}
