package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Role distinguishes the two kinds of authenticated users.
type Role string

const (
	RoleCustomer Role = "CUSTOMER"
	RoleMerchant Role = "MERCHANT"
)

// Customer represents a registered customer account
type Customer struct {
	ID           int       `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Merchant represents a registered merchant account
type Merchant struct {
	ID           int       `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Restaurant is a food stall owned by one merchant
type Restaurant struct {
	ID         int    `json:"id"`
	MerchantID int    `json:"merchant_id"`
	Name       string `json:"name"`
}

// Menu is a single dish a restaurant sells. EstimatedPrepTime is in minutes
// and may be unset, in which case queue estimation assumes 1.
type Menu struct {
	ID                int             `json:"id"`
	RestaurantID      int             `json:"restaurant_id"`
	Name              string          `json:"name"`
	Price             decimal.Decimal `json:"price"`
	EstimatedPrepTime *int            `json:"estimated_prep_time"`
}

// Option is a customization choice attached to a menu, possibly carrying an
// extra charge.
type Option struct {
	ID         int              `json:"id"`
	MenuID     int              `json:"menu_id"`
	Name       string           `json:"name"`
	ExtraPrice *decimal.Decimal `json:"extra_price"`
}

// OrderItem is one line of an order: a menu reference, a quantity and the
// chosen options.
type OrderItem struct {
	ID            int     `json:"id"`
	OrderID       int     `json:"order_id"`
	MenuID        int     `json:"menu_id"`
	Quantity      int     `json:"quantity"`
	ExtraRequests *string `json:"extra_requests"`
	OptionIDs     []int   `json:"options"`
}

// Order is a customer's purchase against one restaurant. PricePaid is fixed
// at creation. OrderedAt is seconds since epoch and, with ID as the tie
// break, defines queue ordering.
type Order struct {
	ID           int             `json:"id"`
	RestaurantID int             `json:"restaurant_id"`
	CustomerID   int             `json:"customer_id"`
	Status       OrderStatus     `json:"status"`
	PricePaid    decimal.Decimal `json:"price_paid"`
	OrderedAt    int64           `json:"ordered_at"`
	Items        []OrderItem     `json:"items"`
}

// Queue is the derived position estimate for an order: how many active
// orders are ahead of it and their summed estimated preparation time.
// Recomputed on demand, never stored.
type Queue struct {
	QueueCount    int `json:"queue_count"`
	EstimatedTime int `json:"estimated_time"`
}
