// Package db is the pgx-backed repository for the durable tables. Status
// writes are transactional: the orders row and the per-state audit row
// commit together or not at all.
package db

import (
	"context"
	"errors"
	"fmt"

	"foodcourt/internal/apperr"
	"foodcourt/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DB wraps a PostgreSQL connection pool
type DB struct {
	Pool *pgxpool.Pool
}

// New initializes a new database connection pool
func New(ctx context.Context, connString string) (*DB, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	return &DB{Pool: pool}, nil
}

func (db *DB) Close() {
	db.Pool.Close()
}

func (db *DB) CreateCustomer(ctx context.Context, username, passwordHash string) (*models.Customer, error) {
	c := &models.Customer{}
	err := db.Pool.QueryRow(ctx,
		"INSERT INTO customers (username, password_hash) VALUES ($1, $2) RETURNING id, username, password_hash, created_at",
		username, passwordHash).Scan(&c.ID, &c.Username, &c.PasswordHash, &c.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create customer: %w", err)
	}
	return c, nil
}

func (db *DB) CustomerByUsername(ctx context.Context, username string) (*models.Customer, error) {
	c := &models.Customer{}
	err := db.Pool.QueryRow(ctx,
		"SELECT id, username, password_hash, created_at FROM customers WHERE username = $1",
		username).Scan(&c.ID, &c.Username, &c.PasswordHash, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("customer %q not found", username)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get customer: %w", err)
	}
	return c, nil
}

func (db *DB) CreateMerchant(ctx context.Context, username, passwordHash string) (*models.Merchant, error) {
	m := &models.Merchant{}
	err := db.Pool.QueryRow(ctx,
		"INSERT INTO merchants (username, password_hash) VALUES ($1, $2) RETURNING id, username, password_hash, created_at",
		username, passwordHash).Scan(&m.ID, &m.Username, &m.PasswordHash, &m.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create merchant: %w", err)
	}
	return m, nil
}

func (db *DB) MerchantByUsername(ctx context.Context, username string) (*models.Merchant, error) {
	m := &models.Merchant{}
	err := db.Pool.QueryRow(ctx,
		"SELECT id, username, password_hash, created_at FROM merchants WHERE username = $1",
		username).Scan(&m.ID, &m.Username, &m.PasswordHash, &m.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("merchant %q not found", username)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get merchant: %w", err)
	}
	return m, nil
}

func (db *DB) CreateRestaurant(ctx context.Context, merchantID int, name string) (*models.Restaurant, error) {
	r := &models.Restaurant{}
	err := db.Pool.QueryRow(ctx,
		"INSERT INTO restaurants (merchant_id, name) VALUES ($1, $2) RETURNING id, merchant_id, name",
		merchantID, name).Scan(&r.ID, &r.MerchantID, &r.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to create restaurant: %w", err)
	}
	return r, nil
}

func (db *DB) Restaurant(ctx context.Context, id int) (*models.Restaurant, error) {
	r := &models.Restaurant{}
	err := db.Pool.QueryRow(ctx,
		"SELECT id, merchant_id, name FROM restaurants WHERE id = $1",
		id).Scan(&r.ID, &r.MerchantID, &r.Name)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("restaurant %d not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get restaurant: %w", err)
	}
	return r, nil
}

func (db *DB) Restaurants(ctx context.Context) ([]models.Restaurant, error) {
	rows, err := db.Pool.Query(ctx, "SELECT id, merchant_id, name FROM restaurants ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to list restaurants: %w", err)
	}
	defer rows.Close()

	var out []models.Restaurant
	for rows.Next() {
		var r models.Restaurant
		if err := rows.Scan(&r.ID, &r.MerchantID, &r.Name); err != nil {
			return nil, fmt.Errorf("failed to scan restaurant: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (db *DB) CreateMenu(ctx context.Context, menu models.Menu) (*models.Menu, error) {
	m := &models.Menu{}
	err := db.Pool.QueryRow(ctx,
		"INSERT INTO menus (restaurant_id, name, price, estimated_prep_time) VALUES ($1, $2, $3, $4) RETURNING id, restaurant_id, name, price, estimated_prep_time",
		menu.RestaurantID, menu.Name, menu.Price, menu.EstimatedPrepTime).Scan(
		&m.ID, &m.RestaurantID, &m.Name, &m.Price, &m.EstimatedPrepTime)
	if err != nil {
		return nil, fmt.Errorf("failed to create menu: %w", err)
	}
	return m, nil
}

func (db *DB) Menu(ctx context.Context, id int) (*models.Menu, error) {
	m := &models.Menu{}
	err := db.Pool.QueryRow(ctx,
		"SELECT id, restaurant_id, name, price, estimated_prep_time FROM menus WHERE id = $1",
		id).Scan(&m.ID, &m.RestaurantID, &m.Name, &m.Price, &m.EstimatedPrepTime)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("menu %d not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get menu: %w", err)
	}
	return m, nil
}

func (db *DB) MenusByRestaurant(ctx context.Context, restaurantID int) ([]models.Menu, error) {
	rows, err := db.Pool.Query(ctx,
		"SELECT id, restaurant_id, name, price, estimated_prep_time FROM menus WHERE restaurant_id = $1 ORDER BY id",
		restaurantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list menus: %w", err)
	}
	defer rows.Close()

	var out []models.Menu
	for rows.Next() {
		var m models.Menu
		if err := rows.Scan(&m.ID, &m.RestaurantID, &m.Name, &m.Price, &m.EstimatedPrepTime); err != nil {
			return nil, fmt.Errorf("failed to scan menu: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (db *DB) EstimatedPrepTime(ctx context.Context, menuID int) (*int, error) {
	var prep *int
	err := db.Pool.QueryRow(ctx,
		"SELECT estimated_prep_time FROM menus WHERE id = $1", menuID).Scan(&prep)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("menu %d not found", menuID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get prep time: %w", err)
	}
	return prep, nil
}

func (db *DB) CreateOption(ctx context.Context, option models.Option) (*models.Option, error) {
	o := &models.Option{}
	err := db.Pool.QueryRow(ctx,
		"INSERT INTO options (menu_id, name, extra_price) VALUES ($1, $2, $3) RETURNING id, menu_id, name, extra_price",
		option.MenuID, option.Name, option.ExtraPrice).Scan(&o.ID, &o.MenuID, &o.Name, &o.ExtraPrice)
	if err != nil {
		return nil, fmt.Errorf("failed to create option: %w", err)
	}
	return o, nil
}

func (db *DB) Option(ctx context.Context, id int) (*models.Option, error) {
	o := &models.Option{}
	err := db.Pool.QueryRow(ctx,
		"SELECT id, menu_id, name, extra_price FROM options WHERE id = $1",
		id).Scan(&o.ID, &o.MenuID, &o.Name, &o.ExtraPrice)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("option %d not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get option: %w", err)
	}
	return o, nil
}

func (db *DB) CreateOrder(ctx context.Context, o *models.Order) (*models.Order, error) {
	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	created := *o
	err = tx.QueryRow(ctx,
		"INSERT INTO orders (restaurant_id, customer_id, status, price_paid, ordered_at) VALUES ($1, $2, $3, $4, $5) RETURNING id",
		o.RestaurantID, o.CustomerID, string(o.Status), o.PricePaid, o.OrderedAt).Scan(&created.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	created.Items = make([]models.OrderItem, len(o.Items))
	for i, item := range o.Items {
		item.OrderID = created.ID
		err = tx.QueryRow(ctx,
			"INSERT INTO order_items (order_id, menu_id, quantity, extra_requests) VALUES ($1, $2, $3, $4) RETURNING id",
			item.OrderID, item.MenuID, item.Quantity, item.ExtraRequests).Scan(&item.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to create order item: %w", err)
		}
		for _, optionID := range item.OptionIDs {
			if _, err := tx.Exec(ctx,
				"INSERT INTO order_item_options (order_item_id, option_id) VALUES ($1, $2)",
				item.ID, optionID); err != nil {
				return nil, fmt.Errorf("failed to attach option: %w", err)
			}
		}
		created.Items[i] = item
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit order: %w", err)
	}
	return &created, nil
}

func (db *DB) Order(ctx context.Context, id int) (*models.Order, error) {
	o := &models.Order{}
	var status string
	err := db.Pool.QueryRow(ctx,
		"SELECT id, restaurant_id, customer_id, status, price_paid, ordered_at FROM orders WHERE id = $1",
		id).Scan(&o.ID, &o.RestaurantID, &o.CustomerID, &status, &o.PricePaid, &o.OrderedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("order %d not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	o.Status = models.OrderStatus(status)

	items, err := db.orderItems(ctx, o.ID)
	if err != nil {
		return nil, err
	}
	o.Items = items
	return o, nil
}

func (db *DB) orderItems(ctx context.Context, orderID int) ([]models.OrderItem, error) {
	rows, err := db.Pool.Query(ctx,
		"SELECT id, order_id, menu_id, quantity, extra_requests FROM order_items WHERE order_id = $1 ORDER BY id",
		orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to get order items: %w", err)
	}
	defer rows.Close()

	var items []models.OrderItem
	for rows.Next() {
		var item models.OrderItem
		if err := rows.Scan(&item.ID, &item.OrderID, &item.MenuID, &item.Quantity, &item.ExtraRequests); err != nil {
			return nil, fmt.Errorf("failed to scan order item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range items {
		optRows, err := db.Pool.Query(ctx,
			"SELECT option_id FROM order_item_options WHERE order_item_id = $1 ORDER BY option_id",
			items[i].ID)
		if err != nil {
			return nil, fmt.Errorf("failed to get item options: %w", err)
		}
		for optRows.Next() {
			var optionID int
			if err := optRows.Scan(&optionID); err != nil {
				optRows.Close()
				return nil, fmt.Errorf("failed to scan item option: %w", err)
			}
			items[i].OptionIDs = append(items[i].OptionIDs, optionID)
		}
		optRows.Close()
		if err := optRows.Err(); err != nil {
			return nil, err
		}
	}
	return items, nil
}

func (db *DB) ActiveOrders(ctx context.Context, restaurantID int) ([]models.Order, error) {
	return db.queryOrders(ctx, `
		SELECT id, restaurant_id, customer_id, status, price_paid, ordered_at
		FROM orders
		WHERE restaurant_id = $1 AND status IN ('ORDERED', 'PREPARING')
		ORDER BY ordered_at, id
	`, restaurantID)
}

func (db *DB) queryOrders(ctx context.Context, sql string, args ...any) ([]models.Order, error) {
	rows, err := db.Pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()

	var orders []models.Order
	for rows.Next() {
		var o models.Order
		var status string
		if err := rows.Scan(&o.ID, &o.RestaurantID, &o.CustomerID, &status, &o.PricePaid, &o.OrderedAt); err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		o.Status = models.OrderStatus(status)
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range orders {
		items, err := db.orderItems(ctx, orders[i].ID)
		if err != nil {
			return nil, err
		}
		orders[i].Items = items
	}
	return orders, nil
}

// SetStatus updates the status column and inserts the audit record for the
// state being entered, in one transaction. The audit row is the source of
// truth for timestamps and cancellation attribution.
func (db *DB) SetStatus(ctx context.Context, orderID int, detail models.StatusDetail) error {
	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, "UPDATE orders SET status = $1 WHERE id = $2", string(detail.Status()), orderID)
	if err != nil {
		return fmt.Errorf("failed to update order status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("order %d not found", orderID)
	}

	switch d := detail.(type) {
	case models.PreparingDetail:
		_, err = tx.Exec(ctx,
			"INSERT INTO preparing_orders (order_id, prepared_at) VALUES ($1, $2)",
			orderID, d.PreparedAt)
	case models.ReadyDetail:
		_, err = tx.Exec(ctx,
			"INSERT INTO ready_orders (order_id, ready_at) VALUES ($1, $2)",
			orderID, d.ReadyAt)
	case models.SettledDetail:
		_, err = tx.Exec(ctx,
			"INSERT INTO settled_orders (order_id, settled_at) VALUES ($1, $2)",
			orderID, d.SettledAt)
	case models.CancelledDetail:
		_, err = tx.Exec(ctx,
			"INSERT INTO cancelled_orders (order_id, cancelled_time, cancelled_by, reason) VALUES ($1, $2, $3, $4)",
			orderID, d.CancelledTime, string(d.CancelledBy), d.Reason)
	case models.OrderedDetail:
		// ORDERED has no audit row; the orders row itself is the record
	default:
		return apperr.Internal("unknown status detail %T", detail)
	}
	if err != nil {
		return fmt.Errorf("failed to insert status record: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit status change: %w", err)
	}
	return nil
}

func (db *DB) StatusDetail(ctx context.Context, orderID int, status models.OrderStatus) (models.StatusDetail, error) {
	var err error
	switch status {
	case models.StatusOrdered:
		return models.OrderedDetail{}, nil
	case models.StatusPreparing:
		var d models.PreparingDetail
		err = db.Pool.QueryRow(ctx,
			"SELECT prepared_at FROM preparing_orders WHERE order_id = $1", orderID).Scan(&d.PreparedAt)
		if err == nil {
			return d, nil
		}
	case models.StatusReady:
		var d models.ReadyDetail
		err = db.Pool.QueryRow(ctx,
			"SELECT ready_at FROM ready_orders WHERE order_id = $1", orderID).Scan(&d.ReadyAt)
		if err == nil {
			return d, nil
		}
	case models.StatusSettled:
		var d models.SettledDetail
		err = db.Pool.QueryRow(ctx,
			"SELECT settled_at FROM settled_orders WHERE order_id = $1", orderID).Scan(&d.SettledAt)
		if err == nil {
			return d, nil
		}
	case models.StatusCancelled:
		var d models.CancelledDetail
		var by string
		err = db.Pool.QueryRow(ctx,
			"SELECT cancelled_time, cancelled_by, reason FROM cancelled_orders WHERE order_id = $1", orderID).Scan(
			&d.CancelledTime, &by, &d.Reason)
		if err == nil {
			d.CancelledBy = models.CancelledBy(by)
			return d, nil
		}
	default:
		return nil, apperr.Internal("unknown status %q", status)
	}
	if errors.Is(err, pgx.ErrNoRows) {
		// the order claims a state with no audit record: a prior write bug
		return nil, apperr.Internal("no %s record for order %d", status, orderID)
	}
	return nil, fmt.Errorf("failed to get status record: %w", err)
}

func (db *DB) OrdersByCustomer(ctx context.Context, customerID int, restaurantID *int, status *models.OrderStatus) ([]models.Order, error) {
	return db.queryOrders(ctx, `
		SELECT id, restaurant_id, customer_id, status, price_paid, ordered_at
		FROM orders
		WHERE customer_id = $1
		  AND ($2::int IS NULL OR restaurant_id = $2)
		  AND ($3::text IS NULL OR status = $3)
		ORDER BY id
	`, customerID, restaurantID, statusArg(status))
}

func (db *DB) OrdersByMerchant(ctx context.Context, merchantID int, restaurantID *int, status *models.OrderStatus) ([]models.Order, error) {
	return db.queryOrders(ctx, `
		SELECT o.id, o.restaurant_id, o.customer_id, o.status, o.price_paid, o.ordered_at
		FROM orders o
		JOIN restaurants r ON r.id = o.restaurant_id
		WHERE r.merchant_id = $1
		  AND ($2::int IS NULL OR o.restaurant_id = $2)
		  AND ($3::text IS NULL OR o.status = $3)
		ORDER BY o.id
	`, merchantID, restaurantID, statusArg(status))
}

func statusArg(status *models.OrderStatus) *string {
	if status == nil {
		return nil
	}
	s := string(*status)
	return &s
}
