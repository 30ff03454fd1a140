// Package memstore is a mutex-guarded, map-backed implementation of the
// repository interfaces. It backs the unit tests and the server's in-memory
// dev mode; the durable deployment uses the pgx store in internal/db.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"foodcourt/internal/apperr"
	"foodcourt/internal/models"
)

type Store struct {
	mu sync.Mutex

	customers   map[int]models.Customer
	merchants   map[int]models.Merchant
	restaurants map[int]models.Restaurant
	menus       map[int]models.Menu
	options     map[int]models.Option
	orders      map[int]*models.Order
	details     map[int]map[models.OrderStatus]models.StatusDetail

	nextID int
}

func New() *Store {
	return &Store{
		customers:   make(map[int]models.Customer),
		merchants:   make(map[int]models.Merchant),
		restaurants: make(map[int]models.Restaurant),
		menus:       make(map[int]models.Menu),
		options:     make(map[int]models.Option),
		orders:      make(map[int]*models.Order),
		details:     make(map[int]map[models.OrderStatus]models.StatusDetail),
	}
}

// id expects s.mu to be held.
func (s *Store) id() int {
	s.nextID++
	return s.nextID
}

func (s *Store) CreateCustomer(ctx context.Context, username, passwordHash string) (*models.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.customers {
		if c.Username == username {
			return nil, apperr.InvalidArgument("username %q is taken", username)
		}
	}
	c := models.Customer{ID: s.id(), Username: username, PasswordHash: passwordHash, CreatedAt: time.Now()}
	s.customers[c.ID] = c
	return &c, nil
}

func (s *Store) CustomerByUsername(ctx context.Context, username string) (*models.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.customers {
		if c.Username == username {
			cc := c
			return &cc, nil
		}
	}
	return nil, apperr.NotFound("customer %q not found", username)
}

func (s *Store) CreateMerchant(ctx context.Context, username, passwordHash string) (*models.Merchant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.merchants {
		if m.Username == username {
			return nil, apperr.InvalidArgument("username %q is taken", username)
		}
	}
	m := models.Merchant{ID: s.id(), Username: username, PasswordHash: passwordHash, CreatedAt: time.Now()}
	s.merchants[m.ID] = m
	return &m, nil
}

func (s *Store) MerchantByUsername(ctx context.Context, username string) (*models.Merchant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.merchants {
		if m.Username == username {
			mm := m
			return &mm, nil
		}
	}
	return nil, apperr.NotFound("merchant %q not found", username)
}

func (s *Store) CreateRestaurant(ctx context.Context, merchantID int, name string) (*models.Restaurant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := models.Restaurant{ID: s.id(), MerchantID: merchantID, Name: name}
	s.restaurants[r.ID] = r
	return &r, nil
}

func (s *Store) Restaurant(ctx context.Context, id int) (*models.Restaurant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.restaurants[id]
	if !ok {
		return nil, apperr.NotFound("restaurant %d not found", id)
	}
	return &r, nil
}

func (s *Store) Restaurants(ctx context.Context) ([]models.Restaurant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Restaurant, 0, len(s.restaurants))
	for _, r := range s.restaurants {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) CreateMenu(ctx context.Context, menu models.Menu) (*models.Menu, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	menu.ID = s.id()
	s.menus[menu.ID] = menu
	return &menu, nil
}

func (s *Store) Menu(ctx context.Context, id int) (*models.Menu, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.menus[id]
	if !ok {
		return nil, apperr.NotFound("menu %d not found", id)
	}
	return &m, nil
}

func (s *Store) MenusByRestaurant(ctx context.Context, restaurantID int) ([]models.Menu, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Menu
	for _, m := range s.menus {
		if m.RestaurantID == restaurantID {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) EstimatedPrepTime(ctx context.Context, menuID int) (*int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.menus[menuID]
	if !ok {
		return nil, apperr.NotFound("menu %d not found", menuID)
	}
	return m.EstimatedPrepTime, nil
}

func (s *Store) CreateOption(ctx context.Context, option models.Option) (*models.Option, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	option.ID = s.id()
	s.options[option.ID] = option
	return &option, nil
}

func (s *Store) Option(ctx context.Context, id int) (*models.Option, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.options[id]
	if !ok {
		return nil, apperr.NotFound("option %d not found", id)
	}
	return &o, nil
}

func (s *Store) CreateOrder(ctx context.Context, o *models.Order) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := *o
	stored.ID = s.id()
	stored.Items = make([]models.OrderItem, len(o.Items))
	for i, item := range o.Items {
		item.ID = s.id()
		item.OrderID = stored.ID
		stored.Items[i] = item
	}
	s.orders[stored.ID] = &stored
	s.details[stored.ID] = map[models.OrderStatus]models.StatusDetail{
		models.StatusOrdered: models.OrderedDetail{},
	}
	out := stored
	return &out, nil
}

func (s *Store) Order(ctx context.Context, id int) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return nil, apperr.NotFound("order %d not found", id)
	}
	out := *o
	return &out, nil
}

func (s *Store) ActiveOrders(ctx context.Context, restaurantID int) ([]models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Order
	for _, o := range s.orders {
		if o.RestaurantID == restaurantID && o.Status.Active() {
			out = append(out, *o)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].OrderedAt != out[j].OrderedAt {
			return out[i].OrderedAt < out[j].OrderedAt
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) SetStatus(ctx context.Context, orderID int, detail models.StatusDetail) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok {
		return apperr.NotFound("order %d not found", orderID)
	}
	o.Status = detail.Status()
	s.details[orderID][detail.Status()] = detail
	return nil
}

func (s *Store) StatusDetail(ctx context.Context, orderID int, status models.OrderStatus) (models.StatusDetail, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	detail, ok := s.details[orderID][status]
	if !ok {
		return nil, apperr.Internal("no %s record for order %d", status, orderID)
	}
	return detail, nil
}

func (s *Store) OrdersByCustomer(ctx context.Context, customerID int, restaurantID *int, status *models.OrderStatus) ([]models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Order
	for _, o := range s.orders {
		if o.CustomerID != customerID {
			continue
		}
		if matchesFilters(o, restaurantID, status) {
			out = append(out, *o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) OrdersByMerchant(ctx context.Context, merchantID int, restaurantID *int, status *models.OrderStatus) ([]models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Order
	for _, o := range s.orders {
		r, ok := s.restaurants[o.RestaurantID]
		if !ok || r.MerchantID != merchantID {
			continue
		}
		if matchesFilters(o, restaurantID, status) {
			out = append(out, *o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func matchesFilters(o *models.Order, restaurantID *int, status *models.OrderStatus) bool {
	if restaurantID != nil && o.RestaurantID != *restaurantID {
		return false
	}
	if status != nil && o.Status != *status {
		return false
	}
	return true
}
