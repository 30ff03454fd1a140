package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"foodcourt/internal/apperr"
	"foodcourt/internal/auth"
	"foodcourt/internal/event"
	"foodcourt/internal/metrics"
	"foodcourt/internal/models"
	"foodcourt/internal/order"
)

// Store is everything the HTTP layer reads beyond what the engine exposes.
type Store interface {
	order.Store
	OrdersByCustomer(ctx context.Context, customerID int, restaurantID *int, status *models.OrderStatus) ([]models.Order, error)
	OrdersByMerchant(ctx context.Context, merchantID int, restaurantID *int, status *models.OrderStatus) ([]models.Order, error)
	Restaurants(ctx context.Context) ([]models.Restaurant, error)
	MenusByRestaurant(ctx context.Context, restaurantID int) ([]models.Menu, error)
}

// Handler contains dependencies for HTTP handlers
type Handler struct {
	Store     Store
	Machine   *order.Machine
	Estimator *order.Estimator
	Hub       *event.Hub
	Auth      *auth.Service
	Log       *slog.Logger
}

func NewHandler(store Store, machine *order.Machine, estimator *order.Estimator, hub *event.Hub, authService *auth.Service, log *slog.Logger) *Handler {
	return &Handler{Store: store, Machine: machine, Estimator: estimator, Hub: hub, Auth: authService, Log: log}
}

// Routes mounts every endpoint on r.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/auth/customers/register", h.registerFor(models.RoleCustomer))
	r.Post("/auth/customers/login", h.loginFor(models.RoleCustomer))
	r.Post("/auth/merchants/register", h.registerFor(models.RoleMerchant))
	r.Post("/auth/merchants/login", h.loginFor(models.RoleMerchant))

	r.Get("/restaurants", h.ListRestaurants)
	r.Get("/restaurants/{id}/menus", h.ListMenus)
	r.Get("/restaurants/{id}/queue", h.GetRestaurantQueue)

	r.Group(func(r chi.Router) {
		r.Use(h.Authenticate)
		r.Post("/orders", h.PlaceOrder)
		r.Get("/orders", h.ListOrders)
		r.Get("/orders/{id}/status", h.GetOrderStatus)
		r.Put("/orders/{id}/status", h.UpdateOrderStatus)
		r.Get("/orders/{id}/queue", h.GetOrderQueue)
		r.Get("/events", h.Events)
	})
}

func (h *Handler) registerFor(role models.Role) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Username string `json:"username"`
			Password string `json:"password"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.writeError(w, apperr.InvalidArgument("invalid request body"))
			return
		}
		id, err := h.Auth.Register(r.Context(), role, req.Username, req.Password)
		if err != nil {
			h.writeError(w, err)
			return
		}
		h.writeJSON(w, http.StatusCreated, map[string]any{"id": id, "username": req.Username})
	}
}

func (h *Handler) loginFor(role models.Role) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Username string `json:"username"`
			Password string `json:"password"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.writeError(w, apperr.InvalidArgument("invalid request body"))
			return
		}
		token, err := h.Auth.Login(r.Context(), role, req.Username, req.Password)
		if err != nil {
			h.writeError(w, err)
			return
		}
		h.writeJSON(w, http.StatusOK, map[string]string{"token": token})
	}
}

// PlaceOrder handles order placement by a customer
func (h *Handler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	callerID, role, ok := callerFrom(r.Context())
	if !ok || role != models.RoleCustomer {
		h.writeError(w, apperr.Unauthorized("only customers can place orders"))
		return
	}

	var req struct {
		RestaurantID int `json:"restaurant_id"`
		Items        []struct {
			MenuID        int     `json:"menu_id"`
			Quantity      int     `json:"quantity"`
			ExtraRequests *string `json:"extra_requests"`
			Options       []int   `json:"options"`
		} `json:"items"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, apperr.InvalidArgument("invalid request body"))
		return
	}

	placement := order.PlaceOrderRequest{RestaurantID: req.RestaurantID}
	for _, item := range req.Items {
		placement.Items = append(placement.Items, order.PlaceOrderItem{
			MenuID:        item.MenuID,
			Quantity:      item.Quantity,
			ExtraRequests: item.ExtraRequests,
			OptionIDs:     item.Options,
		})
	}

	created, err := h.Machine.PlaceOrder(r.Context(), callerID, placement)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, map[string]any{"order_id": created.ID, "price_paid": created.PricePaid})
}

// ListOrders returns the caller's orders: a customer sees their own, a
// merchant sees orders of restaurants they own.
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	callerID, role, ok := callerFrom(r.Context())
	if !ok {
		h.writeError(w, apperr.Unauthorized("authentication required"))
		return
	}

	var restaurantID *int
	if v := r.URL.Query().Get("restaurant_id"); v != "" {
		id, err := strconv.Atoi(v)
		if err != nil {
			h.writeError(w, apperr.InvalidArgument("invalid restaurant_id"))
			return
		}
		restaurantID = &id
	}
	var status *models.OrderStatus
	if v := r.URL.Query().Get("status"); v != "" {
		s := models.OrderStatus(v)
		switch s {
		case models.StatusOrdered, models.StatusPreparing, models.StatusReady, models.StatusSettled, models.StatusCancelled:
		default:
			h.writeError(w, apperr.InvalidArgument("invalid status %q", v))
			return
		}
		status = &s
	}

	var orders []models.Order
	var err error
	if role == models.RoleCustomer {
		orders, err = h.Store.OrdersByCustomer(r.Context(), callerID, restaurantID, status)
	} else {
		orders, err = h.Store.OrdersByMerchant(r.Context(), callerID, restaurantID, status)
	}
	if err != nil {
		h.writeError(w, err)
		return
	}
	if orders == nil {
		orders = []models.Order{}
	}
	h.writeJSON(w, http.StatusOK, orders)
}

// GetOrderStatus returns the audit detail of the order's current state.
func (h *Handler) GetOrderStatus(w http.ResponseWriter, r *http.Request) {
	callerID, role, ok := callerFrom(r.Context())
	if !ok {
		h.writeError(w, apperr.Unauthorized("authentication required"))
		return
	}
	orderID, err := urlID(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	detail, err := h.Machine.Status(r.Context(), callerID, role, orderID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, detail)
}

// UpdateOrderStatus drives the state machine with the caller's requested
// transition. The body carries intent only; timestamps are stamped server
// side.
func (h *Handler) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	callerID, role, ok := callerFrom(r.Context())
	if !ok {
		h.writeError(w, apperr.Unauthorized("authentication required"))
		return
	}
	orderID, err := urlID(r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	var req struct {
		Type   models.OrderStatus `json:"type"`
		Reason *string            `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, apperr.InvalidArgument("invalid request body"))
		return
	}

	after, err := h.Machine.AttemptTransition(r.Context(), callerID, role, orderID, order.TransitionRequest{
		Target: req.Type,
		Reason: req.Reason,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}

	metrics.OrderTransitions.WithLabelValues(string(after.Status)).Inc()
	h.writeJSON(w, http.StatusOK, map[string]any{"order_id": after.ID, "status": after.Status})
}

// GetOrderQueue returns the queue estimate ahead of one order.
func (h *Handler) GetOrderQueue(w http.ResponseWriter, r *http.Request) {
	callerID, role, ok := callerFrom(r.Context())
	if !ok {
		h.writeError(w, apperr.Unauthorized("authentication required"))
		return
	}
	orderID, err := urlID(r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	o, err := h.Store.Order(r.Context(), orderID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if err := order.Authorize(r.Context(), h.Store, o, callerID, role); err != nil {
		h.writeError(w, err)
		return
	}
	queue, err := h.Estimator.OrderQueue(r.Context(), o)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, queue)
}

// GetRestaurantQueue returns the whole active line of a restaurant.
func (h *Handler) GetRestaurantQueue(w http.ResponseWriter, r *http.Request) {
	restaurantID, err := urlID(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if _, err := h.Store.Restaurant(r.Context(), restaurantID); err != nil {
		h.writeError(w, err)
		return
	}
	queue, err := h.Estimator.RestaurantQueue(r.Context(), restaurantID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, queue)
}

// ListRestaurants returns all restaurants
func (h *Handler) ListRestaurants(w http.ResponseWriter, r *http.Request) {
	restaurants, err := h.Store.Restaurants(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	if restaurants == nil {
		restaurants = []models.Restaurant{}
	}
	h.writeJSON(w, http.StatusOK, restaurants)
}

// ListMenus returns a restaurant's menus
func (h *Handler) ListMenus(w http.ResponseWriter, r *http.Request) {
	restaurantID, err := urlID(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if _, err := h.Store.Restaurant(r.Context(), restaurantID); err != nil {
		h.writeError(w, err)
		return
	}
	menus, err := h.Store.MenusByRestaurant(r.Context(), restaurantID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if menus == nil {
		menus = []models.Menu{}
	}
	h.writeJSON(w, http.StatusOK, menus)
}

func urlID(r *http.Request) (int, error) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		return 0, apperr.InvalidArgument("invalid id")
	}
	return id, nil
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.Log.Error("encode response", "err", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	msg := "internal server error"
	switch apperr.KindOf(err) {
	case apperr.KindNotFound:
		status, msg = http.StatusNotFound, err.Error()
	case apperr.KindUnauthorized:
		status, msg = http.StatusUnauthorized, err.Error()
	case apperr.KindInvalidArgument:
		status, msg = http.StatusBadRequest, err.Error()
	default:
		h.Log.Error("internal error", "err", err)
	}
	h.writeJSON(w, status, map[string]string{"error": msg})
}
