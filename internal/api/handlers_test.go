package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"foodcourt/internal/auth"
	"foodcourt/internal/event"
	"foodcourt/internal/memstore"
	"foodcourt/internal/models"
	"foodcourt/internal/order"
)

type apiFixture struct {
	srv   *httptest.Server
	store *memstore.Store
	hub   *event.Hub

	merchantID    int
	merchantToken string
	customerID    int
	customerToken string

	restaurant *models.Restaurant
	menu       *models.Menu
	option     *models.Option
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	store := memstore.New()
	hub := event.NewHub()
	estimator := order.NewEstimator(store)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	coordinator := event.NewCoordinator(store, estimator, hub, log)
	machine := order.NewMachine(store, coordinator)
	authService := auth.NewService(store, "test-secret")
	handler := NewHandler(store, machine, estimator, hub, authService, log)

	r := chi.NewRouter()
	handler.Routes(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	f := &apiFixture{srv: srv, store: store, hub: hub}

	var resp map[string]any
	f.do(t, http.MethodPost, "/auth/merchants/register", "",
		map[string]string{"username": "stall", "password": "pw"}, http.StatusCreated, &resp)
	f.merchantID = int(resp["id"].(float64))
	f.do(t, http.MethodPost, "/auth/merchants/login", "",
		map[string]string{"username": "stall", "password": "pw"}, http.StatusOK, &resp)
	f.merchantToken = resp["token"].(string)

	f.do(t, http.MethodPost, "/auth/customers/register", "",
		map[string]string{"username": "alice", "password": "pw"}, http.StatusCreated, &resp)
	f.customerID = int(resp["id"].(float64))
	f.do(t, http.MethodPost, "/auth/customers/login", "",
		map[string]string{"username": "alice", "password": "pw"}, http.StatusOK, &resp)
	f.customerToken = resp["token"].(string)

	ctx := context.Background()
	restaurant, err := store.CreateRestaurant(ctx, f.merchantID, "Noodle Stand")
	require.NoError(t, err)
	f.restaurant = restaurant

	prep := 10
	price, _ := decimal.NewFromString("6.50")
	menu, err := store.CreateMenu(ctx, models.Menu{
		RestaurantID:      restaurant.ID,
		Name:              "Beef Noodles",
		Price:             price,
		EstimatedPrepTime: &prep,
	})
	require.NoError(t, err)
	f.menu = menu

	extra := decimal.NewFromInt(1)
	option, err := store.CreateOption(ctx, models.Option{MenuID: menu.ID, Name: "Add Egg", ExtraPrice: &extra})
	require.NoError(t, err)
	f.option = option

	return f
}

// do issues one JSON request against the test server and decodes the body
// into out when out is non-nil.
func (f *apiFixture) do(t *testing.T, method, path, token string, body any, wantStatus int, out any) {
	t.Helper()
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reqBody = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, f.srv.URL+path, reqBody)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Equal(t, wantStatus, resp.StatusCode, "%s %s: %s", method, path, raw)
	if out != nil {
		require.NoError(t, json.Unmarshal(raw, out))
	}
}

func (f *apiFixture) placeOrder(t *testing.T) int {
	t.Helper()
	var resp map[string]any
	f.do(t, http.MethodPost, "/orders", f.customerToken, map[string]any{
		"restaurant_id": f.restaurant.ID,
		"items":         []map[string]any{{"menu_id": f.menu.ID, "quantity": 1}},
	}, http.StatusCreated, &resp)
	return int(resp["order_id"].(float64))
}

func TestAuthEndpoints(t *testing.T) {
	f := newAPIFixture(t)

	t.Run("DuplicateUsername", func(t *testing.T) {
		var resp map[string]any
		f.do(t, http.MethodPost, "/auth/customers/register", "",
			map[string]string{"username": "alice", "password": "pw"}, http.StatusBadRequest, &resp)
		assert.Contains(t, resp["error"], "taken")
	})

	t.Run("WrongPassword", func(t *testing.T) {
		f.do(t, http.MethodPost, "/auth/customers/login", "",
			map[string]string{"username": "alice", "password": "nope"}, http.StatusUnauthorized, nil)
	})

	t.Run("MissingToken", func(t *testing.T) {
		f.do(t, http.MethodGet, "/orders", "", nil, http.StatusUnauthorized, nil)
	})

	t.Run("GarbageToken", func(t *testing.T) {
		f.do(t, http.MethodGet, "/orders", "garbage", nil, http.StatusUnauthorized, nil)
	})
}

func TestPlaceOrderEndpoint(t *testing.T) {
	f := newAPIFixture(t)

	t.Run("WithOptionAndQuantity", func(t *testing.T) {
		var resp map[string]any
		f.do(t, http.MethodPost, "/orders", f.customerToken, map[string]any{
			"restaurant_id": f.restaurant.ID,
			"items": []map[string]any{{
				"menu_id":  f.menu.ID,
				"quantity": 2,
				"options":  []int{f.option.ID},
			}},
		}, http.StatusCreated, &resp)
		// (6.50 + 1) * 2
		assert.Equal(t, "15", resp["price_paid"])
	})

	t.Run("MerchantCannotPlace", func(t *testing.T) {
		f.do(t, http.MethodPost, "/orders", f.merchantToken, map[string]any{
			"restaurant_id": f.restaurant.ID,
			"items":         []map[string]any{{"menu_id": f.menu.ID, "quantity": 1}},
		}, http.StatusUnauthorized, nil)
	})

	t.Run("EmptyItems", func(t *testing.T) {
		f.do(t, http.MethodPost, "/orders", f.customerToken, map[string]any{
			"restaurant_id": f.restaurant.ID,
		}, http.StatusBadRequest, nil)
	})

	t.Run("UnknownRestaurant", func(t *testing.T) {
		f.do(t, http.MethodPost, "/orders", f.customerToken, map[string]any{
			"restaurant_id": 9999,
			"items":         []map[string]any{{"menu_id": f.menu.ID, "quantity": 1}},
		}, http.StatusNotFound, nil)
	})
}

func TestOrderLifecycleEndpoints(t *testing.T) {
	f := newAPIFixture(t)
	orderID := f.placeOrder(t)
	path := "/orders/" + itoa(orderID) + "/status"

	var status map[string]any
	f.do(t, http.MethodGet, path, f.customerToken, nil, http.StatusOK, &status)
	assert.Equal(t, "ORDERED", status["type"])

	t.Run("SettleBeforeReadyRejected", func(t *testing.T) {
		var resp map[string]any
		f.do(t, http.MethodPut, path, f.customerToken,
			map[string]any{"type": "SETTLED"}, http.StatusBadRequest, &resp)
		assert.Contains(t, resp["error"], "ready")
	})

	t.Run("MerchantDrivesToReady", func(t *testing.T) {
		var resp map[string]any
		f.do(t, http.MethodPut, path, f.merchantToken,
			map[string]any{"type": "PREPARING"}, http.StatusOK, &resp)
		assert.Equal(t, "PREPARING", resp["status"])

		f.do(t, http.MethodGet, path, f.merchantToken, nil, http.StatusOK, &status)
		assert.Equal(t, "PREPARING", status["type"])
		assert.NotZero(t, status["prepared_at"])

		f.do(t, http.MethodPut, path, f.merchantToken,
			map[string]any{"type": "READY"}, http.StatusOK, &resp)
		assert.Equal(t, "READY", resp["status"])
	})

	t.Run("CustomerSettles", func(t *testing.T) {
		var resp map[string]any
		f.do(t, http.MethodPut, path, f.customerToken,
			map[string]any{"type": "SETTLED"}, http.StatusOK, &resp)
		assert.Equal(t, "SETTLED", resp["status"])

		f.do(t, http.MethodGet, path, f.customerToken, nil, http.StatusOK, &status)
		assert.Equal(t, "SETTLED", status["type"])
	})

	t.Run("TerminalIsFinal", func(t *testing.T) {
		f.do(t, http.MethodPut, path, f.customerToken,
			map[string]any{"type": "CANCELLED"}, http.StatusBadRequest, nil)
	})
}

func TestCancelWithReason(t *testing.T) {
	f := newAPIFixture(t)
	orderID := f.placeOrder(t)
	path := "/orders/" + itoa(orderID) + "/status"

	var resp map[string]any
	f.do(t, http.MethodPut, path, f.customerToken,
		map[string]any{"type": "CANCELLED", "reason": "ordered the wrong thing"}, http.StatusOK, &resp)
	assert.Equal(t, "CANCELLED", resp["status"])

	var status map[string]any
	f.do(t, http.MethodGet, path, f.customerToken, nil, http.StatusOK, &status)
	assert.Equal(t, "CANCELLED", status["type"])
	assert.Equal(t, "CUSTOMER", status["cancelled_by"])
	assert.Equal(t, "ordered the wrong thing", status["reason"])
}

func TestForeignCallersRejected(t *testing.T) {
	f := newAPIFixture(t)
	orderID := f.placeOrder(t)
	path := "/orders/" + itoa(orderID)

	var resp map[string]any
	f.do(t, http.MethodPost, "/auth/customers/register", "",
		map[string]string{"username": "mallory", "password": "pw"}, http.StatusCreated, &resp)
	f.do(t, http.MethodPost, "/auth/customers/login", "",
		map[string]string{"username": "mallory", "password": "pw"}, http.StatusOK, &resp)
	foreign := resp["token"].(string)

	f.do(t, http.MethodGet, path+"/status", foreign, nil, http.StatusUnauthorized, nil)
	f.do(t, http.MethodGet, path+"/queue", foreign, nil, http.StatusUnauthorized, nil)
	f.do(t, http.MethodPut, path+"/status", foreign,
		map[string]any{"type": "CANCELLED"}, http.StatusUnauthorized, nil)
}

func TestQueueEndpoints(t *testing.T) {
	f := newAPIFixture(t)
	first := f.placeOrder(t)
	second := f.placeOrder(t)

	var queue models.Queue
	f.do(t, http.MethodGet, "/restaurants/"+itoa(f.restaurant.ID)+"/queue", "", nil, http.StatusOK, &queue)
	assert.Equal(t, models.Queue{QueueCount: 2, EstimatedTime: 20}, queue)

	f.do(t, http.MethodGet, "/orders/"+itoa(second)+"/queue", f.customerToken, nil, http.StatusOK, &queue)
	assert.Equal(t, models.Queue{QueueCount: 1, EstimatedTime: 10}, queue)

	f.do(t, http.MethodGet, "/orders/"+itoa(first)+"/queue", f.customerToken, nil, http.StatusOK, &queue)
	assert.Equal(t, models.Queue{QueueCount: 0, EstimatedTime: 0}, queue)

	f.do(t, http.MethodGet, "/restaurants/9999/queue", "", nil, http.StatusNotFound, nil)
	f.do(t, http.MethodGet, "/orders/9999/queue", f.customerToken, nil, http.StatusNotFound, nil)
}

func TestListEndpoints(t *testing.T) {
	f := newAPIFixture(t)
	orderID := f.placeOrder(t)

	var restaurants []models.Restaurant
	f.do(t, http.MethodGet, "/restaurants", "", nil, http.StatusOK, &restaurants)
	require.Len(t, restaurants, 1)
	assert.Equal(t, "Noodle Stand", restaurants[0].Name)

	var menus []models.Menu
	f.do(t, http.MethodGet, "/restaurants/"+itoa(f.restaurant.ID)+"/menus", "", nil, http.StatusOK, &menus)
	require.Len(t, menus, 1)
	assert.Equal(t, "Beef Noodles", menus[0].Name)

	var orders []models.Order
	f.do(t, http.MethodGet, "/orders", f.customerToken, nil, http.StatusOK, &orders)
	require.Len(t, orders, 1)
	assert.Equal(t, orderID, orders[0].ID)

	// merchants see the same order through restaurant ownership
	f.do(t, http.MethodGet, "/orders", f.merchantToken, nil, http.StatusOK, &orders)
	require.Len(t, orders, 1)

	f.do(t, http.MethodGet, "/orders?status=CANCELLED", f.customerToken, nil, http.StatusOK, &orders)
	assert.Empty(t, orders)

	f.do(t, http.MethodGet, "/orders?status=BOGUS", f.customerToken, nil, http.StatusBadRequest, nil)
}

func TestEventsStream(t *testing.T) {
	f := newAPIFixture(t)
	orderID := f.placeOrder(t)

	wsURL := "ws" + strings.TrimPrefix(f.srv.URL, "http") + "/events"
	header := http.Header{"Authorization": []string{"Bearer " + f.customerToken}}
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, header)
	require.NoError(t, err)
	if resp != nil {
		resp.Body.Close()
	}
	defer conn.Close()

	// the handler registers the listener after the upgrade completes
	require.Eventually(t, func() bool { return f.hub.ListenerCount() > 0 },
		2*time.Second, 10*time.Millisecond)

	// merchant moves the order while the customer is connected
	f.do(t, http.MethodPut, "/orders/"+itoa(orderID)+"/status", f.merchantToken,
		map[string]any{"type": "PREPARING"}, http.StatusOK, nil)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg map[string]any
	require.NoError(t, json.Unmarshal(data, &msg))
	assert.Equal(t, "ORDER_STATUS_CHANGE", msg["type"])
	assert.Equal(t, float64(orderID), msg["order_id"])
	status, ok := msg["status"].(map[string]any)
	require.True(t, ok, "status payload missing: %s", data)
	assert.Equal(t, "PREPARING", status["type"])
}

func itoa(n int) string {
	return strconv.Itoa(n)
}
