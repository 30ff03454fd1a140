package order

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"foodcourt/internal/apperr"
	"foodcourt/internal/memstore"
	"foodcourt/internal/models"
)

const (
	testMerchantID  = 7
	testCustomerID  = 3
	otherMerchantID = 8
	otherCustomerID = 4
)

type fixture struct {
	store      *memstore.Store
	machine    *Machine
	restaurant *models.Restaurant
	menu       *models.Menu
	order      *models.Order
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	store := memstore.New()

	restaurant, err := store.CreateRestaurant(ctx, testMerchantID, "Noodle Stand")
	require.NoError(t, err)

	prep := 10
	menu, err := store.CreateMenu(ctx, models.Menu{
		RestaurantID:      restaurant.ID,
		Name:              "Beef Noodles",
		Price:             decimal.NewFromInt(5),
		EstimatedPrepTime: &prep,
	})
	require.NoError(t, err)

	machine := NewMachine(store, nil)
	machine.now = func() int64 { return 1234 }

	o, err := machine.PlaceOrder(ctx, testCustomerID, PlaceOrderRequest{
		RestaurantID: restaurant.ID,
		Items:        []PlaceOrderItem{{MenuID: menu.ID, Quantity: 1}},
	})
	require.NoError(t, err)

	return &fixture{store: store, machine: machine, restaurant: restaurant, menu: menu, order: o}
}

// forceStatus walks the order into the given state through the store,
// bypassing the machine, so each table row starts from a known state.
func (f *fixture) forceStatus(t *testing.T, status models.OrderStatus) {
	t.Helper()
	ctx := context.Background()
	var detail models.StatusDetail
	switch status {
	case models.StatusOrdered:
		return
	case models.StatusPreparing:
		detail = models.PreparingDetail{PreparedAt: 1000}
	case models.StatusReady:
		detail = models.ReadyDetail{ReadyAt: 1000}
	case models.StatusSettled:
		detail = models.SettledDetail{SettledAt: 1000}
	case models.StatusCancelled:
		detail = models.CancelledDetail{CancelledBy: models.CancelledByCustomer, CancelledTime: 1000}
	}
	require.NoError(t, f.store.SetStatus(ctx, f.order.ID, detail))
}

func TestMachine_TransitionTable(t *testing.T) {
	all := []models.OrderStatus{
		models.StatusOrdered, models.StatusPreparing, models.StatusReady,
		models.StatusSettled, models.StatusCancelled,
	}

	type row struct {
		role     models.Role
		from     models.OrderStatus
		target   models.OrderStatus
		wantNext models.OrderStatus // zero value means invalid-argument
	}

	var rows []row
	// customer edges
	rows = append(rows,
		row{models.RoleCustomer, models.StatusOrdered, models.StatusCancelled, models.StatusCancelled},
		row{models.RoleCustomer, models.StatusReady, models.StatusSettled, models.StatusSettled},
	)
	for _, from := range all {
		if from != models.StatusOrdered {
			rows = append(rows, row{models.RoleCustomer, from, models.StatusCancelled, ""})
		}
		if from != models.StatusReady {
			rows = append(rows, row{models.RoleCustomer, from, models.StatusSettled, ""})
		}
		rows = append(rows,
			row{models.RoleCustomer, from, models.StatusPreparing, ""},
			row{models.RoleCustomer, from, models.StatusReady, ""},
		)
	}
	// merchant edges
	rows = append(rows,
		row{models.RoleMerchant, models.StatusOrdered, models.StatusPreparing, models.StatusPreparing},
		row{models.RoleMerchant, models.StatusPreparing, models.StatusReady, models.StatusReady},
		row{models.RoleMerchant, models.StatusOrdered, models.StatusCancelled, models.StatusCancelled},
		row{models.RoleMerchant, models.StatusPreparing, models.StatusCancelled, models.StatusCancelled},
	)
	for _, from := range all {
		if from != models.StatusOrdered {
			rows = append(rows, row{models.RoleMerchant, from, models.StatusPreparing, ""})
		}
		if from != models.StatusPreparing {
			rows = append(rows, row{models.RoleMerchant, from, models.StatusReady, ""})
		}
		if from != models.StatusOrdered && from != models.StatusPreparing {
			rows = append(rows, row{models.RoleMerchant, from, models.StatusCancelled, ""})
		}
		rows = append(rows, row{models.RoleMerchant, from, models.StatusSettled, ""})
	}

	for _, tt := range rows {
		name := string(tt.role) + "/" + string(tt.from) + "->" + string(tt.target)
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			f := newFixture(t)
			f.forceStatus(t, tt.from)

			callerID := testCustomerID
			if tt.role == models.RoleMerchant {
				callerID = testMerchantID
			}

			after, err := f.machine.AttemptTransition(ctx, callerID, tt.role, f.order.ID, TransitionRequest{Target: tt.target})

			if tt.wantNext == "" {
				require.Error(t, err)
				assert.Equal(t, apperr.KindInvalidArgument, apperr.KindOf(err))
				// a rejected transition leaves the order untouched
				stored, err := f.store.Order(ctx, f.order.ID)
				require.NoError(t, err)
				assert.Equal(t, tt.from, stored.Status)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.wantNext, after.Status)
			stored, err := f.store.Order(ctx, f.order.ID)
			require.NoError(t, err)
			assert.Equal(t, tt.wantNext, stored.Status)
		})
	}
}

func TestMachine_CancelAttribution(t *testing.T) {
	ctx := context.Background()
	reason := "changed my mind"

	f := newFixture(t)
	_, err := f.machine.AttemptTransition(ctx, testCustomerID, models.RoleCustomer, f.order.ID, TransitionRequest{
		Target: models.StatusCancelled,
		Reason: &reason,
	})
	require.NoError(t, err)

	detail, err := f.store.StatusDetail(ctx, f.order.ID, models.StatusCancelled)
	require.NoError(t, err)
	cancelled, ok := detail.(models.CancelledDetail)
	require.True(t, ok)
	assert.Equal(t, models.CancelledByCustomer, cancelled.CancelledBy)
	assert.Equal(t, int64(1234), cancelled.CancelledTime)
	require.NotNil(t, cancelled.Reason)
	assert.Equal(t, reason, *cancelled.Reason)

	f = newFixture(t)
	_, err = f.machine.AttemptTransition(ctx, testMerchantID, models.RoleMerchant, f.order.ID, TransitionRequest{Target: models.StatusCancelled})
	require.NoError(t, err)
	detail, err = f.store.StatusDetail(ctx, f.order.ID, models.StatusCancelled)
	require.NoError(t, err)
	assert.Equal(t, models.CancelledByMerchant, detail.(models.CancelledDetail).CancelledBy)
}

func TestMachine_Authorization(t *testing.T) {
	ctx := context.Background()

	t.Run("ForeignCustomer", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.machine.AttemptTransition(ctx, otherCustomerID, models.RoleCustomer, f.order.ID, TransitionRequest{Target: models.StatusCancelled})
		require.Error(t, err)
		assert.Equal(t, apperr.KindUnauthorized, apperr.KindOf(err))
	})

	t.Run("ForeignMerchant", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.machine.AttemptTransition(ctx, otherMerchantID, models.RoleMerchant, f.order.ID, TransitionRequest{Target: models.StatusPreparing})
		require.Error(t, err)
		assert.Equal(t, apperr.KindUnauthorized, apperr.KindOf(err))

		stored, err := f.store.Order(ctx, f.order.ID)
		require.NoError(t, err)
		assert.Equal(t, models.StatusOrdered, stored.Status)
	})

	t.Run("AuthorizationBeforeTransitionValidation", func(t *testing.T) {
		// a foreign caller requesting an invalid edge still gets the
		// authorization error, not the transition error
		f := newFixture(t)
		_, err := f.machine.AttemptTransition(ctx, otherCustomerID, models.RoleCustomer, f.order.ID, TransitionRequest{Target: models.StatusSettled})
		require.Error(t, err)
		assert.Equal(t, apperr.KindUnauthorized, apperr.KindOf(err))
	})
}

func TestMachine_UnknownOrderAndTarget(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.machine.AttemptTransition(ctx, testCustomerID, models.RoleCustomer, 9999, TransitionRequest{Target: models.StatusCancelled})
	require.Error(t, err)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

	_, err = f.machine.AttemptTransition(ctx, testCustomerID, models.RoleCustomer, f.order.ID, TransitionRequest{Target: models.StatusOrdered})
	require.Error(t, err)
	assert.Equal(t, apperr.KindInvalidArgument, apperr.KindOf(err))
}

func TestMachine_Status(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	detail, err := f.machine.Status(ctx, testCustomerID, models.RoleCustomer, f.order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusOrdered, detail.Status())

	_, err = f.machine.AttemptTransition(ctx, testMerchantID, models.RoleMerchant, f.order.ID, TransitionRequest{Target: models.StatusPreparing})
	require.NoError(t, err)

	detail, err = f.machine.Status(ctx, testMerchantID, models.RoleMerchant, f.order.ID)
	require.NoError(t, err)
	preparing, ok := detail.(models.PreparingDetail)
	require.True(t, ok)
	assert.Equal(t, int64(1234), preparing.PreparedAt)

	_, err = f.machine.Status(ctx, otherCustomerID, models.RoleCustomer, f.order.ID)
	require.Error(t, err)
	assert.Equal(t, apperr.KindUnauthorized, apperr.KindOf(err))
}

func TestMachine_PlaceOrderValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	t.Run("EmptyOrder", func(t *testing.T) {
		_, err := f.machine.PlaceOrder(ctx, testCustomerID, PlaceOrderRequest{RestaurantID: f.restaurant.ID})
		assert.Equal(t, apperr.KindInvalidArgument, apperr.KindOf(err))
	})

	t.Run("ZeroQuantity", func(t *testing.T) {
		_, err := f.machine.PlaceOrder(ctx, testCustomerID, PlaceOrderRequest{
			RestaurantID: f.restaurant.ID,
			Items:        []PlaceOrderItem{{MenuID: f.menu.ID, Quantity: 0}},
		})
		assert.Equal(t, apperr.KindInvalidArgument, apperr.KindOf(err))
	})

	t.Run("UnknownRestaurant", func(t *testing.T) {
		_, err := f.machine.PlaceOrder(ctx, testCustomerID, PlaceOrderRequest{
			RestaurantID: 9999,
			Items:        []PlaceOrderItem{{MenuID: f.menu.ID, Quantity: 1}},
		})
		assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
	})

	t.Run("ForeignMenu", func(t *testing.T) {
		other, err := f.store.CreateRestaurant(ctx, otherMerchantID, "Other Stall")
		require.NoError(t, err)
		_, err = f.machine.PlaceOrder(ctx, testCustomerID, PlaceOrderRequest{
			RestaurantID: other.ID,
			Items:        []PlaceOrderItem{{MenuID: f.menu.ID, Quantity: 1}},
		})
		assert.Equal(t, apperr.KindInvalidArgument, apperr.KindOf(err))
	})

	t.Run("PriceIncludesOptionsAndQuantity", func(t *testing.T) {
		extra := decimal.NewFromInt(2)
		option, err := f.store.CreateOption(ctx, models.Option{MenuID: f.menu.ID, Name: "Extra Beef", ExtraPrice: &extra})
		require.NoError(t, err)

		o, err := f.machine.PlaceOrder(ctx, testCustomerID, PlaceOrderRequest{
			RestaurantID: f.restaurant.ID,
			Items:        []PlaceOrderItem{{MenuID: f.menu.ID, Quantity: 2, OptionIDs: []int{option.ID}}},
		})
		require.NoError(t, err)
		// (5 + 2) * 2
		assert.True(t, o.PricePaid.Equal(decimal.NewFromInt(14)), "got %s", o.PricePaid)
		assert.Equal(t, models.StatusOrdered, o.Status)
		assert.Equal(t, int64(1234), o.OrderedAt)
	})

	t.Run("ForeignOption", func(t *testing.T) {
		otherMenu, err := f.store.CreateMenu(ctx, models.Menu{RestaurantID: f.restaurant.ID, Name: "Dumplings", Price: decimal.NewFromInt(4)})
		require.NoError(t, err)
		option, err := f.store.CreateOption(ctx, models.Option{MenuID: otherMenu.ID, Name: "Vinegar"})
		require.NoError(t, err)

		_, err = f.machine.PlaceOrder(ctx, testCustomerID, PlaceOrderRequest{
			RestaurantID: f.restaurant.ID,
			Items:        []PlaceOrderItem{{MenuID: f.menu.ID, Quantity: 1, OptionIDs: []int{option.ID}}},
		})
		assert.Equal(t, apperr.KindInvalidArgument, apperr.KindOf(err))
	})
}
