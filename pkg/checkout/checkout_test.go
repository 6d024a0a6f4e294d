package checkout

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/neomart/pkg/apperr"
	"github.com/example/neomart/pkg/audit"
	"github.com/example/neomart/pkg/cart"
	"github.com/example/neomart/pkg/config"
	"github.com/example/neomart/pkg/models"
	"github.com/example/neomart/pkg/repository"
	"github.com/example/neomart/pkg/state"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var placedAt = time.Date(2024, 3, 5, 14, 30, 0, 0, time.UTC)

type recorded struct {
	action, entityID string
}

type recorder struct{ entries []recorded }

func (r *recorder) Record(action, entityID, _ string, _ map[string]interface{}) {
	r.entries = append(r.entries, recorded{action, entityID})
}

func setup(t *testing.T, delays config.CheckoutConfig) (*Service, *state.Store, *recorder) {
	t.Helper()
	ctx := context.Background()
	st := state.New(repository.NewMemoryRepository(), "test")

	widget := models.Product{
		ID: "NM001", Name: "Widget",
		BuyPrice: decimal.NewFromInt(10), SellPrice: decimal.NewFromInt(15),
		Quantity: 20, LowQuantityAlert: 5,
	}
	widget.RefreshProfit()
	require.NoError(t, st.SaveProducts(ctx, []models.Product{widget}))
	require.NoError(t, st.SetCustomer(ctx, "Asha"))

	c := cart.New([]models.Product{widget})
	require.NoError(t, c.Add("NM001"))
	c.SetQuantity("NM001", 2)
	require.NoError(t, st.SavePending(ctx, c.Items(), c.Totals()))

	rec := &recorder{}
	svc := NewService(st, delays, rec, zap.NewNop(), WithClock(func() time.Time { return placedAt }))
	return svc, st, rec
}

func TestCashCheckout(t *testing.T) {
	svc, st, rec := setup(t, config.CheckoutConfig{})
	ctx := context.Background()

	stage, err := svc.Stage(ctx)
	require.NoError(t, err)
	assert.Equal(t, Browsing, stage)

	_, err = svc.SelectMethod(ctx, "cash")
	require.NoError(t, err)
	stage, err = svc.Stage(ctx)
	require.NoError(t, err)
	assert.Equal(t, MethodSelected, stage)

	order, err := svc.Confirm(ctx)
	require.NoError(t, err)

	assert.Equal(t, models.OrderNumber(placedAt), order.ID)
	assert.Equal(t, "Asha", order.CustomerName)
	assert.Equal(t, models.PaymentCash, order.PaymentMethod)
	assert.True(t, order.Total.Equal(decimal.RequireFromString("31.50")))
	assert.Equal(t, placedAt.UnixMilli(), order.Timestamp)
	require.Len(t, order.Items, 1)
	assert.Equal(t, 2, order.Items[0].Quantity)

	orders, err := st.Orders(ctx)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, order.ID, orders[0].ID)

	products, err := st.Products(ctx)
	require.NoError(t, err)
	assert.Equal(t, 18, products[0].Quantity)
	assert.True(t, products[0].Profit.Equal(decimal.NewFromInt(100)), "profit %s", products[0].Profit)
	assert.True(t, products[0].ProfitPercentage.Equal(decimal.NewFromInt(50)))

	pending, err := st.Pending(ctx)
	require.NoError(t, err)
	assert.Nil(t, pending)

	require.Len(t, rec.entries, 1)
	assert.Equal(t, audit.ActionOrderPlaced, rec.entries[0].action)
}

func TestFinalizeTwiceIsNotIdempotent(t *testing.T) {
	svc, st, _ := setup(t, config.CheckoutConfig{})
	ctx := context.Background()

	pending, err := st.Pending(ctx)
	require.NoError(t, err)

	_, err = svc.Finalize(ctx, pending, models.PaymentCash)
	require.NoError(t, err)
	_, err = svc.Finalize(ctx, pending, models.PaymentCash)
	require.NoError(t, err)

	orders, err := st.Orders(ctx)
	require.NoError(t, err)
	assert.Len(t, orders, 2)

	products, err := st.Products(ctx)
	require.NoError(t, err)
	assert.Equal(t, 16, products[0].Quantity)
}

func TestFinalizeFloorsStockAtZero(t *testing.T) {
	svc, st, _ := setup(t, config.CheckoutConfig{})
	ctx := context.Background()

	pending, err := st.Pending(ctx)
	require.NoError(t, err)
	pending.Items[0].CartQuantity = 50
	pending.Items = append(pending.Items, models.CartItem{
		Product:      models.Product{ID: "GONE", Name: "Removed", SellPrice: decimal.NewFromInt(1)},
		CartQuantity: 1,
	})

	order, err := svc.Finalize(ctx, pending, models.PaymentCard)
	require.NoError(t, err)
	assert.Len(t, order.Items, 2)

	products, err := st.Products(ctx)
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Zero(t, products[0].Quantity)
}

func TestConfirmRequiresMethod(t *testing.T) {
	svc, _, _ := setup(t, config.CheckoutConfig{})

	_, err := svc.Confirm(context.Background())
	assert.ErrorIs(t, err, ErrMethodNotSelected)
}

func TestSelectMethodErrors(t *testing.T) {
	svc, st, _ := setup(t, config.CheckoutConfig{})
	ctx := context.Background()

	_, err := svc.SelectMethod(ctx, "cheque")
	var ve *apperr.ValidationError
	assert.True(t, errors.As(err, &ve))

	require.NoError(t, st.ClearPending(ctx))
	_, err = svc.SelectMethod(ctx, "upi")
	assert.ErrorIs(t, err, ErrNoPendingCheckout)

	_, err = svc.Confirm(ctx)
	assert.ErrorIs(t, err, ErrNoPendingCheckout)
}

func TestConfirmCancelledWritesNothing(t *testing.T) {
	svc, st, rec := setup(t, config.CheckoutConfig{CardDelay: time.Hour})
	ctx, cancel := context.WithCancel(context.Background())

	_, err := svc.SelectMethod(ctx, "card")
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := svc.Confirm(ctx)
		done <- err
	}()

	require.Eventually(t, func() bool {
		stage, err := svc.Stage(context.Background())
		return err == nil && stage == Processing
	}, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("confirm did not return after cancel")
	}

	bg := context.Background()
	orders, err := st.Orders(bg)
	require.NoError(t, err)
	assert.Empty(t, orders)

	products, err := st.Products(bg)
	require.NoError(t, err)
	assert.Equal(t, 20, products[0].Quantity)

	pending, err := st.Pending(bg)
	require.NoError(t, err)
	require.NotNil(t, pending)
	assert.Equal(t, models.PaymentCard, pending.Method)
	assert.Empty(t, rec.entries)
}

func TestStageString(t *testing.T) {
	assert.Equal(t, "method_selected", MethodSelected.String())
	assert.Equal(t, "confirmed", Confirmed.String())
	text, err := Processing.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "processing", string(text))
}
