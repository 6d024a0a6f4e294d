package shop

import (
	"context"
	"errors"
	"testing"

	"github.com/example/neomart/pkg/apperr"
	"github.com/example/neomart/pkg/audit"
	"github.com/example/neomart/pkg/cart"
	"github.com/example/neomart/pkg/models"
	"github.com/example/neomart/pkg/repository"
	"github.com/example/neomart/pkg/session"
	"github.com/example/neomart/pkg/state"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fixture struct {
	shop  *Service
	state *state.Store
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	st := state.New(repository.NewMemoryRepository(), "test")
	sess := session.NewService(st, session.Credentials{}, audit.Nop{}, zap.NewNop())

	products := []models.Product{
		{ID: "NM001", Name: "Widget", BuyPrice: decimal.NewFromInt(10), SellPrice: decimal.NewFromInt(15), Quantity: 20, LowQuantityAlert: 5},
		{ID: "NM002", Name: "Gadget", BuyPrice: decimal.NewFromInt(4), SellPrice: decimal.NewFromInt(6), Quantity: 1},
		{ID: "NM003", Name: "Sold out", BuyPrice: decimal.NewFromInt(1), SellPrice: decimal.NewFromInt(2), Quantity: 0},
	}
	require.NoError(t, st.SaveProducts(context.Background(), products))

	return fixture{shop: NewService(st, sess, zap.NewNop()), state: st}
}

func (f fixture) enter(t *testing.T) context.Context {
	t.Helper()
	ctx := context.Background()
	name, err := f.shop.Enter(ctx, "  Asha ")
	require.NoError(t, err)
	require.Equal(t, "Asha", name)
	return ctx
}

func TestEnterRejectsBlankName(t *testing.T) {
	f := newFixture(t)

	_, err := f.shop.Enter(context.Background(), "   ")
	var ve *apperr.ValidationError
	require.True(t, errors.As(err, &ve))
}

func TestRequiresCustomer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var na *apperr.NotAuthenticatedError
	_, err := f.shop.Cart(ctx)
	assert.True(t, errors.As(err, &na))
	_, err = f.shop.Catalog(ctx, "")
	assert.True(t, errors.As(err, &na))
	_, err = f.shop.ProceedToPayment(ctx)
	assert.True(t, errors.As(err, &na))
}

func TestCatalogShowsOnlyInStock(t *testing.T) {
	f := newFixture(t)
	ctx := f.enter(t)

	products, err := f.shop.Catalog(ctx, "")
	require.NoError(t, err)
	require.Len(t, products, 2)

	products, err = f.shop.Catalog(ctx, "WIDG")
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, "NM001", products[0].ID)
}

func TestCartPersistsBetweenCalls(t *testing.T) {
	f := newFixture(t)
	ctx := f.enter(t)

	_, err := f.shop.AddToCart(ctx, "NM001")
	require.NoError(t, err)
	_, err = f.shop.AddToCart(ctx, "NM001")
	require.NoError(t, err)
	_, err = f.shop.AddToCart(ctx, "NM002")
	require.NoError(t, err)
	v, err := f.shop.AddToCart(ctx, "NM002")
	require.NoError(t, err)

	assert.Equal(t, "Asha", v.Customer)
	assert.Equal(t, 3, v.TotalItems)

	v, err = f.shop.RemoveFromCart(ctx, "NM002")
	require.NoError(t, err)
	assert.Equal(t, 2, v.TotalItems)

	v, err = f.shop.Cart(ctx)
	require.NoError(t, err)
	require.Len(t, v.Items, 1)
	assert.Equal(t, 2, v.Items[0].CartQuantity)
	assert.True(t, v.Totals.Subtotal.Equal(decimal.RequireFromString("30.00")))
	assert.True(t, v.Totals.Tax.Equal(decimal.RequireFromString("1.50")))
	assert.True(t, v.Totals.Total.Equal(decimal.RequireFromString("31.50")))

	_, err = f.shop.AddToCart(ctx, "NM003")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestSetQuantityZeroRemoves(t *testing.T) {
	f := newFixture(t)
	ctx := f.enter(t)

	_, err := f.shop.AddToCart(ctx, "NM001")
	require.NoError(t, err)
	v, err := f.shop.SetQuantity(ctx, "NM001", 50)
	require.NoError(t, err)
	assert.Equal(t, 20, v.Items[0].CartQuantity)

	v, err = f.shop.SetQuantity(ctx, "NM001", 0)
	require.NoError(t, err)
	assert.Empty(t, v.Items)
}

func TestProceedToPayment(t *testing.T) {
	f := newFixture(t)
	ctx := f.enter(t)

	_, err := f.shop.ProceedToPayment(ctx)
	assert.ErrorIs(t, err, cart.ErrEmptyCart)

	_, err = f.shop.AddToCart(ctx, "NM001")
	require.NoError(t, err)
	_, err = f.shop.SetQuantity(ctx, "NM001", 2)
	require.NoError(t, err)

	p, err := f.shop.ProceedToPayment(ctx)
	require.NoError(t, err)
	assert.True(t, p.Totals.Total.Equal(decimal.RequireFromString("31.50")))

	stored, err := f.state.Pending(ctx)
	require.NoError(t, err)
	require.NotNil(t, stored)
	require.Len(t, stored.Items, 1)
	assert.Equal(t, 2, stored.Items[0].CartQuantity)

	v, err := f.shop.Cart(ctx)
	require.NoError(t, err)
	assert.Empty(t, v.Items)
}
