package sales

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/example/neomart/pkg/audit"
	"github.com/example/neomart/pkg/models"
	"github.com/example/neomart/pkg/repository"
	"github.com/example/neomart/pkg/state"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var now = time.Date(2024, 3, 15, 18, 0, 0, 0, time.UTC)

func order(id string, at time.Time, total string, items ...models.OrderItem) models.Order {
	return models.Order{
		ID:        id,
		Items:     items,
		Total:     decimal.RequireFromString(total),
		Date:      at,
		Timestamp: at.UnixMilli(),
	}
}

func line(buy, sell int64, qty int) models.OrderItem {
	return models.OrderItem{
		BuyPrice:  decimal.NewFromInt(buy),
		SellPrice: decimal.NewFromInt(sell),
		Quantity:  qty,
	}
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestSummarize(t *testing.T) {
	orders := []models.Order{
		order("a", now.Add(-2*time.Hour), "100", line(10, 15, 2)),
		order("b", now.AddDate(0, 0, -3), "50"),
		order("c", now.AddDate(0, -1, 0), "999"),
		order("d", now.AddDate(-1, 0, 0), "999"),
	}

	s := Summarize(orders, now)

	assert.True(t, s.Today.Revenue.Equal(dec("100")))
	assert.True(t, s.Today.Profit.Equal(dec("30")))
	assert.True(t, s.Today.RealizedProfit.Equal(dec("10")))
	assert.Equal(t, 1, s.Today.Orders)

	assert.True(t, s.Month.Revenue.Equal(dec("150")))
	assert.True(t, s.Month.Profit.Equal(dec("45")))
	assert.Equal(t, 2, s.Month.Orders)
}

func TestSummarizeEmpty(t *testing.T) {
	s := Summarize(nil, now)
	assert.True(t, s.Today.Revenue.IsZero())
	assert.True(t, s.Month.Profit.IsZero())
	assert.Zero(t, s.Month.Orders)
}

func TestSummarizeUsesNowLocation(t *testing.T) {
	zone := time.FixedZone("IST", 5*3600+1800)
	local := time.Date(2024, 3, 16, 1, 0, 0, 0, zone)
	// 19:00 UTC on the 15th is already the 16th in IST.
	orders := []models.Order{order("a", time.Date(2024, 3, 15, 19, 0, 0, 0, time.UTC), "10")}

	s := Summarize(orders, local)
	assert.Equal(t, 1, s.Today.Orders)
}

func TestRecent(t *testing.T) {
	var orders []models.Order
	for i := 0; i < 12; i++ {
		orders = append(orders, order(fmt.Sprintf("o%02d", i), now.Add(time.Duration(i)*time.Minute), "1"))
	}

	recent := Recent(orders, RecentLimit)
	require.Len(t, recent, RecentLimit)
	assert.Equal(t, "o11", recent[0].ID)
	assert.Equal(t, "o02", recent[9].ID)
	assert.Equal(t, "o00", orders[0].ID)
}

func TestDashboardAndReset(t *testing.T) {
	ctx := context.Background()
	st := state.New(repository.NewMemoryRepository(), "test")
	require.NoError(t, st.SetCustomer(ctx, "Asha"))
	require.NoError(t, st.SaveProducts(ctx, []models.Product{{ID: "NM001", Name: "Widget"}}))
	require.NoError(t, st.AppendOrder(ctx, order("a", now, "31.50")))

	svc := NewService(st, audit.Nop{}, zap.NewNop(), WithClock(func() time.Time { return now }))

	d, err := svc.Dashboard(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, d.TotalOrders)
	assert.True(t, d.Today.Revenue.Equal(dec("31.50")))
	require.Len(t, d.Recent, 1)

	require.NoError(t, svc.ResetAll(ctx))

	d, err = svc.Dashboard(ctx)
	require.NoError(t, err)
	assert.Zero(t, d.TotalOrders)
	products, err := st.Products(ctx)
	require.NoError(t, err)
	assert.Empty(t, products)

	sess, err := st.Session(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Asha", sess.CustomerName)
}
