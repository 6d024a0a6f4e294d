package models

import (
	"time"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

type Product struct {
	ID               string          `json:"id"`
	Name             string          `json:"name"`
	BuyPrice         decimal.Decimal `json:"buyPrice"`
	SellPrice        decimal.Decimal `json:"sellPrice"`
	Weight           string          `json:"weight"`
	Quantity         int             `json:"quantity"`
	LowQuantityAlert int             `json:"lowQuantityAlert"`
	// Profit and ProfitPercentage are computed when the product is saved and
	// are not refreshed when checkout decrements Quantity.
	Profit           decimal.Decimal `json:"profit"`
	ProfitPercentage decimal.Decimal `json:"profitPercentage"`
	DateAdded        time.Time       `json:"dateAdded"`
}

// ComputeProfit returns the total profit over quantity units and the margin
// over buy price in percent. Both are zero unless both prices are positive.
func ComputeProfit(buy, sell decimal.Decimal, quantity int) (decimal.Decimal, decimal.Decimal) {
	if !buy.IsPositive() || !sell.IsPositive() {
		return decimal.Zero, decimal.Zero
	}
	perUnit := sell.Sub(buy)
	return perUnit.Mul(decimal.NewFromInt(int64(quantity))), perUnit.Div(buy).Mul(hundred)
}

// RefreshProfit recomputes the stored derived fields from current prices and quantity.
func (p *Product) RefreshProfit() {
	p.Profit, p.ProfitPercentage = ComputeProfit(p.BuyPrice, p.SellPrice, p.Quantity)
}

// LiveProfit is the profit on the units currently on hand.
func (p Product) LiveProfit() decimal.Decimal {
	profit, _ := ComputeProfit(p.BuyPrice, p.SellPrice, p.Quantity)
	return profit
}

func (p Product) LowStock() bool {
	return p.Quantity <= p.LowQuantityAlert
}

func (p Product) OutOfStock() bool {
	return p.Quantity == 0
}

func (p Product) InStock() bool {
	return p.Quantity > 0
}

// Listing is the minimal product shape shared by the local catalog and the
// hosted product table.
type Listing struct {
	ID     string          `json:"id"`
	Name   string          `json:"name"`
	Price  decimal.Decimal `json:"price"`
	Source string          `json:"source"`
}
