package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type PaymentMethod string

const (
	PaymentUPI  PaymentMethod = "upi"
	PaymentCard PaymentMethod = "card"
	PaymentCash PaymentMethod = "cash"
)

func ParsePaymentMethod(s string) (PaymentMethod, error) {
	switch m := PaymentMethod(s); m {
	case PaymentUPI, PaymentCard, PaymentCash:
		return m, nil
	}
	return "", fmt.Errorf("unknown payment method %q", s)
}

// Order is a completed purchase. Items are snapshots taken at checkout and
// stay intact when the product is later edited or removed.
type Order struct {
	ID            string          `json:"id"`
	CustomerName  string          `json:"customerName"`
	Items         []OrderItem     `json:"items"`
	Total         decimal.Decimal `json:"total"`
	PaymentMethod PaymentMethod   `json:"paymentMethod"`
	Date          time.Time       `json:"date"`
	Timestamp     int64           `json:"timestamp"`
}

type OrderItem struct {
	ProductID string          `json:"id"`
	Name      string          `json:"name"`
	SellPrice decimal.Decimal `json:"sellPrice"`
	BuyPrice  decimal.Decimal `json:"buyPrice"`
	Quantity  int             `json:"cartQuantity"`
}

func (i OrderItem) LineTotal() decimal.Decimal {
	return i.SellPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// PlacedAt prefers the millisecond timestamp and falls back to Date.
func (o Order) PlacedAt() time.Time {
	if o.Timestamp != 0 {
		return time.UnixMilli(o.Timestamp)
	}
	return o.Date
}

// OrderNumber derives an order identifier from t: "NM" followed by the last
// eight digits of its Unix millisecond value.
func OrderNumber(t time.Time) string {
	ms := fmt.Sprintf("%d", t.UnixMilli())
	if len(ms) > 8 {
		ms = ms[len(ms)-8:]
	}
	return "NM" + ms
}
