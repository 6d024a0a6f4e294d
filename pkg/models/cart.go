package models

import "github.com/shopspring/decimal"

// CartLine is the persisted form of a draft cart line.
type CartLine struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

type CartItem struct {
	Product
	CartQuantity int `json:"cartQuantity"`
}

func (i CartItem) LineTotal() decimal.Decimal {
	return i.SellPrice.Mul(decimal.NewFromInt(int64(i.CartQuantity)))
}

// Snapshot copies the purchase-relevant fields into an order line.
func (i CartItem) Snapshot() OrderItem {
	return OrderItem{
		ProductID: i.ID,
		Name:      i.Name,
		SellPrice: i.SellPrice,
		BuyPrice:  i.BuyPrice,
		Quantity:  i.CartQuantity,
	}
}

type Totals struct {
	Subtotal decimal.Decimal `json:"subtotal"`
	Tax      decimal.Decimal `json:"tax"`
	Total    decimal.Decimal `json:"total"`
}

// PendingCheckout is the cart handed from the storefront to payment.
// Method is empty until a payment method has been chosen.
type PendingCheckout struct {
	Items  []CartItem    `json:"items"`
	Totals Totals        `json:"totals"`
	Method PaymentMethod `json:"paymentMethod,omitempty"`
}
