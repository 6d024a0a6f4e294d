// Package cart builds a shopper's selection from the in-stock part of the
// catalog and prices it.
package cart

import (
	"errors"
	"fmt"

	"github.com/example/neomart/pkg/apperr"
	"github.com/example/neomart/pkg/models"
	"github.com/shopspring/decimal"
)

// taxRate is fixed at 5%.
var taxRate = decimal.New(5, -2)

var ErrEmptyCart = errors.New("cart is empty")

// Cart quantities are capped by catalog quantity as it was when the cart
// was built. Nothing re-checks stock later.
type Cart struct {
	available []models.Product
	items     []models.CartItem
}

// New starts an empty cart over the products that have stock.
func New(products []models.Product) *Cart {
	c := &Cart{}
	for _, p := range products {
		if p.InStock() {
			c.available = append(c.available, p)
		}
	}
	return c
}

// Restore rebuilds a cart from saved draft lines. Lines whose product is
// gone or out of stock are dropped; quantities are clamped to current stock.
func Restore(products []models.Product, lines []models.CartLine) *Cart {
	c := New(products)
	for _, l := range lines {
		p, ok := c.product(l.ProductID)
		if !ok || l.Quantity <= 0 || c.line(l.ProductID) >= 0 {
			continue
		}
		c.items = append(c.items, models.CartItem{Product: p, CartQuantity: min(l.Quantity, p.Quantity)})
	}
	return c
}

func (c *Cart) product(id string) (models.Product, bool) {
	for _, p := range c.available {
		if p.ID == id {
			return p, true
		}
	}
	return models.Product{}, false
}

func (c *Cart) line(id string) int {
	for i, it := range c.items {
		if it.ID == id {
			return i
		}
	}
	return -1
}

// Available lists the products that can be added, in catalog order.
func (c *Cart) Available() []models.Product {
	return append([]models.Product(nil), c.available...)
}

// Add puts one more unit of product id in the cart. Adding beyond the
// product's stock is silently ignored.
func (c *Cart) Add(id string) error {
	p, ok := c.product(id)
	if !ok {
		return fmt.Errorf("product %q: %w", id, apperr.ErrNotFound)
	}
	if i := c.line(id); i >= 0 {
		if c.items[i].CartQuantity < p.Quantity {
			c.items[i].CartQuantity++
		}
		return nil
	}
	c.items = append(c.items, models.CartItem{Product: p, CartQuantity: 1})
	return nil
}

// SetQuantity sets the line for id to n units, clamped to [1, stock].
// Zero removes the line. Unknown lines are left alone.
func (c *Cart) SetQuantity(id string, n int) {
	i := c.line(id)
	if i < 0 {
		return
	}
	if n == 0 {
		c.Remove(id)
		return
	}
	c.items[i].CartQuantity = max(1, min(n, c.items[i].Quantity))
}

func (c *Cart) Remove(id string) {
	if i := c.line(id); i >= 0 {
		c.items = append(c.items[:i], c.items[i+1:]...)
	}
}

func (c *Cart) Items() []models.CartItem {
	return append([]models.CartItem(nil), c.items...)
}

func (c *Cart) Lines() []models.CartLine {
	lines := make([]models.CartLine, 0, len(c.items))
	for _, it := range c.items {
		lines = append(lines, models.CartLine{ProductID: it.ID, Quantity: it.CartQuantity})
	}
	return lines
}

func (c *Cart) Empty() bool {
	return len(c.items) == 0
}

func (c *Cart) TotalItems() int {
	n := 0
	for _, it := range c.items {
		n += it.CartQuantity
	}
	return n
}

func (c *Cart) Subtotal() decimal.Decimal {
	sum := decimal.Zero
	for _, it := range c.items {
		sum = sum.Add(it.LineTotal())
	}
	return sum
}

func (c *Cart) Tax() decimal.Decimal {
	return c.Subtotal().Mul(taxRate)
}

func (c *Cart) Total() decimal.Decimal {
	return c.Subtotal().Add(c.Tax())
}

func (c *Cart) Totals() models.Totals {
	sub := c.Subtotal()
	tax := sub.Mul(taxRate)
	return models.Totals{Subtotal: sub, Tax: tax, Total: sub.Add(tax)}
}
