package state

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/example/neomart/pkg/models"
	"github.com/example/neomart/pkg/repository"
)

// Tx is the typed view of state inside Store.Update.
type Tx struct {
	tx repository.Txn
	s  *Store
}

func (t *Tx) get(key string, dest interface{}) (bool, error) {
	data, err := t.tx.Get(t.s.key(key))
	if errors.Is(err, repository.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read %s: %w", key, err)
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

func (t *Tx) set(key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	t.tx.Set(t.s.key(key), data)
	return nil
}

func (t *Tx) Products() ([]models.Product, error) {
	var products []models.Product
	_, err := t.get(keyProducts, &products)
	return products, err
}

func (t *Tx) SetProducts(products []models.Product) error {
	return t.set(keyProducts, nonNil(products))
}

func (t *Tx) Orders() ([]models.Order, error) {
	var orders []models.Order
	_, err := t.get(keyOrders, &orders)
	return orders, err
}

func (t *Tx) AppendOrder(o models.Order) error {
	orders, err := t.Orders()
	if err != nil {
		return err
	}
	return t.set(keyOrders, append(orders, o))
}

func (t *Tx) Pending() (*models.PendingCheckout, error) {
	var p models.PendingCheckout
	ok, err := t.get(keyCurrentCart, &p.Items)
	if err != nil || !ok {
		return nil, err
	}
	ok, err = t.get(keyCartTotal, &p.Totals)
	if err != nil || !ok {
		return nil, err
	}

	method, err := t.tx.Get(t.s.key(keyPaymentMethod))
	switch {
	case errors.Is(err, repository.ErrNotFound):
	case err != nil:
		return nil, fmt.Errorf("read %s: %w", keyPaymentMethod, err)
	default:
		p.Method = models.PaymentMethod(method)
	}
	return &p, nil
}

// ClearPending removes the checkout hand-off and any draft cart.
func (t *Tx) ClearPending() {
	for _, k := range []string{keyCurrentCart, keyCartTotal, keyPaymentMethod, keyCart} {
		t.tx.Del(t.s.key(k))
	}
}
