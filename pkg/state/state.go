// Package state is the single boundary through which storefront and admin
// code reads and writes persisted application state. One namespace is one
// shopper's browser: a single active user, whole collections rewritten on
// every save.
package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/example/neomart/pkg/models"
	"github.com/example/neomart/pkg/repository"
)

const (
	keyProducts      = "products"
	keyOrders        = "orders"
	keyAdminAuth     = "session:admin_auth"
	keyAdminUser     = "session:admin_user"
	keyCustomerName  = "session:customer_name"
	keyCart          = "cart"
	keyCurrentCart   = "current_cart"
	keyCartTotal     = "cart_total"
	keyPaymentMethod = "payment_method"
)

var allKeys = []string{
	keyProducts, keyOrders,
	keyAdminAuth, keyAdminUser, keyCustomerName,
	keyCart, keyCurrentCart, keyCartTotal, keyPaymentMethod,
}

const defaultUpdateAttempts = 3

type Store struct {
	kv       repository.KV
	ns       string
	attempts int
}

func New(kv repository.KV, namespace string) *Store {
	return &Store{kv: kv, ns: namespace, attempts: defaultUpdateAttempts}
}

func (s *Store) key(k string) string {
	return s.ns + ":" + k
}

func (s *Store) keys() []string {
	out := make([]string, len(allKeys))
	for i, k := range allKeys {
		out[i] = s.key(k)
	}
	return out
}

func (s *Store) getJSON(ctx context.Context, key string, dest interface{}) (bool, error) {
	data, err := s.kv.Get(ctx, s.key(key))
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

func (s *Store) setJSON(ctx context.Context, key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := s.kv.Set(ctx, s.key(key), data); err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}

func (s *Store) getString(ctx context.Context, key string) (string, error) {
	data, err := s.kv.Get(ctx, s.key(key))
	if errors.Is(err, repository.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read %s: %w", key, err)
	}
	return string(data), nil
}

func (s *Store) Products(ctx context.Context) ([]models.Product, error) {
	var products []models.Product
	if _, err := s.getJSON(ctx, keyProducts, &products); err != nil {
		return nil, err
	}
	return products, nil
}

func (s *Store) SaveProducts(ctx context.Context, products []models.Product) error {
	return s.setJSON(ctx, keyProducts, nonNil(products))
}

func (s *Store) Orders(ctx context.Context) ([]models.Order, error) {
	var orders []models.Order
	if _, err := s.getJSON(ctx, keyOrders, &orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// AppendOrder adds o to the ledger. Orders are never edited once written.
func (s *Store) AppendOrder(ctx context.Context, o models.Order) error {
	return s.Update(ctx, func(tx *Tx) error {
		return tx.AppendOrder(o)
	})
}

func (s *Store) Session(ctx context.Context) (models.Session, error) {
	var sess models.Session
	auth, err := s.getString(ctx, keyAdminAuth)
	if err != nil {
		return sess, err
	}
	if sess.AdminUser, err = s.getString(ctx, keyAdminUser); err != nil {
		return sess, err
	}
	if sess.CustomerName, err = s.getString(ctx, keyCustomerName); err != nil {
		return sess, err
	}
	sess.AdminAuth = auth == "true"
	return sess, nil
}

func (s *Store) SetAdmin(ctx context.Context, user string) error {
	if err := s.kv.Set(ctx, s.key(keyAdminAuth), []byte("true")); err != nil {
		return fmt.Errorf("write %s: %w", keyAdminAuth, err)
	}
	if err := s.kv.Set(ctx, s.key(keyAdminUser), []byte(user)); err != nil {
		return fmt.Errorf("write %s: %w", keyAdminUser, err)
	}
	return nil
}

func (s *Store) ClearAdmin(ctx context.Context) error {
	return s.kv.Del(ctx, s.key(keyAdminAuth), s.key(keyAdminUser))
}

// SetCustomer overwrites the shopper's display name. Nothing clears it.
func (s *Store) SetCustomer(ctx context.Context, name string) error {
	if err := s.kv.Set(ctx, s.key(keyCustomerName), []byte(name)); err != nil {
		return fmt.Errorf("write %s: %w", keyCustomerName, err)
	}
	return nil
}

func (s *Store) CartLines(ctx context.Context) ([]models.CartLine, error) {
	var lines []models.CartLine
	if _, err := s.getJSON(ctx, keyCart, &lines); err != nil {
		return nil, err
	}
	return lines, nil
}

func (s *Store) SaveCartLines(ctx context.Context, lines []models.CartLine) error {
	if len(lines) == 0 {
		return s.kv.Del(ctx, s.key(keyCart))
	}
	return s.setJSON(ctx, keyCart, lines)
}

// Pending returns the cart handed to checkout, or nil when there is none.
func (s *Store) Pending(ctx context.Context) (*models.PendingCheckout, error) {
	var p *models.PendingCheckout
	err := s.Update(ctx, func(tx *Tx) error {
		var err error
		p, err = tx.Pending()
		return err
	})
	return p, err
}

// SavePending hands items and totals to checkout and drops the draft cart.
// Any previously chosen payment method is discarded.
func (s *Store) SavePending(ctx context.Context, items []models.CartItem, totals models.Totals) error {
	return s.Update(ctx, func(tx *Tx) error {
		if err := tx.set(keyCurrentCart, items); err != nil {
			return err
		}
		if err := tx.set(keyCartTotal, totals); err != nil {
			return err
		}
		tx.tx.Del(s.key(keyPaymentMethod))
		tx.tx.Del(s.key(keyCart))
		return nil
	})
}

func (s *Store) SetPaymentMethod(ctx context.Context, m models.PaymentMethod) error {
	if err := s.kv.Set(ctx, s.key(keyPaymentMethod), []byte(m)); err != nil {
		return fmt.Errorf("write %s: %w", keyPaymentMethod, err)
	}
	return nil
}

func (s *Store) ClearPending(ctx context.Context) error {
	return s.kv.Del(ctx, s.key(keyCurrentCart), s.key(keyCartTotal), s.key(keyPaymentMethod))
}

// Reset clears the catalog and the order ledger. Session data survives.
func (s *Store) Reset(ctx context.Context) error {
	return s.kv.Del(ctx, s.key(keyProducts), s.key(keyOrders))
}

// Update runs fn in a transaction over every state key and commits its
// writes together. A commit that loses a race with another writer is
// retried from the start; fn must therefore be free of side effects
// outside the Tx.
func (s *Store) Update(ctx context.Context, fn func(*Tx) error) error {
	var err error
	for attempt := 0; attempt < s.attempts; attempt++ {
		err = s.kv.Txn(ctx, s.keys(), func(txn repository.Txn) error {
			return fn(&Tx{tx: txn, s: s})
		})
		if !errors.Is(err, repository.ErrConflict) {
			return err
		}
	}
	return err
}

func nonNil[T any](v []T) []T {
	if v == nil {
		return []T{}
	}
	return v
}
