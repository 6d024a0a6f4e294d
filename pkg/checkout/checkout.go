// Package checkout takes a pending cart through payment and turns it into
// an order.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/example/neomart/pkg/apperr"
	"github.com/example/neomart/pkg/audit"
	"github.com/example/neomart/pkg/config"
	"github.com/example/neomart/pkg/models"
	"github.com/example/neomart/pkg/state"
	"go.uber.org/zap"
)

var (
	ErrNoPendingCheckout = errors.New("no cart is waiting for payment")
	ErrMethodNotSelected = errors.New("select a payment method first")
)

type Stage int

const (
	Browsing Stage = iota
	MethodSelected
	Processing
	Confirmed
)

func (s Stage) String() string {
	switch s {
	case Browsing:
		return "browsing"
	case MethodSelected:
		return "method_selected"
	case Processing:
		return "processing"
	case Confirmed:
		return "confirmed"
	}
	return fmt.Sprintf("stage(%d)", int(s))
}

func (s Stage) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

type Store interface {
	Session(ctx context.Context) (models.Session, error)
	Pending(ctx context.Context) (*models.PendingCheckout, error)
	SetPaymentMethod(ctx context.Context, m models.PaymentMethod) error
	Update(ctx context.Context, fn func(*state.Tx) error) error
}

// View is what the payment page shows.
type View struct {
	Stage   Stage                   `json:"stage"`
	Pending *models.PendingCheckout `json:"pending,omitempty"`
}

type Service struct {
	store      Store
	audit      audit.Recorder
	logger     *zap.Logger
	delays     config.CheckoutConfig
	now        func() time.Time
	processing atomic.Int32
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(store Store, delays config.CheckoutConfig, rec audit.Recorder, logger *zap.Logger, opts ...Option) *Service {
	s := &Service{
		store:  store,
		audit:  rec,
		logger: logger,
		delays: delays,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) delay(m models.PaymentMethod) time.Duration {
	switch m {
	case models.PaymentUPI:
		return s.delays.UPIDelay
	case models.PaymentCard:
		return s.delays.CardDelay
	}
	return s.delays.CashDelay
}

// Stage reports where the pending checkout is. Browsing means nothing has
// been handed to payment yet, or no method has been chosen.
func (s *Service) Stage(ctx context.Context) (Stage, error) {
	v, err := s.View(ctx)
	return v.Stage, err
}

// View returns the pending checkout and its stage. Processing is reported
// while a Confirm is running in this process. Confirmed is never stored:
// the checkout is cleared once the order is placed, so that stage is only
// carried in the Confirm response.
func (s *Service) View(ctx context.Context) (View, error) {
	p, err := s.store.Pending(ctx)
	if err != nil {
		return View{}, err
	}
	v := View{Stage: Browsing, Pending: p}
	switch {
	case s.processing.Load() > 0:
		v.Stage = Processing
	case p != nil && p.Method != "":
		v.Stage = MethodSelected
	}
	return v, nil
}

func (s *Service) SelectMethod(ctx context.Context, method string) (*models.PendingCheckout, error) {
	m, err := models.ParsePaymentMethod(method)
	if err != nil {
		return nil, &apperr.ValidationError{Fields: []string{"method"}}
	}
	p, err := s.store.Pending(ctx)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, ErrNoPendingCheckout
	}
	if err := s.store.SetPaymentMethod(ctx, m); err != nil {
		return nil, err
	}
	p.Method = m
	return p, nil
}

// Confirm runs the simulated payment for the selected method and places
// the order. Cancelling ctx during the wait leaves state untouched.
func (s *Service) Confirm(ctx context.Context) (models.Order, error) {
	p, err := s.store.Pending(ctx)
	if err != nil {
		return models.Order{}, err
	}
	if p == nil {
		return models.Order{}, ErrNoPendingCheckout
	}
	if p.Method == "" {
		return models.Order{}, ErrMethodNotSelected
	}

	s.processing.Add(1)
	defer s.processing.Add(-1)

	if d := s.delay(p.Method); d > 0 {
		s.logger.Debug("Processing payment",
			zap.String("method", string(p.Method)),
			zap.Duration("delay", d))
		timer := time.NewTimer(d)
		select {
		case <-ctx.Done():
			timer.Stop()
			return models.Order{}, ctx.Err()
		case <-timer.C:
		}
	}

	return s.Finalize(ctx, p, p.Method)
}

// Finalize places the order for pending in a single state update: the
// order is appended, stock is decremented (never below zero) and the
// checkout hand-off is cleared. Stored profit fields keep the values from
// the last admin save. Finalizing the same snapshot twice places
// two orders.
func (s *Service) Finalize(ctx context.Context, pending *models.PendingCheckout, method models.PaymentMethod) (models.Order, error) {
	if pending == nil || len(pending.Items) == 0 {
		return models.Order{}, ErrNoPendingCheckout
	}
	sess, err := s.store.Session(ctx)
	if err != nil {
		return models.Order{}, err
	}

	now := s.now()
	order := models.Order{
		ID:            models.OrderNumber(now),
		CustomerName:  sess.CustomerName,
		Items:         make([]models.OrderItem, 0, len(pending.Items)),
		Total:         pending.Totals.Total,
		PaymentMethod: method,
		Date:          now,
		Timestamp:     now.UnixMilli(),
	}
	for _, item := range pending.Items {
		order.Items = append(order.Items, item.Snapshot())
	}

	err = s.store.Update(ctx, func(tx *state.Tx) error {
		products, err := tx.Products()
		if err != nil {
			return err
		}
		for _, item := range order.Items {
			for i := range products {
				if products[i].ID != item.ProductID {
					continue
				}
				products[i].Quantity = max(products[i].Quantity-item.Quantity, 0)
				break
			}
		}
		if err := tx.SetProducts(products); err != nil {
			return err
		}
		if err := tx.AppendOrder(order); err != nil {
			return err
		}
		tx.ClearPending()
		return nil
	})
	if err != nil {
		return models.Order{}, fmt.Errorf("place order: %w", err)
	}

	s.logger.Info("Order placed",
		zap.String("order_id", order.ID),
		zap.String("customer", order.CustomerName),
		zap.String("method", string(method)),
		zap.String("total", order.Total.StringFixed(2)))
	s.audit.Record(audit.ActionOrderPlaced, order.ID, audit.ActorFrom(ctx), map[string]interface{}{
		"customer":      order.CustomerName,
		"paymentMethod": string(method),
		"total":         order.Total.StringFixed(2),
		"items":         len(order.Items),
	})
	return order, nil
}
