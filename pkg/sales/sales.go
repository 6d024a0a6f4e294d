// Package sales aggregates the order ledger for the admin dashboard.
package sales

import (
	"context"
	"sort"
	"time"

	"github.com/example/neomart/pkg/audit"
	"github.com/example/neomart/pkg/models"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// RecentLimit is how many orders the dashboard lists.
const RecentLimit = 10

// ProfitMargin is the flat margin assumed for dashboard profit.
var ProfitMargin = decimal.New(3, -1)

type Period struct {
	Revenue decimal.Decimal `json:"revenue"`
	// Profit is Revenue at the flat ProfitMargin.
	Profit decimal.Decimal `json:"profit"`
	// RealizedProfit is the sum of (sell - buy) x quantity over the
	// order lines as they were at purchase time.
	RealizedProfit decimal.Decimal `json:"realizedProfit"`
	Orders         int             `json:"orders"`
}

func (p *Period) add(o models.Order) {
	p.Revenue = p.Revenue.Add(o.Total)
	p.Orders++
	for _, item := range o.Items {
		margin := item.SellPrice.Sub(item.BuyPrice)
		p.RealizedProfit = p.RealizedProfit.Add(margin.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
}

type Summary struct {
	Today Period `json:"today"`
	Month Period `json:"month"`
}

// Summarize splits orders into today and the current month, both judged in
// now's location.
func Summarize(orders []models.Order, now time.Time) Summary {
	var s Summary
	y, m, d := now.Date()
	for _, o := range orders {
		oy, om, od := o.PlacedAt().In(now.Location()).Date()
		if oy != y || om != m {
			continue
		}
		s.Month.add(o)
		if od == d {
			s.Today.add(o)
		}
	}
	s.Today.Profit = s.Today.Revenue.Mul(ProfitMargin)
	s.Month.Profit = s.Month.Revenue.Mul(ProfitMargin)
	return s
}

// Recent returns up to limit orders, newest first.
func Recent(orders []models.Order, limit int) []models.Order {
	sorted := make([]models.Order, len(orders))
	copy(sorted, orders)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].PlacedAt().After(sorted[j].PlacedAt())
	})
	if limit >= 0 && len(sorted) > limit {
		sorted = sorted[:limit]
	}
	return sorted
}

type Store interface {
	Orders(ctx context.Context) ([]models.Order, error)
	Reset(ctx context.Context) error
}

type Dashboard struct {
	Summary
	Recent      []models.Order `json:"recentOrders"`
	TotalOrders int            `json:"totalOrders"`
}

type Service struct {
	store  Store
	audit  audit.Recorder
	logger *zap.Logger
	now    func() time.Time
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(store Store, rec audit.Recorder, logger *zap.Logger, opts ...Option) *Service {
	s := &Service{store: store, audit: rec, logger: logger, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) Summary(ctx context.Context) (Summary, error) {
	orders, err := s.store.Orders(ctx)
	if err != nil {
		return Summary{}, err
	}
	return Summarize(orders, s.now()), nil
}

func (s *Service) Dashboard(ctx context.Context) (Dashboard, error) {
	orders, err := s.store.Orders(ctx)
	if err != nil {
		return Dashboard{}, err
	}
	return Dashboard{
		Summary:     Summarize(orders, s.now()),
		Recent:      Recent(orders, RecentLimit),
		TotalOrders: len(orders),
	}, nil
}

// ResetAll deletes every product and order. Sessions are kept.
func (s *Service) ResetAll(ctx context.Context) error {
	if err := s.store.Reset(ctx); err != nil {
		return err
	}
	s.logger.Warn("All products and orders deleted")
	s.audit.Record(audit.ActionDataReset, "", audit.ActorFrom(ctx), nil)
	return nil
}
