// Package catalog manages the product records sold by the store.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/example/neomart/pkg/apperr"
	"github.com/example/neomart/pkg/audit"
	"github.com/example/neomart/pkg/models"
	"github.com/example/neomart/pkg/state"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ProductInput is a new product as submitted by the admin. Pointer fields
// distinguish "not provided" from zero.
type ProductInput struct {
	ID               string           `json:"id" validate:"required"`
	Name             string           `json:"name" validate:"required"`
	BuyPrice         *decimal.Decimal `json:"buyPrice" validate:"required"`
	SellPrice        *decimal.Decimal `json:"sellPrice" validate:"required"`
	Weight           string           `json:"weight" validate:"required"`
	Quantity         *int             `json:"quantity" validate:"required,gte=0"`
	LowQuantityAlert *int             `json:"lowQuantityAlert" validate:"required,gte=0"`
}

// EditInput changes an existing product. Nil fields keep their current value.
type EditInput struct {
	Name             *string          `json:"name"`
	BuyPrice         *decimal.Decimal `json:"buyPrice"`
	SellPrice        *decimal.Decimal `json:"sellPrice"`
	Weight           *string          `json:"weight"`
	Quantity         *int             `json:"quantity" validate:"omitempty,gte=0"`
	LowQuantityAlert *int             `json:"lowQuantityAlert" validate:"omitempty,gte=0"`
}

type Store interface {
	Products(ctx context.Context) ([]models.Product, error)
	Update(ctx context.Context, fn func(*state.Tx) error) error
}

type Service struct {
	store    Store
	audit    audit.Recorder
	logger   *zap.Logger
	validate *validator.Validate
	now      func() time.Time
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(store Store, rec audit.Recorder, logger *zap.Logger, opts ...Option) *Service {
	s := &Service{
		store:    store,
		audit:    rec,
		logger:   logger,
		validate: newValidator(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	return v
}

func (s *Service) check(in interface{}) error {
	err := s.validate.Struct(in)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			fields = append(fields, fe.Field())
		}
		return &apperr.ValidationError{Fields: fields}
	}
	return err
}

func checkPrices(buy, sell decimal.Decimal) error {
	if buy.IsNegative() {
		return &apperr.ValidationError{Fields: []string{"buyPrice"}}
	}
	if sell.LessThanOrEqual(buy) {
		return &apperr.PriceError{BuyPrice: buy, SellPrice: sell}
	}
	return nil
}

// Create validates in and appends it to the catalog. Missing fields are
// reported first, then an ID collision, then the price rule.
func (s *Service) Create(ctx context.Context, in ProductInput) (models.Product, error) {
	if err := s.check(in); err != nil {
		return models.Product{}, err
	}

	p := models.Product{
		ID:               in.ID,
		Name:             in.Name,
		BuyPrice:         *in.BuyPrice,
		SellPrice:        *in.SellPrice,
		Weight:           in.Weight,
		Quantity:         *in.Quantity,
		LowQuantityAlert: *in.LowQuantityAlert,
		DateAdded:        s.now(),
	}
	p.RefreshProfit()

	err := s.store.Update(ctx, func(tx *state.Tx) error {
		products, err := tx.Products()
		if err != nil {
			return err
		}
		for _, existing := range products {
			if existing.ID == p.ID {
				return &apperr.DuplicateIDError{ID: p.ID}
			}
		}
		if err := checkPrices(p.BuyPrice, p.SellPrice); err != nil {
			return err
		}
		return tx.SetProducts(append(products, p))
	})
	if err != nil {
		return models.Product{}, err
	}

	s.logger.Info("Product created", zap.String("product_id", p.ID), zap.String("name", p.Name))
	s.audit.Record(audit.ActionProductCreated, p.ID, audit.ActorFrom(ctx), map[string]interface{}{
		"name":       p.Name,
		"buy_price":  p.BuyPrice.String(),
		"sell_price": p.SellPrice.String(),
		"quantity":   p.Quantity,
	})
	return p, nil
}

// Edit replaces the fields of product id in place and recomputes its
// derived profit fields. The ID and DateAdded never change.
func (s *Service) Edit(ctx context.Context, id string, in EditInput) (models.Product, error) {
	if err := s.check(in); err != nil {
		return models.Product{}, err
	}

	var updated models.Product
	err := s.store.Update(ctx, func(tx *state.Tx) error {
		products, err := tx.Products()
		if err != nil {
			return err
		}
		idx := indexOf(products, id)
		if idx < 0 {
			return fmt.Errorf("product %q: %w", id, apperr.ErrNotFound)
		}

		p := products[idx]
		if in.Name != nil {
			p.Name = *in.Name
		}
		if in.BuyPrice != nil {
			p.BuyPrice = *in.BuyPrice
		}
		if in.SellPrice != nil {
			p.SellPrice = *in.SellPrice
		}
		if in.Weight != nil {
			p.Weight = *in.Weight
		}
		if in.Quantity != nil {
			p.Quantity = *in.Quantity
		}
		if in.LowQuantityAlert != nil {
			p.LowQuantityAlert = *in.LowQuantityAlert
		}
		if err := checkPrices(p.BuyPrice, p.SellPrice); err != nil {
			return err
		}
		p.RefreshProfit()

		products[idx] = p
		updated = p
		return tx.SetProducts(products)
	})
	if err != nil {
		return models.Product{}, err
	}

	s.logger.Info("Product updated", zap.String("product_id", id))
	s.audit.Record(audit.ActionProductUpdated, id, audit.ActorFrom(ctx), map[string]interface{}{
		"quantity":   updated.Quantity,
		"sell_price": updated.SellPrice.String(),
	})
	return updated, nil
}

// Remove deletes product id. Removing an unknown ID is not an error.
func (s *Service) Remove(ctx context.Context, id string) error {
	var removed bool
	err := s.store.Update(ctx, func(tx *state.Tx) error {
		removed = false
		products, err := tx.Products()
		if err != nil {
			return err
		}
		kept := products[:0]
		for _, p := range products {
			if p.ID == id {
				removed = true
				continue
			}
			kept = append(kept, p)
		}
		return tx.SetProducts(kept)
	})
	if err != nil {
		return err
	}

	if removed {
		s.logger.Info("Product removed", zap.String("product_id", id))
		s.audit.Record(audit.ActionProductRemoved, id, audit.ActorFrom(ctx), nil)
	}
	return nil
}

func (s *Service) Get(ctx context.Context, id string) (models.Product, error) {
	products, err := s.store.Products(ctx)
	if err != nil {
		return models.Product{}, err
	}
	if idx := indexOf(products, id); idx >= 0 {
		return products[idx], nil
	}
	return models.Product{}, fmt.Errorf("product %q: %w", id, apperr.ErrNotFound)
}

func (s *Service) List(ctx context.Context) ([]models.Product, error) {
	return s.store.Products(ctx)
}

// Search returns products whose name or ID contains term, ignoring case.
func (s *Service) Search(ctx context.Context, term string) ([]models.Product, error) {
	products, err := s.store.Products(ctx)
	if err != nil {
		return nil, err
	}
	return Filter(products, term), nil
}

// LowStock returns products at or below their restock threshold. Out of
// stock products are included; see Product.OutOfStock.
func (s *Service) LowStock(ctx context.Context) ([]models.Product, error) {
	products, err := s.store.Products(ctx)
	if err != nil {
		return nil, err
	}
	var low []models.Product
	for _, p := range products {
		if p.LowStock() {
			low = append(low, p)
		}
	}
	return low, nil
}

// Listings exposes the catalog in the shape shared with the hosted table.
func (s *Service) Listings(ctx context.Context) ([]models.Listing, error) {
	products, err := s.store.Products(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]models.Listing, 0, len(products))
	for _, p := range products {
		out = append(out, models.Listing{ID: p.ID, Name: p.Name, Price: p.SellPrice, Source: "catalog"})
	}
	return out, nil
}

// Filter is the case-insensitive name-or-ID substring match used by every
// product search box. An empty term matches everything.
func Filter(products []models.Product, term string) []models.Product {
	needle := strings.ToLower(term)
	var out []models.Product
	for _, p := range products {
		if strings.Contains(strings.ToLower(p.Name), needle) || strings.Contains(strings.ToLower(p.ID), needle) {
			out = append(out, p)
		}
	}
	return out
}

func indexOf(products []models.Product, id string) int {
	for i, p := range products {
		if p.ID == id {
			return i
		}
	}
	return -1
}
