// Package shop is the storefront side of the store: browsing the in-stock
// catalog, keeping the shopper's draft cart and handing it to checkout.
package shop

import (
	"context"

	"github.com/example/neomart/pkg/cart"
	"github.com/example/neomart/pkg/catalog"
	"github.com/example/neomart/pkg/models"
	"go.uber.org/zap"
)

type Store interface {
	Products(ctx context.Context) ([]models.Product, error)
	CartLines(ctx context.Context) ([]models.CartLine, error)
	SaveCartLines(ctx context.Context, lines []models.CartLine) error
	SavePending(ctx context.Context, items []models.CartItem, totals models.Totals) error
}

// Guard is the customer side of the session service.
type Guard interface {
	EnterShop(ctx context.Context, name string) (string, error)
	RequireCustomer(ctx context.Context) (string, error)
}

// View is the cart page: lines, item count and money totals.
type View struct {
	Customer   string            `json:"customerName"`
	Items      []models.CartItem `json:"items"`
	TotalItems int               `json:"totalItems"`
	Totals     models.Totals     `json:"totals"`
}

type Service struct {
	store  Store
	guard  Guard
	logger *zap.Logger
}

func NewService(store Store, guard Guard, logger *zap.Logger) *Service {
	return &Service{store: store, guard: guard, logger: logger}
}

// Enter records the shopper's name for the rest of the visit.
func (s *Service) Enter(ctx context.Context, name string) (string, error) {
	name, err := s.guard.EnterShop(ctx, name)
	if err != nil {
		return "", err
	}
	s.logger.Info("Customer entered shop", zap.String("customer", name))
	return name, nil
}

// Catalog lists in-stock products matching term.
func (s *Service) Catalog(ctx context.Context, term string) ([]models.Product, error) {
	if _, err := s.guard.RequireCustomer(ctx); err != nil {
		return nil, err
	}
	products, err := s.store.Products(ctx)
	if err != nil {
		return nil, err
	}
	return catalog.Filter(cart.New(products).Available(), term), nil
}

func (s *Service) load(ctx context.Context) (string, *cart.Cart, error) {
	customer, err := s.guard.RequireCustomer(ctx)
	if err != nil {
		return "", nil, err
	}
	products, err := s.store.Products(ctx)
	if err != nil {
		return "", nil, err
	}
	lines, err := s.store.CartLines(ctx)
	if err != nil {
		return "", nil, err
	}
	return customer, cart.Restore(products, lines), nil
}

func (s *Service) mutate(ctx context.Context, fn func(*cart.Cart) error) (View, error) {
	customer, c, err := s.load(ctx)
	if err != nil {
		return View{}, err
	}
	if err := fn(c); err != nil {
		return View{}, err
	}
	if err := s.store.SaveCartLines(ctx, c.Lines()); err != nil {
		return View{}, err
	}
	return view(customer, c), nil
}

func view(customer string, c *cart.Cart) View {
	return View{
		Customer:   customer,
		Items:      c.Items(),
		TotalItems: c.TotalItems(),
		Totals:     c.Totals(),
	}
}

func (s *Service) Cart(ctx context.Context) (View, error) {
	customer, c, err := s.load(ctx)
	if err != nil {
		return View{}, err
	}
	return view(customer, c), nil
}

func (s *Service) AddToCart(ctx context.Context, productID string) (View, error) {
	return s.mutate(ctx, func(c *cart.Cart) error {
		return c.Add(productID)
	})
}

func (s *Service) SetQuantity(ctx context.Context, productID string, n int) (View, error) {
	return s.mutate(ctx, func(c *cart.Cart) error {
		c.SetQuantity(productID, n)
		return nil
	})
}

func (s *Service) RemoveFromCart(ctx context.Context, productID string) (View, error) {
	return s.mutate(ctx, func(c *cart.Cart) error {
		c.Remove(productID)
		return nil
	})
}

// ProceedToPayment freezes the cart and its totals for checkout.
func (s *Service) ProceedToPayment(ctx context.Context) (*models.PendingCheckout, error) {
	customer, c, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	if c.Empty() {
		return nil, cart.ErrEmptyCart
	}

	p := &models.PendingCheckout{Items: c.Items(), Totals: c.Totals()}
	if err := s.store.SavePending(ctx, p.Items, p.Totals); err != nil {
		return nil, err
	}
	s.logger.Info("Cart handed to payment",
		zap.String("customer", customer),
		zap.Int("items", c.TotalItems()),
		zap.String("total", p.Totals.Total.StringFixed(2)))
	return p, nil
}
