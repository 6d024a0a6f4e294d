package gateway

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/example/neomart/pkg/audit"
	"github.com/example/neomart/pkg/catalog"
	"github.com/example/neomart/pkg/checkout"
	"github.com/example/neomart/pkg/config"
	"github.com/example/neomart/pkg/remote"
	"github.com/example/neomart/pkg/repository"
	"github.com/example/neomart/pkg/sales"
	"github.com/example/neomart/pkg/session"
	"github.com/example/neomart/pkg/shop"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
)

// Services are the application services behind the HTTP routes.
type Services struct {
	Catalog  *catalog.Service
	Shop     *shop.Service
	Checkout *checkout.Service
	Sales    *sales.Service
	Session  *session.Service
	// Featured backs the public featured-products view.
	Featured remote.Lister
	// History is optional; without it the audit view is empty.
	History AuditHistory
}

type AuditHistory interface {
	Recent(ctx context.Context, entityID string, limit int64) ([]*repository.AuditLog, error)
}

type Gateway struct {
	config   *config.GatewayConfig
	services Services
	logger   *zap.Logger
	router   *gin.Engine
	server   *http.Server
}

func NewGateway(cfg *config.GatewayConfig, services Services, logger *zap.Logger) *Gateway {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(loggerMiddleware(logger))
	if len(cfg.AllowedOrigins) > 0 {
		router.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.AllowedOrigins,
			AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	g := &Gateway{
		config:   cfg,
		services: services,
		logger:   logger,
		router:   router,
	}
	g.setupRoutes()
	return g
}

func (g *Gateway) setupRoutes() {
	g.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := g.router.Group("/api/v1")
	{
		v1.POST("/admin/login", g.login)
		v1.POST("/admin/logout", g.logout)

		admin := v1.Group("/admin", g.requireAdmin)
		{
			admin.GET("/products", g.listProducts)
			admin.POST("/products", g.createProduct)
			admin.GET("/products/low-stock", g.lowStock)
			admin.GET("/products/:id", g.getProduct)
			admin.PUT("/products/:id", g.editProduct)
			admin.DELETE("/products/:id", g.removeProduct)
			admin.GET("/dashboard", g.dashboard)
			admin.POST("/reset", g.reset)
			admin.GET("/audit", g.auditHistory)
		}

		v1.POST("/shop/enter", g.enterShop)
		v1.GET("/shop/featured", g.featured)

		storefront := v1.Group("/shop", g.requireCustomer)
		{
			storefront.GET("/products", g.shopProducts)
			storefront.GET("/cart", g.cart)
			storefront.POST("/cart/items", g.addToCart)
			storefront.PUT("/cart/items/:id", g.setQuantity)
			storefront.DELETE("/cart/items/:id", g.removeFromCart)
			storefront.POST("/checkout", g.proceedToPayment)
			storefront.GET("/checkout", g.checkoutView)
			storefront.POST("/checkout/method", g.selectMethod)
			storefront.POST("/checkout/confirm", g.confirm)
		}
	}

	g.router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
}

func (g *Gateway) Handler() http.Handler {
	return g.router
}

func (g *Gateway) Start() error {
	addr := g.config.Addr()
	g.server = &http.Server{Addr: addr, Handler: g.router}
	g.logger.Info("Gateway starting", zap.String("address", addr))
	if err := g.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (g *Gateway) Shutdown(ctx context.Context) error {
	if g.server == nil {
		return nil
	}
	return g.server.Shutdown(ctx)
}

// requireAdmin lets the request through only with an admin session and
// tags its context with the admin's name for the audit trail.
func (g *Gateway) requireAdmin(c *gin.Context) {
	sess, err := g.services.Session.RequireAdmin(c.Request.Context())
	if err != nil {
		g.writeError(c, err)
		c.Abort()
		return
	}
	c.Request = c.Request.WithContext(audit.WithActor(c.Request.Context(), sess.AdminUser))
	c.Next()
}

func (g *Gateway) requireCustomer(c *gin.Context) {
	name, err := g.services.Session.RequireCustomer(c.Request.Context())
	if err != nil {
		g.writeError(c, err)
		c.Abort()
		return
	}
	c.Request = c.Request.WithContext(audit.WithActor(c.Request.Context(), name))
	c.Next()
}

func loggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		logger.Info("HTTP request",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("query", query),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}
