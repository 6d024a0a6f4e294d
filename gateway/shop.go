package gateway

import (
	"net/http"

	"github.com/example/neomart/pkg/apperr"
	"github.com/example/neomart/pkg/checkout"
	"github.com/example/neomart/pkg/models"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type enterRequest struct {
	Name string `json:"name"`
}

func (g *Gateway) enterShop(c *gin.Context) {
	var req enterRequest
	if !bindJSON(c, &req) {
		return
	}
	name, err := g.services.Shop.Enter(c.Request.Context(), req.Name)
	if err != nil {
		g.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"customerName": name})
}

// featured never fails the page; an unreachable source shows no products.
func (g *Gateway) featured(c *gin.Context) {
	listings := []models.Listing{}
	if g.services.Featured != nil {
		got, err := g.services.Featured.Listings(c.Request.Context())
		if err != nil {
			g.logger.Warn("Failed to load featured products", zap.Error(err))
		} else if got != nil {
			listings = got
		}
	}
	c.JSON(http.StatusOK, gin.H{"products": listings})
}

func (g *Gateway) shopProducts(c *gin.Context) {
	products, err := g.services.Shop.Catalog(c.Request.Context(), c.Query("search"))
	if err != nil {
		g.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, productList(products))
}

func (g *Gateway) cart(c *gin.Context) {
	v, err := g.services.Shop.Cart(c.Request.Context())
	if err != nil {
		g.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

type addItemRequest struct {
	ProductID string `json:"productId"`
}

func (g *Gateway) addToCart(c *gin.Context) {
	var req addItemRequest
	if !bindJSON(c, &req) {
		return
	}
	if req.ProductID == "" {
		g.writeError(c, &apperr.ValidationError{Fields: []string{"productId"}})
		return
	}
	v, err := g.services.Shop.AddToCart(c.Request.Context(), req.ProductID)
	if err != nil {
		g.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

type quantityRequest struct {
	Quantity *int `json:"quantity"`
}

func (g *Gateway) setQuantity(c *gin.Context) {
	var req quantityRequest
	if !bindJSON(c, &req) {
		return
	}
	if req.Quantity == nil || *req.Quantity < 0 {
		g.writeError(c, &apperr.ValidationError{Fields: []string{"quantity"}})
		return
	}
	v, err := g.services.Shop.SetQuantity(c.Request.Context(), c.Param("id"), *req.Quantity)
	if err != nil {
		g.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

func (g *Gateway) removeFromCart(c *gin.Context) {
	v, err := g.services.Shop.RemoveFromCart(c.Request.Context(), c.Param("id"))
	if err != nil {
		g.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

func (g *Gateway) proceedToPayment(c *gin.Context) {
	p, err := g.services.Shop.ProceedToPayment(c.Request.Context())
	if err != nil {
		g.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, checkout.View{Stage: checkout.Browsing, Pending: p})
}

func (g *Gateway) checkoutView(c *gin.Context) {
	v, err := g.services.Checkout.View(c.Request.Context())
	if err != nil {
		g.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

type methodRequest struct {
	Method string `json:"method"`
}

func (g *Gateway) selectMethod(c *gin.Context) {
	var req methodRequest
	if !bindJSON(c, &req) {
		return
	}
	p, err := g.services.Checkout.SelectMethod(c.Request.Context(), req.Method)
	if err != nil {
		g.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, checkout.View{Stage: checkout.MethodSelected, Pending: p})
}

func (g *Gateway) confirm(c *gin.Context) {
	order, err := g.services.Checkout.Confirm(c.Request.Context())
	if err != nil {
		g.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"stage": checkout.Confirmed, "order": order})
}
