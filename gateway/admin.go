package gateway

import (
	"net/http"
	"strconv"

	"github.com/example/neomart/pkg/catalog"
	"github.com/example/neomart/pkg/models"
	"github.com/example/neomart/pkg/repository"
	"github.com/gin-gonic/gin"
)

type loginRequest struct {
	LoginID  string `json:"loginId"`
	Password string `json:"password"`
}

func (g *Gateway) login(c *gin.Context) {
	var req loginRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := g.services.Session.Login(c.Request.Context(), req.LoginID, req.Password); err != nil {
		g.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"adminUser": req.LoginID})
}

func (g *Gateway) logout(c *gin.Context) {
	if err := g.services.Session.Logout(c.Request.Context()); err != nil {
		g.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func productList(products []models.Product) gin.H {
	if products == nil {
		products = []models.Product{}
	}
	return gin.H{"products": products, "total": len(products)}
}

func (g *Gateway) listProducts(c *gin.Context) {
	products, err := g.services.Catalog.Search(c.Request.Context(), c.Query("search"))
	if err != nil {
		g.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, productList(products))
}

func (g *Gateway) lowStock(c *gin.Context) {
	products, err := g.services.Catalog.LowStock(c.Request.Context())
	if err != nil {
		g.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, productList(products))
}

func (g *Gateway) getProduct(c *gin.Context) {
	p, err := g.services.Catalog.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		g.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (g *Gateway) createProduct(c *gin.Context) {
	var in catalog.ProductInput
	if !bindJSON(c, &in) {
		return
	}
	p, err := g.services.Catalog.Create(c.Request.Context(), in)
	if err != nil {
		g.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

func (g *Gateway) editProduct(c *gin.Context) {
	var in catalog.EditInput
	if !bindJSON(c, &in) {
		return
	}
	p, err := g.services.Catalog.Edit(c.Request.Context(), c.Param("id"), in)
	if err != nil {
		g.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (g *Gateway) removeProduct(c *gin.Context) {
	if err := g.services.Catalog.Remove(c.Request.Context(), c.Param("id")); err != nil {
		g.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (g *Gateway) dashboard(c *gin.Context) {
	d, err := g.services.Sales.Dashboard(c.Request.Context())
	if err != nil {
		g.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

func (g *Gateway) reset(c *gin.Context) {
	if err := g.services.Sales.ResetAll(c.Request.Context()); err != nil {
		g.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

const defaultAuditLimit = 50

func (g *Gateway) auditHistory(c *gin.Context) {
	limit := int64(defaultAuditLimit)
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = n
	}

	entries := []*repository.AuditLog{}
	if g.services.History != nil {
		got, err := g.services.History.Recent(c.Request.Context(), c.Query("entity"), limit)
		if err != nil {
			g.writeError(c, err)
			return
		}
		if got != nil {
			entries = got
		}
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}
