package controllers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yashrajoria/giftshop-backend/common/middleware"
	"github.com/yashrajoria/giftshop-backend/models"
)

// ProductCatalog is the part of the product service the HTTP layer needs.
type ProductCatalog interface {
	Get(ctx context.Context, id string, includeInactive bool) (*models.Product, error)
	Create(ctx context.Context, req *models.ProductRequest) (*models.Product, error)
	Update(ctx context.Context, id string, req *models.ProductRequest) (*models.Product, error)
}

type ProductController struct {
	products ProductCatalog
}

func NewProductController(products ProductCatalog) *ProductController {
	return &ProductController{products: products}
}

// GetProduct handles GET /api/products/:id. Admins also see inactive products.
func (pc *ProductController) GetProduct(ctx *gin.Context) {
	p, err := pc.products.Get(ctx.Request.Context(), ctx.Param("id"), middleware.IsAdmin(ctx))
	if err != nil {
		_ = ctx.Error(err)
		return
	}
	ctx.JSON(http.StatusOK, p)
}

// CreateProduct handles POST /api/admin/products.
func (pc *ProductController) CreateProduct(ctx *gin.Context) {
	var req models.ProductRequest
	if !bindJSON(ctx, &req) {
		return
	}
	p, err := pc.products.Create(ctx.Request.Context(), &req)
	if err != nil {
		_ = ctx.Error(err)
		return
	}
	ctx.JSON(http.StatusCreated, p)
}

// UpdateProduct handles PUT /api/admin/products/:id.
func (pc *ProductController) UpdateProduct(ctx *gin.Context) {
	var req models.ProductRequest
	if !bindJSON(ctx, &req) {
		return
	}
	p, err := pc.products.Update(ctx.Request.Context(), ctx.Param("id"), &req)
	if err != nil {
		_ = ctx.Error(err)
		return
	}
	ctx.JSON(http.StatusOK, p)
}
