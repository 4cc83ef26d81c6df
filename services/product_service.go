package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	apperrors "github.com/yashrajoria/giftshop-backend/common/errors"
	"github.com/yashrajoria/giftshop-backend/common/logger"
	"github.com/yashrajoria/giftshop-backend/models"
	"github.com/yashrajoria/giftshop-backend/repository"
	"go.uber.org/zap"
)

// ProductService keeps the minimal catalogue orders snapshot from.
type ProductService struct {
	store  *repository.Store
	logger *zap.Logger
}

func NewProductService(store *repository.Store, logger *zap.Logger) *ProductService {
	return &ProductService{store: store, logger: logger}
}

// Get returns an active product. Inactive products are hidden from shoppers.
func (s *ProductService) Get(ctx context.Context, id string, includeInactive bool) (*models.Product, error) {
	p, err := s.store.Products.FindByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "Product", id)
	}
	if !p.Active && !includeInactive {
		return nil, apperrors.NotFound("Product not found: %s", id)
	}
	return p, nil
}

func (s *ProductService) Create(ctx context.Context, req *models.ProductRequest) (*models.Product, error) {
	if err := Validate(req); err != nil {
		return nil, err
	}
	p := &models.Product{
		ID:       uuid.NewString(),
		Name:     req.Name,
		Price:    req.Price,
		Images:   req.Images,
		WeightKg: req.WeightKg,
		Active:   req.Active == nil || *req.Active,
	}
	if p.Images == nil {
		p.Images = []string{}
	}
	if err := s.store.Products.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("create product: %w", err)
	}
	s.logger.Info("Product created", logger.RequestIDField(ctx), zap.String("product_id", p.ID), zap.String("name", p.Name))
	return p, nil
}

func (s *ProductService) Update(ctx context.Context, id string, req *models.ProductRequest) (*models.Product, error) {
	if err := Validate(req); err != nil {
		return nil, err
	}
	p, err := s.store.Products.FindByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "Product", id)
	}
	p.Name, p.Price, p.WeightKg = req.Name, req.Price, req.WeightKg
	if req.Images != nil {
		p.Images = req.Images
	}
	if req.Active != nil {
		p.Active = *req.Active
	}
	if err := s.store.Products.Update(ctx, p); err != nil {
		return nil, notFound(err, "Product", id)
	}
	s.logger.Info("Product updated", logger.RequestIDField(ctx), zap.String("product_id", p.ID))
	return p, nil
}
