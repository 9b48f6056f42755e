package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/amitoj1996/fieldops-web/internal/apperr"
	"github.com/amitoj1996/fieldops-web/internal/domain/entity"
	"github.com/amitoj1996/fieldops-web/internal/repository"
	"github.com/amitoj1996/fieldops-web/internal/store"
)

// CreateProductInput carries the fields for a new catalog entry.
type CreateProductInput struct {
	TenantID string
	Name     string
	SKU      string
	Price    float64
}

// ProductService manages the catalog that task items reference.
type ProductService interface {
	Create(ctx context.Context, in CreateProductInput) (*entity.Product, error)
	List(ctx context.Context, tenantID string) ([]*entity.Product, error)
	Delete(ctx context.Context, tenantID, id string) error
}

type productServiceImpl struct {
	products *repository.ProductRepository
	logger   *zap.Logger
	now      func() time.Time
}

// NewProductService creates a new ProductService
func NewProductService(products *repository.ProductRepository, logger *zap.Logger) ProductService {
	return &productServiceImpl{products: products, logger: logger, now: time.Now}
}

func (s *productServiceImpl) Create(ctx context.Context, in CreateProductInput) (*entity.Product, error) {
	in.TenantID = strings.TrimSpace(in.TenantID)
	in.Name = strings.TrimSpace(in.Name)
	if in.TenantID == "" {
		return nil, apperr.Validation("tenantId is required")
	}
	if in.Name == "" {
		return nil, apperr.Validation("name is required")
	}
	if in.Price < 0 {
		return nil, apperr.Validation("price must not be negative")
	}

	now := s.now().UTC()
	p := &entity.Product{
		ID:        uuid.NewString(),
		TenantID:  in.TenantID,
		DocType:   entity.DocTypeProduct,
		Name:      in.Name,
		SKU:       strings.TrimSpace(in.SKU),
		Price:     in.Price,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.products.Create(ctx, p); err != nil {
		return nil, err
	}
	s.logger.Info("Product created", zap.String("product_id", p.ID), zap.String("name", p.Name))
	return p, nil
}

func (s *productServiceImpl) List(ctx context.Context, tenantID string) ([]*entity.Product, error) {
	if strings.TrimSpace(tenantID) == "" {
		return nil, apperr.Validation("tenantId is required")
	}
	return s.products.List(ctx, tenantID)
}

func (s *productServiceImpl) Delete(ctx context.Context, tenantID, id string) error {
	if err := s.products.Delete(ctx, tenantID, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return apperr.NotFound("product not found")
		}
		return err
	}
	return nil
}
