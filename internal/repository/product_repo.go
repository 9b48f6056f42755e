package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/amitoj1996/fieldops-web/internal/domain/entity"
	"github.com/amitoj1996/fieldops-web/internal/store"
)

// ProductRepository persists Product catalog documents.
type ProductRepository struct {
	store  store.Store
	logger *zap.Logger
}

// NewProductRepository creates a new ProductRepository
func NewProductRepository(s store.Store, logger *zap.Logger) *ProductRepository {
	return &ProductRepository{store: s, logger: logger}
}

// List returns all products for a tenant, oldest first.
func (r *ProductRepository) List(ctx context.Context, tenantID string) ([]*entity.Product, error) {
	docs, err := r.store.Query(ctx, tenantID, store.Filter{DocType: entity.DocTypeProduct})
	if err != nil {
		return nil, err
	}
	products := make([]*entity.Product, 0, len(docs))
	for _, doc := range docs {
		var p entity.Product
		if err := json.Unmarshal(doc.Body, &p); err != nil {
			return nil, fmt.Errorf("failed to unmarshal product %s: %w", doc.ID, err)
		}
		products = append(products, &p)
	}
	return products, nil
}

// Create inserts a new product document.
func (r *ProductRepository) Create(ctx context.Context, p *entity.Product) error {
	body, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal product: %w", err)
	}
	return r.store.Create(ctx, &store.Document{
		ID:        p.ID,
		TenantID:  p.TenantID,
		DocType:   entity.DocTypeProduct,
		CreatedAt: p.CreatedAt,
		Body:      body,
	})
}

// Delete removes a product document.
func (r *ProductRepository) Delete(ctx context.Context, tenantID, id string) error {
	return r.store.Delete(ctx, tenantID, id)
}
