package products

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/adityamehra/shopkart-backend/pkg/db/models"
	"github.com/adityamehra/shopkart-backend/pkg/pagination"
)

// ListFilters describe the inputs supported by the catalog listing.
type ListFilters struct {
	Category        string
	Query           string
	ActiveOnly      bool
	IncludeVariants bool
}

// Repository defines persistence operations for the product catalog.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, product *models.Product) (*models.Product, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
	List(ctx context.Context, params pagination.Params, filters ListFilters) ([]models.Product, int64, error)
	Update(ctx context.Context, id uuid.UUID, updates map[string]any) error
	UpsertVariant(ctx context.Context, variant *models.ProductVariant) error
	DeleteVariant(ctx context.Context, productID uuid.UUID, size string) error
	DecrementVariantStock(ctx context.Context, productID uuid.UUID, size string, qty int) (bool, error)
	DecrementLegacyStock(ctx context.Context, productID uuid.UUID, qty int) (bool, error)
}
