package products

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/adityamehra/shopkart-backend/pkg/db/models"
	pkgerrors "github.com/adityamehra/shopkart-backend/pkg/errors"
	"github.com/adityamehra/shopkart-backend/pkg/pagination"
)

// Service defines catalog operations for both the public listing and admin management.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*models.Product, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Product, error)
	List(ctx context.Context, params pagination.Params, filters ListFilters) ([]models.Product, pagination.Meta, error)
	Update(ctx context.Context, id uuid.UUID, input UpdateInput) (*models.Product, error)
	Delete(ctx context.Context, id uuid.UUID) error
	SetVariantStock(ctx context.Context, productID uuid.UUID, input VariantInput) (*models.Product, error)
	DecrementStock(ctx context.Context, tx *gorm.DB, productID uuid.UUID, size string, qty int) error
}

// CreateInput carries admin-supplied product fields.
type CreateInput struct {
	Name        string
	Description string
	Category    string
	Price       decimal.Decimal
	Images      []string
	Quantity    int
	Variants    []VariantInput
}

// UpdateInput carries the fields an admin may change.
type UpdateInput struct {
	Name        *string
	Description *string
	Category    *string
	Price       *decimal.Decimal
	Images      []string
	Quantity    *int
	Active      *bool
}

// VariantInput sets per-size stock on a product.
type VariantInput struct {
	Size  string
	Color *string
	Stock int
}

type service struct {
	repo Repository
}

// NewService builds a product service with the required dependencies.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("products repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) Create(ctx context.Context, input CreateInput) (*models.Product, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product name is required")
	}
	if strings.TrimSpace(input.Category) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product category is required")
	}
	if input.Price.LessThanOrEqual(decimal.Zero) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product price must be positive")
	}
	if input.Quantity < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product quantity cannot be negative")
	}

	product := &models.Product{
		Name:        name,
		Description: strings.TrimSpace(input.Description),
		Category:    strings.TrimSpace(input.Category),
		Price:       input.Price,
		Images:      input.Images,
		Quantity:    input.Quantity,
		Active:      true,
	}
	for _, v := range input.Variants {
		size := strings.TrimSpace(v.Size)
		if size == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "variant size is required")
		}
		if v.Stock < 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "variant stock cannot be negative")
		}
		product.Variants = append(product.Variants, models.ProductVariant{
			Size:  size,
			Color: v.Color,
			Stock: v.Stock,
		})
	}

	created, err := s.repo.Create(ctx, product)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create product")
	}
	return created, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}
	product, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "find product")
	}
	return product, nil
}

func (s *service) List(ctx context.Context, params pagination.Params, filters ListFilters) ([]models.Product, pagination.Meta, error) {
	items, total, err := s.repo.List(ctx, params, filters)
	if err != nil {
		return nil, pagination.Meta{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list products")
	}
	return items, pagination.MetaFor(params, total), nil
}

func (s *service) Update(ctx context.Context, id uuid.UUID, input UpdateInput) (*models.Product, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}

	updates := map[string]any{}
	if input.Name != nil {
		if strings.TrimSpace(*input.Name) == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "product name cannot be empty")
		}
		updates["name"] = strings.TrimSpace(*input.Name)
	}
	if input.Description != nil {
		updates["description"] = strings.TrimSpace(*input.Description)
	}
	if input.Category != nil {
		if strings.TrimSpace(*input.Category) == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "product category cannot be empty")
		}
		updates["category"] = strings.TrimSpace(*input.Category)
	}
	if input.Price != nil {
		if input.Price.LessThanOrEqual(decimal.Zero) {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "product price must be positive")
		}
		updates["price"] = *input.Price
	}
	if input.Images != nil {
		updates["images"] = input.Images
	}
	if input.Quantity != nil {
		if *input.Quantity < 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "product quantity cannot be negative")
		}
		updates["quantity"] = *input.Quantity
	}
	if input.Active != nil {
		updates["active"] = *input.Active
	}
	if len(updates) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "no updates provided")
	}

	if err := s.repo.Update(ctx, id, updates); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update product")
	}
	return s.Get(ctx, id)
}

// Delete deactivates the product. Orders reference product snapshots, so the
// row itself stays put.
func (s *service) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.repo.Update(ctx, id, map[string]any{"active": false}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "deactivate product")
	}
	return nil
}

func (s *service) SetVariantStock(ctx context.Context, productID uuid.UUID, input VariantInput) (*models.Product, error) {
	if _, err := s.Get(ctx, productID); err != nil {
		return nil, err
	}
	size := strings.TrimSpace(input.Size)
	if size == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "variant size is required")
	}
	if input.Stock < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "variant stock cannot be negative")
	}

	variant := &models.ProductVariant{
		ProductID: productID,
		Size:      size,
		Color:     input.Color,
		Stock:     input.Stock,
	}
	if err := s.repo.UpsertVariant(ctx, variant); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "upsert variant")
	}
	return s.Get(ctx, productID)
}

// DecrementStock commits inventory for one order line. Variant stock is
// preferred; products without variants fall back to the legacy flat quantity.
func (s *service) DecrementStock(ctx context.Context, tx *gorm.DB, productID uuid.UUID, size string, qty int) error {
	if qty <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "decrement quantity must be positive")
	}
	repo := s.repo.WithTx(tx)

	product, err := repo.FindByID(ctx, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "find product")
	}

	if len(product.Variants) > 0 {
		ok, err := repo.DecrementVariantStock(ctx, productID, size, qty)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "decrement variant stock")
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeConflict,
				fmt.Sprintf("insufficient stock for %s size %s", product.Name, size))
		}
		return nil
	}

	ok, err := repo.DecrementLegacyStock(ctx, productID, qty)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "decrement stock")
	}
	if !ok {
		return pkgerrors.New(pkgerrors.CodeConflict,
			fmt.Sprintf("insufficient stock for %s", product.Name))
	}
	return nil
}

// AvailableForSize reports the purchasable stock for a product at a size.
func AvailableForSize(product *models.Product, size string) int {
	if product == nil || !product.Active {
		return 0
	}
	if len(product.Variants) == 0 {
		return product.Quantity
	}
	for _, v := range product.Variants {
		if strings.EqualFold(v.Size, size) {
			return v.Stock
		}
	}
	return 0
}
