package products

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/adityamehra/shopkart-backend/pkg/db/models"
	pkgerrors "github.com/adityamehra/shopkart-backend/pkg/errors"
	"github.com/adityamehra/shopkart-backend/pkg/pagination"
)

type stubProductsRepo struct {
	products map[uuid.UUID]*models.Product
	variants map[string]int
	updates  map[string]any
}

func newStubProductsRepo() *stubProductsRepo {
	return &stubProductsRepo{
		products: make(map[uuid.UUID]*models.Product),
		variants: make(map[string]int),
	}
}

func variantKey(productID uuid.UUID, size string) string {
	return productID.String() + "/" + size
}

func (s *stubProductsRepo) add(product *models.Product) *models.Product {
	if product.ID == uuid.Nil {
		product.ID = uuid.New()
	}
	s.products[product.ID] = product
	for _, v := range product.Variants {
		s.variants[variantKey(product.ID, v.Size)] = v.Stock
	}
	return product
}

func (s *stubProductsRepo) WithTx(tx *gorm.DB) Repository { return s }

func (s *stubProductsRepo) Create(ctx context.Context, product *models.Product) (*models.Product, error) {
	return s.add(product), nil
}

func (s *stubProductsRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	if product, ok := s.products[id]; ok {
		return product, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubProductsRepo) List(ctx context.Context, params pagination.Params, filters ListFilters) ([]models.Product, int64, error) {
	var out []models.Product
	for _, product := range s.products {
		if filters.ActiveOnly && !product.Active {
			continue
		}
		out = append(out, *product)
	}
	return out, int64(len(out)), nil
}

func (s *stubProductsRepo) Update(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	product, ok := s.products[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	s.updates = updates
	if active, ok := updates["active"].(bool); ok {
		product.Active = active
	}
	return nil
}

func (s *stubProductsRepo) UpsertVariant(ctx context.Context, variant *models.ProductVariant) error {
	s.variants[variantKey(variant.ProductID, variant.Size)] = variant.Stock
	return nil
}

func (s *stubProductsRepo) DeleteVariant(ctx context.Context, productID uuid.UUID, size string) error {
	delete(s.variants, variantKey(productID, size))
	return nil
}

func (s *stubProductsRepo) DecrementVariantStock(ctx context.Context, productID uuid.UUID, size string, qty int) (bool, error) {
	key := variantKey(productID, size)
	stock, ok := s.variants[key]
	if !ok || stock < qty {
		return false, nil
	}
	s.variants[key] = stock - qty
	return true, nil
}

func (s *stubProductsRepo) DecrementLegacyStock(ctx context.Context, productID uuid.UUID, qty int) (bool, error) {
	product, ok := s.products[productID]
	if !ok || product.Quantity < qty {
		return false, nil
	}
	product.Quantity -= qty
	return true, nil
}

func newTestService(t *testing.T, repo Repository) Service {
	t.Helper()
	svc, err := NewService(repo)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func sizedProduct() *models.Product {
	return &models.Product{
		Name:     "Hoodie",
		Category: "apparel",
		Price:    decimal.NewFromInt(1500),
		Active:   true,
		Variants: []models.ProductVariant{
			{Size: "M", Stock: 3},
			{Size: "L", Stock: 0},
		},
	}
}

func TestCreateValidation(t *testing.T) {
	svc := newTestService(t, newStubProductsRepo())
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateInput{Name: "", Category: "apparel", Price: decimal.NewFromInt(10)})
	assertCode(t, err, pkgerrors.CodeValidation)

	_, err = svc.Create(ctx, CreateInput{Name: "Hoodie", Category: "apparel", Price: decimal.Zero})
	assertCode(t, err, pkgerrors.CodeValidation)

	product, err := svc.Create(ctx, CreateInput{
		Name:     "Hoodie",
		Category: "apparel",
		Price:    decimal.NewFromInt(1500),
		Variants: []VariantInput{{Size: "M", Stock: 3}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !product.Active {
		t.Fatal("new products must start active")
	}
}

func TestDeleteDeactivates(t *testing.T) {
	repo := newStubProductsRepo()
	product := repo.add(sizedProduct())
	svc := newTestService(t, repo)

	if err := svc.Delete(context.Background(), product.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if product.Active {
		t.Fatal("delete must deactivate, not remove")
	}
	if _, ok := repo.products[product.ID]; !ok {
		t.Fatal("product row must stay put")
	}
}

func TestDecrementStockVariant(t *testing.T) {
	repo := newStubProductsRepo()
	product := repo.add(sizedProduct())
	svc := newTestService(t, repo)
	ctx := context.Background()

	if err := svc.DecrementStock(ctx, nil, product.ID, "M", 2); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := repo.variants[variantKey(product.ID, "M")]; got != 1 {
		t.Fatalf("expected stock 1, got %d", got)
	}

	err := svc.DecrementStock(ctx, nil, product.ID, "M", 2)
	assertCode(t, err, pkgerrors.CodeConflict)

	err = svc.DecrementStock(ctx, nil, product.ID, "L", 1)
	assertCode(t, err, pkgerrors.CodeConflict)
}

func TestDecrementStockLegacy(t *testing.T) {
	repo := newStubProductsRepo()
	product := repo.add(&models.Product{
		Name:     "Socks",
		Category: "apparel",
		Price:    decimal.NewFromInt(99),
		Quantity: 5,
		Active:   true,
	})
	svc := newTestService(t, repo)
	ctx := context.Background()

	if err := svc.DecrementStock(ctx, nil, product.ID, "", 5); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if product.Quantity != 0 {
		t.Fatalf("expected quantity 0, got %d", product.Quantity)
	}

	err := svc.DecrementStock(ctx, nil, product.ID, "", 1)
	assertCode(t, err, pkgerrors.CodeConflict)
}

func TestDecrementStockUnknownProduct(t *testing.T) {
	svc := newTestService(t, newStubProductsRepo())
	err := svc.DecrementStock(context.Background(), nil, uuid.New(), "M", 1)
	assertCode(t, err, pkgerrors.CodeNotFound)
}

func TestAvailableForSize(t *testing.T) {
	product := sizedProduct()
	if got := AvailableForSize(product, "M"); got != 3 {
		t.Fatalf("expected 3, got %d", got)
	}
	if got := AvailableForSize(product, "l"); got != 0 {
		t.Fatalf("size match is case-insensitive, expected 0 for empty L stock, got %d", got)
	}
	if got := AvailableForSize(product, "XL"); got != 0 {
		t.Fatalf("unknown size has no stock, got %d", got)
	}

	legacy := &models.Product{Name: "Socks", Quantity: 7, Active: true}
	if got := AvailableForSize(legacy, "anything"); got != 7 {
		t.Fatalf("legacy product uses flat quantity, got %d", got)
	}

	inactive := sizedProduct()
	inactive.Active = false
	if got := AvailableForSize(inactive, "M"); got != 0 {
		t.Fatalf("inactive products are not purchasable, got %d", got)
	}
}

func assertCode(t *testing.T, err error, want pkgerrors.Code) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error with code %s", want)
	}
	typed := pkgerrors.As(err)
	if typed == nil {
		t.Fatalf("expected typed error, got %v", err)
	}
	if typed.Code() != want {
		t.Fatalf("expected code %s, got %s (%v)", want, typed.Code(), err)
	}
}
