package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/adityamehra/shopkart-backend/internal/products"
	"github.com/adityamehra/shopkart-backend/pkg/db/models"
	pkgerrors "github.com/adityamehra/shopkart-backend/pkg/errors"
)

// ProductReader is the catalog surface the cart needs.
type ProductReader interface {
	Get(ctx context.Context, id uuid.UUID) (*models.Product, error)
}

// Service defines cart operations. A user's cart is created lazily on first
// access and emptied, never deleted, by checkout and payment completion.
type Service interface {
	Get(ctx context.Context, userID uuid.UUID) (*models.Cart, error)
	AddItem(ctx context.Context, userID uuid.UUID, input AddItemInput) (*models.Cart, error)
	UpdateItem(ctx context.Context, userID, itemID uuid.UUID, quantity int) (*models.Cart, error)
	RemoveItem(ctx context.Context, userID, itemID uuid.UUID) (*models.Cart, error)
	Clear(ctx context.Context, userID uuid.UUID) error
	EmptyForUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) error
}

// AddItemInput adds one product/size line to the cart.
type AddItemInput struct {
	ProductID uuid.UUID
	Size      string
	Quantity  int
}

type service struct {
	repo    Repository
	catalog ProductReader
}

// NewService builds a cart service with the required dependencies.
func NewService(repo Repository, catalog ProductReader) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if catalog == nil {
		return nil, fmt.Errorf("product reader required")
	}
	return &service{repo: repo, catalog: catalog}, nil
}

func (s *service) Get(ctx context.Context, userID uuid.UUID) (*models.Cart, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	cart, err := s.repo.FindByUser(ctx, userID)
	if err == nil {
		return cart, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "find cart")
	}

	created, err := s.repo.Create(ctx, &models.Cart{UserID: userID, TotalAmount: decimal.Zero})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create cart")
	}
	return created, nil
}

func (s *service) AddItem(ctx context.Context, userID uuid.UUID, input AddItemInput) (*models.Cart, error) {
	if input.Quantity <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	if input.ProductID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}

	cart, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	product, err := s.catalog.Get(ctx, input.ProductID)
	if err != nil {
		return nil, err
	}
	if !product.Active {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "product is not available")
	}

	existingQty := 0
	existing, err := s.repo.FindItem(ctx, cart.ID, input.ProductID, input.Size)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "find cart item")
	}
	if existing != nil {
		existingQty = existing.Quantity
	}

	requested := existingQty + input.Quantity
	if available := products.AvailableForSize(product, input.Size); requested > available {
		return nil, pkgerrors.New(pkgerrors.CodeConflict,
			fmt.Sprintf("insufficient stock for %s size %s", product.Name, input.Size))
	}

	if existing != nil {
		err = s.repo.UpdateItem(ctx, existing.ID, map[string]any{
			"quantity":   requested,
			"unit_price": product.Price,
		})
	} else {
		err = s.repo.CreateItem(ctx, &models.CartItem{
			CartID:    cart.ID,
			ProductID: input.ProductID,
			Size:      input.Size,
			Quantity:  input.Quantity,
			UnitPrice: product.Price,
		})
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "write cart item")
	}

	return s.refreshTotals(ctx, userID)
}

func (s *service) UpdateItem(ctx context.Context, userID, itemID uuid.UUID, quantity int) (*models.Cart, error) {
	if quantity < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity cannot be negative")
	}

	cart, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	item := findOwnedItem(cart, itemID)
	if item == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
	}

	if quantity == 0 {
		return s.RemoveItem(ctx, userID, itemID)
	}

	product, err := s.catalog.Get(ctx, item.ProductID)
	if err != nil {
		return nil, err
	}
	if quantity > products.AvailableForSize(product, item.Size) {
		return nil, pkgerrors.New(pkgerrors.CodeConflict,
			fmt.Sprintf("insufficient stock for %s size %s", product.Name, item.Size))
	}

	err = s.repo.UpdateItem(ctx, itemID, map[string]any{
		"quantity":   quantity,
		"unit_price": product.Price,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update cart item")
	}
	return s.refreshTotals(ctx, userID)
}

func (s *service) RemoveItem(ctx context.Context, userID, itemID uuid.UUID) (*models.Cart, error) {
	cart, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if findOwnedItem(cart, itemID) == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
	}
	if err := s.repo.DeleteItem(ctx, itemID); err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "delete cart item")
	}
	return s.refreshTotals(ctx, userID)
}

func (s *service) Clear(ctx context.Context, userID uuid.UUID) error {
	return s.EmptyForUser(ctx, nil, userID)
}

// EmptyForUser removes every item and zeroes the totals. Idempotent: emptying
// an already-empty or missing cart succeeds, which is what retried webhook
// deliveries need.
func (s *service) EmptyForUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) error {
	if userID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	repo := s.repo.WithTx(tx)

	cart, err := repo.FindByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "find cart")
	}

	if err := repo.DeleteItems(ctx, cart.ID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "empty cart")
	}
	if err := repo.UpdateTotals(ctx, cart.ID, 0, decimal.Zero); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reset cart totals")
	}
	return nil
}

func (s *service) refreshTotals(ctx context.Context, userID uuid.UUID) (*models.Cart, error) {
	cart, err := s.repo.FindByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reload cart")
	}

	count := 0
	total := decimal.Zero
	for _, item := range cart.Items {
		count += item.Quantity
		total = total.Add(item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}

	if err := s.repo.UpdateTotals(ctx, cart.ID, count, total); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update cart totals")
	}
	cart.ItemCount = count
	cart.TotalAmount = total
	return cart, nil
}

func findOwnedItem(cart *models.Cart, itemID uuid.UUID) *models.CartItem {
	for i := range cart.Items {
		if cart.Items[i].ID == itemID {
			return &cart.Items[i]
		}
	}
	return nil
}
