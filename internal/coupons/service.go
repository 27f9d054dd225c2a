package coupons

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/adityamehra/shopkart-backend/pkg/db/models"
	"github.com/adityamehra/shopkart-backend/pkg/enums"
	pkgerrors "github.com/adityamehra/shopkart-backend/pkg/errors"
	"github.com/adityamehra/shopkart-backend/pkg/pagination"
)

// Service defines coupon management and evaluation operations.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*models.Coupon, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Coupon, error)
	List(ctx context.Context, params pagination.Params) ([]models.Coupon, pagination.Meta, error)
	Update(ctx context.Context, id uuid.UUID, input UpdateInput) (*models.Coupon, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Validate(ctx context.Context, input ValidateInput) (*ValidationResult, error)
	ResolveForUser(ctx context.Context, code string, userID uuid.UUID) (*models.Coupon, error)
	FindByCode(ctx context.Context, code string) (*models.Coupon, error)
	ConfirmRedemption(ctx context.Context, tx *gorm.DB, input RedemptionInput) error
}

// CreateInput carries the admin-supplied coupon definition.
type CreateInput struct {
	Code              string
	Description       string
	DiscountType      enums.DiscountType
	DiscountValue     decimal.Decimal
	MinPurchaseAmount decimal.Decimal
	MaxDiscountAmount *decimal.Decimal
	ValidFrom         time.Time
	ValidUntil        time.Time
	UsageLimit        *int
	PerUserLimit      *int
}

// UpdateInput carries the fields an admin may change after creation.
type UpdateInput struct {
	Description       *string
	MinPurchaseAmount *decimal.Decimal
	MaxDiscountAmount *decimal.Decimal
	ValidUntil        *time.Time
	UsageLimit        *int
	PerUserLimit      *int
	Active            *bool
}

// ValidateInput is the user-facing coupon check before checkout.
type ValidateInput struct {
	Code     string
	UserID   uuid.UUID
	Subtotal decimal.Decimal
}

// ValidationResult reports the applicable discount for a valid coupon.
type ValidationResult struct {
	Coupon   *models.Coupon
	Discount decimal.Decimal
}

// RedemptionInput records one confirmed coupon usage alongside payment completion.
type RedemptionInput struct {
	CouponID       uuid.UUID
	UserID         uuid.UUID
	OrderID        uuid.UUID
	DiscountAmount decimal.Decimal
	OrderAmount    decimal.Decimal
}

type service struct {
	repo Repository
	now  func() time.Time
}

// NewService builds a coupon service with the required dependencies.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("coupons repository required")
	}
	return &service{repo: repo, now: time.Now}, nil
}

func (s *service) Create(ctx context.Context, input CreateInput) (*models.Coupon, error) {
	code := strings.ToUpper(strings.TrimSpace(input.Code))
	if code == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "coupon code is required")
	}
	if !input.DiscountType.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "discount type must be percentage or fixed")
	}
	if input.DiscountValue.LessThanOrEqual(decimal.Zero) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "discount value must be positive")
	}
	if input.DiscountType == enums.DiscountTypePercentage && input.DiscountValue.GreaterThan(hundred) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "percentage discount cannot exceed 100")
	}
	if !input.ValidUntil.After(input.ValidFrom) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "valid_until must be after valid_from")
	}
	if input.UsageLimit != nil && *input.UsageLimit <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "usage limit must be positive")
	}
	if input.PerUserLimit != nil && *input.PerUserLimit <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "per-user limit must be positive")
	}

	if existing, err := s.repo.FindByCode(ctx, code); err == nil && existing != nil {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "coupon code already exists")
	} else if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup coupon code")
	}

	coupon := &models.Coupon{
		Code:              code,
		Description:       strings.TrimSpace(input.Description),
		DiscountType:      input.DiscountType,
		DiscountValue:     input.DiscountValue,
		MinPurchaseAmount: input.MinPurchaseAmount,
		MaxDiscountAmount: input.MaxDiscountAmount,
		ValidFrom:         input.ValidFrom,
		ValidUntil:        input.ValidUntil,
		UsageLimit:        input.UsageLimit,
		PerUserLimit:      input.PerUserLimit,
		Active:            true,
	}
	created, err := s.repo.Create(ctx, coupon)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create coupon")
	}
	return created, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Coupon, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "coupon id required")
	}
	coupon, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "coupon not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "find coupon")
	}
	return coupon, nil
}

func (s *service) List(ctx context.Context, params pagination.Params) ([]models.Coupon, pagination.Meta, error) {
	coupons, total, err := s.repo.List(ctx, params)
	if err != nil {
		return nil, pagination.Meta{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list coupons")
	}
	return coupons, pagination.MetaFor(params, total), nil
}

func (s *service) Update(ctx context.Context, id uuid.UUID, input UpdateInput) (*models.Coupon, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}

	updates := map[string]any{}
	if input.Description != nil {
		updates["description"] = strings.TrimSpace(*input.Description)
	}
	if input.MinPurchaseAmount != nil {
		updates["min_purchase_amount"] = *input.MinPurchaseAmount
	}
	if input.MaxDiscountAmount != nil {
		updates["max_discount_amount"] = *input.MaxDiscountAmount
	}
	if input.ValidUntil != nil {
		updates["valid_until"] = *input.ValidUntil
	}
	if input.UsageLimit != nil {
		if *input.UsageLimit <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "usage limit must be positive")
		}
		updates["usage_limit"] = *input.UsageLimit
	}
	if input.PerUserLimit != nil {
		if *input.PerUserLimit <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "per-user limit must be positive")
		}
		updates["per_user_limit"] = *input.PerUserLimit
	}
	if input.Active != nil {
		updates["active"] = *input.Active
	}
	if len(updates) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "no updates provided")
	}

	if err := s.repo.Update(ctx, id, updates); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "coupon not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update coupon")
	}
	return s.Get(ctx, id)
}

// Delete removes an unused coupon. Coupons with recorded usage are deactivated
// instead so the redemption history stays intact.
func (s *service) Delete(ctx context.Context, id uuid.UUID) error {
	coupon, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if coupon.UsageCount > 0 {
		if err := s.repo.Update(ctx, id, map[string]any{"active": false}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "deactivate coupon")
		}
		return nil
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "coupon not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "delete coupon")
	}
	return nil
}

func (s *service) Validate(ctx context.Context, input ValidateInput) (*ValidationResult, error) {
	coupon, err := s.ResolveForUser(ctx, input.Code, input.UserID)
	if err != nil {
		return nil, err
	}
	discount, err := ComputeDiscount(coupon, input.Subtotal)
	if err != nil {
		return nil, err
	}
	return &ValidationResult{Coupon: coupon, Discount: discount}, nil
}

// ResolveForUser loads a coupon by code and runs the validity checks for the
// given user without computing any amounts.
func (s *service) ResolveForUser(ctx context.Context, code string, userID uuid.UUID) (*models.Coupon, error) {
	if strings.TrimSpace(code) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "coupon code is required")
	}
	coupon, err := s.repo.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "coupon not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "find coupon")
	}

	userRedemptions := 0
	if coupon.PerUserLimit != nil && userID != uuid.Nil {
		userRedemptions, err = s.repo.CountUserRedemptions(ctx, coupon.ID, userID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "count coupon redemptions")
		}
	}

	if err := CheckValidity(coupon, userRedemptions, s.now()); err != nil {
		return nil, err
	}
	return coupon, nil
}

// FindByCode loads a coupon without re-running validity checks. Payment
// confirmation uses it to settle a redemption the checkout already validated.
func (s *service) FindByCode(ctx context.Context, code string) (*models.Coupon, error) {
	coupon, err := s.repo.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "coupon not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "find coupon")
	}
	return coupon, nil
}

// ConfirmRedemption atomically bumps the usage counter and appends the
// redemption history entry. Runs inside the caller's transaction so the
// increment commits or rolls back together with the order's payment update.
func (s *service) ConfirmRedemption(ctx context.Context, tx *gorm.DB, input RedemptionInput) error {
	repo := s.repo.WithTx(tx)

	bumped, err := repo.IncrementUsage(ctx, input.CouponID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "increment coupon usage")
	}
	if !bumped {
		return pkgerrors.New(pkgerrors.CodeConflict, "coupon usage limit reached")
	}

	redemption := &models.CouponRedemption{
		CouponID:       input.CouponID,
		UserID:         input.UserID,
		OrderID:        input.OrderID,
		DiscountAmount: input.DiscountAmount,
		OrderAmount:    input.OrderAmount,
	}
	if err := repo.CreateRedemption(ctx, redemption); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "record coupon redemption")
	}
	return nil
}
