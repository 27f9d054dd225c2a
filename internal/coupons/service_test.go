package coupons

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/adityamehra/shopkart-backend/pkg/db/models"
	"github.com/adityamehra/shopkart-backend/pkg/enums"
	pkgerrors "github.com/adityamehra/shopkart-backend/pkg/errors"
	"github.com/adityamehra/shopkart-backend/pkg/pagination"
)

type stubCouponsRepo struct {
	coupons         map[uuid.UUID]*models.Coupon
	byCode          map[string]*models.Coupon
	redemptions     []models.CouponRedemption
	userRedemptions map[uuid.UUID]int
	incrementOK     bool
	deleted         []uuid.UUID
	updates         map[string]any
}

func newStubCouponsRepo() *stubCouponsRepo {
	return &stubCouponsRepo{
		coupons:         make(map[uuid.UUID]*models.Coupon),
		byCode:          make(map[string]*models.Coupon),
		userRedemptions: make(map[uuid.UUID]int),
		incrementOK:     true,
	}
}

func (s *stubCouponsRepo) add(coupon *models.Coupon) *models.Coupon {
	if coupon.ID == uuid.Nil {
		coupon.ID = uuid.New()
	}
	s.coupons[coupon.ID] = coupon
	s.byCode[coupon.Code] = coupon
	return coupon
}

func (s *stubCouponsRepo) WithTx(tx *gorm.DB) Repository { return s }

func (s *stubCouponsRepo) Create(ctx context.Context, coupon *models.Coupon) (*models.Coupon, error) {
	return s.add(coupon), nil
}

func (s *stubCouponsRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Coupon, error) {
	if coupon, ok := s.coupons[id]; ok {
		return coupon, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubCouponsRepo) FindByCode(ctx context.Context, code string) (*models.Coupon, error) {
	if coupon, ok := s.byCode[code]; ok {
		return coupon, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubCouponsRepo) List(ctx context.Context, params pagination.Params) ([]models.Coupon, int64, error) {
	var out []models.Coupon
	for _, coupon := range s.coupons {
		out = append(out, *coupon)
	}
	return out, int64(len(out)), nil
}

func (s *stubCouponsRepo) Update(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	if _, ok := s.coupons[id]; !ok {
		return gorm.ErrRecordNotFound
	}
	s.updates = updates
	if active, ok := updates["active"].(bool); ok {
		s.coupons[id].Active = active
	}
	return nil
}

func (s *stubCouponsRepo) Delete(ctx context.Context, id uuid.UUID) error {
	if _, ok := s.coupons[id]; !ok {
		return gorm.ErrRecordNotFound
	}
	s.deleted = append(s.deleted, id)
	delete(s.coupons, id)
	return nil
}

func (s *stubCouponsRepo) CountUserRedemptions(ctx context.Context, couponID, userID uuid.UUID) (int, error) {
	return s.userRedemptions[userID], nil
}

func (s *stubCouponsRepo) IncrementUsage(ctx context.Context, couponID uuid.UUID) (bool, error) {
	if !s.incrementOK {
		return false, nil
	}
	if coupon, ok := s.coupons[couponID]; ok {
		coupon.UsageCount++
	}
	return true, nil
}

func (s *stubCouponsRepo) CreateRedemption(ctx context.Context, redemption *models.CouponRedemption) error {
	s.redemptions = append(s.redemptions, *redemption)
	return nil
}

func newTestService(t *testing.T, repo Repository) Service {
	t.Helper()
	svc, err := NewService(repo)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func TestCreateValidation(t *testing.T) {
	svc := newTestService(t, newStubCouponsRepo())
	ctx := context.Background()

	base := CreateInput{
		Code:          "SAVE10",
		DiscountType:  enums.DiscountTypePercentage,
		DiscountValue: decimal.NewFromInt(10),
		ValidFrom:     time.Now(),
		ValidUntil:    time.Now().Add(24 * time.Hour),
	}

	t.Run("valid", func(t *testing.T) {
		coupon, err := svc.Create(ctx, base)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !coupon.Active {
			t.Fatal("new coupons must start active")
		}
	})

	t.Run("duplicate code", func(t *testing.T) {
		_, err := svc.Create(ctx, base)
		assertCode(t, err, pkgerrors.CodeConflict)
	})

	t.Run("percentage over 100", func(t *testing.T) {
		input := base
		input.Code = "BOGUS"
		input.DiscountValue = decimal.NewFromInt(150)
		_, err := svc.Create(ctx, input)
		assertCode(t, err, pkgerrors.CodeValidation)
	})

	t.Run("inverted window", func(t *testing.T) {
		input := base
		input.Code = "WINDOW"
		input.ValidUntil = input.ValidFrom.Add(-time.Hour)
		_, err := svc.Create(ctx, input)
		assertCode(t, err, pkgerrors.CodeValidation)
	})
}

func TestValidateComputesDiscount(t *testing.T) {
	repo := newStubCouponsRepo()
	repo.add(activeCoupon())
	svc := newTestService(t, repo)

	result, err := svc.Validate(context.Background(), ValidateInput{
		Code:     "SAVE10",
		UserID:   uuid.New(),
		Subtotal: decimal.NewFromInt(14400),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Discount.Equal(decimal.NewFromInt(1440)) {
		t.Fatalf("expected 1440, got %s", result.Discount)
	}
}

func TestValidateRejectsPerUserLimit(t *testing.T) {
	repo := newStubCouponsRepo()
	coupon := activeCoupon()
	limit := 1
	coupon.PerUserLimit = &limit
	repo.add(coupon)

	exhausted := uuid.New()
	repo.userRedemptions[exhausted] = 1
	svc := newTestService(t, repo)

	_, err := svc.Validate(context.Background(), ValidateInput{
		Code: "SAVE10", UserID: exhausted, Subtotal: decimal.NewFromInt(1000),
	})
	assertCode(t, err, pkgerrors.CodeConflict)

	_, err = svc.Validate(context.Background(), ValidateInput{
		Code: "SAVE10", UserID: uuid.New(), Subtotal: decimal.NewFromInt(1000),
	})
	if err != nil {
		t.Fatalf("fresh user should validate: %v", err)
	}
}

func TestDeleteDeactivatesUsedCoupon(t *testing.T) {
	repo := newStubCouponsRepo()
	coupon := activeCoupon()
	coupon.UsageCount = 3
	repo.add(coupon)
	svc := newTestService(t, repo)

	if err := svc.Delete(context.Background(), coupon.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(repo.deleted) != 0 {
		t.Fatal("used coupon must not be physically deleted")
	}
	if coupon.Active {
		t.Fatal("used coupon should be deactivated instead")
	}
}

func TestDeleteRemovesUnusedCoupon(t *testing.T) {
	repo := newStubCouponsRepo()
	coupon := repo.add(activeCoupon())
	svc := newTestService(t, repo)

	if err := svc.Delete(context.Background(), coupon.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(repo.deleted) != 1 {
		t.Fatal("unused coupon should be deleted")
	}
}

func TestConfirmRedemption(t *testing.T) {
	repo := newStubCouponsRepo()
	coupon := repo.add(activeCoupon())
	svc := newTestService(t, repo)

	input := RedemptionInput{
		CouponID:       coupon.ID,
		UserID:         uuid.New(),
		OrderID:        uuid.New(),
		DiscountAmount: decimal.NewFromInt(1440),
		OrderAmount:    decimal.NewFromInt(12960),
	}
	if err := svc.ConfirmRedemption(context.Background(), nil, input); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if coupon.UsageCount != 1 {
		t.Fatalf("expected usage count 1, got %d", coupon.UsageCount)
	}
	if len(repo.redemptions) != 1 {
		t.Fatalf("expected one redemption row, got %d", len(repo.redemptions))
	}

	repo.incrementOK = false
	err := svc.ConfirmRedemption(context.Background(), nil, input)
	assertCode(t, err, pkgerrors.CodeConflict)
	if len(repo.redemptions) != 1 {
		t.Fatal("redemption must not be recorded when the limit is hit")
	}
}
