package controllers

import (
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/adityamehra/shopkart-backend/api/responses"
	"github.com/adityamehra/shopkart-backend/api/validators"
	couponsvc "github.com/adityamehra/shopkart-backend/internal/coupons"
	"github.com/adityamehra/shopkart-backend/pkg/enums"
	"github.com/adityamehra/shopkart-backend/pkg/logger"
	"github.com/adityamehra/shopkart-backend/pkg/pagination"
)

type validateCouponRequest struct {
	Code     string          `json:"code" validate:"required"`
	Subtotal decimal.Decimal `json:"subtotal" validate:"required"`
}

// ValidateCoupon checks a code against the caller's usage and returns the
// discount it would yield on the supplied subtotal.
func ValidateCoupon(svc couponsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := requesterID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload validateCouponRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Validate(r.Context(), couponsvc.ValidateInput{
			Code:     validators.SanitizeCode(payload.Code),
			UserID:   userID,
			Subtotal: payload.Subtotal,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{
			"code":     result.Coupon.Code,
			"discount": result.Discount,
		})
	}
}

type createCouponRequest struct {
	Code              string           `json:"code" validate:"required,min=3,max=40"`
	Description       string           `json:"description,omitempty"`
	DiscountType      string           `json:"discount_type" validate:"required,oneof=percentage fixed"`
	DiscountValue     decimal.Decimal  `json:"discount_value" validate:"required"`
	MinPurchaseAmount decimal.Decimal  `json:"min_purchase_amount,omitempty"`
	MaxDiscountAmount *decimal.Decimal `json:"max_discount_amount,omitempty"`
	ValidFrom         time.Time        `json:"valid_from" validate:"required"`
	ValidUntil        time.Time        `json:"valid_until" validate:"required"`
	UsageLimit        *int             `json:"usage_limit,omitempty" validate:"omitempty,min=1"`
	PerUserLimit      *int             `json:"per_user_limit,omitempty" validate:"omitempty,min=1"`
}

// CreateCoupon adds a coupon definition.
func CreateCoupon(svc couponsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload createCouponRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		coupon, err := svc.Create(r.Context(), couponsvc.CreateInput{
			Code:              validators.SanitizeCode(payload.Code),
			Description:       payload.Description,
			DiscountType:      enums.DiscountType(payload.DiscountType),
			DiscountValue:     payload.DiscountValue,
			MinPurchaseAmount: payload.MinPurchaseAmount,
			MaxDiscountAmount: payload.MaxDiscountAmount,
			ValidFrom:         payload.ValidFrom,
			ValidUntil:        payload.ValidUntil,
			UsageLimit:        payload.UsageLimit,
			PerUserLimit:      payload.PerUserLimit,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, coupon)
	}
}

// ListCoupons returns all coupon definitions, paginated.
func ListCoupons(svc couponsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		params := pagination.FromRequest(r)
		coupons, meta, err := svc.List(r.Context(), params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WritePaginated(w, coupons, meta)
	}
}

// GetCoupon returns one coupon definition.
func GetCoupon(svc couponsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathUUID(r, "couponID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		coupon, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, coupon)
	}
}

type updateCouponRequest struct {
	Description       *string          `json:"description,omitempty"`
	MinPurchaseAmount *decimal.Decimal `json:"min_purchase_amount,omitempty"`
	MaxDiscountAmount *decimal.Decimal `json:"max_discount_amount,omitempty"`
	ValidUntil        *time.Time       `json:"valid_until,omitempty"`
	UsageLimit        *int             `json:"usage_limit,omitempty" validate:"omitempty,min=1"`
	PerUserLimit      *int             `json:"per_user_limit,omitempty" validate:"omitempty,min=1"`
	Active            *bool            `json:"active,omitempty"`
}

// UpdateCoupon changes the mutable coupon fields.
func UpdateCoupon(svc couponsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathUUID(r, "couponID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload updateCouponRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		coupon, err := svc.Update(r.Context(), id, couponsvc.UpdateInput{
			Description:       payload.Description,
			MinPurchaseAmount: payload.MinPurchaseAmount,
			MaxDiscountAmount: payload.MaxDiscountAmount,
			ValidUntil:        payload.ValidUntil,
			UsageLimit:        payload.UsageLimit,
			PerUserLimit:      payload.PerUserLimit,
			Active:            payload.Active,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, coupon)
	}
}

// DeleteCoupon removes an unused coupon or deactivates a used one.
func DeleteCoupon(svc couponsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathUUID(r, "couponID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.Delete(r.Context(), id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "deleted"})
	}
}
