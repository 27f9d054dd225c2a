package controllers

import (
	"net/http"
	"strings"

	"github.com/adityamehra/shopkart-backend/api/responses"
	"github.com/adityamehra/shopkart-backend/api/validators"
	ordersvc "github.com/adityamehra/shopkart-backend/internal/orders"
	paymentsvc "github.com/adityamehra/shopkart-backend/internal/payments"
	"github.com/adityamehra/shopkart-backend/pkg/db/models"
	"github.com/adityamehra/shopkart-backend/pkg/enums"
	"github.com/adityamehra/shopkart-backend/pkg/logger"
)

type checkoutRequest struct {
	PaymentMethod string         `json:"payment_method" validate:"required,oneof=online cod"`
	Address       addressRequest `json:"address" validate:"required"`
	CouponCode    string         `json:"coupon_code,omitempty"`
}

type checkoutResponse struct {
	Order          *models.Order       `json:"order"`
	PaymentSession *paymentsvc.Session `json:"payment_session,omitempty"`
}

// Checkout turns the caller's cart into an order. Online orders also get a
// gateway payment session the client completes.
func Checkout(orders ordersvc.Service, payments paymentsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := requesterID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload checkoutRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		method := enums.PaymentMethod(strings.ToLower(payload.PaymentMethod))
		order, err := orders.Checkout(r.Context(), ordersvc.CheckoutInput{
			UserID:        userID,
			Address:       *payload.Address.toAddress(),
			PaymentMethod: method,
			CouponCode:    validators.SanitizeCode(payload.CouponCode),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		resp := checkoutResponse{Order: order}
		if method == enums.PaymentMethodOnline {
			session, err := payments.CreateSession(r.Context(), order)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			resp.PaymentSession = session
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, resp)
	}
}
