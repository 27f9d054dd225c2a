package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/adityamehra/shopkart-backend/api/responses"
	"github.com/adityamehra/shopkart-backend/api/validators"
	paymentsvc "github.com/adityamehra/shopkart-backend/internal/payments"
	pkgerrors "github.com/adityamehra/shopkart-backend/pkg/errors"
	"github.com/adityamehra/shopkart-backend/pkg/logger"
)

type paymentSessionRequest struct {
	OrderID uuid.UUID `json:"order_id" validate:"required"`
}

// CreatePaymentSession opens a fresh gateway session for a pending online
// order, for clients that abandoned the hosted payment page.
func CreatePaymentSession(svc paymentsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := requesterID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req paymentSessionRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		session, err := svc.OpenSession(r.Context(), req.OrderID, userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, session)
	}
}

// VerifyPayment polls the gateway for an order's payment state. Clients call
// this from the redirect-landing page before the webhook has arrived.
func VerifyPayment(svc paymentsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := requesterID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		orderNumber := strings.TrimSpace(chi.URLParam(r, "orderNumber"))
		if orderNumber == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "order number is required"))
			return
		}

		order, err := svc.VerifyByNumber(r.Context(), orderNumber, userID, requesterRole(r))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{
			"order_id":       order.ID,
			"order_number":   order.OrderNumber,
			"payment_status": order.PaymentStatus,
			"status":         order.Status,
		})
	}
}
