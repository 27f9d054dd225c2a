package webhooks

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/adityamehra/shopkart-backend/api/responses"
	paymentsvc "github.com/adityamehra/shopkart-backend/internal/payments"
	"github.com/adityamehra/shopkart-backend/pkg/cashfree"
	pkgerrors "github.com/adityamehra/shopkart-backend/pkg/errors"
	"github.com/adityamehra/shopkart-backend/pkg/logger"
)

const (
	signatureHeader = "x-webhook-signature"
	timestampHeader = "x-webhook-timestamp"

	maxWebhookBytes = 1 << 20
	replayGuardTTL  = 48 * time.Hour
	replayScope     = "cashfree_webhook"
)

type signatureVerifier interface {
	VerifyWebhookSignature(timestamp string, rawBody []byte, signature string) bool
}

type replayStore interface {
	IdempotencyKey(scope, id string) string
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) error
}

// Cashfree handles payment notifications. The signature is checked on the raw
// bytes before anything is parsed; replayed deliveries are swallowed by a
// redis SetNX guard keyed on the gateway payment id.
func Cashfree(svc paymentsvc.Service, verifier signatureVerifier, guard replayStore, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBytes))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read webhook body"))
			return
		}

		signature := r.Header.Get(signatureHeader)
		timestamp := r.Header.Get(timestampHeader)
		if signature == "" || timestamp == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "webhook signature headers missing"))
			return
		}
		if !verifier.VerifyWebhookSignature(timestamp, body, signature) {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "webhook signature mismatch"))
			return
		}

		event, err := cashfree.ParseWebhookEvent(body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "parse webhook"))
			return
		}

		var guardKey string
		if guard != nil {
			if paymentID := event.Data.Payment.CFPaymentID.String(); paymentID != "" {
				key := guard.IdempotencyKey(replayScope, paymentID)
				fresh, err := guard.SetNX(r.Context(), key, "1", replayGuardTTL)
				if err != nil {
					// degrade to the service-level guard rather than dropping
					// the event
					if logg != nil {
						logg.Warn(r.Context(), "webhook replay guard unavailable")
					}
				} else if !fresh {
					responses.WriteSuccess(w, map[string]string{"status": "duplicate"})
					return
				} else {
					guardKey = key
				}
			}
		}

		if err := svc.HandleWebhook(r.Context(), event); err != nil {
			// release the guard so the gateway retry is not acked as a
			// duplicate while the event is still unprocessed
			if guardKey != "" {
				if delErr := guard.Del(r.Context(), guardKey); delErr != nil && logg != nil {
					logg.Warn(r.Context(), "webhook replay guard release failed")
				}
			}
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "processed"})
	}
}
