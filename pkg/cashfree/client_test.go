package cashfree

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/adityamehra/shopkart-backend/pkg/config"
	pkgerrors "github.com/adityamehra/shopkart-backend/pkg/errors"
	"github.com/adityamehra/shopkart-backend/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() config.CashfreeConfig {
	return config.CashfreeConfig{
		ClientID:      "client-id",
		ClientSecret:  "client-secret",
		WebhookSecret: "webhook-secret",
		Env:           "sandbox",
		APIVersion:    "2023-08-01",
	}
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(context.Background(), testConfig(), testLogger())
	require.NoError(t, err)
	client.baseURL = server.URL
	return client, server
}

func TestNewClientValidation(t *testing.T) {
	ctx := context.Background()

	_, err := NewClient(ctx, testConfig(), nil)
	assert.ErrorIs(t, err, errLoggerRequired)

	cfg := testConfig()
	cfg.ClientSecret = ""
	_, err = NewClient(ctx, cfg, testLogger())
	assert.ErrorIs(t, err, errCredentialsRequired)

	cfg = testConfig()
	cfg.WebhookSecret = " "
	_, err = NewClient(ctx, cfg, testLogger())
	assert.ErrorIs(t, err, errWebhookSecretRequired)

	cfg = testConfig()
	cfg.Env = "staging"
	_, err = NewClient(ctx, cfg, testLogger())
	assert.ErrorIs(t, err, errInvalidCashfreeEnv)
}

func TestCreateOrderSendsAuthHeaders(t *testing.T) {
	var gotHeaders http.Header
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotHeaders = r.Header.Clone()
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/pg/orders", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"cf_order_id":"cf_123","order_id":"SK-1001","order_status":"ACTIVE","payment_session_id":"session_abc"}`)
	})

	order, err := client.CreateOrder(context.Background(), OrderCreateParams{
		OrderID:       "SK-1001",
		OrderAmount:   12960,
		OrderCurrency: "INR",
		Customer: CustomerDetails{
			CustomerID:    "user-1",
			CustomerEmail: "a@b.c",
			CustomerPhone: "9999999999",
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "cf_123", order.CFOrderID)
	assert.Equal(t, "session_abc", order.PaymentSessionID)
	assert.Equal(t, "client-id", gotHeaders.Get("x-client-id"))
	assert.Equal(t, "client-secret", gotHeaders.Get("x-client-secret"))
	assert.Equal(t, "2023-08-01", gotHeaders.Get("x-api-version"))
	assert.Equal(t, "application/json", gotHeaders.Get("Content-Type"))
}

func TestGetOrderStatus(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/pg/orders/SK-1001", r.URL.Path)
		io.WriteString(w, `{"cf_order_id":"cf_123","order_id":"SK-1001","order_status":"PAID"}`)
	})

	order, err := client.GetOrder(context.Background(), "SK-1001")
	require.NoError(t, err)
	assert.Equal(t, OrderStatusPaid, order.OrderStatus)
}

func TestCreateRefund(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/pg/orders/SK-1001/refunds", r.URL.Path)
		io.WriteString(w, `{"cf_refund_id":"refund_1","refund_id":"SK-1001-refund","refund_status":"PENDING"}`)
	})

	refund, err := client.CreateRefund(context.Background(), "SK-1001", RefundCreateParams{
		RefundID:     "SK-1001-refund",
		RefundAmount: 12960,
	})
	require.NoError(t, err)
	assert.Equal(t, "refund_1", refund.CFRefundID)
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantCode pkgerrors.Code
	}{
		{"not found", http.StatusNotFound, `{"message":"order not found","code":"order_not_found"}`, pkgerrors.CodeNotFound},
		{"bad request", http.StatusBadRequest, `{"message":"order_amount below minimum"}`, pkgerrors.CodeValidation},
		{"auth failure", http.StatusUnauthorized, `{"message":"invalid credentials"}`, pkgerrors.CodeGateway},
		{"server error", http.StatusInternalServerError, `oops`, pkgerrors.CodeGateway},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				io.WriteString(w, tc.body)
			})

			_, err := client.GetOrder(context.Background(), "SK-1001")
			require.Error(t, err)
			typed := pkgerrors.As(err)
			require.NotNil(t, typed)
			assert.Equal(t, tc.wantCode, typed.Code())
		})
	}
}

func TestVerifyWebhookSignature(t *testing.T) {
	client, err := NewClient(context.Background(), testConfig(), testLogger())
	require.NoError(t, err)

	body := []byte(`{"type":"PAYMENT_SUCCESS_WEBHOOK"}`)
	timestamp := "1693213200"
	signature := ComputeSignature("webhook-secret", timestamp, body)

	assert.True(t, client.VerifyWebhookSignature(timestamp, body, signature))
	assert.False(t, client.VerifyWebhookSignature(timestamp, body, "tampered"))
	assert.False(t, client.VerifyWebhookSignature("1693213201", body, signature))
	assert.False(t, client.VerifyWebhookSignature(timestamp, []byte(`{}`), signature))
	assert.False(t, client.VerifyWebhookSignature(timestamp, body, ""))
}
