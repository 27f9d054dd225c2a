package cashfree

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/adityamehra/shopkart-backend/pkg/config"
	pkgerrors "github.com/adityamehra/shopkart-backend/pkg/errors"
	"github.com/adityamehra/shopkart-backend/pkg/logger"
)

const (
	sandboxEnv    = "sandbox"
	productionEnv = "production"

	maxResponseBytes = 1 << 20
)

var (
	errCredentialsRequired   = errors.New("cashfree client id and secret are required")
	errWebhookSecretRequired = errors.New("cashfree webhook secret is required")
	errInvalidCashfreeEnv    = fmt.Errorf("cashfree environment must be %q or %q", sandboxEnv, productionEnv)
	errLoggerRequired        = errors.New("cashfree logger is required")
)

var baseURLs = map[string]string{
	sandboxEnv:    "https://sandbox.cashfree.com",
	productionEnv: "https://api.cashfree.com",
}

// Client wraps the Cashfree PG REST API with centralized auth, logging, and
// error mapping. Cashfree does not ship a Go SDK, so requests are built by hand.
type Client struct {
	httpClient    *http.Client
	clientID      string
	clientSecret  string
	webhookSecret string
	apiVersion    string
	environment   string
	baseURL       string
	logger        *logger.Logger
}

// NewClient initializes the Cashfree wrapper and validates the credentials.
func NewClient(ctx context.Context, cfg config.CashfreeConfig, logg *logger.Logger) (*Client, error) {
	if logg == nil {
		return nil, errLoggerRequired
	}
	env, err := normalizeEnv(cfg.Environment())
	if err != nil {
		return nil, err
	}

	clientID := strings.TrimSpace(cfg.ClientID)
	clientSecret := strings.TrimSpace(cfg.ClientSecret)
	if clientID == "" || clientSecret == "" {
		return nil, errCredentialsRequired
	}

	webhookSecret := strings.TrimSpace(cfg.WebhookSecret)
	if webhookSecret == "" {
		return nil, errWebhookSecretRequired
	}

	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	c := &Client{
		httpClient:    &http.Client{Timeout: timeout},
		clientID:      clientID,
		clientSecret:  clientSecret,
		webhookSecret: webhookSecret,
		apiVersion:    cfg.APIVersion,
		environment:   env,
		baseURL:       baseURLs[env],
		logger:        logg,
	}

	logg.Info(ctx, "cashfree client initialized")
	return c, nil
}

// Environment reports the normalized Cashfree environment.
func (c *Client) Environment() string {
	if c == nil {
		return ""
	}
	return c.environment
}

// SigningSecret returns the Cashfree webhook secret.
func (c *Client) SigningSecret() string {
	if c == nil {
		return ""
	}
	return c.webhookSecret
}

// CreateOrder registers an order with the gateway and returns the payment session.
func (c *Client) CreateOrder(ctx context.Context, params OrderCreateParams) (*Order, error) {
	c.log(ctx, "request", "create_order", map[string]any{
		"order_id":     params.OrderID,
		"order_amount": params.OrderAmount,
	})

	var order Order
	if err := c.do(ctx, http.MethodPost, "/pg/orders", params, &order); err != nil {
		c.log(ctx, "error", "create_order", map[string]any{"error": err.Error()})
		return nil, err
	}

	c.log(ctx, "response", "create_order", map[string]any{
		"cf_order_id": order.CFOrderID,
		"status":      order.OrderStatus,
	})
	return &order, nil
}

// GetOrder fetches the current gateway state for an order.
func (c *Client) GetOrder(ctx context.Context, orderID string) (*Order, error) {
	if strings.TrimSpace(orderID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	c.log(ctx, "request", "get_order", map[string]any{"order_id": orderID})

	var order Order
	path := "/pg/orders/" + url.PathEscape(orderID)
	if err := c.do(ctx, http.MethodGet, path, nil, &order); err != nil {
		c.log(ctx, "error", "get_order", map[string]any{"error": err.Error()})
		return nil, err
	}

	c.log(ctx, "response", "get_order", map[string]any{
		"cf_order_id": order.CFOrderID,
		"status":      order.OrderStatus,
	})
	return &order, nil
}

// CreateRefund issues a refund against a paid gateway order.
func (c *Client) CreateRefund(ctx context.Context, orderID string, params RefundCreateParams) (*Refund, error) {
	if strings.TrimSpace(orderID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	c.log(ctx, "request", "create_refund", map[string]any{
		"order_id":      orderID,
		"refund_id":     params.RefundID,
		"refund_amount": params.RefundAmount,
	})

	var refund Refund
	path := "/pg/orders/" + url.PathEscape(orderID) + "/refunds"
	if err := c.do(ctx, http.MethodPost, path, params, &refund); err != nil {
		c.log(ctx, "error", "create_refund", map[string]any{"error": err.Error()})
		return nil, err
	}

	c.log(ctx, "response", "create_refund", map[string]any{
		"cf_refund_id": refund.CFRefundID,
		"status":       refund.RefundStatus,
	})
	return &refund, nil
}

// VerifyWebhookSignature checks the x-webhook-signature header value against
// base64(HMAC-SHA256(secret, timestamp + rawBody)).
func (c *Client) VerifyWebhookSignature(timestamp string, rawBody []byte, signature string) bool {
	if c == nil || c.webhookSecret == "" || signature == "" {
		return false
	}
	expected := ComputeSignature(c.webhookSecret, timestamp, rawBody)
	return hmac.Equal([]byte(expected), []byte(signature))
}

// ComputeSignature builds the webhook signature for the given secret and payload.
func ComputeSignature(secret, timestamp string, rawBody []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp))
	mac.Write(rawBody)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode gateway request")
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build gateway request")
	}
	req.Header.Set("x-client-id", c.clientID)
	req.Header.Set("x-client-secret", c.clientSecret)
	req.Header.Set("x-api-version", c.apiVersion)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cashfree request failed")
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read cashfree response")
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return c.mapAPIError(resp.StatusCode, data)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode cashfree response")
	}
	return nil
}

func (c *Client) mapAPIError(status int, body []byte) error {
	var apiErr apiError
	message := "cashfree request rejected"
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Message != "" {
		message = apiErr.Message
	}

	code := pkgerrors.CodeGateway
	switch {
	case status == http.StatusNotFound:
		code = pkgerrors.CodeNotFound
	case status == http.StatusConflict:
		code = pkgerrors.CodeConflict
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		code = pkgerrors.CodeGateway
	case status >= 400 && status < 500:
		code = pkgerrors.CodeValidation
	}

	return pkgerrors.New(code, message).WithDetails(map[string]any{
		"gateway_status": status,
		"gateway_code":   apiErr.Code,
	})
}

func (c *Client) log(ctx context.Context, phase, op string, fields map[string]any) {
	if c == nil || c.logger == nil {
		return
	}
	logFields := map[string]any{
		"operation": op,
		"phase":     phase,
	}
	for k, v := range fields {
		logFields[k] = v
	}
	ctx = c.logger.WithFields(ctx, logFields)
	switch phase {
	case "error":
		c.logger.Error(ctx, fmt.Sprintf("cashfree %s", op), errors.New(fmt.Sprint(fields["error"])))
	default:
		c.logger.Info(ctx, fmt.Sprintf("cashfree %s", phase))
	}
}

func normalizeEnv(env string) (string, error) {
	normalized := strings.ToLower(strings.TrimSpace(env))
	switch normalized {
	case sandboxEnv, productionEnv:
		return normalized, nil
	default:
		return "", errInvalidCashfreeEnv
	}
}
