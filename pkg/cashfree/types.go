package cashfree

// CustomerDetails identifies the payer on a gateway order.
type CustomerDetails struct {
	CustomerID    string `json:"customer_id"`
	CustomerName  string `json:"customer_name,omitempty"`
	CustomerEmail string `json:"customer_email"`
	CustomerPhone string `json:"customer_phone"`
}

// OrderMeta carries redirect and notification settings for a gateway order.
type OrderMeta struct {
	ReturnURL string `json:"return_url,omitempty"`
	NotifyURL string `json:"notify_url,omitempty"`
}

// OrderCreateParams is the input for creating a gateway order.
type OrderCreateParams struct {
	OrderID       string          `json:"order_id"`
	OrderAmount   float64         `json:"order_amount"`
	OrderCurrency string          `json:"order_currency"`
	Customer      CustomerDetails `json:"customer_details"`
	OrderMeta     *OrderMeta      `json:"order_meta,omitempty"`
	OrderNote     string          `json:"order_note,omitempty"`
}

// Order is the gateway's view of an order.
type Order struct {
	CFOrderID        string  `json:"cf_order_id"`
	OrderID          string  `json:"order_id"`
	OrderAmount      float64 `json:"order_amount"`
	OrderCurrency    string  `json:"order_currency"`
	OrderStatus      string  `json:"order_status"`
	PaymentSessionID string  `json:"payment_session_id"`
}

// Gateway order statuses.
const (
	OrderStatusActive     = "ACTIVE"
	OrderStatusPaid       = "PAID"
	OrderStatusExpired    = "EXPIRED"
	OrderStatusTerminated = "TERMINATED"
)

// RefundCreateParams is the input for refunding a paid gateway order.
type RefundCreateParams struct {
	RefundID     string  `json:"refund_id"`
	RefundAmount float64 `json:"refund_amount"`
	RefundNote   string  `json:"refund_note,omitempty"`
}

// Refund is the gateway's view of a refund.
type Refund struct {
	CFRefundID   string  `json:"cf_refund_id"`
	RefundID     string  `json:"refund_id"`
	OrderID      string  `json:"order_id"`
	RefundAmount float64 `json:"refund_amount"`
	RefundStatus string  `json:"refund_status"`
}

type apiError struct {
	Message string `json:"message"`
	Code    string `json:"code"`
	Type    string `json:"type"`
}
