package orders

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/adityamehra/shopkart-backend/pkg/enums"
	"github.com/adityamehra/shopkart-backend/pkg/types"
)

// CheckoutInput carries everything needed to create an order from a cart.
type CheckoutInput struct {
	UserID        uuid.UUID
	Address       types.Address
	PaymentMethod enums.PaymentMethod
	CouponCode    string
}

// ListFilters describe the inputs supported by order listings.
type ListFilters struct {
	Status        *enums.OrderStatus
	PaymentStatus *enums.PaymentStatus
	DateFrom      *time.Time
	DateTo        *time.Time
	Query         string
}

// ShippingInput carries the tracking details an admin sets when dispatching.
type ShippingInput struct {
	TrackingNumber string
	Carrier        string
}

// Summary is the condensed order view returned by listings.
type Summary struct {
	ID            uuid.UUID            `json:"id"`
	OrderNumber   string               `json:"order_number"`
	CreatedAt     time.Time            `json:"created_at"`
	ItemCount     int                  `json:"item_count"`
	TotalAmount   decimal.Decimal      `json:"total_amount"`
	PaymentMethod enums.PaymentMethod  `json:"payment_method"`
	PaymentStatus enums.PaymentStatus  `json:"payment_status"`
	Status        enums.OrderStatus    `json:"status"`
	Approval      enums.ApprovalStatus `json:"approval_status"`
}
