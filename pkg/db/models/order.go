package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/adityamehra/shopkart-backend/pkg/enums"
	"github.com/adityamehra/shopkart-backend/pkg/types"
)

// Order is the aggregate root for one checkout attempt and its fulfillment
// lifecycle. Status, payment fields and timeline are always written together
// in one transaction.
type Order struct {
	ID          uuid.UUID     `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderNumber string        `gorm:"column:order_number;not null;uniqueIndex"`
	UserID      uuid.UUID     `gorm:"column:user_id;type:uuid;not null;index"`
	Items       []OrderItem   `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	Address     types.Address `gorm:"column:shipping_address;type:jsonb;serializer:json"`

	PaymentMethod  enums.PaymentMethod `gorm:"column:payment_method;type:text;not null"`
	Subtotal       decimal.Decimal     `gorm:"column:subtotal;type:numeric(12,2);not null"`
	Discount       decimal.Decimal     `gorm:"column:discount;type:numeric(12,2);not null;default:0"`
	ShippingFee    decimal.Decimal     `gorm:"column:shipping_fee;type:numeric(12,2);not null;default:0"`
	AdvancePayment decimal.Decimal     `gorm:"column:advance_payment;type:numeric(12,2);not null;default:0"`
	TotalAmount    decimal.Decimal     `gorm:"column:total_amount;type:numeric(12,2);not null"`
	CouponCode     *string             `gorm:"column:coupon_code"`
	CouponDiscount decimal.Decimal     `gorm:"column:coupon_discount;type:numeric(12,2);not null;default:0"`

	PaymentStatus    enums.PaymentStatus `gorm:"column:payment_status;type:text;not null;default:'pending'"`
	Status           enums.OrderStatus   `gorm:"column:status;type:text;not null;default:'pending'"`
	GatewayOrderID   *string             `gorm:"column:gateway_order_id;index"`
	PaymentSessionID *string             `gorm:"column:payment_session_id"`
	GatewayPaymentID *string             `gorm:"column:gateway_payment_id"`

	ApprovalStatus  enums.ApprovalStatus `gorm:"column:approval_status;type:text;not null;default:'pending'"`
	ApprovedBy      *uuid.UUID           `gorm:"column:approved_by;type:uuid"`
	ApprovalAt      *time.Time           `gorm:"column:approval_at"`
	ApprovalRemarks *string              `gorm:"column:approval_remarks"`

	TrackingNumber *string    `gorm:"column:tracking_number"`
	Carrier        *string    `gorm:"column:carrier"`
	DeliveredAt    *time.Time `gorm:"column:delivered_at"`
	CancelledAt    *time.Time `gorm:"column:cancelled_at"`
	RefundedAt     *time.Time `gorm:"column:refunded_at"`

	Timeline  []OrderTimelineEntry `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}

// OrderItem snapshots a product line at order-creation time so later catalog
// edits never alter historical orders.
type OrderItem struct {
	ID         uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID    uuid.UUID       `gorm:"column:order_id;type:uuid;not null;index"`
	ProductID  uuid.UUID       `gorm:"column:product_id;type:uuid;not null"`
	Name       string          `gorm:"column:name;not null"`
	Image      *string         `gorm:"column:image"`
	Size       string          `gorm:"column:size;not null"`
	Color      *string         `gorm:"column:color"`
	Quantity   int             `gorm:"column:quantity;not null"`
	UnitPrice  decimal.Decimal `gorm:"column:unit_price;type:numeric(12,2);not null"`
	TotalPrice decimal.Decimal `gorm:"column:total_price;type:numeric(12,2);not null"`
	CreatedAt  time.Time       `gorm:"column:created_at;autoCreateTime"`
}

// OrderTimelineEntry is the append-only audit trail of status changes.
// Rows are only ever inserted.
type OrderTimelineEntry struct {
	ID        uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID   uuid.UUID         `gorm:"column:order_id;type:uuid;not null;index"`
	Status    enums.OrderStatus `gorm:"column:status;type:text;not null"`
	Note      string            `gorm:"column:note;not null"`
	Actor     string            `gorm:"column:actor;not null"`
	CreatedAt time.Time         `gorm:"column:created_at;autoCreateTime"`
}
