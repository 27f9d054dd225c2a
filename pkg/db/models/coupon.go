package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/adityamehra/shopkart-backend/pkg/enums"
)

// Coupon is a discount rule with usage accounting. Once UsageCount > 0 a
// coupon is deactivated rather than deleted so redemption history stays intact.
type Coupon struct {
	ID                uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Code              string             `gorm:"column:code;not null;uniqueIndex"`
	Description       string             `gorm:"column:description"`
	DiscountType      enums.DiscountType `gorm:"column:discount_type;type:text;not null"`
	DiscountValue     decimal.Decimal    `gorm:"column:discount_value;type:numeric(12,2);not null"`
	MinPurchaseAmount decimal.Decimal    `gorm:"column:min_purchase_amount;type:numeric(12,2);not null;default:0"`
	MaxDiscountAmount *decimal.Decimal   `gorm:"column:max_discount_amount;type:numeric(12,2)"`
	ValidFrom         time.Time          `gorm:"column:valid_from;not null"`
	ValidUntil        time.Time          `gorm:"column:valid_until;not null"`
	UsageLimit        *int               `gorm:"column:usage_limit"`
	PerUserLimit      *int               `gorm:"column:per_user_limit"`
	UsageCount        int                `gorm:"column:usage_count;not null;default:0"`
	Active            bool               `gorm:"column:active;not null;default:true"`
	Redemptions       []CouponRedemption `gorm:"foreignKey:CouponID;constraint:OnDelete:CASCADE"`
	CreatedAt         time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}

// CouponRedemption is one append-only usage history entry, recorded when the
// owning order's payment is confirmed.
type CouponRedemption struct {
	ID             uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	CouponID       uuid.UUID       `gorm:"column:coupon_id;type:uuid;not null;index"`
	UserID         uuid.UUID       `gorm:"column:user_id;type:uuid;not null;index"`
	OrderID        uuid.UUID       `gorm:"column:order_id;type:uuid;not null"`
	DiscountAmount decimal.Decimal `gorm:"column:discount_amount;type:numeric(12,2);not null"`
	OrderAmount    decimal.Decimal `gorm:"column:order_amount;type:numeric(12,2);not null"`
	CreatedAt      time.Time       `gorm:"column:created_at;autoCreateTime"`
}
