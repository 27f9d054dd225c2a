package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Product is a catalog entry. Stock lives either on per-size variants or,
// for legacy products created before sizes existed, on the flat Quantity.
type Product struct {
	ID          uuid.UUID        `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name        string           `gorm:"column:name;not null"`
	Description string           `gorm:"column:description"`
	Category    string           `gorm:"column:category;not null;index"`
	Price       decimal.Decimal  `gorm:"column:price;type:numeric(12,2);not null"`
	Images      []string         `gorm:"column:images;type:jsonb;serializer:json"`
	Quantity    int              `gorm:"column:quantity;not null;default:0"`
	Active      bool             `gorm:"column:active;not null;default:true"`
	Variants    []ProductVariant `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE"`
	CreatedAt   time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}

// ProductVariant holds per-size inventory for a product.
type ProductVariant struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ProductID uuid.UUID `gorm:"column:product_id;type:uuid;not null;uniqueIndex:idx_variant_product_size"`
	Size      string    `gorm:"column:size;not null;uniqueIndex:idx_variant_product_size"`
	Color     *string   `gorm:"column:color"`
	Stock     int       `gorm:"column:stock;not null;default:0"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
