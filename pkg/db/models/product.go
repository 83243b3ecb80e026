package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Product represents a storefront listing. Quantity is the on-hand stock
// counter that checkout decrements; it never goes negative.
type Product struct {
	ID          uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	SKU         string          `gorm:"column:sku;not null;uniqueIndex"`
	Name        string          `gorm:"column:name;not null"`
	Description *string         `gorm:"column:description"`
	Category    *string         `gorm:"column:category"`
	Price       decimal.Decimal `gorm:"column:price;type:numeric(10,2);not null"`
	Quantity    int             `gorm:"column:quantity;not null;default:0"`
	ImageURL    *string         `gorm:"column:image_url"`
	IsActive    bool            `gorm:"column:is_active;not null;default:true"`
	CreatedAt   time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}
