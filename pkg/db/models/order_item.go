package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderItem captures the snapshot of each line within an order. Name and
// price are copied from the product at checkout time so later catalog edits
// never rewrite order history.
type OrderItem struct {
	ID           uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID      uuid.UUID       `gorm:"column:order_id;type:uuid;not null;index"`
	ProductID    uuid.UUID       `gorm:"column:product_id;type:uuid;not null"`
	ProductName  string          `gorm:"column:product_name;not null"`
	ProductPrice decimal.Decimal `gorm:"column:product_price;type:numeric(10,2);not null"`
	Quantity     int             `gorm:"column:quantity;not null"`
	Size         *string         `gorm:"column:size"`
	Color        *string         `gorm:"column:color"`
	LineTotal    decimal.Decimal `gorm:"column:line_total;type:numeric(10,2);not null"`
	CreatedAt    time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}
