package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/brightcart/storefront-backend/pkg/enums"
)

// Order is the checkout result. OrderNumber is the human-facing identifier
// (ORD-YYMMDD-NNNN) and is unique across all orders.
type Order struct {
	ID                uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderNumber       string              `gorm:"column:order_number;not null;uniqueIndex"`
	UserID            uuid.UUID           `gorm:"column:user_id;type:uuid;not null;index"`
	Status            enums.OrderStatus   `gorm:"column:status;type:text;not null;default:'pending'"`
	Subtotal          decimal.Decimal     `gorm:"column:subtotal;type:numeric(10,2);not null"`
	ShippingAmount    decimal.Decimal     `gorm:"column:shipping_amount;type:numeric(10,2);not null"`
	TaxAmount         decimal.Decimal     `gorm:"column:tax_amount;type:numeric(10,2);not null"`
	TotalAmount       decimal.Decimal     `gorm:"column:total_amount;type:numeric(10,2);not null"`
	PaymentMethod     string              `gorm:"column:payment_method;not null"`
	PaymentStatus     enums.PaymentStatus `gorm:"column:payment_status;type:text;not null;default:'pending'"`
	ShippingAddressID uuid.UUID           `gorm:"column:shipping_address_id;type:uuid;not null"`
	BillingAddressID  uuid.UUID           `gorm:"column:billing_address_id;type:uuid;not null"`
	Notes             *string             `gorm:"column:notes"`
	OrderedAt         time.Time           `gorm:"column:ordered_at;not null"`
	Items             []OrderItem         `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt         time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
