package models

import (
	"time"

	"github.com/google/uuid"
)

// CartItem is one line of a user's cart. Size and Color are nullable variant
// axes; two lines with the same product and the same (null-aware) variant pair
// are merged into one by the cart service rather than duplicated.
type CartItem struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID    uuid.UUID `gorm:"column:user_id;type:uuid;not null;index"`
	ProductID uuid.UUID `gorm:"column:product_id;type:uuid;not null"`
	Quantity  int       `gorm:"column:quantity;not null"`
	Size      *string   `gorm:"column:size"`
	Color     *string   `gorm:"column:color"`
	Product   *Product  `gorm:"foreignKey:ProductID"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
