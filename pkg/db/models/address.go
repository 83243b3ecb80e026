package models

import (
	"time"

	"github.com/google/uuid"
)

// Address is a saved shipping or billing destination in a user's address book.
// At most one row per user carries is_default=true; the repository enforces it.
type Address struct {
	ID            uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID        uuid.UUID `gorm:"column:user_id;type:uuid;not null;index"`
	FirstName     string    `gorm:"column:first_name;not null"`
	LastName      string    `gorm:"column:last_name;not null"`
	StreetAddress string    `gorm:"column:street_address;not null"`
	City          string    `gorm:"column:city;not null"`
	State         *string   `gorm:"column:state"`
	PostalCode    string    `gorm:"column:postal_code;not null"`
	Country       string    `gorm:"column:country;not null"`
	Phone         *string   `gorm:"column:phone"`
	IsDefault     bool      `gorm:"column:is_default;not null;default:false"`
	CreatedAt     time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
