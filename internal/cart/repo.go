package cart

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/brightcart/storefront-backend/pkg/db/models"
)

// Repository defines persistence operations for cart lines.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, item *models.CartItem) (*models.CartItem, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.CartItem, error)
	FindVariant(ctx context.Context, userID, productID uuid.UUID, size, color *string) (*models.CartItem, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.CartItem, error)
	UpdateQuantity(ctx context.Context, id uuid.UUID, quantity int) error
	Delete(ctx context.Context, id uuid.UUID) error
	DeleteByUser(ctx context.Context, userID uuid.UUID) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a cart repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, item *models.CartItem) (*models.CartItem, error) {
	if err := r.db.WithContext(ctx).Create(item).Error; err != nil {
		return nil, err
	}
	return item, nil
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.CartItem, error) {
	var item models.CartItem
	err := r.db.WithContext(ctx).
		Preload("Product").
		First(&item, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// FindVariant locates the cart line matching product plus the exact variant
// pair. A nil size or color only matches lines where that column is NULL, so
// "Large/Red" and "no variant" stay separate lines. Returns nil when no line
// matches.
func (r *repository) FindVariant(ctx context.Context, userID, productID uuid.UUID, size, color *string) (*models.CartItem, error) {
	query := r.db.WithContext(ctx).
		Where("user_id = ? AND product_id = ?", userID, productID)
	if size == nil {
		query = query.Where("size IS NULL")
	} else {
		query = query.Where("size = ?", *size)
	}
	if color == nil {
		query = query.Where("color IS NULL")
	} else {
		query = query.Where("color = ?", *color)
	}

	var item models.CartItem
	if err := query.First(&item).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &item, nil
}

func (r *repository) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.CartItem, error) {
	var items []models.CartItem
	err := r.db.WithContext(ctx).
		Preload("Product").
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repository) UpdateQuantity(ctx context.Context, id uuid.UUID, quantity int) error {
	result := r.db.WithContext(ctx).
		Model(&models.CartItem{}).
		Where("id = ?", id).
		UpdateColumn("quantity", quantity)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *repository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&models.CartItem{}, "id = ?", id).Error
}

func (r *repository) DeleteByUser(ctx context.Context, userID uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&models.CartItem{}, "user_id = ?", userID).Error
}
