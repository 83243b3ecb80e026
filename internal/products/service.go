package products

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/brightcart/storefront-backend/pkg/db"
	"github.com/brightcart/storefront-backend/pkg/db/models"
	pkgerrors "github.com/brightcart/storefront-backend/pkg/errors"
	"github.com/brightcart/storefront-backend/pkg/pagination"
)

// Service exposes catalog reads plus the admin-facing product lifecycle.
type Service interface {
	GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error)
	ListCatalog(ctx context.Context, params pagination.Params, filters ListFilters) ([]models.Product, pagination.Page, error)
	CreateProduct(ctx context.Context, input CreateProductInput) (*models.Product, error)
	UpdateProduct(ctx context.Context, id uuid.UUID, input UpdateProductInput) (*models.Product, error)
	DeactivateProduct(ctx context.Context, id uuid.UUID) error
}

// CreateProductInput carries the fields for a new catalog listing.
type CreateProductInput struct {
	SKU         string
	Name        string
	Description *string
	Category    *string
	Price       decimal.Decimal
	Quantity    int
	ImageURL    *string
}

// UpdateProductInput carries optional field changes; nil leaves a field untouched.
type UpdateProductInput struct {
	Name        *string
	Description *string
	Category    *string
	Price       *decimal.Decimal
	Quantity    *int
	ImageURL    *string
	IsActive    *bool
}

type service struct {
	repo Repository
}

// NewService builds a product service with the required dependencies.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("products repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}
	product, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	if !product.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	return product, nil
}

func (s *service) ListCatalog(ctx context.Context, params pagination.Params, filters ListFilters) ([]models.Product, pagination.Page, error) {
	filters.OnlyActive = true
	rows, total, err := s.repo.List(ctx, params, filters)
	if err != nil {
		return nil, pagination.Page{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list products")
	}
	return rows, pagination.NewPage(params, total), nil
}

func (s *service) CreateProduct(ctx context.Context, input CreateProductInput) (*models.Product, error) {
	if input.Price.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "price cannot be negative")
	}
	if input.Quantity < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity cannot be negative")
	}

	product := &models.Product{
		SKU:         input.SKU,
		Name:        input.Name,
		Description: input.Description,
		Category:    input.Category,
		Price:       input.Price,
		Quantity:    input.Quantity,
		ImageURL:    input.ImageURL,
		IsActive:    true,
	}
	created, err := s.repo.Create(ctx, product)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "sku already exists")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create product")
	}
	return created, nil
}

func (s *service) UpdateProduct(ctx context.Context, id uuid.UUID, input UpdateProductInput) (*models.Product, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}

	updates := map[string]any{}
	if input.Name != nil {
		updates["name"] = *input.Name
	}
	if input.Description != nil {
		updates["description"] = *input.Description
	}
	if input.Category != nil {
		updates["category"] = *input.Category
	}
	if input.Price != nil {
		if input.Price.IsNegative() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "price cannot be negative")
		}
		updates["price"] = *input.Price
	}
	if input.Quantity != nil {
		if *input.Quantity < 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity cannot be negative")
		}
		updates["quantity"] = *input.Quantity
	}
	if input.ImageURL != nil {
		updates["image_url"] = *input.ImageURL
	}
	if input.IsActive != nil {
		updates["is_active"] = *input.IsActive
	}
	if len(updates) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "no fields to update")
	}

	if err := s.repo.Update(ctx, id, updates); err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update product")
	}

	product, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload product")
	}
	return product, nil
}

func (s *service) DeactivateProduct(ctx context.Context, id uuid.UUID) error {
	if id == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}
	if err := s.repo.Update(ctx, id, map[string]any{"is_active": false}); err != nil {
		if err == gorm.ErrRecordNotFound {
			return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "deactivate product")
	}
	return nil
}
