package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/brightcart/storefront-backend/internal/products"
	"github.com/brightcart/storefront-backend/pkg/db/models"
	pkgerrors "github.com/brightcart/storefront-backend/pkg/errors"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service owns mutations of a user's cart.
type Service interface {
	GetCart(ctx context.Context, userID uuid.UUID) (*CartView, error)
	AddToCart(ctx context.Context, userID uuid.UUID, input AddInput) (*CartView, error)
	UpdateCartItem(ctx context.Context, userID, itemID uuid.UUID, quantity int) (*CartView, error)
	RemoveCartItem(ctx context.Context, userID, itemID uuid.UUID) (*CartView, error)
	ClearCart(ctx context.Context, userID uuid.UUID) error
}

// AddInput is the payload for adding a product to the cart.
type AddInput struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"`
	Quantity  int       `json:"quantity" validate:"required,min=1"`
	Size      *string   `json:"size,omitempty"`
	Color     *string   `json:"color,omitempty"`
}

// LineView is one rendered cart line with its product snapshot.
type LineView struct {
	ID        uuid.UUID       `json:"id"`
	ProductID uuid.UUID       `json:"product_id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
	Size      *string         `json:"size,omitempty"`
	Color     *string         `json:"color,omitempty"`
	LineTotal decimal.Decimal `json:"line_total"`
}

// CartView is the rendered cart returned to clients.
type CartView struct {
	Items    []LineView      `json:"items"`
	Subtotal decimal.Decimal `json:"subtotal"`
	Count    int             `json:"count"`
}

type service struct {
	repo     Repository
	products products.Repository
	tx       txRunner
}

// NewService builds a cart service with the required dependencies.
func NewService(repo Repository, productsRepo products.Repository, tx txRunner) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if productsRepo == nil {
		return nil, fmt.Errorf("products repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{repo: repo, products: productsRepo, tx: tx}, nil
}

func (s *service) GetCart(ctx context.Context, userID uuid.UUID) (*CartView, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	items, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	return renderCart(items), nil
}

func (s *service) AddToCart(ctx context.Context, userID uuid.UUID, input AddInput) (*CartView, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if input.Quantity < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		productsRepo := s.products.WithTx(tx)

		product, err := productsRepo.FindByID(ctx, input.ProductID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
		}
		if !product.IsActive {
			return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}

		existing, err := repo.FindVariant(ctx, userID, input.ProductID, input.Size, input.Color)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find cart line")
		}

		requested := input.Quantity
		if existing != nil {
			requested += existing.Quantity
		}
		if requested > product.Quantity {
			return pkgerrors.New(pkgerrors.CodeInsufficientStock, "insufficient stock available").
				WithDetails(map[string]any{
					"product_id": product.ID,
					"requested":  requested,
					"available":  product.Quantity,
				})
		}

		if existing != nil {
			if err := repo.UpdateQuantity(ctx, existing.ID, requested); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "merge cart line")
			}
			return nil
		}

		_, err = repo.Create(ctx, &models.CartItem{
			UserID:    userID,
			ProductID: input.ProductID,
			Quantity:  input.Quantity,
			Size:      input.Size,
			Color:     input.Color,
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create cart line")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.GetCart(ctx, userID)
}

func (s *service) UpdateCartItem(ctx context.Context, userID, itemID uuid.UUID, quantity int) (*CartView, error) {
	if quantity < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity cannot be negative")
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		productsRepo := s.products.WithTx(tx)

		item, err := s.loadOwned(ctx, repo, userID, itemID)
		if err != nil {
			return err
		}

		// Quantity zero means remove the line.
		if quantity == 0 {
			if err := repo.Delete(ctx, item.ID); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "remove cart line")
			}
			return nil
		}

		product, err := productsRepo.FindByID(ctx, item.ProductID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeValidation, "product no longer available").
					WithDetails(map[string]any{"product_id": item.ProductID})
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
		}
		if quantity > product.Quantity {
			return pkgerrors.New(pkgerrors.CodeInsufficientStock, "insufficient stock available").
				WithDetails(map[string]any{
					"product_id": product.ID,
					"requested":  quantity,
					"available":  product.Quantity,
				})
		}

		if err := repo.UpdateQuantity(ctx, item.ID, quantity); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update cart line")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.GetCart(ctx, userID)
}

func (s *service) RemoveCartItem(ctx context.Context, userID, itemID uuid.UUID) (*CartView, error) {
	item, err := s.loadOwned(ctx, s.repo, userID, itemID)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Delete(ctx, item.ID); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "remove cart line")
	}
	return s.GetCart(ctx, userID)
}

func (s *service) ClearCart(ctx context.Context, userID uuid.UUID) error {
	if userID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if err := s.repo.DeleteByUser(ctx, userID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear cart")
	}
	return nil
}

func (s *service) loadOwned(ctx context.Context, repo Repository, userID, itemID uuid.UUID) (*models.CartItem, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if itemID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart item id required")
	}
	item, err := repo.FindByID(ctx, itemID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart line")
	}
	if item.UserID != userID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
	}
	return item, nil
}

func renderCart(items []models.CartItem) *CartView {
	view := &CartView{
		Items:    make([]LineView, 0, len(items)),
		Subtotal: decimal.Zero,
	}
	for _, item := range items {
		line := LineView{
			ID:        item.ID,
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			Size:      item.Size,
			Color:     item.Color,
		}
		if item.Product != nil {
			line.Name = item.Product.Name
			line.Price = item.Product.Price
			line.LineTotal = item.Product.Price.Mul(decimal.NewFromInt(int64(item.Quantity)))
		}
		view.Subtotal = view.Subtotal.Add(line.LineTotal)
		view.Items = append(view.Items, line)
		view.Count += item.Quantity
	}
	return view
}
