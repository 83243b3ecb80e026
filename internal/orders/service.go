package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/brightcart/storefront-backend/internal/products"
	"github.com/brightcart/storefront-backend/pkg/db/models"
	"github.com/brightcart/storefront-backend/pkg/enums"
	pkgerrors "github.com/brightcart/storefront-backend/pkg/errors"
	"github.com/brightcart/storefront-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service covers order reads and lifecycle transitions after placement.
type Service interface {
	GetOrder(ctx context.Context, userID, orderID uuid.UUID) (*models.Order, error)
	ListOrders(ctx context.Context, userID uuid.UUID, params pagination.Params) ([]models.Order, pagination.Page, error)
	CancelOrder(ctx context.Context, userID, orderID uuid.UUID) (*models.Order, error)
	ListAllOrders(ctx context.Context, params pagination.Params, filters ListFilters) ([]models.Order, pagination.Page, error)
	UpdateStatus(ctx context.Context, orderID uuid.UUID, status enums.OrderStatus) (*models.Order, error)
}

type service struct {
	repo     Repository
	products products.Repository
	tx       txRunner
}

// NewService builds an orders service with the required dependencies.
func NewService(repo Repository, productsRepo products.Repository, tx txRunner) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if productsRepo == nil {
		return nil, fmt.Errorf("products repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{repo: repo, products: productsRepo, tx: tx}, nil
}

func (s *service) GetOrder(ctx context.Context, userID, orderID uuid.UUID) (*models.Order, error) {
	return s.loadOwned(ctx, s.repo, userID, orderID)
}

func (s *service) ListOrders(ctx context.Context, userID uuid.UUID, params pagination.Params) ([]models.Order, pagination.Page, error) {
	if userID == uuid.Nil {
		return nil, pagination.Page{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	rows, total, err := s.repo.ListByUser(ctx, userID, params)
	if err != nil {
		return nil, pagination.Page{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	return rows, pagination.NewPage(params, total), nil
}

// CancelOrder moves a pending or processing order to cancelled and puts every
// line's stock back. The status check, restock, and update share one
// transaction so a concurrent shipment cannot race the restock.
func (s *service) CancelOrder(ctx context.Context, userID, orderID uuid.UUID) (*models.Order, error) {
	var cancelled *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		productsRepo := s.products.WithTx(tx)

		order, err := s.loadOwned(ctx, repo, userID, orderID)
		if err != nil {
			return err
		}
		if !order.Status.IsCancellable() {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order can no longer be cancelled").
				WithDetails(map[string]any{"status": order.Status})
		}

		for _, item := range order.Items {
			if err := productsRepo.RestoreStock(ctx, item.ProductID, item.Quantity); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "restore stock")
			}
		}

		updates := map[string]any{"status": enums.OrderStatusCancelled}
		if order.PaymentStatus == enums.PaymentStatusPaid {
			updates["payment_status"] = enums.PaymentStatusRefunded
		}
		if err := repo.UpdateStatus(ctx, order.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancel order")
		}

		reloaded, err := repo.FindByID(ctx, order.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload order")
		}
		cancelled = reloaded
		return nil
	})
	if err != nil {
		return nil, err
	}
	return cancelled, nil
}

func (s *service) ListAllOrders(ctx context.Context, params pagination.Params, filters ListFilters) ([]models.Order, pagination.Page, error) {
	rows, total, err := s.repo.List(ctx, params, filters)
	if err != nil {
		return nil, pagination.Page{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	return rows, pagination.NewPage(params, total), nil
}

// UpdateStatus is the admin transition. Any of the five statuses is
// accepted; a missing order surfaces as not-found via zero affected rows.
func (s *service) UpdateStatus(ctx context.Context, orderID uuid.UUID, status enums.OrderStatus) (*models.Order, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if !status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid order status").
			WithDetails(map[string]any{"status": status})
	}

	if err := s.repo.UpdateStatus(ctx, orderID, map[string]any{"status": status}); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
	}

	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload order")
	}
	return order, nil
}

func (s *service) loadOwned(ctx context.Context, repo Repository, userID, orderID uuid.UUID) (*models.Order, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	order, err := repo.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if order.UserID != userID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return order, nil
}
