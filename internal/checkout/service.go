package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/brightcart/storefront-backend/internal/address"
	"github.com/brightcart/storefront-backend/internal/cart"
	"github.com/brightcart/storefront-backend/internal/orders"
	"github.com/brightcart/storefront-backend/internal/products"
	"github.com/brightcart/storefront-backend/pkg/db"
	"github.com/brightcart/storefront-backend/pkg/db/models"
	"github.com/brightcart/storefront-backend/pkg/enums"
	pkgerrors "github.com/brightcart/storefront-backend/pkg/errors"
	"github.com/brightcart/storefront-backend/pkg/logger"
	"github.com/brightcart/storefront-backend/pkg/metrics"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service turns a validated cart into an order.
type Service interface {
	PlaceOrder(ctx context.Context, userID uuid.UUID, input PlaceOrderInput) (*models.Order, error)
	QuoteTotals(ctx context.Context, userID uuid.UUID) (*Totals, error)
}

// LineInput is one requested line in a placement: the product and how many
// units the client last displayed. The id field carries the product id.
type LineInput struct {
	ProductID uuid.UUID `json:"id" validate:"required"`
	Quantity  int       `json:"quantity" validate:"required,min=1"`
}

// PlaceOrderInput is the payload for placing an order. Billing defaults to
// the shipping address and the payment method to "Credit Card" when omitted.
type PlaceOrderInput struct {
	CartItems         []LineInput `json:"cart_items" validate:"required,min=1,dive"`
	ShippingAddressID uuid.UUID   `json:"shipping_address_id" validate:"required"`
	BillingAddressID  uuid.UUID   `json:"billing_address_id"`
	PaymentMethod     string      `json:"payment_method"`
	Notes             *string     `json:"notes,omitempty"`
}

const defaultPaymentMethod = "Credit Card"

type service struct {
	cart      cart.Repository
	products  products.Repository
	orders    orders.Repository
	addresses address.Repository
	tx        txRunner
	sequencer *Sequencer
	metrics   *metrics.CheckoutMetrics
	logg      *logger.Logger
}

// ServiceParams bundles the dependencies required to build a checkout service.
type ServiceParams struct {
	CartRepo     cart.Repository
	ProductsRepo products.Repository
	OrdersRepo   orders.Repository
	AddressRepo  address.Repository
	TxRunner     txRunner
	Sequencer    *Sequencer
	Metrics      *metrics.CheckoutMetrics
	Logger       *logger.Logger
}

// NewService builds a checkout service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.CartRepo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if params.ProductsRepo == nil {
		return nil, fmt.Errorf("products repository required")
	}
	if params.OrdersRepo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.AddressRepo == nil {
		return nil, fmt.Errorf("address repository required")
	}
	if params.TxRunner == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Sequencer == nil {
		return nil, fmt.Errorf("sequencer required")
	}
	return &service{
		cart:      params.CartRepo,
		products:  params.ProductsRepo,
		orders:    params.OrdersRepo,
		addresses: params.AddressRepo,
		tx:        params.TxRunner,
		sequencer: params.Sequencer,
		metrics:   params.Metrics,
		logg:      params.Logger,
	}, nil
}

// QuoteTotals prices the current cart without touching stock.
func (s *service) QuoteTotals(ctx context.Context, userID uuid.UUID) (*Totals, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	items, err := s.cart.ListByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}

	subtotal := decimal.Zero
	for _, item := range items {
		if item.Product == nil {
			continue
		}
		subtotal = subtotal.Add(item.Product.Price.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	totals := ComputeTotals(subtotal)
	return &totals, nil
}

// PlaceOrder validates every requested line, prices the order, decrements
// stock with a guarded update per line, writes the order and its item
// snapshots, and clears the stored cart. Everything happens in one
// transaction: any failing line rolls back the entire attempt and no stock
// moves.
func (s *service) PlaceOrder(ctx context.Context, userID uuid.UUID, input PlaceOrderInput) (*models.Order, error) {
	started := time.Now()
	order, err := s.placeOrder(ctx, userID, input)
	outcome := "success"
	if err != nil {
		outcome = "error"
		if typed := pkgerrors.As(err); typed != nil && typed.Code() == pkgerrors.CodeInsufficientStock {
			outcome = "insufficient_stock"
			s.metrics.IncInsufficientStock()
		}
	}
	s.metrics.IncPlaced(outcome)
	s.metrics.ObserveDuration(outcome, time.Since(started))

	if err == nil && s.logg != nil {
		s.logg.Info(s.logg.WithOrderNumber(ctx, order.OrderNumber), "order placed")
	}
	return order, err
}

func (s *service) placeOrder(ctx context.Context, userID uuid.UUID, input PlaceOrderInput) (*models.Order, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if len(input.CartItems) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart items are required")
	}
	if input.ShippingAddressID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "shipping address is required")
	}
	if input.BillingAddressID == uuid.Nil {
		input.BillingAddressID = input.ShippingAddressID
	}
	if input.PaymentMethod == "" {
		input.PaymentMethod = defaultPaymentMethod
	}

	var placed *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		cartRepo := s.cart.WithTx(tx)
		productsRepo := s.products.WithTx(tx)
		ordersRepo := s.orders.WithTx(tx)
		addressRepo := s.addresses.WithTx(tx)
		sequencer := s.sequencer.WithSource(ordersRepo)

		if err := s.checkAddress(ctx, addressRepo, userID, input.ShippingAddressID, "shipping"); err != nil {
			return err
		}
		if err := s.checkAddress(ctx, addressRepo, userID, input.BillingAddressID, "billing"); err != nil {
			return err
		}

		// First pass: validate every line before any stock moves.
		subtotal := decimal.Zero
		lines := make([]models.OrderItem, 0, len(input.CartItems))
		for _, item := range input.CartItems {
			if item.Quantity < 1 {
				return pkgerrors.New(pkgerrors.CodeValidation, "invalid cart item format")
			}
			product, err := productsRepo.FindByID(ctx, item.ProductID)
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return pkgerrors.New(pkgerrors.CodeValidation, "product not found").
						WithDetails(map[string]any{"product_id": item.ProductID})
				}
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
			}
			if !product.IsActive {
				return pkgerrors.New(pkgerrors.CodeValidation, "product not found").
					WithDetails(map[string]any{"product_id": item.ProductID})
			}
			if item.Quantity > product.Quantity {
				return insufficientStock(product, item.Quantity, product.Quantity)
			}

			lineTotal := product.Price.Mul(decimal.NewFromInt(int64(item.Quantity)))
			subtotal = subtotal.Add(lineTotal)
			lines = append(lines, models.OrderItem{
				ProductID:    product.ID,
				ProductName:  product.Name,
				ProductPrice: product.Price,
				Quantity:     item.Quantity,
				LineTotal:    lineTotal,
			})
		}

		totals := ComputeTotals(subtotal)
		now := time.Now().UTC()

		order := &models.Order{
			UserID:            userID,
			Status:            enums.OrderStatusPending,
			Subtotal:          totals.Subtotal,
			ShippingAmount:    totals.Shipping,
			TaxAmount:         totals.Tax,
			TotalAmount:       totals.Total,
			PaymentMethod:     input.PaymentMethod,
			PaymentStatus:     enums.PaymentStatusPending,
			ShippingAddressID: input.ShippingAddressID,
			BillingAddressID:  input.BillingAddressID,
			Notes:             input.Notes,
			OrderedAt:         now,
		}

		if err := s.createWithNumber(ctx, ordersRepo, sequencer, order, now); err != nil {
			return err
		}

		for i := range lines {
			lines[i].OrderID = order.ID
		}
		if err := ordersRepo.CreateItems(ctx, lines); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order items")
		}

		// Second pass: guarded decrements, after the order row and its items
		// are persisted. The WHERE clause re-checks the quantity, so a
		// checkout that raced us past the first pass loses here and the
		// whole transaction rolls back.
		for i, item := range input.CartItems {
			won, err := productsRepo.DecrementStock(ctx, item.ProductID, item.Quantity)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decrement stock")
			}
			if !won {
				line := lines[i]
				return insufficientStock(&models.Product{ID: line.ProductID, Name: line.ProductName}, item.Quantity, 0)
			}
		}

		if err := cartRepo.DeleteByUser(ctx, userID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear cart")
		}

		order.Items = lines
		placed = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	return placed, nil
}

// createWithNumber mints a sequential number and inserts the order. A unique
// violation means another checkout claimed the same suffix first; one retry
// with a freshly derived number covers that, and a second collision falls
// back to a random suffix.
func (s *service) createWithNumber(ctx context.Context, ordersRepo orders.Repository, sequencer *Sequencer, order *models.Order, now time.Time) error {
	number, err := sequencer.Next(ctx, now)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "derive order number")
	}
	order.OrderNumber = number

	if _, err := ordersRepo.Create(ctx, order); err == nil {
		return nil
	} else if !db.IsUniqueViolation(err) {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
	}

	number, err = sequencer.Next(ctx, now)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "derive order number")
	}
	order.OrderNumber = number
	if _, err := ordersRepo.Create(ctx, order); err == nil {
		return nil
	} else if !db.IsUniqueViolation(err) {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
	}

	number, err = sequencer.Random(ctx, now)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "derive order number")
	}
	order.OrderNumber = number
	if _, err := ordersRepo.Create(ctx, order); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
	}
	return nil
}

func (s *service) checkAddress(ctx context.Context, repo address.Repository, userID, addressID uuid.UUID, kind string) error {
	if addressID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, kind+" address required")
	}
	addr, err := repo.FindByID(ctx, addressID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeValidation, kind+" address not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load address")
	}
	if addr.UserID != userID {
		return pkgerrors.New(pkgerrors.CodeValidation, kind+" address not found")
	}
	return nil
}

func insufficientStock(product *models.Product, requested, available int) error {
	return pkgerrors.New(pkgerrors.CodeInsufficientStock, fmt.Sprintf("insufficient stock for %s", product.Name)).
		WithDetails(map[string]any{
			"product_id": product.ID,
			"requested":  requested,
			"available":  available,
		})
}
