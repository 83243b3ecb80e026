package orders

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/brightcart/storefront-backend/internal/products"
	"github.com/brightcart/storefront-backend/pkg/db"
	"github.com/brightcart/storefront-backend/pkg/db/models"
	"github.com/brightcart/storefront-backend/pkg/enums"
	pkgerrors "github.com/brightcart/storefront-backend/pkg/errors"
	"github.com/brightcart/storefront-backend/pkg/pagination"
)

func setupOrdersTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := "file:orders_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	schema := `
CREATE TABLE IF NOT EXISTS products (
  id TEXT PRIMARY KEY,
  sku TEXT NOT NULL UNIQUE,
  name TEXT NOT NULL,
  description TEXT,
  category TEXT,
  price NUMERIC NOT NULL,
  quantity INTEGER NOT NULL DEFAULT 0,
  image_url TEXT,
  is_active INTEGER NOT NULL DEFAULT 1,
  created_at DATETIME,
  updated_at DATETIME
);
CREATE TABLE IF NOT EXISTS orders (
  id TEXT PRIMARY KEY,
  order_number TEXT NOT NULL UNIQUE,
  user_id TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'pending',
  subtotal NUMERIC NOT NULL,
  shipping_amount NUMERIC NOT NULL,
  tax_amount NUMERIC NOT NULL,
  total_amount NUMERIC NOT NULL,
  payment_method TEXT NOT NULL,
  payment_status TEXT NOT NULL DEFAULT 'pending',
  shipping_address_id TEXT NOT NULL,
  billing_address_id TEXT NOT NULL,
  notes TEXT,
  ordered_at DATETIME NOT NULL,
  created_at DATETIME,
  updated_at DATETIME
);
CREATE TABLE IF NOT EXISTS order_items (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  product_id TEXT NOT NULL,
  product_name TEXT NOT NULL,
  product_price NUMERIC NOT NULL,
  quantity INTEGER NOT NULL,
  size TEXT,
  color TEXT,
  line_total NUMERIC NOT NULL,
  created_at DATETIME,
  updated_at DATETIME
);`
	require.NoError(t, conn.Exec(schema).Error)
	return conn
}

func buildOrdersService(t *testing.T, conn *gorm.DB) Service {
	t.Helper()
	svc, err := NewService(NewRepository(conn), products.NewRepository(conn), db.NewFromConn(conn))
	require.NoError(t, err)
	return svc
}

func seedOrder(t *testing.T, conn *gorm.DB, userID uuid.UUID, status enums.OrderStatus, paid bool, productQty int) (*models.Order, *models.Product) {
	t.Helper()

	product := &models.Product{
		ID:       uuid.New(),
		SKU:      "SKU-" + uuid.NewString()[:8],
		Name:     "Hoodie",
		Price:    decimal.NewFromFloat(40.00),
		Quantity: productQty,
		IsActive: true,
	}
	require.NoError(t, conn.Create(product).Error)

	payment := enums.PaymentStatusPending
	if paid {
		payment = enums.PaymentStatusPaid
	}
	order := &models.Order{
		ID:                uuid.New(),
		OrderNumber:       "ORD-260829-" + uuid.NewString()[:4],
		UserID:            userID,
		Status:            status,
		Subtotal:          decimal.NewFromFloat(80.00),
		ShippingAmount:    decimal.NewFromFloat(9.99),
		TaxAmount:         decimal.NewFromFloat(6.40),
		TotalAmount:       decimal.NewFromFloat(96.39),
		PaymentMethod:     "card",
		PaymentStatus:     payment,
		ShippingAddressID: uuid.New(),
		BillingAddressID:  uuid.New(),
		OrderedAt:         time.Now().UTC(),
	}
	require.NoError(t, conn.Omit("Items").Create(order).Error)

	item := &models.OrderItem{
		ID:           uuid.New(),
		OrderID:      order.ID,
		ProductID:    product.ID,
		ProductName:  product.Name,
		ProductPrice: product.Price,
		Quantity:     2,
		LineTotal:    decimal.NewFromFloat(80.00),
	}
	require.NoError(t, conn.Create(item).Error)
	return order, product
}

func TestCancelOrderRestoresStock(t *testing.T) {
	conn := setupOrdersTestDB(t)
	svc := buildOrdersService(t, conn)
	ctx := context.Background()
	userID := uuid.New()

	order, product := seedOrder(t, conn, userID, enums.OrderStatusPending, true, 3)

	cancelled, err := svc.CancelOrder(ctx, userID, order.ID)
	require.NoError(t, err)
	require.Equal(t, enums.OrderStatusCancelled, cancelled.Status)
	require.Equal(t, enums.PaymentStatusRefunded, cancelled.PaymentStatus)

	var reloaded models.Product
	require.NoError(t, conn.First(&reloaded, "id = ?", product.ID).Error)
	require.Equal(t, 5, reloaded.Quantity)
}

func TestCancelOrderUnpaidStaysPending(t *testing.T) {
	conn := setupOrdersTestDB(t)
	svc := buildOrdersService(t, conn)
	ctx := context.Background()
	userID := uuid.New()

	order, _ := seedOrder(t, conn, userID, enums.OrderStatusProcessing, false, 3)

	cancelled, err := svc.CancelOrder(ctx, userID, order.ID)
	require.NoError(t, err)
	require.Equal(t, enums.OrderStatusCancelled, cancelled.Status)
	require.Equal(t, enums.PaymentStatusPending, cancelled.PaymentStatus)
}

func TestCancelOrderRejectsShipped(t *testing.T) {
	conn := setupOrdersTestDB(t)
	svc := buildOrdersService(t, conn)
	ctx := context.Background()
	userID := uuid.New()

	order, product := seedOrder(t, conn, userID, enums.OrderStatusShipped, true, 3)

	_, err := svc.CancelOrder(ctx, userID, order.ID)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	require.Equal(t, pkgerrors.CodeStateConflict, typed.Code())

	// Stock untouched after the rejected cancel.
	var reloaded models.Product
	require.NoError(t, conn.First(&reloaded, "id = ?", product.ID).Error)
	require.Equal(t, 3, reloaded.Quantity)
}

func TestCancelOrderOwnership(t *testing.T) {
	conn := setupOrdersTestDB(t)
	svc := buildOrdersService(t, conn)
	ctx := context.Background()

	order, _ := seedOrder(t, conn, uuid.New(), enums.OrderStatusPending, false, 3)

	_, err := svc.CancelOrder(ctx, uuid.New(), order.ID)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	require.Equal(t, pkgerrors.CodeNotFound, typed.Code())
}

func TestUpdateStatusValidTransition(t *testing.T) {
	conn := setupOrdersTestDB(t)
	svc := buildOrdersService(t, conn)
	ctx := context.Background()

	order, _ := seedOrder(t, conn, uuid.New(), enums.OrderStatusPending, true, 3)

	updated, err := svc.UpdateStatus(ctx, order.ID, enums.OrderStatusShipped)
	require.NoError(t, err)
	require.Equal(t, enums.OrderStatusShipped, updated.Status)
}

func TestUpdateStatusRejectsUnknown(t *testing.T) {
	conn := setupOrdersTestDB(t)
	svc := buildOrdersService(t, conn)

	_, err := svc.UpdateStatus(context.Background(), uuid.New(), enums.OrderStatus("teleported"))
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	require.Equal(t, pkgerrors.CodeValidation, typed.Code())
}

func TestUpdateStatusMissingOrder(t *testing.T) {
	conn := setupOrdersTestDB(t)
	svc := buildOrdersService(t, conn)

	_, err := svc.UpdateStatus(context.Background(), uuid.New(), enums.OrderStatusShipped)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	require.Equal(t, pkgerrors.CodeNotFound, typed.Code())
}

func TestListOrdersScopedToUser(t *testing.T) {
	conn := setupOrdersTestDB(t)
	svc := buildOrdersService(t, conn)
	ctx := context.Background()
	userID := uuid.New()

	seedOrder(t, conn, userID, enums.OrderStatusPending, false, 3)
	seedOrder(t, conn, uuid.New(), enums.OrderStatusPending, false, 3)

	rows, page, err := svc.ListOrders(ctx, userID, pagination.Params{})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.EqualValues(t, 1, page.Total)
}

func TestListAllOrdersFiltersStatus(t *testing.T) {
	conn := setupOrdersTestDB(t)
	svc := buildOrdersService(t, conn)
	ctx := context.Background()

	seedOrder(t, conn, uuid.New(), enums.OrderStatusPending, false, 3)
	seedOrder(t, conn, uuid.New(), enums.OrderStatusShipped, false, 3)

	status := enums.OrderStatusShipped
	rows, page, err := svc.ListAllOrders(ctx, pagination.Params{}, ListFilters{Status: &status})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.EqualValues(t, 1, page.Total)
	require.Equal(t, enums.OrderStatusShipped, rows[0].Status)
}
