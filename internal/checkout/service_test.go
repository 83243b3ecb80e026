package checkout

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/brightcart/storefront-backend/internal/address"
	"github.com/brightcart/storefront-backend/internal/cart"
	"github.com/brightcart/storefront-backend/internal/orders"
	"github.com/brightcart/storefront-backend/internal/products"
	"github.com/brightcart/storefront-backend/pkg/db"
	"github.com/brightcart/storefront-backend/pkg/db/models"
	"github.com/brightcart/storefront-backend/pkg/enums"
	pkgerrors "github.com/brightcart/storefront-backend/pkg/errors"
)

func setupCheckoutTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := "file:checkout_" + uuid.NewString() + "?mode=memory&cache=shared"
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
CREATE TABLE IF NOT EXISTS cart_items (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  product_id TEXT NOT NULL,
  quantity INTEGER NOT NULL,
  size TEXT,
  color TEXT,
  created_at DATETIME,
  updated_at DATETIME
);
CREATE TABLE IF NOT EXISTS addresses (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  first_name TEXT NOT NULL,
  last_name TEXT NOT NULL,
  street_address TEXT NOT NULL,
  city TEXT NOT NULL,
  state TEXT,
  postal_code TEXT NOT NULL,
  country TEXT NOT NULL,
  phone TEXT,
  is_default INTEGER NOT NULL DEFAULT 0,
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

type checkoutFixture struct {
	svc  Service
	conn *gorm.DB
}

func buildCheckoutService(t *testing.T, conn *gorm.DB) *checkoutFixture {
	t.Helper()

	ordersRepo := orders.NewRepository(conn)
	sequencer, err := NewSequencer(ordersRepo, nil, nil)
	require.NoError(t, err)

	svc, err := NewService(ServiceParams{
		CartRepo:     cart.NewRepository(conn),
		ProductsRepo: products.NewRepository(conn),
		OrdersRepo:   ordersRepo,
		AddressRepo:  address.NewRepository(conn),
		TxRunner:     db.NewFromConn(conn),
		Sequencer:    sequencer,
	})
	require.NoError(t, err)
	return &checkoutFixture{svc: svc, conn: conn}
}

func (f *checkoutFixture) seedProduct(t *testing.T, price string, qty int) *models.Product {
	t.Helper()
	product := &models.Product{
		ID:       uuid.New(),
		SKU:      "SKU-" + uuid.NewString()[:8],
		Name:     "Item " + uuid.NewString()[:4],
		Price:    decimal.RequireFromString(price),
		Quantity: qty,
		IsActive: true,
	}
	require.NoError(t, f.conn.Create(product).Error)
	return product
}

func (f *checkoutFixture) seedAddress(t *testing.T, userID uuid.UUID) *models.Address {
	t.Helper()
	addr := &models.Address{
		ID:            uuid.New(),
		UserID:        userID,
		FirstName:     "Sam",
		LastName:      "Shopper",
		StreetAddress: "1 Main St",
		City:          "Springfield",
		PostalCode:    "12345",
		Country:       "US",
	}
	require.NoError(t, f.conn.Create(addr).Error)
	return addr
}

func (f *checkoutFixture) addToCart(t *testing.T, userID uuid.UUID, product *models.Product, qty int) {
	t.Helper()
	item := &models.CartItem{
		ID:        uuid.New(),
		UserID:    userID,
		ProductID: product.ID,
		Quantity:  qty,
	}
	require.NoError(t, f.conn.Create(item).Error)
}

func (f *checkoutFixture) placeInput(t *testing.T, userID uuid.UUID, items ...LineInput) PlaceOrderInput {
	t.Helper()
	addr := f.seedAddress(t, userID)
	return PlaceOrderInput{
		CartItems:         items,
		ShippingAddressID: addr.ID,
		PaymentMethod:     "card",
	}
}

func line(product *models.Product, qty int) LineInput {
	return LineInput{ProductID: product.ID, Quantity: qty}
}

func TestPlaceOrderHappyPath(t *testing.T) {
	f := buildCheckoutService(t, setupCheckoutTestDB(t))
	ctx := context.Background()
	userID := uuid.New()

	tee := f.seedProduct(t, "25.00", 10)
	mug := f.seedProduct(t, "10.00", 5)
	f.addToCart(t, userID, tee, 2)
	f.addToCart(t, userID, mug, 1)

	order, err := f.svc.PlaceOrder(ctx, userID, f.placeInput(t, userID, line(tee, 2), line(mug, 1)))
	require.NoError(t, err)

	require.True(t, order.Subtotal.Equal(decimal.RequireFromString("60.00")), "subtotal %s", order.Subtotal)
	require.True(t, order.ShippingAmount.Equal(decimal.RequireFromString("9.99")), "shipping %s", order.ShippingAmount)
	require.True(t, order.TaxAmount.Equal(decimal.RequireFromString("4.80")), "tax %s", order.TaxAmount)
	require.True(t, order.TotalAmount.Equal(decimal.RequireFromString("74.79")), "total %s", order.TotalAmount)
	require.Equal(t, enums.OrderStatusPending, order.Status)
	require.Len(t, order.Items, 2)
	require.Equal(t, order.ShippingAddressID, order.BillingAddressID)

	wantPrefix := fmt.Sprintf("ORD-%s-", time.Now().UTC().Format("060102"))
	require.Equal(t, wantPrefix+"0001", order.OrderNumber)

	var teeReloaded, mugReloaded models.Product
	require.NoError(t, f.conn.First(&teeReloaded, "id = ?", tee.ID).Error)
	require.NoError(t, f.conn.First(&mugReloaded, "id = ?", mug.ID).Error)
	require.Equal(t, 8, teeReloaded.Quantity)
	require.Equal(t, 4, mugReloaded.Quantity)

	var cartCount int64
	require.NoError(t, f.conn.Model(&models.CartItem{}).Where("user_id = ?", userID).Count(&cartCount).Error)
	require.Zero(t, cartCount)
}

func TestPlaceOrderSequenceAdvances(t *testing.T) {
	f := buildCheckoutService(t, setupCheckoutTestDB(t))
	ctx := context.Background()

	product := f.seedProduct(t, "15.00", 10)

	first := uuid.New()
	orderA, err := f.svc.PlaceOrder(ctx, first, f.placeInput(t, first, line(product, 1)))
	require.NoError(t, err)

	second := uuid.New()
	orderB, err := f.svc.PlaceOrder(ctx, second, f.placeInput(t, second, line(product, 1)))
	require.NoError(t, err)

	prefix := fmt.Sprintf("ORD-%s-", time.Now().UTC().Format("060102"))
	require.Equal(t, prefix+"0001", orderA.OrderNumber)
	require.Equal(t, prefix+"0002", orderB.OrderNumber)
}

func TestPlaceOrderInsufficientStockRollsBack(t *testing.T) {
	f := buildCheckoutService(t, setupCheckoutTestDB(t))
	ctx := context.Background()
	userID := uuid.New()

	plenty := f.seedProduct(t, "20.00", 10)
	scarce := f.seedProduct(t, "30.00", 1)
	f.addToCart(t, userID, plenty, 2)
	f.addToCart(t, userID, scarce, 3)

	_, err := f.svc.PlaceOrder(ctx, userID, f.placeInput(t, userID, line(plenty, 2), line(scarce, 3)))
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	require.Equal(t, pkgerrors.CodeInsufficientStock, typed.Code())

	// Nothing moved: stock, cart, and orders are all untouched.
	var reloaded models.Product
	require.NoError(t, f.conn.First(&reloaded, "id = ?", plenty.ID).Error)
	require.Equal(t, 10, reloaded.Quantity)

	var cartCount, orderCount int64
	require.NoError(t, f.conn.Model(&models.CartItem{}).Where("user_id = ?", userID).Count(&cartCount).Error)
	require.NoError(t, f.conn.Model(&models.Order{}).Count(&orderCount).Error)
	require.EqualValues(t, 2, cartCount)
	require.Zero(t, orderCount)
}

func TestPlaceOrderCompetingCheckoutsNeverOversell(t *testing.T) {
	f := buildCheckoutService(t, setupCheckoutTestDB(t))
	ctx := context.Background()

	// SQLite holds one writer at a time. Pinning the pool to a single
	// connection keeps both goroutines racing through PlaceOrder without
	// tripping driver-level table locks.
	sqlDB, err := f.conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	lastUnit := f.seedProduct(t, "50.00", 1)

	shoppers := []uuid.UUID{uuid.New(), uuid.New()}
	inputs := make([]PlaceOrderInput, len(shoppers))
	for i, id := range shoppers {
		inputs[i] = f.placeInput(t, id, line(lastUnit, 1))
	}

	results := make([]error, len(shoppers))
	start := make(chan struct{})
	var wg sync.WaitGroup
	for i := range shoppers {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, results[i] = f.svc.PlaceOrder(ctx, shoppers[i], inputs[i])
		}(i)
	}
	close(start)
	wg.Wait()

	var wins int
	for _, err := range results {
		if err == nil {
			wins++
			continue
		}
		typed := pkgerrors.As(err)
		require.NotNil(t, typed, "unexpected error: %v", err)
		require.Equal(t, pkgerrors.CodeInsufficientStock, typed.Code())
	}
	require.Equal(t, 1, wins)

	var reloaded models.Product
	require.NoError(t, f.conn.First(&reloaded, "id = ?", lastUnit.ID).Error)
	require.Equal(t, 0, reloaded.Quantity)

	var orderCount int64
	require.NoError(t, f.conn.Model(&models.Order{}).Count(&orderCount).Error)
	require.EqualValues(t, 1, orderCount)
}

func TestPlaceOrderFreeShippingPastThreshold(t *testing.T) {
	f := buildCheckoutService(t, setupCheckoutTestDB(t))
	ctx := context.Background()
	userID := uuid.New()

	product := f.seedProduct(t, "100.01", 2)

	order, err := f.svc.PlaceOrder(ctx, userID, f.placeInput(t, userID, line(product, 1)))
	require.NoError(t, err)
	require.True(t, order.ShippingAmount.IsZero(), "shipping %s", order.ShippingAmount)
}

func TestPlaceOrderRequiresCartItems(t *testing.T) {
	f := buildCheckoutService(t, setupCheckoutTestDB(t))
	ctx := context.Background()
	userID := uuid.New()

	_, err := f.svc.PlaceOrder(ctx, userID, f.placeInput(t, userID))
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	require.Equal(t, pkgerrors.CodeValidation, typed.Code())
}

func TestPlaceOrderForeignAddressRejected(t *testing.T) {
	f := buildCheckoutService(t, setupCheckoutTestDB(t))
	ctx := context.Background()
	userID := uuid.New()

	product := f.seedProduct(t, "10.00", 5)

	foreign := f.seedAddress(t, uuid.New())
	_, err := f.svc.PlaceOrder(ctx, userID, PlaceOrderInput{
		CartItems:         []LineInput{line(product, 1)},
		ShippingAddressID: foreign.ID,
		PaymentMethod:     "card",
	})
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	require.Equal(t, pkgerrors.CodeValidation, typed.Code())
}

func TestQuoteTotals(t *testing.T) {
	f := buildCheckoutService(t, setupCheckoutTestDB(t))
	ctx := context.Background()
	userID := uuid.New()

	product := f.seedProduct(t, "30.00", 5)
	f.addToCart(t, userID, product, 2)

	totals, err := f.svc.QuoteTotals(ctx, userID)
	require.NoError(t, err)
	require.True(t, totals.Subtotal.Equal(decimal.RequireFromString("60.00")))
	require.True(t, totals.Total.Equal(decimal.RequireFromString("74.79")))
}
