package products

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/brightcart/storefront-backend/pkg/db/models"
	"github.com/brightcart/storefront-backend/pkg/pagination"
)

func setupProductsTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := "file:products_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
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
);`
	require.NoError(t, db.Exec(schema).Error)
	return db
}

func seedProduct(t *testing.T, db *gorm.DB, qty int) *models.Product {
	t.Helper()
	product := &models.Product{
		ID:       uuid.New(),
		SKU:      "SKU-" + uuid.NewString()[:8],
		Name:     "Canvas Tote",
		Price:    decimal.NewFromFloat(19.99),
		Quantity: qty,
		IsActive: true,
	}
	require.NoError(t, db.Create(product).Error)
	return product
}

func TestDecrementStockGuardsAgainstOversell(t *testing.T) {
	db := setupProductsTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	product := seedProduct(t, db, 5)

	ok, err := repo.DecrementStock(ctx, product.ID, 3)
	require.NoError(t, err)
	require.True(t, ok)

	// Only 2 left, asking for 3 must not win and must not change the row.
	ok, err = repo.DecrementStock(ctx, product.ID, 3)
	require.NoError(t, err)
	require.False(t, ok)

	var reloaded models.Product
	require.NoError(t, db.First(&reloaded, "id = ?", product.ID).Error)
	require.Equal(t, 2, reloaded.Quantity)
}

func TestDecrementStockExactRemainder(t *testing.T) {
	db := setupProductsTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	product := seedProduct(t, db, 4)

	ok, err := repo.DecrementStock(ctx, product.ID, 4)
	require.NoError(t, err)
	require.True(t, ok)

	var reloaded models.Product
	require.NoError(t, db.First(&reloaded, "id = ?", product.ID).Error)
	require.Equal(t, 0, reloaded.Quantity)
}

func TestRestoreStock(t *testing.T) {
	db := setupProductsTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	product := seedProduct(t, db, 1)
	require.NoError(t, repo.RestoreStock(ctx, product.ID, 3))

	var reloaded models.Product
	require.NoError(t, db.First(&reloaded, "id = ?", product.ID).Error)
	require.Equal(t, 4, reloaded.Quantity)
}

func TestListFiltersInactive(t *testing.T) {
	db := setupProductsTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	active := seedProduct(t, db, 2)
	inactive := seedProduct(t, db, 2)
	require.NoError(t, db.Model(&models.Product{}).Where("id = ?", inactive.ID).Update("is_active", false).Error)

	rows, total, err := repo.List(ctx, pagination.Params{}, ListFilters{OnlyActive: true})
	require.NoError(t, err)
	require.EqualValues(t, 1, total)
	require.Len(t, rows, 1)
	require.Equal(t, active.ID, rows[0].ID)
}

func TestUpdateMissingProduct(t *testing.T) {
	db := setupProductsTestDB(t)
	repo := NewRepository(db)

	err := repo.Update(context.Background(), uuid.New(), map[string]any{"name": "x"})
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
}
