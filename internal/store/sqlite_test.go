package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bighogz/Kirana-Predict/internal/models"
)

func openTestDB(t *testing.T) *SQLite {
	t.Helper()
	db, err := OpenSQLite(filepath.Join(t.TempDir(), "nested", "kirana.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestAddSaleAndQuery(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	saved, err := db.AddSale(ctx, models.Sale{ProductName: " Milk ", Quantity: 4, TransactionDate: day(2024, 1, 2)})
	require.NoError(t, err)
	assert.Equal(t, "Milk", saved.ProductName)
	assert.Equal(t, models.SourceManual, saved.DataSource)
	assert.NotEmpty(t, saved.TransactionID)

	_, err = db.AddSale(ctx, models.Sale{TransactionID: "T2", ProductName: "Bread", Quantity: 2, TransactionDate: day(2024, 1, 1), DataSource: models.SourceCSV})
	require.NoError(t, err)
	_, err = db.AddSale(ctx, models.Sale{TransactionID: "T3", ProductName: "milk", Quantity: 1, TransactionDate: day(2024, 1, 1)})
	require.NoError(t, err)

	all, err := db.AllSales(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, day(2024, 1, 1), all[0].TransactionDate)

	milk, err := db.SalesForProduct(ctx, "MILK")
	require.NoError(t, err)
	require.Len(t, milk, 2)
	assert.Equal(t, 1, milk[0].Quantity)
	assert.Equal(t, 4, milk[1].Quantity)

	products, err := db.Products(ctx)
	require.NoError(t, err)
	names := make([]string, len(products))
	for i, p := range products {
		names[i] = p.Name
	}
	assert.Equal(t, []string{"Bread", "Milk"}, names)
}

func TestAddSaleRejectsInvalidAndDuplicate(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	_, err := db.AddSale(ctx, models.Sale{ProductName: "", Quantity: 1, TransactionDate: day(2024, 1, 1)})
	assert.True(t, errors.Is(err, ErrInvalidSale))
	_, err = db.AddSale(ctx, models.Sale{ProductName: "Tea", Quantity: -1, TransactionDate: day(2024, 1, 1)})
	assert.True(t, errors.Is(err, ErrInvalidSale))
	_, err = db.AddSale(ctx, models.Sale{ProductName: "Tea", Quantity: 1})
	assert.True(t, errors.Is(err, ErrInvalidSale))

	s := models.Sale{TransactionID: "DUP", ProductName: "Tea", Quantity: 1, TransactionDate: day(2024, 1, 1)}
	_, err = db.AddSale(ctx, s)
	require.NoError(t, err)
	_, err = db.AddSale(ctx, s)
	assert.True(t, errors.Is(err, ErrDuplicateSale))
}

func TestRecentSales(t *testing.T) {
	db := openTestDB(t)
	db.now = func() time.Time { return day(2024, 3, 31) }
	ctx := context.Background()

	for i, d := range []time.Time{day(2024, 3, 1), day(2024, 3, 25), day(2024, 3, 30)} {
		_, err := db.AddSale(ctx, models.Sale{TransactionID: string(rune('a' + i)), ProductName: "Oil", Quantity: i + 1, TransactionDate: d})
		require.NoError(t, err)
	}
	recent, err := db.RecentSales(ctx, 7)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, day(2024, 3, 30), recent[0].TransactionDate)
}

func TestUpsertProduct(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	price := 42.5

	require.NoError(t, db.UpsertProduct(ctx, models.Product{Name: "Ghee", Category: "Dairy"}))
	require.NoError(t, db.UpsertProduct(ctx, models.Product{Name: "ghee", Category: "Dairy", UnitPrice: &price}))
	assert.Error(t, db.UpsertProduct(ctx, models.Product{}))

	products, err := db.Products(ctx)
	require.NoError(t, err)
	require.Len(t, products, 1)
	require.NotNil(t, products[0].UnitPrice)
	assert.Equal(t, 42.5, *products[0].UnitPrice)
}

func TestPrepareSaleGeneratesIDs(t *testing.T) {
	now := day(2024, 1, 1)
	a, err := PrepareSale(models.Sale{ProductName: "A", TransactionDate: now}, models.SourceAPI, now)
	require.NoError(t, err)
	b, err := PrepareSale(models.Sale{ProductName: "A", TransactionDate: now}, models.SourceAPI, now)
	require.NoError(t, err)
	assert.NotEqual(t, a.TransactionID, b.TransactionID)
	assert.Equal(t, models.SourceAPI, a.DataSource)
	assert.Equal(t, now, a.CreatedAt)
}
