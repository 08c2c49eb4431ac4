// Package store holds sales transactions and the product catalogue.
package store

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"

	"github.com/bighogz/Kirana-Predict/internal/models"
)

var txnSeq atomic.Int64

// ErrInvalidSale is returned for rows that cannot be stored.
var ErrInvalidSale = errors.New("invalid sale")

// ErrDuplicateSale is returned when the transaction ID is already stored.
var ErrDuplicateSale = errors.New("duplicate transaction")

// Store is the table store the planner, dashboard and importers read
// from and write to. Implementations must be safe for concurrent use.
type Store interface {
	AddSale(ctx context.Context, s models.Sale) (models.Sale, error)
	AllSales(ctx context.Context) ([]models.Sale, error)
	SalesForProduct(ctx context.Context, product string) ([]models.Sale, error)
	// RecentSales returns sales from the last days days, newest first.
	RecentSales(ctx context.Context, days int) ([]models.Sale, error)
	Products(ctx context.Context) ([]models.Product, error)
	UpsertProduct(ctx context.Context, p models.Product) error
	Close() error
}

// PrepareSale validates s and fills the fields a new row needs.
func PrepareSale(s models.Sale, source string, now time.Time) (models.Sale, error) {
	s.ProductName = strings.TrimSpace(s.ProductName)
	if s.ProductName == "" {
		return s, errors.Wrap(ErrInvalidSale, "product_name is required")
	}
	if s.Quantity < 0 {
		return s, errors.Wrapf(ErrInvalidSale, "quantity must be >= 0, got %d", s.Quantity)
	}
	if s.TransactionDate.IsZero() {
		return s, errors.Wrap(ErrInvalidSale, "transaction_date is required")
	}
	if s.DataSource == "" {
		s.DataSource = source
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now.UTC()
	}
	if s.TransactionID == "" {
		s.TransactionID = fmt.Sprintf("TXN_%d_%d", now.UnixNano(), txnSeq.Add(1))
	}
	return s, nil
}
