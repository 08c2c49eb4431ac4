package store

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	_ "modernc.org/sqlite"

	"github.com/bighogz/Kirana-Predict/internal/models"
)

const schema = `
CREATE TABLE IF NOT EXISTS sales (
	transaction_id   TEXT NOT NULL PRIMARY KEY,
	product_name     TEXT NOT NULL,
	quantity         INTEGER NOT NULL,
	transaction_date TEXT NOT NULL,
	data_source      TEXT NOT NULL DEFAULT 'manual',
	created_at       TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS sales_product_idx ON sales(product_name COLLATE NOCASE);
CREATE INDEX IF NOT EXISTS sales_date_idx ON sales(transaction_date);
CREATE TABLE IF NOT EXISTS products (
	name       TEXT NOT NULL PRIMARY KEY COLLATE NOCASE,
	category   TEXT NOT NULL DEFAULT '',
	unit_price REAL
);`

const saleColumns = `transaction_id, product_name, quantity, transaction_date, data_source, created_at`

// SQLite is the local Store backed by a single database file.
type SQLite struct {
	db  *sql.DB
	now func() time.Time
}

// OpenSQLite opens (creating if needed) the database at path.
func OpenSQLite(path string) (*SQLite, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, errors.Wrap(err, "OpenSQLite MkdirAll")
		}
	}
	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, errors.Wrap(err, "OpenSQLite Open")
	}
	// one writer at a time; sqlite serializes anyway
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "OpenSQLite schema")
	}
	return &SQLite{db: db, now: time.Now}, nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) AddSale(ctx context.Context, sale models.Sale) (models.Sale, error) {
	sale, err := PrepareSale(sale, models.SourceManual, s.now())
	if err != nil {
		return sale, err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return sale, errors.Wrap(err, "AddSale Begin")
	}
	defer tx.Rollback()
	res, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO sales (`+saleColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		sale.TransactionID, sale.ProductName, sale.Quantity,
		sale.TransactionDate.UTC().Format(time.RFC3339), sale.DataSource,
		sale.CreatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return sale, errors.Wrap(err, "AddSale Insert")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sale, errors.Wrap(ErrDuplicateSale, sale.TransactionID)
	}
	_, err = tx.ExecContext(ctx, `INSERT OR IGNORE INTO products (name) VALUES (?)`, sale.ProductName)
	if err != nil {
		return sale, errors.Wrap(err, "AddSale Product")
	}
	if err := tx.Commit(); err != nil {
		return sale, errors.Wrap(err, "AddSale Commit")
	}
	return sale, nil
}

func (s *SQLite) AllSales(ctx context.Context) ([]models.Sale, error) {
	return s.querySales(ctx, "AllSales",
		`SELECT `+saleColumns+` FROM sales ORDER BY transaction_date, transaction_id`)
}

func (s *SQLite) SalesForProduct(ctx context.Context, product string) ([]models.Sale, error) {
	return s.querySales(ctx, "SalesForProduct",
		`SELECT `+saleColumns+` FROM sales WHERE product_name = ? COLLATE NOCASE ORDER BY transaction_date, transaction_id`,
		product)
}

func (s *SQLite) RecentSales(ctx context.Context, days int) ([]models.Sale, error) {
	since := s.now().UTC().AddDate(0, 0, -days).Format(time.RFC3339)
	return s.querySales(ctx, "RecentSales",
		`SELECT `+saleColumns+` FROM sales WHERE transaction_date >= ? ORDER BY transaction_date DESC, transaction_id`,
		since)
}

func (s *SQLite) querySales(ctx context.Context, op string, query string, args ...interface{}) ([]models.Sale, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, op+" Query")
	}
	defer rows.Close()
	out := make([]models.Sale, 0)
	for rows.Next() {
		var sale models.Sale
		var txDate, created string
		if err := rows.Scan(&sale.TransactionID, &sale.ProductName, &sale.Quantity, &txDate, &sale.DataSource, &created); err != nil {
			return nil, errors.Wrap(err, op+" Scan")
		}
		if sale.TransactionDate, err = time.Parse(time.RFC3339, txDate); err != nil {
			return nil, errors.Wrapf(err, "%s transaction_date %q", op, txDate)
		}
		sale.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
		out = append(out, sale)
	}
	return out, errors.Wrap(rows.Err(), op+" Rows")
}

func (s *SQLite) Products(ctx context.Context) ([]models.Product, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name, category, unit_price FROM products ORDER BY name`)
	if err != nil {
		return nil, errors.Wrap(err, "Products Query")
	}
	defer rows.Close()
	out := make([]models.Product, 0)
	for rows.Next() {
		var p models.Product
		var price sql.NullFloat64
		if err := rows.Scan(&p.Name, &p.Category, &price); err != nil {
			return nil, errors.Wrap(err, "Products Scan")
		}
		if price.Valid {
			v := price.Float64
			p.UnitPrice = &v
		}
		out = append(out, p)
	}
	return out, errors.Wrap(rows.Err(), "Products Rows")
}

func (s *SQLite) UpsertProduct(ctx context.Context, p models.Product) error {
	if p.Name == "" {
		return errors.New("UpsertProduct: name is required")
	}
	var price interface{}
	if p.UnitPrice != nil {
		price = *p.UnitPrice
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO products (name, category, unit_price) VALUES (?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET category = excluded.category, unit_price = excluded.unit_price`,
		p.Name, p.Category, price)
	return errors.Wrap(err, "UpsertProduct Exec")
}
