// Package ingest reads transaction exports (CSV or XLSX) into sales rows
// and loads them into a store.
package ingest

import (
	"context"
	"encoding/csv"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"

	"github.com/bighogz/Kirana-Predict/internal/aggregator"
	"github.com/bighogz/Kirana-Predict/internal/forecast"
	"github.com/bighogz/Kirana-Predict/internal/models"
	"github.com/bighogz/Kirana-Predict/internal/store"
)

var headerAliases = map[string]string{
	"transaction_date": "date",
	"date":             "date",
	"sale_date":        "date",
	"product_name":     "product",
	"product":          "product",
	"item":             "product",
	"item_name":        "product",
	"quantity":         "quantity",
	"qty":              "quantity",
	"units":            "quantity",
	"transaction_id":   "id",
	"id":               "id",
}

// Exports are day-first (DD-MM-YYYY) unless they carry an ISO date.
var dateLayouts = []string{
	"02-01-2006",
	"02/01/2006",
	"2-1-2006",
	"2/1/2006",
	"02-01-2006 15:04",
	"02/01/2006 15:04",
	"2006-01-02",
	"2006-01-02 15:04:05",
	time.RFC3339,
}

func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, errors.Wrapf(forecast.ErrInvalidInput, "unparseable date %q", s)
}

type columns struct {
	date, product, quantity, id int
}

func findColumns(header []string) (columns, error) {
	c := columns{-1, -1, -1, -1}
	for i, h := range header {
		key := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		key = strings.ReplaceAll(key, " ", "_")
		switch headerAliases[key] {
		case "date":
			if c.date < 0 {
				c.date = i
			}
		case "product":
			if c.product < 0 {
				c.product = i
			}
		case "quantity":
			if c.quantity < 0 {
				c.quantity = i
			}
		case "id":
			if c.id < 0 {
				c.id = i
			}
		}
	}
	if c.date < 0 || c.product < 0 || c.quantity < 0 {
		return c, errors.Wrap(forecast.ErrInvalidInput, "header must name transaction_date, product_name and quantity columns")
	}
	return c, nil
}

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// parseRows turns a header row plus data rows into sales. Blank rows are
// skipped; any malformed row fails the whole batch.
func parseRows(rows [][]string, source string) ([]models.Sale, error) {
	if len(rows) == 0 {
		return nil, errors.Wrap(forecast.ErrInvalidInput, "file is empty")
	}
	cols, err := findColumns(rows[0])
	if err != nil {
		return nil, err
	}
	out := make([]models.Sale, 0, len(rows)-1)
	for i, row := range rows[1:] {
		line := i + 2
		if blank(row) {
			continue
		}
		product := cell(row, cols.product)
		if product == "" {
			return nil, errors.Wrapf(forecast.ErrInvalidInput, "line %d: empty product name", line)
		}
		date, err := ParseDate(cell(row, cols.date))
		if err != nil {
			return nil, errors.Wrapf(err, "line %d", line)
		}
		qty, err := parseQuantity(cell(row, cols.quantity))
		if err != nil {
			return nil, errors.Wrapf(err, "line %d", line)
		}
		out = append(out, models.Sale{
			TransactionID:   cell(row, cols.id),
			ProductName:     product,
			Quantity:        qty,
			TransactionDate: date,
			DataSource:      source,
		})
	}
	return out, nil
}

// parseQuantity accepts integers and whole-number floats such as "3.0".
func parseQuantity(s string) (int, error) {
	if n, err := strconv.Atoi(s); err == nil {
		if n < 0 {
			return 0, errors.Wrapf(forecast.ErrInvalidInput, "negative quantity %d", n)
		}
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != float64(int(f)) {
		return 0, errors.Wrapf(forecast.ErrInvalidInput, "non-numeric quantity %q", s)
	}
	if f < 0 {
		return 0, errors.Wrapf(forecast.ErrInvalidInput, "negative quantity %q", s)
	}
	return int(f), nil
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func ParseCSV(r io.Reader) ([]models.Sale, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, errors.Wrap(err, "ParseCSV ReadAll")
	}
	return parseRows(rows, models.SourceCSV)
}

// ParseXLSX reads the first sheet of a workbook.
func ParseXLSX(r io.Reader) ([]models.Sale, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, errors.Wrap(err, "ParseXLSX OpenReader")
	}
	defer f.Close()
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.Wrap(forecast.ErrInvalidInput, "workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, errors.Wrap(err, "ParseXLSX GetRows")
	}
	return parseRows(rows, models.SourceXLSX)
}

// Parse picks the reader by file name or content type.
func Parse(r io.Reader, name string) ([]models.Sale, error) {
	n := strings.ToLower(name)
	if strings.HasSuffix(n, ".xlsx") || strings.Contains(n, "spreadsheetml") {
		return ParseXLSX(r)
	}
	return ParseCSV(r)
}

type Summary struct {
	Read       int `json:"read"`
	Inserted   int `json:"inserted"`
	Duplicates int `json:"duplicates"`
}

// Import writes sales into st, skipping rows already present.
func Import(ctx context.Context, st store.Store, sales []models.Sale, log *logrus.Logger) (Summary, error) {
	sum := Summary{Read: len(sales)}
	unique := aggregator.Dedupe(sales)
	sum.Duplicates = len(sales) - len(unique)
	for _, s := range unique {
		if _, err := st.AddSale(ctx, s); err != nil {
			if errors.Is(err, store.ErrDuplicateSale) {
				sum.Duplicates++
				continue
			}
			return sum, errors.Wrapf(err, "import %s on %s", s.ProductName, s.TransactionDate.Format("2006-01-02"))
		}
		sum.Inserted++
	}
	log.WithFields(logrus.Fields{
		"read":       sum.Read,
		"inserted":   sum.Inserted,
		"duplicates": sum.Duplicates,
	}).Info("sales import finished")
	return sum, nil
}
