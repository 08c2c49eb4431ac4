package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/bighogz/Kirana-Predict/internal/logging"
	"github.com/bighogz/Kirana-Predict/internal/planner"
	"github.com/bighogz/Kirana-Predict/internal/store"
)

const salesCSV = `transaction_date,product_name,quantity
01-04-2024,Milk,20
02-04-2024,Milk,20
03-04-2024,Milk,20
01-04-2024,Soap,1
02-04-2024,Soap,1
`

func newReporter(t *testing.T, opts options) (*reporter, *bytes.Buffer, string) {
	t.Helper()
	dir := t.TempDir()
	db, err := store.OpenSQLite(filepath.Join(dir, "k.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	path := filepath.Join(dir, "sales.csv")
	require.NoError(t, os.WriteFile(path, []byte(salesCSV), 0600))

	var out bytes.Buffer
	log := logging.Discard()
	return &reporter{
		store:   db,
		planner: planner.New(db, log, noop.NewTracerProvider().Tracer("test")),
		log:     log,
		out:     &out,
		opts:    opts,
	}, &out, path
}

func TestImportThenRestockToCSV(t *testing.T) {
	r, out, path := newReporter(t, options{restock: true, stock: 30, limit: 5})
	r.opts.importPath = path
	r.opts.csvPath = filepath.Join(t.TempDir(), "restock.csv")

	require.NoError(t, r.run(context.Background(), strings.NewReader("")))
	assert.Contains(t, out.String(), "Imported 5 of 5 rows")
	assert.Contains(t, out.String(), "CRITICAL")

	data, err := os.ReadFile(r.opts.csvPath)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "product,total_sold,average_daily_rate,days_remaining,urgency", lines[0])
	assert.Equal(t, "Milk,60,20.0,1.5,CRITICAL", lines[1])
	assert.Equal(t, "Soap,2,1.0,30.0,HEALTHY", lines[2])
}

func TestInteractiveMenu(t *testing.T) {
	r, out, path := newReporter(t, options{stock: 50, limit: 1})
	require.NoError(t, r.importFile(context.Background(), path))

	in := strings.NewReader("1\n2\n10\n9\n3\n")
	require.NoError(t, r.run(context.Background(), in))
	s := out.String()
	assert.Contains(t, s, "1. Milk")
	assert.Contains(t, s, "week ending 2024-04-07")
	assert.Contains(t, s, "Restock report (stock on hand: 10)")
	assert.Contains(t, s, "Unknown choice.")
	assert.Equal(t, 50, r.opts.stock)
}

func TestMenuRejectsBadStock(t *testing.T) {
	r, out, _ := newReporter(t, options{stock: 5, limit: 5})
	require.NoError(t, r.run(context.Background(), strings.NewReader("2\n-4\n3\n")))
	assert.Contains(t, out.String(), "Stock must be a whole number")
}

func TestTopWithNoData(t *testing.T) {
	r, out, _ := newReporter(t, options{top: true, limit: 3})
	require.NoError(t, r.run(context.Background(), nil))
	assert.Contains(t, out.String(), "(No data)")
}
