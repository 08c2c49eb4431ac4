package main

import (
	"bufio"
	"context"
	"encoding/csv"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/bighogz/Kirana-Predict/internal/aggregator"
	"github.com/bighogz/Kirana-Predict/internal/bootstrap"
	"github.com/bighogz/Kirana-Predict/internal/config"
	"github.com/bighogz/Kirana-Predict/internal/ingest"
	"github.com/bighogz/Kirana-Predict/internal/logging"
	"github.com/bighogz/Kirana-Predict/internal/planner"
	"github.com/bighogz/Kirana-Predict/internal/store"
	"github.com/bighogz/Kirana-Predict/internal/telemetry"
)

type options struct {
	top        bool
	restock    bool
	stock      int
	limit      int
	importPath string
	csvPath    string
}

type reporter struct {
	store   store.Store
	planner *planner.Planner
	log     *logrus.Logger
	out     io.Writer
	opts    options
}

func main() {
	cfg := config.Load()
	var opts options
	flag.BoolVar(&opts.top, "top", false, "Print top sellers and the weekly sales trend")
	flag.BoolVar(&opts.restock, "restock", false, "Print the restock report")
	flag.IntVar(&opts.stock, "stock", cfg.DefaultStock, "Stock on hand assumed for every product in the restock report")
	flag.IntVar(&opts.limit, "limit", cfg.TopN, "Number of products to report")
	flag.StringVar(&opts.importPath, "import", "", "Import a CSV or XLSX sales file before reporting")
	flag.StringVar(&opts.csvPath, "csv", "", "Write the report to CSV")
	flag.Parse()

	log := logging.New(cfg.LogLevel, os.Stderr)
	tracer, shutdown, err := telemetry.Setup(cfg.TraceStdout, os.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Tracing setup failed: %v\n", err)
		os.Exit(1)
	}
	defer shutdown(context.Background())

	ctx := context.Background()
	st, _, err := bootstrap.OpenStore(ctx, cfg, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Could not open sales store: %v\n", err)
		os.Exit(1)
	}
	defer st.Close()

	r := &reporter{store: st, planner: planner.New(st, log, tracer), log: log, out: os.Stdout, opts: opts}
	if err := r.run(ctx, os.Stdin); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func (r *reporter) run(ctx context.Context, in io.Reader) error {
	if r.opts.importPath != "" {
		if err := r.importFile(ctx, r.opts.importPath); err != nil {
			return err
		}
	}
	switch {
	case r.opts.top || r.opts.restock:
		if r.opts.top {
			if err := r.topSellers(ctx); err != nil {
				return err
			}
		}
		if r.opts.restock {
			return r.restockReport(ctx)
		}
		return nil
	case r.opts.importPath != "":
		return nil
	}
	return r.menu(ctx, in)
}

func (r *reporter) menu(ctx context.Context, in io.Reader) error {
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprintln(r.out, "\n1. Top sellers and weekly trend")
		fmt.Fprintln(r.out, "2. Restock report")
		fmt.Fprintln(r.out, "3. Exit")
		fmt.Fprint(r.out, "Choice: ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		var err error
		switch strings.TrimSpace(scanner.Text()) {
		case "1":
			err = r.topSellers(ctx)
		case "2":
			stock := r.opts.stock
			fmt.Fprintf(r.out, "Current stock per product [%d]: ", stock)
			if scanner.Scan() {
				if v := strings.TrimSpace(scanner.Text()); v != "" {
					n, convErr := strconv.Atoi(v)
					if convErr != nil || n < 0 {
						fmt.Fprintln(r.out, "Stock must be a whole number >= 0.")
						continue
					}
					stock = n
				}
			}
			prev := r.opts.stock
			r.opts.stock = stock
			err = r.restockReport(ctx)
			r.opts.stock = prev
		case "3", "q", "exit":
			return nil
		default:
			fmt.Fprintln(r.out, "Unknown choice.")
		}
		if err != nil {
			fmt.Fprintf(r.out, "Error: %v\n", err)
		}
	}
}

func (r *reporter) importFile(ctx context.Context, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrap(err, "open import file")
	}
	defer f.Close()
	sales, err := ingest.Parse(f, path)
	if err != nil {
		return err
	}
	sum, err := ingest.Import(ctx, r.store, sales, r.log)
	if err != nil {
		return err
	}
	fmt.Fprintf(r.out, "Imported %d of %d rows (%d duplicates skipped).\n", sum.Inserted, sum.Read, sum.Duplicates)
	return nil
}

func (r *reporter) topSellers(ctx context.Context) error {
	sales, err := r.store.AllSales(ctx)
	if err != nil {
		return err
	}
	top := aggregator.TopProducts(sales, time.Time{}, time.Time{}, r.opts.limit)
	fmt.Fprintf(r.out, "\nTop %d sellers:\n", r.opts.limit)
	if len(top) == 0 {
		fmt.Fprintln(r.out, "  (No data)")
	}
	for i, p := range top {
		fmt.Fprintf(r.out, "  %d. %-24s %6d units\n", i+1, p.Product, p.Quantity)
	}
	weeks := aggregator.WeeklyTotals(sales)
	fmt.Fprintln(r.out, "\nWeekly sales:")
	if len(weeks) == 0 {
		fmt.Fprintln(r.out, "  (No data)")
	}
	for _, w := range weeks {
		fmt.Fprintf(r.out, "  week ending %s  %6d units\n", w.WeekEnding.Format("2006-01-02"), w.Quantity)
	}

	if r.opts.csvPath == "" {
		return nil
	}
	rows := [][]string{{"rank", "product", "quantity"}}
	for i, p := range top {
		rows = append(rows, []string{strconv.Itoa(i + 1), p.Product, strconv.Itoa(p.Quantity)})
	}
	return r.writeCSV(rows)
}

func (r *reporter) restockReport(ctx context.Context) error {
	report, err := r.planner.RestockReport(ctx, r.opts.stock, r.opts.limit)
	if err != nil {
		return err
	}
	fmt.Fprintf(r.out, "\nRestock report (stock on hand: %d):\n", r.opts.stock)
	if len(report) == 0 {
		fmt.Fprintln(r.out, "  (No data)")
	}
	for _, e := range report {
		fmt.Fprintf(r.out, "  %-24s rate=%.1f/day  days_left=%.1f  %s\n",
			e.Product, e.AverageDailyRate, e.DaysRemaining, e.Urgency)
	}

	if r.opts.csvPath == "" {
		return nil
	}
	rows := [][]string{{"product", "total_sold", "average_daily_rate", "days_remaining", "urgency"}}
	for _, e := range report {
		rows = append(rows, []string{
			e.Product,
			strconv.Itoa(e.TotalSold),
			fmt.Sprintf("%.1f", e.AverageDailyRate),
			fmt.Sprintf("%.1f", e.DaysRemaining),
			string(e.Urgency),
		})
	}
	return r.writeCSV(rows)
}

func (r *reporter) writeCSV(rows [][]string) error {
	f, err := os.Create(r.opts.csvPath)
	if err != nil {
		return errors.Wrap(err, "could not create CSV")
	}
	defer f.Close()
	w := csv.NewWriter(f)
	if err := w.WriteAll(rows); err != nil {
		return errors.Wrap(err, "write CSV")
	}
	fmt.Fprintf(r.out, "\nWrote %s.\n", r.opts.csvPath)
	return nil
}
