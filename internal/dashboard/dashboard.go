package dashboard

import (
	"context"
	"sort"
	"time"

	"github.com/pkg/errors"

	"github.com/bighogz/Kirana-Predict/internal/aggregator"
	"github.com/bighogz/Kirana-Predict/internal/models"
	"github.com/bighogz/Kirana-Predict/internal/store"
)

const (
	recentLimit  = 5
	defaultTopN  = 5
	defaultWeeks = 12
)

// Options narrows the top-seller ranking. Zero values mean unbounded.
type Options struct {
	From  time.Time
	To    time.Time
	TopN  int
	Weeks int
}

// Build summarises the whole sales table for the landing page.
func Build(ctx context.Context, st store.Store, opts Options) (map[string]interface{}, error) {
	sales, err := st.AllSales(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "dashboard sales")
	}
	products, err := st.Products(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "dashboard products")
	}
	if opts.TopN <= 0 {
		opts.TopN = defaultTopN
	}
	if opts.Weeks <= 0 {
		opts.Weeks = defaultWeeks
	}

	volume := 0
	var lastUpdate *string
	var latest time.Time
	for _, s := range sales {
		volume += s.Quantity
		if s.TransactionDate.After(latest) {
			latest = s.TransactionDate
		}
	}
	if !latest.IsZero() {
		v := latest.Format("2006-01-02")
		lastUpdate = &v
	}

	weekly := aggregator.WeeklyTotals(sales)
	if len(weekly) > opts.Weeks {
		weekly = weekly[len(weekly)-opts.Weeks:]
	}
	weeklyOut := make([]map[string]interface{}, 0, len(weekly))
	for _, w := range weekly {
		weeklyOut = append(weeklyOut, map[string]interface{}{
			"week_ending": w.WeekEnding.Format("2006-01-02"),
			"quantity":    w.Quantity,
		})
	}

	top := aggregator.TopProducts(sales, opts.From, opts.To, opts.TopN)
	topOut := make([]map[string]interface{}, 0, len(top))
	for _, p := range top {
		topOut = append(topOut, map[string]interface{}{
			"product_name": p.Product,
			"quantity":     p.Quantity,
		})
	}

	return map[string]interface{}{
		"total_products":     len(products),
		"total_sales_volume": volume,
		"last_update":        lastUpdate,
		"recent_activity":    recentActivity(sales),
		"top_sellers":        topOut,
		"weekly_sales":       weeklyOut,
	}, nil
}

func recentActivity(sales []models.Sale) []map[string]interface{} {
	sorted := make([]models.Sale, len(sales))
	copy(sorted, sales)
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].TransactionDate.Equal(sorted[j].TransactionDate) {
			return sorted[i].TransactionDate.After(sorted[j].TransactionDate)
		}
		return sorted[i].CreatedAt.After(sorted[j].CreatedAt)
	})
	if len(sorted) > recentLimit {
		sorted = sorted[:recentLimit]
	}
	out := make([]map[string]interface{}, 0, len(sorted))
	for _, s := range sorted {
		out = append(out, map[string]interface{}{
			"transaction_id":   s.TransactionID,
			"product_name":     s.ProductName,
			"quantity":         s.Quantity,
			"transaction_date": s.TransactionDate.Format("2006-01-02"),
			"data_source":      s.DataSource,
		})
	}
	return out
}
