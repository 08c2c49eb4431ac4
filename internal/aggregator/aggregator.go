package aggregator

import (
	"sort"
	"strings"
	"time"

	"github.com/bighogz/Kirana-Predict/internal/models"
)

const dateLayout = "2006-01-02"

// Observations returns one observation per sale row of product, ascending
// by date. Rows are not merged; the forecaster counts raw rows.
func Observations(sales []models.Sale, product string) []models.Observation {
	out := make([]models.Observation, 0)
	for _, s := range sales {
		if !sameProduct(s.ProductName, product) {
			continue
		}
		out = append(out, models.Observation{Date: s.TransactionDate, Quantity: s.Quantity})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

// Window keeps observations on or after the latest date minus days.
func Window(obs []models.Observation, days int) []models.Observation {
	if len(obs) == 0 {
		return obs
	}
	var latest time.Time
	for _, o := range obs {
		if o.Date.After(latest) {
			latest = o.Date
		}
	}
	cutoff := latest.AddDate(0, 0, -days)
	out := make([]models.Observation, 0, len(obs))
	for _, o := range obs {
		if !o.Date.Before(cutoff) {
			out = append(out, o)
		}
	}
	return out
}

// DailyTotals sums observations per calendar day, ascending.
func DailyTotals(obs []models.Observation) []models.Observation {
	byDate := make(map[string]int)
	for _, o := range obs {
		byDate[o.Date.Format(dateLayout)] += o.Quantity
	}
	keys := make([]string, 0, len(byDate))
	for k := range byDate {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]models.Observation, 0, len(keys))
	for _, k := range keys {
		dt, _ := time.Parse(dateLayout, k)
		out = append(out, models.Observation{Date: dt, Quantity: byDate[k]})
	}
	return out
}

type ProductTotal struct {
	Product  string `json:"product"`
	Quantity int    `json:"quantity"`
}

// TopProducts ranks products by units sold between from and to
// inclusive. A zero from or to leaves that side open. Ties go to the
// alphabetically first name.
func TopProducts(sales []models.Sale, from, to time.Time, n int) []ProductTotal {
	totals := make(map[string]int)
	names := make(map[string]string)
	for _, s := range sales {
		d := models.Day(s.TransactionDate)
		if !from.IsZero() && d.Before(models.Day(from)) {
			continue
		}
		if !to.IsZero() && d.After(models.Day(to)) {
			continue
		}
		k := strings.ToLower(strings.TrimSpace(s.ProductName))
		totals[k] += s.Quantity
		if _, ok := names[k]; !ok {
			names[k] = strings.TrimSpace(s.ProductName)
		}
	}
	out := make([]ProductTotal, 0, len(totals))
	for k, q := range totals {
		out = append(out, ProductTotal{Product: names[k], Quantity: q})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Quantity != out[j].Quantity {
			return out[i].Quantity > out[j].Quantity
		}
		return out[i].Product < out[j].Product
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

type WeekTotal struct {
	WeekEnding time.Time `json:"week_ending"`
	Quantity   int       `json:"quantity"`
}

// WeeklyTotals buckets sales into weeks ending on Sunday. Weeks with no
// sales between the first and last bucket are reported as zero.
func WeeklyTotals(sales []models.Sale) []WeekTotal {
	if len(sales) == 0 {
		return nil
	}
	byWeek := make(map[time.Time]int)
	var first, last time.Time
	for _, s := range sales {
		w := weekEnding(s.TransactionDate)
		byWeek[w] += s.Quantity
		if first.IsZero() || w.Before(first) {
			first = w
		}
		if w.After(last) {
			last = w
		}
	}
	out := make([]WeekTotal, 0, len(byWeek))
	for w := first; !w.After(last); w = w.AddDate(0, 0, 7) {
		out = append(out, WeekTotal{WeekEnding: w, Quantity: byWeek[w]})
	}
	return out
}

func weekEnding(t time.Time) time.Time {
	d := models.Day(t)
	offset := (7 - int(d.Weekday())) % 7
	return d.AddDate(0, 0, offset)
}

// Dedupe drops rows whose transaction ID was already seen, keeping the
// first. Rows without an ID are always kept since two identical sales on
// one day are legitimate.
func Dedupe(sales []models.Sale) []models.Sale {
	seen := make(map[string]bool)
	out := make([]models.Sale, 0, len(sales))
	for _, s := range sales {
		key := keyFor(s)
		if key != "" && seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, s)
	}
	return out
}

func keyFor(s models.Sale) string {
	id := strings.TrimSpace(s.TransactionID)
	if id == "" {
		return ""
	}
	return strings.ToUpper(id)
}

func sameProduct(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
