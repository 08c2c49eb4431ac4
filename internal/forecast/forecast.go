// Package forecast projects per-product daily demand from sales history
// and turns it into a restock urgency. Every call is a pure function of
// its arguments.
package forecast

import (
	"sort"
	"time"

	"github.com/bighogz/Kirana-Predict/internal/models"
	"github.com/bighogz/Kirana-Predict/internal/trend"
)

const (
	DefaultHorizonDays = 7
	// MinObservations is the raw row count below which no fit is attempted.
	MinObservations = 7
	minDistinctDays = 2
)

type Point struct {
	Date      time.Time `json:"date"`
	Predicted float64   `json:"predicted"`
}

type Result struct {
	Points []Point `json:"points"`
	// FitScore is R² of the line against its training days. It can be
	// negative and is 1.0 for a constant history.
	FitScore float64    `json:"fit_score"`
	Line     trend.Line `json:"-"`
}

type Reliability string

const (
	ReliabilityHigh   Reliability = "high"
	ReliabilityMedium Reliability = "medium"
	ReliabilityLow    Reliability = "low"
)

// Reliability buckets the fit score for display.
func (r *Result) Reliability() Reliability {
	switch {
	case r.FitScore > 0.7:
		return ReliabilityHigh
	case r.FitScore > 0.4:
		return ReliabilityMedium
	default:
		return ReliabilityLow
	}
}

// TotalDemand is the units needed to cover the whole horizon.
func (r *Result) TotalDemand() float64 {
	var sum float64
	for _, p := range r.Points {
		sum += p.Predicted
	}
	return Round1(sum)
}

// Forecast fits a linear trend to the daily totals of observations and
// projects it horizonDays past the last observed day. Predictions are
// clamped at zero and rounded to one decimal.
func Forecast(observations []models.Observation, horizonDays int) (*Result, error) {
	if horizonDays < 1 {
		return nil, invalid("horizon_days must be >= 1, got %d", horizonDays)
	}
	if err := validate(observations); err != nil {
		return nil, err
	}
	if len(observations) < MinObservations {
		return nil, ErrInsufficientData
	}
	days := dailyTotals(observations)
	if len(days) < minDistinctDays {
		return nil, ErrInsufficientData
	}

	xs := make([]float64, len(days))
	ys := make([]float64, len(days))
	for i, d := range days {
		xs[i] = float64(ordinal(d.Date))
		ys[i] = float64(d.Quantity)
	}
	line := trend.Fit(xs, ys)
	preds := make([]float64, len(xs))
	for i, x := range xs {
		preds[i] = line.At(x)
	}

	last := days[len(days)-1].Date
	points := make([]Point, horizonDays)
	for i := range points {
		d := last.AddDate(0, 0, i+1)
		v := line.At(float64(ordinal(d)))
		if v < 0 {
			v = 0
		}
		points[i] = Point{Date: d, Predicted: Round1(v)}
	}
	return &Result{
		Points:   points,
		FitScore: trend.RSquared(ys, preds),
		Line:     line,
	}, nil
}

func validate(observations []models.Observation) error {
	for i, o := range observations {
		if o.Date.IsZero() {
			return invalid("observation %d: missing date", i)
		}
	}
	return nil
}

// dailyTotals sums quantities per calendar day, ascending by date.
// Negative quantities count as zero.
func dailyTotals(observations []models.Observation) []models.Observation {
	byDay := make(map[time.Time]int)
	for _, o := range observations {
		q := o.Quantity
		if q < 0 {
			q = 0
		}
		byDay[models.Day(o.Date)] += q
	}
	out := make([]models.Observation, 0, len(byDay))
	for d, q := range byDay {
		out = append(out, models.Observation{Date: d, Quantity: q})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

// ordinal is the number of days since the Unix epoch.
func ordinal(day time.Time) int64 {
	return models.Day(day).Unix() / 86400
}
