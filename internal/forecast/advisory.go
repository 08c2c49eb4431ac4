package forecast

import (
	"github.com/bighogz/Kirana-Predict/internal/models"
)

type Urgency string

const (
	UrgencyCritical Urgency = "CRITICAL"
	UrgencyLow      Urgency = "LOW"
	UrgencyHealthy  Urgency = "HEALTHY"
)

const (
	criticalBelowDays = 3.0
	lowBelowDays      = 7.0
)

// UrgencyFor maps a days-of-stock estimate to a tier. 3.0 is LOW and
// 7.0 is HEALTHY.
func UrgencyFor(daysRemaining float64) Urgency {
	switch {
	case daysRemaining < criticalBelowDays:
		return UrgencyCritical
	case daysRemaining < lowBelowDays:
		return UrgencyLow
	default:
		return UrgencyHealthy
	}
}

type Advisory struct {
	AverageDailyRate float64 `json:"average_daily_rate"`
	// DaysRemaining is 0, not +Inf, when nothing sold in the window, so a
	// product with no recent sales is reported CRITICAL.
	DaysRemaining float64 `json:"days_remaining"`
	Urgency       Urgency `json:"urgency"`
}

// Rounded returns a copy with the numbers rounded to one decimal for
// display. The tier is left as computed from the unrounded values.
func (a Advisory) Rounded() Advisory {
	a.AverageDailyRate = Round1(a.AverageDailyRate)
	a.DaysRemaining = Round1(a.DaysRemaining)
	return a
}

// Advise estimates how long currentStock lasts at the average rate over
// the days that had sales in observations.
func Advise(observations []models.Observation, currentStock int) (*Advisory, error) {
	if currentStock < 0 {
		return nil, invalid("current_stock must be >= 0, got %d", currentStock)
	}
	if err := validate(observations); err != nil {
		return nil, err
	}
	if len(observations) == 0 {
		return nil, ErrNoData
	}
	rate := AverageDailyRate(observations)
	var daysRemaining float64
	if rate > 0 {
		daysRemaining = float64(currentStock) / rate
	}
	return &Advisory{
		AverageDailyRate: rate,
		DaysRemaining:    daysRemaining,
		Urgency:          UrgencyFor(daysRemaining),
	}, nil
}

// AverageDailyRate divides total units by the number of distinct days
// present, not by the row count or the window length.
func AverageDailyRate(observations []models.Observation) float64 {
	days := dailyTotals(observations)
	if len(days) == 0 {
		return 0
	}
	var total int
	for _, d := range days {
		total += d.Quantity
	}
	return float64(total) / float64(len(days))
}
