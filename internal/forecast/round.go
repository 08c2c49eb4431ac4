package forecast

import (
	"math"

	"github.com/shopspring/decimal"
)

// Round1 rounds v to one decimal place, ties to even.
func Round1(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	f, _ := decimal.NewFromFloat(v).RoundBank(1).Float64()
	return f
}
