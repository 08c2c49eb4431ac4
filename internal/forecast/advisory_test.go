package forecast

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bighogz/Kirana-Predict/internal/models"
)

func TestAdviseHealthyAtThirtyDays(t *testing.T) {
	// 100 units over 30 selling days
	qty := make([]int, 30)
	for i := range qty {
		qty[i] = 3
	}
	qty[0], qty[1], qty[2], qty[3], qty[4], qty[5], qty[6], qty[7], qty[8], qty[9] = 4, 4, 4, 4, 4, 4, 4, 4, 4, 4
	obs := series(day(2024, 1, 1), qty...)

	adv, err := Advise(obs, 100)
	require.NoError(t, err)
	assert.InDelta(t, 100.0/30, adv.AverageDailyRate, 1e-12)
	assert.InDelta(t, 30.0, adv.DaysRemaining, 1e-9)
	assert.Equal(t, UrgencyHealthy, adv.Urgency)

	shown := adv.Rounded()
	assert.Equal(t, 3.3, shown.AverageDailyRate)
	assert.Equal(t, 30.0, shown.DaysRemaining)
	assert.Equal(t, UrgencyHealthy, shown.Urgency)
}

func TestAdviseZeroSalesIsCritical(t *testing.T) {
	obs := series(day(2024, 1, 1), 0, 0, 0)

	adv, err := Advise(obs, 500)
	require.NoError(t, err)
	assert.Equal(t, 0.0, adv.AverageDailyRate)
	assert.Equal(t, 0.0, adv.DaysRemaining)
	assert.Equal(t, UrgencyCritical, adv.Urgency)
}

func TestAdviseTierBoundaries(t *testing.T) {
	tests := []struct {
		name  string
		stock int
		want  Urgency
	}{
		{"just under three", 29, UrgencyCritical},
		{"exactly three", 30, UrgencyLow},
		{"just under seven", 69, UrgencyLow},
		{"exactly seven", 70, UrgencyHealthy},
		{"empty shelf", 0, UrgencyCritical},
	}
	obs := series(day(2024, 1, 1), 10, 10, 10)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			adv, err := Advise(obs, tt.stock)
			require.NoError(t, err)
			assert.Equal(t, tt.want, adv.Urgency)
		})
	}
}

func TestUrgencyUsesUnroundedDays(t *testing.T) {
	// 2.96 would display as 3.0 but is still CRITICAL
	assert.Equal(t, UrgencyCritical, UrgencyFor(2.96))
	assert.Equal(t, UrgencyLow, UrgencyFor(6.99))
	assert.Equal(t, UrgencyHealthy, UrgencyFor(7))
}

func TestAverageDailyRateDividesByDistinctDays(t *testing.T) {
	split := []models.Observation{
		{Date: day(2024, 1, 1), Quantity: 2},
		{Date: day(2024, 1, 1), Quantity: 3},
		{Date: day(2024, 1, 1), Quantity: 5},
	}
	single := []models.Observation{{Date: day(2024, 1, 1), Quantity: 10}}
	assert.Equal(t, AverageDailyRate(single), AverageDailyRate(split))
	assert.Equal(t, 10.0, AverageDailyRate(split))

	// sold on 2 of the days in a wider window
	sparse := []models.Observation{
		{Date: day(2024, 1, 1), Quantity: 6},
		{Date: day(2024, 1, 20), Quantity: 4},
	}
	assert.Equal(t, 5.0, AverageDailyRate(sparse))
}

func TestAdviseErrors(t *testing.T) {
	_, err := Advise(nil, 10)
	assert.True(t, errors.Is(err, ErrNoData))

	_, err = Advise(series(day(2024, 1, 1), 1), -1)
	assert.True(t, errors.Is(err, ErrInvalidInput))

	_, err = Advise([]models.Observation{{Quantity: 3}}, 1)
	assert.True(t, errors.Is(err, ErrInvalidInput))
}
