package forecast

import "github.com/pkg/errors"

var (
	// ErrInsufficientData means the history cannot support a trend fit:
	// fewer than MinObservations rows, or fewer than two distinct days.
	ErrInsufficientData = errors.New("insufficient data for forecast")

	// ErrNoData means the advisory was given an empty series.
	ErrNoData = errors.New("no sales data")

	// ErrInvalidInput marks a caller contract violation. It is always
	// wrapped with the offending field.
	ErrInvalidInput = errors.New("invalid input")
)

func invalid(format string, args ...interface{}) error {
	return errors.Wrapf(ErrInvalidInput, format, args...)
}
