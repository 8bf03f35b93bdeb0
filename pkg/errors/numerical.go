package errors

import (
	"math"
)

// maxReportedValues bounds how many offending values an instability error carries.
const maxReportedValues = 10

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// CheckNumericalStability returns a NumericalInstabilityError listing the
// NaN or Inf entries of values, or nil when all are finite.
func CheckNumericalStability(operation string, values []float64, iteration int) error {
	var bad []float64
	for _, v := range values {
		if !finite(v) {
			bad = append(bad, v)
			if len(bad) == maxReportedValues {
				break
			}
		}
	}
	if len(bad) > 0 {
		return NewNumericalInstabilityError(operation, bad, iteration)
	}
	return nil
}

// CheckScalar is CheckNumericalStability for a single value, such as an
// epoch loss or one prediction.
func CheckScalar(operation string, value float64, iteration int) error {
	if !finite(value) {
		return NewNumericalInstabilityError(operation, []float64{value}, iteration)
	}
	return nil
}
