package indicator

import "math"

// Point is a single moving-average observation. Defined is false during the
// warm-up window, before a full period of prices is available. An explicit
// flag is used instead of a zero sentinel so "no value" can never collide
// with a real price.
type Point struct {
	Value   float64 `json:"value"`
	Defined bool    `json:"defined"`
}

// SMA calculates the Simple Moving Average of prices over period.
// The result has the same length as the input; entries before index
// period-1 are undefined. Defined values are rounded to 2 decimal places.
func SMA(prices []float64, period int) []Point {
	points := make([]Point, len(prices))
	if period <= 0 || len(prices) < period {
		return points
	}

	// Rolling sum over the trailing window
	var sum float64
	for i, p := range prices {
		sum += p
		if i >= period {
			sum -= prices[i-period]
		}
		if i >= period-1 {
			points[i] = Point{Value: Round2(sum / float64(period)), Defined: true}
		}
	}

	return points
}

// Round2 rounds to 2 decimal places (currency-like precision).
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
