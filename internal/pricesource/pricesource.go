// Package pricesource supplies the daily index/instrument price series the
// simulation consumes. Providers return a sorted, date-unique series; the
// engine never fetches data itself.
package pricesource

import (
	"context"
	"time"

	"github.com/quantoshi/hedgefolio/internal/core"
)

// Provider fetches a paired daily price series for a date range.
type Provider interface {
	Name() string
	FetchDaily(ctx context.Context, start, end time.Time) ([]core.PriceObservation, error)
}
