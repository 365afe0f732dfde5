package pricesource

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/quantoshi/hedgefolio/internal/core"
)

// CSVSource reads a price series from a local file with the columns
// date,index,instrument. A header row is skipped if present.
type CSVSource struct {
	path string
}

// NewCSVSource creates a CSV-backed provider for the given file.
func NewCSVSource(path string) *CSVSource {
	return &CSVSource{path: path}
}

func (s *CSVSource) Name() string {
	return "csv"
}

// FetchDaily loads the file and returns rows inside [start, end], sorted by
// date. Duplicate dates are rejected rather than silently merged.
func (s *CSVSource) FetchDaily(ctx context.Context, start, end time.Time) ([]core.PriceObservation, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, core.WrapError(core.ErrPriceSourceFailed, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = 3

	var series []core.PriceObservation
	seen := make(map[string]bool)
	line := 0
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, core.WrapError(core.ErrPriceSourceFailed,
				fmt.Errorf("line %d: %w", line+1, err))
		}
		line++

		// Tolerate a header row.
		if line == 1 && strings.EqualFold(strings.TrimSpace(record[0]), "date") {
			continue
		}

		dateStr := strings.TrimSpace(record[0])
		date, err := time.Parse(core.DateLayout, dateStr)
		if err != nil {
			return nil, core.WrapError(core.ErrPriceSourceFailed,
				fmt.Errorf("line %d: bad date %q: %w", line, dateStr, err))
		}
		if seen[dateStr] {
			return nil, core.WrapError(core.ErrPriceSourceFailed,
				fmt.Errorf("line %d: duplicate date %s", line, dateStr))
		}
		seen[dateStr] = true

		indexPrice, err := strconv.ParseFloat(strings.TrimSpace(record[1]), 64)
		if err != nil {
			return nil, core.WrapError(core.ErrPriceSourceFailed,
				fmt.Errorf("line %d: bad index price: %w", line, err))
		}
		instrumentPrice, err := strconv.ParseFloat(strings.TrimSpace(record[2]), 64)
		if err != nil {
			return nil, core.WrapError(core.ErrPriceSourceFailed,
				fmt.Errorf("line %d: bad instrument price: %w", line, err))
		}

		obs := core.PriceObservation{
			Date:            date,
			IndexPrice:      indexPrice,
			InstrumentPrice: instrumentPrice,
		}
		if !obs.IsValid() {
			return nil, core.WrapError(core.ErrPriceSourceFailed,
				fmt.Errorf("line %d: non-positive price", line))
		}
		series = append(series, obs)
	}

	core.SortByDate(series)
	filtered := core.FilterRange(series, start, end)
	if len(filtered) == 0 {
		return nil, core.ErrNoData
	}
	return filtered, nil
}
