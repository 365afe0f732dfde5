package yahoo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"time"

	"github.com/quantoshi/hedgefolio/internal/core"
)

const defaultBaseURL = "https://query1.finance.yahoo.com/v8/finance/chart"

// validSymbol matches symbols like ^TWII, 00631L.TW, AAPL, 0700.HK
var validSymbol = regexp.MustCompile(`^\^?[A-Za-z0-9]{1,10}(\.[A-Za-z]{1,4})?$`)

// validateSymbol checks if a symbol has valid format
func validateSymbol(symbol string) error {
	if symbol == "" {
		return fmt.Errorf("symbol cannot be empty")
	}
	if len(symbol) > 20 {
		return fmt.Errorf("symbol too long: %s", symbol)
	}
	if !validSymbol.MatchString(symbol) {
		return fmt.Errorf("invalid symbol format: %s", symbol)
	}
	return nil
}

// Yahoo fetches daily closes for the index and instrument symbols from the
// Yahoo Finance chart API and joins them by calendar date. Dates present for
// only one of the two symbols are dropped.
type Yahoo struct {
	client           *http.Client
	baseURL          string
	indexSymbol      string
	instrumentSymbol string
}

// New creates a Yahoo provider for the given symbol pair.
func New(indexSymbol, instrumentSymbol string) (*Yahoo, error) {
	if err := validateSymbol(indexSymbol); err != nil {
		return nil, core.WrapError(core.ErrConfigInvalid, err)
	}
	if err := validateSymbol(instrumentSymbol); err != nil {
		return nil, core.WrapError(core.ErrConfigInvalid, err)
	}
	return &Yahoo{
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		baseURL:          defaultBaseURL,
		indexSymbol:      indexSymbol,
		instrumentSymbol: instrumentSymbol,
	}, nil
}

// WithBaseURL points the provider at an alternate chart endpoint.
func (y *Yahoo) WithBaseURL(url string) *Yahoo {
	y.baseURL = url
	return y
}

func (y *Yahoo) Name() string {
	return "yahoo"
}

// FetchDaily fetches both symbols and inner-joins their daily closes.
func (y *Yahoo) FetchDaily(ctx context.Context, start, end time.Time) ([]core.PriceObservation, error) {
	indexCloses, err := y.fetchCloses(ctx, y.indexSymbol, start, end)
	if err != nil {
		return nil, err
	}
	instrumentCloses, err := y.fetchCloses(ctx, y.instrumentSymbol, start, end)
	if err != nil {
		return nil, err
	}

	series := make([]core.PriceObservation, 0, len(indexCloses))
	for dateStr, indexPrice := range indexCloses {
		instrumentPrice, ok := instrumentCloses[dateStr]
		if !ok {
			continue
		}
		date, err := time.Parse(core.DateLayout, dateStr)
		if err != nil {
			continue
		}
		obs := core.PriceObservation{
			Date:            date,
			IndexPrice:      indexPrice,
			InstrumentPrice: instrumentPrice,
		}
		if obs.IsValid() {
			series = append(series, obs)
		}
	}
	if len(series) == 0 {
		return nil, core.WrapError(core.ErrNoData,
			fmt.Errorf("no overlapping trading days for %s and %s", y.indexSymbol, y.instrumentSymbol))
	}

	core.SortByDate(series)
	return series, nil
}

// fetchCloses returns close prices keyed by formatted date for one symbol.
func (y *Yahoo) fetchCloses(ctx context.Context, symbol string, start, end time.Time) (map[string]float64, error) {
	url := fmt.Sprintf("%s/%s?interval=1d&period1=%d&period2=%d",
		y.baseURL, symbol, start.Unix(), end.AddDate(0, 0, 1).Unix())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, core.WrapError(core.ErrPriceSourceFailed, err)
	}

	resp, err := y.client.Do(req)
	if err != nil {
		return nil, core.WrapError(core.ErrPriceSourceFailed,
			fmt.Errorf("fetching %s: %w", symbol, err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, core.WrapError(core.ErrPriceSourceFailed,
			fmt.Errorf("fetching %s: unexpected status %d", symbol, resp.StatusCode))
	}

	var result chartResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, core.WrapError(core.ErrPriceSourceFailed,
			fmt.Errorf("decoding %s response: %w", symbol, err))
	}

	if result.Chart.Error != nil {
		return nil, core.WrapError(core.ErrPriceSourceFailed,
			fmt.Errorf("%s: %s", symbol, result.Chart.Error.Description))
	}
	if len(result.Chart.Result) == 0 || len(result.Chart.Result[0].Indicators.Quote) == 0 {
		return nil, core.WrapError(core.ErrNoData,
			fmt.Errorf("no data for symbol %s", symbol))
	}

	r := result.Chart.Result[0]
	quotes := r.Indicators.Quote[0]

	closes := make(map[string]float64, len(r.Timestamp))
	for i, ts := range r.Timestamp {
		if i >= len(quotes.Close) || quotes.Close[i] == nil {
			continue // Skip missing data
		}
		date := time.Unix(int64(ts), 0).UTC().Format(core.DateLayout)
		closes[date] = *quotes.Close[i]
	}
	return closes, nil
}

// Yahoo API response types
type chartResponse struct {
	Chart struct {
		Result []chartResult `json:"result"`
		Error  *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

type chartResult struct {
	Timestamp  []int      `json:"timestamp"`
	Indicators indicators `json:"indicators"`
}

type indicators struct {
	Quote []quoteIndicator `json:"quote"`
}

type quoteIndicator struct {
	Close []*float64 `json:"close"`
}
