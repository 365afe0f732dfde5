package core

import (
	"sort"
	"time"
)

// DateLayout is the calendar date format used across inputs and outputs.
const DateLayout = "2006-01-02"

// PriceObservation is one trading day of the paired daily series: the index
// close alongside the leveraged instrument close. Observations are immutable
// and supplied externally.
type PriceObservation struct {
	Date            time.Time `json:"date"`
	IndexPrice      float64   `json:"indexPrice"`
	InstrumentPrice float64   `json:"instrumentPrice"`
}

// IsValid checks if the observation has required fields
func (p PriceObservation) IsValid() bool {
	return !p.Date.IsZero() && p.IndexPrice > 0 && p.InstrumentPrice > 0
}

// SortByDate sorts observations ascending by date, in place.
func SortByDate(series []PriceObservation) {
	sort.Slice(series, func(i, j int) bool {
		return series[i].Date.Before(series[j].Date)
	})
}

// FilterRange returns the observations with start <= date <= end, preserving
// input order. Calendar gaps in the result are expected; consumers only look
// at consecutive entries.
func FilterRange(series []PriceObservation, start, end time.Time) []PriceObservation {
	out := make([]PriceObservation, 0, len(series))
	for _, obs := range series {
		if obs.Date.Before(start) || obs.Date.After(end) {
			continue
		}
		out = append(out, obs)
	}
	return out
}

// SameMonth reports whether two dates fall in the same calendar month.
func SameMonth(a, b time.Time) bool {
	return a.Year() == b.Year() && a.Month() == b.Month()
}
