package detector

import (
	"math"

	"screener/pkg/model"
)

// Result is the outcome of running one detector against one bar series.
// Details carries the numeric attributes of the matched pattern and Tags
// the string ones (dates, limit-up shape). Both are nil when not matched.
type Result struct {
	Matched bool               `json:"matched"`
	Score   int                `json:"score"`
	Details map[string]float64 `json:"details,omitempty"`
	Tags    map[string]string  `json:"tags,omitempty"`
}

// NoMatch is the zero result returned for series that are too short,
// malformed, or simply do not show the pattern.
func NoMatch() Result {
	return Result{}
}

// Detector is a single candlestick pattern detector. Evaluate is pure:
// it never mutates the series and never returns an error — bad input is
// reported as an unmatched Result.
type Detector interface {
	// Name returns the detector name used in reports and the hit map
	Name() string

	// Description returns a one-line human readable description
	Description() string

	// MinBars returns the minimum series length the detector requires
	MinBars() int

	// Evaluate runs the detector against a bar series. code is the
	// 6-digit symbol code, used for board-dependent limit-up thresholds.
	Evaluate(bars []model.Bar, code string) Result
}

// clampScore clamps to [0,100] and rounds to the nearest integer
func clampScore(score float64) int {
	return int(math.Round(math.Min(100, math.Max(0, score))))
}

// linearMap maps value from [low,high] onto [scoreLow,scoreHigh],
// clamping the input ratio to [0,1]. Works for reversed ranges too
// (low > high), which the pullback-tightness component relies on.
func linearMap(value, low, high, scoreLow, scoreHigh float64) float64 {
	if high == low {
		if value >= high {
			return scoreHigh
		}
		return scoreLow
	}
	ratio := (value - low) / (high - low)
	ratio = math.Max(0, math.Min(1, ratio))
	return scoreLow + ratio*(scoreHigh-scoreLow)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
