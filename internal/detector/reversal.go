package detector

import (
	"math"

	"screener/pkg/model"
)

// ReversalConfig holds thresholds for the three-day reversal pattern.
// All percentages are expressed as positive magnitudes.
type ReversalConfig struct {
	SmallBearMin     float64 `yaml:"small_bear_min"`     // day1 minimum decline %
	SmallBearMax     float64 `yaml:"small_bear_max"`     // day1 maximum decline %
	BigBearMin       float64 `yaml:"big_bear_min"`       // day2 minimum decline %
	GapDownMin       float64 `yaml:"gap_down_min"`       // day3 minimum gap below day2 close %
	BullCloseMin     float64 `yaml:"bull_close_min"`     // day3 minimum gain %
	PriorDeclineDays int     `yaml:"prior_decline_days"` // lookback before the 3-bar window
	PriorDeclineMin  float64 `yaml:"prior_decline_min"`  // required decline % over that lookback
	MaxUpperShadow   float64 `yaml:"max_upper_shadow"`   // max upper wick % across the 3 bars
}

// DefaultReversalConfig returns the hand-tuned default thresholds
func DefaultReversalConfig() ReversalConfig {
	return ReversalConfig{
		SmallBearMin:     0.3,
		SmallBearMax:     2.0,
		BigBearMin:       3.0,
		GapDownMin:       0,
		BullCloseMin:     1.0,
		PriorDeclineDays: 22,
		PriorDeclineMin:  3,
		MaxUpperShadow:   30,
	}
}

// ReversalDetector matches a small bearish bar, then a large bearish bar,
// then a gap-down bar that closes strongly bullish, after a documented
// prior downtrend. The third bar is the reversal signal.
type ReversalDetector struct {
	config ReversalConfig
}

// NewReversalDetector creates a reversal detector with the given thresholds
func NewReversalDetector(cfg ReversalConfig) *ReversalDetector {
	return &ReversalDetector{config: cfg}
}

func (d *ReversalDetector) Name() string { return "reversal" }

func (d *ReversalDetector) Description() string {
	return "Three-day reversal - small decline, large decline, gap-down bullish recovery"
}

func (d *ReversalDetector) MinBars() int {
	return 3 + d.config.PriorDeclineDays
}

// Evaluate checks the last three bars of the series against the pattern
func (d *ReversalDetector) Evaluate(bars []model.Bar, code string) Result {
	cfg := d.config
	n := len(bars)
	if n < d.MinBars() {
		return NoMatch()
	}

	day1 := bars[n-3]
	day2 := bars[n-2]
	day3 := bars[n-1]

	// Cumulative decline before the 3-bar window
	priorStart := bars[n-3-cfg.PriorDeclineDays].Close
	priorEnd := bars[n-4].Close
	if priorStart == 0 {
		return NoMatch()
	}
	priorDecline := (priorEnd - priorStart) / priorStart * 100
	if cfg.PriorDeclineMin > 0 {
		if priorDecline >= 0 || math.Abs(priorDecline) < cfg.PriorDeclineMin {
			return NoMatch()
		}
	}

	if day1.Open == 0 || day2.Open == 0 || day3.Open == 0 || day2.Close == 0 {
		return NoMatch()
	}

	// Day 1: small bearish bar
	day1Change := day1.ChangePct()
	day1OK := day1.Close < day1.Open &&
		math.Abs(day1Change) >= cfg.SmallBearMin && math.Abs(day1Change) <= cfg.SmallBearMax

	// Day 2: large bearish bar
	day2Change := day2.ChangePct()
	day2OK := day2.Close < day2.Open && math.Abs(day2Change) >= cfg.BigBearMin

	// Day 3: gap down, close bullish and strong
	gapDown := (day3.Open - day2.Close) / day2.Close * 100
	day3Change := day3.ChangePct()
	day3OK := gapDown <= -cfg.GapDownMin && day3.Close > day3.Open && day3Change >= cfg.BullCloseMin

	day1NotEngulfed := !(day2.High >= day1.High && day2.Low <= day1.Low)
	day2Gap := (day2.Open - day1.Close) / day1.Close * 100

	maxShadow := math.Max(day1.UpperShadowPct(),
		math.Max(day2.UpperShadowPct(), day3.UpperShadowPct()))
	shadowOK := maxShadow <= cfg.MaxUpperShadow

	var contrast float64
	if math.Abs(day1Change) > 0 {
		contrast = math.Abs(day2Change) / math.Abs(day1Change)
	}

	if !day1OK || !day2OK || !day3OK || !shadowOK {
		return NoMatch()
	}

	score := 40.0
	score += math.Min(math.Abs(day2Change)-3, 5) * 2
	score += math.Min(math.Abs(gapDown), 3) * 2
	if day1NotEngulfed {
		score += 8
	}
	if day2Gap < 0 {
		score += math.Min(math.Abs(day2Gap), 2) * 5
	}
	if day3Change <= 3 {
		score += 8
	} else if day3Change <= 5 {
		score += 4
	}
	score += math.Min(contrast-1.5, 3) * 3.33
	switch {
	case maxShadow <= 10:
		score += 8
	case maxShadow <= 20:
		score += 5
	case maxShadow <= 30:
		score += 2
	}

	engulfed := 0.0
	if !day1NotEngulfed {
		engulfed = 1
	}

	return Result{
		Matched: true,
		Score:   clampScore(score),
		Details: map[string]float64{
			"day1_change":   round2(day1Change),
			"day2_change":   round2(day2Change),
			"day3_change":   round2(day3Change),
			"gap_down":      round2(gapDown),
			"day2_gap":      round2(day2Gap),
			"contrast":      math.Round(contrast*10) / 10,
			"shadow":        math.Round(maxShadow*10) / 10,
			"engulfed":      engulfed,
			"prior_decline": round2(priorDecline),
		},
		Tags: map[string]string{
			"day1_date": day1.Date.Format("2006-01-02"),
			"day2_date": day2.Date.Format("2006-01-02"),
			"day3_date": day3.Date.Format("2006-01-02"),
		},
	}
}
