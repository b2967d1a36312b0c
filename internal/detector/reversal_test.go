package detector

import (
	"testing"
	"time"

	"screener/pkg/model"
)

// bar builds a daily bar with sequential dates starting 2024-01-02
func bar(day int, open, high, low, close, volume float64) model.Bar {
	return model.Bar{
		Date:   time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC).AddDate(0, 0, day),
		Open:   open,
		High:   high,
		Low:    low,
		Close:  close,
		Volume: volume,
	}
}

// flatBar builds a doji-like bar around a close, for preamble padding
func flatBar(day int, close float64) model.Bar {
	return bar(day, close+0.1, close+0.2, close-0.3, close, 1_000_000)
}

// reversalSeries builds a 30-bar series: a steady decline followed by the
// small-bear / big-bear / gap-down-recovery triple
func reversalSeries(day1Close float64) []model.Bar {
	bars := make([]model.Bar, 0, 30)
	// 27 preamble bars sliding down about 8.6% over the prior window
	for i := 0; i < 27; i++ {
		bars = append(bars, flatBar(i, 112-0.45*float64(i)))
	}
	// Day 1: small bearish bar
	bars = append(bars, bar(27, 100, 100.05, 98.8, day1Close, 1_000_000))
	// Day 2: large bearish bar, -4%
	bars = append(bars, bar(28, 99, 99.05, 94.9, 95.04, 1_200_000))
	// Day 3: gap down, closes +2%
	bars = append(bars, bar(29, 94.5, 96.5, 94.4, 96.39, 1_500_000))
	return bars
}

func TestReversalDetector_Match(t *testing.T) {
	d := NewReversalDetector(DefaultReversalConfig())

	res := d.Evaluate(reversalSeries(99), "600000")
	if !res.Matched {
		t.Fatal("Expected pattern to match")
	}

	// 40 base + 2 depth + 1.14 gap + 8 not engulfed + 0 day2 gap
	// + 8 moderate day3 + 8.33 contrast + 8 clean shadows = 75
	if res.Score != 75 {
		t.Errorf("Expected score 75, got %d", res.Score)
	}

	if res.Details["day1_change"] != -1.0 {
		t.Errorf("Expected day1_change -1.0, got %f", res.Details["day1_change"])
	}
	if res.Details["day2_change"] != -4.0 {
		t.Errorf("Expected day2_change -4.0, got %f", res.Details["day2_change"])
	}
	if res.Details["day3_change"] != 2.0 {
		t.Errorf("Expected day3_change 2.0, got %f", res.Details["day3_change"])
	}
	if res.Details["contrast"] != 4.0 {
		t.Errorf("Expected contrast 4.0, got %f", res.Details["contrast"])
	}
	if res.Details["engulfed"] != 0 {
		t.Errorf("Expected engulfed 0, got %f", res.Details["engulfed"])
	}
	if res.Details["prior_decline"] >= -3 {
		t.Errorf("Expected prior decline below -3%%, got %f", res.Details["prior_decline"])
	}
	if res.Tags["day3_date"] != "2024-01-31" {
		t.Errorf("Expected day3_date 2024-01-31, got %s", res.Tags["day3_date"])
	}
}

func TestReversalDetector_Day1Threshold(t *testing.T) {
	d := NewReversalDetector(DefaultReversalConfig())

	// -0.4% is inside the small-bear band
	if res := d.Evaluate(reversalSeries(99.6), "600000"); !res.Matched {
		t.Error("Expected -0.4% day1 to match")
	}
	// -0.2% is below the minimum decline
	if res := d.Evaluate(reversalSeries(99.8), "600000"); res.Matched {
		t.Error("Expected -0.2% day1 not to match")
	}
	// -2.5% exceeds the maximum decline
	if res := d.Evaluate(reversalSeries(97.5), "600000"); res.Matched {
		t.Error("Expected -2.5% day1 not to match")
	}
}

func TestReversalDetector_BoundaryIsInclusive(t *testing.T) {
	d := NewReversalDetector(DefaultReversalConfig())

	// Integer prices keep the change arithmetic exact: (997-1000)/1000
	// is -0.30% on the nose
	scale := func(day1Close float64) []model.Bar {
		bars := reversalSeries(99)
		for i := range bars {
			bars[i].Open *= 10
			bars[i].High *= 10
			bars[i].Low *= 10
			bars[i].Close *= 10
		}
		bars[27].Close = day1Close // open stays exactly 1000
		return bars
	}

	if res := d.Evaluate(scale(997), "600000"); !res.Matched {
		t.Error("Expected exactly -0.30% day1 to match (inclusive bound)")
	}
	if res := d.Evaluate(scale(997.5), "600000"); res.Matched {
		t.Error("Expected -0.25% day1 not to match")
	}
}

func TestReversalDetector_RequiresPriorDecline(t *testing.T) {
	d := NewReversalDetector(DefaultReversalConfig())

	bars := reversalSeries(99)
	// Flatten the preamble so there is no prior downtrend
	for i := 0; i < 27; i++ {
		bars[i] = flatBar(i, 100)
	}
	if res := d.Evaluate(bars, "600000"); res.Matched {
		t.Error("Expected no match without a prior decline")
	}
}

func TestReversalDetector_RejectsLongUpperShadow(t *testing.T) {
	d := NewReversalDetector(DefaultReversalConfig())

	bars := reversalSeries(99)
	// Day 3 spikes far above its close: shadow well over 30% of range
	bars[29].High = 101
	if res := d.Evaluate(bars, "600000"); res.Matched {
		t.Error("Expected no match with a long upper shadow")
	}
}

func TestReversalDetector_ShortSeries(t *testing.T) {
	d := NewReversalDetector(DefaultReversalConfig())

	bars := reversalSeries(99)[20:]
	if res := d.Evaluate(bars, "600000"); res.Matched {
		t.Error("Expected no match on a series shorter than MinBars")
	}
	if res := d.Evaluate(nil, "600000"); res.Matched {
		t.Error("Expected no match on an empty series")
	}
}

func TestReversalDetector_ScoreMonotonicInDay2Depth(t *testing.T) {
	d := NewReversalDetector(DefaultReversalConfig())

	prevScore := -1
	// Deepen day 2 from -3.5% to -7%; everything else held proportional
	for _, day2Pct := range []float64{3.5, 4, 5, 6, 7} {
		bars := reversalSeries(99)
		day2Close := 99 * (1 - day2Pct/100)
		bars[28] = bar(28, 99, 99.05, day2Close-0.2, day2Close, 1_200_000)
		day3Open := day2Close * 0.995
		day3Close := day3Open * 1.02
		bars[29] = bar(29, day3Open, day3Close+0.1, day3Open-0.1, day3Close, 1_500_000)

		res := d.Evaluate(bars, "600000")
		if !res.Matched {
			t.Fatalf("Expected match at day2 depth -%.0f%%", day2Pct)
		}
		if res.Score < prevScore {
			t.Errorf("Score decreased with deeper day2: %d after %d at -%.0f%%",
				res.Score, prevScore, day2Pct)
		}
		prevScore = res.Score
	}
}
