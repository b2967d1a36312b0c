package detector

import (
	"strings"

	"screener/pkg/model"
)

// VolumeBreakoutConfig holds thresholds for the rising-volume breakout
// pattern: prior decline, basing consolidation, limit-up bar, pullback
// consolidation, then a breakout bar on higher volume.
type VolumeBreakoutConfig struct {
	PriorLookbackDays     int     `yaml:"prior_lookback_days"`
	PriorDeclineMinPct    float64 `yaml:"prior_decline_min_pct"`
	ConsolMinDays         int     `yaml:"consol_min_days"`
	ConsolMaxRangePct     float64 `yaml:"consol_max_range_pct"`
	LimitUpMainBoard      float64 `yaml:"limit_up_main_board"` // day-over-day gain %
	LimitUpChiNext        float64 `yaml:"limit_up_chinext"`    // codes starting with 3
	LimitUpBodyRatioMin   float64 `yaml:"limit_up_body_ratio_min"`
	PostConsolMinDays     int     `yaml:"post_consol_min_days"`
	PostConsolMaxLookback int     `yaml:"post_consol_max_lookback"`
}

// DefaultVolumeBreakoutConfig returns the hand-tuned default thresholds
func DefaultVolumeBreakoutConfig() VolumeBreakoutConfig {
	return VolumeBreakoutConfig{
		PriorLookbackDays:     60,
		PriorDeclineMinPct:    15,
		ConsolMinDays:         22,
		ConsolMaxRangePct:     15,
		LimitUpMainBoard:      9.5,
		LimitUpChiNext:        19.5,
		LimitUpBodyRatioMin:   0.6,
		PostConsolMinDays:     5,
		PostConsolMaxLookback: 20,
	}
}

// VolumeBreakoutDetector matches the five-phase decline / consolidation /
// limit-up / pullback / rising-volume breakout sequence. When several
// limit-up candidates validate inside the lookback window, the highest
// scoring one wins; the nearest candidate is kept on exact score ties.
type VolumeBreakoutDetector struct {
	config VolumeBreakoutConfig
}

// NewVolumeBreakoutDetector creates a volume breakout detector
func NewVolumeBreakoutDetector(cfg VolumeBreakoutConfig) *VolumeBreakoutDetector {
	return &VolumeBreakoutDetector{config: cfg}
}

func (d *VolumeBreakoutDetector) Name() string { return "volume_breakout" }

func (d *VolumeBreakoutDetector) Description() string {
	return "Volume breakout - decline, consolidation, limit-up, pullback, breakout on rising volume"
}

func (d *VolumeBreakoutDetector) MinBars() int { return 50 }

// isLimitUp reports whether the bar is a qualifying limit-up bar: gain at
// or above the board threshold, bullish, and a real body (one-word boards
// with near-zero range are excluded by the body ratio test).
func (d *VolumeBreakoutDetector) isLimitUp(bar model.Bar, prevClose float64, code string) bool {
	if prevClose == 0 {
		return false
	}
	changePct := (bar.Close - prevClose) / prevClose * 100

	threshold := d.config.LimitUpMainBoard
	if strings.HasPrefix(code, "3") {
		threshold = d.config.LimitUpChiNext
	}
	if changePct < threshold {
		return false
	}
	if bar.High-bar.Low == 0 {
		return false
	}
	if bar.BodyRatio() < d.config.LimitUpBodyRatioMin {
		return false
	}
	return bar.Close > bar.Open
}

// findConsolidation searches backward from the bar before the limit-up bar
// for the longest basing window whose close amplitude stays inside the
// limit, growing one bar at a time from the minimum length.
func (d *VolumeBreakoutDetector) findConsolidation(bars []model.Bar, limitUpIdx int) (start int, mean, rangePct float64, days int, ok bool) {
	cfg := d.config
	consolEnd := limitUpIdx - 1
	if consolEnd < cfg.ConsolMinDays {
		return 0, 0, 0, 0, false
	}

	maxLen := consolEnd + 1
	if maxLen > 80 {
		maxLen = 80
	}
	for length := cfg.ConsolMinDays; length < maxLen; length++ {
		consolStart := consolEnd - length + 1
		if consolStart < 0 {
			break
		}
		m := meanClose(bars, consolStart, consolEnd+1)
		if m == 0 {
			continue
		}
		amp := (maxClose(bars, consolStart, consolEnd+1) - minClose(bars, consolStart, consolEnd+1)) / m * 100
		if amp <= cfg.ConsolMaxRangePct {
			start, mean, rangePct, days, ok = consolStart, m, amp, length, true
		} else if ok {
			break
		}
	}
	return start, mean, rangePct, days, ok
}

// priorDecline measures the fall from the pre-consolidation high down to
// the consolidation mean. Returns ok=false when too shallow.
func (d *VolumeBreakoutDetector) priorDecline(bars []model.Bar, consolStart int, consolMean float64) (float64, bool) {
	cfg := d.config
	searchStart := consolStart - cfg.PriorLookbackDays
	if searchStart < 0 {
		searchStart = 0
	}
	if searchStart >= consolStart || consolMean == 0 {
		return 0, false
	}
	priorHigh := maxClose(bars, searchStart, consolStart)
	declinePct := (priorHigh - consolMean) / consolMean * 100
	if declinePct < cfg.PriorDeclineMinPct {
		return 0, false
	}
	return declinePct, true
}

// score applies the 7-component linear interpolation, each component
// clamped to its own range, the total capped at 100.
func (d *VolumeBreakoutDetector) score(detail map[string]float64) int {
	var score float64

	// Prior decline depth (15)
	score += linearMap(detail["prior_decline_pct"], 15, 40, 0, 15)
	// Consolidation length (10)
	score += linearMap(detail["consol_days"], 22, 60, 0, 10)
	// Limit-up bar quality (20)
	score += linearMap(detail["limit_up_body_ratio"], 0.6, 1.0, 0, 10)
	score += linearMap(detail["limit_up_vol_ratio"], 1, 4, 0, 10)
	// Pullback tightness (15)
	if detail["post_range_pct"] <= 5 {
		score += 15
	} else if detail["post_range_pct"] <= 10 {
		score += linearMap(detail["post_range_pct"], 10, 5, 0, 15)
	}
	// Pullback duration (10)
	score += linearMap(detail["post_consol_days"], 5, 15, 0, 10)
	// Breakout volume multiple (15)
	score += linearMap(detail["break_vol_ratio"], 1, 3, 0, 15)
	// Breakout body (15)
	score += linearMap(detail["break_body_ratio"], 0.3, 0.9, 0, 15)

	return clampScore(score)
}

// Evaluate scans backward for a limit-up candidate whose surrounding
// phases all validate, keeping the best scoring candidate.
func (d *VolumeBreakoutDetector) Evaluate(bars []model.Bar, code string) Result {
	cfg := d.config
	n := len(bars)
	if n < d.MinBars() {
		return NoMatch()
	}

	last := bars[n-1]
	prev := bars[n-2]

	// The breakout day must be bullish on rising volume
	if last.Close <= last.Open {
		return NoMatch()
	}
	if prev.Volume == 0 || last.Volume <= prev.Volume {
		return NoMatch()
	}

	maxLookback := cfg.PostConsolMaxLookback
	if n-30 < maxLookback {
		maxLookback = n - 30
	}

	var best Result
	var bestScore = -1

	for scanIdx := 2; scanIdx <= maxLookback; scanIdx++ {
		candidateIdx := n - 1 - scanIdx
		if candidateIdx < 1 {
			break
		}

		candidate := bars[candidateIdx]
		prevClose := bars[candidateIdx-1].Close
		if !d.isLimitUp(candidate, prevClose, code) {
			continue
		}

		// Pullback window: day after the limit-up bar to the day
		// before the breakout
		postStart := candidateIdx + 1
		postEnd := n - 2
		postDays := postEnd - postStart + 1
		if postDays < cfg.PostConsolMinDays {
			continue
		}

		// Every pullback close must hold the limit-up bar's open
		if minClose(bars, postStart, postEnd+1) < candidate.Open {
			continue
		}
		// Breakout close must exceed the limit-up close
		if last.Close <= candidate.Close {
			continue
		}

		consolStart, consolMean, consolRange, consolDays, ok := d.findConsolidation(bars, candidateIdx)
		if !ok {
			continue
		}

		declinePct, ok := d.priorDecline(bars, consolStart, consolMean)
		if !ok {
			continue
		}

		limitUpChange := (candidate.Close - prevClose) / prevClose * 100

		postMean := meanClose(bars, postStart, postEnd+1)
		postRange := 999.0
		if postMean > 0 {
			postRange = (maxClose(bars, postStart, postEnd+1) - minClose(bars, postStart, postEnd+1)) / postMean * 100
		}

		volStart := candidateIdx - 5
		if volStart < 0 {
			volStart = 0
		}
		limitUpVolRatio := 1.0
		if avg := avgVolume(bars, volStart, candidateIdx); avg > 0 {
			limitUpVolRatio = candidate.Volume / avg
		}

		breakVolRatio := 1.0
		if prev.Volume > 0 {
			breakVolRatio = last.Volume / prev.Volume
		}

		breakBodyRatio := 0.0
		if r := last.High - last.Low; r > 0 {
			breakBodyRatio = (last.Close - last.Open) / r
		}

		detail := map[string]float64{
			"prior_decline_pct":   round2(declinePct),
			"consol_days":         float64(consolDays),
			"consol_range_pct":    round2(consolRange),
			"consol_mean_price":   round2(consolMean),
			"limit_up_change":     round2(limitUpChange),
			"limit_up_body_ratio": round2(candidate.BodyRatio()),
			"limit_up_vol_ratio":  round2(limitUpVolRatio),
			"post_consol_days":    float64(postDays),
			"post_range_pct":      round2(postRange),
			"break_change":        round2((last.Close - prev.Close) / prev.Close * 100),
			"break_vol_ratio":     round2(breakVolRatio),
			"break_body_ratio":    round2(breakBodyRatio),
			"break_close":         round2(last.Close),
		}

		score := d.score(detail)
		if score > bestScore {
			bestScore = score
			best = Result{
				Matched: true,
				Score:   score,
				Details: detail,
				Tags: map[string]string{
					"limit_up_date": candidate.Date.Format("2006-01-02"),
					"break_date":    last.Date.Format("2006-01-02"),
				},
			}
		}
	}

	if bestScore < 0 {
		return NoMatch()
	}
	return best
}
