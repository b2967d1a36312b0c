package detector

import (
	"math"
	"strings"

	"screener/pkg/model"
)

// Limit-up bar shapes for the shrink breakout pattern
const (
	LimitUpOneWord  = "one-word"
	LimitUpTShape   = "t-shape"
	LimitUpOrdinary = "ordinary"
)

// ShrinkBreakoutConfig holds thresholds for the shrinking-volume breakout
// pattern. Same five-phase skeleton as the volume breakout but the signal
// day must sit in a volume dead-cross (short average below long average).
type ShrinkBreakoutConfig struct {
	MinDeclinePct         float64 `yaml:"min_decline_pct"`
	Consol1MinDays        int     `yaml:"consolidation1_min_days"`
	Consol1MaxAmplitude   float64 `yaml:"consolidation1_max_amplitude"`
	LimitUpMainPct        float64 `yaml:"limit_up_main_pct"`
	LimitUpChiNextPct     float64 `yaml:"limit_up_chinext_pct"` // codes starting with 300
	Consol2MinDays        int     `yaml:"consolidation2_min_days"`
	Consol2MaxAmplitude   float64 `yaml:"consolidation2_max_amplitude"`
	Consol2SupportTolPct  float64 `yaml:"consolidation2_support_tolerance"`
	VolMAShort            int     `yaml:"vol_ma_short"`
	VolMALong             int     `yaml:"vol_ma_long"`
}

// DefaultShrinkBreakoutConfig returns the hand-tuned default thresholds
func DefaultShrinkBreakoutConfig() ShrinkBreakoutConfig {
	return ShrinkBreakoutConfig{
		MinDeclinePct:        15,
		Consol1MinDays:       22,
		Consol1MaxAmplitude:  15,
		LimitUpMainPct:       9.8,
		LimitUpChiNextPct:    19.8,
		Consol2MinDays:       5,
		Consol2MaxAmplitude:  10,
		Consol2SupportTolPct: 0,
		VolMAShort:           5,
		VolMALong:            10,
	}
}

// ShrinkBreakoutDetector matches decline, basing consolidation, limit-up,
// holding consolidation, then a bullish breakout while volume is shrinking
type ShrinkBreakoutDetector struct {
	config ShrinkBreakoutConfig
}

// NewShrinkBreakoutDetector creates a shrink breakout detector
func NewShrinkBreakoutDetector(cfg ShrinkBreakoutConfig) *ShrinkBreakoutDetector {
	return &ShrinkBreakoutDetector{config: cfg}
}

func (d *ShrinkBreakoutDetector) Name() string { return "shrink_breakout" }

func (d *ShrinkBreakoutDetector) Description() string {
	return "Shrink breakout - decline, consolidation, limit-up, consolidation, breakout on shrinking volume"
}

func (d *ShrinkBreakoutDetector) MinBars() int { return 60 }

func (d *ShrinkBreakoutDetector) isLimitUp(close, prevClose float64, code string) bool {
	if prevClose == 0 {
		return false
	}
	changePct := (close - prevClose) / prevClose * 100
	if strings.HasPrefix(code, "300") {
		return changePct >= d.config.LimitUpChiNextPct
	}
	return changePct >= d.config.LimitUpMainPct
}

// findLimitUpDay scans backward for the nearest limit-up bar at least 6
// trading days before the signal bar. Returns -1 when none exists.
func (d *ShrinkBreakoutDetector) findLimitUpDay(bars []model.Bar, code string) int {
	for i := len(bars) - 7; i >= 1; i-- {
		if d.isLimitUp(bars[i].Close, bars[i-1].Close, code) {
			return i
		}
	}
	return -1
}

// checkSignal validates the signal bar: bullish with the short volume
// average strictly below the long one (dead-cross state)
func (d *ShrinkBreakoutDetector) checkSignal(bars []model.Bar) (map[string]float64, bool) {
	cfg := d.config
	n := len(bars)
	signal := bars[n-1]

	if signal.Close <= signal.Open {
		return nil, false
	}
	if n < cfg.VolMALong {
		return nil, false
	}

	volMAShort := avgVolume(bars, n-cfg.VolMAShort, n)
	volMALong := avgVolume(bars, n-cfg.VolMALong, n)
	if volMALong == 0 {
		return nil, false
	}
	if volMAShort >= volMALong {
		return nil, false
	}

	return map[string]float64{
		"signal_change": round2(signal.ChangePct()),
		"vol_ma_short":  math.Round(volMAShort),
		"vol_ma_long":   math.Round(volMALong),
		"vol_ratio":     math.Round(volMAShort/volMALong*10000) / 10000,
	}, true
}

// checkPostConsolidation validates the holding window between limit-up bar
// and signal bar: long enough, every close at or above the limit-up close,
// tight amplitude, and the signal close breaking above the window high.
func (d *ShrinkBreakoutDetector) checkPostConsolidation(bars []model.Bar, limitUpIdx int) (map[string]float64, bool) {
	cfg := d.config
	n := len(bars)
	start := limitUpIdx + 1
	end := n - 1 // signal bar, excluded from the window

	if end-start < cfg.Consol2MinDays {
		return nil, false
	}

	limitUpClose := bars[limitUpIdx].Close
	tolerance := limitUpClose * cfg.Consol2SupportTolPct / 100
	if minClose(bars, start, end) < limitUpClose-tolerance {
		return nil, false
	}

	avg := meanClose(bars, start, end)
	if avg == 0 {
		return nil, false
	}
	max := maxClose(bars, start, end)
	min := minClose(bars, start, end)
	amplitude := (max - min) / avg * 100
	if amplitude > cfg.Consol2MaxAmplitude {
		return nil, false
	}

	// Today must break above every close in the window
	if bars[n-1].Close <= max {
		return nil, false
	}

	return map[string]float64{
		"post_days":      float64(end - start),
		"post_amplitude": round2(amplitude),
		"post_max_close": max,
		"post_min_close": min,
	}, true
}

// checkPreConsolidation expands the basing window backward from the bar
// before the limit-up, at least Consol1MinDays long, while the amplitude
// holds; the window must contain no other limit-up bar.
func (d *ShrinkBreakoutDetector) checkPreConsolidation(bars []model.Bar, limitUpIdx int, code string) (start int, detail map[string]float64, ok bool) {
	cfg := d.config
	if limitUpIdx < cfg.Consol1MinDays {
		return 0, nil, false
	}

	bestStart := -1
	end := limitUpIdx
	for s := limitUpIdx - cfg.Consol1MinDays; s >= 0; s-- {
		amp := amplitudePct(bars, s, end)
		if amp < 0 {
			break
		}
		if amp <= cfg.Consol1MaxAmplitude {
			bestStart = s
		} else {
			break
		}
	}
	if bestStart < 0 {
		return 0, nil, false
	}

	days := end - bestStart
	if days < cfg.Consol1MinDays {
		return 0, nil, false
	}

	for i := bestStart + 1; i < end; i++ {
		if d.isLimitUp(bars[i].Close, bars[i-1].Close, code) {
			return 0, nil, false
		}
	}

	return bestStart, map[string]float64{
		"consolidation1_days":      float64(days),
		"consolidation1_amplitude": round2(amplitudePct(bars, bestStart, end)),
	}, true
}

// checkPriorDecline validates the fall into the basing window, measured
// from the lookback high down to the consolidation's first close.
func (d *ShrinkBreakoutDetector) checkPriorDecline(bars []model.Bar, consolStart int) (map[string]float64, bool) {
	lookback := consolStart
	if lookback > 60 {
		lookback = 60
	}
	if lookback < 5 {
		return nil, false
	}

	max := maxClose(bars, consolStart-lookback, consolStart)
	if max == 0 {
		return nil, false
	}
	declinePct := (max - bars[consolStart].Close) / max * 100
	if declinePct < d.config.MinDeclinePct {
		return nil, false
	}

	return map[string]float64{"decline_pct": round2(declinePct)}, true
}

func classifyLimitUp(bar model.Bar) string {
	switch {
	case bar.Open == bar.Close && bar.Close == bar.High:
		return LimitUpOneWord
	case bar.Open == bar.Low && bar.Close == bar.High:
		return LimitUpTShape
	default:
		return LimitUpOrdinary
	}
}

// score starts from the base 40 and applies the tiered bonuses
func (d *ShrinkBreakoutDetector) score(detail map[string]float64, limitUpType string) int {
	score := 40.0

	// Longer basing window
	if extra := int(detail["consolidation1_days"]) - d.config.Consol1MinDays; extra > 0 {
		score += math.Min(float64(extra/10*3), 10)
	}
	// Deeper prior decline
	if extra := detail["decline_pct"] - d.config.MinDeclinePct; extra > 0 {
		score += math.Min(math.Floor(extra/5)*3, 10)
	}
	// Limit-up strength
	if limitUpType == LimitUpOneWord || limitUpType == LimitUpTShape {
		score += 8
	} else {
		score += 5
	}
	// Tighter holding window
	switch amp := detail["post_amplitude"]; {
	case amp < 5:
		score += 8
	case amp < 8:
		score += 5
	case amp < 10:
		score += 3
	}
	// Degree of volume shrink
	switch ratio := detail["vol_ratio"]; {
	case ratio < 0.5:
		score += 10
	case ratio < 0.6:
		score += 8
	case ratio < 0.7:
		score += 6
	case ratio < 0.8:
		score += 4
	case ratio < 0.9:
		score += 2
	}
	// Moderate breakout magnitude
	switch change := detail["signal_change"]; {
	case change >= 2 && change <= 5:
		score += 8
	case change > 5 && change <= 8:
		score += 5
	}
	// No support breach after the limit-up (enforced by phase 3)
	score += 6

	return clampScore(score)
}

// Evaluate runs the five phases in order; all must pass
func (d *ShrinkBreakoutDetector) Evaluate(bars []model.Bar, code string) Result {
	n := len(bars)
	if n < d.MinBars() {
		return NoMatch()
	}

	signalDetail, ok := d.checkSignal(bars)
	if !ok {
		return NoMatch()
	}

	limitUpIdx := d.findLimitUpDay(bars, code)
	if limitUpIdx < 0 {
		return NoMatch()
	}

	postDetail, ok := d.checkPostConsolidation(bars, limitUpIdx)
	if !ok {
		return NoMatch()
	}

	consolStart, preDetail, ok := d.checkPreConsolidation(bars, limitUpIdx, code)
	if !ok {
		return NoMatch()
	}

	declineDetail, ok := d.checkPriorDecline(bars, consolStart)
	if !ok {
		return NoMatch()
	}

	limitUpBar := bars[limitUpIdx]
	limitUpChange := (limitUpBar.Close - bars[limitUpIdx-1].Close) / bars[limitUpIdx-1].Close * 100
	limitUpType := classifyLimitUp(limitUpBar)

	detail := make(map[string]float64)
	for _, m := range []map[string]float64{signalDetail, postDetail, preDetail, declineDetail} {
		for k, v := range m {
			detail[k] = v
		}
	}
	detail["limit_up_change"] = round2(limitUpChange)

	return Result{
		Matched: true,
		Score:   d.score(detail, limitUpType),
		Details: detail,
		Tags: map[string]string{
			"limit_up_date": limitUpBar.Date.Format("2006-01-02"),
			"limit_up_type": limitUpType,
			"signal_date":   bars[n-1].Date.Format("2006-01-02"),
		},
	}
}
