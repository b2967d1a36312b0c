package model

import "time"

// Bar represents a single daily OHLCV bar
type Bar struct {
	Date   time.Time `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// Bullish reports whether the bar closed above its open
func (b Bar) Bullish() bool {
	return b.Close > b.Open
}

// ChangePct returns the intraday change (close vs open) in percent.
// Returns 0 when the open is 0 to avoid a division hazard.
func (b Bar) ChangePct() float64 {
	if b.Open == 0 {
		return 0
	}
	return (b.Close - b.Open) / b.Open * 100
}

// BodyRatio returns |close-open| / (high-low), 0 when the range is 0
func (b Bar) BodyRatio() float64 {
	total := b.High - b.Low
	if total == 0 {
		return 0
	}
	body := b.Close - b.Open
	if body < 0 {
		body = -body
	}
	return body / total
}

// UpperShadowPct returns the upper wick as a percentage of the day's
// range: (high - max(open,close)) / (high-low) * 100, 0 on a zero range.
func (b Bar) UpperShadowPct() float64 {
	total := b.High - b.Low
	if total == 0 {
		return 0
	}
	bodyTop := b.Open
	if b.Close > bodyTop {
		bodyTop = b.Close
	}
	return (b.High - bodyTop) / total * 100
}

// Stock represents basic stock information
type Stock struct {
	Code string `json:"code"` // 6-digit A-share code, e.g. 600519
	Name string `json:"name"`
}

// ValidSeries checks that a bar series is usable by the detectors:
// strictly ascending dates and sane OHLC relations on every bar.
func ValidSeries(bars []Bar) bool {
	for i, b := range bars {
		if b.High < b.Open || b.High < b.Close || b.Low > b.Open || b.Low > b.Close {
			return false
		}
		if b.Low < 0 || b.Volume < 0 {
			return false
		}
		if i > 0 && !bars[i-1].Date.Before(b.Date) {
			return false
		}
	}
	return true
}
