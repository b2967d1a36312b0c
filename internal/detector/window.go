package detector

import "screener/pkg/model"

// Windowed aggregation helpers over [from,to) slices of a bar series.
// These replace the rolling/aggregate operations the detectors need so
// that no shared mutable table structure is involved.

// maxClose returns the highest close in bars[from:to], 0 on an empty window
func maxClose(bars []model.Bar, from, to int) float64 {
	if from < 0 {
		from = 0
	}
	if to > len(bars) {
		to = len(bars)
	}
	if from >= to {
		return 0
	}
	max := bars[from].Close
	for _, b := range bars[from+1 : to] {
		if b.Close > max {
			max = b.Close
		}
	}
	return max
}

// minClose returns the lowest close in bars[from:to], 0 on an empty window
func minClose(bars []model.Bar, from, to int) float64 {
	if from < 0 {
		from = 0
	}
	if to > len(bars) {
		to = len(bars)
	}
	if from >= to {
		return 0
	}
	min := bars[from].Close
	for _, b := range bars[from+1 : to] {
		if b.Close < min {
			min = b.Close
		}
	}
	return min
}

// meanClose returns the average close in bars[from:to], 0 on an empty window
func meanClose(bars []model.Bar, from, to int) float64 {
	if from < 0 {
		from = 0
	}
	if to > len(bars) {
		to = len(bars)
	}
	if from >= to {
		return 0
	}
	var sum float64
	for _, b := range bars[from:to] {
		sum += b.Close
	}
	return sum / float64(to-from)
}

// amplitudePct returns (max(close)-min(close))/mean(close)*100 over
// bars[from:to]. Returns -1 when the window is empty or the mean is 0,
// which callers treat as a failed consolidation test.
func amplitudePct(bars []model.Bar, from, to int) float64 {
	mean := meanClose(bars, from, to)
	if mean == 0 {
		return -1
	}
	return (maxClose(bars, from, to) - minClose(bars, from, to)) / mean * 100
}

// avgVolume returns the average volume in bars[from:to], 0 on an empty window
func avgVolume(bars []model.Bar, from, to int) float64 {
	if from < 0 {
		from = 0
	}
	if to > len(bars) {
		to = len(bars)
	}
	if from >= to {
		return 0
	}
	var sum float64
	for _, b := range bars[from:to] {
		sum += b.Volume
	}
	return sum / float64(to-from)
}
