package aggregate

import (
	"sort"
	"sync"

	"screener/internal/detector"
	"screener/pkg/model"
)

// Entry is one symbol's row in the hit map: which detectors matched it
// and with what result
type Entry struct {
	Stock      model.Stock                `json:"stock"`
	Strategies []string                   `json:"strategies"` // canonical detector order
	Scores     map[string]int             `json:"scores"`
	Results    map[string]detector.Result `json:"results"`
}

// HitCount returns the number of distinct detectors that matched
func (e *Entry) HitCount() int {
	return len(e.Strategies)
}

// MaxScore returns the highest score across the detectors that matched
func (e *Entry) MaxScore() int {
	max := 0
	for _, s := range e.Scores {
		if s > max {
			max = s
		}
	}
	return max
}

// Recommendation is a ranked entry: one symbol, all strategies that hit
// it, the best score among them, and the resonance flag
type Recommendation struct {
	Stock      model.Stock `json:"stock"`
	Strategies []string    `json:"strategies"`
	MaxScore   int         `json:"max_score"`
	HitCount   int         `json:"hit_count"`
	Resonance  bool        `json:"resonance"`
}

// StrategyHit pairs a symbol with its result for a single detector
type StrategyHit struct {
	Stock  model.Stock     `json:"stock"`
	Result detector.Result `json:"result"`
}

// Aggregator merges detector results into a per-symbol hit map behind a
// single lock, so concurrent scanner workers can insert safely. All
// read-out orderings are deterministic regardless of insert order.
type Aggregator struct {
	mu      sync.Mutex
	order   []string // canonical detector order for tie-breaks
	entries map[string]*Entry
}

// New creates an aggregator. detectorOrder is the canonical detector
// evaluation order (normally detector.List()).
func New(detectorOrder []string) *Aggregator {
	return &Aggregator{
		order:   detectorOrder,
		entries: make(map[string]*Entry),
	}
}

// Record inserts one matched result into the hit map. Unmatched results
// are ignored so callers can pass detector output through unconditionally.
func (a *Aggregator) Record(stock model.Stock, detName string, res detector.Result) {
	if !res.Matched {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	entry, ok := a.entries[stock.Code]
	if !ok {
		entry = &Entry{
			Stock:   stock,
			Scores:  make(map[string]int),
			Results: make(map[string]detector.Result),
		}
		a.entries[stock.Code] = entry
	}
	if _, dup := entry.Scores[detName]; !dup {
		entry.Strategies = append(entry.Strategies, detName)
		sort.Slice(entry.Strategies, func(i, j int) bool {
			return a.rank(entry.Strategies[i]) < a.rank(entry.Strategies[j])
		})
	}
	entry.Scores[detName] = res.Score
	entry.Results[detName] = res
}

// rank returns the canonical position of a detector name
func (a *Aggregator) rank(name string) int {
	for i, n := range a.order {
		if n == name {
			return i
		}
	}
	return len(a.order)
}

// SetName updates the display name for a symbol already in the hit map,
// used after the post-scan name refresh
func (a *Aggregator) SetName(code, name string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if entry, ok := a.entries[code]; ok {
		entry.Stock.Name = name
	}
}

// Codes returns every symbol code in the hit map, sorted
func (a *Aggregator) Codes() []string {
	a.mu.Lock()
	defer a.mu.Unlock()

	codes := make([]string, 0, len(a.entries))
	for code := range a.entries {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// Len returns the number of distinct symbols hit by any detector
func (a *Aggregator) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.entries)
}

// ResultsFor returns every hit for one detector, sorted by score
// descending then code ascending
func (a *Aggregator) ResultsFor(detName string) []StrategyHit {
	a.mu.Lock()
	defer a.mu.Unlock()

	var hits []StrategyHit
	for _, entry := range a.entries {
		if res, ok := entry.Results[detName]; ok {
			hits = append(hits, StrategyHit{Stock: entry.Stock, Result: res})
		}
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Result.Score != hits[j].Result.Score {
			return hits[i].Result.Score > hits[j].Result.Score
		}
		return hits[i].Stock.Code < hits[j].Stock.Code
	})
	return hits
}

// Resonance returns the symbols matched by two or more detectors, sorted
// by hit count descending, then highest score descending, then code
// ascending for a stable order
func (a *Aggregator) Resonance() []Entry {
	a.mu.Lock()
	defer a.mu.Unlock()

	var multi []Entry
	for _, entry := range a.entries {
		if entry.HitCount() >= 2 {
			multi = append(multi, *entry)
		}
	}
	sortEntries(multi)
	return multi
}

// TopRecommendations deduplicates by symbol, keeping the maximum score
// across all detectors that hit it, and ranks by (hit count desc, max
// score desc). n <= 0 returns every entry.
func (a *Aggregator) TopRecommendations(n int) []Recommendation {
	a.mu.Lock()
	entries := make([]Entry, 0, len(a.entries))
	for _, entry := range a.entries {
		entries = append(entries, *entry)
	}
	a.mu.Unlock()

	sortEntries(entries)

	if n > 0 && len(entries) > n {
		entries = entries[:n]
	}

	recs := make([]Recommendation, len(entries))
	for i, e := range entries {
		recs[i] = Recommendation{
			Stock:      e.Stock,
			Strategies: e.Strategies,
			MaxScore:   e.MaxScore(),
			HitCount:   e.HitCount(),
			Resonance:  e.HitCount() >= 2,
		}
	}
	return recs
}

func sortEntries(entries []Entry) {
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].HitCount() != entries[j].HitCount() {
			return entries[i].HitCount() > entries[j].HitCount()
		}
		if entries[i].MaxScore() != entries[j].MaxScore() {
			return entries[i].MaxScore() > entries[j].MaxScore()
		}
		return entries[i].Stock.Code < entries[j].Stock.Code
	})
}
