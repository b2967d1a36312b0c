package scanner

import (
	"context"
	"fmt"
	"reflect"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"screener/internal/aggregate"
	"screener/internal/detector"
	"screener/internal/provider"
	"screener/pkg/model"
)

// fakeProvider serves canned bar series per code; codes absent from the
// map fail the history fetch
type fakeProvider struct {
	series map[string][]model.Bar
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) GetQuotes(ctx context.Context) ([]provider.Quote, error) {
	return nil, fmt.Errorf("not implemented")
}

func (f *fakeProvider) GetDailyBars(ctx context.Context, code string, days int) ([]model.Bar, error) {
	bars, ok := f.series[code]
	if !ok {
		return nil, fmt.Errorf("no data for %s", code)
	}
	return bars, nil
}

func (f *fakeProvider) IsAvailable() bool { return true }
func (f *fakeProvider) RateLimit() int    { return 1000 }

// fakeDetector matches the codes in matches with a fixed score
type fakeDetector struct {
	name    string
	matches map[string]int
}

func (d *fakeDetector) Name() string        { return d.name }
func (d *fakeDetector) Description() string { return "fake" }
func (d *fakeDetector) MinBars() int        { return 1 }

func (d *fakeDetector) Evaluate(bars []model.Bar, code string) detector.Result {
	score, ok := d.matches[code]
	if !ok {
		return detector.NoMatch()
	}
	return detector.Result{Matched: true, Score: score}
}

// panicDetector panics on one code, to exercise fault isolation
type panicDetector struct {
	name      string
	panicCode string
}

func (d *panicDetector) Name() string        { return d.name }
func (d *panicDetector) Description() string { return "fake" }
func (d *panicDetector) MinBars() int        { return 1 }

func (d *panicDetector) Evaluate(bars []model.Bar, code string) detector.Result {
	if code == d.panicCode {
		panic("index out of range")
	}
	return detector.Result{Matched: true, Score: 50}
}

// flatSeries builds a valid 40-bar series
func flatSeries() []model.Bar {
	bars := make([]model.Bar, 40)
	start := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	for i := range bars {
		bars[i] = model.Bar{
			Date:   start.AddDate(0, 0, i),
			Open:   100,
			High:   101,
			Low:    99,
			Close:  100.5,
			Volume: 1_000_000,
		}
	}
	return bars
}

func stocks(codes ...string) []model.Stock {
	out := make([]model.Stock, len(codes))
	for i, code := range codes {
		out[i] = model.Stock{Code: code, Name: code}
	}
	return out
}

func testConfig(workers int) Config {
	return Config{Workers: workers, HistoryDays: 60, Timeout: time.Minute}
}

func TestScanner_Scan(t *testing.T) {
	p := &fakeProvider{series: map[string][]model.Bar{
		"600000": flatSeries(),
		"600001": flatSeries(),
		"000001": flatSeries(),
	}}
	detectors := []detector.Detector{
		&fakeDetector{name: "a", matches: map[string]int{"600000": 80, "000001": 60}},
		&fakeDetector{name: "b", matches: map[string]int{"600000": 70}},
	}

	s := NewScanner(p, detectors, testConfig(4), zerolog.Nop())
	agg := aggregate.New([]string{"a", "b"})

	summary, err := s.Scan(context.Background(), stocks("600000", "600001", "000001"), agg)
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}

	if summary.TotalScanned != 3 {
		t.Errorf("Expected 3 scanned, got %d", summary.TotalScanned)
	}
	if summary.Skipped != 0 {
		t.Errorf("Expected 0 skipped, got %d", summary.Skipped)
	}
	if summary.ScanID == "" {
		t.Error("Expected a scan id")
	}

	if agg.Len() != 2 {
		t.Errorf("Expected 2 symbols in the hit map, got %d", agg.Len())
	}
	res := agg.Resonance()
	if len(res) != 1 || res[0].Stock.Code != "600000" {
		t.Errorf("Expected 600000 as the only resonance entry, got %v", res)
	}
}

func TestScanner_SkipsFailedFetch(t *testing.T) {
	p := &fakeProvider{series: map[string][]model.Bar{
		"600000": flatSeries(),
	}}
	detectors := []detector.Detector{
		&fakeDetector{name: "a", matches: map[string]int{"600000": 80, "600404": 99}},
	}

	s := NewScanner(p, detectors, testConfig(2), zerolog.Nop())
	agg := aggregate.New([]string{"a"})

	summary, err := s.Scan(context.Background(), stocks("600000", "600404"), agg)
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if summary.Skipped != 1 {
		t.Errorf("Expected 1 skipped, got %d", summary.Skipped)
	}
	if agg.Len() != 1 {
		t.Errorf("Expected only the fetchable symbol in the hit map, got %d", agg.Len())
	}
}

func TestScanner_SkipsShortHistory(t *testing.T) {
	p := &fakeProvider{series: map[string][]model.Bar{
		"600000": flatSeries()[:10],
	}}
	detectors := []detector.Detector{
		&fakeDetector{name: "a", matches: map[string]int{"600000": 80}},
	}

	s := NewScanner(p, detectors, testConfig(1), zerolog.Nop())
	agg := aggregate.New([]string{"a"})

	summary, _ := s.Scan(context.Background(), stocks("600000"), agg)
	if summary.Skipped != 1 {
		t.Errorf("Expected short history to be skipped, got %d skipped", summary.Skipped)
	}
	if agg.Len() != 0 {
		t.Errorf("Expected empty hit map, got %d entries", agg.Len())
	}
}

func TestScanner_IsolatesDetectorFault(t *testing.T) {
	p := &fakeProvider{series: map[string][]model.Bar{
		"600000": flatSeries(),
		"600001": flatSeries(),
	}}
	detectors := []detector.Detector{
		&panicDetector{name: "bad", panicCode: "600000"},
		&fakeDetector{name: "good", matches: map[string]int{"600000": 75, "600001": 65}},
	}

	s := NewScanner(p, detectors, testConfig(2), zerolog.Nop())
	agg := aggregate.New([]string{"bad", "good"})

	summary, err := s.Scan(context.Background(), stocks("600000", "600001"), agg)
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}

	if len(summary.Faults) != 1 {
		t.Fatalf("Expected 1 fault, got %d", len(summary.Faults))
	}
	if summary.Faults[0].Code != "600000" || summary.Faults[0].Detector != "bad" {
		t.Errorf("Unexpected fault: %+v", summary.Faults[0])
	}

	// The sibling detector still records 600000, and 600001 hits both
	if agg.Len() != 2 {
		t.Errorf("Expected 2 symbols despite the fault, got %d", agg.Len())
	}
	if hits := agg.ResultsFor("good"); len(hits) != 2 {
		t.Errorf("Expected the healthy detector to keep both hits, got %d", len(hits))
	}
}

func TestScanner_DeterministicAcrossWorkerCounts(t *testing.T) {
	series := map[string][]model.Bar{}
	matchesA := map[string]int{}
	matchesB := map[string]int{}
	var universe []model.Stock
	for i := 0; i < 40; i++ {
		code := fmt.Sprintf("60%04d", i)
		series[code] = flatSeries()
		universe = append(universe, model.Stock{Code: code, Name: code})
		if i%2 == 0 {
			matchesA[code] = 50 + i%30
		}
		if i%3 == 0 {
			matchesB[code] = 45 + i%40
		}
	}

	var baseline []aggregate.Recommendation
	for _, workers := range []int{1, 4, 30} {
		p := &fakeProvider{series: series}
		detectors := []detector.Detector{
			&fakeDetector{name: "a", matches: matchesA},
			&fakeDetector{name: "b", matches: matchesB},
		}
		s := NewScanner(p, detectors, testConfig(workers), zerolog.Nop())
		agg := aggregate.New([]string{"a", "b"})
		if _, err := s.Scan(context.Background(), universe, agg); err != nil {
			t.Fatalf("Scan with %d workers failed: %v", workers, err)
		}

		recs := agg.TopRecommendations(0)
		if baseline == nil {
			baseline = recs
			continue
		}
		if !reflect.DeepEqual(recs, baseline) {
			t.Errorf("Recommendations differ between 1 and %d workers", workers)
		}
	}
}

func TestScanner_ProgressCallback(t *testing.T) {
	p := &fakeProvider{series: map[string][]model.Bar{
		"600000": flatSeries(),
		"600001": flatSeries(),
	}}
	s := NewScanner(p, []detector.Detector{&fakeDetector{name: "a"}}, testConfig(1), zerolog.Nop())

	var last int
	s.SetProgressCallback(func(scanned, total int) {
		last = scanned
		if total != 2 {
			t.Errorf("Expected total 2, got %d", total)
		}
	})

	agg := aggregate.New([]string{"a"})
	if _, err := s.Scan(context.Background(), stocks("600000", "600001"), agg); err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if last != 2 {
		t.Errorf("Expected final progress 2, got %d", last)
	}
}

func TestScanner_EmptyUniverse(t *testing.T) {
	s := NewScanner(&fakeProvider{}, nil, testConfig(4), zerolog.Nop())
	summary, err := s.Scan(context.Background(), nil, aggregate.New(nil))
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if summary.TotalScanned != 0 {
		t.Errorf("Expected 0 scanned, got %d", summary.TotalScanned)
	}
}
