package scanner

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"screener/internal/aggregate"
	"screener/internal/detector"
	"screener/internal/provider"
	"screener/pkg/model"
)

// ProgressCallback is called with progress updates
type ProgressCallback func(scanned, total int)

// Config holds scanner settings
type Config struct {
	Workers     int           `yaml:"workers"`
	HistoryDays int           `yaml:"history_days"`
	Timeout     time.Duration `yaml:"timeout"`
}

// DefaultConfig returns the default scanner settings. 200 bars covers the
// deepest detector lookback with room for the consolidation search.
func DefaultConfig() Config {
	return Config{
		Workers:     30,
		HistoryDays: 200,
		Timeout:     30 * time.Minute,
	}
}

// Fault records a detector evaluation failure on one symbol. Faults are
// isolated: the sibling detectors and the rest of the scan continue.
type Fault struct {
	Code     string `json:"code"`
	Detector string `json:"detector"`
	Err      string `json:"error"`
}

// Summary is the scan envelope: counts, timing and the run id
type Summary struct {
	ScanID       string        `json:"scan_id"`
	TotalScanned int           `json:"total_scanned"`
	Skipped      int           `json:"skipped"` // symbols with no usable history
	Faults       []Fault       `json:"faults,omitempty"`
	Elapsed      time.Duration `json:"elapsed"`
	StartedAt    time.Time     `json:"started_at"`
}

// Scanner fans symbol evaluations out over a bounded worker pool. Each
// task owns its bar series; detectors are pure, so workers share them.
type Scanner struct {
	provider     provider.Provider
	detectors    []detector.Detector
	config       Config
	log          zerolog.Logger
	progressFunc ProgressCallback
}

// NewScanner creates a scanner running the given detectors
func NewScanner(p provider.Provider, detectors []detector.Detector, cfg Config, log zerolog.Logger) *Scanner {
	return &Scanner{
		provider:  p,
		detectors: detectors,
		config:    cfg,
		log:       log.With().Str("component", "scanner").Logger(),
	}
}

// SetProgressCallback sets the progress callback function
func (s *Scanner) SetProgressCallback(fn ProgressCallback) {
	s.progressFunc = fn
}

// Scan evaluates every stock with every detector, inserting hits into
// the aggregator. Data problems and detector faults never abort the
// scan; the summary reports what was skipped.
func (s *Scanner) Scan(ctx context.Context, stocks []model.Stock, agg *aggregate.Aggregator) (*Summary, error) {
	summary := &Summary{
		ScanID:    uuid.NewString(),
		StartedAt: time.Now(),
	}
	if len(stocks) == 0 {
		return summary, nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	jobChan := make(chan model.Stock, len(stocks))
	for _, stock := range stocks {
		jobChan <- stock
	}
	close(jobChan)

	workers := s.config.Workers
	if workers < 1 {
		workers = 1
	}

	var (
		scannedCount int64
		skipped      int64
		faultMu      sync.Mutex
		faults       []Fault
	)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for stock := range jobChan {
				select {
				case <-ctx.Done():
					return
				default:
				}

				if !s.evaluateSymbol(ctx, stock, agg, &faultMu, &faults) {
					atomic.AddInt64(&skipped, 1)
				}

				count := atomic.AddInt64(&scannedCount, 1)
				if s.progressFunc != nil {
					s.progressFunc(int(count), len(stocks))
				}
			}
		}()
	}
	wg.Wait()

	summary.TotalScanned = int(scannedCount)
	summary.Skipped = int(skipped)
	summary.Faults = faults
	summary.Elapsed = time.Since(summary.StartedAt)
	return summary, nil
}

// evaluateSymbol fetches one bar series and runs all detectors against
// it. Returns false when the symbol had to be skipped entirely.
func (s *Scanner) evaluateSymbol(ctx context.Context, stock model.Stock, agg *aggregate.Aggregator, faultMu *sync.Mutex, faults *[]Fault) bool {
	bars, err := s.provider.GetDailyBars(ctx, stock.Code, s.config.HistoryDays)
	if err != nil {
		s.log.Debug().Str("code", stock.Code).Err(err).Msg("skipping symbol, history fetch failed")
		return false
	}
	if len(bars) < 30 || !model.ValidSeries(bars) {
		s.log.Debug().Str("code", stock.Code).Int("bars", len(bars)).Msg("skipping symbol, unusable history")
		return false
	}

	for _, d := range s.detectors {
		res, err := safeEvaluate(d, bars, stock.Code)
		if err != nil {
			s.log.Warn().Str("code", stock.Code).Str("detector", d.Name()).Err(err).Msg("detector fault")
			faultMu.Lock()
			*faults = append(*faults, Fault{Code: stock.Code, Detector: d.Name(), Err: err.Error()})
			faultMu.Unlock()
			continue
		}
		if res.Matched {
			s.log.Info().Str("code", stock.Code).Str("name", stock.Name).
				Str("detector", d.Name()).Int("score", res.Score).Msg("hit")
			agg.Record(stock, d.Name(), res)
		}
	}
	return true
}

// safeEvaluate isolates a detector fault so it cannot take down the
// sibling detectors or the rest of the scan
func safeEvaluate(d detector.Detector, bars []model.Bar, code string) (res detector.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			res = detector.NoMatch()
			err = fmt.Errorf("evaluate %s on %s: %v", d.Name(), code, r)
		}
	}()
	return d.Evaluate(bars, code), nil
}
