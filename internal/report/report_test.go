package report

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"screener/internal/aggregate"
	"screener/internal/detector"
	"screener/internal/scanner"
	"screener/pkg/model"
)

var order = []string{"reversal", "volume_breakout", "shrink_breakout"}

func sampleWriter() *Writer {
	agg := aggregate.New(order)
	agg.Record(model.Stock{Code: "600000", Name: "浦发银行"}, "reversal", detector.Result{
		Matched: true, Score: 75,
		Details: map[string]float64{
			"day1_change": -1.0, "day2_change": -4.0, "day3_change": 2.0,
			"prior_decline": -8.61, "contrast": 4.0, "shadow": 5.2,
		},
		Tags: map[string]string{"day3_date": "2024-01-31"},
	})
	agg.Record(model.Stock{Code: "600000", Name: "浦发银行"}, "shrink_breakout", detector.Result{
		Matched: true, Score: 81,
		Details: map[string]float64{
			"decline_pct": 23.08, "consolidation1_days": 32,
			"post_days": 6, "vol_ratio": 0.5714,
		},
		Tags: map[string]string{"limit_up_date": "2024-03-20", "limit_up_type": "ordinary"},
	})
	agg.Record(model.Stock{Code: "300750", Name: "宁德时代"}, "volume_breakout", detector.Result{
		Matched: true, Score: 62,
		Details: map[string]float64{
			"limit_up_change": 20.0, "post_consol_days": 5,
			"post_range_pct": 1.38, "break_vol_ratio": 1.67,
		},
		Tags: map[string]string{"limit_up_date": "2024-03-22", "break_date": "2024-03-29"},
	})

	summary := &scanner.Summary{
		ScanID:       "test-scan",
		TotalScanned: 100,
		Skipped:      3,
		Elapsed:      42 * time.Second,
		StartedAt:    time.Date(2024, 3, 29, 15, 30, 0, 0, time.UTC),
	}
	return New(agg, summary, order, 5)
}

func TestRenderTerminal(t *testing.T) {
	var buf bytes.Buffer
	sampleWriter().RenderTerminal(&buf)
	out := buf.String()

	for _, want := range []string{"600000", "浦发银行", "300750", "resonance", "Top 5"} {
		if !strings.Contains(out, want) {
			t.Errorf("Terminal output missing %q", want)
		}
	}
}

func TestMarkdown(t *testing.T) {
	md := sampleWriter().Markdown()

	if !strings.Contains(md, "### Resonance") {
		t.Error("Expected a resonance section")
	}
	if !strings.Contains(md, "| 600000 | 浦发银行 |") {
		t.Error("Expected the resonance row")
	}
	if !strings.Contains(md, "### Volume Breakout") {
		t.Error("Expected a per-strategy section")
	}
}

func TestMarkdownEmptyScan(t *testing.T) {
	agg := aggregate.New(order)
	summary := &scanner.Summary{StartedAt: time.Now()}
	md := New(agg, summary, order, 5).Markdown()

	if !strings.Contains(md, "No symbols matched today") {
		t.Error("Expected the empty-scan note")
	}
}

func TestWriteFiles(t *testing.T) {
	dir := t.TempDir()
	written, err := sampleWriter().WriteFiles(dir)
	if err != nil {
		t.Fatalf("WriteFiles failed: %v", err)
	}

	// reversal, volume_breakout and shrink_breakout CSVs + JSON + Markdown
	if len(written) != 5 {
		t.Fatalf("Expected 5 files, got %d: %v", len(written), written)
	}

	data, err := os.ReadFile(filepath.Join(dir, "latest_results.json"))
	if err != nil {
		t.Fatalf("Reading JSON: %v", err)
	}
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("Parsing JSON: %v", err)
	}
	if doc["scan_id"] != "test-scan" {
		t.Errorf("Expected scan_id test-scan, got %v", doc["scan_id"])
	}
	if doc["total_scanned"] != float64(100) {
		t.Errorf("Expected total_scanned 100, got %v", doc["total_scanned"])
	}

	csvData, err := os.ReadFile(filepath.Join(dir, "reversal_20240329_153000.csv"))
	if err != nil {
		t.Fatalf("Reading reversal CSV: %v", err)
	}
	if !strings.HasPrefix(string(csvData), "code,name,") {
		t.Errorf("Unexpected CSV header: %s", strings.SplitN(string(csvData), "\n", 2)[0])
	}
	if !strings.Contains(string(csvData), "600000") {
		t.Error("Expected the reversal hit in the CSV")
	}
}
