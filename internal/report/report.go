package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"

	"screener/internal/aggregate"
	"screener/internal/scanner"
)

// Labels for the strategy names used in terminal and file output
var strategyLabels = map[string]string{
	"reversal":        "Reversal",
	"volume_breakout": "Volume Breakout",
	"shrink_breakout": "Shrink Breakout",
}

// Label returns the display label for a detector name
func Label(name string) string {
	if l, ok := strategyLabels[name]; ok {
		return l
	}
	return name
}

// Writer renders one completed scan to the terminal and to files. It only
// reads the aggregator; the core has no knowledge of these formats.
type Writer struct {
	agg        *aggregate.Aggregator
	summary    *scanner.Summary
	strategies []string // canonical detector order
	topN       int
}

// New creates a report writer for a completed scan
func New(agg *aggregate.Aggregator, summary *scanner.Summary, strategies []string, topN int) *Writer {
	return &Writer{agg: agg, summary: summary, strategies: strategies, topN: topN}
}

// RenderTerminal prints the overview, resonance table, per-strategy
// tables and the combined recommendation list
func (w *Writer) RenderTerminal(out io.Writer) {
	fmt.Fprintf(out, "\nScan %s: %d symbols in %s (%d skipped, %d faults)\n\n",
		w.summary.ScanID, w.summary.TotalScanned, w.summary.Elapsed.Round(time.Second),
		w.summary.Skipped, len(w.summary.Faults))

	// Overview
	overview := tablewriter.NewTable(out,
		tablewriter.WithHeader([]string{"Strategy", "Hits"}),
	)
	for _, name := range w.strategies {
		overview.Append([]string{Label(name), strconv.Itoa(len(w.agg.ResultsFor(name)))})
	}
	overview.Append([]string{"Distinct symbols", strconv.Itoa(w.agg.Len())})
	overview.Render()

	// Resonance
	resonance := w.agg.Resonance()
	if len(resonance) > 0 {
		fmt.Fprintf(out, "\nMulti-strategy resonance (%d symbols hit by 2+ strategies):\n\n", len(resonance))
		table := tablewriter.NewTable(out,
			tablewriter.WithHeader([]string{"Code", "Name", "Strategies", "Scores"}),
		)
		for _, e := range resonance {
			labels := make([]string, len(e.Strategies))
			scores := make([]string, len(e.Strategies))
			for i, s := range e.Strategies {
				labels[i] = Label(s)
				scores[i] = fmt.Sprintf("%s:%d", Label(s), e.Scores[s])
			}
			table.Append([]string{e.Stock.Code, e.Stock.Name, strings.Join(labels, ", "), strings.Join(scores, ", ")})
		}
		table.Render()
	} else {
		fmt.Fprintln(out, "\nMulti-strategy resonance: none today")
	}

	// Per-strategy detail tables
	w.renderReversal(out)
	w.renderVolumeBreakout(out)
	w.renderShrinkBreakout(out)

	// Combined recommendations
	recs := w.agg.TopRecommendations(w.topN)
	fmt.Fprintf(out, "\nTop %d combined picks:\n", w.topN)
	if len(recs) == 0 {
		fmt.Fprintln(out, "  no candidates today")
	}
	for i, rec := range recs {
		labels := make([]string, len(rec.Strategies))
		for j, s := range rec.Strategies {
			labels[j] = Label(s)
		}
		tag := ""
		if rec.Resonance {
			tag = " [resonance]"
		}
		fmt.Fprintf(out, "  %d. %s %s - %s (best score %d)%s\n",
			i+1, rec.Stock.Code, rec.Stock.Name, strings.Join(labels, ", "), rec.MaxScore, tag)
	}

	fmt.Fprintln(out, "\nFor research only, not investment advice.")
}

func (w *Writer) renderReversal(out io.Writer) {
	hits := w.agg.ResultsFor("reversal")
	fmt.Fprintf(out, "\n%s (%d hits): small decline > large decline > gap-down recovery\n", Label("reversal"), len(hits))
	if len(hits) == 0 {
		return
	}
	fmt.Fprintln(out)
	table := tablewriter.NewTable(out,
		tablewriter.WithHeader([]string{"Code", "Name", "Prior", "Pattern", "Contrast", "Shadow", "Score"}),
	)
	for _, h := range hits {
		d := h.Result.Details
		pattern := fmt.Sprintf("%+.1f%% > %+.1f%% > %+.1f%%",
			d["day1_change"], d["day2_change"], d["day3_change"])
		table.Append([]string{
			h.Stock.Code,
			h.Stock.Name,
			fmt.Sprintf("%+.1f%%", d["prior_decline"]),
			pattern,
			fmt.Sprintf("%.1fx", d["contrast"]),
			fmt.Sprintf("%.0f%%", d["shadow"]),
			strconv.Itoa(h.Result.Score),
		})
	}
	table.Render()
}

func (w *Writer) renderVolumeBreakout(out io.Writer) {
	hits := w.agg.ResultsFor("volume_breakout")
	fmt.Fprintf(out, "\n%s (%d hits): decline > consolidation > limit-up > pullback > volume breakout\n", Label("volume_breakout"), len(hits))
	if len(hits) == 0 {
		return
	}
	fmt.Fprintln(out)
	table := tablewriter.NewTable(out,
		tablewriter.WithHeader([]string{"Code", "Name", "Limit-Up", "Gain", "Pullback", "Range", "Vol Ratio", "Score"}),
	)
	for _, h := range hits {
		d := h.Result.Details
		table.Append([]string{
			h.Stock.Code,
			h.Stock.Name,
			h.Result.Tags["limit_up_date"],
			fmt.Sprintf("%+.1f%%", d["limit_up_change"]),
			fmt.Sprintf("%.0fd", d["post_consol_days"]),
			fmt.Sprintf("%.1f%%", d["post_range_pct"]),
			fmt.Sprintf("%.2fx", d["break_vol_ratio"]),
			strconv.Itoa(h.Result.Score),
		})
	}
	table.Render()
}

func (w *Writer) renderShrinkBreakout(out io.Writer) {
	hits := w.agg.ResultsFor("shrink_breakout")
	fmt.Fprintf(out, "\n%s (%d hits): decline > consolidation > limit-up > consolidation > shrink breakout\n", Label("shrink_breakout"), len(hits))
	if len(hits) == 0 {
		return
	}
	fmt.Fprintln(out)
	table := tablewriter.NewTable(out,
		tablewriter.WithHeader([]string{"Code", "Name", "Decline", "Base", "Limit-Up", "Shape", "Hold", "MA5/MA10", "Score"}),
	)
	for _, h := range hits {
		d := h.Result.Details
		table.Append([]string{
			h.Stock.Code,
			h.Stock.Name,
			fmt.Sprintf("-%.1f%%", d["decline_pct"]),
			fmt.Sprintf("%.0fd", d["consolidation1_days"]),
			h.Result.Tags["limit_up_date"],
			h.Result.Tags["limit_up_type"],
			fmt.Sprintf("%.0fd", d["post_days"]),
			fmt.Sprintf("%.4f", d["vol_ratio"]),
			strconv.Itoa(h.Result.Score),
		})
	}
	table.Render()
}

// csvColumns defines the stable per-strategy CSV layouts. Numeric
// columns read from Details, the rest from Tags.
var csvColumns = map[string][]string{
	"reversal": {
		"prior_decline", "day1_change", "day2_change", "day3_change",
		"gap_down", "day2_gap", "contrast", "shadow",
		"day1_date", "day2_date", "day3_date",
	},
	"volume_breakout": {
		"prior_decline_pct", "consol_days", "consol_range_pct", "consol_mean_price",
		"limit_up_date", "limit_up_change", "limit_up_body_ratio", "limit_up_vol_ratio",
		"post_consol_days", "post_range_pct",
		"break_date", "break_change", "break_vol_ratio", "break_body_ratio", "break_close",
	},
	"shrink_breakout": {
		"decline_pct", "consolidation1_days", "consolidation1_amplitude",
		"limit_up_date", "limit_up_change", "limit_up_type",
		"post_days", "post_amplitude",
		"vol_ratio", "signal_change", "signal_date",
	},
}

// WriteFiles writes per-strategy CSVs, the combined JSON document and
// the Markdown report into dir. Returns the paths written.
func (w *Writer) WriteFiles(dir string) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating output dir: %w", err)
	}
	timestamp := w.summary.StartedAt.Format("20060102_150405")

	var written []string
	for _, name := range w.strategies {
		hits := w.agg.ResultsFor(name)
		if len(hits) == 0 {
			continue
		}
		path := filepath.Join(dir, fmt.Sprintf("%s_%s.csv", name, timestamp))
		if err := w.writeCSV(path, name, hits); err != nil {
			return written, err
		}
		written = append(written, path)
	}

	jsonPath := filepath.Join(dir, "latest_results.json")
	if err := w.writeJSON(jsonPath); err != nil {
		return written, err
	}
	written = append(written, jsonPath)

	mdPath := filepath.Join(dir, "results.md")
	if err := os.WriteFile(mdPath, []byte(w.Markdown()), 0o644); err != nil {
		return written, fmt.Errorf("writing markdown report: %w", err)
	}
	written = append(written, mdPath)

	return written, nil
}

func (w *Writer) writeCSV(path, strategy string, hits []aggregate.StrategyHit) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	columns := csvColumns[strategy]

	header := append([]string{"code", "name"}, columns...)
	header = append(header, "score")
	if err := cw.Write(header); err != nil {
		return err
	}

	for _, h := range hits {
		row := []string{h.Stock.Code, h.Stock.Name}
		for _, col := range columns {
			if v, ok := h.Result.Details[col]; ok {
				row = append(row, strconv.FormatFloat(v, 'f', -1, 64))
			} else {
				row = append(row, h.Result.Tags[col])
			}
		}
		row = append(row, strconv.Itoa(h.Result.Score))
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

type jsonStrategy struct {
	Count   int                     `json:"count"`
	Results []aggregate.StrategyHit `json:"results"`
}

type jsonDocument struct {
	ScanID         string                     `json:"scan_id"`
	Timestamp      string                     `json:"timestamp"`
	TotalScanned   int                        `json:"total_scanned"`
	Skipped        int                        `json:"skipped"`
	ElapsedSeconds float64                    `json:"elapsed_seconds"`
	Strategies     map[string]jsonStrategy    `json:"strategies"`
	Resonance      []aggregate.Entry          `json:"resonance"`
	Top            []aggregate.Recommendation `json:"top"`
	Faults         []scanner.Fault            `json:"faults,omitempty"`
}

func (w *Writer) document() jsonDocument {
	doc := jsonDocument{
		ScanID:         w.summary.ScanID,
		Timestamp:      w.summary.StartedAt.Format("20060102_150405"),
		TotalScanned:   w.summary.TotalScanned,
		Skipped:        w.summary.Skipped,
		ElapsedSeconds: w.summary.Elapsed.Seconds(),
		Strategies:     make(map[string]jsonStrategy, len(w.strategies)),
		Resonance:      w.agg.Resonance(),
		Top:            w.agg.TopRecommendations(w.topN),
		Faults:         w.summary.Faults,
	}
	for _, name := range w.strategies {
		hits := w.agg.ResultsFor(name)
		doc.Strategies[name] = jsonStrategy{Count: len(hits), Results: hits}
	}
	return doc
}

// RenderJSON writes the combined scan document to out, for --format json
func (w *Writer) RenderJSON(out io.Writer) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(w.document())
}

func (w *Writer) writeJSON(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(w.document())
}

// Markdown formats the scan as a Markdown report, also suitable for a CI
// job summary
func (w *Writer) Markdown() string {
	var b strings.Builder

	b.WriteString("## Multi-strategy scan results\n\n")
	fmt.Fprintf(&b, "**Scan**: %s | **Symbols**: %d | **Elapsed**: %.1fs\n\n",
		w.summary.StartedAt.Format("2006-01-02 15:04:05"), w.summary.TotalScanned, w.summary.Elapsed.Seconds())

	b.WriteString("### Overview\n\n| Strategy | Hits |\n|----------|------|\n")
	for _, name := range w.strategies {
		fmt.Fprintf(&b, "| %s | %d |\n", Label(name), len(w.agg.ResultsFor(name)))
	}
	b.WriteString("\n")

	if resonance := w.agg.Resonance(); len(resonance) > 0 {
		b.WriteString("### Resonance\n\n| Code | Name | Strategies | Scores |\n|------|------|------------|--------|\n")
		for _, e := range resonance {
			labels := make([]string, len(e.Strategies))
			scores := make([]string, len(e.Strategies))
			for i, s := range e.Strategies {
				labels[i] = Label(s)
				scores[i] = fmt.Sprintf("%s:%d", Label(s), e.Scores[s])
			}
			fmt.Fprintf(&b, "| %s | %s | %s | %s |\n", e.Stock.Code, e.Stock.Name,
				strings.Join(labels, ", "), strings.Join(scores, ", "))
		}
		b.WriteString("\n")
	}

	for _, name := range w.strategies {
		hits := w.agg.ResultsFor(name)
		if len(hits) == 0 {
			continue
		}
		fmt.Fprintf(&b, "### %s\n\n| Code | Name | Score |\n|------|------|-------|\n", Label(name))
		for _, h := range hits {
			fmt.Fprintf(&b, "| %s | %s | %d |\n", h.Stock.Code, h.Stock.Name, h.Result.Score)
		}
		b.WriteString("\n")
	}

	if w.agg.Len() == 0 {
		b.WriteString("No symbols matched today.\n\n")
	}

	b.WriteString("---\n*For research only, not investment advice.*\n")
	return b.String()
}
