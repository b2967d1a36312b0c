package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"screener/internal/aggregate"
	"screener/internal/config"
	"screener/internal/detector"
	"screener/internal/provider"
	"screener/internal/report"
	"screener/internal/scanner"
	"screener/internal/symbols"
	"screener/pkg/model"
)

var (
	cfgFile    string
	workers    int
	symbolList string
	detectors  string
	format     string
	outputDir  string
	topN       int
	noFiles    bool
	verbose    bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "screener",
		Short: "A-share daily-bar pattern screener",
		Long: `Screener scans the Shanghai/Shenzhen markets with three candlestick
pattern detectors and cross-references the hits:

Detectors:
  reversal         - small bear > big bear > gap-down bull recovery
  volume_breakout  - decline > consolidation > limit-up > pullback > volume breakout
  shrink_breakout  - decline > consolidation > limit-up > hold > shrinking-volume breakout

Symbols hit by two or more detectors are flagged as resonance picks.

Examples:
  screener
  screener --detectors reversal,shrink_breakout --workers 10
  screener --symbols 600519,300750 --verbose`,
		RunE: run,
	}

	rootCmd.Flags().StringVar(&cfgFile, "config", "config.yaml", "config file path")
	rootCmd.Flags().IntVar(&workers, "workers", 0, "number of parallel workers (0 = config value)")
	rootCmd.Flags().StringVar(&symbolList, "symbols", "", "comma-separated codes to scan (default: full market)")
	rootCmd.Flags().StringVar(&detectors, "detectors", "", "comma-separated detector names (default: all)")
	rootCmd.Flags().StringVar(&format, "format", "table", "terminal output format: table, json")
	rootCmd.Flags().StringVar(&outputDir, "output", "", "directory for CSV/JSON/Markdown files (default: config value)")
	rootCmd.Flags().IntVar(&topN, "top", 0, "combined recommendation list length (0 = config value)")
	rootCmd.Flags().BoolVar(&noFiles, "no-files", false, "terminal output only, skip result files")
	rootCmd.Flags().BoolVar(&verbose, "verbose", false, "debug logging")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	// .env is optional, used for OUTPUT_DIR / SCANNER_WORKERS overrides
	_ = godotenv.Load()

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if workers > 0 {
		cfg.Scanner.Workers = workers
	}
	if outputDir != "" {
		cfg.Output.Dir = outputDir
	}
	if topN > 0 {
		cfg.Output.TopN = topN
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	log := newLogger(verbose)

	active, err := buildDetectors(cfg.Detectors)
	if err != nil {
		return err
	}

	// Eastmoney is primary; Tencent backs up the history endpoint
	eastmoney := provider.NewEastmoneyProvider(cfg.Provider.RateLimit, log)
	tencent := provider.NewTencentProvider(cfg.Provider.RateLimit, log)
	dataProvider := provider.NewFallbackProvider(eastmoney, tencent)
	if !dataProvider.IsAvailable() {
		return fmt.Errorf("no available data providers")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Println("\nInterrupted. Stopping scan...")
		cancel()
	}()

	stocks, err := buildUniverse(ctx, dataProvider, log)
	if err != nil {
		return err
	}
	if len(stocks) == 0 {
		return fmt.Errorf("no stocks to scan")
	}

	names := make([]string, len(active))
	for i, d := range active {
		names[i] = d.Name()
	}
	fmt.Printf("Scanning %d stocks with %s...\n\n", len(stocks), strings.Join(names, ", "))

	s := scanner.NewScanner(dataProvider, active, cfg.Scanner, log)

	bar := progressbar.NewOptions(len(stocks),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription("Scanning"),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]█[reset]",
			SaucerHead:    "[green]█[reset]",
			SaucerPadding: "░",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
	s.SetProgressCallback(func(scanned, total int) {
		bar.Set(scanned)
	})

	agg := aggregate.New(names)
	summary, err := s.Scan(ctx, stocks, agg)
	if err != nil {
		return fmt.Errorf("scanning: %w", err)
	}
	bar.Finish()
	fmt.Println()

	refreshNames(ctx, agg, log)

	w := report.New(agg, summary, names, cfg.Output.TopN)
	if format == "json" {
		if err := w.RenderJSON(os.Stdout); err != nil {
			return fmt.Errorf("encoding results: %w", err)
		}
	} else {
		w.RenderTerminal(os.Stdout)
	}

	if !noFiles {
		written, err := w.WriteFiles(cfg.Output.Dir)
		if err != nil {
			return fmt.Errorf("writing result files: %w", err)
		}
		for _, path := range written {
			log.Info().Str("path", path).Msg("wrote report file")
		}
	}
	return nil
}

func newLogger(verbose bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(level).
		With().Timestamp().Logger()
}

// buildDetectors resolves the --detectors flag against the registry.
// An empty flag means every registered detector.
func buildDetectors(cfg detector.Config) ([]detector.Detector, error) {
	if detectors == "" {
		return detector.All(cfg), nil
	}
	var active []detector.Detector
	for _, name := range strings.Split(detectors, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		d, err := detector.Get(name, cfg)
		if err != nil {
			return nil, err
		}
		active = append(active, d)
	}
	if len(active) == 0 {
		return nil, fmt.Errorf("no detectors selected")
	}
	return active, nil
}

// buildUniverse loads the scan universe: either the explicit --symbols
// list, or the full-market snapshot filtered down to tradable symbols
// that closed bullish today
func buildUniverse(ctx context.Context, p provider.Provider, log zerolog.Logger) ([]model.Stock, error) {
	if symbolList != "" {
		return symbols.FromList(strings.Split(symbolList, ",")), nil
	}

	fmt.Println("Loading market snapshot...")
	quotes, err := p.GetQuotes(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading market snapshot: %w", err)
	}
	stocks := symbols.BuildUniverse(quotes)
	log.Info().Int("snapshot", len(quotes)).Int("universe", len(stocks)).Msg("universe built")
	return stocks, nil
}

// refreshNames re-resolves display names for the matched symbols only.
// Best effort: the snapshot names stay if Sina is unreachable.
func refreshNames(ctx context.Context, agg *aggregate.Aggregator, log zerolog.Logger) {
	codes := agg.Codes()
	if len(codes) == 0 {
		return
	}
	resolver := provider.NewSinaNameResolver(log)
	names, err := resolver.GetLatestNames(ctx, codes)
	if err != nil {
		log.Warn().Err(err).Msg("name refresh failed, keeping snapshot names")
	}
	for code, name := range names {
		agg.SetName(code, name)
	}
}
