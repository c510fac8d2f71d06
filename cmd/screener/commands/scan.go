package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/wonny/screener/internal/contracts"
	"github.com/wonny/screener/internal/export"
	"github.com/wonny/screener/internal/recorder"
	"github.com/wonny/screener/internal/scans"
	"github.com/wonny/screener/internal/strategyconfig"
	"github.com/wonny/screener/internal/universe"
)

// scanCmd represents the scan command
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Run a strategy over a symbol universe",
	Long: `Runs one scan and prints the matches.

Symbols come from (first match wins):
  --tickers-file   one symbol per line, # comments allowed
  --symbols        comma separated list
  --universe       us-all, nasdaq, nyse, sp500 or custom (with --universe-file)

A preset from the preset file fills every flag that is not given explicitly.
Ctrl+C stops the scan and keeps the partial results.

Example:
  go run ./cmd/screener scan --strategy golden_cross --universe sp500 --max-count 100
  go run ./cmd/screener scan --strategy momentum_breakout --tickers-file watchlist.txt \
      --params lookback=55 --params min_volume_ratio=1.5 --out exports/momentum.csv
  go run ./cmd/screener scan --preset daily-golden-cross --with-fundamentals`,
	RunE: runScan,
}

var (
	scanStrategy         string
	scanPreset           string
	scanTickersFile      string
	scanSymbols          []string
	scanUniverse         string
	scanUniverseFile     string
	scanMaxCount         int
	scanPeriod           string
	scanWorkers          int
	scanParams           []string
	scanProfile          string
	scanWithFundamentals bool
	scanOut              string
	scanIncludeSignals   bool
	scanTop              int
)

func init() {
	rootCmd.AddCommand(scanCmd)
	addScanFlags(scanCmd.Flags())
}

func addScanFlags(f *pflag.FlagSet) {
	f.StringVarP(&scanStrategy, "strategy", "s", "", "strategy id (see: strategies)")
	f.StringVar(&scanPreset, "preset", "", "preset name from the preset file")
	f.StringVar(&scanTickersFile, "tickers-file", "", "file with one ticker per line")
	f.StringSliceVar(&scanSymbols, "symbols", nil, "comma separated symbols")
	f.StringVarP(&scanUniverse, "universe", "u", "", "universe: us-all, nasdaq, nyse, sp500, custom")
	f.StringVar(&scanUniverseFile, "universe-file", "", "ticker file for the custom universe")
	f.IntVar(&scanMaxCount, "max-count", 0, "limit the universe to the first N symbols (0 = all)")
	f.StringVarP(&scanPeriod, "period", "p", "", "history period: 1mo, 3mo, 6mo, 1y, 2y, 5y, 10y, ytd, max")
	f.IntVarP(&scanWorkers, "workers", "w", 0, "evaluation workers (default SCAN_WORKERS)")
	f.StringArrayVar(&scanParams, "params", nil, "parameter override key=value (repeatable)")
	f.StringVar(&scanProfile, "profile", "", "fundamental weighting profile: balanced, quality, growth, income")
	f.BoolVar(&scanWithFundamentals, "with-fundamentals", false, "download fundamentals for each symbol")
	f.StringVarP(&scanOut, "out", "o", "", "export file (.json or .csv)")
	f.BoolVar(&scanIncludeSignals, "include-signals", false, "include trade signals in the export")
	f.IntVar(&scanTop, "top", 25, "number of results to print (0 = all)")
}

// scanPlan is a fully resolved scan invocation
type scanPlan struct {
	preset      string
	configHash  string
	strategy    string
	period      string
	params      contracts.Params
	tickersFile string
	symbols     []string
	universe    universe.Spec
	out         string
	outFormat   string
	withSignals bool
}

// resolvePlan merges an optional preset with the explicitly set flags
func resolvePlan(cmd *cobra.Command, preset *strategyconfig.Preset, configHash string) (scanPlan, []string, error) {
	changed := cmd.Flags().Changed
	plan := scanPlan{
		strategy:    scanStrategy,
		period:      scanPeriod,
		tickersFile: scanTickersFile,
		symbols:     scanSymbols,
		universe:    universe.Spec{Name: scanUniverse, MaxCount: scanMaxCount, File: scanUniverseFile},
		out:         scanOut,
		withSignals: scanIncludeSignals,
	}

	var base contracts.Params
	if preset != nil {
		plan.preset = preset.Name
		plan.configHash = configHash
		base = contracts.Params(preset.Params)
		if !changed("strategy") {
			plan.strategy = preset.Strategy
		}
		if !changed("period") {
			plan.period = preset.Period
		}
		if !changed("symbols") && !changed("tickers-file") && !changed("universe") {
			plan.symbols = preset.Symbols
			plan.universe.Name = preset.Universe
			plan.universe.File = preset.UniverseFile
		}
		if !changed("max-count") {
			plan.universe.MaxCount = preset.MaxCount
		}
		if !changed("out") && preset.Export != nil {
			plan.out = preset.Export.Dir
			plan.outFormat = preset.Export.Format
		}
	}

	if plan.strategy == "" {
		return plan, nil, errors.New("--strategy or --preset is required")
	}
	if plan.tickersFile == "" && len(plan.symbols) == 0 && plan.universe.Name == "" {
		return plan, nil, errors.New("one of --tickers-file, --symbols or --universe is required")
	}

	if scanProfile != "" {
		if _, ok := scans.Profiles[strings.ToLower(scanProfile)]; !ok {
			return plan, nil, fmt.Errorf("unknown --profile %q (available: %s)", scanProfile, strings.Join(scans.ProfileNames(), ", "))
		}
	}

	var ignored []string
	plan.params, ignored = buildParams(base, scanParams, strings.ToLower(scanProfile))
	return plan, ignored, nil
}

// resolveSymbols turns the plan's symbol source into a symbol list
func resolveSymbols(ctx context.Context, a *app, plan scanPlan) ([]string, error) {
	switch {
	case plan.tickersFile != "":
		symbols, err := universe.ReadTickerFile(plan.tickersFile)
		if err != nil {
			return nil, err
		}
		return universe.Clean(symbols), nil
	case len(plan.symbols) > 0:
		return contracts.NormalizeSymbols(plan.symbols), nil
	default:
		return a.universe.Load(ctx, plan.universe)
	}
}

// exportPath resolves --out; a path without extension is a directory and
// gets a generated <name>_<timestamp>.<format> file
func exportPath(out, format, name string, at time.Time) string {
	if out == "" {
		return ""
	}
	if filepath.Ext(out) != "" {
		return out
	}
	if format == "" {
		format = "json"
	}
	return filepath.Join(out, export.FileName(name, at, format))
}

func runScan(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, appOptions{fundamentals: scanWithFundamentals, history: true})
	if err != nil {
		return err
	}
	defer a.Close()

	var (
		preset     *strategyconfig.Preset
		configHash string
	)
	if scanPreset != "" {
		presets, _, err := a.loadPresets()
		if err != nil {
			return err
		}
		p, ok := presets.Preset(scanPreset)
		if !ok {
			return fmt.Errorf("preset %q not found", scanPreset)
		}
		preset = &p
		configHash, _ = strategyconfig.Hash(presets)
	}

	plan, ignored, err := resolvePlan(cmd, preset, configHash)
	if err != nil {
		return err
	}
	for _, raw := range ignored {
		PrintWarning(fmt.Sprintf("Ignoring invalid parameter override: %s", raw))
	}

	if !a.registry.Has(plan.strategy) {
		return fmt.Errorf("unknown strategy %q (see: screener strategies)", plan.strategy)
	}
	if scans.NeedsFundamentals(plan.strategy) && !scanWithFundamentals {
		PrintWarning(fmt.Sprintf("%s scores fundamentals; run with --with-fundamentals or it will match nothing", plan.strategy))
	}

	symbols, err := resolveSymbols(ctx, a, plan)
	if err != nil {
		return fmt.Errorf("resolve symbols: %w", err)
	}
	if len(symbols) == 0 {
		return errors.New("symbol list is empty")
	}

	r, err := a.newRunner(scanWorkers)
	if err != nil {
		return err
	}
	defer r.Shutdown()

	PrintHeader(fmt.Sprintf("Scan: %s", plan.strategy))
	if plan.preset != "" {
		PrintKeyValue("Preset", plan.preset, 12)
	}
	PrintKeyValue("Symbols", fmt.Sprintf("%d", len(symbols)), 12)
	PrintKeyValue("Period", valueOr(plan.period, a.cfg.Fetcher.DefaultPeriod), 12)
	PrintSeparator()

	collector := export.NewCollector()
	progress := newProgressPrinter()

	h, err := r.Start(contracts.ScanRequest{
		Strategy: plan.strategy,
		Symbols:  symbols,
		Params:   plan.params,
		Period:   plan.period,
	}, collector.OnResult, progress.update)
	if err != nil {
		return fmt.Errorf("start scan: %w", err)
	}

	go func() {
		select {
		case <-ctx.Done():
			h.Stop()
		case <-h.Done():
		}
	}()

	summary, runErr := h.Wait(context.Background())
	progress.done()

	results := collector.Results()
	if a.fundamentals != nil {
		for _, res := range results {
			res.Meta = a.fundamentals.Meta(context.WithoutCancel(ctx), res.Symbol)
		}
	}

	fmt.Println()
	printResults(results, scanTop)
	fmt.Println()
	printSummary(summary)

	doc := export.Document{
		Strategy:    h.Strategy,
		Period:      h.Period,
		GeneratedAt: time.Now().UTC(),
		Summary:     summary,
		Results:     results,
	}
	if plan.withSignals {
		doc.Signals = collector.Signals()
	}

	if path := exportPath(plan.out, plan.outFormat, valueOr(plan.preset, plan.strategy), h.StartedAt); path != "" {
		files, err := export.Save(path, doc)
		if err != nil {
			return fmt.Errorf("export results: %w", err)
		}
		for _, f := range files {
			PrintSuccess(fmt.Sprintf("Results written to %s", f))
		}
	}

	run := recorder.Run{
		ID:         h.ID,
		Strategy:   h.Strategy,
		Period:     h.Period,
		Preset:     plan.preset,
		ConfigHash: plan.configHash,
		StartedAt:  h.StartedAt,
		Summary:    summary,
		Results:    results,
	}
	if runErr != nil {
		run.Error = runErr.Error()
	}
	if err := a.recorder.Record(context.WithoutCancel(ctx), run); err != nil {
		a.log.WithError(err).Warn("Failed to record scan run")
	}

	if runErr != nil {
		return fmt.Errorf("scan failed: %w", runErr)
	}
	return nil
}

func valueOr(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
