package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/screener/internal/runner"
	"github.com/wonny/screener/internal/scheduler"
	"github.com/wonny/screener/internal/scheduler/jobs"
	"github.com/wonny/screener/internal/strategyconfig"
	"github.com/wonny/screener/internal/universe"
)

// scheduleCmd represents the schedule command
var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Run presets on their cron schedules",
	Long: `Runs scheduled presets from the preset file.

Subcommands:
  start   - start the scheduler daemon
  list    - list presets and their schedules
  run     - run one preset now

Example:
  go run ./cmd/screener schedule start
  go run ./cmd/screener schedule list
  go run ./cmd/screener schedule run daily-golden-cross`,
}

var (
	scheduleStartCmd = &cobra.Command{
		Use:   "start",
		Short: "Start the scheduler",
		Long: `Registers every preset that has a schedule plus the maintenance jobs:
- scan:<preset>:     preset schedule
- universe_refresh:  weekdays 6 AM
- price_warmup:<u>:  --warmup schedule, one per scheduled universe
- cache_cleanup:     daily 3 AM (entries older than --cache-max-age)

The scheduler stops with Ctrl+C.`,
		RunE: runScheduler,
	}

	scheduleListCmd = &cobra.Command{
		Use:   "list",
		Short: "List presets and schedules",
		RunE:  listSchedules,
	}

	scheduleRunCmd = &cobra.Command{
		Use:   "run [preset]",
		Short: "Run a preset now",
		Args:  cobra.ExactArgs(1),
		RunE:  runPresetNow,
	}

	scheduleCacheMaxAge time.Duration
	scheduleRetries     int
	scheduleRetryDelay  time.Duration
	scheduleWarmup      string
)

func init() {
	rootCmd.AddCommand(scheduleCmd)
	scheduleCmd.AddCommand(scheduleStartCmd)
	scheduleCmd.AddCommand(scheduleListCmd)
	scheduleCmd.AddCommand(scheduleRunCmd)

	scheduleStartCmd.Flags().DurationVar(&scheduleCacheMaxAge, "cache-max-age", 30*24*time.Hour, "cache cleanup age")
	scheduleStartCmd.Flags().IntVar(&scheduleRetries, "retries", 3, "retries for a failed job")
	scheduleStartCmd.Flags().DurationVar(&scheduleRetryDelay, "retry-delay", time.Minute, "pause between retries")
	scheduleStartCmd.Flags().StringVar(&scheduleWarmup, "warmup", "0 0 7 * * 1-5", "price cache warmup schedule (empty = off)")
}

func runScheduler(cmd *cobra.Command, args []string) error {
	a, err := newApp(context.Background(), appOptions{history: true})
	if err != nil {
		return err
	}
	defer a.Close()

	presets, _, err := a.loadPresets()
	if err != nil {
		return err
	}
	for _, w := range strategyconfig.Warn(presets) {
		PrintWarning(fmt.Sprintf("[%s] %s", w.Code, w.Message))
	}
	hash, _ := strategyconfig.Hash(presets)

	r, err := a.newRunner(0)
	if err != nil {
		return err
	}
	defer r.Shutdown()

	sched := scheduler.New(a.log, scheduler.WithRetry(scheduleRetries, scheduleRetryDelay))
	if err := registerJobs(sched, a, r, presets, hash); err != nil {
		return err
	}

	sched.Start()

	PrintHeader("Scheduler started")
	for _, name := range sched.GetAllJobs() {
		next, _ := sched.NextRun(name)
		PrintKeyValue(name, next.Format("2006-01-02 15:04:05"), 28)
	}
	fmt.Println("\nPress Ctrl+C to stop")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	fmt.Println("\nShutting down scheduler...")
	r.Stop()
	sched.Stop()
	printJobStats(sched)
	fmt.Println("Scheduler stopped")

	return nil
}

func registerJobs(sched *scheduler.Scheduler, a *app, r *runner.Runner, presets *strategyconfig.Config, hash string) error {
	for _, p := range presets.Scheduled() {
		if err := sched.AddJob(jobs.NewScanJob(p, hash, a.universe, r, a.recorder, a.log)); err != nil {
			return err
		}
	}

	var names []string
	seen := map[string]bool{}
	for _, p := range presets.Scheduled() {
		if p.Universe == "" || p.Universe == universe.Custom || seen[p.Universe] {
			continue
		}
		seen[p.Universe] = true
		names = append(names, p.Universe)

		if scheduleWarmup != "" {
			spec := universe.Spec{Name: p.Universe, MaxCount: p.MaxCount}
			warmup := jobs.NewPriceWarmupJob(a.universe, a.loader, spec, p.Period, scheduleWarmup, a.log)
			if err := sched.AddJob(warmup); err != nil {
				return err
			}
		}
	}
	if len(names) > 0 {
		if err := sched.AddJob(jobs.NewUniverseRefreshJob(a.universe, names, a.log)); err != nil {
			return err
		}
	}

	return sched.AddJob(jobs.NewCacheCleanupJob(a.cache, scheduleCacheMaxAge, a.log))
}

func printJobStats(sched *scheduler.Scheduler) {
	stats := sched.GetJobStats()
	widths := []int{28, 6, 6, 6, 20, 16}
	PrintTableHeader([]string{"Job", "Runs", "OK", "Fail", "Last run", "Last scan"}, widths)
	for _, name := range sched.GetAllJobs() {
		st := stats[name]
		last := "-"
		if st.LastRun != nil {
			last = st.LastRun.Format("2006-01-02 15:04:05")
		}
		scan := "-"
		if st.LastScan != nil {
			scan = fmt.Sprintf("%d/%d matched", st.LastScan.Matched, st.LastScan.Total)
		}
		PrintTableRow([]string{
			name,
			fmt.Sprintf("%d", st.TotalRuns),
			fmt.Sprintf("%d", st.SuccessCount),
			fmt.Sprintf("%d", st.FailureCount),
			last,
			scan,
		}, widths)
	}
}

func listSchedules(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	presets, _, err := loadPresetFile(cfg)
	if err != nil {
		return err
	}

	PrintHeader("Presets")
	widths := []int{24, 20, 10, 18, 18}
	PrintTableHeader([]string{"Name", "Strategy", "Period", "Universe", "Schedule"}, widths)
	for _, p := range presets.Presets {
		p, _ = presets.Preset(p.Name)
		source := p.Universe
		if len(p.Symbols) > 0 {
			source = fmt.Sprintf("%d symbols", len(p.Symbols))
		}
		PrintTableRow([]string{p.Name, p.Strategy, p.Period, source, valueOr(p.Schedule, "-")}, widths)
	}
	return nil
}

func runPresetNow(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, appOptions{history: true})
	if err != nil {
		return err
	}
	defer a.Close()

	presets, _, err := a.loadPresets()
	if err != nil {
		return err
	}
	p, ok := presets.Preset(args[0])
	if !ok {
		return fmt.Errorf("preset %q not found", args[0])
	}
	hash, _ := strategyconfig.Hash(presets)

	r, err := a.newRunner(0)
	if err != nil {
		return err
	}
	defer r.Shutdown()

	fmt.Printf("Running preset: %s\n", p.Name)
	if err := jobs.NewScanJob(p, hash, a.universe, r, a.recorder, a.log).Run(ctx); err != nil {
		return err
	}
	PrintSuccess("Preset run finished")
	return nil
}
