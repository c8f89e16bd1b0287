package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/guptarohit/asciigraph"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/san-kum/childsim/internal/api"
	"github.com/san-kum/childsim/internal/automation"
	"github.com/san-kum/childsim/internal/config"
	"github.com/san-kum/childsim/internal/database"
	"github.com/san-kum/childsim/internal/experiment"
	"github.com/san-kum/childsim/internal/export"
	"github.com/san-kum/childsim/internal/intake"
	"github.com/san-kum/childsim/internal/models"
	"github.com/san-kum/childsim/internal/repository"
	"github.com/san-kum/childsim/internal/storage"
	"github.com/san-kum/childsim/internal/viz"
)

const databaseEnv = "CHILDSIM_DATABASE_URL"

var (
	dataDir  string
	logLevel string

	configFile  string
	preset      string
	dt          float64
	days        float64
	integrator  string
	dailyIntake float64
	noCheck     bool
	view        bool

	field      string
	maxPlots   int
	outPath    string
	chartWidth int
	chartHigh  int

	addr string

	sweepParam string
	rangeMin   float64
	rangeMax   float64
	numSteps   int
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "childsim",
		Short:        "childhood body composition simulator",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".childsim", "data directory")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run a cohort scenario",
		Args:  cobra.NoArgs,
		RunE:  runSimulation,
	}
	scenarioFlags(runCmd)
	runCmd.Flags().BoolVar(&view, "view", false, "open the trajectory viewer after the run")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list runs",
		Args:  cobra.NoArgs,
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot run results in the terminal",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}
	plotCmd.Flags().StringVar(&field, "field", string(export.BodyWeight), "field to plot (body_weight, ffm, fm)")
	plotCmd.Flags().IntVar(&maxPlots, "max", 4, "maximum number of individuals to plot")

	exportCSVCmd := &cobra.Command{
		Use:   "export-csv [run_id]",
		Short: "export run trajectory to CSV",
		Args:  cobra.ExactArgs(1),
		RunE:  exportCSV,
	}
	exportCSVCmd.Flags().StringVarP(&outPath, "out", "o", "", "output path (default <run_id>.csv)")

	exportJSONCmd := &cobra.Command{
		Use:   "export-json [run_id]",
		Short: "export run data to JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  exportJSON,
	}
	exportJSONCmd.Flags().StringVarP(&outPath, "out", "o", "", "output path (default <run_id>.json)")

	chartCmd := &cobra.Command{
		Use:   "chart [run_id]",
		Short: "render a run to an SVG or PNG chart",
		Args:  cobra.ExactArgs(1),
		RunE:  renderChart,
	}
	chartCmd.Flags().StringVar(&field, "field", string(export.BodyWeight), "field to chart (body_weight, ffm, fm)")
	chartCmd.Flags().StringVarP(&outPath, "out", "o", "", "output path, .svg or .png (default <run_id>.png)")
	chartCmd.Flags().IntVar(&chartWidth, "width", export.DefaultOptions().Width, "chart width in pixels")
	chartCmd.Flags().IntVar(&chartHigh, "height", export.DefaultOptions().Height, "chart height in pixels")

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list available scenario presets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tINDIVIDUALS\tDAYS\tDT\tINTAKE")
			for _, name := range config.ListPresets() {
				cfg := config.GetPreset(name)
				fmt.Fprintf(w, "%s\t%d\t%.0f\t%.2f\t%s\n",
					name, len(cfg.Individuals), cfg.Days, cfg.Dt, cfg.Intake.Kind)
			}
			return w.Flush()
		},
	}

	compareCmd := &cobra.Command{
		Use:   "compare [integrator1] [integrator2] ...",
		Short: "compare integrators on the same scenario",
		Args:  cobra.MinimumNArgs(1),
		RunE:  compareIntegrators,
	}
	scenarioFlags(compareCmd)

	benchCmd := &cobra.Command{
		Use:   "bench",
		Short: "benchmark cohort sizes",
		Args:  cobra.NoArgs,
		RunE:  benchCohorts,
	}

	viewCmd := &cobra.Command{
		Use:   "view [run_id]",
		Short: "browse a stored run in the terminal viewer",
		Args:  cobra.ExactArgs(1),
		RunE:  viewRun,
	}

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "serve the simulation HTTP API",
		Args:  cobra.NoArgs,
		RunE:  serve,
	}
	serveCmd.Flags().StringVar(&addr, "addr", ":8080", "listen address")

	sweepCmd := &cobra.Command{
		Use:   "sweep",
		Short: "run a scenario across a range of one parameter",
		Args:  cobra.NoArgs,
		RunE:  runSweep,
	}
	scenarioFlags(sweepCmd)
	sweepCmd.Flags().StringVar(&sweepParam, "param", "intake", fmt.Sprintf("parameter to sweep %v", config.Tunable))
	sweepCmd.Flags().Float64Var(&rangeMin, "min", 1200, "first value")
	sweepCmd.Flags().Float64Var(&rangeMax, "max", 2400, "last value")
	sweepCmd.Flags().IntVar(&numSteps, "steps", 7, "number of values")

	batchCmd := &cobra.Command{
		Use:   "batch [file]",
		Short: "run every scenario of a batch file and store the runs",
		Args:  cobra.ExactArgs(1),
		RunE:  runBatch,
	}

	rootCmd.AddCommand(runCmd, listCmd, plotCmd, exportCSVCmd, exportJSONCmd, chartCmd,
		presetsCmd, compareCmd, benchCmd, viewCmd, serveCmd,
		sweepCmd, batchCmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

func scenarioFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&configFile, "config", "", "scenario file path (yaml)")
	cmd.Flags().StringVar(&preset, "preset", "", "use a preset scenario")
	cmd.Flags().Float64Var(&dt, "dt", config.DefaultDt, "time step in days")
	cmd.Flags().Float64Var(&days, "days", config.DefaultDays, "simulated days")
	cmd.Flags().StringVar(&integrator, "integrator", config.DefaultIntegrator, "integrator")
	cmd.Flags().Float64Var(&dailyIntake, "intake", config.DefaultIntake, "constant daily intake in kcal")
	cmd.Flags().BoolVar(&noCheck, "no-check", false, "skip physical range checks of the cohort")
}

func newLogger() (log.Logger, error) {
	var opt level.Option
	switch strings.ToLower(logLevel) {
	case "debug":
		opt = level.AllowDebug()
	case "info":
		opt = level.AllowInfo()
	case "warn":
		opt = level.AllowWarn()
	case "error":
		opt = level.AllowError()
	default:
		return nil, fmt.Errorf("unknown log level %q", logLevel)
	}
	logger := log.NewLogfmtLogger(log.NewSyncWriter(os.Stderr))
	logger = log.With(logger, "ts", log.DefaultTimestampUTC, "caller", log.DefaultCaller)
	return level.NewFilter(logger, opt), nil
}

// resolveConfig layers preset, scenario file and explicitly set flags.
func resolveConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if preset != "" {
		cfg = config.GetPreset(preset)
		if cfg == nil {
			return nil, fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets())
		}
	}

	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	}

	flags := cmd.Flags()
	if flags.Changed("dt") {
		cfg.Dt = dt
	}
	if flags.Changed("days") {
		cfg.Days = days
	}
	if flags.Changed("integrator") {
		cfg.Integrator = integrator
	}
	if flags.Changed("intake") {
		constant := intake.Constant(dailyIntake)
		cfg.Intake = config.IntakeConfig{Kind: string(intake.KindLogistic), Logistic: &constant}
	}
	if flags.Changed("no-check") {
		cfg.CheckValues = !noCheck
	}
	return cfg, nil
}

// openRepository connects to the run summary database when one is configured.
func openRepository(ctx context.Context, logger log.Logger) (repository.RunRepository, error) {
	if err := godotenv.Load(); err != nil {
		level.Debug(logger).Log("msg", "no .env file found")
	}
	dsn := os.Getenv(databaseEnv)
	if dsn == "" {
		return nil, nil
	}

	opts := database.DefaultOptions()
	opts.Logger = logger
	db, err := database.NewPostgres(ctx, dsn, opts)
	if err != nil {
		return nil, err
	}
	if err := database.AutoMigrateTables(db, &repository.RunSummary{}); err != nil {
		return nil, err
	}
	return repository.NewRunRepo(db), nil
}

func runSimulation(cmd *cobra.Command, args []string) error {
	logger, err := newLogger()
	if err != nil {
		return err
	}
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}

	st := storage.New(dataDir)
	if err := st.Init(); err != nil {
		return err
	}

	ctx := cmd.Context()

	exp := experiment.New(cfg, experiment.WithLogger(logger))
	if err := exp.Setup(); err != nil {
		return err
	}

	fmt.Printf("running %s (%d individuals, %.0f days, dt=%g)...\n",
		cfg.Name, len(cfg.Individuals), cfg.Days, cfg.Dt)

	out, err := exp.Run(ctx)
	if err != nil {
		return err
	}

	runID, err := st.Save(storage.Run{
		Scenario:   cfg.Name,
		Integrator: cfg.Integrator,
		Dt:         cfg.Dt,
		Days:       cfg.Days,
		Cohort:     exp.Child().Cohort(),
		Trajectory: out.Trajectory,
		Metrics:    out.Metrics,
	})
	if err != nil {
		return err
	}

	repo, err := openRepository(ctx, logger)
	if err != nil {
		level.Warn(logger).Log("msg", "run summary not stored", "err", err)
	} else if repo != nil {
		summary := repository.Summarize(runID, cfg.Name, cfg.Integrator, cfg.Dt, cfg.Days, out.Trajectory, out.Metrics)
		if _, err := repo.Create(summary); err != nil {
			level.Warn(logger).Log("msg", "run summary not stored", "err", err)
		}
	}

	fmt.Printf("completed in %v\n", out.Elapsed)
	fmt.Printf("run id: %s\n", runID)
	fmt.Printf("steps: %d\n", out.Trajectory.Steps())
	fmt.Printf("valid: %t\n", out.Trajectory.Valid)
	fmt.Println("\nmetrics:")
	printMetrics(out.Metrics)

	if view {
		return runViewer(out.Trajectory, runID, out.Metrics)
	}
	return nil
}

func printMetrics(metrics map[string]float64) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	for _, name := range sortedKeys(metrics) {
		fmt.Fprintf(w, "  %s\t%.6f\n", name, metrics[name])
	}
	w.Flush()
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func listRuns(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	runs, err := st.List()
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSCENARIO\tTIME\tN\tDAYS\tDT\tINTEG\tVALID")

	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%.0f\t%g\t%s\t%t\n",
			run.ID,
			run.Scenario,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.Individuals,
			run.Days,
			run.Dt,
			run.Integrator,
			run.Valid,
		)
	}

	return w.Flush()
}

func loadRun(runID string) (*storage.RunMetadata, *models.Trajectory, error) {
	st := storage.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return nil, nil, err
	}
	tr, err := st.LoadTrajectory(runID)
	if err != nil {
		return nil, nil, err
	}
	return meta, tr, nil
}

func plotRun(cmd *cobra.Command, args []string) error {
	f, err := export.ParseField(field)
	if err != nil {
		return err
	}
	meta, tr, err := loadRun(args[0])
	if err != nil {
		return err
	}
	if tr.Steps() == 0 {
		return fmt.Errorf("no data to plot")
	}

	fmt.Printf("run: %s\n", meta.ID)
	fmt.Printf("scenario: %s\n", meta.Scenario)
	fmt.Printf("samples: %d\n\n", tr.Steps())

	n := tr.Individuals()
	if n > maxPlots {
		n = maxPlots
	}
	rows := f.Rows(tr)
	for i := 0; i < n; i++ {
		graph := asciigraph.Plot(models.Column(rows, i),
			asciigraph.Height(10),
			asciigraph.Width(80),
			asciigraph.Caption(fmt.Sprintf("individual %d: %s", i, f.Label())),
		)
		fmt.Println(graph)
		fmt.Println()
	}
	if tr.Individuals() > n {
		fmt.Printf("(%d more individuals, use --max)\n", tr.Individuals()-n)
	}
	return nil
}

func exportCSV(cmd *cobra.Command, args []string) error {
	runID := args[0]
	_, tr, err := loadRun(runID)
	if err != nil {
		return err
	}
	path := outPath
	if path == "" {
		path = runID + ".csv"
	}
	if err := storage.ExportCSV(path, tr); err != nil {
		return err
	}
	fmt.Printf("exported %d steps to %s\n", tr.Steps(), path)
	return nil
}

func exportJSON(cmd *cobra.Command, args []string) error {
	runID := args[0]
	meta, tr, err := loadRun(runID)
	if err != nil {
		return err
	}
	path := outPath
	if path == "" {
		path = runID + ".json"
	}
	if err := storage.ExportJSON(path, storage.NewExportData(meta, tr)); err != nil {
		return err
	}
	fmt.Printf("exported to %s\n", path)
	return nil
}

func renderChart(cmd *cobra.Command, args []string) error {
	runID := args[0]
	f, err := export.ParseField(field)
	if err != nil {
		return err
	}
	meta, tr, err := loadRun(runID)
	if err != nil {
		return err
	}
	path := outPath
	if path == "" {
		path = runID + ".png"
	}
	opts := export.Options{Title: meta.Scenario, Width: chartWidth, Height: chartHigh}
	if err := export.Save(path, tr, f, opts); err != nil {
		return err
	}
	fmt.Printf("chart written to %s\n", path)
	return nil
}

func compareIntegrators(cmd *cobra.Command, args []string) error {
	logger, err := newLogger()
	if err != nil {
		return err
	}
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}

	outcomes, err := experiment.Compare(cmd.Context(), cfg, args, logger)
	if err != nil {
		return err
	}

	fmt.Printf("comparing integrators for %s (dt=%g, days=%.0f)\n\n", cfg.Name, cfg.Dt, cfg.Days)
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "INTEGRATOR\tMEAN_WEIGHT\tFAT_FRACTION\tMAX_DAILY\tVALID\tTIME_MS")
	for _, o := range outcomes {
		fmt.Fprintf(w, "%s\t%.4f\t%.4f\t%.4f\t%t\t%.2f\n",
			o.Integrator,
			o.Metrics["mean_weight"],
			o.Metrics["fat_fraction"],
			o.Metrics["max_daily_change"],
			o.Trajectory.Valid,
			float64(o.Elapsed.Microseconds())/1000,
		)
	}
	return w.Flush()
}

func benchCohorts(cmd *cobra.Command, args []string) error {
	sizes := []int{1, 100, 1000, 10000}
	horizons := []float64{365, 3650}

	fmt.Println("benchmarking rk4, dt=1")
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "INDIVIDUALS\tDAYS\tSTEPS\tTIME\tIND-STEPS/SEC")

	for _, n := range sizes {
		cohort := make(models.Cohort, n)
		for i := range cohort {
			cohort[i] = models.Individual{Age: 6, Sex: models.Sex(i % 2), Category: models.Normal, FFM: 17, FM: 3.5}
		}
		for _, d := range horizons {
			start := time.Now()
			tr, err := experiment.Simulate(cmd.Context(), cohort,
				intake.LogisticSpec(intake.Constant(1700)), 1, d)
			if err != nil {
				return err
			}
			elapsed := time.Since(start)
			rate := float64(n*(tr.Steps()-1)) / elapsed.Seconds()
			fmt.Fprintf(w, "%d\t%.0f\t%d\t%v\t%.0f\n", n, d, tr.Steps()-1, elapsed, rate)
		}
	}
	return w.Flush()
}

func viewRun(cmd *cobra.Command, args []string) error {
	meta, tr, err := loadRun(args[0])
	if err != nil {
		return err
	}
	return runViewer(tr, fmt.Sprintf("%s (%s)", meta.Scenario, meta.ID), meta.Metrics)
}

func runViewer(tr *models.Trajectory, title string, metrics map[string]float64) error {
	p := tea.NewProgram(viz.NewViewer(tr, title, metrics), tea.WithAltScreen())
	_, err := p.Run()
	return err
}

func serve(cmd *cobra.Command, args []string) error {
	logger, err := newLogger()
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	opts := []api.Option{api.WithLogger(logger)}
	repo, err := openRepository(ctx, logger)
	if err != nil {
		return err
	}
	if repo != nil {
		opts = append(opts, api.WithRunRepository(repo))
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           api.NewServer(opts...).Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		level.Info(logger).Log("msg", "listening", "addr", addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	level.Info(logger).Log("msg", "shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func runSweep(cmd *cobra.Command, args []string) error {
	logger, err := newLogger()
	if err != nil {
		return err
	}
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}

	results, err := automation.RunSweep(cmd.Context(), &automation.ParameterSweep{
		Base:     cfg,
		Param:    sweepParam,
		Min:      rangeMin,
		Max:      rangeMax,
		NumSteps: numSteps,
	}, logger)
	if err != nil {
		return err
	}

	fmt.Printf("sweep of %s for %s\n\n", sweepParam, cfg.Name)
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "%s\tWEIGHT\tFFM\tFM\tVALID\n", strings.ToUpper(sweepParam))
	for _, r := range results {
		fmt.Fprintf(w, "%g\t%.3f\t%.3f\t%.3f\t%t\n",
			r.Value, r.MeanFinalWeight, r.MeanFinalFatFree, r.MeanFinalFat, r.Valid)
	}
	return w.Flush()
}

func runBatch(cmd *cobra.Command, args []string) error {
	logger, err := newLogger()
	if err != nil {
		return err
	}
	batch, err := automation.LoadBatch(args[0])
	if err != nil {
		return err
	}

	st := storage.New(dataDir)
	if err := st.Init(); err != nil {
		return err
	}

	outcomes, err := automation.RunBatch(cmd.Context(), batch, logger)
	for i, out := range outcomes {
		cfg := batch.Scenarios[i]
		cohort, cerr := cfg.Cohort()
		if cerr != nil {
			return cerr
		}
		runID, serr := st.Save(storage.Run{
			Scenario:   cfg.Name,
			Integrator: cfg.Integrator,
			Dt:         cfg.Dt,
			Days:       cfg.Days,
			Cohort:     cohort,
			Trajectory: out.Trajectory,
			Metrics:    out.Metrics,
		})
		if serr != nil {
			return serr
		}
		fmt.Printf("%s: run id %s (%d steps, valid %t)\n", cfg.Name, runID, out.Trajectory.Steps(), out.Trajectory.Valid)
	}
	return err
}
