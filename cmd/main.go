package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/okian/profitshare/internal/adapters/http/api"
	"github.com/okian/profitshare/internal/adapters/http/swagger"
	app "github.com/okian/profitshare/internal/app"
	"github.com/okian/profitshare/internal/config"
	"github.com/okian/profitshare/internal/domain/compensation"
	"github.com/okian/profitshare/internal/domain/model"
	"github.com/okian/profitshare/pkg/logger"
	"github.com/okian/profitshare/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout            = 10 * time.Second
	writeTimeout           = 5 * time.Minute
	idleTimeout            = 60 * time.Second
	readHeaderTimeout      = 5 * time.Second
	shutdownTimeout        = 30 * time.Second
	serviceMetricsInterval = 10 * time.Second
)

const usage = `usage: profitshare <command> [flags]

commands:
  simulate   simulate the current roster (default)
  hire       simulate the roster with new hires
  allocate   project allocations at a monthly profit
  import     import a Profit & Loss workbook into the cache
  serve      run the HTTP API
`

var errUsage = errors.New("usage")

// cliFlags holds command line overrides. Unset flags keep configured values.
type cliFlags struct {
	configPath  string
	reportPath  string
	reportFrom  string
	reportTo    string
	reportSheet string
	outputPath  string
	metricsFile string
	addr        string
	months      int
	universes   int
	n00bs       int
	seed        int64
	profit      float64
	verbose     bool
	set         map[string]bool
}

func main() {
	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if !errors.Is(err, errUsage) && !errors.Is(err, flag.ErrHelp) {
			os.Stderr.WriteString("profitshare: " + err.Error() + "\n")
		}
		stop()
		os.Exit(1)
	}
}

// run executes one command. It is main without the process exit.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	command := "simulate"
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		command, args = args[0], args[1:]
	}
	switch command {
	case "simulate", "hire", "allocate", "import", "serve":
	case "help":
		_, _ = io.WriteString(stdout, usage)
		return nil
	default:
		_, _ = io.WriteString(stderr, usage)
		return fmt.Errorf("%w: unknown command %q", errUsage, command)
	}

	flags, err := parseFlags(command, args, stderr)
	if err != nil {
		return err
	}

	// Initialize logging
	if err := logger.Init(logger.WithConsole(), logger.WithWriter(stderr)); err != nil {
		return fmt.Errorf("initialize logging: %w", err)
	}
	defer func() { _ = logger.Sync() }()
	log := logger.Get()

	// Load configuration (defaults -> .env -> optional file -> env -> flags)
	loadOpts := []config.LoadOption{config.WithoutValidation()}
	if flags.configPath != "" {
		loadOpts = append(loadOpts, config.WithFile(flags.configPath))
	}
	cfg, err := config.Load(ctx, loadOpts...)
	if err != nil {
		return err
	}
	flags.apply(cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}

	// Apply configured log level (fallback to info on invalid input)
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}
	if flags.verbose {
		_ = logger.SetLevelString("debug")
	}

	company, err := cfg.Company()
	if err != nil {
		return err
	}
	reportFrom, reportTo, err := cfg.ReportRange()
	if err != nil {
		return err
	}

	svc := app.New(
		app.WithLogger(log.Named("service")),
		app.WithCompany(company),
		app.WithDBPath(cfg.DBPath),
		app.WithWorkerCount(cfg.WorkerCount),
		app.WithHorizon(cfg.Months, cfg.Universes),
		app.WithSeed(cfg.Seed),
		app.WithHistoryWindow(cfg.HistoryWindow),
		app.WithHistoryScale(cfg.HistoryScale),
		app.WithReportRange(reportFrom, reportTo),
		app.WithReportSheet(cfg.ReportSheet),
		app.WithProfitStddev(cfg.ProfitStddev),
		app.WithVerbose(flags.verbose),
	)
	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("start service: %w", err)
	}
	defer svc.Stop()

	if cfg.ReportPath != "" {
		if _, err := svc.Import(ctx, cfg.ReportPath); err != nil {
			return err
		}
	} else if command == "import" {
		return fmt.Errorf("%w: import needs --report", config.ErrInvalidConfig)
	}

	switch command {
	case "simulate", "hire":
		var summary model.Summary
		if command == "hire" {
			summary, err = svc.Hire(ctx, cfg.N00bs, cfg.Months, cfg.Universes)
		} else {
			summary, err = svc.Simulate(ctx, cfg.Months, cfg.Universes)
		}
		if err != nil {
			return err
		}
		printSummary(stdout, summary)
		if cfg.OutputPath != "" {
			err = svc.WriteSummary(cfg.OutputPath, summary)
		}
	case "allocate":
		var profit *float64
		if flags.set["profit"] {
			profit = &flags.profit
		}
		var allocations []compensation.Allocation
		allocations, err = svc.Allocations(ctx, profit)
		if err != nil {
			return err
		}
		printAllocations(stdout, allocations)
		if cfg.OutputPath != "" {
			err = svc.WriteAllocations(cfg.OutputPath, allocations)
		}
	case "import":
		stats := svc.GetStats()
		fmt.Fprintf(stdout, "imported %v months from %s\n", stats["historyMonths"], cfg.ReportPath)
	case "serve":
		err = serve(ctx, cfg, svc)
	}
	if err != nil {
		return err
	}

	if cfg.MetricsFile != "" {
		if err := metrics.WriteTextfile(cfg.MetricsFile); err != nil {
			return err
		}
	}
	return nil
}

func parseFlags(command string, args []string, stderr io.Writer) (*cliFlags, error) {
	f := &cliFlags{}
	fs := flag.NewFlagSet(command, flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&f.configPath, "config", "", "YAML config file (overrides "+config.EnvConfigFile+")")
	fs.StringVar(&f.reportPath, "report", "", "Profit & Loss xlsx export to forecast from")
	fs.StringVar(&f.reportFrom, "from", "", "first report month to import, e.g. 2024-01")
	fs.StringVar(&f.reportTo, "to", "", "last report month to import, e.g. 2024-12")
	fs.StringVar(&f.reportSheet, "sheet", "", "workbook sheet to read (default: active sheet)")
	fs.StringVar(&f.outputPath, "output", "", "write results to this xlsx file")
	fs.StringVar(&f.metricsFile, "metrics-file", "", "dump Prometheus metrics to this file after the run")
	fs.Int64Var(&f.seed, "seed", 0, "base random seed")
	fs.BoolVar(&f.verbose, "verbose", false, "log every simulated universe")
	fs.BoolVar(&f.verbose, "v", false, "shorthand for --verbose")

	switch command {
	case "simulate", "hire", "serve":
		fs.IntVar(&f.months, "n-months", 0, "months per universe (default from config, 12)")
		fs.IntVar(&f.universes, "n-universes", 0, "number of universes (default from config, 1000)")
	}
	switch command {
	case "hire":
		fs.IntVar(&f.n00bs, "n-n00bs", 0, "number of new hires (default from config, 3)")
	case "allocate":
		fs.Float64Var(&f.profit, "profit", 0, "monthly after-tax profit (default: configured target)")
	case "serve":
		fs.StringVar(&f.addr, "addr", "", "HTTP listen address")
	}

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		fs.Usage()
		return nil, fmt.Errorf("%w: unexpected arguments %v", errUsage, fs.Args())
	}
	f.set = make(map[string]bool)
	fs.Visit(func(fl *flag.Flag) { f.set[fl.Name] = true })
	return f, nil
}

// apply overrides configured values with the flags given on the command line.
func (f *cliFlags) apply(cfg *config.Config) {
	if f.set["report"] {
		cfg.ReportPath = f.reportPath
	}
	if f.set["from"] {
		cfg.ReportFrom = f.reportFrom
	}
	if f.set["to"] {
		cfg.ReportTo = f.reportTo
	}
	if f.set["sheet"] {
		cfg.ReportSheet = f.reportSheet
	}
	if f.set["output"] {
		cfg.OutputPath = f.outputPath
	}
	if f.set["metrics-file"] {
		cfg.MetricsFile = f.metricsFile
	}
	if f.set["seed"] {
		cfg.Seed = f.seed
	}
	if f.set["n-months"] {
		cfg.Months = f.months
	}
	if f.set["n-universes"] {
		cfg.Universes = f.universes
	}
	if f.set["n-n00bs"] {
		cfg.N00bs = f.n00bs
	}
	if f.set["addr"] {
		cfg.Addr = f.addr
	}
}

func printSummary(w io.Writer, s model.Summary) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintf(tw, "name\tpartner\ttarget\tmean\tp05\tp50\tp95\tP(on target)\t\n")
	for _, p := range s.People {
		fmt.Fprintf(tw, "%s\t%t\t%.0f\t%.0f\t%.0f\t%.0f\t%.0f\t%.1f%%\t\n",
			p.Name, p.Partner, p.TargetPay, p.MeanPay, p.P05Pay, p.P50Pay, p.P95Pay, 100*p.ProbabilityOnTarget)
	}
	_ = tw.Flush()

	required := fmt.Sprintf("%.0f", s.RequiredProfit)
	if s.TargetUnreachable {
		required = "unreachable"
	}
	fmt.Fprintf(w, "\n%d universes x %d months, seed %d, run %s\n", s.Universes, s.Months, s.Seed, s.ID)
	fmt.Fprintf(w, "mean monthly profit %.0f, required %s, P(profit on target) %.1f%%\n",
		s.MeanProfit, required, 100*s.ProbabilityProfitOnTarget)
}

func printAllocations(w io.Writer, allocations []compensation.Allocation) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintf(tw, "name\townership\ttarget\tbonus\tdividends\tsalary\tgrossed\t\n")
	for _, a := range allocations {
		fmt.Fprintf(tw, "%s\t%.1f%%\t%.2f\t%.2f\t%.2f\t%.2f\t%.2f\t\n",
			a.Name, 100*a.Ownership, a.AfterTaxTargetSalary, a.AfterTaxSalaryFromBonus,
			a.AfterTaxSalaryFromDividends, a.AfterTaxSalary, a.BeforeTaxTargetBonusDividends)
	}
	_ = tw.Flush()
}

// serve runs the HTTP API until ctx is cancelled.
func serve(ctx context.Context, cfg *config.Config, svc *app.Service) error {
	log := logger.Named("http")

	go startServiceMetricsUpdater(ctx, svc)

	// HTTP mux and routes.
	mux := http.NewServeMux()
	swagger.Register(ctx, mux)
	apiServer := api.NewServer(svc, svc, api.Limits{
		MaxMonths:    cfg.Months * 10,
		MaxUniverses: cfg.Universes * 10,
		MaxN00bs:     api.DefaultMaxN00bs,
	})
	apiServer.Register(ctx, mux)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
		close(errCh)
	}()

	// Wait for shutdown signal
	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return err
		}
	}
	log.Info(ctx, "shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
		return fmt.Errorf("shutdown: %w", err)
	}

	log.Info(ctx, "server stopped")
	return nil
}

// startServiceMetricsUpdater refreshes the system gauges while serving.
func startServiceMetricsUpdater(ctx context.Context, svc *app.Service) {
	ticker := time.NewTicker(serviceMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = svc.GetStats()
		}
	}
}
