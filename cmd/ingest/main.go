// Command ingest runs the ingestion controller against FRED: --full
// bootstraps complete history, --update-only (the default) appends
// increments since the last successful load. --run-dag chains a whole
// transformation run after a successful ingest.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"macrokit-datalake/internal/config"
	"macrokit-datalake/internal/domain"
	"macrokit-datalake/internal/fred"
	"macrokit-datalake/internal/ingestion"
	"macrokit-datalake/internal/observability"
	"macrokit-datalake/internal/pipeline"
	"macrokit-datalake/internal/revision"
	"macrokit-datalake/internal/storage"
	chstore "macrokit-datalake/internal/storage/clickhouse"
	"macrokit-datalake/internal/storage/memory"
	pgstore "macrokit-datalake/internal/storage/postgres"
)

const dateLayout = "2006-01-02"

type cliOptions struct {
	full        bool
	updateOnly  bool
	overwrite   bool
	runDag      bool
	tables      string
	startDate   string
	endDate     string
	workers     int
	useMemory   bool
	postgres    string
	clickhouse  string
	registry    string
	metricsAddr string
}

func bindFlags(fs *flag.FlagSet) *cliOptions {
	opts := &cliOptions{}
	fs.BoolVar(&opts.full, "full", false, "Bootstrap complete history (refuses populated tables unless --overwrite)")
	fs.BoolVar(&opts.updateOnly, "update-only", false, "Append increments since the last successful load (default)")
	fs.BoolVar(&opts.overwrite, "overwrite", false, "Full only: truncate populated tables instead of failing")
	fs.BoolVar(&opts.runDag, "run-dag", false, "Run the whole transformation graph after a successful ingest")
	fs.StringVar(&opts.tables, "tables", "", "Update only: comma-separated table subset (default: all configured)")
	fs.StringVar(&opts.startDate, "start-date", "", "Update only: explicit range start (YYYY-MM-DD)")
	fs.StringVar(&opts.endDate, "end-date", "", "Range end (YYYY-MM-DD, default: today)")
	fs.IntVar(&opts.workers, "workers", 0, "Concurrent DAG node executions (default: $WORKERS)")
	fs.StringVar(&opts.registry, "registry", "", "Series registry YAML (default: embedded registry)")
	fs.StringVar(&opts.postgres, "postgres-dsn", "", "PostgreSQL connection string (default: $POSTGRES_DSN)")
	fs.StringVar(&opts.clickhouse, "clickhouse-dsn", "", "ClickHouse connection string (default: $CLICKHOUSE_DSN)")
	fs.BoolVar(&opts.useMemory, "use-memory", false, "Use in-memory storage instead of PostgreSQL (dry runs)")
	fs.StringVar(&opts.metricsAddr, "metrics-addr", "", "Prometheus metrics HTTP address (default: $METRICS_ADDR, empty to disable)")
	return opts
}

func main() {
	opts := bindFlags(flag.CommandLine)
	flag.Parse()

	logger := log.New(os.Stdout, "[ingest] ", log.LstdFlags)

	if opts.full && opts.updateOnly {
		logger.Fatal("Error: --full and --update-only are mutually exclusive")
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("Error: %v", err)
	}
	if opts.postgres == "" {
		opts.postgres = cfg.PostgresDSN
	}
	if opts.clickhouse == "" {
		opts.clickhouse = cfg.ClickhouseDSN
	}
	if opts.workers <= 0 {
		opts.workers = cfg.Workers
	}
	if opts.metricsAddr == "" {
		opts.metricsAddr = cfg.MetricsAddr
	}

	series, err := config.LoadSeries(opts.registry)
	if err != nil {
		logger.Fatalf("Error: %v", err)
	}

	if opts.metricsAddr != "" {
		go serveMetrics(logger, opts.metricsAddr)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, cancelling run...", sig)
		cancel()
	}()

	if err := run(ctx, logger, cfg, series, opts); err != nil {
		logger.Fatalf("Error: %v", err)
	}
}

func run(ctx context.Context, logger *log.Logger, cfg *config.Config, series []domain.SeriesDefinition, opts *cliOptions) error {
	var (
		observations storage.ObservationStore  = memory.NewObservationStore()
		runs         storage.IngestionRunStore = memory.NewIngestionRunStore()
	)
	if !opts.useMemory {
		pool, err := pgstore.NewPool(ctx, opts.postgres)
		if err != nil {
			return err
		}
		defer pool.Close()
		observations = pgstore.NewObservationStore(pool)
		runs = pgstore.NewIngestionRunStore(pool)
	}

	source, err := fred.NewClient(cfg.FREDAPIKey,
		fred.WithTimeout(cfg.FetchTimeout),
		fred.WithMaxElapsed(cfg.RetryBudget),
	)
	if err != nil {
		return err
	}

	tracker, err := revision.NewTracker(revision.Options{Store: observations, Logger: logger})
	if err != nil {
		return err
	}
	controller, err := ingestion.NewController(ingestion.Options{
		Source:           source,
		Tracker:          tracker,
		ObservationStore: observations,
		RunStore:         runs,
		Series:           series,
		Logger:           logger,
	})
	if err != nil {
		return err
	}

	end, err := parseDate(opts.endDate)
	if err != nil {
		return fmt.Errorf("--end-date: %w", err)
	}

	var result *ingestion.RunResult
	if opts.full {
		result, err = controller.Setup(ctx, ingestion.SetupOptions{
			Overwrite: opts.overwrite,
			EndDate:   end,
		})
	} else {
		start, perr := parseDate(opts.startDate)
		if perr != nil {
			return fmt.Errorf("--start-date: %w", perr)
		}
		result, err = controller.Update(ctx, ingestion.UpdateOptions{
			Tables:    splitTables(opts.tables),
			StartDate: start,
			EndDate:   end,
		})
	}
	if err != nil {
		if errors.Is(err, ingestion.ErrSetupRequired) {
			return fmt.Errorf("%w (run with --full first)", err)
		}
		return err
	}

	logger.Printf("Run %s: %s", result.Run.RunID, result.Run.Status)
	for _, report := range result.Reports {
		logger.Printf("  %s: %s (fetched=%d inserted=%d revised=%d unchanged=%d dropped=%d)%s",
			report.Table, report.Status, report.RowsFetched, report.RowsInserted,
			report.RowsRevised, report.RowsUnchanged, report.RowsDropped,
			errorSuffix(report.Error))
	}

	if !result.Run.Succeeded() {
		return fmt.Errorf("run %s finished %s", result.Run.RunID, result.Run.Status)
	}

	if opts.runDag {
		return runPipeline(ctx, logger, series, observations, opts)
	}
	return nil
}

// runPipeline materializes the whole graph over the observations the
// ingest run just landed. Marts go to ClickHouse unless --use-memory.
func runPipeline(ctx context.Context, logger *log.Logger, series []domain.SeriesDefinition, observations storage.ObservationStore, opts *cliOptions) error {
	stores := pipeline.Stores{
		Observations:     observations,
		YieldCurve:       memory.NewYieldCurveStore(),
		IndicatorChanges: memory.NewIndicatorChangeStore(),
		MarketFactors:    memory.NewMarketFactorStore(),
	}
	if !opts.useMemory {
		conn, err := chstore.NewConn(ctx, opts.clickhouse)
		if err != nil {
			return err
		}
		defer conn.Close()

		stores.YieldCurve = chstore.NewYieldCurveStore(conn)
		stores.IndicatorChanges = chstore.NewIndicatorChangeStore(conn)
		stores.MarketFactors = chstore.NewMarketFactorStore(conn)
	}

	p, err := pipeline.New(pipeline.Options{
		Stores:  stores,
		Series:  series,
		Workers: opts.workers,
		Logger:  logger,
	})
	if err != nil {
		return err
	}

	report, err := p.Run(ctx, nil)
	if err != nil {
		return err
	}

	names := make([]string, 0, len(report.Nodes))
	for name := range report.Nodes {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		node := report.Nodes[name]
		if node.Err != nil {
			logger.Printf("  %s: %s (%s): %v", node.Name, node.Status, node.Duration, node.Err)
		} else {
			logger.Printf("  %s: %s (%s)", node.Name, node.Status, node.Duration)
		}
	}

	if report.Failed() {
		return fmt.Errorf("transformation run failed")
	}
	return nil
}

func serveMetrics(logger *log.Logger, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", observability.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	logger.Printf("Starting metrics server on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil && err != http.ErrServerClosed {
		logger.Printf("Metrics server error: %v", err)
	}
}

func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(dateLayout, s)
}

func splitTables(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, t := range strings.Split(s, ",") {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func errorSuffix(msg string) string {
	if msg == "" {
		return ""
	}
	return ": " + msg
}
