// Package ingestion implements the two-phase ingestion lifecycle: Setup
// bootstraps full history into the raw store, Update appends increments.
// Both converge on the revision tracker, so repeated and partial runs
// are safe.
package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"macrokit-datalake/internal/domain"
	"macrokit-datalake/internal/fred"
	"macrokit-datalake/internal/idhash"
	"macrokit-datalake/internal/observability"
	"macrokit-datalake/internal/revision"
	"macrokit-datalake/internal/storage"
)

// ErrSetupRequired is returned by Update before any successful Setup.
var ErrSetupRequired = errors.New("setup has not completed, run a full ingestion first")

// historyStart is the start of full-history bootstraps. Far enough back
// to cover every series FRED publishes.
var historyStart = time.Date(1800, 1, 1, 0, 0, 0, 0, time.UTC)

// Controller drives ingestion runs. Each table is an independent unit of
// atomicity: a failing table aborts only its own ingestion, is reported,
// and never rolls back sibling tables.
type Controller struct {
	source       ObservationSource
	tracker      *revision.Tracker
	observations storage.ObservationStore
	runs         storage.IngestionRunStore
	series       []domain.SeriesDefinition
	logger       *log.Logger
	now          func() time.Time
}

// Options for creating a Controller.
type Options struct {
	Source           ObservationSource
	Tracker          *revision.Tracker
	ObservationStore storage.ObservationStore
	RunStore         storage.IngestionRunStore

	// Series is the full registry; each run selects the definitions for
	// the tables it ingests.
	Series []domain.SeriesDefinition

	// Logger for run diagnostics. Defaults to the standard logger.
	Logger *log.Logger

	// Now is the run clock. Defaults to time.Now.
	Now func() time.Time
}

// NewController creates an ingestion Controller.
func NewController(opts Options) (*Controller, error) {
	if opts.Source == nil {
		return nil, fmt.Errorf("ingestion controller: source is required")
	}
	if opts.Tracker == nil {
		return nil, fmt.Errorf("ingestion controller: tracker is required")
	}
	if opts.ObservationStore == nil || opts.RunStore == nil {
		return nil, fmt.Errorf("ingestion controller: stores are required")
	}
	if len(opts.Series) == 0 {
		return nil, fmt.Errorf("ingestion controller: series registry is empty")
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Controller{
		source:       opts.Source,
		tracker:      opts.Tracker,
		observations: opts.ObservationStore,
		runs:         opts.RunStore,
		series:       opts.Series,
		logger:       logger,
		now:          now,
	}, nil
}

// SetupOptions configures a bootstrap run.
type SetupOptions struct {
	// Overwrite truncates populated tables instead of failing with
	// ErrAlreadyInitialized.
	Overwrite bool

	// EndDate bounds the history fetch. Zero means today.
	EndDate time.Time
}

// RunResult is the outcome of one ingestion run.
type RunResult struct {
	Run     *domain.IngestionRun
	Reports []*domain.TableReport
}

// Setup loads full history for every configured table. It fails with
// storage.ErrAlreadyInitialized when any table already holds data and
// Overwrite is unset; with Overwrite, populated tables are truncated
// first.
func (c *Controller) Setup(ctx context.Context, opts SetupOptions) (*RunResult, error) {
	tables := c.configuredTables()

	for _, table := range tables {
		has, err := c.observations.HasData(ctx, table)
		if err != nil {
			return nil, fmt.Errorf("check table %s: %w", table, err)
		}
		if !has {
			continue
		}
		if !opts.Overwrite {
			return nil, fmt.Errorf("table %s is populated: %w", table, storage.ErrAlreadyInitialized)
		}
		if err := c.observations.Truncate(ctx, table); err != nil {
			return nil, fmt.Errorf("truncate table %s: %w", table, err)
		}
		c.logger.Printf("[ingestion] truncated %s for overwrite", table)
	}

	end := opts.EndDate
	if end.IsZero() {
		end = today(c.now())
	}

	return c.run(ctx, domain.RunModeFull, tables, historyStart, end, opts.Overwrite, nil)
}

// UpdateOptions configures an incremental run.
type UpdateOptions struct {
	// Tables restricts the run to a subset. Empty means every
	// configured table.
	Tables []string

	// StartDate overrides the per-table default of "since the last
	// successful run".
	StartDate time.Time

	// EndDate bounds the fetch. Zero means today.
	EndDate time.Time
}

// Update appends increments for the selected tables. It requires Setup
// to have completed at least once; the default range per table starts at
// the end date of the last run in which the table succeeded.
func (c *Controller) Update(ctx context.Context, opts UpdateOptions) (*RunResult, error) {
	done, err := c.runs.HasCompletedSetup(ctx)
	if err != nil {
		return nil, fmt.Errorf("check setup: %w", err)
	}
	if !done {
		return nil, ErrSetupRequired
	}

	tables := opts.Tables
	if len(tables) == 0 {
		tables = c.configuredTables()
	}
	for _, table := range tables {
		if len(c.seriesFor(table)) == 0 {
			return nil, fmt.Errorf("%w: unknown table %s", storage.ErrInvalidInput, table)
		}
	}

	end := opts.EndDate
	if end.IsZero() {
		end = today(c.now())
	}

	// Zero start means per-table default, resolved in run.
	return c.run(ctx, domain.RunModeIncremental, tables, opts.StartDate, end, false, c.resolveTableStart)
}

// tableStartFunc resolves the fetch start for one table in a run whose
// explicit start date is zero.
type tableStartFunc func(ctx context.Context, table string, end time.Time) (time.Time, error)

func (c *Controller) resolveTableStart(ctx context.Context, table string, end time.Time) (time.Time, error) {
	last, ok, err := c.runs.LastSuccessfulEndDate(ctx, table)
	if err != nil {
		return time.Time{}, fmt.Errorf("resolve start for %s: %w", table, err)
	}
	if !ok {
		// The table never succeeded; refetch its full history.
		return historyStart, nil
	}
	return last, nil
}

func (c *Controller) run(ctx context.Context, mode domain.RunMode, tables []string, start, end time.Time, overwrite bool, startFor tableStartFunc) (*RunResult, error) {
	startedAt := c.now().UTC()
	runID := idhash.ComputeRunID(mode, tables, start, end, startedAt)

	run := &domain.IngestionRun{
		RunID:           runID,
		Mode:            mode,
		TablesRequested: tables,
		StartDate:       start,
		EndDate:         end,
		Overwrite:       overwrite,
		StartedAt:       startedAt,
		Status:          domain.RunStatusRunning,
	}
	if err := c.runs.InsertRun(ctx, run); err != nil {
		return nil, fmt.Errorf("insert run: %w", err)
	}

	c.logger.Printf("[ingestion] run %s started: mode=%s tables=%v", shortID(runID), mode, tables)

	var reports []*domain.TableReport
	succeeded, failed := 0, 0
	for i, table := range tables {
		tableStart := start
		if tableStart.IsZero() && startFor != nil {
			resolved, err := startFor(ctx, table, end)
			if err != nil {
				return nil, c.failRun(ctx, runID, err)
			}
			tableStart = resolved
		}

		tableStarted := c.now()
		report, tableErr := c.ingestTable(ctx, runID, table, tableStart, end, mode)
		observability.RecordTableIngestion(table, string(report.Status), c.now().Sub(tableStarted).Seconds())

		if err := c.runs.InsertTableReport(ctx, report); err != nil {
			return nil, c.failRun(ctx, runID, fmt.Errorf("insert table report: %w", err))
		}
		reports = append(reports, report)

		if report.Status == domain.TableStatusSucceeded {
			succeeded++
		} else {
			failed++
		}

		// A dead credential fails every fetch; do not retry it against
		// the remaining tables.
		if errors.Is(tableErr, fred.ErrAuth) {
			c.logger.Printf("[ingestion] run %s aborted: authentication failed", shortID(runID))
			for _, rest := range tables[i+1:] {
				skipped := &domain.TableReport{
					RunID:  runID,
					Table:  rest,
					Status: domain.TableStatusFailed,
					Error:  "not attempted: authentication failed",
				}
				if err := c.runs.InsertTableReport(ctx, skipped); err != nil {
					return nil, c.failRun(ctx, runID, fmt.Errorf("insert table report: %w", err))
				}
				reports = append(reports, skipped)
				failed++
			}
			break
		}
	}

	status := domain.RunStatusSucceeded
	switch {
	case failed > 0 && succeeded > 0:
		status = domain.RunStatusPartial
	case failed > 0:
		status = domain.RunStatusFailed
	}

	completedAt := c.now().UTC()
	if err := c.runs.CompleteRun(ctx, runID, status, completedAt); err != nil {
		return nil, fmt.Errorf("complete run: %w", err)
	}
	run.Status = status
	run.CompletedAt = &completedAt

	observability.RecordRun(string(mode), string(status))
	if status == domain.RunStatusSucceeded {
		observability.DefaultMetrics.LastSuccessfulIngestion.Set(float64(completedAt.Unix()))
	}

	c.logger.Printf("[ingestion] run %s completed: status=%s tables=%d failed=%d",
		shortID(runID), status, len(tables), failed)

	return &RunResult{Run: run, Reports: reports}, nil
}

// failRun records a terminal failed status for the run before surfacing
// cause, so aborted runs never stay "running" in the audit log.
func (c *Controller) failRun(ctx context.Context, runID string, cause error) error {
	if err := c.runs.CompleteRun(ctx, runID, domain.RunStatusFailed, c.now().UTC()); err != nil {
		c.logger.Printf("[ingestion] run %s: record failure: %v", shortID(runID), err)
	}
	return cause
}

// ingestTable fetches and appends every series of one table. Validation
// failures drop the row and continue; revision conflicts and exhausted
// fetch retries fail the table. The returned error, when non-nil, is the
// failure that stopped the table; the report carries its rendering.
func (c *Controller) ingestTable(ctx context.Context, runID, table string, start, end time.Time, mode domain.RunMode) (*domain.TableReport, error) {
	report := &domain.TableReport{RunID: runID, Table: table, Status: domain.TableStatusSucceeded}

	for _, def := range c.seriesFor(table) {
		observations, err := c.fetchSeries(ctx, def, start, end)
		if err != nil {
			report.Status = domain.TableStatusFailed
			report.Error = fmt.Sprintf("fetch %s: %v", def.SeriesID, err)
			return report, err
		}
		report.RowsFetched += len(observations)

		// Incremental runs of non-vintage series only carry dates
		// strictly after what is already stored; vintage series always
		// replay their full window so late revisions land.
		if mode == domain.RunModeIncremental && !def.Vintaged {
			observations, err = c.filterForUpdate(ctx, table, def.SeriesID, observations)
			if err != nil {
				report.Status = domain.TableStatusFailed
				report.Error = fmt.Sprintf("filter %s: %v", def.SeriesID, err)
				return report, err
			}
		}

		for _, obs := range observations {
			result, err := c.tracker.Append(ctx, table, obs)
			if err != nil {
				if errors.Is(err, storage.ErrInvalidInput) {
					report.RowsDropped++
					observability.RecordDropped(table, 1)
					continue
				}
				report.Status = domain.TableStatusFailed
				report.Error = fmt.Sprintf("append %s@%s: %v", def.SeriesID, obs.ObservationDate.Format("2006-01-02"), err)
				return report, err
			}

			observability.RecordAppend(table, result.String())
			switch result {
			case domain.RevisionInserted:
				report.RowsInserted++
			case domain.RevisionRevised:
				report.RowsRevised++
			case domain.RevisionUnchanged:
				report.RowsUnchanged++
			}
		}
	}

	return report, nil
}

func (c *Controller) fetchSeries(ctx context.Context, def domain.SeriesDefinition, start, end time.Time) ([]*domain.RawObservation, error) {
	fetchStarted := c.now()

	var observations []*domain.RawObservation
	var err error
	if def.Vintaged {
		observations, err = c.source.FetchVintages(ctx, def.SeriesID, start, end)
	} else {
		observations, err = c.source.FetchObservations(ctx, def.SeriesID, start, end)
	}

	observability.RecordFetch(def.SeriesID, c.now().Sub(fetchStarted).Seconds(), fetchErrType(err))
	return observations, err
}

// filterForUpdate drops observations at or before the last stored date
// of a series, so incremental runs only append genuinely new dates.
func (c *Controller) filterForUpdate(ctx context.Context, table, seriesID string, observations []*domain.RawObservation) ([]*domain.RawObservation, error) {
	last, ok, err := c.observations.LastObservationDate(ctx, table, seriesID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return observations, nil
	}

	var out []*domain.RawObservation
	for _, obs := range observations {
		if obs.ObservationDate.After(last) {
			out = append(out, obs)
		}
	}
	return out, nil
}

func (c *Controller) configuredTables() []string {
	seen := make(map[string]bool)
	var tables []string
	for _, table := range domain.AllTables() {
		for _, def := range c.series {
			if def.Table == table && !seen[table] {
				seen[table] = true
				tables = append(tables, table)
			}
		}
	}
	return tables
}

func (c *Controller) seriesFor(table string) []domain.SeriesDefinition {
	var out []domain.SeriesDefinition
	for _, def := range c.series {
		if def.Table == table {
			out = append(out, def)
		}
	}
	return out
}

func fetchErrType(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, fred.ErrAuth):
		return "auth"
	case errors.Is(err, fred.ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, fred.ErrUpstreamUnavailable):
		return "upstream_unavailable"
	default:
		return "other"
	}
}

func shortID(runID string) string {
	if len(runID) > 12 {
		return runID[:12]
	}
	return runID
}

func today(now time.Time) time.Time {
	y, m, d := now.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
