package domain

import "time"

// RunMode selects the ingestion lifecycle entry point.
type RunMode string

const (
	RunModeFull        RunMode = "full"        // bootstrap: full history
	RunModeIncremental RunMode = "incremental" // update since last load
)

// RunStatus is the terminal (or in-flight) state of an ingestion run.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusSucceeded RunStatus = "succeeded"
	RunStatusFailed    RunStatus = "failed"
	RunStatusPartial   RunStatus = "partial" // some tables succeeded, some failed
)

// TableStatus is the per-table outcome within a run.
type TableStatus string

const (
	TableStatusSucceeded TableStatus = "succeeded"
	TableStatusFailed    TableStatus = "failed"
)

// IngestionRun is an append-only audit record for one invocation of the
// ingestion controller. Corresponds to the ingestion_runs table.
type IngestionRun struct {
	RunID           string
	Mode            RunMode
	TablesRequested []string
	StartDate       time.Time
	EndDate         time.Time
	Overwrite       bool
	StartedAt       time.Time
	CompletedAt     *time.Time
	Status          RunStatus
}

// TableReport accounts for every row handled while ingesting one table.
// Each table is an independent unit of atomicity within a run.
type TableReport struct {
	RunID         string
	Table         string
	Status        TableStatus
	RowsFetched   int
	RowsInserted  int // new open intervals
	RowsRevised   int // intervals closed and superseded
	RowsUnchanged int // idempotent no-ops
	RowsDropped   int // validation failures, counted not fatal
	Error         string
}

// Succeeded reports whether the run completed without any table failure.
func (r *IngestionRun) Succeeded() bool {
	return r.Status == RunStatusSucceeded
}
