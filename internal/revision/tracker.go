// Package revision implements bitemporal revision tracking on top of an
// observation store. Every (table, series_id, observation_date) key owns
// a partition-of-time interval history; appends are idempotent and never
// rewrite stored values.
package revision

import (
	"context"
	"fmt"
	"hash/fnv"
	"log"
	"strings"
	"sync"
	"time"

	"macrokit-datalake/internal/domain"
	"macrokit-datalake/internal/storage"
)

const defaultStripes = 64

// Tracker coordinates revision appends. Per-key serialization uses
// striped mutexes in-process; the store provides the transactional
// guarantee across processes.
type Tracker struct {
	store   storage.ObservationStore
	logger  *log.Logger
	now     func() time.Time
	stripes []sync.Mutex
}

// Options configures a Tracker.
type Options struct {
	Store storage.ObservationStore

	// Logger for append diagnostics. Defaults to the standard logger.
	Logger *log.Logger

	// Now is the clock used when an observation carries no vintage
	// window. Defaults to time.Now.
	Now func() time.Time
}

// NewTracker creates a Tracker backed by the given store.
func NewTracker(opts Options) (*Tracker, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("revision tracker: store is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Tracker{
		store:   opts.Store,
		logger:  logger,
		now:     now,
		stripes: make([]sync.Mutex, defaultStripes),
	}, nil
}

// Append records one raw observation for a table. The observation's
// vintage start becomes the interval's realtime_start; non-vintage
// observations use the tracker clock. Appending the same value twice is
// a no-op; a changed value closes the covering interval and opens a new
// one.
//
// Returns storage.ErrInvalidInput for malformed rows and
// storage.ErrRevisionConflict when the stored history is inconsistent
// with the incoming vintage.
func (t *Tracker) Append(ctx context.Context, table string, raw *domain.RawObservation) (domain.RevisionResult, error) {
	if err := validateAppend(table, raw); err != nil {
		return 0, err
	}

	start := t.now().UTC()
	if raw.RealtimeStart != nil {
		start = raw.RealtimeStart.UTC()
	}

	obs := &domain.Observation{
		Table:           table,
		SeriesID:        raw.SeriesID,
		ObservationDate: raw.ObservationDate,
		Value:           raw.Value,
		RealtimeStart:   start,
		Source:          raw.Source,
		LoadedAt:        t.now().UTC(),
	}

	mu := t.stripeFor(table, raw.SeriesID, raw.ObservationDate)
	mu.Lock()
	defer mu.Unlock()

	result, err := t.store.AppendInterval(ctx, obs)
	if err != nil {
		return 0, fmt.Errorf("append interval %s/%s@%s: %w",
			table, raw.SeriesID, raw.ObservationDate.Format("2006-01-02"), err)
	}

	if result == domain.RevisionRevised {
		t.logger.Printf("[revision] %s/%s@%s revised to %v (vintage %s)",
			table, raw.SeriesID, raw.ObservationDate.Format("2006-01-02"),
			raw.Value, start.Format(time.RFC3339))
	}

	return result, nil
}

// Current returns the open interval for a key.
// Returns storage.ErrNotFound when the key has no open interval.
func (t *Tracker) Current(ctx context.Context, table, seriesID string, date time.Time) (*domain.Observation, error) {
	intervals, err := t.store.GetIntervals(ctx, table, seriesID, date)
	if err != nil {
		return nil, err
	}
	for _, iv := range intervals {
		if iv.Current() {
			return iv, nil
		}
	}
	return nil, storage.ErrNotFound
}

// AsOf returns the interval that was the recorded truth at asOf.
// Returns storage.ErrNotFound when no interval covers the timestamp.
func (t *Tracker) AsOf(ctx context.Context, table, seriesID string, date time.Time, asOf time.Time) (*domain.Observation, error) {
	return t.store.GetAsOf(ctx, table, seriesID, date, asOf)
}

// History returns the full revision history for a key, ordered by
// realtime_start ASC.
func (t *Tracker) History(ctx context.Context, table, seriesID string, date time.Time) ([]*domain.Observation, error) {
	return t.store.GetIntervals(ctx, table, seriesID, date)
}

func (t *Tracker) stripeFor(table, seriesID string, date time.Time) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(table))
	h.Write([]byte{'|'})
	h.Write([]byte(seriesID))
	h.Write([]byte{'|'})
	h.Write([]byte(date.Format("2006-01-02")))
	return &t.stripes[h.Sum32()%uint32(len(t.stripes))]
}

func validateAppend(table string, raw *domain.RawObservation) error {
	if raw == nil {
		return fmt.Errorf("%w: nil observation", storage.ErrInvalidInput)
	}
	if strings.TrimSpace(table) == "" {
		return fmt.Errorf("%w: empty table", storage.ErrInvalidInput)
	}
	if strings.TrimSpace(raw.SeriesID) == "" {
		return fmt.Errorf("%w: empty series id", storage.ErrInvalidInput)
	}
	if raw.ObservationDate.IsZero() {
		return fmt.Errorf("%w: zero observation date", storage.ErrInvalidInput)
	}
	if raw.Missing {
		return fmt.Errorf("%w: missing value", storage.ErrInvalidInput)
	}
	return nil
}
