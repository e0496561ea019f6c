package domain

import (
	"errors"
	"sort"
	"time"
)

// RevisionResult describes the effect of applying one observation to the
// interval history of its key.
type RevisionResult int

const (
	// RevisionUnchanged: the covering interval already holds the value.
	RevisionUnchanged RevisionResult = iota
	// RevisionInserted: a new interval was opened with no prior coverage.
	RevisionInserted
	// RevisionRevised: the covering interval was closed and superseded.
	RevisionRevised
)

func (r RevisionResult) String() string {
	switch r {
	case RevisionUnchanged:
		return "unchanged"
	case RevisionInserted:
		return "inserted"
	case RevisionRevised:
		return "revised"
	default:
		return "unknown"
	}
}

// ErrIntervalOverlap reports a malformed interval history. Storage
// implementations translate it to their conflict sentinel.
var ErrIntervalOverlap = errors.New("overlapping revision intervals")

// RevisionPlan is the set of mutations required to apply an observation
// to an interval history. At most one interval is closed and at most one
// inserted; existing values are never rewritten.
type RevisionPlan struct {
	Result RevisionResult

	// Close, when set, is the existing interval to terminate at CloseAt.
	Close   *Observation
	CloseAt time.Time

	// Insert, when set, is the new interval to store. Its RealtimeEnd is
	// inherited from the interval it supersedes (nil keeps it open).
	Insert *Observation
}

// PlanRevision computes the mutations needed to record incoming in the
// given history. intervals must all share the incoming key; they are
// sorted and validated here, so callers may pass them unordered.
//
// The plan preserves the partition-of-time invariant for any append
// order, including out-of-order vintages: a new interval never extends
// past the start of the next existing interval.
func PlanRevision(intervals []*Observation, incoming *Observation) (RevisionPlan, error) {
	sorted := make([]*Observation, len(intervals))
	copy(sorted, intervals)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].RealtimeStart.Before(sorted[j].RealtimeStart)
	})

	if err := ValidateIntervals(sorted); err != nil {
		return RevisionPlan{}, err
	}

	t := incoming.RealtimeStart

	// Locate the interval covering t and the first interval starting after t.
	var covering *Observation
	var next *Observation
	for _, iv := range sorted {
		if iv.Covers(t) {
			covering = iv
		}
		if iv.RealtimeStart.After(t) {
			next = iv
			break
		}
	}

	if covering != nil {
		if covering.Value == incoming.Value {
			return RevisionPlan{Result: RevisionUnchanged}, nil
		}
		if covering.RealtimeStart.Equal(t) {
			// A different value at the exact same transaction time has no
			// valid interval to occupy; the history is inconsistent.
			return RevisionPlan{}, ErrIntervalOverlap
		}
		insert := cloneForInsert(incoming)
		insert.RealtimeEnd = covering.RealtimeEnd // inherit end, nil stays open
		return RevisionPlan{
			Result:  RevisionRevised,
			Close:   covering,
			CloseAt: t,
			Insert:  insert,
		}, nil
	}

	insert := cloneForInsert(incoming)
	if next != nil {
		end := next.RealtimeStart
		insert.RealtimeEnd = &end
	}
	return RevisionPlan{Result: RevisionInserted, Insert: insert}, nil
}

// ValidateIntervals checks the partition-of-time invariant on a history
// sorted by RealtimeStart: no overlap, and at most one open interval
// which must be the last.
func ValidateIntervals(sorted []*Observation) error {
	for i := 0; i < len(sorted); i++ {
		iv := sorted[i]
		last := i == len(sorted)-1
		if iv.RealtimeEnd == nil {
			if !last {
				return ErrIntervalOverlap
			}
			continue
		}
		if !iv.RealtimeStart.Before(*iv.RealtimeEnd) {
			return ErrIntervalOverlap
		}
		if !last && sorted[i+1].RealtimeStart.Before(*iv.RealtimeEnd) {
			return ErrIntervalOverlap
		}
	}
	return nil
}

func cloneForInsert(incoming *Observation) *Observation {
	obs := *incoming
	obs.ID = 0
	obs.RealtimeEnd = nil
	return &obs
}
