// Package stub provides an in-memory ObservationSource for testing.
package stub

import (
	"context"
	"time"

	"macrokit-datalake/internal/domain"
)

// ObservationSource implements ingestion.ObservationSource from static
// fixture data.
type ObservationSource struct {
	// Observations and Vintages hold fixture rows per series.
	Observations map[string][]*domain.RawObservation
	Vintages     map[string][]*domain.RawObservation

	// Errors forces a fetch failure per series.
	Errors map[string]error

	// FetchCalls counts fetches per series.
	FetchCalls map[string]int
}

// NewObservationSource creates an empty stub source.
func NewObservationSource() *ObservationSource {
	return &ObservationSource{
		Observations: make(map[string][]*domain.RawObservation),
		Vintages:     make(map[string][]*domain.RawObservation),
		Errors:       make(map[string]error),
		FetchCalls:   make(map[string]int),
	}
}

// FetchObservations returns the fixture observations within [start, end].
func (s *ObservationSource) FetchObservations(_ context.Context, seriesID string, start, end time.Time) ([]*domain.RawObservation, error) {
	s.FetchCalls[seriesID]++
	if err := s.Errors[seriesID]; err != nil {
		return nil, err
	}
	return filterRange(s.Observations[seriesID], start, end), nil
}

// FetchVintages returns the fixture vintages within [start, end].
func (s *ObservationSource) FetchVintages(_ context.Context, seriesID string, start, end time.Time) ([]*domain.RawObservation, error) {
	s.FetchCalls[seriesID]++
	if err := s.Errors[seriesID]; err != nil {
		return nil, err
	}
	return filterRange(s.Vintages[seriesID], start, end), nil
}

func filterRange(observations []*domain.RawObservation, start, end time.Time) []*domain.RawObservation {
	var out []*domain.RawObservation
	for _, obs := range observations {
		if obs.ObservationDate.Before(start) || obs.ObservationDate.After(end) {
			continue
		}
		copied := *obs
		out = append(out, &copied)
	}
	return out
}
