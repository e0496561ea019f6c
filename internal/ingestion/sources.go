package ingestion

import (
	"context"
	"time"

	"macrokit-datalake/internal/domain"
)

// ObservationSource provides raw observations from an external provider.
// *fred.Client satisfies this interface.
type ObservationSource interface {
	// FetchObservations returns the current values of a series within
	// [start, end]. Missing values are flagged, not omitted.
	FetchObservations(ctx context.Context, seriesID string, start, end time.Time) ([]*domain.RawObservation, error)

	// FetchVintages returns the full revision history of a series within
	// [start, end], each row carrying its realtime window.
	FetchVintages(ctx context.Context, seriesID string, start, end time.Time) ([]*domain.RawObservation, error)
}
