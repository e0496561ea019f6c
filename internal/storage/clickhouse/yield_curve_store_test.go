package clickhouse_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"macrokit-datalake/internal/domain"
	chstore "macrokit-datalake/internal/storage/clickhouse"
	"macrokit-datalake/internal/storage"
)

func curveRow(date time.Time, country string, y2, y10 float64) *domain.YieldCurveRow {
	spread := (y10 - y2) * 100
	shape := domain.CurveNormal
	if spread < 0 {
		shape = domain.CurveInverted
	}
	return &domain.YieldCurveRow{
		Date:         date,
		Country:      country,
		Yield2Y:      ptr(y2),
		Yield10Y:     ptr(y10),
		Spread2s10s:  ptr(spread),
		CurveShape:   &shape,
		SourceNode:   "mart_yield_curve",
		SourceSeries: []string{"DGS2", "DGS10"},
	}
}

func TestYieldCurveStore_ReplaceAndQuery(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := chstore.NewYieldCurveStore(conn)
	ctx := context.Background()

	d1 := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	d2 := time.Date(2024, 1, 16, 0, 0, 0, 0, time.UTC)

	// Insert out of order; reads come back (date, country) ordered.
	require.NoError(t, store.ReplaceAll(ctx, []*domain.YieldCurveRow{
		curveRow(d2, "US", 4.40, 4.55),
		curveRow(d1, "US", 4.50, 4.20),
	}))

	rows, err := store.GetByDateRange(ctx, d1, d2)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.True(t, rows[0].Date.Equal(d1))
	require.NotNil(t, rows[0].Spread2s10s)
	assert.InDelta(t, -30.0, *rows[0].Spread2s10s, 1e-9)
	require.NotNil(t, rows[0].CurveShape)
	assert.Equal(t, domain.CurveInverted, *rows[0].CurveShape)
	assert.Equal(t, []string{"DGS2", "DGS10"}, rows[0].SourceSeries)

	assert.True(t, rows[1].Date.Equal(d2))
	require.NotNil(t, rows[1].CurveShape)
	assert.Equal(t, domain.CurveNormal, *rows[1].CurveShape)

	// Nullable tenor columns survive the round trip.
	assert.Nil(t, rows[0].Yield5Y)
	assert.Nil(t, rows[0].Spread5s30s)
}

func TestYieldCurveStore_GetByDate(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := chstore.NewYieldCurveStore(conn)
	ctx := context.Background()

	d := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.ReplaceAll(ctx, []*domain.YieldCurveRow{curveRow(d, "US", 4.50, 4.20)}))

	row, err := store.GetByDate(ctx, d, "US")
	require.NoError(t, err)
	assert.Equal(t, "US", row.Country)

	_, err = store.GetByDate(ctx, d, "DE")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestYieldCurveStore_ReplaceNotAppend(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := chstore.NewYieldCurveStore(conn)
	ctx := context.Background()

	d1 := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	d2 := time.Date(2024, 1, 16, 0, 0, 0, 0, time.UTC)

	require.NoError(t, store.ReplaceAll(ctx, []*domain.YieldCurveRow{
		curveRow(d1, "US", 4.50, 4.20),
		curveRow(d2, "US", 4.40, 4.55),
	}))
	// Second materialization replaces, never accumulates.
	require.NoError(t, store.ReplaceAll(ctx, []*domain.YieldCurveRow{
		curveRow(d2, "US", 4.40, 4.55),
	}))

	rows, err := store.GetByDateRange(ctx, d1, d2)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.True(t, rows[0].Date.Equal(d2))
}
