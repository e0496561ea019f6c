package derive

import (
	"math"

	"macrokit-datalake/internal/domain"
)

// SpreadBP computes the spread between two yield legs in basis points:
// (far − near) × 100, rounded to a hundredth of a basis point so that
// yields quoted at two decimals produce exact spreads. Returns nil when
// either leg is absent.
func SpreadBP(near, far *float64) *float64 {
	if near == nil || far == nil {
		return nil
	}
	spread := math.Round((*far-*near)*1e4) / 100
	return &spread
}

// ClassifyCurve maps a spread to a curve shape. Zero is exactly FLAT;
// positive NORMAL, negative INVERTED. Nil spread yields nil shape.
func ClassifyCurve(spreadBP *float64) *domain.CurveShape {
	if spreadBP == nil {
		return nil
	}
	var shape domain.CurveShape
	switch {
	case *spreadBP > 0:
		shape = domain.CurveNormal
	case *spreadBP < 0:
		shape = domain.CurveInverted
	default:
		shape = domain.CurveFlat
	}
	return &shape
}

// BuildYieldCurveRows derives the mart yield curve from pivoted wide
// rows: tenor columns, 2s10s and 5s30s spreads in basis points, and the
// curve shape from the 2s10s spread. Input order is preserved, so a
// sorted pivot yields a sorted mart.
func BuildYieldCurveRows(rows []*WideYieldRow, sourceNode string) []*domain.YieldCurveRow {
	out := make([]*domain.YieldCurveRow, 0, len(rows))
	for _, row := range rows {
		spread2s10s := SpreadBP(row.Yield("2Y"), row.Yield("10Y"))
		curve := &domain.YieldCurveRow{
			Date:         row.Date,
			Country:      row.Country,
			Yield2Y:      row.Yield("2Y"),
			Yield5Y:      row.Yield("5Y"),
			Yield10Y:     row.Yield("10Y"),
			Yield30Y:     row.Yield("30Y"),
			Spread2s10s:  spread2s10s,
			Spread5s30s:  SpreadBP(row.Yield("5Y"), row.Yield("30Y")),
			CurveShape:   ClassifyCurve(spread2s10s),
			SourceNode:   sourceNode,
			SourceSeries: row.SourceSeries(),
		}
		out = append(out, curve)
	}
	return out
}
