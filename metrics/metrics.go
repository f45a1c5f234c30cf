// Package metrics exposes opencensus measures and views for the farmer's
// plotting and retrieval paths.
package metrics

import (
	"context"
	"time"

	"go.opencensus.io/stats"
	"go.opencensus.io/stats/view"
	"go.opencensus.io/tag"
)

var defaultMillisecondsDistribution = view.Distribution(
	1, 5, 10, 50, 100, 250, 500, // fast cache hits
	1000, 2000, 3000, 5000, 8000, 13000, 20000, 30000, // lookups with retries
	60_000, 120_000, 300_000, 600_000, 1800_000, // long plotting runs
)

// Tags
var (
	StorageTier, _ = tag.NewKey("storage_tier")
)

// Measures
var (
	PieceGetDurationMs   = stats.Float64("retrieval/get_piece_ms", "Duration of a piece retrieval including retries", stats.UnitMilliseconds)
	PieceGetRetries      = stats.Int64("retrieval/get_piece_retries", "Counter for piece retrieval attempts that had to be retried", stats.UnitDimensionless)
	SectorPlotDurationMs = stats.Float64("plotting/plot_sector_ms", "Duration of plotting one sector", stats.UnitMilliseconds)
	PiecesPlotted        = stats.Int64("plotting/pieces_plotted", "Counter for pieces encoded into sectors", stats.UnitDimensionless)
)

// Views
var (
	PieceGetDurationView = &view.View{
		Measure:     PieceGetDurationMs,
		Aggregation: defaultMillisecondsDistribution,
	}
	PieceGetRetriesView = &view.View{
		Measure:     PieceGetRetries,
		Aggregation: view.Sum(),
	}
	SectorPlotDurationView = &view.View{
		Measure:     SectorPlotDurationMs,
		Aggregation: defaultMillisecondsDistribution,
	}
	PiecesPlottedView = &view.View{
		Measure:     PiecesPlotted,
		Aggregation: view.Sum(),
	}
)

// DefaultViews is the set of views consumers should register.
var DefaultViews = []*view.View{
	PieceGetDurationView,
	PieceGetRetriesView,
	SectorPlotDurationView,
	PiecesPlottedView,
}

// SinceInMilliseconds returns the duration of time since the provided time as a float64.
func SinceInMilliseconds(startTime time.Time) float64 {
	return float64(time.Since(startTime).Milliseconds())
}

// Timer is a function stopwatch, calling it starts the timer,
// calling the returned function will record the duration.
func Timer(ctx context.Context, m *stats.Float64Measure) func() time.Duration {
	start := time.Now()
	return func() time.Duration {
		stats.Record(ctx, m.M(SinceInMilliseconds(start)))
		return time.Since(start)
	}
}
