package propagation

import (
	"context"
	"log/slog"
	"time"

	"github.com/anldrms/satellite-tracker-pro/internal/metrics"
)

// ModelLookup finds the orbital model behind a proxy id.
type ModelLookup interface {
	Model(id string) (OrbitalModel, bool)
}

// Resolver turns orbital models into fixes. It is the single place positions
// are computed: the per-frame scene batch, the satellite list and the selection
// detail panel all go through Resolve, so they can never disagree.
type Resolver struct {
	engine Engine
	models ModelLookup
	pool   *WorkerPool
	logger *slog.Logger
}

// NewResolver creates a resolver over engine. models may be nil when only
// model-based resolution is needed.
func NewResolver(engine Engine, models ModelLookup, config PropConfig, logger *slog.Logger) *Resolver {
	return &Resolver{
		engine: engine,
		models: models,
		pool:   NewWorkerPool(config.Workers, logger),
		logger: logger,
	}
}

// Engine returns the propagator collaborator, which also parses element sets.
func (r *Resolver) Engine() Engine {
	return r.engine
}

// Resolve computes the geodetic position and speed of m at t. Any failure,
// including a nil model, yields NoFix; nothing is raised to the caller.
func (r *Resolver) Resolve(m OrbitalModel, t time.Time) Fix {
	if m == nil {
		metrics.IncResolve("no_fix")
		return NoFix
	}

	state, err := r.engine.Propagate(m, t)
	if err != nil {
		metrics.IncResolve("no_fix")
		r.logger.Debug("no fix", "catalog_number", m.CatalogNumber(), "error", err)
		return NoFix
	}

	g := r.engine.ToGeodetic(state, t)
	speed := state.Speed() * kmPerSecondToKmPerHour
	if !finite(g.LonDeg, g.LatDeg, g.AltKm, speed) {
		metrics.IncResolve("no_fix")
		return NoFix
	}

	metrics.IncResolve("fix")
	return NewFix(g, speed)
}

// ResolvePosition is the pull interface the scene calls once per frame per
// proxy. Unknown ids resolve to NoFix.
func (r *Resolver) ResolvePosition(id string, t time.Time) Fix {
	if r.models == nil {
		return NoFix
	}
	m, ok := r.models.Model(id)
	if !ok {
		return NoFix
	}
	return r.Resolve(m, t)
}

// ResolveBatch resolves every id at t using the worker pool. The result has
// one placement per id in input order; ids without a fix carry NoFix.
func (r *Resolver) ResolveBatch(ctx context.Context, ids []string, t time.Time) []Placement {
	start := time.Now()
	placements, fixes, misses := r.pool.ResolveBatch(ctx, ids, func(id string) Fix {
		return r.ResolvePosition(id, t)
	})
	duration := time.Since(start)

	metrics.RecordFrame(duration, fixes, misses)
	r.logger.Debug("frame resolved",
		"objects", len(ids),
		"fixes", fixes,
		"no_fix", misses,
		"duration_ms", duration.Milliseconds(),
	)
	return placements
}
