package propagation

import (
	"errors"
	"math"
	"time"

	"github.com/anldrms/satellite-tracker-pro/internal/transform"
)

// ErrPropagation marks a failure to resolve a state vector at a given time:
// numerical divergence, decayed elements, or an epoch the model cannot reach.
var ErrPropagation = errors.New("propagation failed")

// ErrElements marks element lines the propagator refuses to build a model from.
var ErrElements = errors.New("invalid element set")

// OrbitalModel is the opaque, propagation-ready form of one element set.
// Only the Engine that produced a model knows how to advance it.
type OrbitalModel interface {
	// CatalogNumber returns the NORAD catalog number carried by line 1.
	CatalogNumber() int
	// Epoch returns the reference epoch of the element set.
	Epoch() time.Time
}

// Engine is the orbital mechanics collaborator. Implementations must be safe
// for concurrent use; the resolver fans batches out over a worker pool.
type Engine interface {
	ParseElements(line1, line2 string) (OrbitalModel, error)
	Propagate(m OrbitalModel, t time.Time) (transform.PositionTEME, error)
	ToGeodetic(state transform.PositionTEME, t time.Time) transform.Geodetic
}

// Fix is the outcome of one position query. The zero value is NoFix.
type Fix struct {
	LonDeg   float64
	LatDeg   float64
	AltKm    float64
	SpeedKmh float64
	ok       bool
}

// NoFix is returned whenever a position cannot be resolved.
var NoFix = Fix{}

// NewFix builds a valid fix from a geodetic position and a speed in km/h.
func NewFix(g transform.Geodetic, speedKmh float64) Fix {
	return Fix{LonDeg: g.LonDeg, LatDeg: g.LatDeg, AltKm: g.AltKm, SpeedKmh: speedKmh, ok: true}
}

// OK reports whether the fix carries a resolved position.
func (f Fix) OK() bool { return f.ok }

// Geodetic returns the fix position; NoFix maps to the origin.
func (f Fix) Geodetic() transform.Geodetic {
	return transform.Geodetic{LonDeg: f.LonDeg, LatDeg: f.LatDeg, AltKm: f.AltKm}
}

// RenderPosition is where a proxy is drawn for a fix. Objects without a fix
// are parked at the origin (0°, 0°, 0 km) until a later query succeeds.
func RenderPosition(f Fix) transform.Geodetic {
	if !f.ok {
		return transform.Geodetic{}
	}
	return f.Geodetic()
}

// Placement is one resolved entry of a frame batch.
type Placement struct {
	ID  string
	Fix Fix
}

// PropConfig holds resolver configuration loaded from environment variables.
type PropConfig struct {
	Workers int // Worker pool size for frame batches (default: runtime.NumCPU())
}

// kmPerSecondToKmPerHour converts the propagator's per-second base to the
// per-hour rate shown in the list and detail panel.
const kmPerSecondToKmPerHour = 3600.0

func finite(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
