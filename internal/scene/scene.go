// Package scene is the in-process rendering collaborator. It owns one proxy
// per satellite, a simulated clock and a camera, resolves proxy positions
// once per frame through a PositionSource, and publishes every change to
// browser globes over Server-Sent Events.
package scene

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/anldrms/satellite-tracker-pro/internal/propagation"
	"github.com/anldrms/satellite-tracker-pro/internal/transform"
)

// Emphasis is the visual weight of a proxy.
type Emphasis int

const (
	EmphasisNone Emphasis = iota
	EmphasisSelected
)

// Point sizes in pixels per emphasis level.
const (
	DefaultPointSize  = 6
	SelectedPointSize = 12
)

// HomeView is where the camera goes on a home action.
var HomeView = transform.Geodetic{LonDeg: 0, LatDeg: 30, AltKm: 20000}

// HomeDuration is the camera flight time for a home action.
const HomeDuration = 2 * time.Second

// Point is a position on the viewport in pixels, origin top-left.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Viewport is the pick surface: an equirectangular map of the globe.
type Viewport struct {
	Width  int
	Height int
}

// Camera is the current camera target and the duration of the flight that
// brought it there.
type Camera struct {
	Target   transform.Geodetic
	Duration time.Duration
}

// PositionSource resolves proxy positions for one frame. propagation.Resolver
// satisfies it.
type PositionSource interface {
	ResolveBatch(ctx context.Context, ids []string, t time.Time) []propagation.Placement
}

// Config holds scene configuration loaded from environment variables.
type Config struct {
	Viewport   Viewport // Pick surface (default: 1920x1080)
	PickRadius float64  // Max pick distance in pixels (default: 12)
}

// ProxyState is a copy of one proxy's render state.
type ProxyState struct {
	ID       string
	Color    string
	Visible  bool
	Emphasis Emphasis
	Label    string
	Position transform.Geodetic
	HasFix   bool
}

// Size is the point size for the proxy's emphasis.
func (p ProxyState) Size() int {
	if p.Emphasis == EmphasisSelected {
		return SelectedPointSize
	}
	return DefaultPointSize
}

type proxy struct {
	color    string
	visible  bool
	emphasis Emphasis
	label    string
	pos      transform.Geodetic
	hasFix   bool
}

// Scene is safe for concurrent use.
type Scene struct {
	mu        sync.RWMutex
	proxies   map[string]*proxy
	order     []string
	camera    Camera
	lastFrame time.Time

	// Changes buffered until the next frame.
	pendingVisible map[string]bool
	pendingReset   bool

	clock     *Clock
	positions PositionSource
	hub       *hub
	config    Config
	logger    *slog.Logger
}

// New creates an empty scene with the camera at HomeView.
func New(positions PositionSource, clock *Clock, config Config, logger *slog.Logger) *Scene {
	if config.Viewport.Width <= 0 || config.Viewport.Height <= 0 {
		config.Viewport = Viewport{Width: 1920, Height: 1080}
	}
	if config.PickRadius <= 0 {
		config.PickRadius = 12
	}
	if clock == nil {
		clock = NewClock(nil)
	}
	return &Scene{
		proxies:        make(map[string]*proxy),
		pendingVisible: make(map[string]bool),
		camera:         Camera{Target: HomeView},
		clock:          clock,
		positions:      positions,
		hub:            newHub(logger),
		config:         config,
		logger:         logger,
	}
}

// CreateProxy adds a visible proxy for id. It reports false and changes
// nothing when a proxy with that id already exists.
func (s *Scene) CreateProxy(id, color string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.proxies[id]; exists {
		return false
	}
	s.proxies[id] = &proxy{color: color, visible: true}
	s.order = append(s.order, id)
	s.pendingReset = true
	return true
}

// SetVisible shows or hides a proxy. Unknown ids are ignored. Visibility
// changes reach stream clients with the next frame.
func (s *Scene) SetVisible(id string, visible bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.proxies[id]
	if !ok || p.visible == visible {
		return
	}
	p.visible = visible
	if !visible {
		// A hidden proxy is not resolved, so its last fix goes stale.
		p.hasFix = false
	}
	s.pendingVisible[id] = visible
}

// SetEmphasis sets a proxy's emphasis and label. Unknown ids are ignored.
func (s *Scene) SetEmphasis(id string, level Emphasis, label string) {
	s.mu.Lock()
	p, ok := s.proxies[id]
	if !ok {
		s.mu.Unlock()
		return
	}
	p.emphasis = level
	p.label = label
	msg := emphasisMessage{Type: "emphasis", ID: id, Size: s.stateLocked(id).Size(), Label: label}
	s.mu.Unlock()

	s.hub.publish(msg.Type, msg)
}

// FrameCamera flies the camera to target over d.
func (s *Scene) FrameCamera(target transform.Geodetic, d time.Duration) {
	s.mu.Lock()
	s.camera = Camera{Target: target, Duration: d}
	s.mu.Unlock()

	s.hub.publish("camera", newCameraMessage(target, d))
}

// Home returns the camera to HomeView.
func (s *Scene) Home() {
	s.FrameCamera(HomeView, HomeDuration)
}

// SetClock enables or pauses the simulated clock and sets its rate.
func (s *Scene) SetClock(enabled bool, multiplier float64) {
	s.clock.Set(enabled, multiplier)
	s.hub.publish("clock", s.clockMessage())
}

// Now is the simulated time used for every position query.
func (s *Scene) Now() time.Time {
	return s.clock.Now()
}

func (s *Scene) Camera() Camera {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.camera
}

// Proxy returns a copy of one proxy's state.
func (s *Scene) Proxy(id string) (ProxyState, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.proxies[id]; !ok {
		return ProxyState{}, false
	}
	return s.stateLocked(id), true
}

func (s *Scene) stateLocked(id string) ProxyState {
	p := s.proxies[id]
	return ProxyState{
		ID:       id,
		Color:    p.color,
		Visible:  p.visible,
		Emphasis: p.emphasis,
		Label:    p.label,
		Position: p.pos,
		HasFix:   p.hasFix,
	}
}

func (s *Scene) ProxyCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.proxies)
}

func (s *Scene) VisibleCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, p := range s.proxies {
		if p.visible {
			n++
		}
	}
	return n
}

// Pick returns the visible proxy drawn nearest to pt, if one lies within
// the pick radius. Positions come from the last frame; proxies without a
// fix cannot be picked.
func (s *Scene) Pick(pt Point) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	w := float64(s.config.Viewport.Width)
	best, bestDist := "", math.Inf(1)
	for _, id := range s.order {
		p := s.proxies[id]
		if !p.visible || !p.hasFix {
			continue
		}
		x, y := s.project(p.pos)
		dx := math.Abs(x - pt.X)
		if dx > w/2 {
			dx = w - dx // wrap across the antimeridian
		}
		d := math.Hypot(dx, y-pt.Y)
		if d <= s.config.PickRadius && d < bestDist {
			best, bestDist = id, d
		}
	}
	return best, best != ""
}

// project maps a geodetic position onto the equirectangular viewport.
func (s *Scene) project(g transform.Geodetic) (float64, float64) {
	x := (g.LonDeg + 180) / 360 * float64(s.config.Viewport.Width)
	y := (90 - g.LatDeg) / 180 * float64(s.config.Viewport.Height)
	return x, y
}

// Frame resolves every visible proxy at the current simulated time, keeps
// the results for picking and publishes them. Hidden proxies are not
// resolved.
func (s *Scene) Frame(ctx context.Context) []propagation.Placement {
	t := s.clock.Now()

	s.mu.RLock()
	ids := make([]string, 0, len(s.order))
	for _, id := range s.order {
		if s.proxies[id].visible {
			ids = append(ids, id)
		}
	}
	s.mu.RUnlock()

	placements := s.positions.ResolveBatch(ctx, ids, t)

	s.mu.Lock()
	for _, pl := range placements {
		// Skip proxies hidden while the batch was resolving.
		if p, ok := s.proxies[pl.ID]; ok && p.visible {
			p.pos = propagation.RenderPosition(pl.Fix)
			p.hasFix = pl.Fix.OK()
		}
	}
	s.lastFrame = t
	reset := s.pendingReset
	s.pendingReset = false
	var vis visibilityMessage
	if !reset && len(s.pendingVisible) > 0 {
		vis = newVisibilityMessage(s.pendingVisible)
	}
	clear(s.pendingVisible)
	s.mu.Unlock()

	if reset {
		s.hub.publish("snapshot", s.snapshot())
	} else if vis.Type != "" {
		s.hub.publish(vis.Type, vis)
	}
	s.hub.publish("frame", newFrameMessage(t, placements))
	return placements
}

// Run calls Frame every interval until ctx is cancelled.
func (s *Scene) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("scene frame loop started", "interval", interval.String())
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scene frame loop stopped")
			return
		case <-ticker.C:
			s.Frame(ctx)
		}
	}
}
