// Package coordinator runs the startup pipeline (scene init, group fetch and
// ingest, proxy materialization, panel build, wiring) and the periodic
// selection refresh that follows it.
package coordinator

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/anldrms/satellite-tracker-pro/internal/metrics"
	"github.com/anldrms/satellite-tracker-pro/internal/tle"
	"github.com/anldrms/satellite-tracker-pro/internal/view"
)

// Status texts shown while starting.
const (
	StatusInitScene   = "Initializing 3D Earth..."
	StatusFetching    = "Fetching satellite data..."
	StatusMaterialize = "Creating satellite entities..."
	StatusPanels      = "Setting up UI..."
	StatusTracking    = "Starting real-time tracking..."
)

// Progress checkpoints of the startup pipeline, in percent.
const (
	progressSceneReady   = 10
	progressGroupsLoaded = 70
	progressMaterialized = 90
	progressPanelsBuilt  = 95
	progressDone         = 100
)

// DefaultRefreshInterval is how often the selected satellite's details and
// camera framing are reapplied.
const DefaultRefreshInterval = 2 * time.Second

// Fetcher loads one group. tle.Source satisfies it.
type Fetcher interface {
	Fetch(ctx context.Context, spec tle.GroupSpec) tle.Result
}

// Ingester receives each loaded group. catalog.Catalog satisfies it.
type Ingester interface {
	Ingest(name, color string, members []tle.Record)
}

// View is the reconciliation layer. view.Sync satisfies it.
type View interface {
	Materialize(progress func(done, total int)) int
	Categories() []view.CategoryEntry
	Stats() view.Stats
	List() view.List
	Refresh() (view.Details, bool)
}

// Scene is the rendering collaborator. scene.Scene satisfies it.
type Scene interface {
	Home()
	Run(ctx context.Context, interval time.Duration)
}

// Config holds coordinator configuration loaded from environment variables.
type Config struct {
	Groups           []tle.GroupSpec
	FetchConcurrency int           // Groups fetched at once; 1 is sequential (default: 1)
	RefreshInterval  time.Duration // Selection refresh period (default: 2s)
	FrameInterval    time.Duration // Scene frame period (default: 1s)
}

// GroupStatus reports how one configured group loaded.
type GroupStatus struct {
	Name       string `json:"name"`
	Records    int    `json:"records"`
	Skipped    int    `json:"skipped"`
	DurationMs int64  `json:"duration_ms"`
	Error      string `json:"error,omitempty"`
}

// Status is the startup progress shown to users.
type Status struct {
	Progress int           `json:"progress"`
	Text     string        `json:"status"`
	Ready    bool          `json:"ready"`
	Groups   []GroupStatus `json:"groups"`
}

// Coordinator owns the startup sequence. Progress only moves forward.
type Coordinator struct {
	mu       sync.RWMutex
	progress int
	text     string
	groups   []GroupStatus
	ready    atomic.Bool

	// onProgress, if set, observes every accepted progress change.
	onProgress func(progress int, text string)

	config  Config
	fetcher Fetcher
	catalog Ingester
	view    View
	scene   Scene
	tracer  trace.Tracer
	logger  *slog.Logger
}

func New(config Config, fetcher Fetcher, catalog Ingester, v View, sc Scene, logger *slog.Logger) *Coordinator {
	if config.FetchConcurrency < 1 {
		config.FetchConcurrency = 1
	}
	if config.RefreshInterval <= 0 {
		config.RefreshInterval = DefaultRefreshInterval
	}
	if config.FrameInterval <= 0 {
		config.FrameInterval = time.Second
	}
	return &Coordinator{
		config:  config,
		fetcher: fetcher,
		catalog: catalog,
		view:    v,
		scene:   sc,
		tracer:  otel.Tracer("satview/coordinator"),
		logger:  logger,
	}
}

// Ready reports whether startup has completed.
func (c *Coordinator) Ready() bool {
	return c.ready.Load()
}

func (c *Coordinator) Status() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Status{
		Progress: c.progress,
		Text:     c.text,
		Ready:    c.ready.Load(),
		Groups:   append([]GroupStatus(nil), c.groups...),
	}
}

// setProgress records progress and status text. Values below the current
// progress are raised to it.
func (c *Coordinator) setProgress(p int, text string) {
	c.mu.Lock()
	if p < c.progress {
		p = c.progress
	}
	c.progress = p
	if text != "" {
		c.text = text
	}
	text = c.text
	hook := c.onProgress
	c.mu.Unlock()

	metrics.SetStartupProgress(p)
	if hook != nil {
		hook(p, text)
	}
}

// Run performs startup and then drives the scene frame loop and the
// selection refresh until ctx is cancelled. Failed groups never stop
// startup; Run only returns early when ctx ends.
func (c *Coordinator) Run(ctx context.Context) error {
	if err := c.Startup(ctx); err != nil {
		return err
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		c.scene.Run(ctx, c.config.FrameInterval)
	}()
	go func() {
		defer wg.Done()
		c.refreshLoop(ctx)
	}()
	wg.Wait()
	return nil
}

// Startup runs the pipeline once and marks the coordinator ready.
func (c *Coordinator) Startup(ctx context.Context) error {
	ctx, span := c.tracer.Start(ctx, "startup")
	defer span.End()
	start := time.Now()

	c.stage(ctx, "startup.init_scene", StatusInitScene, func(context.Context) {
		c.scene.Home()
	})
	c.setProgress(progressSceneReady, "")

	c.stage(ctx, "startup.load_groups", StatusFetching, c.loadGroups)
	if err := ctx.Err(); err != nil {
		return err
	}
	c.setProgress(progressGroupsLoaded, "")

	c.stage(ctx, "startup.materialize", StatusMaterialize, func(context.Context) {
		c.view.Materialize(func(done, total int) {
			if total > 0 {
				c.setProgress(progressGroupsLoaded+(progressMaterialized-progressGroupsLoaded)*done/total, "")
			}
		})
	})
	c.setProgress(progressMaterialized, "")

	var stats view.Stats
	c.stage(ctx, "startup.build_panels", StatusPanels, func(context.Context) {
		c.view.Categories()
		stats = c.view.Stats()
		c.view.List()
	})
	c.setProgress(progressPanelsBuilt, "")

	// Control routes are gated on Ready, so opening them is the wiring step.
	c.stage(ctx, "startup.wire", StatusTracking, func(context.Context) {
		c.setProgress(progressDone, "")
		c.ready.Store(true)
	})

	span.SetAttributes(
		attribute.Int("catalog.total", stats.Total),
		attribute.Int("catalog.categories", stats.Categories),
	)
	c.logger.Info("startup complete",
		"satellites", stats.Total,
		"categories", stats.Categories,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

func (c *Coordinator) stage(ctx context.Context, name, text string, fn func(context.Context)) {
	ctx, span := c.tracer.Start(ctx, name)
	defer span.End()
	c.setProgress(0, text)
	c.logger.Info(text, "stage", name)
	fn(ctx)
}

// loadGroups fetches every configured group and ingests the results in
// configured order. Progress advances once per completed group.
func (c *Coordinator) loadGroups(ctx context.Context) {
	groups := c.config.Groups
	if len(groups) == 0 {
		c.logger.Warn("no element-set groups configured")
		return
	}

	var completed atomic.Int64
	onDone := func() {
		n := int(completed.Add(1))
		c.setProgress(progressSceneReady+(progressGroupsLoaded-progressSceneReady)*n/len(groups), "")
	}

	var results []tle.Result
	if c.config.FetchConcurrency == 1 {
		results = make([]tle.Result, 0, len(groups))
		for _, g := range groups {
			if ctx.Err() != nil {
				return
			}
			res := c.fetcher.Fetch(ctx, g)
			c.ingest(res)
			results = append(results, res)
			onDone()
		}
	} else {
		results = c.fetchConcurrent(ctx, groups, onDone)
		if ctx.Err() != nil {
			return
		}
		for _, res := range results {
			c.ingest(res)
		}
	}

	statuses := make([]GroupStatus, len(results))
	failed := 0
	for i, res := range results {
		statuses[i] = GroupStatus{
			Name:       res.Group.Name,
			Records:    len(res.Records),
			Skipped:    res.Stats.Blank + res.Stats.Rejected,
			DurationMs: res.Duration.Milliseconds(),
		}
		if res.Err != nil {
			statuses[i].Error = res.Err.Error()
			failed++
		}
	}
	c.mu.Lock()
	c.groups = statuses
	c.mu.Unlock()

	c.logger.Info("groups loaded", "groups", len(groups), "failed", failed)
}

// ingest adds a group to the catalog. A failed group carries no records
// but is still registered, as an empty active category, so it shows in the
// category list with a count of zero.
func (c *Coordinator) ingest(res tle.Result) {
	c.catalog.Ingest(res.Group.Name, res.Group.Color, res.Records)
}

// fetchConcurrent fetches groups over a bounded set of workers. Results keep
// the configured order.
func (c *Coordinator) fetchConcurrent(ctx context.Context, groups []tle.GroupSpec, onDone func()) []tle.Result {
	type job struct {
		index int
		spec  tle.GroupSpec
	}

	results := make([]tle.Result, len(groups))
	jobs := make(chan job)

	var wg sync.WaitGroup
	for i := 0; i < min(c.config.FetchConcurrency, len(groups)); i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				results[j.index] = c.fetcher.Fetch(ctx, j.spec)
				onDone()
			}
		}()
	}

	for i, g := range groups {
		results[i].Group = g
	}
	func() {
		defer close(jobs)
		for i, g := range groups {
			select {
			case jobs <- job{index: i, spec: g}:
			case <-ctx.Done():
				return
			}
		}
	}()
	wg.Wait()
	return results
}

func (c *Coordinator) refreshLoop(ctx context.Context) {
	ticker := time.NewTicker(c.config.RefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if d, ok := c.view.Refresh(); ok {
				c.logger.Debug("selection refreshed", "name", d.Name, "fix", d.Position != nil)
			}
		}
	}
}
