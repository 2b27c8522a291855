// Package view keeps the scene and the searchable satellite list in step
// with the catalog: category visibility, search, selection and the detail
// panel.
package view

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/anldrms/satellite-tracker-pro/internal/catalog"
	"github.com/anldrms/satellite-tracker-pro/internal/metrics"
	"github.com/anldrms/satellite-tracker-pro/internal/propagation"
	"github.com/anldrms/satellite-tracker-pro/internal/scene"
	"github.com/anldrms/satellite-tracker-pro/internal/tle"
	"github.com/anldrms/satellite-tracker-pro/internal/transform"
)

const (
	// DefaultDisplayLimit caps the rendered list; the true count is still
	// reported.
	DefaultDisplayLimit = 100

	// SelectionAltitudeKm is the camera altitude when framing a selection.
	SelectionAltitudeKm = 5000

	// FlyDuration is the camera flight time when framing a selection.
	FlyDuration = 2 * time.Second

	// EmptyListNotice replaces the list when nothing matches.
	EmptyListNotice = "No satellites found"

	// materializeCheckpoint is how many proxies are created between
	// progress reports.
	materializeCheckpoint = 100
)

// ErrUnknownSatellite is returned when a selection names no catalog record.
var ErrUnknownSatellite = errors.New("unknown satellite")

// Renderer is the rendering collaborator. scene.Scene satisfies it.
type Renderer interface {
	CreateProxy(id, color string) bool
	SetVisible(id string, visible bool)
	SetEmphasis(id string, level scene.Emphasis, label string)
	Pick(pt scene.Point) (string, bool)
	FrameCamera(target transform.Geodetic, d time.Duration)
	// Now is the renderer's simulated time; every position shown is
	// resolved at it.
	Now() time.Time
}

// PositionResolver computes fixes. propagation.Resolver satisfies it.
type PositionResolver interface {
	Resolve(m propagation.OrbitalModel, t time.Time) propagation.Fix
}

// Config holds view configuration loaded from environment variables.
type Config struct {
	DisplayLimit int // Max list entries (default: 100)
}

// Entry is one row of the satellite list. Altitude and velocity are nil
// when the satellite has no fix.
type Entry struct {
	Name        string   `json:"name"`
	Category    string   `json:"category"`
	Color       string   `json:"color"`
	AltitudeKm  *float64 `json:"altitude_km"`
	VelocityKmh *float64 `json:"velocity_kmh"`
	Selected    bool     `json:"selected"`
}

// List is one recomputation of the satellite list.
type List struct {
	SearchTerm string  `json:"search_term"`
	Entries    []Entry `json:"entries"`
	Total      int     `json:"total"`            // every match, not just the shown entries
	Notice     string  `json:"notice,omitempty"` // truncation or empty-result message
}

// Position is a resolved geodetic position with display rounding applied.
type Position struct {
	LatitudeDeg  float64 `json:"latitude_deg"`
	LongitudeDeg float64 `json:"longitude_deg"`
	AltitudeKm   float64 `json:"altitude_km"`
	VelocityKmh  float64 `json:"velocity_kmh"`
}

// Details is the selected satellite's panel. Position is nil when the last
// resolution produced no fix.
type Details struct {
	Name      string    `json:"name"`
	Category  string    `json:"category"`
	Color     string    `json:"color"`
	Position  *Position `json:"position"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Stats are the header counters.
type Stats struct {
	Total      int `json:"total"`
	Active     int `json:"active"`
	Visible    int `json:"visible"` // matches of the current search in active categories
	Categories int `json:"categories"`
}

// CategoryEntry is one row of the category filter panel and legend.
type CategoryEntry struct {
	Name   string `json:"name"`
	Color  string `json:"color"`
	Count  int    `json:"count"`
	Active bool   `json:"active"`
}

// Sync reconciles catalog state with the renderer and the list. Its methods
// are serialized, so interleaved UI events see a consistent view.
type Sync struct {
	mu           sync.Mutex
	selected     string // record name; empty when nothing is selected
	searchTerm   string
	displayLimit int

	catalog  *catalog.Catalog
	resolver PositionResolver
	renderer Renderer
	logger   *slog.Logger
}

func New(cat *catalog.Catalog, resolver PositionResolver, renderer Renderer, config Config, logger *slog.Logger) *Sync {
	if config.DisplayLimit <= 0 {
		config.DisplayLimit = DefaultDisplayLimit
	}
	return &Sync{
		displayLimit: config.DisplayLimit,
		catalog:      cat,
		resolver:     resolver,
		renderer:     renderer,
		logger:       logger,
	}
}

// DisplayLimit is the list cap in effect.
func (v *Sync) DisplayLimit() int { return v.displayLimit }

// Materialize creates one proxy per catalog record, keyed by name; when
// names repeat the first record keeps the proxy. progress, if set, is called
// every 100 records and once at the end with (done, total).
func (v *Sync) Materialize(progress func(done, total int)) int {
	v.mu.Lock()
	defer v.mu.Unlock()

	records := v.catalog.Records()
	created := 0
	for i, r := range records {
		if v.renderer.CreateProxy(r.Name, r.Color) {
			created++
			if !v.catalog.IsActive(r.Category) {
				v.renderer.SetVisible(r.Name, false)
			}
		}
		if progress != nil && (i+1)%materializeCheckpoint == 0 {
			progress(i+1, len(records))
		}
	}
	if progress != nil {
		progress(len(records), len(records))
	}

	if dup := len(records) - created; dup > 0 {
		v.logger.Warn("records share a name with an earlier record; no separate proxy", "count", dup)
	}
	v.logger.Info("proxies materialized", "records", len(records), "proxies", created)
	return created
}

// SetSearch replaces the search term and returns the recomputed list.
func (v *Sync) SetSearch(term string) List {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.searchTerm = strings.TrimSpace(term)
	return v.listLocked()
}

// List recomputes the list from the catalog, the active categories and the
// search term.
func (v *Sync) List() List {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.listLocked()
}

func (v *Sync) listLocked() List {
	res := v.catalog.Filter(v.searchTerm, v.displayLimit)
	t := v.renderer.Now()

	list := List{SearchTerm: v.searchTerm, Total: res.Total, Entries: make([]Entry, 0, len(res.Records))}
	for _, r := range res.Records {
		e := Entry{Name: r.Name, Category: r.Category, Color: r.Color, Selected: r.Name == v.selected}
		if fix := v.resolver.Resolve(r.Model, t); fix.OK() {
			alt, vel := round(fix.AltKm, 2), round(fix.SpeedKmh, 2)
			e.AltitudeKm, e.VelocityKmh = &alt, &vel
		}
		list.Entries = append(list.Entries, e)
	}

	switch {
	case res.Total == 0:
		list.Notice = EmptyListNotice
	case res.Truncated():
		list.Notice = fmt.Sprintf("Showing %d of %d satellites. Use search to find specific satellites.", len(res.Records), res.Total)
	}
	return list
}

// ToggleCategory flips a category and shows or hides every member's proxy to
// match. Unknown names return catalog.ErrUnknownCategory and change nothing.
func (v *Sync) ToggleCategory(name string) (Stats, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	active, err := v.catalog.Toggle(name)
	if err != nil {
		return v.statsLocked(), err
	}

	cat, _ := v.catalog.Category(name)
	for _, r := range cat.Members {
		v.renderer.SetVisible(r.Name, active)
	}
	v.logger.Info("category toggled", "category", name, "active", active, "members", cat.Count())
	return v.statsLocked(), nil
}

// Select makes name the selection: the previous proxy loses its emphasis,
// the new one gains it, and the camera frames the freshly resolved
// position. The search term is not touched.
func (v *Sync) Select(name string) (Details, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	r, ok := v.catalog.Lookup(name)
	if !ok {
		return Details{}, fmt.Errorf("%w: %q", ErrUnknownSatellite, name)
	}
	return v.selectLocked(r), nil
}

func (v *Sync) selectLocked(r tle.Record) Details {
	if v.selected != "" && v.selected != r.Name {
		v.renderer.SetEmphasis(v.selected, scene.EmphasisNone, "")
	}
	v.selected = r.Name
	v.renderer.SetEmphasis(r.Name, scene.EmphasisSelected, r.Name)

	d := v.detailsLocked(r)
	if d.Position != nil {
		v.renderer.FrameCamera(transform.Geodetic{
			LonDeg: d.Position.LongitudeDeg,
			LatDeg: d.Position.LatitudeDeg,
			AltKm:  SelectionAltitudeKm,
		}, FlyDuration)
	}
	return d
}

func (v *Sync) detailsLocked(r tle.Record) Details {
	t := v.renderer.Now()
	d := Details{Name: r.Name, Category: r.Category, Color: r.Color, UpdatedAt: t}
	if fix := v.resolver.Resolve(r.Model, t); fix.OK() {
		d.Position = &Position{
			LatitudeDeg:  round(fix.LatDeg, 4),
			LongitudeDeg: round(fix.LonDeg, 4),
			AltitudeKm:   round(fix.AltKm, 2),
			VelocityKmh:  round(fix.SpeedKmh, 2),
		}
	}
	return d
}

// Selected returns the current selection's details without moving the
// camera.
func (v *Sync) Selected() (Details, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.selected == "" {
		return Details{}, false
	}
	r, ok := v.catalog.Lookup(v.selected)
	if !ok {
		return Details{}, false
	}
	return v.detailsLocked(r), true
}

// Deselect clears the selection and reverts its proxy's emphasis. It is a
// no-op when nothing is selected.
func (v *Sync) Deselect() {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.selected == "" {
		return
	}
	v.renderer.SetEmphasis(v.selected, scene.EmphasisNone, "")
	v.selected = ""
}

// Pick selects the proxy under pt. A miss changes nothing.
func (v *Sync) Pick(pt scene.Point) (Details, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()

	id, ok := v.renderer.Pick(pt)
	if !ok {
		return Details{}, false
	}
	r, ok := v.catalog.Lookup(id)
	if !ok {
		return Details{}, false
	}
	return v.selectLocked(r), true
}

// Refresh reapplies the current selection so its details and camera follow
// the satellite. It does nothing without a selection.
func (v *Sync) Refresh() (Details, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.selected == "" {
		return Details{}, false
	}
	r, ok := v.catalog.Lookup(v.selected)
	if !ok {
		return Details{}, false
	}
	return v.selectLocked(r), true
}

// Stats returns the header counters and publishes them as metrics.
func (v *Sync) Stats() Stats {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.statsLocked()
}

func (v *Sync) statsLocked() Stats {
	s := Stats{
		Total:      v.catalog.Total(),
		Active:     v.catalog.ActiveCount(),
		Visible:    v.catalog.Filter(v.searchTerm, 1).Total,
		Categories: len(v.catalog.Categories()),
	}
	metrics.SetCatalog(s.Total, s.Active, s.Visible)
	return s
}

// Categories lists every category in ingestion order.
func (v *Sync) Categories() []CategoryEntry {
	cats := v.catalog.Categories()
	out := make([]CategoryEntry, len(cats))
	for i, c := range cats {
		out[i] = CategoryEntry{Name: c.Name, Color: c.Color, Count: c.Count(), Active: c.Active}
	}
	return out
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
