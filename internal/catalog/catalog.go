// Package catalog holds the session's satellite records grouped into
// categories, and tracks which categories are active.
//
// A record is visible iff its owning category is active. Records are never
// removed at runtime except when a category of the same name is ingested
// again, which replaces the earlier members.
package catalog

import (
	"errors"
	"log/slog"
	"strings"
	"sync"

	"github.com/anldrms/satellite-tracker-pro/internal/propagation"
	"github.com/anldrms/satellite-tracker-pro/internal/tle"
)

// ErrUnknownCategory is returned when a toggle names a category that was
// never ingested. The catalog is left unchanged.
var ErrUnknownCategory = errors.New("unknown category")

// Category is a read-only view of one ingested group. Members must not be
// modified by callers.
type Category struct {
	Name    string
	Color   string
	Members []tle.Record
	Active  bool
}

// Count is the number of members, fixed at ingestion.
func (c Category) Count() int { return len(c.Members) }

type category struct {
	color   string
	members []tle.Record
	active  bool
}

// Catalog is safe for concurrent use.
type Catalog struct {
	mu         sync.RWMutex
	order      []string // category names in first-ingest order
	categories map[string]*category
	active     map[string]struct{}
	records    []tle.Record
	lowerNames []string       // parallel to records
	firstIndex map[string]int // record name -> index of first record with it

	logger *slog.Logger
}

func New(logger *slog.Logger) *Catalog {
	return &Catalog{
		categories: make(map[string]*category),
		active:     make(map[string]struct{}),
		firstIndex: make(map[string]int),
		logger:     logger,
	}
}

// Ingest registers a category with its members and marks it active. An
// empty members list still registers the category with a count of zero. A
// repeated name overwrites the earlier category: the category keeps its
// original position in Categories(), its new members are appended, and its
// old members are removed from the flattened record list. The browser
// version kept those old members in its list; removing them keeps the list
// consistent with the category counts, so the active count always matches
// the records a search can show.
func (c *Catalog) Ingest(name, color string, members []tle.Record) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.categories[name]; exists {
		c.logger.Warn("category ingested twice, replacing members", "category", name)
		c.removeMembersLocked(name)
	} else {
		c.order = append(c.order, name)
	}

	owned := make([]tle.Record, len(members))
	for i, r := range members {
		r.Category = name
		owned[i] = r
		c.appendRecordLocked(r)
	}
	c.categories[name] = &category{color: color, members: owned, active: true}
	c.active[name] = struct{}{}
}

func (c *Catalog) appendRecordLocked(r tle.Record) {
	if _, seen := c.firstIndex[r.Name]; !seen {
		c.firstIndex[r.Name] = len(c.records)
	}
	c.records = append(c.records, r)
	c.lowerNames = append(c.lowerNames, strings.ToLower(r.Name))
}

// removeMembersLocked rebuilds the flattened list without the named
// category's records. Fresh slices keep earlier Records() snapshots intact.
func (c *Catalog) removeMembersLocked(name string) {
	old := c.records
	c.records = make([]tle.Record, 0, len(old))
	c.lowerNames = make([]string, 0, len(old))
	c.firstIndex = make(map[string]int, len(old))
	for _, r := range old {
		if r.Category != name {
			c.appendRecordLocked(r)
		}
	}
}

// Toggle flips the named category's active flag and returns the new value.
// The category and the active set change together under one lock.
func (c *Catalog) Toggle(name string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cat, ok := c.categories[name]
	if !ok {
		return false, ErrUnknownCategory
	}
	cat.active = !cat.active
	if cat.active {
		c.active[name] = struct{}{}
	} else {
		delete(c.active, name)
	}
	return cat.active, nil
}

// ActiveCount sums member counts over active categories. It walks the active
// set only, so its cost does not grow with the catalog size.
func (c *Catalog) ActiveCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	n := 0
	for name := range c.active {
		n += len(c.categories[name].members)
	}
	return n
}

// Total is the number of records across all categories.
func (c *Catalog) Total() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.records)
}

// Records returns the flattened record list in ingestion order.
func (c *Catalog) Records() []tle.Record {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.records[:len(c.records):len(c.records)]
}

// Categories returns every category in first-ingest order.
func (c *Catalog) Categories() []Category {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]Category, 0, len(c.order))
	for _, name := range c.order {
		out = append(out, c.viewLocked(name))
	}
	return out
}

func (c *Catalog) Category(name string) (Category, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if _, ok := c.categories[name]; !ok {
		return Category{}, false
	}
	return c.viewLocked(name), true
}

func (c *Catalog) viewLocked(name string) Category {
	cat := c.categories[name]
	return Category{Name: name, Color: cat.color, Members: cat.members, Active: cat.active}
}

// IsActive reports whether the named category exists and is active.
func (c *Catalog) IsActive(name string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.active[name]
	return ok
}

// Lookup returns the first record with the given name.
func (c *Catalog) Lookup(name string) (tle.Record, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	i, ok := c.firstIndex[name]
	if !ok {
		return tle.Record{}, false
	}
	return c.records[i], true
}

// Model satisfies propagation.ModelLookup, keyed by record name.
func (c *Catalog) Model(name string) (propagation.OrbitalModel, bool) {
	r, ok := c.Lookup(name)
	if !ok || r.Model == nil {
		return nil, false
	}
	return r.Model, true
}

// FilterResult is one recomputation of the searchable list.
type FilterResult struct {
	Records []tle.Record // at most the requested cap, in ingestion order
	Total   int          // true number of matches
}

// Truncated reports whether matches were left out of Records.
func (f FilterResult) Truncated() bool { return f.Total > len(f.Records) }

// Filter returns records in active categories whose name contains term,
// ignoring case. At most limit records are returned (limit <= 0 means no
// cap); Total always counts every match.
func (c *Catalog) Filter(term string, limit int) FilterResult {
	term = strings.ToLower(term)

	c.mu.RLock()
	defer c.mu.RUnlock()

	var res FilterResult
	for i, r := range c.records {
		if _, ok := c.active[r.Category]; !ok {
			continue
		}
		if term != "" && !strings.Contains(c.lowerNames[i], term) {
			continue
		}
		res.Total++
		if limit <= 0 || len(res.Records) < limit {
			res.Records = append(res.Records, r)
		}
	}
	return res
}
