package tle

import (
	"errors"
	"time"

	"github.com/anldrms/satellite-tracker-pro/internal/propagation"
)

// ErrFetch marks a group whose endpoint could not be read. The group
// contributes no records; ingestion of the other groups continues.
var ErrFetch = errors.New("element set fetch failed")

// GroupSpec describes one category feed known at startup.
type GroupSpec struct {
	Name     string `json:"name"`
	Endpoint string `json:"url"`
	Color    string `json:"color"`
	Limit    int    `json:"limit,omitempty"` // 0 means no cap
}

// Record is one satellite parsed from a group feed. Records are immutable
// once created; positions are derived from Model, never stored.
type Record struct {
	Name          string
	Line1         string
	Line2         string
	Model         propagation.OrbitalModel
	Category      string
	Color         string
	CatalogNumber int
	Epoch         time.Time
}

// ParseStats counts what happened to the 3-line groups of one feed.
type ParseStats struct {
	Groups    int // complete 3-line groups examined
	Accepted  int // records produced
	Blank     int // groups skipped for an empty line
	Rejected  int // groups whose elements failed model construction
	Truncated int // trailing lines that did not form a full group
}

// Result is the outcome of fetching and parsing one group.
type Result struct {
	Group    GroupSpec
	Records  []Record
	Stats    ParseStats
	Duration time.Duration
	Err      error
}
