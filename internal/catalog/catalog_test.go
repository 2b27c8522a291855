package catalog

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/anldrms/satellite-tracker-pro/internal/propagation"
	"github.com/anldrms/satellite-tracker-pro/internal/tle"
)

var testLogger = slog.New(slog.NewJSONHandler(io.Discard, nil))

func records(category string, names ...string) []tle.Record {
	out := make([]tle.Record, len(names))
	for i, n := range names {
		out[i] = tle.Record{Name: n, Category: category, Color: "#fff"}
	}
	return out
}

func seeded() *Catalog {
	c := New(testLogger)
	c.Ingest("Space Stations", "#00ff00", records("Space Stations", "ISS (ZARYA)", "CSS (TIANHE)"))
	c.Ingest("Starlink", "#ffffff", records("Starlink", "STARLINK-1007", "STARLINK-1008", "STARLINK-1009"))
	c.Ingest("GPS", "#ffff00", records("GPS", "GPS BIIR-2", "GPS BIIR-13"))
	return c
}

func sumActive(c *Catalog) int {
	n := 0
	for _, cat := range c.Categories() {
		if cat.Active {
			n += cat.Count()
		}
	}
	return n
}

func TestIngest(t *testing.T) {
	c := seeded()

	if got := c.Total(); got != 7 {
		t.Errorf("Total = %d, want 7", got)
	}
	if got := c.ActiveCount(); got != 7 {
		t.Errorf("ActiveCount = %d, want 7", got)
	}

	cats := c.Categories()
	want := []string{"Space Stations", "Starlink", "GPS"}
	for i, cat := range cats {
		if cat.Name != want[i] {
			t.Errorf("Categories()[%d] = %q, want %q", i, cat.Name, want[i])
		}
		if !cat.Active {
			t.Errorf("category %q not active after ingest", cat.Name)
		}
	}

	all := c.Records()
	if all[0].Name != "ISS (ZARYA)" || all[6].Name != "GPS BIIR-13" {
		t.Errorf("record order = %q..%q", all[0].Name, all[6].Name)
	}
}

func TestToggleInvolutive(t *testing.T) {
	c := seeded()
	before := c.Records()

	active, err := c.Toggle("Starlink")
	if err != nil || active {
		t.Fatalf("Toggle = %v, %v; want false, nil", active, err)
	}
	if c.IsActive("Starlink") {
		t.Error("Starlink still in active set")
	}
	if got, want := c.ActiveCount(), sumActive(c); got != want || got != 4 {
		t.Errorf("ActiveCount = %d, want %d (4)", got, want)
	}

	active, err = c.Toggle("Starlink")
	if err != nil || !active {
		t.Fatalf("second Toggle = %v, %v; want true, nil", active, err)
	}
	if !c.IsActive("Starlink") || c.ActiveCount() != 7 {
		t.Errorf("state not restored: active=%v count=%d", c.IsActive("Starlink"), c.ActiveCount())
	}
	for _, name := range []string{"Space Stations", "GPS"} {
		if !c.IsActive(name) {
			t.Errorf("unrelated category %q changed", name)
		}
	}

	after := c.Records()
	if len(after) != len(before) {
		t.Fatalf("record count changed: %d -> %d", len(before), len(after))
	}
	for i := range before {
		if before[i].Name != after[i].Name {
			t.Errorf("record %d changed: %q -> %q", i, before[i].Name, after[i].Name)
		}
	}
}

func TestToggleUnknown(t *testing.T) {
	c := seeded()

	_, err := c.Toggle("Weather")
	if !errors.Is(err, ErrUnknownCategory) {
		t.Errorf("err = %v, want ErrUnknownCategory", err)
	}
	if c.ActiveCount() != 7 {
		t.Errorf("unknown toggle changed ActiveCount to %d", c.ActiveCount())
	}
	if c.IsActive("Weather") {
		t.Error("unknown category reported active")
	}
}

// TestActiveCountTracksEveryToggle walks all toggle combinations.
func TestActiveCountTracksEveryToggle(t *testing.T) {
	c := seeded()
	names := []string{"Space Stations", "Starlink", "GPS", "Starlink", "GPS", "Space Stations", "GPS"}
	for _, n := range names {
		if _, err := c.Toggle(n); err != nil {
			t.Fatal(err)
		}
		if got, want := c.ActiveCount(), sumActive(c); got != want {
			t.Fatalf("after toggling %q: ActiveCount = %d, want %d", n, got, want)
		}
	}
}

func TestIngestEmptyGroupRegistersCategory(t *testing.T) {
	c := New(testLogger)
	c.Ingest("Weather", "#00ff88", nil)

	cat, ok := c.Category("Weather")
	if !ok || cat.Count() != 0 || !cat.Active {
		t.Errorf("Category = %+v, %v; want empty and active", cat, ok)
	}
	if got := len(c.Categories()); got != 1 {
		t.Errorf("len(Categories) = %d, want 1", got)
	}
	if c.Total() != 0 || c.ActiveCount() != 0 {
		t.Errorf("Total/ActiveCount = %d/%d, want 0/0", c.Total(), c.ActiveCount())
	}
	if active, err := c.Toggle("Weather"); err != nil || active {
		t.Errorf("Toggle = %v, %v; want false, nil", active, err)
	}
}

func TestIngestDuplicateNameOverwrites(t *testing.T) {
	c := seeded()
	c.Toggle("Starlink")

	c.Ingest("Starlink", "#123456", records("Starlink", "STARLINK-2000"))

	cat, ok := c.Category("Starlink")
	if !ok {
		t.Fatal("Starlink missing")
	}
	if cat.Count() != 1 || cat.Color != "#123456" || !cat.Active {
		t.Errorf("Starlink = count %d color %s active %v, want 1 #123456 true", cat.Count(), cat.Color, cat.Active)
	}
	if got := c.Total(); got != 5 {
		t.Errorf("Total = %d, want 5", got)
	}
	if _, ok := c.Lookup("STARLINK-1007"); ok {
		t.Error("overwritten member still resolvable")
	}
	if order := c.Categories(); order[1].Name != "Starlink" {
		t.Errorf("overwritten category moved to position of %q", order[1].Name)
	}
	if c.ActiveCount() != 5 {
		t.Errorf("ActiveCount = %d, want 5", c.ActiveCount())
	}
}

func TestLookupFirstNameWins(t *testing.T) {
	c := New(testLogger)
	c.Ingest("A", "#f00", records("A", "DUP", "X"))
	c.Ingest("B", "#0f0", records("B", "DUP"))

	r, ok := c.Lookup("DUP")
	if !ok || r.Category != "A" {
		t.Errorf("Lookup(DUP) = %+v, %v; want category A", r, ok)
	}
	if _, ok := c.Lookup("missing"); ok {
		t.Error("Lookup(missing) found a record")
	}
	if _, ok := c.Model("X"); ok {
		t.Error("Model returned for record without orbital model")
	}
}

func TestFilter(t *testing.T) {
	tests := []struct {
		name      string
		term      string
		toggle    string
		limit     int
		wantNames []string
		wantTotal int
	}{
		{"empty term", "", "", 0, nil, 7},
		{"case-insensitive substring", "zar", "", 0, []string{"ISS (ZARYA)"}, 1},
		{"upper term", "STARLINK", "", 0, []string{"STARLINK-1007", "STARLINK-1008", "STARLINK-1009"}, 3},
		{"inactive category hidden", "starlink", "Starlink", 0, nil, 0},
		{"cap keeps true total", "starlink", "", 2, []string{"STARLINK-1007", "STARLINK-1008"}, 3},
		{"no match", "hubble", "", 0, nil, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := seeded()
			if tt.toggle != "" {
				c.Toggle(tt.toggle)
			}
			res := c.Filter(tt.term, tt.limit)
			if res.Total != tt.wantTotal {
				t.Errorf("Total = %d, want %d", res.Total, tt.wantTotal)
			}
			if tt.wantNames != nil {
				var got []string
				for _, r := range res.Records {
					got = append(got, r.Name)
				}
				if strings.Join(got, ",") != strings.Join(tt.wantNames, ",") {
					t.Errorf("names = %v, want %v", got, tt.wantNames)
				}
			}
			if res.Truncated() != (tt.limit > 0 && tt.wantTotal > tt.limit) {
				t.Errorf("Truncated = %v", res.Truncated())
			}
		})
	}
}

func TestFilterLargeCatalog(t *testing.T) {
	c := New(testLogger)
	for g := 0; g < 5; g++ {
		names := make([]string, 500)
		for i := range names {
			names[i] = fmt.Sprintf("SAT-%d-%03d", g, i)
		}
		name := fmt.Sprintf("G%d", g)
		c.Ingest(name, "#fff", records(name, names...))
	}

	res := c.Filter("", 100)
	if res.Total != 2500 || len(res.Records) != 100 || !res.Truncated() {
		t.Errorf("Filter = %d shown of %d, want 100 of 2500", len(res.Records), res.Total)
	}
}

// End-to-end: group A has three valid sets; group B has five raw sets with a
// limit of two and a malformed set first.
func TestIngestParsedGroups(t *testing.T) {
	engine := propagation.NewSGP4Engine()

	a := strings.Join([]string{
		"ISS (ZARYA)", issLine1, issLine2,
		"STARLINK-1007", starlinkLine1, starlinkLine2,
		"GPS BIIR-13", gpsLine1, gpsLine2,
	}, "\n")
	b := strings.Join([]string{
		"BROKEN", issLine1[:68] + "0", issLine2,
		"B-1", starlinkLine1, starlinkLine2,
		"B-2", gpsLine1, gpsLine2,
		"B-3", issLine1, issLine2,
		"B-4", starlinkLine1, starlinkLine2,
	}, "\n")

	c := New(testLogger)
	for _, g := range []struct {
		spec tle.GroupSpec
		text string
	}{
		{tle.GroupSpec{Name: "A", Color: "#f00"}, a},
		{tle.GroupSpec{Name: "B", Color: "#0f0", Limit: 2}, b},
	} {
		recs, _, err := tle.ParseGroup(strings.NewReader(g.text), g.spec, engine, testLogger)
		if err != nil {
			t.Fatal(err)
		}
		c.Ingest(g.spec.Name, g.spec.Color, recs)
	}

	catA, _ := c.Category("A")
	catB, _ := c.Category("B")
	if catA.Count() != 3 {
		t.Errorf("A count = %d, want 3", catA.Count())
	}
	if catB.Count() != 2 || catB.Members[0].Name != "B-1" || catB.Members[1].Name != "B-2" {
		t.Errorf("B members = %v, want [B-1 B-2]", catB.Members)
	}
	if c.Total() != 5 || c.ActiveCount() != 5 {
		t.Errorf("Total/ActiveCount = %d/%d, want 5/5", c.Total(), c.ActiveCount())
	}
	if !catA.Active || !catB.Active {
		t.Error("ingested categories should start active")
	}
	if _, ok := c.Model("B-2"); !ok {
		t.Error("B-2 has no orbital model")
	}
}

const (
	issLine1      = "1 25544U 98067A   24100.50000000  .00016717  00000-0  10270-3 0  9009"
	issLine2      = "2 25544  51.6400 100.0000 0001000   0.0000   0.0000 15.50000000    01"
	starlinkLine1 = "1 44713U 19074A   24100.50000000  .00001000  00000-0  10000-4 0  9998"
	starlinkLine2 = "2 44713  53.0000 200.0000 0001500  90.0000 270.0000 15.06000000    07"
	gpsLine1      = "1 28474U 04045A   24100.50000000 -.00000012  00000-0  00000-0 0  9994"
	gpsLine2      = "2 28474  55.2000 120.0000 0150000 250.0000 110.0000  2.00560000    00"
)
