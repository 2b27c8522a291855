package tle

import (
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/anldrms/satellite-tracker-pro/internal/propagation"
)

var testLogger = slog.New(slog.NewJSONHandler(io.Discard, nil))

// Element sets with valid checksums (epoch 2024-04-09 12:00 UTC).
var (
	issSet = [3]string{
		"ISS (ZARYA)",
		"1 25544U 98067A   24100.50000000  .00016717  00000-0  10270-3 0  9009",
		"2 25544  51.6400 100.0000 0001000   0.0000   0.0000 15.50000000    01",
	}
	starlink1007 = [3]string{
		"STARLINK-1007",
		"1 44713U 19074A   24100.50000000  .00001000  00000-0  10000-4 0  9998",
		"2 44713  53.0000 200.0000 0001500  90.0000 270.0000 15.06000000    07",
	}
	starlink1008 = [3]string{
		"STARLINK-1008",
		"1 44714U 19074B   24100.50000000  .00001000  00000-0  10000-4 0  9999",
		"2 44714  53.0000 210.0000 0001500  90.0000 250.0000 15.06000000    07",
	}
	starlink1009 = [3]string{
		"STARLINK-1009",
		"1 44715U 19074C   24100.50000000  .00001000  00000-0  10000-4 0  9990",
		"2 44715  53.0000 220.0000 0001500  90.0000 230.0000 15.06000000    07",
	}
	gpsSet = [3]string{
		"GPS BIIR-13 (PRN 02)",
		"1 28474U 04045A   24100.50000000 -.00000012  00000-0  00000-0 0  9994",
		"2 28474  55.2000 120.0000 0150000 250.0000 110.0000  2.00560000    00",
	}
	// Checksum digit altered: the propagator rejects it.
	corruptSet = [3]string{
		"CORRUPT-1",
		"1 25544U 98067A   24100.50000000  .00016717  00000-0  10270-3 0  9003",
		"2 25544  51.6400 100.0000 0001000   0.0000   0.0000 15.50000000    01",
	}
)

func feed(sets ...[3]string) string {
	var b strings.Builder
	for _, s := range sets {
		b.WriteString(s[0] + "\n" + s[1] + "\n" + s[2] + "\n")
	}
	return b.String()
}

func names(records []Record) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.Name
	}
	return out
}

func parse(t *testing.T, text string, limit int) ([]Record, ParseStats) {
	t.Helper()
	spec := GroupSpec{Name: "Test", Color: "#00d9ff", Limit: limit}
	records, stats, err := ParseGroup(strings.NewReader(text), spec, propagation.NewSGP4Engine(), testLogger)
	if err != nil {
		t.Fatalf("ParseGroup error: %v", err)
	}
	return records, stats
}

// TestParseGroupAllValid verifies N well-formed groups yield N records in
// input order, each stamped with the group's category and color.
func TestParseGroupAllValid(t *testing.T) {
	records, stats := parse(t, feed(issSet, starlink1007, gpsSet, starlink1008), 0)

	want := []string{"ISS (ZARYA)", "STARLINK-1007", "GPS BIIR-13 (PRN 02)", "STARLINK-1008"}
	if got := names(records); strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("names = %v, want %v", got, want)
	}
	if stats.Accepted != 4 || stats.Groups != 4 {
		t.Errorf("stats = %+v, want 4 groups, 4 accepted", stats)
	}

	r := records[0]
	if r.Category != "Test" || r.Color != "#00d9ff" {
		t.Errorf("category/color = %q/%q, want Test/#00d9ff", r.Category, r.Color)
	}
	if r.CatalogNumber != 25544 {
		t.Errorf("CatalogNumber = %d, want 25544", r.CatalogNumber)
	}
	if r.Model == nil {
		t.Error("record has no orbital model")
	}
	if r.Line1 != issSet[1] || r.Line2 != issSet[2] {
		t.Error("element lines not preserved")
	}
}

// TestParseGroupBlankLineSkipsOnlyThatGroup verifies a group with any blank
// line is skipped and its neighbours are kept.
func TestParseGroupBlankLineSkipsOnlyThatGroup(t *testing.T) {
	tests := []struct {
		name  string
		blank int // which of the three lines of group 2 is blanked
	}{
		{"blank name", 0},
		{"blank line 1", 1},
		{"blank line 2", 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			broken := starlink1007
			broken[tt.blank] = "   "
			records, stats := parse(t, feed(issSet, broken, starlink1008), 0)

			want := []string{"ISS (ZARYA)", "STARLINK-1008"}
			if got := names(records); strings.Join(got, ",") != strings.Join(want, ",") {
				t.Errorf("names = %v, want %v", got, want)
			}
			if stats.Blank != 1 {
				t.Errorf("Blank = %d, want 1", stats.Blank)
			}
		})
	}
}

// TestParseGroupLimit verifies a limit L < N keeps the first L records.
func TestParseGroupLimit(t *testing.T) {
	records, _ := parse(t, feed(issSet, starlink1007, starlink1008, starlink1009, gpsSet), 2)

	want := []string{"ISS (ZARYA)", "STARLINK-1007"}
	if got := names(records); strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("names = %v, want %v", got, want)
	}
}

// TestParseGroupMalformedNotCountedAgainstLimit verifies a rejected element
// set inside the cap window does not consume a slot.
func TestParseGroupMalformedNotCountedAgainstLimit(t *testing.T) {
	records, stats := parse(t, feed(corruptSet, starlink1007, starlink1008, starlink1009), 2)

	want := []string{"STARLINK-1007", "STARLINK-1008"}
	if got := names(records); strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("names = %v, want %v", got, want)
	}
	if stats.Rejected != 1 {
		t.Errorf("Rejected = %d, want 1", stats.Rejected)
	}
}

// TestParseGroupTruncatedTail verifies a trailing partial group is dropped.
func TestParseGroupTruncatedTail(t *testing.T) {
	text := feed(issSet, starlink1007) + starlink1008[0] + "\n" + starlink1008[1] + "\n"
	records, stats := parse(t, text, 0)

	if len(records) != 2 {
		t.Errorf("got %d records, want 2", len(records))
	}
	if stats.Truncated != 2 {
		t.Errorf("Truncated = %d, want 2", stats.Truncated)
	}
}

// TestParseGroupWhitespace verifies CRLF line endings, surrounding blank
// lines and padded names are tolerated.
func TestParseGroupWhitespace(t *testing.T) {
	text := "\r\n\n" + strings.ReplaceAll(feed(issSet, starlink1007), "\n", "\r\n") + "\n\n  \n"
	text = strings.Replace(text, "ISS (ZARYA)", "ISS (ZARYA)            ", 1)

	records, stats := parse(t, text, 0)
	want := []string{"ISS (ZARYA)", "STARLINK-1007"}
	if got := names(records); strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("names = %v, want %v", got, want)
	}
	if stats.Truncated != 0 {
		t.Errorf("Truncated = %d, want 0", stats.Truncated)
	}
}

// TestParseGroupEmpty verifies empty and whitespace-only feeds give no records.
func TestParseGroupEmpty(t *testing.T) {
	for _, text := range []string{"", "\n\n", "No GP data found"} {
		records, _ := parse(t, text, 0)
		if len(records) != 0 {
			t.Errorf("feed %q: got %d records, want 0", text, len(records))
		}
	}
}
