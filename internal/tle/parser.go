package tle

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/anldrms/satellite-tracker-pro/internal/metrics"
	"github.com/anldrms/satellite-tracker-pro/internal/propagation"
)

// ElementParser builds an orbital model from a TLE pair. propagation.Engine
// satisfies it.
type ElementParser interface {
	ParseElements(line1, line2 string) (propagation.OrbitalModel, error)
}

// maxLineLength bounds a single feed line; real TLE lines are 69 columns and
// name lines 24, so anything near this is not element data.
const maxLineLength = 64 * 1024

// ParseGroup reads 3-line element sets (name, line 1, line 2) for one group.
//
// The text is consumed in strict, non-overlapping groups of three lines after
// trimming the whole feed. A group with an empty line or elements the parser
// rejects is skipped without counting toward spec.Limit. A trailing group of
// fewer than three lines is dropped. Parsing stops once spec.Limit records have
// been accepted (when Limit > 0). Records come back in feed order.
func ParseGroup(r io.Reader, spec GroupSpec, parser ElementParser, logger *slog.Logger) ([]Record, ParseStats, error) {
	lines, err := readLines(r)
	if err != nil {
		return nil, ParseStats{}, err
	}

	var (
		records []Record
		stats   ParseStats
	)
	for i := 0; i < len(lines); i += 3 {
		if i+2 >= len(lines) {
			stats.Truncated = len(lines) - i
			logger.Warn("dropping truncated element set", "group", spec.Name, "line_index", i, "lines", stats.Truncated)
			break
		}
		if spec.Limit > 0 && len(records) >= spec.Limit {
			break
		}
		stats.Groups++

		name := strings.TrimSpace(lines[i])
		line1 := strings.TrimSpace(lines[i+1])
		line2 := strings.TrimSpace(lines[i+2])

		if name == "" || line1 == "" || line2 == "" {
			stats.Blank++
			logger.Warn("skipping element set with blank line", "group", spec.Name, "line_index", i, "name", name)
			continue
		}

		model, err := parser.ParseElements(line1, line2)
		if err != nil {
			stats.Rejected++
			logger.Warn("skipping malformed element set", "group", spec.Name, "name", name, "error", err)
			continue
		}

		records = append(records, Record{
			Name:          name,
			Line1:         line1,
			Line2:         line2,
			Model:         model,
			Category:      spec.Name,
			Color:         spec.Color,
			CatalogNumber: model.CatalogNumber(),
			Epoch:         model.Epoch(),
		})
	}

	stats.Accepted = len(records)
	metrics.RecordParse(spec.Name, stats.Accepted, stats.Blank+stats.Rejected)
	return records, stats, nil
}

// readLines splits the feed into lines with the leading and trailing blank
// lines of the whole text removed. Interior blank lines are kept; they belong
// to the group they fall in.
func readLines(r io.Reader) ([]string, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 4096), maxLineLength)

	var lines []string
	for scanner.Scan() {
		lines = append(lines, strings.TrimRight(scanner.Text(), "\r"))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading element sets: %w", err)
	}

	start := 0
	for start < len(lines) && strings.TrimSpace(lines[start]) == "" {
		start++
	}
	end := len(lines)
	for end > start && strings.TrimSpace(lines[end-1]) == "" {
		end--
	}
	return lines[start:end], nil
}
