package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/anldrms/satellite-tracker-pro/internal/tle"
)

func celestrak(group string) string {
	return "https://celestrak.org/NORAD/elements/gp.php?GROUP=" + group + "&FORMAT=tle"
}

// defaultGroups is the built-in CelesTrak group list, in load order.
var defaultGroups = []tle.GroupSpec{
	{Name: "Starlink", Endpoint: celestrak("starlink"), Color: "#00d9ff"},
	{Name: "Space Stations", Endpoint: celestrak("stations"), Color: "#ff0044"},
	{Name: "Weather", Endpoint: celestrak("weather"), Color: "#00ff88"},
	{Name: "GPS Operational", Endpoint: celestrak("gps-ops"), Color: "#ffaa00"},
	{Name: "GLONASS", Endpoint: celestrak("glonass-ops"), Color: "#ff6600"},
	{Name: "Galileo", Endpoint: celestrak("galileo"), Color: "#aa00ff"},
	{Name: "Communications", Endpoint: celestrak("geo"), Color: "#00aaff", Limit: 50},
	{Name: "Earth Observation", Endpoint: celestrak("resource"), Color: "#88ff00", Limit: 30},
	{Name: "Science", Endpoint: celestrak("science"), Color: "#ff00ff", Limit: 30},
}

// loadGroups returns the groups from path, or the built-in list when path
// is empty. The file holds a JSON array of {name, url, color, limit}.
func loadGroups(path string) ([]tle.GroupSpec, error) {
	if path == "" {
		return append([]tle.GroupSpec(nil), defaultGroups...), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading groups file: %w", err)
	}
	var groups []tle.GroupSpec
	if err := json.Unmarshal(data, &groups); err != nil {
		return nil, fmt.Errorf("parsing groups file %s: %w", path, err)
	}
	for i, g := range groups {
		if g.Name == "" || g.Endpoint == "" {
			return nil, fmt.Errorf("groups file %s: entry %d needs name and url", path, i)
		}
		if g.Limit < 0 {
			return nil, fmt.Errorf("groups file %s: entry %q has negative limit", path, g.Name)
		}
	}
	return groups, nil
}
