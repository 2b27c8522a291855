package propagation

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	satellite "github.com/joshuaferrara/go-satellite"

	"github.com/anldrms/satellite-tracker-pro/internal/transform"
)

// SGP4 library choice: github.com/joshuaferrara/go-satellite
//
// Pure Go, explicit TEME output, in use since 2016. Two caveats shape this file:
// Propagate takes the Satellite by value so SGP4 error codes never reach the
// caller (failures are detected from NaN/Inf output and implausible radii), and
// TLEToSat calls log.Fatal on unparseable numeric fields, so every line is
// validated here before the library sees it.

// SGP4Engine is the production Engine backed by go-satellite.
type SGP4Engine struct{}

// NewSGP4Engine returns an Engine using WGS-84 gravity constants.
func NewSGP4Engine() *SGP4Engine {
	return &SGP4Engine{}
}

// sgp4Model is the OrbitalModel produced by SGP4Engine. Immutable; safe to
// share between goroutines because go-satellite copies it on every call.
type sgp4Model struct {
	sat     satellite.Satellite
	catalog int
	epoch   time.Time
}

func (m *sgp4Model) CatalogNumber() int { return m.catalog }
func (m *sgp4Model) Epoch() time.Time   { return m.epoch }

// ParseElements validates a TLE pair and initializes an SGP4 model from it.
func (e *SGP4Engine) ParseElements(line1, line2 string) (model OrbitalModel, err error) {
	line1 = strings.TrimSpace(line1)
	line2 = strings.TrimSpace(line2)

	if err := ValidateLines(line1, line2); err != nil {
		return nil, err
	}

	catalog, _ := strconv.Atoi(strings.TrimSpace(line1[2:7]))
	epoch, err := ParseEpoch(strings.TrimSpace(line1[18:32]))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrElements, err)
	}

	defer func() {
		if r := recover(); r != nil {
			model = nil
			err = fmt.Errorf("%w: sgp4 init panicked for %d: %v", ErrElements, catalog, r)
		}
	}()

	sat := satellite.TLEToSat(line1, line2, satellite.GravityWGS84)
	if sat.Error != 0 {
		return nil, fmt.Errorf("%w: sgp4 init failed for %d: code=%d %s", ErrElements, catalog, sat.Error, sat.ErrorStr)
	}
	return &sgp4Model{sat: sat, catalog: catalog, epoch: epoch}, nil
}

// Propagate advances the model to t and returns the TEME state (km, km/s).
func (e *SGP4Engine) Propagate(m OrbitalModel, t time.Time) (state transform.PositionTEME, err error) {
	sm, ok := m.(*sgp4Model)
	if !ok || sm == nil {
		return transform.PositionTEME{}, fmt.Errorf("%w: model %T not produced by sgp4 engine", ErrPropagation, m)
	}

	defer func() {
		if r := recover(); r != nil {
			state = transform.PositionTEME{}
			err = fmt.Errorf("%w: sgp4 panicked for %d: %v", ErrPropagation, sm.catalog, r)
		}
	}()

	t = t.UTC()
	pos, vel := satellite.Propagate(sm.sat, t.Year(), int(t.Month()), t.Day(), t.Hour(), t.Minute(), t.Second())

	if !finite(pos.X, pos.Y, pos.Z, vel.X, vel.Y, vel.Z) {
		return transform.PositionTEME{}, fmt.Errorf("%w: output is NaN/Inf for %d", ErrPropagation, sm.catalog)
	}

	state = transform.PositionTEME{X: pos.X, Y: pos.Y, Z: pos.Z, VX: vel.X, VY: vel.Y, VZ: vel.Z}
	if ecef := transform.TEMEToECEF(state, t); !transform.ValidateECEF(ecef) {
		r := math.Sqrt(ecef.X*ecef.X+ecef.Y*ecef.Y+ecef.Z*ecef.Z) / 1000
		return transform.PositionTEME{}, fmt.Errorf("%w: unreasonable radius %.1f km for %d", ErrPropagation, r, sm.catalog)
	}
	return state, nil
}

// ToGeodetic converts a TEME state at t to WGS-84 geodetic coordinates.
func (e *SGP4Engine) ToGeodetic(state transform.PositionTEME, t time.Time) transform.Geodetic {
	return transform.TEMEToGeodetic(state, t)
}

// ValidateLines performs the fixed-format checks go-satellite relies on:
// length, line numbers, matching catalog numbers, numeric fields and the
// modulo-10 checksum in column 69.
func ValidateLines(line1, line2 string) error {
	if len(line1) != 69 {
		return fmt.Errorf("%w: line1 length %d, expected 69", ErrElements, len(line1))
	}
	if len(line2) != 69 {
		return fmt.Errorf("%w: line2 length %d, expected 69", ErrElements, len(line2))
	}
	if line1[0] != '1' || line1[1] != ' ' {
		return fmt.Errorf("%w: line1 must start with \"1 \"", ErrElements)
	}
	if line2[0] != '2' || line2[1] != ' ' {
		return fmt.Errorf("%w: line2 must start with \"2 \"", ErrElements)
	}
	if strings.TrimSpace(line1[2:7]) != strings.TrimSpace(line2[2:7]) {
		return fmt.Errorf("%w: catalog numbers differ between lines", ErrElements)
	}
	if _, err := strconv.Atoi(strings.TrimSpace(line1[2:7])); err != nil {
		return fmt.Errorf("%w: invalid catalog number %q", ErrElements, line1[2:7])
	}

	for _, line := range [2]string{line1, line2} {
		want := int(line[68] - '0')
		if got := Checksum(line); got != want {
			return fmt.Errorf("%w: line %c checksum %d, expected %d", ErrElements, line[0], got, want)
		}
	}

	floats := []struct {
		name string
		val  string
	}{
		{"epoch", line1[18:32]},
		{"mean motion derivative", line1[33:43]},
		{"inclination", line2[8:16]},
		{"right ascension", line2[17:25]},
		{"eccentricity", "." + line2[26:33]},
		{"argument of perigee", line2[34:42]},
		{"mean anomaly", line2[43:51]},
		{"mean motion", line2[52:63]},
	}
	for _, f := range floats {
		if _, err := strconv.ParseFloat(strings.TrimSpace(f.val), 64); err != nil {
			return fmt.Errorf("%w: invalid %s %q", ErrElements, f.name, f.val)
		}
	}

	for _, field := range [2]string{line1[44:52], line1[53:61]} {
		if !validExponent(field) {
			return fmt.Errorf("%w: invalid exponent field %q", ErrElements, field)
		}
	}
	return nil
}

// Checksum returns the modulo-10 sum of the first 68 columns, where digits
// count their value and minus signs count one.
func Checksum(line string) int {
	sum := 0
	for i := 0; i < 68 && i < len(line); i++ {
		switch c := line[i]; {
		case c >= '0' && c <= '9':
			sum += int(c - '0')
		case c == '-':
			sum++
		}
	}
	return sum % 10
}

// validExponent accepts the TLE implied-decimal form " 12345-3", "-11606-4",
// "+00000+0" or "00000-0".
func validExponent(field string) bool {
	s := strings.TrimSpace(field)
	if s == "" {
		return false
	}
	if s[0] == '+' || s[0] == '-' {
		s = s[1:]
	}
	if len(s) < 3 {
		return false
	}
	mantissa, sign, exp := s[:len(s)-2], s[len(s)-2], s[len(s)-1]
	if sign != '+' && sign != '-' {
		return false
	}
	if exp < '0' || exp > '9' {
		return false
	}
	for i := 0; i < len(mantissa); i++ {
		if mantissa[i] < '0' || mantissa[i] > '9' {
			return false
		}
	}
	return true
}

// ParseEpoch converts a TLE epoch in YYDDD.DDDDDDDD format to time.Time.
// Years 57-99 map to the 1900s, 00-56 to the 2000s.
func ParseEpoch(s string) (time.Time, error) {
	if len(s) < 5 {
		return time.Time{}, fmt.Errorf("epoch string too short: %q", s)
	}

	year, err := strconv.Atoi(s[:2])
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid epoch year %q: %w", s[:2], err)
	}
	if year >= 57 {
		year += 1900
	} else {
		year += 2000
	}

	dayOfYear, err := strconv.ParseFloat(s[2:], 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid epoch day %q: %w", s[2:], err)
	}

	// Day 1 is January 1.
	start := time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC)
	return start.Add(time.Duration((dayOfYear - 1) * float64(24*time.Hour))), nil
}
