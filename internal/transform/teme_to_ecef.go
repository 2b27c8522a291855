// Package transform converts SGP4 output into the frames the catalog reports.
//
// SGP4 yields TEME (True Equator Mean Equinox) state vectors. The detail panel,
// the satellite list and the scene all work in geodetic longitude, latitude and
// altitude, reached through ECEF with a GMST-only rotation (TEME -> PEF ≈ ECEF).
// Polar motion and the equation of the equinoxes are ignored; the error stays in
// the tens of meters, well below anything a globe view can show.
//
// Reference: Vallado, "Fundamentals of Astrodynamics and Applications", Ch. 3.
package transform

import (
	"math"
	"time"
)

// PositionTEME is a position and velocity in the TEME frame.
type PositionTEME struct {
	X, Y, Z    float64 // km
	VX, VY, VZ float64 // km/s
}

// Speed returns the magnitude of the TEME velocity in km/s.
func (p PositionTEME) Speed() float64 {
	return math.Sqrt(p.VX*p.VX + p.VY*p.VY + p.VZ*p.VZ)
}

// PositionECEF is a position and velocity in the ECEF frame.
type PositionECEF struct {
	X, Y, Z    float64 // meters
	VX, VY, VZ float64 // m/s
}

// TEMEToECEF transforms a TEME state (km, km/s) into ECEF (m, m/s) at t.
func TEMEToECEF(teme PositionTEME, t time.Time) PositionECEF {
	return TEMEToECEFWithGMST(teme, GMST(t))
}

// TEMEToECEFWithGMST transforms TEME to ECEF with a precomputed GMST angle in
// radians, so a frame of many objects at one instant computes GMST once.
//
//	r_ECEF = R3(θ) * r_TEME
//	v_ECEF = R3(θ) * v_TEME - ω × r_ECEF
func TEMEToECEFWithGMST(teme PositionTEME, gmst float64) PositionECEF {
	cosG := math.Cos(gmst)
	sinG := math.Sin(gmst)

	x := teme.X*cosG + teme.Y*sinG
	y := -teme.X*sinG + teme.Y*cosG
	z := teme.Z

	vx := teme.VX*cosG + teme.VY*sinG + OmegaEarth*y
	vy := -teme.VX*sinG + teme.VY*cosG - OmegaEarth*x
	vz := teme.VZ

	return PositionECEF{
		X:  x * 1000.0,
		Y:  y * 1000.0,
		Z:  z * 1000.0,
		VX: vx * 1000.0,
		VY: vy * 1000.0,
		VZ: vz * 1000.0,
	}
}

// ValidateECEF reports whether an ECEF position is finite and lies between
// 6,200 km and 50,000 km from the geocenter (LEO through GEO with margin).
func ValidateECEF(pos PositionECEF) bool {
	for _, v := range [3]float64{pos.X, pos.Y, pos.Z} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}

	const (
		minRadius = 6200.0 * 1000.0
		maxRadius = 50000.0 * 1000.0
	)
	mag := math.Sqrt(pos.X*pos.X + pos.Y*pos.Y + pos.Z*pos.Z)
	return mag >= minRadius && mag <= maxRadius
}
