package transform

import (
	"math"
	"time"
)

// WGS-84 ellipsoid parameters.
const (
	wgs84A  = 6378137.0             // semi-major axis (meters)
	wgs84F  = 1.0 / 298.257223563   // flattening
	wgs84E2 = wgs84F * (2 - wgs84F) // first eccentricity squared
)

// Geodetic is a position relative to the WGS-84 ellipsoid.
type Geodetic struct {
	LonDeg float64
	LatDeg float64
	AltKm  float64
}

// ECEFToGeodetic converts ECEF meters to geodetic coordinates with the iterative
// Bowring method; Earth-orbit radii converge in two or three iterations.
func ECEFToGeodetic(x, y, z float64) Geodetic {
	lon := math.Atan2(y, x)
	p := math.Sqrt(x*x + y*y)

	lat := math.Atan2(z, p*(1-wgs84E2))
	for i := 0; i < 5; i++ {
		sinLat := math.Sin(lat)
		n := wgs84A / math.Sqrt(1-wgs84E2*sinLat*sinLat)
		lat = math.Atan2(z+wgs84E2*n*sinLat, p)
	}

	sinLat := math.Sin(lat)
	cosLat := math.Cos(lat)
	n := wgs84A / math.Sqrt(1-wgs84E2*sinLat*sinLat)

	var alt float64
	if math.Abs(cosLat) > 1e-10 {
		alt = p/cosLat - n
	} else {
		alt = math.Abs(z)/math.Abs(sinLat) - n*(1-wgs84E2)
	}

	return Geodetic{
		LonDeg: lon * 180.0 / math.Pi,
		LatDeg: lat * 180.0 / math.Pi,
		AltKm:  alt / 1000.0,
	}
}

// GeodeticToECEF converts a geodetic position back to ECEF meters. The scene
// uses it to hand camera targets to globe clients that work in Cartesian space.
func GeodeticToECEF(g Geodetic) (x, y, z float64) {
	lat := g.LatDeg * math.Pi / 180.0
	lon := g.LonDeg * math.Pi / 180.0
	altM := g.AltKm * 1000.0

	sinLat := math.Sin(lat)
	n := wgs84A / math.Sqrt(1-wgs84E2*sinLat*sinLat)

	x = (n + altM) * math.Cos(lat) * math.Cos(lon)
	y = (n + altM) * math.Cos(lat) * math.Sin(lon)
	z = (n*(1-wgs84E2) + altM) * sinLat
	return x, y, z
}

// TEMEToGeodetic rotates a TEME position into ECEF at t and converts it to
// geodetic coordinates.
func TEMEToGeodetic(teme PositionTEME, t time.Time) Geodetic {
	ecef := TEMEToECEF(teme, t)
	return ECEFToGeodetic(ecef.X, ecef.Y, ecef.Z)
}
