// Package proj converts the planar coordinates carried by upstream crime
// feeds back to WGS84 (lon, lat).
//
// The feeds use three projections: spherical Web Mercator (ArcGIS servers,
// WKID 102100/3857) and two NAD83 state-plane zones in US survey feet
// (Missouri East for the STL police exports, Texas North Central for the
// Dallas open-data portal). NAD83 and WGS84 differ by less than the
// positional noise in the source data, so no datum shift is applied.
//
// Formulas follow Snyder, "Map Projections: A Working Manual" (USGS PP 1395).
package proj

import "math"

// GRS80 ellipsoid (NAD83).
const (
	semiMajor  = 6378137.0
	flattening = 1.0 / 298.257222101
)

// MetersPerUSFoot is the US survey foot (1200/3937 m exactly).
const MetersPerUSFoot = 1200.0 / 3937.0

const sphereRadius = 6378137.0 // spherical mercator earth radius

var (
	e2  = flattening * (2 - flattening) // first eccentricity squared
	e4  = e2 * e2
	e6  = e4 * e2
	ecc = math.Sqrt(e2)
	ep2 = e2 / (1 - e2) // second eccentricity squared
)

func radians(deg float64) float64 { return deg * math.Pi / 180.0 }
func degrees(rad float64) float64 { return rad * 180.0 / math.Pi }

// WebMercatorInverse converts spherical Web Mercator meters (EPSG:3857,
// ArcGIS WKID 102100) to WGS84 degrees.
func WebMercatorInverse(x, y float64) (lon, lat float64) {
	lon = degrees(x / sphereRadius)
	lat = degrees(2*math.Atan(math.Exp(y/sphereRadius)) - math.Pi/2)
	return lon, lat
}

// meridionalArc returns the distance along the meridian from the equator to
// latitude phi (Snyder 3-21).
func meridionalArc(phi float64) float64 {
	return semiMajor * ((1-e2/4-3*e4/64-5*e6/256)*phi -
		(3*e2/8+3*e4/32+45*e6/1024)*math.Sin(2*phi) +
		(15*e4/256+45*e6/1024)*math.Sin(4*phi) -
		(35*e6/3072)*math.Sin(6*phi))
}

// footpointLatitude inverts meridionalArc (Snyder 3-26, 7-19).
func footpointLatitude(m float64) float64 {
	mu := m / (semiMajor * (1 - e2/4 - 3*e4/64 - 5*e6/256))
	sq := math.Sqrt(1 - e2)
	e1 := (1 - sq) / (1 + sq)
	return mu +
		(3*e1/2-27*e1*e1*e1/32)*math.Sin(2*mu) +
		(21*e1*e1/16-55*e1*e1*e1*e1/32)*math.Sin(4*mu) +
		(151*e1*e1*e1/96)*math.Sin(6*mu) +
		(1097*e1*e1*e1*e1/512)*math.Sin(8*mu)
}

// TransverseMercator is a NAD83 state-plane Transverse Mercator zone with
// grid coordinates in US survey feet.
type TransverseMercator struct {
	OriginLat    float64 // latitude of grid origin, degrees
	CentralLon   float64 // central meridian, degrees
	ScaleFactor  float64 // scale on the central meridian
	FalseEasting float64 // meters
	FalseNorthing float64 // meters
}

// MissouriEast is SPCS83 zone 2401, used by the St. Louis police exports.
var MissouriEast = &TransverseMercator{
	OriginLat:    35.0 + 50.0/60.0,
	CentralLon:   -90.5,
	ScaleFactor:  1 - 1.0/15000.0,
	FalseEasting: 250000,
}

// Inverse converts grid feet to WGS84 degrees (Snyder 8-17..8-25).
func (p *TransverseMercator) Inverse(eastFt, northFt float64) (lon, lat float64) {
	x := eastFt*MetersPerUSFoot - p.FalseEasting
	y := northFt*MetersPerUSFoot - p.FalseNorthing

	m0 := meridionalArc(radians(p.OriginLat))
	phi1 := footpointLatitude(m0 + y/p.ScaleFactor)

	sin1, cos1 := math.Sin(phi1), math.Cos(phi1)
	tan1 := sin1 / cos1
	c1 := ep2 * cos1 * cos1
	t1 := tan1 * tan1
	n1 := semiMajor / math.Sqrt(1-e2*sin1*sin1)
	r1 := semiMajor * (1 - e2) / math.Pow(1-e2*sin1*sin1, 1.5)
	d := x / (n1 * p.ScaleFactor)
	d2 := d * d

	phi := phi1 - (n1*tan1/r1)*(d2/2-
		(5+3*t1+10*c1-4*c1*c1-9*ep2)*d2*d2/24+
		(61+90*t1+298*c1+45*t1*t1-252*ep2-3*c1*c1)*d2*d2*d2/720)
	lam := radians(p.CentralLon) + (d-
		(1+2*t1+c1)*d2*d/6+
		(5-2*c1+28*t1-3*c1*c1+8*ep2+24*t1*t1)*d2*d2*d/120)/cos1

	return degrees(lam), degrees(phi)
}

// Forward converts WGS84 degrees to grid feet (Snyder 8-9..8-13). It exists
// mostly to validate Inverse.
func (p *TransverseMercator) Forward(lon, lat float64) (eastFt, northFt float64) {
	phi := radians(lat)
	sin, cos := math.Sin(phi), math.Cos(phi)
	tan := sin / cos

	n := semiMajor / math.Sqrt(1-e2*sin*sin)
	t := tan * tan
	c := ep2 * cos * cos
	a := (radians(lon) - radians(p.CentralLon)) * cos
	a2 := a * a
	m := meridionalArc(phi)
	m0 := meridionalArc(radians(p.OriginLat))

	x := p.ScaleFactor*n*(a+(1-t+c)*a2*a/6+
		(5-18*t+t*t+72*c-58*ep2)*a2*a2*a/120) + p.FalseEasting
	y := p.ScaleFactor*(m-m0+n*tan*(a2/2+
		(5-t+9*c+4*c*c)*a2*a2/24+
		(61-58*t+t*t+600*c-330*ep2)*a2*a2*a2/720)) + p.FalseNorthing

	return x / MetersPerUSFoot, y / MetersPerUSFoot
}

// LambertConformalConic is a two-standard-parallel NAD83 state-plane Lambert
// zone with grid coordinates in US survey feet.
type LambertConformalConic struct {
	StdParallel1  float64 // degrees
	StdParallel2  float64 // degrees
	OriginLat     float64 // degrees
	CentralLon    float64 // degrees
	FalseEasting  float64 // meters
	FalseNorthing float64 // meters
}

// TexasNorthCentral is SPCS83 zone 4202, used by the Dallas open-data feed.
var TexasNorthCentral = &LambertConformalConic{
	StdParallel1:  32.0 + 8.0/60.0,
	StdParallel2:  33.0 + 58.0/60.0,
	OriginLat:     31.0 + 40.0/60.0,
	CentralLon:    -98.5,
	FalseEasting:  600000,
	FalseNorthing: 2000000,
}

// tsf is Snyder 15-9, the isometric latitude function.
func tsf(phi float64) float64 {
	esin := ecc * math.Sin(phi)
	return math.Tan(math.Pi/4-phi/2) / math.Pow((1-esin)/(1+esin), ecc/2)
}

// msf is Snyder 14-15.
func msf(phi float64) float64 {
	sin := math.Sin(phi)
	return math.Cos(phi) / math.Sqrt(1-e2*sin*sin)
}

func (p *LambertConformalConic) constants() (n, f, rho0 float64) {
	phi1 := radians(p.StdParallel1)
	phi2 := radians(p.StdParallel2)
	phi0 := radians(p.OriginLat)

	m1, m2 := msf(phi1), msf(phi2)
	t0, t1, t2 := tsf(phi0), tsf(phi1), tsf(phi2)

	n = (math.Log(m1) - math.Log(m2)) / (math.Log(t1) - math.Log(t2))
	f = m1 / (n * math.Pow(t1, n))
	rho0 = semiMajor * f * math.Pow(t0, n)
	return n, f, rho0
}

// Inverse converts grid feet to WGS84 degrees (Snyder 14-9..14-11, 15-3).
func (p *LambertConformalConic) Inverse(eastFt, northFt float64) (lon, lat float64) {
	n, f, rho0 := p.constants()

	x := eastFt*MetersPerUSFoot - p.FalseEasting
	y := northFt*MetersPerUSFoot - p.FalseNorthing

	rho := math.Sqrt(x*x + (rho0-y)*(rho0-y))
	if n < 0 {
		rho = -rho
	}
	theta := math.Atan2(x, rho0-y)
	t := math.Pow(rho/(semiMajor*f), 1/n)

	// Iterate Snyder 7-9 for the latitude.
	phi := math.Pi/2 - 2*math.Atan(t)
	for i := 0; i < 8; i++ {
		esin := ecc * math.Sin(phi)
		phi = math.Pi/2 - 2*math.Atan(t*math.Pow((1-esin)/(1+esin), ecc/2))
	}

	return degrees(theta/n + radians(p.CentralLon)), degrees(phi)
}

// Forward converts WGS84 degrees to grid feet (Snyder 14-1..14-4).
func (p *LambertConformalConic) Forward(lon, lat float64) (eastFt, northFt float64) {
	n, f, rho0 := p.constants()

	rho := semiMajor * f * math.Pow(tsf(radians(lat)), n)
	theta := n * (radians(lon) - radians(p.CentralLon))

	x := rho*math.Sin(theta) + p.FalseEasting
	y := rho0 - rho*math.Cos(theta) + p.FalseNorthing

	return x / MetersPerUSFoot, y / MetersPerUSFoot
}
