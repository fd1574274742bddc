package occurrence

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Point is a geographic coordinate in WGS84.
type Point struct {
	Latitude  float64
	Longitude float64
}

var (
	// "9N 573674 6114170" or "9 573674 6114170"
	utmPattern = regexp.MustCompile(`^(\d{1,2})\s*([C-HJ-NP-Xc-hj-np-x]?)\s+(\d+(?:\.\d+)?)\s+(\d+(?:\.\d+)?)$`)
	// "50.7 -120.2" or "50.7, -120.2"
	latLongPattern = regexp.MustCompile(`^(-?\d+(?:\.\d+)?)\s*[,;\s]\s*(-?\d+(?:\.\d+)?)$`)
)

// ParseVerbatimCoordinates interprets a free-text coordinate string,
// trying UTM first and then lat/long. A false result is not an error:
// malformed coordinates are tolerated and the occurrence is stored
// without geography, with a warning recorded by the scraper.
func ParseVerbatimCoordinates(verbatim string) (Point, bool) {
	verbatim = strings.TrimSpace(verbatim)
	if verbatim == "" {
		return Point{}, false
	}

	if p, ok := parseUTM(verbatim); ok {
		return p, true
	}
	return parseLatLong(verbatim)
}

func parseUTM(verbatim string) (Point, bool) {
	match := utmPattern.FindStringSubmatch(verbatim)
	if match == nil {
		return Point{}, false
	}

	zone, err := strconv.Atoi(match[1])
	if err != nil || zone < 1 || zone > 60 {
		return Point{}, false
	}
	easting, err := strconv.ParseFloat(match[3], 64)
	if err != nil || easting < 100000 || easting > 900000 {
		return Point{}, false
	}
	northing, err := strconv.ParseFloat(match[4], 64)
	if err != nil || northing < 0 || northing > 10000000 {
		return Point{}, false
	}

	// Without a zone letter the point is assumed northern hemisphere,
	// which holds for the provincial datasets this pipeline serves.
	northern := true
	if letter := strings.ToUpper(match[2]); letter != "" {
		northern = letter >= "N"
	}

	lat, lon := utmToLatLong(zone, northern, easting, northing)
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return Point{}, false
	}
	return Point{Latitude: lat, Longitude: lon}, true
}

func parseLatLong(verbatim string) (Point, bool) {
	match := latLongPattern.FindStringSubmatch(verbatim)
	if match == nil {
		return Point{}, false
	}
	lat, err := strconv.ParseFloat(match[1], 64)
	if err != nil || lat < -90 || lat > 90 {
		return Point{}, false
	}
	lon, err := strconv.ParseFloat(match[2], 64)
	if err != nil || lon < -180 || lon > 180 {
		return Point{}, false
	}
	return Point{Latitude: lat, Longitude: lon}, true
}

// utmToLatLong projects UTM grid coordinates back to WGS84 geographic
// coordinates using the standard transverse mercator inverse series.
func utmToLatLong(zone int, northern bool, easting, northing float64) (lat, lon float64) {
	const (
		a  = 6378137.0           // WGS84 semi-major axis
		f  = 1 / 298.257223563   // WGS84 flattening
		k0 = 0.9996              // UTM scale factor
	)

	e2 := f * (2 - f)
	ep2 := e2 / (1 - e2)

	x := easting - 500000.0
	y := northing
	if !northern {
		y -= 10000000.0
	}

	m := y / k0
	mu := m / (a * (1 - e2/4 - 3*e2*e2/64 - 5*e2*e2*e2/256))

	e1 := (1 - math.Sqrt(1-e2)) / (1 + math.Sqrt(1-e2))

	phi1 := mu +
		(3*e1/2-27*math.Pow(e1, 3)/32)*math.Sin(2*mu) +
		(21*e1*e1/16-55*math.Pow(e1, 4)/32)*math.Sin(4*mu) +
		(151*math.Pow(e1, 3)/96)*math.Sin(6*mu) +
		(1097*math.Pow(e1, 4)/512)*math.Sin(8*mu)

	sinPhi1 := math.Sin(phi1)
	cosPhi1 := math.Cos(phi1)
	tanPhi1 := math.Tan(phi1)

	n1 := a / math.Sqrt(1-e2*sinPhi1*sinPhi1)
	t1 := tanPhi1 * tanPhi1
	c1 := ep2 * cosPhi1 * cosPhi1
	r1 := a * (1 - e2) / math.Pow(1-e2*sinPhi1*sinPhi1, 1.5)
	d := x / (n1 * k0)

	lat = phi1 - (n1*tanPhi1/r1)*
		(d*d/2-
			(5+3*t1+10*c1-4*c1*c1-9*ep2)*math.Pow(d, 4)/24+
			(61+90*t1+298*c1+45*t1*t1-252*ep2-3*c1*c1)*math.Pow(d, 6)/720)

	lonRad := (d -
		(1+2*t1+c1)*math.Pow(d, 3)/6 +
		(5-2*c1+28*t1-3*c1*c1+8*ep2+24*t1*t1)*math.Pow(d, 5)/120) / cosPhi1

	lonOrigin := float64((zone-1)*6 - 180 + 3)

	lat = lat * 180 / math.Pi
	lon = lonOrigin + lonRad*180/math.Pi
	return lat, lon
}
