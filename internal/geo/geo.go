package geo

import (
	"math"
	"time"

	"github.com/westphae/geomag/pkg/egm96"
	"github.com/westphae/geomag/pkg/wmm"
)

const (
	EarthRadiusKM = 6371.0   // Mean spherical Earth radius
	KMToNM        = 0.539957 // Kilometres to nautical miles
)

// DistanceNM returns the great-circle distance between two points in nautical miles
// using the haversine formula on a spherical Earth.
func DistanceNM(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := toRadians(lat2 - lat1)
	dLon := toRadians(lon2 - lon1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRadians(lat1))*math.Cos(toRadians(lat2))*
			math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return EarthRadiusKM * c * KMToNM
}

// MagneticVariation returns the magnetic declination in degrees (east positive)
// at the given point and date, from the World Magnetic Model.
// Returns 0 if the model cannot be evaluated for that date.
func MagneticVariation(lat, lon float64, at time.Time) float64 {
	loc := egm96.NewLocationGeodetic(lat, lon, 0)
	mag, err := wmm.CalculateWMMMagneticField(loc, at)
	if err != nil {
		return 0.0
	}
	return mag.D()
}

// MagneticHeading converts a true heading to magnetic given an east-positive variation
func MagneticHeading(trueHeading, variation float64) float64 {
	h := math.Mod(trueHeading-variation, 360)
	if h < 0 {
		h += 360
	}
	return h
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}
