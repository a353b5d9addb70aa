// Package geo holds straight-line distance and arrival-time math.
package geo

import (
	"math"

	"github.com/spec-kit/defect-dispatch/internal/domain"
	apperrors "github.com/spec-kit/defect-dispatch/pkg/util/errorutil"
)

const (
	earthRadiusKm = 6371.0
	kmToMiles     = 0.621371
)

// Point is a latitude/longitude pair in degrees.
type Point struct {
	Latitude  float64
	Longitude float64
}

// FromCoordinates converts a stored coordinate pair.
func FromCoordinates(c domain.Coordinates) Point {
	return Point{Latitude: c.Latitude, Longitude: c.Longitude}
}

// Validate rejects non-finite or out-of-range values.
func (p Point) Validate() error {
	if math.IsNaN(p.Latitude) || math.IsInf(p.Latitude, 0) || p.Latitude < -90 || p.Latitude > 90 {
		return apperrors.NewInvalidCoordinate("latitude must be within [-90, 90]", map[string]any{"latitude": p.Latitude})
	}
	if math.IsNaN(p.Longitude) || math.IsInf(p.Longitude, 0) || p.Longitude < -180 || p.Longitude > 180 {
		return apperrors.NewInvalidCoordinate("longitude must be within [-180, 180]", map[string]any{"longitude": p.Longitude})
	}
	return nil
}

// HaversineMiles returns the great-circle distance between a and b in miles.
func HaversineMiles(a, b Point) (float64, error) {
	km, err := haversineKm(a, b)
	if err != nil {
		return 0, err
	}
	return km * kmToMiles, nil
}

// HaversineMeters returns the great-circle distance between a and b in meters.
func HaversineMeters(a, b Point) (float64, error) {
	km, err := haversineKm(a, b)
	if err != nil {
		return 0, err
	}
	return km * 1000, nil
}

func haversineKm(a, b Point) (float64, error) {
	if err := a.Validate(); err != nil {
		return 0, err
	}
	if err := b.Validate(); err != nil {
		return 0, err
	}
	lat1 := toRadians(a.Latitude)
	lat2 := toRadians(b.Latitude)
	dLat := toRadians(b.Latitude - a.Latitude)
	dLon := toRadians(b.Longitude - a.Longitude)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	// rounding can push h a hair past 1 for antipodal points
	h = math.Min(1, h)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return earthRadiusKm * c, nil
}

// MaxEtaMinutes bounds EstimateEtaMinutes so the result fits an int32.
const MaxEtaMinutes = math.MaxInt32

// EstimateEtaMinutes returns ceil(distance / speed * 60). The speed is the
// caller's assumption for the vehicle class, in miles per hour.
func EstimateEtaMinutes(distanceMiles, assumedSpeedMph float64) (int, error) {
	if math.IsNaN(assumedSpeedMph) || math.IsInf(assumedSpeedMph, 0) || assumedSpeedMph <= 0 {
		return 0, apperrors.NewValidationError("assumed speed must be greater than zero", map[string]any{"speed_mph": assumedSpeedMph})
	}
	if math.IsNaN(distanceMiles) || math.IsInf(distanceMiles, 0) || distanceMiles < 0 {
		return 0, apperrors.NewValidationError("distance must be a non-negative number", map[string]any{"distance_miles": distanceMiles})
	}
	if distanceMiles == 0 {
		return 0, nil
	}
	minutes := math.Ceil(distanceMiles / assumedSpeedMph * 60)
	if math.IsInf(minutes, 0) || minutes > MaxEtaMinutes {
		return 0, apperrors.NewValidationError("estimated arrival is out of range", map[string]any{
			"distance_miles": distanceMiles,
			"speed_mph":      assumedSpeedMph,
		})
	}
	return int(minutes), nil
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}
