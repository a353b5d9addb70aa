package geo_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/defect-dispatch/internal/geo"
	apperrors "github.com/spec-kit/defect-dispatch/pkg/util/errorutil"
)

var (
	cambridgeDepot = geo.Point{Latitude: 52.4862, Longitude: 0.1100}
	siteNorthEast  = geo.Point{Latitude: 52.5000, Longitude: 0.1500}
)

func TestHaversineMiles_KnownPair(t *testing.T) {
	miles, err := geo.HaversineMiles(cambridgeDepot, siteNorthEast)
	require.NoError(t, err)
	assert.InDelta(t, 1.934, miles, 0.01)

	eta, err := geo.EstimateEtaMinutes(miles, 30)
	require.NoError(t, err)
	assert.Equal(t, 4, eta)
}

func TestHaversineMiles_Symmetric(t *testing.T) {
	ab, err := geo.HaversineMiles(cambridgeDepot, siteNorthEast)
	require.NoError(t, err)
	ba, err := geo.HaversineMiles(siteNorthEast, cambridgeDepot)
	require.NoError(t, err)
	assert.InDelta(t, ab, ba, 1e-9)
}

func TestHaversineMiles_SamePointIsZero(t *testing.T) {
	d, err := geo.HaversineMiles(cambridgeDepot, cambridgeDepot)
	require.NoError(t, err)
	assert.Zero(t, d)
}

func TestHaversineMiles_Antipodal(t *testing.T) {
	d, err := geo.HaversineMiles(geo.Point{Latitude: 0, Longitude: 0}, geo.Point{Latitude: 0, Longitude: 180})
	require.NoError(t, err)
	assert.InDelta(t, math.Pi*6371*0.621371, d, 0.5)
	assert.False(t, math.IsNaN(d))
}

func TestHaversineMeters_MatchesMiles(t *testing.T) {
	meters, err := geo.HaversineMeters(cambridgeDepot, siteNorthEast)
	require.NoError(t, err)
	assert.InDelta(t, 3112.6, meters, 5)
}

func TestHaversine_RejectsInvalidCoordinates(t *testing.T) {
	cases := map[string]geo.Point{
		"latitude too high":  {Latitude: 90.5, Longitude: 0},
		"latitude too low":   {Latitude: -91, Longitude: 0},
		"longitude too high": {Latitude: 0, Longitude: 180.1},
		"NaN latitude":       {Latitude: math.NaN(), Longitude: 0},
		"infinite longitude": {Latitude: 0, Longitude: math.Inf(1)},
	}
	for name, p := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := geo.HaversineMiles(cambridgeDepot, p)
			require.Error(t, err)
			assert.ErrorIs(t, err, apperrors.ErrInvalidCoordinate)

			_, err = geo.HaversineMiles(p, cambridgeDepot)
			assert.ErrorIs(t, err, apperrors.ErrInvalidCoordinate)
		})
	}
}

func TestPointValidate_Bounds(t *testing.T) {
	assert.NoError(t, geo.Point{Latitude: 90, Longitude: 180}.Validate())
	assert.NoError(t, geo.Point{Latitude: -90, Longitude: -180}.Validate())
}

func TestEstimateEtaMinutes(t *testing.T) {
	eta, err := geo.EstimateEtaMinutes(2.15, 30)
	require.NoError(t, err)
	assert.Equal(t, 5, eta)

	eta, err = geo.EstimateEtaMinutes(0, 30)
	require.NoError(t, err)
	assert.Equal(t, 0, eta)

	eta, err = geo.EstimateEtaMinutes(0.01, 30)
	require.NoError(t, err)
	assert.Equal(t, 1, eta, "any positive distance rounds up to a whole minute")

	eta, err = geo.EstimateEtaMinutes(30, 30)
	require.NoError(t, err)
	assert.Equal(t, 60, eta)
}

func TestEstimateEtaMinutes_RejectsBadInput(t *testing.T) {
	for _, speed := range []float64{0, -10, math.NaN(), math.Inf(1)} {
		_, err := geo.EstimateEtaMinutes(1, speed)
		assert.ErrorIs(t, err, apperrors.ErrValidation, "speed %v", speed)
	}
	_, err := geo.EstimateEtaMinutes(-1, 30)
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestEstimateEtaMinutes_RejectsOverflow(t *testing.T) {
	for _, tc := range []struct{ miles, mph float64 }{
		{1, 1e-300},
		{12000, 1e-15},
		{math.MaxFloat64, 1},
	} {
		eta, err := geo.EstimateEtaMinutes(tc.miles, tc.mph)
		assert.ErrorIs(t, err, apperrors.ErrValidation, "%v mi at %v mph", tc.miles, tc.mph)
		assert.Zero(t, eta)
	}

	eta, err := geo.EstimateEtaMinutes(2147483640, 60)
	require.NoError(t, err)
	assert.Equal(t, 2147483640, eta)
}
