package geospatial_test

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samirrijal/civicconnect/internal/core/domain"
	"github.com/samirrijal/civicconnect/internal/pkg/geospatial"
)

func whole(n int64) domain.Rational { return domain.Rational{Num: n, Den: 1} }

func dms(d, m int64, s domain.Rational) domain.Sexagesimal {
	return domain.Sexagesimal{Degrees: whole(d), Minutes: whole(m), Seconds: s}
}

func TestSexagesimalToDecimal(t *testing.T) {
	tests := []struct {
		name string
		dms  domain.Sexagesimal
		ref  string
		want float64
	}{
		{"north", dms(12, 58, domain.Rational{Num: 1776, Den: 100}), "N", 12 + 58.0/60 + 17.76/3600},
		{"south", dms(33, 51, domain.Rational{Num: 54, Den: 1}), "S", -(33 + 51.0/60 + 54.0/3600)},
		{"east", dms(77, 35, domain.Rational{Num: 4056, Den: 100}), "E", 77 + 35.0/60 + 40.56/3600},
		{"west", dms(2, 56, domain.Rational{Num: 0, Den: 1}), "W", -(2 + 56.0/60)},
		{"nul padded ref", dms(1, 0, whole(0)), "N\x00", 1},
		{"zero", dms(0, 0, whole(0)), "E", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := geospatial.SexagesimalToDecimal(tt.dms, tt.ref)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-12)
		})
	}
}

func TestSexagesimalToDecimal_SignByHemisphere(t *testing.T) {
	triples := []domain.Sexagesimal{
		dms(0, 0, whole(0)),
		dms(12, 58, domain.Rational{Num: 1776, Den: 100}),
		dms(89, 59, domain.Rational{Num: 5999, Den: 100}),
		dms(179, 0, domain.Rational{Num: 1, Den: 3}),
	}
	opposite := map[string]string{"N": "S", "S": "N", "E": "W", "W": "E"}

	for _, tr := range triples {
		for ref, opp := range opposite {
			v, err := geospatial.SexagesimalToDecimal(tr, ref)
			require.NoError(t, err)
			o, err := geospatial.SexagesimalToDecimal(tr, opp)
			require.NoError(t, err)

			if ref == "N" || ref == "E" {
				assert.GreaterOrEqual(t, v, 0.0, "ref %s", ref)
			} else {
				assert.LessOrEqual(t, v, 0.0, "ref %s", ref)
			}
			assert.Equal(t, v, -o, "convert(%s) must equal -convert(%s)", ref, opp)
		}
	}
}

func TestSexagesimalToDecimal_Malformed(t *testing.T) {
	tests := []struct {
		name string
		dms  domain.Sexagesimal
		ref  string
	}{
		{"bad ref", dms(1, 2, whole(3)), "X"},
		{"empty ref", dms(1, 2, whole(3)), ""},
		{"lowercase ref", dms(1, 2, whole(3)), "n"},
		{"zero denominator", domain.Sexagesimal{Degrees: domain.Rational{Num: 1, Den: 0}}, "N"},
		{"negative minutes", dms(1, -2, whole(3)), "N"},
		{"negative seconds", dms(1, 2, domain.Rational{Num: -3, Den: 1}), "E"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := geospatial.SexagesimalToDecimal(tt.dms, tt.ref)
			require.Error(t, err)
			assert.True(t, errors.Is(err, domain.ErrMalformedCoordinate), "got %v", err)
		})
	}
}

func TestHaversine_OneDegreeOfLongitudeAtEquator(t *testing.T) {
	d := geospatial.Haversine(0, 0, 0, 1)
	assert.InDelta(t, 111195, d, 50)
}

func TestHaversine_SymmetricAndZero(t *testing.T) {
	points := [][2]float64{
		{12.9716, 77.5946},
		{43.263, -2.935},
		{-33.8688, 151.2093},
		{89.9, -179.9},
		{0, 0},
	}
	for _, a := range points {
		assert.Equal(t, 0.0, geospatial.Haversine(a[0], a[1], a[0], a[1]))
		for _, b := range points {
			ab := geospatial.Haversine(a[0], a[1], b[0], b[1])
			ba := geospatial.Haversine(b[0], b[1], a[0], a[1])
			assert.Equal(t, ab, ba)
			assert.False(t, math.IsNaN(ab))
		}
	}
}

func TestHaversine_ShortDistance(t *testing.T) {
	// ~5 km due north of Bengaluru city centre.
	d := geospatial.Haversine(12.9716, 77.5946, 12.9716+5000/111195.0, 77.5946)
	assert.InDelta(t, 5000, d, 5)
}

func TestValidLatLon(t *testing.T) {
	assert.True(t, geospatial.ValidLatLon(90, 180))
	assert.True(t, geospatial.ValidLatLon(-90, -180))
	assert.False(t, geospatial.ValidLatLon(90.0001, 0))
	assert.False(t, geospatial.ValidLatLon(0, -180.5))
	assert.False(t, geospatial.ValidLatLon(math.NaN(), 0))
}

func TestBoundingBox_ContainsRadius(t *testing.T) {
	minLat, minLon, maxLat, maxLon := geospatial.BoundingBox(43.263, -2.935, 1000)
	assert.Less(t, minLat, 43.263)
	assert.Greater(t, maxLat, 43.263)
	assert.Less(t, minLon, -2.935)
	assert.Greater(t, maxLon, -2.935)
	assert.InDelta(t, 1000, geospatial.Haversine(43.263, -2.935, maxLat, -2.935), 10)
}

// destination returns the point d meters from (lat, lon) along bearing.
func destination(lat, lon, d, bearing float64) domain.GeoPoint {
	rad := math.Pi / 180
	delta := d / geospatial.EarthRadiusMeters
	phi1, lambda1, theta := lat*rad, lon*rad, bearing*rad

	phi2 := math.Asin(math.Sin(phi1)*math.Cos(delta) + math.Cos(phi1)*math.Sin(delta)*math.Cos(theta))
	lambda2 := lambda1 + math.Atan2(math.Sin(theta)*math.Sin(delta)*math.Cos(phi1),
		math.Cos(delta)-math.Sin(phi1)*math.Sin(phi2))
	lng := math.Mod(lambda2/rad+540, 360) - 180
	return domain.GeoPoint{Lat: phi2 / rad, Lng: lng}
}

func TestBoundingBox_EnclosesCircle(t *testing.T) {
	centers := []domain.GeoPoint{
		{Lat: 12.9716, Lng: 77.5946},
		{Lat: -33.8688, Lng: 151.2093},
		{Lat: 0, Lng: 179.9995},
		{Lat: -16.5, Lng: -179.998},
		{Lat: 78.2232, Lng: 15.6267},
		{Lat: 89.995, Lng: 0},
	}
	for _, c := range centers {
		for _, radius := range []float64{100, 1000, 50000} {
			minLat, minLon, maxLat, maxLon := geospatial.BoundingBox(c.Lat, c.Lng, radius)
			box := domain.Bounds{MinLat: minLat, MinLng: minLon, MaxLat: maxLat, MaxLng: maxLon}

			require.True(t, geospatial.ValidLatLon(minLat, minLon), "%v r=%v", c, radius)
			require.True(t, geospatial.ValidLatLon(maxLat, maxLon), "%v r=%v", c, radius)
			for bearing := 0.0; bearing < 360; bearing += 15 {
				p := destination(c.Lat, c.Lng, radius*0.999, bearing)
				assert.True(t, box.Contains(p), "center %v r=%v bearing %v: %v outside %+v", c, radius, bearing, p, box)
			}
		}
	}
}

func TestBoundingBox_Antimeridian(t *testing.T) {
	minLat, minLon, maxLat, maxLon := geospatial.BoundingBox(0, 179.999, 1000)
	box := domain.Bounds{MinLat: minLat, MinLng: minLon, MaxLat: maxLat, MaxLng: maxLon}

	assert.True(t, box.CrossesAntimeridian())
	assert.LessOrEqual(t, maxLon, 180.0)
	assert.True(t, box.Contains(domain.GeoPoint{Lat: 0, Lng: -179.999}))
	assert.False(t, box.Contains(domain.GeoPoint{Lat: 0, Lng: 0}))

	_, minLon, _, maxLon = geospatial.BoundingBox(43.263, -2.935, 1000)
	assert.Less(t, minLon, maxLon, "ordinary box does not wrap")
}

func TestBoundingBox_Pole(t *testing.T) {
	minLat, minLon, maxLat, maxLon := geospatial.BoundingBox(89.999, 45, 1000)
	assert.Equal(t, 90.0, maxLat)
	assert.Less(t, minLat, 89.999)
	assert.Equal(t, -180.0, minLon)
	assert.Equal(t, 180.0, maxLon)

	minLat, _, _, _ = geospatial.BoundingBox(-89.9995, 0, 1000)
	assert.Equal(t, -90.0, minLat)
}
