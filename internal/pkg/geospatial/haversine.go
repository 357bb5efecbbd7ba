package geospatial

import "math"

// EarthRadiusMeters is the mean Earth radius used by Haversine.
const EarthRadiusMeters = 6371000.0

// Haversine calculates the great-circle distance in meters between two points.
// Inputs must be valid coordinates (see ValidLatLon).
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := toRad(lat2 - lat1)
	dLon := toRad(lon2 - lon1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*
			math.Sin(dLon/2)*math.Sin(dLon/2)

	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return EarthRadiusMeters * c
}

// ValidLatLon reports whether lat is in [-90, 90] and lon in [-180, 180].
func ValidLatLon(lat, lon float64) bool {
	return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}

// BoundingBox returns a box enclosing every point within radiusMeters of
// (lat, lon). Latitudes are clamped to [-90, 90] and longitudes stay in
// [-180, 180]. A box crossing the antimeridian has minLon > maxLon; one that
// reaches a pole spans all longitudes.
func BoundingBox(lat, lon, radiusMeters float64) (minLat, minLon, maxLat, maxLon float64) {
	angular := radiusMeters / EarthRadiusMeters
	latDelta := toDeg(angular)

	minLat = math.Max(lat-latDelta, -90)
	maxLat = math.Min(lat+latDelta, 90)
	if minLat == -90 || maxLat == 90 {
		return minLat, -180, maxLat, 180
	}

	x := math.Sin(angular) / math.Cos(toRad(lat))
	if x >= 1 {
		return minLat, -180, maxLat, 180
	}
	lonDelta := toDeg(math.Asin(x))

	minLon, maxLon = lon-lonDelta, lon+lonDelta
	if minLon < -180 {
		minLon += 360
	}
	if maxLon > 180 {
		maxLon -= 360
	}
	return minLat, minLon, maxLat, maxLon
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}

func toDeg(rad float64) float64 {
	return rad * 180 / math.Pi
}
