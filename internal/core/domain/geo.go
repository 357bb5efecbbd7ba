package domain

import "fmt"

// GeoPoint represents a geographic coordinate (WGS 84) in signed decimal degrees.
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Bounds represents a geographic bounding box. MinLng > MaxLng means the
// box crosses the antimeridian.
type Bounds struct {
	MinLat float64 `json:"min_lat"`
	MinLng float64 `json:"min_lng"`
	MaxLat float64 `json:"max_lat"`
	MaxLng float64 `json:"max_lng"`
}

// CrossesAntimeridian reports whether the box wraps past ±180° longitude.
func (b Bounds) CrossesAntimeridian() bool {
	return b.MinLng > b.MaxLng
}

// Contains reports whether p lies inside the box.
func (b Bounds) Contains(p GeoPoint) bool {
	if p.Lat < b.MinLat || p.Lat > b.MaxLat {
		return false
	}
	if b.CrossesAntimeridian() {
		return p.Lng >= b.MinLng || p.Lng <= b.MaxLng
	}
	return p.Lng >= b.MinLng && p.Lng <= b.MaxLng
}

// Rational is an unsigned EXIF RATIONAL kept as numerator/denominator.
type Rational struct {
	Num int64
	Den int64
}

// Float returns the rational as a float64. A zero denominator is reported
// as ErrMalformedCoordinate.
func (r Rational) Float() (float64, error) {
	if r.Den == 0 {
		return 0, fmt.Errorf("%w: zero denominator", ErrMalformedCoordinate)
	}
	return float64(r.Num) / float64(r.Den), nil
}

// Sexagesimal is a degrees/minutes/seconds triple.
type Sexagesimal struct {
	Degrees Rational
	Minutes Rational
	Seconds Rational
}

// RawGPS is the GPS sub-block of a photo's EXIF data, as stored.
type RawGPS struct {
	Latitude     Sexagesimal
	LatitudeRef  string
	Longitude    Sexagesimal
	LongitudeRef string
}

// ExifTimeLayout is the EXIF DateTimeOriginal layout (YYYY:MM:DD HH:MM:SS).
const ExifTimeLayout = "2006:01:02 15:04:05"

// PhotoMetadata is what the metadata extractor yields for one photo.
// GPS and CaptureTime are independently optional.
type PhotoMetadata struct {
	GPS         *RawGPS
	CaptureTime string // raw DateTimeOriginal, empty when absent
}
