package exif

import (
	"io"
	"strings"

	goexif "github.com/rwcarlsen/goexif/exif"
	"github.com/rwcarlsen/goexif/tiff"

	"github.com/samirrijal/civicconnect/internal/core/domain"
)

// Extractor implements ports.MetadataExtractor on top of goexif.
// It is stateless and safe for concurrent use.
type Extractor struct{}

// NewExtractor creates a new Extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract decodes the EXIF block of a JPEG or TIFF stream.
//
// Any decode failure, including a panic inside the codec, is reported as
// domain.ErrMetadataAbsent. A block that decodes but lacks GPS or
// DateTimeOriginal yields metadata with those pieces unset.
func (e *Extractor) Extract(r io.Reader) (md *domain.PhotoMetadata, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			md, err = nil, domain.ErrMetadataAbsent
		}
	}()

	x, err := goexif.Decode(r)
	if err != nil && (x == nil || goexif.IsCriticalError(err)) {
		return nil, domain.ErrMetadataAbsent
	}
	if x == nil {
		return nil, domain.ErrMetadataAbsent
	}

	return &domain.PhotoMetadata{
		GPS:         readGPS(x),
		CaptureTime: readString(x, goexif.DateTimeOriginal),
	}, nil
}

func readGPS(x *goexif.Exif) *domain.RawGPS {
	lat, ok := readTriple(x, goexif.GPSLatitude)
	if !ok {
		return nil
	}
	lng, ok := readTriple(x, goexif.GPSLongitude)
	if !ok {
		return nil
	}
	latRef := readString(x, goexif.GPSLatitudeRef)
	lngRef := readString(x, goexif.GPSLongitudeRef)
	if latRef == "" || lngRef == "" {
		return nil
	}
	return &domain.RawGPS{
		Latitude:     lat,
		LatitudeRef:  latRef,
		Longitude:    lng,
		LongitudeRef: lngRef,
	}
}

func readTriple(x *goexif.Exif, name goexif.FieldName) (domain.Sexagesimal, bool) {
	tag, err := x.Get(name)
	if err != nil || tag.Format() != tiff.RatVal || tag.Count < 3 {
		return domain.Sexagesimal{}, false
	}
	var parts [3]domain.Rational
	for i := range parts {
		num, den, err := tag.Rat2(i)
		if err != nil {
			return domain.Sexagesimal{}, false
		}
		parts[i] = domain.Rational{Num: num, Den: den}
	}
	return domain.Sexagesimal{Degrees: parts[0], Minutes: parts[1], Seconds: parts[2]}, true
}

func readString(x *goexif.Exif, name goexif.FieldName) string {
	tag, err := x.Get(name)
	if err != nil || tag.Format() != tiff.StringVal {
		return ""
	}
	s, err := tag.StringVal()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(strings.Trim(s, "\x00"))
}
