package usecases

import (
	"fmt"
	"io"
	"time"

	"github.com/samirrijal/civicconnect/internal/core/domain"
	"github.com/samirrijal/civicconnect/internal/core/ports"
	"github.com/samirrijal/civicconnect/internal/pkg/geospatial"
)

// Default verification thresholds.
const (
	DefaultMaxDistanceMeters = 200.0
	DefaultMaxAge            = 7 * 24 * time.Hour
)

// VerificationReport is a verdict plus the measurements that produced it.
// Distance and Age are nil when verification stopped before computing them.
type VerificationReport struct {
	Verdict        domain.Verdict
	DistanceMeters *float64
	Age            *time.Duration
}

// PhotoVerifier decides whether a photo was plausibly taken at the declared
// place recently. It holds only immutable configuration and is safe for
// concurrent use.
type PhotoVerifier struct {
	extractor   ports.MetadataExtractor
	maxDistance float64
	maxAge      time.Duration
}

// NewPhotoVerifier creates a PhotoVerifier. Non-positive thresholds fall
// back to the defaults.
func NewPhotoVerifier(extractor ports.MetadataExtractor, maxDistanceMeters float64, maxAge time.Duration) *PhotoVerifier {
	if maxDistanceMeters <= 0 {
		maxDistanceMeters = DefaultMaxDistanceMeters
	}
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	return &PhotoVerifier{extractor: extractor, maxDistance: maxDistanceMeters, maxAge: maxAge}
}

// Verify returns the verdict for photo against the declared coordinate at
// the instant now. It never fails: every problem becomes an unverified
// verdict. photo is read from its first byte and its position is restored
// before returning.
func (v *PhotoVerifier) Verify(photo io.ReadSeeker, declared domain.GeoPoint, now time.Time) domain.Verdict {
	return v.Inspect(photo, declared, now).Verdict
}

// Inspect is Verify with the intermediate measurements attached.
func (v *PhotoVerifier) Inspect(photo io.ReadSeeker, declared domain.GeoPoint, now time.Time) (report VerificationReport) {
	// The whole file is inspected regardless of where the caller left it.
	if offset, err := photo.Seek(0, io.SeekCurrent); err == nil {
		defer func() { _, _ = photo.Seek(offset, io.SeekStart) }()
		if _, err := photo.Seek(0, io.SeekStart); err != nil {
			return VerificationReport{Verdict: domain.Unverified(domain.CauseMetadataAbsent)}
		}
	}
	defer func() {
		if recover() != nil {
			report = VerificationReport{Verdict: domain.Unverified(domain.CauseMetadataAbsent)}
		}
	}()

	md, err := v.extractor.Extract(photo)
	if err != nil || md == nil {
		return VerificationReport{Verdict: domain.Unverified(domain.CauseMetadataAbsent)}
	}
	if md.GPS == nil {
		return VerificationReport{Verdict: domain.Unverified(domain.CauseGPSMissing)}
	}

	point, err := imageLocation(md.GPS)
	if err != nil {
		return VerificationReport{Verdict: domain.Unverified(domain.CauseMalformedCoordinate)}
	}
	if !geospatial.ValidLatLon(declared.Lat, declared.Lng) {
		return VerificationReport{Verdict: domain.Unverified(domain.CauseDeclaredInvalid)}
	}

	distance := geospatial.Haversine(point.Lat, point.Lng, declared.Lat, declared.Lng)
	report.DistanceMeters = &distance
	if distance > v.maxDistance {
		report.Verdict = domain.Unverified(domain.CauseDistanceExceeded)
		return report
	}

	if md.CaptureTime == "" {
		report.Verdict = domain.Unverified(domain.CauseTimestampMissing)
		return report
	}
	captured, err := time.ParseInLocation(domain.ExifTimeLayout, md.CaptureTime, now.Location())
	if err != nil {
		report.Verdict = domain.Unverified(domain.CauseTimestampMissing)
		return report
	}
	age := now.Sub(captured)
	report.Age = &age
	if age > v.maxAge {
		report.Verdict = domain.Unverified(domain.CauseTimestampStale)
		return report
	}

	report.Verdict = domain.VerifiedVerdict()
	return report
}

// imageLocation converts the raw GPS block to decimal degrees.
func imageLocation(gps *domain.RawGPS) (domain.GeoPoint, error) {
	lat, err := geospatial.SexagesimalToDecimal(gps.Latitude, gps.LatitudeRef)
	if err != nil {
		return domain.GeoPoint{}, err
	}
	lng, err := geospatial.SexagesimalToDecimal(gps.Longitude, gps.LongitudeRef)
	if err != nil {
		return domain.GeoPoint{}, err
	}
	if !geospatial.ValidLatLon(lat, lng) {
		return domain.GeoPoint{}, fmt.Errorf("%w: (%f, %f) out of range", domain.ErrMalformedCoordinate, lat, lng)
	}
	return domain.GeoPoint{Lat: lat, Lng: lng}, nil
}
