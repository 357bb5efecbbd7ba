package domain

// Reasons persisted alongside an issue.
const (
	ReasonVerified = "Verified"
	ReasonInvalid  = "EXIF missing or invalid"
)

// VerificationCause records why a verdict came out the way it did.
// It is logged and exported as a metric label, never persisted.
type VerificationCause string

const (
	CauseOK                  VerificationCause = "ok"
	CauseMetadataAbsent      VerificationCause = "metadata_absent"
	CauseGPSMissing          VerificationCause = "gps_missing"
	CauseMalformedCoordinate VerificationCause = "malformed_coordinate"
	CauseDeclaredInvalid     VerificationCause = "declared_invalid"
	CauseDistanceExceeded    VerificationCause = "distance_exceeded"
	CauseTimestampMissing    VerificationCause = "timestamp_missing"
	CauseTimestampStale      VerificationCause = "timestamp_stale"
)

// Verdict is the outcome of photo authenticity verification.
type Verdict struct {
	Verified bool              `json:"verified"`
	Reason   string            `json:"reason"`
	Cause    VerificationCause `json:"-"`
}

// VerifiedVerdict returns the single accepting verdict.
func VerifiedVerdict() Verdict {
	return Verdict{Verified: true, Reason: ReasonVerified, Cause: CauseOK}
}

// Unverified returns a rejecting verdict for the given cause.
func Unverified(cause VerificationCause) Verdict {
	return Verdict{Verified: false, Reason: ReasonInvalid, Cause: cause}
}
