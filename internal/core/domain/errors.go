package domain

import "errors"

var (
	// ErrNotFound is returned by repositories when no row matches.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a unique value already exists.
	ErrConflict = errors.New("already exists")
	// ErrInvalidInput wraps request validation failures.
	ErrInvalidInput = errors.New("invalid input")
	// ErrInvalidCredentials is returned by login for unknown email or bad password.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountInactive is returned by login for pending or blocked accounts.
	ErrAccountInactive = errors.New("account pending approval or blocked")
	// ErrNotWithdrawable is returned when a non-pending issue is withdrawn.
	ErrNotWithdrawable = errors.New("only pending complaints can be withdrawn")
	// ErrForbidden is returned when the authorization policy denies an action.
	ErrForbidden = errors.New("forbidden")

	// ErrMetadataAbsent means a photo carries no decodable EXIF block.
	ErrMetadataAbsent = errors.New("metadata absent")
	// ErrMalformedCoordinate means a sexagesimal triple or hemisphere
	// reference could not be interpreted.
	ErrMalformedCoordinate = errors.New("malformed coordinate")
)
