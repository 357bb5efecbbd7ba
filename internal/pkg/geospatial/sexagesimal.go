package geospatial

import (
	"fmt"
	"math"
	"strings"

	"github.com/samirrijal/civicconnect/internal/core/domain"
)

// SexagesimalToDecimal converts a degrees/minutes/seconds triple and its
// hemisphere reference (N, S, E or W) to signed decimal degrees.
// Southern and western references yield non-positive values.
func SexagesimalToDecimal(dms domain.Sexagesimal, ref string) (float64, error) {
	sign, err := hemisphereSign(ref)
	if err != nil {
		return 0, err
	}

	deg, err := component("degrees", dms.Degrees)
	if err != nil {
		return 0, err
	}
	mins, err := component("minutes", dms.Minutes)
	if err != nil {
		return 0, err
	}
	sec, err := component("seconds", dms.Seconds)
	if err != nil {
		return 0, err
	}

	return sign * (deg + mins/60 + sec/3600), nil
}

// hemisphereSign trims the NUL padding EXIF ASCII fields carry.
func hemisphereSign(ref string) (float64, error) {
	switch strings.Trim(ref, "\x00 ") {
	case "N", "E":
		return 1, nil
	case "S", "W":
		return -1, nil
	}
	return 0, fmt.Errorf("%w: hemisphere reference %q", domain.ErrMalformedCoordinate, ref)
}

func component(name string, r domain.Rational) (float64, error) {
	v, err := r.Float()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", name, err)
	}
	if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%w: %s is %v", domain.ErrMalformedCoordinate, name, v)
	}
	return v, nil
}
