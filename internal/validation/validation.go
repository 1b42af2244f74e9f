package validation

import (
	"strings"

	"github.com/kjstillabower/weather-cache-proxy/internal/apierror"
)

// MsgLocationRequired is returned for absent, repeated, or blank location values.
const MsgLocationRequired = `City parameter is required (e.g., "London" or "48.8566,2.3522")`

// ValidateLocation checks the raw query values for the location parameter and returns
// the sanitized location. Exactly one value must be present; repeated parameters
// (?city=a&city=b) are rejected as non-string input.
// Failures are *apierror.Error with status 400 and code VALIDATION_ERROR.
func ValidateLocation(values []string) (string, error) {
	if len(values) != 1 {
		return "", apierror.Validation(MsgLocationRequired)
	}
	if strings.TrimSpace(values[0]) == "" {
		return "", apierror.Validation(MsgLocationRequired)
	}
	return SanitizeLocation(values[0]), nil
}

// SanitizeLocation trims surrounding whitespace and percent-encodes commas so
// coordinate pairs form stable cache keys. Existing escapes (e.g. %20) are kept.
// Sanitizing an already-sanitized value returns it unchanged.
func SanitizeLocation(s string) string {
	return strings.ReplaceAll(strings.TrimSpace(s), ",", "%2C")
}
