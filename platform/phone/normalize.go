// Package phone provides phone number utilities.
// This is part of the platform layer and contains no business logic.
package phone

import (
	"strings"

	"github.com/nyaruka/phonenumbers"
)

const defaultRegion = "US"

// NormalizeE164 formats a phone number to E.164. If parsing fails, it returns the trimmed input.
func NormalizeE164(input string) string {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return trimmed
	}

	number, err := phonenumbers.Parse(trimmed, defaultRegion)
	if err != nil {
		return trimmed
	}

	return phonenumbers.Format(number, phonenumbers.E164)
}

// IsValidUS reports whether the input parses as a valid US number.
// This is the cheap local pre-check before the carrier lookup; numbers
// failing it are never sent to the lookup provider.
func IsValidUS(input string) bool {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return false
	}

	number, err := phonenumbers.Parse(trimmed, defaultRegion)
	if err != nil {
		return false
	}

	if !phonenumbers.IsValidNumberForRegion(number, defaultRegion) {
		return false
	}

	return true
}
