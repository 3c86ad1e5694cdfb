package models

import (
	"regexp"
	"strings"
)

var (
	panPattern      = regexp.MustCompile(`^[A-Z]{5}[0-9]{4}[A-Z]$`)
	aadhaarPattern  = regexp.MustCompile(`^[2-9][0-9]{11}$`)
	vpaPattern      = regexp.MustCompile(`^[A-Za-z0-9._-]+@[A-Za-z0-9]+$`)
	languagePattern = regexp.MustCompile(`^[a-z]{2}$`)
)

// NormalizePAN upper-cases and trims a permanent account number.
func NormalizePAN(pan string) string {
	return strings.ToUpper(strings.TrimSpace(pan))
}

// ValidPAN reports whether pan has the AAAAA9999A shape.
func ValidPAN(pan string) bool {
	return panPattern.MatchString(pan)
}

// ValidAadhaar reports whether number is a 12 digit Aadhaar not starting with 0 or 1.
func ValidAadhaar(number string) bool {
	return aadhaarPattern.MatchString(strings.ReplaceAll(number, " ", ""))
}

// AadhaarLast4 returns the only part of an Aadhaar number that is ever stored.
func AadhaarLast4(number string) string {
	number = strings.ReplaceAll(number, " ", "")
	if len(number) < 4 {
		return ""
	}
	return number[len(number)-4:]
}

// ValidVPA reports whether vpa looks like a UPI virtual payment address.
func ValidVPA(vpa string) bool {
	return vpaPattern.MatchString(vpa)
}

// ValidLanguage accepts ISO 639-1 style two letter codes.
func ValidLanguage(lang string) bool {
	return languagePattern.MatchString(lang)
}
