// Package profile holds the subscriber's declared and extracted attributes.
//
// A Profile is an open key-value map. A closed, versioned set of keys is
// recognised by the risk rules and the state machine; any other key is kept
// and ignored by evaluation.
package profile

import (
	"encoding/json"
	"fmt"
	"maps"
	"strconv"
	"strings"

	dErrors "onboard/pkg/domain-errors"
)

// SchemaVersion identifies the recognised key set below. Additions bump it.
const SchemaVersion = 1

// Recognised keys.
const (
	KeyPEP                = "pep"
	KeyTaxResident        = "tax_resident"
	KeyAge                = "age"
	KeyContribution       = "contribution_amount"
	KeyPAN                = "pan"
	KeyConfidence         = "ai_confidence"
	KeyVerificationMethod = "verification_method"
	KeyTier               = "tier"
	KeyVCIPCompleted      = "vcip_completed"
	KeyEDDCleared         = "edd_cleared"
	KeyFullName           = "full_name"
	KeyDateOfBirth        = "dob"
)

// Profile is a subscriber's attribute map.
type Profile map[string]any

// Recognized reports whether key belongs to the current schema version.
func Recognized(key string) bool {
	switch key {
	case KeyPEP, KeyTaxResident, KeyAge, KeyContribution, KeyPAN, KeyConfidence,
		KeyVerificationMethod, KeyTier, KeyVCIPCompleted, KeyEDDCleared,
		KeyFullName, KeyDateOfBirth:
		return true
	}
	return false
}

// ValidateFields rejects empty keys and non-scalar values.
func ValidateFields(fields map[string]any) error {
	for k, v := range fields {
		if strings.TrimSpace(k) == "" {
			return dErrors.New(dErrors.CodeValidation, "profile keys must not be empty")
		}
		switch v.(type) {
		case string, bool, float64, float32, int, int32, int64, json.Number:
		default:
			return dErrors.New(dErrors.CodeValidation,
				fmt.Sprintf("profile field %q must be a string, number or boolean", k))
		}
	}
	return nil
}

// Merge returns a copy of p with fields applied on top. Later values
// overwrite earlier ones; nothing is deleted.
func (p Profile) Merge(fields map[string]any) Profile {
	out := make(Profile, len(p)+len(fields))
	maps.Copy(out, p)
	maps.Copy(out, fields)
	return out
}

// Clone returns a shallow copy.
func (p Profile) Clone() Profile {
	if p == nil {
		return Profile{}
	}
	return maps.Clone(p)
}

// Flag interprets key as a yes/no answer. ok is false when the key is absent
// or the value cannot be read as a boolean.
func (p Profile) Flag(key string) (value bool, ok bool) {
	switch v := p[key].(type) {
	case bool:
		return v, true
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "yes", "y", "true", "1":
			return true, true
		case "no", "n", "false", "0":
			return false, true
		}
	case float64:
		return v != 0, true
	case int:
		return v != 0, true
	}
	return false, false
}

// Number interprets key as a decimal number.
func (p Profile) Number(key string) (float64, bool) {
	switch v := p[key].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return f, err == nil
	}
	return 0, false
}

// String returns the trimmed string value of key.
func (p Profile) String(key string) (string, bool) {
	v, ok := p[key].(string)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}
