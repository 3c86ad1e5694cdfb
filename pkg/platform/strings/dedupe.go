// Package strings normalises user-supplied string lists such as query filters.
package strings

import (
	"strings"
)

// SplitList flattens repeated and comma-separated values into one slice.
//
//	SplitList([]string{"started,completed", "frozen"})
//	// []string{"started", "completed", "frozen"}
func SplitList(values []string) []string {
	var out []string
	for _, v := range values {
		out = append(out, strings.Split(v, ",")...)
	}
	return out
}

// DedupeAndTrimLower trims, lowercases and deduplicates values, dropping
// blanks. First occurrence wins.
func DedupeAndTrimLower(values []string) []string {
	if len(values) == 0 {
		return values
	}

	seen := make(map[string]struct{}, len(values))
	result := make([]string, 0, len(values))
	for _, v := range values {
		key := strings.ToLower(strings.TrimSpace(v))
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		result = append(result, key)
	}
	return result
}
