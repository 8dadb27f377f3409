// Package strings provides string list utilities shared by config parsing and
// request validation.
package strings

import (
	"strings"
)

// DedupeAndTrimUpper removes duplicates and empty strings from a slice,
// trimming whitespace and upper-casing each element. Order is preserved.
// Useful for jurisdiction codes, which compare case-insensitively.
//
// Example:
//
//	DedupeAndTrimUpper([]string{" ny", "NJ", "Ny", ""})
//	// Returns: []string{"NY", "NJ"}
func DedupeAndTrimUpper(values []string) []string {
	if len(values) == 0 {
		return values
	}

	seen := make(map[string]struct{}, len(values))
	result := make([]string, 0, len(values))

	for _, v := range values {
		trimmed := strings.ToUpper(strings.TrimSpace(v))
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; !ok {
			seen[trimmed] = struct{}{}
			result = append(result, trimmed)
		}
	}

	return result
}

// SplitList splits a comma- or whitespace-separated list and normalises it
// with DedupeAndTrimUpper. An empty input yields nil.
//
// Example:
//
//	SplitList("ny, nj  CT,ny")
//	// Returns: []string{"NY", "NJ", "CT"}
func SplitList(raw string) []string {
	fields := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t'
	})
	if len(fields) == 0 {
		return nil
	}
	return DedupeAndTrimUpper(fields)
}

// Without returns values minus the excluded element, preserving order.
func Without(values []string, excluded string) []string {
	result := make([]string, 0, len(values))
	for _, v := range values {
		if v != excluded {
			result = append(result, v)
		}
	}
	return result
}
