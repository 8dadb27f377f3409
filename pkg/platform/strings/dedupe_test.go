package strings

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDedupeAndTrimUpper(t *testing.T) {
	tests := []struct {
		name     string
		input    []string
		expected []string
	}{
		{
			name:     "nil slice",
			input:    nil,
			expected: nil,
		},
		{
			name:     "empty slice",
			input:    []string{},
			expected: []string{},
		},
		{
			name:     "upper-cases and trims",
			input:    []string{"  ny  ", "nj  "},
			expected: []string{"NY", "NJ"},
		},
		{
			name:     "removes case-insensitive duplicates preserving order",
			input:    []string{"NY", "nj", "ny", "CT", "Nj"},
			expected: []string{"NY", "NJ", "CT"},
		},
		{
			name:     "removes empty strings",
			input:    []string{"ny", "", "  ", "pa"},
			expected: []string{"NY", "PA"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := DedupeAndTrimUpper(tt.input)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestSplitList(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{
			name:     "empty string",
			input:    "",
			expected: nil,
		},
		{
			name:     "separators only",
			input:    " , ,",
			expected: nil,
		},
		{
			name:     "mixed separators",
			input:    "ny, nj  CT,ny",
			expected: []string{"NY", "NJ", "CT"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, SplitList(tt.input))
		})
	}
}

func TestWithout(t *testing.T) {
	assert.Equal(t, []string{"NJ", "CT"}, Without([]string{"NY", "NJ", "CT"}, "NY"))
	assert.Equal(t, []string{}, Without([]string{"NY"}, "NY"))
	assert.Equal(t, []string{}, Without(nil, "NY"))
}
