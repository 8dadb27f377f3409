package main

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"npimatch/internal/resolution/models"
	dErrors "npimatch/pkg/domain-errors"
)

func TestReadRosterTabDelimitedAliases(t *testing.T) {
	input := "\xef\xbb\xbfRec_ID\tFirst Name\tLast Name\tMiddle_Name\tSpecialty\tSuffix\n" +
		"a-1\t John \tSmith\tQ\tFamily Medicine\tJr\n" +
		"\tJane\tDoe\t\t\t\n"

	got, err := readRoster(strings.NewReader(input), "auto", "auto")

	require.NoError(t, err)
	assert.Equal(t, []models.SuppliedIdentity{
		{RowID: "a-1", FirstName: "John", LastName: "Smith", MiddleName: "Q", Specialty: "Family Medicine", Suffix: "Jr"},
		{RowID: "2", FirstName: "Jane", LastName: "Doe"},
	}, got)
}

func TestReadRosterCommaDelimited(t *testing.T) {
	input := "first_name,last_name,specialty\n" +
		"John,Smith,\"Pediatrics, General\"\n" +
		",,\n" +
		"Mary Ann,Jones,\n"

	got, err := readRoster(strings.NewReader(input), "comma", "utf-8")

	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "1", got[0].RowID)
	assert.Equal(t, "Pediatrics, General", got[0].Specialty)
	assert.Equal(t, "2", got[1].RowID)
	assert.Equal(t, "Mary Ann", got[1].FirstName)
}

func TestReadRosterWindows1252(t *testing.T) {
	input := "rec_id\tfirst_name\tlast_name\n1\tJos\xe9\tN\xfa\xf1ez\n"

	for _, encoding := range []string{"auto", "cp1252"} {
		t.Run(encoding, func(t *testing.T) {
			got, err := readRoster(strings.NewReader(input), "auto", encoding)

			require.NoError(t, err)
			require.Len(t, got, 1)
			assert.Equal(t, "José", got[0].FirstName)
			assert.Equal(t, "Núñez", got[0].LastName)
			assert.True(t, utf8.ValidString(got[0].FirstName+got[0].LastName))
		})
	}
}

func TestReadRosterAutoKeepsUTF8(t *testing.T) {
	got, err := readRoster(strings.NewReader("first_name,last_name\nJosé,Núñez\n"), "auto", "auto")

	require.NoError(t, err)
	assert.Equal(t, "José", got[0].FirstName)
	assert.Equal(t, "Núñez", got[0].LastName)
}

func TestReadRosterErrors(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		delimiter string
		encoding  string
		contains  string
	}{
		{"empty", "", "auto", "auto", "empty"},
		{"missing last name column", "first_name,specialty\nJohn,x\n", "auto", "auto", "last_name"},
		{"missing value", "first_name,last_name\nJohn,\n", "auto", "auto", "line 2"},
		{"unknown delimiter", "first_name,last_name\n", "pipe", "auto", "delimiter"},
		{"unknown encoding", "first_name,last_name\n", "auto", "latin9", "encoding"},
		{"invalid utf-8", "first_name,last_name\nJos\xe9,Smith\n", "auto", "utf-8", "utf-8"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := readRoster(strings.NewReader(tt.input), tt.delimiter, tt.encoding)
			require.Error(t, err)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
			assert.Contains(t, err.Error(), tt.contains)
		})
	}
}
