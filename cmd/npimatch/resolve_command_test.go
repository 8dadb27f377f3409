package main

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"npimatch/internal/directory"
	"npimatch/internal/directory/directorytest"
)

func newRegistry(t *testing.T) (*httptest.Server, *directorytest.Registry) {
	t.Helper()
	reg := directorytest.NewRegistry(directory.Record{
		NPI:        "1234567890",
		FirstName:  "JOHN",
		LastName:   "SMITH",
		Credential: "MD",
		Taxonomies: []directory.Taxonomy{{Description: "Family Medicine", Primary: true}},
		Addresses:  []directory.Address{{Street: "1 MAIN ST", City: "ALBANY", State: "NY"}},
	})
	return reg.Serve(t), reg
}

func runCLI(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

const roster = "Row_ID,First_Name,Last_Name\nr1,John,Smith\nr2,Zed,Nobody\n"

func TestResolveWritesCSV(t *testing.T) {
	srv, _ := newRegistry(t)

	out, errOut, err := runCLI(t, roster, "resolve", "--directory-url", srv.URL, "--log-level", "error")
	require.NoError(t, err)

	records, err := csv.NewReader(strings.NewReader(out)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "row_id", records[0][0])
	assert.Equal(t, []string{"r1", "Best", "1234567890"}, []string{records[1][0], records[1][6], records[1][10]})
	assert.Equal(t, []string{"r2", "No Match", "0"}, []string{records[2][0], records[2][6], records[2][9]})

	assert.Contains(t, errOut, "2 identities")
	assert.Contains(t, errOut, "No Match")
}

func TestResolveJSONToFile(t *testing.T) {
	srv, _ := newRegistry(t)
	dir := t.TempDir()
	input := filepath.Join(dir, "roster.txt")
	output := filepath.Join(dir, "out.json")
	require.NoError(t, os.WriteFile(input, []byte("First_Name\tLast_Name\nJohn\tSmith\n"), 0o600))

	_, _, err := runCLI(t, "", "resolve", "-i", input, "-o", output, "-f", "json", "-q",
		"--directory-url", srv.URL, "--state", "ny")
	require.NoError(t, err)

	data, err := os.ReadFile(output)
	require.NoError(t, err)
	var got jsonOutput
	require.NoError(t, json.Unmarshal(data, &got))
	assert.NotEmpty(t, got.BatchID)
	require.Len(t, got.Rows, 1)
	assert.Equal(t, "1", got.Rows[0].RowID)
	assert.Equal(t, "ALBANY", got.Rows[0].City1)
	assert.Equal(t, 1, got.Summary.ByLevel["Best"])
}

func TestResolveTableFormat(t *testing.T) {
	srv, _ := newRegistry(t)

	out, _, err := runCLI(t, roster, "resolve", "--format", "table", "--quiet", "--directory-url", srv.URL)
	require.NoError(t, err)

	assert.Contains(t, out, "JOHN SMITH")
	assert.Contains(t, out, "Family Medicine")
}

func TestResolveConfigFileAndFlagOverride(t *testing.T) {
	srv, reg := newRegistry(t)
	cfgPath := filepath.Join(t.TempDir(), "npimatch.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("directory:\n  url: "+srv.URL+"\nresolution:\n  max_strictness: best\ncache:\n  backend: none\n"), 0o600))

	out, _, err := runCLI(t, "first_name,last_name\nZed,Nobody\n", "resolve", "-c", cfgPath, "-q")
	require.NoError(t, err)
	assert.Contains(t, out, "No Match")
	assert.Len(t, reg.Requests(), 1, "best only, no split, single fetch")

	_, _, err = runCLI(t, "first_name,last_name\nZed,Nobody\n", "resolve", "-c", cfgPath, "-q", "--strictness", "good")
	require.NoError(t, err)
	assert.Len(t, reg.Requests(), 3, "flag widens the cascade to Good")
}

func TestResolveRejectsInvalidOptions(t *testing.T) {
	srv, _ := newRegistry(t)

	tests := []struct {
		name string
		args []string
	}{
		{"limit", []string{"--limit", "0"}},
		{"format", []string{"--format", "xml"}},
		{"strictness", []string{"--strictness", "excellent"}},
		{"preferred outside filter", []string{"--state", "NY", "--preferred", "CA"}},
		{"cache ttl", []string{"--cache-ttl", "soon"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"resolve", "-q", "--directory-url", srv.URL}, tt.args...)
			_, _, err := runCLI(t, roster, args...)
			assert.Error(t, err)
		})
	}
}
