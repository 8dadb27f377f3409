package main

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"npimatch/internal/resolution/batch"
	"npimatch/internal/resolution/report"
	dErrors "npimatch/pkg/domain-errors"
)

const (
	formatCSV   = "csv"
	formatJSON  = "json"
	formatTable = "table"
)

type jsonOutput struct {
	BatchID    string         `json:"batch_id"`
	DurationMS int64          `json:"duration_ms"`
	Rows       []report.Row   `json:"rows"`
	Summary    report.Summary `json:"summary"`
}

func writeResults(w io.Writer, format string, b batch.Batch) error {
	rows := report.Rows(b.Results)
	switch strings.ToLower(format) {
	case "", formatCSV:
		cw := csv.NewWriter(w)
		if err := cw.Write(report.Header()); err != nil {
			return err
		}
		for _, row := range rows {
			if err := cw.Write(row.Values()); err != nil {
				return err
			}
		}
		cw.Flush()
		return cw.Error()
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(jsonOutput{
			BatchID:    b.ID,
			DurationMS: b.Duration.Milliseconds(),
			Rows:       rows,
			Summary:    report.Summarize(b.Results),
		})
	case formatTable:
		headers := []string{"Row", "Level", "#", "NPI", "Name", "Specialty", "City", "State"}
		values := make([][]string, 0, len(rows))
		for _, row := range rows {
			values = append(values, []string{
				row.RowID,
				row.MatchLevel,
				strconv.Itoa(row.Result),
				row.NPI,
				strings.Join(strings.Fields(row.FirstName+" "+row.MiddleName+" "+row.LastName), " "),
				row.Specialty1,
				row.City1,
				row.State1,
			})
		}
		_, err := fmt.Fprintln(w, renderTable(headers, values, []columnAlignment{alignLeft, alignLeft, alignRight}))
		return err
	default:
		return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("unknown output format %q", format))
	}
}

// writeSummary prints the match level and result count distributions.
func writeSummary(w io.Writer, b batch.Batch) {
	s := report.Summarize(b.Results)
	fmt.Fprintf(w, "Batch %s: %d identities in %s\n", b.ID, s.Identities, b.Duration.Round(time.Millisecond))

	levels := make([][]string, 0, len(s.ByLevel))
	for _, level := range s.Levels() {
		levels = append(levels, []string{level, strconv.Itoa(s.ByLevel[level])})
	}
	fmt.Fprintln(w, renderTable([]string{"Match Level", "Identities"}, levels, []columnAlignment{alignLeft, alignRight}))

	counts := make([][]string, 0, len(s.ByResultCount))
	for _, n := range s.ResultCounts() {
		counts = append(counts, []string{strconv.Itoa(n), strconv.Itoa(s.ByResultCount[n])})
	}
	fmt.Fprintln(w, renderTable([]string{"Results", "Identities"}, counts, []columnAlignment{alignRight, alignRight}))

	if s.Degraded > 0 {
		fmt.Fprintf(w, "%d identities degraded to No Match after errors\n", s.Degraded)
	}
}
