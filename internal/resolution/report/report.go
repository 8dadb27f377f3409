// Package report flattens resolution results into one output row per
// candidate and summarises a batch.
package report

import (
	"slices"
	"strconv"

	"npimatch/internal/resolution/models"
)

const (
	maxSpecialties = 2
	maxAddresses   = 3
)

// Row is one output line. A NoMatch identity yields exactly one row with
// Result 0 and empty candidate fields.
type Row struct {
	RowID              string `json:"row_id"`
	FirstNameSupplied  string `json:"first_name_supplied"`
	LastNameSupplied   string `json:"last_name_supplied"`
	MiddleNameSupplied string `json:"middle_name_supplied"`
	SpecialtySupplied  string `json:"specialty_supplied"`
	SuffixSupplied     string `json:"suffix_supplied"`
	MatchLevel         string `json:"match_level"`
	SpecialtyMatched   bool   `json:"specialty_matched"`
	ResultCount        int    `json:"result_count"`
	Result             int    `json:"result"`
	NPI                string `json:"npi"`
	FirstName          string `json:"first_name"`
	MiddleName         string `json:"middle_name"`
	LastName           string `json:"last_name"`
	Credential         string `json:"credential"`
	Specialty1         string `json:"specialty_1"`
	Specialty2         string `json:"specialty_2"`
	Address1           string `json:"address_1"`
	City1              string `json:"city_1"`
	State1             string `json:"state_1"`
	Address2           string `json:"address_2"`
	City2              string `json:"city_2"`
	State2             string `json:"state_2"`
	Address3           string `json:"address_3"`
	City3              string `json:"city_3"`
	State3             string `json:"state_3"`
}

// Header lists the column names in Values order.
func Header() []string {
	return []string{
		"row_id", "first_name_supplied", "last_name_supplied", "middle_name_supplied",
		"specialty_supplied", "suffix_supplied", "match_level", "specialty_matched",
		"result_count", "result", "npi", "first_name", "middle_name", "last_name",
		"credential", "specialty_1", "specialty_2",
		"address_1", "city_1", "state_1",
		"address_2", "city_2", "state_2",
		"address_3", "city_3", "state_3",
	}
}

// Values renders the row as strings in Header order.
func (r Row) Values() []string {
	return []string{
		r.RowID, r.FirstNameSupplied, r.LastNameSupplied, r.MiddleNameSupplied,
		r.SpecialtySupplied, r.SuffixSupplied, r.MatchLevel, strconv.FormatBool(r.SpecialtyMatched),
		strconv.Itoa(r.ResultCount), strconv.Itoa(r.Result), r.NPI, r.FirstName, r.MiddleName, r.LastName,
		r.Credential, r.Specialty1, r.Specialty2,
		r.Address1, r.City1, r.State1,
		r.Address2, r.City2, r.State2,
		r.Address3, r.City3, r.State3,
	}
}

// Rows flattens results in order.
func Rows(results []models.Result) []Row {
	rows := make([]Row, 0, len(results))
	for _, res := range results {
		rows = append(rows, rowsFor(res)...)
	}
	return rows
}

func rowsFor(res models.Result) []Row {
	base := Row{
		RowID:              res.Identity.RowID,
		FirstNameSupplied:  res.Identity.FirstName,
		LastNameSupplied:   res.Identity.LastName,
		MiddleNameSupplied: res.Identity.MiddleName,
		SpecialtySupplied:  res.Identity.Specialty,
		SuffixSupplied:     res.Identity.Suffix,
		MatchLevel:         res.Level.String(),
		ResultCount:        len(res.Candidates),
	}
	if len(res.Candidates) == 0 {
		base.MatchLevel = models.MatchLevelNoMatch.String()
		return []Row{base}
	}

	rows := make([]Row, 0, len(res.Candidates))
	for i, sc := range res.Candidates {
		row := base
		rec := sc.Candidate
		row.Result = i + 1
		row.SpecialtyMatched = sc.SpecialtyMatched
		row.NPI = rec.NPI
		row.FirstName = rec.FirstName
		row.MiddleName = rec.MiddleName
		row.LastName = rec.LastName
		row.Credential = rec.Credential

		specialties := []*string{&row.Specialty1, &row.Specialty2}
		for j, t := range rec.Taxonomies[:min(len(rec.Taxonomies), maxSpecialties)] {
			*specialties[j] = t.Description
		}

		addresses := [][3]*string{
			{&row.Address1, &row.City1, &row.State1},
			{&row.Address2, &row.City2, &row.State2},
			{&row.Address3, &row.City3, &row.State3},
		}
		for j, a := range rec.Addresses[:min(len(rec.Addresses), maxAddresses)] {
			*addresses[j][0] = a.Street
			*addresses[j][1] = a.City
			*addresses[j][2] = a.State
		}
		rows = append(rows, row)
	}
	return rows
}

// Summary is the per-batch distribution of match levels and result counts.
type Summary struct {
	Identities    int            `json:"identities"`
	ByLevel       map[string]int `json:"by_level"`
	ByResultCount map[int]int    `json:"by_result_count"`
	Degraded      int            `json:"degraded"`
}

// Summarize counts identities, not rows.
func Summarize(results []models.Result) Summary {
	s := Summary{
		Identities:    len(results),
		ByLevel:       make(map[string]int),
		ByResultCount: make(map[int]int),
	}
	for _, res := range results {
		s.ByLevel[res.Level.String()]++
		s.ByResultCount[len(res.Candidates)]++
		if res.Err != nil {
			s.Degraded++
		}
	}
	return s
}

// Levels lists the summary's match levels in cascade order, NoMatch last.
func (s Summary) Levels() []string {
	var out []string
	for _, level := range append(slices.Clone(models.Strategies), models.MatchLevelNoMatch) {
		if _, ok := s.ByLevel[level.String()]; ok {
			out = append(out, level.String())
		}
	}
	return out
}

// ResultCounts lists the observed result counts in ascending order.
func (s Summary) ResultCounts() []int {
	out := make([]int, 0, len(s.ByResultCount))
	for n := range s.ByResultCount {
		out = append(out, n)
	}
	slices.Sort(out)
	return out
}
