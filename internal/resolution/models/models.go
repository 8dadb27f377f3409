// Package models holds the value types shared by the resolution packages.
package models

import (
	"strings"

	"npimatch/internal/directory"
)

// CandidateRecord is a directory record under consideration for an identity.
type CandidateRecord = directory.Record

// SuppliedIdentity is one input row to resolve. It is treated as immutable;
// derived variants are new values.
type SuppliedIdentity struct {
	RowID      string `json:"row_id"`
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	MiddleName string `json:"middle_name,omitempty"`
	Specialty  string `json:"specialty,omitempty"`
	Suffix     string `json:"suffix,omitempty"`
}

// Trimmed returns a copy with surrounding whitespace removed from every field.
func (s SuppliedIdentity) Trimmed() SuppliedIdentity {
	return SuppliedIdentity{
		RowID:      strings.TrimSpace(s.RowID),
		FirstName:  strings.TrimSpace(s.FirstName),
		LastName:   strings.TrimSpace(s.LastName),
		MiddleName: strings.TrimSpace(s.MiddleName),
		Specialty:  strings.TrimSpace(s.Specialty),
		Suffix:     strings.TrimSpace(s.Suffix),
	}
}

// HasSpecialty reports whether a specialty was supplied.
func (s SuppliedIdentity) HasSpecialty() bool {
	return strings.TrimSpace(s.Specialty) != ""
}

// SplitFirstName treats the last whitespace-delimited token of the first name
// as a middle name that was entered in the wrong field. The token becomes the
// middle name only when none was supplied. ok is false when the first name
// has a single token.
func (s SuppliedIdentity) SplitFirstName() (derived SuppliedIdentity, ok bool) {
	tokens := strings.Fields(s.FirstName)
	if len(tokens) < 2 {
		return s, false
	}
	derived = s
	derived.FirstName = strings.Join(tokens[:len(tokens)-1], " ")
	if strings.TrimSpace(s.MiddleName) == "" {
		derived.MiddleName = tokens[len(tokens)-1]
	}
	return derived, true
}

// ScoredCandidate is an accepted candidate with its match evidence.
type ScoredCandidate struct {
	Candidate        CandidateRecord `json:"candidate"`
	Level            MatchLevel      `json:"match_level"`
	NameScore        int             `json:"name_score"`
	SpecialtyScore   int             `json:"specialty_score"`
	SpecialtyMatched bool            `json:"specialty_matched"`
}

// Result is the resolution of one identity. An empty Candidates slice means
// NoMatch. Err is set only when resolution faulted and was degraded.
type Result struct {
	Identity   SuppliedIdentity  `json:"identity"`
	Level      MatchLevel        `json:"match_level"`
	Candidates []ScoredCandidate `json:"candidates"`
	Err        error             `json:"-"`
}

// NoMatch builds an empty result for identity.
func NoMatch(identity SuppliedIdentity) Result {
	return Result{Identity: identity, Level: MatchLevelNoMatch}
}

// Matched reports whether any candidate was accepted.
func (r Result) Matched() bool {
	return len(r.Candidates) > 0
}
