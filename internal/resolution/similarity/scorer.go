package similarity

import (
	"fmt"
	"strings"

	"npimatch/internal/directory"
)

const (
	// DefaultFirstNameThreshold is the lenient first-name bar for the Good
	// strategy.
	DefaultFirstNameThreshold = 80

	// DefaultSpecialtyThreshold is the bar for reporting a specialty match.
	// It is stricter than the first-name bar.
	DefaultSpecialtyThreshold = 90
)

// Scorer computes name and specialty similarity with fixed thresholds.
type Scorer struct {
	firstNameThreshold int
	specialtyThreshold int
}

// Option configures a Scorer.
type Option func(*Scorer)

// WithFirstNameThreshold overrides DefaultFirstNameThreshold.
func WithFirstNameThreshold(n int) Option {
	return func(s *Scorer) {
		s.firstNameThreshold = n
	}
}

// WithSpecialtyThreshold overrides DefaultSpecialtyThreshold.
func WithSpecialtyThreshold(n int) Option {
	return func(s *Scorer) {
		s.specialtyThreshold = n
	}
}

// NewScorer validates thresholds: both within [0, 100] and the specialty
// threshold strictly above the first-name threshold.
func NewScorer(opts ...Option) (*Scorer, error) {
	s := &Scorer{
		firstNameThreshold: DefaultFirstNameThreshold,
		specialtyThreshold: DefaultSpecialtyThreshold,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.firstNameThreshold < 0 || s.firstNameThreshold > 100 {
		return nil, fmt.Errorf("first name threshold %d outside [0, 100]", s.firstNameThreshold)
	}
	if s.specialtyThreshold < 0 || s.specialtyThreshold > 100 {
		return nil, fmt.Errorf("specialty threshold %d outside [0, 100]", s.specialtyThreshold)
	}
	if s.specialtyThreshold <= s.firstNameThreshold {
		return nil, fmt.Errorf("specialty threshold %d must exceed first name threshold %d",
			s.specialtyThreshold, s.firstNameThreshold)
	}
	return s, nil
}

// NameScore compares full names ("first last").
func (s *Scorer) NameScore(suppliedFirst, suppliedLast string, rec directory.Record) int {
	return TokenSortRatio(suppliedFirst+" "+suppliedLast, rec.FirstName+" "+rec.LastName)
}

// FirstNameScore compares first names only.
func (s *Scorer) FirstNameScore(suppliedFirst, candidateFirst string) int {
	return TokenSortRatio(suppliedFirst, candidateFirst)
}

// FirstNameMatches applies the lenient first-name threshold.
func (s *Scorer) FirstNameMatches(suppliedFirst, candidateFirst string) bool {
	return s.FirstNameScore(suppliedFirst, candidateFirst) >= s.firstNameThreshold
}

// SpecialtyScore is the best score of the supplied specialty against any of
// the taxonomies. No specialty or no taxonomies scores 0.
func (s *Scorer) SpecialtyScore(specialty string, taxonomies []directory.Taxonomy) int {
	supplied := NormalizeSpecialty(specialty)
	if supplied == "" {
		return 0
	}
	best := 0
	for _, t := range taxonomies {
		best = max(best, TokenSortRatio(supplied, NormalizeSpecialty(t.Description)))
	}
	return best
}

// SpecialtyMatched is true only when a specialty was supplied and the score
// meets the specialty threshold.
func (s *Scorer) SpecialtyMatched(specialty string, score int) bool {
	return strings.TrimSpace(specialty) != "" && score >= s.specialtyThreshold
}

// NormalizeSpecialty keeps the leading clause, cut at the first comma or slash.
func NormalizeSpecialty(s string) string {
	if i := strings.IndexAny(s, ",/"); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}

// FormerNameMatch compares the supplied name exactly (trimmed, case-insensitive)
// against each former name, also trying the first name with its last token
// removed.
func FormerNameMatch(first, last string, former []directory.FormerName) bool {
	if len(former) == 0 {
		return false
	}
	firsts := []string{first}
	if tokens := strings.Fields(first); len(tokens) > 1 {
		firsts = append(firsts, strings.Join(tokens[:len(tokens)-1], " "))
	}
	for _, f := range former {
		if !EqualName(f.LastName, last) {
			continue
		}
		for _, candidate := range firsts {
			if EqualName(f.FirstName, candidate) {
				return true
			}
		}
	}
	return false
}

// EqualName is trimmed, case-insensitive equality. Empty names never match.
func EqualName(a, b string) bool {
	a, b = strings.TrimSpace(a), strings.TrimSpace(b)
	return a != "" && strings.EqualFold(a, b)
}
