package cascade

import "npimatch/internal/resolution/models"

// seenSet records the NPIs already accepted for one identity's resolution.
type seenSet map[string]struct{}

func newSeenSet() seenSet {
	return make(seenSet)
}

// Accept marks npi as seen and reports whether it was new.
func (s seenSet) Accept(npi string) bool {
	if _, ok := s[npi]; ok {
		return false
	}
	s[npi] = struct{}{}
	return true
}

// Deduplicate keeps the first occurrence of every NPI not already seen.
func (s seenSet) Deduplicate(candidates []models.ScoredCandidate) []models.ScoredCandidate {
	out := make([]models.ScoredCandidate, 0, len(candidates))
	for _, c := range candidates {
		if s.Accept(c.Candidate.NPI) {
			out = append(out, c)
		}
	}
	return out
}
