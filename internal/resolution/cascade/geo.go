package cascade

import "npimatch/internal/resolution/models"

// Prioritize moves candidates with an address in jurisdiction ahead of the
// rest. Both partitions keep their incoming order. An empty jurisdiction
// returns the input order unchanged.
func Prioritize(candidates []models.ScoredCandidate, jurisdiction string) []models.ScoredCandidate {
	if jurisdiction == "" {
		return candidates
	}
	in := make([]models.ScoredCandidate, 0, len(candidates))
	var out []models.ScoredCandidate
	for _, c := range candidates {
		if c.Candidate.HasAddressIn(jurisdiction) {
			in = append(in, c)
		} else {
			out = append(out, c)
		}
	}
	return append(in, out...)
}
