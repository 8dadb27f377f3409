package cascade

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"npimatch/internal/directory"
	"npimatch/internal/resolution/models"
)

func scored(npi string, states ...string) models.ScoredCandidate {
	return models.ScoredCandidate{Candidate: record(npi, "A", "B", states...)}
}

func candidateNPIs(candidates []models.ScoredCandidate) []string {
	out := make([]string, 0, len(candidates))
	for _, c := range candidates {
		out = append(out, c.Candidate.NPI)
	}
	return out
}

func TestPrioritize(t *testing.T) {
	candidates := []models.ScoredCandidate{
		scored("1", "CA"),
		scored("2", "NY"),
		scored("3"),
		scored("4", "NJ", "ny"),
		scored("5", "PA"),
	}

	t.Run("preferred partition first, stable within partitions", func(t *testing.T) {
		got := Prioritize(candidates, "NY")
		assert.Equal(t, []string{"2", "4", "1", "3", "5"}, candidateNPIs(got))
	})

	t.Run("empty jurisdiction keeps order", func(t *testing.T) {
		got := Prioritize(candidates, "")
		assert.Equal(t, []string{"1", "2", "3", "4", "5"}, candidateNPIs(got))
	})

	t.Run("no candidate in jurisdiction keeps order", func(t *testing.T) {
		got := Prioritize(candidates, "TX")
		assert.Equal(t, []string{"1", "2", "3", "4", "5"}, candidateNPIs(got))
	})

	t.Run("input is not reordered in place", func(t *testing.T) {
		Prioritize(candidates, "PA")
		assert.Equal(t, "1", candidates[0].Candidate.NPI)
	})

	t.Run("empty input", func(t *testing.T) {
		assert.Empty(t, Prioritize(nil, "NY"))
	})
}

func TestSeenSet(t *testing.T) {
	seen := newSeenSet()
	assert.True(t, seen.Accept("1"))
	assert.False(t, seen.Accept("1"))

	first := seen.Deduplicate([]models.ScoredCandidate{scored("2"), scored("1"), scored("2"), scored("3")})
	assert.Equal(t, []string{"2", "3"}, candidateNPIs(first))

	second := seen.Deduplicate([]models.ScoredCandidate{{Candidate: directory.Record{NPI: "3"}}, scored("4")})
	assert.Equal(t, []string{"4"}, candidateNPIs(second), "seen across passes")
}
