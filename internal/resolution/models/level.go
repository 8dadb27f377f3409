package models

import (
	"encoding/json"
	"fmt"
	"strings"
)

// MatchLevel names the cascade strategy that produced a result. Levels are
// ordered from strictest (Best) to loosest (NoMatch).
type MatchLevel int

const (
	MatchLevelNoMatch MatchLevel = iota
	MatchLevelBest
	MatchLevelGood
	MatchLevelPotential
	MatchLevelLimitedPotential
)

// Strategies lists the matchable levels in cascade order.
var Strategies = []MatchLevel{
	MatchLevelBest,
	MatchLevelGood,
	MatchLevelPotential,
	MatchLevelLimitedPotential,
}

var levelLabels = map[MatchLevel]string{
	MatchLevelNoMatch:          "No Match",
	MatchLevelBest:             "Best",
	MatchLevelGood:             "Good",
	MatchLevelPotential:        "Potential",
	MatchLevelLimitedPotential: "Limited Potential",
}

func (l MatchLevel) String() string {
	if s, ok := levelLabels[l]; ok {
		return s
	}
	return fmt.Sprintf("MatchLevel(%d)", int(l))
}

// IsStrategy reports whether l is one of the four cascade strategies.
func (l MatchLevel) IsStrategy() bool {
	return l >= MatchLevelBest && l <= MatchLevelLimitedPotential
}

// StricterThan orders levels; NoMatch is looser than every strategy.
func (l MatchLevel) StricterThan(other MatchLevel) bool {
	return l.rank() < other.rank()
}

func (l MatchLevel) rank() int {
	if l == MatchLevelNoMatch {
		return int(MatchLevelLimitedPotential) + 1
	}
	return int(l)
}

// ParseMatchLevel accepts labels case-insensitively, ignoring spaces,
// underscores, and hyphens ("limited_potential", "Limited Potential").
func ParseMatchLevel(s string) (MatchLevel, error) {
	norm := strings.NewReplacer(" ", "", "_", "", "-", "").Replace(strings.ToLower(strings.TrimSpace(s)))
	for level, label := range levelLabels {
		if strings.ReplaceAll(strings.ToLower(label), " ", "") == norm {
			return level, nil
		}
	}
	return MatchLevelNoMatch, fmt.Errorf("unknown match level %q", s)
}

func (l MatchLevel) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.String())
}

func (l *MatchLevel) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseMatchLevel(s)
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}
