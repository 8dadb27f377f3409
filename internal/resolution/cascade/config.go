package cascade

import (
	"fmt"
	"strings"

	"npimatch/internal/resolution/models"
	dErrors "npimatch/pkg/domain-errors"
	platformstrings "npimatch/pkg/platform/strings"
)

const (
	// DefaultLimit is the per-identity result bound.
	DefaultLimit = 5

	// DefaultFetchCap is the minimum number of records requested per
	// directory query, so lenient strategies rank over a useful pool.
	DefaultFetchCap = 200
)

// Config is the read-only resolution configuration shared by every identity
// in a batch.
type Config struct {
	// Jurisdictions restricts queries to these codes. Empty is unrestricted.
	Jurisdictions []string

	// PreferredJurisdiction is surfaced first. Defaults to the first
	// jurisdiction of the filter.
	PreferredJurisdiction string

	// MaxStrictness is the loosest strategy attempted.
	MaxStrictness models.MatchLevel

	// Limit bounds the candidates returned per identity.
	Limit int

	// FetchCap is the per-query record cap; the effective cap is
	// max(Limit, FetchCap).
	FetchCap int
}

// DefaultConfig attempts every strategy with no jurisdiction filter.
func DefaultConfig() Config {
	return Config{
		MaxStrictness: models.MatchLevelLimitedPotential,
		Limit:         DefaultLimit,
		FetchCap:      DefaultFetchCap,
	}
}

// Normalized upper-cases and dedupes jurisdiction codes.
func (c Config) Normalized() Config {
	c.Jurisdictions = platformstrings.DedupeAndTrimUpper(c.Jurisdictions)
	c.PreferredJurisdiction = strings.ToUpper(strings.TrimSpace(c.PreferredJurisdiction))
	if c.FetchCap == 0 {
		c.FetchCap = DefaultFetchCap
	}
	return c
}

// Validate rejects configurations that cannot run a batch.
func (c Config) Validate() error {
	if c.Limit <= 0 {
		return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("per_identity_limit must be positive, got %d", c.Limit))
	}
	if c.FetchCap < 0 {
		return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("fetch_cap must not be negative, got %d", c.FetchCap))
	}
	if !c.MaxStrictness.IsStrategy() {
		return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("max_strictness %q is not a strategy", c.MaxStrictness))
	}
	for _, code := range c.Jurisdictions {
		if !validJurisdiction(code) {
			return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("invalid jurisdiction code %q", code))
		}
	}
	if c.PreferredJurisdiction != "" {
		if !validJurisdiction(c.PreferredJurisdiction) {
			return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("invalid preferred_jurisdiction %q", c.PreferredJurisdiction))
		}
		if len(c.Jurisdictions) > 0 && !containsFold(c.Jurisdictions, c.PreferredJurisdiction) {
			return dErrors.New(dErrors.CodeValidation, "preferred_jurisdiction must be one of jurisdictions")
		}
	}
	return nil
}

// Preferred is the jurisdiction surfaced first, or empty for none.
func (c Config) Preferred() string {
	if c.PreferredJurisdiction != "" {
		return c.PreferredJurisdiction
	}
	if len(c.Jurisdictions) > 0 {
		return c.Jurisdictions[0]
	}
	return ""
}

func (c Config) fetchCap() int {
	return max(c.Limit, c.FetchCap)
}

// orderedStates lists the per-query jurisdictions with the preferred one
// first. An empty filter yields a single unrestricted query.
func (c Config) orderedStates() []string {
	if len(c.Jurisdictions) == 0 {
		return []string{""}
	}
	preferred := c.Preferred()
	return append([]string{preferred}, platformstrings.Without(c.Jurisdictions, preferred)...)
}

// bestPasses splits the Best strategy into the preferred-jurisdiction pass and
// the pass over everything else.
func (c Config) bestPasses() [][]string {
	preferred := c.Preferred()
	if preferred == "" {
		return [][]string{c.orderedStates()}
	}
	passes := [][]string{{preferred}}
	if len(c.Jurisdictions) == 0 {
		return append(passes, []string{""})
	}
	if rest := platformstrings.Without(c.Jurisdictions, preferred); len(rest) > 0 {
		passes = append(passes, rest)
	}
	return passes
}

func validJurisdiction(code string) bool {
	if len(code) != 2 {
		return false
	}
	for _, r := range code {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}

func containsFold(values []string, target string) bool {
	for _, v := range values {
		if strings.EqualFold(v, target) {
			return true
		}
	}
	return false
}
