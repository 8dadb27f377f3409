package handler

import (
	"fmt"
	"strconv"
	"strings"

	"npimatch/internal/resolution/cascade"
	"npimatch/internal/resolution/models"
	dErrors "npimatch/pkg/domain-errors"
)

// MaxIdentities bounds one request's batch size.
const MaxIdentities = 5000

// ResolveRequest is the HTTP request body for POST /v1/resolve.
type ResolveRequest struct {
	Identities []IdentityRequest `json:"identities"`
	Options    *OptionsRequest   `json:"options,omitempty"`

	// Parsed values (populated by Validate)
	parsedIdentities []models.SuppliedIdentity
	parsedStrictness models.MatchLevel
}

// IdentityRequest is one identity to resolve.
type IdentityRequest struct {
	RowID      string `json:"row_id"`
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	MiddleName string `json:"middle_name"`
	Specialty  string `json:"specialty"`
	Suffix     string `json:"suffix"`
}

// OptionsRequest overrides the server's resolution defaults.
type OptionsRequest struct {
	Jurisdictions         []string `json:"jurisdictions"`
	PreferredJurisdiction string   `json:"preferred_jurisdiction"`
	MaxStrictness         string   `json:"max_strictness"`
	PerIdentityLimit      *int     `json:"per_identity_limit"`
}

// Validate validates and parses the request.
// Implements the Validatable interface for httputil.DecodeAndPrepare.
func (r *ResolveRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if len(r.Identities) == 0 {
		return dErrors.New(dErrors.CodeValidation, "identities must not be empty")
	}
	if len(r.Identities) > MaxIdentities {
		return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("at most %d identities per request", MaxIdentities))
	}

	r.parsedIdentities = make([]models.SuppliedIdentity, 0, len(r.Identities))
	for i, in := range r.Identities {
		identity := models.SuppliedIdentity{
			RowID:      in.RowID,
			FirstName:  in.FirstName,
			LastName:   in.LastName,
			MiddleName: in.MiddleName,
			Specialty:  in.Specialty,
			Suffix:     in.Suffix,
		}.Trimmed()
		if identity.RowID == "" {
			identity.RowID = strconv.Itoa(i + 1)
		}
		if identity.FirstName == "" || identity.LastName == "" {
			return dErrors.New(dErrors.CodeValidation,
				fmt.Sprintf("identities[%d]: first_name and last_name are required", i))
		}
		r.parsedIdentities = append(r.parsedIdentities, identity)
	}

	if r.Options != nil && strings.TrimSpace(r.Options.MaxStrictness) != "" {
		level, err := models.ParseMatchLevel(r.Options.MaxStrictness)
		if err != nil || !level.IsStrategy() {
			return dErrors.New(dErrors.CodeValidation,
				fmt.Sprintf("options.max_strictness %q is not a strategy", r.Options.MaxStrictness))
		}
		r.parsedStrictness = level
	}
	return nil
}

// ParsedIdentities returns the trimmed identities. Call after Validate.
func (r *ResolveRequest) ParsedIdentities() []models.SuppliedIdentity {
	return r.parsedIdentities
}

// Config applies the request's options over defaults. Call after Validate.
func (r *ResolveRequest) Config(defaults cascade.Config) cascade.Config {
	cfg := defaults
	if r.Options == nil {
		return cfg
	}
	if r.Options.Jurisdictions != nil {
		cfg.Jurisdictions = r.Options.Jurisdictions
		cfg.PreferredJurisdiction = ""
	}
	if r.Options.PreferredJurisdiction != "" {
		cfg.PreferredJurisdiction = r.Options.PreferredJurisdiction
	}
	if r.parsedStrictness.IsStrategy() {
		cfg.MaxStrictness = r.parsedStrictness
	}
	if r.Options.PerIdentityLimit != nil {
		cfg.Limit = *r.Options.PerIdentityLimit
	}
	return cfg
}
