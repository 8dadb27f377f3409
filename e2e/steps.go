package e2e

import (
	"context"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/cucumber/godog"

	"npimatch/internal/directory"
	"npimatch/internal/resolution/handler"
	"npimatch/internal/resolution/models"
	"npimatch/internal/resolution/report"
	platformstrings "npimatch/pkg/platform/strings"
)

// RegisterSteps registers the resolution step definitions.
func RegisterSteps(ctx *godog.ScenarioContext, tc *TestContext) {
	s := &resolveSteps{tc: tc}

	ctx.Step(`^the registry contains:$`, s.registryContains)
	ctx.Step(`^the registry is unavailable$`, s.registryUnavailable)
	ctx.Step(`^the jurisdictions are "([^"]*)" preferring "([^"]*)"$`, s.jurisdictions)
	ctx.Step(`^the maximum strictness is "([^"]*)"$`, s.maxStrictness)
	ctx.Step(`^the rate limit is (\d+) requests? per minute$`, s.rateLimit)

	ctx.Step(`^I resolve:$`, s.resolve)
	ctx.Step(`^I resolve "([^"]*)" "([^"]*)" (\d+) times$`, s.resolveRepeatedly)

	ctx.Step(`^the response status should be (\d+)$`, s.statusShouldBe)
	ctx.Step(`^the error should be "([^"]*)"$`, s.errorShouldBe)
	ctx.Step(`^row "([^"]*)" should match at level "([^"]*)" with (\d+) candidates?$`, s.rowMatchesCount)
	ctx.Step(`^row "([^"]*)" should match at level "([^"]*)" with NPIs "([^"]*)"$`, s.rowMatchesNPIs)
	ctx.Step(`^row "([^"]*)" should have no match$`, s.rowHasNoMatch)
	ctx.Step(`^the summary should count (\d+) identit(?:y|ies) at level "([^"]*)"$`, s.summaryCounts)
}

type resolveSteps struct {
	tc      *TestContext
	options *handler.OptionsRequest
}

// tableRows maps each data row to its header names.
func tableRows(table *godog.Table) []map[string]string {
	if len(table.Rows) == 0 {
		return nil
	}
	header := table.Rows[0].Cells
	out := make([]map[string]string, 0, len(table.Rows)-1)
	for _, row := range table.Rows[1:] {
		values := make(map[string]string, len(header))
		for i, cell := range row.Cells {
			values[header[i].Value] = cell.Value
		}
		out = append(out, values)
	}
	return out
}

func (s *resolveSteps) registryContains(ctx context.Context, table *godog.Table) error {
	for _, row := range tableRows(table) {
		rec := directory.Record{
			NPI:       row["npi"],
			FirstName: row["first_name"],
			LastName:  row["last_name"],
			Addresses: []directory.Address{{State: row["state"]}},
		}
		if row["specialty"] != "" {
			rec.Taxonomies = []directory.Taxonomy{{Description: row["specialty"], Primary: true}}
		}
		s.tc.Records = append(s.tc.Records, rec)
	}
	return nil
}

func (s *resolveSteps) registryUnavailable(ctx context.Context) error {
	s.tc.Registry().FailWith(http.StatusServiceUnavailable)
	return nil
}

func (s *resolveSteps) opts() *handler.OptionsRequest {
	if s.options == nil {
		s.options = &handler.OptionsRequest{}
	}
	return s.options
}

func (s *resolveSteps) jurisdictions(ctx context.Context, codes, preferred string) error {
	s.opts().Jurisdictions = platformstrings.SplitList(codes)
	s.opts().PreferredJurisdiction = preferred
	return nil
}

func (s *resolveSteps) maxStrictness(ctx context.Context, level string) error {
	s.opts().MaxStrictness = level
	return nil
}

func (s *resolveSteps) rateLimit(ctx context.Context, n int) error {
	s.tc.Config.Server.RateLimit = n
	s.tc.Config.Server.RateLimitWindow = time.Minute
	return nil
}

func (s *resolveSteps) resolve(ctx context.Context, table *godog.Table) error {
	var identities []handler.IdentityRequest
	for _, row := range tableRows(table) {
		identities = append(identities, handler.IdentityRequest{
			RowID:      row["row_id"],
			FirstName:  row["first_name"],
			LastName:   row["last_name"],
			MiddleName: row["middle_name"],
			Specialty:  row["specialty"],
		})
	}
	return s.tc.POST(ctx, "/v1/resolve", handler.ResolveRequest{Identities: identities, Options: s.options})
}

func (s *resolveSteps) resolveRepeatedly(ctx context.Context, first, last string, times int) error {
	body := handler.ResolveRequest{Identities: []handler.IdentityRequest{{FirstName: first, LastName: last}}}
	for range times {
		if err := s.tc.POST(ctx, "/v1/resolve", body); err != nil {
			return err
		}
	}
	return nil
}

func (s *resolveSteps) statusShouldBe(ctx context.Context, want int) error {
	if got := s.tc.LastResponseStatus(); got != want {
		return fmt.Errorf("expected status %d, got %d", want, got)
	}
	return nil
}

func (s *resolveSteps) errorShouldBe(ctx context.Context, want string) error {
	var body map[string]string
	if err := s.tc.DecodeLastResponse(&body); err != nil {
		return err
	}
	if body["error"] != want {
		return fmt.Errorf("expected error %q, got %q", want, body["error"])
	}
	return nil
}

func (s *resolveSteps) rowsFor(rowID string) ([]report.Row, error) {
	var resp handler.ResolveResponse
	if err := s.tc.DecodeLastResponse(&resp); err != nil {
		return nil, err
	}
	var rows []report.Row
	for _, row := range resp.Rows {
		if row.RowID == rowID {
			rows = append(rows, row)
		}
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("no output rows for %q", rowID)
	}
	return rows, nil
}

func (s *resolveSteps) rowMatches(rowID, level string) ([]string, error) {
	rows, err := s.rowsFor(rowID)
	if err != nil {
		return nil, err
	}
	npis := make([]string, 0, len(rows))
	for _, row := range rows {
		if row.MatchLevel != level {
			return nil, fmt.Errorf("row %q: expected level %q, got %q", rowID, level, row.MatchLevel)
		}
		npis = append(npis, row.NPI)
	}
	return npis, nil
}

func (s *resolveSteps) rowMatchesCount(ctx context.Context, rowID, level string, want int) error {
	npis, err := s.rowMatches(rowID, level)
	if err != nil {
		return err
	}
	if len(npis) != want {
		return fmt.Errorf("row %q: expected %d candidates, got %v", rowID, want, npis)
	}
	return nil
}

func (s *resolveSteps) rowMatchesNPIs(ctx context.Context, rowID, level, want string) error {
	npis, err := s.rowMatches(rowID, level)
	if err != nil {
		return err
	}
	if expected := strings.Split(want, ","); !slices.Equal(npis, expected) {
		return fmt.Errorf("row %q: expected NPIs %v, got %v", rowID, expected, npis)
	}
	return nil
}

func (s *resolveSteps) rowHasNoMatch(ctx context.Context, rowID string) error {
	rows, err := s.rowsFor(rowID)
	if err != nil {
		return err
	}
	noMatch := models.MatchLevelNoMatch.String()
	if len(rows) != 1 || rows[0].MatchLevel != noMatch || rows[0].NPI != "" {
		return fmt.Errorf("row %q: expected a single %q row, got %+v", rowID, noMatch, rows)
	}
	return nil
}

func (s *resolveSteps) summaryCounts(ctx context.Context, want int, level string) error {
	var resp handler.ResolveResponse
	if err := s.tc.DecodeLastResponse(&resp); err != nil {
		return err
	}
	if got := resp.Summary.ByLevel[level]; got != want {
		return fmt.Errorf("expected %d identities at %q, got %d", want, level, got)
	}
	return nil
}
