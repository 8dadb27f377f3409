package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"npimatch/internal/directory"
	"npimatch/internal/resolution/batch"
	"npimatch/internal/resolution/cascade"
	"npimatch/internal/resolution/handler/mocks"
	"npimatch/internal/resolution/models"
	dErrors "npimatch/pkg/domain-errors"
)

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks Service
type ResolveHandlerSuite struct {
	suite.Suite
	service *mocks.MockService
	router  chi.Router
}

func TestResolveHandlerSuite(t *testing.T) {
	suite.Run(t, new(ResolveHandlerSuite))
}

func (s *ResolveHandlerSuite) SetupTest() {
	ctrl := gomock.NewController(s.T())
	s.service = mocks.NewMockService(ctrl)
	h := New(s.service, slog.New(slog.NewTextHandler(io.Discard, nil)))
	s.router = chi.NewRouter()
	h.Register(s.router)
}

func (s *ResolveHandlerSuite) post(body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/v1/resolve", bytes.NewBufferString(body))
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *ResolveHandlerSuite) decodeError(w *httptest.ResponseRecorder) map[string]string {
	var body map[string]string
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func (s *ResolveHandlerSuite) TestResolveSuccess() {
	s.service.EXPECT().Defaults().Return(cascade.DefaultConfig())
	s.service.EXPECT().Resolve(gomock.Any(), []models.SuppliedIdentity{
		{RowID: "r1", FirstName: "John", LastName: "Smith"},
		{RowID: "2", FirstName: "Jane", LastName: "Doe", Specialty: "Pediatrics"},
	}, cascade.DefaultConfig()).
		DoAndReturn(func(_ context.Context, ids []models.SuppliedIdentity, _ cascade.Config) (batch.Batch, error) {
			return batch.Batch{
				ID:       "batch-1",
				Duration: 12 * time.Millisecond,
				Results: []models.Result{
					{
						Identity: ids[0],
						Level:    models.MatchLevelBest,
						Candidates: []models.ScoredCandidate{{
							Candidate: directory.Record{NPI: "1000000001", FirstName: "JOHN", LastName: "SMITH"},
							Level:     models.MatchLevelBest,
						}},
					},
					models.NoMatch(ids[1]),
				},
			}, nil
		})

	w := s.post(`{"identities":[
		{"row_id":"r1","first_name":" John ","last_name":"Smith"},
		{"first_name":"Jane","last_name":"Doe","specialty":"Pediatrics"}
	]}`)

	s.Equal(http.StatusOK, w.Code)
	var resp ResolveResponse
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	s.Equal("batch-1", resp.BatchID)
	s.Equal(int64(12), resp.DurationMS)
	s.Require().Len(resp.Rows, 2)
	s.Equal("1000000001", resp.Rows[0].NPI)
	s.Equal("Best", resp.Rows[0].MatchLevel)
	s.Equal("No Match", resp.Rows[1].MatchLevel)
	s.Equal(2, resp.Summary.Identities)
	s.Equal(1, resp.Summary.ByLevel["Best"])
}

func (s *ResolveHandlerSuite) TestOptionsOverrideDefaults() {
	limit := 2
	want := cascade.DefaultConfig()
	want.Jurisdictions = []string{"ny", "NJ"}
	want.PreferredJurisdiction = "NJ"
	want.MaxStrictness = models.MatchLevelGood
	want.Limit = limit

	base := cascade.DefaultConfig()
	base.PreferredJurisdiction = "CA"
	s.service.EXPECT().Defaults().Return(base)
	s.service.EXPECT().Resolve(gomock.Any(), gomock.Any(), want).Return(batch.Batch{ID: "b"}, nil)

	w := s.post(`{"identities":[{"first_name":"John","last_name":"Smith"}],
		"options":{"jurisdictions":["ny","NJ"],"preferred_jurisdiction":"NJ","max_strictness":"good","per_identity_limit":2}}`)

	s.Equal(http.StatusOK, w.Code)
}

func (s *ResolveHandlerSuite) TestServiceValidationErrorIsBadRequest() {
	s.service.EXPECT().Defaults().Return(cascade.DefaultConfig())
	s.service.EXPECT().Resolve(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(batch.Batch{}, dErrors.New(dErrors.CodeValidation, "per_identity_limit must be positive, got 0"))

	w := s.post(`{"identities":[{"first_name":"John","last_name":"Smith"}],"options":{"per_identity_limit":0}}`)

	s.Equal(http.StatusBadRequest, w.Code)
	body := s.decodeError(w)
	s.Equal("validation_error", body["error"])
	s.Contains(body["error_description"], "per_identity_limit")
}

func (s *ResolveHandlerSuite) TestRequestValidation() {
	tests := []struct {
		name string
		body string
		code string
	}{
		{"malformed json", `{"identities":`, "bad_request"},
		{"empty identities", `{"identities":[]}`, "validation_error"},
		{"missing last name", `{"identities":[{"first_name":"John","last_name":"  "}]}`, "validation_error"},
		{"unknown strictness", `{"identities":[{"first_name":"a","last_name":"b"}],"options":{"max_strictness":"excellent"}}`, "validation_error"},
		{"no match strictness", `{"identities":[{"first_name":"a","last_name":"b"}],"options":{"max_strictness":"no match"}}`, "validation_error"},
	}
	for _, tt := range tests {
		s.Run(tt.name, func() {
			w := s.post(tt.body)
			s.Equal(http.StatusBadRequest, w.Code)
			s.Equal(tt.code, s.decodeError(w)["error"])
		})
	}
}

func (s *ResolveHandlerSuite) TestTooManyIdentities() {
	var b strings.Builder
	b.WriteString(`{"identities":[`)
	for i := range MaxIdentities + 1 {
		if i > 0 {
			b.WriteString(",")
		}
		b.WriteString(`{"first_name":"a","last_name":"b"}`)
	}
	b.WriteString(`]}`)

	w := s.post(b.String())

	s.Equal(http.StatusBadRequest, w.Code)
	s.Contains(s.decodeError(w)["error_description"], "at most")
}

func TestConfigWithoutOptions(t *testing.T) {
	req := &ResolveRequest{Identities: []IdentityRequest{{FirstName: "a", LastName: "b"}}}
	if err := req.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	defaults := cascade.DefaultConfig()
	defaults.Jurisdictions = []string{"NY"}
	got := req.Config(defaults)
	if got.Limit != defaults.Limit || len(got.Jurisdictions) != 1 {
		t.Fatalf("expected defaults unchanged, got %+v", got)
	}
	if req.ParsedIdentities()[0].RowID != "1" {
		t.Fatalf("expected 1-based row id, got %q", req.ParsedIdentities()[0].RowID)
	}
}
