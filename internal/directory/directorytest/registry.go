// Package directorytest provides an in-process NPI registry for tests and
// local runs.
package directorytest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"

	"npimatch/internal/directory"
)

// Registry answers registry search requests from a fixed record set using
// the registry's wire format. Names match case-insensitively and a trailing
// "*" matches any suffix.
type Registry struct {
	records []directory.Record

	mu       sync.Mutex
	requests []directory.Query
	status   int
}

// NewRegistry serves records in the given order.
func NewRegistry(records ...directory.Record) *Registry {
	return &Registry{records: records}
}

// Serve starts an httptest server closed with the test.
func (r *Registry) Serve(t interface{ Cleanup(func()) }) *httptest.Server {
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

// FailWith makes every following request answer with status. Zero restores
// normal answers.
func (r *Registry) FailWith(status int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.status = status
}

// Requests returns the queries received so far, one per page.
func (r *Registry) Requests() []directory.Query {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]directory.Query(nil), r.requests...)
}

func (r *Registry) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	params := req.URL.Query()
	q := directory.Query{
		FirstName: params.Get("first_name"),
		LastName:  params.Get("last_name"),
		State:     params.Get("state"),
	}

	r.mu.Lock()
	r.requests = append(r.requests, q)
	status := r.status
	r.mu.Unlock()

	if status != 0 {
		w.WriteHeader(status)
		return
	}
	if q.FirstName == "" && q.LastName == "" {
		writeJSON(w, map[string]any{"Errors": []map[string]string{{
			"description": "No valid search criteria provided",
			"field":       "generic",
		}}})
		return
	}

	var matched []result
	for _, rec := range r.records {
		if nameMatches(q.FirstName, rec.FirstName) && nameMatches(q.LastName, rec.LastName) &&
			(q.State == "" || rec.HasAddressIn(strings.ToUpper(q.State))) {
			matched = append(matched, toResult(rec))
		}
	}

	skip, _ := strconv.Atoi(params.Get("skip"))
	limit, err := strconv.Atoi(params.Get("limit"))
	if err != nil || limit <= 0 {
		limit = 10
	}
	page := matched[min(skip, len(matched)):min(skip+limit, len(matched))]
	writeJSON(w, map[string]any{"result_count": len(page), "results": page})
}

func nameMatches(pattern, name string) bool {
	if pattern == "" {
		return true
	}
	pattern = strings.ToLower(strings.TrimSpace(pattern))
	name = strings.ToLower(strings.TrimSpace(name))
	if prefix, ok := strings.CutSuffix(pattern, "*"); ok {
		return strings.HasPrefix(name, prefix)
	}
	return pattern == name
}

type result struct {
	Number     string      `json:"number"`
	Basic      basic       `json:"basic"`
	Taxonomies []taxonomy  `json:"taxonomies"`
	Addresses  []address   `json:"addresses"`
	OtherNames []otherName `json:"other_names"`
}

type basic struct {
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	MiddleName string `json:"middle_name,omitempty"`
	Credential string `json:"credential,omitempty"`
}

type taxonomy struct {
	Desc    string `json:"desc"`
	Primary bool   `json:"primary"`
}

type address struct {
	Address1 string `json:"address_1"`
	City     string `json:"city"`
	State    string `json:"state"`
	Purpose  string `json:"address_purpose,omitempty"`
}

type otherName struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

func toResult(rec directory.Record) result {
	out := result{
		Number: rec.NPI,
		Basic: basic{
			FirstName:  rec.FirstName,
			LastName:   rec.LastName,
			MiddleName: rec.MiddleName,
			Credential: rec.Credential,
		},
	}
	for _, t := range rec.Taxonomies {
		out.Taxonomies = append(out.Taxonomies, taxonomy{Desc: t.Description, Primary: t.Primary})
	}
	for _, a := range rec.Addresses {
		out.Addresses = append(out.Addresses, address{Address1: a.Street, City: a.City, State: a.State, Purpose: a.Purpose})
	}
	for _, n := range rec.FormerNames {
		out.OtherNames = append(out.OtherNames, otherName(n))
	}
	return out
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
