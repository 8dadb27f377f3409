package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRegistry serves paged results keyed by state and records every request.
type fakeRegistry struct {
	mu       sync.Mutex
	byState  map[string][]map[string]any
	requests []recordedRequest
}

type recordedRequest struct {
	first, last, state string
	skip, limit        int
}

func newFakeRegistry(byState map[string][]map[string]any) (*fakeRegistry, *httptest.Server) {
	reg := &fakeRegistry{byState: byState}
	srv := httptest.NewServer(http.HandlerFunc(reg.serve))
	return reg, srv
}

func (f *fakeRegistry) serve(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	skip, _ := strconv.Atoi(q.Get("skip"))
	limit, _ := strconv.Atoi(q.Get("limit"))

	f.mu.Lock()
	f.requests = append(f.requests, recordedRequest{
		first: q.Get("first_name"),
		last:  q.Get("last_name"),
		state: q.Get("state"),
		skip:  skip,
		limit: limit,
	})
	all := f.byState[q.Get("state")]
	f.mu.Unlock()

	page := []map[string]any{}
	if skip < len(all) {
		page = all[skip:min(skip+limit, len(all))]
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"result_count": len(page), "results": page})
}

func (f *fakeRegistry) calls() []recordedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]recordedRequest(nil), f.requests...)
}

func result(npi int, first, last, state string) map[string]any {
	return map[string]any{
		"number": npi,
		"basic":  map[string]any{"first_name": first, "last_name": last, "credential": "MD"},
		"taxonomies": []map[string]any{
			{"desc": "Internal Medicine", "primary": true},
		},
		"addresses": []map[string]any{
			{"address_1": "1 MAIN ST", "city": "ALBANY", "state": state, "address_purpose": "LOCATION"},
		},
	}
}

func results(n int, state string) []map[string]any {
	out := make([]map[string]any, 0, n)
	for i := range n {
		out = append(out, result(1000000000+i, fmt.Sprintf("FIRST%d", i), "SMITH", state))
	}
	return out
}

func TestClientSearchPaging(t *testing.T) {
	t.Run("pages until a short page", func(t *testing.T) {
		reg, srv := newFakeRegistry(map[string][]map[string]any{"NY": results(5, "NY")})
		defer srv.Close()
		client := NewClient(srv.URL, time.Second, WithPageSize(2))

		records, err := client.Search(context.Background(), Query{LastName: "Smith", State: "NY"}, 50)
		require.NoError(t, err)

		assert.Len(t, records, 5)
		calls := reg.calls()
		require.Len(t, calls, 3)
		assert.Equal(t, []int{0, 2, 4}, []int{calls[0].skip, calls[1].skip, calls[2].skip})
		assert.Equal(t, "Smith", calls[0].last)
	})

	t.Run("stops at the result cap", func(t *testing.T) {
		reg, srv := newFakeRegistry(map[string][]map[string]any{"": results(10, "NY")})
		defer srv.Close()
		client := NewClient(srv.URL, time.Second, WithPageSize(4))

		records, err := client.Search(context.Background(), Query{LastName: "Smith"}, 6)
		require.NoError(t, err)

		assert.Len(t, records, 6)
		calls := reg.calls()
		require.Len(t, calls, 2)
		assert.Equal(t, 4, calls[0].limit)
		assert.Equal(t, 2, calls[1].limit, "last page only requests what the cap allows")
	})

	t.Run("stops on an exactly full final page followed by an empty one", func(t *testing.T) {
		reg, srv := newFakeRegistry(map[string][]map[string]any{"": results(4, "NY")})
		defer srv.Close()
		client := NewClient(srv.URL, time.Second, WithPageSize(2))

		records, err := client.Search(context.Background(), Query{LastName: "Smith"}, 100)
		require.NoError(t, err)
		assert.Len(t, records, 4)
		assert.Len(t, reg.calls(), 3)
	})

	t.Run("non-positive cap issues no request", func(t *testing.T) {
		reg, srv := newFakeRegistry(nil)
		defer srv.Close()
		client := NewClient(srv.URL, time.Second)

		records, err := client.Search(context.Background(), Query{LastName: "Smith"}, 0)
		require.NoError(t, err)
		assert.Empty(t, records)
		assert.Empty(t, reg.calls())
	})
}

func TestClientSearchStates(t *testing.T) {
	reg, srv := newFakeRegistry(map[string][]map[string]any{
		"NY": {result(1111111111, "JOHN", "SMITH", "NY")},
		"NJ": {result(2222222222, "JOHN", "SMITH", "NJ")},
	})
	defer srv.Close()
	client := NewClient(srv.URL, time.Second)

	records, err := client.Search(context.Background(), Query{FirstName: "John", LastName: "Smith", State: "ny, nj"}, 10)
	require.NoError(t, err)

	require.Len(t, records, 2)
	assert.Equal(t, "1111111111", records[0].NPI)
	assert.Equal(t, "2222222222", records[1].NPI)

	calls := reg.calls()
	require.Len(t, calls, 2)
	assert.Equal(t, "NY", calls[0].state)
	assert.Equal(t, "NJ", calls[1].state)
}

func TestClientSearchErrors(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		category  ErrorCategory
		retryable bool
	}{
		{"server error is an outage", http.StatusBadGateway, `{}`, ErrorOutage, true},
		{"throttling is rate limited", http.StatusTooManyRequests, `{}`, ErrorRateLimited, true},
		{"client error is rejected", http.StatusBadRequest, `{}`, ErrorRejected, false},
		{"malformed JSON is bad data", http.StatusOK, `{"results": [`, ErrorBadData, false},
		{"error envelope is bad data", http.StatusOK, `{"Errors":[{"description":"No valid search criteria","field":"generic"}]}`, ErrorBadData, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := NewClient(srv.URL, time.Second).Search(context.Background(), Query{LastName: "Smith"}, 10)
			require.Error(t, err)
			assert.Equal(t, tt.category, GetCategory(err))
			assert.Equal(t, tt.retryable, IsRetryable(err))
		})
	}

	t.Run("respects context deadline", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-r.Context().Done():
			case <-time.After(time.Second):
			}
		}))
		defer srv.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()

		_, err := NewClient(srv.URL, 5*time.Second).Search(ctx, Query{LastName: "Smith"}, 10)
		require.Error(t, err)
		assert.Equal(t, ErrorTimeout, GetCategory(err))
	})
}

func TestParseSearchResponse(t *testing.T) {
	t.Run("decodes nested fields", func(t *testing.T) {
		body := []byte(`{
			"result_count": 1,
			"results": [{
				"number": 1234567893,
				"basic": {"first_name": "MARY", "last_name": "JONES", "middle_name": "ANN", "credential": "DO"},
				"taxonomies": [{"desc": "Family Medicine", "primary": true}, {"desc": "Pediatrics", "primary": false}],
				"addresses": [{"address_1": "5 ELM ST", "city": "NEWARK", "state": "NJ", "address_purpose": "MAILING"}],
				"other_names": [{"type": "Former Name", "first_name": "MARY", "last_name": "SMITH"}]
			}]
		}`)

		records, count, err := parseSearchResponse(http.StatusOK, body)
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, 1, count)

		r := records[0]
		assert.Equal(t, "1234567893", r.NPI)
		assert.Equal(t, "MARY", r.FirstName)
		assert.Equal(t, "ANN", r.MiddleName)
		assert.Equal(t, "DO", r.Credential)
		assert.Equal(t, []Taxonomy{{Description: "Family Medicine", Primary: true}, {Description: "Pediatrics"}}, r.Taxonomies)
		assert.Equal(t, []Address{{Street: "5 ELM ST", City: "NEWARK", State: "NJ", Purpose: "MAILING"}}, r.Addresses)
		assert.Equal(t, []FormerName{{FirstName: "MARY", LastName: "SMITH"}}, r.FormerNames)
	})

	t.Run("accepts string numbers and missing nested objects", func(t *testing.T) {
		body := []byte(`{"result_count": 1, "results": [{"number": "1999999999"}]}`)

		records, _, err := parseSearchResponse(http.StatusOK, body)
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, "1999999999", records[0].NPI)
		assert.Empty(t, records[0].FirstName)
		assert.Empty(t, records[0].Taxonomies)
		assert.Empty(t, records[0].Addresses)
	})

	t.Run("drops records without an identifier but counts them for paging", func(t *testing.T) {
		body := []byte(`{"result_count": 2, "results": [{"basic": {"first_name": "X"}}, {"number": 1000000001}]}`)

		records, count, err := parseSearchResponse(http.StatusOK, body)
		require.NoError(t, err)
		assert.Len(t, records, 1)
		assert.Equal(t, 2, count)
	})

	t.Run("empty payload yields no records", func(t *testing.T) {
		records, count, err := parseSearchResponse(http.StatusOK, []byte(`{}`))
		require.NoError(t, err)
		assert.Empty(t, records)
		assert.Zero(t, count)
	})
}

func TestRecordHasAddressIn(t *testing.T) {
	r := Record{Addresses: []Address{{State: "nj"}, {State: " NY "}}}
	assert.True(t, r.HasAddressIn("NY"))
	assert.True(t, r.HasAddressIn("NJ"))
	assert.False(t, r.HasAddressIn("CT"))
	assert.False(t, r.HasAddressIn(""))
}

func TestQueryStates(t *testing.T) {
	assert.Equal(t, []string{""}, Query{}.States())
	assert.Equal(t, []string{""}, Query{State: " , "}.States())
	assert.Equal(t, []string{"NY"}, Query{State: "ny"}.States())
	assert.Equal(t, []string{"NY", "NJ"}, Query{State: "NY,nj"}.States())
}
