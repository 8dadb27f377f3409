package directory

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

var requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "npimatch_directory_request_duration_seconds",
	Help:    "Latency of directory page requests by outcome",
	Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
}, []string{"outcome"})

const (
	// DefaultBaseURL is the public NPI registry API.
	DefaultBaseURL = "https://npiregistry.cms.hhs.gov/api/"

	// DefaultVersion is the registry API version the decoder understands.
	DefaultVersion = "2.1"

	// DefaultRecordType restricts searches to individual practitioners.
	DefaultRecordType = "NPI-1"

	// MaxPageSize is the largest limit the registry accepts per page.
	MaxPageSize = 200

	// maxSkip is the largest skip offset the registry accepts.
	maxSkip = 1000

	maxResponseBytes = 16 << 20
)

// Searcher runs a paged directory search and reports failures.
type Searcher interface {
	Search(ctx context.Context, q Query, limit int) ([]Record, error)
}

// Client queries the registry over HTTP.
type Client struct {
	baseURL    string
	version    string
	recordType string
	pageSize   int
	http       *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client (timeouts, transport).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithPageSize sets the per-request limit, clamped to [1, MaxPageSize].
func WithPageSize(n int) Option {
	return func(c *Client) {
		c.pageSize = min(max(n, 1), MaxPageSize)
	}
}

// WithVersion overrides the API version parameter.
func WithVersion(v string) Option {
	return func(c *Client) {
		if v != "" {
			c.version = v
		}
	}
}

// NewClient creates a registry client. An empty baseURL uses DefaultBaseURL.
func NewClient(baseURL string, timeout time.Duration, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL:    baseURL,
		version:    DefaultVersion,
		recordType: DefaultRecordType,
		pageSize:   MaxPageSize,
		http: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Search pages through results for each jurisdiction in q until a short or
// empty page, or until limit records were collected for that jurisdiction.
// Jurisdictions are searched one at a time and pooled in order. Any page
// failure fails the whole search.
func (c *Client) Search(ctx context.Context, q Query, limit int) ([]Record, error) {
	if limit <= 0 {
		return nil, nil
	}
	var pooled []Record
	for _, state := range q.States() {
		records, err := c.searchState(ctx, q.FirstName, q.LastName, state, limit)
		if err != nil {
			return nil, err
		}
		pooled = append(pooled, records...)
	}
	return pooled, nil
}

func (c *Client) searchState(ctx context.Context, first, last, state string, limit int) ([]Record, error) {
	var out []Record
	for skip := 0; len(out) < limit && skip <= maxSkip; {
		size := min(c.pageSize, limit-len(out))
		page, count, err := c.fetchPage(ctx, first, last, state, skip, size)
		if err != nil {
			return nil, err
		}
		out = append(out, page...)
		if count < size {
			break
		}
		skip += size
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (c *Client) fetchPage(ctx context.Context, first, last, state string, skip, size int) ([]Record, int, error) {
	start := time.Now()
	records, count, err := c.doFetchPage(ctx, first, last, state, skip, size)
	outcome := "ok"
	if err != nil {
		outcome = string(GetCategory(err))
	}
	requestDuration.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
	return records, count, err
}

func (c *Client) doFetchPage(ctx context.Context, first, last, state string, skip, size int) ([]Record, int, error) {
	params := url.Values{}
	params.Set("version", c.version)
	params.Set("enumeration_type", c.recordType)
	params.Set("first_name", first)
	params.Set("last_name", last)
	params.Set("state", state)
	params.Set("skip", strconv.Itoa(skip))
	params.Set("limit", strconv.Itoa(size))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, 0, NewDirectoryError(ErrorInternal, "build request", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		if isTimeout(ctx, err) {
			return nil, 0, NewDirectoryError(ErrorTimeout, "request timed out", err)
		}
		return nil, 0, NewDirectoryError(ErrorOutage, "request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		if isTimeout(ctx, err) {
			return nil, 0, NewDirectoryError(ErrorTimeout, "reading response timed out", err)
		}
		return nil, 0, NewDirectoryError(ErrorOutage, "read response", err)
	}
	return parseSearchResponse(resp.StatusCode, body)
}

func isTimeout(ctx context.Context, err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

func statusError(status int) error {
	switch {
	case status == http.StatusTooManyRequests:
		return NewDirectoryError(ErrorRateLimited, "rate limited", nil)
	case status >= 500:
		return NewDirectoryError(ErrorOutage, fmt.Sprintf("unexpected status %d", status), nil)
	default:
		return NewDirectoryError(ErrorRejected, fmt.Sprintf("unexpected status %d", status), nil)
	}
}
