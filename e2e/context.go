// Package e2e runs the resolve API in-process against a fake NPI registry
// and drives it with feature files.
package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"

	"npimatch/internal/bootstrap"
	"npimatch/internal/directory"
	"npimatch/internal/directory/directorytest"
	"npimatch/internal/platform/config"
	"npimatch/internal/ratelimit"
)

// TestContext holds one scenario's registry, server and last response.
type TestContext struct {
	Config  config.Config
	Records []directory.Record

	registry *directorytest.Registry
	upstream *httptest.Server
	resolver *bootstrap.Resolver
	server   *httptest.Server

	lastStatus int
	lastBody   []byte
}

// NewTestContext starts from the default configuration with caching off so
// each scenario sees the registry as configured.
func NewTestContext() *TestContext {
	cfg := config.Default()
	cfg.Cache.Backend = config.CacheNone
	cfg.Server.RateLimit = 0
	cfg.Directory.BreakerThreshold = 0
	return &TestContext{Config: cfg}
}

// Registry returns the fake registry, creating it from Records on first use.
func (tc *TestContext) Registry() *directorytest.Registry {
	if tc.registry == nil {
		tc.registry = directorytest.NewRegistry(tc.Records...)
	}
	return tc.registry
}

func (tc *TestContext) start(ctx context.Context) error {
	if tc.server != nil {
		return nil
	}
	tc.upstream = httptest.NewServer(tc.Registry())
	tc.Config.Directory.URL = tc.upstream.URL

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	resolver, err := bootstrap.New(ctx, tc.Config, logger, nil)
	if err != nil {
		return fmt.Errorf("build resolver: %w", err)
	}
	tc.resolver = resolver
	tc.server = httptest.NewServer(resolver.Router(tc.Config.Server, ratelimit.NewStore(), nil))
	return nil
}

// POST sends body as JSON and records the response.
func (tc *TestContext) POST(ctx context.Context, path string, body any) error {
	if err := tc.start(ctx); err != nil {
		return err
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tc.server.URL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := tc.server.Client().Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	tc.lastStatus = resp.StatusCode
	tc.lastBody, err = io.ReadAll(resp.Body)
	return err
}

// LastResponseStatus is the status of the most recent request.
func (tc *TestContext) LastResponseStatus() int {
	return tc.lastStatus
}

// DecodeLastResponse unmarshals the most recent response body into v.
func (tc *TestContext) DecodeLastResponse(v any) error {
	if err := json.Unmarshal(tc.lastBody, v); err != nil {
		return fmt.Errorf("decode response %q: %w", tc.lastBody, err)
	}
	return nil
}

// Close stops the servers.
func (tc *TestContext) Close() {
	if tc.server != nil {
		tc.server.Close()
	}
	if tc.resolver != nil {
		_ = tc.resolver.Close()
	}
	if tc.upstream != nil {
		tc.upstream.Close()
	}
}
