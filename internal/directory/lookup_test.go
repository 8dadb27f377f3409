package directory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"npimatch/pkg/platform/circuit"
)

type stubSearcher struct {
	records []Record
	err     error
	calls   int
}

func (s *stubSearcher) Search(_ context.Context, _ Query, _ int) ([]Record, error) {
	s.calls++
	return s.records, s.err
}

func TestLookupFetch(t *testing.T) {
	t.Run("passes records through", func(t *testing.T) {
		s := &stubSearcher{records: []Record{{NPI: "1"}, {NPI: "2"}}}
		got := NewLookup(s).Fetch(context.Background(), Query{LastName: "Smith"}, 10)
		assert.Len(t, got, 2)
	})

	t.Run("swallows categorized failures", func(t *testing.T) {
		s := &stubSearcher{err: NewDirectoryError(ErrorOutage, "request failed", errors.New("connection refused"))}
		got := NewLookup(s, WithLogger(nil)).Fetch(context.Background(), Query{LastName: "Smith"}, 10)
		assert.Empty(t, got)
		assert.Equal(t, 1, s.calls, "failed fetches are not retried")
	})

	t.Run("swallows uncategorized failures", func(t *testing.T) {
		s := &stubSearcher{err: errors.New("boom")}
		got := NewLookup(s).Fetch(context.Background(), Query{LastName: "Smith"}, 10)
		assert.Empty(t, got)
	})
}

func TestLookupBreaker(t *testing.T) {
	now := time.Unix(0, 0)
	breaker := circuit.New("directory",
		circuit.WithFailureThreshold(2),
		circuit.WithSuccessThreshold(1),
		circuit.WithCooldown(time.Minute),
		circuit.WithClock(func() time.Time { return now }),
	)
	s := &stubSearcher{err: NewDirectoryError(ErrorTimeout, "request timed out", nil)}
	l := NewLookup(s, WithBreaker(breaker))
	q := Query{LastName: "Smith"}

	l.Fetch(context.Background(), q, 10)
	l.Fetch(context.Background(), q, 10)
	assert.True(t, breaker.IsOpen())

	assert.Empty(t, l.Fetch(context.Background(), q, 10))
	assert.Equal(t, 2, s.calls, "open circuit skips the registry")

	now = now.Add(time.Minute)
	s.err = nil
	s.records = []Record{{NPI: "1"}}
	assert.Len(t, l.Fetch(context.Background(), q, 10), 1)
	assert.False(t, breaker.IsOpen(), "successful probe closes the circuit")
}

func TestLookupBreakerIgnoresNonRetryableFailures(t *testing.T) {
	breaker := circuit.New("directory", circuit.WithFailureThreshold(1))
	s := &stubSearcher{err: NewDirectoryError(ErrorRejected, "bad request", nil)}

	NewLookup(s, WithBreaker(breaker)).Fetch(context.Background(), Query{LastName: "Smith"}, 10)

	assert.False(t, breaker.IsOpen())
}
