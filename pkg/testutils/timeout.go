package testutils

import (
	"context"
	"testing"
	"time"
)

var (
	ConnectTimeout = 30 * time.Second
	PollInterval   = 10 * time.Millisecond
)

// WithTimeout polls f until it returns an empty string, failing the test after ConnectTimeout.
func WithTimeout(t *testing.T, f func() string) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), ConnectTimeout)
	defer cancel()
	lastErr := ""
	for {
		select {
		case <-ctx.Done():
			t.Fatalf("did not reach expected state after %v: %s", ConnectTimeout, lastErr)
		case <-time.After(PollInterval):
			lastErr = f()
			if lastErr == "" {
				return
			}
		}
	}
}
