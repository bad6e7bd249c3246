package ai

import (
	"context"
	"time"

	"github.com/docsync/internal/retry"
)

// DefaultGenerationTimeout bounds a single generation call. Commands
// fail closed on timeout: an error reply, no partial state.
const DefaultGenerationTimeout = 120 * time.Second

// Resilient wraps a Generator with a bounded timeout and, optionally,
// retry with backoff. The comment flow wants Timeout only (a failed
// command is a terminal reply, the human re-issues it); the sync flow
// also enables retries since nobody is watching.
type Resilient struct {
	inner       Generator
	timeout     time.Duration
	retryConfig *retry.Config
}

// WithTimeout wraps g so every Generate call is bounded by timeout.
func WithTimeout(g Generator, timeout time.Duration) *Resilient {
	if timeout <= 0 {
		timeout = DefaultGenerationTimeout
	}
	return &Resilient{inner: g, timeout: timeout}
}

// WithRetry wraps g with both a per-attempt timeout and retry on
// transient failures.
func WithRetry(g Generator, timeout time.Duration, config retry.Config) *Resilient {
	r := WithTimeout(g, timeout)
	r.retryConfig = &config
	return r
}

func (r *Resilient) Name() string {
	return r.inner.Name()
}

func (r *Resilient) Configure(config map[string]interface{}) error {
	return r.inner.Configure(config)
}

func (r *Resilient) Generate(ctx context.Context, req Request) (string, error) {
	attempt := func() (string, error) {
		attemptCtx, cancel := context.WithTimeout(ctx, r.timeout)
		defer cancel()
		return r.inner.Generate(attemptCtx, req)
	}

	if r.retryConfig == nil {
		return attempt()
	}

	var content string
	result := retry.WithBackoff(ctx, *r.retryConfig, func() error {
		var err error
		content, err = attempt()
		return err
	})
	if !result.Success {
		return "", result.LastError
	}
	return content, nil
}
