package pipeline

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/attestly/trustedsign/interfaces"
)

// RetryOptions configures the exponential-backoff retry policy applied to
// individual HTTP sends.
type RetryOptions struct {
	// MaxAttempts is the total number of sends, including the first.
	MaxAttempts int

	// InitialDelay is the backoff before the first retry.
	InitialDelay time.Duration

	// MaxDelay caps the backoff between attempts.
	MaxDelay time.Duration
}

// DefaultRetryOptions returns the retry policy used by the signing client:
// five attempts with exponential backoff capped at ten seconds.
func DefaultRetryOptions() RetryOptions {
	return RetryOptions{
		MaxAttempts:  5,
		InitialDelay: 800 * time.Millisecond,
		MaxDelay:     10 * time.Second,
	}
}

// RetryPolicy retries transient transport failures: network errors and
// HTTP 408, 429, and 5xx responses. It does not interpret service-level
// operation statuses; those belong to the caller's polling loop. Errors
// from policies further down the chain that are not transport failures,
// credential errors in particular, are returned to the caller unchanged
// without consuming the retry budget.
//
// Requests with a body must carry GetBody (true for requests built with
// http.NewRequestWithContext over a bytes.Reader) so the body can be replayed
// on retry.
type RetryPolicy struct {
	opts RetryOptions
}

// NewRetryPolicy creates a retry policy with the given options. Zero fields
// fall back to DefaultRetryOptions values.
func NewRetryPolicy(opts RetryOptions) *RetryPolicy {
	def := DefaultRetryOptions()
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = def.MaxAttempts
	}
	if opts.InitialDelay <= 0 {
		opts.InitialDelay = def.InitialDelay
	}
	if opts.MaxDelay <= 0 {
		opts.MaxDelay = def.MaxDelay
	}
	return &RetryPolicy{opts: opts}
}

// Do implements Policy.
func (p *RetryPolicy) Do(req *http.Request, next Next) (*http.Response, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = p.opts.InitialDelay
	bo.MaxInterval = p.opts.MaxDelay
	bo.MaxElapsedTime = 0 // bounded by attempts, not wall clock

	var (
		resp *http.Response
		err  error
	)
	for attempt := 1; ; attempt++ {
		if attempt > 1 {
			if err := rewindBody(req); err != nil {
				return nil, err
			}
			wait := bo.NextBackOff()
			if wait > p.opts.MaxDelay {
				wait = p.opts.MaxDelay
			}
			select {
			case <-req.Context().Done():
				return nil, fmt.Errorf("%w: %v", interfaces.ErrTransport, req.Context().Err())
			case <-time.After(wait):
			}
		}

		resp, err = next(req)
		if err != nil && !errors.Is(err, interfaces.ErrTransport) {
			// Failures from inner policies, such as token acquisition,
			// propagate unchanged. Only transport sends are retried.
			return nil, err
		}
		if err == nil && !retryableStatus(resp.StatusCode) {
			return resp, nil
		}
		if attempt == p.opts.MaxAttempts {
			break
		}
		if resp != nil {
			// Drain so the connection can be reused for the retry.
			io.Copy(io.Discard, resp.Body) //nolint:errcheck
			resp.Body.Close()
		}
	}

	if err != nil {
		return nil, fmt.Errorf("request failed after %d attempts: %w", p.opts.MaxAttempts, err)
	}
	// Last attempt produced a retryable status; hand the response to the
	// caller for status-specific handling.
	return resp, nil
}

func retryableStatus(code int) bool {
	switch {
	case code == http.StatusRequestTimeout:
		return true
	case code == http.StatusTooManyRequests:
		return true
	case code >= 500:
		return true
	}
	return false
}

func rewindBody(req *http.Request) error {
	if req.Body == nil || req.GetBody == nil {
		return nil
	}
	body, err := req.GetBody()
	if err != nil {
		return fmt.Errorf("could not rewind request body for retry: %w", err)
	}
	req.Body = body
	return nil
}
