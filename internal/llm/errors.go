package llm

import (
	"errors"
	"fmt"
)

// ErrRateLimited wraps provider responses that indicate throttling
// (HTTP 429 and, conservatively, 5xx). These are the only errors the
// retry loop is willing to back off and retry; everything else propagates
// to the caller immediately.
var ErrRateLimited = errors.New("provider rate limited")

// providerStatusError converts a non-200 provider response into an error,
// classifying retryable statuses under ErrRateLimited.
func providerStatusError(provider string, status int, body []byte) error {
	if status == 429 || status >= 500 {
		return fmt.Errorf("%w: %s returned status %d: %s", ErrRateLimited, provider, status, string(body))
	}
	return fmt.Errorf("%s returned status %d: %s", provider, status, string(body))
}

// IsRetryable reports whether err belongs to the rate-limit class.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrRateLimited)
}
