package sources

import "fmt"

// RateLimitedError signals that a provider told us to back off. The
// source has already entered its cooldown when this is returned.
type RateLimitedError struct {
	Service    string
	RetryAfter int // seconds
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("%s rate limited, retry in %ds", e.Service, e.RetryAfter)
}

// ProviderError wraps any other upstream failure from a source.
type ProviderError struct {
	Service string
	Detail  string
	Err     error
}

func (e *ProviderError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Service, e.Detail, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Service, e.Detail)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}
