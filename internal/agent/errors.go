package agent

import "errors"

var (
	// ErrNotFound indicates the upstream has no such profile.
	ErrNotFound = errors.New("configuration profile not found")

	// ErrUpstream indicates the upstream could not be reached and
	// nothing usable was cached.
	ErrUpstream = errors.New("upstream fetch failed")

	// ErrInvalidPayload indicates the upstream delivered a payload
	// that failed the profile's validator and nothing usable was
	// cached.
	ErrInvalidPayload = errors.New("invalid configuration payload")
)
