package domain

import "errors"

var (
	// ErrNotConfigured means a call needed a backing store that was
	// never attached. Fatal to the call, not the process.
	ErrNotConfigured = errors.New("homematch: not configured")

	// ErrAllEndpointsFailed means every embedding endpoint was
	// exhausted; callers fall back to non-semantic search.
	ErrAllEndpointsFailed = errors.New("homematch: all embedding endpoints failed")

	// ErrUpstream is a POI provider failure. The engine absorbs it into
	// an empty result; it never reaches search callers.
	ErrUpstream = errors.New("homematch: upstream provider failed")

	// ErrCacheUnavailable is a shared-cache read/write failure; the
	// cache is bypassed, never fatal.
	ErrCacheUnavailable = errors.New("homematch: shared cache unavailable")

	ErrNotFound = errors.New("homematch: not found")
)
