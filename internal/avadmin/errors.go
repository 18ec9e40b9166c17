package avadmin

import "errors"

// Outcome taxonomy for account-service calls. A 404 is not part of it:
// absence is a valid lookup result and surfaces as a nil payload.
var (
	// ErrAccessDenied maps a 403 response. Permission refusals are not
	// transient, so the executor never retries them.
	ErrAccessDenied = errors.New("access denied by avadmin")

	// ErrUnavailable means every attempt failed to connect.
	ErrUnavailable = errors.New("avadmin service is not available")

	// ErrTimeout means every attempt exceeded the per-attempt deadline.
	ErrTimeout = errors.New("avadmin service timeout")

	// ErrRemote covers any non-2xx, non-403 response that survived retries.
	ErrRemote = errors.New("avadmin returned an error response")
)
