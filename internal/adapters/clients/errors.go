// Package clients provides the instrumented HTTP client used to reach the
// remote quote source.
package clients

import "errors"

// Infrastructure failures. The acl package translates these into domain
// errors before they reach the application layer.
var (
	// ErrCircuitOpen is returned without sending anything while the breaker is open.
	ErrCircuitOpen = errors.New("circuit breaker open")

	// ErrMaxRetriesExceeded wraps the last attempt's error once retries run out.
	ErrMaxRetriesExceeded = errors.New("max retries exceeded")
)
