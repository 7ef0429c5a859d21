// Package ports defines interfaces for external dependencies.
// Ports are contracts that adapters implement, allowing the application layer
// to depend on abstractions rather than concrete implementations.
//
// Port Design Principles:
//   - Context as first parameter (always) for cancellation and deadlines
//   - Return domain types, never external DTOs or infrastructure types
//   - Error returns use domain error types (ErrNotFound, ErrUnavailable, etc.)
//   - Keep interfaces small and focused
package ports

import (
	"context"

	"github.com/jsamuelsen/quotesync/internal/domain"
)

// KeyValueStore is the string key-value persistence used by the local quote store.
// Implementations must be safe for concurrent use.
type KeyValueStore interface {
	// Get returns the value stored under key.
	// Returns domain.ErrNotFound if the key does not exist.
	Get(ctx context.Context, key string) (string, error)

	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key, value string) error

	// SetMany writes all entries together. Backends that support
	// transactions commit them atomically.
	SetMany(ctx context.Context, entries map[string]string) error

	// Delete removes key. Does not return an error if the key does not exist.
	Delete(ctx context.Context, key string) error
}

// RemoteQuoteSource is the remote endpoint quotes are synchronized with.
//
// Example usage in application layer:
//
//	remote, err := source.FetchQuotes(ctx)
//	if err != nil {
//	    // degrade to an empty snapshot
//	}
type RemoteQuoteSource interface {
	// FetchQuotes returns a bounded snapshot of remote quotes mapped to domain
	// quotes. Every returned quote carries an ID.
	// Returns domain.ErrUnavailable if the remote is unreachable.
	FetchQuotes(ctx context.Context) ([]domain.Quote, error)

	// PostQuote publishes a quote to the remote. The returned quote is the
	// remote's echo and is informational only.
	PostQuote(ctx context.Context, q domain.Quote) (*domain.Quote, error)
}

// Notifier receives transient user-facing messages.
// Notify never blocks on delivery and never fails.
type Notifier interface {
	Notify(ctx context.Context, n domain.Notification)
}
