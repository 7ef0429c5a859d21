package storage

import (
	"context"
	"fmt"

	"github.com/jsamuelsen/quotesync/internal/ports"
)

// Backend names accepted by Open.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
)

// Backend is a key-value store that can report health and be closed.
type Backend interface {
	ports.KeyValueStore
	ports.HealthChecker
	Close() error
}

// Open returns the backend named by kind.
func Open(ctx context.Context, kind, path string) (Backend, error) {
	switch kind {
	case BackendMemory, "":
		return NewMemoryStore(), nil
	case BackendSQLite:
		return OpenSQLite(ctx, path)
	default:
		return nil, fmt.Errorf("unknown store backend %q", kind)
	}
}
