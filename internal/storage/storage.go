// internal/storage/storage.go
package storage

import "github.com/tpncalc/virtualblot/pkg/core"

// Backend is the interface all bundle storage implementations must satisfy
type Backend interface {
	// Lifecycle
	Init() error
	Close() error

	// Save persists one bundle and returns where it went.
	Save(b *core.Bundle) (string, error)
}
