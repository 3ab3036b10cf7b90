// internal/storage/factory.go
package storage

import (
	"fmt"

	"github.com/tpncalc/virtualblot/internal/config"
	"github.com/tpncalc/virtualblot/internal/storage/archive"
	"github.com/tpncalc/virtualblot/internal/storage/dir"
)

// NewBackend creates a storage backend based on configuration
func NewBackend(cfg config.StorageConfig) (Backend, error) {
	switch cfg.Type {
	case "dir":
		return dir.New(cfg), nil
	case "zip":
		return archive.New(cfg), nil
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
}
