// internal/storage/dir/dir.go
package dir

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/tpncalc/virtualblot/internal/config"
	"github.com/tpncalc/virtualblot/internal/storage/export"
	"github.com/tpncalc/virtualblot/pkg/core"
)

// Backend writes each bundle member as a separate file in the output directory.
type Backend struct {
	cfg config.StorageConfig
	mu  sync.Mutex
}

// New creates a new directory backend
func New(cfg config.StorageConfig) *Backend {
	return &Backend{cfg: cfg}
}

// Init creates the output directory.
func (b *Backend) Init() error {
	if err := os.MkdirAll(b.cfg.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	return nil
}

// Close cleans up resources
func (b *Backend) Close() error {
	return nil
}

// Save writes the bundle files and returns the output directory. Files of an
// earlier bundle with the same stem are replaced.
func (b *Backend) Save(bundle *core.Bundle) (string, error) {
	members, err := export.Members(bundle, b.cfg.CompressSummary)
	if err != nil {
		return "", err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	for _, m := range members {
		path := filepath.Join(b.cfg.OutputDir, m.Name)
		if err := writeFileAtomic(path, m.Data); err != nil {
			return "", err
		}
	}
	return b.cfg.OutputDir, nil
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".vblot-*")
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to move %s into place: %w", filepath.Base(path), err)
	}
	return nil
}
