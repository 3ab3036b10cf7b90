// internal/storage/archive/archive.go
package archive

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/tpncalc/virtualblot/internal/config"
	"github.com/tpncalc/virtualblot/internal/storage/export"
	"github.com/tpncalc/virtualblot/pkg/core"
)

// Backend writes each bundle as <stem>.zip in the output directory.
type Backend struct {
	cfg config.StorageConfig
	mu  sync.Mutex
}

// New creates a new zip backend
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

// Save writes the archive and returns its path.
func (b *Backend) Save(bundle *core.Bundle) (string, error) {
	data, err := Build(bundle, b.cfg.CompressSummary)
	if err != nil {
		return "", err
	}

	path := filepath.Join(b.cfg.OutputDir, export.ArchiveName(bundle.Stem))

	b.mu.Lock()
	defer b.mu.Unlock()
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write archive: %w", err)
	}
	return path, nil
}

// Build returns the zip archive of bundle in memory, for streaming downloads.
func Build(bundle *core.Bundle, compressSummary bool) ([]byte, error) {
	members, err := export.Members(bundle, compressSummary)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := Write(&buf, members); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Write deflates members into a zip archive on w.
func Write(w io.Writer, members []export.Member) error {
	zw := zip.NewWriter(w)
	for _, m := range members {
		f, err := zw.CreateHeader(&zip.FileHeader{Name: m.Name, Method: zip.Deflate})
		if err != nil {
			return fmt.Errorf("failed to add %s: %w", m.Name, err)
		}
		if _, err := f.Write(m.Data); err != nil {
			return fmt.Errorf("failed to write %s: %w", m.Name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("failed to finish archive: %w", err)
	}
	return nil
}
