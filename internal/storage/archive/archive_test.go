// internal/storage/archive/archive_test.go
package archive

import (
	"archive/zip"
	"bytes"
	"io"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tpncalc/virtualblot/internal/config"
	"github.com/tpncalc/virtualblot/pkg/core"
)

func readZip(t *testing.T, r *zip.Reader) map[string]string {
	t.Helper()
	out := make(map[string]string)
	for _, f := range r.File {
		rc, err := f.Open()
		require.NoError(t, err)
		data, err := io.ReadAll(rc)
		rc.Close()
		require.NoError(t, err)
		out[f.Name] = string(data)
	}
	return out
}

func TestBuild(t *testing.T) {
	data, err := Build(&core.Bundle{Stem: "blot", Image: []byte("png"), Log: "log"}, false)
	require.NoError(t, err)

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	require.Len(t, zr.File, 2)
	assert.Equal(t, "image_blot.png", zr.File[0].Name)
	assert.Equal(t, zip.Deflate, zr.File[0].Method)

	files := readZip(t, zr)
	assert.Equal(t, "png", files["image_blot.png"])
	assert.Equal(t, "log", files["log_blot.txt"])
}

func TestSave(t *testing.T) {
	out := filepath.Join(t.TempDir(), "zips")
	b := New(config.StorageConfig{Type: "zip", OutputDir: out})
	require.NoError(t, b.Init())
	defer b.Close()

	path, err := b.Save(&core.Bundle{Stem: "run1", Log: "log"})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(out, "run1.zip"), path)

	zr, err := zip.OpenReader(path)
	require.NoError(t, err)
	defer zr.Close()
	assert.Equal(t, map[string]string{"log_run1.txt": "log"}, readZip(t, &zr.Reader))
}

func TestBuild_InvalidBundle(t *testing.T) {
	_, err := Build(&core.Bundle{}, false)
	assert.Error(t, err)
}
