package fetch

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeZIP(t *testing.T, entries map[string]string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.zip")
	f, err := os.Create(path)
	require.NoError(t, err)

	w := zip.NewWriter(f)
	for name, content := range entries {
		entry, err := w.Create(name)
		require.NoError(t, err)
		_, err = entry.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	require.NoError(t, f.Close())
	return path
}

func TestExtractZIP(t *testing.T) {
	zipPath := writeZIP(t, map[string]string{
		"regions.shp": "shape data",
		"regions.dbf": "attribute data",
		"regions.shx": "index data",
	})
	destDir := t.TempDir()

	paths, err := ExtractZIP(zipPath, destDir)
	require.NoError(t, err)
	assert.Len(t, paths, 3)

	data, err := os.ReadFile(filepath.Join(destDir, "regions.shp"))
	require.NoError(t, err)
	assert.Equal(t, "shape data", string(data))
}

func TestExtractZIP_NestedDirectories(t *testing.T) {
	zipPath := writeZIP(t, map[string]string{
		"data/boundaries/regions.shp": "nested shape",
	})
	destDir := t.TempDir()

	paths, err := ExtractZIP(zipPath, destDir)
	require.NoError(t, err)
	require.Len(t, paths, 1)
	assert.FileExists(t, filepath.Join(destDir, "data", "boundaries", "regions.shp"))
}

func TestExtractZIP_RejectsZipSlip(t *testing.T) {
	zipPath := writeZIP(t, map[string]string{
		"../escape.txt": "evil",
	})

	_, err := ExtractZIP(zipPath, t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "illegal zip path")
}

func TestExtractZIP_MissingArchive(t *testing.T) {
	_, err := ExtractZIP(filepath.Join(t.TempDir(), "nope.zip"), t.TempDir())
	assert.Error(t, err)
}
