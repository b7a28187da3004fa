package fetch

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileFetcher_Download(t *testing.T) {
	src := filepath.Join(t.TempDir(), "data.zip")
	require.NoError(t, os.WriteFile(src, []byte("archive bytes"), 0o644))

	f := NewFileFetcher()
	r, err := f.Download(context.Background(), "file://"+src)
	require.NoError(t, err)
	defer r.Close() //nolint:errcheck

	data, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "archive bytes", string(data))
}

func TestFileFetcher_DownloadToFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.zip")
	require.NoError(t, os.WriteFile(src, []byte("payload"), 0o644))

	f := NewFileFetcher()
	dst := filepath.Join(dir, "dst.zip")
	n, err := f.DownloadToFile(context.Background(), "file://"+src, dst)
	require.NoError(t, err)
	assert.EqualValues(t, 7, n)

	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))
}

func TestFileFetcher_Missing(t *testing.T) {
	f := NewFileFetcher()
	_, err := f.Download(context.Background(), "file://"+filepath.Join(t.TempDir(), "nope.zip"))
	assert.Error(t, err)
}
