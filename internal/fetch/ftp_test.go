package fetch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFTPURL(t *testing.T) {
	host, path, err := parseFTPURL("ftp://mirror.example.org/pub/boundaries/regions.zip")
	require.NoError(t, err)
	assert.Equal(t, "mirror.example.org:21", host)
	assert.Equal(t, "/pub/boundaries/regions.zip", path)
}

func TestParseFTPURL_ExplicitPort(t *testing.T) {
	host, _, err := parseFTPURL("ftp://mirror.example.org:2121/pub/file.zip")
	require.NoError(t, err)
	assert.Equal(t, "mirror.example.org:2121", host)
}

func TestParseFTPURL_WrongScheme(t *testing.T) {
	_, _, err := parseFTPURL("https://mirror.example.org/file.zip")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected ftp scheme")
}

func TestParseFTPURL_EmptyPath(t *testing.T) {
	_, _, err := parseFTPURL("ftp://mirror.example.org")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty path")
}

func TestNewFTPFetcherDefaults(t *testing.T) {
	f := NewFTPFetcher(FTPOptions{})
	assert.NotZero(t, f.opts.Timeout)
}
