package fetch

import (
	"context"
	"io"
	"os"
	"strings"

	"github.com/rotisserie/eris"
)

// FileFetcher serves file:// URLs from the local filesystem. Used for
// pre-downloaded archives and manifest fixtures.
type FileFetcher struct{}

// NewFileFetcher creates a fetcher for file:// URLs.
func NewFileFetcher() *FileFetcher {
	return &FileFetcher{}
}

func filePath(url string) string {
	return strings.TrimPrefix(url, "file://")
}

// Download opens the local file named by the URL.
func (f *FileFetcher) Download(ctx context.Context, url string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r, err := os.Open(filePath(url))
	if err != nil {
		return nil, eris.Wrapf(err, "fetch: open %s", url)
	}
	return r, nil
}

// DownloadToFile copies the local file named by the URL to path.
func (f *FileFetcher) DownloadToFile(ctx context.Context, url string, path string) (int64, error) {
	src, err := f.Download(ctx, url)
	if err != nil {
		return 0, err
	}
	defer src.Close() //nolint:errcheck

	dst, err := os.Create(path)
	if err != nil {
		return 0, eris.Wrapf(err, "fetch: create %s", path)
	}
	defer dst.Close() //nolint:errcheck

	n, err := io.Copy(dst, src)
	if err != nil {
		return 0, eris.Wrapf(err, "fetch: copy %s", url)
	}
	return n, nil
}
