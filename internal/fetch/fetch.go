// Package fetch downloads snapshot source archives over HTTP and FTP.
// Boundary providers publish large, rarely-changing files, so the fetchers
// lean on conditional requests and patient retry rather than throughput.
package fetch

import (
	"context"
	"io"
)

// Fetcher defines the interface for downloading remote snapshot sources.
type Fetcher interface {
	// Download fetches the URL and returns the response body.
	Download(ctx context.Context, url string) (io.ReadCloser, error)

	// DownloadToFile fetches the URL and writes it to the given path.
	// Returns bytes written.
	DownloadToFile(ctx context.Context, url string, path string) (int64, error)
}
