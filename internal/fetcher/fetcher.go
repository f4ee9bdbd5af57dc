// Package fetcher retrieves and parses watchlist source files. It covers
// the transports the published lists are served over (HTTP with per-host
// rate limits and retry, anonymous FTP) and streaming decoders for the
// formats they ship in (CSV, JSON, XML, XLSX, single-member ZIP).
package fetcher

import (
	"context"
	"io"
)

// Fetcher downloads a remote watchlist source.
type Fetcher interface {
	// Download returns the body of the source at url. The caller closes it.
	Download(ctx context.Context, url string) (io.ReadCloser, error)

	// DownloadToFile writes the source at url to path and returns the
	// number of bytes written.
	DownloadToFile(ctx context.Context, url string, path string) (int64, error)
}

var (
	_ Fetcher = (*HTTPFetcher)(nil)
	_ Fetcher = (*FTPFetcher)(nil)
)
