// Package fetcher downloads tabular reference data over HTTP or FTP and parses CSV and XLSX payloads.
package fetcher

import (
	"context"
	"io"
	"net/url"
	"strings"

	"github.com/rotisserie/eris"
)

// Fetcher defines the interface for downloading remote data.
type Fetcher interface {
	// Download fetches the URL and returns the response body.
	Download(ctx context.Context, url string) (io.ReadCloser, error)
}

// Mux dispatches downloads to a Fetcher by URL scheme.
type Mux struct {
	HTTP Fetcher
	FTP  Fetcher
}

// NewMux creates a scheme-dispatching fetcher. Either fetcher may be nil, in
// which case URLs with that scheme are rejected.
func NewMux(httpFetcher, ftpFetcher Fetcher) *Mux {
	return &Mux{HTTP: httpFetcher, FTP: ftpFetcher}
}

// Download routes http(s):// URLs to the HTTP fetcher and ftp:// URLs to the FTP fetcher.
func (m *Mux) Download(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, eris.Wrap(err, "fetcher: parse url")
	}

	var f Fetcher
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		f = m.HTTP
	case "ftp":
		f = m.FTP
	default:
		return nil, eris.Errorf("fetcher: unsupported scheme %q", u.Scheme)
	}
	if f == nil {
		return nil, eris.Errorf("fetcher: no fetcher configured for scheme %q", u.Scheme)
	}
	return f.Download(ctx, rawURL)
}

// DefaultMaxBytes caps payloads read by ReadAll.
const DefaultMaxBytes = 32 << 20

// ReadAll downloads rawURL and reads at most maxBytes of the body. A body
// larger than maxBytes is an error rather than a silent truncation.
func ReadAll(ctx context.Context, f Fetcher, rawURL string, maxBytes int64) ([]byte, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}

	body, err := f.Download(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	defer body.Close() //nolint:errcheck

	data, err := io.ReadAll(io.LimitReader(body, maxBytes+1))
	if err != nil {
		return nil, eris.Wrap(err, "fetcher: read body")
	}
	if int64(len(data)) > maxBytes {
		return nil, eris.Errorf("fetcher: payload from %s exceeds %d bytes", rawURL, maxBytes)
	}
	return data, nil
}
