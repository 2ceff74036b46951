// Package urlutil provides URL classification and resource fetching helpers.
package urlutil

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/Jelikton/iptv-checker/pkg/httpclient"
)

// URL scheme constants.
const (
	SchemeHTTP  = "http"
	SchemeHTTPS = "https"
	SchemeFile  = "file"
)

// GetScheme returns the lowercased scheme of u, or "" if u does not parse.
func GetScheme(u string) string {
	parsed, err := url.Parse(strings.TrimSpace(u))
	if err != nil {
		return ""
	}
	return strings.ToLower(parsed.Scheme)
}

// IsHTTPURL reports whether u uses http or https, in any letter case.
func IsHTTPURL(u string) bool {
	lower := strings.ToLower(strings.TrimSpace(u))
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

// IsFileURL checks if a URL uses the file:// scheme.
func IsFileURL(u string) bool {
	return strings.HasPrefix(strings.ToLower(u), "file://")
}

// HasPathSuffix reports whether the path component of u ends with suffix,
// ignoring case. Query strings and fragments are not considered.
func HasPathSuffix(u, suffix string) bool {
	parsed, err := url.Parse(strings.TrimSpace(u))
	if err != nil {
		return false
	}
	return strings.HasSuffix(strings.ToLower(parsed.Path), strings.ToLower(suffix))
}

// FilePathFromURL extracts the file path from a file:// URL.
func FilePathFromURL(u string) (string, error) {
	if !IsFileURL(u) {
		return "", fmt.Errorf("not a file:// URL: %s", u)
	}

	parsed, err := url.Parse(u)
	if err != nil {
		return "", fmt.Errorf("invalid URL: %w", err)
	}
	if parsed.Path == "" {
		return "", fmt.Errorf("empty path in file URL: %s", u)
	}
	return parsed.Path, nil
}

// ValidateURL checks that u parses and carries a scheme.
func ValidateURL(u string) error {
	u = strings.TrimSpace(u)
	if u == "" {
		return fmt.Errorf("URL is required")
	}
	parsed, err := url.Parse(u)
	if err != nil {
		return fmt.Errorf("invalid URL format: %w", err)
	}
	if parsed.Scheme == "" {
		return fmt.Errorf("URL must include a scheme such as http://")
	}
	return nil
}

// StatusError is returned by Fetch for non-2xx HTTP responses.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status code: %d", e.StatusCode)
}

// ResourceFetcher fetches http://, https:// and file:// resources.
type ResourceFetcher struct {
	httpClient *httpclient.Client
}

// NewResourceFetcher creates a fetcher using an HTTP client built from cfg.
func NewResourceFetcher(cfg httpclient.Config) *ResourceFetcher {
	return &ResourceFetcher{httpClient: httpclient.New(cfg)}
}

// Fetch opens u for reading. The caller must close the returned reader.
func (f *ResourceFetcher) Fetch(ctx context.Context, u string) (io.ReadCloser, error) {
	switch scheme := GetScheme(u); scheme {
	case SchemeHTTP, SchemeHTTPS:
		return f.fetchHTTP(ctx, u)
	case SchemeFile:
		return fetchFile(u)
	default:
		return nil, fmt.Errorf("unsupported URL scheme: %q", scheme)
	}
}

func (f *ResourceFetcher) fetchHTTP(ctx context.Context, u string) (io.ReadCloser, error) {
	resp, err := f.httpClient.Get(ctx, u)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch URL: %w", err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		_ = resp.Body.Close()
		return nil, &StatusError{StatusCode: resp.StatusCode}
	}

	return resp.Body, nil
}

func fetchFile(u string) (io.ReadCloser, error) {
	path, err := FilePathFromURL(u)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	return file, nil
}
