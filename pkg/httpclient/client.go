// Package httpclient provides a single-shot HTTP client with transparent
// decompression, response size limits and structured logging.
//
// Requests are never retried: every caller gets exactly one attempt and
// decides what a failure means for its own result.
package httpclient

import (
	"compress/flate"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/andybalholm/brotli"
)

// ErrResponseTooLarge is returned by limited readers once the limit is passed.
var ErrResponseTooLarge = errors.New("response body exceeds maximum size limit")

// Default configuration values.
const (
	DefaultTimeout              = 30 * time.Second
	DefaultAcceptEncodingHeader = "gzip, deflate, br"
	DefaultUserAgentHeader      = "iptv-checker"
)

// HTTP header constants.
const (
	HeaderAcceptEncoding  = "Accept-Encoding"
	HeaderContentEncoding = "Content-Encoding"
	HeaderUserAgent       = "User-Agent"

	EncodingGzip    = "gzip"
	EncodingDeflate = "deflate"
	EncodingBrotli  = "br"
)

// Config holds the configuration for the HTTP client.
type Config struct {
	// Timeout bounds a whole request including reading the body. Zero
	// leaves timing to the request context.
	Timeout time.Duration

	// UserAgent is sent with every request that does not set its own.
	UserAgent string

	// Logger receives request logs. Defaults to slog.Default().
	Logger *slog.Logger

	// EnableDecompression decodes gzip, deflate and br Content-Encoding.
	EnableDecompression bool

	// MaxResponseSize caps the decoded body in bytes (0 = no limit).
	MaxResponseSize int64

	// BaseClient is the underlying http.Client. If nil one is created.
	BaseClient *http.Client
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Timeout:             DefaultTimeout,
		UserAgent:           DefaultUserAgentHeader,
		EnableDecompression: true,
	}
}

// Client wraps http.Client.
type Client struct {
	config Config
	client *http.Client
	logger *slog.Logger
}

// New creates a client from cfg.
func New(cfg Config) *Client {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	client := cfg.BaseClient
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}

	return &Client{config: cfg, client: client, logger: logger}
}

// Do executes req once with the client's default headers applied.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	if req.Header.Get(HeaderUserAgent) == "" && c.config.UserAgent != "" {
		req.Header.Set(HeaderUserAgent, c.config.UserAgent)
	}
	if c.config.EnableDecompression && req.Method != http.MethodHead && req.Header.Get(HeaderAcceptEncoding) == "" {
		req.Header.Set(HeaderAcceptEncoding, DefaultAcceptEncodingHeader)
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	duration := time.Since(start)
	if err != nil {
		c.logger.Debug("request failed",
			slog.String("url", ObfuscateURL(req.URL.String())),
			slog.String("method", req.Method),
			slog.Duration("duration", duration),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	c.logger.Debug("request completed",
		slog.String("url", ObfuscateURL(req.URL.String())),
		slog.String("method", req.Method),
		slog.Int("status", resp.StatusCode),
		slog.Duration("duration", duration),
		slog.Int64("content_length", resp.ContentLength),
	)

	if c.config.EnableDecompression {
		resp.Body = c.wrapDecompression(resp)
	}
	if c.config.MaxResponseSize > 0 {
		resp.Body = NewLimitedReader(resp.Body, c.config.MaxResponseSize)
	}

	return resp, nil
}

// Get performs a GET request.
func (c *Client) Get(ctx context.Context, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	return c.Do(req)
}

// Head performs a HEAD request. Redirects are followed by the underlying client.
func (c *Client) Head(ctx context.Context, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	return c.Do(req)
}

func (c *Client) wrapDecompression(resp *http.Response) io.ReadCloser {
	encoding := strings.ToLower(strings.TrimSpace(resp.Header.Get(HeaderContentEncoding)))

	switch encoding {
	case "", "identity":
		return resp.Body
	case EncodingGzip:
		reader, err := gzip.NewReader(resp.Body)
		if err != nil {
			c.logger.Warn("failed to create gzip reader, returning raw body",
				slog.String("error", err.Error()),
			)
			return resp.Body
		}
		return &decompressReader{reader: reader, closer: resp.Body}
	case EncodingDeflate:
		return &decompressReader{reader: flate.NewReader(resp.Body), closer: resp.Body}
	case EncodingBrotli:
		return &decompressReader{reader: brotli.NewReader(resp.Body), closer: resp.Body}
	default:
		c.logger.Debug("unknown content encoding, returning raw body",
			slog.String("encoding", encoding),
		)
		return resp.Body
	}
}

type decompressReader struct {
	reader io.Reader
	closer io.Closer
}

func (d *decompressReader) Read(p []byte) (int, error) {
	return d.reader.Read(p)
}

func (d *decompressReader) Close() error {
	if closer, ok := d.reader.(io.Closer); ok {
		_ = closer.Close()
	}
	return d.closer.Close()
}

// LimitedReader fails with ErrResponseTooLarge once more than its limit has
// been read. Reading exactly limit bytes is allowed.
type LimitedReader struct {
	reader    io.Reader
	closer    io.Closer
	remaining int64
	exceeded  bool
}

// NewLimitedReader wraps r with a limit in bytes. r may be an io.ReadCloser.
func NewLimitedReader(r io.Reader, limit int64) *LimitedReader {
	l := &LimitedReader{reader: r, remaining: limit}
	if c, ok := r.(io.Closer); ok {
		l.closer = c
	}
	return l
}

func (l *LimitedReader) Read(p []byte) (int, error) {
	if l.exceeded {
		return 0, ErrResponseTooLarge
	}

	n, err := l.reader.Read(p)
	l.remaining -= int64(n)
	if l.remaining < 0 {
		l.exceeded = true
		return n, ErrResponseTooLarge
	}
	return n, err
}

// Close closes the wrapped reader when it is closable.
func (l *LimitedReader) Close() error {
	if l.closer == nil {
		return nil
	}
	return l.closer.Close()
}

var sensitiveParams = []string{
	"password", "passwd", "pass", "pwd",
	"token", "api_key", "apikey", "key",
	"secret", "auth", "authorization",
	"credential", "credentials",
}

// ObfuscateURL masks credential query parameters and userinfo passwords so a
// URL can be logged or shown. Masked values are written as a literal "***";
// every other part of the URL, including query parameter order, is kept.
// Unparseable input is returned unchanged.
func ObfuscateURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.RawQuery == "" && u.User == nil {
		return rawURL
	}

	sanitized := *u
	userinfo := ""
	if sanitized.User != nil {
		if _, ok := sanitized.User.Password(); ok {
			userinfo = url.User(sanitized.User.Username()).String() + ":***"
			sanitized.User = nil
		}
	}

	if sanitized.RawQuery != "" {
		sanitized.RawQuery = maskQuery(sanitized.RawQuery)
	}

	out := sanitized.String()
	if userinfo != "" {
		out = strings.Replace(out, "//", "//"+userinfo+"@", 1)
	}
	return out
}

// maskQuery replaces the values of sensitive parameters in a raw query,
// leaving every other pair byte-for-byte intact.
func maskQuery(rawQuery string) string {
	pairs := strings.Split(rawQuery, "&")
	for i, pair := range pairs {
		key, _, _ := strings.Cut(pair, "=")
		name, err := url.QueryUnescape(key)
		if err != nil {
			name = key
		}
		if isSensitiveParam(name) {
			pairs[i] = key + "=***"
		}
	}
	return strings.Join(pairs, "&")
}

func isSensitiveParam(name string) bool {
	for _, param := range sensitiveParams {
		if strings.EqualFold(name, param) {
			return true
		}
	}
	return false
}
