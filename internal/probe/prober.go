// Package probe checks stream URLs for reachability, one at a time or as a
// bounded concurrent round.
package probe

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strings"
	"syscall"
	"time"

	"github.com/Jelikton/iptv-checker/internal/models"
	"github.com/Jelikton/iptv-checker/internal/observability"
	"github.com/Jelikton/iptv-checker/internal/urlutil"
	"github.com/Jelikton/iptv-checker/pkg/httpclient"
)

// DefaultTimeout bounds a single probe.
const DefaultTimeout = 5 * time.Second

// URLProber classifies the reachability of one URL.
type URLProber interface {
	Probe(ctx context.Context, url string, timeLimit time.Duration) models.ProbeResult
}

// Prober issues HEAD requests and classifies the outcome. It never retries.
type Prober struct {
	client *httpclient.Client
	logger *slog.Logger
}

// NewProber creates a prober. The per-request deadline comes from the time
// limit passed to Probe; compressed bodies are never requested.
func NewProber(cfg httpclient.Config, logger *slog.Logger) *Prober {
	if logger == nil {
		logger = observability.Discard()
	}
	cfg.Timeout = 0
	cfg.EnableDecompression = false
	cfg.MaxResponseSize = 0
	if cfg.Logger == nil {
		cfg.Logger = logger
	}
	return &Prober{
		client: httpclient.New(cfg),
		logger: observability.WithComponent(logger, "prober"),
	}
}

// Probe checks url once. Blank and non-HTTP(S) URLs are classified without
// I/O, as are URLs whose path ends in .mpd. A non-positive timeLimit selects
// DefaultTimeout.
func (p *Prober) Probe(ctx context.Context, url string, timeLimit time.Duration) (result models.ProbeResult) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("probe panicked",
				slog.String("url", httpclient.ObfuscateURL(url)),
				slog.Any("panic", r),
			)
			result = models.ResultUnknown
		}
	}()

	url = strings.TrimSpace(url)
	if !urlutil.IsHTTPURL(url) {
		return models.ResultNonHTTP
	}
	if urlutil.HasPathSuffix(url, ".mpd") {
		return models.ResultDASH
	}

	if timeLimit <= 0 {
		timeLimit = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeLimit)
	defer cancel()

	resp, err := p.client.Head(ctx, url)
	if err != nil {
		result = Classify(ctx, err)
		p.logger.Debug("probe failed",
			slog.String("url", httpclient.ObfuscateURL(url)),
			slog.String("severity", string(result.Severity)),
			slog.String("error", err.Error()),
		)
		return result
	}
	// drain so the connection can be reused
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	_ = resp.Body.Close()

	return models.ResultForStatus(resp.StatusCode)
}

// Classify maps a request error to a result. ctx is the request context and
// is used to recognise deadline expiry.
func Classify(ctx context.Context, err error) models.ProbeResult {
	switch {
	case err == nil:
		return models.ResultUnknown
	case errors.Is(err, context.DeadlineExceeded), errors.Is(ctx.Err(), context.DeadlineExceeded):
		return models.ResultTimeout
	case isTimeout(err):
		return models.ResultTimeout
	case isConnectionError(err):
		return models.ResultConnectionError
	default:
		return models.ResultRequestError
	}
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func isConnectionError(err error) bool {
	var (
		dnsErr      *net.DNSError
		opErr       *net.OpError
		certErr     *tls.CertificateVerificationError
		unknownAuth x509.UnknownAuthorityError
		hostErr     x509.HostnameError
		invalidErr  x509.CertificateInvalidError
		recordErr   tls.RecordHeaderError
	)
	switch {
	case errors.As(err, &dnsErr), errors.As(err, &opErr):
		return true
	case errors.Is(err, syscall.ECONNREFUSED), errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.EHOSTUNREACH), errors.Is(err, syscall.ENETUNREACH):
		return true
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return true
	case errors.As(err, &certErr), errors.As(err, &unknownAuth),
		errors.As(err, &hostErr), errors.As(err, &invalidErr), errors.As(err, &recordErr):
		return true
	}
	return false
}

// Describe renders a result for logs and tables, e.g. "Not found (404)".
func Describe(r models.ProbeResult) string {
	if r.StatusCode == 0 || r.Severity == models.SeverityOtherHTTPError {
		return r.Label
	}
	return fmt.Sprintf("%s (%d)", r.Label, r.StatusCode)
}

var _ URLProber = (*Prober)(nil)
