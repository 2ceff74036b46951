package models

import (
	"fmt"
	"net/http"
)

// Severity classifies the outcome of one reachability probe.
type Severity string

const (
	SeverityOK               Severity = "ok"
	SeverityNotFound         Severity = "not_found"
	SeverityForbidden        Severity = "forbidden"
	SeverityMethodNotAllowed Severity = "method_not_allowed"
	SeverityOtherHTTPError   Severity = "other_http_error"
	SeverityTimeout          Severity = "timeout"
	SeverityConnectionError  Severity = "connection_error"
	SeverityRequestError     Severity = "request_error"
	SeverityNonHTTPScheme    Severity = "non_http_scheme"
	SeverityUnknown          Severity = "unknown"
)

// Severities lists every severity in display order.
var Severities = []Severity{
	SeverityOK,
	SeverityNotFound,
	SeverityForbidden,
	SeverityMethodNotAllowed,
	SeverityOtherHTTPError,
	SeverityTimeout,
	SeverityConnectionError,
	SeverityRequestError,
	SeverityNonHTTPScheme,
	SeverityUnknown,
}

// IsReachable reports whether the stream answered successfully.
func (s Severity) IsReachable() bool {
	return s == SeverityOK
}

// ProbeResult is the reachability verdict for one channel in one round.
type ProbeResult struct {
	Label string `json:"label"`
	// StatusCode is the final HTTP status, 0 when no response was received.
	StatusCode int      `json:"status_code,omitempty"`
	Severity   Severity `json:"severity"`
}

// ResultForStatus maps an HTTP status code to a result.
func ResultForStatus(code int) ProbeResult {
	switch {
	case code >= 200 && code < 300:
		return ProbeResult{Label: "OK", StatusCode: code, Severity: SeverityOK}
	case code == http.StatusNotFound:
		return ProbeResult{Label: "Not found", StatusCode: code, Severity: SeverityNotFound}
	case code == http.StatusForbidden:
		return ProbeResult{Label: "Forbidden", StatusCode: code, Severity: SeverityForbidden}
	case code == http.StatusMethodNotAllowed:
		return ProbeResult{Label: "HEAD not allowed", StatusCode: code, Severity: SeverityMethodNotAllowed}
	default:
		return ProbeResult{Label: fmt.Sprintf("Error %d", code), StatusCode: code, Severity: SeverityOtherHTTPError}
	}
}

// Results without a status code.
var (
	ResultDASH            = ProbeResult{Label: "DASH (.mpd)", Severity: SeverityOK}
	ResultTimeout         = ProbeResult{Label: "Timeout", Severity: SeverityTimeout}
	ResultConnectionError = ProbeResult{Label: "Connection error", Severity: SeverityConnectionError}
	ResultRequestError    = ProbeResult{Label: "Request error", Severity: SeverityRequestError}
	ResultNonHTTP         = ProbeResult{Label: "Not HTTP(S)", Severity: SeverityNonHTTPScheme}
	ResultUnknown         = ProbeResult{Label: "Unknown", Severity: SeverityUnknown}
)
