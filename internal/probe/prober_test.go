package probe

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Jelikton/iptv-checker/internal/models"
	"github.com/Jelikton/iptv-checker/pkg/httpclient"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type requestLog struct {
	mu      sync.Mutex
	methods []string
	agents  []string
	hits    atomic.Int32
}

func newStreamServer(t *testing.T) (*httptest.Server, *requestLog) {
	t.Helper()
	log := &requestLog{}

	mux := http.NewServeMux()
	mux.HandleFunc("/ok", func(w http.ResponseWriter, r *http.Request) {})
	mux.HandleFunc("/nocontent", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("/missing", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	mux.HandleFunc("/forbidden", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})
	mux.HandleFunc("/nohead", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusMethodNotAllowed)
	})
	mux.HandleFunc("/broken", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	mux.HandleFunc("/teapot", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	mux.HandleFunc("/moved", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/ok", http.StatusFound)
	})
	mux.HandleFunc("/moved-missing", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/missing", http.StatusMovedPermanently)
	})
	mux.HandleFunc("/loop", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/loop", http.StatusFound)
	})
	mux.HandleFunc("/slow", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log.hits.Add(1)
		log.mu.Lock()
		log.methods = append(log.methods, r.Method)
		log.agents = append(log.agents, r.Header.Get("User-Agent"))
		log.mu.Unlock()
		mux.ServeHTTP(w, r)
	}))
	t.Cleanup(server.Close)
	return server, log
}

func newTestProber() *Prober {
	cfg := httpclient.DefaultConfig()
	cfg.UserAgent = "iptv-checker/test"
	return NewProber(cfg, nil)
}

func TestProber_StatusClassification(t *testing.T) {
	server, log := newStreamServer(t)
	p := newTestProber()

	tests := []struct {
		path     string
		severity models.Severity
		code     int
		label    string
	}{
		{"/ok", models.SeverityOK, 200, "OK"},
		{"/nocontent", models.SeverityOK, 204, "OK"},
		{"/missing", models.SeverityNotFound, 404, "Not found"},
		{"/forbidden", models.SeverityForbidden, 403, "Forbidden"},
		{"/nohead", models.SeverityMethodNotAllowed, 405, "HEAD not allowed"},
		{"/broken", models.SeverityOtherHTTPError, 500, "Error 500"},
		{"/teapot", models.SeverityOtherHTTPError, 418, "Error 418"},
		{"/moved", models.SeverityOK, 200, "OK"},
		{"/moved-missing", models.SeverityNotFound, 404, "Not found"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got := p.Probe(context.Background(), server.URL+tt.path, time.Second)
			assert.Equal(t, tt.severity, got.Severity)
			assert.Equal(t, tt.code, got.StatusCode)
			assert.Equal(t, tt.label, got.Label)
		})
	}

	log.mu.Lock()
	defer log.mu.Unlock()
	for i, m := range log.methods {
		assert.Equal(t, http.MethodHead, m)
		assert.Equal(t, "iptv-checker/test", log.agents[i])
	}
}

func TestProber_NoNetworkCases(t *testing.T) {
	server, log := newStreamServer(t)
	p := newTestProber()

	tests := []struct {
		name string
		url  string
		want models.ProbeResult
	}{
		{"dash manifest", server.URL + "/live/manifest.mpd", models.ResultDASH},
		{"dash manifest upper case with query", server.URL + "/live/MANIFEST.MPD?token=x", models.ResultDASH},
		{"rtsp", "rtsp://camera.example/live", models.ResultNonHTTP},
		{"udp multicast", "udp://@239.0.0.1:1234", models.ResultNonHTTP},
		{"blank", "   ", models.ResultNonHTTP},
		{"relative", "/streams/1.ts", models.ResultNonHTTP},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, p.Probe(context.Background(), tt.url, time.Second))
		})
	}
	assert.Zero(t, log.hits.Load(), "no request may be sent")
}

func TestProber_Timeout(t *testing.T) {
	server, _ := newStreamServer(t)

	start := time.Now()
	got := newTestProber().Probe(context.Background(), server.URL+"/slow", 50*time.Millisecond)
	assert.Equal(t, models.ResultTimeout, got)
	assert.Less(t, time.Since(start), time.Second)
}

func TestProber_ConnectionRefused(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL + "/stream.ts"
	server.Close()

	assert.Equal(t, models.ResultConnectionError, newTestProber().Probe(context.Background(), url, time.Second))
}

func TestProber_RequestErrors(t *testing.T) {
	server, _ := newStreamServer(t)
	p := newTestProber()

	assert.Equal(t, models.ResultRequestError, p.Probe(context.Background(), "http://[::1", time.Second))
	assert.Equal(t, models.ResultRequestError, p.Probe(context.Background(), server.URL+"/loop", 5*time.Second))
}

type panicTransport struct{}

func (panicTransport) RoundTrip(*http.Request) (*http.Response, error) {
	panic("transport exploded")
}

func TestProber_PanicIsUnknown(t *testing.T) {
	cfg := httpclient.DefaultConfig()
	cfg.BaseClient = &http.Client{Transport: panicTransport{}}
	p := NewProber(cfg, nil)

	var got models.ProbeResult
	require.NotPanics(t, func() {
		got = p.Probe(context.Background(), "http://example.invalid/x", time.Second)
	})
	assert.Equal(t, models.ResultUnknown, got)
}

func TestProber_NoRetry(t *testing.T) {
	server, log := newStreamServer(t)
	newTestProber().Probe(context.Background(), server.URL+"/broken", time.Second)
	assert.Equal(t, int32(1), log.hits.Load())
}

func TestDescribe(t *testing.T) {
	assert.Equal(t, "OK (200)", Describe(models.ResultForStatus(200)))
	assert.Equal(t, "Error 500", Describe(models.ResultForStatus(500)))
	assert.Equal(t, "Timeout", Describe(models.ResultTimeout))
}
