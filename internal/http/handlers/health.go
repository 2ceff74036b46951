package handlers

import (
	"context"
	"net/http"
	"os"
	"runtime"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/shirou/gopsutil/v4/mem"
	"github.com/shirou/gopsutil/v4/process"
)

const bytesPerMB = 1024 * 1024

// Pinger checks a dependency's connection.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	version   string
	startTime time.Time
	db        Pinger
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(version string) *HealthHandler {
	return &HealthHandler{
		version:   version,
		startTime: time.Now(),
	}
}

// WithDB adds the history database to the health checks.
func (h *HealthHandler) WithDB(db Pinger) *HealthHandler {
	h.db = db
	return h
}

// Register registers the health routes with the API.
func (h *HealthHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "getHealth",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
		Description: "Returns the health status of the service including memory usage",
		Tags:        []string{"System"},
	}, h.GetHealth)
}

// MemoryInfo holds system and process memory figures.
type MemoryInfo struct {
	TotalMB     float64 `json:"total_mb"`
	UsedMB      float64 `json:"used_mb"`
	AvailableMB float64 `json:"available_mb"`
	ProcessMB   float64 `json:"process_mb"`
	HeapMB      float64 `json:"heap_mb"`
}

// HealthResponse is the health check body.
type HealthResponse struct {
	Status        string            `json:"status" enum:"healthy,degraded"`
	Timestamp     string            `json:"timestamp"`
	Version       string            `json:"version"`
	Uptime        string            `json:"uptime"`
	UptimeSeconds float64           `json:"uptime_seconds"`
	Goroutines    int               `json:"goroutines"`
	Memory        MemoryInfo        `json:"memory"`
	Checks        map[string]string `json:"checks"`
}

// HealthOutput is the output for the health check endpoint.
type HealthOutput struct {
	Body HealthResponse
}

// GetHealth returns the health status of the service.
func (h *HealthHandler) GetHealth(ctx context.Context, _ *struct{}) (*HealthOutput, error) {
	now := time.Now()
	uptime := now.Sub(h.startTime)

	status := "healthy"
	checks := map[string]string{}
	if h.db != nil {
		if err := h.db.Ping(ctx); err != nil {
			status = "degraded"
			checks["database"] = "error: " + err.Error()
		} else {
			checks["database"] = "ok"
		}
	}

	return &HealthOutput{
		Body: HealthResponse{
			Status:        status,
			Timestamp:     now.UTC().Format(time.RFC3339),
			Version:       h.version,
			Uptime:        uptime.Round(time.Second).String(),
			UptimeSeconds: uptime.Seconds(),
			Goroutines:    runtime.NumGoroutine(),
			Memory:        memoryInfo(ctx),
			Checks:        checks,
		},
	}, nil
}

// memoryInfo collects what is available; figures the platform cannot
// report stay zero.
func memoryInfo(ctx context.Context) MemoryInfo {
	var info MemoryInfo

	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil && vm != nil {
		info.TotalMB = float64(vm.Total) / bytesPerMB
		info.UsedMB = float64(vm.Used) / bytesPerMB
		info.AvailableMB = float64(vm.Available) / bytesPerMB
	}

	if proc, err := process.NewProcessWithContext(ctx, int32(os.Getpid())); err == nil {
		if pm, err := proc.MemoryInfoWithContext(ctx); err == nil && pm != nil {
			info.ProcessMB = float64(pm.RSS) / bytesPerMB
		}
	}

	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	info.HeapMB = float64(ms.HeapAlloc) / bytesPerMB

	return info
}
