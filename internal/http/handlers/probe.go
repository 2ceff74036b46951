package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/Jelikton/iptv-checker/internal/probe"
	"github.com/Jelikton/iptv-checker/internal/service"
)

// ProbeHandler starts, cancels and reports probing rounds.
type ProbeHandler struct {
	checker *service.Checker
}

// NewProbeHandler creates a probe handler.
func NewProbeHandler(checker *service.Checker) *ProbeHandler {
	return &ProbeHandler{checker: checker}
}

// Register registers the probe routes with the API.
func (h *ProbeHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID:   "startProbe",
		Method:        http.MethodPost,
		Path:          "/api/v1/probe",
		Summary:       "Start probing round",
		Description:   "Probes every channel in the background. Only one round runs at a time.",
		Tags:          []string{"Probe"},
		DefaultStatus: http.StatusAccepted,
	}, h.Start)

	huma.Register(api, huma.Operation{
		OperationID: "cancelProbe",
		Method:      http.MethodDelete,
		Path:        "/api/v1/probe",
		Summary:     "Cancel probing round",
		Description: "Probes already running finish; the remaining channels are skipped",
		Tags:        []string{"Probe"},
	}, h.Cancel)

	huma.Register(api, huma.Operation{
		OperationID: "getProbeStatus",
		Method:      http.MethodGet,
		Path:        "/api/v1/probe",
		Summary:     "Get probing progress",
		Tags:        []string{"Probe"},
	}, h.Status)
}

// ProbeStatusOutput is the progress of a round.
type ProbeStatusOutput struct {
	Body ProbeStatusResponse
}

// Start begins a round.
func (h *ProbeHandler) Start(ctx context.Context, _ *struct{}) (*ProbeStatusOutput, error) {
	// the round outlives the request
	if _, err := h.checker.StartRound(context.WithoutCancel(ctx)); err != nil {
		if errors.Is(err, probe.ErrRoundInProgress) {
			return nil, huma.Error409Conflict("a probe round is already running")
		}
		return nil, huma.Error500InternalServerError("failed to start probe round", err)
	}
	return h.status()
}

// Cancel stops the active round.
func (h *ProbeHandler) Cancel(_ context.Context, _ *struct{}) (*ProbeStatusOutput, error) {
	if !h.checker.CancelRound() {
		return nil, huma.Error409Conflict("no probe round is running")
	}
	return h.status()
}

// Status reports the active round, or the last one.
func (h *ProbeHandler) Status(_ context.Context, _ *struct{}) (*ProbeStatusOutput, error) {
	return h.status()
}

func (h *ProbeHandler) status() (*ProbeStatusOutput, error) {
	s, ok := h.checker.RoundStatus()
	if !ok {
		return nil, huma.Error404NotFound("no probe round has run")
	}
	return &ProbeStatusOutput{Body: ProbeStatusFromRound(s)}, nil
}
