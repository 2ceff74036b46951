package handlers

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/Jelikton/iptv-checker/internal/service"
)

// GuideHandler reports the program guide state.
type GuideHandler struct {
	checker *service.Checker
}

// NewGuideHandler creates a guide handler.
func NewGuideHandler(checker *service.Checker) *GuideHandler {
	return &GuideHandler{checker: checker}
}

// Register registers the guide routes with the API.
func (h *GuideHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "getGuide",
		Method:      http.MethodGet,
		Path:        "/api/v1/guide",
		Summary:     "Get guide status",
		Tags:        []string{"Guide"},
	}, h.Get)
}

// GuideOutput is the guide status.
type GuideOutput struct {
	Body GuideResponse
}

// Get returns the guide status.
func (h *GuideHandler) Get(_ context.Context, _ *struct{}) (*GuideOutput, error) {
	s := h.checker.GuideStatus()
	return &GuideOutput{Body: GuideResponse{
		URL:        s.URL,
		Loading:    s.Loading,
		Loaded:     s.Loaded,
		Channels:   s.Channels,
		Programmes: s.Programmes,
		LoadedAt:   s.LoadedAt,
	}}, nil
}
