package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/Jelikton/iptv-checker/internal/models"
	"github.com/Jelikton/iptv-checker/internal/service"
)

// RoundHandler serves the stored probe history.
type RoundHandler struct {
	checker *service.Checker
}

// NewRoundHandler creates a round history handler.
func NewRoundHandler(checker *service.Checker) *RoundHandler {
	return &RoundHandler{checker: checker}
}

// Register registers the history routes with the API.
func (h *RoundHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "listRounds",
		Method:      http.MethodGet,
		Path:        "/api/v1/rounds",
		Summary:     "List stored probe rounds",
		Description: "Returns finished rounds, newest first. Empty when history is disabled.",
		Tags:        []string{"Probe"},
	}, h.List)

	huma.Register(api, huma.Operation{
		OperationID: "getRound",
		Method:      http.MethodGet,
		Path:        "/api/v1/rounds/{id}",
		Summary:     "Get a stored probe round",
		Description: "Returns one finished round with the outcome of every probed channel.",
		Tags:        []string{"Probe"},
	}, h.Get)
}

// ListRoundsInput is the input for listing rounds.
type ListRoundsInput struct {
	Limit int `query:"limit" default:"20" minimum:"1" maximum:"500"`
}

// ListRoundsOutput is the output for listing rounds.
type ListRoundsOutput struct {
	Body struct {
		Items []RoundResponse `json:"items"`
	}
}

// List returns recent rounds.
func (h *RoundHandler) List(ctx context.Context, input *ListRoundsInput) (*ListRoundsOutput, error) {
	rounds, err := h.checker.Rounds(ctx, input.Limit)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to list rounds", err)
	}

	out := &ListRoundsOutput{}
	out.Body.Items = make([]RoundResponse, len(rounds))
	for i, r := range rounds {
		out.Body.Items[i] = RoundFromModel(r)
	}
	return out, nil
}

// GetRoundInput addresses one stored round.
type GetRoundInput struct {
	ID string `path:"id" doc:"Round ULID"`
}

// RoundDetailOutput is a stored round with outcomes.
type RoundDetailOutput struct {
	Body RoundDetailResponse
}

// Get returns one stored round.
func (h *RoundHandler) Get(ctx context.Context, input *GetRoundInput) (*RoundDetailOutput, error) {
	round, err := h.checker.Round(ctx, input.ID)
	if err != nil {
		var validation models.ErrValidation
		if errors.As(err, &validation) {
			return nil, huma.Error422UnprocessableEntity(validation.Message)
		}
		return nil, huma.Error500InternalServerError("failed to get round", err)
	}
	if round == nil {
		return nil, huma.Error404NotFound("round not found")
	}
	return &RoundDetailOutput{Body: RoundDetailFromModel(round)}, nil
}
