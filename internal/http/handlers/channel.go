package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/Jelikton/iptv-checker/internal/models"
	"github.com/Jelikton/iptv-checker/internal/player"
	"github.com/Jelikton/iptv-checker/internal/service"
	"github.com/Jelikton/iptv-checker/internal/storage"
)

// Launcher starts an external player for a stream URL.
type Launcher interface {
	Launch(ctx context.Context, url string) (player.Command, error)
}

// ChannelHandler serves the channel list and per-channel actions.
type ChannelHandler struct {
	checker  *service.Checker
	launcher Launcher
}

// NewChannelHandler creates a channel handler.
func NewChannelHandler(checker *service.Checker) *ChannelHandler {
	return &ChannelHandler{checker: checker}
}

// WithLauncher enables the play endpoint.
func (h *ChannelHandler) WithLauncher(launcher Launcher) *ChannelHandler {
	h.launcher = launcher
	return h
}

// Register registers the channel routes with the API.
func (h *ChannelHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "listChannels",
		Method:      http.MethodGet,
		Path:        "/api/v1/channels",
		Summary:     "List channels",
		Description: "Returns channels in manifest order with now-playing title and probe status",
		Tags:        []string{"Channels"},
	}, h.List)

	huma.Register(api, huma.Operation{
		OperationID: "getChannel",
		Method:      http.MethodGet,
		Path:        "/api/v1/channels/{number}",
		Summary:     "Get channel",
		Tags:        []string{"Channels"},
	}, h.Get)

	huma.Register(api, huma.Operation{
		OperationID: "updateChannelURL",
		Method:      http.MethodPatch,
		Path:        "/api/v1/channels/{number}",
		Summary:     "Update channel URL",
		Description: "Replaces the stream URL, saves the channel list and rechecks the channel",
		Tags:        []string{"Channels"},
	}, h.UpdateURL)

	huma.Register(api, huma.Operation{
		OperationID: "getChannelSchedule",
		Method:      http.MethodGet,
		Path:        "/api/v1/channels/{number}/schedule",
		Summary:     "Get channel schedule",
		Description: "Returns the guide programmes of the channel that have not ended yet",
		Tags:        []string{"Channels", "Guide"},
	}, h.Schedule)

	huma.Register(api, huma.Operation{
		OperationID: "playChannel",
		Method:      http.MethodPost,
		Path:        "/api/v1/channels/{number}/play",
		Summary:     "Open channel in player",
		Tags:        []string{"Channels"},
	}, h.Play)

	huma.Register(api, huma.Operation{
		OperationID: "listGroups",
		Method:      http.MethodGet,
		Path:        "/api/v1/groups",
		Summary:     "List channel groups",
		Tags:        []string{"Channels"},
	}, h.Groups)
}

// ListChannelsInput is the input for listing channels.
type ListChannelsInput struct {
	Group  string `query:"group" doc:"Exact group, case-insensitive"`
	Search string `query:"search" doc:"Substring of the channel name"`
}

// ListChannelsOutput is the output for listing channels.
type ListChannelsOutput struct {
	Body struct {
		Items []ChannelResponse `json:"items"`
		Total int               `json:"total"`
	}
}

// List returns the filtered channels.
func (h *ChannelHandler) List(_ context.Context, input *ListChannelsInput) (*ListChannelsOutput, error) {
	views := h.checker.Views(models.ChannelFilter{Group: input.Group, Search: input.Search})

	out := &ListChannelsOutput{}
	out.Body.Items = make([]ChannelResponse, len(views))
	for i, v := range views {
		out.Body.Items[i] = ChannelFromView(v)
	}
	out.Body.Total = len(views)
	return out, nil
}

// ChannelNumberInput addresses one channel.
type ChannelNumberInput struct {
	Number int `path:"number" minimum:"1" doc:"Channel number"`
}

// ChannelOutput is a single channel.
type ChannelOutput struct {
	Body ChannelResponse
}

// Get returns one channel.
func (h *ChannelHandler) Get(_ context.Context, input *ChannelNumberInput) (*ChannelOutput, error) {
	v, ok := h.checker.View(input.Number)
	if !ok {
		return nil, huma.Error404NotFound("channel not found")
	}
	return &ChannelOutput{Body: ChannelFromView(v)}, nil
}

// UpdateURLInput is the input for changing a stream URL.
type UpdateURLInput struct {
	Number int `path:"number" minimum:"1" doc:"Channel number"`
	Body   struct {
		URL string `json:"url" minLength:"1" doc:"New stream URL"`
	}
}

// UpdateURL replaces a stream URL and returns the rechecked channel.
func (h *ChannelHandler) UpdateURL(ctx context.Context, input *UpdateURLInput) (*ChannelOutput, error) {
	v, err := h.checker.UpdateURL(ctx, input.Number, input.Body.URL)
	if err != nil {
		var validation models.ErrValidation
		switch {
		case errors.As(err, &validation):
			return nil, huma.Error422UnprocessableEntity(validation.Message)
		case errors.Is(err, storage.ErrChannelNotFound):
			return nil, huma.Error404NotFound("channel not found")
		default:
			return nil, huma.Error500InternalServerError("failed to update channel", err)
		}
	}
	return &ChannelOutput{Body: ChannelFromView(v)}, nil
}

// ScheduleOutput lists upcoming programmes.
type ScheduleOutput struct {
	Body struct {
		Items []ScheduleEntryResponse `json:"items"`
	}
}

// Schedule returns the remaining guide entries of one channel.
func (h *ChannelHandler) Schedule(_ context.Context, input *ChannelNumberInput) (*ScheduleOutput, error) {
	entries, ok := h.checker.Schedule(input.Number)
	if !ok {
		return nil, huma.Error404NotFound("channel not found")
	}
	out := &ScheduleOutput{}
	out.Body.Items = ScheduleFromEntries(entries)
	return out, nil
}

// PlayOutput reports the started player command.
type PlayOutput struct {
	Body struct {
		Command string `json:"command"`
	}
}

// Play opens the channel's stream in the configured player.
func (h *ChannelHandler) Play(ctx context.Context, input *ChannelNumberInput) (*PlayOutput, error) {
	if h.launcher == nil {
		return nil, huma.Error503ServiceUnavailable("player launching is disabled")
	}
	v, ok := h.checker.View(input.Number)
	if !ok {
		return nil, huma.Error404NotFound("channel not found")
	}

	cmd, err := h.launcher.Launch(ctx, v.URL)
	if err != nil {
		if errors.Is(err, player.ErrNoURL) {
			return nil, huma.Error422UnprocessableEntity("channel has no stream URL")
		}
		return nil, huma.Error500InternalServerError("failed to start player", err)
	}

	out := &PlayOutput{}
	out.Body.Command = cmd.String()
	return out, nil
}

// GroupsOutput lists the channel groups.
type GroupsOutput struct {
	Body struct {
		Groups []string `json:"groups"`
	}
}

// Groups returns the distinct groups in manifest order.
func (h *ChannelHandler) Groups(_ context.Context, _ *struct{}) (*GroupsOutput, error) {
	out := &GroupsOutput{}
	out.Body.Groups = h.checker.Groups()
	if out.Body.Groups == nil {
		out.Body.Groups = []string{}
	}
	return out, nil
}
