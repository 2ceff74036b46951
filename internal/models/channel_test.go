package models

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func sampleChannels() []Channel {
	return []Channel{
		{Number: 1, Name: "BBC One HD", TvgName: "BBC One", Group: "UK"},
		{Number: 2, Name: "Das Erste", TvgName: "ARD", Group: "DE"},
		{Number: 3, Name: "Straße TV", TvgName: "Strasse", Group: "de"},
		{Number: 4, Name: "News 24", TvgName: "News 24", Group: DefaultGroup},
	}
}

func TestChannel_Validate(t *testing.T) {
	ok := Channel{Number: 1, Name: "One"}
	assert.NoError(t, ok.Validate())

	var verr ErrValidation
	bad := Channel{Number: 0, Name: "Zero"}
	err := bad.Validate()
	assert.True(t, errors.As(err, &verr))
	assert.Equal(t, "number", verr.Field)

	noName := Channel{Number: 2, Name: "  "}
	assert.Error(t, noName.Validate())
}

func TestChannelFilter_Apply(t *testing.T) {
	channels := sampleChannels()

	assert.Len(t, ChannelFilter{}.Apply(channels), 4)

	byGroup := ChannelFilter{Group: "de"}.Apply(channels)
	assert.Equal(t, []int{2, 3}, numbers(byGroup))

	bySearch := ChannelFilter{Search: "bbc"}.Apply(channels)
	assert.Equal(t, []int{1}, numbers(bySearch))

	byTvgName := ChannelFilter{Search: "ard"}.Apply(channels)
	assert.Equal(t, []int{2}, numbers(byTvgName))

	folded := ChannelFilter{Search: "STRASSE"}.Apply(channels)
	assert.Equal(t, []int{3}, numbers(folded))

	both := ChannelFilter{Group: "UK", Search: "news"}.Apply(channels)
	assert.Empty(t, both)
}

func TestGroups(t *testing.T) {
	assert.Equal(t, []string{"UK", "DE", "de", DefaultGroup}, Groups(sampleChannels()))
	assert.Empty(t, Groups(nil))
}

func TestResultForStatus(t *testing.T) {
	tests := []struct {
		code     int
		severity Severity
		label    string
	}{
		{http.StatusOK, SeverityOK, "OK"},
		{http.StatusNoContent, SeverityOK, "OK"},
		{http.StatusNotFound, SeverityNotFound, "Not found"},
		{http.StatusForbidden, SeverityForbidden, "Forbidden"},
		{http.StatusMethodNotAllowed, SeverityMethodNotAllowed, "HEAD not allowed"},
		{http.StatusInternalServerError, SeverityOtherHTTPError, "Error 500"},
		{http.StatusMovedPermanently, SeverityOtherHTTPError, "Error 301"},
	}
	for _, tt := range tests {
		r := ResultForStatus(tt.code)
		assert.Equal(t, tt.severity, r.Severity, tt.code)
		assert.Equal(t, tt.label, r.Label, tt.code)
		assert.Equal(t, tt.code, r.StatusCode)
	}
}

func TestSeverity_IsReachable(t *testing.T) {
	for _, s := range Severities {
		assert.Equal(t, s == SeverityOK, s.IsReachable(), s)
	}
}

func numbers(channels []Channel) []int {
	out := make([]int, len(channels))
	for i, ch := range channels {
		out[i] = ch.Number
	}
	return out
}
