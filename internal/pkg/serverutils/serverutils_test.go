package serverutils

import (
	"errors"
	"fmt"
	"testing"

	"biblo-chat-be/pkg/store"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseUserAgent(t *testing.T) {
	tests := []struct {
		name        string
		ua          string
		wantOS      string
		wantBrowser string
	}{
		{
			name:        "chrome on windows",
			ua:          "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			wantOS:      "Windows",
			wantBrowser: "Chrome",
		},
		{
			name:        "safari on iphone",
			ua:          "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1",
			wantOS:      "iPhone",
			wantBrowser: "Safari",
		},
		{
			name:        "empty header",
			ua:          "",
			wantOS:      "unknown",
			wantBrowser: "unknown",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			meta := ParseUserAgent("10.0.0.1", tt.ua)
			assert.Equal(t, "10.0.0.1", meta.IP)
			assert.Contains(t, meta.OS, tt.wantOS)
			assert.Contains(t, meta.Browser, tt.wantBrowser)
		})
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "fiber error", err: fiber.NewError(fiber.StatusServiceUnavailable, "off"), want: fiber.StatusServiceUnavailable},
		{name: "validation", err: &ValidationError{Fields: map[string]string{"SessionID": "is required"}}, want: fiber.StatusBadRequest},
		{name: "invalid feedback", err: store.ErrInvalidFeedback, want: fiber.StatusBadRequest},
		{name: "wrapped session not found", err: fmt.Errorf("lookup: %w", store.ErrSessionNotFound), want: fiber.StatusNotFound},
		{name: "message not found", err: store.ErrMessageNotFound, want: fiber.StatusNotFound},
		{name: "session ended", err: store.ErrSessionEnded, want: fiber.StatusGone},
		{name: "anything else", err: errors.New("boom"), want: fiber.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StatusFor(tt.err))
		})
	}
}

func TestValidateRequest(t *testing.T) {
	type request struct {
		SessionID string `validate:"required"`
		Value     *int   `validate:"required,oneof=0 1"`
		PageSize  int    `validate:"omitempty,min=1,max=100"`
	}
	one, five := 1, 5

	require.NoError(t, ValidateRequest(request{SessionID: "s", Value: &one}))

	err := ValidateRequest(request{Value: &five, PageSize: 500})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "is required", verr.Fields["SessionID"])
	assert.Equal(t, "must be one of 0 1", verr.Fields["Value"])
	assert.Equal(t, "must be at most 100", verr.Fields["PageSize"])
}
