package agent

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIsReasoningModel(t *testing.T) {
	tests := []struct {
		model string
		want  bool
	}{
		{"o1", true},
		{"o1-mini", true},
		{"o3-mini-2025-01-31", true},
		{"o4-mini", true},
		{"gpt-5", true},
		{"gpt-5-mini", true},
		{"GPT-5-nano", true},
		{"gpt-4o", false},
		{"gpt-4o-mini", false},
		{"gpt-4.1", false},
		{"claude-sonnet-4-5", false},
		{"o1000-custom", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			assert.Equal(t, tt.want, IsReasoningModel(tt.model))
		})
	}
}

func TestHumanizeDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{2 * time.Second, "a few seconds"},
		{9 * time.Second, "a few seconds"},
		{30 * time.Second, "about 30 seconds"},
		{47 * time.Second, "about 45 seconds"},
		{70 * time.Second, "about a minute"},
		{5 * time.Minute, "about 5 minutes"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, humanizeDuration(tt.d))
		})
	}
}
