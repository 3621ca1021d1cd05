package agent

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyProviderError(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantClass ErrorClass
		wantMsg   string
	}{
		{"nil", nil, ErrorGeneric, MsgGeneric},
		{"rate limit text", errors.New("request failed: rate limit exceeded"), ErrorOverloaded, MsgOverloaded},
		{"429 text", errors.New("unexpected status 429"), ErrorOverloaded, MsgOverloaded},
		{"overloaded text", errors.New("upstream overloaded"), ErrorOverloaded, MsgOverloaded},
		{"400 text", errors.New("got 400 from api"), ErrorBadRequest, MsgBadRequest},
		{"invalid request text", errors.New("invalid request: bad field"), ErrorBadRequest, MsgBadRequest},
		{"plain failure", errors.New("connection reset"), ErrorGeneric, MsgGeneric},
		{"wrapped", fmt.Errorf("call failed: %w", errors.New("rate limit")), ErrorOverloaded, MsgOverloaded},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			class, msg := ClassifyProviderError(tt.err)
			assert.Equal(t, tt.wantClass, class)
			assert.Equal(t, tt.wantMsg, msg)
		})
	}
}

func TestClassifyStatus(t *testing.T) {
	tests := []struct {
		status int
		want   ErrorClass
	}{
		{429, ErrorOverloaded},
		{503, ErrorOverloaded},
		{529, ErrorOverloaded},
		{400, ErrorBadRequest},
		{422, ErrorBadRequest},
		{500, ErrorGeneric},
		{401, ErrorGeneric},
	}

	for _, tt := range tests {
		class, _ := classifyStatus(tt.status)
		assert.Equal(t, tt.want, class, "status %d", tt.status)
	}
}
