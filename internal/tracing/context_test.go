package tracing

import (
	"bytes"
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContextRoundTrip(t *testing.T) {
	ctx := context.Background()

	ctx = WithTraceID(ctx, "trace-1")
	ctx = WithRequestID(ctx, "req-1")
	ctx = WithSessionID(ctx, "session-1")
	ctx = WithClientIP(ctx, "10.0.0.1")

	assert.Equal(t, "trace-1", GetTraceID(ctx))
	assert.Equal(t, "req-1", GetRequestID(ctx))
	assert.Equal(t, "session-1", GetSessionID(ctx))
	assert.Equal(t, "10.0.0.1", GetClientIP(ctx))
}

func TestGettersReturnEmptyOnMissingValues(t *testing.T) {
	ctx := context.Background()

	assert.Empty(t, GetTraceID(ctx))
	assert.Empty(t, GetRequestID(ctx))
	assert.Empty(t, GetSessionID(ctx))
	assert.Empty(t, GetClientIP(ctx))
}

func TestNewRequestContext(t *testing.T) {
	ctx := NewRequestContext(context.Background())

	assert.NotEmpty(t, GetTraceID(ctx))
	assert.NotEmpty(t, GetRequestID(ctx))
	assert.NotEqual(t, GetTraceID(ctx), GetRequestID(ctx))
}

func TestLoggerFromContext(t *testing.T) {
	var buf bytes.Buffer
	base := zerolog.New(&buf)

	ctx := WithTraceID(context.Background(), "trace-9")
	ctx = WithSessionID(ctx, "session-9")

	logger := LoggerFromContext(ctx, base)
	logger.Info().Msg("enriched")

	out := buf.String()
	require.Contains(t, out, "enriched")
	assert.Contains(t, out, "trace-9")
	assert.Contains(t, out, "session-9")
}
