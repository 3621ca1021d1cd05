package cachestore

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestNewWithoutURLReturnsNoop(t *testing.T) {
	store := New(context.Background(), "", zerolog.Nop())
	assert.IsType(t, &NoopStore{}, store)
}

func TestNewWithBadURLFailsOpen(t *testing.T) {
	store := New(context.Background(), "://not-a-url", zerolog.Nop())
	assert.IsType(t, &NoopStore{}, store)
}

func TestNewWithUnreachableStoreFailsOpen(t *testing.T) {
	// Port 1 is never a Redis server; ping fails and the engine keeps running.
	store := New(context.Background(), "redis://127.0.0.1:1", zerolog.Nop())
	assert.IsType(t, &NoopStore{}, store)
}

func TestNewRedisRejectsMalformedURL(t *testing.T) {
	_, err := NewRedis("://bad")
	assert.Error(t, err)
}
