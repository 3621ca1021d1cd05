package cli

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/youneslaaroussi/railway-llm-template/internal/config"
	"github.com/youneslaaroussi/railway-llm-template/pkg/tool"
)

func TestRegisterBuiltinTools(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.DataDir = t.TempDir()

	registry := tool.NewRegistry(zerolog.Nop())
	memStore, err := registerBuiltinTools(registry, cfg, zerolog.Nop())
	require.NoError(t, err)
	require.NotNil(t, memStore)

	names := make([]string, 0)
	for _, tl := range registry.List() {
		names = append(names, tl.Name())
	}
	assert.ElementsMatch(t, []string{"convert_currency", "math_eval", "save_memory"}, names)

	// the store stays open for the tools and is released by the caller
	assert.NoError(t, memStore.Close())
}
