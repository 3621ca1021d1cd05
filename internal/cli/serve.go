package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/youneslaaroussi/railway-llm-template/internal/config"
	"github.com/youneslaaroussi/railway-llm-template/internal/logger"
	"github.com/youneslaaroussi/railway-llm-template/internal/metrics"
	"github.com/youneslaaroussi/railway-llm-template/internal/tracing"
	"github.com/youneslaaroussi/railway-llm-template/pkg/agent"
	"github.com/youneslaaroussi/railway-llm-template/pkg/cache"
	"github.com/youneslaaroussi/railway-llm-template/pkg/cachestore"
	"github.com/youneslaaroussi/railway-llm-template/pkg/ratelimit"
	"github.com/youneslaaroussi/railway-llm-template/pkg/server"
	"github.com/youneslaaroussi/railway-llm-template/pkg/tool"
	"github.com/youneslaaroussi/railway-llm-template/pkg/tool/builtin"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the conversation engine HTTP server",
	Long: `Run the HTTP server in the foreground: buffered chat at
/agent/chat, SSE streaming at /agent/chat/stream, a websocket event mirror
at /agent/chat/ws, plus /healthcheck and /metrics.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.NewLoader(cfgFile).Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	log, err := logger.New(logger.Config{
		Level:   cfg.Logging.Level,
		File:    cfg.Logging.File,
		Console: true,
		Pretty:  cfg.Logging.Pretty,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer log.Close()
	zl := log.GetZerolog()

	if err := tracing.Init(tracing.Options{
		ServiceName:    "railwayd",
		ServiceVersion: GetVersion(),
		Environment:    os.Getenv("RAILWAY_ENVIRONMENT_NAME"),
	}); err != nil {
		zl.Warn().Err(err).Msg("Failed to initialize tracing, continuing without it")
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		tracing.Shutdown(ctx)
	}()

	m := metrics.NewMetrics()

	store := buildStore(cfg, zl)
	defer store.Close()

	registry := tool.NewRegistry(zl)
	memStore, err := registerBuiltinTools(registry, cfg, zl)
	if err != nil {
		return err
	}
	defer memStore.Close()

	provider := buildProvider(cfg, zl)
	model := cfg.OpenAI.Model
	if provider != nil && provider.Name() == "anthropic" {
		model = cfg.Anthropic.Model
	}

	var planner *agent.Planner
	if cfg.Agent.PlannerEnabled && provider != nil {
		planner = agent.NewPlanner(provider, cfg.Agent.PlannerModel, zl)
	}

	svc, err := agent.NewService(agent.ServiceParams{
		Provider:      provider,
		Registry:      registry,
		ResponseCache: cache.NewResponseCache(store, time.Duration(cfg.Cache.ResponseTTL)*time.Second, zl, m),
		ToolCache:     cache.NewToolResultCache(store, time.Duration(cfg.Cache.ToolResultTTL)*time.Second, zl, m),
		Planner:       planner,
		Config: agent.Config{
			Model:               model,
			SystemPrompt:        cfg.Agent.SystemPrompt,
			MaxIterations:       cfg.Agent.MaxIterations,
			RequestTimeout:      time.Duration(cfg.Agent.RequestTimeout) * time.Second,
			Temperature:         cfg.OpenAI.Temperature,
			MaxTokens:           cfg.OpenAI.MaxTokens,
			ReasoningEffort:     cfg.OpenAI.ReasoningEffort,
			MaxCompletionTokens: cfg.OpenAI.MaxCompletionTokens,
		},
		Logger:  zl,
		Metrics: m,
	})
	if err != nil {
		return fmt.Errorf("failed to build agent service: %w", err)
	}

	guard := ratelimit.New(store, ratelimit.Config{
		MaxRequests: cfg.RateLimit.MaxRequests,
		Window:      time.Duration(cfg.RateLimit.WindowSeconds) * time.Second,
		BlockFor:    time.Duration(cfg.RateLimit.BlockSeconds) * time.Second,
	}, zl, m)

	srv, err := server.NewServer(server.Options{
		Host: cfg.Server.Host,
		Port: cfg.Server.Port,
	}, svc, guard, m, zl)
	if err != nil {
		return fmt.Errorf("failed to build HTTP server: %w", err)
	}

	configPath := cfgFile
	if configPath == "" {
		if home, herr := os.UserHomeDir(); herr == nil {
			configPath = filepath.Join(home, ".railway-llm", "config.json")
		}
	}

	// Log config file edits; a restart is still needed for most settings
	watcher, err := config.NewWatcher(configPath, zl, func(updated *config.Config) {
		zl.Info().Msg("Configuration file changed on disk")
	})
	if err != nil {
		zl.Warn().Err(err).Msg("Config watcher unavailable")
	} else {
		defer watcher.Stop()
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		zl.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		return srv.Stop()
	case err := <-errCh:
		return err
	}
}

// buildStore picks the cache store backend: Redis when configured, the
// in-process store when caching is enabled without Redis, no-op otherwise.
// An unreachable Redis degrades to no-op inside cachestore.New.
func buildStore(cfg *config.Config, zl zerolog.Logger) cachestore.Store {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	switch {
	case cfg.Redis.URL != "":
		return cachestore.New(ctx, cfg.Redis.URL, zl)
	case cfg.Cache.Enabled || cfg.RateLimit.Enabled:
		zl.Info().Msg("No Redis configured, using in-process cache store")
		return cachestore.NewMemory(cfg.Cache.MemStoreSweepMins)
	default:
		zl.Info().Msg("Caching and rate limiting disabled")
		return cachestore.NewNoop()
	}
}

// buildProvider selects the completion provider from configured credentials.
// No credential is not an error; the service degrades to a guidance message.
func buildProvider(cfg *config.Config, zl zerolog.Logger) agent.CompletionProvider {
	switch {
	case cfg.OpenAI.APIKey != "":
		zl.Info().Str("model", cfg.OpenAI.Model).Msg("Using OpenAI completion provider")
		return agent.NewOpenAIProvider(cfg.OpenAI.APIKey)
	case cfg.Anthropic.APIKey != "":
		zl.Info().Str("model", cfg.Anthropic.Model).Msg("Using Anthropic completion provider")
		return agent.NewAnthropicProvider(cfg.Anthropic.APIKey)
	default:
		zl.Warn().Msg("No completion API credential configured")
		return nil
	}
}

// registerBuiltinTools registers the built-in tool set and returns the memory
// store so the caller can close it on shutdown.
func registerBuiltinTools(registry *tool.Registry, cfg *config.Config, zl zerolog.Logger) (*builtin.MemoryStore, error) {
	memStore, err := builtin.NewMemoryStore(cfg.DataDir, zl)
	if err != nil {
		return nil, fmt.Errorf("failed to open memory store: %w", err)
	}

	for _, t := range []tool.Tool{
		builtin.NewCurrencyTool(),
		builtin.NewMathTool(),
		builtin.NewMemoryTool(memStore),
	} {
		if err := registry.Register(t); err != nil {
			memStore.Close()
			return nil, fmt.Errorf("failed to register tool %s: %w", t.Name(), err)
		}
	}
	return memStore, nil
}
