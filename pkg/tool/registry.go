package tool

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"github.com/xeipuuv/gojsonschema"
)

// Registry holds name-keyed tools. Registration order is a startup concern;
// lookups are concurrent-safe.
type Registry struct {
	tools   map[string]Tool
	schemas map[string]*gojsonschema.Schema
	logger  zerolog.Logger
	mu      sync.RWMutex
}

// NewRegistry creates an empty tool registry
func NewRegistry(logger zerolog.Logger) *Registry {
	return &Registry{
		tools:   make(map[string]Tool),
		schemas: make(map[string]*gojsonschema.Schema),
		logger:  logger.With().Str("component", "tools").Logger(),
	}
}

// Register indexes a tool by name. A name collision is a misconfiguration:
// the last registration wins and a warning is logged so it surfaces at
// startup rather than at dispatch time.
func (r *Registry) Register(t Tool) error {
	if t.Name() == "" {
		return fmt.Errorf("tool name cannot be empty")
	}

	schema, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(t.Schema()))
	if err != nil {
		return fmt.Errorf("invalid schema for tool %s: %w", t.Name(), err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[t.Name()]; exists {
		r.logger.Warn().Str("tool", t.Name()).Msg("Tool name collision, last registration wins")
	}

	r.tools[t.Name()] = t
	r.schemas[t.Name()] = schema

	r.logger.Info().Str("tool", t.Name()).Msg("Tool registered")
	return nil
}

// Lookup returns the tool registered under name
func (r *Registry) Lookup(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.tools[name]
	return t, ok
}

// List returns all registered tools sorted by name
func (r *Registry) List() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)

	tools := make([]Tool, 0, len(names))
	for _, name := range names {
		tools = append(tools, r.tools[name])
	}
	return tools
}

// Execute validates args against the tool's schema and runs it. Injected
// "_"-prefixed keys are hidden from validation but passed to the tool.
func (r *Registry) Execute(ctx context.Context, name string, args map[string]any) (any, error) {
	r.mu.RLock()
	t, ok := r.tools[name]
	schema := r.schemas[name]
	r.mu.RUnlock()

	if !ok {
		return nil, NewError(fmt.Sprintf("Unknown tool: %s", name))
	}

	visible := make(map[string]any, len(args))
	for k, v := range args {
		if strings.HasPrefix(k, "_") {
			continue
		}
		visible[k] = v
	}

	result, err := schema.Validate(gojsonschema.NewGoLoader(visible))
	if err != nil {
		return nil, NewError(fmt.Sprintf("argument validation failed: %v", err))
	}
	if !result.Valid() {
		details := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			details = append(details, desc.String())
		}
		return nil, NewError(fmt.Sprintf("invalid arguments for %s: %s", name, strings.Join(details, "; ")))
	}

	return t.Execute(ctx, args)
}
