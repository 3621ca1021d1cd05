package builtin

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"

	"github.com/youneslaaroussi/railway-llm-template/pkg/tool"
)

// Memory is a single remembered fact about a session
type Memory struct {
	Key       string `json:"key"`
	Value     string `json:"value"`
	Category  string `json:"category"`
	Timestamp string `json:"timestamp"`
}

// MemoryStore persists memories to a local SQLite database
type MemoryStore struct {
	db     *sql.DB
	logger zerolog.Logger
	mu     sync.Mutex
}

// NewMemoryStore opens (creating if needed) the memory database under dataDir
func NewMemoryStore(dataDir string, logger zerolog.Logger) (*MemoryStore, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "memories.db")
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open memory database: %w", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS memories (
		session_id TEXT NOT NULL,
		key        TEXT NOT NULL,
		value      TEXT NOT NULL,
		category   TEXT NOT NULL DEFAULT 'general',
		created_at TEXT NOT NULL,
		PRIMARY KEY (session_id, key)
	);
	CREATE INDEX IF NOT EXISTS idx_memories_session ON memories(session_id);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize memory schema: %w", err)
	}

	logger.Debug().Str("path", dbPath).Msg("Memory store opened")

	return &MemoryStore{db: db, logger: logger}, nil
}

// Save upserts a memory for the given session
func (s *MemoryStore) Save(ctx context.Context, sessionID string, m Memory) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if m.Category == "" {
		m.Category = "general"
	}
	if m.Timestamp == "" {
		m.Timestamp = time.Now().UTC().Format(time.RFC3339)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO memories (session_id, key, value, category, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(session_id, key) DO UPDATE SET
			value = excluded.value,
			category = excluded.category,
			created_at = excluded.created_at
	`, sessionID, m.Key, m.Value, m.Category, m.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to save memory: %w", err)
	}
	return nil
}

// List returns all memories stored for a session, oldest first
func (s *MemoryStore) List(ctx context.Context, sessionID string) ([]Memory, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT key, value, category, created_at
		FROM memories
		WHERE session_id = ?
		ORDER BY created_at ASC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list memories: %w", err)
	}
	defer rows.Close()

	var memories []Memory
	for rows.Next() {
		var m Memory
		if err := rows.Scan(&m.Key, &m.Value, &m.Category, &m.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan memory row: %w", err)
		}
		memories = append(memories, m)
	}
	return memories, rows.Err()
}

// Close closes the underlying database
func (s *MemoryStore) Close() error {
	return s.db.Close()
}

// MemoryTool lets the model persist facts across turns within a session
type MemoryTool struct {
	store *MemoryStore
}

// NewMemoryTool creates the save_memory tool backed by the given store
func NewMemoryTool(store *MemoryStore) *MemoryTool {
	return &MemoryTool{store: store}
}

// Name returns the tool name
func (t *MemoryTool) Name() string {
	return "save_memory"
}

// Description returns the tool description
func (t *MemoryTool) Description() string {
	return "Save a fact about the user or conversation so it can be recalled in later turns. Use a short snake_case key and a concise value."
}

// Schema returns the JSON schema for the tool arguments
func (t *MemoryTool) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"key": map[string]any{
				"type":        "string",
				"description": "Short identifier for the memory, e.g. favorite_color",
			},
			"value": map[string]any{
				"type":        "string",
				"description": "The fact to remember",
			},
			"category": map[string]any{
				"type":        "string",
				"description": "Optional grouping such as preferences or personal",
			},
		},
		"required": []string{"key", "value"},
	}
}

// Cacheable reports false: saving a memory is a write keyed by the injected
// session, so a cached result would silently drop the write for other sessions.
func (t *MemoryTool) Cacheable() bool {
	return false
}

// Execute stores the memory. The session is taken from the injected
// _sessionId argument so the model never has to supply it.
func (t *MemoryTool) Execute(ctx context.Context, args map[string]any) (any, error) {
	key, ok := args["key"].(string)
	if !ok || key == "" {
		return nil, tool.NewError("key must be a non-empty string")
	}
	value, ok := args["value"].(string)
	if !ok || value == "" {
		return nil, tool.NewError("value must be a non-empty string")
	}
	category, _ := args["category"].(string)
	sessionID, _ := args[tool.SessionIDArg].(string)
	if sessionID == "" {
		sessionID = "default"
	}

	m := Memory{Key: key, Value: value, Category: category}
	if err := t.store.Save(ctx, sessionID, m); err != nil {
		return nil, tool.NewError(fmt.Sprintf("failed to save memory: %v", err))
	}

	return map[string]any{
		"saved": true,
		"key":   key,
	}, nil
}
