package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/solace-ai/agentserver/pkg/jsontree"
)

// Gateway is the pooled PostgreSQL-backed storage gateway (spec.md §4.5).
// The caller owns the pool's lifecycle (creation and Close).
type Gateway struct {
	pool *pgxpool.Pool
}

// New wraps an existing pgxpool.Pool.
func New(pool *pgxpool.Pool) *Gateway {
	return &Gateway{pool: pool}
}

// Connect opens a pooled connection against dsn.
func Connect(ctx context.Context, dsn string) (*Gateway, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("storage: connect: %w", err)
	}
	return New(pool), nil
}

// Close releases the underlying pool.
func (g *Gateway) Close() {
	g.pool.Close()
}

// HealthCheck runs the `SELECT 1` probe named in spec.md §4.5.
func (g *Gateway) HealthCheck(ctx context.Context) error {
	var one int
	if err := g.pool.QueryRow(ctx, "SELECT 1").Scan(&one); err != nil {
		return fmt.Errorf("storage: health check: %w", err)
	}
	return nil
}

// Init creates the tables named in spec.md §6.3 if they do not exist yet.
// Idempotent; safe to call on every process start.
func (g *Gateway) Init(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id BIGSERIAL PRIMARY KEY,
			status INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS agent_templates (
			id BIGSERIAL PRIMARY KEY,
			name TEXT NOT NULL,
			agent_config JSONB NOT NULL DEFAULT '{}'::jsonb,
			status INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS agents (
			id BIGSERIAL PRIMARY KEY,
			user_id BIGINT NOT NULL REFERENCES users(id),
			template_id BIGINT NOT NULL REFERENCES agent_templates(id),
			agent_config JSONB NOT NULL DEFAULT '{}'::jsonb,
			memory_data JSONB NOT NULL DEFAULT '{}'::jsonb,
			status INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS chat_messages (
			id BIGSERIAL PRIMARY KEY,
			session_id TEXT NOT NULL,
			agent_id BIGINT NOT NULL REFERENCES agents(id),
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			emotion TEXT NOT NULL DEFAULT '',
			audio_file_path TEXT NOT NULL DEFAULT '',
			copilot_mode BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS chat_messages_agent_created_idx ON chat_messages(agent_id, copilot_mode, created_at)`,
		`CREATE TABLE IF NOT EXISTS chat_compressed_messages (
			id BIGSERIAL PRIMARY KEY,
			agent_id BIGINT NOT NULL REFERENCES agents(id),
			compressed_content TEXT NOT NULL,
			content_last_time TIMESTAMPTZ NOT NULL,
			copilot_mode BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS chat_compressed_agent_created_idx ON chat_compressed_messages(agent_id, copilot_mode, created_at)`,
	}

	for _, stmt := range stmts {
		if _, err := g.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("storage: init: %w", err)
		}
	}
	return nil
}

// GetAgent loads the agents row, alive or not (callers check Agent.Alive()).
func (g *Gateway) GetAgent(ctx context.Context, agentID int64) (*Agent, error) {
	var a Agent
	var configRaw, memoryRaw []byte
	err := g.pool.QueryRow(ctx,
		`SELECT id, user_id, template_id, agent_config, memory_data, status, created_at, updated_at
		 FROM agents WHERE id = $1`, agentID,
	).Scan(&a.ID, &a.UserID, &a.TemplateID, &configRaw, &memoryRaw, &a.Status, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("storage: get agent %d: %w", agentID, err)
	}
	if a.AgentConfig, err = jsontree.Parse(configRaw); err != nil {
		return nil, fmt.Errorf("storage: parse agent_config for agent %d: %w", agentID, err)
	}
	if a.MemoryData, err = jsontree.Parse(memoryRaw); err != nil {
		return nil, fmt.Errorf("storage: parse memory_data for agent %d: %w", agentID, err)
	}
	return &a, nil
}

// GetAgentTemplate loads an agent_templates row.
func (g *Gateway) GetAgentTemplate(ctx context.Context, templateID int64) (*AgentTemplate, error) {
	var t AgentTemplate
	var configRaw []byte
	err := g.pool.QueryRow(ctx,
		`SELECT id, name, agent_config, status FROM agent_templates WHERE id = $1`, templateID,
	).Scan(&t.ID, &t.Name, &configRaw, &t.Status)
	if err != nil {
		return nil, fmt.Errorf("storage: get agent template %d: %w", templateID, err)
	}
	var parseErr error
	if t.AgentConfig, parseErr = jsontree.Parse(configRaw); parseErr != nil {
		return nil, fmt.Errorf("storage: parse agent_config for template %d: %w", templateID, parseErr)
	}
	return &t, nil
}

// GetUser loads a users row.
func (g *Gateway) GetUser(ctx context.Context, userID int64) (*User, error) {
	var u User
	err := g.pool.QueryRow(ctx, `SELECT id, status FROM users WHERE id = $1`, userID).Scan(&u.ID, &u.Status)
	if err != nil {
		return nil, fmt.Errorf("storage: get user %d: %w", userID, err)
	}
	return &u, nil
}

// SaveAgentConfigAndMemory flushes dirty agent_config/memory_data on detach
// (spec.md §4.3 "flush dirty agent memory/config to DB", last-writer-wins
// per spec.md §5).
func (g *Gateway) SaveAgentConfigAndMemory(ctx context.Context, agentID int64, config, memory *jsontree.Tree) error {
	configJSON, err := config.MarshalJSON()
	if err != nil {
		return fmt.Errorf("storage: marshal agent_config for agent %d: %w", agentID, err)
	}
	memoryJSON, err := memory.MarshalJSON()
	if err != nil {
		return fmt.Errorf("storage: marshal memory_data for agent %d: %w", agentID, err)
	}

	_, err = g.pool.Exec(ctx,
		`UPDATE agents SET agent_config = $1, memory_data = $2, updated_at = now() WHERE id = $3`,
		configJSON, memoryJSON, agentID)
	if err != nil {
		return fmt.Errorf("storage: save agent config/memory for agent %d: %w", agentID, err)
	}
	return nil
}

// SaveChatMessage inserts a chat_messages row (original_source/database.py
// save_chat_record, translated to a parameterized pgx insert).
func (g *Gateway) SaveChatMessage(ctx context.Context, m ChatMessage) (int64, error) {
	var id int64
	err := g.pool.QueryRow(ctx,
		`INSERT INTO chat_messages (session_id, agent_id, role, content, emotion, audio_file_path, copilot_mode, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id`,
		m.SessionID, m.AgentID, m.Role, m.Content, m.Emotion, m.AudioFilePath, m.CopilotMode, nowOrGiven(m.CreatedAt),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("storage: save chat message: %w", err)
	}
	return id, nil
}

// FetchLatestCompressed returns the newest chat_compressed_messages row for
// (agentID, copilotMode), or nil if none exists (original_source/database.py
// fetch_compressed_record).
func (g *Gateway) FetchLatestCompressed(ctx context.Context, agentID int64, copilotMode bool) (*CompressedMessage, error) {
	var c CompressedMessage
	err := g.pool.QueryRow(ctx,
		`SELECT id, agent_id, compressed_content, content_last_time, copilot_mode, created_at
		 FROM chat_compressed_messages
		 WHERE agent_id = $1 AND copilot_mode = $2
		 ORDER BY created_at DESC LIMIT 1`,
		agentID, copilotMode,
	).Scan(&c.ID, &c.AgentID, &c.CompressedContent, &c.ContentLastTime, &c.CopilotMode, &c.CreatedAt)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("storage: fetch latest compressed for agent %d: %w", agentID, err)
	}
	return &c, nil
}

// FetchUncompressedSince returns chat_messages rows for (agentID,
// copilotMode) created after since (zero value fetches everything), ordered
// ascending and capped at limit (original_source/database.py
// fetch_uncompressed_records).
func (g *Gateway) FetchUncompressedSince(ctx context.Context, agentID int64, copilotMode bool, since time.Time, limit int) ([]ChatMessage, error) {
	rows, err := g.pool.Query(ctx,
		`SELECT id, session_id, agent_id, role, content, emotion, audio_file_path, copilot_mode, created_at
		 FROM chat_messages
		 WHERE agent_id = $1 AND copilot_mode = $2 AND created_at > $3
		 ORDER BY created_at ASC LIMIT $4`,
		agentID, copilotMode, since, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: fetch uncompressed for agent %d: %w", agentID, err)
	}
	defer rows.Close()

	var out []ChatMessage
	for rows.Next() {
		var m ChatMessage
		if err := rows.Scan(&m.ID, &m.SessionID, &m.AgentID, &m.Role, &m.Content, &m.Emotion, &m.AudioFilePath, &m.CopilotMode, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("storage: scan chat message: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// SaveCompressedMessage inserts a chat_compressed_messages row
// (original_source/database.py save_compressed_message).
func (g *Gateway) SaveCompressedMessage(ctx context.Context, c CompressedMessage) (int64, error) {
	var id int64
	err := g.pool.QueryRow(ctx,
		`INSERT INTO chat_compressed_messages (agent_id, compressed_content, content_last_time, copilot_mode, created_at)
		 VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		c.AgentID, c.CompressedContent, c.ContentLastTime, c.CopilotMode, nowOrGiven(c.CreatedAt),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("storage: save compressed message: %w", err)
	}
	return id, nil
}

func nowOrGiven(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t
}
