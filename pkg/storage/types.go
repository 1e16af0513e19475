// Package storage implements the pooled PostgreSQL gateway (spec.md §4.5,
// C6): typed queries against agents, agent_templates, users, chat_messages,
// and chat_compressed_messages, all parameterized, no string-built SQL.
package storage

import (
	"time"

	"github.com/solace-ai/agentserver/pkg/jsontree"
)

// Agent is the `agents` row (spec.md §3, §6.3). AgentConfig and MemoryData
// are dynamically-typed JSON trees, never unmarshaled into closed structs
// per spec.md §9.
type Agent struct {
	ID         int64
	UserID     int64
	TemplateID int64
	AgentConfig *jsontree.Tree
	MemoryData  *jsontree.Tree
	Status      int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Alive reports whether this agent is usable: status != 2 means alive,
// 2 is soft-deleted (spec.md §3).
func (a Agent) Alive() bool { return a.Status != 2 }

// AgentTemplate is the `agent_templates` row.
type AgentTemplate struct {
	ID          int64
	Name        string
	AgentConfig *jsontree.Tree
	Status      int
}

// User is the `users` row.
type User struct {
	ID     int64
	Status int
}

// ChatMessage is one `chat_messages` row (spec.md §3). Immutable after
// insert; ordered by CreatedAt within an agent.
type ChatMessage struct {
	ID            int64
	SessionID     string
	AgentID       int64
	Role          string
	Content       string
	Emotion       string
	AudioFilePath string
	CopilotMode   bool
	CreatedAt     time.Time
}

// CompressedMessage is one `chat_compressed_messages` row.
type CompressedMessage struct {
	ID                int64
	AgentID           int64
	CompressedContent string
	ContentLastTime   time.Time
	CopilotMode       bool
	CreatedAt         time.Time
}
