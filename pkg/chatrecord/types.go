// Package chatrecord implements the durable-and-in-memory conversation
// record named in spec.md §4.2 (C3): chat history load/ingest, token-budget
// compression with a "keep last N rounds" invariant, and long-term memory
// extraction. It is wrapped by the `chat_record` workflow node (SPEC_FULL.md
// §4.1) but has no dependency on pkg/workflow itself.
package chatrecord

import "time"

// Message is one entry of in-memory chat_history: either a regular turn or
// a compressed-summary stub (IsCompressed=true, Role=RoleAssistant).
type Message struct {
	Role          string
	Content       string
	Emotion       string
	AudioFilePath string
	IsCompressed  bool
	CreatedAt     time.Time
}

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// CtxEntry is one projected entry of `context` (spec.md §4.2.3).
type CtxEntry struct {
	Role         string
	Content      string
	IsCompressed bool
}
