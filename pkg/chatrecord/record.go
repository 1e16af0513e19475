package chatrecord

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/solace-ai/agentserver/pkg/capability"
	"github.com/solace-ai/agentserver/pkg/logger"
	"github.com/solace-ai/agentserver/pkg/storage"
	"github.com/solace-ai/agentserver/pkg/template"
)

// Store is the subset of the storage gateway the chat-record subsystem
// needs, narrowed for testability (a *storage.Gateway satisfies it).
type Store interface {
	FetchLatestCompressed(ctx context.Context, agentID int64, copilotMode bool) (*storage.CompressedMessage, error)
	FetchUncompressedSince(ctx context.Context, agentID int64, copilotMode bool, since time.Time, limit int) ([]storage.ChatMessage, error)
	SaveChatMessage(ctx context.Context, m storage.ChatMessage) (int64, error)
	SaveCompressedMessage(ctx context.Context, c storage.CompressedMessage) (int64, error)
}

// Record is one session's chat-record subsystem instance (spec.md §4.2):
// the owned data (chat_history, context, ai_text_buffer, is_compressing)
// plus the operations that mutate it under the ingest and compression
// algorithms. One Record is exclusively owned by its session manager.
type Record struct {
	mu sync.Mutex

	store Store
	llm   capability.LLM

	agentID     int64
	sessionID   string
	copilotMode bool
	tunables    Tunables

	history      []Message
	context      []CtxEntry
	aiTextBuffer strings.Builder
	isCompressing bool

	memory      map[string]interface{}
	memoryDirty bool

	lastCompressedAt time.Time
}

// NewRecord constructs a Record for one session, seeded with the agent's
// current long-term memory (read once at attach; SPEC_FULL.md §4.3).
func NewRecord(store Store, llm capability.LLM, agentID int64, sessionID string, copilotMode bool, tunables Tunables, existingMemory map[string]interface{}) *Record {
	if existingMemory == nil {
		existingMemory = map[string]interface{}{}
	}
	return &Record{
		store:       store,
		llm:         llm,
		agentID:     agentID,
		sessionID:   sessionID,
		copilotMode: copilotMode,
		tunables:    tunables,
		memory:      existingMemory,
	}
}

// Load runs the initial-load algorithm on session attach (spec.md §4.2.1).
func (r *Record) Load(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var history []Message
	var since time.Time

	latest, err := r.store.FetchLatestCompressed(ctx, r.agentID, r.copilotMode)
	if err != nil {
		return err
	}
	if latest != nil {
		history = append(history, Message{
			Role:         RoleAssistant,
			Content:      latest.CompressedContent,
			IsCompressed: true,
			CreatedAt:    latest.ContentLastTime,
		})
		since = latest.ContentLastTime
		r.lastCompressedAt = latest.ContentLastTime
	}

	limit := r.tunables.LoadHistoryLimit
	if limit <= 0 {
		limit = DefaultTunables().LoadHistoryLimit
	}
	rows, err := r.store.FetchUncompressedSince(ctx, r.agentID, r.copilotMode, since, limit)
	if err != nil {
		return err
	}
	for _, row := range rows {
		history = append(history, Message{
			Role:          row.Role,
			Content:       row.Content,
			Emotion:       row.Emotion,
			AudioFilePath: row.AudioFilePath,
			CreatedAt:     row.CreatedAt,
		})
	}

	r.history = MergeConsecutive(history)
	r.context = ToCtxEntries(r.history)

	r.maybeScheduleCompression(ctx)
	return nil
}

// IngestUser persists and appends a finalized user turn (spec.md §4.2.2).
func (r *Record) IngestUser(ctx context.Context, content, emotion, audioPath string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.store.SaveChatMessage(ctx, storage.ChatMessage{
		SessionID:     r.sessionID,
		AgentID:       r.agentID,
		Role:          RoleUser,
		Content:       content,
		Emotion:       emotion,
		AudioFilePath: audioPath,
		CopilotMode:   r.copilotMode,
	})
	if err != nil {
		logger.ErrorCF("chatrecord", "persist user turn failed, skipping in-memory append", map[string]interface{}{
			"agent_id": r.agentID, "error": err.Error(),
		})
		return err
	}

	msg := Message{Role: RoleUser, Content: content, Emotion: emotion, AudioFilePath: audioPath, CreatedAt: time.Now().UTC()}
	r.history = append(r.history, msg)
	r.context = append(r.context, CtxEntry{Role: RoleUser, Content: content})

	r.maybeScheduleCompression(ctx)
	return nil
}

// IngestAssistantToken appends a non-empty streaming token to the
// accumulator buffer (spec.md §4.2.2).
func (r *Record) IngestAssistantToken(token string) {
	if token == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.aiTextBuffer.WriteString(token)
}

// FinalizeAssistantTurn is called on the assistant text stream's end
// sentinel: if the buffer is non-empty, persist and append it, then
// evaluate compression (spec.md §4.2.2). On persistence failure the
// in-memory state is left undiverged: the buffer is cleared without an
// append, so the next stream starts a fresh turn.
func (r *Record) FinalizeAssistantTurn(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	content := r.aiTextBuffer.String()
	r.aiTextBuffer.Reset()
	if content == "" {
		return nil
	}

	_, err := r.store.SaveChatMessage(ctx, storage.ChatMessage{
		SessionID:   r.sessionID,
		AgentID:     r.agentID,
		Role:        RoleAssistant,
		Content:     content,
		CopilotMode: r.copilotMode,
	})
	if err != nil {
		logger.ErrorCF("chatrecord", "persist assistant turn failed, skipping in-memory append", map[string]interface{}{
			"agent_id": r.agentID, "error": err.Error(),
		})
		return err
	}

	r.history = append(r.history, Message{Role: RoleAssistant, Content: content, CreatedAt: time.Now().UTC()})
	r.context = append(r.context, CtxEntry{Role: RoleAssistant, Content: content})

	r.maybeScheduleCompression(ctx)
	return nil
}

// ProjectedContext renders systemPromptTemplate/userPromptTemplate against
// vars and projects the current context through them (spec.md §4.2.3).
// vars is merged with {messages, message_count} computed from the current
// history so callers need not recompute them.
func (r *Record) ProjectedContext(systemPromptTemplate, userPromptTemplate string, vars map[string]interface{}) ([]CtxEntry, error) {
	r.mu.Lock()
	history := append([]Message(nil), r.history...)
	context := append([]CtxEntry(nil), r.context...)
	r.mu.Unlock()

	merged := BuildPromptVars(history)
	for k, v := range vars {
		merged[k] = v
	}

	systemPrompt := systemPromptTemplate
	userPrompt := userPromptTemplate
	if systemPromptTemplate != "" {
		rendered, err := template.Render(systemPromptTemplate, merged)
		if err != nil {
			return nil, err
		}
		systemPrompt = rendered
	}
	if userPromptTemplate != "" {
		rendered, err := template.Render(userPromptTemplate, merged)
		if err != nil {
			return nil, err
		}
		userPrompt = rendered
	}

	return ProjectContext(context, systemPrompt, userPrompt), nil
}

// Memory returns the current long-term-memory mapping and whether it has
// unflushed writes, for the session manager's detach-time flush.
func (r *Record) Memory() (map[string]interface{}, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.memory, r.memoryDirty
}

// History returns a snapshot copy of the in-memory chat history, for
// external inspection (metrics, admin tooling) without exposing the live
// slice to mutation.
func (r *Record) History() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Message(nil), r.history...)
}

// maybeScheduleCompression implements the idle→compressing transition
// (spec.md §4.2.4): if idle and estimated tokens cross the threshold,
// schedule the compression task in its own goroutine without blocking the
// caller. Must be called with r.mu held.
func (r *Record) maybeScheduleCompression(ctx context.Context) {
	if r.isCompressing {
		return
	}
	threshold := r.tunables.CompressTokenThreshold
	if threshold <= 0 {
		threshold = DefaultTunables().CompressTokenThreshold
	}
	if EstimateTokens(r.history) <= threshold {
		return
	}

	r.isCompressing = true
	go r.runCompression(ctx)
}

// runCompression executes the compression task (spec.md §4.2.4 steps 1-6).
func (r *Record) runCompression(ctx context.Context) {
	defer func() {
		r.mu.Lock()
		r.isCompressing = false
		r.mu.Unlock()
	}()

	r.mu.Lock()
	history := append([]Message(nil), r.history...)
	r.mu.Unlock()

	keepRounds := r.tunables.KeepLastRounds
	if keepRounds <= 0 {
		keepRounds = DefaultTunables().KeepLastRounds
	}

	keepStart := KeepStartIndex(history, keepRounds)
	if keepStart < 0 {
		logger.DebugCF("chatrecord", "compression aborted: keep-start predicate failed", map[string]interface{}{"agent_id": r.agentID})
		return
	}

	toCompress := FilterAlreadyCompressed(history[:keepStart])
	toKeep := history[keepStart:]
	if len(toCompress) == 0 {
		return
	}

	memoryMaxLength := r.tunables.MemoryExtractMaxLength
	if memoryMaxLength <= 0 {
		memoryMaxLength = DefaultTunables().MemoryExtractMaxLength
	}

	vars := BuildPromptVars(toCompress)
	vars["memory_max_length"] = memoryMaxLength

	summary, err := r.callLLM(ctx, r.tunables.CompressSystemPrompt, r.tunables.CompressUserPrompt, vars)
	if err != nil || strings.TrimSpace(summary) == "" {
		if err != nil {
			logger.WarnCF("chatrecord", "compression LLM call failed", map[string]interface{}{"agent_id": r.agentID, "error": err.Error()})
		}
		return
	}

	lastCompressed := toCompress[len(toCompress)-1]
	_, err = r.store.SaveCompressedMessage(ctx, storage.CompressedMessage{
		AgentID:           r.agentID,
		CompressedContent: summary,
		ContentLastTime:   lastCompressed.CreatedAt,
		CopilotMode:       r.copilotMode,
	})
	if err != nil {
		logger.ErrorCF("chatrecord", "persist compressed message failed, aborting compression", map[string]interface{}{"agent_id": r.agentID, "error": err.Error()})
		return
	}

	synthetic := Message{Role: RoleAssistant, Content: summary, IsCompressed: true, CreatedAt: toCompress[0].CreatedAt}
	rebuilt := append([]Message{synthetic}, toKeep...)
	rebuilt = MergeConsecutive(rebuilt)

	r.mu.Lock()
	r.history = rebuilt
	r.context = ToCtxEntries(rebuilt)
	r.lastCompressedAt = lastCompressed.CreatedAt
	r.mu.Unlock()

	r.extractMemory(ctx, toCompress, memoryMaxLength)
}

// extractMemory implements spec.md §4.2.5 over the same filtered messages
// just summarized.
func (r *Record) extractMemory(ctx context.Context, messages []Message, memoryMaxLength int) {
	if r.tunables.MemoryExtractSystem == "" || r.tunables.MemoryExtractUser == "" {
		return
	}

	r.mu.Lock()
	existing := r.memory
	r.mu.Unlock()

	existingJSON := serializeExisting(existing)
	vars := BuildPromptVars(messages)
	vars["memory_max_length"] = memoryMaxLength
	vars["existing_memory"] = existingJSON

	content, err := r.callLLM(ctx, r.tunables.MemoryExtractSystem, r.tunables.MemoryExtractUser, vars)
	if err != nil || strings.TrimSpace(content) == "" {
		if err != nil {
			logger.WarnCF("chatrecord", "memory extraction LLM call failed", map[string]interface{}{"agent_id": r.agentID, "error": err.Error()})
		}
		return
	}

	parsed := ParseExtractedMemory(content)
	enforced := EnforceLength(parsed, memoryMaxLength)

	r.mu.Lock()
	r.memory = enforced
	r.memoryDirty = true
	r.mu.Unlock()
}

func (r *Record) callLLM(ctx context.Context, systemPromptTemplate, userPromptTemplate string, vars map[string]interface{}) (string, error) {
	if systemPromptTemplate == "" || userPromptTemplate == "" {
		return "", nil
	}
	systemText, err := template.Render(systemPromptTemplate, vars)
	if err != nil {
		return "", err
	}
	userText, err := template.Render(userPromptTemplate, vars)
	if err != nil {
		return "", err
	}

	resp, err := r.llm.Chat(ctx, []capability.Message{
		{Role: RoleSystem, Content: systemText},
		{Role: RoleUser, Content: userText},
	}, nil, r.llm.GetDefaultModel(), map[string]interface{}{"max_tokens": 2000, "temperature": 1.0, "top_p": 1.0})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.Content), nil
}

func serializeExisting(m map[string]interface{}) string {
	b, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(b)
}
