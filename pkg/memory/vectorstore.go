package memory

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/philippgille/chromem-go"
	"github.com/solace-ai/agentserver/pkg/logger"
)

// MemoryResult is one match returned from either vector collection.
type MemoryResult struct {
	ID           string  `json:"id"`
	Content      string  `json:"content"`
	Score        float32 `json:"score"`
	Timestamp    string  `json:"timestamp"` // RFC3339
	Category     string  `json:"category,omitempty"`
	Source       string  `json:"source"` // "conversations" or "knowledge"
	AgentKey     string  `json:"agent_key,omitempty"`
	Specialist   string  `json:"specialist,omitempty"`
	SourceType   string  `json:"source_type,omitempty"`
	SourceName   string  `json:"source_name,omitempty"`
	SourceDate   string  `json:"source_date,omitempty"`
	SourcePerson string  `json:"source_person,omitempty"`
}

// KnowledgeIndexOpts carries the optional provenance metadata a fact can be
// indexed with, beyond its category.
type KnowledgeIndexOpts struct {
	Specialist   string // scopes the fact to one routed specialist; "" means global
	SourceType   string // "conversation", "document", "manual", ...
	SourceName   string // human label for where the fact came from
	SourceDate   string // RFC3339; when the underlying event happened, not when it was indexed
	SourcePerson string // who said or wrote the fact, if known
}

// VectorStore is the durable semantic store backing the agent node's
// "related memory" recall and the session manager's post-session indexing of
// conversation turns (SPEC_FULL.md §4.2 supplement): a conversations collection of past
// turns plus a knowledge collection of consolidated facts, both embedded
// and queried through chromem-go.
type VectorStore struct {
	db            *chromem.DB
	conversations *chromem.Collection
	knowledge     *chromem.Collection
	dbPath        string
}

// NewVectorStore opens (or creates) a persistent vector DB rooted at
// workspace/memory/vectors/. A nil embeddingFn falls back to chromem-go's
// default local embedder.
func NewVectorStore(workspacePath string, embeddingFn chromem.EmbeddingFunc) (*VectorStore, error) {
	dbPath := filepath.Join(workspacePath, "memory", "vectors")
	if err := os.MkdirAll(dbPath, 0755); err != nil {
		return nil, fmt.Errorf("create memory dir: %w", err)
	}

	db, err := chromem.NewPersistentDB(dbPath, false)
	if err != nil {
		return nil, fmt.Errorf("open vector db: %w", err)
	}

	conversations, err := db.GetOrCreateCollection("conversations", nil, embeddingFn)
	if err != nil {
		return nil, fmt.Errorf("create conversations collection: %w", err)
	}

	knowledge, err := db.GetOrCreateCollection("knowledge", nil, embeddingFn)
	if err != nil {
		return nil, fmt.Errorf("create knowledge collection: %w", err)
	}

	logger.InfoCF("memory", "vector store opened", map[string]interface{}{
		"path":             dbPath,
		"conversation_docs": conversations.Count(),
		"knowledge_docs":    knowledge.Count(),
	})

	return &VectorStore{
		db:            db,
		conversations: conversations,
		knowledge:     knowledge,
		dbPath:        dbPath,
	}, nil
}

// IndexConversation embeds one user/assistant turn into the conversations
// collection, keyed by session and agent so SearchConversations can surface
// it to a later turn in the same or a different session for the same agent.
// Fire-and-forget: a failure here must not block the analysis queue.
func (vs *VectorStore) IndexConversation(ctx context.Context, sessionKey, agentKey, userText, assistantText string) {
	ts := time.Now()
	docID := fmt.Sprintf("%s:%d", sessionKey, ts.UnixNano())
	content := fmt.Sprintf("User: %s\nAssistant: %s", userText, assistantText)

	// Rune-safe truncation so embeddings stay bounded without splitting a
	// multi-byte character at the cut point.
	const maxContentRunes = 8000
	if runes := []rune(content); len(runes) > maxContentRunes {
		content = string(runes[:maxContentRunes])
	}

	doc := chromem.Document{
		ID:      docID,
		Content: content,
		Metadata: map[string]string{
			"session_key": sessionKey,
			"agent_key":   agentKey,
			"timestamp":   ts.Format(time.RFC3339),
			"date":        ts.Format("2006-01-02"),
		},
	}

	if err := vs.conversations.AddDocument(ctx, doc); err != nil {
		logger.ErrorCF("memory", "failed to index conversation turn", map[string]interface{}{
			"error":       err.Error(),
			"session_key": sessionKey,
		})
		return
	}

	logger.DebugCF("memory", "indexed conversation turn", map[string]interface{}{
		"doc_id":      docID,
		"content_len": len(content),
	})
}

// IndexKnowledge adds or overwrites an unscoped fact in the knowledge
// collection.
func (vs *VectorStore) IndexKnowledge(ctx context.Context, docID, fact, category string) error {
	return vs.IndexKnowledgeWithOpts(ctx, docID, fact, category, KnowledgeIndexOpts{})
}

// IndexKnowledgeWithOpts adds or overwrites a fact, optionally scoped to a
// specialist and attributed to a source.
func (vs *VectorStore) IndexKnowledgeWithOpts(ctx context.Context, docID, fact, category string, opts KnowledgeIndexOpts) error {
	if docID == "" {
		docID = fmt.Sprintf("k:%d", time.Now().UnixNano())
	}

	metadata := map[string]string{
		"category":   category,
		"updated_at": time.Now().Format(time.RFC3339),
	}
	if opts.Specialist != "" {
		metadata["specialist"] = opts.Specialist
	}
	if opts.SourceType != "" {
		metadata["source_type"] = opts.SourceType
	}
	if opts.SourceName != "" {
		metadata["source_name"] = opts.SourceName
	}
	if opts.SourceDate != "" {
		metadata["source_date"] = opts.SourceDate
	}
	if opts.SourcePerson != "" {
		metadata["source_person"] = opts.SourcePerson
	}

	doc := chromem.Document{ID: docID, Content: fact, Metadata: metadata}

	if err := vs.knowledge.AddDocument(ctx, doc); err != nil {
		return fmt.Errorf("index knowledge %s: %w", docID, err)
	}

	logger.DebugCF("memory", "indexed knowledge fact", map[string]interface{}{
		"doc_id":     docID,
		"category":   category,
		"specialist": opts.Specialist,
		"fact_len":   len(fact),
	})
	return nil
}

// DeleteKnowledge removes a fact from the knowledge collection by ID.
func (vs *VectorStore) DeleteKnowledge(ctx context.Context, docID string) error {
	if err := vs.knowledge.Delete(ctx, nil, nil, docID); err != nil {
		return fmt.Errorf("delete knowledge %s: %w", docID, err)
	}
	return nil
}

// SearchConversations finds past turns relevant to query.
func (vs *VectorStore) SearchConversations(ctx context.Context, query string, limit int) ([]MemoryResult, error) {
	if vs.conversations.Count() == 0 {
		return nil, nil
	}
	if limit > vs.conversations.Count() {
		limit = vs.conversations.Count()
	}

	results, err := vs.conversations.Query(ctx, query, limit, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("search conversations: %w", err)
	}

	out := make([]MemoryResult, 0, len(results))
	for _, r := range results {
		out = append(out, MemoryResult{
			ID:        r.ID,
			Content:   r.Content,
			Score:     r.Similarity,
			Timestamp: r.Metadata["timestamp"],
			AgentKey:  r.Metadata["agent_key"],
			Source:    "conversations",
		})
	}
	return out, nil
}

// SearchKnowledge searches the knowledge collection without specialist
// scoping.
func (vs *VectorStore) SearchKnowledge(ctx context.Context, query string, limit int) ([]MemoryResult, error) {
	return vs.SearchKnowledgeScoped(ctx, query, limit, "")
}

// SearchKnowledgeScoped searches knowledge, preferring facts scoped to
// specialist when one is given. If fewer than limit specialist-scoped
// matches exist, it backfills with the top unscoped matches so a routed
// specialist still benefits from facts recorded before it existed.
func (vs *VectorStore) SearchKnowledgeScoped(ctx context.Context, query string, limit int, specialist string) ([]MemoryResult, error) {
	if vs.knowledge.Count() == 0 {
		return nil, nil
	}
	if specialist == "" {
		return vs.searchKnowledgeInternal(ctx, query, limit, nil)
	}

	scoped, err := vs.searchKnowledgeInternal(ctx, query, limit, map[string]string{"specialist": specialist})
	if err != nil {
		return nil, err
	}

	if len(scoped) < limit {
		seen := make(map[string]bool, len(scoped))
		for _, r := range scoped {
			seen[r.ID] = true
		}
		global, _ := vs.searchKnowledgeInternal(ctx, query, limit-len(scoped), nil)
		for _, r := range global {
			if !seen[r.ID] {
				scoped = append(scoped, r)
			}
		}
	}

	return scoped, nil
}

func (vs *VectorStore) searchKnowledgeInternal(ctx context.Context, query string, limit int, where map[string]string) ([]MemoryResult, error) {
	if vs.knowledge.Count() == 0 {
		return nil, nil
	}
	if limit > vs.knowledge.Count() {
		limit = vs.knowledge.Count()
	}

	results, err := vs.knowledge.Query(ctx, query, limit, where, nil)
	if err != nil {
		return nil, fmt.Errorf("search knowledge: %w", err)
	}

	out := make([]MemoryResult, 0, len(results))
	for _, r := range results {
		out = append(out, MemoryResult{
			ID:           r.ID,
			Content:      r.Content,
			Score:        r.Similarity,
			Timestamp:    r.Metadata["updated_at"],
			Category:     r.Metadata["category"],
			Source:       "knowledge",
			Specialist:   r.Metadata["specialist"],
			SourceType:   r.Metadata["source_type"],
			SourceName:   r.Metadata["source_name"],
			SourceDate:   r.Metadata["source_date"],
			SourcePerson: r.Metadata["source_person"],
		})
	}
	return out, nil
}

// Search queries one or both collections, merged and ranked by similarity.
// filter is one of "", "all", "conversations", "knowledge".
func (vs *VectorStore) Search(ctx context.Context, query string, limit int, filter string) ([]MemoryResult, error) {
	switch filter {
	case "", "all":
		var all []MemoryResult
		if conv, err := vs.SearchConversations(ctx, query, limit); err != nil {
			logger.WarnCF("memory", "conversation search failed", map[string]interface{}{"error": err.Error()})
		} else {
			all = append(all, conv...)
		}
		if know, err := vs.SearchKnowledge(ctx, query, limit); err != nil {
			logger.WarnCF("memory", "knowledge search failed", map[string]interface{}{"error": err.Error()})
		} else {
			all = append(all, know...)
		}
		sort.Slice(all, func(i, j int) bool { return all[i].Score > all[j].Score })
		if len(all) > limit {
			all = all[:limit]
		}
		return all, nil
	case "conversations":
		return vs.SearchConversations(ctx, query, limit)
	case "knowledge":
		return vs.SearchKnowledge(ctx, query, limit)
	default:
		return nil, fmt.Errorf("unknown search filter %q (use: all, conversations, knowledge)", filter)
	}
}

// FormatResults renders search results as a markdown fragment suitable for
// injecting into a system prompt.
func FormatResults(results []MemoryResult) string {
	if len(results) == 0 {
		return "No memories found."
	}

	var knowledgeResults, convResults []MemoryResult
	for _, r := range results {
		if r.Source == "knowledge" {
			knowledgeResults = append(knowledgeResults, r)
		} else {
			convResults = append(convResults, r)
		}
	}

	var sb strings.Builder

	if len(knowledgeResults) > 0 {
		sb.WriteString("## Knowledge\n")
		for _, r := range knowledgeResults {
			cat := ""
			if r.Category != "" {
				cat = fmt.Sprintf(" (%s)", r.Category)
			}
			sb.WriteString(fmt.Sprintf("- %s %s%s\n", formatProvenance(r), r.Content, cat))
		}
	}

	if len(convResults) > 0 {
		if len(knowledgeResults) > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString("## Conversations\n")
		for _, r := range convResults {
			preview := r.Content
			if runes := []rune(preview); len(runes) > 200 {
				preview = string(runes[:200]) + "..."
			}
			sb.WriteString(fmt.Sprintf("- [%s] %s\n", formatDate(r.Timestamp), preview))
		}
	}

	return sb.String()
}

// formatProvenance builds a bracketed attribution prefix for a knowledge
// result, e.g. "[2025-11-06, Charlie via conversation]", "[2025-11-06]".
func formatProvenance(r MemoryResult) string {
	date := r.SourceDate
	if date == "" {
		date = r.Timestamp
	}
	parts := []string{formatDate(date)}

	switch {
	case r.SourcePerson != "" && r.SourceType != "":
		parts = append(parts, fmt.Sprintf("%s via %s", r.SourcePerson, r.SourceType))
	case r.SourcePerson != "":
		parts = append(parts, r.SourcePerson)
	case r.SourceName != "":
		parts = append(parts, r.SourceName)
	case r.SourceType != "":
		parts = append(parts, r.SourceType)
	}

	return "[" + strings.Join(parts, ", ") + "]"
}

func formatDate(ts string) string {
	if ts == "" {
		return "unknown"
	}
	t, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		return ts
	}
	return t.Format("2006-01-02")
}
