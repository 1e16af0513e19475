package chatrecord

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/solace-ai/agentserver/pkg/capability"
	"github.com/solace-ai/agentserver/pkg/storage"
)

type fakeStore struct {
	mu         sync.Mutex
	compressed *storage.CompressedMessage
	messages   []storage.ChatMessage
	saved      []storage.ChatMessage
	savedComp  []storage.CompressedMessage
}

func (f *fakeStore) FetchLatestCompressed(ctx context.Context, agentID int64, copilotMode bool) (*storage.CompressedMessage, error) {
	return f.compressed, nil
}

func (f *fakeStore) FetchUncompressedSince(ctx context.Context, agentID int64, copilotMode bool, since time.Time, limit int) ([]storage.ChatMessage, error) {
	return f.messages, nil
}

func (f *fakeStore) SaveChatMessage(ctx context.Context, m storage.ChatMessage) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved = append(f.saved, m)
	return int64(len(f.saved)), nil
}

func (f *fakeStore) SaveCompressedMessage(ctx context.Context, c storage.CompressedMessage) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.savedComp = append(f.savedComp, c)
	return int64(len(f.savedComp)), nil
}

type fakeLLM struct {
	response string
}

func (f *fakeLLM) Chat(ctx context.Context, messages []capability.Message, tools []capability.ToolDefinition, model string, options map[string]interface{}) (*capability.LLMResponse, error) {
	return &capability.LLMResponse{Content: f.response}, nil
}

func (f *fakeLLM) GetDefaultModel() string { return "fake-model" }

func TestRecordLoadMergesConsecutiveRoles(t *testing.T) {
	store := &fakeStore{
		messages: []storage.ChatMessage{
			{Role: RoleUser, Content: "hi", CreatedAt: time.Now()},
			{Role: RoleUser, Content: "there", CreatedAt: time.Now()},
			{Role: RoleAssistant, Content: "hello", CreatedAt: time.Now()},
		},
	}
	rec := NewRecord(store, &fakeLLM{}, 1, "s1", false, DefaultTunables(), nil)

	if err := rec.Load(context.Background()); err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if !NoAdjacentSameRole(rec.history) {
		t.Error("loaded history should have no adjacent same-role entries")
	}
	if len(rec.history) != 2 {
		t.Fatalf("len(history) = %d, want 2", len(rec.history))
	}
}

func TestRecordIngestUserPersistsAndAppends(t *testing.T) {
	store := &fakeStore{}
	rec := NewRecord(store, &fakeLLM{}, 1, "s1", false, DefaultTunables(), nil)

	if err := rec.IngestUser(context.Background(), "hello", "neutral", ""); err != nil {
		t.Fatalf("IngestUser() error: %v", err)
	}
	if len(store.saved) != 1 || store.saved[0].Role != RoleUser {
		t.Fatalf("store.saved = %+v, want one user message", store.saved)
	}
	if len(rec.history) != 1 {
		t.Fatalf("len(history) = %d, want 1", len(rec.history))
	}
}

func TestRecordAssistantTurnBuffersUntilFinalized(t *testing.T) {
	store := &fakeStore{}
	rec := NewRecord(store, &fakeLLM{}, 1, "s1", false, DefaultTunables(), nil)

	rec.IngestAssistantToken("Hel")
	rec.IngestAssistantToken("lo")
	if len(store.saved) != 0 {
		t.Fatal("no message should be persisted before the end sentinel")
	}

	if err := rec.FinalizeAssistantTurn(context.Background()); err != nil {
		t.Fatalf("FinalizeAssistantTurn() error: %v", err)
	}
	if len(store.saved) != 1 || store.saved[0].Content != "Hello" {
		t.Fatalf("store.saved = %+v, want one assistant message with content Hello", store.saved)
	}

	// A second finalize with an empty buffer must be a no-op.
	if err := rec.FinalizeAssistantTurn(context.Background()); err != nil {
		t.Fatalf("second FinalizeAssistantTurn() error: %v", err)
	}
	if len(store.saved) != 1 {
		t.Fatalf("len(store.saved) = %d, want 1 (no duplicate persisted on empty buffer)", len(store.saved))
	}
}

func TestRecordCompressionRunsAndResetsHistory(t *testing.T) {
	store := &fakeStore{}
	rec := NewRecord(store, &fakeLLM{response: "a concise summary"}, 1, "s1", false, Tunables{
		CompressTokenThreshold: 1,
		KeepLastRounds:         1,
		LoadHistoryLimit:       100,
		MemoryExtractMaxLength: 4000,
		CompressSystemPrompt:   "summarize: {{.messages}}",
		CompressUserPrompt:     "go",
	}, nil)

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		long := "this is a long enough message to cross the token threshold quickly"
		if err := rec.IngestUser(ctx, long, "neutral", ""); err != nil {
			t.Fatalf("IngestUser() error: %v", err)
		}
		rec.IngestAssistantToken(long)
		if err := rec.FinalizeAssistantTurn(ctx); err != nil {
			t.Fatalf("FinalizeAssistantTurn() error: %v", err)
		}
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		rec.mu.Lock()
		compressing := rec.isCompressing
		rec.mu.Unlock()
		if !compressing && len(store.savedComp) > 0 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	if len(store.savedComp) == 0 {
		t.Fatal("expected a compressed message to be saved once threshold crossed")
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.history) != 1+2*1 {
		t.Fatalf("len(history) after compression = %d, want %d", len(rec.history), 1+2*1)
	}
	if !rec.history[0].IsCompressed {
		t.Error("history[0] should be the synthetic compressed summary entry")
	}
}
