package nodes

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/solace-ai/agentserver/pkg/capability"
	"github.com/solace-ai/agentserver/pkg/chatrecord"
	"github.com/solace-ai/agentserver/pkg/config"
	"github.com/solace-ai/agentserver/pkg/storage"
	"github.com/solace-ai/agentserver/pkg/workflow"
)

type fakeStore struct{ mu sync.Mutex }

func (f *fakeStore) FetchLatestCompressed(ctx context.Context, agentID int64, copilotMode bool) (*storage.CompressedMessage, error) {
	return nil, nil
}
func (f *fakeStore) FetchUncompressedSince(ctx context.Context, agentID int64, copilotMode bool, since time.Time, limit int) ([]storage.ChatMessage, error) {
	return nil, nil
}
func (f *fakeStore) SaveChatMessage(ctx context.Context, m storage.ChatMessage) (int64, error) {
	return 1, nil
}
func (f *fakeStore) SaveCompressedMessage(ctx context.Context, c storage.CompressedMessage) (int64, error) {
	return 1, nil
}

type fakeStreamingLLM struct{ reply string }

func (f *fakeStreamingLLM) Chat(ctx context.Context, messages []capability.Message, tools []capability.ToolDefinition, model string, options map[string]interface{}) (*capability.LLMResponse, error) {
	return &capability.LLMResponse{Content: f.reply}, nil
}
func (f *fakeStreamingLLM) GetDefaultModel() string { return "fake-model" }
func (f *fakeStreamingLLM) ChatStream(ctx context.Context, messages []capability.Message, tools []capability.ToolDefinition, model string, options map[string]interface{}, onContent capability.StreamCallback) (*capability.LLMResponse, error) {
	onContent(f.reply)
	return &capability.LLMResponse{Content: f.reply}, nil
}

type fakeTTS struct{}

func (f *fakeTTS) Synthesize(ctx context.Context, text, voice, emotion string) (<-chan capability.TTSEvent, error) {
	ch := make(chan capability.TTSEvent, 3)
	ch <- capability.TTSEvent{Status: capability.TTSSentenceStart, Text: text}
	ch <- capability.TTSEvent{Audio: []byte("opus-bytes")}
	ch <- capability.TTSEvent{Status: capability.TTSSentenceEnd, Text: text}
	close(ch)
	return ch, nil
}

func buildTestEngine(t *testing.T, reply string) (*workflow.Engine, func()) {
	t.Helper()

	registry := workflow.NewRegistry()
	RegisterAll(registry)

	graph := &config.WorkflowGraphConfig{
		Nodes: []config.WorkflowNodeConfig{
			{Name: "interrupt_controller", Type: "interrupt_controller"},
			{Name: "route", Type: "route"},
			{Name: "agent", Type: "agent", Config: map[string]interface{}{
				"system_prompt": "be helpful",
				"user_prompt":   "{{.text}}",
			}},
			{Name: "post_route", Type: "post_route"},
			{Name: "tts", Type: "tts"},
			{Name: "chat_record", Type: "chat_record", Config: map[string]interface{}{
				"compress_system_prompt":       "summarize",
				"compress_user_prompt":         "go",
				"memory_extract_system_prompt": "extract",
				"memory_extract_user_prompt":   "go",
			}},
		},
		Edges: []config.WorkflowEdgeConfig{
			{FromNode: "interrupt_controller", FromParam: "user_text", ToNode: "agent", ToParam: "user_text"},
			{FromNode: "interrupt_controller", FromParam: "user_text", ToNode: "chat_record", ToParam: "user_text"},
			{FromNode: "agent", FromParam: "response_text_stream", ToNode: "post_route", ToParam: "text_stream"},
			{FromNode: "agent", FromParam: "response_text_stream", ToNode: "chat_record", ToParam: "ai_text"},
			{FromNode: "post_route", FromParam: "sentence_stream", ToNode: "tts", ToParam: "text_stream"},
		},
	}

	globalVars := map[string]interface{}{
		GlobalKeyAgentID:     int64(42),
		GlobalKeySessionID:   "s1",
		GlobalKeyCopilotMode: false,
		GlobalKeyStorage:     &fakeStore{},
		GlobalKeyCapabilities: &capability.Bundle{
			LLM: &fakeStreamingLLM{reply: reply},
			TTS: &fakeTTS{},
		},
	}

	engine, err := workflow.Load(graph, registry, globalVars)
	if err != nil {
		t.Fatalf("workflow.Load() error: %v", err)
	}
	return engine, func() { engine.Stop() }
}

func TestPipelineRoutesTextToSentenceOutput(t *testing.T) {
	engine, stop := buildTestEngine(t, "Hello there.")
	defer stop()

	var mu sync.Mutex
	var sentences []string
	done := make(chan struct{}, 1)
	engine.RegisterExternalConnection("post_route", "sentence_stream", func(chunk workflow.Chunk) {
		if workflow.IsEndSentinel(chunk) {
			select {
			case done <- struct{}{}:
			default:
			}
			return
		}
		if text, ok := workflow.TextOf(chunk); ok {
			mu.Lock()
			sentences = append(sentences, text)
			mu.Unlock()
		}
	})

	engine.Start(context.Background())
	engine.FeedInputChunk("interrupt_controller", "recognized_text", map[string]interface{}{
		"text": "hi", "confidence": 1.0, "emotion": "neutral", "audio_file_path": "",
	})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for post_route end sentinel")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(sentences) == 0 {
		t.Fatal("expected at least one sentence forwarded to post_route output")
	}
	if sentences[0] != "Hello there." {
		t.Errorf("sentences[0] = %q, want %q", sentences[0], "Hello there.")
	}
}

func TestPipelineForwardsAudioFramesFromTTS(t *testing.T) {
	engine, stop := buildTestEngine(t, "One. Two.")
	defer stop()

	var mu sync.Mutex
	var frames int
	statusSeen := map[string]bool{}
	engine.RegisterExternalConnection("tts", "audio_stream", func(chunk workflow.Chunk) {
		mu.Lock()
		frames++
		mu.Unlock()
	})
	engine.RegisterExternalConnection("tts", "tts_status", func(chunk workflow.Chunk) {
		m, ok := chunk.(map[string]interface{})
		if !ok {
			return
		}
		state, _ := m["state"].(string)
		mu.Lock()
		statusSeen[state] = true
		mu.Unlock()
	})

	engine.Start(context.Background())
	engine.FeedInputChunk("interrupt_controller", "recognized_text", map[string]interface{}{"text": "hi"})

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		got := frames > 0 && statusSeen["sentence_start"] && statusSeen["sentence_end"]
		mu.Unlock()
		if got {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("timed out waiting for tts audio frames and status events")
}

func TestChatRecordIngestsBothSidesOfTheTurn(t *testing.T) {
	engine, stop := buildTestEngine(t, "answer text")
	defer stop()

	engine.Start(context.Background())
	engine.FeedInputChunk("interrupt_controller", "recognized_text", map[string]interface{}{"text": "question"})

	deadline := time.Now().Add(2 * time.Second)
	var crNode *ChatRecordNode
	for time.Now().Before(deadline) {
		n, ok := engine.Node("chat_record")
		if ok {
			crNode = n.(*ChatRecordNode)
			if crNode.Record() != nil {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
	}
	if crNode == nil || crNode.Record() == nil {
		t.Fatal("chat_record node never initialized its Record")
	}

	for time.Now().Before(deadline) {
		history := crNode.Record().History()
		if len(history) >= 2 && history[0].Role == chatrecord.RoleUser && history[0].Content == "question" {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("chat_record history = %+v, want user+assistant turn persisted", crNode.Record().History())
}
