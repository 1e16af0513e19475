package nodes

import (
	"context"
	"fmt"

	"github.com/solace-ai/agentserver/pkg/capability"
	"github.com/solace-ai/agentserver/pkg/chatrecord"
	"github.com/solace-ai/agentserver/pkg/logger"
	"github.com/solace-ai/agentserver/pkg/workflow"
)

// ChatRecordNode wraps pkg/chatrecord.Record as a streaming graph node,
// subscribed to both the user-text stream (from interrupt_controller) and
// the AI-text stream (from agent) and consulted directly by the agent node
// for context injection (spec.md §4.1, §4.2; original_source's
// chat_record_node.py wraps the same helpers the same way).
type ChatRecordNode struct {
	name string

	compressTokenThreshold int
	loadHistoryLimit       int
	keepLastRounds         int
	memoryExtractMaxLength int
	compressSystemPrompt   string
	compressUserPrompt     string
	memoryExtractSystem    string
	memoryExtractUser      string

	record *chatrecord.Record
}

// NewChatRecordNode is a workflow.NodeFactory for the "chat_record" type.
func NewChatRecordNode(name string) workflow.Node {
	return &ChatRecordNode{name: name}
}

func (n *ChatRecordNode) Name() string { return n.name }

func (n *ChatRecordNode) Spec() workflow.NodeSpec {
	return workflow.NodeSpec{
		Inputs: []workflow.ParamSpec{
			{Name: "user_text", Streaming: true},
			{Name: "ai_text", Streaming: true},
		},
		Config: []workflow.ParamSpec{
			{Name: "compress_token_threshold"},
			{Name: "load_history_limit"},
			{Name: "keep_last_rounds"},
			{Name: "compress_system_prompt"},
			{Name: "compress_user_prompt"},
			{Name: "memory_extract_system_prompt"},
			{Name: "memory_extract_user_prompt"},
			{Name: "memory_extract_max_length"},
		},
		Mode: workflow.StreamingMode,
	}
}

// Init stores the node's own tunables (spec.md §6.2); the per-session
// identity (agent id, storage handle, LLM capability, seed memory) is only
// available once the engine starts, so Record construction happens in Run.
func (n *ChatRecordNode) Init(cfg map[string]interface{}) error {
	defaults := chatrecord.DefaultTunables()
	n.compressTokenThreshold = intConfig(cfg, "compress_token_threshold", defaults.CompressTokenThreshold)
	n.loadHistoryLimit = intConfig(cfg, "load_history_limit", defaults.LoadHistoryLimit)
	n.keepLastRounds = intConfig(cfg, "keep_last_rounds", defaults.KeepLastRounds)
	n.memoryExtractMaxLength = intConfig(cfg, "memory_extract_max_length", defaults.MemoryExtractMaxLength)
	n.compressSystemPrompt = stringConfig(cfg, "compress_system_prompt", "")
	n.compressUserPrompt = stringConfig(cfg, "compress_user_prompt", "")
	n.memoryExtractSystem = stringConfig(cfg, "memory_extract_system_prompt", "")
	n.memoryExtractUser = stringConfig(cfg, "memory_extract_user_prompt", "")
	return nil
}

// Record exposes the underlying chatrecord.Record for the agent node's
// direct, non-edge context-injection call (set once Run has started).
func (n *ChatRecordNode) Record() *chatrecord.Record { return n.record }

func (n *ChatRecordNode) Run(ctx *workflow.RunContext) error {
	gv := ctx.GlobalVars()

	store, ok := gv.Get(GlobalKeyStorage).(chatrecord.Store)
	if !ok {
		return fmt.Errorf("chat_record: global var %q is not a chatrecord.Store", GlobalKeyStorage)
	}
	bundle, ok := gv.Get(GlobalKeyCapabilities).(*capability.Bundle)
	if !ok || bundle.LLM == nil {
		return fmt.Errorf("chat_record: global var %q does not carry an LLM capability", GlobalKeyCapabilities)
	}
	agentID, _ := gv.Get(GlobalKeyAgentID).(int64)
	sessionID, _ := gv.Get(GlobalKeySessionID).(string)
	copilotMode, _ := gv.Get(GlobalKeyCopilotMode).(bool)
	existingMemory, _ := gv.Get(GlobalKeyAgentMemory).(map[string]interface{})

	n.record = chatrecord.NewRecord(store, bundle.LLM, agentID, sessionID, copilotMode, chatrecord.Tunables{
		CompressTokenThreshold: n.compressTokenThreshold,
		KeepLastRounds:         n.keepLastRounds,
		LoadHistoryLimit:       n.loadHistoryLimit,
		MemoryExtractMaxLength: n.memoryExtractMaxLength,
		CompressSystemPrompt:   n.compressSystemPrompt,
		CompressUserPrompt:     n.compressUserPrompt,
		MemoryExtractSystem:    n.memoryExtractSystem,
		MemoryExtractUser:      n.memoryExtractUser,
	}, existingMemory)

	if err := n.record.Load(ctx.Context()); err != nil {
		logger.ErrorCF("chat_record", "initial history load failed", map[string]interface{}{
			"agent_id": agentID, "error": err.Error(),
		})
	}

	userText := ctx.In("user_text")
	aiText := ctx.In("ai_text")
	done := ctx.Context().Done()

	for {
		select {
		case <-done:
			// The engine is stopping (detach, abort or disconnect): persist any
			// partial assistant text before returning.
			if err := n.record.FinalizeAssistantTurn(context.WithoutCancel(ctx.Context())); err != nil {
				logger.ErrorCF("chat_record", "finalize assistant turn on stop failed", map[string]interface{}{"agent_id": agentID, "error": err.Error()})
			}
			return nil

		case chunk := <-userText:
			text, emotion, audioPath := decodeUserTextChunk(chunk)
			if text == "" {
				continue
			}
			if err := n.record.IngestUser(ctx.Context(), text, emotion, audioPath); err != nil {
				logger.ErrorCF("chat_record", "ingest user turn failed", map[string]interface{}{"agent_id": agentID, "error": err.Error()})
			}

		case chunk := <-aiText:
			if workflow.IsEndSentinel(chunk) {
				if err := n.record.FinalizeAssistantTurn(ctx.Context()); err != nil {
					logger.ErrorCF("chat_record", "finalize assistant turn failed", map[string]interface{}{"agent_id": agentID, "error": err.Error()})
				}
				continue
			}
			if text, ok := workflow.TextOf(chunk); ok {
				n.record.IngestAssistantToken(text)
			}
		}
	}
}

// decodeUserTextChunk reads the {text, emotion, audio_file_path, confidence}
// shape produced by vad/interrupt_controller (spec.md §4.1's recognized-text
// contract).
func decodeUserTextChunk(chunk workflow.Chunk) (text, emotion, audioPath string) {
	m, ok := chunk.(map[string]interface{})
	if !ok {
		return "", "", ""
	}
	text, _ = m["text"].(string)
	emotion, _ = m["emotion"].(string)
	audioPath, _ = m["audio_file_path"].(string)
	return text, emotion, audioPath
}

func intConfig(cfg map[string]interface{}, key string, def int) int {
	v, ok := cfg[key]
	if !ok {
		return def
	}
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	default:
		return def
	}
}

func stringConfig(cfg map[string]interface{}, key, def string) string {
	if s, ok := cfg[key].(string); ok {
		return s
	}
	return def
}
