// Package nodes is the concrete node set that realizes the one session flow
// spec.md §2 names (vad → interrupt_controller → route → agent → post_route
// → tts, chat_record as sink/source), grounded in
// original_source/workflow_chat.py's node wiring and the engine contract in
// pkg/workflow.
package nodes

// Global-vars keys the per-session manager (pkg/session) injects at engine
// Start (spec.md §4.3 "inject global vars"); every node in this package
// reads from this fixed set rather than threading the same values through
// every node's own config.
const (
	GlobalKeySessionID     = "session_id"
	GlobalKeyAgentID       = "agent_id"
	GlobalKeyUserID        = "user_id"
	GlobalKeyCopilotMode   = "copilot_mode"
	GlobalKeyStorage       = "storage"        // chatrecord.Store
	GlobalKeyCapabilities  = "capabilities"    // *capability.Bundle
	GlobalKeyAgentMemory   = "agent_memory"    // map[string]interface{}, seeded from agent.memory_data["chat.long_term_memory"]
	GlobalKeySystemPrompt  = "system_prompt"   // per-session override of the agent node's configured system_prompt template, empty when absent
	GlobalKeyUserProfile   = "user"            // map{"config": ..., "memory": ...} — the deep-merged agent_config tree and the agent's memory_data as stored, walked directly by "{{.user.config...}}" templates
	GlobalKeySemanticStore = "semantic_memory"  // optional memory.Recall-shaped handle, nil when disabled
	GlobalKeyMetricsTracker = "metrics_tracker" // optional *metrics.Tracker, nil when usage tracking is disabled
)
