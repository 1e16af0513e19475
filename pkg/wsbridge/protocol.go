// Package wsbridge implements the WebSocket protocol bridge named in
// spec.md §4.4/§6.1 (C5): connection auth, the hello/ready state machine,
// inbound message dispatch into a session's workflow engine, and outbound
// framing of the engine's tts/llm/error wire messages. Grounded in
// original_source/websocket_handler.py and the gorilla/websocket connection
// shape the wider retrieval pack uses for AI-chat bridges.
package wsbridge

// Error codes carried on the outbound `error` message. spec.md §6.1 only
// names the message shape ({code, message, details?}), not a registry, so
// this is this module's own small numbering.
const (
	ErrCodeProtocol          = 4000 // malformed JSON, unknown type, message before hello
	ErrCodeUnauthorizedAgent = 4001 // agent_id not owned by the authenticated user
	ErrCodeInternal          = 5000 // engine/storage failure
	ErrCodeCapability        = 5001 // LLM/TTS/STT/VAD call failed mid-turn
)

// audioParams is the fixed opus profile this bridge speaks (spec.md §6.1's
// outbound hello).
var audioParams = map[string]interface{}{
	"format":         "opus",
	"sample_rate":    24000,
	"channels":       1,
	"frame_duration": 60,
}

// inboundEnvelope is decoded first to read `type` before dispatching to a
// concrete inbound shape.
type inboundEnvelope struct {
	Type string `json:"type"`
}

type helloIn struct {
	Type      string `json:"type"`
	Version   int    `json:"version"`
	Transport string `json:"transport"`
}

type listenIn struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id,omitempty"`
	State     string `json:"state"`
	Mode      string `json:"mode,omitempty"`
	Text      string `json:"text,omitempty"`
	AgentID   int64  `json:"agent_id,omitempty"`
}

type textIn struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id,omitempty"`
	Content   string `json:"content"`
	AgentID   int64  `json:"agent_id"`
}

type abortIn struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

type mcpIn struct {
	Type      string                 `json:"type"`
	SessionID string                 `json:"session_id,omitempty"`
	Payload   map[string]interface{} `json:"payload,omitempty"`
}

// Outbound message shapes (spec.md §6.1).

type helloOut struct {
	Type        string                 `json:"type"`
	Transport   string                 `json:"transport"`
	AudioParams map[string]interface{} `json:"audio_params"`
}

type ttsOut struct {
	Type  string `json:"type"`
	State string `json:"state"`
	Text  string `json:"text,omitempty"`
}

type llmOut struct {
	Type     string `json:"type"`
	Content  string `json:"content,omitempty"`
	Emotion  string `json:"emotion,omitempty"`
	Finished bool   `json:"finished,omitempty"`
}

type errorOut struct {
	Type    string                 `json:"type"`
	Code    int                    `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}
