// Package capability abstracts the AI-model contracts (spec.md §4.6) the
// workflow engine's nodes call against: LLM chat completion, TTS synthesis,
// STT transcription, VAD segmentation. Concrete provider adapters are a
// non-goal of this spec; pkg/providers supplies the LLM implementations
// (Claude, OpenAI, and a fallback chain over them) that exercise the
// contract end-to-end.
package capability

import "context"

// Message is one turn in an LLM conversation, OpenAI-shaped (role + content,
// with optional tool-call plumbing) since every provider in this module's
// domain stack speaks that shape natively.
type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
}

// ToolDefinition describes a callable tool an LLM may invoke.
type ToolDefinition struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Parameters  map[string]interface{} `json:"parameters"`
}

// ToolCall is a single tool invocation requested by the model.
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// UsageInfo reports token accounting for a single LLM call.
type UsageInfo struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// LLMResponse is the synchronous result of an LLM chat-completion call. An
// empty Content string is a valid "no output" result per spec.md §4.6.
type LLMResponse struct {
	Content      string     `json:"content"`
	ToolCalls    []ToolCall `json:"tool_calls,omitempty"`
	FinishReason string     `json:"finish_reason"`
	Usage        UsageInfo  `json:"usage"`
}

// StreamCallback receives one text delta at a time during a streaming call;
// an empty-string delta is never passed to the callback — streaming
// termination is signaled by ChatStream's return, not by a sentinel here.
type StreamCallback func(delta string)

// LLM is the synchronous chat-completion capability.
type LLM interface {
	Chat(ctx context.Context, messages []Message, tools []ToolDefinition, model string, options map[string]interface{}) (*LLMResponse, error)
	GetDefaultModel() string
}

// StreamingLLM is implemented by LLM providers that can stream deltas; the
// workflow engine's agent node emits the capability-agnostic text-stream
// end sentinel ({text:""}) itself once ChatStream returns, so providers need
// not fabricate one.
type StreamingLLM interface {
	LLM
	ChatStream(ctx context.Context, messages []Message, tools []ToolDefinition, model string, options map[string]interface{}, onContent StreamCallback) (*LLMResponse, error)
}

// TTSStatus mirrors the WebSocket-visible synthesis lifecycle states named
// in spec.md §4.4.
type TTSStatus string

const (
	TTSStart         TTSStatus = "start"
	TTSStop          TTSStatus = "stop"
	TTSSentenceStart TTSStatus = "sentence_start"
	TTSSentenceEnd   TTSStatus = "sentence_end"
)

// TTSEvent is either an audio frame or a status transition, multiplexed on
// one channel so a TTS provider preserves the ordering between frames and
// status changes.
type TTSEvent struct {
	Status TTSStatus
	Audio  []byte
	Text   string
}

// TTS synthesizes text into a stream of opus frames plus status events.
type TTS interface {
	Synthesize(ctx context.Context, text, voice, emotion string) (<-chan TTSEvent, error)
}

// STTResult is a finalized transcription.
type STTResult struct {
	Text       string
	Confidence float64
	Emotion    string
}

// STT transcribes one finalized audio segment.
type STT interface {
	Transcribe(ctx context.Context, audioSegment []byte) (STTResult, error)
}

// VADUtterance is one segmented utterance boundary detected over a raw
// audio stream.
type VADUtterance struct {
	AudioSegment []byte
	IsFinal      bool
}

// VAD consumes a stream of raw audio frames and segments them into
// utterances.
type VAD interface {
	Feed(ctx context.Context, frame []byte) (*VADUtterance, error)
	Reset()
}

// Bundle groups the capability handles resolved for one agent; the engine
// receives only this bundle, never provider-specific types, per spec.md §4.6.
type Bundle struct {
	LLM LLM
	TTS TTS
	STT STT
	VAD VAD
}
