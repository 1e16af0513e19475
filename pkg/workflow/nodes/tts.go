package nodes

import (
	"fmt"

	"github.com/solace-ai/agentserver/pkg/capability"
	"github.com/solace-ai/agentserver/pkg/logger"
	"github.com/solace-ai/agentserver/pkg/workflow"
)

// TTSNode calls the TTS capability (C1) and emits opus frames plus
// tts_status lifecycle events (start|stop|sentence_start|sentence_end),
// forwarded by the per-session manager to the WebSocket bridge as binary
// frames and `tts` JSON messages respectively (spec.md §4.1, §4.3); the
// manager does not forward sentence_end.
type TTSNode struct {
	name    string
	voice   string
	emotion string
}

// NewTTSNode is a workflow.NodeFactory for the "tts" type.
func NewTTSNode(name string) workflow.Node {
	return &TTSNode{name: name}
}

func (n *TTSNode) Name() string { return n.name }

func (n *TTSNode) Spec() workflow.NodeSpec {
	return workflow.NodeSpec{
		Inputs: []workflow.ParamSpec{
			{Name: "text_stream", Streaming: true},
		},
		Outputs: []workflow.ParamSpec{
			{Name: "audio_stream", Streaming: true},
			{Name: "tts_status", Streaming: true},
		},
		Config: []workflow.ParamSpec{
			{Name: "voice"},
			{Name: "emotion"},
		},
		Mode: workflow.StreamingMode,
	}
}

func (n *TTSNode) Init(cfg map[string]interface{}) error {
	n.voice = stringConfig(cfg, "voice", "default")
	n.emotion = stringConfig(cfg, "emotion", "neutral")
	return nil
}

func (n *TTSNode) Run(ctx *workflow.RunContext) error {
	bundle, ok := ctx.GlobalVars().Get(GlobalKeyCapabilities).(*capability.Bundle)
	if !ok || bundle.TTS == nil {
		return fmt.Errorf("tts: global var %q does not carry a TTS capability", GlobalKeyCapabilities)
	}

	in := ctx.In("text_stream")
	done := ctx.Context().Done()

	for {
		select {
		case <-done:
			return nil
		case chunk := <-in:
			if workflow.IsEndSentinel(chunk) {
				continue
			}
			text, ok := workflow.TextOf(chunk)
			if !ok || text == "" {
				continue
			}
			n.synthesize(ctx, bundle.TTS, text)
		}
	}
}

func (n *TTSNode) synthesize(ctx *workflow.RunContext, tts capability.TTS, text string) {
	events, err := tts.Synthesize(ctx.Context(), text, n.voice, n.emotion)
	if err != nil {
		logger.WarnCF("tts", "synthesize call failed", map[string]interface{}{"error": err.Error()})
		return
	}
	for {
		select {
		case <-ctx.Context().Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			if len(event.Audio) > 0 {
				ctx.Out("audio_stream", map[string]interface{}{"data": event.Audio})
			}
			if event.Status != "" {
				ctx.Out("tts_status", map[string]interface{}{"state": string(event.Status), "text": event.Text})
			}
		}
	}
}
