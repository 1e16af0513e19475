package nodes

import (
	"fmt"

	"github.com/solace-ai/agentserver/pkg/capability"
	"github.com/solace-ai/agentserver/pkg/logger"
	"github.com/solace-ai/agentserver/pkg/workflow"
)

// VADNode consumes raw opus frames pushed via the WebSocket bridge's binary
// frames (spec.md §4.4) and, once the VAD capability finalizes an utterance,
// pairs it with an STT transcription call to produce the same
// confidence-scored recognized-text shape a direct `text` message would
// carry (spec.md §4.1: "vad (streaming): consumes raw opus frames, emits
// segmented utterance events plus a confidence-scored recognized-text
// stream once paired with an STT capability call").
type VADNode struct {
	name string
}

// NewVADNode is a workflow.NodeFactory for the "vad" type.
func NewVADNode(name string) workflow.Node {
	return &VADNode{name: name}
}

func (n *VADNode) Name() string { return n.name }

func (n *VADNode) Spec() workflow.NodeSpec {
	return workflow.NodeSpec{
		Inputs: []workflow.ParamSpec{
			{Name: "audio_stream", Streaming: true},
		},
		Outputs: []workflow.ParamSpec{
			{Name: "recognized_text", Streaming: true},
		},
		Mode: workflow.StreamingMode,
	}
}

func (n *VADNode) Init(cfg map[string]interface{}) error { return nil }

func (n *VADNode) Run(ctx *workflow.RunContext) error {
	bundle, ok := ctx.GlobalVars().Get(GlobalKeyCapabilities).(*capability.Bundle)
	if !ok || bundle.VAD == nil || bundle.STT == nil {
		return fmt.Errorf("vad: global var %q does not carry VAD and STT capabilities", GlobalKeyCapabilities)
	}

	in := ctx.In("audio_stream")
	done := ctx.Context().Done()

	for {
		select {
		case <-done:
			bundle.VAD.Reset()
			return nil
		case chunk := <-in:
			m, ok := chunk.(map[string]interface{})
			if !ok {
				continue
			}
			frame, _ := m["data"].([]byte)
			if len(frame) == 0 {
				continue
			}

			utterance, err := bundle.VAD.Feed(ctx.Context(), frame)
			if err != nil {
				logger.WarnCF("vad", "vad feed failed", map[string]interface{}{"error": err.Error()})
				continue
			}
			if utterance == nil || !utterance.IsFinal {
				continue
			}

			result, err := bundle.STT.Transcribe(ctx.Context(), utterance.AudioSegment)
			if err != nil {
				logger.WarnCF("vad", "stt transcription failed", map[string]interface{}{"error": err.Error()})
				continue
			}
			if result.Text == "" {
				continue
			}

			emotion := result.Emotion
			if emotion == "" {
				emotion = "neutral"
			}
			ctx.Out("recognized_text", map[string]interface{}{
				"text":            result.Text,
				"confidence":      result.Confidence,
				"emotion":         emotion,
				"audio_file_path": "",
			})
		}
	}
}
