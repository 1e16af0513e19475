package nodes

import (
	"strings"

	"github.com/solace-ai/agentserver/pkg/logger"
	"github.com/solace-ai/agentserver/pkg/workflow"
)

// InterruptControllerNode is the external-input sink named in spec.md §4.4's
// `text` message handling: finalized user text (whether from a direct text
// frame or from vad's STT pairing) arrives on recognized_text and is routed
// to the (request-mode) route node before being forwarded to the agent.
// This is also the node the WebSocket bridge's `abort` handling cooperates
// with: aborting a turn cancels the engine run context, which simply stops
// this node (and every other streaming node) via ctx.Context().Done(), per
// spec.md §5's cooperative-cancellation model — no bespoke abort logic is
// needed here (grounded in original_source/websocket_handler.py, which
// likewise relies on the engine's own cancellation for `abort`).
type InterruptControllerNode struct {
	name string
}

// NewInterruptControllerNode is a workflow.NodeFactory for "interrupt_controller".
func NewInterruptControllerNode(name string) workflow.Node {
	return &InterruptControllerNode{name: name}
}

func (n *InterruptControllerNode) Name() string { return n.name }

func (n *InterruptControllerNode) Spec() workflow.NodeSpec {
	return workflow.NodeSpec{
		Inputs: []workflow.ParamSpec{
			{Name: "recognized_text", Streaming: true},
		},
		Outputs: []workflow.ParamSpec{
			{Name: "user_text", Streaming: true},
		},
		Mode: workflow.StreamingMode,
	}
}

func (n *InterruptControllerNode) Init(cfg map[string]interface{}) error { return nil }

func (n *InterruptControllerNode) Run(ctx *workflow.RunContext) error {
	in := ctx.In("recognized_text")
	done := ctx.Context().Done()

	for {
		select {
		case <-done:
			return nil
		case chunk := <-in:
			m, ok := chunk.(map[string]interface{})
			if !ok {
				continue
			}
			text, _ := m["text"].(string)
			if strings.TrimSpace(text) == "" {
				continue
			}

			routed, err := ctx.Invoke("route", m)
			if err != nil {
				logger.WarnCF("interrupt_controller", "route invocation failed, forwarding unrouted", map[string]interface{}{"error": err.Error()})
				routed = m
			}
			ctx.Out("user_text", routed)
		}
	}
}
