package nodes

import (
	"github.com/solace-ai/agentserver/pkg/bus"
	"github.com/solace-ai/agentserver/pkg/workflow"
)

// PostRouteNode splits the agent's raw token stream into sentence-complete
// chunks before handing off to TTS (spec.md §4.1: "post_route (streaming):
// splits the raw token stream into sentence-complete chunks"), using the
// teacher's accumulate-then-flush SentenceSplitter retargeted from
// time-based flushing to sentence-boundary flushing.
type PostRouteNode struct {
	name string
}

// NewPostRouteNode is a workflow.NodeFactory for the "post_route" type.
func NewPostRouteNode(name string) workflow.Node {
	return &PostRouteNode{name: name}
}

func (n *PostRouteNode) Name() string { return n.name }

func (n *PostRouteNode) Spec() workflow.NodeSpec {
	return workflow.NodeSpec{
		Inputs: []workflow.ParamSpec{
			{Name: "text_stream", Streaming: true},
		},
		Outputs: []workflow.ParamSpec{
			{Name: "sentence_stream", Streaming: true},
		},
		Mode: workflow.StreamingMode,
	}
}

func (n *PostRouteNode) Init(cfg map[string]interface{}) error { return nil }

func (n *PostRouteNode) Run(ctx *workflow.RunContext) error {
	splitter := bus.NewSentenceSplitter()
	in := ctx.In("text_stream")
	done := ctx.Context().Done()

	for {
		select {
		case <-done:
			return nil
		case chunk := <-in:
			if workflow.IsEndSentinel(chunk) {
				if rest := splitter.Flush(); rest != "" {
					ctx.Out("sentence_stream", workflow.TextChunk(rest))
				}
				ctx.Out("sentence_stream", workflow.EndText)
				continue
			}
			text, ok := workflow.TextOf(chunk)
			if !ok {
				continue
			}
			for _, sentence := range splitter.Feed(text) {
				ctx.Out("sentence_stream", workflow.TextChunk(sentence))
			}
		}
	}
}
