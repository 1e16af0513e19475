package workflow

import (
	"context"
	"testing"
	"time"

	"github.com/solace-ai/agentserver/pkg/config"
)

// echoNode copies every chunk from its "in" input to its "out" output,
// appending "!" to text chunks, until the context is cancelled.
type echoNode struct {
	name string
}

func (n *echoNode) Name() string { return n.name }
func (n *echoNode) Spec() NodeSpec {
	return NodeSpec{
		Inputs:  []ParamSpec{{Name: "in"}},
		Outputs: []ParamSpec{{Name: "out"}},
		Mode:    StreamingMode,
	}
}
func (n *echoNode) Init(map[string]interface{}) error { return nil }
func (n *echoNode) Run(rc *RunContext) error {
	in := rc.In("in")
	for {
		select {
		case <-rc.Context().Done():
			return nil
		case chunk := <-in:
			if text, ok := TextOf(chunk); ok {
				rc.Out("out", TextChunk(text+"!"))
				continue
			}
			rc.Out("out", chunk)
		}
	}
}

func TestEngineRoutesInternalEdge(t *testing.T) {
	registry := NewRegistry()
	registry.Register("echo", func(name string) Node { return &echoNode{name: name} })

	graph := &config.WorkflowGraphConfig{
		Nodes: []config.WorkflowNodeConfig{
			{Name: "a", Type: "echo"},
			{Name: "b", Type: "echo"},
		},
		Edges: []config.WorkflowEdgeConfig{
			{FromNode: "a", FromParam: "out", ToNode: "b", ToParam: "in"},
		},
	}

	engine, err := Load(graph, registry, map[string]interface{}{"session_id": "s1"})
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	received := make(chan Chunk, 1)
	engine.RegisterExternalConnection("b", "out", func(c Chunk) { received <- c })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	engine.Start(ctx)
	defer engine.Stop()

	engine.FeedInputChunk("a", "in", TextChunk("hi"))

	select {
	case chunk := <-received:
		text, ok := TextOf(chunk)
		if !ok || text != "hi!!" {
			t.Fatalf("got chunk %v, want text %q", chunk, "hi!!")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for chunk to traverse a -> b -> external")
	}

	if got := engine.GlobalVars().Get("session_id"); got != "s1" {
		t.Errorf("GlobalVars().Get(session_id) = %v, want s1", got)
	}
}

func TestEndSentinel(t *testing.T) {
	if !IsEndSentinel(EndText) {
		t.Error("IsEndSentinel(EndText) = false, want true")
	}
	if IsEndSentinel(TextChunk("hello")) {
		t.Error("IsEndSentinel(non-empty text) = true, want false")
	}
	if IsEndSentinel(map[string]interface{}{"text": "", "extra": 1}) {
		t.Error("IsEndSentinel should not match a chunk with extra fields")
	}
}
