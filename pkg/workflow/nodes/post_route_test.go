package nodes

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/solace-ai/agentserver/pkg/config"
	"github.com/solace-ai/agentserver/pkg/workflow"
)

func TestPostRouteSplitsOnSentenceBoundaries(t *testing.T) {
	registry := workflow.NewRegistry()
	registry.Register("post_route", NewPostRouteNode)

	graph := &config.WorkflowGraphConfig{
		Nodes: []config.WorkflowNodeConfig{{Name: "post_route", Type: "post_route"}},
	}
	engine, err := workflow.Load(graph, registry, nil)
	if err != nil {
		t.Fatalf("workflow.Load() error: %v", err)
	}
	defer engine.Stop()

	var mu sync.Mutex
	var got []string
	engine.RegisterExternalConnection("post_route", "sentence_stream", func(chunk workflow.Chunk) {
		if text, ok := workflow.TextOf(chunk); ok && !workflow.IsEndSentinel(chunk) {
			mu.Lock()
			got = append(got, text)
			mu.Unlock()
		}
	})

	engine.Start(context.Background())
	for _, delta := range []string{"Hello", " world.", " How are", " you?", " trailing"} {
		engine.FeedInputChunk("post_route", "text_stream", workflow.TextChunk(delta))
	}
	engine.FeedInputChunk("post_route", "text_stream", workflow.EndText)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		n := len(got)
		mu.Unlock()
		if n >= 3 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 3 {
		t.Fatalf("got = %v, want 3 sentences (2 complete + 1 flushed trailing)", got)
	}
	if got[0] != "Hello world." || got[1] != "How are you?" || got[2] != "trailing" {
		t.Errorf("got = %v, want [%q %q %q]", got, "Hello world.", "How are you?", "trailing")
	}
}
