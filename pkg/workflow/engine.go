package workflow

import (
	"context"
	"fmt"
	"sync"

	"github.com/solace-ai/agentserver/pkg/config"
	"github.com/solace-ai/agentserver/pkg/logger"
)

// NodeFactory constructs a fresh, uninitialized node instance for a given
// node type name, as declared in the workflow YAML's `type` field.
type NodeFactory func(name string) Node

// Registry maps workflow-YAML node `type` strings to constructors. One
// Registry is shared by every session's Engine.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]NodeFactory
}

// NewRegistry creates an empty node-type registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]NodeFactory)}
}

// Register associates a node type name with its constructor. Registering
// the same type name twice replaces the earlier factory.
func (r *Registry) Register(typeName string, factory NodeFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[typeName] = factory
}

func (r *Registry) build(typeName, instanceName string) (Node, error) {
	r.mu.RLock()
	factory, ok := r.factories[typeName]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("workflow: unknown node type %q", typeName)
	}
	return factory(instanceName), nil
}

type externalConn struct {
	fn func(Chunk)
}

// Engine is one running instance of a workflow graph, scoped to a single
// session (spec.md §4.1/§4.3): it owns the node instances, the internal
// edges between them, and the external connections the session manager and
// WebSocket bridge attach to feed input and observe output.
type Engine struct {
	mu sync.RWMutex

	nodes map[string]Node
	specs map[string]NodeSpec
	edges []config.WorkflowEdgeConfig

	chans    map[string]chan Chunk // "node.param" -> internal edge channel
	external map[string][]externalConn

	globalVars *GlobalVars

	cancel context.CancelFunc
	wg     sync.WaitGroup
	errs   chan error
}

// Load builds an Engine from a parsed workflow graph config, instantiating
// every node via registry and wiring internal edges, but does not start any
// node's Run loop yet.
func Load(graph *config.WorkflowGraphConfig, registry *Registry, globalVars map[string]interface{}) (*Engine, error) {
	e := &Engine{
		nodes:      make(map[string]Node, len(graph.Nodes)),
		specs:      make(map[string]NodeSpec, len(graph.Nodes)),
		edges:      graph.Edges,
		chans:      make(map[string]chan Chunk),
		external:   make(map[string][]externalConn),
		globalVars: newGlobalVars(globalVars),
		errs:       make(chan error, 1),
	}

	for _, nc := range graph.Nodes {
		node, err := registry.build(nc.Type, nc.Name)
		if err != nil {
			return nil, err
		}
		if err := node.Init(nc.Config); err != nil {
			return nil, fmt.Errorf("workflow: init node %q (%s): %w", nc.Name, nc.Type, err)
		}
		e.nodes[nc.Name] = node
		e.specs[nc.Name] = node.Spec()
	}

	for _, edge := range graph.Edges {
		if _, ok := e.nodes[edge.FromNode]; !ok {
			return nil, fmt.Errorf("workflow: edge references unknown node %q", edge.FromNode)
		}
		if _, ok := e.nodes[edge.ToNode]; !ok {
			return nil, fmt.Errorf("workflow: edge references unknown node %q", edge.ToNode)
		}
		key := inputKey(edge.ToNode, edge.ToParam)
		if _, ok := e.chans[key]; !ok {
			e.chans[key] = make(chan Chunk, 16)
		}
	}

	return e, nil
}

func inputKey(node, param string) string { return node + "." + param }

// inputChan returns (creating if necessary) the channel a node reads its
// named input param from.
func (e *Engine) inputChan(node, param string) chan Chunk {
	key := inputKey(node, param)

	e.mu.Lock()
	defer e.mu.Unlock()
	ch, ok := e.chans[key]
	if !ok {
		ch = make(chan Chunk, 16)
		e.chans[key] = ch
	}
	return ch
}

// dispatch fans one output chunk out to every internal edge and external
// connection registered against (node, param). A blocked downstream input
// channel would stall the whole graph, so dispatch never blocks on a full
// channel for longer than the edge's buffer allows before dropping with a
// logged warning — matching the teacher's "never let one slow consumer wedge
// the whole pipeline" stance in its own fan-out code.
func (e *Engine) dispatch(fromNode, fromParam string, chunk Chunk) {
	e.mu.RLock()
	edges := e.edges
	conns := append([]externalConn(nil), e.external[inputKey(fromNode, fromParam)]...)
	e.mu.RUnlock()

	for _, edge := range edges {
		if edge.FromNode != fromNode || edge.FromParam != fromParam {
			continue
		}
		ch := e.inputChan(edge.ToNode, edge.ToParam)
		select {
		case ch <- chunk:
		default:
			logger.WarnCF("workflow", "downstream input channel full, dropping chunk", map[string]interface{}{
				"from_node": fromNode, "from_param": fromParam, "to_node": edge.ToNode, "to_param": edge.ToParam,
			})
		}
	}

	for _, c := range conns {
		c.fn(chunk)
	}
}

// RegisterExternalConnection attaches a callback that receives every chunk
// emitted on (node, param), used by the session manager and WebSocket
// bridge to observe node output (e.g. tts audio/status, post_route text)
// without being a graph node themselves (spec.md §4.1 "external
// connections").
func (e *Engine) RegisterExternalConnection(node, param string, fn func(Chunk)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	key := inputKey(node, param)
	e.external[key] = append(e.external[key], externalConn{fn: fn})
}

// FeedInputChunk injects a chunk on a node's named input param from outside
// the graph, used for e.g. the vad node's raw audio frames and the
// interrupt_controller node's recognized text (spec.md §4.1 "external inputs").
func (e *Engine) FeedInputChunk(node, param string, chunk Chunk) {
	ch := e.inputChan(node, param)
	select {
	case ch <- chunk:
	default:
		logger.WarnCF("workflow", "external input channel full, dropping chunk", map[string]interface{}{
			"node": node, "param": param,
		})
	}
}

// GlobalVars returns the engine's shared global_vars bag.
func (e *Engine) GlobalVars() *GlobalVars { return e.globalVars }

// Node returns a node instance by name, for callers that need a direct
// handle on a node (e.g. the session manager reaching the chat_record
// node's Record, or RunContext.Node for a RequestNode's Invoke).
func (e *Engine) Node(name string) (Node, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	n, ok := e.nodes[name]
	return n, ok
}

// Start spawns every streaming node's Run loop and returns immediately.
// Each node runs until ctx is cancelled or Stop is called; an uncaught Run
// error is logged and contained to that node rather than taking down the
// whole engine (spec.md §4.1 "uncaught node failure containment").
func (e *Engine) Start(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel

	for name, node := range e.nodes {
		streaming, ok := node.(StreamingNode)
		if !ok {
			continue
		}
		name, streaming := name, streaming
		e.wg.Add(1)
		go func() {
			defer e.wg.Done()
			rc := &RunContext{ctx: runCtx, engine: e, node: name, globalVars: e.globalVars}
			if err := streaming.Run(rc); err != nil && runCtx.Err() == nil {
				logger.ErrorCF("workflow", "node run failed", map[string]interface{}{
					"node": name, "error": err.Error(),
				})
			}
		}()
	}
}

// Invoke runs a RequestNode's one-shot transform synchronously.
func (e *Engine) Invoke(ctx context.Context, node string, input map[string]interface{}) (map[string]interface{}, error) {
	e.mu.RLock()
	n, ok := e.nodes[node]
	e.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("workflow: unknown node %q", node)
	}
	req, ok := n.(RequestNode)
	if !ok {
		return nil, fmt.Errorf("workflow: node %q is not a request-mode node", node)
	}
	rc := &RunContext{ctx: ctx, engine: e, node: node, globalVars: e.globalVars}
	return req.Invoke(rc, input)
}

// Stop cancels every running node and waits for them to return.
func (e *Engine) Stop() {
	if e.cancel != nil {
		e.cancel()
	}
	e.wg.Wait()
}
