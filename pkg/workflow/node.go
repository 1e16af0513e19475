// Package workflow implements the dataflow graph engine named in spec.md
// §4.1 (C2): a graph of typed nodes connected by typed streams, with
// external connections/inputs and a process-wide-per-engine global_vars map.
package workflow

import "github.com/google/jsonschema-go/jsonschema"

// ExecutionMode is a node's lifecycle shape.
type ExecutionMode int

const (
	// StreamingMode nodes are long-lived: Run is spawned once per engine
	// Start and consumes/produces chunks for the engine's lifetime.
	StreamingMode ExecutionMode = iota
	// RequestMode nodes transform one input into one output per Invoke call.
	RequestMode
)

// ParamSpec describes one named input, output, or config parameter.
type ParamSpec struct {
	Name      string
	Streaming bool
	Schema    *jsonschema.Schema
}

// NodeSpec is the static declaration a node type publishes: its named
// input/output/config parameters and its execution mode (spec.md §4.1).
type NodeSpec struct {
	Inputs  []ParamSpec
	Outputs []ParamSpec
	Config  []ParamSpec
	Mode    ExecutionMode
}

// Node is one vertex of the workflow graph.
type Node interface {
	// Name returns this node instance's unique name within its graph.
	Name() string
	// Spec returns the node type's static parameter/mode declaration.
	Spec() NodeSpec
	// Init applies this node instance's config parameters, as loaded from
	// the workflow YAML (spec.md §4.3 "Load the workflow config YAML").
	Init(cfg map[string]interface{}) error
}

// StreamingNode is implemented by nodes whose Run is a long-lived task
// spawned once per engine Start and torn down on Stop/cancellation.
type StreamingNode interface {
	Node
	Run(ctx *RunContext) error
}

// RequestNode is implemented by nodes with one-input-to-one-output,
// synchronous-from-the-caller's-perspective semantics.
type RequestNode interface {
	Node
	Invoke(ctx *RunContext, input map[string]interface{}) (map[string]interface{}, error)
}
