package nodes

import "github.com/solace-ai/agentserver/pkg/workflow"

// RegisterAll registers every concrete node type this package implements
// against registry, mirroring original_source's `from .nodes import *`
// side-effect registration (there, each node type self-registers via a
// `@register_node` decorator at import time; Go has no import-time
// decorator equivalent, so each entry point (cmd/agentserver,
// cmd/replclient) calls this explicitly once at process startup).
func RegisterAll(registry *workflow.Registry) {
	registry.Register("vad", NewVADNode)
	registry.Register("interrupt_controller", NewInterruptControllerNode)
	registry.Register("route", NewRouteNode)
	registry.Register("agent", NewAgentNode)
	registry.Register("post_route", NewPostRouteNode)
	registry.Register("tts", NewTTSNode)
	registry.Register("chat_record", NewChatRecordNode)
}
