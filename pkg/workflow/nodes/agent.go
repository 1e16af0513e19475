package nodes

import (
	"context"
	"fmt"
	"strings"

	"github.com/solace-ai/agentserver/pkg/capability"
	"github.com/solace-ai/agentserver/pkg/chatrecord"
	"github.com/solace-ai/agentserver/pkg/logger"
	"github.com/solace-ai/agentserver/pkg/metrics"
	"github.com/solace-ai/agentserver/pkg/workflow"
)

// SemanticRecall is the additive "related memory" lookup the agent node
// consults before each LLM call (SPEC_FULL.md §4.2 supplement): purely
// additive to the spec's own chat.long_term_memory mechanism, never a
// substitute for it. A consumer-defined interface rather than a concrete
// pkg/memory type, so the agent node stays testable without a real vector
// store and so recall is on only when the session manager injects a store
// under GlobalKeySemanticStore (process-wide, when the vector store opens),
// not through a hard import.
type SemanticRecall interface {
	Search(ctx context.Context, query string, limit int) ([]string, error)
}

// AgentNode is the LLM-driving node (spec.md §4.1): calls the capability
// interface (C1), emits assistant-text chunks terminated by the end
// sentinel, and drives the chat-record subsystem for context injection.
type AgentNode struct {
	name string

	systemPromptTemplate string
	userPromptTemplate   string
	model                string
	relatedMemoryLimit   int
}

// NewAgentNode is a workflow.NodeFactory for the "agent" type.
func NewAgentNode(name string) workflow.Node {
	return &AgentNode{name: name}
}

func (n *AgentNode) Name() string { return n.name }

func (n *AgentNode) Spec() workflow.NodeSpec {
	return workflow.NodeSpec{
		Inputs: []workflow.ParamSpec{
			{Name: "user_text", Streaming: true},
		},
		Outputs: []workflow.ParamSpec{
			{Name: "response_text_stream", Streaming: true},
		},
		Config: []workflow.ParamSpec{
			{Name: "system_prompt"},
			{Name: "user_prompt"},
			{Name: "model"},
			{Name: "related_memory_limit"},
		},
		Mode: workflow.StreamingMode,
	}
}

func (n *AgentNode) Init(cfg map[string]interface{}) error {
	n.systemPromptTemplate = stringConfig(cfg, "system_prompt", "{{.user.config.profile.character.system_prompt}}")
	n.userPromptTemplate = stringConfig(cfg, "user_prompt", "{{.text}}")
	n.model = stringConfig(cfg, "model", "")
	n.relatedMemoryLimit = intConfig(cfg, "related_memory_limit", 5)
	return nil
}

func (n *AgentNode) Run(ctx *workflow.RunContext) error {
	gv := ctx.GlobalVars()
	bundle, ok := gv.Get(GlobalKeyCapabilities).(*capability.Bundle)
	if !ok || bundle.LLM == nil {
		return fmt.Errorf("agent: global var %q does not carry an LLM capability", GlobalKeyCapabilities)
	}

	chatRecordNode, ok := ctx.Node("chat_record")
	if !ok {
		return fmt.Errorf("agent: no sibling node named %q", "chat_record")
	}
	crn, ok := chatRecordNode.(*ChatRecordNode)
	if !ok {
		return fmt.Errorf("agent: sibling %q is not a *ChatRecordNode", "chat_record")
	}

	var recall SemanticRecall
	if s, ok := gv.Get(GlobalKeySemanticStore).(SemanticRecall); ok {
		recall = s
	}

	tracker, _ := gv.Get(GlobalKeyMetricsTracker).(*metrics.Tracker)
	sessionKey, _ := gv.Get(GlobalKeySessionID).(string)

	if override, _ := gv.Get(GlobalKeySystemPrompt).(string); override != "" {
		n.systemPromptTemplate = override
	}

	in := ctx.In("user_text")
	done := ctx.Context().Done()

	for {
		select {
		case <-done:
			return nil
		case chunk := <-in:
			n.handleTurn(ctx, crn.Record(), bundle.LLM, recall, tracker, sessionKey, chunk)
		}
	}
}

func (n *AgentNode) handleTurn(ctx *workflow.RunContext, record *chatrecord.Record, llm capability.LLM, recall SemanticRecall, tracker *metrics.Tracker, sessionKey string, chunk workflow.Chunk) {
	m, ok := chunk.(map[string]interface{})
	if !ok {
		return
	}
	text, _ := m["text"].(string)
	if strings.TrimSpace(text) == "" {
		return
	}

	vars := map[string]interface{}{"text": text, "specialist": m["specialist"]}
	if user := ctx.GlobalVars().Get(GlobalKeyUserProfile); user != nil {
		vars["user"] = user
	}

	systemPrompt := n.systemPromptTemplate
	if recall != nil {
		if related, err := recall.Search(ctx.Context(), text, n.relatedMemoryLimit); err == nil && len(related) > 0 {
			systemPrompt += "\n\n## Related memory\n" + strings.Join(related, "\n")
		} else if err != nil {
			logger.WarnCF("agent", "semantic recall failed, continuing without it", map[string]interface{}{"error": err.Error()})
		}
	}

	projected, err := record.ProjectedContext(systemPrompt, n.userPromptTemplate, vars)
	if err != nil {
		logger.ErrorCF("agent", "context projection failed", map[string]interface{}{"error": err.Error()})
		ctx.Out("response_text_stream", workflow.EndText)
		return
	}

	messages := make([]capability.Message, 0, len(projected))
	for _, entry := range projected {
		messages = append(messages, capability.Message{Role: entry.Role, Content: entry.Content})
	}

	model := n.model
	if model == "" {
		model = llm.GetDefaultModel()
	}

	if streaming, ok := llm.(capability.StreamingLLM); ok {
		resp, err := streaming.ChatStream(ctx.Context(), messages, nil, model, nil, func(delta string) {
			ctx.Out("response_text_stream", workflow.TextChunk(delta))
		})
		if err != nil {
			logger.WarnCF("agent", "streaming chat call failed", map[string]interface{}{"error": err.Error()})
		} else {
			recordUsage(tracker, sessionKey, model, m, resp)
		}
		ctx.Out("response_text_stream", workflow.EndText)
		return
	}

	resp, err := llm.Chat(ctx.Context(), messages, nil, model, nil)
	if err != nil {
		logger.WarnCF("agent", "chat call failed", map[string]interface{}{"error": err.Error()})
		ctx.Out("response_text_stream", workflow.EndText)
		return
	}
	recordUsage(tracker, sessionKey, model, m, resp)
	if resp.Content != "" {
		ctx.Out("response_text_stream", workflow.TextChunk(resp.Content))
	}
	ctx.Out("response_text_stream", workflow.EndText)
}

// recordUsage appends a usage-accounting event for one completed LLM call.
// tracker.Record is a no-op on a nil receiver, so usage tracking being
// disabled needs no guard here beyond the nil *capability.LLMResponse check.
func recordUsage(tracker *metrics.Tracker, sessionKey, model string, turn map[string]interface{}, resp *capability.LLMResponse) {
	if resp == nil {
		return
	}
	specialist, _ := turn["specialist"].(string)
	tracker.Record(metrics.UsageEvent{
		SessionKey:   sessionKey,
		Model:        model,
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
		Specialist:   specialist,
	})
}
