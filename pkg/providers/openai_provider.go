package providers

import (
	"context"
	"fmt"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"

	"github.com/solace-ai/agentserver/pkg/capability"
)

// OpenAIProvider implements capability.StreamingLLM against the OpenAI
// chat-completions API. Grounded on the same provider-wrapping shape as
// ClaudeProvider (this module's own idiom), using the teacher's direct
// openai-go/v3 dependency, which the retrieved source never itself wired up.
type OpenAIProvider struct {
	client *openai.Client
	model  string
}

// NewOpenAIProvider creates a provider authenticated with an API key.
func NewOpenAIProvider(apiKey, defaultModel string) *OpenAIProvider {
	client := openai.NewClient(option.WithAPIKey(apiKey))
	if defaultModel == "" {
		defaultModel = "gpt-4o-mini"
	}
	return &OpenAIProvider{client: &client, model: defaultModel}
}

// Chat implements capability.LLM.
func (p *OpenAIProvider) Chat(ctx context.Context, messages []capability.Message, tools []capability.ToolDefinition, model string, options map[string]interface{}) (*capability.LLMResponse, error) {
	params := buildOpenAIParams(messages, tools, model, options)

	resp, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai API call: %w", err)
	}
	return parseOpenAIResponse(resp), nil
}

// ChatStream implements capability.StreamingLLM.
func (p *OpenAIProvider) ChatStream(ctx context.Context, messages []capability.Message, tools []capability.ToolDefinition, model string, options map[string]interface{}, onContent capability.StreamCallback) (*capability.LLMResponse, error) {
	params := buildOpenAIParams(messages, tools, model, options)

	stream := p.client.Chat.Completions.NewStreaming(ctx, params)
	var content string
	finishReason := "stop"

	for stream.Next() {
		chunk := stream.Current()
		if len(chunk.Choices) == 0 {
			continue
		}
		delta := chunk.Choices[0].Delta.Content
		if delta != "" {
			content += delta
			onContent(delta)
		}
		if fr := chunk.Choices[0].FinishReason; fr != "" {
			finishReason = string(fr)
		}
	}
	if err := stream.Err(); err != nil {
		return nil, fmt.Errorf("openai stream: %w", err)
	}

	return &capability.LLMResponse{Content: content, FinishReason: finishReason}, nil
}

// GetDefaultModel implements capability.LLM.
func (p *OpenAIProvider) GetDefaultModel() string { return p.model }

func buildOpenAIParams(messages []capability.Message, tools []capability.ToolDefinition, model string, options map[string]interface{}) openai.ChatCompletionNewParams {
	var oaiMessages []openai.ChatCompletionMessageParamUnion
	for _, msg := range messages {
		switch msg.Role {
		case "system":
			oaiMessages = append(oaiMessages, openai.SystemMessage(msg.Content))
		case "user":
			oaiMessages = append(oaiMessages, openai.UserMessage(msg.Content))
		case "assistant":
			oaiMessages = append(oaiMessages, openai.AssistantMessage(msg.Content))
		case "tool":
			oaiMessages = append(oaiMessages, openai.ToolMessage(msg.Content, msg.ToolCallID))
		}
	}

	params := openai.ChatCompletionNewParams{
		Model:    shared.ChatModel(model),
		Messages: oaiMessages,
	}

	if mt, ok := options["max_tokens"].(int); ok {
		params.MaxTokens = openai.Int(int64(mt))
	}
	if temp, ok := options["temperature"].(float64); ok {
		params.Temperature = openai.Float(temp)
	}

	if len(tools) > 0 {
		params.Tools = translateToolsForOpenAI(tools)
	}

	return params
}

func translateToolsForOpenAI(tools []capability.ToolDefinition) []openai.ChatCompletionToolUnionParam {
	result := make([]openai.ChatCompletionToolUnionParam, 0, len(tools))
	for _, t := range tools {
		result = append(result, openai.ChatCompletionFunctionTool(shared.FunctionDefinitionParam{
			Name:        t.Name,
			Description: openai.String(t.Description),
			Parameters:  t.Parameters,
		}))
	}
	return result
}

func parseOpenAIResponse(resp *openai.ChatCompletion) *capability.LLMResponse {
	if len(resp.Choices) == 0 {
		return &capability.LLMResponse{}
	}

	choice := resp.Choices[0]
	var toolCalls []capability.ToolCall
	for _, tc := range choice.Message.ToolCalls {
		toolCalls = append(toolCalls, capability.ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}

	return &capability.LLMResponse{
		Content:      choice.Message.Content,
		ToolCalls:    toolCalls,
		FinishReason: string(choice.FinishReason),
		Usage: capability.UsageInfo{
			PromptTokens:     int(resp.Usage.PromptTokens),
			CompletionTokens: int(resp.Usage.CompletionTokens),
			TotalTokens:      int(resp.Usage.TotalTokens),
		},
	}
}
