package capability

import (
	"encoding/json"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
)

// ValidateToolCallArguments checks a model-issued tool call's arguments
// against the tool's declared parameter schema, so a malformed call fails
// fast with a readable error instead of panicking deep inside a tool handler.
func ValidateToolCallArguments(def ToolDefinition, call ToolCall) error {
	if len(def.Parameters) == 0 {
		return nil
	}

	raw, err := json.Marshal(def.Parameters)
	if err != nil {
		return fmt.Errorf("capability: marshal schema for tool %q: %w", def.Name, err)
	}

	var schema jsonschema.Schema
	if err := json.Unmarshal(raw, &schema); err != nil {
		return fmt.Errorf("capability: parse schema for tool %q: %w", def.Name, err)
	}

	resolved, err := schema.Resolve(nil)
	if err != nil {
		return fmt.Errorf("capability: resolve schema for tool %q: %w", def.Name, err)
	}

	var args any
	if call.Arguments != "" {
		if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
			return fmt.Errorf("capability: tool %q arguments are not valid JSON: %w", def.Name, err)
		}
	}

	if err := resolved.Validate(args); err != nil {
		return fmt.Errorf("capability: tool %q call rejected by schema: %w", def.Name, err)
	}
	return nil
}
