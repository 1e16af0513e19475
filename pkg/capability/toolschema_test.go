package capability

import "testing"

func TestValidateToolCallArgumentsAcceptsMatchingShape(t *testing.T) {
	def := ToolDefinition{
		Name: "get_weather",
		Parameters: map[string]interface{}{
			"type":     "object",
			"required": []interface{}{"city"},
			"properties": map[string]interface{}{
				"city": map[string]interface{}{"type": "string"},
			},
		},
	}
	call := ToolCall{Name: "get_weather", Arguments: `{"city":"Kyiv"}`}

	if err := ValidateToolCallArguments(def, call); err != nil {
		t.Fatalf("ValidateToolCallArguments() error = %v, want nil", err)
	}
}

func TestValidateToolCallArgumentsRejectsMissingRequired(t *testing.T) {
	def := ToolDefinition{
		Name: "get_weather",
		Parameters: map[string]interface{}{
			"type":     "object",
			"required": []interface{}{"city"},
			"properties": map[string]interface{}{
				"city": map[string]interface{}{"type": "string"},
			},
		},
	}
	call := ToolCall{Name: "get_weather", Arguments: `{}`}

	if err := ValidateToolCallArguments(def, call); err == nil {
		t.Fatal("expected ValidateToolCallArguments() to reject a call missing the required field")
	}
}

func TestValidateToolCallArgumentsSkipsEmptySchema(t *testing.T) {
	def := ToolDefinition{Name: "ping"}
	call := ToolCall{Name: "ping", Arguments: ""}

	if err := ValidateToolCallArguments(def, call); err != nil {
		t.Fatalf("ValidateToolCallArguments() error = %v, want nil for tool with no declared schema", err)
	}
}
