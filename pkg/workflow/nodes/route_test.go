package nodes

import "testing"

func TestRouteNodeMatchesKeywordOverDefault(t *testing.T) {
	n := &RouteNode{}
	if err := n.Init(map[string]interface{}{
		"default_specialist": "general",
		"specialists": []interface{}{
			map[string]interface{}{
				"name":     "billing",
				"keywords": []interface{}{"invoice", "refund"},
			},
		},
	}); err != nil {
		t.Fatalf("Init() error: %v", err)
	}

	out, err := n.Invoke(nil, map[string]interface{}{"text": "I need a refund please"})
	if err != nil {
		t.Fatalf("Invoke() error: %v", err)
	}
	if out["specialist"] != "billing" {
		t.Errorf("specialist = %v, want %q", out["specialist"], "billing")
	}
	if out["text"] != "I need a refund please" {
		t.Errorf("Invoke should preserve the original text field, got %v", out["text"])
	}
}

func TestRouteNodeFallsBackToDefault(t *testing.T) {
	n := &RouteNode{}
	if err := n.Init(map[string]interface{}{"default_specialist": "general"}); err != nil {
		t.Fatalf("Init() error: %v", err)
	}

	out, err := n.Invoke(nil, map[string]interface{}{"text": "hello there"})
	if err != nil {
		t.Fatalf("Invoke() error: %v", err)
	}
	if out["specialist"] != "general" {
		t.Errorf("specialist = %v, want %q", out["specialist"], "general")
	}
}
