package jsontree

import "testing"

func TestLookupDottedPath(t *testing.T) {
	tree := New(map[string]interface{}{
		"chat": map[string]interface{}{
			"long_term_memory": map[string]interface{}{
				"preferences": []interface{}{"likes tea"},
			},
		},
	})

	got := tree.Lookup("chat.long_term_memory.preferences")
	list, ok := got.([]interface{})
	if !ok || len(list) != 1 || list[0] != "likes tea" {
		t.Fatalf("Lookup returned %#v", got)
	}

	if tree.Lookup("chat.missing.path") != nil {
		t.Fatal("expected nil for missing path")
	}
}

func TestSetCreatesIntermediateMaps(t *testing.T) {
	tree := New(map[string]interface{}{})
	tree.Set("chat.long_term_memory", map[string]interface{}{"a": "b"})

	got := tree.Lookup("chat.long_term_memory.a")
	if got != "b" {
		t.Fatalf("got %#v, want %q", got, "b")
	}
}

func TestDeepMergeRecursesMapsOnly(t *testing.T) {
	base := map[string]interface{}{
		"voice":   "default",
		"tags":    []interface{}{"a", "b"},
		"nested":  map[string]interface{}{"x": 1, "y": 2},
	}
	overlay := map[string]interface{}{
		"voice":  "custom",
		"tags":   []interface{}{"c"},
		"nested": map[string]interface{}{"y": 99},
	}

	merged := DeepMerge(base, overlay).(map[string]interface{})

	if merged["voice"] != "custom" {
		t.Errorf("voice = %v, want custom (overlay wins)", merged["voice"])
	}

	tags := merged["tags"].([]interface{})
	if len(tags) != 1 || tags[0] != "c" {
		t.Errorf("tags = %v, want wholesale replacement [c]", tags)
	}

	nested := merged["nested"].(map[string]interface{})
	if nested["x"] != 1 || nested["y"] != 99 {
		t.Errorf("nested = %v, want recursive merge {x:1,y:99}", nested)
	}
}
