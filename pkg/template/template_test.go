package template

import "testing"

func TestRenderSubstitutesVariables(t *testing.T) {
	out, err := Render("Hello {{.name}}, you have {{.count}} messages.", map[string]interface{}{
		"name":  "Ada",
		"count": 3,
	})
	if err != nil {
		t.Fatalf("Render() error: %v", err)
	}
	want := "Hello Ada, you have 3 messages."
	if out != want {
		t.Errorf("Render() = %q, want %q", out, want)
	}
}

func TestRenderIsDeterministic(t *testing.T) {
	vars := map[string]interface{}{"existing_memory": "{}"}
	a, _ := Render("memory: {{.existing_memory}}", vars)
	b, _ := Render("memory: {{.existing_memory}}", vars)
	if a != b {
		t.Errorf("Render() not deterministic: %q vs %q", a, b)
	}
}

func TestRenderMissingKeyYieldsEmpty(t *testing.T) {
	out, err := Render("value=[{{.missing}}]", map[string]interface{}{})
	if err != nil {
		t.Fatalf("Render() error: %v", err)
	}
	if out != "value=[]" {
		t.Errorf("Render() = %q, want value=[]", out)
	}
}
