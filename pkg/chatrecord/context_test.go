package chatrecord

import (
	"strings"
	"testing"
)

func TestProjectContextDropsTrailingUserAndAppendsCurrentTurn(t *testing.T) {
	context := []CtxEntry{
		{Role: RoleUser, Content: "old question"},
		{Role: RoleAssistant, Content: "old answer"},
		{Role: RoleUser, Content: "stale trailing turn"},
	}

	out := ProjectContext(context, "be helpful", "new question")

	if out[0].Role != RoleSystem {
		t.Fatalf("out[0].Role = %q, want %q", out[0].Role, RoleSystem)
	}
	if out[len(out)-1].Role != RoleUser || out[len(out)-1].Content != "new question" {
		t.Errorf("last entry = %+v, want current user turn", out[len(out)-1])
	}
	for _, e := range out[1 : len(out)-1] {
		if e.Content == "stale trailing turn" {
			t.Error("stale trailing user entry from context should have been dropped")
		}
	}
}

func TestProjectContextEmitsHistoricalSummaryHeading(t *testing.T) {
	context := []CtxEntry{
		{Role: RoleAssistant, Content: "earlier summary", IsCompressed: true},
		{Role: RoleUser, Content: "recent question"},
		{Role: RoleAssistant, Content: "recent answer"},
	}

	out := ProjectContext(context, "system prompt", "")

	if !strings.Contains(out[0].Content, HistoricalSummaryHeading) {
		t.Errorf("system message = %q, want it to contain %q", out[0].Content, HistoricalSummaryHeading)
	}
	if !strings.Contains(out[0].Content, "earlier summary") {
		t.Errorf("system message = %q, want it to contain the compressed summary text", out[0].Content)
	}
}

func TestProjectContextOmitsSummarySectionWhenNoCompressedParts(t *testing.T) {
	context := []CtxEntry{{Role: RoleUser, Content: "hi"}, {Role: RoleAssistant, Content: "hello"}}
	out := ProjectContext(context, "system prompt", "")
	if strings.Contains(out[0].Content, HistoricalSummaryHeading) {
		t.Error("system message should not contain the summary heading when there are no compressed parts")
	}
}
