package session

import (
	"testing"

	"github.com/solace-ai/agentserver/pkg/chatrecord"
)

func TestPairTurnsMatchesUserWithNextAssistantReply(t *testing.T) {
	history := []chatrecord.Message{
		{Role: chatrecord.RoleUser, Content: "hi"},
		{Role: chatrecord.RoleAssistant, Content: "hello"},
		{Role: chatrecord.RoleUser, Content: "how are you"},
		{Role: chatrecord.RoleAssistant, Content: "doing well"},
	}

	turns := pairTurns(history)

	if len(turns) != 2 {
		t.Fatalf("pairTurns returned %d turns, want 2", len(turns))
	}
	if turns[0].user != "hi" || turns[0].assistant != "hello" {
		t.Fatalf("turns[0] = %+v, want {hi hello}", turns[0])
	}
	if turns[1].user != "how are you" || turns[1].assistant != "doing well" {
		t.Fatalf("turns[1] = %+v, want {how are you, doing well}", turns[1])
	}
}

func TestPairTurnsDropsUnansweredUserMessage(t *testing.T) {
	history := []chatrecord.Message{
		{Role: chatrecord.RoleUser, Content: "hi"},
		{Role: chatrecord.RoleUser, Content: "still waiting"},
		{Role: chatrecord.RoleAssistant, Content: "sorry, here"},
	}

	turns := pairTurns(history)

	if len(turns) != 1 {
		t.Fatalf("pairTurns returned %d turns, want 1 (the dangling first user message should be dropped)", len(turns))
	}
	if turns[0].user != "still waiting" {
		t.Fatalf("turns[0].user = %q, want the second (answered) user message", turns[0].user)
	}
}

func TestPairTurnsSkipsSystemMessages(t *testing.T) {
	history := []chatrecord.Message{
		{Role: chatrecord.RoleSystem, Content: "## Historical summary\n..."},
		{Role: chatrecord.RoleUser, Content: "hi"},
		{Role: chatrecord.RoleAssistant, Content: "hello"},
	}

	turns := pairTurns(history)

	if len(turns) != 1 {
		t.Fatalf("pairTurns returned %d turns, want 1", len(turns))
	}
}

func TestDispatchTTSStatusSuppressesSentenceEnd(t *testing.T) {
	var got []string
	send := func(state, text string) { got = append(got, state) }

	for _, state := range []string{"start", "sentence_start", "sentence_end", "stop"} {
		dispatchTTSStatus(map[string]interface{}{"state": state, "text": "x"}, send)
	}

	want := []string{"start", "sentence_start", "stop"}
	if len(got) != len(want) {
		t.Fatalf("dispatched states = %v, want %v (sentence_end must never reach the wire)", got, want)
	}
	for i, s := range want {
		if got[i] != s {
			t.Fatalf("dispatched states = %v, want %v", got, want)
		}
	}
}
