package chatrecord

import "testing"

func rounds(n int) []Message {
	var out []Message
	for i := 0; i < n; i++ {
		out = append(out, Message{Role: RoleUser, Content: "q"}, Message{Role: RoleAssistant, Content: "a"})
	}
	return out
}

func TestKeepStartIndexFindsFirstUserOfLastRounds(t *testing.T) {
	history := rounds(3) // 6 entries, indices 0..5
	idx := KeepStartIndex(history, 1)
	if idx != 4 {
		t.Fatalf("KeepStartIndex(3 rounds, keep 1) = %d, want 4", idx)
	}

	idx = KeepStartIndex(history, 2)
	if idx != 2 {
		t.Fatalf("KeepStartIndex(3 rounds, keep 2) = %d, want 2", idx)
	}
}

func TestKeepStartIndexAbortsOnIncompleteTail(t *testing.T) {
	history := []Message{
		{Role: RoleUser, Content: "q"},
		{Role: RoleAssistant, Content: "a"},
		{Role: RoleUser, Content: "dangling"},
	}
	if idx := KeepStartIndex(history, 1); idx != -1 {
		t.Errorf("KeepStartIndex with non-assistant tail = %d, want -1", idx)
	}
}

func TestKeepStartIndexAbortsOnTooFewMessages(t *testing.T) {
	history := rounds(1)
	if idx := KeepStartIndex(history, 2); idx != -1 {
		t.Errorf("KeepStartIndex with insufficient history = %d, want -1", idx)
	}
}

func TestKeepStartIndexAbortsOnBrokenAlternation(t *testing.T) {
	history := []Message{
		{Role: RoleUser, Content: "q"},
		{Role: RoleAssistant, Content: "a1"},
		{Role: RoleAssistant, Content: "a2"},
	}
	if idx := KeepStartIndex(history, 1); idx != -1 {
		t.Errorf("KeepStartIndex with broken alternation = %d, want -1", idx)
	}
}

func TestFilterAlreadyCompressedDropsSummaryEntries(t *testing.T) {
	toCompress := []Message{
		{Role: RoleAssistant, Content: "old summary", IsCompressed: true},
		{Role: RoleUser, Content: "q"},
		{Role: RoleAssistant, Content: "a"},
	}
	filtered := FilterAlreadyCompressed(toCompress)
	if len(filtered) != 2 {
		t.Fatalf("len(filtered) = %d, want 2", len(filtered))
	}
	for _, m := range filtered {
		if m.IsCompressed {
			t.Error("filtered should not contain already-compressed entries")
		}
	}
}

func TestEstimateTokensMonotonicInCharacterVolume(t *testing.T) {
	short := []Message{{Content: "hi"}}
	long := []Message{{Content: "hi there, this is a much longer message body"}}
	if EstimateTokens(long) <= EstimateTokens(short) {
		t.Error("EstimateTokens should increase with total character volume")
	}
}
