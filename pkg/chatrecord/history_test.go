package chatrecord

import "testing"

func TestMergeConsecutiveCoalescesRuns(t *testing.T) {
	history := []Message{
		{Role: RoleUser, Content: "hi"},
		{Role: RoleUser, Content: "there"},
		{Role: RoleAssistant, Content: "hello"},
	}

	merged := MergeConsecutive(history)
	if len(merged) != 2 {
		t.Fatalf("len(merged) = %d, want 2", len(merged))
	}
	if merged[0].Content != "hi\nthere" {
		t.Errorf("merged[0].Content = %q, want %q", merged[0].Content, "hi\nthere")
	}
	if !NoAdjacentSameRole(merged) {
		t.Error("NoAdjacentSameRole(merged) = false, want true")
	}
}

func TestMergeConsecutiveNoOpOnAlternating(t *testing.T) {
	history := []Message{
		{Role: RoleUser, Content: "a"},
		{Role: RoleAssistant, Content: "b"},
		{Role: RoleUser, Content: "c"},
	}

	merged := MergeConsecutive(history)
	if len(merged) != 3 {
		t.Fatalf("len(merged) = %d, want 3", len(merged))
	}
}

func TestNoAdjacentSameRoleDetectsViolation(t *testing.T) {
	history := []Message{
		{Role: RoleUser, Content: "a"},
		{Role: RoleUser, Content: "b"},
	}
	if NoAdjacentSameRole(history) {
		t.Error("NoAdjacentSameRole should be false for unmerged consecutive roles")
	}
}
