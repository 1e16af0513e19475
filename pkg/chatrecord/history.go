package chatrecord

import "strings"

// MergeConsecutive concatenates runs of consecutive same-role messages into
// one entry (content joined by newline, timestamp of the last in the run),
// per spec.md §4.2.1 step 4 — the LLM expects strictly alternating roles,
// so historical duplicates from interim emissions must be coalesced.
// Grounded on original_source/chat_record/utils.py merge_consecutive_messages.
func MergeConsecutive(history []Message) []Message {
	if len(history) == 0 {
		return nil
	}

	merged := make([]Message, 0, len(history))
	i := 0
	for i < len(history) {
		current := history[i]
		role := current.Role

		j := i + 1
		for j < len(history) && history[j].Role == role {
			j++
		}

		if j > i+1 {
			var parts []string
			for k := i; k < j; k++ {
				if history[k].Content != "" {
					parts = append(parts, history[k].Content)
				}
			}
			current.Content = strings.Join(parts, "\n")
			current.CreatedAt = history[j-1].CreatedAt
		}

		merged = append(merged, current)
		i = j
	}
	return merged
}

// NoAdjacentSameRole reports whether merged has no two adjacent entries
// sharing a role — the invariant MergeConsecutive is meant to establish
// (spec.md §8 item 1), ignoring system messages which may legitimately
// precede either role.
func NoAdjacentSameRole(history []Message) bool {
	prevRole := ""
	for _, m := range history {
		if m.Role == RoleSystem {
			continue
		}
		if prevRole != "" && prevRole == m.Role {
			return false
		}
		prevRole = m.Role
	}
	return true
}
