package chatrecord

import "strings"

// Tunables holds the per-agent compression/memory configuration named in
// spec.md §6.2, with the defaults spec.md §4.2.4 specifies.
type Tunables struct {
	CompressTokenThreshold  int
	KeepLastRounds          int
	LoadHistoryLimit        int
	MemoryExtractMaxLength  int
	CompressSystemPrompt    string
	CompressUserPrompt      string
	MemoryExtractSystem     string
	MemoryExtractUser       string
}

// DefaultTunables returns spec.md §4.2.4's stated defaults.
func DefaultTunables() Tunables {
	return Tunables{
		CompressTokenThreshold: 8000,
		KeepLastRounds:         1,
		LoadHistoryLimit:       100,
		MemoryExtractMaxLength: 4000,
	}
}

// EstimateTokens is a deterministic, monotonic-in-character-volume token
// estimator over chat_history contents (spec.md §4.2.4: "any deterministic
// estimator is acceptable provided it is monotonic in total character
// volume"). Grounded on the common four-characters-per-token heuristic used
// throughout the teacher's streaming-usage accounting.
func EstimateTokens(history []Message) int {
	total := 0
	for _, m := range history {
		total += len(m.Content)
	}
	return total / 4
}

// KeepStartIndex finds the index of the first user message of the last
// keepLastRounds complete rounds, or -1 if the predicate fails: fewer than
// 2*keepLastRounds messages, the tail is not a completed assistant message,
// or the examined window is not a strict user,assistant,... alternation
// (spec.md §4.2.4 step 1; original_source's find_keep_start_index).
func KeepStartIndex(history []Message, keepLastRounds int) int {
	rounds := keepLastRounds
	if rounds <= 0 {
		rounds = 1
	}
	if len(history) < 2*rounds {
		return -1
	}

	lastIdx := len(history) - 1
	if history[lastIdx].Role != RoleAssistant {
		return -1
	}

	firstUserIdx := lastIdx - (2*rounds - 1)
	if firstUserIdx < 0 {
		return -1
	}

	for i := 0; i < rounds; i++ {
		userIdx := firstUserIdx + i*2
		assistantIdx := userIdx + 1
		if assistantIdx >= len(history) {
			return -1
		}
		if history[userIdx].Role != RoleUser || history[assistantIdx].Role != RoleAssistant {
			return -1
		}
	}

	return firstUserIdx
}

// FilterAlreadyCompressed drops entries already flagged IsCompressed from a
// to_compress slice (spec.md §4.2.4 step 3): they are prior summaries and
// must not be double-summarized.
func FilterAlreadyCompressed(toCompress []Message) []Message {
	out := make([]Message, 0, len(toCompress))
	for _, m := range toCompress {
		if !m.IsCompressed {
			out = append(out, m)
		}
	}
	return out
}

// BuildPromptVars flattens messages into the `messages`/`message_count`
// template variables shared by compression and memory-extraction prompts
// (spec.md §6.2; original_source's _build_prompt_vars).
func BuildPromptVars(messages []Message) map[string]interface{} {
	lines := make([]string, 0, len(messages))
	for _, m := range messages {
		lines = append(lines, m.Role+": "+m.Content)
	}
	return map[string]interface{}{
		"messages":      strings.Join(lines, "\n"),
		"message_count": len(messages),
	}
}
