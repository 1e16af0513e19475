package chatrecord

import "strings"

// HistoricalSummaryHeading is the exact heading context projection inserts
// between the rendered system prompt and the joined compressed-summary
// parts (spec.md §4.2.3; English per spec.md, translated from
// original_source's Chinese "## 历史对话摘要").
const HistoricalSummaryHeading = "## Historical summary"

// ProjectContext builds the OpenAI-shaped message list the agent node calls
// the LLM capability with (spec.md §4.2.3):
//  1. drop a trailing user entry (re-appended explicitly as the current turn),
//  2. partition into compressed_parts and normal_messages,
//  3. emit the system message (prompt + historical-summary section) first,
//  4. emit normal messages in order,
//  5. append the current user turn last.
//
// Grounded on original_source/chat_record/context.py get_chat_messages.
func ProjectContext(context []CtxEntry, systemPrompt, userPrompt string) []CtxEntry {
	trimmed := context
	if n := len(trimmed); n > 0 && trimmed[n-1].Role == RoleUser {
		trimmed = trimmed[:n-1]
	}

	var compressedParts []string
	var normal []CtxEntry
	for _, entry := range trimmed {
		if entry.IsCompressed {
			if c := strings.TrimSpace(entry.Content); c != "" {
				compressedParts = append(compressedParts, c)
			}
			continue
		}
		normal = append(normal, entry)
	}

	var out []CtxEntry

	if sp := strings.TrimSpace(systemPrompt); sp != "" {
		final := sp
		if len(compressedParts) > 0 {
			final = final + "\n\n" + HistoricalSummaryHeading + "\n" + strings.Join(compressedParts, "\n\n")
		}
		out = append(out, CtxEntry{Role: RoleSystem, Content: final})
	}

	out = append(out, normal...)

	if up := strings.TrimSpace(userPrompt); up != "" {
		out = append(out, CtxEntry{Role: RoleUser, Content: up})
	}

	return out
}

// ToCtxEntries projects chat_history into the context representation,
// dropping the distinction between regular and synthetic-summary stubs
// except for the IsCompressed flag (spec.md §4.2.1 step 5,
// original_source's sync_history_to_context).
func ToCtxEntries(history []Message) []CtxEntry {
	out := make([]CtxEntry, 0, len(history))
	for _, m := range history {
		out = append(out, CtxEntry{Role: m.Role, Content: m.Content, IsCompressed: m.IsCompressed})
	}
	return out
}
