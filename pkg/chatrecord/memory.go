package chatrecord

import (
	"encoding/json"
	"sort"
)

// NormalizeMemory converts an arbitrary decoded-JSON mapping into
// map[string][]string, truncating each string to maxLength (spec.md
// §4.2.5 step 3; original_source/memory.py _normalize_memory_value):
// scalars become a single-element list, lists are truncated per element,
// everything else is JSON-stringified then truncated.
func NormalizeMemory(raw map[string]interface{}, maxLength int) map[string][]string {
	normalized := make(map[string][]string, len(raw))
	for key, value := range raw {
		values := normalizeValue(value, maxLength)
		if len(values) > 0 {
			normalized[key] = values
		}
	}
	return normalized
}

func normalizeValue(value interface{}, maxLength int) []string {
	if value == nil {
		return nil
	}
	if list, ok := value.([]interface{}); ok {
		out := make([]string, 0, len(list))
		for _, item := range list {
			if text := stringify(item); text != "" {
				out = append(out, truncate(text, maxLength))
			}
		}
		return out
	}

	text := stringify(value)
	if text == "" {
		return nil
	}
	return []string{truncate(text, maxLength)}
}

func stringify(value interface{}) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64, int, int64, bool:
		b, _ := json.Marshal(v)
		return string(b)
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(b)
	}
}

func truncate(text string, maxLength int) string {
	if maxLength <= 0 || text == "" {
		return ""
	}
	if len(text) <= maxLength {
		return text
	}
	if maxLength <= 3 {
		return text[:maxLength]
	}
	return text[:maxLength-3] + "..."
}

func serializeMemory(m map[string][]string) string {
	b, err := json.Marshal(m)
	if err != nil {
		return "{}"
	}
	return string(b)
}

// TrimMemoryEntries repeatedly pops the last element of whichever category
// currently has the most entries until serialized length is within
// maxLength or every category is exhausted (spec.md §4.2.5 step 4;
// original_source/memory.py _trim_memory_entries — "prefer removing the
// last entry of the largest-by-count category... because balancing by
// count is deterministic and stable", spec.md §9).
func TrimMemoryEntries(normalized map[string][]string, maxLength int) map[string][]string {
	trimmed := make(map[string][]string, len(normalized))
	for k, v := range normalized {
		if len(v) > 0 {
			trimmed[k] = append([]string(nil), v...)
		}
	}
	if len(trimmed) == 0 {
		return trimmed
	}

	for len(trimmed) > 0 && len(serializeMemory(trimmed)) > maxLength {
		key := largestCategory(trimmed)
		entries := trimmed[key]
		entries = entries[:len(entries)-1]
		if len(entries) == 0 {
			delete(trimmed, key)
		} else {
			trimmed[key] = entries
		}
	}
	return trimmed
}

func largestCategory(m map[string][]string) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(m[keys[i]]) != len(m[keys[j]]) {
			return len(m[keys[i]]) > len(m[keys[j]])
		}
		return keys[i] < keys[j]
	})
	return keys[0]
}

// EnforceLength implements the normalize → enforce-length → collapse
// cascade exactly (spec.md §4.2.5 steps 3-4): normalize once; if the
// compact-JSON length already fits maxLength, keep it; otherwise trim; if
// still over, collapse entirely to {"summary": <truncated serialized
// form>}. Grounded on original_source/memory.py _enforce_memory_length.
func EnforceLength(raw map[string]interface{}, maxLength int) map[string]interface{} {
	if maxLength <= 0 {
		return toInterfaceMap(NormalizeMemory(raw, maxLength))
	}

	normalized := NormalizeMemory(raw, maxLength)
	if len(serializeMemory(normalized)) <= maxLength {
		return toInterfaceMap(normalized)
	}

	trimmed := TrimMemoryEntries(normalized, maxLength)
	serialized := serializeMemory(trimmed)
	if len(serialized) <= maxLength {
		return toInterfaceMap(trimmed)
	}

	return map[string]interface{}{"summary": truncate(serialized, maxLength)}
}

func toInterfaceMap(m map[string][]string) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		list := make([]interface{}, len(v))
		for i, s := range v {
			list[i] = s
		}
		out[k] = list
	}
	return out
}

// ParseExtractedMemory decodes the LLM's memory-extraction response as
// JSON; if parsing fails, the raw text is wrapped as {"summary": text}
// (spec.md §4.2.5 step 2).
func ParseExtractedMemory(content string) map[string]interface{} {
	var parsed map[string]interface{}
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return map[string]interface{}{"summary": content}
	}
	return parsed
}
