package workflow

// Chunk is one value flowing across an edge. Nodes agree on shape by
// convention (spec.md §4.1): text nodes pass map[string]interface{}{"text": ...},
// audio nodes pass map[string]interface{}{"data": []byte}, status outputs
// pass small maps such as {"state": ..., "text": ...}.
type Chunk = interface{}

// EndText is the textual end-of-stream sentinel: an empty-string text chunk
// closes a text stream without closing the underlying channel, so a node can
// keep the edge open across multiple turns (spec.md §4.1, "end sentinel").
var EndText = map[string]interface{}{"text": ""}

// IsEndSentinel reports whether chunk is the {text:""} end-of-stream marker.
func IsEndSentinel(chunk Chunk) bool {
	m, ok := chunk.(map[string]interface{})
	if !ok {
		return false
	}
	text, ok := m["text"]
	if !ok {
		return false
	}
	s, ok := text.(string)
	return ok && s == "" && len(m) == 1
}

// TextChunk wraps a string as a {text: s} chunk.
func TextChunk(s string) Chunk {
	return map[string]interface{}{"text": s}
}

// TextOf extracts the text field from a {text: s}-shaped chunk.
func TextOf(chunk Chunk) (string, bool) {
	m, ok := chunk.(map[string]interface{})
	if !ok {
		return "", false
	}
	text, ok := m["text"]
	if !ok {
		return "", false
	}
	s, ok := text.(string)
	return s, ok
}
