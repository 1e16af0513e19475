package bus

import "strings"

var sentenceTerminators = []rune{'.', '!', '?', '\n', '。', '！', '？'}

// SentenceSplitter accumulates raw LLM token deltas and emits complete
// sentences as soon as a terminator is seen, with any trailing partial
// sentence flushed on Flush(). This is the post_route node's job per
// SPEC_FULL.md §4.1: "split the raw token stream into sentence-complete
// chunks before handing to TTS."
type SentenceSplitter struct {
	buf strings.Builder
}

// NewSentenceSplitter creates an empty splitter.
func NewSentenceSplitter() *SentenceSplitter {
	return &SentenceSplitter{}
}

// Feed appends a token delta and returns zero or more complete sentences
// carved out of the accumulated buffer.
func (s *SentenceSplitter) Feed(delta string) []string {
	s.buf.WriteString(delta)
	current := s.buf.String()

	var sentences []string
	start := 0
	for i, r := range current {
		if !isTerminator(r) {
			continue
		}
		end := i + len(string(r))
		sentence := strings.TrimSpace(current[start:end])
		if sentence != "" {
			sentences = append(sentences, sentence)
		}
		start = end
	}

	s.buf.Reset()
	s.buf.WriteString(current[start:])
	return sentences
}

// Flush returns any trailing partial sentence and clears the buffer.
func (s *SentenceSplitter) Flush() string {
	rest := strings.TrimSpace(s.buf.String())
	s.buf.Reset()
	return rest
}

func isTerminator(r rune) bool {
	for _, t := range sentenceTerminators {
		if r == t {
			return true
		}
	}
	return false
}
