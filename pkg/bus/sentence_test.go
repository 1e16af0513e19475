package bus

import (
	"reflect"
	"testing"
)

func TestSentenceSplitterEmitsOnTerminator(t *testing.T) {
	s := NewSentenceSplitter()

	got := s.Feed("Hello there. How are")
	want := []string{"Hello there."}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Feed() = %v, want %v", got, want)
	}

	got = s.Feed(" you? Fine!")
	want = []string{"How are you?", "Fine!"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Feed() = %v, want %v", got, want)
	}
}

func TestSentenceSplitterFlushReturnsPartial(t *testing.T) {
	s := NewSentenceSplitter()
	s.Feed("no terminator yet")

	if got := s.Flush(); got != "no terminator yet" {
		t.Errorf("Flush() = %q, want %q", got, "no terminator yet")
	}
	if got := s.Flush(); got != "" {
		t.Errorf("second Flush() = %q, want empty", got)
	}
}
