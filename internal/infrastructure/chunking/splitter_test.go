package chunking

import (
	"strings"
	"testing"
)

func TestSplitKeepsShortTextWhole(t *testing.T) {
	got := NewSplitter(100).Split("  one sentence.  ")
	if len(got) != 1 || got[0] != "one sentence." {
		t.Fatalf("unexpected chunks: %q", got)
	}
	if NewSplitter(10).Split("") != nil {
		t.Fatalf("expected nil for empty text")
	}
}

func TestSplitCutsAtSentenceBoundary(t *testing.T) {
	text := "First sentence here. Second one follows. Third is last."
	got := NewSplitter(30).Split(text)

	if strings.Join(got, " ") != text {
		t.Fatalf("chunks must cover the text without loss: %q", got)
	}
	for _, c := range got[:len(got)-1] {
		if !strings.HasSuffix(c, ".") {
			t.Fatalf("chunk %q should end at a sentence boundary", c)
		}
	}
}

func TestSplitHandlesJapaneseTerminators(t *testing.T) {
	text := strings.Repeat("あ", 8) + "。" + strings.Repeat("い", 8) + "。"
	got := NewSplitter(12).Split(text)
	if len(got) != 2 || got[0] != strings.Repeat("あ", 8)+"。" {
		t.Fatalf("unexpected chunks: %q", got)
	}
}

func TestSplitFallsBackToHardCut(t *testing.T) {
	got := NewSplitter(4).Split("abcdefghij")
	want := []string{"abcd", "efgh", "ij"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("got %q, want %q", got, want)
	}
}
