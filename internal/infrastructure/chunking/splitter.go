package chunking

import "strings"

// Splitter cuts long text into chunks of at most ChunkSize runes, ending each
// chunk at the last sentence terminator inside the window when there is one.
type Splitter struct {
	ChunkSize int
}

func NewSplitter(chunkSize int) *Splitter {
	if chunkSize <= 0 {
		chunkSize = 10000
	}
	return &Splitter{ChunkSize: chunkSize}
}

func (s *Splitter) Split(text string) []string {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}

	out := make([]string, 0, len(runes)/s.ChunkSize+1)
	for start := 0; start < len(runes); {
		end := start + s.ChunkSize
		if end >= len(runes) {
			end = len(runes)
		} else if cut := lastSentenceEnd(runes[start:end]); cut > 0 {
			end = start + cut
		}
		chunk := strings.TrimSpace(string(runes[start:end]))
		if chunk != "" {
			out = append(out, chunk)
		}
		start = end
	}
	return out
}

// lastSentenceEnd returns the index just past the last terminator in window,
// or 0 when none falls in its second half.
func lastSentenceEnd(window []rune) int {
	for i := len(window) - 1; i >= len(window)/2; i-- {
		switch window[i] {
		case '。', '.', '!', '?', '！', '？', '\n':
			return i + 1
		}
	}
	return 0
}
