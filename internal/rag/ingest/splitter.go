package ingest

import (
	"strings"
	"unicode/utf8"
)

// Separators ordered from "best" to "worst" for semantic meaning
var separators = []string{"\n\n", "\n", ". ", " "}

// splitTextIntoChunks cuts text into chunks of at most limit characters,
// preferring paragraph, then line, sentence and word boundaries. Each chunk
// after the first starts with up to overlap characters of its predecessor.
func splitTextIntoChunks(text string, limit int, overlap int) []string {
	text = strings.TrimSpace(text)
	if text == "" || limit <= 0 {
		return nil
	}
	if overlap >= limit {
		overlap = limit / 4
	}
	if utf8.RuneCountInString(text) <= limit {
		return []string{text}
	}
	return merge(pieces(text, limit, separators), limit, overlap)
}

// pieces splits text recursively until every piece fits in limit.
// Separators stay attached to the piece they end.
func pieces(text string, limit int, seps []string) []string {
	if utf8.RuneCountInString(text) <= limit {
		return []string{text}
	}
	for i, sep := range seps {
		if !strings.Contains(text, sep) {
			continue
		}
		var out []string
		for _, part := range strings.SplitAfter(text, sep) {
			if part == "" {
				continue
			}
			out = append(out, pieces(part, limit, seps[i+1:])...)
		}
		return out
	}
	return hardCut(text, limit)
}

func hardCut(text string, limit int) []string {
	runes := []rune(text)
	out := make([]string, 0, len(runes)/limit+1)
	for len(runes) > 0 {
		n := min(limit, len(runes))
		out = append(out, string(runes[:n]))
		runes = runes[n:]
	}
	return out
}

func merge(parts []string, limit int, overlap int) []string {
	var chunks []string
	var current strings.Builder
	currentLen := 0

	flush := func() string {
		chunk := strings.TrimSpace(current.String())
		if chunk != "" {
			chunks = append(chunks, chunk)
		}
		return current.String()
	}

	for _, part := range parts {
		partLen := utf8.RuneCountInString(part)
		if currentLen > 0 && currentLen+partLen > limit {
			previous := flush()
			current.Reset()
			currentLen = 0

			tail := tailOf(previous, overlap)
			if tailLen := utf8.RuneCountInString(tail); tailLen+partLen <= limit {
				current.WriteString(tail)
				currentLen = tailLen
			}
		}
		current.WriteString(part)
		currentLen += partLen
	}
	flush()
	return chunks
}

// tailOf returns the last n characters of s, moved forward to a word start
// when one is close.
func tailOf(s string, n int) string {
	if n <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	tail := string(runes[len(runes)-n:])
	if i := strings.IndexByte(tail, ' '); i >= 0 && i < len(tail)/2 {
		tail = tail[i+1:]
	}
	return tail
}
