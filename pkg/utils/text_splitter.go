package utils

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// Sentence units end at sentence punctuation followed by whitespace (or end
// of input). A trailing fragment without punctuation is its own unit.
var sentenceRegex = regexp.MustCompile(`[^.!?]+[.!?]+(?:\s+|$)|[^.!?]+$`)

// SplitSentences breaks text into trimmed sentence units in document order.
func SplitSentences(text string) []string {
	matches := sentenceRegex.FindAllString(text, -1)
	sentences := make([]string, 0, len(matches))
	for _, m := range matches {
		if s := strings.TrimSpace(m); s != "" {
			sentences = append(sentences, s)
		}
	}
	return sentences
}

// SplitText splits text into chunks of at most chunkSize characters, cutting
// only at sentence boundaries. Each chunk after the first starts with the
// trailing overlap/5 words of the previous chunk so context survives the cut.
// A single sentence longer than chunkSize becomes one oversized chunk rather
// than being truncated mid-sentence. The function is pure: identical input
// always produces identical chunks.
func SplitText(text string, chunkSize int, overlap int) []string {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return []string{}
	}
	if utf8.RuneCountInString(trimmed) <= chunkSize {
		return []string{trimmed}
	}

	sentences := SplitSentences(trimmed)
	chunks := make([]string, 0, utf8.RuneCountInString(trimmed)/chunkSize+1)

	var current string
	for _, sentence := range sentences {
		if current == "" {
			current = sentence
			continue
		}
		if utf8.RuneCountInString(current)+1+utf8.RuneCountInString(sentence) > chunkSize {
			chunks = append(chunks, current)
			if tail := overlapTail(current, overlap); tail != "" {
				current = tail + " " + sentence
			} else {
				current = sentence
			}
			continue
		}
		current = current + " " + sentence
	}
	if current != "" {
		chunks = append(chunks, current)
	}

	return chunks
}

// overlapTail returns the last overlap/5 words of a closed chunk, the word
// count standing in for a character count at the average English word length.
func overlapTail(chunk string, overlap int) string {
	wordCount := overlap / 5
	if wordCount <= 0 {
		return ""
	}
	words := strings.Fields(chunk)
	if wordCount > len(words) {
		wordCount = len(words)
	}
	return strings.Join(words[len(words)-wordCount:], " ")
}
