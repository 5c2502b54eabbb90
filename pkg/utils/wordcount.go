package utils

import "strings"

// CountWords counts whitespace-separated words.
func CountWords(text string) int {
	return len(strings.Fields(text))
}

// EstimateTokens approximates the token count of English prose, where one
// word averages about 0.75 tokens of headroom in embedding-model vocabularies.
func EstimateTokens(words int) int {
	return int(float64(words) * 0.75)
}
