package narrative

import "unicode/utf8"

// EstimateTokens approximates a token count as ceil(characters / 4).
func EstimateTokens(s string) int {
	n := utf8.RuneCountInString(s)
	return (n + 3) / 4
}
