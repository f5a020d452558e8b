package cleaner

import "unicode/utf8"

// EstimateTokens is a fast token estimate: rune count / 3, at least 1 for
// non-empty text. It over-counts English slightly.
func EstimateTokens(text string) int {
	n := utf8.RuneCountInString(text)
	if n == 0 {
		return 0
	}
	if est := n / 3; est > 1 {
		return est
	}
	return 1
}
