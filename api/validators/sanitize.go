package validators

import "strings"

func SanitizeString(input string, maxLen int) string {
	trimmed := strings.TrimSpace(input)
	if maxLen > 0 && len(trimmed) > maxLen {
		return trimmed[:maxLen]
	}
	return trimmed
}

// SanitizeCode normalizes a coupon code: trimmed, upper-cased, capped at 40
// characters to match the column width.
func SanitizeCode(input string) string {
	return strings.ToUpper(SanitizeString(input, 40))
}
