package geometry

import (
	"strconv"
	"strings"
	"unicode/utf8"
)

// uniqueNames maps field names to names that are unique case-insensitively,
// avoid the reserved names and fit into maxLen bytes (0 = unlimited). cut
// shortens a name to n bytes; nil selects the UTF-8 aware truncate.
func uniqueNames(names []string, reserved []string, maxLen int, cut func(string, int) string) []string {
	if cut == nil {
		cut = truncate
	}
	taken := make(map[string]bool, len(names)+len(reserved))
	for _, r := range reserved {
		taken[strings.ToLower(r)] = true
	}

	out := make([]string, len(names))
	for i, n := range names {
		if n == "" {
			n = "field"
		}
		base := cut(n, maxLen)
		name := base
		for k := 1; taken[strings.ToLower(name)]; k++ {
			suffix := "_" + strconv.Itoa(k)
			name = cut(base, maxLen-len(suffix)) + suffix
		}
		taken[strings.ToLower(name)] = true
		out[i] = name
	}
	return out
}

// truncate cuts UTF-8 s to at most n bytes without splitting a rune. n <= 0
// keeps s, which uniqueNames relies on when maxLen is 0.
func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// cutBytes cuts s to at most n bytes. Use it for text in a single-byte
// charset, where every byte is a whole character. n <= 0 keeps s.
func cutBytes(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	return s[:n]
}
