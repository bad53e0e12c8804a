package match

import "strings"

// SplitGlob separates a location path into a listing prefix and a leaf
// pattern.
//
// The prefix runs up to the last "/" before the first unescaped glob
// metacharacter; the remainder is the pattern applied to leaf names.
// A path without metacharacters is returned whole as the prefix with an
// empty pattern. Escaped metacharacters are unescaped in the prefix.
//
//	"inbox/2024/*.pdf"    → "inbox/2024/", "*.pdf"
//	"inbox/INV-??.pdf"    → "inbox/", "INV-??.pdf"
//	"inbox/"              → "inbox/", ""
//	"*.pdf"               → "", "*.pdf"
//	"inbox/a\*b/*.pdf"    → "inbox/a*b/", "*.pdf"
func SplitGlob(path string) (prefix, pattern string) {
	i := firstMeta(path)
	if i < 0 {
		return unescape(path), ""
	}
	slash := strings.LastIndex(path[:i], "/")
	if slash < 0 {
		return "", path
	}
	return unescape(path[:slash+1]), path[slash+1:]
}

// IsGlobPattern reports whether s contains an unescaped * ? [ or {.
func IsGlobPattern(s string) bool {
	return firstMeta(s) >= 0
}

func isMeta(c byte) bool {
	return c == '*' || c == '?' || c == '[' || c == '{'
}

func firstMeta(s string) int {
	for i := 0; i < len(s); i++ {
		switch c := s[i]; {
		case c == '\\' && i+1 < len(s):
			if isMeta(s[i+1]) || s[i+1] == '\\' {
				i++
			}
		case isMeta(c):
			return i
		}
	}
	return -1
}

func unescape(s string) string {
	if !strings.ContainsRune(s, '\\') {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) {
			next := s[i+1]
			if isMeta(next) || next == ']' || next == '}' || next == '\\' {
				b.WriteByte(next)
				i++
				continue
			}
		}
		b.WriteByte(s[i])
	}
	return b.String()
}
