package keywords

import (
	"sort"
	"strings"
)

// Matcher finds the longest command name that is a word-aligned prefix of a
// candidate string. It narrows a sorted name list one character at a time.
type Matcher struct {
	keywords         []string
	longestLength    int
	longestWordCount int
}

// NewMatcher builds a matcher over names. Matching is case-insensitive.
func NewMatcher(names []string) *Matcher {
	m := &Matcher{keywords: make([]string, len(names))}
	for i, n := range names {
		m.keywords[i] = strings.ToLower(n)
	}
	sort.Strings(m.keywords)

	for _, kw := range m.keywords {
		if len(kw) > m.longestLength {
			m.longestLength = len(kw)
		}
		if wc := strings.Count(kw, " ") + 1; wc > m.longestWordCount {
			m.longestWordCount = wc
		}
	}
	return m
}

func charAt(s string, i int) byte {
	if i < len(s) {
		return s[i]
	}
	return 0
}

func lower(c byte) byte {
	if c >= 'A' && c <= 'Z' {
		return c + ('a' - 'A')
	}
	return c
}

func isSymbolChar(c byte) bool {
	return (c >= '0' && c <= '9') ||
		(c >= 'A' && c <= 'Z') ||
		(c >= 'a' && c <= 'z') ||
		c == '_'
}

// LongestMatch returns the length of the longest known name that prefixes s
// and ends on a word boundary of s. When nothing matches, the returned length
// is how far the narrowing got, which callers may use for diagnostics.
func (m *Matcher) LongestMatch(s string) (int, bool) {
	first, last := 0, len(m.keywords)
	var stack []int
	matched := 0

	for matched < len(s) {
		c := lower(s[matched])
		pos := matched
		lo := first + sort.Search(last-first, func(i int) bool {
			return charAt(m.keywords[first+i], pos) >= c
		})
		hi := lo + sort.Search(last-lo, func(i int) bool {
			return charAt(m.keywords[lo+i], pos) > c
		})
		first, last = lo, hi
		if first == last {
			break
		}

		matched++
		if matched >= len(s) || !isSymbolChar(s[matched]) {
			stack = append(stack, first)
		}
	}

	for i := len(stack) - 1; i >= 0; i-- {
		kw := m.keywords[stack[i]]
		if len(s) >= len(kw) && strings.EqualFold(s[:len(kw)], kw) {
			return len(kw), true
		}
	}
	return matched, false
}

func (m *Matcher) LongestKeywordLength() int {
	return m.longestLength
}

func (m *Matcher) LongestKeywordWordCount() int {
	return m.longestWordCount
}
