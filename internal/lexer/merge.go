package lexer

import (
	"log/slog"
	"strings"
)

// TokenSource yields tokens one at a time. Both *Lexer and *Merger satisfy it.
type TokenSource interface {
	NextToken() Token
}

// KeywordMatcher answers longest-prefix queries against the set of known
// command names.
type KeywordMatcher interface {
	// LongestMatch returns the length of the longest known command that is
	// a word-aligned prefix of s.
	LongestMatch(s string) (int, bool)
	LongestKeywordLength() int
}

// Merger sits between the Lexer and the parser. Command names in the keyword
// database may span several words ("make object cube") or overlap with
// identifiers and integers ("load 3dsound"), so runs of primitive tokens are
// collapsed into a single KEYWORD token using bounded lookahead.
type Merger struct {
	src     TokenSource
	matcher KeywordMatcher
	queue   []Token
	logger  *slog.Logger
}

// MergerOption configures a Merger.
type MergerOption func(*Merger)

// WithLogger attaches a logger; merged keywords are reported at debug level.
func WithLogger(logger *slog.Logger) MergerOption {
	return func(m *Merger) {
		m.logger = logger
	}
}

// NewMerger wraps src. A nil matcher disables merging entirely.
func NewMerger(src TokenSource, matcher KeywordMatcher, opts ...MergerOption) *Merger {
	m := &Merger{src: src, matcher: matcher}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// NextToken returns exactly one token, performing a merge first if the head
// of the queue can start a command.
func (m *Merger) NextToken() Token {
	if len(m.queue) == 0 {
		m.queue = append(m.queue, m.src.NextToken())
	}

	head := m.queue[0]
	if m.matcher != nil && canStartCommand(head.Type) {
		m.merge(IsReserved(head.Type))
	}

	tok := m.queue[0]
	m.queue = m.queue[1:]
	return tok
}

// canStartCommand reports whether a token of type t may be the first word of
// a command. Reserved words (LOOP being the classic case, "loop sound") only
// merge into something strictly longer than themselves.
func canStartCommand(t TokenType) bool {
	return t == IDENT || t == INT || IsReserved(t)
}

func stopsMerge(t TokenType) bool {
	return t == EOF || t == ILLEGAL || t == NEWLINE || t == COLON
}

func (m *Merger) fill(n int) {
	for len(m.queue) <= n {
		m.queue = append(m.queue, m.src.NextToken())
	}
}

func (m *Merger) merge(mustBeLonger bool) {
	head := m.queue[0]
	maxLen := m.matcher.LongestKeywordLength()

	var sb strings.Builder
	sb.WriteString(head.Literal)

	matchLen, matchTokens := 0, 0
	prevInt := head.Type == INT

	for i := 1; sb.Len() <= maxLen; i++ {
		cand := sb.String()
		if n, ok := m.matcher.LongestMatch(cand); ok && n == len(cand) {
			matchLen, matchTokens = n, i
		}

		m.fill(i)
		next := m.queue[i]
		if stopsMerge(next.Type) {
			break
		}

		suffix := IsTypeSuffix(next.Type)
		if !prevInt && !suffix {
			sb.WriteByte(' ')
		} else if suffix && matchTokens == i {
			// "str$" is not the command "str" followed by junk.
			matchLen, matchTokens = 0, 0
		}
		sb.WriteString(next.Literal)
		prevInt = next.Type == INT
	}

	if matchTokens == 0 {
		return
	}
	if mustBeLonger && matchLen <= len(head.Literal) {
		return
	}
	if matchTokens == 1 && head.Type == KEYWORD {
		return
	}

	last := m.queue[matchTokens-1]
	literal := sb.String()[:matchLen]
	merged := Token{
		Type:    KEYWORD,
		Literal: literal,
		Value:   strings.ToLower(literal),
		Span: Span{
			Filename: head.Span.Filename,
			Line:     head.Span.Line,
			Column:   head.Span.Column,
			Start:    head.Span.Start,
			End:      last.Span.End,
		},
	}

	if m.logger != nil && matchTokens > 1 {
		m.logger.Debug("merged keyword tokens",
			slog.String("keyword", merged.Value),
			slog.Int("tokens", matchTokens),
			slog.Int("line", merged.Span.Line))
	}

	m.queue[matchTokens-1] = merged
	m.queue = m.queue[matchTokens-1:]
}
