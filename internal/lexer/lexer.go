package lexer

import (
	"strconv"
	"strings"

	"github.com/odb-lang/odb-compiler/internal/diag"
)

type LexerErrorKind int

const (
	ErrUnterminatedString LexerErrorKind = iota
	ErrUnterminatedBlockComment
	ErrIllegalRune
	ErrIntegerOverflow
)

type LexerError struct {
	Kind    LexerErrorKind
	Message string
	Span    Span
}

func (k LexerErrorKind) diagnosticCode() diag.Code {
	switch k {
	case ErrUnterminatedString:
		return diag.CodeLexerUnterminatedString
	case ErrUnterminatedBlockComment:
		return diag.CodeLexerUnterminatedBlockComment
	case ErrIllegalRune:
		return diag.CodeLexerIllegalRune
	case ErrIntegerOverflow:
		return diag.CodeLexerIntegerOverflow
	default:
		return diag.Code("LEXER_UNKNOWN_ERROR")
	}
}

// ToDiagnostic converts a lexer error into a shared diagnostic structure.
func (e LexerError) ToDiagnostic() diag.Diagnostic {
	return diag.Diagnostic{
		Stage:    diag.StageLexer,
		Severity: diag.SeverityError,
		Code:     e.Kind.diagnosticCode(),
		Message:  e.Message,
		Span: diag.Span{
			Filename: e.Span.Filename,
			Line:     e.Span.Line,
			Column:   e.Span.Column,
			Start:    e.Span.Start,
			End:      e.Span.End,
		},
	}
}

// Lexer turns source bytes into primitive tokens. It knows nothing about the
// keyword database; multi-word commands are assembled by Merger.
type Lexer struct {
	input    []byte
	pos      int  // index of the current byte
	ch       byte // current byte (0 = EOF)
	line     int  // current line number (1-based)
	column   int  // current column number (1-based)
	filename string

	Errors []LexerError
}

func (l *Lexer) addError(kind LexerErrorKind, msg string, span Span) {
	span.Filename = l.filename
	l.Errors = append(l.Errors, LexerError{
		Kind:    kind,
		Message: msg,
		Span:    span,
	})
}

// New creates a new lexer for the given input.
func New(input []byte) *Lexer {
	l := &Lexer{
		input:  input,
		pos:    -1,
		line:   1,
		column: 0,
	}
	l.read()
	return l
}

// NewString is a convenience wrapper around New.
func NewString(input string) *Lexer {
	return New([]byte(input))
}

// SetFilename attributes every subsequent span to name.
func (l *Lexer) SetFilename(name string) {
	l.filename = name
}

// read advances to the next byte. line/column always describe the byte at pos.
func (l *Lexer) read() {
	l.pos++
	prevPos := l.pos - 1
	inputLen := len(l.input)

	if prevPos >= 0 && prevPos < inputLen && l.input[prevPos] == '\n' {
		l.line++
		l.column = 1
	} else {
		l.column++
	}

	if l.pos >= inputLen {
		l.pos = inputLen
		l.ch = 0
		return
	}
	l.ch = l.input[l.pos]
}

func (l *Lexer) peek() byte {
	return l.peekAt(1)
}

func (l *Lexer) peekAt(n int) byte {
	if l.pos+n >= len(l.input) {
		return 0
	}
	return l.input[l.pos+n]
}

func (l *Lexer) currentSpanStart() (line, column, pos int) {
	return l.line, l.column, l.pos
}

func (l *Lexer) makeToken(tokType TokenType, startLine, startColumn, startPos int, value string) Token {
	return Token{
		Type:    tokType,
		Literal: string(l.input[startPos:l.pos]),
		Value:   value,
		Span: Span{
			Filename: l.filename,
			Line:     startLine,
			Column:   startColumn,
			Start:    startPos,
			End:      l.pos,
		},
	}
}

// single consumes one byte and returns it as a token of the given type.
func (l *Lexer) single(tokType TokenType) Token {
	line, col, pos := l.currentSpanStart()
	l.read()
	return l.makeToken(tokType, line, col, pos, string(tokType))
}

// double consumes two bytes.
func (l *Lexer) double(tokType TokenType) Token {
	line, col, pos := l.currentSpanStart()
	l.read()
	l.read()
	return l.makeToken(tokType, line, col, pos, string(tokType))
}

func (l *Lexer) skipSpaces() {
	for l.ch == ' ' || l.ch == '\t' || (l.ch == '\r' && l.peek() != '\n') {
		l.read()
	}
}

func (l *Lexer) skipLineComment() {
	for l.ch != '\n' && l.ch != 0 {
		l.read()
	}
}

func (l *Lexer) skipBlockComment(startLine, startColumn, startPos int, terminator string) {
	for {
		if l.ch == 0 {
			l.addError(
				ErrUnterminatedBlockComment,
				"unterminated block comment",
				Span{Line: startLine, Column: startColumn, Start: startPos, End: l.pos},
			)
			return
		}
		if l.hasPrefixFold(terminator) {
			for range terminator {
				l.read()
			}
			return
		}
		l.read()
	}
}

// hasPrefixFold reports whether the input at pos starts with s, ignoring case.
func (l *Lexer) hasPrefixFold(s string) bool {
	if l.pos+len(s) > len(l.input) {
		return false
	}
	return strings.EqualFold(string(l.input[l.pos:l.pos+len(s)]), s)
}

// wordAt reports whether the case-insensitive word s starts at pos and is
// not followed by another identifier byte.
func (l *Lexer) wordAt(s string) bool {
	return l.hasPrefixFold(s) && !isSymbolChar(l.peekAt(len(s)))
}

func (l *Lexer) readIdentifier() string {
	start := l.pos
	for isSymbolChar(l.ch) {
		l.read()
	}
	return string(l.input[start:l.pos])
}

// readNumber reads decimal, `0x` hex, `%` binary and float literals.
func (l *Lexer) readNumber() TokenType {
	if l.ch == '%' {
		l.read()
		for l.ch == '0' || l.ch == '1' {
			l.read()
		}
		return INT
	}

	if l.ch == '0' && (l.peek() == 'x' || l.peek() == 'X') && isHexDigit(l.peekAt(2)) {
		l.read()
		l.read()
		for isHexDigit(l.ch) {
			l.read()
		}
		return INT
	}

	tokType := INT
	for isDigit(l.ch) {
		l.read()
	}
	if l.ch == '.' && isDigit(l.peek()) {
		tokType = FLOAT
		l.read()
		for isDigit(l.ch) {
			l.read()
		}
	}
	if (l.ch == 'e' || l.ch == 'E') && (isDigit(l.peek()) ||
		((l.peek() == '+' || l.peek() == '-') && isDigit(l.peekAt(2)))) {
		tokType = FLOAT
		l.read()
		if l.ch == '+' || l.ch == '-' {
			l.read()
		}
		for isDigit(l.ch) {
			l.read()
		}
	}
	return tokType
}

func (l *Lexer) readString() (string, bool) {
	l.read() // opening quote
	start := l.pos
	for l.ch != '"' {
		if l.ch == 0 || l.ch == '\n' {
			return string(l.input[start:l.pos]), false
		}
		l.read()
	}
	value := string(l.input[start:l.pos])
	l.read() // closing quote
	return value, true
}

// NextToken returns the next token from the input
func (l *Lexer) NextToken() Token {
	for {
		l.skipSpaces()

		line, col, pos := l.currentSpanStart()

		switch l.ch {
		case 0:
			return l.makeToken(EOF, line, col, pos, "")

		case '\n':
			return l.single(NEWLINE)

		case '\r':
			l.read()
			l.read()
			return l.makeToken(NEWLINE, line, col, pos, "\n")

		case '`':
			l.skipLineComment()
			continue

		case '/':
			if l.peek() == '/' {
				l.skipLineComment()
				continue
			}
			if l.peek() == '*' {
				l.read()
				l.read()
				l.skipBlockComment(line, col, pos, "*/")
				continue
			}
			return l.single(SLASH)

		case '"':
			value, ok := l.readString()
			if !ok {
				l.addError(ErrUnterminatedString, "unterminated string literal",
					Span{Line: line, Column: col, Start: pos, End: l.pos})
				return l.makeToken(ILLEGAL, line, col, pos, value)
			}
			return l.makeToken(STRING, line, col, pos, value)

		case '=':
			return l.single(ASSIGN)
		case '+':
			return l.single(PLUS)
		case '-':
			return l.single(MINUS)
		case '*':
			return l.single(ASTERISK)
		case '^':
			return l.single(CARET)
		case ',':
			return l.single(COMMA)
		case ':':
			return l.single(COLON)
		case '(':
			return l.single(LPAREN)
		case ')':
			return l.single(RPAREN)
		case '$':
			return l.single(DOLLAR)

		case '#':
			if l.peek() != 0 && strings.EqualFold(string(l.input[l.pos+1:min(len(l.input), l.pos+9)]), "constant") &&
				!isSymbolChar(l.peekAt(9)) {
				for i := 0; i < 9; i++ {
					l.read()
				}
				return l.makeToken(CONSTANT, line, col, pos, "#constant")
			}
			return l.single(HASH)

		case '<':
			switch l.peek() {
			case '>':
				return l.double(NOT_EQ)
			case '=':
				return l.double(LE)
			case '<':
				return l.double(SHL)
			}
			return l.single(LT)

		case '>':
			switch l.peek() {
			case '=':
				return l.double(GE)
			case '>':
				return l.double(SHR)
			}
			return l.single(GT)

		case '|':
			if l.peek() == '|' {
				return l.double(BOR)
			}
		case '&':
			if l.peek() == '&' {
				return l.double(BAND)
			}
		case '~':
			if l.peek() == '~' {
				return l.double(BXOR)
			}

		case '.':
			if l.peek() == '.' {
				return l.double(BNOT)
			}
			if isDigit(l.peek()) {
				l.readNumber()
				return l.makeToken(FLOAT, line, col, pos, string(l.input[pos:l.pos]))
			}
			return l.single(DOT)

		case '%':
			if l.peek() == '0' || l.peek() == '1' {
				l.readNumber()
				return l.makeToken(INT, line, col, pos, string(l.input[pos:l.pos]))
			}
		}

		if isDigit(l.ch) {
			tokType := l.readNumber()
			return l.makeToken(tokType, line, col, pos, string(l.input[pos:l.pos]))
		}

		if isLetter(l.ch) {
			if l.wordAt("remstart") {
				l.skipBlockComment(line, col, pos, "remend")
				continue
			}
			if l.wordAt("rem") {
				l.skipLineComment()
				continue
			}
			ident := l.readIdentifier()
			tokType := LookupIdent(ident)
			value := ident
			if tokType != IDENT {
				value = strings.ToLower(ident)
			}
			return l.makeToken(tokType, line, col, pos, value)
		}

		l.read()
		tok := l.makeToken(ILLEGAL, line, col, pos, string(l.input[pos:l.pos]))
		l.addError(ErrIllegalRune, "illegal character "+strconv.Quote(tok.Literal), tok.Span)
		return tok
	}
}

// Tokenize returns every token up to and including EOF.
func (l *Lexer) Tokenize() []Token {
	var toks []Token
	for {
		tok := l.NextToken()
		toks = append(toks, tok)
		if tok.Type == EOF {
			return toks
		}
	}
}

// IntValue decodes an INT token. Literals up to 0xFFFFFFFF are accepted and
// wrap into the signed 32-bit range.
func IntValue(lit string) (int32, error) {
	var (
		v   uint64
		err error
	)
	switch {
	case strings.HasPrefix(lit, "%"):
		v, err = strconv.ParseUint(lit[1:], 2, 32)
	case len(lit) > 2 && (lit[:2] == "0x" || lit[:2] == "0X"):
		v, err = strconv.ParseUint(lit[2:], 16, 32)
	default:
		v, err = strconv.ParseUint(lit, 10, 32)
	}
	if err != nil {
		return 0, err
	}
	return int32(uint32(v)), nil
}

func isLetter(ch byte) bool {
	return (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || ch == '_'
}

func isDigit(ch byte) bool {
	return ch >= '0' && ch <= '9'
}

func isHexDigit(ch byte) bool {
	return (ch >= '0' && ch <= '9') ||
		(ch >= 'a' && ch <= 'f') ||
		(ch >= 'A' && ch <= 'F')
}

func isSymbolChar(ch byte) bool {
	return isLetter(ch) || isDigit(ch)
}
