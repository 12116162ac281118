package parser

import (
	"fmt"

	"github.com/odb-lang/odb-compiler/internal/diag"
	"github.com/odb-lang/odb-compiler/internal/lexer"
)

// ParseError captures a parsing error with location context.
type ParseError struct {
	Message  string
	Span     lexer.Span
	Severity diag.Severity
	Code     diag.Code
	Help     string
	Notes    []string
	Related  []RelatedSpan
}

// RelatedSpan points at a second location involved in an error, such as the
// statement that opened an unterminated block.
type RelatedSpan struct {
	Span  lexer.Span
	Label string
}

func toDiagSpan(s lexer.Span) diag.Span {
	return diag.Span{Filename: s.Filename, Line: s.Line, Column: s.Column, Start: s.Start, End: s.End}
}

// ToDiagnostic converts the error into a shared diagnostic structure.
func (e ParseError) ToDiagnostic() diag.Diagnostic {
	code := e.Code
	if code == "" {
		code = diag.CodeParseUnexpectedToken
	}
	d := diag.Diagnostic{
		Stage:    diag.StageParser,
		Severity: e.Severity,
		Code:     code,
		Message:  e.Message,
		Span:     toDiagSpan(e.Span),
		Notes:    e.Notes,
		Help:     e.Help,
	}
	if len(e.Related) > 0 {
		d = d.WithPrimarySpan(toDiagSpan(e.Span), "")
		for _, r := range e.Related {
			d = d.WithSecondarySpan(toDiagSpan(r.Span), r.Label)
		}
	}
	return d
}

func (e ParseError) Error() string {
	return e.ToDiagnostic().Error()
}

// bailout unwinds the parser after the first error.
type bailout struct{}

func (p *Parser) fail(e ParseError) {
	if e.Span.Filename == "" {
		e.Span.Filename = p.filename
	}
	for i := range e.Related {
		if e.Related[i].Span.Filename == "" {
			e.Related[i].Span.Filename = p.filename
		}
	}
	if e.Severity == "" {
		e.Severity = diag.SeverityError
	}
	p.errors = append(p.errors, e)
	panic(bailout{})
}

func (p *Parser) failAt(code diag.Code, span lexer.Span, format string, args ...any) {
	p.fail(ParseError{Code: code, Span: span, Message: fmt.Sprintf(format, args...)})
}

func describe(tok lexer.Token) string {
	switch tok.Type {
	case lexer.EOF:
		return "end of file"
	case lexer.NEWLINE:
		return "end of line"
	}
	if tok.Literal != "" {
		return "`" + tok.Literal + "`"
	}
	return "`" + string(tok.Type) + "`"
}

// failExpected reports a missing token or construct.
func (p *Parser) failExpected(expected string, found lexer.Token) {
	e := ParseError{
		Code:    diag.CodeParseUnexpectedToken,
		Span:    found.Span,
		Message: fmt.Sprintf("expected %s, found %s", expected, describe(found)),
	}
	if found.Type == lexer.ILLEGAL {
		e.Help = "this character is not part of the language"
	}
	p.fail(e)
}

// failUnexpected reports a token that cannot appear here.
func (p *Parser) failUnexpected(tok lexer.Token, context string) {
	msg := fmt.Sprintf("unexpected %s", describe(tok))
	if context != "" {
		msg = fmt.Sprintf("%s: %s", context, msg)
	}
	e := ParseError{Code: diag.CodeParseUnexpectedToken, Span: tok.Span, Message: msg}
	if tok.Type == lexer.IDENT && p.keywords != nil {
		e.Help = fmt.Sprintf("%s is not a known command; check the keyword database and plugin list", describe(tok))
	}
	p.fail(e)
}

// failUnterminated reports a block whose closing word never came.
func (p *Parser) failUnterminated(open lexer.Token, closer string) {
	p.fail(ParseError{
		Code:    diag.CodeParseUnterminatedBlock,
		Span:    p.curTok.Span,
		Message: fmt.Sprintf("expected %s to close %s, found %s", closer, describe(open), describe(p.curTok)),
		Related: []RelatedSpan{{Span: open.Span, Label: "opened here"}},
	})
}
