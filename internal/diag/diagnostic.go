package diag

import (
	"fmt"
	"strings"
)

// Stage identifies which compiler phase produced the diagnostic.
type Stage string

const (
	StageKeywords  Stage = "keywords"
	StageLexer     Stage = "lexer"
	StageParser    Stage = "parser"
	StageTypeCheck Stage = "typecheck"
	StageCodegen   Stage = "codegen"
	StageEngine    Stage = "engine"
)

// Severity captures how impactful the diagnostic is.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityNote    Severity = "note"
)

// LabeledSpan is a span with an optional label. Primary spans are underlined
// with ^, secondary ones with ~.
type LabeledSpan struct {
	Span  Span
	Label string
	Style string // "primary" or "secondary"
}

// Code is a stable identifier for a diagnostic.
type Code string

const (
	// Keyword database
	CodeKeywordMalformedSpec  Code = "KEYWORD_MALFORMED_SPEC"
	CodeKeywordReturnMismatch Code = "KEYWORD_RETURN_MISMATCH"
	CodeKeywordMissingReturn  Code = "KEYWORD_MISSING_RETURN"

	// Lexer errors
	CodeLexerUnterminatedString       Code = "LEXER_UNTERMINATED_STRING"
	CodeLexerUnterminatedBlockComment Code = "LEXER_UNTERMINATED_BLOCK_COMMENT"
	CodeLexerIllegalRune              Code = "LEXER_ILLEGAL_RUNE"
	CodeLexerIntegerOverflow          Code = "LEXER_INTEGER_OVERFLOW"

	// Parser errors
	CodeParseUnexpectedToken     Code = "PARSE_UNEXPECTED_TOKEN"
	CodeParseExpectedExpr        Code = "PARSE_EXPECTED_EXPRESSION"
	CodeParseUnterminatedBlock   Code = "PARSE_UNTERMINATED_BLOCK"
	CodeParseUndeclaredArray     Code = "PARSE_UNDECLARED_ARRAY"
	CodeParseInvalidTarget       Code = "PARSE_INVALID_ASSIGNMENT_TARGET"
	CodeParseMismatchedNext      Code = "PARSE_MISMATCHED_NEXT"
	CodeParseUnknownType         Code = "PARSE_UNKNOWN_TYPE"
	CodeParseInvalidLiteral      Code = "PARSE_INVALID_LITERAL"
	CodeParseCommandNoValue      Code = "PARSE_COMMAND_HAS_NO_VALUE"
	CodeParseExitOutsideLoop     Code = "PARSE_EXIT_OUTSIDE_LOOP"
	CodeParseExitFunctionOutside Code = "PARSE_EXITFUNCTION_OUTSIDE_FUNCTION"

	// Type checker errors
	CodeTypeConflict           Code = "TYPE_CONFLICT"
	CodeTypeUndefinedFunction  Code = "TYPE_UNDEFINED_FUNCTION"
	CodeTypeUnknownUDT         Code = "TYPE_UNKNOWN_UDT"
	CodeTypeUnknownField       Code = "TYPE_UNKNOWN_FIELD"
	CodeTypeArgumentCount      Code = "TYPE_ARGUMENT_COUNT"
	CodeTypeDuplicateFunction  Code = "TYPE_DUPLICATE_FUNCTION"
	CodeTypeInvalidOperation   Code = "TYPE_INVALID_OPERATION"
	CodeTypeStatementAsValue   Code = "TYPE_STATEMENT_AS_VALUE"
	CodeTypeUnknownKeyword     Code = "TYPE_UNKNOWN_KEYWORD"
	CodeTypeDuplicateLabel     Code = "TYPE_DUPLICATE_LABEL"
	CodeTypeUndefinedLabel     Code = "TYPE_UNDEFINED_LABEL"
	CodeTypeNonConstantDim     Code = "TYPE_NON_CONSTANT_DIMENSION"
	CodeTypeDuplicateDecl      Code = "TYPE_DUPLICATE_DECLARATION"
	CodeTypeUnsupportedKeyword Code = "TYPE_UNSUPPORTED_KEYWORD_TYPE"
	CodeTypeIndexOutOfRange    Code = "TYPE_INDEX_OUT_OF_RANGE"

	// Codegen errors
	CodeGenNoMatchingOverload Code = "CODEGEN_NO_MATCHING_OVERLOAD"
	CodeGenUnboundKeyword     Code = "CODEGEN_UNBOUND_KEYWORD"
	CodeGenUndefinedLabel     Code = "CODEGEN_UNDEFINED_LABEL"

	// Engine errors
	CodeEngineCorePluginMissing Code = "ENGINE_CORE_PLUGIN_MISSING"
	CodeEngineNoPlugins         Code = "ENGINE_NO_PLUGINS"
)

// Span represents a location in source code.
type Span struct {
	Filename string
	Line     int
	Column   int
	Start    int
	End      int
}

// String returns a human-readable representation of the span.
func (s Span) String() string {
	if s.Filename != "" {
		return fmt.Sprintf("%s:%d:%d", s.Filename, s.Line, s.Column)
	}
	return fmt.Sprintf("%d:%d", s.Line, s.Column)
}

// IsValid returns true if the span has valid location information.
func (s Span) IsValid() bool {
	return s.Line > 0 && s.Column > 0
}

// Diagnostic is a compiler diagnostic surfaced to end-users.
type Diagnostic struct {
	Stage    Stage
	Severity Severity
	Code     Code
	Message  string
	Span     Span // primary span when LabeledSpans is empty
	// LabeledSpans allows multiple spans with labels. The first primary one
	// is where the problem is.
	LabeledSpans []LabeledSpan
	Notes        []string
	Help         string
}

// Error lets a diagnostic travel as an error value.
func (d Diagnostic) Error() string {
	var b strings.Builder
	if d.Span.IsValid() {
		b.WriteString(d.Span.String())
		b.WriteString(": ")
	}
	b.WriteString(d.Message)
	if d.Code != "" {
		fmt.Fprintf(&b, " [%s]", d.Code)
	}
	return b.String()
}

// WithLabeledSpan adds a labeled span to the diagnostic.
func (d Diagnostic) WithLabeledSpan(span Span, label string, style string) Diagnostic {
	if style == "" {
		style = "primary"
	}
	d.LabeledSpans = append(d.LabeledSpans, LabeledSpan{
		Span:  span,
		Label: label,
		Style: style,
	})
	return d
}

// WithPrimarySpan adds a primary labeled span.
func (d Diagnostic) WithPrimarySpan(span Span, label string) Diagnostic {
	return d.WithLabeledSpan(span, label, "primary")
}

// WithSecondarySpan adds a secondary labeled span.
func (d Diagnostic) WithSecondarySpan(span Span, label string) Diagnostic {
	return d.WithLabeledSpan(span, label, "secondary")
}

// WithNote adds a note to the diagnostic.
func (d Diagnostic) WithNote(note string) Diagnostic {
	d.Notes = append(d.Notes, note)
	return d
}

// WithHelp adds help text to the diagnostic.
func (d Diagnostic) WithHelp(help string) Diagnostic {
	d.Help = help
	return d
}

// List is a batch of diagnostics returned as one error.
type List []Diagnostic

func (l List) Error() string {
	switch len(l) {
	case 0:
		return "no diagnostics"
	case 1:
		return l[0].Error()
	}
	return fmt.Sprintf("%s (and %d more)", l[0].Error(), len(l)-1)
}

// HasErrors reports whether any entry is an error.
func (l List) HasErrors() bool {
	for _, d := range l {
		if d.Severity == SeverityError || d.Severity == "" {
			return true
		}
	}
	return false
}

// Err returns l as an error, or nil when it holds no errors.
func (l List) Err() error {
	if !l.HasErrors() {
		return nil
	}
	return l
}
