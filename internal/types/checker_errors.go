package types

import (
	"fmt"

	"github.com/odb-lang/odb-compiler/internal/ast"
	"github.com/odb-lang/odb-compiler/internal/diag"
	"github.com/odb-lang/odb-compiler/internal/lexer"
)

// toDiagSpan converts a lexer.Span to a diag.Span.
func toDiagSpan(span lexer.Span) diag.Span {
	return diag.Span{
		Filename: span.Filename,
		Line:     span.Line,
		Column:   span.Column,
		Start:    span.Start,
		End:      span.End,
	}
}

func (c *Checker) reportError(code diag.Code, id ast.NodeID, format string, args ...any) {
	c.reportErrorWithHelp(code, id, "", format, args...)
}

func (c *Checker) reportErrorWithHelp(code diag.Code, id ast.NodeID, help, format string, args ...any) {
	span := toDiagSpan(c.tree.Span(id))
	d := diag.Diagnostic{
		Stage:    diag.StageTypeCheck,
		Severity: diag.SeverityError,
		Code:     code,
		Message:  fmt.Sprintf(format, args...),
		Help:     help,
		Span:     span,
	}
	if span.IsValid() {
		d = d.WithPrimarySpan(span, "")
	}
	c.Errors = append(c.Errors, d)
}

// reportConflict reports a mismatch between a use and an earlier or later
// declaration, pointing at both.
func (c *Checker) reportConflict(code diag.Code, use ast.NodeID, useLabel string, decl lexer.Span, declLabel, format string, args ...any) {
	span := toDiagSpan(c.tree.Span(use))
	d := diag.Diagnostic{
		Stage:    diag.StageTypeCheck,
		Severity: diag.SeverityError,
		Code:     code,
		Message:  fmt.Sprintf(format, args...),
		Span:     span,
	}
	if span.IsValid() {
		d = d.WithPrimarySpan(span, useLabel)
	}
	if decl.Line > 0 {
		d = d.WithSecondarySpan(toDiagSpan(decl), declLabel)
	}
	c.Errors = append(c.Errors, d)
}
