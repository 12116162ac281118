package codegen

import (
	"fmt"

	"github.com/odb-lang/odb-compiler/internal/ast"
	"github.com/odb-lang/odb-compiler/internal/diag"
	"github.com/odb-lang/odb-compiler/internal/lexer"
)

// InternalError reports a broken compiler invariant: a program the checker
// accepted that code generation cannot lower, or a module that fails
// verification. It is never a problem with the user's program.
type InternalError struct {
	Func string // function being generated, if any
	Msg  string
}

func (e *InternalError) Error() string {
	if e.Func != "" {
		return fmt.Sprintf("internal compiler error in %s: %s", e.Func, e.Msg)
	}
	return "internal compiler error: " + e.Msg
}

func (g *Generator) internalf(format string, args ...any) error {
	e := &InternalError{Msg: fmt.Sprintf(format, args...)}
	if g.fn != nil {
		e.Func = g.fn.fn.Name()
	}
	return e
}

func toDiagSpan(span lexer.Span) diag.Span {
	return diag.Span{
		Filename: span.Filename,
		Line:     span.Line,
		Column:   span.Column,
		Start:    span.Start,
		End:      span.End,
	}
}

// reportError records a user-facing problem found while lowering id.
func (g *Generator) reportError(stage diag.Stage, code diag.Code, id ast.NodeID, help, format string, args ...any) {
	d := diag.Diagnostic{
		Stage:    stage,
		Severity: diag.SeverityError,
		Code:     code,
		Message:  fmt.Sprintf(format, args...),
		Help:     help,
	}
	if id != ast.NoNode {
		d.Span = toDiagSpan(g.tree.Span(id))
		if d.Span.IsValid() {
			d = d.WithPrimarySpan(d.Span, "")
		}
	}
	g.Errors = append(g.Errors, d)
}
