package types

import (
	"log/slog"

	"github.com/odb-lang/odb-compiler/internal/ast"
	"github.com/odb-lang/odb-compiler/internal/diag"
	"github.com/odb-lang/odb-compiler/internal/keywords"
)

// Checker performs type checking on a program.
type Checker struct {
	GlobalScope *Scope
	Errors      []diag.Diagnostic

	keywords *keywords.Index
	logger   *slog.Logger

	tree  *ast.Tree
	info  *Info
	scope *Scope
	fn    *Function // nil while checking the main program
}

// NewChecker creates a new type checker. ix may be nil, in which case
// command invocations are not checked against the keyword database.
func NewChecker(ix *keywords.Index, logger *slog.Logger) *Checker {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Checker{
		GlobalScope: NewScope(nil),
		keywords:    ix,
		logger:      logger,
	}
}

// Check validates the program and fixes up provisional types in place.
func (c *Checker) Check(prog *ast.Program) *Info {
	c.tree = prog.Tree
	c.info = newInfo()

	// Pass 1: collect declarations visible program-wide
	c.collectDecls(prog)

	// Pass 2: function bodies first, so calls from main see final return
	// types; functions calling each other are checked on demand.
	for _, id := range prog.Functions() {
		c.checkFunction(c.tree.Node(id).(*ast.FuncDecl))
	}

	// Pass 3: the main program
	c.scope = NewScope(c.GlobalScope)
	c.fn = nil
	c.collectLabels(prog.MainStmts())
	for _, id := range prog.MainStmts() {
		c.checkStmt(id)
	}

	c.logger.Debug("type check finished",
		"functions", len(c.info.Functions), "udts", len(c.info.UDTs), "errors", len(c.Errors))
	return c.info
}

// Check runs a fresh Checker over prog. The error, when non-nil, is a
// diag.List.
func Check(prog *ast.Program, ix *keywords.Index, logger *slog.Logger) (*Info, error) {
	c := NewChecker(ix, logger)
	info := c.Check(prog)
	if len(c.Errors) > 0 {
		return nil, diag.List(c.Errors)
	}
	return info, nil
}
