package parser

import (
	"log/slog"

	"github.com/odb-lang/odb-compiler/internal/ast"
	"github.com/odb-lang/odb-compiler/internal/diag"
	"github.com/odb-lang/odb-compiler/internal/keywords"
	"github.com/odb-lang/odb-compiler/internal/lexer"
)

type (
	prefixParseFn func() ast.NodeID
	infixParseFn  func(ast.NodeID) ast.NodeID
)

type Option func(*options)

type options struct {
	filename string
	keywords *keywords.Index
	symbols  *Symbols
	logger   *slog.Logger
}

// WithFilename configures the parser to attribute all emitted spans to the provided filename.
func WithFilename(name string) Option {
	return func(o *options) {
		o.filename = name
	}
}

// WithKeywords enables command recognition. Without an index every word is
// an identifier.
func WithKeywords(ix *keywords.Index) Option {
	return func(o *options) {
		o.keywords = ix
	}
}

// WithSymbols shares declarations (arrays, constants, types, globals)
// between the files of one program. The table is only updated when a parse
// succeeds.
func WithSymbols(s *Symbols) Option {
	return func(o *options) {
		o.symbols = s
	}
}

// WithLogger routes merger debug output to logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

const (
	precedenceLowest = iota
	precedenceComma
	precedenceOr
	precedenceAnd
	precedenceNot
	precedenceComparison
	precedenceBitwise
	precedenceShift
	precedenceSum
	precedenceProduct
	precedencePower
	precedencePrefix
)

var precedences = map[lexer.TokenType]int{
	lexer.OR:       precedenceOr,
	lexer.XOR:      precedenceOr,
	lexer.AND:      precedenceAnd,
	lexer.ASSIGN:   precedenceComparison,
	lexer.NOT_EQ:   precedenceComparison,
	lexer.LT:       precedenceComparison,
	lexer.LE:       precedenceComparison,
	lexer.GT:       precedenceComparison,
	lexer.GE:       precedenceComparison,
	lexer.BOR:      precedenceBitwise,
	lexer.BAND:     precedenceBitwise,
	lexer.BXOR:     precedenceBitwise,
	lexer.SHL:      precedenceShift,
	lexer.SHR:      precedenceShift,
	lexer.PLUS:     precedenceSum,
	lexer.MINUS:    precedenceSum,
	lexer.ASTERISK: precedenceProduct,
	lexer.SLASH:    precedenceProduct,
	lexer.MOD:      precedenceProduct,
	lexer.CARET:    precedencePower,
}

var binaryOps = map[lexer.TokenType]ast.Kind{
	lexer.OR:       ast.OpOr,
	lexer.XOR:      ast.OpXor,
	lexer.AND:      ast.OpAnd,
	lexer.ASSIGN:   ast.OpEq,
	lexer.NOT_EQ:   ast.OpNe,
	lexer.LT:       ast.OpLt,
	lexer.LE:       ast.OpLe,
	lexer.GT:       ast.OpGt,
	lexer.GE:       ast.OpGe,
	lexer.BOR:      ast.OpBitOr,
	lexer.BAND:     ast.OpBitAnd,
	lexer.BXOR:     ast.OpBitXor,
	lexer.SHL:      ast.OpShl,
	lexer.SHR:      ast.OpShr,
	lexer.PLUS:     ast.OpAdd,
	lexer.MINUS:    ast.OpSub,
	lexer.ASTERISK: ast.OpMul,
	lexer.SLASH:    ast.OpDiv,
	lexer.MOD:      ast.OpMod,
	lexer.CARET:    ast.OpPow,
}

// Parser is a Pratt-style recursive descent parser over the merged token
// stream. It builds into a private fragment tree and stops at the first
// error, so a failed parse never leaves partial nodes anywhere visible.
//
//   - Lookahead: curTok is the token under examination and peekTok the next
//     one. Only nextToken moves the window. Expression parsers leave curTok
//     on the last token they consumed.
//   - Spans: node spans are composed with mergeSpan and grow monotonically.
type Parser struct {
	lx      *lexer.Lexer
	src     lexer.TokenSource
	curTok  lexer.Token
	peekTok lexer.Token

	errors []ParseError

	filename string
	input    []byte
	keywords *keywords.Index
	tree     *ast.Tree

	shared *Symbols
	syms   *Symbols
	fn     *scope // nil outside function bodies

	loopDepth int

	prefixFns map[lexer.TokenType]prefixParseFn
	infixFns  map[lexer.TokenType]infixParseFn
}

// New returns a parser initialised with the provided source input.
func New(input []byte, opts ...Option) *Parser {
	cfg := options{}
	for _, opt := range opts {
		opt(&cfg)
	}

	shared := cfg.symbols
	if shared == nil {
		shared = NewSymbols()
	}

	p := &Parser{
		lx:        lexer.New(input),
		filename:  cfg.filename,
		input:     input,
		keywords:  cfg.keywords,
		tree:      ast.NewTree(),
		shared:    shared,
		syms:      shared.clone(),
		prefixFns: make(map[lexer.TokenType]prefixParseFn),
		infixFns:  make(map[lexer.TokenType]infixParseFn),
	}
	if cfg.filename != "" {
		p.lx.SetFilename(cfg.filename)
	}

	p.src = p.lx
	if cfg.keywords != nil {
		var mopts []lexer.MergerOption
		if cfg.logger != nil {
			mopts = append(mopts, lexer.WithLogger(cfg.logger))
		}
		p.src = lexer.NewMerger(p.lx, cfg.keywords, mopts...)
	}

	p.registerPrefix(lexer.INT, p.parseIntegerLiteral)
	p.registerPrefix(lexer.FLOAT, p.parseFloatLiteral)
	p.registerPrefix(lexer.STRING, p.parseStringLiteral)
	p.registerPrefix(lexer.TRUE, p.parseBoolLiteral)
	p.registerPrefix(lexer.FALSE, p.parseBoolLiteral)
	p.registerPrefix(lexer.MINUS, p.parsePrefixExpr)
	p.registerPrefix(lexer.NOT, p.parsePrefixExpr)
	p.registerPrefix(lexer.BNOT, p.parsePrefixExpr)
	p.registerPrefix(lexer.LPAREN, p.parseGroupedExpr)
	p.registerPrefix(lexer.IDENT, p.parseIdentifier)
	p.registerPrefix(lexer.KEYWORD, p.parseKeywordExpr)

	for tt := range binaryOps {
		p.registerInfix(tt, p.parseInfixExpr)
	}

	// Seed curTok/peekTok.
	p.nextToken()
	p.nextToken()

	return p
}

// Errors returns the parse errors encountered. Parsing stops at the first
// one, so there is at most one unless the lexer also reported problems.
func (p *Parser) Errors() []ParseError {
	return p.errors
}

// ParseProgram parses the whole input into a fresh tree whose root is a
// Block. On failure the tree is nil and the error is a diag.List.
func (p *Parser) ParseProgram() (tree *ast.Tree, err error) {
	defer func() {
		if r := recover(); r != nil {
			if _, ok := r.(bailout); !ok {
				panic(r)
			}
			tree, err = nil, p.diagnostics()
		}
	}()

	start := p.curTok.Span
	block := p.tree.NewBlock(nil, start)
	for p.curTok.Type != lexer.EOF {
		if p.skipSeparators() {
			continue
		}
		if p.curTok.Type == lexer.FUNCTION {
			p.tree.AppendStmt(block, p.parseFunction())
		} else {
			p.tree.AppendStmt(block, p.parseStatement())
		}
		p.endStatement()
	}
	p.tree.SetSpan(block, mergeSpan(start, p.curTok.Span))
	p.tree.SetRoot(block)

	if len(p.lx.Errors) > 0 {
		return nil, p.diagnostics()
	}

	p.tree.SetSource(&ast.Source{Filename: p.filename, Text: p.input})
	p.shared.commit(p.syms)
	return p.tree, nil
}

// Parse is a convenience wrapper around New(...).ParseProgram().
func Parse(input []byte, opts ...Option) (*ast.Tree, error) {
	return New(input, opts...).ParseProgram()
}

func (p *Parser) diagnostics() error {
	var list diag.List
	for _, e := range p.lx.Errors {
		list = append(list, e.ToDiagnostic())
	}
	for _, e := range p.errors {
		list = append(list, e.ToDiagnostic())
	}
	return list
}

// nextToken advances the parser's token window.
func (p *Parser) nextToken() {
	p.curTok = p.peekTok
	p.peekTok = p.src.NextToken()
}

// expect asserts that the peek token matches tt and promotes it into curTok.
func (p *Parser) expect(tt lexer.TokenType, what string) {
	if p.peekTok.Type == tt {
		p.nextToken()
		return
	}
	p.failExpected(what, p.peekTok)
}

func (p *Parser) curIs(types ...lexer.TokenType) bool {
	for _, tt := range types {
		if p.curTok.Type == tt {
			return true
		}
	}
	return false
}

func (p *Parser) peekIs(types ...lexer.TokenType) bool {
	for _, tt := range types {
		if p.peekTok.Type == tt {
			return true
		}
	}
	return false
}

// skipSeparators consumes a newline or colon under curTok.
func (p *Parser) skipSeparators() bool {
	if p.curIs(lexer.NEWLINE, lexer.COLON) {
		p.nextToken()
		return true
	}
	return false
}

// endStatement moves past the last token of a statement and checks that a
// separator (or something that legitimately ends a line) follows.
func (p *Parser) endStatement() {
	p.nextToken()
	if !p.curIs(lexer.NEWLINE, lexer.COLON, lexer.EOF, lexer.ELSE, lexer.ENDIF) {
		p.failUnexpected(p.curTok, "expected end of statement")
	}
}

func (p *Parser) registerPrefix(tokenType lexer.TokenType, fn prefixParseFn) {
	p.prefixFns[tokenType] = fn
}

func (p *Parser) registerInfix(tokenType lexer.TokenType, fn infixParseFn) {
	p.infixFns[tokenType] = fn
}

func (p *Parser) peekPrecedence() int {
	if prec, ok := precedences[p.peekTok.Type]; ok {
		return prec
	}
	return precedenceLowest
}

func (p *Parser) curPrecedence() int {
	if prec, ok := precedences[p.curTok.Type]; ok {
		return prec
	}
	return precedenceLowest
}

// adjacent reports whether b starts exactly where a ends.
func adjacent(a, b lexer.Token) bool {
	return a.Span.End == b.Span.Start
}

// mergeSpan assumes start.End <= end.End and returns a span covering both.
func mergeSpan(start, end lexer.Span) lexer.Span {
	span := start
	if span.Filename == "" {
		span.Filename = end.Filename
	}
	if span.Line == 0 && end.Line != 0 {
		span.Line = end.Line
		span.Column = end.Column
		span.Start = end.Start
	}
	if end.End > span.End {
		span.End = end.End
	}
	return span
}
