package parser

import (
	"fmt"
	"strconv"

	"github.com/odb-lang/odb-compiler/internal/ast"
	"github.com/odb-lang/odb-compiler/internal/diag"
	"github.com/odb-lang/odb-compiler/internal/lexer"
)

func (p *Parser) parseExpr() ast.NodeID {
	return p.parseExprPrecedence(precedenceLowest)
}

func (p *Parser) parseExprPrecedence(precedence int) ast.NodeID {
	prefix := p.prefixFns[p.curTok.Type]
	if prefix == nil {
		p.fail(ParseError{
			Code:    diag.CodeParseExpectedExpr,
			Span:    p.curTok.Span,
			Message: fmt.Sprintf("expected an expression, found %s", describe(p.curTok)),
		})
	}
	return p.continueExpr(prefix(), precedence)
}

// continueExpr applies infix operators to an already parsed left operand.
func (p *Parser) continueExpr(left ast.NodeID, precedence int) ast.NodeID {
	for precedence < p.peekPrecedence() {
		infix := p.infixFns[p.peekTok.Type]
		if infix == nil {
			break
		}
		p.nextToken()
		left = infix(left)
	}
	return left
}

func (p *Parser) parseInfixExpr(left ast.NodeID) ast.NodeID {
	opTok := p.curTok
	op := binaryOps[opTok.Type]
	precedence := p.curPrecedence()
	p.nextToken()
	right := p.parseExprPrecedence(precedence)
	span := mergeSpan(p.tree.Span(left), p.tree.Span(right))
	return p.tree.NewBinaryOp(op, left, right, span)
}

func (p *Parser) parsePrefixExpr() ast.NodeID {
	opTok := p.curTok
	p.nextToken()

	switch opTok.Type {
	case lexer.NOT:
		operand := p.parseExprPrecedence(precedenceNot)
		return p.tree.NewUnaryOp(ast.OpNot, operand, mergeSpan(opTok.Span, p.tree.Span(operand)))
	case lexer.BNOT:
		operand := p.parseExprPrecedence(precedencePrefix)
		return p.tree.NewUnaryOp(ast.OpBitNot, operand, mergeSpan(opTok.Span, p.tree.Span(operand)))
	}

	operand := p.parseExprPrecedence(precedencePrefix)
	span := mergeSpan(opTok.Span, p.tree.Span(operand))
	// Fold negative numeric literals so `-5` is a constant, not an operation.
	if lit, ok := p.tree.Node(operand).(*ast.Literal); ok && p.tree.Parent(operand) == ast.NoNode {
		switch lit.Type {
		case ast.TypeInteger:
			lit.Int = -lit.Int
			p.tree.SetSpan(operand, span)
			return operand
		case ast.TypeFloat:
			lit.Float = -lit.Float
			p.tree.SetSpan(operand, span)
			return operand
		}
	}
	return p.tree.NewUnaryOp(ast.OpNegate, operand, span)
}

// parseGroupedExpr parses "(expr)" without a dedicated node; the span of the
// inner expression is widened to cover the parentheses.
func (p *Parser) parseGroupedExpr() ast.NodeID {
	start := p.curTok.Span
	p.nextToken()
	expr := p.parseExpr()
	p.expect(lexer.RPAREN, "`)`")
	p.tree.SetSpan(expr, mergeSpan(start, p.curTok.Span))
	return expr
}

func (p *Parser) parseIntegerLiteral() ast.NodeID {
	v, err := lexer.IntValue(p.curTok.Literal)
	if err != nil {
		p.fail(ParseError{
			Code:    diag.CodeParseInvalidLiteral,
			Span:    p.curTok.Span,
			Message: fmt.Sprintf("integer literal %s does not fit in 32 bits", p.curTok.Literal),
		})
	}
	return p.tree.NewIntLiteral(v, p.curTok.Span)
}

func (p *Parser) parseFloatLiteral() ast.NodeID {
	v, err := strconv.ParseFloat(p.curTok.Literal, 64)
	if err != nil {
		p.failAt(diag.CodeParseInvalidLiteral, p.curTok.Span, "invalid float literal %s", p.curTok.Literal)
	}
	return p.tree.NewFloatLiteral(v, p.curTok.Span)
}

func (p *Parser) parseStringLiteral() ast.NodeID {
	return p.tree.NewStringLiteral(p.curTok.Value, p.curTok.Span)
}

func (p *Parser) parseBoolLiteral() ast.NodeID {
	return p.tree.NewBoolLiteral(p.curTok.Type == lexer.TRUE, p.curTok.Span)
}

// parseName reads an identifier plus an adjacent `$`/`#` suffix. curTok ends
// on the last token of the name.
func (p *Parser) parseName() (string, lexer.Span) {
	if p.curTok.Type != lexer.IDENT {
		p.failExpected("a name", p.curTok)
	}
	name, span := p.curTok.Literal, p.curTok.Span
	if lexer.IsTypeSuffix(p.peekTok.Type) && adjacent(p.curTok, p.peekTok) {
		p.nextToken()
		name += p.curTok.Literal
		span = mergeSpan(span, p.curTok.Span)
	}
	return name, span
}

// parseCallArgs parses `( [expr {, expr}] )` with curTok on the opening
// parenthesis. The arguments come back as a comma tree, NoNode when empty.
func (p *Parser) parseCallArgs() (ast.NodeID, lexer.Span) {
	start := p.curTok.Span
	if p.peekTok.Type == lexer.RPAREN {
		p.nextToken()
		return ast.NoNode, mergeSpan(start, p.curTok.Span)
	}
	p.nextToken()
	items := p.parseExprList()
	p.expect(lexer.RPAREN, "`,` or `)`")
	span := mergeSpan(start, p.curTok.Span)
	return p.tree.NewCommaList(items, span), span
}

// parseExprList parses `expr {, expr}`, leaving curTok on the last token of
// the final expression.
func (p *Parser) parseExprList() []ast.NodeID {
	items := []ast.NodeID{p.parseExpr()}
	for p.peekTok.Type == lexer.COMMA {
		p.nextToken()
		p.nextToken()
		items = append(items, p.parseExpr())
	}
	return items
}

// parseIdentifier classifies a name in expression position: constant,
// array element, function call or variable (with optional field path).
func (p *Parser) parseIdentifier() ast.NodeID {
	name, span := p.parseName()

	if p.peekTok.Type == lexer.LPAREN {
		p.nextToken()
		args, argSpan := p.parseCallArgs()
		span = mergeSpan(span, argSpan)
		if arr, ok := p.lookupArray(name); ok {
			if args == ast.NoNode {
				p.failAt(diag.CodeParseExpectedExpr, span, "array %s needs at least one index", name)
			}
			return p.tree.NewArrayRef(arr, args, span)
		}
		return p.tree.NewFuncCall(ast.Sym{Name: name, Type: ast.SuffixType(name), Scope: ast.ScopeGlobal}, args, span)
	}

	if c, ok := p.lookupConst(name); ok {
		return p.tree.NewConstRef(c, span)
	}

	sym, fields, span := p.parseVariable(name, span)
	return p.tree.NewVarRef(sym, fields, span)
}

// parseVariable resolves a variable name and any `.field` path following it.
func (p *Parser) parseVariable(name string, span lexer.Span) (ast.Sym, []string, lexer.Span) {
	sym, ok := p.lookupVar(name)
	if !ok {
		sym = ast.Sym{Name: name, Type: ast.SuffixType(name), Scope: ast.ScopeLocal}
	}

	var fields []string
	for p.peekTok.Type == lexer.DOT {
		p.nextToken()
		p.expect(lexer.IDENT, "a field name after `.`")
		field, fspan := p.parseName()
		fields = append(fields, field)
		span = mergeSpan(span, fspan)
	}
	if len(fields) == 0 {
		return sym, nil, span
	}

	// The reference's type is the type of the last field when the layout is
	// already known; the type checker settles the rest.
	ref := ast.Sym{Name: sym.Name, Type: ast.SuffixType(fields[len(fields)-1]), Scope: sym.Scope, TypeName: sym.TypeName}
	udtName := sym.TypeName
	for _, f := range fields {
		u, ok := p.lookupUDT(udtName)
		if !ok {
			break
		}
		fs, ok := u.fields[key(f)]
		if !ok {
			break
		}
		ref.Type = fs.Type
		udtName = fs.TypeName
	}
	return ref, fields, span
}

// parseKeywordExpr parses a command used for its value, e.g. `rnd(10)`.
func (p *Parser) parseKeywordExpr() ast.NodeID {
	tok := p.curTok
	kw, ok := p.keywords.Lookup(tok.Value)
	if !ok {
		p.failAt(diag.CodeParseUnexpectedToken, tok.Span, "unknown command %s", tok.Literal)
	}
	if !kw.HasReturn() {
		p.fail(ParseError{
			Code:    diag.CodeParseCommandNoValue,
			Span:    tok.Span,
			Message: fmt.Sprintf("command %s does not return a value", kw.Name),
			Help:    "use it as a statement on its own line",
		})
	}

	span := tok.Span
	args := ast.NoNode
	if p.peekTok.Type == lexer.LPAREN {
		p.nextToken()
		var argSpan lexer.Span
		args, argSpan = p.parseCallArgs()
		span = mergeSpan(span, argSpan)
	}
	typ := ast.FromKeywordType(kw.ReturnType())
	if typ == ast.TypeNone {
		// Spec files only name arguments; the command name's suffix decides.
		typ = ast.SuffixType(kw.Name)
	}
	sym := ast.Sym{Name: kw.Name, Type: typ, Scope: ast.ScopeGlobal}
	return p.tree.NewKeyword(sym, args, span)
}
