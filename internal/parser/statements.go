package parser

import (
	"fmt"
	"strings"

	"github.com/odb-lang/odb-compiler/internal/ast"
	"github.com/odb-lang/odb-compiler/internal/diag"
	"github.com/odb-lang/odb-compiler/internal/lexer"
)

// lineEnd lists the tokens that may follow a complete statement.
var lineEnd = []lexer.TokenType{lexer.NEWLINE, lexer.COLON, lexer.EOF, lexer.ELSE, lexer.ENDIF}

// parseStatement parses one statement starting at curTok and leaves curTok
// on its last token.
func (p *Parser) parseStatement() ast.NodeID {
	switch p.curTok.Type {
	case lexer.IDENT:
		if p.peekTok.Type == lexer.COLON {
			return p.tree.NewLabel(ast.Sym{Name: p.curTok.Literal, Scope: ast.ScopeLocal}, p.curTok.Span)
		}
		return p.parseIdentStatement()
	case lexer.KEYWORD:
		return p.parseCommandStatement()
	case lexer.CONSTANT:
		return p.parseConstant()
	case lexer.LOCAL:
		return p.parseScopedDecl(ast.ScopeLocal)
	case lexer.GLOBAL:
		return p.parseScopedDecl(ast.ScopeGlobal)
	case lexer.DIM:
		return p.parseDim(ast.ScopeLocal, p.curTok)
	case lexer.TYPE:
		return p.parseTypeDecl()
	case lexer.IF:
		return p.parseIf()
	case lexer.WHILE:
		return p.parseWhile()
	case lexer.REPEAT:
		return p.parseRepeat()
	case lexer.DO:
		return p.parseDo()
	case lexer.FOR:
		return p.parseFor()
	case lexer.SELECT:
		return p.parseSelect()
	case lexer.EXIT:
		if p.loopDepth == 0 {
			p.fail(ParseError{
				Code:    diag.CodeParseExitOutsideLoop,
				Span:    p.curTok.Span,
				Message: "exit used outside of a loop",
			})
		}
		return p.tree.NewBreak(p.curTok.Span)
	case lexer.EXITFUNCTION:
		return p.parseExitFunction()
	case lexer.GOTO:
		gotoTok := p.curTok
		p.expect(lexer.IDENT, "a label name")
		return p.tree.NewGoto(p.curTok.Literal, mergeSpan(gotoTok.Span, p.curTok.Span))
	case lexer.GOSUB:
		gosubTok := p.curTok
		p.expect(lexer.IDENT, "a label name")
		return p.tree.NewSubCall(ast.Sym{Name: p.curTok.Literal}, mergeSpan(gosubTok.Span, p.curTok.Span))
	case lexer.RETURN:
		return p.tree.NewSubReturn(p.curTok.Span)
	case lexer.END:
		return p.tree.NewKeyword(ast.Sym{Name: EndCommand, Scope: ast.ScopeGlobal}, ast.NoNode, p.curTok.Span)
	case lexer.INC, lexer.DEC:
		return p.parseIncDec()
	case lexer.FUNCTION:
		p.fail(ParseError{
			Code:    diag.CodeParseUnexpectedToken,
			Span:    p.curTok.Span,
			Message: "function definitions are only allowed at the top level",
		})
	}
	p.failUnexpected(p.curTok, "")
	return ast.NoNode
}

// EndCommand is the name given to the `end` statement, which is lowered
// like a command without a plugin.
const EndCommand = "end"

// parseBlock parses statements until one of closers. open is the token that
// started the construct; curTok is on the last token of the opening line
// and finishes on the closer.
func (p *Parser) parseBlock(open lexer.Token, closers ...lexer.TokenType) ast.NodeID {
	block := p.tree.NewBlock(nil, open.Span)
	p.nextToken()
	for !p.curIs(closers...) {
		if p.curTok.Type == lexer.EOF {
			names := make([]string, len(closers))
			for i, c := range closers {
				names[i] = "`" + strings.ToLower(string(c)) + "`"
			}
			p.failUnterminated(open, strings.Join(names, " or "))
		}
		if p.skipSeparators() {
			continue
		}
		p.tree.AppendStmt(block, p.parseStatement())
		p.endStatement()
	}
	p.tree.SetSpan(block, mergeSpan(open.Span, p.curTok.Span))
	return block
}

// parseInlineBlock parses `stmt {: stmt}` up to the end of the line or an
// else/endif. curTok stays on the last consumed token.
func (p *Parser) parseInlineBlock(open lexer.Token, stop ...lexer.TokenType) ast.NodeID {
	block := p.tree.NewBlock(nil, open.Span)
	for !p.peekIs(stop...) {
		p.nextToken()
		if p.curTok.Type == lexer.COLON {
			continue
		}
		p.tree.AppendStmt(block, p.parseStatement())
		if !p.peekIs(lineEnd...) {
			p.failUnexpected(p.peekTok, "expected end of statement")
		}
	}
	p.tree.SetSpan(block, mergeSpan(open.Span, p.curTok.Span))
	return block
}

func (p *Parser) withLoop(fn func() ast.NodeID) ast.NodeID {
	p.loopDepth++
	defer func() { p.loopDepth-- }()
	return fn()
}

// parseIdentStatement handles assignments, implicit declarations
// (`a as float`) and calls to user functions.
func (p *Parser) parseIdentStatement() ast.NodeID {
	nameTok := p.curTok
	name, span := p.parseName()

	if p.peekTok.Type == lexer.AS {
		return p.parseVarDeclTail(ast.ScopeLocal, name, span)
	}

	var target ast.NodeID
	if p.peekTok.Type == lexer.LPAREN {
		p.nextToken()
		args, argSpan := p.parseCallArgs()
		span = mergeSpan(span, argSpan)
		arr, ok := p.lookupArray(name)
		if !ok {
			if p.peekTok.Type == lexer.ASSIGN {
				p.fail(ParseError{
					Code:    diag.CodeParseUndeclaredArray,
					Span:    span,
					Message: fmt.Sprintf("assignment to undeclared array %s", name),
					Help:    fmt.Sprintf("declare it first, e.g. `dim %s(10)`", name),
				})
			}
			return p.tree.NewFuncCall(ast.Sym{Name: name, Type: ast.SuffixType(name), Scope: ast.ScopeGlobal}, args, span)
		}
		if args == ast.NoNode {
			p.failAt(diag.CodeParseExpectedExpr, span, "array %s needs at least one index", name)
		}
		target = p.tree.NewArrayRef(arr, args, span)
	} else {
		if _, ok := p.lookupConst(name); ok {
			p.failAt(diag.CodeParseInvalidTarget, span, "cannot assign to constant %s", name)
		}
		if p.peekTok.Type != lexer.ASSIGN && p.peekTok.Type != lexer.DOT {
			p.failUnexpected(nameTok, "")
		}
		sym, fields, vspan := p.parseVariable(name, span)
		target = p.tree.NewVarRef(sym, fields, vspan)
		span = vspan
	}

	p.expect(lexer.ASSIGN, "`=`")
	p.nextToken()
	value := p.parseExpr()
	return p.tree.NewAssignment(target, value, mergeSpan(span, p.tree.Span(value)))
}

// parseCommandStatement parses a command invocation whose arguments follow
// without parentheses, e.g. `make object cube 1, 10`.
func (p *Parser) parseCommandStatement() ast.NodeID {
	tok := p.curTok
	kw, ok := p.keywords.Lookup(tok.Value)
	if !ok {
		p.failAt(diag.CodeParseUnexpectedToken, tok.Span, "unknown command %s", tok.Literal)
	}
	sym := ast.Sym{Name: kw.Name, Type: ast.TypeNone, Scope: ast.ScopeGlobal}
	if p.peekIs(lineEnd...) {
		return p.tree.NewKeyword(sym, ast.NoNode, tok.Span)
	}

	p.nextToken()
	var items []ast.NodeID
	if p.curTok.Type == lexer.LPAREN {
		// `print (a+b)*2, c` and `sync rate(60)` both start with a parenthesis.
		open := p.curTok
		if p.peekTok.Type == lexer.RPAREN {
			p.nextToken()
		} else {
			p.nextToken()
			items = p.parseExprList()
			p.expect(lexer.RPAREN, "`,` or `)`")
			if len(items) == 1 {
				p.tree.SetSpan(items[0], mergeSpan(open.Span, p.curTok.Span))
				items[0] = p.continueExpr(items[0], precedenceLowest)
			}
		}
		if p.peekTok.Type == lexer.COMMA {
			p.nextToken()
			p.nextToken()
			items = append(items, p.parseExprList()...)
		}
	} else {
		items = p.parseExprList()
	}

	args := p.tree.NewCommaList(items, mergeSpan(tok.Span, p.curTok.Span))
	return p.tree.NewKeyword(sym, args, mergeSpan(tok.Span, p.curTok.Span))
}

func (p *Parser) parseConstant() ast.NodeID {
	constTok := p.curTok
	p.expect(lexer.IDENT, "a constant name")
	name, _ := p.parseName()
	if p.peekTok.Type == lexer.ASSIGN {
		p.nextToken()
	}
	p.nextToken()
	value := p.parseExpr()

	typ := ast.SuffixType(name)
	if lit, ok := p.tree.Node(value).(*ast.Literal); ok && !ast.HasSuffix(name) {
		typ = lit.Type
	}
	sym := ast.Sym{Name: name, Type: typ, Scope: ast.ScopeGlobal}
	p.syms.consts[key(name)] = sym
	return p.tree.NewConstDecl(sym, value, mergeSpan(constTok.Span, p.tree.Span(value)))
}

// parseScopedDecl handles `local`/`global` followed by a variable or a dim.
func (p *Parser) parseScopedDecl(scope ast.Scope) ast.NodeID {
	scopeTok := p.curTok
	if p.peekTok.Type == lexer.DIM {
		p.nextToken()
		return p.parseDim(scope, scopeTok)
	}
	p.expect(lexer.IDENT, "a variable name")
	name, span := p.parseName()
	return p.parseVarDeclTail(scope, name, mergeSpan(scopeTok.Span, span))
}

// parseVarDeclTail parses `[as type] [= init]` after a declared name.
func (p *Parser) parseVarDeclTail(scope ast.Scope, name string, span lexer.Span) ast.NodeID {
	sym := ast.Sym{Name: name, Type: ast.SuffixType(name), Scope: scope}
	udt := ast.NoNode
	if p.peekTok.Type == lexer.AS {
		p.nextToken()
		p.nextToken()
		typ, typeName, tspan := p.parseTypeName()
		p.checkSuffix(name, typ, tspan)
		sym.Type, sym.TypeName = typ, typeName
		if typ == ast.TypeUDT {
			udt = p.tree.NewUDTRef(ast.Sym{Name: typeName, Type: ast.TypeUDT, TypeName: typeName}, tspan)
		}
		span = mergeSpan(span, tspan)
	}

	init := ast.NoNode
	if p.peekTok.Type == lexer.ASSIGN {
		if sym.Type == ast.TypeUDT {
			p.failAt(diag.CodeParseUnexpectedToken, p.peekTok.Span, "variables of type %s cannot have an initialiser", sym.TypeName)
		}
		p.nextToken()
		p.nextToken()
		init = p.parseExpr()
		span = mergeSpan(span, p.tree.Span(init))
	}

	p.declareVar(sym)
	return p.tree.NewVarDecl(sym, init, udt, span)
}

// parseTypeName parses the word after `as`.
func (p *Parser) parseTypeName() (ast.DataType, string, lexer.Span) {
	tok := p.curTok
	switch tok.Type {
	case lexer.TYPE_INTEGER:
		return ast.TypeInteger, "", tok.Span
	case lexer.TYPE_FLOAT:
		return ast.TypeFloat, "", tok.Span
	case lexer.TYPE_STRING:
		return ast.TypeString, "", tok.Span
	case lexer.TYPE_BOOLEAN:
		return ast.TypeBoolean, "", tok.Span
	case lexer.IDENT:
		switch strings.ToLower(tok.Literal) {
		case "dword", "word", "byte":
			return ast.TypeInteger, "", tok.Span
		case "double":
			if p.peekTok.Type == lexer.TYPE_FLOAT || (p.peekTok.Type == lexer.TYPE_INTEGER) {
				p.nextToken()
				if p.curTok.Type == lexer.TYPE_INTEGER {
					return ast.TypeInteger, "", mergeSpan(tok.Span, p.curTok.Span)
				}
				return ast.TypeFloat, "", mergeSpan(tok.Span, p.curTok.Span)
			}
		}
		if u, ok := p.lookupUDT(tok.Literal); ok {
			return ast.TypeUDT, u.name, tok.Span
		}
		p.fail(ParseError{
			Code:    diag.CodeParseUnknownType,
			Span:    tok.Span,
			Message: fmt.Sprintf("unknown type %s", tok.Literal),
			Help:    "declare it with `type … endtype` before use",
		})
	}
	p.failExpected("a type name", tok)
	return ast.TypeNone, "", tok.Span
}

func (p *Parser) checkSuffix(name string, typ ast.DataType, span lexer.Span) {
	if ast.HasSuffix(name) && ast.SuffixType(name) != typ {
		p.fail(ParseError{
			Code:    diag.CodeTypeConflict,
			Span:    span,
			Message: fmt.Sprintf("%s is declared as %s but its suffix implies %s", name, typ, ast.SuffixType(name)),
		})
	}
}

// parseDim parses `dim name(dims) [as type]`. start is the first token of
// the statement (`dim`, `local` or `global`).
func (p *Parser) parseDim(scope ast.Scope, start lexer.Token) ast.NodeID {
	p.expect(lexer.IDENT, "an array name")
	name, _ := p.parseName()
	p.expect(lexer.LPAREN, "`(` after the array name")
	dims, span := p.parseCallArgs()
	if dims == ast.NoNode {
		p.failAt(diag.CodeParseExpectedExpr, span, "array %s needs at least one dimension", name)
	}
	span = mergeSpan(start.Span, span)

	sym := ast.Sym{Name: name, Type: ast.SuffixType(name), Scope: scope}
	if p.peekTok.Type == lexer.AS {
		p.nextToken()
		p.nextToken()
		typ, typeName, tspan := p.parseTypeName()
		p.checkSuffix(name, typ, tspan)
		sym.Type, sym.TypeName = typ, typeName
		span = mergeSpan(span, tspan)
	}
	p.declareArray(sym)
	return p.tree.NewArrayDecl(sym, dims, span)
}

// parseTypeDecl parses `type Name` field lines `endtype`.
func (p *Parser) parseTypeDecl() ast.NodeID {
	typeTok := p.curTok
	p.expect(lexer.IDENT, "a type name")
	name := p.curTok.Literal
	if _, ok := p.lookupUDT(name); ok {
		p.failAt(diag.CodeTypeDuplicateDecl, p.curTok.Span, "type %s is already declared", name)
	}
	info := &udtInfo{name: name, fields: map[string]ast.Sym{}}

	var fields []ast.NodeID
	p.nextToken()
	for p.curTok.Type != lexer.ENDTYPE {
		if p.curTok.Type == lexer.EOF {
			p.failUnterminated(typeTok, "`endtype`")
		}
		if p.skipSeparators() {
			continue
		}
		fname, fspan := p.parseName()
		if _, dup := info.fields[key(fname)]; dup {
			p.failAt(diag.CodeTypeDuplicateDecl, fspan, "field %s is already declared in %s", fname, name)
		}
		sym := ast.Sym{Name: fname, Type: ast.SuffixType(fname), Scope: ast.ScopeLocal}
		udt := ast.NoNode
		if p.peekTok.Type == lexer.AS {
			p.nextToken()
			p.nextToken()
			typ, typeName, tspan := p.parseTypeName()
			p.checkSuffix(fname, typ, tspan)
			sym.Type, sym.TypeName = typ, typeName
			if typ == ast.TypeUDT {
				udt = p.tree.NewUDTRef(ast.Sym{Name: typeName, Type: ast.TypeUDT, TypeName: typeName}, tspan)
			}
			fspan = mergeSpan(fspan, tspan)
		}
		info.fields[key(fname)] = sym
		fields = append(fields, p.tree.NewVarDecl(sym, ast.NoNode, udt, fspan))
		p.endStatement()
	}

	span := mergeSpan(typeTok.Span, p.curTok.Span)
	p.syms.udts[key(name)] = info
	list := p.tree.NewUDTFieldList(fields, span)
	return p.tree.NewUDTDecl(ast.Sym{Name: name, Type: ast.TypeUDT, Scope: ast.ScopeGlobal, TypeName: name}, list, span)
}

// parseIf handles both the single-line `if c then a else b` form and the
// block form with elseif/else/endif.
func (p *Parser) parseIf() ast.NodeID {
	ifTok := p.curTok
	p.nextToken()
	cond := p.parseExpr()

	if p.peekTok.Type == lexer.THEN {
		p.nextToken()
		if !p.peekIs(lexer.NEWLINE, lexer.EOF) {
			return p.parseInlineIf(ifTok, cond)
		}
	}
	return p.parseBlockIf(ifTok, cond)
}

func (p *Parser) parseInlineIf(ifTok lexer.Token, cond ast.NodeID) ast.NodeID {
	then := p.parseInlineBlock(p.curTok, lexer.NEWLINE, lexer.EOF, lexer.ELSE, lexer.ENDIF)
	els := ast.NoNode
	if p.peekTok.Type == lexer.ELSE {
		p.nextToken()
		els = p.parseInlineBlock(p.curTok, lexer.NEWLINE, lexer.EOF, lexer.ENDIF)
	}
	if p.peekTok.Type == lexer.ENDIF {
		p.nextToken()
	}
	return p.tree.NewBranch(cond, then, els, mergeSpan(ifTok.Span, p.curTok.Span))
}

func (p *Parser) parseBlockIf(open lexer.Token, cond ast.NodeID) ast.NodeID {
	then := p.parseBlock(open, lexer.ELSE, lexer.ELSEIF, lexer.ENDIF)
	els := ast.NoNode
	switch p.curTok.Type {
	case lexer.ELSE:
		els = p.parseBlock(p.curTok, lexer.ENDIF)
	case lexer.ELSEIF:
		elseifTok := p.curTok
		p.nextToken()
		elseCond := p.parseExpr()
		if p.peekTok.Type == lexer.THEN {
			p.nextToken()
		}
		els = p.parseBlockIf(elseifTok, elseCond)
	}
	return p.tree.NewBranch(cond, then, els, mergeSpan(open.Span, p.curTok.Span))
}

func (p *Parser) parseWhile() ast.NodeID {
	whileTok := p.curTok
	p.nextToken()
	cond := p.parseExpr()
	body := p.withLoop(func() ast.NodeID { return p.parseBlock(whileTok, lexer.ENDWHILE) })
	return p.tree.NewLoopWhile(cond, body, mergeSpan(whileTok.Span, p.curTok.Span))
}

func (p *Parser) parseRepeat() ast.NodeID {
	repeatTok := p.curTok
	body := p.withLoop(func() ast.NodeID { return p.parseBlock(repeatTok, lexer.UNTIL) })
	p.nextToken()
	cond := p.parseExpr()
	return p.tree.NewLoopUntil(cond, body, mergeSpan(repeatTok.Span, p.tree.Span(cond)))
}

func (p *Parser) parseDo() ast.NodeID {
	doTok := p.curTok
	body := p.withLoop(func() ast.NodeID { return p.parseBlock(doTok, lexer.LOOP) })
	return p.tree.NewLoop(body, mergeSpan(doTok.Span, p.curTok.Span))
}

func (p *Parser) parseFor() ast.NodeID {
	forTok := p.curTok
	p.expect(lexer.IDENT, "a loop variable")
	name, vspan := p.parseName()
	sym, _, _ := p.parseVariable(name, vspan)
	v := p.tree.NewVarRef(sym, nil, vspan)

	p.expect(lexer.ASSIGN, "`=`")
	p.nextToken()
	start := p.parseExpr()
	p.expect(lexer.TO, "`to`")
	p.nextToken()
	end := p.parseExpr()
	step := ast.NoNode
	if p.peekTok.Type == lexer.STEP {
		p.nextToken()
		p.nextToken()
		step = p.parseExpr()
	}

	body := p.withLoop(func() ast.NodeID { return p.parseBlock(forTok, lexer.NEXT) })
	if p.peekTok.Type == lexer.IDENT {
		p.nextToken()
		nextName, nspan := p.parseName()
		if !strings.EqualFold(nextName, name) {
			p.fail(ParseError{
				Code:    diag.CodeParseMismatchedNext,
				Span:    nspan,
				Message: fmt.Sprintf("next %s does not match for %s", nextName, name),
				Related: []RelatedSpan{{Span: vspan, Label: "loop variable declared here"}},
			})
		}
	}
	return p.tree.NewFor(v, start, end, step, body, mergeSpan(forTok.Span, p.curTok.Span))
}

func (p *Parser) parseSelect() ast.NodeID {
	selectTok := p.curTok
	p.nextToken()
	expr := p.parseExpr()

	var cases []ast.NodeID
	def := ast.NoNode
	p.nextToken()
	for p.curTok.Type != lexer.ENDSELECT {
		switch {
		case p.curTok.Type == lexer.EOF:
			p.failUnterminated(selectTok, "`endselect`")
		case p.skipSeparators():
			continue
		case p.curTok.Type != lexer.CASE:
			p.failExpected("`case` or `endselect`", p.curTok)
		}

		caseTok := p.curTok
		if p.peekTok.Type == lexer.DEFAULT {
			p.nextToken()
			if def != ast.NoNode {
				p.failAt(diag.CodeTypeDuplicateDecl, caseTok.Span, "select has more than one `case default`")
			}
			def = p.parseBlock(caseTok, lexer.ENDCASE)
		} else {
			p.nextToken()
			values := p.tree.NewCommaList(p.parseExprList(), caseTok.Span)
			body := p.parseBlock(caseTok, lexer.ENDCASE)
			cases = append(cases, p.tree.NewCase(values, body, mergeSpan(caseTok.Span, p.curTok.Span)))
		}
		p.nextToken()
	}
	return p.tree.NewSelect(expr, cases, def, mergeSpan(selectTok.Span, p.curTok.Span))
}

func (p *Parser) parseExitFunction() ast.NodeID {
	tok := p.curTok
	if p.fn == nil {
		p.fail(ParseError{
			Code:    diag.CodeParseExitFunctionOutside,
			Span:    tok.Span,
			Message: "exitfunction used outside of a function",
		})
	}
	value := ast.NoNode
	span := tok.Span
	if !p.peekIs(lineEnd...) {
		p.nextToken()
		value = p.parseExpr()
		span = mergeSpan(span, p.tree.Span(value))
	}
	return p.tree.NewFuncReturn(value, span)
}

func (p *Parser) parseIncDec() ast.NodeID {
	opTok := p.curTok
	p.expect(lexer.IDENT, "a variable")
	target := p.parseAssignable()
	amount := ast.NoNode
	if p.peekTok.Type == lexer.COMMA {
		p.nextToken()
		p.nextToken()
		amount = p.parseExpr()
	}
	span := mergeSpan(opTok.Span, p.curTok.Span)
	if opTok.Type == lexer.INC {
		return p.tree.NewInc(target, amount, span)
	}
	return p.tree.NewDec(target, amount, span)
}

// parseAssignable parses a variable or a declared array element.
func (p *Parser) parseAssignable() ast.NodeID {
	name, span := p.parseName()
	if p.peekTok.Type == lexer.LPAREN {
		arr, ok := p.lookupArray(name)
		if !ok {
			p.fail(ParseError{
				Code:    diag.CodeParseUndeclaredArray,
				Span:    span,
				Message: fmt.Sprintf("%s is not a declared array", name),
				Help:    fmt.Sprintf("declare it first, e.g. `dim %s(10)`", name),
			})
		}
		p.nextToken()
		args, argSpan := p.parseCallArgs()
		if args == ast.NoNode {
			p.failAt(diag.CodeParseExpectedExpr, argSpan, "array %s needs at least one index", name)
		}
		return p.tree.NewArrayRef(arr, args, mergeSpan(span, argSpan))
	}
	if _, ok := p.lookupConst(name); ok {
		p.failAt(diag.CodeParseInvalidTarget, span, "cannot modify constant %s", name)
	}
	sym, fields, span := p.parseVariable(name, span)
	return p.tree.NewVarRef(sym, fields, span)
}

// parseFunction parses a top-level `function … endfunction [value]`.
func (p *Parser) parseFunction() ast.NodeID {
	funcTok := p.curTok
	p.expect(lexer.IDENT, "a function name")
	name, _ := p.parseName()
	p.expect(lexer.LPAREN, "`(` after the function name")

	p.fn = newScope()
	defer func() { p.fn = nil }()

	var params []ast.NodeID
	if p.peekTok.Type == lexer.RPAREN {
		p.nextToken()
	} else {
		for {
			p.expect(lexer.IDENT, "a parameter name")
			pname, pspan := p.parseName()
			params = append(params, p.parseVarDeclTail(ast.ScopeLocal, pname, pspan))
			if p.peekTok.Type == lexer.RPAREN {
				p.nextToken()
				break
			}
			p.expect(lexer.COMMA, "`,` or `)` in the parameter list")
		}
	}

	saved := p.loopDepth
	p.loopDepth = 0
	body := p.parseBlock(funcTok, lexer.ENDFUNCTION)
	p.loopDepth = saved

	ret := ast.NoNode
	if !p.peekIs(lineEnd...) {
		p.nextToken()
		ret = p.parseExpr()
	}

	typ := ast.TypeNone
	switch {
	case ast.HasSuffix(name):
		typ = ast.SuffixType(name)
	case ret != ast.NoNode:
		typ = p.guessType(ret)
	}
	sym := ast.Sym{Name: name, Type: typ, Scope: ast.ScopeGlobal}
	return p.tree.NewFuncDecl(sym, params, body, ret, mergeSpan(funcTok.Span, p.curTok.Span))
}

// guessType gives a provisional type for an expression; the type checker
// computes the final one.
func (p *Parser) guessType(id ast.NodeID) ast.DataType {
	switch n := p.tree.Node(id).(type) {
	case *ast.Literal:
		return n.Type
	case *ast.BinaryOp:
		if n.Op.IsComparison() {
			return ast.TypeBoolean
		}
		return p.guessType(n.Left)
	case *ast.UnaryOp:
		return p.guessType(n.Operand)
	}
	if sym := p.tree.SymOf(id); sym != nil {
		return sym.Type
	}
	return ast.TypeInteger
}
