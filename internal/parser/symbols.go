package parser

import (
	"maps"
	"strings"

	"github.com/odb-lang/odb-compiler/internal/ast"
)

// Symbols remembers what earlier statements declared so later references
// can be classified: `A(1)` is an array reference after `dim A(…)` and a
// function call otherwise.
type Symbols struct {
	main   *scope
	global *scope
	consts map[string]ast.Sym
	udts   map[string]*udtInfo
}

type scope struct {
	vars   map[string]ast.Sym
	arrays map[string]ast.Sym
}

type udtInfo struct {
	name   string
	fields map[string]ast.Sym
}

// NewSymbols returns an empty table.
func NewSymbols() *Symbols {
	return &Symbols{
		main:   newScope(),
		global: newScope(),
		consts: map[string]ast.Sym{},
		udts:   map[string]*udtInfo{},
	}
}

func newScope() *scope {
	return &scope{vars: map[string]ast.Sym{}, arrays: map[string]ast.Sym{}}
}

func (s *scope) clone() *scope {
	return &scope{vars: maps.Clone(s.vars), arrays: maps.Clone(s.arrays)}
}

func (s *Symbols) clone() *Symbols {
	c := &Symbols{
		main:   s.main.clone(),
		global: s.global.clone(),
		consts: maps.Clone(s.consts),
		udts:   make(map[string]*udtInfo, len(s.udts)),
	}
	for k, u := range s.udts {
		c.udts[k] = &udtInfo{name: u.name, fields: maps.Clone(u.fields)}
	}
	return c
}

func (s *Symbols) commit(from *Symbols) {
	*s = *from.clone()
}

func key(name string) string {
	return strings.ToLower(name)
}

// current is the scope that receives local declarations.
func (p *Parser) current() *scope {
	if p.fn != nil {
		return p.fn
	}
	return p.syms.main
}

func (p *Parser) lookupVar(name string) (ast.Sym, bool) {
	if sym, ok := p.current().vars[key(name)]; ok {
		return sym, true
	}
	sym, ok := p.syms.global.vars[key(name)]
	return sym, ok
}

func (p *Parser) lookupArray(name string) (ast.Sym, bool) {
	if sym, ok := p.current().arrays[key(name)]; ok {
		return sym, true
	}
	sym, ok := p.syms.global.arrays[key(name)]
	return sym, ok
}

func (p *Parser) lookupConst(name string) (ast.Sym, bool) {
	sym, ok := p.syms.consts[key(name)]
	return sym, ok
}

func (p *Parser) lookupUDT(name string) (*udtInfo, bool) {
	u, ok := p.syms.udts[key(name)]
	return u, ok
}

func (p *Parser) declareVar(sym ast.Sym) {
	target := p.current()
	if sym.Scope == ast.ScopeGlobal {
		target = p.syms.global
	}
	target.vars[key(sym.Name)] = sym
}

func (p *Parser) declareArray(sym ast.Sym) {
	target := p.current()
	if sym.Scope == ast.ScopeGlobal {
		target = p.syms.global
	}
	target.arrays[key(sym.Name)] = sym
}
