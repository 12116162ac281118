package lexer

import "strings"

// TokenType represents the type of a token
type TokenType string

// Span represents the source location of a token
type Span struct {
	Filename string // optional source filename for diagnostics
	Line     int    // 1-based line number
	Column   int    // 1-based column number
	Start    int    // byte offset into the source
	End      int    // exclusive end offset
}

// Token represents a lexical token
type Token struct {
	Type    TokenType
	Literal string // exact source text (merged keywords use single spaces)
	Value   string // decoded value: unquoted for strings, lowercased for keywords
	Span    Span
}

// Token type constants
const (
	// Special tokens
	ILLEGAL TokenType = "ILLEGAL"
	EOF     TokenType = "EOF"
	NEWLINE TokenType = "NEWLINE"

	// Identifiers and literals
	IDENT   TokenType = "IDENT"   // x, my_var, sprite
	INT     TokenType = "INT"     // 42, 0xFF, %1010
	FLOAT   TokenType = "FLOAT"   // 3.14, .5, 1e9
	STRING  TokenType = "STRING"  // "hello"
	KEYWORD TokenType = "KEYWORD" // a command from the keyword database, possibly multi-word

	// Type suffixes
	DOLLAR TokenType = "$"
	HASH   TokenType = "#"

	// Operators
	ASSIGN   TokenType = "="
	NOT_EQ   TokenType = "<>"
	LT       TokenType = "<"
	LE       TokenType = "<="
	GT       TokenType = ">"
	GE       TokenType = ">="
	PLUS     TokenType = "+"
	MINUS    TokenType = "-"
	ASTERISK TokenType = "*"
	SLASH    TokenType = "/"
	CARET    TokenType = "^"
	SHL      TokenType = "<<"
	SHR      TokenType = ">>"
	BOR      TokenType = "||"
	BAND     TokenType = "&&"
	BXOR     TokenType = "~~"
	BNOT     TokenType = ".."

	// Delimiters
	COMMA  TokenType = ","
	COLON  TokenType = ":"
	DOT    TokenType = "."
	LPAREN TokenType = "("
	RPAREN TokenType = ")"

	// Reserved words
	IF           TokenType = "IF"
	THEN         TokenType = "THEN"
	ELSE         TokenType = "ELSE"
	ELSEIF       TokenType = "ELSEIF"
	ENDIF        TokenType = "ENDIF"
	DO           TokenType = "DO"
	LOOP         TokenType = "LOOP"
	WHILE        TokenType = "WHILE"
	ENDWHILE     TokenType = "ENDWHILE"
	REPEAT       TokenType = "REPEAT"
	UNTIL        TokenType = "UNTIL"
	FOR          TokenType = "FOR"
	TO           TokenType = "TO"
	STEP         TokenType = "STEP"
	NEXT         TokenType = "NEXT"
	FUNCTION     TokenType = "FUNCTION"
	ENDFUNCTION  TokenType = "ENDFUNCTION"
	EXITFUNCTION TokenType = "EXITFUNCTION"
	GOSUB        TokenType = "GOSUB"
	GOTO         TokenType = "GOTO"
	RETURN       TokenType = "RETURN"
	SELECT       TokenType = "SELECT"
	CASE         TokenType = "CASE"
	DEFAULT      TokenType = "DEFAULT"
	ENDCASE      TokenType = "ENDCASE"
	ENDSELECT    TokenType = "ENDSELECT"
	EXIT         TokenType = "EXIT"
	END          TokenType = "END"
	DIM          TokenType = "DIM"
	GLOBAL       TokenType = "GLOBAL"
	LOCAL        TokenType = "LOCAL"
	AS           TokenType = "AS"
	TYPE         TokenType = "TYPE"
	ENDTYPE      TokenType = "ENDTYPE"
	CONSTANT     TokenType = "#CONSTANT"
	AND          TokenType = "AND"
	OR           TokenType = "OR"
	XOR          TokenType = "XOR"
	NOT          TokenType = "NOT"
	MOD          TokenType = "MOD"
	INC          TokenType = "INC"
	DEC          TokenType = "DEC"
	TRUE         TokenType = "TRUE"
	FALSE        TokenType = "FALSE"

	// Built-in type names used after AS
	TYPE_INTEGER TokenType = "INTEGER"
	TYPE_FLOAT   TokenType = "FLOAT_TYPE"
	TYPE_STRING  TokenType = "STRING_TYPE"
	TYPE_BOOLEAN TokenType = "BOOLEAN"
)

var keywords = map[string]TokenType{
	"if":           IF,
	"then":         THEN,
	"else":         ELSE,
	"elseif":       ELSEIF,
	"endif":        ENDIF,
	"do":           DO,
	"loop":         LOOP,
	"while":        WHILE,
	"endwhile":     ENDWHILE,
	"repeat":       REPEAT,
	"until":        UNTIL,
	"for":          FOR,
	"to":           TO,
	"step":         STEP,
	"next":         NEXT,
	"function":     FUNCTION,
	"endfunction":  ENDFUNCTION,
	"exitfunction": EXITFUNCTION,
	"gosub":        GOSUB,
	"goto":         GOTO,
	"return":       RETURN,
	"select":       SELECT,
	"case":         CASE,
	"default":      DEFAULT,
	"endcase":      ENDCASE,
	"endselect":    ENDSELECT,
	"exit":         EXIT,
	"end":          END,
	"dim":          DIM,
	"global":       GLOBAL,
	"local":        LOCAL,
	"as":           AS,
	"type":         TYPE,
	"endtype":      ENDTYPE,
	"and":          AND,
	"or":           OR,
	"xor":          XOR,
	"not":          NOT,
	"mod":          MOD,
	"inc":          INC,
	"dec":          DEC,
	"true":         TRUE,
	"false":        FALSE,
	"integer":      TYPE_INTEGER,
	"float":        TYPE_FLOAT,
	"string":       TYPE_STRING,
	"boolean":      TYPE_BOOLEAN,
}

// LookupIdent checks if the identifier is a reserved word. Matching is
// case-insensitive.
func LookupIdent(ident string) TokenType {
	if tok, ok := keywords[strings.ToLower(ident)]; ok {
		return tok
	}
	return IDENT
}

// IsReserved reports whether t is one of the reserved-word token types.
func IsReserved(t TokenType) bool {
	switch t {
	case IDENT, INT, FLOAT, STRING, KEYWORD:
		return false
	}
	for _, kw := range keywords {
		if kw == t {
			return true
		}
	}
	return false
}

// IsTypeSuffix reports whether t is a `$` or `#` type suffix.
func IsTypeSuffix(t TokenType) bool {
	return t == DOLLAR || t == HASH
}
