package lexer_test

import (
	"testing"

	"github.com/odb-lang/odb-compiler/internal/keywords"
	"github.com/odb-lang/odb-compiler/internal/lexer"
)

func indexOf(t *testing.T, names ...string) *keywords.Index {
	t.Helper()
	ix := keywords.NewIndex()
	for _, n := range names {
		if err := ix.Add(&keywords.Keyword{Name: n}); err != nil {
			t.Fatal(err)
		}
	}
	return ix
}

type tok struct {
	typ lexer.TokenType
	lit string
}

func mergedTokens(input string, ix *keywords.Index) []tok {
	m := lexer.NewMerger(lexer.NewString(input), ix)
	var out []tok
	for {
		t := m.NextToken()
		out = append(out, tok{t.Type, t.Literal})
		if t.Type == lexer.EOF {
			return out
		}
	}
}

func TestMerger(t *testing.T) {
	tests := []struct {
		name     string
		keywords []string
		input    string
		want     []tok
	}{
		{
			"multi-word command",
			[]string{"make object", "make object cube"},
			"make object cube 1, 10",
			[]tok{
				{lexer.KEYWORD, "make object cube"},
				{lexer.INT, "1"}, {lexer.COMMA, ","}, {lexer.INT, "10"},
				{lexer.EOF, ""},
			},
		},
		{
			"longest prefix wins over partial",
			[]string{"make object", "make object cube"},
			"make object 1",
			[]tok{{lexer.KEYWORD, "make object"}, {lexer.INT, "1"}, {lexer.EOF, ""}},
		},
		{
			"extra whitespace is normalised",
			[]string{"make object"},
			"MAKE    object 1",
			[]tok{{lexer.KEYWORD, "MAKE object"}, {lexer.INT, "1"}, {lexer.EOF, ""}},
		},
		{
			"no space after integer",
			[]string{"load 3dsound"},
			"load 3dsound \"a.wav\", 1",
			[]tok{
				{lexer.KEYWORD, "load 3dsound"},
				{lexer.STRING, `"a.wav"`}, {lexer.COMMA, ","}, {lexer.INT, "1"},
				{lexer.EOF, ""},
			},
		},
		{
			"suffix invalidates shorter match",
			[]string{"str"},
			"a$ = str$(5)",
			[]tok{
				{lexer.IDENT, "a"}, {lexer.DOLLAR, "$"}, {lexer.ASSIGN, "="},
				{lexer.IDENT, "str"}, {lexer.DOLLAR, "$"},
				{lexer.LPAREN, "("}, {lexer.INT, "5"}, {lexer.RPAREN, ")"},
				{lexer.EOF, ""},
			},
		},
		{
			"suffix belongs to command",
			[]string{"str$", "str"},
			"a$ = str$(5)",
			[]tok{
				{lexer.IDENT, "a"}, {lexer.DOLLAR, "$"}, {lexer.ASSIGN, "="},
				{lexer.KEYWORD, "str$"},
				{lexer.LPAREN, "("}, {lexer.INT, "5"}, {lexer.RPAREN, ")"},
				{lexer.EOF, ""},
			},
		},
		{
			"loop alone stays a reserved word",
			[]string{"loop", "loop sound"},
			"do\nloop",
			[]tok{{lexer.DO, "do"}, {lexer.NEWLINE, "\n"}, {lexer.LOOP, "loop"}, {lexer.EOF, ""}},
		},
		{
			"loop merges when longer",
			[]string{"loop sound"},
			"loop sound 1",
			[]tok{{lexer.KEYWORD, "loop sound"}, {lexer.INT, "1"}, {lexer.EOF, ""}},
		},
		{
			"newline stops lookahead",
			[]string{"make object"},
			"make\nobject",
			[]tok{{lexer.IDENT, "make"}, {lexer.NEWLINE, "\n"}, {lexer.IDENT, "object"}, {lexer.EOF, ""}},
		},
		{
			"colon stops lookahead",
			[]string{"make object"},
			"make : object",
			[]tok{{lexer.IDENT, "make"}, {lexer.COLON, ":"}, {lexer.IDENT, "object"}, {lexer.EOF, ""}},
		},
		{
			"unknown identifiers pass through",
			[]string{"print"},
			"x = y",
			[]tok{{lexer.IDENT, "x"}, {lexer.ASSIGN, "="}, {lexer.IDENT, "y"}, {lexer.EOF, ""}},
		},
		{
			"consecutive commands",
			[]string{"sync", "sync on"},
			"sync on : sync",
			[]tok{{lexer.KEYWORD, "sync on"}, {lexer.COLON, ":"}, {lexer.KEYWORD, "sync"}, {lexer.EOF, ""}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mergedTokens(tt.input, indexOf(t, tt.keywords...))
			if len(got) != len(tt.want) {
				t.Fatalf("token count wrong. expected=%d, got=%d: %v", len(tt.want), len(got), got)
			}
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Fatalf("tokens[%d] wrong. expected=%v, got=%v", i, tt.want[i], got[i])
				}
			}
		})
	}
}

func TestMerger_SpanCoversAllWords(t *testing.T) {
	l := lexer.NewString("x = 1\n  make object cube 1")
	l.SetFilename("main.dba")
	m := lexer.NewMerger(l, indexOf(t, "make object cube"))

	for i := 0; i < 4; i++ {
		m.NextToken()
	}
	kw := m.NextToken()
	want := lexer.Span{Filename: "main.dba", Line: 2, Column: 3, Start: 8, End: 24}
	if kw.Span != want {
		t.Fatalf("span wrong. expected=%+v, got=%+v", want, kw.Span)
	}
	if kw.Value != "make object cube" {
		t.Fatalf("value wrong. expected=%q, got=%q", "make object cube", kw.Value)
	}
}

func TestMerger_MergedTextIsStableUnderRematch(t *testing.T) {
	ix := indexOf(t, "set camera", "set camera to object orientation", "set camera range", "position camera")
	m := lexer.NewMerger(lexer.NewString(
		"set camera range 1, 100\nset camera to object orientation 1\nposition camera 0,0,0"), ix)
	for {
		tok := m.NextToken()
		if tok.Type == lexer.EOF {
			return
		}
		if tok.Type != lexer.KEYWORD {
			continue
		}
		n, ok := ix.LongestMatch(tok.Literal)
		if !ok || n != len(tok.Literal) {
			t.Fatalf("%q re-matched as (%d, %v)", tok.Literal, n, ok)
		}
	}
}

func TestMerger_NilMatcherPassesThrough(t *testing.T) {
	m := lexer.NewMerger(lexer.NewString("print 1"), nil)
	if tok := m.NextToken(); tok.Type != lexer.IDENT {
		t.Fatalf("expected IDENT, got %q", tok.Type)
	}
}
