package keywords

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/odb-lang/odb-compiler/internal/diag"
)

// argNames flattens overloads to their argument names for comparison.
func argNames(kw *Keyword) [][]string {
	out := make([][]string, len(kw.Overloads))
	for i, o := range kw.Overloads {
		out[i] = []string{}
		for _, a := range o.Args {
			out[i] = append(out[i], a.Name)
		}
	}
	return out
}

func TestParseSpec_Accepts(t *testing.T) {
	tests := []struct {
		line       string
		name       string
		help       string
		wantReturn bool
		wantArgs   [][]string
	}{
		{"SOME COMMAND=help.htm=*no parameters*", "SOME COMMAND", "help.htm", false, [][]string{{}}},
		{"SOME COMMAND=help.htm=(*no parameters*)", "SOME COMMAND", "help.htm", true, [][]string{{}}},
		{"SOME COMMAND=help.htm=a", "SOME COMMAND", "help.htm", false, [][]string{{"a"}}},
		{"SOME COMMAND=help.htm=(a)", "SOME COMMAND", "help.htm", true, [][]string{{"a"}}},
		{"SOME COMMAND=help.htm=a, b", "SOME COMMAND", "help.htm", false, [][]string{{"a", "b"}}},
		{"SOME COMMAND=help.htm=(a, b)", "SOME COMMAND", "help.htm", true, [][]string{{"a", "b"}}},
		{"SOME COMMAND=help.htm=[*no parameters*] [a]", "SOME COMMAND", "help.htm", false, [][]string{{}, {"a"}}},
		{"SOME COMMAND=help.htm=[(*no parameters*)] [(a)]", "SOME COMMAND", "help.htm", true, [][]string{{}, {"a"}}},
		{"SOME COMMAND=help.htm=[a] [a, b]", "SOME COMMAND", "help.htm", false, [][]string{{"a"}, {"a", "b"}}},
		{"SOME COMMAND=help.htm=[(a)] [(a, b)]", "SOME COMMAND", "help.htm", true, [][]string{{"a"}, {"a", "b"}}},
		{
			"TOOLBAR SET BUTTON STATE=main.htm=Toolbar, button, state (0, 1 or 2)",
			"TOOLBAR SET BUTTON STATE", "main.htm", false,
			[][]string{{"Toolbar", "button", "state"}},
		},
		{
			"TOOLBAR SET BUTTON STATE=main.htm=[a, b, c (0, 1 or 2)][a, b (0, 1, 2)]",
			"TOOLBAR SET BUTTON STATE", "main.htm", false,
			[][]string{{"a", "b", "c"}, {"a", "b"}},
		},
		{
			"TOOLBAR SET BUTTON STATE=main.htm=arg as integer, b as boolean",
			"TOOLBAR SET BUTTON STATE", "main.htm", false,
			[][]string{{"arg as integer", "b as boolean"}},
		},
		{"SOME COMMAND#=main.htm=(a)", "SOME COMMAND#", "main.htm", true, [][]string{{"a"}}},
		{"SOME COMMAND$=main.htm=(a)", "SOME COMMAND$", "main.htm", true, [][]string{{"a"}}},
		{"SOME COMMAND==a", "SOME COMMAND", "", false, [][]string{{"a"}}},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			kws, err := ParseSpecString(tt.line)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(kws) != 1 {
				t.Fatalf("expected 1 keyword, got %d", len(kws))
			}
			kw := kws[0]
			if kw.Name != tt.name {
				t.Fatalf("name wrong. expected=%q, got=%q", tt.name, kw.Name)
			}
			if kw.HelpFile != tt.help {
				t.Fatalf("help file wrong. expected=%q, got=%q", tt.help, kw.HelpFile)
			}
			if kw.HasReturn() != tt.wantReturn {
				t.Fatalf("return wrong. expected=%v, got=%v", tt.wantReturn, kw.HasReturn())
			}
			if diff := cmp.Diff(tt.wantArgs, argNames(kw)); diff != "" {
				t.Fatalf("overload args mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseSpec_Rejects(t *testing.T) {
	tests := []struct {
		line    string
		wantErr error
	}{
		{"SOME COMMAND=help.htm=[(a)] [a, b]", ErrReturnMismatch},
		{"SOME COMMAND=help.htm=[a] [(a, b)]", ErrReturnMismatch},
		{"SOME COMMAND#=main.htm=a", ErrMissingReturnGroup},
		{"SOME COMMAND$=main.htm=a", ErrMissingReturnGroup},
		{"SOME COMMAND==\n", nil},
		{"SOME COMMAND=help.htm", nil},
		{"SOME COMMAND=help.htm=[a", nil},
		{"SOME COMMAND=help.htm=a,,b", nil},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			kws, err := ParseSpecString(tt.line)
			if err == nil {
				t.Fatalf("expected an error, got %d keywords", len(kws))
			}
			if kws != nil {
				t.Fatalf("expected no keywords on failure, got %d", len(kws))
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected error wrapping %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestParseSpec_MultipleLines(t *testing.T) {
	kws, err := ParseSpecString("\nSOME COMMAND=help.htm=a\n" +
		"SOME OTHER COMMAND=main.htm=b\r\n" +
		"SOME WOWEE=other.html=c\n")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ix := NewIndex()
	if err := ix.AddAll(kws); err != nil {
		t.Fatalf("AddAll: %v", err)
	}

	want := map[string]struct {
		help string
		arg  string
	}{
		"SOME COMMAND":       {"help.htm", "a"},
		"SOME OTHER COMMAND": {"main.htm", "b"},
		"SOME WOWEE":         {"other.html", "c"},
	}
	for name, w := range want {
		kw, ok := ix.Lookup(name)
		if !ok {
			t.Fatalf("%q not found", name)
		}
		if kw.HelpFile != w.help {
			t.Fatalf("%q help wrong. expected=%q, got=%q", name, w.help, kw.HelpFile)
		}
		if diff := cmp.Diff([][]string{{w.arg}}, argNames(kw)); diff != "" {
			t.Fatalf("%q args mismatch (-want +got):\n%s", name, diff)
		}
	}
}

func TestParseSpec_TypedNameSetsReturnType(t *testing.T) {
	kws, err := ParseSpecString("GET VALUE#=x.htm=(a)\nGET NAME$=x.htm=(*no parameters*)")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := kws[0].ReturnType(); got != TypeFloat {
		t.Fatalf("expected float return, got %v", got)
	}
	if got := kws[1].ReturnType(); got != TypeString {
		t.Fatalf("expected string return, got %v", got)
	}
}

func TestSpecError_ToDiagnostic(t *testing.T) {
	_, err := ParseSpec(strings.NewReader("OK=h=a\nBAD#=h=a\n"), "cmds.ini")
	var specErr *SpecError
	if !errors.As(err, &specErr) {
		t.Fatalf("expected *SpecError, got %T", err)
	}

	d := specErr.ToDiagnostic()
	if d.Stage != diag.StageKeywords {
		t.Fatalf("expected stage %q, got %q", diag.StageKeywords, d.Stage)
	}
	if d.Code != diag.CodeKeywordMissingReturn {
		t.Fatalf("expected code %q, got %q", diag.CodeKeywordMissingReturn, d.Code)
	}
	if d.Span.Filename != "cmds.ini" || d.Span.Line != 2 {
		t.Fatalf("expected span cmds.ini:2, got %s", d.Span)
	}
}
