package emit

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/types"
)

// stubRunner records invocations and writes the file named by -o or /out:.
type stubRunner struct {
	calls [][]string
	fail  string
}

func (r *stubRunner) Run(ctx context.Context, name string, args ...string) error {
	r.calls = append(r.calls, append([]string{name}, args...))
	if name == r.fail {
		return errors.New(name + " failed")
	}
	for i, a := range args {
		var out string
		switch {
		case a == "-o" && i+1 < len(args):
			out = args[i+1]
		case strings.HasPrefix(a, "/out:"):
			out = strings.TrimPrefix(a, "/out:")
		}
		if out != "" {
			if err := os.WriteFile(out, []byte(name+" output"), 0o644); err != nil {
				return err
			}
		}
	}
	return nil
}

func testModule() *ir.Module {
	m := ir.NewModule()
	f := m.NewFunc("main", types.I32)
	f.NewBlock("entry").NewRet(nil)
	return m
}

// normalize replaces the temp directory in recorded arguments.
func normalize(calls [][]string) [][]string {
	out := make([][]string, len(calls))
	for i, c := range calls {
		for _, a := range c {
			switch {
			case strings.HasPrefix(a, "/out:") && strings.Contains(a, "odbc-"):
				a = "/out:" + filepath.Base(a)
			case strings.Contains(a, "odbc-"):
				a = filepath.Base(a)
			}
			out[i] = append(out[i], a)
		}
	}
	return out
}

func TestParseKind(t *testing.T) {
	for _, s := range []string{"ir", "BC", "obj", "exe"} {
		if _, err := ParseKind(s); err != nil {
			t.Fatalf("ParseKind(%q): %v", s, err)
		}
	}
	if _, err := ParseKind("wasm"); err == nil {
		t.Fatalf("expected an error")
	}
}

func TestEmitIR(t *testing.T) {
	var buf bytes.Buffer
	if err := Emit(context.Background(), testModule(), Options{Kind: KindIR, Stdout: &buf}); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "define i32 @main()") {
		t.Fatalf("unexpected IR:\n%s", buf.String())
	}

	out := filepath.Join(t.TempDir(), "game.ll")
	if err := Emit(context.Background(), testModule(), Options{Kind: KindIR, Output: out}); err != nil {
		t.Fatal(err)
	}
	if data, err := os.ReadFile(out); err != nil || !bytes.Contains(data, []byte("@main")) {
		t.Fatalf("IR file not written: %v", err)
	}
}

func TestEmitToolchain(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		kind Kind
		want [][]string
	}{
		{KindBC, [][]string{
			{"llvm-as", "module.ll", "-o", filepath.Join(dir, "game.bc")},
		}},
		{KindObj, [][]string{
			{"llc", "-filetype=obj", "-mtriple=i386-pc-windows-msvc", "-o", filepath.Join(dir, "game.obj"), "module.ll"},
		}},
		{KindExe, [][]string{
			{"llc", "-filetype=obj", "-mtriple=i386-pc-windows-msvc", "-o", "module.obj", "module.ll"},
			{"lld-link", "/entry:main", "/subsystem:windows", "/machine:x86", "/nologo",
				"/out:" + filepath.Join(dir, "game.exe"), "module.obj", "kernel32.lib"},
		}},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			r := &stubRunner{}
			out := DefaultOutput(filepath.Join(dir, "game.dba"), tt.kind)
			err := Emit(context.Background(), testModule(), Options{
				Kind:    tt.kind,
				Output:  out,
				SDKLibs: []string{"kernel32.lib"},
				Runner:  r,
			})
			if err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(tt.want, normalize(r.calls)); diff != "" {
				t.Fatalf("tool calls mismatch (-want +got):\n%s", diff)
			}
			if _, err := os.Stat(out); err != nil {
				t.Fatalf("output missing: %v", err)
			}
		})
	}
}

func TestEmitBinaryToStdout(t *testing.T) {
	var buf bytes.Buffer
	r := &stubRunner{}
	if err := Emit(context.Background(), testModule(), Options{Kind: KindBC, Stdout: &buf, Runner: r}); err != nil {
		t.Fatal(err)
	}
	if buf.String() != "llvm-as output" {
		t.Fatalf("expected the tool's output on stdout, got %q", buf.String())
	}
}

func TestEmitToolFailure(t *testing.T) {
	r := &stubRunner{fail: "llc"}
	err := Emit(context.Background(), testModule(), Options{
		Kind:   KindExe,
		Output: filepath.Join(t.TempDir(), "game.exe"),
		Runner: r,
	})
	if err == nil || !strings.Contains(err.Error(), "llc failed") {
		t.Fatalf("expected the llc failure, got %v", err)
	}
	if len(r.calls) != 1 {
		t.Fatalf("linker must not run after a failed compile, calls=%v", r.calls)
	}
}
