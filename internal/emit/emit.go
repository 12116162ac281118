// Package emit turns a generated module into textual IR, bitcode, an object
// file or a Windows executable, driving the LLVM tools for the binary forms.
package emit

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/llir/llvm/ir"
)

// Kind is an output format.
type Kind string

const (
	KindIR  Kind = "ir"
	KindBC  Kind = "bc"
	KindObj Kind = "obj"
	KindExe Kind = "exe"
)

// ParseKind validates an --emit value.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(s)); k {
	case KindIR, KindBC, KindObj, KindExe:
		return k, nil
	}
	return "", fmt.Errorf("unknown output kind %q (want ir, bc, obj or exe)", s)
}

// Ext is the conventional file extension of k.
func (k Kind) Ext() string {
	switch k {
	case KindIR:
		return ".ll"
	case KindBC:
		return ".bc"
	case KindObj:
		return ".obj"
	}
	return ".exe"
}

// Runner runs an external tool.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) error
}

// ExecRunner runs tools with os/exec, folding stderr into the error.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s failed: %w\n%s", filepath.Base(name), err, strings.TrimSpace(stderr.String()))
	}
	return nil
}

// Options configure an emission.
type Options struct {
	Kind Kind
	// Output is the destination file. Empty or "-" writes to Stdout.
	Output string
	Stdout io.Writer

	TargetTriple string
	LLVMAs       string
	LLC          string
	Linker       string
	SDKLibs      []string

	Runner Runner
	Logger *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.Kind == "" {
		o.Kind = KindIR
	}
	if o.Stdout == nil {
		o.Stdout = os.Stdout
	}
	if o.TargetTriple == "" {
		o.TargetTriple = "i386-pc-windows-msvc"
	}
	if o.LLVMAs == "" {
		o.LLVMAs = "llvm-as"
	}
	if o.LLC == "" {
		o.LLC = "llc"
	}
	if o.Linker == "" {
		o.Linker = "lld-link"
	}
	if o.Runner == nil {
		o.Runner = ExecRunner{}
	}
	if o.Logger == nil {
		o.Logger = slog.New(slog.DiscardHandler)
	}
	return o
}

func (o Options) toStdout() bool {
	return o.Output == "" || o.Output == "-"
}

// Emit writes m in the requested form.
func Emit(ctx context.Context, m *ir.Module, opts Options) error {
	opts = opts.withDefaults()

	if opts.Kind == KindIR {
		if opts.toStdout() {
			_, err := io.WriteString(opts.Stdout, m.String())
			return err
		}
		return os.WriteFile(opts.Output, []byte(m.String()), 0o644)
	}

	tmp, err := os.MkdirTemp("", "odbc-*")
	if err != nil {
		return err
	}
	defer os.RemoveAll(tmp)

	llFile := filepath.Join(tmp, "module.ll")
	if err := os.WriteFile(llFile, []byte(m.String()), 0o644); err != nil {
		return err
	}

	out := opts.Output
	if opts.toStdout() {
		out = filepath.Join(tmp, "out"+opts.Kind.Ext())
	}

	switch opts.Kind {
	case KindBC:
		err = run(ctx, opts, opts.LLVMAs, llFile, "-o", out)
	case KindObj:
		err = compileObject(ctx, opts, llFile, out)
	case KindExe:
		obj := filepath.Join(tmp, "module.obj")
		if err = compileObject(ctx, opts, llFile, obj); err == nil {
			err = link(ctx, opts, obj, out)
		}
	default:
		err = fmt.Errorf("unknown output kind %q", opts.Kind)
	}
	if err != nil {
		return err
	}

	if opts.toStdout() {
		f, err := os.Open(out)
		if err != nil {
			return err
		}
		defer f.Close()
		_, err = io.Copy(opts.Stdout, f)
		return err
	}
	return nil
}

func compileObject(ctx context.Context, opts Options, llFile, out string) error {
	return run(ctx, opts, opts.LLC, "-filetype=obj", "-mtriple="+opts.TargetTriple, "-o", out, llFile)
}

func link(ctx context.Context, opts Options, obj, out string) error {
	args := []string{"/entry:main", "/subsystem:windows", "/machine:x86", "/nologo", "/out:" + out, obj}
	args = append(args, opts.SDKLibs...)
	return run(ctx, opts, opts.Linker, args...)
}

func run(ctx context.Context, opts Options, name string, args ...string) error {
	opts.Logger.Debug("running tool", slog.String("tool", name), slog.String("args", strings.Join(args, " ")))
	return opts.Runner.Run(ctx, name, args...)
}

// DefaultOutput derives an output path from the entry source file.
func DefaultOutput(source string, k Kind) string {
	return strings.TrimSuffix(source, filepath.Ext(source)) + k.Ext()
}
