package keywords

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/odb-lang/odb-compiler/internal/diag"
)

const noParameters = "*no parameters*"

// SpecError describes a malformed line in a keyword spec file.
type SpecError struct {
	Filename string
	Line     int
	Text     string
	Err      error
}

func (e *SpecError) Error() string {
	if e.Filename != "" {
		return fmt.Sprintf("%s:%d: %v", e.Filename, e.Line, e.Err)
	}
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e *SpecError) Unwrap() error {
	return e.Err
}

// ToDiagnostic converts the error into a shared diagnostic structure.
func (e *SpecError) ToDiagnostic() diag.Diagnostic {
	code := diag.CodeKeywordMalformedSpec
	switch {
	case errors.Is(e.Err, ErrReturnMismatch):
		code = diag.CodeKeywordReturnMismatch
	case errors.Is(e.Err, ErrMissingReturnGroup):
		code = diag.CodeKeywordMissingReturn
	}
	return diag.Diagnostic{
		Stage:    diag.StageKeywords,
		Severity: diag.SeverityError,
		Code:     code,
		Message:  e.Err.Error(),
		Span: diag.Span{
			Filename: e.Filename,
			Line:     e.Line,
			Column:   1,
			Start:    0,
			End:      len(e.Text),
		},
	}
}

// ParseSpec reads `NAME=HELPFILE=ARGSPEC` lines. Either every line is valid
// and all keywords are returned, or nothing is returned.
func ParseSpec(r io.Reader, filename string) ([]*Keyword, error) {
	var (
		kws    []*Keyword
		byName = make(map[string]*Keyword)
	)

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimRight(sc.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}

		kw, err := parseSpecLine(line)
		if err != nil {
			return nil, &SpecError{Filename: filename, Line: lineNo, Text: line, Err: err}
		}

		key := normalize(kw.Name)
		if prev, ok := byName[key]; ok {
			if prev.HasReturn() != kw.HasReturn() {
				return nil, &SpecError{Filename: filename, Line: lineNo, Text: line,
					Err: fmt.Errorf("%s: %w", kw.Name, ErrReturnMismatch)}
			}
			prev.Overloads = append(prev.Overloads, kw.Overloads...)
			continue
		}
		byName[key] = kw
		kws = append(kws, kw)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return kws, nil
}

// ParseSpecString is ParseSpec over an in-memory string.
func ParseSpecString(s string) ([]*Keyword, error) {
	return ParseSpec(strings.NewReader(s), "")
}

// ParseSpecBytes is ParseSpec over a byte slice, typically a mapped file.
func ParseSpecBytes(b []byte, filename string) ([]*Keyword, error) {
	return ParseSpec(bytes.NewReader(b), filename)
}

func parseSpecLine(line string) (*Keyword, error) {
	parts := strings.SplitN(line, "=", 3)
	if len(parts) != 3 {
		return nil, fmt.Errorf("expected NAME=HELPFILE=ARGSPEC, got %q", line)
	}

	name := strings.TrimSpace(parts[0])
	if name == "" {
		return nil, fmt.Errorf("empty command name")
	}
	kw := &Keyword{
		Name:     name,
		HelpFile: strings.TrimSpace(parts[1]),
	}

	overloads, err := parseArgSpec(strings.TrimSpace(parts[2]))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	for i := 1; i < len(overloads); i++ {
		if overloads[i].HasReturn != overloads[0].HasReturn {
			return nil, fmt.Errorf("%s: %w", name, ErrReturnMismatch)
		}
	}
	if strings.HasSuffix(name, "#") || strings.HasSuffix(name, "$") {
		if !overloads[0].HasReturn {
			return nil, fmt.Errorf("%s: %w", name, ErrMissingReturnGroup)
		}
		rt := TypeFloat
		if strings.HasSuffix(name, "$") {
			rt = TypeString
		}
		for i := range overloads {
			overloads[i].ReturnType = rt
		}
	}
	kw.Overloads = overloads
	return kw, nil
}

func parseArgSpec(spec string) ([]Overload, error) {
	if spec == "" {
		return nil, fmt.Errorf("empty argument spec")
	}
	if spec[0] != '[' {
		o, err := parseOverload(spec)
		if err != nil {
			return nil, err
		}
		return []Overload{o}, nil
	}

	var overloads []Overload
	rest := spec
	for {
		rest = strings.TrimSpace(rest)
		if rest == "" {
			break
		}
		if rest[0] != '[' {
			return nil, fmt.Errorf("expected `[`, found %q", rest)
		}
		end := strings.IndexByte(rest, ']')
		if end < 0 {
			return nil, fmt.Errorf("unterminated overload group %q", rest)
		}
		o, err := parseOverload(strings.TrimSpace(rest[1:end]))
		if err != nil {
			return nil, err
		}
		overloads = append(overloads, o)
		rest = rest[end+1:]
	}
	return overloads, nil
}

func parseOverload(spec string) (Overload, error) {
	var o Overload
	if strings.HasPrefix(spec, "(") && matchingParen(spec, 0) == len(spec)-1 {
		o.HasReturn = true
		spec = strings.TrimSpace(spec[1 : len(spec)-1])
	}

	if spec == "" {
		if o.HasReturn {
			return o, nil
		}
		return o, fmt.Errorf("empty argument list")
	}
	if strings.EqualFold(spec, noParameters) {
		return o, nil
	}

	for _, raw := range splitTopLevel(spec) {
		name := stripAnnotation(strings.TrimSpace(raw))
		if name == "" {
			return o, fmt.Errorf("empty argument name in %q", spec)
		}
		o.Args = append(o.Args, Arg{Name: name})
	}
	return o, nil
}

// matchingParen returns the index of the `)` closing the `(` at open, or -1.
func matchingParen(s string, open int) int {
	depth := 0
	for i := open; i < len(s); i++ {
		switch s[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// splitTopLevel splits on commas that are not nested inside parentheses.
func splitTopLevel(s string) []string {
	var (
		parts []string
		depth int
		start int
	)
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(':
			depth++
		case ')':
			if depth > 0 {
				depth--
			}
		case ',':
			if depth == 0 {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	return append(parts, s[start:])
}

// stripAnnotation drops a trailing free-text "(…)" such as "state (0, 1 or 2)".
func stripAnnotation(arg string) string {
	if !strings.HasSuffix(arg, ")") {
		return arg
	}
	depth := 0
	for i := len(arg) - 1; i >= 0; i-- {
		switch arg[i] {
		case ')':
			depth++
		case '(':
			depth--
			if depth == 0 {
				return strings.TrimSpace(arg[:i])
			}
		}
	}
	return arg
}
