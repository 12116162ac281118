package diag

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

var (
	colorError   = lipgloss.Color("#EF4444")
	colorWarning = lipgloss.Color("#F59E0B")
	colorNote    = lipgloss.Color("#06B6D4")
	colorGutter  = lipgloss.Color("#6B7280")
	colorHelp    = lipgloss.Color("#10B981")
)

// Formatter renders diagnostics in a Rust-style layout with source excerpts.
type Formatter struct {
	w           io.Writer
	color       bool
	sourceCache map[string]string

	sevStyle    map[Severity]lipgloss.Style
	gutterStyle lipgloss.Style
	helpStyle   lipgloss.Style
	boldStyle   lipgloss.Style
}

// NewFormatter writes to w. Colour is enabled only when w is a terminal.
func NewFormatter(w io.Writer) *Formatter {
	color := false
	if f, ok := w.(*os.File); ok {
		fd := f.Fd()
		color = isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
	}
	return &Formatter{
		w:           w,
		color:       color,
		sourceCache: make(map[string]string),
		sevStyle: map[Severity]lipgloss.Style{
			SeverityError:   lipgloss.NewStyle().Bold(true).Foreground(colorError),
			SeverityWarning: lipgloss.NewStyle().Bold(true).Foreground(colorWarning),
			SeverityNote:    lipgloss.NewStyle().Bold(true).Foreground(colorNote),
		},
		gutterStyle: lipgloss.NewStyle().Foreground(colorGutter),
		helpStyle:   lipgloss.NewStyle().Bold(true).Foreground(colorHelp),
		boldStyle:   lipgloss.NewStyle().Bold(true),
	}
}

// SetColor overrides terminal detection.
func (f *Formatter) SetColor(on bool) {
	f.color = on
}

func (f *Formatter) paint(s lipgloss.Style, text string) string {
	if !f.color {
		return text
	}
	return s.Render(text)
}

// AddSource registers in-memory source text so excerpts do not need the
// file on disk.
func (f *Formatter) AddSource(filename string, text []byte) {
	f.sourceCache[filename] = string(text)
}

// LoadSource loads source code for a file (cached).
func (f *Formatter) LoadSource(filename string) (string, error) {
	if filename == "" {
		return "", nil
	}
	if src, ok := f.sourceCache[filename]; ok {
		return src, nil
	}
	data, err := os.ReadFile(filename)
	if err != nil {
		return "", err
	}
	src := string(data)
	f.sourceCache[filename] = src
	return src, nil
}

// FormatAll renders every diagnostic in order, separated by blank lines.
func (f *Formatter) FormatAll(ds []Diagnostic) {
	for i, d := range ds {
		if i > 0 {
			fmt.Fprintln(f.w)
		}
		f.Format(d)
	}
}

// Format renders one diagnostic.
func (f *Formatter) Format(d Diagnostic) {
	spans := f.collectSpans(d)
	if len(spans) == 0 {
		f.formatSimple(d)
		return
	}

	spansByFile := make(map[string][]LabeledSpan)
	var files []string
	for _, span := range spans {
		filename := span.Span.Filename
		if filename == "" {
			filename = "<unknown>"
		}
		if _, ok := spansByFile[filename]; !ok {
			files = append(files, filename)
		}
		spansByFile[filename] = append(spansByFile[filename], span)
	}

	f.printHeader(d)
	for _, filename := range files {
		src, err := f.LoadSource(filename)
		if err != nil {
			fmt.Fprintf(f.w, "  --> %s\n", spansByFile[filename][0].Span)
			continue
		}
		f.printFileSpans(filename, src, spansByFile[filename])
	}
	f.printHelp(d)
}

func (f *Formatter) collectSpans(d Diagnostic) []LabeledSpan {
	if len(d.LabeledSpans) > 0 {
		return d.LabeledSpans
	}
	if d.Span.IsValid() {
		return []LabeledSpan{{Span: d.Span, Style: "primary"}}
	}
	return nil
}

// printHeader prints `error[CODE]: message`.
func (f *Formatter) printHeader(d Diagnostic) {
	severity := d.Severity
	if severity == "" {
		severity = SeverityError
	}
	head := string(severity)
	if d.Code != "" {
		head = fmt.Sprintf("%s[%s]", severity, d.Code)
	}
	fmt.Fprintf(f.w, "%s: %s\n", f.paint(f.sevStyle[severity], head), f.paint(f.boldStyle, d.Message))
}

func (f *Formatter) printFileSpans(filename string, src string, spans []LabeledSpan) {
	sort.SliceStable(spans, func(i, j int) bool {
		if spans[i].Span.Line != spans[j].Span.Line {
			return spans[i].Span.Line < spans[j].Span.Line
		}
		return spans[i].Span.Column < spans[j].Span.Column
	})

	lines := strings.Split(strings.ReplaceAll(src, "\r\n", "\n"), "\n")
	maxLine := len(lines)
	spansByLine := make(map[int][]LabeledSpan)
	var lineNumbers []int
	for _, span := range spans {
		line := span.Span.Line
		if line > 0 && line <= maxLine {
			if _, ok := spansByLine[line]; !ok {
				lineNumbers = append(lineNumbers, line)
			}
			spansByLine[line] = append(spansByLine[line], span)
		}
	}
	if len(lineNumbers) == 0 {
		fmt.Fprintf(f.w, "  --> %s\n", filename)
		return
	}
	sort.Ints(lineNumbers)

	first := spans[0].Span
	contextStart := max(1, lineNumbers[0]-1)
	contextEnd := min(maxLine, lineNumbers[len(lineNumbers)-1]+1)
	width := len(fmt.Sprintf("%d", contextEnd))
	pad := strings.Repeat(" ", width)

	fmt.Fprintf(f.w, "  %s %s:%d:%d\n", f.paint(f.gutterStyle, "-->"), filename, first.Line, first.Column)
	fmt.Fprintf(f.w, " %s\n", f.paint(f.gutterStyle, pad+" |"))

	for lineNum := contextStart; lineNum <= contextEnd; lineNum++ {
		gutter := f.paint(f.gutterStyle, fmt.Sprintf("%*d |", width, lineNum))
		fmt.Fprintf(f.w, " %s %s\n", gutter, lines[lineNum-1])
		if ls := spansByLine[lineNum]; len(ls) > 0 {
			f.printUnderlines(pad, lines[lineNum-1], ls)
		}
	}
	fmt.Fprintf(f.w, " %s\n", f.paint(f.gutterStyle, pad+" |"))
}

// printUnderlines marks primary spans with ^ and secondary ones with ~.
func (f *Formatter) printUnderlines(pad string, lineContent string, spans []LabeledSpan) {
	underline := []byte(strings.Repeat(" ", len(lineContent)+1))

	mark := func(span Span, ch byte, overwrite bool) {
		start := max(0, span.Column-1)
		width := max(1, span.End-span.Start)
		end := min(len(underline), start+width)
		for i := start; i < end; i++ {
			if overwrite || underline[i] == ' ' {
				underline[i] = ch
			}
		}
	}
	for _, span := range spans {
		if span.Style == "primary" {
			mark(span.Span, '^', true)
		}
	}
	for _, span := range spans {
		if span.Style == "secondary" {
			mark(span.Span, '~', false)
		}
	}

	text := strings.TrimRight(string(underline), " ")
	if text == "" {
		return
	}

	var primaryLabel string
	var secondaryLabels []string
	for _, span := range spans {
		if span.Label == "" {
			continue
		}
		if span.Style == "primary" {
			primaryLabel = span.Label
		} else {
			secondaryLabels = append(secondaryLabels, span.Label)
		}
	}

	line := text
	if primaryLabel != "" {
		line += " " + primaryLabel
	}
	fmt.Fprintf(f.w, " %s %s\n", f.paint(f.gutterStyle, pad+" |"), f.paint(f.sevStyle[SeverityError], line))
	for _, label := range secondaryLabels {
		fmt.Fprintf(f.w, " %s %s%s\n", f.paint(f.gutterStyle, pad+" |"),
			strings.Repeat(" ", len(text)+1), f.paint(f.sevStyle[SeverityNote], label))
	}
}

func (f *Formatter) printHelp(d Diagnostic) {
	for _, note := range d.Notes {
		fmt.Fprintf(f.w, "  %s %s\n", f.paint(f.boldStyle, "= note:"), note)
	}
	if d.Help != "" {
		fmt.Fprintf(f.w, "%s %s\n", f.paint(f.helpStyle, "help:"), d.Help)
	}
}

// formatSimple renders a diagnostic that has no usable span.
func (f *Formatter) formatSimple(d Diagnostic) {
	f.printHeader(d)
	if d.Span.Filename != "" {
		fmt.Fprintf(f.w, "  --> %s\n", d.Span.Filename)
	}
	f.printHelp(d)
}
