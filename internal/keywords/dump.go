package keywords

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"
)

// DumpFormat selects how Dump renders the index.
type DumpFormat string

const (
	DumpJSON  DumpFormat = "json"
	DumpINI   DumpFormat = "ini"
	DumpNames DumpFormat = "names"
	DumpYAML  DumpFormat = "yaml"
)

// Dump writes every keyword in ix to w.
func Dump(w io.Writer, ix *Index, format DumpFormat) error {
	kws := ix.Keywords()
	switch format {
	case DumpJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(kws)
	case DumpYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(kws); err != nil {
			return err
		}
		return enc.Close()
	case DumpNames:
		bw := bufio.NewWriter(w)
		for _, kw := range kws {
			fmt.Fprintln(bw, kw.Name)
		}
		return bw.Flush()
	case DumpINI:
		return dumpINI(w, kws)
	default:
		return fmt.Errorf("unknown dump format %q", format)
	}
}

func dumpINI(w io.Writer, kws []*Keyword) error {
	bw := bufio.NewWriter(w)
	for i, kw := range kws {
		if i > 0 {
			fmt.Fprintln(bw)
		}
		fmt.Fprintf(bw, "[%s]\n", kw.Name)
		if kw.HelpFile != "" {
			fmt.Fprintf(bw, "help=%s\n", kw.HelpFile)
		}
		for j, o := range kw.Overloads {
			fmt.Fprintf(bw, "overload%d=%s\n", j, formatOverload(o))
		}
	}
	return bw.Flush()
}

func formatOverload(o Overload) string {
	args := make([]string, len(o.Args))
	for i, a := range o.Args {
		switch {
		case a.Name != "" && a.Type != TypeUnknown:
			args[i] = a.Name + " as " + a.Type.String()
		case a.Name != "":
			args[i] = a.Name
		default:
			args[i] = a.Type.String()
		}
	}
	s := strings.Join(args, ", ")
	if o.HasReturn {
		s = "(" + s + ")"
		if o.ReturnType != TypeUnknown {
			s += " as " + o.ReturnType.String()
		}
	}
	if o.Symbol != "" {
		s += " -> " + o.Plugin + "!" + o.Symbol
	}
	return s
}
