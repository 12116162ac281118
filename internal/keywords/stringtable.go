package keywords

import (
	"fmt"
	"log/slog"
	"strings"
)

// ParseStringTable converts plugin string-table entries of the form
// `name[marker]%typeChars%symbol%argNames` into keywords. Malformed entries
// are skipped and reported through logger; an unknown type character is an
// error because it means the plugin cannot be called correctly.
func ParseStringTable(plugin string, entries []string, logger *slog.Logger) ([]*Keyword, error) {
	var (
		kws    []*Keyword
		byName = make(map[string]*Keyword)
	)

	for _, entry := range entries {
		fields := strings.Split(entry, "%")
		if len(fields) < 2 {
			if logger != nil {
				logger.Warn("invalid string table entry",
					slog.String("plugin", plugin), slog.String("entry", entry))
			}
			continue
		}

		name := fields[0]
		types := fields[1]
		o := Overload{Plugin: plugin}
		if len(fields) > 2 {
			o.Symbol = fields[2]
		}

		if strings.HasSuffix(name, "[") {
			name = strings.TrimSuffix(name, "[")
			if types == "" {
				return nil, fmt.Errorf("%s: %s: return marker without a return type", plugin, name)
			}
			rt, ok := TypeFromChar(types[0])
			if !ok {
				return nil, fmt.Errorf("%s: %s: unknown return type %q", plugin, name, types[0])
			}
			o.HasReturn = true
			o.ReturnType = rt
			types = types[1:]
		}
		name = strings.ToLower(name)

		var argNames []string
		if len(fields) > 3 && fields[3] != "" {
			argNames = strings.Split(fields[3], ",")
		}
		for i := 0; i < len(types); i++ {
			t, ok := TypeFromChar(types[i])
			if !ok {
				return nil, fmt.Errorf("%s: %s: unknown argument type %q", plugin, name, types[i])
			}
			if t == TypeVoid {
				continue
			}
			arg := Arg{Type: t}
			if len(o.Args) < len(argNames) {
				arg.Name = strings.TrimSpace(argNames[len(o.Args)])
			}
			o.Args = append(o.Args, arg)
		}

		if kw, ok := byName[name]; ok {
			kw.Overloads = append(kw.Overloads, o)
			continue
		}
		kw := &Keyword{Name: name, Overloads: []Overload{o}}
		byName[name] = kw
		kws = append(kws, kw)
	}
	return kws, nil
}
