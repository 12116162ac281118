package keywords

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrReturnMismatch is returned when overloads of one command disagree on
	// whether they return a value.
	ErrReturnMismatch = errors.New("overloads disagree on return value")

	// ErrMissingReturnGroup is returned when a command named with a `#` or `$`
	// suffix declares no returning overload.
	ErrMissingReturnGroup = errors.New("typed command name requires a return group")
)

// Index is the keyword database. Lookups are case-insensitive.
type Index struct {
	keywords map[string]*Keyword
	matcher  *Matcher
}

// NewIndex returns an empty index.
func NewIndex() *Index {
	return &Index{keywords: make(map[string]*Keyword)}
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Add inserts kw, or merges its overloads into an existing command of the
// same name. An unbound overload (from a spec file) is bound in place when a
// plugin export with the same arity arrives.
func (ix *Index) Add(kw *Keyword) error {
	key := normalize(kw.Name)
	if key == "" {
		return fmt.Errorf("keyword with empty name")
	}

	existing, ok := ix.keywords[key]
	if !ok {
		ix.keywords[key] = kw.Clone()
		ix.matcher = nil
		return nil
	}

	if len(existing.Overloads) > 0 && len(kw.Overloads) > 0 &&
		existing.HasReturn() != kw.HasReturn() {
		return fmt.Errorf("%s: %w", kw.Name, ErrReturnMismatch)
	}
	if existing.HelpFile == "" {
		existing.HelpFile = kw.HelpFile
	}

next:
	for _, o := range kw.Overloads {
		for i := range existing.Overloads {
			e := &existing.Overloads[i]
			if e.sameSignature(&o) && e.Plugin == o.Plugin {
				continue next
			}
			if !e.Bound() && o.Bound() && len(e.Args) == len(o.Args) {
				bindOverload(e, o)
				continue next
			}
		}
		o.Args = append([]Arg(nil), o.Args...)
		existing.Overloads = append(existing.Overloads, o)
	}
	return nil
}

// bindOverload copies plugin information onto a name-only overload while
// keeping the descriptive argument names from the spec file.
func bindOverload(dst *Overload, src Overload) {
	args := make([]Arg, len(src.Args))
	for i, a := range src.Args {
		if a.Name == "" && i < len(dst.Args) {
			a.Name = dst.Args[i].Name
		}
		args[i] = a
	}
	dst.Args = args
	dst.Symbol = src.Symbol
	dst.Plugin = src.Plugin
	dst.ReturnType = src.ReturnType
}

// AddAll adds every keyword, stopping at the first error.
func (ix *Index) AddAll(kws []*Keyword) error {
	for _, kw := range kws {
		if err := ix.Add(kw); err != nil {
			return err
		}
	}
	return nil
}

// Lookup finds a command by name.
func (ix *Index) Lookup(name string) (*Keyword, bool) {
	kw, ok := ix.keywords[normalize(name)]
	return kw, ok
}

// Len returns the number of distinct commands.
func (ix *Index) Len() int {
	return len(ix.keywords)
}

// Names returns every command name as stored, sorted case-insensitively.
func (ix *Index) Names() []string {
	names := make([]string, 0, len(ix.keywords))
	for _, kw := range ix.keywords {
		names = append(names, kw.Name)
	}
	sort.Slice(names, func(i, j int) bool {
		return strings.ToLower(names[i]) < strings.ToLower(names[j])
	})
	return names
}

// Keywords returns every command sorted by name.
func (ix *Index) Keywords() []*Keyword {
	kws := make([]*Keyword, 0, len(ix.keywords))
	for _, kw := range ix.keywords {
		kws = append(kws, kw)
	}
	sort.Slice(kws, func(i, j int) bool {
		return normalize(kws[i].Name) < normalize(kws[j].Name)
	})
	return kws
}

// Plugins returns the distinct plugin libraries referenced by any overload.
func (ix *Index) Plugins() []string {
	seen := make(map[string]bool)
	var plugins []string
	for _, kw := range ix.keywords {
		for _, o := range kw.Overloads {
			if o.Plugin != "" && !seen[o.Plugin] {
				seen[o.Plugin] = true
				plugins = append(plugins, o.Plugin)
			}
		}
	}
	sort.Strings(plugins)
	return plugins
}

func (ix *Index) matcherFor() *Matcher {
	if ix.matcher == nil {
		ix.matcher = NewMatcher(ix.Names())
	}
	return ix.matcher
}

// LongestMatch implements lexer.KeywordMatcher.
func (ix *Index) LongestMatch(s string) (int, bool) {
	return ix.matcherFor().LongestMatch(s)
}

// LongestKeywordLength implements lexer.KeywordMatcher.
func (ix *Index) LongestKeywordLength() int {
	return ix.matcherFor().LongestKeywordLength()
}

func (ix *Index) LongestKeywordWordCount() int {
	return ix.matcherFor().LongestKeywordWordCount()
}
