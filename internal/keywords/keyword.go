// Package keywords holds the command database: every command name a plugin
// exports together with its overloads, and the longest-prefix matcher the
// lexer uses to recognise multi-word commands.
package keywords

import (
	"fmt"
	"strings"
)

// Type is a plugin type character as it appears in string tables.
type Type byte

const (
	TypeUnknown Type = 0 // keyword spec files carry argument names only
	TypeVoid    Type = '0'
	TypeInteger Type = 'L'
	TypeFloat   Type = 'F'
	TypeString  Type = 'S'
	TypeDouble  Type = 'O'
	TypeLong    Type = 'R'
	TypeDword   Type = 'D'
)

var typeNames = map[Type]string{
	TypeUnknown: "unknown",
	TypeVoid:    "void",
	TypeInteger: "integer",
	TypeFloat:   "float",
	TypeString:  "string",
	TypeDouble:  "double",
	TypeLong:    "long",
	TypeDword:   "dword",
}

// TypeFromChar validates a type character.
func TypeFromChar(c byte) (Type, bool) {
	t := Type(c)
	if t == TypeUnknown {
		return t, false
	}
	_, ok := typeNames[t]
	return t, ok
}

func (t Type) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("Type(%q)", byte(t))
}

// MarshalText renders the type by name so dumps stay readable.
func (t Type) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *Type) UnmarshalText(text []byte) error {
	for k, name := range typeNames {
		if name == string(text) {
			*t = k
			return nil
		}
	}
	return fmt.Errorf("unknown keyword type %q", text)
}

// Arg is one positional argument of an overload.
type Arg struct {
	Type Type   `json:"type" yaml:"type"`
	Name string `json:"name,omitempty" yaml:"name,omitempty"`
}

// Overload is one callable form of a command.
type Overload struct {
	Symbol     string `json:"symbol,omitempty" yaml:"symbol,omitempty"`
	Plugin     string `json:"plugin,omitempty" yaml:"plugin,omitempty"`
	Args       []Arg  `json:"args" yaml:"args"`
	HasReturn  bool   `json:"has_return" yaml:"has_return"`
	ReturnType Type   `json:"return_type" yaml:"return_type"`
}

// Bound reports whether the overload is backed by a plugin export.
func (o *Overload) Bound() bool {
	return o.Symbol != "" && o.Plugin != ""
}

// Keyword is a command name and all of its overloads.
type Keyword struct {
	Name      string     `json:"name" yaml:"name"`
	HelpFile  string     `json:"help_file,omitempty" yaml:"help_file,omitempty"`
	Overloads []Overload `json:"overloads" yaml:"overloads"`
}

// HasReturn reports whether the command yields a value. All overloads of a
// command agree on this.
func (k *Keyword) HasReturn() bool {
	return len(k.Overloads) > 0 && k.Overloads[0].HasReturn
}

// ReturnType is the type of the first overload that declares one.
func (k *Keyword) ReturnType() Type {
	for _, o := range k.Overloads {
		if o.HasReturn && o.ReturnType != TypeUnknown {
			return o.ReturnType
		}
	}
	return TypeUnknown
}

// OverloadForArity returns the first bound overload taking exactly n
// arguments, falling back to an unbound one.
func (k *Keyword) OverloadForArity(n int) (*Overload, bool) {
	var fallback *Overload
	for i := range k.Overloads {
		o := &k.Overloads[i]
		if len(o.Args) != n {
			continue
		}
		if o.Bound() {
			return o, true
		}
		if fallback == nil {
			fallback = o
		}
	}
	return fallback, fallback != nil
}

// Arities lists the argument counts the command accepts, for diagnostics.
func (k *Keyword) Arities() string {
	seen := map[int]bool{}
	var parts []string
	for _, o := range k.Overloads {
		if seen[len(o.Args)] {
			continue
		}
		seen[len(o.Args)] = true
		parts = append(parts, fmt.Sprint(len(o.Args)))
	}
	return strings.Join(parts, ", ")
}

// Clone returns a deep copy.
func (k *Keyword) Clone() *Keyword {
	c := *k
	c.Overloads = make([]Overload, len(k.Overloads))
	for i, o := range k.Overloads {
		o.Args = append([]Arg(nil), o.Args...)
		c.Overloads[i] = o
	}
	return &c
}

func (o *Overload) sameSignature(other *Overload) bool {
	if len(o.Args) != len(other.Args) || o.HasReturn != other.HasReturn {
		return false
	}
	for i := range o.Args {
		if o.Args[i].Type != other.Args[i].Type {
			return false
		}
	}
	return o.Symbol == other.Symbol
}
