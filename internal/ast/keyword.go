package ast

import (
	"strings"

	"github.com/odb-lang/odb-compiler/internal/keywords"
)

// FromKeywordType maps a plugin-level type onto the language's value types.
// Double and long values are handled as float and integer by the language;
// code generation still marshals them at their native width.
func FromKeywordType(t keywords.Type) DataType {
	switch t {
	case keywords.TypeInteger, keywords.TypeDword, keywords.TypeLong:
		return TypeInteger
	case keywords.TypeFloat, keywords.TypeDouble:
		return TypeFloat
	case keywords.TypeString:
		return TypeString
	}
	return TypeNone
}

// SuffixType returns the type implied by a variable name's `$`/`#` suffix,
// integer when there is none.
func SuffixType(name string) DataType {
	switch {
	case strings.HasSuffix(name, "$"):
		return TypeString
	case strings.HasSuffix(name, "#"):
		return TypeFloat
	}
	return TypeInteger
}

// HasSuffix reports whether name carries an explicit type suffix.
func HasSuffix(name string) bool {
	return strings.HasSuffix(name, "$") || strings.HasSuffix(name, "#")
}
