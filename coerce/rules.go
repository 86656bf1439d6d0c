// Package coerce rewrites loosely shaped model output into the canonical
// field layout expected by schema construction.
//
// A Shape is an ordered list of Rules. Each rule names a canonical key, the
// aliases accepted for it, a cardinality, an optional default and an optional
// enum normalization table. Apply runs the rules in order and never fails:
// anything it cannot fix is left for schema construction to reject.
package coerce

import (
	"fmt"
	"strings"
)

// Cardinality controls how a value's multiplicity is normalized.
type Cardinality int

const (
	// Keep leaves the value's multiplicity unchanged.
	Keep Cardinality = iota
	// Scalar reduces a list, nested or not, to its first element; an empty
	// list becomes "".
	Scalar
	// List wraps a lone scalar in a single-element list.
	List
	// Joined renders a list as newline-separated text.
	Joined
)

func (c Cardinality) String() string {
	switch c {
	case Scalar:
		return "scalar"
	case List:
		return "list"
	case Joined:
		return "joined"
	default:
		return "keep"
	}
}

// DefaultFunc produces the default for an absent field. index is the
// zero-based position of the enclosing object in its parent list, or 0.
type DefaultFunc func(index int) any

// Rule maps a set of aliases onto one canonical key.
type Rule struct {
	// Canonical is the key written to the output.
	Canonical string
	// Aliases are consulted in order when Canonical is absent.
	Aliases []string
	// Cardinality normalizes lists and scalars.
	Cardinality Cardinality
	// Default fills the field when it is absent or null.
	Default DefaultFunc
	// Values maps lower-cased string values onto canonical enum values.
	Values map[string]string
	// Fallback replaces a string value not found in Values. Empty leaves it.
	Fallback string
	// AsString renders numbers and booleans as strings.
	AsString bool
	// Flatten renders each list element as text.
	Flatten bool
	// Item is applied to nested objects: to the value itself when it is an
	// object, or to each object element when it is a list.
	Item *Shape
}

// Shape is an ordered rule set for one kind of object.
type Shape struct {
	Name  string
	Rules []Rule
	// Unwrap lists envelope keys whose object value replaces the input when
	// the input has none of the shape's own fields.
	Unwrap []string
	// ScalarKey promotes a bare string list element to {ScalarKey: value}.
	ScalarKey string
}

// Text returns a default producing a fixed string.
func Text(s string) DefaultFunc {
	return func(int) any { return s }
}

// Indexed returns a default producing format with the 1-based index.
func Indexed(format string) DefaultFunc {
	return func(i int) any { return fmt.Sprintf(format, i+1) }
}

// EmptyList returns a default producing a fresh empty list.
func EmptyList() DefaultFunc {
	return func(int) any { return []any{} }
}

// EmptyObject returns a default producing a fresh empty object.
func EmptyObject() DefaultFunc {
	return func(int) any { return map[string]any{} }
}

// Enum builds a Values table. Each canonical value maps to itself and to every
// listed synonym.
func Enum(synonyms map[string][]string) map[string]string {
	values := make(map[string]string)
	for canonical, alts := range synonyms {
		values[strings.ToLower(canonical)] = canonical
		for _, a := range alts {
			values[strings.ToLower(a)] = canonical
		}
	}
	return values
}
