// Package predicate builds boolean filters over a sample's grouping variables.
// Expressions are constructed programmatically (or parsed once from a pairing
// template) and never round-trip through string interpolation.
package predicate

import (
	"strings"
)

// Attributes maps a grouping variable name to a sample's value for it.
type Attributes map[string]string

// Expr is a filter over Attributes. The concrete types are Eq, Ne, And and Or.
type Expr interface {
	Eval(Attributes) bool
	String() string

	// walk visits every grouping variable the expression reads.
	walk(func(variable string))
}

// Eq holds when the sample's value for Variable equals Value. A sample with no
// value for Variable never matches.
type Eq struct {
	Variable string
	Value    string
}

func (e Eq) Eval(a Attributes) bool {
	v, ok := a[e.Variable]
	return ok && v == e.Value
}

func (e Eq) String() string { return e.Variable + "==" + quote(e.Value) }

func (e Eq) walk(f func(string)) { f(e.Variable) }

// Ne holds when the sample has a value for Variable and it differs from Value.
type Ne struct {
	Variable string
	Value    string
}

func (e Ne) Eval(a Attributes) bool {
	v, ok := a[e.Variable]
	return ok && v != e.Value
}

func (e Ne) String() string { return e.Variable + "!=" + quote(e.Value) }

func (e Ne) walk(f func(string)) { f(e.Variable) }

// And holds when every term holds. An empty And is true.
type And []Expr

func (e And) Eval(a Attributes) bool {
	for _, term := range e {
		if !term.Eval(a) {
			return false
		}
	}
	return true
}

func (e And) String() string {
	parts := make([]string, 0, len(e))
	for _, term := range e {
		if _, isOr := term.(Or); isOr && len(term.(Or)) > 1 {
			parts = append(parts, "("+term.String()+")")
			continue
		}
		parts = append(parts, term.String())
	}
	return strings.Join(parts, " & ")
}

func (e And) walk(f func(string)) {
	for _, term := range e {
		term.walk(f)
	}
}

// Or holds when any term holds. An empty Or is false.
type Or []Expr

func (e Or) Eval(a Attributes) bool {
	for _, term := range e {
		if term.Eval(a) {
			return true
		}
	}
	return false
}

func (e Or) String() string {
	parts := make([]string, 0, len(e))
	for _, term := range e {
		if _, isAnd := term.(And); isAnd && len(term.(And)) > 1 {
			parts = append(parts, "("+term.String()+")")
			continue
		}
		parts = append(parts, term.String())
	}
	return strings.Join(parts, " | ")
}

func (e Or) walk(f func(string)) {
	for _, term := range e {
		term.walk(f)
	}
}

// Variables lists the distinct grouping variables read by e, in the order they
// first appear.
func Variables(e Expr) []string {
	seen := make(map[string]struct{})
	out := make([]string, 0)
	e.walk(func(v string) {
		if _, exists := seen[v]; exists {
			return
		}
		seen[v] = struct{}{}
		out = append(out, v)
	})

	return out
}

// Conjunction is shorthand for an And of equality tests, in the order given by
// variables.
func Conjunction(variables []string, values map[string]string) And {
	out := make(And, 0, len(variables))
	for _, v := range variables {
		out = append(out, Eq{Variable: v, Value: values[v]})
	}
	return out
}

// quote renders a value the way R-style filter strings are usually written:
// single quoted, falling back to double quotes when the value itself contains a
// single quote.
func quote(v string) string {
	if !strings.Contains(v, "'") {
		return "'" + v + "'"
	}
	if !strings.Contains(v, `"`) {
		return `"` + v + `"`
	}
	return "'" + strings.NewReplacer(`\`, `\\`, "'", `\'`).Replace(v) + "'"
}
