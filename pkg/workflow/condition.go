package workflow

import (
	"strings"

	"github.com/tombee/stitch/internal/yamlmap"
	"github.com/tombee/stitch/pkg/expression"
)

// guardOf reads the `if` guard of a step or job as an expression value.
// A missing guard is true. Bare condition strings (the common form on
// GitHub) are treated as if they were delimited.
func guardOf(m *yamlmap.Map) (interface{}, error) {
	v, ok := m.Get("if")
	if !ok {
		return true, nil
	}
	if n, isNode := v.(expression.Node); isNode {
		return n, nil
	}
	s, isString := v.(string)
	if !isString {
		return v, nil
	}

	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "${{") {
		s = "${{ " + s + " }}"
	}
	return expression.ParseScalar(s)
}

// applyGuard writes the combined, reduced guard back onto a step or job.
// It reports whether the entry should be kept: a guard that reduced to a
// falsy constant means the entry can never run and drops out entirely.
func applyGuard(m *yamlmap.Map, guard interface{}) bool {
	if n, ok := guard.(expression.Node); ok {
		m.Set("if", n)
		return true
	}
	if !expression.Truthy(guard) {
		return false
	}
	m.Delete("if")
	return true
}
