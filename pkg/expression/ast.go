// Package expression implements the `${{ … }}` condition and substitution
// language used by workflow documents.
//
// Expressions are parsed into a small closed tree (Value, Lookup, Call)
// and reduced against a Context by partial evaluation: names that are not
// bound in the context float through symbolically and render back to
// `${{ … }}` source text, because includes are expanded depth-first and
// run-time context (matrix, runner, secrets) is unknown at expansion time.
package expression

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Node is an expression tree node. Concrete values (nil, bool, int,
// float64, string and structured data) are represented directly as Go
// values; only the symbolic parts of an expression are Nodes.
type Node interface {
	node()

	// String renders the node as expression source text.
	String() string
}

// Value is a bare identifier, such as `inputs` or `always-run`.
type Value string

func (Value) node() {}

// String returns the identifier itself.
func (v Value) String() string { return string(v) }

// MarshalYAML renders the residual as a `${{ … }}` scalar.
func (v Value) MarshalYAML() (interface{}, error) { return Delimit(v), nil }

// Lookup is a dotted/bracketed access chain such as `matrix.os` or
// `versions[inputs.python-version]`. Segments are plain strings for dotted
// access, Nodes for computed bracket access, and other concrete values for
// literal bracket access.
type Lookup struct {
	Segments []interface{}
}

func (*Lookup) node() {}

// String renders the chain: string segments dotted, everything else bracketed.
func (l *Lookup) String() string {
	var b strings.Builder
	for i, seg := range l.Segments {
		switch s := seg.(type) {
		case string:
			if i > 0 {
				b.WriteByte('.')
			}
			b.WriteString(s)
		case Node:
			b.WriteByte('[')
			b.WriteString(s.String())
			b.WriteByte(']')
		default:
			b.WriteByte('[')
			b.WriteString(ToLiteral(seg))
			b.WriteByte(']')
		}
	}
	return b.String()
}

// MarshalYAML renders the residual as a `${{ … }}` scalar.
func (l *Lookup) MarshalYAML() (interface{}, error) { return Delimit(l), nil }

// Call is a function or operator application. Args hold concrete values
// or Nodes.
type Call struct {
	Fn   *Func
	Args []interface{}
}

func (*Call) node() {}

// String renders the call: infix operators join their operands, `!`
// prefixes (parenthesizing infix operands), named functions render as
// `name(arg, …)`.
func (c *Call) String() string {
	if c.Fn == FnNot {
		arg := c.Args[0]
		if inner, ok := arg.(*Call); ok && inner.Fn.Infix() {
			return "!(" + inner.String() + ")"
		}
		if n, ok := arg.(Node); ok {
			return "!" + n.String()
		}
		return "!" + ToLiteral(arg)
	}

	rendered := make([]string, len(c.Args))
	for i, a := range c.Args {
		rendered[i] = ToLiteral(a)
	}

	if c.Fn.Infix() {
		return strings.Join(rendered, " "+c.Fn.Op+" ")
	}
	return c.Fn.Name + "(" + strings.Join(rendered, ", ") + ")"
}

// MarshalYAML renders the residual as a `${{ … }}` scalar.
func (c *Call) MarshalYAML() (interface{}, error) { return Delimit(c), nil }

// IsNode reports whether v is a symbolic expression node.
func IsNode(v interface{}) bool {
	_, ok := v.(Node)
	return ok
}

// Delimit wraps rendered expression text in `${{ … }}` delimiters.
func Delimit(n Node) string {
	return "${{ " + n.String() + " }}"
}

// ToLiteral renders a value in expression literal form: null, true/false,
// numbers (floats always with a decimal point), single-quoted strings with
// doubled-quote escaping, and Nodes as their source text.
func ToLiteral(v interface{}) string {
	switch val := v.(type) {
	case Node:
		return val.String()
	case nil:
		return "null"
	case bool:
		if val {
			return "true"
		}
		return "false"
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		return formatFloat(val)
	case string:
		return "'" + strings.ReplaceAll(val, "'", "''") + "'"
	default:
		// Structured data only appears transiently inside contexts; render
		// it as JSON so error paths stay readable.
		data, err := json.Marshal(val)
		if err != nil {
			return "null"
		}
		return string(data)
	}
}

func formatFloat(f float64) string {
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}

// Truthy reports expression truthiness: false, null, the empty string and
// numeric zero are falsy, everything else is truthy.
func Truthy(v interface{}) bool {
	switch val := v.(type) {
	case nil:
		return false
	case bool:
		return val
	case string:
		return val != ""
	case int:
		return val != 0
	case int64:
		return val != 0
	case float64:
		return val != 0
	default:
		return true
	}
}
