package expression

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/tombee/stitch/pkg/errors"
)

// Lexical classes. Strings are single-quoted runs with a literal quote
// escaped by doubling; everything identifier-ish (names, numbers, dotted
// and bracketed lookups) is one run. The remaining characters between runs
// are operator characters, consumed one at a time and merged into two-char
// operators while folding.
var (
	reString = `('[^']*')+`
	reIdent  = `[a-zA-Z.\-0-9_\[\]]+`
	reBits   = regexp.MustCompile(`(` + reString + `)|(` + reIdent + `)`)

	reInt    = regexp.MustCompile(`^-?[0-9]+$`)
	reFloat  = regexp.MustCompile(`^-?[0-9]+\.[0-9]+$`)
	reHex    = regexp.MustCompile(`^0x[0-9a-fA-F]+$`)
	reExpNum = regexp.MustCompile(`^-?[0-9]+\.[0-9]+-?[eE][0-9.]+$`)
	reValue  = regexp.MustCompile(`^[a-zA-Z][_a-zA-Z0-9\-]*$`)
	reLookup = regexp.MustCompile(`(?:\.[a-zA-Z][_a-zA-Z0-9\-]*)|(?:\[[^\]]+\])`)
)

// opTok is a run of operator characters: `!`, `(`, `)`, `,` and the
// partial or merged infix operators.
type opTok string

// funcTok is a recognized function name awaiting its argument list.
type funcTok struct{ fn *Func }

// tokList is a parenthesized group that has not folded to a single
// operand, such as a comma-separated argument list.
type tokList []interface{}

// Parse turns raw expression source (the text between `${{` and `}}`)
// into an expression tree. The result is a Node, or a concrete value for
// pure literals. Symbolic folding happens in Simplify; Parse only builds
// structure and reports malformed input.
func Parse(src string) (interface{}, error) {
	tree, err := parseTree(src)
	if err != nil {
		return nil, err
	}
	return tree, nil
}

func parseTree(src string) (interface{}, error) {
	fail := func(reason string) error {
		return &errors.ParseError{Source: src, Reason: reason}
	}

	stack := []tokList{{}}
	for _, tok := range scan(src) {
		if op, ok := tok.(opTok); ok {
			switch op {
			case "(":
				stack = append(stack, tokList{})
				continue
			case ")":
				if len(stack) < 2 {
					return nil, fail("unbalanced parenthesis")
				}
				group := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				tok = swizzle(group)
			}
		}

		if lit, ok := tok.(literalTok); ok {
			v, err := fromLiteral(string(lit))
			if err != nil {
				return nil, &errors.ParseError{Source: src, Reason: err.Error()}
			}
			tok = v
		}

		top := &stack[len(stack)-1]
		if len(*top) > 0 {
			last := (*top)[len(*top)-1]

			// Merge operator characters into two-char infix operators.
			if lop, ok := last.(opTok); ok {
				if cop, ok := tok.(opTok); ok {
					if _, infix := infixFuncs[string(lop)+string(cop)]; infix {
						(*top)[len(*top)-1] = lop + cop
						continue
					}
				}
			}

			// A pending function name consumes the next operand group as
			// its argument list.
			if ft, ok := last.(funcTok); ok {
				call, err := buildCall(ft.fn, tok)
				if err != nil {
					return nil, &errors.ParseError{Source: src, Reason: err.Error()}
				}
				(*top)[len(*top)-1] = call
				continue
			}
		}

		*top = append(*top, tok)
	}

	if len(stack) != 1 {
		return nil, fail("unbalanced parenthesis")
	}

	result := swizzle(stack[0])
	if err := validateTree(result); err != nil {
		return nil, &errors.ParseError{Source: src, Reason: err.Error()}
	}
	return result, nil
}

// literalTok is a raw identifier/string run awaiting literal conversion.
type literalTok string

// scan splits source text into literal runs and single operator characters.
func scan(src string) []interface{} {
	var tokens []interface{}
	i := 0
	for i < len(src) {
		loc := reBits.FindStringIndex(src[i:])
		var gap string
		if loc == nil {
			gap = src[i:]
		} else {
			gap = src[i : i+loc[0]]
		}
		for _, c := range gap {
			if strings.TrimSpace(string(c)) == "" {
				continue
			}
			tokens = append(tokens, opTok(string(c)))
		}
		if loc == nil {
			break
		}
		tokens = append(tokens, literalTok(src[i+loc[0]:i+loc[1]]))
		i += loc[1]
	}
	return tokens
}

// swizzle folds a token group into its final node: a leading `!` wraps the
// next item, an infix operator at the second position combines the left
// operand with the right-associated fold of the rest, and a single item
// collapses transparently. Comma-separated argument lists stay as lists
// for buildCall to consume.
func swizzle(group tokList) interface{} {
	if len(group) > 1 {
		if op, ok := group[0].(opTok); ok && op == "!" {
			wrapped := &Call{Fn: FnNot, Args: []interface{}{swizzleItem(group[1])}}
			rest := append(tokList{wrapped}, group[2:]...)
			return swizzle(rest)
		}
	}
	if len(group) > 2 {
		if op, ok := group[1].(opTok); ok {
			if fn, infix := infixFuncs[string(op)]; infix {
				a := swizzleItem(group[0])
				c := swizzle(group[2:])
				return &Call{Fn: fn, Args: []interface{}{a, c}}
			}
		}
	}
	if len(group) == 1 {
		return swizzleItem(group[0])
	}
	return group
}

func swizzleItem(tok interface{}) interface{} {
	if list, ok := tok.(tokList); ok {
		return swizzle(list)
	}
	return tok
}

// buildCall assembles a Call from a function and its folded argument
// group, applying arity rules per function kind.
func buildCall(fn *Func, args interface{}) (*Call, error) {
	list, isList := args.(tokList)

	switch fn.Kind {
	case kindBinary:
		if !isList || len(list) != 3 {
			return nil, fmt.Errorf("%s() takes exactly 2 arguments", fn.Name)
		}
		if op, ok := list[1].(opTok); !ok || op != "," {
			return nil, fmt.Errorf("%s() arguments must be comma separated", fn.Name)
		}
		return &Call{Fn: fn, Args: []interface{}{swizzleItem(list[0]), swizzleItem(list[2])}}, nil

	case kindUnary:
		if isList {
			return nil, fmt.Errorf("%s() takes exactly 1 argument", fn.Name)
		}
		return &Call{Fn: fn, Args: []interface{}{args}}, nil

	case kindVarArgs:
		var out []interface{}
		if isList {
			for i, a := range list {
				if i%2 == 1 {
					if op, ok := a.(opTok); !ok || op != "," {
						return nil, fmt.Errorf("%s() arguments must be comma separated", fn.Name)
					}
					continue
				}
				out = append(out, swizzleItem(a))
			}
		} else {
			out = []interface{}{args}
		}
		return &Call{Fn: fn, Args: out}, nil

	case kindEmpty:
		if !isList || len(list) != 0 {
			return nil, fmt.Errorf("%s() takes no arguments", fn.Name)
		}
		return &Call{Fn: fn}, nil

	default:
		return nil, fmt.Errorf("%s is not callable", fn.Name)
	}
}

// validateTree rejects leftovers that never folded into operands: stray
// operators, function names without argument lists, and unfoldable groups.
func validateTree(v interface{}) error {
	switch t := v.(type) {
	case opTok:
		return fmt.Errorf("unexpected operator %q", string(t))
	case funcTok:
		return fmt.Errorf("%s is missing its argument list", t.fn.Name)
	case tokList:
		return fmt.Errorf("expected a single expression")
	case *Call:
		for _, a := range t.Args {
			if err := validateTree(a); err != nil {
				return err
			}
		}
	case *Lookup:
		for _, seg := range t.Segments {
			if err := validateTree(seg); err != nil {
				return err
			}
		}
	}
	return nil
}

// fromLiteral converts one literal run into a value or symbolic node:
// null/true/false, integers, decimals, single-quoted strings (doubled
// quote unescaping), lookup chains, bare identifiers (which may resolve
// to a recognized function name), and hex or exponent forms kept as
// opaque strings.
func fromLiteral(text string) (interface{}, error) {
	v := strings.TrimSpace(text)

	switch v {
	case "null":
		return nil, nil
	case "true":
		return true, nil
	case "false":
		return false, nil
	}

	switch {
	case reInt.MatchString(v):
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("bad integer %q", v)
		}
		return n, nil
	case reFloat.MatchString(v):
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("bad number %q", v)
		}
		return f, nil
	case reHex.MatchString(v), reExpNum.MatchString(v):
		return v, nil
	}

	if len(v) >= 2 && v[0] == '\'' && v[len(v)-1] == '\'' {
		return strings.ReplaceAll(v[1:len(v)-1], "''", "'"), nil
	}

	if loc := reLookup.FindStringIndex(v); loc != nil {
		segments := []interface{}{v[:loc[0]]}
		for _, m := range reLookup.FindAllString(v, -1) {
			switch {
			case strings.HasPrefix(m, "."):
				segments = append(segments, m[1:])
			case strings.HasPrefix(m, "["):
				inner, err := fromLiteral(m[1 : len(m)-1])
				if err != nil {
					return nil, err
				}
				segments = append(segments, inner)
			}
		}
		return &Lookup{Segments: segments}, nil
	}

	if reValue.MatchString(v) {
		if fn, ok := namedFuncs[strings.ToLower(v)]; ok {
			return funcTok{fn: fn}, nil
		}
		return Value(v), nil
	}

	return nil, fmt.Errorf("unknown literal %q", v)
}
