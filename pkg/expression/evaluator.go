package expression

import (
	"encoding/json"
	"fmt"
	"reflect"
	"regexp"
	"strings"
)

// Context binds top-level names (github, inputs, matrix, …) to values for
// partial evaluation. Values may be concrete scalars, nested structures, or
// Nodes that substitute symbolically.
type Context map[string]interface{}

// Mapping is the lookup surface the evaluator walks for nested structures.
// Order-preserving document maps satisfy it without this package depending
// on their representation.
type Mapping interface {
	Get(key string) (interface{}, bool)
}

// Simplify reduces a parsed tree against ctx: bound names are substituted,
// calls whose arguments became concrete are computed, and everything else
// is rebuilt as a smaller residual tree.
func Simplify(v interface{}, ctx Context) interface{} {
	switch t := v.(type) {
	case Value:
		if ctx != nil {
			if bound, ok := ctx[string(t)]; ok {
				return bound
			}
		}
		return t

	case *Lookup:
		return lookupEval(t, ctx)

	case *Call:
		args := make([]interface{}, len(t.Args))
		for i, a := range t.Args {
			args[i] = Simplify(a, ctx)
		}
		return applyCall(t.Fn, args)

	default:
		return v
	}
}

// lookupEval resolves a lookup chain. Computed segments reduce first, then
// the chain walks the context from its head. A chain that cannot be walked
// to a concrete value floats through as a residual lookup over the reduced
// segments, so later passes with a richer context can retry it.
func lookupEval(l *Lookup, ctx Context) interface{} {
	segments := make([]interface{}, len(l.Segments))
	for i, seg := range l.Segments {
		if n, ok := seg.(Node); ok {
			segments[i] = Simplify(n, ctx)
		} else {
			segments[i] = seg
		}
	}

	residual := func() interface{} {
		return &Lookup{Segments: segments}
	}

	if ctx == nil {
		return residual()
	}

	var cur interface{} = map[string]interface{}(ctx)
	for _, seg := range segments {
		if IsNode(seg) {
			return residual()
		}
		next, ok := index(cur, seg)
		if !ok {
			return residual()
		}
		cur = next
	}
	return cur
}

// index fetches one lookup step from a container value.
func index(container, key interface{}) (interface{}, bool) {
	switch c := container.(type) {
	case Mapping:
		if k, ok := key.(string); ok {
			return c.Get(k)
		}
	case map[string]interface{}:
		if k, ok := key.(string); ok {
			v, ok := c[k]
			return v, ok
		}
	case Context:
		if k, ok := key.(string); ok {
			v, ok := c[k]
			return v, ok
		}
	case []interface{}:
		if i, ok := key.(int); ok && i >= 0 && i < len(c) {
			return c[i], true
		}
	}
	return nil, false
}

// applyCall folds one call whose arguments are already reduced.
func applyCall(fn *Func, args []interface{}) interface{} {
	switch fn {
	case FnNot:
		return Not(args[0])
	case FnAnd:
		return And(args...)
	case FnOr:
		return Or(args...)
	case FnEq:
		return Eq(args[0], args[1])
	case FnNotEq:
		return NotEq(args[0], args[1])
	case FnContains:
		return stringFold(fn, args, func(a, b string) bool { return strings.Contains(a, b) })
	case FnStartsWith:
		return stringFold(fn, args, strings.HasPrefix)
	case FnEndsWith:
		return stringFold(fn, args, strings.HasSuffix)
	case FnToJSON:
		if IsNode(args[0]) {
			return &Call{Fn: fn, Args: args}
		}
		data, err := json.Marshal(args[0])
		if err != nil {
			return &Call{Fn: fn, Args: args}
		}
		return string(data)
	case FnFromJSON:
		s, ok := args[0].(string)
		if !ok {
			return &Call{Fn: fn, Args: args}
		}
		var out interface{}
		if err := json.Unmarshal([]byte(s), &out); err != nil {
			return &Call{Fn: fn, Args: args}
		}
		return out
	default:
		// hashFiles and the job status functions only have meaning at run
		// time, so they always stay residual.
		return &Call{Fn: fn, Args: args}
	}
}

// Not negates a value, folding concrete arguments by truthiness.
func Not(v interface{}) interface{} {
	if IsNode(v) {
		return &Call{Fn: FnNot, Args: []interface{}{v}}
	}
	return !Truthy(v)
}

// And combines operands with &&: any concrete falsy operand collapses the
// whole conjunction to false, literal true and duplicate operands drop out,
// and whatever remains stays symbolic.
func And(args ...interface{}) interface{} {
	var kept []interface{}
	for _, a := range args {
		switch {
		case !IsNode(a) && !Truthy(a):
			return false
		case a == true:
			continue
		case containsValue(kept, a):
			continue
		default:
			kept = append(kept, a)
		}
	}
	switch len(kept) {
	case 0:
		return true
	case 1:
		return kept[0]
	}
	return &Call{Fn: FnAnd, Args: kept}
}

// Or combines operands with ||: any concrete truthy true collapses to true,
// concrete falsy and duplicate operands drop out.
func Or(args ...interface{}) interface{} {
	var kept []interface{}
	for _, a := range args {
		switch {
		case a == true:
			return true
		case !IsNode(a) && !Truthy(a):
			continue
		case containsValue(kept, a):
			continue
		default:
			kept = append(kept, a)
		}
	}
	switch len(kept) {
	case 0:
		return false
	case 1:
		return kept[0]
	}
	return &Call{Fn: FnOr, Args: kept}
}

// Eq compares two operands, folding when both are concrete or when both are
// structurally identical symbolic references.
func Eq(a, b interface{}) interface{} {
	if !IsNode(a) && !IsNode(b) {
		return looseEq(a, b)
	}
	if isVar(a) && isVar(b) && reflect.DeepEqual(a, b) {
		return true
	}
	return &Call{Fn: FnEq, Args: []interface{}{a, b}}
}

// NotEq is the negated counterpart of Eq.
func NotEq(a, b interface{}) interface{} {
	if !IsNode(a) && !IsNode(b) {
		return !looseEq(a, b)
	}
	if isVar(a) && isVar(b) && reflect.DeepEqual(a, b) {
		return false
	}
	return &Call{Fn: FnNotEq, Args: []interface{}{a, b}}
}

func isVar(v interface{}) bool {
	switch v.(type) {
	case Value, *Lookup:
		return true
	}
	return false
}

func stringFold(fn *Func, args []interface{}, f func(a, b string) bool) interface{} {
	for _, a := range args {
		if IsNode(a) {
			return &Call{Fn: fn, Args: args}
		}
	}
	return f(displayString(args[0]), displayString(args[1]))
}

// looseEq compares concrete values, treating the numeric types as one
// domain so 1 == 1.0 holds.
func looseEq(a, b interface{}) bool {
	if na, ok := toFloat(a); ok {
		if nb, ok := toFloat(b); ok {
			return na == nb
		}
		return false
	}
	return reflect.DeepEqual(a, b)
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

func containsValue(list []interface{}, v interface{}) bool {
	for _, item := range list {
		if reflect.DeepEqual(item, v) {
			return true
		}
	}
	return false
}

// displayString renders a concrete value for text substitution.
func displayString(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool:
		if val {
			return "true"
		}
		return "false"
	case int, int64:
		return fmt.Sprintf("%d", val)
	case float64:
		return formatFloat(val)
	default:
		return fmt.Sprintf("%v", val)
	}
}

var reEmbedded = regexp.MustCompile(`(?s)\$\{\{(.*?)\}\}`)

// ParseScalar interprets a document scalar: a string that is exactly one
// delimited `${{ … }}` expression parses and reduces (with no context) to
// its tree or literal value; anything else passes through unchanged.
func ParseScalar(v interface{}) (interface{}, error) {
	s, ok := v.(string)
	if !ok {
		return v, nil
	}
	trimmed := strings.TrimSpace(s)
	if !strings.HasPrefix(trimmed, "${{") || !strings.HasSuffix(trimmed, "}}") {
		return v, nil
	}
	tree, err := Parse(strings.TrimSpace(trimmed[3 : len(trimmed)-2]))
	if err != nil {
		return nil, err
	}
	return Simplify(tree, nil), nil
}

// Eval reduces a document string against ctx. A string that is a single
// delimited expression returns its reduced value with its type intact;
// otherwise every embedded `${{ … }}` reduces in place, residuals render
// back as delimited text and concrete values splice in as text.
func Eval(s string, ctx Context) (interface{}, error) {
	if len(s) >= 5 && strings.HasPrefix(s, "${{") && strings.HasSuffix(s, "}}") &&
		!strings.Contains(s[3:len(s)-2], "${{") {
		tree, err := Parse(strings.TrimSpace(s[3 : len(s)-2]))
		if err != nil {
			return nil, err
		}
		return Simplify(tree, ctx), nil
	}

	var evalErr error
	out := reEmbedded.ReplaceAllStringFunc(s, func(m string) string {
		src := strings.TrimSpace(m[3 : len(m)-2])
		tree, err := Parse(src)
		if err != nil {
			if evalErr == nil {
				evalErr = err
			}
			return m
		}
		v := Simplify(tree, ctx)
		if n, ok := v.(Node); ok {
			return Delimit(n)
		}
		return displayString(v)
	})
	if evalErr != nil {
		return nil, evalErr
	}
	return out, nil
}

// EvalValue reduces an arbitrary decoded document value: strings go through
// Eval, trees reduce directly, and other values pass through unchanged.
// Containers are not recursed here; the document walkers own that.
func EvalValue(v interface{}, ctx Context) (interface{}, error) {
	switch t := v.(type) {
	case string:
		return Eval(t, ctx)
	case Node:
		return Simplify(t, ctx), nil
	default:
		return v, nil
	}
}
