package workflow

import (
	"strings"

	"github.com/tombee/stitch/internal/yamlmap"
	"github.com/tombee/stitch/pkg/expression"
)

// substitute rewrites a decoded document fragment against ctx: mappings
// and sequences recurse, expression trees reduce, and strings evaluate
// their embedded `${{ … }}` segments. Everything else passes through.
//
// Containers are rebuilt rather than mutated because included documents
// are cached and expanded once per include site with different inputs.
func substitute(v interface{}, ctx expression.Context) (interface{}, error) {
	switch t := v.(type) {
	case *yamlmap.Map:
		out := yamlmap.New()
		for _, k := range t.Keys() {
			item, _ := t.Get(k)
			replaced, err := substitute(item, ctx)
			if err != nil {
				return nil, err
			}
			out.Set(k, replaced)
		}
		return out, nil

	case []interface{}:
		out := make([]interface{}, 0, len(t))
		for _, item := range t {
			replaced, err := substitute(item, ctx)
			if err != nil {
				return nil, err
			}
			out = append(out, replaced)
		}
		return out, nil

	case expression.Node:
		return expression.Simplify(t, ctx), nil

	case string:
		if !strings.Contains(t, "${{") {
			return t, nil
		}
		return expression.Eval(t, ctx)

	default:
		return v, nil
	}
}

// documentContext builds the evaluation context for an included document:
// the document's own top-level entries plus the computed inputs binding.
// Top-level entries let includes define private lookup tables next to
// their steps.
func documentContext(doc *yamlmap.Map, inputs map[string]interface{}) expression.Context {
	ctx := make(expression.Context, doc.Len()+1)
	for _, k := range doc.Keys() {
		v, _ := doc.Get(k)
		ctx[k] = v
	}
	ctx["inputs"] = inputs
	return ctx
}
