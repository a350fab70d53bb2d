package workflow

import (
	"strings"

	"github.com/tombee/stitch/internal/yamlmap"
	"github.com/tombee/stitch/pkg/errors"
	"github.com/tombee/stitch/pkg/expression"
	"github.com/tombee/stitch/pkg/reference"
)

// buildInputs computes the inputs binding for one include site: the
// target's declared inputs, their defaults, and the include's with block.
// Every with entry must match a declared input and every required input
// must end up bound.
func buildInputs(target *yamlmap.Map, include *yamlmap.Map, current reference.Reference, targetName string) (map[string]interface{}, error) {
	with := yamlmap.New()
	if w := include.GetMap("with"); w != nil {
		with = w.Clone()
	}

	// Include targets written inside with values resolve against the file
	// the include statement appears in, not the file that finally expands
	// them.
	if current != nil {
		if err := resolveWithPaths(current, with); err != nil {
			return nil, err
		}
	}

	inputs := make(map[string]interface{})
	declared := target.GetMap("inputs")
	if declared != nil {
		for _, name := range declared.Keys() {
			var spec *yamlmap.Map
			if s := declared.GetMap(name); s != nil {
				spec = s
			} else {
				spec = yamlmap.New()
			}

			value, bound := spec.Get("default")
			if v, ok := with.Get(name); ok {
				value, bound = v, true
				with.Delete(name)
			}

			if !bound {
				if required, _ := spec.Get("required"); required == true {
					return nil, &errors.MissingInputError{Input: name, Target: targetName}
				}
				inputs[name] = nil
				continue
			}

			parsed, err := expression.ParseScalar(value)
			if err != nil {
				return nil, err
			}
			inputs[name] = parsed
		}
	}

	if with.Len() > 0 {
		extra := make(map[string]interface{}, with.Len())
		for _, k := range with.Keys() {
			v, _ := with.Get(k)
			extra[k] = v
		}
		return nil, &errors.UnexpectedInputError{Inputs: extra, Target: targetName}
	}

	return inputs, nil
}

// resolveWithPaths rewrites include targets nested in with values into
// resolved references, recursing through nested mappings. Keys starting
// with "includes" are the convention for passing an include target as an
// input.
func resolveWithPaths(current reference.Reference, with *yamlmap.Map) error {
	for _, k := range with.Keys() {
		v, _ := with.Get(k)
		if sub, ok := v.(*yamlmap.Map); ok {
			if err := resolveWithPaths(current, sub); err != nil {
				return err
			}
			continue
		}
		if !strings.HasPrefix(k, "includes") {
			continue
		}
		s, ok := v.(string)
		if !ok {
			continue
		}
		resolved, err := reference.Resolve(current, s, reference.KindAction)
		if err != nil {
			return err
		}
		with.Set(k, resolved)
	}
	return nil
}
