package workflow

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/tombee/stitch/internal/yamlmap"
	"github.com/tombee/stitch/pkg/errors"
	"github.com/tombee/stitch/pkg/expression"
	"github.com/tombee/stitch/pkg/reference"
)

// queuedStep is one unit of step-expansion work: the step itself, the file
// it came from, and the include chain that led there.
type queuedStep struct {
	ref   reference.Reference
	chain []string
	step  *yamlmap.Map
}

// stepHandlers dispatches the terminal step kinds. Includes steps are
// handled separately because they replace themselves with several steps.
var stepHandlers = map[StepKind]func(*Expander, context.Context, queuedStep) (*yamlmap.Map, error){
	StepRun:            (*Expander).expandRunStep,
	StepUses:           (*Expander).expandUsesStep,
	StepIncludesScript: (*Expander).expandScriptStep,
}

// expandJobSteps flattens the steps of one job. The work queue is
// processed front-first and an includes step pushes its replacement steps
// back onto the front, so nested includes expand depth-first and the final
// order matches the source order.
func (e *Expander) expandJobSteps(ctx context.Context, fileRef reference.Reference, chain []string, job *yamlmap.Map) (*yamlmap.Map, error) {
	raw := job.GetSlice("steps")
	if raw == nil {
		// Jobs without steps call reusable workflows.
		if !job.Has("uses") {
			return nil, fmt.Errorf("job has neither steps nor uses")
		}
		return job, nil
	}

	queue := make([]queuedStep, 0, len(raw))
	for _, s := range raw {
		m, ok := s.(*yamlmap.Map)
		if !ok {
			return nil, fmt.Errorf("step must be a mapping, got %T", s)
		}
		queue = append(queue, queuedStep{ref: fileRef, chain: chain, step: m})
	}

	out := make([]interface{}, 0, len(queue))
	for len(queue) > 0 {
		item := queue[0]
		queue = queue[1:]

		kind, err := ClassifyStep(item.step)
		if err != nil {
			return nil, err
		}

		if kind != StepIncludes {
			step, err := stepHandlers[kind](e, ctx, item)
			if err != nil {
				return nil, err
			}
			out = append(out, step)
			continue
		}

		replacement, err := e.expandIncludeStep(ctx, item)
		if err != nil {
			return nil, err
		}
		queue = append(replacement, queue...)
	}

	result := job.Clone()
	result.Set("steps", out)
	return result, nil
}

func (e *Expander) expandRunStep(ctx context.Context, item queuedStep) (*yamlmap.Map, error) {
	return item.step, nil
}

// expandUsesStep rewrites the /name shorthand on uses values; everything
// else passes through untouched.
func (e *Expander) expandUsesStep(ctx context.Context, item queuedStep) (*yamlmap.Map, error) {
	uses := item.step.GetString("uses")
	if strings.HasPrefix(uses, "/") {
		item.step.Set("uses", "./.github/includes/actions"+uses)
	}
	return item.step, nil
}

// expandScriptStep inlines a script file as a run step. The script path is
// relative to the file the step appears in, and the shell is inferred from
// the file suffix unless the step sets one.
func (e *Expander) expandScriptStep(ctx context.Context, item queuedStep) (*yamlmap.Map, error) {
	step := item.step.Clone()
	script := step.GetString("includes-script")
	if script == "" {
		return nil, fmt.Errorf("includes-script must be a path")
	}
	step.Delete("includes-script")

	refPath := ""
	switch t := item.ref.(type) {
	case reference.Local:
		refPath = t.Path
	case reference.Remote:
		refPath = t.Path
	}
	scriptPath := path.Join(path.Dir(refPath), script)

	scriptRef, err := reference.Resolve(item.ref, "./"+scriptPath, "")
	if err != nil {
		return nil, err
	}
	data, err := e.fetcher.Read(ctx, scriptRef)
	if err != nil {
		return nil, errors.Wrapf(err, "including script %s from %s", script, item.ref)
	}

	step.Set("run", data)
	if !step.Has("shell") {
		if shell, ok := shellForScript[path.Ext(script)]; ok {
			step.Set("shell", shell)
		}
	}
	e.logger.Debug("included script", "script", script, "from", item.ref.String())
	return step, nil
}

// expandIncludeStep loads the target action, binds its inputs, rewrites
// its steps against them, and composes the include's guard onto every
// produced step. Steps whose composed guard is statically false disappear.
func (e *Expander) expandIncludeStep(ctx context.Context, item queuedStep) ([]queuedStep, error) {
	target, _ := item.step.Get("includes")
	fileRef, doc, err := e.loader.Action(ctx, item.ref, target)
	if err != nil {
		return nil, err
	}

	chain, err := extendChain(item.chain, fileRef)
	if err != nil {
		return nil, err
	}

	inputs, err := buildInputs(doc, item.step, item.ref, fileRef.String())
	if err != nil {
		return nil, errors.Wrapf(err, "including %s from %s", fileRef, item.ref)
	}
	doc.Delete("inputs")

	exprCtx := documentContext(doc, inputs)
	replaced, err := substitute(doc, exprCtx)
	if err != nil {
		return nil, errors.Wrapf(err, "expanding %s", fileRef)
	}
	doc = replaced.(*yamlmap.Map)

	runs := doc.GetMap("runs")
	if runs == nil || runs.GetSlice("steps") == nil {
		return nil, &errors.NotIncludableError{
			Reference: fileRef.String(),
			Reason:    "includes action has no steps",
		}
	}

	guard, err := guardOf(item.step)
	if err != nil {
		return nil, err
	}

	var out []queuedStep
	for _, s := range runs.GetSlice("steps") {
		step, ok := s.(*yamlmap.Map)
		if !ok {
			return nil, fmt.Errorf("step must be a mapping, got %T", s)
		}

		stepGuard, err := guardOf(step)
		if err != nil {
			return nil, err
		}
		combined := reduceGuard(expression.And(guard, stepGuard), exprCtx)
		if !applyGuard(step, combined) {
			continue
		}
		out = append(out, queuedStep{ref: fileRef, chain: chain, step: step})
	}
	return out, nil
}

// reduceGuard re-simplifies a composed guard against the include's
// context, so guards copied from the including file fold against the
// bound inputs too.
func reduceGuard(v interface{}, ctx expression.Context) interface{} {
	if n, ok := v.(expression.Node); ok {
		return expression.Simplify(n, ctx)
	}
	return v
}

// extendChain appends a newly entered include to the chain, detecting
// cycles before any content from the repeated file is queued.
func extendChain(chain []string, ref reference.Reference) ([]string, error) {
	name := ref.String()
	for _, seen := range chain {
		if seen == name {
			return nil, &errors.CyclicIncludeError{Chain: append(append([]string{}, chain...), name)}
		}
	}
	out := make([]string, 0, len(chain)+1)
	out = append(out, chain...)
	return append(out, name), nil
}
