package workflow

import (
	"context"
	"fmt"

	"github.com/tombee/stitch/internal/yamlmap"
	"github.com/tombee/stitch/pkg/errors"
	"github.com/tombee/stitch/pkg/expression"
	"github.com/tombee/stitch/pkg/reference"
)

// queuedJob is one unit of job-expansion work.
type queuedJob struct {
	ref   reference.Reference
	chain []string
	name  string
	job   *yamlmap.Map
}

// expandJobs flattens the jobs table of a workflow. Jobs with an includes
// key are replaced by the jobs of the named workflow fragment, renamed by
// prefixing the including job's name and rewired so the fragment's
// internal needs edges stay inside the spliced group. Replacement jobs go
// back onto the front of the queue, so fragments can include further
// fragments.
func (e *Expander) expandJobs(ctx context.Context, fileRef reference.Reference, doc *yamlmap.Map) (*yamlmap.Map, error) {
	jobsMap := doc.GetMap("jobs")
	if jobsMap == nil {
		return nil, fmt.Errorf("workflow has no jobs")
	}

	queue := make([]queuedJob, 0, jobsMap.Len())
	for _, name := range jobsMap.Keys() {
		job := jobsMap.GetMap(name)
		if job == nil {
			return nil, fmt.Errorf("job %q must be a mapping", name)
		}
		queue = append(queue, queuedJob{ref: fileRef, name: name, job: job})
	}

	type namedJob struct {
		name string
		job  *yamlmap.Map
	}
	var done []namedJob

	for len(queue) > 0 {
		item := queue[0]
		queue = queue[1:]

		if !item.job.Has("includes") {
			job, err := e.expandJobSteps(ctx, item.ref, item.chain, item.job)
			if err != nil {
				return nil, errors.Wrapf(err, "expanding job %q", item.name)
			}
			done = append(done, namedJob{name: item.name, job: job})
			continue
		}

		replacement, err := e.expandIncludeJob(ctx, item)
		if err != nil {
			return nil, err
		}
		queue = append(replacement, queue...)
	}

	newJobs := yamlmap.New()
	for _, j := range done {
		newJobs.Set(j.name, j.job)
	}

	if err := checkNeeds(newJobs); err != nil {
		return nil, err
	}

	result := doc.Clone()
	result.Set("jobs", newJobs)
	return result, nil
}

// expandIncludeJob loads the workflow fragment an includes job names and
// produces its jobs, renamed and reguarded, in fragment order.
func (e *Expander) expandIncludeJob(ctx context.Context, item queuedJob) ([]queuedJob, error) {
	target, _ := item.job.Get("includes")
	fileRef, doc, err := e.loader.Workflow(ctx, item.ref, target)
	if err != nil {
		return nil, err
	}

	chain, err := extendChain(item.chain, fileRef)
	if err != nil {
		return nil, err
	}

	inputs, err := buildInputs(doc, item.job, item.ref, fileRef.String())
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

	includedJobs := doc.GetMap("jobs")
	if includedJobs == nil {
		return nil, &errors.NotIncludableError{
			Reference: fileRef.String(),
			Reason:    "workflow fragment has no jobs",
		}
	}

	guard, err := guardOf(item.job)
	if err != nil {
		return nil, err
	}
	needs := needsOf(item.job)

	var out []queuedJob
	for _, incName := range includedJobs.Keys() {
		incJob := includedJobs.GetMap(incName)
		if incJob == nil {
			return nil, fmt.Errorf("job %q in %s must be a mapping", incName, fileRef)
		}

		newName := item.name + incName

		// The fragment's internal needs edges follow the rename; the
		// including job's own needs are prepended so the whole group still
		// waits on them.
		newNeeds := append([]string{}, needs...)
		for _, n := range needsOf(incJob) {
			newNeeds = append(newNeeds, item.name+n)
		}
		setNeeds(incJob, newNeeds)

		incGuard, err := guardOf(incJob)
		if err != nil {
			return nil, err
		}
		combined := reduceGuard(expression.And(guard, incGuard), exprCtx)
		if !applyGuard(incJob, combined) {
			continue
		}

		out = append(out, queuedJob{ref: fileRef, chain: chain, name: newName, job: incJob})
	}
	return out, nil
}

// needsOf reads a job's needs as a list; the scalar form is one entry.
func needsOf(job *yamlmap.Map) []string {
	v, ok := job.Get("needs")
	if !ok {
		return nil
	}
	switch t := v.(type) {
	case string:
		return []string{t}
	case []interface{}:
		out := make([]string, 0, len(t))
		for _, n := range t {
			if s, ok := n.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// setNeeds writes needs back, collapsing a single edge to the scalar form.
func setNeeds(job *yamlmap.Map, needs []string) {
	switch len(needs) {
	case 0:
		return
	case 1:
		job.Set("needs", needs[0])
	default:
		out := make([]interface{}, len(needs))
		for i, n := range needs {
			out[i] = n
		}
		job.Set("needs", out)
	}
}

// checkNeeds verifies every needs edge points at a job that survived
// expansion, so statically dropped jobs cannot leave dangling references.
func checkNeeds(jobs *yamlmap.Map) error {
	names := make(map[string]bool, jobs.Len())
	for _, name := range jobs.Keys() {
		names[name] = true
	}
	for _, name := range jobs.Keys() {
		job := jobs.GetMap(name)
		if job == nil {
			continue
		}
		for _, n := range needsOf(job) {
			if !names[n] {
				return &errors.DanglingNeedsError{Job: name, Needs: n}
			}
		}
	}
	return nil
}
