package workflow

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/tombee/stitch/internal/yamlmap"
	"github.com/tombee/stitch/pkg/errors"
	"github.com/tombee/stitch/pkg/reference"
)

// Expand flattens the workflow at src into the text of the file to be
// written at outPath (repository-relative). Leading comment lines of the
// source survive at the top of the output, followed by a header naming
// the source file, so readers and the check step both know where the
// generated file came from.
func (e *Expander) Expand(ctx context.Context, src reference.Reference, outPath string) (string, error) {
	data, err := e.fetcher.Read(ctx, src)
	if err != nil {
		return "", errors.Wrapf(err, "reading %s", src)
	}

	lines := strings.Split(data, "\n")
	var header []string
	for len(lines) > 0 && strings.HasPrefix(lines[0], "#") {
		header = append(header, lines[0])
		lines = lines[1:]
	}

	var doc yamlmap.Map
	if err := yaml.Unmarshal([]byte(strings.Join(lines, "\n")), &doc); err != nil {
		return "", &errors.ParseError{Source: src.String(), Reason: "invalid YAML", Cause: err}
	}

	e.logger.Info("expanding workflow", "source", src.String(), "output", outPath)
	expanded, err := e.expandJobs(ctx, src, &doc)
	if err != nil {
		return "", err
	}

	if e.opts.InsertCheckSteps {
		e.insertCheckSteps(expanded, outPath)
	}

	var body strings.Builder
	enc := yaml.NewEncoder(&body)
	enc.SetIndent(2)
	if err := enc.Encode(expanded); err != nil {
		return "", errors.Wrapf(err, "encoding %s", outPath)
	}
	if err := enc.Close(); err != nil {
		return "", err
	}

	var out strings.Builder
	for _, line := range header {
		out.WriteString(line)
		out.WriteByte('\n')
	}
	out.WriteString(generatedHeader(src, outPath, e.opts.CheckAction))
	out.WriteString(body.String())
	return out.String(), nil
}

// generatedHeader is the warning block between the preserved comments and
// the flattened document.
func generatedHeader(src reference.Reference, outPath, checkAction string) string {
	srcPath := outPath
	switch t := src.(type) {
	case reference.Local:
		srcPath = t.Path
	case reference.Remote:
		srcPath = t.Path
	}
	rel, err := filepath.Rel("/"+path.Dir(outPath), "/"+srcPath)
	if err != nil {
		rel = srcPath
	}

	return fmt.Sprintf(`
# !! WARNING !!
# Do not modify this file directly!
# !! WARNING !!
#
# %s%s
# using the script from https://github.com/%s

`, Marker, filepath.ToSlash(rel), checkAction)
}

// insertCheckSteps prepends the up-to-date verification step to every job
// that has steps. Inside this project's own repository the checkout is
// used instead of the published action, so changes to the expander itself
// are verified with the code under review.
func (e *Expander) insertCheckSteps(doc *yamlmap.Map, outPath string) {
	var inserts []*yamlmap.Map

	checkAction := e.opts.CheckAction
	checkName := "Check workflow expansion is up to date"
	if runningInOwnRepo() {
		inserts = append(inserts, yamlmap.FromPairs(
			"name", "Get source code",
			"uses", "actions/checkout@v4",
		))
		checkAction = "./.github/includes/actions/local"
		checkName = "Check workflow expansion is up to date (local)"
	}

	inserts = append(inserts, yamlmap.FromPairs(
		"name", checkName,
		"uses", checkAction,
		"if", "runner.os == 'Linux'",
		"continue-on-error", false,
		"with", yamlmap.FromPairs("workflow", outPath),
	))

	jobs := doc.GetMap("jobs")
	if jobs == nil {
		return
	}
	for _, name := range jobs.Keys() {
		job := jobs.GetMap(name)
		if job == nil {
			continue
		}
		steps := job.GetSlice("steps")
		if steps == nil {
			continue
		}
		prepended := make([]interface{}, 0, len(inserts)+len(steps))
		for _, s := range inserts {
			prepended = append(prepended, s.Clone())
		}
		job.Set("steps", append(prepended, steps...))
	}
}
