// Package include resolves and loads the targets of includes directives.
// A target names a directory; the loader probes the well-known file names
// inside it and validates that what it found is actually includable.
package include

import (
	"context"
	"fmt"
	"log/slog"
	"path"

	"gopkg.in/yaml.v3"

	"github.com/tombee/stitch/internal/fetch"
	"github.com/tombee/stitch/internal/log"
	"github.com/tombee/stitch/internal/yamlmap"
	"github.com/tombee/stitch/pkg/errors"
	"github.com/tombee/stitch/pkg/reference"
)

// Loader loads include targets through a shared fetcher, so every include
// of the same file parses the same bytes.
type Loader struct {
	fetcher *fetch.Fetcher
	logger  *slog.Logger
}

// NewLoader creates a Loader on top of a fetcher.
func NewLoader(f *fetch.Fetcher, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{
		fetcher: f,
		logger:  log.WithComponent(logger, "include"),
	}
}

// Action loads an includes action. The target is either the raw string
// from the document or an already resolved reference passed through an
// input. It returns the reference of the file actually read along with
// its parsed document.
func (l *Loader) Action(ctx context.Context, current reference.Reference, target interface{}) (reference.Reference, *yamlmap.Map, error) {
	dir, name, err := l.resolveTarget(current, target, reference.KindAction)
	if err != nil {
		return nil, nil, err
	}

	fileRef, doc, err := l.probe(ctx, current, dir, name, reference.KindAction)
	if err != nil {
		return nil, nil, err
	}

	runs := doc.GetMap("runs")
	if runs == nil || runs.GetString("using") != "includes" {
		return nil, nil, &errors.NotIncludableError{
			Reference: fileRef.String(),
			Reason:    `action does not declare "using: includes"`,
		}
	}
	return fileRef, doc, nil
}

// Workflow loads an includes workflow fragment: a file that declares jobs
// to splice into the including workflow.
func (l *Loader) Workflow(ctx context.Context, current reference.Reference, target interface{}) (reference.Reference, *yamlmap.Map, error) {
	dir, name, err := l.resolveTarget(current, target, reference.KindWorkflow)
	if err != nil {
		return nil, nil, err
	}

	fileRef, doc, err := l.probe(ctx, current, dir, name, reference.KindWorkflow)
	if err != nil {
		return nil, nil, err
	}

	if doc.GetMap("jobs") == nil {
		return nil, nil, &errors.NotIncludableError{
			Reference: fileRef.String(),
			Reason:    "workflow fragment has no jobs",
		}
	}
	return fileRef, doc, nil
}

func (l *Loader) resolveTarget(current reference.Reference, target interface{}, kind reference.Kind) (reference.Reference, string, error) {
	switch t := target.(type) {
	case string:
		ref, err := reference.Resolve(current, t, kind)
		if err != nil {
			return nil, "", err
		}
		return ref, t, nil
	case reference.Reference:
		return t, t.String(), nil
	default:
		return nil, "", fmt.Errorf("includes target must be a string, got %T", target)
	}
}

// probe tries the candidate file names under dir in order and parses the
// first hit. When every candidate fails the per-candidate errors are
// reported together, so a typo in one include shows everywhere it was
// looked for.
func (l *Loader) probe(ctx context.Context, current, dir reference.Reference, name string, kind reference.Kind) (reference.Reference, *yamlmap.Map, error) {
	dirPath := ""
	switch t := dir.(type) {
	case reference.Local:
		dirPath = t.Path
	case reference.Remote:
		dirPath = t.Path
	}

	attempts := make(map[string]error)
	for _, candidate := range kind.Candidates() {
		fileRef := dir.WithPath(path.Join(dirPath, candidate))

		data, err := l.fetcher.Read(ctx, fileRef)
		if err != nil {
			attempts[fileRef.String()] = err
			continue
		}

		l.logger.Debug("including", "target", name, "file", fileRef.String())
		doc, err := parseDocument(fileRef, data)
		if err != nil {
			return nil, nil, err
		}
		return fileRef, doc, nil
	}

	includer := ""
	if current != nil {
		includer = current.String()
	}
	return nil, nil, &errors.ReferenceNotFoundError{
		Target:   name,
		Includer: includer,
		Attempts: attempts,
	}
}

func parseDocument(ref reference.Reference, data string) (*yamlmap.Map, error) {
	var doc yamlmap.Map
	if err := yaml.Unmarshal([]byte(data), &doc); err != nil {
		return nil, &errors.ParseError{
			Source: ref.String(),
			Reason: "invalid YAML",
			Cause:  err,
		}
	}
	return &doc, nil
}
