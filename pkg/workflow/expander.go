// Package workflow flattens workflow documents: includes directives on
// steps and jobs are replaced by the content they name, with inputs bound,
// guards composed, and everything the expander cannot decide ahead of time
// left behind as `${{ … }}` expressions for the runner.
package workflow

import (
	"log/slog"
	"os"
	"strings"

	"github.com/tombee/stitch/internal/fetch"
	"github.com/tombee/stitch/internal/log"
	"github.com/tombee/stitch/pkg/workflow/include"
)

// Marker prefixes the source path in the generated file header. The check
// step greps for it to find the file to re-expand, so its text never
// changes.
const Marker = "It is generated from: "

// DefaultCheckAction is the published action inserted into expanded jobs
// to verify the flattened file is still in sync with its source.
const DefaultCheckAction = "tombee/stitch@main"

// Options configure one expansion run.
type Options struct {
	// InsertCheckSteps prepends a verification step to every job of the
	// expanded workflow.
	InsertCheckSteps bool

	// CheckAction overrides the action used by the verification step.
	CheckAction string
}

// Expander drives the flattening of one or more workflow files, sharing
// fetched and parsed includes between them.
type Expander struct {
	fetcher *fetch.Fetcher
	loader  *include.Loader
	logger  *slog.Logger
	opts    Options
}

// NewExpander creates an Expander on top of a fetcher.
func NewExpander(f *fetch.Fetcher, logger *slog.Logger, opts Options) *Expander {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.CheckAction == "" {
		opts.CheckAction = DefaultCheckAction
	}
	return &Expander{
		fetcher: f,
		loader:  include.NewLoader(f, logger),
		logger:  log.WithComponent(logger, "expand"),
		opts:    opts,
	}
}

// runningInOwnRepo reports whether the expansion runs inside this
// project's own repository, where the verification step must use the
// checkout instead of the published action.
func runningInOwnRepo() bool {
	return strings.HasSuffix(os.Getenv("GITHUB_REPOSITORY"), "/stitch")
}
