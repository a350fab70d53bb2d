// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package expand

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tombee/stitch/internal/commands/shared"
	"github.com/tombee/stitch/internal/fetch"
	"github.com/tombee/stitch/internal/log"
	"github.com/tombee/stitch/internal/repo"
	"github.com/tombee/stitch/pkg/httpclient"
	"github.com/tombee/stitch/pkg/reference"
	"github.com/tombee/stitch/pkg/workflow"
)

// NewCommand creates the expand command
func NewCommand() *cobra.Command {
	var (
		noCheck bool
		rootDir string
	)

	cmd := &cobra.Command{
		Use:   "expand <input-workflow> <output-workflow>",
		Short: "Flatten include directives in a workflow file",
		Long: `Expand reads a workflow that uses includes and includes-script
directives and writes a flattened workflow containing only plain steps
and jobs. Expressions that can be decided from bound inputs are folded
away; everything else is left for the runner.

The output path, relative to the repository root, is recorded in a
marker comment so 'stitch check' can verify the file stays up to date.
Pass '-' as the output to write the flattened workflow to stdout.`,
		Example: `  # Example 1: Flatten a workflow source into the live workflows dir
  stitch expand .github/workflows-src/ci.yml .github/workflows/ci.yml

  # Example 2: Preview the flattened output without writing it
  stitch expand .github/workflows-src/ci.yml -

  # Example 3: Skip the self-check steps for faster CI jobs
  stitch expand --no-check .github/workflows-src/ci.yml .github/workflows/ci.yml`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExpand(cmd, args[0], args[1], noCheck, rootDir)
		},
	}

	cmd.Flags().BoolVar(&noCheck, "no-check", false, "Don't insert steps that check the workflow is up to date")
	cmd.Flags().StringVar(&rootDir, "root", "", "Repository root (default: discovered via git)")

	return cmd
}

func runExpand(cmd *cobra.Command, inArg, outArg string, noCheck bool, rootDir string) error {
	logger := log.New(log.FromEnv())

	if rootDir == "" {
		discovered, err := repo.Root(".")
		if err != nil {
			return shared.NewInvalidWorkflowError("not inside a git repository (pass --root to override)", err)
		}
		rootDir = discovered
	}
	absRoot, err := filepath.Abs(rootDir)
	if err != nil {
		return shared.NewInvalidWorkflowError("resolving repository root", err)
	}

	relIn, err := rootRelative(absRoot, inArg)
	if err != nil {
		return shared.NewInvalidWorkflowError(fmt.Sprintf("input workflow %s is not under %s", inArg, absRoot), err)
	}

	toStdout := outArg == "-"
	var relOut string
	if toStdout {
		// No real destination; the marker records where the file would
		// conventionally live.
		relOut = path.Join(".github", "workflows", filepath.Base(inArg))
	} else {
		relOut, err = rootRelative(absRoot, outArg)
		if err != nil {
			return shared.NewInvalidWorkflowError(fmt.Sprintf("output workflow %s is not under %s", outArg, absRoot), err)
		}
	}

	client, err := httpclient.New(httpclient.DefaultConfig())
	if err != nil {
		return shared.NewInvalidWorkflowError("building HTTP client", err)
	}
	fetcher := fetch.New(client, logger)
	expander := workflow.NewExpander(fetcher, logger, workflow.Options{
		InsertCheckSteps: !noCheck,
	})

	src := reference.Local{Root: absRoot, Path: relIn}
	out, err := expander.Expand(cmd.Context(), src, relOut)
	if err != nil {
		return shared.NewInvalidWorkflowError(fmt.Sprintf("expanding %s", inArg), err)
	}

	if toStdout {
		fmt.Fprint(cmd.OutOrStdout(), out)
		return nil
	}

	outPath := filepath.Join(absRoot, filepath.FromSlash(relOut))
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return shared.NewInvalidWorkflowError(fmt.Sprintf("creating %s", filepath.Dir(outPath)), err)
	}
	if err := os.WriteFile(outPath, []byte(out), 0o644); err != nil {
		return shared.NewInvalidWorkflowError(fmt.Sprintf("writing %s", outArg), err)
	}

	if !shared.GetQuiet() {
		fmt.Fprintf(cmd.ErrOrStderr(), "Expanded %s into %s\n", relIn, relOut)
	}
	return nil
}

// rootRelative converts p to a slash-separated path relative to root,
// rejecting paths that escape it.
func rootRelative(root, p string) (string, error) {
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", err
	}
	rel, err := filepath.Rel(root, abs)
	if err != nil {
		return "", err
	}
	rel = filepath.ToSlash(rel)
	if rel == ".." || strings.HasPrefix(rel, "../") {
		return "", fmt.Errorf("path %s escapes %s", p, root)
	}
	return rel, nil
}
