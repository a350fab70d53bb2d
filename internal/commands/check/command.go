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

package check

import (
	"fmt"
	"os"
	"path"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
	"github.com/spf13/cobra"

	"github.com/tombee/stitch/internal/commands/shared"
	"github.com/tombee/stitch/internal/fetch"
	"github.com/tombee/stitch/internal/log"
	"github.com/tombee/stitch/pkg/httpclient"
	"github.com/tombee/stitch/pkg/reference"
	"github.com/tombee/stitch/pkg/workflow"
)

// NewCommand creates the check command
func NewCommand() *cobra.Command {
	var (
		repository string
		ref        string
	)

	cmd := &cobra.Command{
		Use:   "check <workflow>",
		Short: "Assert a flattened workflow is up to date",
		Long: `Check downloads a flattened workflow from the repository at the
commit under test, follows its generation marker back to the source
workflow, re-expands the source, and compares the two. A difference
means someone edited either file without re-running 'stitch expand'.

The workflow path is relative to the repository root. Repository and
commit default to the GITHUB_REPOSITORY and GITHUB_SHA environment
variables set on hosted runners.`,
		Example: `  # Example 1: Inside a workflow run
  stitch check .github/workflows/ci.yml

  # Example 2: Against an explicit repository and commit
  stitch check --repository someone/project --ref 1234abcd .github/workflows/ci.yml`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(cmd, args[0], repository, ref)
		},
	}

	cmd.Flags().StringVar(&repository, "repository", "", "Repository as owner/name (default: $GITHUB_REPOSITORY)")
	cmd.Flags().StringVar(&ref, "ref", "", "Commit SHA to check (default: $GITHUB_SHA)")

	return cmd
}

func runCheck(cmd *cobra.Command, workflowPath, repository, ref string) error {
	if repository == "" {
		repository = os.Getenv("GITHUB_REPOSITORY")
	}
	if ref == "" {
		ref = os.Getenv("GITHUB_SHA")
	}
	owner, name, ok := strings.Cut(repository, "/")
	if !ok || owner == "" || name == "" {
		return shared.NewInvalidWorkflowError("repository not set; pass --repository or set GITHUB_REPOSITORY", nil)
	}
	if ref == "" {
		return shared.NewInvalidWorkflowError("commit not set; pass --ref or set GITHUB_SHA", nil)
	}

	logger := log.New(log.FromEnv())
	client, err := httpclient.New(httpclient.DefaultConfig())
	if err != nil {
		return shared.NewInvalidWorkflowError("building HTTP client", err)
	}
	fetcher := fetch.New(client, logger)

	flattened := reference.Remote{Owner: owner, Repo: name, Ref: ref, Path: workflowPath}
	current, err := fetcher.Read(cmd.Context(), flattened)
	if err != nil {
		return shared.NewInvalidWorkflowError(fmt.Sprintf("downloading %s", flattened), err)
	}

	srcRel, err := sourceOf(current)
	if err != nil {
		return shared.NewStaleError(fmt.Sprintf("%s: %v", workflowPath, err))
	}
	srcPath := resolveSource(workflowPath, srcRel)

	if !shared.GetQuiet() {
		fmt.Fprintf(cmd.ErrOrStderr(), "Source of %s is %s\n", workflowPath, srcPath)
	}

	expander := workflow.NewExpander(fetcher, logger, workflow.Options{
		InsertCheckSteps: true,
	})
	src := reference.Remote{Owner: owner, Repo: name, Ref: ref, Path: srcPath}
	fresh, err := expander.Expand(cmd.Context(), src, workflowPath)
	if err != nil {
		return shared.NewInvalidWorkflowError(fmt.Sprintf("re-expanding %s", srcPath), err)
	}

	diff, err := unifiedDiff(workflowPath, current, fresh)
	if err != nil {
		return shared.NewInvalidWorkflowError("computing diff", err)
	}
	if diff == "" {
		fmt.Fprintln(cmd.OutOrStdout(), shared.RenderOK(workflowPath+" is up to date"))
		return nil
	}

	fmt.Fprintln(cmd.OutOrStdout(), shared.RenderError(workflowPath+" is out of date:"))
	fmt.Fprintln(cmd.OutOrStdout(), colorize(diff))
	return shared.NewStaleError(fmt.Sprintf("%s is out of date; re-run 'stitch expand %s %s'", workflowPath, srcPath, workflowPath))
}

// sourceOf extracts the source path recorded by the generation marker.
func sourceOf(data string) (string, error) {
	i := strings.Index(data, workflow.Marker)
	if i < 0 {
		return "", fmt.Errorf("no generation marker found")
	}
	rest := data[i+len(workflow.Marker):]
	if j := strings.IndexByte(rest, '\n'); j >= 0 {
		rest = rest[:j]
	}
	src := strings.TrimSpace(rest)
	if src == "" {
		return "", fmt.Errorf("generation marker names no source file")
	}
	return src, nil
}

// resolveSource resolves the marker path, which is relative to the
// flattened file's directory, back to a repository-root-relative path.
func resolveSource(workflowPath, marker string) string {
	resolved := path.Join("/", path.Dir(workflowPath), marker)
	return strings.TrimPrefix(path.Clean(resolved), "/")
}

func unifiedDiff(name, current, fresh string) (string, error) {
	return difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(current),
		B:        difflib.SplitLines(fresh),
		FromFile: "a/" + name,
		ToFile:   "b/" + name,
		Context:  3,
	})
}

// colorize styles unified diff lines for terminal output.
func colorize(diff string) string {
	lines := strings.Split(diff, "\n")
	for i, line := range lines {
		switch {
		case strings.HasPrefix(line, "+++"), strings.HasPrefix(line, "---"):
			lines[i] = shared.Bold.Render(line)
		case strings.HasPrefix(line, "@@"):
			lines[i] = shared.StatusInfo.Render(line)
		case strings.HasPrefix(line, "+"):
			lines[i] = shared.StatusOK.Render(line)
		case strings.HasPrefix(line, "-"):
			lines[i] = shared.StatusError.Render(line)
		}
	}
	return strings.Join(lines, "\n")
}
