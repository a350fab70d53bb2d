// Package repo locates the enclosing git checkout. Expansion always works
// with paths relative to the repository root so that generated markers and
// include references stay portable across machines.
package repo

import (
	"os/exec"
	"strings"

	"github.com/tombee/stitch/pkg/errors"
)

// Root returns the absolute path of the top-level directory of the git
// checkout containing dir.
func Root(dir string) (string, error) {
	out, err := gitOutput(dir, "rev-parse", "--show-toplevel")
	if err != nil {
		return "", errors.Wrapf(err, "discovering repository root")
	}
	return out, nil
}

// Head returns the commit SHA that HEAD points at in the checkout
// containing dir.
func Head(dir string) (string, error) {
	out, err := gitOutput(dir, "rev-parse", "HEAD")
	if err != nil {
		return "", errors.Wrapf(err, "resolving HEAD")
	}
	return out, nil
}

func gitOutput(dir string, args ...string) (string, error) {
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	out, err := cmd.Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok && len(exitErr.Stderr) > 0 {
			return "", errors.Wrapf(err, "git %s: %s", strings.Join(args, " "), strings.TrimSpace(string(exitErr.Stderr)))
		}
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}
