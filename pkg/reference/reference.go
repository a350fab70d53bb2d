// Package reference names include targets. A target lives either in the
// local repository checkout or in a remote GitHub repository, and both
// forms are small comparable values so they can key caches and appear in
// cycle chains.
package reference

import (
	"fmt"
	"path"
	"strings"

	"github.com/tombee/stitch/pkg/errors"
)

// Kind distinguishes what an include target provides, which selects the
// directory shorthand and the candidate file names inside the target.
type Kind string

const (
	KindAction   Kind = "action"
	KindWorkflow Kind = "workflow"
)

// Candidates returns the file names probed inside a resolved target
// directory, in probe order.
func (k Kind) Candidates() []string {
	switch k {
	case KindWorkflow:
		return []string{"workflow.yml", "workflow.yaml"}
	default:
		return []string{"action.yml", "action.yaml"}
	}
}

// Reference is a resolved file or directory location.
type Reference interface {
	fmt.Stringer

	// WithPath returns the same location pointing at a different path
	// within the same repository.
	WithPath(p string) Reference

	isReference()
}

// Local is a path inside the local repository checkout. Root is the
// absolute repository root; Path is repository-relative with forward
// slashes.
type Local struct {
	Root string
	Path string
}

func (Local) isReference() {}

func (l Local) String() string {
	return path.Join(filepathToSlash(l.Root), l.Path)
}

// WithPath returns a Local rooted at the same checkout.
func (l Local) WithPath(p string) Reference {
	return Local{Root: l.Root, Path: p}
}

// Remote is a path inside a GitHub repository at a ref.
type Remote struct {
	Owner string
	Repo  string
	Ref   string
	Path  string
}

func (Remote) isReference() {}

func (r Remote) String() string {
	return fmt.Sprintf("%s/%s/%s@%s", r.Owner, r.Repo, r.Path, r.Ref)
}

// WithPath returns a Remote in the same repository at the same ref.
func (r Remote) WithPath(p string) Reference {
	return Remote{Owner: r.Owner, Repo: r.Repo, Ref: r.Ref, Path: p}
}

// RawURL is the raw content URL for the referenced file.
func (r Remote) RawURL() string {
	return fmt.Sprintf("https://raw.githubusercontent.com/%s/%s/%s/%s",
		r.Owner, r.Repo, r.Ref, r.Path)
}

func filepathToSlash(p string) string {
	return strings.ReplaceAll(p, "\\", "/")
}

// Resolve turns an include target written in a document into a Reference,
// interpreted relative to the file that wrote it.
//
// Three spellings are accepted:
//
//	/name            shorthand for ./.github/includes/<kind>s/name
//	./path           relative to the repository holding the current file
//	owner/repo/path  a remote repository, with an optional @ref (main if absent)
//
// A repository-relative target found while expanding a remote file stays in
// that remote repository at the same ref.
func Resolve(current Reference, target string, kind Kind) (Reference, error) {
	if strings.HasPrefix(target, "docker://") {
		return nil, &errors.NotIncludableError{
			Reference: target,
			Reason:    "docker images cannot be included",
		}
	}

	if strings.HasPrefix(target, "/") {
		if kind == "" {
			return nil, &errors.NotIncludableError{
				Reference: target,
				Reason:    "shorthand /name targets need an include kind",
			}
		}
		target = "./.github/includes/" + string(kind) + "s" + target
	}

	if strings.HasPrefix(target, "./") {
		if strings.Contains(target, "@") {
			return nil, &errors.NotIncludableError{
				Reference: target,
				Reason:    "repository-relative targets cannot carry an @ref",
			}
		}
		rel := path.Clean(strings.TrimPrefix(target, "./"))
		if rel == ".." || strings.HasPrefix(rel, "../") {
			return nil, &errors.NotIncludableError{
				Reference: target,
				Reason:    "target escapes the repository root",
			}
		}

		switch cur := current.(type) {
		case Local:
			return Local{Root: cur.Root, Path: rel}, nil
		case Remote:
			return Remote{Owner: cur.Owner, Repo: cur.Repo, Ref: cur.Ref, Path: rel}, nil
		default:
			return nil, &errors.NotIncludableError{
				Reference: target,
				Reason:    "repository-relative target with no current file",
			}
		}
	}

	return ParseRemote(target)
}

// ParseRemote parses an owner/repo/path@ref target. The path may be empty
// (the repository root) and the ref defaults to main.
func ParseRemote(target string) (Reference, error) {
	name, ref := target, "main"
	if at := strings.Index(target, "@"); at >= 0 {
		name, ref = target[:at], target[at+1:]
		if ref == "" || strings.Contains(ref, "@") {
			return nil, &errors.NotIncludableError{
				Reference: target,
				Reason:    "malformed @ref",
			}
		}
	}

	parts := strings.SplitN(name, "/", 3)
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return nil, &errors.NotIncludableError{
			Reference: target,
			Reason:    "expected owner/repo[/path][@ref]",
		}
	}
	rest := ""
	if len(parts) == 3 {
		rest = parts[2]
	}

	return Remote{Owner: parts[0], Repo: parts[1], Ref: ref, Path: rest}, nil
}
