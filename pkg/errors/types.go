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

// Package errors defines the error taxonomy for workflow expansion.
// All errors are fatal for the current run: the driver aborts without
// writing output and nothing is retried.
package errors

import (
	"fmt"
	"sort"
	"strings"
)

// ReferenceNotFoundError reports that no recognized filename exists at any
// resolved location for an include target. It aggregates every attempted
// location with its individual failure.
type ReferenceNotFoundError struct {
	// Target is the raw include target as written in the document
	Target string

	// Includer is the reference of the document doing the including
	Includer string

	// Attempts maps each attempted location to its failure
	Attempts map[string]error
}

// Error implements the error interface.
func (e *ReferenceNotFoundError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "did not find %s (in %s), errors:", e.Target, e.Includer)

	locations := make([]string, 0, len(e.Attempts))
	for loc := range e.Attempts {
		locations = append(locations, loc)
	}
	sort.Strings(locations)

	for _, loc := range locations {
		fmt.Fprintf(&b, "\n  %s: %v", loc, e.Attempts[loc])
	}
	return b.String()
}

// MissingInputError reports a required input of an include target that has
// no default and no caller-supplied value.
type MissingInputError struct {
	// Input is the name of the unbound required input
	Input string

	// Target is the include target declaring the input
	Target string
}

// Error implements the error interface.
func (e *MissingInputError) Error() string {
	return fmt.Sprintf("with statement was missing required argument %q declared by %s", e.Input, e.Target)
}

// UnexpectedInputError reports `with` entries naming inputs the include
// target does not declare.
type UnexpectedInputError struct {
	// Inputs are the undeclared names with the values that were supplied
	Inputs map[string]interface{}

	// Target is the include target
	Target string
}

// Error implements the error interface.
func (e *UnexpectedInputError) Error() string {
	names := make([]string, 0, len(e.Inputs))
	for name := range e.Inputs {
		names = append(names, name)
	}
	sort.Strings(names)

	pairs := make([]string, 0, len(names))
	for _, name := range names {
		pairs = append(pairs, fmt.Sprintf("%s: %v", name, e.Inputs[name]))
	}
	return fmt.Sprintf("with statement had unused extra arguments: %s", strings.Join(pairs, ", "))
}

// ParseError reports expression source text that could not be tokenized or
// folded into an expression tree.
type ParseError struct {
	// Source is the offending expression text
	Source string

	// Reason explains what went wrong
	Reason string

	// Cause is the underlying error, if any
	Cause error
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("error while parsing %q: %s", e.Source, e.Reason)
	}
	return fmt.Sprintf("error while parsing %q", e.Source)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *ParseError) Unwrap() error {
	return e.Cause
}

// DanglingNeedsError reports a `needs` entry naming a job absent from the
// final expanded job mapping.
type DanglingNeedsError struct {
	// Job is the job whose needs entry dangles
	Job string

	// Needs is the missing dependency name
	Needs string
}

// Error implements the error interface.
func (e *DanglingNeedsError) Error() string {
	return fmt.Sprintf("job %q needs %q which is not present in the expanded workflow", e.Job, e.Needs)
}

// NotIncludableError reports an include target that is not an includable
// document: an action without `runs.using: includes`, or a workflow
// without a `jobs` mapping.
type NotIncludableError struct {
	// Reference is the resolved location of the document
	Reference string

	// Reason explains what is missing
	Reason string
}

// Error implements the error interface.
func (e *NotIncludableError) Error() string {
	return fmt.Sprintf("%s is not an includable document: %s", e.Reference, e.Reason)
}

// CyclicIncludeError reports an include chain that re-enters a reference
// already being expanded.
type CyclicIncludeError struct {
	// Chain is the include chain from the outermost document to the
	// repeated reference
	Chain []string
}

// Error implements the error interface.
func (e *CyclicIncludeError) Error() string {
	return fmt.Sprintf("cyclic include: %s", strings.Join(e.Chain, " -> "))
}
