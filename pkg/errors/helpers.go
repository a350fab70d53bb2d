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

package errors

import (
	"errors"
	"fmt"
)

// Wrapf creates a new error that wraps the given error with formatted context.
// If err is nil, returns nil.
//
// Usage:
//
//	if err := loader.Load(ref); err != nil {
//	    return errors.Wrapf(err, "expanding job %s", name)
//	}
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// As finds the first error in err's tree that matches target type.
// Convenience wrapper around errors.As from the standard library.
//
// Usage:
//
//	var parseErr *errors.ParseError
//	if errors.As(err, &parseErr) {
//	    log.Printf("bad expression: %s", parseErr.Source)
//	}
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// IsReferenceNotFound reports whether err's tree contains a ReferenceNotFoundError.
func IsReferenceNotFound(err error) bool {
	var target *ReferenceNotFoundError
	return errors.As(err, &target)
}

// IsMissingInput reports whether err's tree contains a MissingInputError.
func IsMissingInput(err error) bool {
	var target *MissingInputError
	return errors.As(err, &target)
}

// IsUnexpectedInput reports whether err's tree contains an UnexpectedInputError.
func IsUnexpectedInput(err error) bool {
	var target *UnexpectedInputError
	return errors.As(err, &target)
}

// IsParseError reports whether err's tree contains a ParseError.
func IsParseError(err error) bool {
	var target *ParseError
	return errors.As(err, &target)
}

// IsDanglingNeeds reports whether err's tree contains a DanglingNeedsError.
func IsDanglingNeeds(err error) bool {
	var target *DanglingNeedsError
	return errors.As(err, &target)
}

// IsCyclicInclude reports whether err's tree contains a CyclicIncludeError.
func IsCyclicInclude(err error) bool {
	var target *CyclicIncludeError
	return errors.As(err, &target)
}
