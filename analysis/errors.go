// Copyright (c) 2023 The KBase Project and its Contributors
// Copyright (c) 2023 Cohere Consulting, LLC
//
// Permission is hereby granted, free of charge, to any person obtaining a copy of
// this software and associated documentation files (the "Software"), to deal in
// the Software without restriction, including without limitation the rights to
// use, copy, modify, merge, publish, distribute, sublicense, and/or sell copies
// of the Software, and to permit persons to whom the Software is furnished to do
// so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.


package analysis

import (
	"fmt"
	"strings"
)

// indicates that a required field was not supplied (or was blank)
type MissingFieldError struct {
	Field string
}

func (e MissingFieldError) Error() string {
	return fmt.Sprintf("Missing required field: %s", e.Field)
}

// indicates that a mapping-valued field was given something other than a
// mapping with string keys
type InvalidTypeError struct {
	Field, Type string
}

func (e InvalidTypeError) Error() string {
	return fmt.Sprintf("Invalid type for %s: %s (must be a mapping with string keys)",
		e.Field, e.Type)
}

// indicates that a mapping-valued field was given an empty mapping
type EmptyFieldError struct {
	Field string
}

func (e EmptyFieldError) Error() string {
	return fmt.Sprintf("Field %s must not be empty", e.Field)
}

// indicates that an output location is neither an existing file nor an
// existing directory
type OutputPathError struct {
	Path, Message string
}

func (e OutputPathError) Error() string {
	return fmt.Sprintf("Invalid output location '%s': %s", e.Path, e.Message)
}

// indicates that an attempt was made to set an output location for a record
// that already has one
type OutputAlreadySetError struct {
	Path, Existing string
}

func (e OutputAlreadySetError) Error() string {
	return fmt.Sprintf("Cannot set output location '%s': already set to '%s'",
		e.Path, e.Existing)
}

// indicates that metadata for a package could not be found
type PackageNotFoundError struct {
	Package, Message string
}

func (e PackageNotFoundError) Error() string {
	name := e.Package
	if name == "" {
		name = "(main module)"
	}
	if e.Message != "" {
		return fmt.Sprintf("Package metadata not found for %s: %s", name, e.Message)
	}
	return fmt.Sprintf("Package metadata not found for %s", name)
}

// summarizes a failed record check
type CheckError struct {
	MissingFields, InvalidFields []string
}

func (e CheckError) Error() string {
	var parts []string
	if len(e.MissingFields) > 0 {
		parts = append(parts, fmt.Sprintf("missing required fields: %s",
			strings.Join(e.MissingFields, ", ")))
	}
	if len(e.InvalidFields) > 0 {
		parts = append(parts, fmt.Sprintf("invalid attributes: %s",
			strings.Join(e.InvalidFields, ", ")))
	}
	return fmt.Sprintf("Analysis record check failed (%s)", strings.Join(parts, "; "))
}
