// Copyright © 2025 Meroxa, Inc.
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

// Package multierror combines several errors into one. It is used when a
// single event (e.g. an abort) tears down more than one resource and every
// failure needs to be reported.
package multierror

import "strings"

// Error is an error that contains multiple sub-errors.
type Error struct {
	errs []error
}

// Error formats all sub-error messages into a string separated with new lines.
func (e *Error) Error() string {
	if e == nil {
		return ""
	}

	var sb strings.Builder
	for i, err := range e.errs {
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(err.Error())
	}
	return sb.String()
}

// Errors returns all underlying errors.
func (e *Error) Errors() []error {
	return e.errs
}

// Unwrap makes cerrors.Is and cerrors.As look into every sub-error.
func (e *Error) Unwrap() []error {
	return e.errs
}

// Append will combine all errors into a single error. Nil errors are skipped.
// If only one non-nil error is supplied it is returned directly, if none is
// supplied the function returns nil.
func Append(err error, errs ...error) error {
	out := err
	for _, e := range errs {
		out = appendOne(out, e)
	}
	return out
}

func appendOne(e1, e2 error) error {
	if e1 == nil {
		return e2
	}
	if e2 == nil {
		return e1
	}

	if me, ok := e1.(*Error); ok {
		me.errs = append(me.errs, e2)
		return me
	}
	return &Error{errs: []error{e1, e2}}
}
