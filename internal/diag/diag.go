// Package diag defines the diagnostic model for manifest parsing: spans,
// the error taxonomy (field errors, missing fields, bad syntax) and the
// aggregate parse error returned to callers.
//
// Spans are byte offsets into the shell-expanded manifest text, not the
// original input. ParseError carries the expanded text so diagnostics can be
// rendered against the source they actually point into.
package diag

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for callers that only care about the failure class.
var (
	ErrBadSyntax    = errors.New("bad syntax")
	ErrMissingField = errors.New("missing field")
	ErrInvalidField = errors.New("invalid field")
)

// Span identifies a byte subrange of the analyzed source.
type Span struct {
	Offset int `json:"offset"`
	Len    int `json:"len"`
}

// NewSpan builds a span from a start and end byte offset.
func NewSpan(start, end int) Span {
	if end < start {
		end = start
	}
	return Span{Offset: start, Len: end - start}
}

// At returns a zero-length span pointing at a single offset.
func At(offset int) Span {
	return Span{Offset: offset, Len: 1}
}

// End returns the offset one past the last byte of the span.
func (s Span) End() int { return s.Offset + s.Len }

func (s Span) String() string {
	return fmt.Sprintf("%d..%d", s.Offset, s.End())
}

// Diagnostic is one related entry inside a ParseError.
type Diagnostic interface {
	error

	// Kind returns the short kind label of the diagnostic.
	Kind() string
}

// FieldError reports a single field whose value violates its grammar.
// Field errors are recoverable: the parser accumulates every one it finds
// across the whole manifest before failing.
type FieldError struct {
	// FieldLabel states the issue with the field.
	FieldLabel string `json:"field_label"`

	// FieldSpan covers the whole assignment carrying the error.
	FieldSpan Span `json:"field_span"`

	// ErrorSpan marks the specific erroneous subrange of the value.
	ErrorSpan Span `json:"error_span"`

	// Help is a remediation suggestion, possibly a corrected literal.
	Help string `json:"help"`
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("invalid field: %s", e.FieldLabel)
}

// Kind implements Diagnostic.
func (e *FieldError) Kind() string { return "FieldError" }

// Is reports sentinel equivalence with ErrInvalidField.
func (e *FieldError) Is(target error) bool { return target == ErrInvalidField }

// MissingField reports a structurally required field that was never
// assigned. It is only raised once a manifest is known to be free of field
// errors, and only for the first missing field in check order.
type MissingField struct {
	Label string `json:"label"`
}

func (e *MissingField) Error() string {
	return fmt.Sprintf("missing field: %s", e.Label)
}

// Kind implements Diagnostic.
func (e *MissingField) Kind() string { return "MissingField" }

// Is reports sentinel equivalence with ErrMissingField.
func (e *MissingField) Is(target error) bool { return target == ErrMissingField }

// BadSyntax reports that shell expansion failed or that the expanded output
// could not be parsed at all. No structure is recoverable, so it never
// coexists with field errors.
type BadSyntax struct {
	Reason string `json:"reason"`
}

func (e *BadSyntax) Error() string {
	if e.Reason == "" {
		return "bad syntax"
	}
	return fmt.Sprintf("bad syntax: %s", e.Reason)
}

// Kind implements Diagnostic.
func (e *BadSyntax) Kind() string { return "BadSyntax" }

// Is reports sentinel equivalence with ErrBadSyntax.
func (e *BadSyntax) Is(target error) bool { return target == ErrBadSyntax }

// ParseError is the single failure value returned by a parse: the analyzed
// source plus every related diagnostic found in one pass.
type ParseError struct {
	// Input is the text the diagnostics' spans refer to. This is the
	// shell-expanded manifest, except when expansion itself failed, in
	// which case it is the original input.
	Input string `json:"input"`

	// Related holds the diagnostics in the order they were found.
	Related []Diagnostic `json:"related"`
}

func (e *ParseError) Error() string {
	if len(e.Related) == 1 {
		return fmt.Sprintf("parse error: %s", e.Related[0].Error())
	}
	msgs := make([]string, len(e.Related))
	for i, d := range e.Related {
		msgs[i] = d.Error()
	}
	return fmt.Sprintf("parse error: %d problems: %s", len(e.Related), strings.Join(msgs, "; "))
}

// Unwrap exposes the related diagnostics to errors.Is and errors.As.
func (e *ParseError) Unwrap() []error {
	errs := make([]error, len(e.Related))
	for i, d := range e.Related {
		errs[i] = d
	}
	return errs
}
