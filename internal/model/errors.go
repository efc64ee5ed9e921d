package model

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrValidation = errors.New("model: validation failed")
	ErrSelection  = errors.New("model: invalid selection")
	ErrConflict   = errors.New("model: event already assigned to another cycle")
)

// ValidationError reports input the user has to correct before retrying.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation: " + e.Message
	}
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func Invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// SelectionError reports a malformed or out-of-range selection expression.
// Token is the offending fragment of the expression, if any.
type SelectionError struct {
	Token   string
	Message string
}

func (e *SelectionError) Error() string {
	if e.Token == "" {
		return "selection: " + e.Message
	}
	return fmt.Sprintf("selection: %q: %s", e.Token, e.Message)
}

func (e *SelectionError) Is(target error) bool {
	return target == ErrSelection
}

type Conflict struct {
	SourceID string
	Title    string
	CycleID  int64
}

// ConflictError lists every event that is owned by a cycle other than the
// requested one. Nothing is written when it is returned.
type ConflictError struct {
	TargetCycleID int64
	Conflicts     []Conflict
}

func (e *ConflictError) Error() string {
	parts := make([]string, 0, len(e.Conflicts))
	for _, c := range e.Conflicts {
		parts = append(parts, fmt.Sprintf("%s (%q, cycle %d)", c.SourceID, c.Title, c.CycleID))
	}
	return fmt.Sprintf("conflict: %d event(s) already assigned elsewhere: %s", len(e.Conflicts), strings.Join(parts, ", "))
}

func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}

func (e *ConflictError) SourceIDs() []string {
	out := make([]string, 0, len(e.Conflicts))
	for _, c := range e.Conflicts {
		out = append(out, c.SourceID)
	}
	return out
}
