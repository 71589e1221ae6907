// Package storeerr defines the error vocabulary of the persistence layer and
// maps driver specific failures onto it.
package storeerr

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var (
	ErrConstraintViolation = errors.New("constraint violation")
	ErrExhaustedSequence   = errors.New("membership number sequence exhausted")
	ErrNoActiveScope       = errors.New("no active request scope")
	ErrStoreUnavailable    = errors.New("store unavailable")
	ErrSessionClosed       = errors.New("session closed")
	ErrNotFound            = errors.New("record not found")
)

// Constraint kinds reported by ConstraintViolation. Validation rule tags
// (required, email, len, max, oneof, ...) are reported verbatim.
const (
	Unique     = "unique"
	ForeignKey = "foreign_key"
	NotNull    = "not_null"
	Length     = "length"
	Check      = "check"
	Immutable  = "immutable"
	Transition = "transition"
)

// ConstraintViolation reports a write rejected by a schema rule, either before
// it reached the store or by the store itself.
type ConstraintViolation struct {
	Entity     string
	Field      string
	Constraint string
	Err        error
}

func (e *ConstraintViolation) Error() string {
	var b strings.Builder
	b.WriteString("constraint violation")
	if e.Entity != "" {
		b.WriteString(" on ")
		b.WriteString(e.Entity)
		if e.Field != "" {
			b.WriteString(".")
			b.WriteString(e.Field)
		}
	}
	if e.Constraint != "" {
		b.WriteString(": ")
		b.WriteString(e.Constraint)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *ConstraintViolation) Is(target error) bool {
	return target == ErrConstraintViolation
}

func (e *ConstraintViolation) Unwrap() error {
	return e.Err
}

var titleCase = cases.Title(language.English)

// Message renders the violation for API consumers, e.g. "Email must be unique".
func (e *ConstraintViolation) Message() string {
	field := "Value"
	if e.Field != "" {
		field = titleCase.String(strings.ReplaceAll(e.Field, "_", " "))
	}

	switch e.Constraint {
	case Unique:
		return field + " must be unique"
	case ForeignKey:
		return field + " references a missing or still referenced record"
	case NotNull, "required":
		return field + " is required"
	case Immutable:
		return field + " cannot be changed"
	case Transition:
		return field + " cannot change to the requested value"
	case Length, "len", "max", "min":
		return field + " has an invalid length"
	case "oneof":
		return field + " is not an allowed value"
	case "":
		return field + " is invalid"
	default:
		return fmt.Sprintf("%s is invalid (%s)", field, e.Constraint)
	}
}

// Violation builds a ConstraintViolation.
func Violation(entity, field, constraint string, cause error) *ConstraintViolation {
	return &ConstraintViolation{Entity: entity, Field: field, Constraint: constraint, Err: cause}
}

// IsRetryable reports whether the unit of work that produced err may be retried as a whole.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrStoreUnavailable)
}
