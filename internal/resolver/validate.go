package resolver

import (
	"fmt"
	"strings"
)

// MissingFieldError reports which required query field was absent or blank.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("missing required field: %s", e.Field)
}

// Validate checks that all three query fields are present and non-blank and
// returns the query unchanged. It performs presence checking only: the case
// type is passed through as opaque text and interpreting it is the
// resolver's job. The resolver must never be invoked with a query that
// failed validation.
func Validate(q CaseQuery) (CaseQuery, error) {
	if strings.TrimSpace(q.CaseType) == "" {
		return CaseQuery{}, &MissingFieldError{Field: "case type"}
	}
	if strings.TrimSpace(q.CaseNumber) == "" {
		return CaseQuery{}, &MissingFieldError{Field: "case number"}
	}
	if strings.TrimSpace(q.FilingYear) == "" {
		return CaseQuery{}, &MissingFieldError{Field: "filing year"}
	}
	return q, nil
}
