package leads

import (
	"errors"
	"fmt"
)

var (
	// ErrLeadNotFound indicates a lead was not found by the given identifier.
	ErrLeadNotFound = errors.New("lead not found")

	// ErrDuplicateLead indicates a lead with the same email already exists.
	ErrDuplicateLead = errors.New("lead with this email already exists")

	// ErrInvalidSortField indicates a sort on a field outside SortFields.
	ErrInvalidSortField = errors.New("invalid sort field")

	// ErrInvalidSortOrder indicates a sort order other than asc or desc.
	ErrInvalidSortOrder = errors.New("invalid sort order")

	// ErrMalformedQuery indicates a filter that is not a mapping or uses an unsupported operator.
	ErrMalformedQuery = errors.New("malformed query")
)

// LeadError wraps lead store errors with the operation and lead they concern.
type LeadError struct {
	Op     string
	LeadID string
	Err    error
}

func (e *LeadError) Error() string {
	if e.LeadID == "" {
		return fmt.Sprintf("%s operation failed: %v", e.Op, e.Err)
	}

	return fmt.Sprintf("%s operation failed for lead %s: %v", e.Op, e.LeadID, e.Err)
}

func (e *LeadError) Unwrap() error {
	return e.Err
}

func (e *LeadError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewLeadError creates a new lead error with context.
func NewLeadError(op, leadID string, err error) *LeadError {
	return &LeadError{Op: op, LeadID: leadID, Err: err}
}

// IsLeadNotFound checks if an error indicates a lead was not found.
func IsLeadNotFound(err error) bool {
	return errors.Is(err, ErrLeadNotFound)
}

// IsDuplicateLead checks if an error indicates an email uniqueness conflict.
func IsDuplicateLead(err error) bool {
	return errors.Is(err, ErrDuplicateLead)
}

// IsMalformedQuery checks if an error indicates an unusable filter.
func IsMalformedQuery(err error) bool {
	return errors.Is(err, ErrMalformedQuery)
}

// IsInvalidSort checks if an error indicates unusable sort parameters.
func IsInvalidSort(err error) bool {
	return errors.Is(err, ErrInvalidSortField) || errors.Is(err, ErrInvalidSortOrder)
}

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformedQuery, fmt.Sprintf(format, args...))
}
