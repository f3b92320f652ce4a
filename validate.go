package metricq

import (
	"fmt"
	"strings"
)

// ValidationError describes why an entry isn't valid. Reasons accumulate
// rather than short-circuit so one failed format call reports every problem
// with the entry.
type ValidationError struct {
	reasons []string
}

// Invalid records a single validation failure.
// Params: reason human-readable failure description.
// Returns: error holding the one reason.
func Invalid(reason string) *ValidationError {
	return &ValidationError{reasons: []string{reason}}
}

// ForField prefixes every recorded reason with field context.
// Params: name field name the failures belong to.
// Returns: the same error for chaining.
func (e *ValidationError) ForField(name string) *ValidationError {
	for i, r := range e.reasons {
		e.reasons[i] = fmt.Sprintf("for `%s`: %s", name, r)
	}
	return e
}

// Extend appends all reasons recorded in other.
// Params: other error to merge; nil is a no-op.
// Returns: none.
func (e *ValidationError) Extend(other *ValidationError) {
	if other != nil {
		e.reasons = append(e.reasons, other.reasons...)
	}
}

// Error joins all recorded reasons.
// Params: none.
// Returns: ", "-joined reason list.
func (e *ValidationError) Error() string {
	return strings.Join(e.reasons, ", ")
}

// ValidationErrorBuilder collects validation failures over time.
// The zero value is ready to use.
type ValidationErrorBuilder struct {
	reasons []string
}

// Invalid records a failure reason.
// Params: reason description.
// Returns: none.
func (b *ValidationErrorBuilder) Invalid(reason string) {
	b.reasons = append(b.reasons, reason)
}

// Extend merges all reasons from err.
// Params: err error to merge; nil is a no-op.
// Returns: none.
func (b *ValidationErrorBuilder) Extend(err *ValidationError) {
	if err != nil {
		b.reasons = append(b.reasons, err.reasons...)
	}
}

// Empty reports whether no failures were recorded.
// Params: none.
// Returns: true when the builder holds nothing.
func (b *ValidationErrorBuilder) Empty() bool {
	return len(b.reasons) == 0
}

// Build bundles recorded failures into one error.
// Params: none.
// Returns: nil when no failures were recorded.
func (b *ValidationErrorBuilder) Build() error {
	if len(b.reasons) == 0 {
		return nil
	}
	return &ValidationError{reasons: b.reasons}
}
