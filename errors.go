package persist

import (
	"errors"
	"fmt"
	"strings"
)

// Standard sentinel errors for common operations.
var (
	// ErrNotFound is returned when a single-result read matched no rows.
	ErrNotFound = errors.New("persist: entity not found")

	// ErrNoCompatibleRunner is returned when no query runner can serve a type.
	ErrNoCompatibleRunner = errors.New("persist: no compatible runner")

	// ErrNoSupport is returned when a backend declares no implementation
	// for a requested capability.
	ErrNoSupport = errors.New("persist: capability not supported")

	// ErrUnsupportedOperation is returned by operations that are
	// intentionally not implemented for a given receiver.
	ErrUnsupportedOperation = errors.New("persist: unsupported operation")
)

// NotFoundError represents an error when an entity is not found.
type NotFoundError struct {
	label string
	args  []any // Optional: the bound values that were searched for
}

// Error returns the error string.
func (e *NotFoundError) Error() string {
	if len(e.args) > 0 {
		return fmt.Sprintf("persist: %s not found (args=%v)", e.label, e.args)
	}
	return fmt.Sprintf("persist: %s not found", e.label)
}

// Is reports whether the target error matches NotFoundError.
// This allows errors.Is(notFoundErr, ErrNotFound) to return true.
func (e *NotFoundError) Is(err error) bool {
	return err == ErrNotFound
}

// Label returns the entity label.
func (e *NotFoundError) Label() string {
	return e.label
}

// Args returns the values that were searched for, if available.
func (e *NotFoundError) Args() []any {
	return e.args
}

// NewNotFoundError returns a new NotFoundError for the given entity type.
func NewNotFoundError(label string, args ...any) *NotFoundError {
	return &NotFoundError{label: label, args: args}
}

// IsNotFound returns true if the error is a NotFoundError.
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}
	var e *NotFoundError
	return errors.As(err, &e) || errors.Is(err, ErrNotFound)
}

// SQLExecutionError is returned when the backend rejected or failed a
// statement. It carries the statement text and bound values for diagnostics.
type SQLExecutionError struct {
	SQL        string
	Args       []any
	Err        error
	constraint bool
}

// Error returns the error string.
func (e *SQLExecutionError) Error() string {
	return fmt.Sprintf("persist: executing %q %v: %v", e.SQL, e.Args, e.Err)
}

// Unwrap returns the underlying error.
func (e *SQLExecutionError) Unwrap() error {
	return e.Err
}

// Constraint reports whether the backend failure was a constraint violation.
func (e *SQLExecutionError) Constraint() bool {
	return e.constraint
}

// NewSQLExecutionError returns a new SQLExecutionError.
func NewSQLExecutionError(query string, args []any, err error) *SQLExecutionError {
	return &SQLExecutionError{SQL: query, Args: args, Err: err}
}

// NewConstraintError returns a SQLExecutionError flagged as a constraint violation.
func NewConstraintError(query string, args []any, err error) *SQLExecutionError {
	return &SQLExecutionError{SQL: query, Args: args, Err: err, constraint: true}
}

// IsSQLExecutionError returns true if the error is a SQLExecutionError.
func IsSQLExecutionError(err error) bool {
	if err == nil {
		return false
	}
	var e *SQLExecutionError
	return errors.As(err, &e)
}

// IsConstraintError returns true if the error is a SQLExecutionError caused
// by a constraint violation.
func IsConstraintError(err error) bool {
	if err == nil {
		return false
	}
	var e *SQLExecutionError
	return errors.As(err, &e) && e.constraint
}

// MappingError represents a row-to-entity type or shape mismatch.
type MappingError struct {
	Entity string // Entity type being mapped
	Column string // Column being read, empty for row level failures
	Err    error  // Underlying error
}

// Error returns the error string.
func (e *MappingError) Error() string {
	if e.Column != "" {
		return fmt.Sprintf("persist: mapping %s.%s: %v", e.Entity, e.Column, e.Err)
	}
	return fmt.Sprintf("persist: mapping %s: %v", e.Entity, e.Err)
}

// Unwrap returns the underlying error.
func (e *MappingError) Unwrap() error {
	return e.Err
}

// NewMappingError returns a new MappingError.
func NewMappingError(entity, column string, err error) *MappingError {
	return &MappingError{Entity: entity, Column: column, Err: err}
}

// IsMappingError returns true if the error is a MappingError.
func IsMappingError(err error) bool {
	if err == nil {
		return false
	}
	var e *MappingError
	return errors.As(err, &e)
}

// PersistEventError is returned when a pre or post persist hook failed
// during a cascade.
type PersistEventError struct {
	Hook   string // Hook name (e.g., "PreInsert")
	Entity string // Entity type the hook belongs to
	Err    error  // Error returned by the hook
}

// Error returns the error string.
func (e *PersistEventError) Error() string {
	return fmt.Sprintf("persist: %s hook of %s failed: %v", e.Hook, e.Entity, e.Err)
}

// Unwrap returns the underlying error.
func (e *PersistEventError) Unwrap() error {
	return e.Err
}

// NewPersistEventError returns a new PersistEventError.
func NewPersistEventError(hook, entity string, err error) *PersistEventError {
	return &PersistEventError{Hook: hook, Entity: entity, Err: err}
}

// IsPersistEventError returns true if the error is a PersistEventError.
func IsPersistEventError(err error) bool {
	if err == nil {
		return false
	}
	var e *PersistEventError
	return errors.As(err, &e)
}

// NoCompatibleRunnerError is returned when no runner implementation is
// registered for a type.
type NoCompatibleRunnerError struct {
	Type string
}

// Error returns the error string.
func (e *NoCompatibleRunnerError) Error() string {
	return fmt.Sprintf("persist: no compatible runner for %s", e.Type)
}

// Is reports whether the target error matches ErrNoCompatibleRunner.
func (e *NoCompatibleRunnerError) Is(err error) bool {
	return err == ErrNoCompatibleRunner
}

// NewNoCompatibleRunnerError returns a new NoCompatibleRunnerError.
func NewNoCompatibleRunnerError(typ string) *NoCompatibleRunnerError {
	return &NoCompatibleRunnerError{Type: typ}
}

// IsNoCompatibleRunner returns true if the error is a NoCompatibleRunnerError.
func IsNoCompatibleRunner(err error) bool {
	if err == nil {
		return false
	}
	var e *NoCompatibleRunnerError
	return errors.As(err, &e) || errors.Is(err, ErrNoCompatibleRunner)
}

// NoSupportError is returned when the active backend declares no
// implementation for a requested capability.
type NoSupportError struct {
	Dialect    string
	Capability string
}

// Error returns the error string.
func (e *NoSupportError) Error() string {
	return fmt.Sprintf("persist: dialect %q does not support %s", e.Dialect, e.Capability)
}

// Is reports whether the target error matches ErrNoSupport.
func (e *NoSupportError) Is(err error) bool {
	return err == ErrNoSupport
}

// NewNoSupportError returns a new NoSupportError.
func NewNoSupportError(dialect, capability string) *NoSupportError {
	return &NoSupportError{Dialect: dialect, Capability: capability}
}

// IsNoSupport returns true if the error is a NoSupportError.
func IsNoSupport(err error) bool {
	if err == nil {
		return false
	}
	var e *NoSupportError
	return errors.As(err, &e) || errors.Is(err, ErrNoSupport)
}

// UnsupportedOperationError is returned by operations that are not
// implemented for their receiver, such as ApplyAndReturn on events that
// produce no typed result.
type UnsupportedOperationError struct {
	Op string
}

// Error returns the error string.
func (e *UnsupportedOperationError) Error() string {
	return fmt.Sprintf("persist: %s is not supported", e.Op)
}

// Is reports whether the target error matches ErrUnsupportedOperation.
func (e *UnsupportedOperationError) Is(err error) bool {
	return err == ErrUnsupportedOperation
}

// NewUnsupportedOperationError returns a new UnsupportedOperationError.
func NewUnsupportedOperationError(op string) *UnsupportedOperationError {
	return &UnsupportedOperationError{Op: op}
}

// IsUnsupportedOperation returns true if the error is an UnsupportedOperationError.
func IsUnsupportedOperation(err error) bool {
	if err == nil {
		return false
	}
	var e *UnsupportedOperationError
	return errors.As(err, &e) || errors.Is(err, ErrUnsupportedOperation)
}

// QueryError wraps a query construction error with additional context.
type QueryError struct {
	Entity string // Entity type being queried
	Op     string // Operation (e.g., "read", "read_all")
	Err    error  // Underlying error
}

// Error returns the error string.
func (e *QueryError) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("persist: querying %s (%s): %v", e.Entity, e.Op, e.Err)
	}
	return fmt.Sprintf("persist: querying %s: %v", e.Entity, e.Err)
}

// Unwrap returns the underlying error.
func (e *QueryError) Unwrap() error {
	return e.Err
}

// NewQueryError returns a new QueryError.
func NewQueryError(entity, op string, err error) *QueryError {
	return &QueryError{Entity: entity, Op: op, Err: err}
}

// IsQueryError returns true if the error is a QueryError.
func IsQueryError(err error) bool {
	if err == nil {
		return false
	}
	var e *QueryError
	return errors.As(err, &e)
}

// RollbackError wraps an error that occurred during a transaction rollback.
type RollbackError struct {
	Err error // Original error that triggered rollback
}

// Error returns the error string.
func (e *RollbackError) Error() string {
	return fmt.Sprintf("persist: rollback failed: %v", e.Err)
}

// Unwrap returns the underlying error.
func (e *RollbackError) Unwrap() error {
	return e.Err
}

// AggregateError represents multiple errors collected during an operation.
type AggregateError struct {
	Errors []error
}

// Error returns the error string.
func (e *AggregateError) Error() string {
	if len(e.Errors) == 0 {
		return "persist: no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	var sb strings.Builder
	sb.WriteString("persist: multiple errors:")
	for i, err := range e.Errors {
		fmt.Fprintf(&sb, "\n  [%d] %v", i+1, err)
	}
	return sb.String()
}

// Unwrap returns the collected errors.
func (e *AggregateError) Unwrap() []error {
	return e.Errors
}

// NewAggregateError returns a new AggregateError if there are errors,
// otherwise returns nil.
func NewAggregateError(errs ...error) error {
	var filtered []error
	for _, err := range errs {
		if err != nil {
			filtered = append(filtered, err)
		}
	}
	if len(filtered) == 0 {
		return nil
	}
	if len(filtered) == 1 {
		return filtered[0]
	}
	return &AggregateError{Errors: filtered}
}
