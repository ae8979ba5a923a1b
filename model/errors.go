package model

import "fmt"

// ConfigurationError indicates an invalid engine configuration, detected at
// construction and never retried.
type ConfigurationError struct {
	Field  string
	Value  any
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration: %s=%v %s", e.Field, e.Value, e.Reason)
}

// OriginMismatchError indicates set algebra across record sets belonging to
// different databases, or a segment combinator applied across different
// segment numbers. It is a programmer error and is always fatal.
//
// The original underlying error (if any) can be accessed via errors.Unwrap.
type OriginMismatchError struct {
	Op    string
	Want  string
	Got   string
	cause error
}

// NewOriginMismatch builds an OriginMismatchError for operation op between
// the expected and offending identities.
func NewOriginMismatch(op, want, got string) *OriginMismatchError {
	return &OriginMismatchError{Op: op, Want: want, Got: got}
}

func (e *OriginMismatchError) Error() string {
	return fmt.Sprintf("%s: origin mismatch: want %s, got %s", e.Op, e.Want, e.Got)
}

func (e *OriginMismatchError) Unwrap() error { return e.cause }

// ConsistencyError indicates that storage no longer holds a segment blob a
// live reference depends on. It means corruption or an adapter bug; the
// engine never retries it.
type ConsistencyError struct {
	Table string
	Key   string
	cause error
}

// NewConsistency builds a ConsistencyError for a missing blob reference.
func NewConsistency(table, key string, cause error) *ConsistencyError {
	return &ConsistencyError{Table: table, Key: key, cause: cause}
}

func (e *ConsistencyError) Error() string {
	return fmt.Sprintf("segment record missing: %s[%s]", e.Table, e.Key)
}

func (e *ConsistencyError) Unwrap() error { return e.cause }

// NotSupportedError indicates an operation invoked on a component variant
// that structurally cannot support it.
type NotSupportedError struct {
	Op     string
	Reason string
}

func (e *NotSupportedError) Error() string {
	return fmt.Sprintf("%s: not supported: %s", e.Op, e.Reason)
}
