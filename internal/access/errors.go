package access

import (
	"errors"
	"fmt"
)

// The error kinds below are the layer's entire caller-facing error surface.
// Messages carry structural context (table, classification) and never
// another tenant's row data.

// UnregisteredTableError: the table is not declared in the registry. Queries
// against it fail closed, never defaulting to unscoped.
type UnregisteredTableError struct {
	Table string
}

func (e *UnregisteredTableError) Error() string {
	return fmt.Sprintf("access: table %q is not in the registry", e.Table)
}

func IsUnregisteredTable(err error) bool {
	_, ok := errors.AsType[*UnregisteredTableError](err)
	return ok
}

// MissingOrgColumnError: a table classified org-scoped resolves no org
// column. The registry rejects this at construction, so hitting it at
// runtime means the registry and client disagree; it still fails closed.
type MissingOrgColumnError struct {
	Table string
}

func (e *MissingOrgColumnError) Error() string {
	return fmt.Sprintf("access: org-scoped table %q has no org column", e.Table)
}

func IsMissingOrgColumn(err error) bool {
	_, ok := errors.AsType[*MissingOrgColumnError](err)
	return ok
}

// ScopedAccessError: the scoped client was constructed or used incorrectly
// (empty org id, attempt to write the org column through a patch).
type ScopedAccessError struct {
	Reason string
}

func (e *ScopedAccessError) Error() string {
	return "access: " + e.Reason
}

func IsScopedAccess(err error) bool {
	_, ok := errors.AsType[*ScopedAccessError](err)
	return ok
}

// AuditedAccessError: the audited client was constructed incorrectly (empty
// actor id) or the audit append failed and the mutation was aborted.
type AuditedAccessError struct {
	Reason string
	Err    error
}

func (e *AuditedAccessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("access: %s: %v", e.Reason, e.Err)
	}
	return "access: " + e.Reason
}

func (e *AuditedAccessError) Unwrap() error { return e.Err }

func IsAuditedAccess(err error) bool {
	_, ok := errors.AsType[*AuditedAccessError](err)
	return ok
}

// ReadOnlyViolationError: an attempted write through the read-only surface,
// e.g. a predicate smuggling a mutation statement into a select.
type ReadOnlyViolationError struct {
	Table string
	Op    string
}

func (e *ReadOnlyViolationError) Error() string {
	return fmt.Sprintf("access: read-only violation on table %q: %s", e.Table, e.Op)
}

func IsReadOnlyViolation(err error) bool {
	_, ok := errors.AsType[*ReadOnlyViolationError](err)
	return ok
}
