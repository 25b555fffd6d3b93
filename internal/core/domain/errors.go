package domain

import (
	"errors"
	"fmt"
)

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested remote entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidConfig indicates required configuration is missing or malformed.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrTransient indicates a remote failure that may succeed on retry,
	// such as rate limiting, a gateway timeout or a dropped connection.
	ErrTransient = errors.New("transient remote failure")

	// ErrPermanent indicates a remote failure that retrying cannot fix,
	// such as a validation rejection or missing permissions.
	ErrPermanent = errors.New("permanent remote failure")

	// ErrConflict indicates a remote version conflict on update.
	ErrConflict = errors.New("version conflict")

	// ErrIdentityConflict indicates the key-to-page mapping would stop
	// being one-to-one: two items claiming one page, or one key found
	// on two pages. Surfaced, never auto-resolved.
	ErrIdentityConflict = errors.New("identity conflict")

	// ErrRunCancelled indicates the run was cancelled before completing.
	ErrRunCancelled = errors.New("run cancelled")
)

// ParseError reports a malformed changeset line. A single parse error
// fails the whole run before any remote call is made.
type ParseError struct {
	// Line is the 1-based line number in the change listing.
	Line int

	// Text is the offending line.
	Text string

	// Reason says what was wrong with it.
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("changeset line %d: %s (%q)", e.Line, e.Reason, e.Text)
}

// IdentityConflictError reports two distinct source keys claiming the
// same remote page. The engine surfaces it and leaves both mappings
// untouched; it never picks a winner.
type IdentityConflictError struct {
	// PageID is the contested page.
	PageID string

	// ExistingKey is the key already bound to the page.
	ExistingKey SourceKey

	// NewKey is the key that attempted to claim it.
	NewKey SourceKey
}

func (e *IdentityConflictError) Error() string {
	return fmt.Sprintf("page %s already bound to %s, refusing claim by %s",
		e.PageID, e.ExistingKey, e.NewKey)
}

// Unwrap ties the typed error into the ErrIdentityConflict class.
func (e *IdentityConflictError) Unwrap() error {
	return ErrIdentityConflict
}

// IsParseError checks if the error is a changeset parse failure.
func IsParseError(err error) bool {
	var parseErr *ParseError
	return errors.As(err, &parseErr)
}

// IsIdentityConflict checks if the error is an identity conflict.
func IsIdentityConflict(err error) bool {
	return errors.Is(err, ErrIdentityConflict)
}

// IsTransient checks if the error is worth retrying.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransient)
}

// IsNotFound checks if the error indicates a missing remote entity.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
