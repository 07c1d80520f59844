package groups

import (
	"errors"
	"fmt"
	"strings"
)

// Remote rejection kinds. A *RemoteError matches exactly one of them with
// errors.Is.
var (
	ErrNotFound           = errors.New("not found")
	ErrForbidden          = errors.New("forbidden")
	ErrConflict           = errors.New("conflict")
	ErrValidationRejected = errors.New("validation rejected")
	ErrUnreachable        = errors.New("server unreachable")
	ErrAlreadyVoted       = errors.New("already voted")
)

var (
	ErrStorage      = errors.New("local storage failure")
	ErrPrecondition = errors.New("missing local dependency")
	ErrPartialBatch = errors.New("partial batch failure")
	ErrInvalid      = errors.New("invalid input")

	ErrAdminNotAllowedToExit = errors.New("admin is the only active participant and cannot leave")
	ErrGroupDeleted          = errors.New("group deleted")
	ErrUnknownGroup          = errors.New("group not stored locally")
	ErrUnknownEvent          = errors.New("unknown event kind")
	ErrBallotClosed          = errors.New("ballot is closed")
)

// RemoteError is returned by a Gateway when the server declines a request or
// cannot be reached.
type RemoteError struct {
	Resource string
	Status   int
	Kind     error
	Cause    error
}

func NewRemoteError(resource string, status int, kind, cause error) *RemoteError {
	return &RemoteError{Resource: resource, Status: status, Kind: kind, Cause: cause}
}

func (e *RemoteError) Error() string {
	msg := fmt.Sprintf("remote %s: %v", e.Resource, e.Kind)
	if e.Status != 0 {
		msg += fmt.Sprintf(" (status %d)", e.Status)
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *RemoteError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Cause}
}

// StorageError wraps any failure of the local repository.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

func (e *StorageError) Is(target error) bool { return target == ErrStorage }

// PreconditionError reports that a write was not attempted because referenced
// users are not stored locally.
type PreconditionError struct {
	Entity       string
	ID           int64
	MissingUsers []int64
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("%s %d references unknown users %v", e.Entity, e.ID, e.MissingUsers)
}

func (e *PreconditionError) Is(target error) bool { return target == ErrPrecondition }

// BatchError aggregates the failures of a continue-on-error batch.
type BatchError struct {
	Op    string
	Total int
	Errs  []error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("%s: %d of %d failed: %v", e.Op, len(e.Errs), e.Total, errors.Join(e.Errs...))
}

func (e *BatchError) Unwrap() []error { return e.Errs }

func (e *BatchError) Is(target error) bool { return target == ErrPartialBatch }

// batch collects item failures. It returns nil from Err when nothing failed.
type batch struct {
	op    string
	total int
	errs  []error
}

func (b *batch) run(err error) {
	b.total++
	if err != nil {
		b.errs = append(b.errs, err)
	}
}

func (b *batch) Err() error {
	if len(b.errs) == 0 {
		return nil
	}
	return &BatchError{Op: b.op, Total: b.total, Errs: b.errs}
}

type ValidationKind string

const (
	ValidationMissing  ValidationKind = "missing"
	ValidationTooLong  ValidationKind = "too_long"
	ValidationTooShort ValidationKind = "too_short"
	ValidationInvalid  ValidationKind = "invalid"
)

type FieldProblem struct {
	Field string
	Kind  ValidationKind
}

type ValidationError struct {
	Problems []FieldProblem
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Problems))
	for i, p := range e.Problems {
		parts[i] = p.Field + ": " + string(p.Kind)
	}
	return "invalid input: " + strings.Join(parts, ", ")
}

func (e *ValidationError) Is(target error) bool { return target == ErrInvalid }

// IsNotFound reports whether err is a remote not-found rejection.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func storageErr(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *StorageError
	if errors.As(err, &se) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}
