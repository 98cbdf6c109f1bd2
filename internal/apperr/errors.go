// Package apperr defines the error taxonomy shared by the vault, canvas
// state and autosave layers.
package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrAlreadyExists    = errors.New("already exists")
	ErrIOFailure        = errors.New("io failure")
	ErrTimeout          = errors.New("timeout")
	ErrMalformedData    = errors.New("malformed data")
	ErrInvalidName      = errors.New("invalid name")
	ErrVaultUnavailable = errors.New("vault unavailable")
)

// Kind returns the taxonomy name of err, or "" for nil.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrVaultUnavailable):
		return "VaultUnavailable"
	case errors.Is(err, ErrNotFound):
		return "NotFound"
	case errors.Is(err, ErrAlreadyExists):
		return "AlreadyExists"
	case errors.Is(err, ErrTimeout):
		return "Timeout"
	case errors.Is(err, ErrMalformedData):
		return "MalformedData"
	case errors.Is(err, ErrInvalidName):
		return "InvalidName"
	default:
		return "IOFailure"
	}
}

// IO wraps a lower-level error as an ErrIOFailure while keeping the cause
// reachable through errors.Is.
func IO(op, path string, err error) error {
	return &opError{op: op, path: path, kind: ErrIOFailure, err: err}
}

// New returns an error of the given kind scoped to op and path.
func New(kind error, op, path string) error {
	return &opError{op: op, path: path, kind: kind}
}

type opError struct {
	op   string
	path string
	kind error
	err  error
}

func (e *opError) Error() string {
	msg := e.op
	if e.path != "" {
		msg = fmt.Sprintf("%s %s", e.op, e.path)
	}
	if e.err != nil {
		return fmt.Sprintf("%s: %v: %v", msg, e.kind, e.err)
	}
	return fmt.Sprintf("%s: %v", msg, e.kind)
}

func (e *opError) Is(target error) bool { return target == e.kind }

func (e *opError) Unwrap() error { return e.err }

// Result is the success/failure envelope returned to the UI for
// user-initiated actions.
type Result struct {
	Success bool   `json:"success"`
	Kind    string `json:"kind,omitempty"`
	Message string `json:"message"`
	Path    string `json:"path,omitempty"`
}

// ResultOf converts err into a Result. msg is used on success.
func ResultOf(err error, path, msg string) Result {
	if err != nil {
		return Result{Success: false, Kind: Kind(err), Message: err.Error(), Path: path}
	}
	return Result{Success: true, Message: msg, Path: path}
}
