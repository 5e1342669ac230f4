package core

import (
	"errors"
	"fmt"
)

// Error kinds. Callers classify with errors.Is.
var (
	ErrNotFound        = errors.New("not found")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrInvalidRound    = errors.New("invalid round")
	ErrBackend         = errors.New("backend error")
	ErrTimeout         = errors.New("timeout")
	ErrPersistence     = errors.New("persistence error")
	ErrRoundCommitted  = errors.New("round already committed")
)

// Error carries a kind together with the failing operation.
type Error struct {
	Kind error
	Op   string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Msg != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Msg, e.Err)
	case e.Msg != "":
		return fmt.Sprintf("%s: %s", e.Op, e.Msg)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	default:
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	}
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func NotFound(op, format string, args ...any) error {
	return &Error{Kind: ErrNotFound, Op: op, Msg: fmt.Sprintf(format, args...)}
}

func InvalidArgument(op, format string, args ...any) error {
	return &Error{Kind: ErrInvalidArgument, Op: op, Msg: fmt.Sprintf(format, args...)}
}

func InvalidRound(op string, got, current int) error {
	return &Error{Kind: ErrInvalidRound, Op: op, Msg: fmt.Sprintf("round %d is not current round %d", got, current)}
}

func Persistence(op string, err error) error {
	return &Error{Kind: ErrPersistence, Op: op, Err: err}
}

func Backend(op string, err error) error {
	return &Error{Kind: ErrBackend, Op: op, Err: err}
}

func Timeout(op string, err error) error {
	return &Error{Kind: ErrTimeout, Op: op, Err: err}
}

// KindOf returns the short name of the error kind, "internal" when unknown.
func KindOf(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrInvalidArgument):
		return "invalid_argument"
	case errors.Is(err, ErrInvalidRound):
		return "invalid_round"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrBackend):
		return "backend_error"
	case errors.Is(err, ErrPersistence):
		return "persistence_error"
	default:
		return "internal"
	}
}
