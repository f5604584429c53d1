package negotiation

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidSessionState is returned for any operation on a closed
	// session. The session is not retried; a fresh one needs a new join.
	ErrInvalidSessionState = errors.New("invalid session state")

	// ErrUnexpectedSignal is returned for an answer without a pending offer,
	// an offer while our own offer is outstanding, or a second description
	// once the remote side is set. The session is left unchanged.
	ErrUnexpectedSignal = errors.New("unexpected signal")
)

// Error records the operation and remote participant a failure belongs to.
type Error struct {
	Op      string
	Peer    string
	Err     error
	Details string
}

func (e *Error) Error() string {
	msg := e.Op
	if e.Peer != "" {
		msg += " " + e.Peer
	}
	if e.Details != "" {
		return fmt.Sprintf("%s: %v (%s)", msg, e.Err, e.Details)
	}
	return fmt.Sprintf("%s: %v", msg, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(op, peer string, err error) *Error {
	return &Error{Op: op, Peer: peer, Err: err}
}

func wrapError(op, peer string, err error, details string) *Error {
	return &Error{Op: op, Peer: peer, Err: err, Details: details}
}
