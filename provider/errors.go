package provider

import (
	"fmt"
	"net/textproto"
)

// ErrKind classifies a backend failure so callers can decide whether to
// retry, skip or abort without inspecting protocol-specific errors.
type ErrKind int

const (
	// ErrConnection covers dial failures, timeouts and dropped sessions.
	ErrConnection ErrKind = iota
	// ErrAuth covers rejected credentials.
	ErrAuth
	// ErrProtocol covers server-side command rejections.
	ErrProtocol
	// ErrIO covers failures while streaming file data.
	ErrIO
)

func (k ErrKind) String() string {
	switch k {
	case ErrConnection:
		return "connection"
	case ErrAuth:
		return "auth"
	case ErrProtocol:
		return "protocol"
	case ErrIO:
		return "io"
	}
	return "unknown"
}

// Error wraps a backend failure with its classification and the operation
// that produced it.
type Error struct {
	Kind ErrKind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s error: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// classifyFTP maps an FTP server reply to an error kind. 530 replies are
// authentication rejections, any other 4xx/5xx is a protocol error, and
// everything else (parse failures, dead connections) is a connection error.
func classifyFTP(op string, err error) error {
	if err == nil {
		return nil
	}
	if tp, ok := err.(*textproto.Error); ok {
		if tp.Code == 530 {
			return &Error{Kind: ErrAuth, Op: op, Err: err}
		}
		if tp.Code >= 400 {
			return &Error{Kind: ErrProtocol, Op: op, Err: err}
		}
	}
	return &Error{Kind: ErrConnection, Op: op, Err: err}
}

func connErr(op string, err error) error {
	return &Error{Kind: ErrConnection, Op: op, Err: err}
}

func authErr(op string, err error) error {
	return &Error{Kind: ErrAuth, Op: op, Err: err}
}

func protoErr(op string, err error) error {
	return &Error{Kind: ErrProtocol, Op: op, Err: err}
}

func ioErr(op string, err error) error {
	return &Error{Kind: ErrIO, Op: op, Err: err}
}
