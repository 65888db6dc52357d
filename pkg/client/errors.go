package client

import (
	"errors"
	"fmt"
)

// Kind classifies client failures so callers can tell "try again" from
// "log in again".
type Kind string

const (
	// KindConnection covers transport failures and timeouts.
	KindConnection Kind = "connection"
	// KindCredentials means the server rejected the identifier or password.
	KindCredentials Kind = "credentials"
	// KindRejected means the server rejected a refresh token.
	KindRejected Kind = "rejected"
	// KindNotFound means the requested resource or session does not exist.
	KindNotFound Kind = "not_found"
	// KindServer covers every other unexpected response.
	KindServer Kind = "server"
)

var (
	// ErrSessionEnded is returned when a refresh failed and local state was cleared.
	ErrSessionEnded = errors.New("client: session ended")
	// ErrNoSession is returned when an operation needs stored tokens and there are none.
	ErrNoSession = errors.New("client: no stored session")
)

// Error describes a failed call to the auth server.
type Error struct {
	Op      string
	Kind    Kind
	Status  int
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return "client error"
	}
	if e.Message != "" {
		return fmt.Sprintf("%s: %s (%d)", e.Op, e.Message, e.Status)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// IsKind reports whether err is an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var clientErr *Error
	return errors.As(err, &clientErr) && clientErr.Kind == kind
}

func wrapError(op string, kind Kind, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Kind: kind, Err: err}
}
