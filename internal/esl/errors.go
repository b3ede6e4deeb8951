package esl

import "errors"

// Failure classes reported by the client. Callers match them with errors.Is;
// the wrapped error carries the detail.
var (
	// ErrConnection means the socket could not be opened or broke mid-command.
	ErrConnection = errors.New("esl: connection error")

	// ErrTimeout means no complete frame arrived before the read deadline.
	ErrTimeout = errors.New("esl: read timed out")

	// ErrAuthentication means the switch rejected the password.
	ErrAuthentication = errors.New("esl: authentication failed")

	// ErrProtocol means the peer sent something that is not a valid frame.
	ErrProtocol = errors.New("esl: protocol error")

	// ErrLookup means a batch holds no result for the requested command.
	ErrLookup = errors.New("esl: no result for command")
)
