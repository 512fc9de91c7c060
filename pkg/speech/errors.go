package speech

import (
	"errors"
	"fmt"
)

// ErrProtocolViolation reports caller misuse of a [Session], such as sending
// a turn while the previous turn's audio is still being received. It marks a
// programming error and is never retried.
var ErrProtocolViolation = errors.New("speech: protocol violation")

// SetupError reports a failed session handshake: the transport closed before
// the server acknowledgment arrived, or the acknowledgment never came. It is
// fatal for the session that raised it and is retried only by the outer
// [RunBatch] loop, never in isolation.
type SetupError struct {
	Err error
}

func (e *SetupError) Error() string {
	return fmt.Sprintf("speech: session setup failed: %v", e.Err)
}

func (e *SetupError) Unwrap() error { return e.Err }

// TransportError reports a connection dropped mid-session. It is recoverable:
// [RunBatch] reconnects and replays the unfinished turns up to its retry
// budget.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("speech: transport closed: %v", e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// IsTransportClosed reports whether err stems from a dropped connection.
func IsTransportClosed(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// retryable reports whether the outer retry loop may re-attempt the session
// after err. Transport drops and handshake failures qualify; protocol
// violations and persistence failures do not.
func retryable(err error) bool {
	if IsTransportClosed(err) {
		return true
	}
	var se *SetupError
	return errors.As(err, &se)
}
