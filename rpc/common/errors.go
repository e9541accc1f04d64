package common

import (
	"errors"
	"fmt"
)

// --------------------------------------------------------------------------
// Sentinel Errors (use with errors.Is)
// --------------------------------------------------------------------------

var (
	// ErrMalformed is matched by every CodecError
	ErrMalformed = errors.New("malformed sample")

	// ErrClosed is matched by a TransportError caused by a closed connection or short read
	ErrClosed = errors.New("connection closed")
	// ErrOversizedFrame is matched by a TransportError caused by a length prefix above the limit
	ErrOversizedFrame = errors.New("oversized frame")

	// ErrConnectTimeout is matched by a ConnectError caused by a connect attempt timing out
	ErrConnectTimeout = errors.New("connect timed out")
	// ErrConnectRefused is matched by a ConnectError caused by a refused or missing endpoint
	ErrConnectRefused = errors.New("connect refused")
	// ErrGivenUp is matched by a ConnectError returned after the attempt budget is exhausted
	ErrGivenUp = errors.New("gave up connecting")
)

// --------------------------------------------------------------------------
// Codec Errors
// --------------------------------------------------------------------------

// CodecErrorKind enumerates the ways a payload can fail to decode
type CodecErrorKind uint8

const (
	CodecMalformed CodecErrorKind = iota + 1
)

// CodecError is returned by every serializer when bytes do not form a valid sample
type CodecError struct {
	Kind   CodecErrorKind
	Codec  string
	Reason string
	Err    error
}

// NewMalformedError creates a CodecError of kind CodecMalformed
func NewMalformedError(codec, reason string, cause error) *CodecError {
	return &CodecError{Kind: CodecMalformed, Codec: codec, Reason: reason, Err: cause}
}

func (e *CodecError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s codec: malformed sample: %s: %v", e.Codec, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s codec: malformed sample: %s", e.Codec, e.Reason)
}

func (e *CodecError) Unwrap() error { return e.Err }

func (e *CodecError) Is(target error) bool {
	return target == ErrMalformed && e.Kind == CodecMalformed
}

// --------------------------------------------------------------------------
// Transport Errors
// --------------------------------------------------------------------------

// TransportErrorKind enumerates framing failures on an established connection
type TransportErrorKind uint8

const (
	TransportClosed TransportErrorKind = iota + 1
	TransportOversizedFrame
)

// String returns the string representation of a TransportErrorKind
func (k TransportErrorKind) String() string {
	switch k {
	case TransportClosed:
		return "closed"
	case TransportOversizedFrame:
		return "oversized frame"
	default:
		return "unknown"
	}
}

// TransportError is returned by the frame reader. After any TransportError the
// byte boundary of the stream is lost and the connection must be torn down.
type TransportError struct {
	Kind TransportErrorKind
	// Length and Limit are only set for TransportOversizedFrame
	Length uint32
	Limit  uint32
	Err    error
}

func (e *TransportError) Error() string {
	switch e.Kind {
	case TransportOversizedFrame:
		return fmt.Sprintf("transport: frame of %d bytes exceeds limit of %d bytes", e.Length, e.Limit)
	default:
		if e.Err != nil {
			return fmt.Sprintf("transport: %s: %v", e.Kind, e.Err)
		}
		return fmt.Sprintf("transport: %s", e.Kind)
	}
}

func (e *TransportError) Unwrap() error { return e.Err }

func (e *TransportError) Is(target error) bool {
	switch target {
	case ErrClosed:
		return e.Kind == TransportClosed
	case ErrOversizedFrame:
		return e.Kind == TransportOversizedFrame
	}
	return false
}

// --------------------------------------------------------------------------
// Connect Errors
// --------------------------------------------------------------------------

// ConnectErrorKind enumerates the ways a consumer can fail to reach the publisher
type ConnectErrorKind uint8

const (
	ConnectTimeout ConnectErrorKind = iota + 1
	ConnectRefused
	ConnectGivenUp
)

// String returns the string representation of a ConnectErrorKind
func (k ConnectErrorKind) String() string {
	switch k {
	case ConnectTimeout:
		return "timeout"
	case ConnectRefused:
		return "refused"
	case ConnectGivenUp:
		return "given up"
	default:
		return "unknown"
	}
}

// ConnectError is returned for failed connect attempts. Only ConnectGivenUp is
// terminal, the other kinds are retried by the consumer client.
type ConnectError struct {
	Kind     ConnectErrorKind
	Endpoint string
	Attempts int
	Err      error
}

func (e *ConnectError) Error() string {
	if e.Kind == ConnectGivenUp {
		return fmt.Sprintf("connect %s: gave up after %d attempts: %v", e.Endpoint, e.Attempts, e.Err)
	}
	return fmt.Sprintf("connect %s: %s: %v", e.Endpoint, e.Kind, e.Err)
}

func (e *ConnectError) Unwrap() error { return e.Err }

func (e *ConnectError) Is(target error) bool {
	switch target {
	case ErrConnectTimeout:
		return e.Kind == ConnectTimeout
	case ErrConnectRefused:
		return e.Kind == ConnectRefused
	case ErrGivenUp:
		return e.Kind == ConnectGivenUp
	}
	return false
}
