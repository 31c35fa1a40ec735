package ax26

import (
	"errors"
	"fmt"
)

// Error represents an AX.26 protocol error
type Error struct {
	// Kind is the error category
	Kind ErrorKind

	// Message is a human-readable error message
	Message string

	// Frame is the frame type involved, if any
	Frame FrameType

	// Err is the underlying cause (transport or context error)
	Err error
}

// ErrorKind categorizes AX.26 errors
type ErrorKind int

const (
	// KindNotConnected indicates Send or Receive was called without a connection
	KindNotConnected ErrorKind = iota

	// KindAlreadyConnected indicates a connect attempt on a connected Conn
	KindAlreadyConnected

	// KindConnectTimeout indicates no connection was established in time
	KindConnectTimeout

	// KindAckTimeoutExceeded indicates the send retry budget ran out waiting for ACKs
	KindAckTimeoutExceeded

	// KindResendLoopExceeded indicates the peer kept requesting resends
	KindResendLoopExceeded

	// KindChecksumExceeded indicates too many garbled chunks in a row
	KindChecksumExceeded

	// KindReceiveTimeoutExceeded indicates the peer stopped sending mid-message
	KindReceiveTimeoutExceeded

	// KindNoData indicates no data frame ever arrived
	KindNoData

	// KindDecompress indicates the reassembled message could not be decompressed
	KindDecompress

	// KindCompress indicates the outgoing message could not be compressed
	KindCompress

	// KindTransport indicates the underlying transport failed
	KindTransport

	// KindCancelled indicates the context was cancelled or its deadline passed
	KindCancelled

	// KindClosed indicates the Conn was closed
	KindClosed

	// KindInvalidConfig indicates bad configuration or station identifiers
	KindInvalidConfig
)

func (e *Error) Error() string {
	msg := fmt.Sprintf("ax26 %s: %s", e.Kind, e.Message)
	if e.Frame != 0 {
		msg += fmt.Sprintf(" (frame: %s)", FrameTypeName(e.Frame))
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (k ErrorKind) String() string {
	switch k {
	case KindNotConnected:
		return "not connected"
	case KindAlreadyConnected:
		return "already connected"
	case KindConnectTimeout:
		return "connect timeout"
	case KindAckTimeoutExceeded:
		return "ack timeout exceeded"
	case KindResendLoopExceeded:
		return "resend loop exceeded"
	case KindChecksumExceeded:
		return "checksum retries exceeded"
	case KindReceiveTimeoutExceeded:
		return "receive timeout exceeded"
	case KindNoData:
		return "no data"
	case KindDecompress:
		return "decompress error"
	case KindCompress:
		return "compress error"
	case KindTransport:
		return "transport error"
	case KindCancelled:
		return "cancelled"
	case KindClosed:
		return "closed"
	case KindInvalidConfig:
		return "invalid config"
	default:
		return "unknown error"
	}
}

// NewError creates a new AX.26 error
func NewError(kind ErrorKind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// wrapError creates an AX.26 error around a cause
func wrapError(kind ErrorKind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// IsKind reports whether err is an AX.26 error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// IsNotConnected checks if an error is a missing-connection error
func IsNotConnected(err error) bool {
	return IsKind(err, KindNotConnected)
}

// IsTimeout checks if an error is one of the timeout kinds
func IsTimeout(err error) bool {
	return IsKind(err, KindConnectTimeout) ||
		IsKind(err, KindAckTimeoutExceeded) ||
		IsKind(err, KindReceiveTimeoutExceeded) ||
		IsKind(err, KindNoData)
}

// IsChecksum checks if an error was caused by repeated CRC mismatches
func IsChecksum(err error) bool {
	return IsKind(err, KindChecksumExceeded)
}
