// Package ax26 implements the AX.26 reliable chunked transfer protocol.
//
// AX.26 moves whole messages between two stations over an unreliable framed
// link, usually a KISS TNC attached by serial line or TCP. A message is
// compressed, split into bounded chunks and sent stop-and-wait: every chunk
// carries a CRC-16 and must be acknowledged before the next one goes out.
//
// The package is designed as a library. A Conn owns one Transport, runs a
// background reader for it and exposes blocking Connect, WaitForConnection,
// Send and Receive calls.
package ax26

// Header separators. A frame starts with source '>' destination ':'.
const (
	SourceSeparator      = '>'
	DestinationSeparator = ':'
)

// FrameType marks what a frame carries. It is the byte following the header.
type FrameType byte

// Frame types
const (
	TypeConnect   FrameType = 0x01 // Connection request
	TypeDataStart FrameType = 0x02 // First chunk of a message
	TypeAck       FrameType = 0x06 // Chunk or connect accepted
	TypeResend    FrameType = 0x15 // Last chunk was garbled
	TypeDataChunk FrameType = 0x16 // Any later chunk of a message
)

// Reserved byte sequences
const (
	// ChecksumMarker separates chunk bytes from the decimal CRC-16
	ChecksumMarker = 0x1D

	// Escape protects literal Escape and DataEnd occurrences in payload data
	Escape = 0x10
)

// DataEnd terminates a message. It travels as its own final chunk.
var DataEnd = []byte{0x04, 0x17}

// HeaderOverhead is the fixed per-frame overhead besides the two station
// identifiers: two separators, the type byte, the checksum marker and up to
// five decimal digits of checksum.
const HeaderOverhead = 2 + 1 + 1 + 5

var frameTypeNames = map[FrameType]string{
	TypeConnect:   "CONNECT",
	TypeDataStart: "DATA_START",
	TypeAck:       "ACK",
	TypeResend:    "RESEND",
	TypeDataChunk: "DATA_CHUNK",
}

// FrameTypeName returns the human-readable name for a frame type.
// Returns "UNKNOWN" for invalid frame types.
func FrameTypeName(t FrameType) string {
	if name, ok := frameTypeNames[t]; ok {
		return name
	}
	return "UNKNOWN"
}

func (t FrameType) String() string {
	return FrameTypeName(t)
}

// IsData reports whether frames of this type carry a checksummed chunk.
func (t FrameType) IsData() bool {
	return t == TypeDataStart || t == TypeDataChunk
}

func (t FrameType) valid() bool {
	_, ok := frameTypeNames[t]
	return ok
}
