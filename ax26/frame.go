package ax26

import (
	"bytes"
	"fmt"
	"strings"
)

// StationID is the callsign-like token identifying a protocol endpoint.
type StationID string

// Validate checks that id can be placed in a frame header.
func (id StationID) Validate() error {
	if id == "" {
		return NewError(KindInvalidConfig, "empty station identifier")
	}
	if strings.ContainsAny(string(id), string([]byte{SourceSeparator, DestinationSeparator})) {
		return NewError(KindInvalidConfig, fmt.Sprintf("station identifier %q contains a header separator", string(id)))
	}
	return nil
}

// Frame is one unit of wire transmission.
//
// For control frames (CONNECT, ACK, RESEND) Body is empty. For data frames
// it holds the chunk, the checksum marker and the decimal CRC-16.
type Frame struct {
	Source      StationID
	Destination StationID
	Type        FrameType
	Body        []byte
}

// EncodeHeader builds the frame header: source '>' destination ':'.
func EncodeHeader(source, destination StationID) []byte {
	buf := make([]byte, 0, len(source)+len(destination)+2)
	buf = append(buf, source...)
	buf = append(buf, SourceSeparator)
	buf = append(buf, destination...)
	buf = append(buf, DestinationSeparator)
	return buf
}

// EncodeFrame serializes a frame for the transport.
func EncodeFrame(f Frame) []byte {
	buf := EncodeHeader(f.Source, f.Destination)
	buf = append(buf, byte(f.Type))
	return append(buf, f.Body...)
}

// DecodeFrame parses raw transport bytes.
//
// The second return value is false when raw does not look like a frame of
// this protocol. Callers treat that as "not for us" rather than as an error,
// since partial and foreign frames are normal on a shared channel.
func DecodeFrame(raw []byte) (Frame, bool) {
	src := bytes.IndexByte(raw, SourceSeparator)
	if src <= 0 {
		return Frame{}, false
	}
	dst := bytes.IndexByte(raw[src+1:], DestinationSeparator)
	if dst <= 0 {
		return Frame{}, false
	}
	dst += src + 1

	if dst+1 >= len(raw) {
		return Frame{}, false
	}
	t := FrameType(raw[dst+1])
	if !t.valid() {
		return Frame{}, false
	}

	body := make([]byte, len(raw)-dst-2)
	copy(body, raw[dst+2:])

	return Frame{
		Source:      StationID(raw[:src]),
		Destination: StationID(raw[src+1 : dst]),
		Type:        t,
		Body:        body,
	}, true
}

// chunkBody appends the checksum trailer to a chunk.
func chunkBody(chunk []byte) []byte {
	sum := checksumText(chunk)
	body := make([]byte, 0, len(chunk)+1+len(sum))
	body = append(body, chunk...)
	body = append(body, ChecksumMarker)
	return append(body, sum...)
}

// splitChunk separates a data frame body into chunk and checksum text.
// The marker is searched from the end: the decimal digits after it can never
// contain the marker byte, while the chunk itself may.
func splitChunk(body []byte) (chunk, sum []byte, ok bool) {
	i := bytes.LastIndexByte(body, ChecksumMarker)
	if i < 0 {
		return nil, nil, false
	}
	return body[:i], body[i+1:], true
}

// verifyChunk returns the chunk carried by body if its checksum matches.
func verifyChunk(body []byte) ([]byte, bool) {
	chunk, sum, ok := splitChunk(body)
	if !ok || len(sum) == 0 {
		return nil, false
	}
	if !bytes.Equal(sum, checksumText(chunk)) {
		return nil, false
	}
	return chunk, true
}
