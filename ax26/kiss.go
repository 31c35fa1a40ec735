package ax26

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"sync"
)

// KISS framing bytes
const (
	FEND  = 0xC0 // Frame delimiter
	FESC  = 0xDB // Escape character
	TFEND = 0xDC // Transposed FEND
	TFESC = 0xDD // Transposed FESC
)

// kissCmdData is the KISS data-frame command nibble.
const kissCmdData = 0x00

// maxKISSFrame bounds a single unescaped KISS frame.
const maxKISSFrame = 64 * 1024

// KISSTransport carries frames as KISS data frames over a byte stream, as
// spoken by a TNC on a serial line or a TCP port.
type KISSTransport struct {
	rwc     io.ReadWriteCloser
	port    byte
	scanner *bufio.Scanner

	wmu sync.Mutex
}

// NewKISSTransport wraps rwc. port is the TNC port (0-15) used for
// outgoing frames; incoming data frames are accepted on every port.
func NewKISSTransport(rwc io.ReadWriteCloser, port byte) *KISSTransport {
	s := bufio.NewScanner(rwc)
	s.Buffer(make([]byte, 0, 4096), 2*maxKISSFrame)
	s.Split(SplitKISS)
	return &KISSTransport{rwc: rwc, port: port & 0x0F, scanner: s}
}

// DialTCP connects to a KISS-over-TCP TNC such as Direwolf's KISS port.
func DialTCP(ctx context.Context, addr string) (*KISSTransport, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to KISS TNC at %s: %w", addr, err)
	}
	return NewKISSTransport(conn, 0), nil
}

func (k *KISSTransport) WriteFrame(frame []byte) error {
	k.wmu.Lock()
	defer k.wmu.Unlock()
	_, err := k.rwc.Write(EncodeKISS(k.port<<4|kissCmdData, frame))
	return err
}

// ReadFrame returns the payload of the next KISS data frame. Non-data
// commands and empty frames are skipped.
func (k *KISSTransport) ReadFrame() ([]byte, error) {
	for k.scanner.Scan() {
		frame := k.scanner.Bytes()
		if len(frame) < 2 || frame[0]&0x0F != kissCmdData {
			continue
		}
		return append([]byte(nil), frame[1:]...), nil
	}
	if err := k.scanner.Err(); err != nil {
		return nil, err
	}
	return nil, io.EOF
}

func (k *KISSTransport) Close() error {
	return k.rwc.Close()
}

// EncodeKISS builds a KISS frame from a command byte and payload.
func EncodeKISS(cmd byte, data []byte) []byte {
	buf := bytes.NewBuffer(make([]byte, 0, len(data)+4))
	buf.WriteByte(FEND)
	buf.WriteByte(cmd)
	for _, b := range data {
		switch b {
		case FEND:
			buf.Write([]byte{FESC, TFEND})
		case FESC:
			buf.Write([]byte{FESC, TFESC})
		default:
			buf.WriteByte(b)
		}
	}
	buf.WriteByte(FEND)
	return buf.Bytes()
}

// SplitKISS is a bufio.SplitFunc for KISS frames. The token is the
// unescaped frame including the command byte. Back-to-back delimiters yield
// empty tokens; frames with invalid escapes are dropped.
func SplitKISS(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}

	start := bytes.IndexByte(data, FEND)
	if start == -1 {
		// Line noise outside any frame.
		return len(data), nil, nil
	}

	end := bytes.IndexByte(data[start+1:], FEND)
	if end == -1 {
		if atEOF {
			// A trailing delimiter or a truncated frame.
			return len(data), nil, nil
		}
		// Drop noise before the delimiter and wait for the rest.
		return start, nil, nil
	}
	end += start + 1

	raw := data[start+1 : end]
	frame := make([]byte, 0, len(raw))
	for i := 0; i < len(raw); i++ {
		if raw[i] != FESC {
			frame = append(frame, raw[i])
			continue
		}
		if i+1 >= len(raw) {
			return end, nil, nil
		}
		switch raw[i+1] {
		case TFEND:
			frame = append(frame, FEND)
		case TFESC:
			frame = append(frame, FESC)
		default:
			return end, nil, nil
		}
		i++
	}

	// The closing delimiter may open the next frame.
	return end, frame, nil
}
