package ax26

import (
	"errors"
	"sync"
)

// Transport moves opaque frames. It gives no integrity or ordering
// guarantees: whatever bytes arrived are handed over as one frame.
//
// ReadFrame is called from a single goroutine and blocks until a frame is
// available; it must return an error once Close has been called.
// WriteFrame may be called concurrently with ReadFrame.
type Transport interface {
	WriteFrame(frame []byte) error
	ReadFrame() ([]byte, error)
	Close() error
}

// ErrTransportClosed is returned by transports after Close.
var ErrTransportClosed = errors.New("ax26: transport closed")

// pipeBufferSize is the number of frames a Pipe end buffers before
// WriteFrame blocks.
const pipeBufferSize = 64

// PipeTransport is one end of an in-process loopback link created by Pipe.
type PipeTransport struct {
	in  chan []byte
	out chan []byte

	mu  sync.Mutex
	tap func([]byte) []byte

	done      chan struct{}
	peerDone  chan struct{}
	closeOnce sync.Once
}

// Pipe returns two connected transports. Every frame written to one end is
// delivered to the other end with zero loss unless a tap says otherwise.
func Pipe() (*PipeTransport, *PipeTransport) {
	ab := make(chan []byte, pipeBufferSize)
	ba := make(chan []byte, pipeBufferSize)
	a := &PipeTransport{in: ba, out: ab, done: make(chan struct{})}
	b := &PipeTransport{in: ab, out: ba, done: make(chan struct{})}
	a.peerDone = b.done
	b.peerDone = a.done
	return a, b
}

// SetTap installs fn on the write side of this end. fn receives a private
// copy of each outgoing frame and returns the bytes to deliver; returning
// nil drops the frame. A nil fn removes the tap.
func (p *PipeTransport) SetTap(fn func(frame []byte) []byte) {
	p.mu.Lock()
	p.tap = fn
	p.mu.Unlock()
}

func (p *PipeTransport) WriteFrame(frame []byte) error {
	buf := append([]byte(nil), frame...)

	p.mu.Lock()
	tap := p.tap
	p.mu.Unlock()
	if tap != nil {
		if buf = tap(buf); buf == nil {
			return nil
		}
	}

	select {
	case <-p.done:
		return ErrTransportClosed
	case <-p.peerDone:
		return ErrTransportClosed
	default:
	}

	select {
	case p.out <- buf:
		return nil
	case <-p.done:
		return ErrTransportClosed
	case <-p.peerDone:
		return ErrTransportClosed
	}
}

func (p *PipeTransport) ReadFrame() ([]byte, error) {
	select {
	case frame := <-p.in:
		return frame, nil
	case <-p.done:
		return nil, ErrTransportClosed
	case <-p.peerDone:
		return nil, ErrTransportClosed
	}
}

func (p *PipeTransport) Close() error {
	p.closeOnce.Do(func() { close(p.done) })
	return nil
}
