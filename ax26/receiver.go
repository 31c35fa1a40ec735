package ax26

import (
	"bytes"
	"context"
	"errors"
	"fmt"
)

// ReceiveOption configures a single Receive call.
type ReceiveOption func(*receiveOptions)

type receiveOptions struct {
	first *Frame
	peers []StationID
}

// WithFirstFrame hands Receive a DATA_START frame that an outer handshake
// already consumed. Its checksum is verified before anything else is read.
func WithFirstFrame(f Frame) ReceiveOption {
	return func(o *receiveOptions) {
		o.first = &f
	}
}

// WithPeers accepts the message from any of peers instead of only the
// connected remote. The first valid chunk pins the sender for the rest of
// the message.
func WithPeers(peers ...StationID) ReceiveOption {
	return func(o *receiveOptions) {
		o.peers = append(o.peers, peers...)
	}
}

// Receive waits for one complete message and returns the decompressed
// payload.
//
// Every valid chunk is acknowledged; a chunk with a bad checksum is answered
// with RESEND. A wait that times out counts as a failed attempt without
// sending anything. After Config.RecvAttempts failed attempts in a row the
// transfer is aborted and the connection is closed. The error kind tells
// whether nothing arrived at all (KindNoData), the peer's chunks kept
// failing their checksum (KindChecksumExceeded) or the peer went silent
// mid-message (KindReceiveTimeoutExceeded).
func (c *Conn) Receive(ctx context.Context, opts ...ReceiveOption) ([]byte, error) {
	var o receiveOptions
	for _, opt := range opts {
		opt(&o)
	}

	c.opMu.Lock()
	defer c.opMu.Unlock()

	if err := c.checkOpen(); err != nil {
		return nil, err
	}
	if !c.Connected() {
		return nil, NewError(KindNotConnected, "receive requires a connection")
	}

	peers := pinnedPeer(c.Remote())
	if len(o.peers) > 0 {
		peers = candidatePeers(o.peers)
	}

	t := c.newTransfer(Receiving)
	c.logger.Debug("%s: transfer %s: receiving from %s", c.local, t.id, peers)

	isData := func(f Frame) bool {
		return f.Type.IsData() && f.Destination == c.local && peers.allows(f.Source)
	}

	var (
		buf      bytes.Buffer
		started  bool
		seen     bool
		attempts int
		last     = failNone
		pending  = o.first
	)

	for {
		var f Frame
		if pending != nil {
			f, pending = *pending, nil
		} else {
			wait := t.wait(c.config.ChunkTimeout)
			if wait <= 0 {
				return nil, c.abort(t, c.receiveFailure(t, seen, failTimeout, attempts))
			}
			got, err := c.await(ctx, wait, isData)
			if err != nil {
				if !errors.Is(err, errWaitTimeout) {
					return nil, c.abort(t, err)
				}
				last = failTimeout
				attempts++
				if attempts > c.config.RecvAttempts {
					return nil, c.abort(t, c.receiveFailure(t, seen, last, attempts))
				}
				t.meter.retry()
				c.callbacks.OnRetry(t.id, attempts, last.String())
				continue
			}
			f = got
		}

		chunk, ok := verifyChunk(f.Body)
		if !ok {
			seen = true
			c.logger.Debug("%s: transfer %s: checksum mismatch on %s from %s", c.local, t.id, f.Type, f.Source)
			if err := c.control(TypeResend, f.Source); err != nil {
				return nil, c.abort(t, err)
			}
			last = failChecksum
			attempts++
			if attempts > c.config.RecvAttempts {
				return nil, c.abort(t, c.receiveFailure(t, seen, last, attempts))
			}
			t.meter.retry()
			c.callbacks.OnRetry(t.id, attempts, last.String())
			continue
		}

		if f.Type == TypeDataStart {
			buf.Reset()
			t.meter.restart()
			started, seen = true, true
			peers.pin(f.Source)
		} else if !started {
			// A retransmitted tail chunk of the previous message whose ACK
			// was lost. Acknowledge it so the sender can finish.
			c.logger.Debug("%s: transfer %s: re-acknowledging stray chunk from %s", c.local, t.id, f.Source)
			if err := c.control(TypeAck, f.Source); err != nil {
				return nil, c.abort(t, err)
			}
			continue
		}

		buf.Write(chunk)
		if err := c.control(TypeAck, f.Source); err != nil {
			return nil, c.abort(t, err)
		}
		attempts = 0
		last = failNone
		t.meter.acked(len(chunk))

		if terminated(buf.Bytes()) {
			break
		}
	}

	escaped := buf.Bytes()[:buf.Len()-len(DataEnd)]
	payload, err := c.compressor.Decompress(UnescapeTerminator(escaped))
	if err != nil {
		return nil, c.abort(t, wrapError(KindDecompress, "decompress message", err))
	}

	p := t.meter.finish()
	c.logger.Info("%s: transfer %s: received %d bytes (%d chunks, %d on the wire, %d retries) in %s",
		c.local, t.id, len(payload), p.Chunks, p.Bytes, p.Retries, p.Elapsed)
	c.event(EventTransferComplete, 0, "receive "+t.id)
	return payload, nil
}

// receiveFailure builds the error for an exhausted receive.
func (c *Conn) receiveFailure(t *transfer, seen bool, last failure, attempts int) error {
	switch {
	case !seen:
		return NewError(KindNoData, fmt.Sprintf("transfer %s: no data after %d attempts", t.id, attempts))
	case last == failChecksum:
		return NewError(KindChecksumExceeded, fmt.Sprintf("transfer %s: %d checksum failures in a row", t.id, attempts))
	default:
		return NewError(KindReceiveTimeoutExceeded, fmt.Sprintf("transfer %s: peer silent after %d attempts", t.id, attempts))
	}
}
