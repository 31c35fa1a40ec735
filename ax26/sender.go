package ax26

import (
	"context"
	"errors"
	"fmt"
)

// failure records why the last chunk exchange did not succeed.
type failure int

const (
	failNone failure = iota
	failTimeout
	failResend
	failChecksum
)

func (f failure) String() string {
	switch f {
	case failTimeout:
		return "timeout"
	case failResend:
		return "resend"
	case failChecksum:
		return "checksum"
	default:
		return "none"
	}
}

// splitChunks cuts data into chunks of at most bound bytes and appends the
// terminator as its own final chunk.
func splitChunks(data []byte, bound int) [][]byte {
	chunks := make([][]byte, 0, len(data)/bound+2)
	for len(data) > 0 {
		n := bound
		if n > len(data) {
			n = len(data)
		}
		chunks = append(chunks, data[:n])
		data = data[n:]
	}
	return append(chunks, DataEnd)
}

// Send reliably delivers payload to the connected peer.
//
// The payload is compressed, escaped and sent in chunks, each of which must
// be acknowledged before the next one goes out. A chunk is retransmitted on
// RESEND or when no answer arrives within Config.ChunkTimeout; after
// Config.SendAttempts retransmissions of the same chunk the transfer is
// aborted and the connection is closed.
func (c *Conn) Send(ctx context.Context, payload []byte) error {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	if err := c.checkOpen(); err != nil {
		return err
	}
	if !c.Connected() {
		return NewError(KindNotConnected, "send requires a connection")
	}
	remote := c.Remote()

	compressed, err := c.compressor.Compress(payload)
	if err != nil {
		return wrapError(KindCompress, "compress payload", err)
	}
	data := EscapeTerminator(compressed)
	chunks := splitChunks(data, c.config.ChunkBound(c.local, remote))

	t := c.newTransfer(Sending)
	t.meter.expect(len(chunks), int64(len(data)+len(DataEnd)))
	c.logger.Info("%s: transfer %s: sending %d bytes (%d on the wire) to %s in %d chunks",
		c.local, t.id, len(payload), len(data), remote, len(chunks))
	c.event(EventTransferStart, TypeDataStart, "send "+t.id)

	// Anything latched before this point answers an earlier exchange.
	c.inbox.clear()

	isReply := func(f Frame) bool {
		return (f.Type == TypeAck || f.Type == TypeResend) &&
			f.Source == remote && f.Destination == c.local
	}

	for i, chunk := range chunks {
		typ := TypeDataChunk
		if i == 0 {
			typ = TypeDataStart
		}
		frame := Frame{Source: c.local, Destination: remote, Type: typ, Body: chunkBody(chunk)}

		if err := c.sendChunk(ctx, t, frame, isReply); err != nil {
			return c.abort(t, err)
		}
		t.meter.acked(len(chunk))
	}

	p := t.meter.finish()
	c.logger.Info("%s: transfer %s: delivered %d chunks with %d retransmissions in %s",
		c.local, t.id, p.Chunks, p.Retries, p.Elapsed)
	c.event(EventTransferComplete, 0, "send "+t.id)
	return nil
}

// sendChunk transmits frame until it is acknowledged or the retry budget
// is spent.
func (c *Conn) sendChunk(ctx context.Context, t *transfer, frame Frame, isReply func(Frame) bool) error {
	last := failNone
	for attempts := 0; ; {
		wait := t.wait(c.config.ChunkTimeout)
		if wait <= 0 {
			return NewError(KindAckTimeoutExceeded, fmt.Sprintf("transfer %s exceeded %s", t.id, c.config.TransferTimeout))
		}

		if err := c.transmit(frame); err != nil {
			return err
		}

		reply, err := c.await(ctx, wait, isReply)
		switch {
		case err == nil && reply.Type == TypeAck:
			return nil
		case err == nil:
			last = failResend
		case errors.Is(err, errWaitTimeout):
			last = failTimeout
			c.event(EventTimeout, frame.Type, "no reply")
		default:
			return err
		}

		attempts++
		if attempts > c.config.SendAttempts {
			if last == failResend {
				e := NewError(KindResendLoopExceeded, fmt.Sprintf("peer requested %d resends", attempts))
				e.Frame = frame.Type
				return e
			}
			e := NewError(KindAckTimeoutExceeded, fmt.Sprintf("no ACK after %d attempts", attempts))
			e.Frame = frame.Type
			return e
		}

		c.logger.Debug("%s: transfer %s: retransmitting %s (%s, attempt %d)",
			c.local, t.id, frame.Type, last, attempts)
		t.meter.retry()
		c.callbacks.OnRetry(t.id, attempts, last.String())
	}
}
