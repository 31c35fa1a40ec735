package ax26

import (
	"bytes"
	"context"
	"math/rand"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
	"golang.org/x/sync/errgroup"
)

func testConfig() *Config {
	cfg := DefaultConfig()
	cfg.ChunkTimeout = 200 * time.Millisecond
	cfg.ConnectTimeout = 2 * time.Second
	cfg.SendAttempts = 3
	cfg.RecvAttempts = 3
	cfg.ConnectAttempts = 3
	return cfg
}

type testPair struct {
	a, b   *Conn
	ta, tb *PipeTransport
}

func newPair(t *testing.T, cfg *Config, opts ...Option) *testPair {
	t.Helper()

	ta, tb := Pipe()
	logger := NewZapLogger(zaptest.NewLogger(t))
	base := []Option{WithConfig(cfg), WithLogger(logger)}

	a, err := NewConn("A", ta, append(base, opts...)...)
	require.NoError(t, err)
	b, err := NewConn("B", tb, append(base, opts...)...)
	require.NoError(t, err)

	t.Cleanup(func() {
		a.Close()
		b.Close()
	})
	return &testPair{a: a, b: b, ta: ta, tb: tb}
}

func (p *testPair) connect(t *testing.T) {
	t.Helper()
	g, ctx := errgroup.WithContext(context.Background())
	g.Go(func() error { return p.b.WaitForConnection(ctx) })
	g.Go(func() error { return p.a.Connect(ctx, "B") })
	require.NoError(t, g.Wait())
	require.True(t, p.a.Connected())
	require.True(t, p.b.Connected())
}

func newConnectedPair(t *testing.T, cfg *Config, opts ...Option) *testPair {
	p := newPair(t, cfg, opts...)
	p.connect(t)
	return p
}

// transfer sends payload from a to b and returns what b received.
func (p *testPair) transfer(payload []byte) ([]byte, error) {
	var got []byte
	g, ctx := errgroup.WithContext(context.Background())
	g.Go(func() error {
		var err error
		got, err = p.b.Receive(ctx)
		return err
	})
	g.Go(func() error { return p.a.Send(ctx, payload) })
	err := g.Wait()
	return got, err
}

// frameLog records decoded frames written through a pipe end.
type frameLog struct {
	mu     sync.Mutex
	frames []Frame
}

func (l *frameLog) add(raw []byte) {
	if f, ok := DecodeFrame(raw); ok {
		l.mu.Lock()
		l.frames = append(l.frames, f)
		l.mu.Unlock()
	}
}

func (l *frameLog) ofType(types ...FrameType) []Frame {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []Frame
	for _, f := range l.frames {
		for _, t := range types {
			if f.Type == t {
				out = append(out, f)
			}
		}
	}
	return out
}

func (l *frameLog) tap(raw []byte) []byte {
	l.add(raw)
	return raw
}

func TestConnectHandshake(t *testing.T) {
	var states []State
	var mu sync.Mutex
	cb := &Callbacks{OnStateChange: func(from, to State) {
		mu.Lock()
		states = append(states, to)
		mu.Unlock()
	}}

	p := newPair(t, testConfig(), WithCallbacks(cb))
	assert.Equal(t, StateIdle, p.a.State())
	p.connect(t)

	assert.Equal(t, StationID("B"), p.a.Remote())
	assert.Equal(t, StationID("A"), p.b.Remote())

	mu.Lock()
	assert.Contains(t, states, StateAwaitingConnect)
	assert.Equal(t, StateConnected, states[len(states)-1])
	mu.Unlock()

	err := p.a.Connect(context.Background(), "B")
	assert.True(t, IsKind(err, KindAlreadyConnected))
	err = p.b.WaitForConnection(context.Background())
	assert.True(t, IsKind(err, KindAlreadyConnected))
}

func TestSendReceiveRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	random := make([]byte, 5000)
	rng.Read(random)

	payloads := map[string][]byte{
		"empty":          {},
		"short":          []byte("hello world"),
		"random":         random,
		"reserved bytes": bytes.Repeat([]byte{Escape, 0x04, 0x17, ChecksumMarker, FEND}, 300),
	}

	for name, payload := range payloads {
		t.Run(name, func(t *testing.T) {
			p := newConnectedPair(t, testConfig())
			got, err := p.transfer(payload)
			require.NoError(t, err)
			assert.Equal(t, payload, got)
			assert.True(t, p.a.Connected())
			assert.True(t, p.b.Connected())
		})
	}
}

func TestSeveralMessagesOneConnection(t *testing.T) {
	p := newConnectedPair(t, testConfig())
	for i, msg := range []string{"first", "", "third message"} {
		got, err := p.transfer([]byte(msg))
		require.NoError(t, err, "message %d", i)
		assert.Equal(t, msg, string(got))
	}

	// Roles can swap on the same link.
	var got []byte
	g, ctx := errgroup.WithContext(context.Background())
	g.Go(func() error {
		var err error
		got, err = p.a.Receive(ctx)
		return err
	})
	g.Go(func() error { return p.b.Send(ctx, []byte("reply")) })
	require.NoError(t, g.Wait())
	assert.Equal(t, "reply", string(got))
}

func TestHelloWorldChunks(t *testing.T) {
	cfg := testConfig()
	cfg.MaxPacketLength = 15
	p := newConnectedPair(t, cfg, WithCompressor(NopCompressor{}))
	require.Equal(t, 4, cfg.ChunkBound("A", "B"))

	var sent frameLog
	p.ta.SetTap(sent.tap)

	got, err := p.transfer([]byte("hello world"))
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(got))

	data := sent.ofType(TypeDataStart, TypeDataChunk)
	require.Len(t, data, 4)
	assert.Equal(t, TypeDataStart, data[0].Type)
	for _, f := range data[1:] {
		assert.Equal(t, TypeDataChunk, f.Type)
	}
	assert.Equal(t, "hell\x1d52895", string(data[0].Body))
	assert.Equal(t, "o wo\x1d64977", string(data[1].Body))
	assert.Equal(t, "rld\x1d57781", string(data[2].Body))
	assert.Equal(t, "\x04\x17\x1d6268", string(data[3].Body))

	assert.Equal(t, []byte("A>B:\x02hell\x1d52895"), EncodeFrame(data[0]))
}

func TestChunkingBoundary(t *testing.T) {
	cfg := testConfig()
	bound := cfg.ChunkBound("A", "B")

	for _, n := range []int{0, 1, bound - 1, bound, bound + 1, 3 * bound, 3*bound + 1} {
		p := newConnectedPair(t, cfg, WithCompressor(NopCompressor{}))
		var sent frameLog
		p.ta.SetTap(sent.tap)

		payload := bytes.Repeat([]byte{'x'}, n)
		got, err := p.transfer(payload)
		require.NoError(t, err, "n=%d", n)
		assert.Equal(t, payload, got, "n=%d", n)

		data := sent.ofType(TypeDataStart, TypeDataChunk)
		want := (n + bound - 1) / bound
		require.Len(t, data, want+1, "n=%d", n)
		for _, f := range data[:want] {
			chunk, ok := verifyChunk(f.Body)
			require.True(t, ok)
			assert.LessOrEqual(t, len(chunk), bound)
			assert.LessOrEqual(t, len(EncodeFrame(f)), cfg.MaxPacketLength)
		}
		last, ok := verifyChunk(data[want].Body)
		require.True(t, ok)
		assert.Equal(t, DataEnd, last)
	}
}

func TestChecksumMismatchTriggersResend(t *testing.T) {
	p := newConnectedPair(t, testConfig(), WithCompressor(NopCompressor{}))

	var (
		mu       sync.Mutex
		original [][]byte
		flipped  atomic.Bool
	)
	p.ta.SetTap(func(raw []byte) []byte {
		f, ok := DecodeFrame(raw)
		if !ok || !f.Type.IsData() {
			return raw
		}
		mu.Lock()
		original = append(original, append([]byte(nil), raw...))
		mu.Unlock()
		if flipped.CompareAndSwap(false, true) {
			// First payload byte after "A>B:" and the type byte.
			raw[5] ^= 0x01
		}
		return raw
	})
	var replies frameLog
	p.tb.SetTap(replies.tap)

	got, err := p.transfer([]byte("hello world"))
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(got))

	assert.Len(t, replies.ofType(TypeResend), 1)
	mu.Lock()
	require.GreaterOrEqual(t, len(original), 2)
	assert.Equal(t, original[0], original[1], "retransmission must be identical")
	mu.Unlock()
}

func TestRetryBoundOnLostAcks(t *testing.T) {
	cfg := testConfig()
	p := newConnectedPair(t, cfg)

	var sent frameLog
	p.ta.SetTap(sent.tap)
	p.tb.SetTap(func(raw []byte) []byte {
		if f, ok := DecodeFrame(raw); ok && f.Type == TypeAck {
			return nil
		}
		return raw
	})

	recvDone := make(chan error, 1)
	go func() {
		_, err := p.b.Receive(context.Background())
		recvDone <- err
	}()

	err := p.a.Send(context.Background(), []byte("never acknowledged"))
	require.Error(t, err)
	assert.True(t, IsKind(err, KindAckTimeoutExceeded), "got %v", err)
	assert.True(t, IsTimeout(err))
	assert.False(t, p.a.Connected())
	assert.Equal(t, StateClosed, p.a.State())

	data := sent.ofType(TypeDataStart, TypeDataChunk)
	assert.Len(t, data, 1+cfg.SendAttempts)
	for _, f := range data {
		assert.Equal(t, data[0], f)
	}

	err = <-recvDone
	assert.True(t, IsKind(err, KindReceiveTimeoutExceeded), "got %v", err)
	assert.False(t, p.b.Connected())
}

func TestResendLoopErrorKinds(t *testing.T) {
	cfg := testConfig()
	p := newConnectedPair(t, cfg, WithCompressor(NopCompressor{}))

	p.ta.SetTap(func(raw []byte) []byte {
		if f, ok := DecodeFrame(raw); ok && f.Type.IsData() {
			raw[5] ^= 0x40
		}
		return raw
	})

	recvDone := make(chan error, 1)
	go func() {
		_, err := p.b.Receive(context.Background())
		recvDone <- err
	}()

	sendErr := p.a.Send(context.Background(), []byte("garbled"))
	assert.True(t, IsKind(sendErr, KindResendLoopExceeded), "got %v", sendErr)

	recvErr := <-recvDone
	assert.True(t, IsChecksum(recvErr), "got %v", recvErr)
}

func TestNotConnected(t *testing.T) {
	p := newPair(t, testConfig())

	err := p.a.Send(context.Background(), []byte("x"))
	assert.True(t, IsNotConnected(err))
	_, err = p.b.Receive(context.Background())
	assert.True(t, IsNotConnected(err))
}

func TestReceiveNoData(t *testing.T) {
	cfg := testConfig()
	p := newConnectedPair(t, cfg)

	start := time.Now()
	_, err := p.b.Receive(context.Background())
	assert.True(t, IsKind(err, KindNoData), "got %v", err)
	assert.GreaterOrEqual(t, time.Since(start), time.Duration(cfg.RecvAttempts+1)*cfg.ChunkTimeout)
	assert.Equal(t, StateClosed, p.b.State())
}

func TestWaitForConnectionTimeout(t *testing.T) {
	cfg := testConfig()
	cfg.ConnectTimeout = 150 * time.Millisecond
	p := newPair(t, cfg)

	err := p.b.WaitForConnection(context.Background())
	assert.True(t, IsKind(err, KindConnectTimeout), "got %v", err)
	assert.Equal(t, StateIdle, p.b.State())
}

func TestConnectToSilentPeer(t *testing.T) {
	cfg := testConfig()
	ta, tb := Pipe()
	defer tb.Close()

	var sent frameLog
	ta.SetTap(sent.tap)

	a, err := NewConn("A", ta, WithConfig(cfg), WithLogger(NewZapLogger(zaptest.NewLogger(t))))
	require.NoError(t, err)
	defer a.Close()

	err = a.Connect(context.Background(), "B")
	assert.True(t, IsKind(err, KindConnectTimeout), "got %v", err)
	assert.Equal(t, StateIdle, a.State())
	assert.Len(t, sent.ofType(TypeConnect), 1+cfg.ConnectAttempts)
}

func TestConnectIgnoresOtherStations(t *testing.T) {
	cfg := testConfig()
	cfg.ConnectTimeout = 200 * time.Millisecond
	ta, tb := Pipe()
	defer ta.Close()

	b, err := NewConn("B", tb, WithConfig(cfg))
	require.NoError(t, err)
	defer b.Close()

	// Addressed to someone else.
	require.NoError(t, ta.WriteFrame([]byte("A>C:\x01")))

	err = b.WaitForConnection(context.Background())
	assert.True(t, IsKind(err, KindConnectTimeout), "got %v", err)
}

func TestDisconnectAndReconnect(t *testing.T) {
	p := newConnectedPair(t, testConfig())

	p.a.Disconnect()
	p.b.Disconnect()
	assert.Equal(t, StateClosed, p.a.State())
	assert.Equal(t, StationID(""), p.a.Remote())

	err := p.a.Send(context.Background(), []byte("x"))
	assert.True(t, IsNotConnected(err))

	p.connect(t)
	got, err := p.transfer([]byte("again"))
	require.NoError(t, err)
	assert.Equal(t, "again", string(got))
}

func TestReceiveCancelled(t *testing.T) {
	p := newConnectedPair(t, testConfig())

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(30 * time.Millisecond)
		cancel()
	}()

	_, err := p.b.Receive(ctx)
	assert.True(t, IsKind(err, KindCancelled), "got %v", err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StateClosed, p.b.State())
}

func TestTransferTimeout(t *testing.T) {
	cfg := testConfig()
	cfg.RecvAttempts = 100
	cfg.TransferTimeout = 300 * time.Millisecond
	p := newConnectedPair(t, cfg)

	start := time.Now()
	_, err := p.b.Receive(context.Background())
	assert.True(t, IsKind(err, KindNoData), "got %v", err)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestEscapedTerminatorInCompressedStream(t *testing.T) {
	// Random bytes do not compress, so zlib stores them and any DataEnd in
	// the payload appears verbatim in the compressed stream.
	var payload []byte
	for seed := int64(0); seed < 5000; seed++ {
		candidate := make([]byte, 1024)
		rand.New(rand.NewSource(seed)).Read(candidate)
		compressed, err := ZlibCompressor{}.Compress(candidate)
		require.NoError(t, err)
		if bytes.Contains(compressed, DataEnd) {
			payload = candidate
			break
		}
	}
	require.NotNil(t, payload, "no seed produced DataEnd in the compressed stream")

	p := newConnectedPair(t, testConfig())
	got, err := p.transfer(payload)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestReceiveWithFirstFrame(t *testing.T) {
	p := newConnectedPair(t, testConfig(), WithCompressor(NopCompressor{}))

	var acks frameLog
	p.tb.SetTap(acks.tap)

	first := Frame{Source: "A", Destination: "B", Type: TypeDataStart, Body: chunkBody([]byte("hi"))}
	end := Frame{Source: "A", Destination: "B", Type: TypeDataChunk, Body: chunkBody(DataEnd)}
	require.NoError(t, p.ta.WriteFrame(EncodeFrame(end)))

	got, err := p.b.Receive(context.Background(), WithFirstFrame(first))
	require.NoError(t, err)
	assert.Equal(t, "hi", string(got))
	assert.Len(t, acks.ofType(TypeAck), 2)
}

func TestReceiveWithBadFirstFrame(t *testing.T) {
	p := newConnectedPair(t, testConfig(), WithCompressor(NopCompressor{}))

	good := Frame{Source: "A", Destination: "B", Type: TypeDataStart, Body: chunkBody([]byte("hi"))}
	end := Frame{Source: "A", Destination: "B", Type: TypeDataChunk, Body: chunkBody(DataEnd)}
	bad := good
	bad.Body = append([]byte(nil), good.Body...)
	bad.Body[0] ^= 0x01

	var replies frameLog
	p.tb.SetTap(func(raw []byte) []byte {
		replies.add(raw)
		f, ok := DecodeFrame(raw)
		switch {
		case !ok:
		case f.Type == TypeResend:
			p.ta.WriteFrame(EncodeFrame(good))
		case f.Type == TypeAck && len(replies.ofType(TypeAck)) == 1:
			p.ta.WriteFrame(EncodeFrame(end))
		}
		return raw
	})

	got, err := p.b.Receive(context.Background(), WithFirstFrame(bad))
	require.NoError(t, err)
	assert.Equal(t, "hi", string(got))

	resends := replies.ofType(TypeResend)
	require.Len(t, resends, 1)
	assert.Equal(t, StationID("A"), resends[0].Destination)
	assert.Len(t, replies.ofType(TypeAck), 2)
}

func TestReceiveDecompressFailure(t *testing.T) {
	p := newConnectedPair(t, testConfig())

	end := Frame{Source: "A", Destination: "B", Type: TypeDataChunk, Body: chunkBody(DataEnd)}
	var acks atomic.Int32
	p.tb.SetTap(func(raw []byte) []byte {
		if f, ok := DecodeFrame(raw); ok && f.Type == TypeAck && acks.Add(1) == 1 {
			p.ta.WriteFrame(EncodeFrame(end))
		}
		return raw
	})
	require.NoError(t, p.ta.WriteFrame(EncodeFrame(Frame{
		Source: "A", Destination: "B", Type: TypeDataStart, Body: chunkBody([]byte("not zlib")),
	})))

	_, err := p.b.Receive(context.Background())
	assert.True(t, IsKind(err, KindDecompress), "got %v", err)
	assert.Equal(t, StateClosed, p.b.State())
	assert.Equal(t, int32(2), acks.Load())
}

func TestReceiveWithPeers(t *testing.T) {
	p := newConnectedPair(t, testConfig(), WithCompressor(NopCompressor{}))

	script := []Frame{
		{Source: "C", Destination: "B", Type: TypeDataStart, Body: chunkBody([]byte("from C"))},
		{Source: "C", Destination: "B", Type: TypeDataChunk, Body: chunkBody(DataEnd)},
	}
	var next atomic.Int32
	var acksToC atomic.Int32
	p.tb.SetTap(func(raw []byte) []byte {
		f, ok := DecodeFrame(raw)
		if ok && f.Type == TypeAck && f.Destination == "C" {
			acksToC.Add(1)
			if i := int(next.Add(1)); i < len(script) {
				p.ta.WriteFrame(EncodeFrame(script[i]))
			}
		}
		return raw
	})

	// Frames from A are ignored while only C is accepted.
	require.NoError(t, p.ta.WriteFrame(EncodeFrame(Frame{
		Source: "A", Destination: "B", Type: TypeDataStart, Body: chunkBody([]byte("from A")),
	})))
	time.Sleep(10 * time.Millisecond)
	require.NoError(t, p.ta.WriteFrame(EncodeFrame(script[0])))

	got, err := p.b.Receive(context.Background(), WithPeers("C", "D"))
	require.NoError(t, err)
	assert.Equal(t, "from C", string(got))
	assert.Equal(t, int32(2), acksToC.Load())
}

func TestLostFinalAckIsRecovered(t *testing.T) {
	p := newConnectedPair(t, testConfig(), WithCompressor(NopCompressor{}))

	// "hi" travels as DATA_START and the terminator chunk; drop the ACK of
	// the terminator once.
	var acks atomic.Int32
	p.tb.SetTap(func(raw []byte) []byte {
		if f, ok := DecodeFrame(raw); ok && f.Type == TypeAck && acks.Add(1) == 2 {
			return nil
		}
		return raw
	})

	var got [][]byte
	g, ctx := errgroup.WithContext(context.Background())
	g.Go(func() error {
		for i := 0; i < 2; i++ {
			msg, err := p.b.Receive(ctx)
			if err != nil {
				return err
			}
			got = append(got, msg)
		}
		return nil
	})
	g.Go(func() error {
		if err := p.a.Send(ctx, []byte("hi")); err != nil {
			return err
		}
		return p.a.Send(ctx, []byte("there"))
	})
	require.NoError(t, g.Wait())
	require.Len(t, got, 2)
	assert.Equal(t, "hi", string(got[0]))
	assert.Equal(t, "there", string(got[1]))
}

func TestProgressAndRetryCallbacks(t *testing.T) {
	var (
		mu      sync.Mutex
		final   = map[Direction]Progress{}
		retried atomic.Int32
	)
	cb := &Callbacks{
		OnProgress: func(pr Progress) {
			if pr.Done {
				mu.Lock()
				final[pr.Direction] = pr
				mu.Unlock()
			}
		},
		OnRetry: func(string, int, string) { retried.Add(1) },
	}
	p := newConnectedPair(t, testConfig(), WithCallbacks(cb), WithCompressor(NopCompressor{}))

	// Lose the ACK of DATA_START once; the receiver sees DATA_START twice.
	var dropped atomic.Bool
	p.tb.SetTap(func(raw []byte) []byte {
		if f, ok := DecodeFrame(raw); ok && f.Type == TypeAck && dropped.CompareAndSwap(false, true) {
			return nil
		}
		return raw
	})

	payload := []byte("callbacks")
	_, err := p.transfer(payload)
	require.NoError(t, err)
	assert.Positive(t, retried.Load())

	mu.Lock()
	defer mu.Unlock()
	wire := int64(len(payload) + len(DataEnd))

	sent := final[Sending]
	assert.Equal(t, 2, sent.Chunks)
	assert.Equal(t, 2, sent.TotalChunks)
	assert.Equal(t, wire, sent.Bytes)
	assert.Equal(t, 1, sent.Retries)
	assert.Equal(t, 1.0, sent.Fraction())

	recv := final[Receiving]
	assert.Equal(t, 2, recv.Chunks, "restarted message must not be counted twice")
	assert.Equal(t, 2, recv.TotalChunks)
	assert.Equal(t, wire, recv.Bytes)
	assert.NotEmpty(t, recv.Transfer)
}

func TestCloseStopsReader(t *testing.T) {
	defer goleak.VerifyNone(t)

	ta, tb := Pipe()
	a, err := NewConn("A", ta, WithConfig(testConfig()))
	require.NoError(t, err)
	b, err := NewConn("B", tb, WithConfig(testConfig()))
	require.NoError(t, err)

	g, ctx := errgroup.WithContext(context.Background())
	g.Go(func() error { return b.WaitForConnection(ctx) })
	g.Go(func() error { return a.Connect(ctx, "B") })
	require.NoError(t, g.Wait())

	blocked := make(chan error, 1)
	go func() {
		_, err := b.Receive(context.Background())
		blocked <- err
	}()
	time.Sleep(20 * time.Millisecond)

	require.NoError(t, b.Close())
	assert.True(t, IsKind(<-blocked, KindClosed))
	require.NoError(t, a.Close())
	require.NoError(t, a.Close())

	err = a.Send(context.Background(), []byte("x"))
	assert.True(t, IsKind(err, KindClosed))
	assert.Equal(t, StateClosed, a.State())
}

func TestNewConnValidation(t *testing.T) {
	ta, _ := Pipe()

	_, err := NewConn("", ta)
	assert.True(t, IsKind(err, KindInvalidConfig))

	_, err = NewConn("A", nil)
	assert.True(t, IsKind(err, KindInvalidConfig))

	cfg := DefaultConfig()
	cfg.MaxPacketLength = 12
	_, err = NewConn("LONGCALL", ta, WithConfig(cfg))
	assert.True(t, IsKind(err, KindInvalidConfig))

	cfg = DefaultConfig()
	cfg.ChunkTimeout = 0
	_, err = NewConn("A", ta, WithConfig(cfg))
	assert.True(t, IsKind(err, KindInvalidConfig))
}

func TestFramesLoggedWhenLoggerSet(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	logger := NewZapLogger(zap.New(core))

	ta, tb := Pipe()
	a, err := NewConn("A", ta, WithConfig(testConfig()), WithLogger(logger))
	require.NoError(t, err)
	defer a.Close()
	b, err := NewConn("B", tb, WithConfig(testConfig()))
	require.NoError(t, err)
	defer b.Close()

	_, wrapped := a.transport.(*LoggingTransport)
	assert.True(t, wrapped)
	_, wrapped = b.transport.(*LoggingTransport)
	assert.False(t, wrapped, "no frame logging without a logger")

	g, ctx := errgroup.WithContext(context.Background())
	g.Go(func() error { return b.WaitForConnection(ctx) })
	g.Go(func() error { return a.Connect(ctx, "B") })
	require.NoError(t, g.Wait())

	assert.Positive(t, logs.FilterMessage("A: TX CONNECT A>B").Len())
	assert.Equal(t, 1, logs.FilterMessage("A: RX ACK B>A").Len())
}
