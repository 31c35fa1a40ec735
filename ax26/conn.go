package ax26

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// State is the connection state of a Conn.
type State int

const (
	StateIdle State = iota
	StateAwaitingConnect
	StateConnected
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingConnect:
		return "awaiting-connect"
	case StateConnected:
		return "connected"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// errConnClosed is the mailbox shutdown reason after Close.
var errConnClosed = errors.New("connection closed")

// Conn is one local station's end of an AX.26 link.
//
// A Conn owns its Transport. A background goroutine reads frames from it
// for the lifetime of the Conn. Blocking operations (Connect,
// WaitForConnection, Send, Receive) are serialized; State, Remote,
// Connected, Disconnect and Close may be called from any goroutine.
type Conn struct {
	local     StationID
	transport Transport

	config     *Config
	callbacks  *Callbacks
	compressor Compressor
	logger     Logger

	inbox *mailbox
	opMu  sync.Mutex

	mu     sync.Mutex
	state  State
	remote StationID

	closeOnce  sync.Once
	closing    chan struct{}
	readerDone chan struct{}
}

// Option configures a Conn.
type Option func(*Conn)

// WithConfig sets the connection configuration.
func WithConfig(config *Config) Option {
	return func(c *Conn) {
		c.config = config
	}
}

// WithCallbacks sets the connection callbacks.
func WithCallbacks(callbacks *Callbacks) Option {
	return func(c *Conn) {
		c.callbacks = mergeCallbacks(callbacks)
	}
}

// WithLogger sets a logger for protocol debugging.
func WithLogger(logger Logger) Option {
	return func(c *Conn) {
		c.logger = logger
	}
}

// WithCompressor replaces the default zlib compressor.
func WithCompressor(compressor Compressor) Option {
	return func(c *Conn) {
		c.compressor = compressor
	}
}

// NewConn creates a connection for station local over transport and starts
// its background reader.
func NewConn(local StationID, transport Transport, opts ...Option) (*Conn, error) {
	if err := local.Validate(); err != nil {
		return nil, err
	}
	if transport == nil {
		return nil, NewError(KindInvalidConfig, "nil transport")
	}

	c := &Conn{
		local:      local,
		transport:  transport,
		config:     DefaultConfig(),
		callbacks:  defaultCallbacks(),
		logger:     NoopLogger{},
		inbox:      newMailbox(),
		state:      StateIdle,
		closing:    make(chan struct{}),
		readerDone: make(chan struct{}),
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.config == nil {
		c.config = DefaultConfig()
	}
	if err := c.config.Validate(); err != nil {
		return nil, err
	}
	// The shortest possible remote identifier is one byte.
	if err := c.config.checkChunkBound(local, "?"); err != nil {
		return nil, err
	}
	if c.compressor == nil {
		c.compressor = ZlibCompressor{Level: c.config.CompressionLevel}
	}
	if c.logger == nil {
		c.logger = NoopLogger{}
	}
	if _, quiet := c.logger.(NoopLogger); !quiet {
		c.transport = NewLoggingTransport(c.transport, c.logger, string(local))
	}

	go c.readLoop()
	return c, nil
}

// Local returns the local station identifier.
func (c *Conn) Local() StationID {
	return c.local
}

// State returns the current connection state.
func (c *Conn) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Remote returns the connected peer, or "" when there is none.
func (c *Conn) Remote() StationID {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remote
}

// Connected reports whether the connection is established.
func (c *Conn) Connected() bool {
	return c.State() == StateConnected
}

func (c *Conn) setState(to State) {
	c.mu.Lock()
	from := c.state
	c.state = to
	if to != StateConnected {
		c.remote = ""
	}
	c.mu.Unlock()

	if from != to {
		c.logger.Debug("%s: state %s -> %s", c.local, from, to)
		c.callbacks.OnStateChange(from, to)
	}
}

func (c *Conn) establish(remote StationID) {
	c.mu.Lock()
	from := c.state
	c.state = StateConnected
	c.remote = remote
	c.mu.Unlock()

	c.logger.Info("%s: connected to %s", c.local, remote)
	c.callbacks.OnStateChange(from, StateConnected)
	c.event(EventConnected, 0, "connected to "+string(remote))
}

func (c *Conn) event(t EventType, frame FrameType, msg string) {
	c.callbacks.OnEvent(Event{Type: t, Message: msg, Frame: frame, Timestamp: time.Now()})
}

// checkOpen fails once Close has been called.
func (c *Conn) checkOpen() error {
	select {
	case <-c.closing:
		return NewError(KindClosed, "connection is closed")
	default:
		return nil
	}
}

// transmit encodes and writes one frame.
func (c *Conn) transmit(f Frame) error {
	if err := c.transport.WriteFrame(EncodeFrame(f)); err != nil {
		e := wrapError(KindTransport, "write failed", err)
		e.Frame = f.Type
		return e
	}
	c.event(EventFrameSent, f.Type, string(f.Source)+">"+string(f.Destination))
	return nil
}

// control sends a bodiless frame to dst.
func (c *Conn) control(t FrameType, dst StationID) error {
	return c.transmit(Frame{Source: c.local, Destination: dst, Type: t})
}

// await waits for a matching frame. A per-wait timeout is reported as
// errWaitTimeout; everything else is already an *Error.
func (c *Conn) await(ctx context.Context, timeout time.Duration, match func(Frame) bool) (Frame, error) {
	f, err := c.inbox.take(ctx, timeout, match)
	switch {
	case err == nil:
		c.event(EventFrameReceived, f.Type, string(f.Source)+">"+string(f.Destination))
		return f, nil
	case errors.Is(err, errWaitTimeout):
		return Frame{}, err
	case ctx.Err() != nil:
		c.event(EventCancelled, 0, err.Error())
		return Frame{}, wrapError(KindCancelled, "operation cancelled", ctx.Err())
	case errors.Is(err, errConnClosed):
		return Frame{}, NewError(KindClosed, "connection is closed")
	default:
		return Frame{}, wrapError(KindTransport, "read failed", err)
	}
}

// WaitForConnection waits for a CONNECT addressed to the local station from
// any peer, acknowledges it and becomes connected to that peer.
//
// It fails with KindConnectTimeout after Config.ConnectTimeout and leaves
// the connection idle.
func (c *Conn) WaitForConnection(ctx context.Context) error {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	if err := c.checkOpen(); err != nil {
		return err
	}
	if c.Connected() {
		return NewError(KindAlreadyConnected, fmt.Sprintf("already connected to %s", c.Remote()))
	}

	c.setState(StateAwaitingConnect)
	c.logger.Info("%s: waiting for connection", c.local)

	f, err := c.await(ctx, c.config.ConnectTimeout, func(f Frame) bool {
		if f.Type != TypeConnect || f.Destination != c.local {
			return false
		}
		if err := c.config.checkChunkBound(c.local, f.Source); err != nil {
			c.logger.Error("%s: ignoring CONNECT from %s: %v", c.local, f.Source, err)
			return false
		}
		return true
	})
	if err != nil {
		c.setState(StateIdle)
		if errors.Is(err, errWaitTimeout) {
			c.event(EventTimeout, TypeConnect, "no connection request")
			return NewError(KindConnectTimeout, fmt.Sprintf("no connection request within %s", c.config.ConnectTimeout))
		}
		return err
	}

	if err := c.control(TypeAck, f.Source); err != nil {
		c.setState(StateIdle)
		return err
	}
	c.establish(f.Source)
	return nil
}

// Connect actively connects to remote: it sends CONNECT and waits for the
// ACK, retransmitting up to Config.ConnectAttempts times. The whole
// handshake is bounded by Config.ConnectTimeout.
func (c *Conn) Connect(ctx context.Context, remote StationID) error {
	if err := remote.Validate(); err != nil {
		return err
	}

	c.opMu.Lock()
	defer c.opMu.Unlock()

	if err := c.checkOpen(); err != nil {
		return err
	}
	if c.Connected() {
		return NewError(KindAlreadyConnected, fmt.Sprintf("already connected to %s", c.Remote()))
	}
	if err := c.config.checkChunkBound(c.local, remote); err != nil {
		return err
	}

	c.inbox.clear()
	c.setState(StateAwaitingConnect)
	c.logger.Info("%s: connecting to %s", c.local, remote)

	deadline := time.Now().Add(c.config.ConnectTimeout)
	isAck := func(f Frame) bool {
		return f.Type == TypeAck && f.Source == remote && f.Destination == c.local
	}

	for attempt := 0; attempt <= c.config.ConnectAttempts; attempt++ {
		wait := time.Until(deadline)
		if wait <= 0 {
			break
		}
		if wait > c.config.ChunkTimeout {
			wait = c.config.ChunkTimeout
		}
		if attempt > 0 {
			c.logger.Debug("%s: CONNECT retry %d to %s", c.local, attempt, remote)
			c.callbacks.OnRetry("connect", attempt, "timeout")
		}

		if err := c.control(TypeConnect, remote); err != nil {
			c.setState(StateIdle)
			return err
		}

		_, err := c.await(ctx, wait, isAck)
		if err == nil {
			c.establish(remote)
			return nil
		}
		if !errors.Is(err, errWaitTimeout) {
			c.setState(StateIdle)
			return err
		}
	}

	c.setState(StateIdle)
	c.event(EventTimeout, TypeConnect, "no ACK from "+string(remote))
	return NewError(KindConnectTimeout, fmt.Sprintf("no ACK from %s", remote))
}

// Disconnect drops the current peer. No frame is sent; the connection can
// accept or initiate a new connection afterwards.
func (c *Conn) Disconnect() {
	if c.State() == StateConnected {
		c.logger.Info("%s: disconnected from %s", c.local, c.Remote())
	}
	c.setState(StateClosed)
}

// Close stops the background reader and closes the transport. Blocked
// operations return KindClosed.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closing)
		c.inbox.shutdown(errConnClosed)
		err = c.transport.Close()
		<-c.readerDone
		c.setState(StateClosed)
	})
	return err
}

// abort marks the connection closed after a failed transfer and returns err.
func (c *Conn) abort(t *transfer, err error) error {
	c.logger.Error("%s: transfer %s failed: %v", c.local, t.id, err)
	c.event(EventError, 0, err.Error())
	c.setState(StateClosed)
	return err
}

// transfer is the state of one message exchange.
type transfer struct {
	id       string
	deadline time.Time
	meter    *chunkMeter
}

func (c *Conn) newTransfer(dir Direction) *transfer {
	id := uuid.New().String()
	t := &transfer{
		id:    id,
		meter: newChunkMeter(id, dir, c.callbacks.OnProgress, c.config.ProgressInterval),
	}
	if c.config.TransferTimeout > 0 {
		t.deadline = time.Now().Add(c.config.TransferTimeout)
	}
	return t
}

// wait returns the time the next per-chunk wait may take, or 0 once the
// transfer deadline has passed.
func (t *transfer) wait(chunk time.Duration) time.Duration {
	if t.deadline.IsZero() {
		return chunk
	}
	left := time.Until(t.deadline)
	if left <= 0 {
		return 0
	}
	if left < chunk {
		return left
	}
	return chunk
}
