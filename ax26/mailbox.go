package ax26

import (
	"context"
	"errors"
	"sync"
	"time"
)

// errWaitTimeout is returned by mailbox.take when the per-wait timeout
// expires. It never leaves the package.
var errWaitTimeout = errors.New("wait timed out")

// mailbox is the single-slot hand-off between the reader goroutine and the
// protocol logic. A newer frame overwrites one that was not taken yet.
type mailbox struct {
	mu    sync.Mutex
	frame *Frame
	err   error

	notify chan struct{}
	done   chan struct{}
}

func newMailbox() *mailbox {
	return &mailbox{
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

// put latches f and wakes a waiter.
func (m *mailbox) put(f Frame) {
	m.mu.Lock()
	m.frame = &f
	m.mu.Unlock()

	select {
	case m.notify <- struct{}{}:
	default:
	}
}

// clear drops any latched frame.
func (m *mailbox) clear() {
	m.mu.Lock()
	m.frame = nil
	m.mu.Unlock()
}

// shutdown makes every current and future take fail with err.
func (m *mailbox) shutdown(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return
	}
	m.err = err
	close(m.done)
}

// take waits for a frame accepted by match. Frames that do not match are
// consumed and discarded. A timeout <= 0 waits until ctx is done.
func (m *mailbox) take(ctx context.Context, timeout time.Duration, match func(Frame) bool) (Frame, error) {
	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}

	for {
		m.mu.Lock()
		f, err := m.frame, m.err
		m.frame = nil
		m.mu.Unlock()

		if f != nil && match(*f) {
			return *f, nil
		}
		if err != nil {
			return Frame{}, err
		}

		select {
		case <-m.notify:
		case <-m.done:
		case <-expired:
			return Frame{}, errWaitTimeout
		case <-ctx.Done():
			return Frame{}, ctx.Err()
		}
	}
}
