package ax26

import "time"

// Direction tells which side of a transfer a Progress describes.
type Direction int

const (
	Sending Direction = iota
	Receiving
)

func (d Direction) String() string {
	if d == Receiving {
		return "receive"
	}
	return "send"
}

// Progress is a snapshot of one message exchange, counted the way the link
// sees it: in acknowledged chunks and their wire bytes.
type Progress struct {
	Transfer  string
	Direction Direction

	// Chunks and Bytes count acknowledged chunks, terminator included.
	Chunks int
	Bytes  int64

	// TotalChunks and TotalBytes are known up front when sending. A
	// receiver learns them only when the terminator arrives.
	TotalChunks int
	TotalBytes  int64

	// Retries counts retransmissions on the sending side, and RESENDs or
	// empty waits on the receiving side.
	Retries int

	Elapsed time.Duration
	Done    bool
}

// Rate returns the acknowledged wire bytes per second.
func (p Progress) Rate() float64 {
	if s := p.Elapsed.Seconds(); s > 0 {
		return float64(p.Bytes) / s
	}
	return 0
}

// Fraction returns the completed share of the transfer in [0, 1], or -1
// while the total is unknown.
func (p Progress) Fraction() float64 {
	if p.TotalChunks == 0 {
		return -1
	}
	return float64(p.Chunks) / float64(p.TotalChunks)
}

// chunkMeter accumulates Progress for a transfer. It reports to the
// callback at most once per interval while running and always once on
// finish. Only the goroutine driving the transfer touches it.
type chunkMeter struct {
	p        Progress
	start    time.Time
	reported time.Time
	interval time.Duration
	report   func(Progress)
}

func newChunkMeter(transfer string, dir Direction, report func(Progress), interval time.Duration) *chunkMeter {
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	now := time.Now()
	return &chunkMeter{
		p:        Progress{Transfer: transfer, Direction: dir},
		start:    now,
		reported: now,
		interval: interval,
		report:   report,
	}
}

// expect records the size of an outgoing message.
func (m *chunkMeter) expect(chunks int, bytes int64) {
	m.p.TotalChunks = chunks
	m.p.TotalBytes = bytes
}

// acked counts one acknowledged chunk of n wire bytes.
func (m *chunkMeter) acked(n int) {
	m.p.Chunks++
	m.p.Bytes += int64(n)

	now := time.Now()
	if now.Sub(m.reported) < m.interval {
		return
	}
	m.reported = now
	if m.report != nil {
		m.report(m.snapshot())
	}
}

// restart forgets counted chunks when the peer starts the message over.
func (m *chunkMeter) restart() {
	m.p.Chunks = 0
	m.p.Bytes = 0
}

func (m *chunkMeter) retry() {
	m.p.Retries++
}

func (m *chunkMeter) snapshot() Progress {
	p := m.p
	p.Elapsed = time.Since(m.start)
	return p
}

// finish closes the transfer, fills in totals a receiver could not know
// earlier and reports the final snapshot.
func (m *chunkMeter) finish() Progress {
	m.p.Done = true
	m.p.TotalChunks = m.p.Chunks
	m.p.TotalBytes = m.p.Bytes
	p := m.snapshot()
	if m.report != nil {
		m.report(p)
	}
	return p
}
