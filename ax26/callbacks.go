package ax26

import (
	"time"
)

// Callbacks provides hooks for AX.26 connection and transfer events.
// All callbacks are optional - nil callbacks use default behavior.
//
// Callbacks run on the goroutine calling into Conn and must not call back
// into the same Conn.
type Callbacks struct {
	// OnStateChange is called whenever the connection state changes.
	OnStateChange func(from, to State)

	// OnProgress is called periodically while chunks are acknowledged and
	// once more when the transfer completes (Progress.Done).
	OnProgress func(progress Progress)

	// OnRetry is called when a chunk has to be retransmitted or re-requested.
	// attempt counts from 1; reason is "timeout", "resend" or "checksum".
	OnRetry func(transfer string, attempt int, reason string)

	// OnEvent is called for protocol events (debugging/logging).
	OnEvent func(event Event)
}

// Event represents a protocol event for logging/debugging.
type Event struct {
	Type      EventType
	Message   string
	Frame     FrameType
	Timestamp time.Time
}

// EventType categorizes protocol events.
type EventType int

const (
	EventFrameSent EventType = iota
	EventFrameReceived
	EventConnected
	EventTransferStart
	EventTransferComplete
	EventError
	EventTimeout
	EventCancelled
)

func (t EventType) String() string {
	switch t {
	case EventFrameSent:
		return "frame-sent"
	case EventFrameReceived:
		return "frame-received"
	case EventConnected:
		return "connected"
	case EventTransferStart:
		return "transfer-start"
	case EventTransferComplete:
		return "transfer-complete"
	case EventError:
		return "error"
	case EventTimeout:
		return "timeout"
	case EventCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// defaultCallbacks returns a set of callbacks with default implementations.
func defaultCallbacks() *Callbacks {
	return &Callbacks{
		OnStateChange: func(State, State) {},
		OnProgress:    func(Progress) {},
		OnRetry:       func(string, int, string) {},
		OnEvent:       func(Event) {},
	}
}

// mergeCallbacks merges user callbacks with defaults.
// User callbacks override defaults, nil callbacks use defaults.
func mergeCallbacks(user *Callbacks) *Callbacks {
	def := defaultCallbacks()
	if user == nil {
		return def
	}

	result := *def
	if user.OnStateChange != nil {
		result.OnStateChange = user.OnStateChange
	}
	if user.OnProgress != nil {
		result.OnProgress = user.OnProgress
	}
	if user.OnRetry != nil {
		result.OnRetry = user.OnRetry
	}
	if user.OnEvent != nil {
		result.OnEvent = user.OnEvent
	}
	return &result
}
