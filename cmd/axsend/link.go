package main

import (
	"context"
	"time"

	"github.com/drunlade/go-ax26/ax26"
)

// link keeps a sending connection usable across long pauses. A receiver
// that sees no data for (RecvAttempts+1) * ChunkTimeout drops the session
// and goes back to waiting for CONNECT, so a sender that has been idle that
// long connects again before sending.
type link struct {
	conn      *ax26.Conn
	remote    ax26.StationID
	idleLimit time.Duration
	lastUsed  time.Time
	logger    ax26.Logger
}

func newLink(conn *ax26.Conn, remote ax26.StationID, config *ax26.Config, logger ax26.Logger) *link {
	if logger == nil {
		logger = ax26.NoopLogger{}
	}
	return &link{
		conn:      conn,
		remote:    remote,
		idleLimit: config.ChunkTimeout * time.Duration(config.RecvAttempts+1),
		logger:    logger,
	}
}

func (l *link) connect(ctx context.Context) error {
	if err := l.conn.Connect(ctx, l.remote); err != nil {
		return err
	}
	l.lastUsed = time.Now()
	return nil
}

// send delivers msgs in order as one unit. When the transfer times out the
// peer has most likely dropped the session, so the whole unit is retried
// once on a fresh connection.
func (l *link) send(ctx context.Context, msgs ...[]byte) error {
	err := l.trySend(ctx, msgs)
	if err == nil || !ax26.IsTimeout(err) || ctx.Err() != nil {
		return err
	}
	l.logger.Info("%s: transfer to %s timed out, reconnecting: %v", l.conn.Local(), l.remote, err)
	l.conn.Disconnect()
	return l.trySend(ctx, msgs)
}

func (l *link) trySend(ctx context.Context, msgs [][]byte) error {
	if l.conn.Connected() && time.Since(l.lastUsed) > l.idleLimit {
		l.logger.Info("%s: idle for more than %s, reconnecting to %s", l.conn.Local(), l.idleLimit, l.remote)
		l.conn.Disconnect()
	}
	if !l.conn.Connected() {
		if err := l.connect(ctx); err != nil {
			return err
		}
	}
	for _, msg := range msgs {
		if err := l.conn.Send(ctx, msg); err != nil {
			return err
		}
		l.lastUsed = time.Now()
	}
	return nil
}
