package core

import "github.com/dkeye/Chat/internal/domain"

// Frame is a raw payload ready for the wire (already-encoded JSON).
type Frame []byte

type SessionID string

// EventConn abstracts the outbound half of a live connection.
// Owned by the adapter; the adapter must Close() it.
type EventConn interface {
	TrySend(Frame) error
	Close()
}

// Session binds an authenticated user to its transport endpoint.
// This is what the roster stores and fans out to.
type Session struct {
	SID    SessionID
	UserID domain.UserID
	Conn   EventConn
}

// PublishResult reports delivery stats/backpressure to the caller.
type PublishResult struct {
	SentTo  int
	Dropped []*Session
}
