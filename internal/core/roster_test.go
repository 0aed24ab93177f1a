package core

import (
	"fmt"
	"sync"
	"testing"

	"github.com/dkeye/Chat/internal/domain"
)

type nopConn struct{}

func (nopConn) TrySend(Frame) error { return nil }
func (nopConn) Close()              {}

func newSession(sid string) *Session {
	return &Session{SID: SessionID(sid), UserID: "AAAA1", Conn: nopConn{}}
}

func TestRoster_AddRemove(t *testing.T) {
	r := NewRoster()
	conv := domain.ConversationID(7)

	r.Add(conv, newSession("s1"))
	r.Add(conv, newSession("s2"))

	if got := r.Count(conv); got != 2 {
		t.Fatalf("Count() = %d, want 2", got)
	}

	// Adding the same session twice changes nothing.
	r.Add(conv, newSession("s1"))
	if got := r.Count(conv); got != 2 {
		t.Errorf("Count() after duplicate add = %d, want 2", got)
	}

	r.Remove(conv, "s1")
	if r.Contains(conv, "s1") {
		t.Error("Contains(s1) = true after Remove")
	}
	if !r.Contains(conv, "s2") {
		t.Error("Contains(s2) = false, want true")
	}

	// Removing an absent session is a no-op.
	r.Remove(conv, "s1")
	r.Remove(domain.ConversationID(99), "s2")
	if got := r.Count(conv); got != 1 {
		t.Errorf("Count() = %d, want 1", got)
	}
}

func TestRoster_RemoveSession(t *testing.T) {
	r := NewRoster()

	r.Add(1, newSession("s1"))
	r.Add(2, newSession("s1"))
	r.Add(2, newSession("s2"))

	r.RemoveSession("s1")

	if r.Contains(1, "s1") || r.Contains(2, "s1") {
		t.Error("s1 still present after RemoveSession")
	}
	if !r.Contains(2, "s2") {
		t.Error("s2 removed unexpectedly")
	}

	// Safe for a session that never joined.
	r.RemoveSession("ghost")
}

func TestRoster_MembersOfSnapshot(t *testing.T) {
	r := NewRoster()
	conv := domain.ConversationID(3)

	r.Add(conv, newSession("s1"))
	r.Add(conv, newSession("s2"))

	snap := r.MembersOf(conv)
	if len(snap) != 2 {
		t.Fatalf("MembersOf() len = %d, want 2", len(snap))
	}

	// Mutating after the snapshot must not affect it.
	r.Remove(conv, "s1")
	if len(snap) != 2 {
		t.Errorf("snapshot len changed to %d after Remove", len(snap))
	}

	if got := r.MembersOf(domain.ConversationID(42)); len(got) != 0 {
		t.Errorf("MembersOf(empty room) len = %d, want 0", len(got))
	}
}

func TestRoster_ConcurrentMutation(t *testing.T) {
	r := NewRoster()
	conv := domain.ConversationID(5)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sid := fmt.Sprintf("s%d", i)
			r.Add(conv, newSession(sid))
			r.MembersOf(conv)
			if i%2 == 0 {
				r.Remove(conv, SessionID(sid))
			}
		}(i)
	}
	wg.Wait()

	if got := r.Count(conv); got != 25 {
		t.Errorf("Count() = %d, want 25", got)
	}
}
