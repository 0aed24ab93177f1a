package app

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dkeye/Chat/internal/core"
	"github.com/dkeye/Chat/internal/domain"
	"github.com/dkeye/Chat/internal/store"
)

// fakeConn records every frame delivered to a session.
type fakeConn struct {
	mu     sync.Mutex
	frames []core.Frame
	fail   bool
}

func (f *fakeConn) TrySend(fr core.Frame) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("connection closed")
	}
	f.frames = append(f.frames, fr)
	return nil
}

func (f *fakeConn) Close() {}

func (f *fakeConn) events(t *testing.T) []map[string]any {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]map[string]any, 0, len(f.frames))
	for _, fr := range f.frames {
		var m map[string]any
		if err := json.Unmarshal(fr, &m); err != nil {
			t.Fatalf("bad frame %q: %v", fr, err)
		}
		out = append(out, m)
	}
	return out
}

func setupApp(t *testing.T) (*Gateway, *Broadcaster, *store.Store) {
	t.Helper()
	st, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("failed to open test store: %v", err)
	}
	roster := core.NewRoster()
	registry := NewRegistry()
	return NewGateway(registry, roster, st), NewBroadcaster(registry, roster, st), st
}

func connect(t *testing.T, gw *Gateway, sid core.SessionID, user domain.UserID) *fakeConn {
	t.Helper()
	conn := &fakeConn{}
	gw.Connect(sid, user, conn, func() {})
	return conn
}

func direct(t *testing.T, st *store.Store, nameA, nameB string) (*domain.User, *domain.User, domain.ConversationID) {
	t.Helper()
	a, err := st.Register(nameA, "pw")
	if err != nil {
		t.Fatalf("Register(%s) error = %v", nameA, err)
	}
	b, err := st.Register(nameB, "pw")
	if err != nil {
		t.Fatalf("Register(%s) error = %v", nameB, err)
	}
	conv, err := st.DirectConversation(a.ID, b.ID)
	if err != nil {
		t.Fatalf("DirectConversation() error = %v", err)
	}
	return a, b, conv.ID
}

func TestBroadcaster_SendMessage(t *testing.T) {
	gw, bc, st := setupApp(t)
	a, b, conv := direct(t, st, "alice", "bob")

	connA := connect(t, gw, "sA", a.ID)
	connB := connect(t, gw, "sB", b.ID)
	if err := gw.Join("sA", conv); err != nil {
		t.Fatalf("Join(sA) error = %v", err)
	}
	if err := gw.Join("sB", conv); err != nil {
		t.Fatalf("Join(sB) error = %v", err)
	}

	msg, err := bc.SendMessage("sA", conv, "hi", time.Now())
	if err != nil {
		t.Fatalf("SendMessage() error = %v", err)
	}
	if msg.ID == 0 {
		t.Fatal("SendMessage() returned zero id")
	}

	// The peer gets exactly one newMessage with the author's identity.
	gotB := connB.events(t)
	if len(gotB) != 1 {
		t.Fatalf("peer received %d events, want 1", len(gotB))
	}
	if gotB[0]["type"] != EventNewMessage {
		t.Errorf("peer event type = %v, want %s", gotB[0]["type"], EventNewMessage)
	}
	if gotB[0]["text"] != "hi" || gotB[0]["authorId"] != string(a.ID) {
		t.Errorf("peer event = %v, want text hi from %s", gotB[0], a.ID)
	}
	if gotB[0]["authorName"] != "alice" {
		t.Errorf("peer event authorName = %v, want alice", gotB[0]["authorName"])
	}

	// The author gets exactly one ack carrying the store id.
	gotA := connA.events(t)
	if len(gotA) != 1 {
		t.Fatalf("author received %d events, want 1", len(gotA))
	}
	if gotA[0]["type"] != EventMessageAck {
		t.Errorf("author event type = %v, want %s", gotA[0]["type"], EventMessageAck)
	}
	if int64(gotA[0]["id"].(float64)) != int64(msg.ID) {
		t.Errorf("ack id = %v, want %d", gotA[0]["id"], msg.ID)
	}

	// And exactly one message is durable.
	history, err := st.History(conv)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(history) != 1 || history[0].Text != "hi" {
		t.Errorf("History() = %+v, want single hi", history)
	}
}

func TestBroadcaster_SendMessageValidation(t *testing.T) {
	gw, bc, st := setupApp(t)
	a, _, conv := direct(t, st, "alice", "bob")
	conn := connect(t, gw, "sA", a.ID)
	if err := gw.Join("sA", conv); err != nil {
		t.Fatalf("Join() error = %v", err)
	}

	if _, err := bc.SendMessage("sA", conv, "   ", time.Now()); !errors.Is(err, domain.ErrEmptyText) {
		t.Errorf("SendMessage(blank) error = %v, want ErrEmptyText", err)
	}
	if got := conn.events(t); len(got) != 0 {
		t.Errorf("rejected send still delivered %d events", len(got))
	}
	history, _ := st.History(conv)
	if len(history) != 0 {
		t.Errorf("rejected send persisted %d messages", len(history))
	}
}

func TestBroadcaster_SendRequiresJoin(t *testing.T) {
	gw, bc, st := setupApp(t)
	a, _, conv := direct(t, st, "alice", "bob")
	connect(t, gw, "sA", a.ID)

	// Connected but never joined the room.
	if _, err := bc.SendMessage("sA", conv, "hi", time.Now()); !errors.Is(err, ErrNotJoined) {
		t.Errorf("SendMessage(unjoined) error = %v, want ErrNotJoined", err)
	}

	// Unknown session entirely.
	if _, err := bc.SendMessage("ghost", conv, "hi", time.Now()); !errors.Is(err, ErrNotJoined) {
		t.Errorf("SendMessage(ghost) error = %v, want ErrNotJoined", err)
	}
}

func TestBroadcaster_DropDoesNotBlockOthers(t *testing.T) {
	gw, bc, st := setupApp(t)
	a, b, conv := direct(t, st, "alice", "bob")
	c, err := st.Register("carol", "pw")
	if err != nil {
		t.Fatalf("Register(carol) error = %v", err)
	}
	if err := st.AddMembers(conv, []string{"carol"}, ""); err != nil {
		t.Fatalf("AddMembers() error = %v", err)
	}

	connect(t, gw, "sA", a.ID)
	connB := connect(t, gw, "sB", b.ID)
	connC := connect(t, gw, "sC", c.ID)
	connB.fail = true // dead transport

	for _, sid := range []core.SessionID{"sA", "sB", "sC"} {
		if err := gw.Join(sid, conv); err != nil {
			t.Fatalf("Join(%s) error = %v", sid, err)
		}
	}

	if _, err := bc.SendMessage("sA", conv, "hi", time.Now()); err != nil {
		t.Fatalf("SendMessage() error = %v", err)
	}

	// The failed delivery neither rolls back the write nor starves carol.
	if got := connC.events(t); len(got) != 1 {
		t.Errorf("carol received %d events, want 1", len(got))
	}
	history, _ := st.History(conv)
	if len(history) != 1 {
		t.Errorf("History() len = %d, want 1", len(history))
	}
}

func TestBroadcaster_EditMessage(t *testing.T) {
	gw, bc, st := setupApp(t)
	a, b, conv := direct(t, st, "alice", "bob")

	connA := connect(t, gw, "sA", a.ID)
	connB := connect(t, gw, "sB", b.ID)
	if err := gw.Join("sA", conv); err != nil {
		t.Fatalf("Join(sA) error = %v", err)
	}
	if err := gw.Join("sB", conv); err != nil {
		t.Fatalf("Join(sB) error = %v", err)
	}

	msg, err := bc.SendMessage("sA", conv, "hi", time.Now())
	if err != nil {
		t.Fatalf("SendMessage() error = %v", err)
	}

	updated, err := bc.EditMessage(a.ID, msg.ID, "hi there")
	if err != nil {
		t.Fatalf("EditMessage() error = %v", err)
	}
	if updated.Text != "hi there" || !updated.Edited {
		t.Errorf("EditMessage() = %+v, want edited text", updated)
	}

	// The full room set sees the edit, the editor included.
	for name, conn := range map[string]*fakeConn{"author": connA, "peer": connB} {
		got := conn.events(t)
		last := got[len(got)-1]
		if last["type"] != EventMessageEdited {
			t.Errorf("%s last event type = %v, want %s", name, last["type"], EventMessageEdited)
		}
		if last["newText"] != "hi there" {
			t.Errorf("%s newText = %v, want hi there", name, last["newText"])
		}
		if int64(last["messageId"].(float64)) != int64(msg.ID) {
			t.Errorf("%s messageId = %v, want %d", name, last["messageId"], msg.ID)
		}
	}
}

func TestBroadcaster_EditByNonAuthor(t *testing.T) {
	gw, bc, st := setupApp(t)
	a, b, conv := direct(t, st, "alice", "bob")

	connB := connect(t, gw, "sB", b.ID)
	if err := gw.Join("sB", conv); err != nil {
		t.Fatalf("Join(sB) error = %v", err)
	}

	msg, err := st.AppendMessage(conv, a.ID, "hi", time.Now())
	if err != nil {
		t.Fatalf("AppendMessage() error = %v", err)
	}

	if _, err := bc.EditMessage(b.ID, msg.ID, "hacked"); !errors.Is(err, domain.ErrNotAuthor) {
		t.Fatalf("EditMessage(non-author) error = %v, want ErrNotAuthor", err)
	}

	// No broadcast, no mutation.
	if got := connB.events(t); len(got) != 0 {
		t.Errorf("rejected edit delivered %d events", len(got))
	}
	stored, _ := st.Message(msg.ID)
	if stored.Text != "hi" {
		t.Errorf("stored text = %q, want hi", stored.Text)
	}
}

func TestBroadcaster_DeleteMessage(t *testing.T) {
	gw, bc, st := setupApp(t)
	a, b, conv := direct(t, st, "alice", "bob")

	connA := connect(t, gw, "sA", a.ID)
	connB := connect(t, gw, "sB", b.ID)
	if err := gw.Join("sA", conv); err != nil {
		t.Fatalf("Join(sA) error = %v", err)
	}
	if err := gw.Join("sB", conv); err != nil {
		t.Fatalf("Join(sB) error = %v", err)
	}

	msg, err := bc.SendMessage("sA", conv, "hi", time.Now())
	if err != nil {
		t.Fatalf("SendMessage() error = %v", err)
	}

	t.Run("non-author rejected", func(t *testing.T) {
		before := len(connB.events(t))
		if err := bc.DeleteMessage(b.ID, msg.ID); !errors.Is(err, domain.ErrNotAuthor) {
			t.Fatalf("DeleteMessage(non-author) error = %v, want ErrNotAuthor", err)
		}
		if got := connB.events(t); len(got) != before {
			t.Errorf("rejected delete delivered events")
		}
		if _, err := st.Message(msg.ID); err != nil {
			t.Errorf("message gone after rejected delete: %v", err)
		}
	})

	t.Run("author deletes, full room notified", func(t *testing.T) {
		if err := bc.DeleteMessage(a.ID, msg.ID); err != nil {
			t.Fatalf("DeleteMessage() error = %v", err)
		}
		for name, conn := range map[string]*fakeConn{"author": connA, "peer": connB} {
			got := conn.events(t)
			last := got[len(got)-1]
			if last["type"] != EventMessageDeleted {
				t.Errorf("%s last event = %v, want %s", name, last["type"], EventMessageDeleted)
			}
		}
		if _, err := st.Message(msg.ID); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("Message(deleted) error = %v, want ErrNotFound", err)
		}
		if err := bc.DeleteMessage(a.ID, msg.ID); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("second delete error = %v, want ErrNotFound", err)
		}
	})
}
