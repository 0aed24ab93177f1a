package app

import (
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Chat/internal/core"
	"github.com/dkeye/Chat/internal/domain"
	"github.com/dkeye/Chat/internal/store"
)

// Outbound event types on the realtime channel.
const (
	EventNewMessage     = "newMessage"
	EventMessageAck     = "messageAck"
	EventMessageEdited  = "messageEdited"
	EventMessageDeleted = "messageDeleted"
)

// Display name used when the author lookup fails after a successful
// persist. Display-only data must not block delivery.
const unknownAuthor = "Unknown"

// MessagePayload is the wire shape of newMessage and messageAck events.
type MessagePayload struct {
	Type           string                `json:"type"`
	ID             domain.MessageID      `json:"id"`
	ConversationID domain.ConversationID `json:"conversationId"`
	AuthorID       domain.UserID         `json:"authorId"`
	AuthorName     string                `json:"authorName"`
	Text           string                `json:"text"`
	Timestamp      time.Time             `json:"timestamp"`
}

type editedPayload struct {
	Type      string           `json:"type"`
	MessageID domain.MessageID `json:"messageId"`
	NewText   string           `json:"newText"`
}

type deletedPayload struct {
	Type      string           `json:"type"`
	MessageID domain.MessageID `json:"messageId"`
}

// Broadcaster is the message delivery core: it persists a state change,
// then fans the resulting event out to the live room. Persist always
// happens before any delivery; delivery past that point is best-effort.
type Broadcaster struct {
	Registry *Registry
	Roster   *core.Roster
	Store    *store.Store
}

func NewBroadcaster(reg *Registry, roster *core.Roster, st *store.Store) *Broadcaster {
	return &Broadcaster{Registry: reg, Roster: roster, Store: st}
}

// SendMessage persists a message from the session's user and delivers it:
// newMessage to every room member except the author, messageAck (carrying
// the store-assigned id) to the author only. The session must currently
// be joined to the target conversation.
func (b *Broadcaster) SendMessage(sid core.SessionID, conv domain.ConversationID, text string, clientTS time.Time) (*domain.Message, error) {
	sess, ok := b.Registry.Get(sid)
	if !ok {
		return nil, ErrNotJoined
	}
	if current, joined := b.Registry.ConversationOf(sid); !joined || current != conv {
		return nil, ErrNotJoined
	}

	msg, err := b.Store.AppendMessage(conv, sess.UserID, text, clientTS)
	if err != nil {
		return nil, err
	}

	name, err := b.Store.UserName(sess.UserID)
	if err != nil {
		log.Warn().Err(err).Str("module", "app.broadcaster").Str("user", string(sess.UserID)).Msg("author lookup failed, using placeholder")
		name = unknownAuthor
	}

	payload := MessagePayload{
		Type:           EventNewMessage,
		ID:             msg.ID,
		ConversationID: msg.ConversationID,
		AuthorID:       msg.AuthorID,
		AuthorName:     name,
		Text:           msg.Text,
		Timestamp:      msg.Timestamp,
	}
	res := b.publish(conv, payload, sid)
	log.Debug().Str("module", "app.broadcaster").Int64("id", int64(msg.ID)).Int("sent_to", res.SentTo).Int("dropped", len(res.Dropped)).Msg("message fanned out")

	// The author gets a separate ack; its delivery failing (e.g. the
	// session disconnected mid-flight) never rolls anything back.
	payload.Type = EventMessageAck
	b.send(sess, payload)

	return msg, nil
}

// EditMessage rewrites a message's text, then notifies the full current
// room set, editor included: the editor's view updates from the same
// broadcast rather than a separate ack.
func (b *Broadcaster) EditMessage(user domain.UserID, id domain.MessageID, newText string) (*domain.Message, error) {
	msg, err := b.Store.UpdateMessage(user, id, newText)
	if err != nil {
		return nil, err
	}
	res := b.publish(msg.ConversationID, editedPayload{
		Type:      EventMessageEdited,
		MessageID: msg.ID,
		NewText:   msg.Text,
	}, "")
	log.Debug().Str("module", "app.broadcaster").Int64("id", int64(id)).Int("sent_to", res.SentTo).Msg("edit fanned out")
	return msg, nil
}

// DeleteMessage removes a message, then notifies the full room set.
func (b *Broadcaster) DeleteMessage(user domain.UserID, id domain.MessageID) error {
	msg, err := b.Store.DeleteMessage(user, id)
	if err != nil {
		return err
	}
	res := b.publish(msg.ConversationID, deletedPayload{
		Type:      EventMessageDeleted,
		MessageID: msg.ID,
	}, "")
	log.Debug().Str("module", "app.broadcaster").Int64("id", int64(id)).Int("sent_to", res.SentTo).Msg("delete fanned out")
	return nil
}

// publish fans a payload out to the room snapshot, skipping the excluded
// session if set. A failed TrySend drops that one recipient only.
func (b *Broadcaster) publish(conv domain.ConversationID, v any, exclude core.SessionID) core.PublishResult {
	frame, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "app.broadcaster").Msg("marshal payload")
		return core.PublishResult{}
	}
	res := core.PublishResult{}
	for _, member := range b.Roster.MembersOf(conv) {
		if exclude != "" && member.SID == exclude {
			continue
		}
		if err := member.Conn.TrySend(frame); err != nil {
			log.Warn().Err(err).Str("module", "app.broadcaster").Str("sid", string(member.SID)).Msg("delivery dropped")
			res.Dropped = append(res.Dropped, member)
			continue
		}
		res.SentTo++
	}
	return res
}

func (b *Broadcaster) send(sess *core.Session, v any) {
	frame, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "app.broadcaster").Msg("marshal payload")
		return
	}
	if err := sess.Conn.TrySend(frame); err != nil {
		log.Warn().Err(err).Str("module", "app.broadcaster").Str("sid", string(sess.SID)).Msg("ack dropped")
	}
}
