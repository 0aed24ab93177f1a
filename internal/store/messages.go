package store

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/dkeye/Chat/internal/domain"
)

func recordToMessage(rec *messageRecord) *domain.Message {
	return &domain.Message{
		ID:             domain.MessageID(rec.ID),
		ConversationID: domain.ConversationID(rec.ConversationID),
		AuthorID:       domain.UserID(rec.AuthorID),
		Text:           rec.Text,
		Timestamp:      rec.Timestamp,
		Edited:         rec.Edited,
	}
}

// AppendMessage persists a new message and returns it with the
// store-assigned id. Text must be non-empty after trimming.
func (s *Store) AppendMessage(conv domain.ConversationID, author domain.UserID, text string, ts time.Time) (*domain.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, domain.ErrEmptyText
	}
	if ts.IsZero() {
		ts = time.Now()
	}

	var rec messageRecord
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&conversationRecord{}).Where("id = ?", int64(conv)).Count(&n).Error; err != nil {
			return fmt.Errorf("failed to check conversation: %w", err)
		}
		if n == 0 {
			return domain.ErrNotFound
		}
		rec = messageRecord{
			ConversationID: int64(conv),
			AuthorID:       string(author),
			Text:           text,
			Timestamp:      ts,
		}
		if err := tx.Create(&rec).Error; err != nil {
			return fmt.Errorf("failed to create message: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.Debug().Str("module", "store.messages").Int64("id", rec.ID).Int64("conv", int64(conv)).Msg("message appended")
	return recordToMessage(&rec), nil
}

// UpdateMessage rewrites a message's text and marks it edited. The update
// is conditional on the author matching, so a concurrent delete of the same
// row cannot be lost; zero affected rows is then classified as either
// unknown id or foreign author.
func (s *Store) UpdateMessage(author domain.UserID, id domain.MessageID, newText string) (*domain.Message, error) {
	newText = strings.TrimSpace(newText)
	if newText == "" {
		return nil, domain.ErrEmptyText
	}

	var rec messageRecord
	err := s.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&messageRecord{}).
			Where("id = ? AND author_id = ?", int64(id), string(author)).
			Updates(map[string]any{"text": newText, "edited": true})
		if res.Error != nil {
			return fmt.Errorf("failed to update message: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			var n int64
			if err := tx.Model(&messageRecord{}).Where("id = ?", int64(id)).Count(&n).Error; err != nil {
				return fmt.Errorf("failed to check message: %w", err)
			}
			if n == 0 {
				return domain.ErrNotFound
			}
			return domain.ErrNotAuthor
		}
		if err := tx.First(&rec, "id = ?", int64(id)).Error; err != nil {
			return fmt.Errorf("failed to reload message: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.Debug().Str("module", "store.messages").Int64("id", int64(id)).Msg("message updated")
	return recordToMessage(&rec), nil
}

// DeleteMessage removes a message for good. Only the author may delete;
// a deleted id behaves as never having existed afterwards.
func (s *Store) DeleteMessage(author domain.UserID, id domain.MessageID) (*domain.Message, error) {
	var rec messageRecord
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&rec, "id = ?", int64(id)).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrNotFound
			}
			return fmt.Errorf("failed to find message: %w", err)
		}
		if rec.AuthorID != string(author) {
			return domain.ErrNotAuthor
		}
		res := tx.Where("id = ? AND author_id = ?", int64(id), string(author)).Delete(&messageRecord{})
		if res.Error != nil {
			return fmt.Errorf("failed to delete message: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return domain.ErrNotFound
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.Debug().Str("module", "store.messages").Int64("id", int64(id)).Msg("message deleted")
	return recordToMessage(&rec), nil
}

// History returns a conversation's messages in timestamp order.
func (s *Store) History(conv domain.ConversationID) ([]domain.Message, error) {
	var recs []messageRecord
	err := s.db.Where("conversation_id = ?", int64(conv)).
		Order("timestamp ASC, id ASC").
		Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	out := make([]domain.Message, 0, len(recs))
	for i := range recs {
		out = append(out, *recordToMessage(&recs[i]))
	}
	return out, nil
}

// Message fetches a single message by id.
func (s *Store) Message(id domain.MessageID) (*domain.Message, error) {
	var rec messageRecord
	if err := s.db.First(&rec, "id = ?", int64(id)).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find message: %w", err)
	}
	return recordToMessage(&rec), nil
}
