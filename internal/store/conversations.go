package store

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/dkeye/Chat/internal/domain"
)

// ConversationView is the read model for the conversation list endpoint:
// the conversation as one participant sees it.
type ConversationView struct {
	ID           domain.ConversationID `json:"conversationId"`
	DisplayName  string                `json:"displayName"`
	Participants []domain.User         `json:"participants"`
	Messages     []domain.Message      `json:"messages"`
}

// DirectConversation returns the 1:1 conversation between two users,
// creating it on first use. The pair is unordered.
func (s *Store) DirectConversation(a, b domain.UserID) (*domain.Conversation, error) {
	var conv *domain.Conversation
	err := s.db.Transaction(func(tx *gorm.DB) error {
		for _, id := range []domain.UserID{a, b} {
			ok, err := s.userExists(tx, id)
			if err != nil {
				return err
			}
			if !ok {
				return domain.ErrNotFound
			}
		}

		var existing int64
		res := tx.Raw(`
			SELECT m1.conversation_id FROM memberships m1
			JOIN memberships m2 ON m2.conversation_id = m1.conversation_id
			JOIN conversations c ON c.id = m1.conversation_id
			WHERE m1.user_id = ? AND m2.user_id = ? AND c.group_name = ''
			AND (SELECT COUNT(*) FROM memberships m3
			     WHERE m3.conversation_id = m1.conversation_id) = 2
			LIMIT 1`, string(a), string(b)).Scan(&existing)
		if res.Error != nil {
			return fmt.Errorf("failed to look up conversation: %w", res.Error)
		}
		if res.RowsAffected > 0 {
			conv = &domain.Conversation{ID: domain.ConversationID(existing)}
			return nil
		}

		rec := conversationRecord{}
		if err := tx.Create(&rec).Error; err != nil {
			return fmt.Errorf("failed to create conversation: %w", err)
		}
		members := []membershipRecord{
			{ConversationID: rec.ID, UserID: string(a)},
			{ConversationID: rec.ID, UserID: string(b)},
		}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&members).Error; err != nil {
			return fmt.Errorf("failed to add members: %w", err)
		}
		conv = &domain.Conversation{ID: domain.ConversationID(rec.ID)}
		log.Info().Str("module", "store.conversations").Int64("conv", rec.ID).Msg("direct conversation created")
		return nil
	})
	if err != nil {
		return nil, err
	}
	return conv, nil
}

// CreateGroup creates a group conversation with the creator plus the users
// resolved from memberNames. groupName may be empty; the display name is
// then derived per viewer.
func (s *Store) CreateGroup(creator domain.UserID, groupName string, memberNames []string) (*domain.Conversation, error) {
	var conv *domain.Conversation
	err := s.db.Transaction(func(tx *gorm.DB) error {
		ok, err := s.userExists(tx, creator)
		if err != nil {
			return err
		}
		if !ok {
			return domain.ErrNotFound
		}

		ids, err := s.resolveAll(tx, memberNames)
		if err != nil {
			return err
		}

		rec := conversationRecord{GroupName: groupName}
		if err := tx.Create(&rec).Error; err != nil {
			return fmt.Errorf("failed to create conversation: %w", err)
		}

		members := []membershipRecord{{ConversationID: rec.ID, UserID: string(creator)}}
		for _, id := range ids {
			members = append(members, membershipRecord{ConversationID: rec.ID, UserID: string(id)})
		}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&members).Error; err != nil {
			return fmt.Errorf("failed to add members: %w", err)
		}
		conv = &domain.Conversation{ID: domain.ConversationID(rec.ID), GroupName: groupName}
		log.Info().Str("module", "store.conversations").Int64("conv", rec.ID).Int("members", len(members)).Msg("group created")
		return nil
	})
	if err != nil {
		return nil, err
	}
	return conv, nil
}

// AddMembers adds the named users to a conversation and optionally assigns
// a group name. Adding an existing member is a no-op, not an error.
func (s *Store) AddMembers(conv domain.ConversationID, memberNames []string, groupName string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		var rec conversationRecord
		if err := tx.First(&rec, "id = ?", int64(conv)).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrNotFound
			}
			return fmt.Errorf("failed to find conversation: %w", err)
		}

		ids, err := s.resolveAll(tx, memberNames)
		if err != nil {
			return err
		}
		if len(ids) > 0 {
			members := make([]membershipRecord, 0, len(ids))
			for _, id := range ids {
				members = append(members, membershipRecord{ConversationID: int64(conv), UserID: string(id)})
			}
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&members).Error; err != nil {
				return fmt.Errorf("failed to add members: %w", err)
			}
		}

		if groupName != "" && groupName != rec.GroupName {
			if err := tx.Model(&conversationRecord{}).Where("id = ?", int64(conv)).
				Update("group_name", groupName).Error; err != nil {
				return fmt.Errorf("failed to rename conversation: %w", err)
			}
		}
		return nil
	})
}

// IsMember reports whether a user is a persisted participant.
func (s *Store) IsMember(conv domain.ConversationID, user domain.UserID) (bool, error) {
	var n int64
	err := s.db.Model(&membershipRecord{}).
		Where("conversation_id = ? AND user_id = ?", int64(conv), string(user)).
		Count(&n).Error
	if err != nil {
		return false, fmt.Errorf("failed to check membership: %w", err)
	}
	return n > 0, nil
}

// ConversationsFor lists every conversation the user participates in, with
// the display name derived for that viewer and history in timestamp order.
func (s *Store) ConversationsFor(user domain.UserID) ([]ConversationView, error) {
	ok, err := s.userExists(s.db, user)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domain.ErrNotFound
	}

	var convIDs []int64
	err = s.db.Model(&membershipRecord{}).
		Where("user_id = ?", string(user)).
		Order("conversation_id").
		Pluck("conversation_id", &convIDs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list memberships: %w", err)
	}

	views := make([]ConversationView, 0, len(convIDs))
	for _, id := range convIDs {
		view, err := s.conversationView(domain.ConversationID(id), user)
		if err != nil {
			return nil, err
		}
		views = append(views, *view)
	}
	return views, nil
}

func (s *Store) conversationView(conv domain.ConversationID, viewer domain.UserID) (*ConversationView, error) {
	var rec conversationRecord
	if err := s.db.First(&rec, "id = ?", int64(conv)).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find conversation: %w", err)
	}

	var users []userRecord
	err := s.db.Model(&userRecord{}).
		Joins("JOIN memberships ON memberships.user_id = users.id").
		Where("memberships.conversation_id = ?", int64(conv)).
		Find(&users).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list participants: %w", err)
	}
	participants := make([]domain.User, 0, len(users))
	for _, u := range users {
		participants = append(participants, domain.User{ID: domain.UserID(u.ID), Name: u.Name})
	}

	messages, err := s.History(conv)
	if err != nil {
		return nil, err
	}

	c := &domain.Conversation{ID: conv, GroupName: rec.GroupName}
	return &ConversationView{
		ID:           conv,
		DisplayName:  domain.DisplayNameFor(c, viewer, participants),
		Participants: participants,
		Messages:     messages,
	}, nil
}

func (s *Store) resolveAll(tx *gorm.DB, names []string) ([]domain.UserID, error) {
	ids := make([]domain.UserID, 0, len(names))
	for _, name := range names {
		var recs []userRecord
		if err := tx.Where("name = ?", name).Limit(2).Find(&recs).Error; err != nil {
			return nil, fmt.Errorf("failed to resolve name: %w", err)
		}
		switch len(recs) {
		case 0:
			return nil, domain.ErrNotFound
		case 1:
			ids = append(ids, domain.UserID(recs[0].ID))
		default:
			return nil, domain.ErrAmbiguousName
		}
	}
	return ids, nil
}
