package store

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/dkeye/Chat/internal/domain"
)

const idRetries = 5

// Register creates a new user with a generated 5-char id and a bcrypt
// credential. Display names are not required to be unique.
func (s *Store) Register(name, password string) (*domain.User, error) {
	if password == "" {
		return nil, domain.ErrBadCredentials
	}
	user, err := domain.NewUser(name)
	if err != nil {
		return nil, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	// Generated ids can collide; retry with a fresh one.
	for attempt := 0; ; attempt++ {
		rec := userRecord{ID: string(user.ID), Name: user.Name, PasswordHash: string(hash)}
		err := s.db.Create(&rec).Error
		if err == nil {
			log.Info().Str("module", "store.users").Str("user", string(user.ID)).Msg("registered")
			return user, nil
		}
		if attempt >= idRetries {
			return nil, fmt.Errorf("failed to create user: %w", err)
		}
		user.ID = domain.NewUserID()
	}
}

// Authenticate verifies a credential for an existing user id.
func (s *Store) Authenticate(id domain.UserID, password string) (*domain.User, error) {
	var rec userRecord
	if err := s.db.First(&rec, "id = ?", string(id)).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(rec.PasswordHash), []byte(password)); err != nil {
		return nil, domain.ErrBadCredentials
	}
	return &domain.User{ID: domain.UserID(rec.ID), Name: rec.Name}, nil
}

// UserName resolves a user id to its display name.
func (s *Store) UserName(id domain.UserID) (string, error) {
	var rec userRecord
	if err := s.db.First(&rec, "id = ?", string(id)).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", domain.ErrNotFound
		}
		return "", fmt.Errorf("failed to find user: %w", err)
	}
	return rec.Name, nil
}

// ResolveName maps a display name to a user id. Names are not unique;
// an ambiguous match is an error rather than a guess.
func (s *Store) ResolveName(name string) (domain.UserID, error) {
	var recs []userRecord
	if err := s.db.Where("name = ?", name).Limit(2).Find(&recs).Error; err != nil {
		return "", fmt.Errorf("failed to resolve name: %w", err)
	}
	switch len(recs) {
	case 0:
		return "", domain.ErrNotFound
	case 1:
		return domain.UserID(recs[0].ID), nil
	default:
		return "", domain.ErrAmbiguousName
	}
}

func (s *Store) userExists(tx *gorm.DB, id domain.UserID) (bool, error) {
	var n int64
	if err := tx.Model(&userRecord{}).Where("id = ?", string(id)).Count(&n).Error; err != nil {
		return false, fmt.Errorf("failed to check user: %w", err)
	}
	return n > 0, nil
}
