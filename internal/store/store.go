// Package store is the durable record of users, conversations, membership
// and messages; the single source of truth behind the broadcast engine.
package store

import (
	"fmt"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type Store struct {
	db *gorm.DB
}

type userRecord struct {
	ID           string `gorm:"primaryKey;size:5"`
	Name         string `gorm:"not null;index"`
	PasswordHash string `gorm:"not null"`
}

func (userRecord) TableName() string { return "users" }

type conversationRecord struct {
	ID        int64 `gorm:"primaryKey;autoIncrement"`
	GroupName string
}

func (conversationRecord) TableName() string { return "conversations" }

// Composite primary key keeps the (conversation, user) pair unique.
type membershipRecord struct {
	ConversationID int64  `gorm:"primaryKey;autoIncrement:false"`
	UserID         string `gorm:"primaryKey;size:5"`
}

func (membershipRecord) TableName() string { return "memberships" }

type messageRecord struct {
	ID             int64     `gorm:"primaryKey;autoIncrement"`
	ConversationID int64     `gorm:"index;not null"`
	AuthorID       string    `gorm:"index;not null;size:5"`
	Text           string    `gorm:"not null"`
	Timestamp      time.Time `gorm:"not null"`
	Edited         bool      `gorm:"not null;default:false"`
}

func (messageRecord) TableName() string { return "messages" }

// Open connects to the sqlite database at path and runs migrations.
// gorm's own logger is silenced; zerolog owns the console.
func Open(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

// New wraps an already-open connection (tests).
func New(db *gorm.DB) (*Store, error) {
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate() error {
	err := s.db.AutoMigrate(
		&userRecord{},
		&conversationRecord{},
		&membershipRecord{},
		&messageRecord{},
	)
	if err != nil {
		return fmt.Errorf("failed to migrate: %w", err)
	}
	return nil
}
