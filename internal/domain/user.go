// Package domain contains entity without logic, just meta-data
package domain

import (
	"crypto/rand"
)

const (
	UserIDLen      = 5
	MaxUsernameLen = 36

	idCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

type UserID string

type User struct {
	ID   UserID `json:"id"`
	Name string `json:"name"`
}

// NewUserID generates a short alphanumeric identifier.
// Uniqueness is enforced by the store, which retries on collision.
func NewUserID() UserID {
	b := make([]byte, UserIDLen)
	if _, err := rand.Read(b); err != nil {
		panic(err) // crypto/rand never fails on supported platforms
	}
	for i := range b {
		b[i] = idCharset[int(b[i])%len(idCharset)]
	}
	return UserID(b)
}

// NewUser is a tiny helper to avoid ad-hoc struct literals in adapters.
func NewUser(name string) (*User, error) {
	if len(name) == 0 {
		return nil, ErrNameEmpty
	}
	if len(name) > MaxUsernameLen {
		return nil, ErrNameTooLong
	}
	return &User{ID: NewUserID(), Name: name}, nil
}
