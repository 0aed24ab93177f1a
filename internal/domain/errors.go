package domain

import "errors"

var (
	ErrNameEmpty   = errors.New("name empty")
	ErrNameTooLong = errors.New("name too long")

	ErrEmptyText      = errors.New("empty message text")
	ErrNotFound       = errors.New("not found")
	ErrNotAuthor      = errors.New("not the author")
	ErrAmbiguousName  = errors.New("ambiguous user name")
	ErrBadCredentials = errors.New("bad credentials")
)
