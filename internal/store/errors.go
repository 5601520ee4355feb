package store

import "errors"

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicateUser is returned when a username is already taken.
var ErrDuplicateUser = errors.New("username already exists")

// ErrUnknownUser is returned when a message references a username that
// does not exist.
var ErrUnknownUser = errors.New("unknown user")

// ErrAlreadyRead is returned when a message's read_at is already set.
var ErrAlreadyRead = errors.New("message already read")
