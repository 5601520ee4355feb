package types

import "time"

// Message is a short text message between two users.
//
// FromUsername/ToUsername carry the raw column values; FromUser/ToUser are
// joined participant summaries populated only by queries that need them.
// Empty or nil fields are omitted from JSON so each endpoint can shape its
// response by populating only what it returns.
type Message struct {
	ID           int64        `json:"id" db:"id"`
	FromUsername string       `json:"from_username,omitempty" db:"from_username"`
	ToUsername   string       `json:"to_username,omitempty" db:"to_username"`
	Body         string       `json:"body" db:"body"`
	SentAt       time.Time    `json:"sent_at" db:"sent_at"`
	ReadAt       *time.Time   `json:"read_at" db:"read_at"`
	FromUser     *UserSummary `json:"from_user,omitempty"`
	ToUser       *UserSummary `json:"to_user,omitempty"`
}

// Sender returns the sender's username whether or not the joined
// summary was loaded.
func (m Message) Sender() string {
	if m.FromUser != nil {
		return m.FromUser.Username
	}
	return m.FromUsername
}

// Recipient returns the recipient's username whether or not the joined
// summary was loaded.
func (m Message) Recipient() string {
	if m.ToUser != nil {
		return m.ToUser.Username
	}
	return m.ToUsername
}
