package core

import "time"

// User is a participant currently present in a room.
type User struct {
	ID       string
	Name     string
	Online   bool
	LastSeen time.Time
}

// TypingUser identifies a user composing a message.
type TypingUser struct {
	UserID string
	Name   string
}
