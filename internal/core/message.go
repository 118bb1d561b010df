package core

import "time"

// ContentKind is the kind of payload carried by a message.
type ContentKind string

const (
	KindText  ContentKind = "text"
	KindImage ContentKind = "image"
	KindFile  ContentKind = "file"
)

// Valid reports whether k is a recognized content kind.
func (k ContentKind) Valid() bool {
	switch k {
	case KindText, KindImage, KindFile:
		return true
	default:
		return false
	}
}

// Draft is a message as submitted by a client, before the room assigns
// an id, sequence and timestamp.
type Draft struct {
	Body      string
	Kind      ContentKind
	Encrypted bool
	// ClientRef is echoed back so the sender can reconcile its local echo.
	ClientRef string
}

// Message is the domain model for a chat message. Never mutated after creation.
type Message struct {
	ID         string
	Room       string
	Seq        int64
	AuthorID   string
	AuthorName string
	// Body holds the text, or a file reference for image and file kinds.
	Body      string
	Kind      ContentKind
	Encrypted bool
	ClientRef string
	CreatedAt time.Time
}
