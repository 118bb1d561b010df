package core

import (
	"crypto/rand"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/oklog/ulid/v2"
)

// relay validates drafts and keeps the room's append-only message log.
// Only the owning room's goroutine touches it.
type relay struct {
	room      string
	maxLength int
	presence  *presence
	entropy   io.Reader

	log  []Message
	seq  int64
	last time.Time
}

func newRelay(room string, maxLength int, p *presence) *relay {
	return &relay{
		room:      room,
		maxLength: maxLength,
		presence:  p,
		entropy:   ulid.Monotonic(rand.Reader, 0),
	}
}

// send validates the draft against the author's membership and appends it.
func (r *relay) send(authorID string, d Draft, now time.Time) (Message, error) {
	author, ok := r.presence.get(authorID)
	if !ok {
		return Message{}, errNotAMember(authorID)
	}
	if !d.Kind.Valid() {
		return Message{}, coreError(ErrInvalidContentType, ErrCodeInvalidContentType,
			fmt.Sprintf("unknown content type %q", d.Kind))
	}
	if strings.TrimSpace(d.Body) == "" {
		return Message{}, errBadRequest("message body is empty")
	}
	if n := utf8.RuneCountInString(d.Body); n > r.maxLength {
		return Message{}, coreError(ErrMessageTooLarge, ErrCodeMessageTooLarge,
			fmt.Sprintf("message is %d characters, limit is %d", n, r.maxLength))
	}

	ts := now
	if !ts.After(r.last) {
		ts = r.last.Add(time.Nanosecond)
	}
	// Nothing is appended on failure so seq and ids stay monotonic.
	id, err := ulid.New(ulid.Timestamp(ts), r.entropy)
	if err != nil {
		return Message{}, fmt.Errorf("room %s: message id: %w", r.room, err)
	}

	r.seq++
	msg := Message{
		ID:         id.String(),
		Room:       r.room,
		Seq:        r.seq,
		AuthorID:   author.ID,
		AuthorName: author.Name,
		Body:       d.Body,
		Kind:       d.Kind,
		Encrypted:  d.Encrypted,
		ClientRef:  d.ClientRef,
		CreatedAt:  ts,
	}
	r.log = append(r.log, msg)
	r.last = ts
	return msg, nil
}

// history returns up to limit of the most recent messages, oldest first.
func (r *relay) history(limit int) []Message {
	if limit <= 0 {
		return nil
	}
	start := len(r.log) - limit
	if start < 0 {
		start = 0
	}
	out := make([]Message, len(r.log)-start)
	copy(out, r.log[start:])
	return out
}

// since returns up to limit messages with a sequence greater than afterSeq.
func (r *relay) since(afterSeq int64, limit int) []Message {
	if afterSeq < 0 {
		afterSeq = 0
	}
	if afterSeq >= r.seq || limit <= 0 {
		return []Message{}
	}
	// Sequences are dense and 1-based, so the log index is seq-1.
	start := int(afterSeq)
	end := start + limit
	if end > len(r.log) {
		end = len(r.log)
	}
	out := make([]Message, end-start)
	copy(out, r.log[start:end])
	return out
}

func (r *relay) len() int {
	return len(r.log)
}
