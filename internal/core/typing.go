package core

import (
	"container/heap"
	"sort"
	"time"
)

type typingEntry struct {
	user     TypingUser
	deadline time.Time
	index    int
}

// typingQueue is a min-heap of entries ordered by deadline.
type typingQueue []*typingEntry

func (q typingQueue) Len() int           { return len(q) }
func (q typingQueue) Less(i, j int) bool { return q[i].deadline.Before(q[j].deadline) }
func (q typingQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *typingQueue) Push(x any) {
	e := x.(*typingEntry)
	e.index = len(*q)
	*q = append(*q, e)
}

func (q *typingQueue) Pop() any {
	old := *q
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*q = old[:n-1]
	return e
}

// typing tracks who is composing in a room and when each indicator expires.
// Only the owning room's goroutine touches it.
type typing struct {
	timeout time.Duration
	entries map[string]*typingEntry
	queue   typingQueue
}

func newTyping(timeout time.Duration) *typing {
	return &typing{
		timeout: timeout,
		entries: make(map[string]*typingEntry),
	}
}

// start inserts or refreshes the user's indicator. Returns true if the user
// was not typing before.
func (t *typing) start(u TypingUser, now time.Time) bool {
	deadline := now.Add(t.timeout)
	if e, ok := t.entries[u.UserID]; ok {
		e.user = u
		e.deadline = deadline
		heap.Fix(&t.queue, e.index)
		return false
	}
	e := &typingEntry{user: u, deadline: deadline}
	t.entries[u.UserID] = e
	heap.Push(&t.queue, e)
	return true
}

// stop removes the user's indicator. Returns false if there was none.
func (t *typing) stop(userID string) bool {
	e, ok := t.entries[userID]
	if !ok {
		return false
	}
	heap.Remove(&t.queue, e.index)
	delete(t.entries, userID)
	return true
}

// expire removes and returns every entry whose deadline is not after now,
// earliest first.
func (t *typing) expire(now time.Time) []TypingUser {
	var expired []TypingUser
	for t.queue.Len() > 0 && !t.queue[0].deadline.After(now) {
		e := heap.Pop(&t.queue).(*typingEntry)
		delete(t.entries, e.user.UserID)
		expired = append(expired, e.user)
	}
	return expired
}

func (t *typing) has(userID string) bool {
	_, ok := t.entries[userID]
	return ok
}

func (t *typing) len() int {
	return len(t.entries)
}

func (t *typing) snapshot() []TypingUser {
	out := make([]TypingUser, 0, len(t.entries))
	for _, e := range t.entries {
		out = append(out, e.user)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out
}
