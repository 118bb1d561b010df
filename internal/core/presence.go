package core

import "time"

// presence is the set of users currently in a room, kept in join order.
// It is only touched from the owning room's goroutine.
type presence struct {
	users map[string]*User
	order []string
}

func newPresence() *presence {
	return &presence{users: make(map[string]*User)}
}

// join adds u unless a user with the same id is already present.
// The snapshot always reflects the state after the call.
func (p *presence) join(u User, now time.Time) (bool, []User) {
	if _, exists := p.users[u.ID]; exists {
		return false, p.snapshot()
	}
	u.Online = true
	u.LastSeen = now
	p.users[u.ID] = &u
	p.order = append(p.order, u.ID)
	return true, p.snapshot()
}

// leave removes the user. Returns the removed user and true if it was present.
func (p *presence) leave(userID string) (User, bool) {
	u, exists := p.users[userID]
	if !exists {
		return User{}, false
	}
	delete(p.users, userID)
	for i, id := range p.order {
		if id == userID {
			p.order = append(p.order[:i], p.order[i+1:]...)
			break
		}
	}
	left := *u
	left.Online = false
	return left, true
}

func (p *presence) get(userID string) (User, bool) {
	u, ok := p.users[userID]
	if !ok {
		return User{}, false
	}
	return *u, true
}

func (p *presence) touch(userID string, now time.Time) {
	if u, ok := p.users[userID]; ok {
		u.LastSeen = now
	}
}

func (p *presence) len() int {
	return len(p.users)
}

func (p *presence) snapshot() []User {
	out := make([]User, 0, len(p.order))
	for _, id := range p.order {
		out = append(out, *p.users[id])
	}
	return out
}
