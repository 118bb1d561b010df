package core

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-rooms/internal/metrics"
)

type roomOp struct {
	fn   func()
	done chan error
}

// Room is an isolated broadcast domain: its members, typing indicators and
// message log. A single goroutine owns all of that state; every mutation is
// submitted to it as an op and applied in arrival order.
type Room struct {
	ID string

	opts     Options
	clock    clock.Clock
	log      zerolog.Logger
	registry *Registry
	// Set by the registry under its lock; provisioning may flip it on a live room.
	retain atomic.Bool

	ops      chan roomOp
	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}

	// Owned by the run goroutine.
	presence    *presence
	typing      *typing
	relay       *relay
	subscribers map[*Session]struct{}
	released    bool
}

func newRoom(id string, opts Options, registry *Registry, retain bool, logger zerolog.Logger) *Room {
	p := newPresence()
	r := &Room{
		ID:          id,
		opts:        opts,
		clock:       opts.Clock,
		log:         logger.With().Str("room", id).Logger(),
		registry:    registry,
		ops:         make(chan roomOp),
		stop:        make(chan struct{}),
		done:        make(chan struct{}),
		presence:    p,
		typing:      newTyping(opts.TypingTimeout),
		relay:       newRelay(id, opts.MaxMessageLength, p),
		subscribers: make(map[*Session]struct{}),
	}
	r.retain.Store(retain)
	return r
}

func (r *Room) start() {
	go r.run()
}

func (r *Room) run() {
	defer close(r.done)

	ticker := r.clock.Ticker(r.opts.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case op := <-r.ops:
			r.sweep()
			op.done <- r.exec(op.fn)
			if r.released {
				r.drain()
				return
			}
		case <-ticker.C:
			r.sweep()
		case <-r.stop:
			r.drain()
			return
		}
	}
}

// drain rejects ops from senders that were already waiting when the room stopped.
func (r *Room) drain() {
	for {
		select {
		case op := <-r.ops:
			op.done <- ErrRoomClosed
		default:
			return
		}
	}
}

func (r *Room) exec(fn func()) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error().Interface("panic", rec).Msg("room operation panicked")
			err = fmt.Errorf("room %s: operation panicked: %v", r.ID, rec)
		}
	}()
	fn()
	return nil
}

// do runs fn on the room goroutine and waits for it to finish.
func (r *Room) do(ctx context.Context, fn func()) error {
	op := roomOp{fn: fn, done: make(chan error, 1)}
	select {
	case r.ops <- op:
	case <-r.done:
		return ErrRoomClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	return <-op.done
}

// shutdown stops the room goroutine and waits for it to exit.
func (r *Room) shutdown() {
	r.stopOnce.Do(func() { close(r.stop) })
	<-r.done
}

// Done is closed once the room stops accepting operations.
func (r *Room) Done() <-chan struct{} {
	return r.done
}

func (r *Room) sweep() {
	if r.typing.len() == 0 {
		return
	}
	for _, u := range r.typing.expire(r.clock.Now()) {
		metrics.TypingExpired.Inc()
		r.log.Debug().Str("user_id", u.UserID).Msg("typing indicator expired")
		r.broadcast(&Event{Kind: EventUserStopTyping, Room: r.ID, UserID: u.UserID})
	}
}

// broadcast sends an event to all sessions in the room.
func (r *Room) broadcast(ev *Event) {
	metrics.EventsBroadcast.WithLabelValues(ev.Kind.String()).Inc()
	for s := range r.subscribers {
		r.deliver(s, ev)
	}
}

// deliver isolates a failing subscriber from the rest of the fan-out.
func (r *Room) deliver(s *Session, ev *Event) {
	defer func() {
		if rec := recover(); rec != nil {
			metrics.DeliveryFailures.Inc()
			r.log.Error().Interface("panic", rec).Str("session_id", s.ID()).Msg("deliver event")
		}
	}()
	s.deliver(ev)
}

// release stops the room after the current op. Unless explicit, a room the
// registry has since marked as retained keeps running.
func (r *Room) release(explicit bool) bool {
	if r.registry != nil && !r.registry.forget(r, explicit) {
		return false
	}
	r.released = true
	r.log.Debug().Msg("room released")
	return true
}

func (r *Room) join(ctx context.Context, s *Session, u User) error {
	var err error
	if doErr := r.do(ctx, func() { err = r.handleJoin(s, u) }); doErr != nil {
		return doErr
	}
	return err
}

func (r *Room) handleJoin(s *Session, u User) error {
	if _, ok := r.subscribers[s]; ok {
		return errDuplicateJoin(u.ID)
	}
	joined, users := r.presence.join(u, r.clock.Now())
	if !joined {
		return errDuplicateJoin(u.ID)
	}
	member, _ := r.presence.get(u.ID)

	// Existing members learn about the newcomer; the newcomer gets the snapshot.
	r.broadcast(&Event{Kind: EventUserJoined, Room: r.ID, User: member})
	r.subscribers[s] = struct{}{}
	r.deliver(s, &Event{Kind: EventUsersList, Room: r.ID, Users: users})
	r.deliver(s, &Event{Kind: EventHistory, Room: r.ID, Messages: r.relay.history(r.opts.HistoryWindow)})
	for _, t := range r.typing.snapshot() {
		r.deliver(s, &Event{Kind: EventUserTyping, Room: r.ID, Typing: t})
	}

	r.log.Debug().Str("user_id", u.ID).Int("members", r.presence.len()).Msg("user joined")
	return nil
}

func (r *Room) leave(ctx context.Context, s *Session, userID string) error {
	var err error
	if doErr := r.do(ctx, func() { err = r.handleLeave(s, userID) }); doErr != nil {
		return doErr
	}
	return err
}

// handleLeave clears typing before presence so observers never see a
// stop-typing after the user_left for the same user.
func (r *Room) handleLeave(s *Session, userID string) error {
	if _, ok := r.subscribers[s]; !ok {
		return errNotAMember(userID)
	}
	if r.typing.stop(userID) {
		r.broadcast(&Event{Kind: EventUserStopTyping, Room: r.ID, UserID: userID})
	}
	if _, ok := r.presence.leave(userID); ok {
		r.broadcast(&Event{Kind: EventUserLeft, Room: r.ID, UserID: userID})
	}
	delete(r.subscribers, s)

	r.log.Debug().Str("user_id", userID).Int("members", r.presence.len()).Msg("user left")
	if r.presence.len() == 0 && !r.retain.Load() {
		r.release(false)
	}
	return nil
}

func (r *Room) send(ctx context.Context, s *Session, authorID string, d Draft) (Message, error) {
	var (
		msg Message
		err error
	)
	doErr := r.do(ctx, func() {
		if _, ok := r.subscribers[s]; !ok {
			err = errNotAMember(authorID)
			return
		}
		now := r.clock.Now()
		msg, err = r.relay.send(authorID, d, now)
		if err != nil {
			return
		}
		r.presence.touch(authorID, now)
		metrics.MessagesRelayed.Inc()
		r.broadcast(&Event{Kind: EventMessage, Room: r.ID, Message: msg})
	})
	if doErr != nil {
		return Message{}, doErr
	}
	return msg, err
}

func (r *Room) startTyping(ctx context.Context, s *Session, userID string) error {
	var err error
	doErr := r.do(ctx, func() {
		u, ok := r.presence.get(userID)
		if _, sub := r.subscribers[s]; !sub || !ok {
			err = errNotAMember(userID)
			return
		}
		now := r.clock.Now()
		t := TypingUser{UserID: u.ID, Name: u.Name}
		r.typing.start(t, now)
		r.presence.touch(userID, now)
		r.broadcast(&Event{Kind: EventUserTyping, Room: r.ID, Typing: t})
	})
	if doErr != nil {
		return doErr
	}
	return err
}

func (r *Room) stopTyping(ctx context.Context, s *Session, userID string) error {
	var err error
	doErr := r.do(ctx, func() {
		if _, ok := r.subscribers[s]; !ok {
			err = errNotAMember(userID)
			return
		}
		if r.typing.stop(userID) {
			r.broadcast(&Event{Kind: EventUserStopTyping, Room: r.ID, UserID: userID})
		}
	})
	if doErr != nil {
		return doErr
	}
	return err
}

// removeIfEmpty releases the room when nobody is present.
func (r *Room) removeIfEmpty(ctx context.Context) (bool, error) {
	var removed bool
	err := r.do(ctx, func() {
		if r.presence.len() == 0 {
			removed = r.release(true)
		}
	})
	return removed, err
}

// Members returns the users present in the room, in join order.
func (r *Room) Members(ctx context.Context) ([]User, error) {
	var users []User
	if err := r.do(ctx, func() { users = r.presence.snapshot() }); err != nil {
		return nil, err
	}
	return users, nil
}

// Typing returns the users currently composing a message.
func (r *Room) Typing(ctx context.Context) ([]TypingUser, error) {
	var users []TypingUser
	if err := r.do(ctx, func() { users = r.typing.snapshot() }); err != nil {
		return nil, err
	}
	return users, nil
}

// Messages returns up to limit logged messages with a sequence above afterSeq.
// It is the read-only view offered to external persisters.
func (r *Room) Messages(ctx context.Context, afterSeq int64, limit int) ([]Message, error) {
	var msgs []Message
	if err := r.do(ctx, func() { msgs = r.relay.since(afterSeq, limit) }); err != nil {
		return nil, err
	}
	return msgs, nil
}
