package core

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-rooms/internal/metrics"
)

// SessionState tracks where a session is in its lifecycle.
type SessionState int

const (
	StateConnecting SessionState = iota
	StateJoined
	StateLeft
	StateDisconnected
)

func (s SessionState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateJoined:
		return "joined"
	case StateLeft:
		return "left"
	case StateDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// joinAttempts bounds retries when a room is released between lookup and join.
const joinAttempts = 3

// Session binds one client connection to at most one room. It holds no room
// state of its own, only the handle of the room it joined.
type Session struct {
	id       string
	registry *Registry
	log      zerolog.Logger
	out      *outbox
	done     chan struct{}

	mu    sync.Mutex
	state SessionState
	room  *Room
	user  User

	disconnectOnce sync.Once
}

func newSession(registry *Registry, queueSize int, logger zerolog.Logger) *Session {
	id := uuid.NewString()
	metrics.SessionsActive.Inc()
	return &Session{
		id:       id,
		registry: registry,
		log:      logger.With().Str("session_id", id).Logger(),
		out:      newOutbox(queueSize),
		done:     make(chan struct{}),
	}
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// Events streams everything the session should send to its client.
func (s *Session) Events() <-chan *Event {
	return s.out.events
}

// Done is closed after Disconnect has finished.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Dropped reports how many events were discarded because the client fell behind.
func (s *Session) Dropped() int64 {
	return s.out.dropped.Load()
}

// State returns the current lifecycle state.
func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// User returns the identity the session joined with.
func (s *Session) User() User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user
}

// RoomID returns the joined room, or "" when not joined.
func (s *Session) RoomID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.room == nil {
		return ""
	}
	return s.room.ID
}

func (s *Session) deliver(ev *Event) {
	s.out.push(ev)
}

// Notify queues a notification for this session only.
func (s *Session) Notify(room string, err *CoreError) {
	metrics.Notifications.WithLabelValues(err.Code).Inc()
	s.deliver(notificationEvent(room, err))
}

// fail reports err to the client and hands it back to the caller.
func (s *Session) fail(room string, err error) error {
	ce := AsCoreError(err)
	s.Notify(room, ce)
	s.log.Debug().Str("code", ce.Code).Err(err).Msg("session action rejected")
	return ce
}

// Dispatch routes a client command to the matching session action.
func (s *Session) Dispatch(ctx context.Context, cmd Command) error {
	switch cmd.Kind {
	case CommandJoin:
		return s.Join(ctx, cmd.Room, cmd.User)
	case CommandLeave:
		return s.Leave(ctx, cmd.UserID)
	case CommandSendMessage:
		_, err := s.SendMessage(ctx, cmd.Draft)
		return err
	case CommandStartTyping:
		return s.StartTyping(ctx, cmd.UserID)
	case CommandStopTyping:
		return s.StopTyping(ctx, cmd.UserID)
	default:
		return s.fail("", errBadRequest("unknown command"))
	}
}

// Join registers the user with the room's presence and subscribes the
// session to the room's events. The session then receives the member list,
// recent history and current typing indicators.
func (s *Session) Join(ctx context.Context, roomID string, u User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	roomID = strings.TrimSpace(roomID)
	u.ID = strings.TrimSpace(u.ID)
	if u.Name == "" {
		u.Name = u.ID
	}

	switch {
	case s.state == StateDisconnected:
		return ErrSessionClosed
	case s.state == StateJoined:
		return s.fail(s.room.ID, errDuplicateJoin(s.user.ID))
	case roomID == "":
		return s.fail("", errBadRequest("room is required"))
	case u.ID == "":
		return s.fail(roomID, errBadRequest("user id is required"))
	}

	var err error
	for range joinAttempts {
		var room *Room
		room, err = s.registry.Get(roomID)
		if err != nil {
			return s.fail(roomID, err)
		}
		err = room.join(ctx, s, u)
		if errors.Is(err, ErrRoomClosed) {
			// Released between lookup and join; the next Get creates a fresh room.
			continue
		}
		if err != nil {
			return s.fail(roomID, err)
		}
		s.room = room
		s.user = u
		s.state = StateJoined
		s.log.Info().Str("room", roomID).Str("user_id", u.ID).Msg("session joined")
		return nil
	}
	return s.fail(roomID, err)
}

// joined returns the room when the session is joined as userID.
// Must be called with s.mu held.
func (s *Session) joined(userID string) (*Room, error) {
	if s.state == StateDisconnected {
		return nil, ErrSessionClosed
	}
	if s.state != StateJoined {
		if userID == "" {
			userID = s.user.ID
		}
		return nil, errNotAMember(userID)
	}
	if userID != "" && userID != s.user.ID {
		return nil, errNotAMember(userID)
	}
	return s.room, nil
}

// Leave removes the session's user from the room. userID may be empty,
// otherwise it must match the joined user.
func (s *Session) Leave(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	room, err := s.joined(userID)
	if err != nil {
		return s.fail(s.roomIDLocked(), err)
	}
	if err := room.leave(ctx, s, s.user.ID); err != nil {
		return s.fail(room.ID, err)
	}
	s.room = nil
	s.state = StateLeft
	s.log.Info().Str("room", room.ID).Str("user_id", s.user.ID).Msg("session left")
	return nil
}

// SendMessage relays a draft to everyone in the room, the sender included.
func (s *Session) SendMessage(ctx context.Context, d Draft) (Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	room, err := s.joined("")
	if err != nil {
		return Message{}, s.fail(s.roomIDLocked(), err)
	}
	msg, err := room.send(ctx, s, s.user.ID, d)
	if err != nil {
		return Message{}, s.fail(room.ID, err)
	}
	return msg, nil
}

// StartTyping sets or refreshes the typing indicator of the session's user.
func (s *Session) StartTyping(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	room, err := s.joined(userID)
	if err != nil {
		return s.fail(s.roomIDLocked(), err)
	}
	if err := room.startTyping(ctx, s, s.user.ID); err != nil {
		return s.fail(room.ID, err)
	}
	return nil
}

// StopTyping clears the typing indicator of the session's user.
func (s *Session) StopTyping(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	room, err := s.joined(userID)
	if err != nil {
		return s.fail(s.roomIDLocked(), err)
	}
	if err := room.stopTyping(ctx, s, s.user.ID); err != nil {
		return s.fail(room.ID, err)
	}
	return nil
}

// Disconnect is the implicit leave run when the transport goes away. It is
// safe to call any number of times; the leave happens once, before Done closes.
func (s *Session) Disconnect() {
	s.disconnectOnce.Do(func() {
		s.mu.Lock()
		if s.state == StateJoined {
			if err := s.room.leave(context.Background(), s, s.user.ID); err != nil && !errors.Is(err, ErrRoomClosed) {
				s.log.Warn().Err(err).Str("room", s.room.ID).Msg("leave on disconnect")
			}
			s.room = nil
		}
		s.state = StateDisconnected
		s.mu.Unlock()

		metrics.SessionsActive.Dec()
		close(s.done)
		s.log.Debug().Msg("session disconnected")
	})
}

func (s *Session) roomIDLocked() string {
	if s.room == nil {
		return ""
	}
	return s.room.ID
}
