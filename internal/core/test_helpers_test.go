package core

import (
	"context"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
)

func mustEvent(t *testing.T, ch <-chan *Event, kind EventKind) *Event {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		select {
		case ev := <-ch:
			if ev == nil {
				continue
			}
			if ev.Kind == kind {
				return ev
			}
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
	t.Fatalf("expected event kind %v not received", kind)
	return nil
}

// pending returns everything already queued for the session without waiting.
// Room ops deliver synchronously, so after a session call returns its effects
// are already queued.
func pending(s *Session) []*Event {
	var out []*Event
	for {
		select {
		case ev := <-s.Events():
			out = append(out, ev)
		default:
			return out
		}
	}
}

func kinds(events []*Event) []EventKind {
	out := make([]EventKind, 0, len(events))
	for _, ev := range events {
		out = append(out, ev.Kind)
	}
	return out
}

func expectKinds(t *testing.T, got []*Event, want ...EventKind) {
	t.Helper()
	gk := kinds(got)
	if len(gk) != len(want) {
		t.Fatalf("expected events %v, got %v", want, gk)
	}
	for i := range want {
		if gk[i] != want[i] {
			t.Fatalf("expected events %v, got %v", want, gk)
		}
	}
}

func newTestHub(t *testing.T, opts Options) *Hub {
	t.Helper()

	hub := NewHub(opts, nil)
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	t.Cleanup(cancel)
	return hub
}

func newMockHub(t *testing.T) (*Hub, *clock.Mock) {
	t.Helper()

	mock := clock.NewMock()
	hub := newTestHub(t, Options{Clock: mock, OutboundQueueSize: 256})
	return hub, mock
}

// joinAs joins a fresh session and discards the join snapshot.
func joinAs(t *testing.T, hub *Hub, room, userID string) *Session {
	t.Helper()

	s := hub.NewSession()
	t.Cleanup(s.Disconnect)
	if err := s.Join(context.Background(), room, User{ID: userID, Name: userID}); err != nil {
		t.Fatalf("join %s to %s: %v", userID, room, err)
	}
	pending(s)
	return s
}
