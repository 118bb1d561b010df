package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestHubJoinBroadcastAndLeave(t *testing.T) {
	hub, mock := newMockHub(t)
	ctx := context.Background()

	alice := hub.NewSession()
	bob := hub.NewSession()
	defer bob.Disconnect()

	// Alice joins an empty room and sees only herself.
	if err := alice.Join(ctx, "general", User{ID: "a", Name: "alice"}); err != nil {
		t.Fatalf("alice join: %v", err)
	}
	evs := pending(alice)
	expectKinds(t, evs, EventUsersList, EventHistory)
	if users := evs[0].Users; len(users) != 1 || users[0].ID != "a" {
		t.Fatalf("unexpected users list for alice: %+v", users)
	}

	// Bob joins: alice is told, bob gets the full list.
	if err := bob.Join(ctx, "general", User{ID: "b", Name: "bob"}); err != nil {
		t.Fatalf("bob join: %v", err)
	}
	evs = pending(alice)
	expectKinds(t, evs, EventUserJoined)
	if evs[0].User.ID != "b" || evs[0].User.Name != "bob" || !evs[0].User.Online {
		t.Fatalf("unexpected join event: %+v", evs[0])
	}
	evs = pending(bob)
	expectKinds(t, evs, EventUsersList, EventHistory)
	if users := evs[0].Users; len(users) != 2 || users[0].ID != "a" || users[1].ID != "b" {
		t.Fatalf("unexpected users list for bob: %+v", users)
	}

	// Alice says hi; both see it, the sender included.
	if _, err := alice.SendMessage(ctx, Draft{Body: "hi", Kind: KindText}); err != nil {
		t.Fatalf("send: %v", err)
	}
	for _, s := range []*Session{alice, bob} {
		evs = pending(s)
		expectKinds(t, evs, EventMessage)
		if m := evs[0].Message; m.AuthorID != "a" || m.AuthorName != "alice" || m.Body != "hi" || m.Room != "general" {
			t.Fatalf("unexpected message event: %+v", m)
		}
	}

	// Bob starts typing and goes quiet.
	if err := bob.StartTyping(ctx, "b"); err != nil {
		t.Fatalf("start typing: %v", err)
	}
	for _, s := range []*Session{alice, bob} {
		evs = pending(s)
		expectKinds(t, evs, EventUserTyping)
		if evs[0].Typing.UserID != "b" || evs[0].Typing.Name != "bob" {
			t.Fatalf("unexpected typing event: %+v", evs[0])
		}
	}

	room, _ := hub.Registry().Lookup("general")
	mock.Add(4 * time.Second)
	if typers, err := room.Typing(ctx); err != nil || len(typers) != 1 {
		t.Fatalf("indicator should still be live at 4s: %+v %v", typers, err)
	}
	expectKinds(t, pending(alice))

	mock.Add(2 * time.Second)
	if typers, err := room.Typing(ctx); err != nil || len(typers) != 0 {
		t.Fatalf("indicator should have expired at 6s: %+v %v", typers, err)
	}
	for _, s := range []*Session{alice, bob} {
		evs = pending(s)
		expectKinds(t, evs, EventUserStopTyping)
		if evs[0].UserID != "b" {
			t.Fatalf("unexpected stop typing event: %+v", evs[0])
		}
	}

	// Expiry fires once.
	mock.Add(10 * time.Second)
	if _, err := room.Typing(ctx); err != nil {
		t.Fatalf("typing: %v", err)
	}
	expectKinds(t, pending(bob))

	// Alice's connection drops.
	alice.Disconnect()
	evs = pending(bob)
	expectKinds(t, evs, EventUserLeft)
	if evs[0].UserID != "a" {
		t.Fatalf("unexpected leave event: %+v", evs[0])
	}
}

func TestHubTypingExpiresOnSweepTick(t *testing.T) {
	hub, mock := newMockHub(t)

	alice := joinAs(t, hub, "general", "a")
	bob := joinAs(t, hub, "general", "b")

	if err := bob.StartTyping(context.Background(), ""); err != nil {
		t.Fatalf("start typing: %v", err)
	}
	mustEvent(t, alice.Events(), EventUserTyping)

	// No further ops: only the room's ticker can expire the indicator.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		mock.Add(time.Second)
		select {
		case ev := <-alice.Events():
			if ev.Kind != EventUserStopTyping || ev.UserID != "b" {
				t.Fatalf("unexpected event: %+v", ev)
			}
			return
		case <-time.After(10 * time.Millisecond):
		}
	}
	t.Fatal("typing indicator never expired")
}

func TestHubTypingRefreshExtendsDeadline(t *testing.T) {
	hub, mock := newMockHub(t)
	ctx := context.Background()

	alice := joinAs(t, hub, "general", "a")
	joinAs(t, hub, "general", "b")
	pending(alice)

	if err := alice.StartTyping(ctx, "a"); err != nil {
		t.Fatalf("start typing: %v", err)
	}
	mock.Add(4 * time.Second)
	if err := alice.StartTyping(ctx, "a"); err != nil {
		t.Fatalf("refresh typing: %v", err)
	}
	mock.Add(4 * time.Second)

	room, _ := hub.Registry().Lookup("general")
	typers, err := room.Typing(ctx)
	if err != nil || len(typers) != 1 {
		t.Fatalf("refreshed indicator should be live at 8s: %+v %v", typers, err)
	}
	expectKinds(t, pending(alice), EventUserTyping, EventUserTyping)
}

func TestHubLeaveWhileTypingOrdersStopBeforeLeft(t *testing.T) {
	hub, _ := newMockHub(t)
	ctx := context.Background()

	alice := joinAs(t, hub, "general", "a")
	bob := joinAs(t, hub, "general", "b")
	pending(alice)

	if err := bob.StartTyping(ctx, "b"); err != nil {
		t.Fatalf("start typing: %v", err)
	}
	if err := bob.Leave(ctx, "b"); err != nil {
		t.Fatalf("leave: %v", err)
	}
	expectKinds(t, pending(alice), EventUserTyping, EventUserStopTyping, EventUserLeft)

	// Bob comes back; no stale stop-typing follows his new join.
	if err := bob.Join(ctx, "general", User{ID: "b"}); err != nil {
		t.Fatalf("rejoin: %v", err)
	}
	expectKinds(t, pending(alice), EventUserJoined)
	if bob.State() != StateJoined {
		t.Fatalf("expected joined, got %v", bob.State())
	}
}

func TestHubDisconnectWhileTypingRunsLeaveOnce(t *testing.T) {
	hub, _ := newMockHub(t)
	ctx := context.Background()

	alice := joinAs(t, hub, "general", "a")
	bob := joinAs(t, hub, "general", "b")
	pending(alice)

	if err := bob.StartTyping(ctx, ""); err != nil {
		t.Fatalf("start typing: %v", err)
	}

	var wg sync.WaitGroup
	for range 5 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			bob.Disconnect()
		}()
	}
	wg.Wait()
	<-bob.Done()

	expectKinds(t, pending(alice), EventUserTyping, EventUserStopTyping, EventUserLeft)
	if bob.State() != StateDisconnected {
		t.Fatalf("expected disconnected, got %v", bob.State())
	}
	if err := bob.Join(ctx, "general", User{ID: "b"}); !errors.Is(err, ErrSessionClosed) {
		t.Fatalf("disconnected session must reject joins, got %v", err)
	}
}

func TestHubDoubleJoinProducesError(t *testing.T) {
	hub, _ := newMockHub(t)
	ctx := context.Background()

	alice := joinAs(t, hub, "general", "a")

	err := alice.Join(ctx, "general", User{ID: "a"})
	if !errors.Is(err, ErrDuplicateJoin) {
		t.Fatalf("expected duplicate join, got %v", err)
	}
	ev := mustEvent(t, alice.Events(), EventNotification)
	if ev.Notice == nil || ev.Notice.Code != ErrCodeDuplicateJoin || ev.Notice.Severity != SeverityWarning {
		t.Fatalf("expected duplicate_join warning, got %+v", ev.Notice)
	}

	// Same user id from a second connection is rejected and stays unjoined.
	other := hub.NewSession()
	defer other.Disconnect()
	if err := other.Join(ctx, "general", User{ID: "a"}); !errors.Is(err, ErrDuplicateJoin) {
		t.Fatalf("expected duplicate join from second session, got %v", err)
	}
	if other.State() != StateConnecting {
		t.Fatalf("rejected session should stay connecting, got %v", other.State())
	}
	other.Disconnect()
	expectKinds(t, pending(alice))
}

func TestHubSendWithoutJoinProducesError(t *testing.T) {
	hub, _ := newMockHub(t)
	ctx := context.Background()

	bob := joinAs(t, hub, "general", "b")
	stranger := hub.NewSession()
	defer stranger.Disconnect()

	_, err := stranger.SendMessage(ctx, Draft{Body: "hi", Kind: KindText})
	if !errors.Is(err, ErrNotAMember) {
		t.Fatalf("expected not a member, got %v", err)
	}
	ev := mustEvent(t, stranger.Events(), EventNotification)
	if ev.Notice == nil || ev.Notice.Code != ErrCodeNotAMember || ev.Notice.Severity != SeverityError {
		t.Fatalf("expected not_a_member error, got %+v", ev.Notice)
	}
	expectKinds(t, pending(bob))
}

func TestHubValidationErrorsStayWithSender(t *testing.T) {
	hub, _ := newMockHub(t)
	ctx := context.Background()

	alice := joinAs(t, hub, "general", "a")
	bob := joinAs(t, hub, "general", "b")
	pending(alice)

	drafts := []struct {
		draft Draft
		code  string
	}{
		{Draft{Body: string(make([]rune, 5000)), Kind: KindText}, ErrCodeMessageTooLarge},
		{Draft{Body: "x", Kind: "sticker"}, ErrCodeInvalidContentType},
	}
	for _, d := range drafts {
		if _, err := alice.SendMessage(ctx, d.draft); err == nil {
			t.Fatalf("expected %s error", d.code)
		}
		evs := pending(alice)
		expectKinds(t, evs, EventNotification)
		if evs[0].Notice.Code != d.code {
			t.Fatalf("expected %s, got %+v", d.code, evs[0].Notice)
		}
	}
	expectKinds(t, pending(bob))

	// The room is unaffected.
	msg, err := alice.SendMessage(ctx, Draft{Body: "ok", Kind: KindText})
	if err != nil || msg.Seq != 1 {
		t.Fatalf("expected first accepted message to have seq 1: %+v %v", msg, err)
	}
}

func TestHubActionsForOtherUserRejected(t *testing.T) {
	hub, _ := newMockHub(t)
	ctx := context.Background()

	alice := joinAs(t, hub, "general", "a")
	bob := joinAs(t, hub, "general", "b")
	pending(alice)

	if err := alice.Leave(ctx, "b"); !errors.Is(err, ErrNotAMember) {
		t.Fatalf("leaving as another user must fail, got %v", err)
	}
	if err := alice.StartTyping(ctx, "b"); !errors.Is(err, ErrNotAMember) {
		t.Fatalf("typing as another user must fail, got %v", err)
	}
	if err := alice.StopTyping(ctx, "b"); !errors.Is(err, ErrNotAMember) {
		t.Fatalf("stop typing as another user must fail, got %v", err)
	}
	expectKinds(t, pending(bob))
	if bob.State() != StateJoined {
		t.Fatal("bob must be unaffected")
	}
}

func TestHubLeaveWithoutJoinError(t *testing.T) {
	hub, _ := newMockHub(t)

	alice := hub.NewSession()
	defer alice.Disconnect()

	if err := alice.Leave(context.Background(), "a"); !errors.Is(err, ErrNotAMember) {
		t.Fatalf("expected not a member, got %v", err)
	}
	ev := mustEvent(t, alice.Events(), EventNotification)
	if ev.Notice == nil || ev.Notice.Code != ErrCodeNotAMember {
		t.Fatalf("expected not_a_member error, got %+v", ev.Notice)
	}
	if err := alice.StopTyping(context.Background(), ""); !errors.Is(err, ErrNotAMember) {
		t.Fatalf("expected not a member for stop typing, got %v", err)
	}
}

func TestHubJoinSnapshotIncludesTypingAndHistory(t *testing.T) {
	hub, _ := newMockHub(t)
	ctx := context.Background()

	alice := joinAs(t, hub, "general", "a")
	for i := range 3 {
		if _, err := alice.SendMessage(ctx, Draft{Body: fmt.Sprintf("m%d", i), Kind: KindText}); err != nil {
			t.Fatalf("send: %v", err)
		}
	}
	if err := alice.StartTyping(ctx, ""); err != nil {
		t.Fatalf("start typing: %v", err)
	}

	bob := hub.NewSession()
	defer bob.Disconnect()
	if err := bob.Join(ctx, "general", User{ID: "b"}); err != nil {
		t.Fatalf("join: %v", err)
	}
	evs := pending(bob)
	expectKinds(t, evs, EventUsersList, EventHistory, EventUserTyping)
	if len(evs[1].Messages) != 3 || evs[1].Messages[0].Body != "m0" {
		t.Fatalf("unexpected history: %+v", evs[1].Messages)
	}
	if evs[2].Typing.UserID != "a" {
		t.Fatalf("unexpected typing snapshot: %+v", evs[2].Typing)
	}
}

func TestHubMessagesObservedInAppendOrder(t *testing.T) {
	hub, _ := newMockHub(t)
	ctx := context.Background()

	const senders, perSender = 4, 25
	observers := []*Session{
		joinAs(t, hub, "general", "o1"),
		joinAs(t, hub, "general", "o2"),
	}
	writers := make([]*Session, senders)
	for i := range writers {
		writers[i] = joinAs(t, hub, "general", fmt.Sprintf("w%d", i))
	}
	for _, o := range observers {
		pending(o)
	}

	var wg sync.WaitGroup
	for _, w := range writers {
		wg.Add(1)
		go func(s *Session) {
			defer wg.Done()
			for i := range perSender {
				if _, err := s.SendMessage(ctx, Draft{Body: fmt.Sprint(i), Kind: KindText}); err != nil {
					t.Errorf("send: %v", err)
					return
				}
			}
		}(w)
	}
	wg.Wait()

	var reference []string
	for i, o := range observers {
		var ids []string
		for _, ev := range pending(o) {
			if ev.Kind != EventMessage {
				continue
			}
			if ev.Message.Seq != int64(len(ids)+1) {
				t.Fatalf("observer %d: expected seq %d, got %d", i, len(ids)+1, ev.Message.Seq)
			}
			ids = append(ids, ev.Message.ID)
		}
		if len(ids) != senders*perSender {
			t.Fatalf("observer %d: expected %d messages, got %d", i, senders*perSender, len(ids))
		}
		if reference == nil {
			reference = ids
			continue
		}
		for j := range ids {
			if ids[j] != reference[j] {
				t.Fatalf("observers disagree at position %d", j)
			}
		}
	}
}

func TestHubRoomsAreIsolated(t *testing.T) {
	hub, _ := newMockHub(t)
	ctx := context.Background()

	alice := joinAs(t, hub, "one", "a")
	bob := joinAs(t, hub, "two", "b")

	if _, err := alice.SendMessage(ctx, Draft{Body: "hi", Kind: KindText}); err != nil {
		t.Fatalf("send: %v", err)
	}
	if err := alice.StartTyping(ctx, ""); err != nil {
		t.Fatalf("typing: %v", err)
	}
	expectKinds(t, pending(bob))
	expectKinds(t, pending(alice), EventMessage, EventUserTyping)
}

func TestHubSlowConsumerDropsOldest(t *testing.T) {
	hub := newTestHub(t, Options{OutboundQueueSize: 2})
	ctx := context.Background()

	alice := joinAs(t, hub, "general", "a")
	bob := hub.NewSession()
	defer bob.Disconnect()
	if err := bob.Join(ctx, "general", User{ID: "b"}); err != nil {
		t.Fatalf("join: %v", err)
	}

	for i := range 5 {
		if _, err := alice.SendMessage(ctx, Draft{Body: fmt.Sprint(i), Kind: KindText}); err != nil {
			t.Fatalf("send %d blocked or failed: %v", i, err)
		}
	}

	evs := pending(bob)
	expectKinds(t, evs, EventMessage, EventMessage)
	if evs[0].Message.Body != "3" || evs[1].Message.Body != "4" {
		t.Fatalf("expected the newest messages to survive, got %q %q", evs[0].Message.Body, evs[1].Message.Body)
	}
	if bob.Dropped() != 5 {
		t.Fatalf("expected 5 dropped events, got %d", bob.Dropped())
	}
}

func TestHubSessionsStressJoinLeave(t *testing.T) {
	hub := newTestHub(t, Options{})
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s := hub.NewSession()
			defer s.Disconnect()
			for range 10 {
				if err := s.Join(ctx, "busy", User{ID: fmt.Sprintf("u%d", i)}); err != nil {
					t.Errorf("join: %v", err)
					return
				}
				if err := s.Leave(ctx, ""); err != nil {
					t.Errorf("leave: %v", err)
					return
				}
			}
		}(i)
	}
	wg.Wait()

	if room, ok := hub.Registry().Lookup("busy"); ok {
		members, err := room.Members(ctx)
		if err == nil && len(members) != 0 {
			t.Fatalf("expected no members after all left, got %+v", members)
		}
	}
}
