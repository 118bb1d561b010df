package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/vovakirdan/wirechat-rooms/internal/proto"
)

// Two clients join the same room, chat and type, then one hangs up.
// The run fails unless the other observes each step.

type frame struct {
	Type  string          `json:"type"`
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
	Error *proto.Error    `json:"error"`
}

func main() {
	if err := run(); err != nil {
		log.Printf("ws_smoke: %v", err)
		os.Exit(1)
	}
}

func run() error {
	addr := flag.String("addr", "ws://localhost:8080/ws", "WebSocket address")
	room := flag.String("room", "smoke", "room name")
	text := flag.String("text", "hello from smoke test", "message text to send")
	timeout := flag.Duration("timeout", 10*time.Second, "total timeout for the run")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	alice, err := connect(ctx, *addr, *room, "smoke-alice")
	if err != nil {
		return err
	}
	defer alice.Close(websocket.StatusNormalClosure, "bye")

	bob, err := connect(ctx, *addr, *room, "smoke-bob")
	if err != nil {
		return err
	}

	if _, err := await(ctx, alice, proto.EventNameUserJoined); err != nil {
		return err
	}

	if err := send(ctx, bob, proto.InboundTypeStartTyping, proto.TypingData{}); err != nil {
		return err
	}
	if _, err := await(ctx, alice, proto.EventNameUserTyping); err != nil {
		return err
	}

	if err := send(ctx, bob, proto.InboundTypeSendMessage, proto.SendMessageData{Body: *text}); err != nil {
		return err
	}
	data, err := await(ctx, alice, proto.EventNameMessage)
	if err != nil {
		return err
	}
	var msg proto.EventMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return fmt.Errorf("decode message: %w", err)
	}
	fmt.Printf("message %s seq=%d from %s: %s\n", msg.ID, msg.Seq, msg.UserID, msg.Body)

	// Hanging up while typing must clear the indicator, then remove the user.
	bob.Close(websocket.StatusNormalClosure, "bye")
	if _, err := await(ctx, alice, proto.EventNameUserStopTyping); err != nil {
		return err
	}
	if _, err := await(ctx, alice, proto.EventNameUserLeft); err != nil {
		return err
	}

	fmt.Println("smoke test passed")
	return nil
}

func connect(ctx context.Context, addr, room, user string) (*websocket.Conn, error) {
	conn, _, err := websocket.Dial(ctx, addr, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", user, err)
	}
	if err := send(ctx, conn, proto.InboundTypeJoin, proto.JoinData{
		Room:     room,
		User:     proto.UserData{ID: user},
		Protocol: proto.ProtocolVersion,
	}); err != nil {
		return nil, err
	}
	if _, err := await(ctx, conn, proto.EventNameHistory); err != nil {
		return nil, fmt.Errorf("join %s: %w", user, err)
	}
	return conn, nil
}

func send(ctx context.Context, conn *websocket.Conn, typ string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", typ, err)
	}
	if err := wsjson.Write(ctx, conn, proto.Inbound{Type: typ, Data: payload}); err != nil {
		return fmt.Errorf("send %s: %w", typ, err)
	}
	return nil
}

// await reads until the named event arrives. Errors and notifications abort the run.
func await(ctx context.Context, conn *websocket.Conn, event string) (json.RawMessage, error) {
	for {
		var out frame
		if err := wsjson.Read(ctx, conn, &out); err != nil {
			return nil, fmt.Errorf("waiting for %s: %w", event, err)
		}
		fmt.Printf("received type=%s event=%s\n", out.Type, out.Event)
		switch {
		case out.Type == proto.OutboundTypeError && out.Error != nil:
			return nil, fmt.Errorf("server error %s: %s", out.Error.Code, out.Error.Msg)
		case out.Event == proto.EventNameNotification:
			return nil, fmt.Errorf("notification: %s", out.Data)
		case out.Event == event:
			return out.Data, nil
		}
	}
}
