package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/vovakirdan/wirechat-rooms/internal/proto"
)

// frame keeps event data raw so each event decodes into its own type.
type frame struct {
	Type  string          `json:"type"`
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
	Error *proto.Error    `json:"error"`
}

func main() {
	if err := run(); err != nil {
		log.Printf("ws_chat: %v", err)
		os.Exit(1)
	}
}

func run() error {
	addr := flag.String("addr", "ws://localhost:8080/ws", "WebSocket address")
	user := flag.String("user", "cli-user", "user id")
	name := flag.String("name", "", "display name")
	room := flag.String("room", "general", "room to join")
	token := flag.String("token", "", "JWT for servers that require one")
	flag.Parse()

	baseCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(baseCtx)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, *addr, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	if err := send(ctx, conn, proto.InboundTypeJoin, proto.JoinData{
		Room:     *room,
		User:     proto.UserData{ID: *user, Name: *name},
		Token:    *token,
		Protocol: proto.ProtocolVersion,
	}); err != nil {
		return err
	}

	fmt.Printf("Connected to %s as %s in room %s\n", *addr, *user, *room)
	fmt.Println("Type messages and press Enter to send. /typing and /stop toggle the indicator, /leave leaves. Ctrl+C to exit.")

	go func() {
		defer cancel()
		readLoop(ctx, conn)
	}()

	writeLoop(ctx, conn)

	stop()
	cancel()
	_ = conn.Close(websocket.StatusNormalClosure, "bye")
	return nil
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

func readLoop(ctx context.Context, conn *websocket.Conn) {
	for {
		var out frame
		if err := wsjson.Read(ctx, conn, &out); err != nil {
			// Treat expected shutdowns quietly.
			if errors.Is(err, context.Canceled) {
				return
			}
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				return
			}
			log.Printf("read error: %v", err)
			return
		}
		if out.Type == proto.OutboundTypeError && out.Error != nil {
			fmt.Printf("! %s: %s\n", out.Error.Code, out.Error.Msg)
			continue
		}
		if err := printEvent(out); err != nil {
			log.Printf("decode %s: %v", out.Event, err)
		}
	}
}

func printEvent(out frame) error {
	switch out.Event {
	case proto.EventNameMessage:
		var evt proto.EventMessage
		if err := json.Unmarshal(out.Data, &evt); err != nil {
			return err
		}
		fmt.Printf("[%s #%d] %s: %s\n", evt.Room, evt.Seq, evt.UserName, evt.Body)
	case proto.EventNameUserJoined:
		var evt proto.EventUserJoined
		if err := json.Unmarshal(out.Data, &evt); err != nil {
			return err
		}
		fmt.Printf("[room %s] %s joined\n", evt.Room, evt.User.Name)
	case proto.EventNameUserLeft:
		var evt proto.EventUserLeft
		if err := json.Unmarshal(out.Data, &evt); err != nil {
			return err
		}
		fmt.Printf("[room %s] %s left\n", evt.Room, evt.UserID)
	case proto.EventNameUserTyping:
		var evt proto.EventUserTyping
		if err := json.Unmarshal(out.Data, &evt); err != nil {
			return err
		}
		fmt.Printf("[room %s] %s is typing...\n", evt.Room, evt.Name)
	case proto.EventNameUserStopTyping:
		var evt proto.EventUserStopTyping
		if err := json.Unmarshal(out.Data, &evt); err != nil {
			return err
		}
		fmt.Printf("[room %s] %s stopped typing\n", evt.Room, evt.UserID)
	case proto.EventNameUsersList:
		var evt proto.EventUsersList
		if err := json.Unmarshal(out.Data, &evt); err != nil {
			return err
		}
		names := make([]string, 0, len(evt.Users))
		for _, u := range evt.Users {
			names = append(names, u.Name)
		}
		fmt.Printf("[room %s] here: %s\n", evt.Room, strings.Join(names, ", "))
	case proto.EventNameHistory:
		var evt proto.EventHistory
		if err := json.Unmarshal(out.Data, &evt); err != nil {
			return err
		}
		for _, m := range evt.Messages {
			fmt.Printf("[%s #%d] %s: %s\n", m.Room, m.Seq, m.UserName, m.Body)
		}
	case proto.EventNameNotification:
		var evt proto.EventNotification
		if err := json.Unmarshal(out.Data, &evt); err != nil {
			return err
		}
		fmt.Printf("! %s (%s): %s\n", evt.Severity, evt.Code, evt.Text)
	default:
		fmt.Printf("event=%s data=%s\n", out.Event, out.Data)
	}
	return nil
}

func writeLoop(ctx context.Context, conn *websocket.Conn) {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			text := strings.TrimSpace(line)
			if text == "" {
				continue
			}

			var err error
			switch text {
			case "/typing":
				err = send(ctx, conn, proto.InboundTypeStartTyping, proto.TypingData{})
			case "/stop":
				err = send(ctx, conn, proto.InboundTypeStopTyping, proto.TypingData{})
			case "/leave":
				err = send(ctx, conn, proto.InboundTypeLeave, proto.LeaveData{})
			default:
				err = send(ctx, conn, proto.InboundTypeSendMessage, proto.SendMessageData{Body: text})
			}
			if err != nil {
				log.Printf("send error: %v", err)
				return
			}
		}
	}
}
