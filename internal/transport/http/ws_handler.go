package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	stdhttp "net/http"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-rooms/internal/auth"
	"github.com/vovakirdan/wirechat-rooms/internal/config"
	"github.com/vovakirdan/wirechat-rooms/internal/core"
	"github.com/vovakirdan/wirechat-rooms/internal/metrics"
	"github.com/vovakirdan/wirechat-rooms/internal/proto"
)

// WSHandler upgrades HTTP connections and bridges them to a core.Session.
type WSHandler struct {
	hub   *core.Hub
	cfg   *config.Config
	jwt   *auth.JWTConfig
	clock clock.Clock
	log   *zerolog.Logger
}

// NewWSHandler builds a new WebSocket handler.
func NewWSHandler(hub *core.Hub, cfg *config.Config, jwtCfg *auth.JWTConfig, logger *zerolog.Logger) stdhttp.Handler {
	return &WSHandler{hub: hub, cfg: cfg, jwt: jwtCfg, clock: clock.New(), log: logger}
}

func (h *WSHandler) ServeHTTP(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	ctx := r.Context()

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "internal error")
	if h.cfg.MaxMessageBytes > 0 {
		conn.SetReadLimit(h.cfg.MaxMessageBytes)
	}

	session := h.hub.NewSession()
	defer session.Disconnect()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 2)
	go func() {
		errCh <- h.readLoop(ctx, conn, session)
	}()
	go func() {
		errCh <- h.writeLoop(ctx, conn, session)
	}()

	err = <-errCh
	cancel() // stop the other goroutine
	<-errCh

	status := websocket.StatusNormalClosure
	reason := "closing"
	if err != nil && !errors.Is(err, context.Canceled) {
		if errors.Is(err, io.EOF) {
			err = nil
		}
		if s := websocket.CloseStatus(err); s != -1 {
			status = s
		}
		if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
			err = nil
		}
		if err != nil {
			if status == websocket.StatusNormalClosure {
				status = websocket.StatusInternalError
			}
			reason = err.Error()
			h.log.Warn().Err(err).Str("session_id", session.ID()).Msg("ws connection closed with error")
		}
	}

	conn.Close(status, reason)
}

func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn, session *core.Session) error {
	limiter := newRateLimiter(h.cfg.RateLimitPerMinute, time.Minute, h.clock)
	for {
		var inbound proto.Inbound
		if err := wsjson.Read(ctx, conn, &inbound); err != nil {
			h.log.Debug().Err(err).Str("session_id", session.ID()).Msg("read ws inbound")
			return err
		}

		if !limiter.allow() {
			metrics.RateLimitHits.Inc()
			session.Notify(session.RoomID(), &core.CoreError{
				Code:     core.ErrCodeRateLimited,
				Message:  "rate limit exceeded",
				Severity: core.SeverityWarning,
			})
			continue
		}

		var protoErr *proto.Error
		if inbound.Type == proto.InboundTypeJoin {
			protoErr = h.join(ctx, session, inbound.Data)
		} else {
			var cmd core.Command
			cmd, protoErr = inboundToCommand(inbound)
			if protoErr == nil {
				// Domain errors reach the client as notifications.
				if err := session.Dispatch(ctx, cmd); err != nil {
					h.log.Debug().Err(err).Str("session_id", session.ID()).Msg("command rejected")
				}
			}
		}
		if protoErr != nil {
			if writeErr := wsjson.Write(ctx, conn, proto.Outbound{
				Type:  proto.OutboundTypeError,
				Error: protoErr,
			}); writeErr != nil {
				return writeErr
			}
		}
	}
}

// join checks the protocol version and, when JWT is configured, replaces the
// claimed identity with the token's subject and name. A configured secret
// rejects token-less joins unless anonymous joins are allowed.
func (h *WSHandler) join(ctx context.Context, session *core.Session, raw json.RawMessage) *proto.Error {
	var data proto.JoinData
	if err := decodeData(raw, &data); err != nil {
		return badRequest("invalid join payload")
	}
	if data.Protocol != 0 && data.Protocol != proto.ProtocolVersion {
		return &proto.Error{
			Code: errCodeUnsupportedVersion,
			Msg:  fmt.Sprintf("unsupported protocol version %d, server speaks %d", data.Protocol, proto.ProtocolVersion),
		}
	}

	user := core.User{ID: data.User.ID, Name: data.User.Name}
	if h.jwt.Enabled() && (data.Token != "" || h.cfg.TokenRequired()) {
		claims, err := auth.ValidateToken(h.jwt, data.Token)
		if err != nil {
			h.log.Debug().Err(err).Str("session_id", session.ID()).Msg("join token rejected")
			session.Notify(data.Room, &core.CoreError{
				Code:     core.ErrCodeUnauthorized,
				Message:  "invalid or missing token",
				Severity: core.SeverityError,
			})
			return nil
		}
		user.ID = claims.UserID()
		if claims.Name != "" {
			user.Name = claims.Name
		}
	}

	if err := session.Join(ctx, data.Room, user); err != nil {
		h.log.Debug().Err(err).Str("session_id", session.ID()).Msg("join rejected")
	}
	return nil
}

func (h *WSHandler) writeLoop(ctx context.Context, conn *websocket.Conn, session *core.Session) error {
	for {
		select {
		case ev := <-session.Events():
			if err := wsjson.Write(ctx, conn, outboundFromEvent(ev)); err != nil {
				h.log.Error().Err(err).Str("session_id", session.ID()).Msg("write ws event")
				return err
			}
		case <-session.Done():
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
