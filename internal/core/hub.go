package core

import (
	"context"

	"github.com/rs/zerolog"
)

// Hub owns the room registry and hands out sessions bound to it.
type Hub struct {
	opts     Options
	log      zerolog.Logger
	registry *Registry
}

// NewHub creates a new chat hub instance.
func NewHub(opts Options, logger *zerolog.Logger) *Hub {
	opts = opts.withDefaults()
	log := zerolog.Nop()
	if logger != nil {
		log = *logger
	}
	return &Hub{
		opts:     opts,
		log:      log,
		registry: NewRegistry(opts, &log),
	}
}

// Run blocks until ctx is cancelled, then stops every room.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()
	h.log.Info().Msg("hub shutting down")
	h.registry.Close()
}

// Registry exposes the room registry for read-only endpoints.
func (h *Hub) Registry() *Registry {
	return h.registry
}

// NewSession creates a session in the connecting state.
func (h *Hub) NewSession() *Session {
	return newSession(h.registry, h.opts.OutboundQueueSize, h.log)
}
