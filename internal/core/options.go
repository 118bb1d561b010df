package core

import (
	"time"

	"github.com/benbjohnson/clock"
)

// Options tune room behaviour. Zero values fall back to defaults.
type Options struct {
	// TypingTimeout is how long a typing indicator lives without a refresh.
	TypingTimeout time.Duration
	// SweepInterval is how often a room checks for expired typing indicators.
	SweepInterval time.Duration
	// MaxMessageLength bounds a message body, in characters.
	MaxMessageLength int
	// HistoryWindow is how many recent messages a joining session receives.
	HistoryWindow int
	// OutboundQueueSize bounds each session's pending events; the oldest are dropped first.
	OutboundQueueSize int
	// RetainEmptyRooms keeps a room and its log after the last user leaves.
	RetainEmptyRooms bool
	// RequireProvisioned rejects joins to rooms that were not provisioned up front.
	RequireProvisioned bool
	// ProvisionedRooms are created at startup and never removed automatically.
	ProvisionedRooms []string
	// Clock drives timestamps and typing expiry. Defaults to the wall clock.
	Clock clock.Clock
}

// DefaultOptions returns the options used when nothing is configured.
func DefaultOptions() Options {
	return Options{
		TypingTimeout:     5 * time.Second,
		SweepInterval:     250 * time.Millisecond,
		MaxMessageLength:  4096,
		HistoryWindow:     50,
		OutboundQueueSize: 64,
	}
}

func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.TypingTimeout <= 0 {
		o.TypingTimeout = def.TypingTimeout
	}
	if o.SweepInterval <= 0 {
		o.SweepInterval = def.SweepInterval
	}
	if o.MaxMessageLength <= 0 {
		o.MaxMessageLength = def.MaxMessageLength
	}
	if o.HistoryWindow < 0 {
		o.HistoryWindow = 0
	} else if o.HistoryWindow == 0 {
		o.HistoryWindow = def.HistoryWindow
	}
	if o.OutboundQueueSize <= 0 {
		o.OutboundQueueSize = def.OutboundQueueSize
	}
	if o.Clock == nil {
		o.Clock = clock.New()
	}
	return o
}
