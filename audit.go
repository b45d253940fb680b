package authcore

import (
	internalaudit "github.com/conduitblog/authcore/internal/audit"
	"github.com/rs/zerolog"
)

// AuditEvent is one security-relevant engine event. It never carries
// passwords, hashes or tokens.
type AuditEvent = internalaudit.Event

// AuditSink receives audit events from the engine's dispatcher goroutine.
type AuditSink = internalaudit.Sink

// NoOpSink drops audit events.
type NoOpSink = internalaudit.NoOpSink

// ChannelSink buffers audit events in a channel, mostly for tests.
type ChannelSink = internalaudit.ChannelSink

// NewChannelSink returns a sink whose Events channel holds buffer events.
func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

// NewLoggerSink returns a sink that writes every event to logger.
func NewLoggerSink(logger zerolog.Logger) AuditSink {
	return internalaudit.NewLoggerSink(logger)
}
