// Package observability provides logging, metrics, and tracing.
package observability

import (
	"context"
	"log/slog"
	"os"

	"github.com/google/uuid"
)

// Logger wraps slog.Logger to provide specialized logging methods.
type Logger struct {
	*slog.Logger
}

// GlobalLogger is the default logger instance for the application.
var GlobalLogger *Logger

func init() {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
	GlobalLogger = &Logger{Logger: slog.New(handler)}
}

// LogContextKey is a type for context keys used by the logging package.
type LogContextKey string

// CorrelationID keys a per-mutation correlation identifier in the context.
const CorrelationID LogContextKey = "correlation_id"

// LoggingConfig defines which types of automated logging are enabled.
type LoggingConfig struct {
	EnableCorrelationID   bool
	EnableChannelLogging  bool
	EnableMutationLogging bool
	EnableStoreLogging    bool
	EnableSessionLogging  bool
}

var (
	// Config holds the current logging configuration.
	Config = LoggingConfig{
		EnableCorrelationID:   true,
		EnableChannelLogging:  true,
		EnableMutationLogging: true,
		EnableStoreLogging:    false,
		EnableSessionLogging:  true,
	}
)

// GenerateCorrelationID creates a new unique correlation ID.
func GenerateCorrelationID() string {
	return uuid.NewString()
}

// WithCorrelationID returns a new context with the given correlation ID.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, CorrelationID, id)
}

// ExtractCorrelationID retrieves the correlation ID from the context.
func ExtractCorrelationID(ctx context.Context) string {
	if id := ctx.Value(CorrelationID); id != nil {
		return id.(string)
	}
	return ""
}

// ChannelLogger provides structured logging for event-channel operations.
type ChannelLogger struct {
	channelName string
	logger      *Logger
}

// NewChannelLogger creates a new ChannelLogger for the given channel.
func NewChannelLogger(channelName string) *ChannelLogger {
	return &ChannelLogger{
		channelName: channelName,
		logger:      GlobalLogger,
	}
}

// LogConnect logs a successful event-channel connection.
func (l *ChannelLogger) LogConnect(ctx context.Context, identity uint) {
	if !Config.EnableChannelLogging {
		return
	}
	l.logger.InfoContext(ctx, "channel connected",
		slog.String("channel", l.channelName),
		slog.Uint64("identity", uint64(identity)),
	)
}

// LogDisconnect logs an event-channel disconnection.
func (l *ChannelLogger) LogDisconnect(ctx context.Context, reason string) {
	if !Config.EnableChannelLogging {
		return
	}
	l.logger.InfoContext(ctx, "channel disconnected",
		slog.String("channel", l.channelName),
		slog.String("reason", reason),
	)
}

// LogReconnect logs a reconnect attempt with its backoff delay.
func (l *ChannelLogger) LogReconnect(ctx context.Context, attempt int, delayMS int64) {
	if !Config.EnableChannelLogging {
		return
	}
	l.logger.InfoContext(ctx, "channel reconnecting",
		slog.String("channel", l.channelName),
		slog.Int("attempt", attempt),
		slog.Int64("delay_ms", delayMS),
	)
}

// LogEvent logs a dispatched push event.
func (l *ChannelLogger) LogEvent(ctx context.Context, eventName string, handlers int) {
	if !Config.EnableChannelLogging {
		return
	}
	l.logger.InfoContext(ctx, "channel event",
		slog.String("channel", l.channelName),
		slog.String("event", eventName),
		slog.Int("handlers", handlers),
	)
}

// LogError logs an event-channel error.
func (l *ChannelLogger) LogError(ctx context.Context, err error, operation string) {
	if !Config.EnableChannelLogging {
		return
	}
	l.logger.ErrorContext(ctx, "channel error",
		slog.String("channel", l.channelName),
		slog.String("operation", operation),
		slog.String("error", err.Error()),
	)
}

// MutationLogger provides structured logging for optimistic mutations.
type MutationLogger struct {
	logger *Logger
}

// NewMutationLogger creates a new MutationLogger.
func NewMutationLogger() *MutationLogger {
	return &MutationLogger{logger: GlobalLogger}
}

// LogApply logs the speculative apply phase of a mutation.
func (l *MutationLogger) LogApply(ctx context.Context, name string, slots int) {
	if !Config.EnableMutationLogging {
		return
	}
	l.logger.InfoContext(ctx, "mutation applied",
		slog.String("mutation", name),
		slog.Int("slots", slots),
		slog.String("correlation_id", ExtractCorrelationID(ctx)),
	)
}

// LogConfirm logs a confirmed mutation.
func (l *MutationLogger) LogConfirm(ctx context.Context, name string) {
	if !Config.EnableMutationLogging {
		return
	}
	l.logger.InfoContext(ctx, "mutation confirmed",
		slog.String("mutation", name),
		slog.String("correlation_id", ExtractCorrelationID(ctx)),
	)
}

// LogRevert logs a reverted mutation, with how many slots were actually
// rolled back versus skipped by the compare-and-revert guard.
func (l *MutationLogger) LogRevert(ctx context.Context, name string, reverted, skipped int, err error) {
	if !Config.EnableMutationLogging {
		return
	}
	l.logger.WarnContext(ctx, "mutation reverted",
		slog.String("mutation", name),
		slog.Int("reverted", reverted),
		slog.Int("skipped", skipped),
		slog.String("error", err.Error()),
		slog.String("correlation_id", ExtractCorrelationID(ctx)),
	)
}

// SessionLogger provides structured logging for live-session transitions.
type SessionLogger struct {
	logger *Logger
}

// NewSessionLogger creates a new SessionLogger.
func NewSessionLogger() *SessionLogger {
	return &SessionLogger{logger: GlobalLogger}
}

// LogTransition logs a state-machine transition.
func (l *SessionLogger) LogTransition(ctx context.Context, from, to string, roomID uint) {
	if !Config.EnableSessionLogging {
		return
	}
	l.logger.InfoContext(ctx, "session transition",
		slog.String("from", from),
		slog.String("to", to),
		slog.Uint64("room_id", uint64(roomID)),
	)
}

// LogTeardownError logs a non-blocking failure during session teardown.
// Teardown always completes locally even when server bookkeeping fails.
func (l *SessionLogger) LogTeardownError(ctx context.Context, operation string, err error) {
	l.logger.ErrorContext(ctx, "session teardown error",
		slog.String("operation", operation),
		slog.String("error", err.Error()),
	)
}
