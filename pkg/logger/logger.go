package logger

import (
	"context"
	"log/slog"
	"os"
	"strings"
)

// ServiceName is attached to every record.
const ServiceName = "collections-dialer"

// New returns the service's JSON logger. level ("debug", "info", "warn",
// "error") overrides the environment default when set.
func New(appEnv, level string) *slog.Logger {
	h := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: Level(appEnv, level)})
	return slog.New(h).With("service", ServiceName)
}

// Level resolves the minimum level: debug for local and dev, info elsewhere,
// unless level names one explicitly.
func Level(appEnv, level string) slog.Level {
	var l slog.Level
	if level != "" && l.UnmarshalText([]byte(strings.ToUpper(level))) == nil {
		return l
	}
	if appEnv == "local" || appEnv == "dev" {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}

// ForCall tags l with the desk and, when known, the call it is logging about.
func ForCall(l *slog.Logger, agentID, sessionID string) *slog.Logger {
	if sessionID == "" {
		return l.With("agent_id", agentID)
	}
	return l.With("agent_id", agentID, "session_id", sessionID)
}

type ctxKey struct{}

// With stores a logger in context.
func With(ctx context.Context, l *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// From gets a logger from context, falling back to slog.Default().
func From(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(ctxKey{}).(*slog.Logger); ok && l != nil {
		return l
	}
	return slog.Default()
}
