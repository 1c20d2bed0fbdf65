// Package notify surfaces short operator-facing messages.
package notify

import (
	"log/slog"
	"time"
)

type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Port receives notifications. Implementations must not block the caller.
type Port interface {
	Notify(level Level, message string)
}

type Notification struct {
	ID        uint64    `json:"id"`
	AgentID   string    `json:"agent_id,omitempty"`
	Level     Level     `json:"level"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// Nop discards every notification.
type Nop struct{}

func (Nop) Notify(Level, string) {}

// Logger writes notifications to a structured logger.
type Logger struct {
	log *slog.Logger
}

func NewLogger(l *slog.Logger) *Logger {
	if l == nil {
		l = slog.Default()
	}
	return &Logger{log: l}
}

func (l *Logger) Notify(level Level, message string) {
	switch level {
	case LevelError:
		l.log.Error("notification", "level", level, "message", message)
	case LevelWarning:
		l.log.Warn("notification", "level", level, "message", message)
	default:
		l.log.Info("notification", "level", level, "message", message)
	}
}

// Multi fans a notification out to several ports in order.
type Multi []Port

func (m Multi) Notify(level Level, message string) {
	for _, p := range m {
		if p != nil {
			p.Notify(level, message)
		}
	}
}
