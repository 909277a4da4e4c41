package bus

import (
	"context"

	"github.com/rs/zerolog"
)

type Level string

const (
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Notification is a user-facing message addressed to one session.
type Notification struct {
	ChatID int64
	Level  Level
	Text   string
}

type Notifier interface {
	Notify(ctx context.Context, n Notification)
}

// Channel publishes notifications into a channel, dropping them once ctx is done.
type Channel chan<- Notification

func (c Channel) Notify(ctx context.Context, n Notification) {
	select {
	case c <- n:
	case <-ctx.Done():
	}
}

// Discard drops every notification.
type Discard struct{}

func (Discard) Notify(context.Context, Notification) {}

// Log writes notifications to a logger, for sessions without a chat to deliver to.
type Log struct {
	Logger zerolog.Logger
}

func (l Log) Notify(_ context.Context, n Notification) {
	var ev *zerolog.Event
	switch n.Level {
	case LevelError:
		ev = l.Logger.Error()
	case LevelWarning:
		ev = l.Logger.Warn()
	default:
		ev = l.Logger.Info()
	}
	ev.Int64("session", n.ChatID).Msg(n.Text)
}
