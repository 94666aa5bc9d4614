// Package notify forwards operational failures to an operator channel.
package notify

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Notifier reports an operational failure. Implementations never fail the
// caller.
type Notifier interface {
	Notify(ctx context.Context, msg string)
}

// MessageSender is the subset of the Telegram client used for alerts.
type MessageSender interface {
	SendMessage(ctx context.Context, chatID, text string) error
}

// LogNotifier only writes the failure to the local log.
type LogNotifier struct {
	log zerolog.Logger
}

func NewLogNotifier(log zerolog.Logger) *LogNotifier {
	return &LogNotifier{log: log.With().Str("component", "notify").Logger()}
}

func (n *LogNotifier) Notify(_ context.Context, msg string) {
	n.log.Error().Msg(msg)
}

// ChatNotifier logs the failure and sends it to an error chat.
type ChatNotifier struct {
	sender MessageSender
	chatID string
	prefix string
	log    zerolog.Logger
}

// NewChatNotifier creates a notifier posting to chatID. prefix identifies
// the reporting host or service in the message.
func NewChatNotifier(sender MessageSender, chatID, prefix string, log zerolog.Logger) *ChatNotifier {
	return &ChatNotifier{
		sender: sender,
		chatID: chatID,
		prefix: prefix,
		log:    log.With().Str("component", "notify").Logger(),
	}
}

func (n *ChatNotifier) Notify(ctx context.Context, msg string) {
	n.log.Error().Msg(msg)

	text := msg
	if n.prefix != "" {
		text = "[" + n.prefix + "] " + msg
	}

	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	if err := n.sender.SendMessage(ctx, n.chatID, text); err != nil {
		n.log.Warn().Err(err).Msg("Failed to forward error to chat")
	}
}
