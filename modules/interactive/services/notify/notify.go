// Package notify tells a Session's leader, outside the live WebSocket
// connection, that their Session has ended — so a leader who closed the
// tab mid-Session still hears about the result. Grounded on
// modules/crm/infrastructure/telegram/bot.go for the outbound send and
// on modules/bichat/services/title_job_queue.go's Redis SetNX-then-act
// shape for not sending the same notification twice.
package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PaulSonOfLars/gotgbot/v2"
	"github.com/redis/go-redis/v9"

	"github.com/interactive-quiz/session-engine/modules/interactive/domain/interactive"
	"github.com/interactive-quiz/session-engine/pkg/apperr"
)

const (
	defaultDedupePrefix = "session-engine:notify:ended"
	defaultDedupeTTL    = 30 * time.Minute
)

// Sender abstracts the outbound Telegram call so a Notifier can be built
// and exercised without a live bot token.
type Sender interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
}

// BotSender adapts gotgbot.Bot to Sender.
type BotSender struct {
	client *gotgbot.Bot
}

// NewBotSender constructs a Sender backed by a real Telegram bot token.
func NewBotSender(token string) (*BotSender, error) {
	client, err := gotgbot.NewBot(token, &gotgbot.BotOpts{})
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	return &BotSender{client: client}, nil
}

func (s *BotSender) SendMessage(ctx context.Context, chatID int64, text string) error {
	_, err := s.client.SendMessage(chatID, text, nil)
	if err != nil {
		return fmt.Errorf("send telegram message: %w", err)
	}
	return nil
}

// Config configures a Notifier.
type Config struct {
	Redis        *redis.Client
	DedupePrefix string
	DedupeTTL    time.Duration
}

// Notifier sends a leader at most one "your Session ended" notification
// per interactive, even if the natural END path and a reconciler's
// force_delete both try to fire it.
type Notifier struct {
	sender       Sender
	redis        *redis.Client
	dedupePrefix string
	dedupeTTL    time.Duration
}

// New constructs a Notifier. cfg.Redis may be nil, in which case
// NotifySessionEnded sends unconditionally on every call — acceptable for
// local development without a Redis instance, but force_delete racing a
// natural END could then double-send.
func New(sender Sender, cfg Config) *Notifier {
	prefix := strings.TrimSpace(cfg.DedupePrefix)
	if prefix == "" {
		prefix = defaultDedupePrefix
	}
	ttl := cfg.DedupeTTL
	if ttl <= 0 {
		ttl = defaultDedupeTTL
	}
	return &Notifier{sender: sender, redis: cfg.Redis, dedupePrefix: prefix, dedupeTTL: ttl}
}

// NotifySessionEnded tells chatID that interactiveID's Session named
// title has ended.
func (n *Notifier) NotifySessionEnded(ctx context.Context, interactiveID interactive.ID, chatID int64, title string) error {
	const op apperr.Op = "notify.Notifier.NotifySessionEnded"

	sendCtx := context.WithoutCancel(ctx)

	key := n.dedupeKey(interactiveID)
	if n.redis != nil {
		claimed, err := n.redis.SetNX(sendCtx, key, "1", n.dedupeTTL).Result()
		if err != nil {
			return apperr.E(op, apperr.KindTransientStorage, err)
		}
		if !claimed {
			return nil
		}
	}

	text := fmt.Sprintf("Your quiz %q has ended. Check the leaderboard for results.", title)
	if err := n.sender.SendMessage(sendCtx, chatID, text); err != nil {
		if n.redis != nil {
			_, _ = n.redis.Del(sendCtx, key).Result()
		}
		return apperr.E(op, apperr.KindTransport, err)
	}
	return nil
}

func (n *Notifier) dedupeKey(id interactive.ID) string {
	return fmt.Sprintf("%s:%s", n.dedupePrefix, id.String())
}
