package telegram

import (
	"context"
	"log/slog"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/habat-tech/todrive/internal/model"
)

// DefaultPollTimeout is the long-poll wait in seconds.
const DefaultPollTimeout = 60

// MessageHandler consumes relay messages. It reports failures to the user
// itself, so it returns nothing.
type MessageHandler interface {
	HandleMessage(ctx context.Context, msg *model.Message)
}

// UpdateSource is the long-polling half of tgbotapi.BotAPI.
type UpdateSource interface {
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Poller feeds long-polled updates to a handler one at a time.
type Poller struct {
	source  UpdateSource
	handler MessageHandler
	timeout int
	logger  *slog.Logger
}

// NewPoller creates a Poller. timeout is in seconds; 0 uses DefaultPollTimeout.
func NewPoller(source UpdateSource, handler MessageHandler, timeout int, logger *slog.Logger) *Poller {
	if timeout <= 0 {
		timeout = DefaultPollTimeout
	}
	return &Poller{source: source, handler: handler, timeout: timeout, logger: logger}
}

// Run polls until ctx is done. An update in flight finishes before Run returns.
func (p *Poller) Run(ctx context.Context) error {
	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = p.timeout
	cfg.AllowedUpdates = []string{"message"}

	updates := p.source.GetUpdatesChan(cfg)
	p.logger.Info("polling for updates", slog.Int("timeout_s", p.timeout))

	for {
		select {
		case <-ctx.Done():
			p.source.StopReceivingUpdates()
			p.logger.Info("stopped polling")
			return nil
		case u, ok := <-updates:
			if !ok {
				return nil
			}
			msg := UpdateMessage(&u)
			if msg == nil {
				continue
			}
			p.handler.HandleMessage(context.WithoutCancel(ctx), msg)
		}
	}
}
