package handler

import (
	"context"
	"crypto/subtle"
	"encoding/base64"
	"log/slog"
	"net/http"
	"sync"

	"github.com/aws/aws-lambda-go/events"

	"github.com/habat-tech/todrive/internal/telegram"
)

// SecretTokenHeader carries the secret registered with setWebhook.
const SecretTokenHeader = "X-Telegram-Bot-Api-Secret-Token"

// recentUpdates is how many update ids are remembered for redelivery checks.
const recentUpdates = 256

// WebhookHandler accepts Telegram webhook deliveries.
type WebhookHandler struct {
	bot    telegram.MessageHandler
	secret string
	logger *slog.Logger
	seen   *updateSet
}

// NewWebhookHandler creates a WebhookHandler. An empty secret disables the
// header check.
func NewWebhookHandler(bot telegram.MessageHandler, secret string, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{bot: bot, secret: secret, logger: logger, seen: newUpdateSet(recentUpdates)}
}

// updateSet remembers the most recent update ids, oldest evicted first.
type updateSet struct {
	mu    sync.Mutex
	ids   map[int]struct{}
	order []int
	limit int
}

func newUpdateSet(limit int) *updateSet {
	return &updateSet{ids: make(map[int]struct{}, limit), limit: limit}
}

// add records id and reports whether it was new.
func (s *updateSet) add(id int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.ids[id]; ok {
		return false
	}
	if len(s.order) == s.limit {
		delete(s.ids, s.order[0])
		s.order = s.order[1:]
	}
	s.ids[id] = struct{}{}
	s.order = append(s.order, id)
	return true
}

// Handle processes one update. Once the update decodes, the response is 200
// whatever happened downstream. Telegram still redelivers when a slow upload
// outlives its request timeout, so an update id already seen by this process
// is acknowledged without being handled again.
func (h *WebhookHandler) Handle(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	if h.secret != "" {
		got := getHeader(req, SecretTokenHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(h.secret)) != 1 {
			h.logger.Warn("webhook secret token mismatch")
			return textResponse(http.StatusUnauthorized, "Unauthorized"), nil
		}
	}

	body := []byte(req.Body)
	if req.IsBase64Encoded {
		decoded, err := base64.StdEncoding.DecodeString(req.Body)
		if err != nil {
			return textResponse(http.StatusBadRequest, "Invalid body encoding"), nil
		}
		body = decoded
	}

	update, err := telegram.DecodeUpdate(body)
	if err != nil {
		h.logger.Warn("rejecting undecodable update", slog.String("error", err.Error()))
		return textResponse(http.StatusBadRequest, "Invalid update"), nil
	}

	if !h.seen.add(update.UpdateID) {
		h.logger.Info("skipping redelivered update", slog.Int("update_id", update.UpdateID))
		return textResponse(http.StatusOK, "ok"), nil
	}

	if msg := telegram.UpdateMessage(update); msg != nil {
		h.bot.HandleMessage(ctx, msg)
	} else {
		h.logger.Debug("ignoring update without message", slog.Int("update_id", update.UpdateID))
	}
	return textResponse(http.StatusOK, "ok"), nil
}
