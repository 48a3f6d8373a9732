// Package handler turns inbound chat messages and webhook requests into
// relay actions and user-facing replies.
package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/habat-tech/todrive/internal/adapter"
	"github.com/habat-tech/todrive/internal/auth"
	"github.com/habat-tech/todrive/internal/credential"
	"github.com/habat-tech/todrive/internal/dispatch"
	"github.com/habat-tech/todrive/internal/model"
	"github.com/habat-tech/todrive/internal/transfer"
)

// Commands the bot answers.
const (
	CommandStart      = "start"
	CommandUploadJSON = "uplode_json"
	CommandStatus     = "status"
)

// Messenger is the chat side of the relay.
type Messenger interface {
	ReplyText(ctx context.Context, chatID int64, replyTo int, text string) error
	DownloadToPath(ctx context.Context, fileID, path string) (int64, error)
}

// MediaUploader relays one attachment to Drive.
type MediaUploader interface {
	UploadMedia(ctx context.Context, att *model.Attachment, progress transfer.ProgressFunc) (*adapter.UploadResult, error)
}

// StatusReporter reports the credential lifecycle state without changing it.
type StatusReporter interface {
	Status(ctx context.Context) (auth.State, *model.CredentialRecord, error)
}

// BotHandler is the single boundary where relay failures become replies.
type BotHandler struct {
	messenger     Messenger
	clientConfigs credential.ClientConfigStore
	media         MediaUploader
	status        StatusReporter
	tempDir       string
	logger        *slog.Logger
}

// NewBotHandler creates a BotHandler. tempDir may be empty for os.TempDir.
func NewBotHandler(messenger Messenger, clientConfigs credential.ClientConfigStore, media MediaUploader, status StatusReporter, tempDir string, logger *slog.Logger) *BotHandler {
	return &BotHandler{
		messenger:     messenger,
		clientConfigs: clientConfigs,
		media:         media,
		status:        status,
		tempDir:       tempDir,
		logger:        logger,
	}
}

// HandleMessage answers commands, stores credential files and relays media.
func (h *BotHandler) HandleMessage(ctx context.Context, msg *model.Message) {
	logger := h.logger.With(slog.Int64("chat_id", msg.ChatID), slog.Int("message_id", msg.MessageID))

	switch msg.Command {
	case CommandStart:
		h.reply(ctx, logger, msg, textStart)
		return
	case CommandUploadJSON:
		h.reply(ctx, logger, msg, textUploadJSON)
		return
	case CommandStatus:
		h.reply(ctx, logger, msg, h.statusText(ctx, logger))
		return
	}

	kind := dispatch.Classify(msg)
	att := dispatch.Payload(msg)
	switch kind {
	case dispatch.CredentialPayload:
		logger = logger.With(slog.String("file_id", att.FileID), slog.String("file_name", att.FileName))
		if err := h.storeClientConfig(ctx, att); err != nil {
			h.fail(ctx, logger, msg, err)
			return
		}
		logger.Info("client configuration stored")
		h.reply(ctx, logger, msg, textClientConfigSaved)
	case dispatch.MediaPayload:
		logger = logger.With(slog.String("file_id", att.FileID), slog.String("kind", string(att.Kind)))
		h.relayMedia(ctx, logger, msg, att)
	default:
		logger.Debug("ignoring message without attachment")
	}
}

func (h *BotHandler) relayMedia(ctx context.Context, logger *slog.Logger, msg *model.Message, att *model.Attachment) {
	ctx = auth.WithPrompter(ctx, func(ctx context.Context, authURL string) error {
		return h.messenger.ReplyText(ctx, msg.ChatID, msg.MessageID, fmt.Sprintf(textConsentFormat, authURL))
	})

	res, err := h.media.UploadMedia(ctx, att, func(ctx context.Context, stage transfer.Stage) {
		if stage == transfer.StageDownloaded {
			h.reply(ctx, logger, msg, textDownloaded)
		}
	})
	if err != nil {
		h.fail(ctx, logger, msg, err)
		return
	}
	h.reply(ctx, logger, msg, uploadedText(res))
}

// storeClientConfig downloads att and overwrites the stored client configuration.
func (h *BotHandler) storeClientConfig(ctx context.Context, att *model.Attachment) error {
	f, err := os.CreateTemp(h.tempDir, "todrive-client-*.json")
	if err != nil {
		return transfer.Wrap(transfer.KindDownload, err)
	}
	path := f.Name()
	f.Close()
	defer os.Remove(path)

	if _, err := h.messenger.DownloadToPath(ctx, att.FileID, path); err != nil {
		return transfer.Wrap(transfer.KindDownload, err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return transfer.Wrap(transfer.KindDownload, err)
	}
	if err := h.clientConfigs.PutClientConfig(ctx, data); err != nil {
		return transfer.Wrap(transfer.KindPersist, err)
	}
	return nil
}

func (h *BotHandler) statusText(ctx context.Context, logger *slog.Logger) string {
	configured := true
	if _, err := h.clientConfigs.ClientConfig(ctx); err != nil {
		if !errors.Is(err, credential.ErrNoClientConfig) {
			logger.Error("reading client configuration", slog.String("error", err.Error()))
			return textStatusUnavailable
		}
		configured = false
	}

	state, rec, err := h.status.Status(ctx)
	if err != nil {
		logger.Error("reading session status", slog.String("error", err.Error()))
		return textStatusUnavailable
	}
	return statusText(configured, state, rec, time.Now())
}

// fail logs err with its stage and sends the matching reply.
func (h *BotHandler) fail(ctx context.Context, logger *slog.Logger, msg *model.Message, err error) {
	kind, _ := transfer.KindOf(err)
	logger.Error("relay failed", slog.String("stage", kind.String()), slog.String("error", err.Error()))
	h.reply(ctx, logger, msg, errorText(err))
}

func (h *BotHandler) reply(ctx context.Context, logger *slog.Logger, msg *model.Message, text string) {
	if err := h.messenger.ReplyText(ctx, msg.ChatID, msg.MessageID, text); err != nil {
		logger.Warn("failed to send reply", slog.String("error", err.Error()))
	}
}
