// Package telegram connects the relay to the Telegram Bot API.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// DefaultMaxDownloadBytes is the Bot API ceiling for getFile downloads.
const DefaultMaxDownloadBytes int64 = 20 * 1024 * 1024

// ErrFileTooLarge is returned when an attachment exceeds the download limit.
var ErrFileTooLarge = errors.New("telegram file too large")

// Client sends replies and downloads attachments for one bot.
type Client struct {
	bot          *tgbotapi.BotAPI
	httpClient   *http.Client
	fileEndpoint string
	maxBytes     int64
	logger       *slog.Logger
}

type clientOptions struct {
	apiEndpoint  string
	fileEndpoint string
	httpClient   *http.Client
	maxBytes     int64
}

// ClientOption configures a Client.
type ClientOption func(*clientOptions)

// WithEndpoints points the client at a non-default Bot API server. Both
// arguments are format strings taking the token and the method or file path.
func WithEndpoints(api, file string) ClientOption {
	return func(o *clientOptions) {
		o.apiEndpoint = api
		o.fileEndpoint = file
	}
}

// WithHTTPClient overrides the HTTP client used for API calls and downloads.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(o *clientOptions) { o.httpClient = c }
}

// WithMaxDownloadBytes caps attachment downloads.
func WithMaxDownloadBytes(n int64) ClientOption {
	return func(o *clientOptions) {
		if n > 0 {
			o.maxBytes = n
		}
	}
}

// NewClient authenticates the bot token with getMe.
func NewClient(token string, logger *slog.Logger, opts ...ClientOption) (*Client, error) {
	o := clientOptions{
		apiEndpoint:  tgbotapi.APIEndpoint,
		fileEndpoint: tgbotapi.FileEndpoint,
		httpClient:   &http.Client{},
		maxBytes:     DefaultMaxDownloadBytes,
	}
	for _, opt := range opts {
		opt(&o)
	}

	bot, err := tgbotapi.NewBotAPIWithClient(token, o.apiEndpoint, o.httpClient)
	if err != nil {
		return nil, fmt.Errorf("telegram: authorizing bot: %w", err)
	}
	logger.Info("authorized telegram bot", slog.String("username", bot.Self.UserName))

	return &Client{
		bot:          bot,
		httpClient:   o.httpClient,
		fileEndpoint: o.fileEndpoint,
		maxBytes:     o.maxBytes,
		logger:       logger,
	}, nil
}

// Bot exposes the underlying API for polling.
func (c *Client) Bot() *tgbotapi.BotAPI {
	return c.bot
}

// ReplyText sends text to chatID as a reply to message replyTo (0 for none).
func (c *Client) ReplyText(_ context.Context, chatID int64, replyTo int, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyToMessageID = replyTo
	msg.AllowSendingWithoutReply = true
	if _, err := c.bot.Send(msg); err != nil {
		return fmt.Errorf("telegram: sending message: %w", err)
	}
	return nil
}

// DownloadToPath resolves fileID with getFile and writes its bytes to path
// with 0600 permissions. Downloads larger than the configured limit fail
// with ErrFileTooLarge.
func (c *Client) DownloadToPath(ctx context.Context, fileID, path string) (int64, error) {
	file, err := c.bot.GetFile(tgbotapi.FileConfig{FileID: fileID})
	if err != nil {
		return 0, fmt.Errorf("telegram: getFile: %w", err)
	}
	if file.FilePath == "" {
		return 0, fmt.Errorf("telegram: getFile: missing file_path")
	}
	if int64(file.FileSize) > c.maxBytes {
		return 0, fmt.Errorf("%w: %d bytes exceeds %d", ErrFileTooLarge, file.FileSize, c.maxBytes)
	}

	url := fmt.Sprintf(c.fileEndpoint, c.bot.Token, strings.TrimLeft(file.FilePath, "/"))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("telegram: downloading file: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return 0, fmt.Errorf("telegram: download http %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	n, err := io.Copy(f, io.LimitReader(resp.Body, c.maxBytes+1))
	if err != nil {
		return n, fmt.Errorf("telegram: writing %s: %w", path, err)
	}
	if n > c.maxBytes {
		return n, fmt.Errorf("%w: more than %d bytes", ErrFileTooLarge, c.maxBytes)
	}
	if err := f.Close(); err != nil {
		return n, err
	}
	return n, nil
}
