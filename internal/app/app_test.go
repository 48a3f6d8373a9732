package app

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/habat-tech/todrive/internal/auth"
	"github.com/habat-tech/todrive/internal/config"
	"github.com/habat-tech/todrive/internal/credential"
	"github.com/habat-tech/todrive/internal/handler"
	"github.com/habat-tech/todrive/internal/telegram"
)

const testToken = "123:abc"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type botAPI struct {
	mu   sync.Mutex
	sent []string
}

func (b *botAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	switch r.URL.Path {
	case "/bot" + testToken + "/getMe":
		io.WriteString(w, `{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"Relay","username":"relay_bot"}}`)
	case "/bot" + testToken + "/sendMessage":
		r.ParseForm()
		b.mu.Lock()
		b.sent = append(b.sent, r.Form.Get("text"))
		b.mu.Unlock()
		io.WriteString(w, `{"ok":true,"result":{"message_id":2,"date":0,"chat":{"id":42,"type":"private"}}}`)
	default:
		http.NotFound(w, r)
	}
}

func devConfig() *config.Config {
	cfg := config.Default()
	cfg.DevMode = true
	cfg.Storage.Backend = config.BackendMemory
	cfg.Auth.Interactive = false
	return cfg
}

func newTestApp(t *testing.T, api *botAPI) *App {
	t.Helper()
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)
	t.Setenv("TELEGRAM_BOT_TOKEN", testToken)
	t.Setenv("TELEGRAM_WEBHOOK_SECRET", "hook-secret")

	a, err := NewApp(context.Background(), devConfig(), discardLogger(),
		WithTelegramOptions(telegram.WithEndpoints(srv.URL+"/bot%s/%s", srv.URL+"/file/bot%s/%s")))
	require.NoError(t, err)
	return a
}

func TestNewApp_WithoutTelegram(t *testing.T) {
	a, err := NewApp(context.Background(), devConfig(), discardLogger(), WithoutTelegram())
	require.NoError(t, err)

	assert.IsType(t, &credential.MemoryStore{}, a.Store)
	assert.NotNil(t, a.Manager)
	assert.Nil(t, a.Telegram)
	assert.Nil(t, a.Webhook)

	state, _, err := a.Manager.Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, auth.StateNoRecord, state)
}

func TestBuilder_LockerOutlastsConsentWait(t *testing.T) {
	cfg := devConfig()
	cfg.Auth.Timeout = 20 * time.Minute
	b := &builder{ctx: context.Background(), cfg: cfg, logger: discardLogger()}

	l, err := b.locker()
	require.NoError(t, err)

	before := time.Now()
	held, err := l.Acquire(context.Background(), "session", "a")
	require.NoError(t, err)
	assert.Greater(t, held.ExpiresAt, before.Add(cfg.Auth.Timeout).Unix())
}

func TestNewApp_FileBackend(t *testing.T) {
	dir := t.TempDir()
	cfg := devConfig()
	cfg.Storage.Backend = config.BackendFile
	cfg.Drive.SessionPath = dir + "/credentials.json"
	cfg.Drive.ClientConfigPath = dir + "/drive_credentials.json"
	cfg.Storage.KMSKeyID = "alias/todrive"

	a, err := NewApp(context.Background(), cfg, discardLogger(), WithoutTelegram())
	require.NoError(t, err)
	assert.IsType(t, &credential.FileStore{}, a.Store)
}

func TestHandleRequest_WebhookStart(t *testing.T) {
	api := &botAPI{}
	a := newTestApp(t, api)

	resp, err := a.HandleRequest(context.Background(), events.APIGatewayProxyRequest{
		HTTPMethod: http.MethodPost,
		Path:       "/api/webhook",
		Headers:    map[string]string{handler.SecretTokenHeader: "hook-secret"},
		Body: `{"update_id":1,"message":{"message_id":5,"date":0,"chat":{"id":42,"type":"private"},
			"text":"/start","entities":[{"type":"bot_command","offset":0,"length":6}]}}`,
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	api.mu.Lock()
	defer api.mu.Unlock()
	require.Len(t, api.sent, 1)
	assert.Contains(t, api.sent[0], "/uplode_json")
}

func TestHandleRequest_WebhookSecretEnforced(t *testing.T) {
	a := newTestApp(t, &botAPI{})

	resp, err := a.HandleRequest(context.Background(), events.APIGatewayProxyRequest{
		HTTPMethod: http.MethodPost,
		Path:       "/webhook",
		Body:       `{"update_id":1}`,
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestHandleRequest_Routes(t *testing.T) {
	a, err := NewApp(context.Background(), devConfig(), discardLogger(), WithoutTelegram())
	require.NoError(t, err)
	ctx := context.Background()

	resp, err := a.HandleRequest(ctx, events.APIGatewayProxyRequest{HTTPMethod: http.MethodGet, Path: "/healthz"})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = a.HandleRequest(ctx, events.APIGatewayProxyRequest{HTTPMethod: http.MethodPost, Path: "/webhook"})
	require.NoError(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	resp, err = a.HandleRequest(ctx, events.APIGatewayProxyRequest{HTTPMethod: http.MethodGet, Path: "/notes"})
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
