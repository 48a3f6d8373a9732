package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/habat-tech/todrive/internal/adapter"
	"github.com/habat-tech/todrive/internal/adapter/memory"
	"github.com/habat-tech/todrive/internal/auth"
	"github.com/habat-tech/todrive/internal/credential"
	"github.com/habat-tech/todrive/internal/model"
	"github.com/habat-tech/todrive/internal/telegram"
	"github.com/habat-tech/todrive/internal/transfer"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type reply struct {
	chatID  int64
	replyTo int
	text    string
}

// fakeMessenger serves downloads from an in-memory file map and records replies.
type fakeMessenger struct {
	mu          sync.Mutex
	files       map[string][]byte
	downloadErr error
	replies     []reply
	downloads   []string
}

func (f *fakeMessenger) ReplyText(_ context.Context, chatID int64, replyTo int, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replies = append(f.replies, reply{chatID, replyTo, text})
	return nil
}

func (f *fakeMessenger) DownloadToPath(_ context.Context, fileID, path string) (int64, error) {
	f.mu.Lock()
	f.downloads = append(f.downloads, path)
	f.mu.Unlock()
	if f.downloadErr != nil {
		return 0, f.downloadErr
	}
	data, ok := f.files[fileID]
	if !ok {
		return 0, fmt.Errorf("file %s not found", fileID)
	}
	return int64(len(data)), os.WriteFile(path, data, 0o600)
}

func (f *fakeMessenger) texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.replies))
	for i, r := range f.replies {
		out[i] = r.text
	}
	return out
}

type fakeMedia struct {
	calls int
	res   *adapter.UploadResult
	err   error
}

func (f *fakeMedia) UploadMedia(ctx context.Context, _ *model.Attachment, progress transfer.ProgressFunc) (*adapter.UploadResult, error) {
	f.calls++
	if progress != nil {
		progress(ctx, transfer.StageDownloaded)
	}
	return f.res, f.err
}

type fakeStatus struct {
	state auth.State
	rec   *model.CredentialRecord
	err   error
}

func (f fakeStatus) Status(context.Context) (auth.State, *model.CredentialRecord, error) {
	return f.state, f.rec, f.err
}

func TestHandleMessage_Commands(t *testing.T) {
	tests := []struct {
		command string
		want    string
	}{
		{CommandStart, textStart},
		{CommandUploadJSON, textUploadJSON},
	}
	for _, tt := range tests {
		t.Run(tt.command, func(t *testing.T) {
			m := &fakeMessenger{}
			h := NewBotHandler(m, credential.NewMemoryStore(), &fakeMedia{}, fakeStatus{}, t.TempDir(), discardLogger())

			h.HandleMessage(context.Background(), &model.Message{ChatID: 1, MessageID: 2, Command: tt.command})

			require.Len(t, m.replies, 1)
			assert.Equal(t, reply{1, 2, tt.want}, m.replies[0])
		})
	}
}

func TestHandleMessage_Status(t *testing.T) {
	store := credential.NewMemoryStore()
	require.NoError(t, store.PutClientConfig(context.Background(), []byte(`{}`)))
	m := &fakeMessenger{}
	status := fakeStatus{
		state: auth.StateRecordLoadedValid,
		rec:   &model.CredentialRecord{ExpiresAt: time.Now().Add(2 * time.Hour), Account: "owner@example.com"},
	}
	h := NewBotHandler(m, store, &fakeMedia{}, status, t.TempDir(), discardLogger())

	h.HandleMessage(context.Background(), &model.Message{ChatID: 1, Command: CommandStatus})

	texts := m.texts()
	require.Len(t, texts, 1)
	assert.Contains(t, texts[0], "OAuth client: configured")
	assert.Contains(t, texts[0], "Drive session: valid for")
	assert.Contains(t, texts[0], "owner@example.com")
}

func TestHandleMessage_StatusWithoutConfig(t *testing.T) {
	m := &fakeMessenger{}
	h := NewBotHandler(m, credential.NewMemoryStore(), &fakeMedia{}, fakeStatus{state: auth.StateNoRecord}, t.TempDir(), discardLogger())

	h.HandleMessage(context.Background(), &model.Message{ChatID: 1, Command: CommandStatus})

	texts := m.texts()
	require.Len(t, texts, 1)
	assert.Contains(t, texts[0], "OAuth client: missing")
	assert.Contains(t, texts[0], "not authorized")
}

// An uppercase .JSON document lands at the client-config path, gets the
// saved reply, and never touches the upload pipeline.
func TestHandleMessage_CredentialFileIsStored(t *testing.T) {
	dir := t.TempDir()
	clientPath := filepath.Join(dir, "drive_credentials.json")
	store := credential.NewFileStore(filepath.Join(dir, "credentials.json"), clientPath, nil, discardLogger())
	payload := []byte(`{"installed":{"client_id":"abc"}}`)

	m := &fakeMessenger{files: map[string][]byte{"doc-1": payload}}
	media := &fakeMedia{}
	h := NewBotHandler(m, store, media, fakeStatus{}, dir, discardLogger())

	h.HandleMessage(context.Background(), &model.Message{
		ChatID:    7,
		MessageID: 8,
		Document:  &model.Attachment{FileID: "doc-1", FileName: "creds.JSON", Kind: model.AttachmentDocument},
	})

	data, err := os.ReadFile(clientPath)
	require.NoError(t, err)
	assert.Equal(t, payload, data)
	assert.Equal(t, []string{textClientConfigSaved}, m.texts())
	assert.Zero(t, media.calls)

	// The download scratch file is gone.
	require.Len(t, m.downloads, 1)
	_, err = os.Stat(m.downloads[0])
	assert.True(t, os.IsNotExist(err))
}

func TestHandleMessage_CredentialFileOverwrites(t *testing.T) {
	store := credential.NewMemoryStore()
	m := &fakeMessenger{files: map[string][]byte{"old": []byte("old"), "new": []byte("new")}}
	h := NewBotHandler(m, store, &fakeMedia{}, fakeStatus{}, t.TempDir(), discardLogger())
	ctx := context.Background()

	for _, id := range []string{"old", "new", "new"} {
		h.HandleMessage(ctx, &model.Message{ChatID: 1, Document: &model.Attachment{FileID: id, FileName: "c.json"}})
	}

	data, err := store.ClientConfig(ctx)
	require.NoError(t, err)
	assert.Equal(t, []byte("new"), data)
}

func TestHandleMessage_CredentialDownloadFails(t *testing.T) {
	store := credential.NewMemoryStore()
	m := &fakeMessenger{downloadErr: errors.New("network down")}
	h := NewBotHandler(m, store, &fakeMedia{}, fakeStatus{}, t.TempDir(), discardLogger())

	h.HandleMessage(context.Background(), &model.Message{ChatID: 1, Document: &model.Attachment{FileID: "x", FileName: "c.json"}})

	assert.Equal(t, []string{textDownloadFailed}, m.texts())
	_, err := store.ClientConfig(context.Background())
	assert.ErrorIs(t, err, credential.ErrNoClientConfig)
}

type failingConfigStore struct{ credential.ClientConfigStore }

func (failingConfigStore) PutClientConfig(context.Context, []byte) error {
	return errors.New("disk full")
}

func TestHandleMessage_CredentialPersistFails(t *testing.T) {
	m := &fakeMessenger{files: map[string][]byte{"x": []byte("{}")}}
	h := NewBotHandler(m, failingConfigStore{credential.NewMemoryStore()}, &fakeMedia{}, fakeStatus{}, t.TempDir(), discardLogger())

	h.HandleMessage(context.Background(), &model.Message{ChatID: 1, Document: &model.Attachment{FileID: "x", FileName: "c.json"}})

	assert.Equal(t, []string{textPersistFailed}, m.texts())
}

func TestHandleMessage_MediaSuccess(t *testing.T) {
	m := &fakeMessenger{}
	media := &fakeMedia{res: &adapter.UploadResult{FileID: "d1", Name: "todrive-1.mp4", WebViewLink: "https://drive.example/d1"}}
	h := NewBotHandler(m, credential.NewMemoryStore(), media, fakeStatus{}, t.TempDir(), discardLogger())

	h.HandleMessage(context.Background(), &model.Message{ChatID: 1, Video: &model.Attachment{FileID: "v", Kind: model.AttachmentVideo}})

	texts := m.texts()
	require.Len(t, texts, 2)
	assert.Equal(t, textDownloaded, texts[0])
	assert.Contains(t, texts[1], textUploaded)
	assert.Contains(t, texts[1], "todrive-1.mp4")
	assert.Contains(t, texts[1], "https://drive.example/d1")
}

func TestHandleMessage_IgnoresPlainText(t *testing.T) {
	m := &fakeMessenger{}
	media := &fakeMedia{}
	h := NewBotHandler(m, credential.NewMemoryStore(), media, fakeStatus{}, t.TempDir(), discardLogger())

	h.HandleMessage(context.Background(), &model.Message{ChatID: 1, Text: "hello"})

	assert.Empty(t, m.replies)
	assert.Zero(t, media.calls)
}

// End to end through the real pipeline with no client config: the video is
// downloaded, authorization fails, and the user is told to send the JSON.
func TestHandleMessage_MediaWithoutClientConfig(t *testing.T) {
	dir := t.TempDir()
	store := credential.NewMemoryStore()
	m := &fakeMessenger{files: map[string][]byte{"v": []byte("video")}}
	manager := auth.NewManager(store, store, auth.HeadlessAuthorizer{}, discardLogger())
	pipeline := transfer.NewPipeline(m, manager, memory.NewMemoryAdapter(), discardLogger(), transfer.WithTempDir(dir))
	h := NewBotHandler(m, store, pipeline, manager, dir, discardLogger())

	h.HandleMessage(context.Background(), &model.Message{ChatID: 1, Video: &model.Attachment{FileID: "v", Kind: model.AttachmentVideo}})

	assert.Equal(t, []string{textDownloaded, textNoClientConfig}, m.texts())
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestErrorText(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"download", transfer.Wrap(transfer.KindDownload, errors.New("x")), textDownloadFailed},
		{"too large", transfer.Wrap(transfer.KindDownload, fmt.Errorf("w: %w", telegram.ErrFileTooLarge)), textFileTooLarge},
		{"no client config", transfer.Wrap(transfer.KindAuthorization, credential.ErrNoClientConfig), textNoClientConfig},
		{"invalid client config", transfer.Wrap(transfer.KindAuthorization, auth.ErrInvalidClientConfig), textInvalidConfig},
		{"headless", transfer.Wrap(transfer.KindAuthorization, auth.ErrInteractiveUnavailable), textInteractiveMissing},
		{"auth other", transfer.Wrap(transfer.KindAuthorization, errors.New("x")), textAuthFailed},
		{"quota", transfer.Wrap(transfer.KindUpload, adapter.ErrQuotaExceeded), textQuotaExceeded},
		{"upload", transfer.Wrap(transfer.KindUpload, errors.New("x")), textUploadFailed},
		{"persist", transfer.Wrap(transfer.KindPersist, errors.New("x")), textPersistFailed},
		{"untagged", errors.New("x"), textUnexpected},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, errorText(tt.err))
		})
	}
}
