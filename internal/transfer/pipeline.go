// Package transfer moves one chat attachment to Drive through a local
// staging copy.
package transfer

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/habat-tech/todrive/internal/adapter"
	"github.com/habat-tech/todrive/internal/auth"
	"github.com/habat-tech/todrive/internal/model"
)

const (
	stagingPrefix    = "todrive-"
	defaultExtension = ".mp4"
	maxExtensionLen  = 10
)

// Fetcher downloads a chat attachment to a local path.
type Fetcher interface {
	DownloadToPath(ctx context.Context, fileID, path string) (int64, error)
}

// SessionProvider yields an authorized Drive session.
type SessionProvider interface {
	ObtainSession(ctx context.Context) (*auth.Session, error)
}

// Stage is a progress point reported during a transfer.
type Stage int

const (
	StageDownloaded Stage = iota + 1
	StageUploaded
)

// ProgressFunc receives progress notes. It may be nil.
type ProgressFunc func(ctx context.Context, stage Stage)

// Pipeline relays attachments.
type Pipeline struct {
	fetcher   Fetcher
	sessions  SessionProvider
	uploaders adapter.UploaderProvider
	logger    *slog.Logger
	tempDir   string
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithTempDir stages files under dir instead of os.TempDir.
func WithTempDir(dir string) Option {
	return func(p *Pipeline) { p.tempDir = dir }
}

// NewPipeline creates a Pipeline.
func NewPipeline(fetcher Fetcher, sessions SessionProvider, uploaders adapter.UploaderProvider, logger *slog.Logger, opts ...Option) *Pipeline {
	p := &Pipeline{
		fetcher:   fetcher,
		sessions:  sessions,
		uploaders: uploaders,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// UploadMedia downloads att, obtains a session and uploads the staging copy
// to Drive under the staging file's base name. The staging copy is removed
// on every path. Failures are *Error values tagged with the failing stage.
func (p *Pipeline) UploadMedia(ctx context.Context, att *model.Attachment, progress ProgressFunc) (*adapter.UploadResult, error) {
	transferID := uuid.NewString()
	logger := p.logger.With(
		slog.String("transfer_id", transferID),
		slog.String("file_id", att.FileID),
		slog.String("kind", string(att.Kind)),
	)

	path, err := p.stage(transferID, StagingExtension(att))
	if err != nil {
		return nil, Wrap(KindDownload, err)
	}
	defer func() {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			logger.Warn("failed to remove staging copy", slog.String("path", path), slog.String("error", err.Error()))
		}
	}()

	n, err := p.fetcher.DownloadToPath(ctx, att.FileID, path)
	if err != nil {
		return nil, Wrap(KindDownload, err)
	}
	logger.Info("attachment downloaded", slog.Int64("bytes", n), slog.String("path", path))
	notify(ctx, progress, StageDownloaded)

	sess, err := p.sessions.ObtainSession(ctx)
	if err != nil {
		return nil, Wrap(KindAuthorization, err)
	}

	res, err := p.upload(ctx, sess, path, att.MimeType)
	if err != nil {
		return nil, Wrap(KindUpload, err)
	}
	logger.Info("uploaded to drive",
		slog.String("drive_file_id", res.FileID),
		slog.String("name", res.Name),
	)
	notify(ctx, progress, StageUploaded)
	return res, nil
}

func (p *Pipeline) upload(ctx context.Context, sess *auth.Session, path, mimeType string) (*adapter.UploadResult, error) {
	uploader, err := p.uploaders.NewUploader(ctx, sess.Client)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening staging copy: %w", err)
	}
	defer f.Close()

	return uploader.Upload(ctx, adapter.UploadRequest{
		Name:     filepath.Base(path),
		MimeType: mimeType,
		Content:  f,
	})
}

// stage creates an empty, exclusively owned staging file.
func (p *Pipeline) stage(id, ext string) (string, error) {
	dir := p.tempDir
	if dir == "" {
		dir = os.TempDir()
	}
	path := filepath.Join(dir, stagingPrefix+id+ext)
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return "", fmt.Errorf("creating staging copy: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("creating staging copy: %w", err)
	}
	return path, nil
}

// StagingExtension picks the staging suffix: videos are .mp4, documents keep
// their own extension when it looks sane.
func StagingExtension(att *model.Attachment) string {
	if att.Kind == model.AttachmentVideo {
		return defaultExtension
	}
	ext := filepath.Ext(att.FileName)
	if len(ext) < 2 || len(ext) > maxExtensionLen || strings.ContainsAny(ext, `/\ `) {
		return defaultExtension
	}
	return strings.ToLower(ext)
}

func notify(ctx context.Context, fn ProgressFunc, stage Stage) {
	if fn != nil {
		fn(ctx, stage)
	}
}
