package googledrive

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/habat-tech/todrive/internal/adapter"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const uploadFields = "id, name, mimeType, size, webViewLink"

// quotaReasons are the googleapi error reasons Drive reports when the
// account or the per-user upload allowance is exhausted.
var quotaReasons = map[string]bool{
	"storageQuotaExceeded":       true,
	"quotaExceeded":              true,
	"teamDriveFileLimitExceeded": true,
}

// DriveAdapter implements adapter.Uploader for Google Drive. Uploads land in
// FolderID when it is set and in the Drive root otherwise.
type DriveAdapter struct {
	service  *drive.Service
	FolderID string
}

// NewDriveAdapter creates a new DriveAdapter.
// client should be an authenticated http.Client carrying the relay's Drive session.
func NewDriveAdapter(ctx context.Context, client *http.Client, folderID string) (*DriveAdapter, error) {
	srv, err := drive.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve Drive client: %w", err)
	}
	return &DriveAdapter{service: srv, FolderID: folderID}, nil
}

// Upload creates a Drive file titled req.Name and streams req.Content into it.
// Metadata and media go out in a single files.create call.
func (d *DriveAdapter) Upload(ctx context.Context, req adapter.UploadRequest) (*adapter.UploadResult, error) {
	f := &drive.File{
		Name:     req.Name,
		MimeType: req.MimeType,
	}
	if d.FolderID != "" {
		f.Parents = []string{d.FolderID}
	}

	var mediaOpts []googleapi.MediaOption
	if req.MimeType != "" {
		mediaOpts = append(mediaOpts, googleapi.ContentType(req.MimeType))
	}

	res, err := d.service.Files.Create(f).
		Media(req.Content, mediaOpts...).
		SupportsAllDrives(true).
		Fields(uploadFields).
		Context(ctx).
		Do()
	if err != nil {
		return nil, mapError(err)
	}

	return &adapter.UploadResult{
		FileID:      res.Id,
		Name:        res.Name,
		MIMEType:    res.MimeType,
		Size:        res.Size,
		WebViewLink: res.WebViewLink,
	}, nil
}

// mapError converts Drive API failures into adapter sentinels where one fits.
func mapError(err error) error {
	if isQuotaExceeded(err) {
		return fmt.Errorf("unable to upload file: %w: %v", adapter.ErrQuotaExceeded, err)
	}
	if isNotFound(err) {
		return fmt.Errorf("unable to upload file: %w: %v", adapter.ErrNotFound, err)
	}
	return fmt.Errorf("unable to upload file: %w", err)
}

func isQuotaExceeded(err error) bool {
	var gErr *googleapi.Error
	if !errors.As(err, &gErr) || gErr.Code != http.StatusForbidden {
		return false
	}
	for _, item := range gErr.Errors {
		if quotaReasons[item.Reason] {
			return true
		}
	}
	return false
}

func isNotFound(err error) bool {
	var gErr *googleapi.Error
	if errors.As(err, &gErr) {
		return gErr.Code == http.StatusNotFound
	}
	return false
}
