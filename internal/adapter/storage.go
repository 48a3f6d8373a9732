package adapter

import (
	"context"
	"io"
)

// UploadRequest describes one local file to push to cloud storage.
type UploadRequest struct {
	Name     string    // title of the remote entry
	MimeType string    // optional; the provider sniffs content when empty
	Content  io.Reader // local bytes
}

// UploadResult identifies the remote entry created by an upload.
type UploadResult struct {
	FileID      string `json:"id"`
	Name        string `json:"name"`
	MIMEType    string `json:"mimeType"`
	Size        int64  `json:"size"`
	WebViewLink string `json:"webViewLink,omitempty"`
}

// Uploader creates remote file entries.
// This abstraction keeps the transfer pipeline independent of Google Drive so
// tests and DEV_MODE can run against an in-memory store.
type Uploader interface {
	// Upload creates a new remote entry titled req.Name with req.Content as its body.
	Upload(ctx context.Context, req UploadRequest) (*UploadResult, error)
}
