package googledrive

import (
	"context"
	"fmt"
	"net/http"

	"github.com/habat-tech/todrive/internal/adapter"
)

// Provider implements adapter.UploaderProvider for Google Drive.
type Provider struct {
	folderID string
}

// NewProvider creates a new Google Drive provider. Uploads land in folderID,
// or in the Drive root when it is empty.
func NewProvider(folderID string) *Provider {
	return &Provider{folderID: folderID}
}

// NewUploader returns a DriveAdapter issuing requests through client.
func (p *Provider) NewUploader(ctx context.Context, client *http.Client) (adapter.Uploader, error) {
	storage, err := NewDriveAdapter(ctx, client, p.folderID)
	if err != nil {
		return nil, fmt.Errorf("failed to create drive adapter: %w", err)
	}
	return storage, nil
}
