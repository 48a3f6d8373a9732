package adapter

import (
	"context"
	"net/http"
)

// UploaderProvider builds an Uploader bound to an authorized HTTP client.
type UploaderProvider interface {
	// NewUploader returns an Uploader that issues requests through client.
	NewUploader(ctx context.Context, client *http.Client) (Uploader, error)
}

// UploaderProviderFunc adapts a function to UploaderProvider.
type UploaderProviderFunc func(ctx context.Context, client *http.Client) (Uploader, error)

// NewUploader calls f.
func (f UploaderProviderFunc) NewUploader(ctx context.Context, client *http.Client) (Uploader, error) {
	return f(ctx, client)
}
