// Package credential persists the Drive session record and the OAuth2 client
// configuration uploaded through chat.
package credential

import (
	"context"
	"errors"

	"github.com/habat-tech/todrive/internal/model"
)

// ErrNoClientConfig is returned when no OAuth2 client configuration has been uploaded yet.
var ErrNoClientConfig = errors.New("no client configuration stored")

// SessionStore loads and saves the process-wide credential record.
type SessionStore interface {
	// Load returns the stored record, or (nil, nil) when there is none or it
	// cannot be parsed. Only storage I/O failures are returned as errors.
	Load(ctx context.Context) (*model.CredentialRecord, error)

	// Save overwrites the stored record.
	Save(ctx context.Context, rec *model.CredentialRecord) error
}

// ClientConfigStore holds the raw OAuth2 client configuration file.
type ClientConfigStore interface {
	// PutClientConfig replaces the stored configuration with data.
	PutClientConfig(ctx context.Context, data []byte) error

	// ClientConfig returns the stored configuration or ErrNoClientConfig.
	ClientConfig(ctx context.Context) ([]byte, error)
}

// Store is implemented by every backend in this package.
type Store interface {
	SessionStore
	ClientConfigStore
}

// usable reports whether rec carries any token at all.
func usable(rec *model.CredentialRecord) bool {
	return rec != nil && (rec.AccessToken != "" || rec.RefreshToken != "")
}
