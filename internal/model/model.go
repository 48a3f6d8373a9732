package model

import "time"

// expirySkew treats a token as expired slightly early so an upload never
// starts with an access token that lapses mid-request.
const expirySkew = 30 * time.Second

// CredentialRecord is the persisted OAuth2 token bundle for the Drive account.
type CredentialRecord struct {
	CredentialID     string    `json:"-" dynamodbav:"credential_id"`
	AccessToken      string    `json:"access_token" dynamodbav:"access_token"`
	RefreshToken     string    `json:"refresh_token" dynamodbav:"refresh_token"`
	TokenType        string    `json:"token_type,omitempty" dynamodbav:"token_type"`
	ExpiresAt        time.Time `json:"expires_at" dynamodbav:"expires_at"`
	ClientConfigPath string    `json:"client_config_path,omitempty" dynamodbav:"client_config_path"`
	Account          string    `json:"account,omitempty" dynamodbav:"account"` // Google account email, best effort
	UpdatedAt        time.Time `json:"updated_at" dynamodbav:"updated_at"`
}

// Expired reports whether the access token has lapsed at now.
// A zero ExpiresAt never expires.
func (r *CredentialRecord) Expired(now time.Time) bool {
	if r.ExpiresAt.IsZero() {
		return false
	}
	return !now.Add(expirySkew).Before(r.ExpiresAt)
}

// AttachmentKind distinguishes Telegram video fields from generic documents.
type AttachmentKind string

const (
	AttachmentVideo    AttachmentKind = "video"
	AttachmentDocument AttachmentKind = "document"
)

// Attachment identifies an inbound file on a chat message.
type Attachment struct {
	FileID   string         `json:"file_id"`
	FileName string         `json:"file_name,omitempty"`
	Kind     AttachmentKind `json:"kind"`
	MimeType string         `json:"mime_type,omitempty"`
	Size     int64          `json:"size,omitempty"`
}

// Message is the subset of an inbound chat message the relay acts on.
type Message struct {
	ChatID    int64       `json:"chat_id"`
	MessageID int         `json:"message_id"`
	Text      string      `json:"text,omitempty"`
	Command   string      `json:"command,omitempty"` // without the leading slash
	Video     *Attachment `json:"video,omitempty"`
	Document  *Attachment `json:"document,omitempty"`
}

// Lease is a time-bounded exclusive claim on a named resource.
type Lease struct {
	Key       string `json:"lock_key" dynamodbav:"lock_key"`
	Owner     string `json:"owner" dynamodbav:"owner"`
	ExpiresAt int64  `json:"expires_at" dynamodbav:"expires_at"` // TTL (Unix timestamp)
}
