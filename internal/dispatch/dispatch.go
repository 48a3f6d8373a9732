// Package dispatch decides what an inbound message asks the relay to do.
package dispatch

import (
	"strings"

	"github.com/habat-tech/todrive/internal/model"
)

// Kind is the routing decision for a message.
type Kind int

const (
	Ignored Kind = iota
	CredentialPayload
	MediaPayload
)

func (k Kind) String() string {
	switch k {
	case CredentialPayload:
		return "credential_payload"
	case MediaPayload:
		return "media_payload"
	default:
		return "ignored"
	}
}

// credentialSuffix marks a document as an OAuth client configuration.
const credentialSuffix = ".json"

// Classify routes msg. The first matching rule wins: no attachment is
// ignored, a document named *.json is a credential payload, and any other
// video or document is media.
func Classify(msg *model.Message) Kind {
	if msg == nil || (msg.Video == nil && msg.Document == nil) {
		return Ignored
	}
	if msg.Document != nil && IsCredentialFile(msg.Document.FileName) {
		return CredentialPayload
	}
	return MediaPayload
}

// IsCredentialFile reports whether name carries the credential suffix, ignoring case.
func IsCredentialFile(name string) bool {
	return strings.HasSuffix(strings.ToLower(name), credentialSuffix)
}

// Payload returns the attachment Classify acted on. A video wins over a
// document for media; a credential payload is always the document.
func Payload(msg *model.Message) *model.Attachment {
	switch Classify(msg) {
	case CredentialPayload:
		return msg.Document
	case MediaPayload:
		if msg.Video != nil {
			return msg.Video
		}
		return msg.Document
	default:
		return nil
	}
}
