package handler

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/habat-tech/todrive/internal/adapter"
	"github.com/habat-tech/todrive/internal/auth"
	"github.com/habat-tech/todrive/internal/credential"
	"github.com/habat-tech/todrive/internal/model"
	"github.com/habat-tech/todrive/internal/telegram"
	"github.com/habat-tech/todrive/internal/transfer"
)

const (
	textStart = "Hello! Send me a video (or a video file) and I will upload it to Google Drive.\n" +
		"To upload the Google Drive credentials file (JSON), use /uplode_json."
	textUploadJSON         = "Please send the JSON file with your Google Drive OAuth client credentials now."
	textClientConfigSaved  = "The JSON file was uploaded and saved."
	textDownloaded         = "Video downloaded, uploading to Google Drive..."
	textUploaded           = "The video was uploaded to Google Drive."
	textConsentFormat      = "Google Drive needs your permission. Open this link to authorize access:\n%s"
	textStatusUnavailable  = "Could not read the credential status. Check the server logs."
	textDownloadFailed     = "Could not download the file from Telegram."
	textFileTooLarge       = "The file is too large for the bot to download (Telegram limits bots to 20 MB)."
	textNoClientConfig     = "Google Drive is not configured yet. Send the OAuth client JSON file first (see /uplode_json)."
	textInvalidConfig      = "The stored OAuth client JSON file is not valid. Send a new one (see /uplode_json)."
	textInteractiveMissing = "Google Drive authorization is required. Run `todrive login` on the server, then send the video again."
	textAuthFailed         = "Could not authorize with Google Drive."
	textQuotaExceeded      = "The upload failed: the Google Drive storage quota is exceeded."
	textUploadFailed       = "The upload to Google Drive failed."
	textPersistFailed      = "Could not save the JSON file."
	textUnexpected         = "Something went wrong while handling your message."
)

// errorText maps a relay failure to the reply the user sees.
func errorText(err error) string {
	kind, _ := transfer.KindOf(err)
	switch kind {
	case transfer.KindDownload:
		if errors.Is(err, telegram.ErrFileTooLarge) {
			return textFileTooLarge
		}
		return textDownloadFailed
	case transfer.KindAuthorization:
		switch {
		case errors.Is(err, credential.ErrNoClientConfig):
			return textNoClientConfig
		case errors.Is(err, auth.ErrInvalidClientConfig):
			return textInvalidConfig
		case errors.Is(err, auth.ErrInteractiveUnavailable):
			return textInteractiveMissing
		}
		return textAuthFailed
	case transfer.KindUpload:
		if errors.Is(err, adapter.ErrQuotaExceeded) {
			return textQuotaExceeded
		}
		return textUploadFailed
	case transfer.KindPersist:
		return textPersistFailed
	default:
		return textUnexpected
	}
}

func uploadedText(res *adapter.UploadResult) string {
	var b strings.Builder
	b.WriteString(textUploaded)
	if res.Name != "" {
		fmt.Fprintf(&b, "\nName: %s", res.Name)
	}
	if res.WebViewLink != "" {
		fmt.Fprintf(&b, "\n%s", res.WebViewLink)
	}
	return b.String()
}

func statusText(configured bool, state auth.State, rec *model.CredentialRecord, now time.Time) string {
	var b strings.Builder
	if configured {
		b.WriteString("OAuth client: configured\n")
	} else {
		b.WriteString("OAuth client: missing (send it with /uplode_json)\n")
	}

	switch state {
	case auth.StateNoRecord:
		b.WriteString("Drive session: not authorized")
		return b.String()
	case auth.StateRecordLoadedExpired:
		b.WriteString("Drive session: expired, refreshes on the next upload")
	default:
		if rec == nil || rec.ExpiresAt.IsZero() {
			b.WriteString("Drive session: valid")
		} else {
			fmt.Fprintf(&b, "Drive session: valid for %s", rec.ExpiresAt.Sub(now).Round(time.Minute))
		}
	}
	if rec != nil && rec.Account != "" {
		fmt.Fprintf(&b, "\nAccount: %s", rec.Account)
	}
	return b.String()
}
