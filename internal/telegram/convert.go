package telegram

import (
	"encoding/json"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/habat-tech/todrive/internal/model"
)

// ToMessage converts a Bot API message. It returns nil for messages without a chat.
func ToMessage(m *tgbotapi.Message) *model.Message {
	if m == nil || m.Chat == nil {
		return nil
	}
	msg := &model.Message{
		ChatID:    m.Chat.ID,
		MessageID: m.MessageID,
		Text:      m.Text,
	}
	if m.IsCommand() {
		msg.Command = m.Command()
	}
	if v := m.Video; v != nil {
		msg.Video = &model.Attachment{
			FileID:   v.FileID,
			FileName: v.FileName,
			Kind:     model.AttachmentVideo,
			MimeType: v.MimeType,
			Size:     int64(v.FileSize),
		}
	}
	if d := m.Document; d != nil {
		msg.Document = &model.Attachment{
			FileID:   d.FileID,
			FileName: d.FileName,
			Kind:     model.AttachmentDocument,
			MimeType: d.MimeType,
			Size:     int64(d.FileSize),
		}
	}
	return msg
}

// DecodeUpdate parses a webhook request body.
func DecodeUpdate(body []byte) (*tgbotapi.Update, error) {
	var u tgbotapi.Update
	if err := json.Unmarshal(body, &u); err != nil {
		return nil, fmt.Errorf("telegram: decoding update: %w", err)
	}
	return &u, nil
}

// UpdateMessage returns the relay message carried by u, or nil. Edited
// messages and other update kinds are not relayed.
func UpdateMessage(u *tgbotapi.Update) *model.Message {
	if u == nil {
		return nil
	}
	return ToMessage(u.Message)
}
