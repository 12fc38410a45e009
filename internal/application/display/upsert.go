package display

import (
	"context"
	"errors"

	"github.com/ZIKOpl/ZIKO-SHOP/internal/domain/chat"
)

// EditOrSend edits messageID in place. When there is no recorded id, or the
// platform no longer knows it, a new message is sent instead. It returns the
// id of the live message.
func EditOrSend(ctx context.Context, m chat.Messenger, channelID, messageID string, msg chat.Message) (string, error) {
	if messageID != "" {
		err := m.Edit(ctx, channelID, messageID, msg)
		if err == nil {
			return messageID, nil
		}
		if !errors.Is(err, chat.ErrMessageNotFound) {
			return "", err
		}
	}
	return m.Send(ctx, channelID, msg)
}
