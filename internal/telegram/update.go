package telegram

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/smallbiznis/animegate/internal/bot"
)

// allowedUpdates limits delivery to the update types ToEvent understands.
var allowedUpdates = []string{"message", "callback_query", "chat_join_request"}

// ToEvent classifies an update. ok is false for updates the engine ignores,
// such as group chatter or channel posts.
func ToEvent(u tgbotapi.Update) (bot.Event, bool) {
	switch {
	case u.CallbackQuery != nil:
		return callbackEvent(u.UpdateID, u.CallbackQuery)
	case u.ChatJoinRequest != nil:
		req := u.ChatJoinRequest
		return bot.Event{
			Kind:      bot.EventJoinRequest,
			UpdateID:  u.UpdateID,
			UserID:    req.From.ID,
			FirstName: req.From.FirstName,
			Username:  req.From.UserName,
			ChannelID: req.Chat.ID,
		}, true
	case u.Message != nil:
		return messageEvent(u.UpdateID, u.Message)
	default:
		return bot.Event{}, false
	}
}

func callbackEvent(updateID int, q *tgbotapi.CallbackQuery) (bot.Event, bool) {
	if q.From == nil {
		return bot.Event{}, false
	}
	ev := bot.Event{
		Kind:       bot.EventButton,
		UpdateID:   updateID,
		UserID:     q.From.ID,
		FirstName:  q.From.FirstName,
		Username:   q.From.UserName,
		Data:       q.Data,
		CallbackID: q.ID,
	}
	if q.Message != nil {
		ev.MessageID = q.Message.MessageID
		if q.Message.Chat != nil {
			ev.ChatID = q.Message.Chat.ID
		}
	}
	return ev, true
}

func messageEvent(updateID int, m *tgbotapi.Message) (bot.Event, bool) {
	if m.From == nil || m.Chat == nil || !m.Chat.IsPrivate() {
		return bot.Event{}, false
	}
	ev := bot.Event{
		Kind:      bot.EventText,
		UpdateID:  updateID,
		UserID:    m.From.ID,
		ChatID:    m.Chat.ID,
		FirstName: m.From.FirstName,
		Username:  m.From.UserName,
		Text:      m.Text,
		MessageID: m.MessageID,
	}

	switch {
	case len(m.Photo) > 0:
		// sizes are ordered, the last one is the original
		largest := m.Photo[len(m.Photo)-1]
		ev.Kind = bot.EventMedia
		ev.Text = m.Caption
		ev.Media = &bot.Media{Kind: bot.MediaPhoto, FileID: largest.FileID}
	case m.Video != nil:
		ev.Kind = bot.EventMedia
		ev.Text = m.Caption
		ev.Media = &bot.Media{Kind: bot.MediaVideo, FileID: m.Video.FileID, Duration: m.Video.Duration}
	case m.IsCommand():
		ev.Kind = bot.EventCommand
	case m.Text == "":
		// stickers, documents, voice notes: only a broadcast source can use them
		ev.Kind = bot.EventMedia
		ev.Text = m.Caption
		ev.Media = &bot.Media{Kind: bot.MediaOther}
	}
	return ev, true
}
