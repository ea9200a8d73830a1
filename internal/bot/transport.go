package bot

import "context"

type InlineButton struct {
	Text string
	Data string
	URL  string
}

type InlineKeyboard struct {
	Rows [][]InlineButton
}

// Row appends a row and returns the keyboard for chaining.
func (k *InlineKeyboard) Row(buttons ...InlineButton) *InlineKeyboard {
	if len(buttons) > 0 {
		k.Rows = append(k.Rows, buttons)
	}
	return k
}

// Buttons flattens the keyboard in display order.
func (k *InlineKeyboard) Buttons() []InlineButton {
	if k == nil {
		return nil
	}
	out := []InlineButton{}
	for _, row := range k.Rows {
		out = append(out, row...)
	}
	return out
}

type ReplyKeyboard struct {
	Rows [][]string
}

type Message struct {
	Text        string
	Inline      *InlineKeyboard
	Reply       *ReplyKeyboard
	RemoveReply bool
}

type OutgoingMedia struct {
	Kind    MediaKind
	FileID  string
	Caption string
	Inline  *InlineKeyboard
}

// Transport is the chat platform as seen by the engine. Implementations
// never retry; the engine logs failures and moves on.
type Transport interface {
	SendMessage(ctx context.Context, chatID int64, msg Message) (int, error)
	SendMedia(ctx context.Context, chatID int64, media OutgoingMedia) (int, error)
	EditMessage(ctx context.Context, chatID int64, messageID int, msg Message) error
	EditKeyboard(ctx context.Context, chatID int64, messageID int, keyboard *InlineKeyboard) error
	DeleteMessage(ctx context.Context, chatID int64, messageID int) error
	CopyMessage(ctx context.Context, toChatID, fromChatID int64, messageID int) (int, error)
	ForwardMessage(ctx context.Context, toChatID, fromChatID int64, messageID int) (int, error)
	AnswerCallback(ctx context.Context, callbackID, text string, alert bool) error
	IsMember(ctx context.Context, channelID, userID int64) (bool, error)
}
