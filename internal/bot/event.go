package bot

import "strings"

type EventKind string

const (
	EventCommand     EventKind = "command"
	EventText        EventKind = "text"
	EventButton      EventKind = "button"
	EventMedia       EventKind = "media"
	EventJoinRequest EventKind = "join_request"
)

type MediaKind string

const (
	MediaPhoto MediaKind = "photo"
	MediaVideo MediaKind = "video"
	MediaOther MediaKind = "other"
)

// Media is an attachment referenced by its transport file id.
type Media struct {
	Kind   MediaKind
	FileID string
	// Duration is the clip length in seconds, videos only.
	Duration int
}

// Event is one inbound interaction, already stripped of transport details.
type Event struct {
	Kind      EventKind
	UpdateID  int
	UserID    int64
	ChatID    int64
	FirstName string
	Username  string
	// Text holds the message text, the command line or the media caption.
	Text string
	// Data is the callback token of a button press.
	Data string
	// MessageID is the message the event came from, or the message the
	// pressed button is attached to.
	MessageID  int
	CallbackID string
	Media      *Media
	// ChannelID is set for join requests.
	ChannelID int64
}

// Command splits "/start 42" into ("start", "42").
func (e Event) Command() (string, string) {
	text := strings.TrimSpace(e.Text)
	if !strings.HasPrefix(text, "/") {
		return "", ""
	}
	name, payload, _ := strings.Cut(text[1:], " ")
	// "/start@animegate_bot" addresses the bot explicitly in groups
	name, _, _ = strings.Cut(name, "@")
	return strings.ToLower(name), strings.TrimSpace(payload)
}

func (e Event) chatID() int64 {
	if e.ChatID != 0 {
		return e.ChatID
	}
	return e.UserID
}
