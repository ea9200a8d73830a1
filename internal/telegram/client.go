package telegram

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/smallbiznis/animegate/internal/bot"
	"github.com/smallbiznis/animegate/internal/config"
	"go.uber.org/zap"
)

var ErrMissingToken = errors.New("telegram_token_missing")

// NewBotAPI authorizes the bot token against the Bot API.
func NewBotAPI(cfg config.Config, log *zap.Logger) (*tgbotapi.BotAPI, error) {
	return newBotAPI(cfg, tgbotapi.APIEndpoint, log)
}

func newBotAPI(cfg config.Config, endpoint string, log *zap.Logger) (*tgbotapi.BotAPI, error) {
	token := strings.TrimSpace(cfg.Telegram.Token)
	if token == "" {
		return nil, ErrMissingToken
	}
	// long polls hold the request open for PollTimeout seconds
	httpClient := &http.Client{Timeout: time.Duration(cfg.Telegram.PollTimeout+15) * time.Second}
	api, err := tgbotapi.NewBotAPIWithClient(token, endpoint, httpClient)
	if err != nil {
		return nil, fmt.Errorf("telegram authorize: %w", err)
	}
	api.Debug = cfg.Telegram.Debug
	if err := tgbotapi.SetLogger(zap.NewStdLog(log.Named("telegram.api"))); err != nil {
		return nil, err
	}
	log.Info("telegram bot authorized", zap.String("username", api.Self.UserName))
	return api, nil
}

// Client implements bot.Transport on top of the Bot API.
type Client struct {
	api *tgbotapi.BotAPI
	log *zap.Logger
}

func NewClient(api *tgbotapi.BotAPI, log *zap.Logger) *Client {
	return &Client{api: api, log: log.Named("telegram.client")}
}

func (c *Client) SendMessage(ctx context.Context, chatID int64, msg bot.Message) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	out := tgbotapi.NewMessage(chatID, msg.Text)
	out.ReplyMarkup = replyMarkup(msg)
	sent, err := c.api.Send(out)
	if err != nil {
		return 0, fmt.Errorf("send message: %w", err)
	}
	return sent.MessageID, nil
}

func (c *Client) SendMedia(ctx context.Context, chatID int64, media bot.OutgoingMedia) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	file := tgbotapi.FileID(media.FileID)
	var out tgbotapi.Chattable
	switch media.Kind {
	case bot.MediaVideo:
		video := tgbotapi.NewVideo(chatID, file)
		video.Caption = media.Caption
		if media.Inline != nil {
			video.ReplyMarkup = inlineMarkup(media.Inline)
		}
		out = video
	default:
		photo := tgbotapi.NewPhoto(chatID, file)
		photo.Caption = media.Caption
		if media.Inline != nil {
			photo.ReplyMarkup = inlineMarkup(media.Inline)
		}
		out = photo
	}
	sent, err := c.api.Send(out)
	if err != nil {
		return 0, fmt.Errorf("send %s: %w", media.Kind, err)
	}
	return sent.MessageID, nil
}

func (c *Client) EditMessage(ctx context.Context, chatID int64, messageID int, msg bot.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	edit := tgbotapi.NewEditMessageText(chatID, messageID, msg.Text)
	if msg.Inline != nil {
		markup := inlineMarkup(msg.Inline)
		edit.ReplyMarkup = &markup
	}
	return c.request("edit message", edit)
}

func (c *Client) EditKeyboard(ctx context.Context, chatID int64, messageID int, keyboard *bot.InlineKeyboard) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.request("edit keyboard", tgbotapi.NewEditMessageReplyMarkup(chatID, messageID, inlineMarkup(keyboard)))
}

func (c *Client) DeleteMessage(ctx context.Context, chatID int64, messageID int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.request("delete message", tgbotapi.NewDeleteMessage(chatID, messageID))
}

func (c *Client) CopyMessage(ctx context.Context, toChatID, fromChatID int64, messageID int) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	copied, err := c.api.CopyMessage(tgbotapi.NewCopyMessage(toChatID, fromChatID, messageID))
	if err != nil {
		return 0, fmt.Errorf("copy message: %w", err)
	}
	return copied.MessageID, nil
}

func (c *Client) ForwardMessage(ctx context.Context, toChatID, fromChatID int64, messageID int) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	sent, err := c.api.Send(tgbotapi.NewForward(toChatID, fromChatID, messageID))
	if err != nil {
		return 0, fmt.Errorf("forward message: %w", err)
	}
	return sent.MessageID, nil
}

func (c *Client) AnswerCallback(ctx context.Context, callbackID, text string, alert bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	cfg := tgbotapi.NewCallback(callbackID, text)
	if alert {
		cfg = tgbotapi.NewCallbackWithAlert(callbackID, text)
	}
	return c.request("answer callback", cfg)
}

// IsMember reports live channel membership. Restricted users still count
// when they have not left the chat.
func (c *Client) IsMember(ctx context.Context, channelID, userID int64) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	member, err := c.api.GetChatMember(tgbotapi.GetChatMemberConfig{
		ChatConfigWithUser: tgbotapi.ChatConfigWithUser{ChatID: channelID, UserID: userID},
	})
	if err != nil {
		if isAPIError(err, "user not found") {
			return false, nil
		}
		return false, fmt.Errorf("get chat member: %w", err)
	}
	switch member.Status {
	case "creator", "administrator", "member":
		return true, nil
	case "restricted":
		return member.IsMember, nil
	default:
		return false, nil
	}
}

func (c *Client) request(op string, cfg tgbotapi.Chattable) error {
	_, err := c.api.Request(cfg)
	if err == nil {
		return nil
	}
	// editing a message into its current content is not a failure
	if isAPIError(err, "message is not modified") {
		return nil
	}
	return fmt.Errorf("%s: %w", op, err)
}

func isAPIError(err error, fragment string) bool {
	var apiErr *tgbotapi.Error
	if !errors.As(err, &apiErr) {
		return false
	}
	return strings.Contains(strings.ToLower(apiErr.Message), fragment)
}

func replyMarkup(msg bot.Message) any {
	switch {
	case msg.Inline != nil:
		return inlineMarkup(msg.Inline)
	case msg.Reply != nil:
		rows := make([][]tgbotapi.KeyboardButton, 0, len(msg.Reply.Rows))
		for _, labels := range msg.Reply.Rows {
			row := make([]tgbotapi.KeyboardButton, 0, len(labels))
			for _, label := range labels {
				row = append(row, tgbotapi.NewKeyboardButton(label))
			}
			rows = append(rows, row)
		}
		kb := tgbotapi.NewReplyKeyboard(rows...)
		kb.ResizeKeyboard = true
		return kb
	case msg.RemoveReply:
		return tgbotapi.NewRemoveKeyboard(false)
	default:
		return nil
	}
}

func inlineMarkup(kb *bot.InlineKeyboard) tgbotapi.InlineKeyboardMarkup {
	rows := [][]tgbotapi.InlineKeyboardButton{}
	if kb == nil {
		return tgbotapi.InlineKeyboardMarkup{InlineKeyboard: rows}
	}
	for _, buttons := range kb.Rows {
		row := make([]tgbotapi.InlineKeyboardButton, 0, len(buttons))
		for _, btn := range buttons {
			if btn.URL != "" {
				row = append(row, tgbotapi.NewInlineKeyboardButtonURL(btn.Text, btn.URL))
				continue
			}
			row = append(row, tgbotapi.NewInlineKeyboardButtonData(btn.Text, btn.Data))
		}
		rows = append(rows, row)
	}
	return tgbotapi.InlineKeyboardMarkup{InlineKeyboard: rows}
}
