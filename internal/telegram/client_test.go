package telegram

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path"
	"sync"
	"testing"

	"github.com/smallbiznis/animegate/internal/bot"
	"github.com/smallbiznis/animegate/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type apiCall struct {
	Method string
	Form   url.Values
}

// fakeBotAPI answers Bot API methods with canned JSON bodies.
type fakeBotAPI struct {
	mu        sync.Mutex
	calls     []apiCall
	responses map[string]string
}

func newFakeBotAPI(t *testing.T) (*fakeBotAPI, *Client) {
	t.Helper()
	fake := &fakeBotAPI{responses: map[string]string{
		"getMe":       `{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"animegate","username":"animegate_bot"}}`,
		"sendMessage": `{"ok":true,"result":{"message_id":77,"date":0,"chat":{"id":5,"type":"private"}}}`,
		"sendVideo":   `{"ok":true,"result":{"message_id":78,"date":0,"chat":{"id":5,"type":"private"}}}`,
		"sendPhoto":   `{"ok":true,"result":{"message_id":79,"date":0,"chat":{"id":5,"type":"private"}}}`,
		"copyMessage": `{"ok":true,"result":{"message_id":80}}`,
	}}
	srv := httptest.NewServer(http.HandlerFunc(fake.serve))
	t.Cleanup(srv.Close)

	cfg := config.Config{Telegram: config.TelegramConfig{Token: "123:abc", PollTimeout: 1}}
	api, err := newBotAPI(cfg, srv.URL+"/bot%s/%s", zap.NewNop())
	require.NoError(t, err)
	return fake, NewClient(api, zap.NewNop())
}

func (f *fakeBotAPI) serve(w http.ResponseWriter, r *http.Request) {
	_ = r.ParseForm()
	method := path.Base(r.URL.Path)

	f.mu.Lock()
	f.calls = append(f.calls, apiCall{Method: method, Form: r.PostForm})
	body, ok := f.responses[method]
	f.mu.Unlock()

	if !ok {
		body = `{"ok":true,"result":true}`
	}
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprint(w, body)
}

func (f *fakeBotAPI) respond(method, body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses[method] = body
}

func (f *fakeBotAPI) last(t *testing.T, method string) apiCall {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.calls) - 1; i >= 0; i-- {
		if f.calls[i].Method == method {
			return f.calls[i]
		}
	}
	t.Fatalf("no %s call recorded", method)
	return apiCall{}
}

func TestNewBotAPIRequiresToken(t *testing.T) {
	_, err := NewBotAPI(config.Config{}, zap.NewNop())
	require.ErrorIs(t, err, ErrMissingToken)
}

func TestClientSendMessageWithInlineKeyboard(t *testing.T) {
	fake, client := newFakeBotAPI(t)
	kb := &bot.InlineKeyboard{}
	kb.Row(
		bot.InlineButton{Text: "1", Data: "dl=1=1=1"},
		bot.InlineButton{Text: "Kanal", URL: "https://t.me/anime"},
	)

	id, err := client.SendMessage(context.Background(), 5, bot.Message{Text: "salom", Inline: kb})

	require.NoError(t, err)
	assert.Equal(t, 77, id)
	call := fake.last(t, "sendMessage")
	assert.Equal(t, "5", call.Form.Get("chat_id"))
	assert.Equal(t, "salom", call.Form.Get("text"))
	assert.Contains(t, call.Form.Get("reply_markup"), `"callback_data":"dl=1=1=1"`)
	assert.Contains(t, call.Form.Get("reply_markup"), `"url":"https://t.me/anime"`)
}

func TestClientSendMessageWithReplyKeyboard(t *testing.T) {
	fake, client := newFakeBotAPI(t)

	_, err := client.SendMessage(context.Background(), 5, bot.Message{
		Text:  "menu",
		Reply: &bot.ReplyKeyboard{Rows: [][]string{{"🔎 Anime izlash"}, {"💎 VIP", "💰 Hisobim"}}},
	})

	require.NoError(t, err)
	markup := fake.last(t, "sendMessage").Form.Get("reply_markup")
	assert.Contains(t, markup, `"resize_keyboard":true`)
	assert.Contains(t, markup, "💎 VIP")

	_, err = client.SendMessage(context.Background(), 5, bot.Message{Text: "bye", RemoveReply: true})
	require.NoError(t, err)
	assert.Contains(t, fake.last(t, "sendMessage").Form.Get("reply_markup"), `"remove_keyboard":true`)
}

func TestClientSendMedia(t *testing.T) {
	fake, client := newFakeBotAPI(t)

	id, err := client.SendMedia(context.Background(), 5, bot.OutgoingMedia{Kind: bot.MediaVideo, FileID: "ep-1", Caption: "1-qism"})
	require.NoError(t, err)
	assert.Equal(t, 78, id)
	call := fake.last(t, "sendVideo")
	assert.Equal(t, "ep-1", call.Form.Get("video"))
	assert.Equal(t, "1-qism", call.Form.Get("caption"))

	id, err = client.SendMedia(context.Background(), 5, bot.OutgoingMedia{Kind: bot.MediaPhoto, FileID: "cover"})
	require.NoError(t, err)
	assert.Equal(t, 79, id)
	assert.Equal(t, "cover", fake.last(t, "sendPhoto").Form.Get("photo"))
}

func TestClientEditIgnoresNotModified(t *testing.T) {
	fake, client := newFakeBotAPI(t)
	fake.respond("editMessageText", `{"ok":false,"error_code":400,"description":"Bad Request: message is not modified"}`)

	err := client.EditMessage(context.Background(), 5, 10, bot.Message{Text: "same"})
	require.NoError(t, err)

	fake.respond("editMessageText", `{"ok":false,"error_code":400,"description":"Bad Request: message to edit not found"}`)
	err = client.EditMessage(context.Background(), 5, 10, bot.Message{Text: "gone"})
	require.Error(t, err)
}

func TestClientEditKeyboardAndDelete(t *testing.T) {
	fake, client := newFakeBotAPI(t)
	kb := &bot.InlineKeyboard{}
	kb.Row(bot.InlineButton{Text: "26", Data: "dl=1=26=47"})

	require.NoError(t, client.EditKeyboard(context.Background(), 5, 10, kb))
	call := fake.last(t, "editMessageReplyMarkup")
	assert.Equal(t, "10", call.Form.Get("message_id"))
	assert.Contains(t, call.Form.Get("reply_markup"), "dl=1=26=47")

	require.NoError(t, client.DeleteMessage(context.Background(), 5, 10))
	assert.Equal(t, "10", fake.last(t, "deleteMessage").Form.Get("message_id"))
}

func TestClientCopyAndAnswer(t *testing.T) {
	fake, client := newFakeBotAPI(t)

	id, err := client.CopyMessage(context.Background(), 7, 1, 555)
	require.NoError(t, err)
	assert.Equal(t, 80, id)
	call := fake.last(t, "copyMessage")
	assert.Equal(t, "7", call.Form.Get("chat_id"))
	assert.Equal(t, "1", call.Form.Get("from_chat_id"))
	assert.Equal(t, "555", call.Form.Get("message_id"))

	require.NoError(t, client.AnswerCallback(context.Background(), "cb-1", "Bu oxirgi sahifa.", true))
	answer := fake.last(t, "answerCallbackQuery")
	assert.Equal(t, "cb-1", answer.Form.Get("callback_query_id"))
	assert.Equal(t, "true", answer.Form.Get("show_alert"))
}

func TestClientIsMember(t *testing.T) {
	cases := []struct {
		body   string
		member bool
		err    bool
	}{
		{body: `{"ok":true,"result":{"user":{"id":5},"status":"member"}}`, member: true},
		{body: `{"ok":true,"result":{"user":{"id":5},"status":"creator"}}`, member: true},
		{body: `{"ok":true,"result":{"user":{"id":5},"status":"restricted","is_member":true}}`, member: true},
		{body: `{"ok":true,"result":{"user":{"id":5},"status":"restricted","is_member":false}}`},
		{body: `{"ok":true,"result":{"user":{"id":5},"status":"left"}}`},
		{body: `{"ok":true,"result":{"user":{"id":5},"status":"kicked"}}`},
		{body: `{"ok":false,"error_code":400,"description":"Bad Request: user not found"}`},
		{body: `{"ok":false,"error_code":400,"description":"Bad Request: chat not found"}`, err: true},
	}
	fake, client := newFakeBotAPI(t)
	for _, tc := range cases {
		fake.respond("getChatMember", tc.body)
		member, err := client.IsMember(context.Background(), -100, 5)
		if tc.err {
			assert.Error(t, err, tc.body)
			continue
		}
		assert.NoError(t, err, tc.body)
		assert.Equal(t, tc.member, member, tc.body)
	}
	call := fake.last(t, "getChatMember")
	assert.Equal(t, "-100", call.Form.Get("chat_id"))
	assert.Equal(t, "5", call.Form.Get("user_id"))
}

func TestClientHonoursCancelledContext(t *testing.T) {
	_, client := newFakeBotAPI(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.SendMessage(ctx, 5, bot.Message{Text: "late"})
	assert.ErrorIs(t, err, context.Canceled)
}
