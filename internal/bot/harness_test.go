package bot

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	auditrepository "github.com/smallbiznis/animegate/internal/audit/repository"
	auditservice "github.com/smallbiznis/animegate/internal/audit/service"
	"github.com/smallbiznis/animegate/internal/authorization"
	broadcastdomain "github.com/smallbiznis/animegate/internal/broadcast/domain"
	broadcastrepository "github.com/smallbiznis/animegate/internal/broadcast/repository"
	broadcastservice "github.com/smallbiznis/animegate/internal/broadcast/service"
	catalogdomain "github.com/smallbiznis/animegate/internal/catalog/domain"
	catalogrepository "github.com/smallbiznis/animegate/internal/catalog/repository"
	catalogservice "github.com/smallbiznis/animegate/internal/catalog/service"
	"github.com/smallbiznis/animegate/internal/clock"
	"github.com/smallbiznis/animegate/internal/config"
	gaterepository "github.com/smallbiznis/animegate/internal/gate/repository"
	gateservice "github.com/smallbiznis/animegate/internal/gate/service"
	ledgerdomain "github.com/smallbiznis/animegate/internal/ledger/domain"
	ledgerservice "github.com/smallbiznis/animegate/internal/ledger/service"
	"github.com/smallbiznis/animegate/internal/migration"
	steprepository "github.com/smallbiznis/animegate/internal/step/repository"
	stepservice "github.com/smallbiznis/animegate/internal/step/service"
	subscriptiondomain "github.com/smallbiznis/animegate/internal/subscription/domain"
	subscriptionrepository "github.com/smallbiznis/animegate/internal/subscription/repository"
	subscriptionservice "github.com/smallbiznis/animegate/internal/subscription/service"
	userdomain "github.com/smallbiznis/animegate/internal/user/domain"
	userrepository "github.com/smallbiznis/animegate/internal/user/repository"
	userservice "github.com/smallbiznis/animegate/internal/user/service"
	stepdomain "github.com/smallbiznis/animegate/internal/step/domain"
	"github.com/smallbiznis/animegate/pkg/db"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const testAdminID = 1

type outgoing struct {
	ChatID    int64
	MessageID int
	Msg       Message
	Media     *OutgoingMedia
}

type editCall struct {
	ChatID    int64
	MessageID int
	Msg       Message
	Keyboard  *InlineKeyboard
}

type callbackAnswer struct {
	ID    string
	Text  string
	Alert bool
}

type relay struct {
	To        int64
	From      int64
	MessageID int
	Forward   bool
}

type fakeTransport struct {
	mu       sync.Mutex
	nextID   int
	sent     []outgoing
	edits    []editCall
	deleted  []int
	answers  []callbackAnswer
	relays   []relay
	members  map[[2]int64]bool
	panicMsg string
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{nextID: 1000, members: map[[2]int64]bool{}}
}

func (f *fakeTransport) SendMessage(ctx context.Context, chatID int64, msg Message) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.panicMsg != "" && strings.Contains(msg.Text, f.panicMsg) {
		panic("transport exploded")
	}
	f.nextID++
	f.sent = append(f.sent, outgoing{ChatID: chatID, MessageID: f.nextID, Msg: msg})
	return f.nextID, nil
}

func (f *fakeTransport) SendMedia(ctx context.Context, chatID int64, media OutgoingMedia) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	f.sent = append(f.sent, outgoing{ChatID: chatID, MessageID: f.nextID, Media: &media})
	return f.nextID, nil
}

func (f *fakeTransport) EditMessage(ctx context.Context, chatID int64, messageID int, msg Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.edits = append(f.edits, editCall{ChatID: chatID, MessageID: messageID, Msg: msg})
	return nil
}

func (f *fakeTransport) EditKeyboard(ctx context.Context, chatID int64, messageID int, keyboard *InlineKeyboard) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.edits = append(f.edits, editCall{ChatID: chatID, MessageID: messageID, Keyboard: keyboard})
	return nil
}

func (f *fakeTransport) DeleteMessage(ctx context.Context, chatID int64, messageID int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, messageID)
	return nil
}

func (f *fakeTransport) CopyMessage(ctx context.Context, toChatID, fromChatID int64, messageID int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.relays = append(f.relays, relay{To: toChatID, From: fromChatID, MessageID: messageID})
	f.nextID++
	return f.nextID, nil
}

func (f *fakeTransport) ForwardMessage(ctx context.Context, toChatID, fromChatID int64, messageID int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.relays = append(f.relays, relay{To: toChatID, From: fromChatID, MessageID: messageID, Forward: true})
	f.nextID++
	return f.nextID, nil
}

func (f *fakeTransport) AnswerCallback(ctx context.Context, callbackID, text string, alert bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.answers = append(f.answers, callbackAnswer{ID: callbackID, Text: text, Alert: alert})
	return nil
}

func (f *fakeTransport) IsMember(ctx context.Context, channelID, userID int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.members[[2]int64{channelID, userID}], nil
}

func (f *fakeTransport) setMember(channelID, userID int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.members[[2]int64{channelID, userID}] = true
}

func (f *fakeTransport) Sent() []outgoing {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]outgoing(nil), f.sent...)
}

func (f *fakeTransport) SentTo(chatID int64) []outgoing {
	out := []outgoing{}
	for _, m := range f.Sent() {
		if m.ChatID == chatID {
			out = append(out, m)
		}
	}
	return out
}

func (f *fakeTransport) Last(t *testing.T) outgoing {
	t.Helper()
	sent := f.Sent()
	require.NotEmpty(t, sent)
	return sent[len(sent)-1]
}

func (f *fakeTransport) Edits() []editCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]editCall(nil), f.edits...)
}

func (f *fakeTransport) LastEdit(t *testing.T) editCall {
	t.Helper()
	edits := f.Edits()
	require.NotEmpty(t, edits)
	return edits[len(edits)-1]
}

func (f *fakeTransport) Deleted() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int(nil), f.deleted...)
}

func (f *fakeTransport) Answers() []callbackAnswer {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]callbackAnswer(nil), f.answers...)
}

func (f *fakeTransport) LastAnswer(t *testing.T) callbackAnswer {
	t.Helper()
	answers := f.Answers()
	require.NotEmpty(t, answers)
	return answers[len(answers)-1]
}

func (f *fakeTransport) Relays() []relay {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]relay(nil), f.relays...)
}

type harness struct {
	t          *testing.T
	ctx        context.Context
	db         *gorm.DB
	transport  *fakeTransport
	botCfg     *config.BotConfigHolder
	clock      *clock.FakeClock
	engine     *Engine
	users      userdomain.Service
	steps      stepdomain.Service
	catalog    catalogdomain.Service
	ledger     ledgerdomain.Service
	vip        subscriptiondomain.Service
	broadcasts broadcastdomain.Service
	authz      authorization.Service
	callbacks  int
}

func testBotConfig() config.BotConfig {
	cfg := config.DefaultBotConfig()
	cfg.Admins = []int64{testAdminID}
	cfg.Recheck.FrameInterval = 0
	cfg.Throttle = config.ThrottleConfig{}
	return cfg
}

func newHarness(t *testing.T, cfg config.BotConfig) *harness {
	t.Helper()
	conn, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, migration.AutoMigrate(conn))

	log := zap.NewNop()
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	clk := clock.NewFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	holder := config.NewStaticBotConfigHolder(cfg)
	transport := newFakeTransport()

	ledgerSvc := ledgerservice.NewService(ledgerservice.Params{DB: conn, Log: log, GenID: node, Clock: clk})
	userSvc := userservice.New(userservice.Params{
		DB:        conn,
		Log:       log,
		Repo:      userrepository.Provide(),
		LedgerSvc: ledgerSvc,
		BotConfig: holder,
		Clock:     clk,
	})
	stepSvc := stepservice.New(stepservice.Params{DB: conn, Log: log, Repo: steprepository.Provide(), Clock: clk})
	catalogSvc := catalogservice.New(catalogservice.Params{DB: conn, Log: log, GenID: node, Repo: catalogrepository.Provide(), Clock: clk})
	auditSvc := auditservice.NewService(auditservice.Params{DB: conn, Log: log, GenID: node, Repo: auditrepository.Provide(), Clock: clk})

	enforcer, err := authorization.NewEnforcer(conn)
	require.NoError(t, err)
	authz, err := authorization.NewService(authorization.Params{
		DB:        conn,
		Log:       log,
		Config:    config.Config{},
		BotConfig: holder,
		Enforcer:  enforcer,
		AuditSvc:  auditSvc,
	})
	require.NoError(t, err)

	gateSvc := gateservice.New(gateservice.Params{
		DB:        conn,
		Log:       log,
		Repo:      gaterepository.Provide(),
		UserRepo:  userrepository.Provide(),
		BotConfig: holder,
		Checker:   transport,
		Clock:     clk,
		Authz:     authz,
	})
	vipSvc := subscriptionservice.NewService(subscriptionservice.Params{
		DB:        conn,
		Log:       log,
		GenID:     node,
		Repo:      subscriptionrepository.Provide(),
		UserRepo:  userrepository.Provide(),
		LedgerSvc: ledgerSvc,
		BotConfig: holder,
		Clock:     clk,
		Notifier:  NewAdminNotifier(transport, authz, holder, log),
	})
	broadcastSvc := broadcastservice.New(broadcastservice.Params{
		DB:         conn,
		Log:        log,
		GenID:      node,
		Repo:       broadcastrepository.Provide(),
		Sender:     NewBroadcastSender(transport, holder, log),
		Recipients: userSvc,
		BotConfig:  holder,
		Clock:      clk,
	})

	engine := NewEngine(Params{
		Log:        log,
		Transport:  transport,
		BotConfig:  holder,
		GenID:      node,
		Users:      userSvc,
		Steps:      stepSvc,
		Gate:       gateSvc,
		Catalog:    catalogSvc,
		VIP:        vipSvc,
		Ledger:     ledgerSvc,
		Broadcasts: broadcastSvc,
		Authz:      authz,
		Audit:      auditSvc,
		Clock:      clk,
	})

	return &harness{
		t:          t,
		ctx:        context.Background(),
		db:         conn,
		transport:  transport,
		botCfg:     holder,
		clock:      clk,
		engine:     engine,
		users:      userSvc,
		steps:      stepSvc,
		catalog:    catalogSvc,
		ledger:     ledgerSvc,
		vip:        vipSvc,
		broadcasts: broadcastSvc,
		authz:      authz,
	}
}

func (h *harness) text(userID int64, text string) {
	h.t.Helper()
	kind := EventText
	if strings.HasPrefix(text, "/") {
		kind = EventCommand
	}
	require.NoError(h.t, h.engine.Handle(h.ctx, Event{Kind: kind, UserID: userID, ChatID: userID, FirstName: "Aziz", Text: text, MessageID: 1}))
}

func (h *harness) label(userID int64, key string) {
	h.t.Helper()
	h.text(userID, texts{cfg: h.botCfg.Get()}.get(key))
}

func (h *harness) press(userID int64, messageID int, data string) {
	h.t.Helper()
	h.callbacks++
	require.NoError(h.t, h.engine.Handle(h.ctx, Event{
		Kind:       EventButton,
		UserID:     userID,
		ChatID:     userID,
		FirstName:  "Aziz",
		Data:       data,
		MessageID:  messageID,
		CallbackID: fmt.Sprintf("cb-%d", h.callbacks),
	}))
}

func (h *harness) media(userID int64, messageID int, media Media) {
	h.t.Helper()
	require.NoError(h.t, h.engine.Handle(h.ctx, Event{Kind: EventMedia, UserID: userID, ChatID: userID, MessageID: messageID, Media: &media}))
}

func (h *harness) start(userIDs ...int64) {
	h.t.Helper()
	for _, id := range userIDs {
		h.text(id, "/start")
	}
}

func (h *harness) credit(userID, amount int64) {
	h.t.Helper()
	_, err := h.ledger.Apply(h.ctx, ledgerdomain.Posting{
		UserID:     userID,
		Direction:  ledgerdomain.LedgerEntryDirectionCredit,
		Amount:     amount,
		SourceType: ledgerdomain.SourceTypeAdminCredit,
		SourceID:   fmt.Sprintf("test-%d-%d", userID, amount),
		OccurredAt: h.clock.Now(),
	})
	require.NoError(h.t, err)
}

func (h *harness) seedTitle(name string, episodes int) catalogdomain.Title {
	h.t.Helper()
	title, err := h.catalog.CreateTitle(h.ctx, catalogdomain.CreateTitleRequest{
		Name:      name,
		Year:      "2004",
		Genre:     "Action",
		MediaRef:  "cover-" + name,
		MediaKind: catalogdomain.MediaKindPhoto,
	})
	require.NoError(h.t, err)
	for i := 1; i <= episodes; i++ {
		_, err := h.catalog.AppendEpisode(h.ctx, title.ID, fmt.Sprintf("ep-%d", i))
		require.NoError(h.t, err)
	}
	return title
}

func (h *harness) views(titleID int64) int64 {
	h.t.Helper()
	title, err := h.catalog.GetTitle(h.ctx, titleID)
	require.NoError(h.t, err)
	return title.Views
}

func (h *harness) tr(key string) string {
	return texts{cfg: h.botCfg.Get()}.get(key)
}

func (h *harness) trf(key string, args ...any) string {
	return texts{cfg: h.botCfg.Get()}.format(key, args...)
}
