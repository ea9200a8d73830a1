package bot

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/animegate/internal/audit/domain"
	"github.com/smallbiznis/animegate/internal/authorization"
	broadcastdomain "github.com/smallbiznis/animegate/internal/broadcast/domain"
	catalogdomain "github.com/smallbiznis/animegate/internal/catalog/domain"
	"github.com/smallbiznis/animegate/internal/clock"
	"github.com/smallbiznis/animegate/internal/config"
	gatedomain "github.com/smallbiznis/animegate/internal/gate/domain"
	ledgerdomain "github.com/smallbiznis/animegate/internal/ledger/domain"
	"github.com/smallbiznis/animegate/internal/observability/logger"
	stepdomain "github.com/smallbiznis/animegate/internal/step/domain"
	subscriptiondomain "github.com/smallbiznis/animegate/internal/subscription/domain"
	userdomain "github.com/smallbiznis/animegate/internal/user/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	searchLimit   = 10
	listLimit     = 10
	recheckBudget = 30 * time.Second
)

type Params struct {
	fx.In

	Log        *zap.Logger
	Transport  Transport
	BotConfig  *config.BotConfigHolder
	GenID      *snowflake.Node
	Users      userdomain.Service
	Steps      stepdomain.Service
	Gate       gatedomain.Service
	Catalog    catalogdomain.Service
	VIP        subscriptiondomain.Service
	Ledger     ledgerdomain.Service
	Broadcasts broadcastdomain.Service
	Authz      authorization.Service
	Audit      auditdomain.Service `optional:"true"`
	Clock      clock.Clock         `optional:"true"`
}

type (
	eventHandler  func(ctx context.Context, ev Event) error
	buttonHandler func(ctx context.Context, ev Event, tok Token) (answer, error)
	flowHandler   func(ctx context.Context, ev Event, st stepdomain.Step) error
)

// answer is the callback acknowledgement sent once per button press.
type answer struct {
	Text  string
	Alert bool
}

// Engine maps classified events onto the domain services.
type Engine struct {
	log        *zap.Logger
	transport  Transport
	botCfg     *config.BotConfigHolder
	genID      *snowflake.Node
	users      userdomain.Service
	steps      stepdomain.Service
	gate       gatedomain.Service
	catalog    catalogdomain.Service
	vip        subscriptiondomain.Service
	ledger     ledgerdomain.Service
	broadcasts broadcastdomain.Service
	authz      authorization.Service
	audit      auditdomain.Service
	clock      clock.Clock

	labels  map[string]eventHandler
	buttons map[Action]buttonHandler
	flows   map[stepdomain.Flow]flowHandler

	// background tracks recheck animations running outside the workers.
	background sync.WaitGroup
	sleep      func(ctx context.Context, d time.Duration) error
}

func NewEngine(p Params) *Engine {
	clk := p.Clock
	if clk == nil {
		clk = clock.New()
	}
	e := &Engine{
		log:        p.Log.Named("bot.engine"),
		transport:  p.Transport,
		botCfg:     p.BotConfig,
		genID:      p.GenID,
		users:      p.Users,
		steps:      p.Steps,
		gate:       p.Gate,
		catalog:    p.Catalog,
		vip:        p.VIP,
		ledger:     p.Ledger,
		broadcasts: p.Broadcasts,
		authz:      p.Authz,
		audit:      p.Audit,
		clock:      clk,
		sleep:      sleepContext,
	}

	e.labels = map[string]eventHandler{
		labelSearch:     e.gated(e.onSearchMenu),
		labelVIP:        e.gated(e.onVIP),
		labelBalance:    e.gated(e.onBalance),
		labelTopUp:      e.onTopUp,
		labelGuide:      e.onStatic(textGuide),
		labelAds:        e.onStatic(textAds),
		labelPanel:      e.admin(authorization.ObjectPanel, authorization.ActionPanelView, e.onPanel),
		labelStats:      e.admin(authorization.ObjectPanel, authorization.ActionPanelView, e.onStats),
		labelAddTitle:   e.admin(authorization.ObjectCatalog, authorization.ActionCatalogManage, e.startFlow(stepdomain.FlowAddTitle, textAskTitleName)),
		labelAddEpisode: e.admin(authorization.ObjectCatalog, authorization.ActionCatalogManage, e.startFlow(stepdomain.FlowAddEpisode, textAskTitleCode)),
		labelBroadcast:  e.admin(authorization.ObjectBroadcast, authorization.ActionBroadcastStart, e.onBroadcastMenu),
		labelManageUser: e.admin(authorization.ObjectBalance, authorization.ActionBalanceManage, e.startFlow(stepdomain.FlowManageUser, textAskUserID)),
		labelAddAdmin:   e.admin(authorization.ObjectAdmins, authorization.ActionAdminsGrant, e.startFlow(stepdomain.FlowAddAdmin, textAskAdminID)),
	}

	e.buttons = map[Action]buttonHandler{
		ActionNoop:      e.onNoop,
		ActionClose:     e.onClose,
		ActionTitle:     e.onTitleButton,
		ActionDownload:  e.onDownload,
		ActionPage:      e.onPage,
		ActionDelete:    e.onDeleteEpisode,
		ActionRecheck:   e.onRecheck,
		ActionSearch:    e.onSearchMode,
		ActionRecent:    e.onRecent,
		ActionTop:       e.onTop,
		ActionAll:       e.onAllTitles,
		ActionBuy:       e.onBuy,
		ActionExtend:    e.onExtend,
		ActionCredit:    e.onBalanceAction,
		ActionDebit:     e.onBalanceAction,
		ActionBroadcast: e.onBroadcastConfirm,
		ActionStopCast:  e.onBroadcastStop,
	}

	e.flows = map[stepdomain.Flow]flowHandler{
		stepdomain.FlowSearchByCode:  e.flowSearchByCode,
		stepdomain.FlowSearchByName:  e.flowSearch(catalogdomain.SearchByName),
		stepdomain.FlowSearchByGenre: e.flowSearch(catalogdomain.SearchByGenre),
		stepdomain.FlowAddTitle:      e.flowAddTitle,
		stepdomain.FlowAddEpisode:    e.flowAddEpisode,
		stepdomain.FlowBroadcast:     e.flowBroadcast,
		stepdomain.FlowManageUser:    e.flowManageUser,
		stepdomain.FlowAddAdmin:      e.flowAddAdmin,
	}
	return e
}

// Handle processes one event to completion. Callers serialize events of
// the same user.
func (e *Engine) Handle(ctx context.Context, ev Event) error {
	if ev.UserID == 0 {
		return nil
	}
	var err error
	switch ev.Kind {
	case EventJoinRequest:
		err = e.gate.RecordJoinRequest(ctx, ev.ChannelID, ev.UserID)
	case EventButton:
		err = e.handleButton(ctx, ev)
	case EventCommand, EventText, EventMedia:
		err = e.handleMessage(ctx, ev)
	default:
		e.logger(ctx).Debug("unsupported event", zap.String("kind", string(ev.Kind)))
	}
	if err != nil && ev.Kind != EventJoinRequest {
		e.send(ctx, ev.chatID(), Message{Text: e.texts().get(textFailed)})
	}
	return err
}

// Wait blocks until background work started by Handle returned.
func (e *Engine) Wait() {
	e.background.Wait()
}

func (e *Engine) handleMessage(ctx context.Context, ev Event) error {
	t := e.texts()
	cmd, payload := ev.Command()
	text := strings.TrimSpace(ev.Text)

	if cmd == "start" || (ev.Kind != EventMedia && text == t.get(labelBack)) {
		return e.onStart(ctx, ev, payload)
	}

	if err := e.ensureUser(ctx, ev); err != nil {
		return err
	}
	st, err := e.steps.Get(ctx, ev.UserID)
	if err != nil {
		return err
	}
	if !st.IsIdle() {
		if st.Flow.AdminOnly() && !e.authz.IsAdmin(ctx, ev.UserID) {
			return e.steps.Clear(ctx, ev.UserID)
		}
		if flow, ok := e.flows[st.Flow]; ok {
			return flow(ctx, ev, st)
		}
		e.logger(ctx).Warn("no handler for flow, resetting", zap.String("flow", string(st.Flow)))
		return e.steps.Clear(ctx, ev.UserID)
	}

	if ev.Kind == EventMedia {
		return nil
	}
	for key, handler := range e.labels {
		if text == t.get(key) {
			return handler(ctx, ev)
		}
	}
	if text == "" || cmd != "" {
		return nil
	}
	// bare numbers are title codes, anything else is a name search
	if code, err := strconv.ParseInt(text, 10, 64); err == nil {
		return e.gated(func(ctx context.Context, ev Event) error {
			return e.showTitle(ctx, ev.chatID(), ev.UserID, code)
		})(ctx, ev)
	}
	return e.gated(func(ctx context.Context, ev Event) error {
		return e.searchTitles(ctx, ev, catalogdomain.SearchByName, text)
	})(ctx, ev)
}

func (e *Engine) handleButton(ctx context.Context, ev Event) error {
	tok, err := ParseToken(ev.Data)
	if err != nil {
		e.logger(ctx).Debug("ignoring malformed token", zap.String("data", ev.Data), zap.Error(err))
		e.answer(ctx, ev, answer{})
		return nil
	}
	handler, ok := e.buttons[tok.Action]
	if !ok {
		e.answer(ctx, ev, answer{})
		return nil
	}
	if err := e.ensureUser(ctx, ev); err != nil {
		e.answer(ctx, ev, answer{})
		return err
	}
	reply, err := handler(ctx, ev, tok)
	e.answer(ctx, ev, reply)
	return err
}

func (e *Engine) onStart(ctx context.Context, ev Event, payload string) error {
	var referrer int64
	if id, err := strconv.ParseInt(payload, 10, 64); err == nil {
		referrer = id
	}
	if _, err := e.users.Register(ctx, userdomain.RegisterRequest{
		ID:         ev.UserID,
		FirstName:  ev.FirstName,
		Username:   ev.Username,
		ReferrerID: referrer,
	}); err != nil {
		return err
	}
	if err := e.steps.Clear(ctx, ev.UserID); err != nil {
		return err
	}
	t := e.texts()
	name := ev.FirstName
	if name == "" {
		name = ev.Username
	}
	e.send(ctx, ev.chatID(), Message{
		Text:  t.format(textStart, name),
		Reply: mainMenu(t, e.authz.IsAdmin(ctx, ev.UserID)),
	})
	return nil
}

// ensureUser registers users whose first contact is not /start.
func (e *Engine) ensureUser(ctx context.Context, ev Event) error {
	_, err := e.users.Get(ctx, ev.UserID)
	if !errors.Is(err, userdomain.ErrNotFound) {
		return err
	}
	_, err = e.users.Register(ctx, userdomain.RegisterRequest{
		ID:        ev.UserID,
		FirstName: ev.FirstName,
		Username:  ev.Username,
	})
	return err
}

func (e *Engine) onStatic(key string) eventHandler {
	return func(ctx context.Context, ev Event) error {
		e.send(ctx, ev.chatID(), Message{Text: e.texts().get(key)})
		return nil
	}
}

// gated runs next only when the subscription gate passes, otherwise it
// sends the prompt.
func (e *Engine) gated(next eventHandler) eventHandler {
	return func(ctx context.Context, ev Event) error {
		ok, err := e.passGate(ctx, ev, 0)
		if err != nil || !ok {
			return err
		}
		return next(ctx, ev)
	}
}

// admin runs next only when the user may perform action on object.
func (e *Engine) admin(object, action string, next eventHandler) eventHandler {
	return func(ctx context.Context, ev Event) error {
		if err := e.authz.Authorize(ctx, ev.UserID, object, action); err != nil {
			if errors.Is(err, authorization.ErrForbidden) {
				e.send(ctx, ev.chatID(), Message{Text: e.texts().get(textNoPermission)})
				return nil
			}
			return err
		}
		return next(ctx, ev)
	}
}

func (e *Engine) passGate(ctx context.Context, ev Event, pendingTitle int64) (bool, error) {
	result, err := e.gate.Check(ctx, ev.UserID)
	if err != nil {
		return false, err
	}
	if result.Passed {
		return true, nil
	}
	t := e.texts()
	e.send(ctx, ev.chatID(), Message{Text: t.get(textGatePrompt), Inline: gatePrompt(result, pendingTitle, t)})
	return false, nil
}

func (e *Engine) startFlow(flow stepdomain.Flow, prompt string) eventHandler {
	return func(ctx context.Context, ev Event) error {
		if err := e.steps.Set(ctx, ev.UserID, stepdomain.Start(flow)); err != nil {
			return err
		}
		t := e.texts()
		e.send(ctx, ev.chatID(), Message{Text: t.get(prompt), Reply: backMenu(t)})
		return nil
	}
}

func (e *Engine) onNoop(ctx context.Context, ev Event, tok Token) (answer, error) {
	return answer{}, nil
}

func (e *Engine) onClose(ctx context.Context, ev Event, tok Token) (answer, error) {
	e.remove(ctx, ev.chatID(), ev.MessageID)
	return answer{}, nil
}

func (e *Engine) texts() texts {
	return texts{cfg: e.botCfg.Get()}
}

func (e *Engine) isAdmin(ctx context.Context, userID int64) bool {
	return e.authz.IsAdmin(ctx, userID)
}

func (e *Engine) logger(ctx context.Context) *zap.Logger {
	return logger.WithContext(ctx, e.log)
}

func (e *Engine) send(ctx context.Context, chatID int64, msg Message) int {
	id, err := e.transport.SendMessage(ctx, chatID, msg)
	if err != nil {
		e.logger(ctx).Warn("send message failed", zap.Int64("chat_id", chatID), zap.Error(err))
	}
	return id
}

func (e *Engine) sendMedia(ctx context.Context, chatID int64, media OutgoingMedia) int {
	id, err := e.transport.SendMedia(ctx, chatID, media)
	if err != nil {
		e.logger(ctx).Warn("send media failed", zap.Int64("chat_id", chatID), zap.Error(err))
	}
	return id
}

func (e *Engine) edit(ctx context.Context, chatID int64, messageID int, msg Message) {
	if messageID == 0 {
		e.send(ctx, chatID, msg)
		return
	}
	if err := e.transport.EditMessage(ctx, chatID, messageID, msg); err != nil {
		e.logger(ctx).Warn("edit message failed", zap.Int64("chat_id", chatID), zap.Int("message_id", messageID), zap.Error(err))
	}
}

func (e *Engine) remove(ctx context.Context, chatID int64, messageID int) {
	if messageID == 0 {
		return
	}
	if err := e.transport.DeleteMessage(ctx, chatID, messageID); err != nil {
		e.logger(ctx).Warn("delete message failed", zap.Int64("chat_id", chatID), zap.Int("message_id", messageID), zap.Error(err))
	}
}

func (e *Engine) answer(ctx context.Context, ev Event, reply answer) {
	if ev.CallbackID == "" {
		return
	}
	if err := e.transport.AnswerCallback(ctx, ev.CallbackID, reply.Text, reply.Alert); err != nil {
		e.logger(ctx).Debug("answer callback failed", zap.Error(err))
	}
}

func (e *Engine) auditLog(ctx context.Context, actorID int64, action, targetType, targetID string, metadata map[string]any) {
	if e.audit == nil {
		return
	}
	actor := strconv.FormatInt(actorID, 10)
	var target *string
	if targetID != "" {
		target = &targetID
	}
	if err := e.audit.AuditLog(ctx, string(auditdomain.ActorTypeAdmin), &actor, action, targetType, target, metadata); err != nil {
		e.logger(ctx).Warn("audit log failed", zap.String("action", action), zap.Error(err))
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
