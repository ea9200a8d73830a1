package bot

import (
	"context"
	"errors"
	"strconv"
	"strings"

	auditdomain "github.com/smallbiznis/animegate/internal/audit/domain"
	"github.com/smallbiznis/animegate/internal/authorization"
	broadcastdomain "github.com/smallbiznis/animegate/internal/broadcast/domain"
	catalogdomain "github.com/smallbiznis/animegate/internal/catalog/domain"
	catalogservice "github.com/smallbiznis/animegate/internal/catalog/service"
	ledgerdomain "github.com/smallbiznis/animegate/internal/ledger/domain"
	stepdomain "github.com/smallbiznis/animegate/internal/step/domain"
	userdomain "github.com/smallbiznis/animegate/internal/user/domain"
	"go.uber.org/zap"
)

// maxCoverClipSeconds bounds video covers of a title card.
const maxCoverClipSeconds = 60

// titleStages lists the text fields collected by the add-title flow in
// order, with the prompt for the following stage.
var titleStages = []struct {
	field  string
	prompt string
}{
	{field: "name", prompt: textAskEpisodesLabel},
	{field: "episodes", prompt: textAskCountry},
	{field: "country", prompt: textAskLanguage},
	{field: "language", prompt: textAskYear},
	{field: "year", prompt: textAskGenreField},
	{field: "genre", prompt: textAskDub},
	{field: "dub", prompt: textAskMedia},
}

func (e *Engine) onPanel(ctx context.Context, ev Event) error {
	if err := e.steps.Clear(ctx, ev.UserID); err != nil {
		return err
	}
	t := e.texts()
	e.send(ctx, ev.chatID(), Message{Text: t.get(textPanel), Reply: adminMenu(t)})
	return nil
}

func (e *Engine) onStats(ctx context.Context, ev Event) error {
	users, err := e.users.Stats(ctx)
	if err != nil {
		return err
	}
	catalog, err := e.catalog.Stats(ctx)
	if err != nil {
		return err
	}
	total, err := e.ledger.Total(ctx)
	if err != nil {
		return err
	}
	cfg := e.botCfg.Get()
	t := texts{cfg: cfg}
	e.send(ctx, ev.chatID(), Message{Text: t.format(textStats,
		users.Total, users.VIP, catalog.Titles, catalog.Episodes, total, cfg.VIP.Currency)})
	return nil
}

func (e *Engine) flowAddTitle(ctx context.Context, ev Event, st stepdomain.Step) error {
	t := e.texts()
	if st.Stage >= len(titleStages) {
		return e.finishAddTitle(ctx, ev, st)
	}

	value := strings.TrimSpace(ev.Text)
	if ev.Kind == EventMedia || value == "" {
		e.send(ctx, ev.chatID(), Message{Text: t.get(titleStagePrompt(st.Stage))})
		return nil
	}
	stage := titleStages[st.Stage]
	if stage.field == "year" {
		if _, err := catalogservice.ParseYear(value); err != nil {
			e.send(ctx, ev.chatID(), Message{Text: t.get(textBadYear)})
			return nil
		}
	}
	if err := e.steps.Set(ctx, ev.UserID, st.Advance(stage.field, value)); err != nil {
		return err
	}
	e.send(ctx, ev.chatID(), Message{Text: t.get(stage.prompt)})
	return nil
}

func titleStagePrompt(stage int) string {
	if stage == 0 {
		return textAskTitleName
	}
	return titleStages[stage-1].prompt
}

func (e *Engine) finishAddTitle(ctx context.Context, ev Event, st stepdomain.Step) error {
	t := e.texts()
	media := ev.Media
	valid := media != nil && media.FileID != "" &&
		(media.Kind == MediaPhoto || (media.Kind == MediaVideo && media.Duration <= maxCoverClipSeconds))
	if !valid {
		e.send(ctx, ev.chatID(), Message{Text: t.get(textBadMedia)})
		return nil
	}
	kind := catalogdomain.MediaKindPhoto
	if media.Kind == MediaVideo {
		kind = catalogdomain.MediaKindVideo
	}

	title, err := e.catalog.CreateTitle(ctx, catalogdomain.CreateTitleRequest{
		Name:          st.Field("name"),
		EpisodesLabel: st.Field("episodes"),
		Country:       st.Field("country"),
		Language:      st.Field("language"),
		Year:          st.Field("year"),
		Genre:         st.Field("genre"),
		Dub:           st.Field("dub"),
		MediaRef:      media.FileID,
		MediaKind:     kind,
	})
	if err != nil {
		return err
	}
	if err := e.steps.Clear(ctx, ev.UserID); err != nil {
		return err
	}
	e.auditLog(ctx, ev.UserID, auditdomain.ActionTitleCreated, "title", strconv.FormatInt(title.ID, 10), map[string]any{
		"name": title.Name,
	})
	e.send(ctx, ev.chatID(), Message{Text: t.format(textTitleCreated, title.ID), Reply: adminMenu(t)})
	return nil
}

// flowAddEpisode asks for a title code once, then appends every video it
// receives as the next episode until the admin goes back.
func (e *Engine) flowAddEpisode(ctx context.Context, ev Event, st stepdomain.Step) error {
	t := e.texts()
	if st.Stage == 0 {
		code, err := strconv.ParseInt(strings.TrimSpace(ev.Text), 10, 64)
		if err != nil || code <= 0 {
			e.send(ctx, ev.chatID(), Message{Text: t.get(textBadNumber)})
			return nil
		}
		title, err := e.catalog.GetTitle(ctx, code)
		if errors.Is(err, catalogdomain.ErrNotFound) {
			e.send(ctx, ev.chatID(), Message{Text: t.get(textTitleNotFound)})
			return nil
		}
		if err != nil {
			return err
		}
		if err := e.steps.Set(ctx, ev.UserID, st.Advance("title", strconv.FormatInt(title.ID, 10))); err != nil {
			return err
		}
		e.send(ctx, ev.chatID(), Message{Text: t.format(textAskEpisodeVideo, title.Name)})
		return nil
	}

	if ev.Media == nil || ev.Media.Kind != MediaVideo {
		e.send(ctx, ev.chatID(), Message{Text: t.format(textAskEpisodeVideo, "")})
		return nil
	}
	titleID, err := st.Int64Field("title")
	if err != nil {
		e.logger(ctx).Warn("add episode step without title", zap.Error(err))
		return e.steps.Clear(ctx, ev.UserID)
	}
	episode, err := e.catalog.AppendEpisode(ctx, titleID, ev.Media.FileID)
	if errors.Is(err, catalogdomain.ErrNotFound) {
		e.send(ctx, ev.chatID(), Message{Text: t.get(textTitleNotFound)})
		return e.steps.Clear(ctx, ev.UserID)
	}
	if err != nil {
		return err
	}
	e.auditLog(ctx, ev.UserID, auditdomain.ActionEpisodeAdded, "title", strconv.FormatInt(titleID, 10), map[string]any{
		"episode": episode.Number,
	})
	e.send(ctx, ev.chatID(), Message{Text: t.format(textEpisodeAdded, episode.Number)})
	return nil
}

func (e *Engine) onBroadcastMenu(ctx context.Context, ev Event) error {
	t := e.texts()
	job, err := e.broadcasts.Current(ctx)
	if err != nil {
		return err
	}
	if job != nil {
		e.send(ctx, ev.chatID(), Message{Text: t.get(textBroadcastBusy), Inline: broadcastRunningKeyboard()})
		return nil
	}
	return e.startFlow(stepdomain.FlowBroadcast, textAskBroadcast)(ctx, ev)
}

// flowBroadcast remembers the message to fan out and asks how to send it.
func (e *Engine) flowBroadcast(ctx context.Context, ev Event, st stepdomain.Step) error {
	t := e.texts()
	if st.Stage == 0 {
		if ev.MessageID == 0 {
			return nil
		}
		next := stepdomain.Step{
			Flow:  stepdomain.FlowBroadcast,
			Stage: 1,
			Fields: map[string]string{
				"chat":    strconv.FormatInt(ev.chatID(), 10),
				"message": strconv.Itoa(ev.MessageID),
			},
		}
		if err := e.steps.Set(ctx, ev.UserID, next); err != nil {
			return err
		}
	}
	e.send(ctx, ev.chatID(), Message{Text: t.get(textBroadcastConfirm), Inline: broadcastConfirmKeyboard()})
	return nil
}

func (e *Engine) onBroadcastConfirm(ctx context.Context, ev Event, tok Token) (answer, error) {
	t := e.texts()
	if reply, ok, err := e.authorizeButton(ctx, ev, authorization.ObjectBroadcast, authorization.ActionBroadcastStart); !ok {
		return reply, err
	}
	st, err := e.steps.Get(ctx, ev.UserID)
	if err != nil {
		return answer{}, err
	}
	if st.Flow != stepdomain.FlowBroadcast || st.Stage < 1 {
		return answer{}, nil
	}
	if err := e.steps.Clear(ctx, ev.UserID); err != nil {
		return answer{}, err
	}
	if tok.Arg(0) == "cancel" {
		e.edit(ctx, ev.chatID(), ev.MessageID, Message{Text: t.get(textBroadcastCancel)})
		return answer{}, nil
	}

	sourceChat, err := st.Int64Field("chat")
	if err != nil {
		return answer{}, err
	}
	sourceMessage, err := st.Int64Field("message")
	if err != nil {
		return answer{}, err
	}
	job, err := e.broadcasts.Start(ctx, broadcastdomain.StartRequest{
		AdminID:       ev.UserID,
		SourceChat:    sourceChat,
		SourceMessage: int(sourceMessage),
		Mode:          broadcastdomain.Mode(tok.Arg(0)),
	})
	if errors.Is(err, broadcastdomain.ErrAlreadyRunning) {
		e.edit(ctx, ev.chatID(), ev.MessageID, Message{Text: t.get(textBroadcastBusy), Inline: broadcastRunningKeyboard()})
		return answer{}, nil
	}
	if err != nil {
		return answer{}, err
	}
	e.auditLog(ctx, ev.UserID, auditdomain.ActionBroadcastStart, "broadcast", job.ID.String(), map[string]any{
		"mode": string(job.Mode),
	})
	e.edit(ctx, ev.chatID(), ev.MessageID, Message{Text: t.get(textBroadcastStarted), Inline: broadcastRunningKeyboard()})
	return answer{}, nil
}

func (e *Engine) onBroadcastStop(ctx context.Context, ev Event, tok Token) (answer, error) {
	t := e.texts()
	if reply, ok, err := e.authorizeButton(ctx, ev, authorization.ObjectBroadcast, authorization.ActionBroadcastStart); !ok {
		return reply, err
	}
	err := e.broadcasts.Abort(ctx)
	if errors.Is(err, broadcastdomain.ErrNotRunning) {
		return answer{Text: t.get(textBroadcastIdle), Alert: true}, nil
	}
	if err != nil {
		return answer{}, err
	}
	return answer{Text: t.get(textBroadcastStopped), Alert: true}, nil
}

// flowManageUser looks a user up; the credit/debit buttons move the flow
// to the amount stage.
func (e *Engine) flowManageUser(ctx context.Context, ev Event, st stepdomain.Step) error {
	if st.Stage >= 2 {
		return e.applyBalanceChange(ctx, ev, st)
	}
	cfg := e.botCfg.Get()
	t := texts{cfg: cfg}
	userID, err := strconv.ParseInt(strings.TrimSpace(ev.Text), 10, 64)
	if err != nil || userID <= 0 {
		e.send(ctx, ev.chatID(), Message{Text: t.get(textBadNumber)})
		return nil
	}
	user, err := e.users.Get(ctx, userID)
	if errors.Is(err, userdomain.ErrNotFound) {
		e.send(ctx, ev.chatID(), Message{Text: t.get(textUserNotFound)})
		return nil
	}
	if err != nil {
		return err
	}
	balance, err := e.ledger.Balance(ctx, userID)
	if err != nil && !errors.Is(err, ledgerdomain.ErrAccountNotFound) {
		return err
	}
	next := stepdomain.Start(stepdomain.FlowManageUser).Advance("user", strconv.FormatInt(userID, 10))
	if err := e.steps.Set(ctx, ev.UserID, next); err != nil {
		return err
	}
	e.send(ctx, ev.chatID(), Message{
		Text:   t.format(textUserCard, user.ID, string(user.Tier), balance.Amount, cfg.VIP.Currency),
		Inline: manageUserKeyboard(user.ID),
	})
	return nil
}

func (e *Engine) onBalanceAction(ctx context.Context, ev Event, tok Token) (answer, error) {
	if reply, ok, err := e.authorizeButton(ctx, ev, authorization.ObjectBalance, authorization.ActionBalanceManage); !ok {
		return reply, err
	}
	next := stepdomain.Step{
		Flow:  stepdomain.FlowManageUser,
		Stage: 2,
		Fields: map[string]string{
			"user": tok.Arg(0),
			"op":   string(tok.Action),
		},
	}
	if err := e.steps.Set(ctx, ev.UserID, next); err != nil {
		return answer{}, err
	}
	t := e.texts()
	e.send(ctx, ev.chatID(), Message{Text: t.get(textAskAmount), Reply: backMenu(t)})
	return answer{}, nil
}

func (e *Engine) applyBalanceChange(ctx context.Context, ev Event, st stepdomain.Step) error {
	cfg := e.botCfg.Get()
	t := texts{cfg: cfg}
	amount, err := strconv.ParseInt(strings.TrimSpace(ev.Text), 10, 64)
	if err != nil || amount <= 0 {
		e.send(ctx, ev.chatID(), Message{Text: t.get(textBadAmount)})
		return nil
	}
	userID, err := st.Int64Field("user")
	if err != nil {
		return e.steps.Clear(ctx, ev.UserID)
	}

	posting := ledgerdomain.Posting{
		UserID:     userID,
		Direction:  ledgerdomain.LedgerEntryDirectionCredit,
		Amount:     amount,
		SourceType: ledgerdomain.SourceTypeAdminCredit,
		SourceID:   e.genID.Generate().String(),
		OccurredAt: e.clock.Now(),
	}
	action := auditdomain.ActionBalanceCredited
	if st.Field("op") == string(ActionDebit) {
		posting.Direction = ledgerdomain.LedgerEntryDirectionDebit
		posting.SourceType = ledgerdomain.SourceTypeAdminDebit
		action = auditdomain.ActionBalanceDebited
	}

	balance, err := e.ledger.Apply(ctx, posting)
	if errors.Is(err, ledgerdomain.ErrInsufficientFunds) {
		e.send(ctx, ev.chatID(), Message{Text: t.get(textVIPInsufficient)})
		return nil
	}
	if errors.Is(err, ledgerdomain.ErrAccountNotFound) {
		e.send(ctx, ev.chatID(), Message{Text: t.get(textUserNotFound)})
		return e.steps.Clear(ctx, ev.UserID)
	}
	if err != nil {
		return err
	}
	if err := e.steps.Clear(ctx, ev.UserID); err != nil {
		return err
	}
	e.auditLog(ctx, ev.UserID, action, "user", strconv.FormatInt(userID, 10), map[string]any{
		"amount":    amount,
		"source_id": posting.SourceID,
	})
	e.send(ctx, ev.chatID(), Message{Text: t.format(textBalanceChanged, balance.Amount, cfg.VIP.Currency), Reply: adminMenu(t)})
	e.send(ctx, userID, Message{Text: t.format(textBalanceNotify, balance.Amount, cfg.VIP.Currency)})
	return nil
}

func (e *Engine) flowAddAdmin(ctx context.Context, ev Event, st stepdomain.Step) error {
	t := e.texts()
	userID, err := strconv.ParseInt(strings.TrimSpace(ev.Text), 10, 64)
	if err != nil || userID <= 0 {
		e.send(ctx, ev.chatID(), Message{Text: t.get(textBadNumber)})
		return nil
	}
	if err := e.authz.GrantAdmin(ctx, ev.UserID, userID); err != nil {
		if errors.Is(err, authorization.ErrForbidden) {
			e.send(ctx, ev.chatID(), Message{Text: t.get(textNoPermission)})
			return e.steps.Clear(ctx, ev.UserID)
		}
		return err
	}
	if err := e.steps.Clear(ctx, ev.UserID); err != nil {
		return err
	}
	e.send(ctx, ev.chatID(), Message{Text: t.format(textAdminAdded, userID), Reply: adminMenu(t)})
	return nil
}

// authorizeButton reports ok=false with the reply to send when the
// presser may not act.
func (e *Engine) authorizeButton(ctx context.Context, ev Event, object, action string) (answer, bool, error) {
	err := e.authz.Authorize(ctx, ev.UserID, object, action)
	if err == nil {
		return answer{}, true, nil
	}
	if errors.Is(err, authorization.ErrForbidden) {
		return answer{Text: e.texts().get(textNoPermission), Alert: true}, false, nil
	}
	return answer{}, false, err
}
