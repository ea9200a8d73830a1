package bot

import (
	"context"
	"errors"
	"strconv"
	"strings"

	auditdomain "github.com/smallbiznis/animegate/internal/audit/domain"
	"github.com/smallbiznis/animegate/internal/authorization"
	catalogdomain "github.com/smallbiznis/animegate/internal/catalog/domain"
	stepdomain "github.com/smallbiznis/animegate/internal/step/domain"
	"go.uber.org/zap"
)

func (e *Engine) onSearchMenu(ctx context.Context, ev Event) error {
	e.send(ctx, ev.chatID(), Message{Text: e.texts().get(textSearchMenu), Inline: searchMenu()})
	return nil
}

// showTitle bumps the view counter and sends the detail card. Unknown
// titles only produce a notice.
func (e *Engine) showTitle(ctx context.Context, chatID, userID, titleID int64) error {
	t := e.texts()
	title, err := e.catalog.ViewTitle(ctx, titleID)
	if errors.Is(err, catalogdomain.ErrNotFound) || errors.Is(err, catalogdomain.ErrInvalidID) {
		e.send(ctx, chatID, Message{Text: t.get(textTitleNotFound)})
		return nil
	}
	if err != nil {
		return err
	}

	kind := MediaPhoto
	if title.MediaKind == catalogdomain.MediaKindVideo {
		kind = MediaVideo
	}
	e.sendMedia(ctx, chatID, OutgoingMedia{
		Kind:   kind,
		FileID: title.MediaRef,
		Caption: t.format(textTitleCaption,
			title.Name, title.EpisodesLabel, title.Country, title.Language,
			title.Year, title.Genre, title.Dub, title.Views, title.ID),
		Inline: titleDetailKeyboard(title, t),
	})
	e.logger(ctx).Debug("title shown", zap.Int64("title_id", title.ID), zap.Int64("user_id", userID), zap.Int64("views", title.Views))
	return nil
}

func (e *Engine) onTitleButton(ctx context.Context, ev Event, tok Token) (answer, error) {
	titleID := tok.Int(0)
	ok, err := e.passGate(ctx, ev, titleID)
	if err != nil || !ok {
		return answer{}, err
	}
	return answer{}, e.showTitle(ctx, ev.chatID(), ev.UserID, titleID)
}

// onDownload sends the requested episode with the window around it.
func (e *Engine) onDownload(ctx context.Context, ev Event, tok Token) (answer, error) {
	titleID := tok.Int(0)
	target := int(tok.Int(1))
	ok, err := e.passGate(ctx, ev, titleID)
	if err != nil || !ok {
		return answer{}, err
	}

	t := e.texts()
	page, err := e.catalog.EpisodePage(ctx, titleID, target)
	switch {
	case errors.Is(err, catalogdomain.ErrNotFound), errors.Is(err, catalogdomain.ErrInvalidID):
		e.send(ctx, ev.chatID(), Message{Text: t.get(textTitleNotFound)})
		return answer{}, nil
	case errors.Is(err, catalogdomain.ErrEpisodeNotFound), errors.Is(err, catalogdomain.ErrInvalidEpisode):
		e.send(ctx, ev.chatID(), Message{Text: t.get(textEpisodeNotFound)})
		return answer{}, nil
	case err != nil:
		return answer{}, err
	}

	e.sendMedia(ctx, ev.chatID(), OutgoingMedia{
		Kind:    MediaVideo,
		FileID:  page.Current.MediaRef,
		Caption: t.format(textEpisodeCaption, page.Title.Name, target),
		Inline:  episodeKeyboard(page, target, e.isAdmin(ctx, ev.UserID), t),
	})
	return answer{}, nil
}

// onPage moves the episode grid of the pressed message by one window.
func (e *Engine) onPage(ctx context.Context, ev Event, tok Token) (answer, error) {
	titleID := tok.Int(0)
	anchor := int(tok.Int(1))
	origin := int(tok.Int(2))
	dir := catalogdomain.Direction(tok.Arg(3))

	t := e.texts()
	page, err := e.catalog.ShiftWindow(ctx, titleID, anchor, dir)
	switch {
	case errors.Is(err, catalogdomain.ErrNoPrevWindow):
		return answer{Text: t.get(textNoPrevWindow), Alert: true}, nil
	case errors.Is(err, catalogdomain.ErrNoNextWindow):
		return answer{Text: t.get(textNoNextWindow), Alert: true}, nil
	case errors.Is(err, catalogdomain.ErrNotFound), errors.Is(err, catalogdomain.ErrInvalidID):
		return answer{Text: t.get(textTitleNotFound), Alert: true}, nil
	case err != nil:
		return answer{}, err
	}

	kb := episodeKeyboard(page, origin, e.isAdmin(ctx, ev.UserID), t)
	if err := e.transport.EditKeyboard(ctx, ev.chatID(), ev.MessageID, kb); err != nil {
		e.logger(ctx).Warn("edit keyboard failed", zap.Int("message_id", ev.MessageID), zap.Error(err))
	}
	return answer{}, nil
}

func (e *Engine) onDeleteEpisode(ctx context.Context, ev Event, tok Token) (answer, error) {
	t := e.texts()
	if reply, ok, err := e.authorizeButton(ctx, ev, authorization.ObjectCatalog, authorization.ActionCatalogManage); !ok {
		return reply, err
	}

	titleID := tok.Int(0)
	number := int(tok.Int(1))
	err := e.catalog.DeleteEpisode(ctx, titleID, number)
	if errors.Is(err, catalogdomain.ErrEpisodeNotFound) || errors.Is(err, catalogdomain.ErrInvalidEpisode) {
		return answer{Text: t.get(textEpisodeNotFound), Alert: true}, nil
	}
	if err != nil {
		return answer{}, err
	}

	e.auditLog(ctx, ev.UserID, auditdomain.ActionEpisodeDeleted, "title", strconv.FormatInt(titleID, 10), map[string]any{
		"episode": number,
	})
	// the message carries the deleted video
	if int(tok.Int(2)) == number {
		e.remove(ctx, ev.chatID(), ev.MessageID)
	}
	return answer{Text: t.format(textEpisodeDeleted, number), Alert: true}, nil
}

func (e *Engine) onSearchMode(ctx context.Context, ev Event, tok Token) (answer, error) {
	flow, prompt := stepdomain.FlowSearchByName, textAskName
	switch tok.Arg(0) {
	case "code":
		flow, prompt = stepdomain.FlowSearchByCode, textAskCode
	case "genre":
		flow, prompt = stepdomain.FlowSearchByGenre, textAskGenre
	}
	if err := e.steps.Set(ctx, ev.UserID, stepdomain.Start(flow)); err != nil {
		return answer{}, err
	}
	e.edit(ctx, ev.chatID(), ev.MessageID, Message{Text: e.texts().get(prompt)})
	return answer{}, nil
}

func (e *Engine) flowSearchByCode(ctx context.Context, ev Event, st stepdomain.Step) error {
	code, err := strconv.ParseInt(strings.TrimSpace(ev.Text), 10, 64)
	if err != nil || code <= 0 {
		e.send(ctx, ev.chatID(), Message{Text: e.texts().get(textBadNumber)})
		return nil
	}
	if err := e.steps.Clear(ctx, ev.UserID); err != nil {
		return err
	}
	ok, err := e.passGate(ctx, ev, code)
	if err != nil || !ok {
		return err
	}
	return e.showTitle(ctx, ev.chatID(), ev.UserID, code)
}

func (e *Engine) flowSearch(mode catalogdomain.SearchMode) flowHandler {
	return func(ctx context.Context, ev Event, st stepdomain.Step) error {
		query := strings.TrimSpace(ev.Text)
		if query == "" {
			return nil
		}
		if err := e.steps.Clear(ctx, ev.UserID); err != nil {
			return err
		}
		return e.searchTitles(ctx, ev, mode, query)
	}
}

func (e *Engine) searchTitles(ctx context.Context, ev Event, mode catalogdomain.SearchMode, query string) error {
	titles, err := e.catalog.Search(ctx, catalogdomain.SearchRequest{Mode: mode, Query: query, Limit: searchLimit})
	if err != nil && !errors.Is(err, catalogdomain.ErrInvalidQuery) {
		return err
	}
	e.sendTitles(ctx, ev, titles, false)
	return nil
}

func (e *Engine) onRecent(ctx context.Context, ev Event, tok Token) (answer, error) {
	titles, err := e.catalog.Recent(ctx, listLimit)
	if err != nil {
		return answer{}, err
	}
	e.sendTitles(ctx, ev, titles, true)
	return answer{}, nil
}

func (e *Engine) onTop(ctx context.Context, ev Event, tok Token) (answer, error) {
	titles, err := e.catalog.Top(ctx, listLimit)
	if err != nil {
		return answer{}, err
	}
	e.sendTitles(ctx, ev, titles, true)
	return answer{}, nil
}

func (e *Engine) onAllTitles(ctx context.Context, ev Event, tok Token) (answer, error) {
	page, err := e.catalog.ListPage(ctx, int(tok.Int(0)), listLimit)
	if err != nil {
		return answer{}, err
	}
	t := e.texts()
	if len(page.Titles) == 0 {
		return answer{Text: t.get(textNothingFound), Alert: true}, nil
	}
	e.edit(ctx, ev.chatID(), ev.MessageID, Message{Text: t.get(textResults), Inline: titlePageKeyboard(page, t)})
	return answer{}, nil
}

// sendTitles renders a result list, replacing the pressed message when
// the list came from a button.
func (e *Engine) sendTitles(ctx context.Context, ev Event, titles []catalogdomain.Title, replace bool) {
	t := e.texts()
	msg := Message{Text: t.get(textNothingFound)}
	if len(titles) > 0 {
		msg = Message{Text: t.get(textResults), Inline: titleListKeyboard(titles)}
	}
	if replace {
		e.edit(ctx, ev.chatID(), ev.MessageID, msg)
		return
	}
	e.send(ctx, ev.chatID(), msg)
}
