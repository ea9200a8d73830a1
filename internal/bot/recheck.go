package bot

import (
	"context"

	gatedomain "github.com/smallbiznis/animegate/internal/gate/domain"
	"go.uber.org/zap"
)

// onRecheck acknowledges the press immediately and plays the progress
// animation in the background.
func (e *Engine) onRecheck(ctx context.Context, ev Event, tok Token) (answer, error) {
	pending := tok.Int(0)
	bg, cancel := context.WithTimeout(context.WithoutCancel(ctx), recheckBudget)

	e.background.Add(1)
	go func() {
		defer e.background.Done()
		defer cancel()
		defer func() {
			if r := recover(); r != nil {
				e.logger(bg).Error("recheck panicked", zap.Any("panic", r))
			}
		}()
		e.runRecheck(bg, ev, pending)
	}()
	return answer{}, nil
}

func (e *Engine) runRecheck(ctx context.Context, ev Event, pendingTitle int64) {
	cfg := e.botCfg.Get()
	t := texts{cfg: cfg}
	chatID := ev.chatID()

	if interval := cfg.Recheck.FrameInterval; interval > 0 {
		for _, percent := range gatedomain.RecheckFrames {
			e.edit(ctx, chatID, ev.MessageID, Message{Text: t.format(textGateProgress, percent, progressBar(percent))})
			if err := e.sleep(ctx, interval); err != nil {
				return
			}
		}
	}
	e.remove(ctx, chatID, ev.MessageID)

	result, err := e.gate.Check(ctx, ev.UserID)
	if err != nil {
		e.logger(ctx).Warn("recheck failed", zap.Int64("user_id", ev.UserID), zap.Error(err))
		e.send(ctx, chatID, Message{Text: t.get(textFailed)})
		return
	}
	if !result.Passed {
		e.send(ctx, chatID, Message{Text: t.get(textGateNotDetected)})
		e.send(ctx, chatID, Message{Text: t.get(textGatePrompt), Inline: gatePrompt(result, pendingTitle, t)})
		return
	}
	if pendingTitle > 0 {
		if err := e.showTitle(ctx, chatID, ev.UserID, pendingTitle); err != nil {
			e.logger(ctx).Warn("resume after recheck failed", zap.Int64("title_id", pendingTitle), zap.Error(err))
		}
		return
	}
	e.send(ctx, chatID, Message{
		Text:  t.format(textStart, ev.FirstName),
		Reply: mainMenu(t, e.isAdmin(ctx, ev.UserID)),
	})
}
