package bot

import (
	"context"
	"errors"
	"slices"

	ledgerdomain "github.com/smallbiznis/animegate/internal/ledger/domain"
	subscriptiondomain "github.com/smallbiznis/animegate/internal/subscription/domain"
	"go.uber.org/zap"
)

const expiryLayout = "02.01.2006"

func (e *Engine) onVIP(ctx context.Context, ev Event) error {
	cfg := e.botCfg.Get()
	t := texts{cfg: cfg}
	user, err := e.users.Get(ctx, ev.UserID)
	if err != nil {
		return err
	}
	if !user.IsVIP() {
		e.send(ctx, ev.chatID(), Message{Text: t.get(textVIPOffer), Inline: planKeyboard(cfg, e.vip.Quote, t)})
		return nil
	}

	status, err := e.vip.Status(ctx, ev.UserID)
	if err != nil {
		return err
	}
	kb := &InlineKeyboard{}
	kb.Row(InlineButton{Text: t.get(textVIPExtend), Data: string(ActionExtend)})
	e.send(ctx, ev.chatID(), Message{
		Text:   t.format(textVIPStatus, status.RemainingDays, status.ExpiresAt.Format(expiryLayout)),
		Inline: kb,
	})
	return nil
}

func (e *Engine) onExtend(ctx context.Context, ev Event, tok Token) (answer, error) {
	cfg := e.botCfg.Get()
	t := texts{cfg: cfg}
	e.edit(ctx, ev.chatID(), ev.MessageID, Message{Text: t.get(textVIPExtendAsk), Inline: planKeyboard(cfg, e.vip.Quote, t)})
	return answer{}, nil
}

// onBuy runs the purchase and rewrites the offer message with the outcome.
func (e *Engine) onBuy(ctx context.Context, ev Event, tok Token) (answer, error) {
	cfg := e.botCfg.Get()
	t := texts{cfg: cfg}
	days := int(tok.Int(0))
	if !slices.Contains(cfg.VIP.Plans, days) {
		e.logger(ctx).Debug("plan not offered", zap.Int("days", days))
		return answer{}, nil
	}

	result, err := e.vip.Purchase(ctx, subscriptiondomain.PurchaseRequest{UserID: ev.UserID, Days: days})
	if err != nil {
		return answer{}, err
	}
	switch result.Outcome {
	case subscriptiondomain.OutcomeInsufficientFunds:
		return answer{Text: t.get(textVIPInsufficient), Alert: true}, nil
	case subscriptiondomain.OutcomeExtended:
		e.edit(ctx, ev.chatID(), ev.MessageID, Message{Text: t.get(textVIPExtended)})
	default:
		e.edit(ctx, ev.chatID(), ev.MessageID, Message{Text: t.get(textVIPActivated)})
	}
	return answer{}, nil
}

func (e *Engine) onBalance(ctx context.Context, ev Event) error {
	cfg := e.botCfg.Get()
	t := texts{cfg: cfg}
	balance, err := e.ledger.Balance(ctx, ev.UserID)
	if err != nil && !errors.Is(err, ledgerdomain.ErrAccountNotFound) {
		return err
	}
	e.send(ctx, ev.chatID(), Message{Text: t.format(textBalance, ev.UserID, balance.Amount, cfg.VIP.Currency)})
	return nil
}

func (e *Engine) onTopUp(ctx context.Context, ev Event) error {
	e.send(ctx, ev.chatID(), Message{Text: e.texts().format(textTopUp, ev.UserID)})
	return nil
}
