package telegram

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/smallbiznis/animegate/internal/bot"
	"github.com/smallbiznis/animegate/internal/config"
	"go.uber.org/zap"
)

// WebhookPath is the route prefix of the webhook intake; the secret is the
// last path segment.
const WebhookPath = "/telegram/webhook"

var ErrMissingWebhookURL = errors.New("telegram_webhook_url_missing")

// Dispatcher accepts engine events.
type Dispatcher interface {
	Dispatch(ctx context.Context, ev bot.Event) error
}

// Intake feeds updates from either long polling or the webhook into the
// dispatcher.
type Intake struct {
	api        *tgbotapi.BotAPI
	dispatcher Dispatcher
	cfg        config.Config
	log        *zap.Logger

	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

func NewIntake(api *tgbotapi.BotAPI, dispatcher Dispatcher, cfg config.Config, log *zap.Logger) *Intake {
	return &Intake{
		api:        api,
		dispatcher: dispatcher,
		cfg:        cfg,
		log:        log.Named("telegram.intake"),
	}
}

// Accept converts one update and dispatches it. Updates the engine does not
// handle are dropped.
func (i *Intake) Accept(ctx context.Context, u tgbotapi.Update) error {
	ev, ok := ToEvent(u)
	if !ok {
		i.log.Debug("update ignored", zap.Int("update_id", u.UpdateID))
		return nil
	}
	return i.dispatcher.Dispatch(ctx, ev)
}

// Start registers the webhook or begins long polling, depending on the
// configured mode.
func (i *Intake) Start(ctx context.Context) error {
	if i.cfg.IsWebhook() {
		return i.registerWebhook()
	}
	return i.startPolling()
}

// Stop ends long polling. The webhook stays registered so updates queue up
// on the platform side during restarts.
func (i *Intake) Stop(ctx context.Context) error {
	if i.cancel == nil {
		return nil
	}
	i.once.Do(func() {
		i.api.StopReceivingUpdates()
		i.cancel()
	})
	select {
	case <-i.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (i *Intake) registerWebhook() error {
	link, err := WebhookURL(i.cfg.Telegram)
	if err != nil {
		return err
	}
	wh, err := tgbotapi.NewWebhook(link)
	if err != nil {
		return fmt.Errorf("telegram webhook url: %w", err)
	}
	wh.AllowedUpdates = allowedUpdates
	if _, err := i.api.Request(wh); err != nil {
		return fmt.Errorf("telegram set webhook: %w", err)
	}
	i.log.Info("telegram webhook registered")
	return nil
}

func (i *Intake) startPolling() error {
	// a leftover webhook makes getUpdates fail
	if _, err := i.api.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
		return fmt.Errorf("telegram delete webhook: %w", err)
	}
	u := tgbotapi.NewUpdate(0)
	u.Timeout = i.cfg.Telegram.PollTimeout
	u.AllowedUpdates = allowedUpdates
	updates := i.api.GetUpdatesChan(u)

	ctx, cancel := context.WithCancel(context.Background())
	i.cancel = cancel
	i.done = make(chan struct{})
	go i.poll(ctx, updates)
	i.log.Info("telegram long polling started", zap.Int("timeout_seconds", u.Timeout))
	return nil
}

func (i *Intake) poll(ctx context.Context, updates tgbotapi.UpdatesChannel) {
	defer close(i.done)
	for {
		select {
		case <-ctx.Done():
			return
		case u, ok := <-updates:
			if !ok {
				return
			}
			if err := i.Accept(ctx, u); err != nil {
				i.log.Warn("update not dispatched", zap.Int("update_id", u.UpdateID), zap.Error(err))
			}
		}
	}
}

// WebhookURL joins the public base URL with the secret webhook path.
func WebhookURL(cfg config.TelegramConfig) (string, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.WebhookURL), "/")
	if base == "" || cfg.WebhookSecret == "" {
		return "", ErrMissingWebhookURL
	}
	if _, err := url.ParseRequestURI(base); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMissingWebhookURL, err)
	}
	return base + WebhookPath + "/" + url.PathEscape(cfg.WebhookSecret), nil
}
