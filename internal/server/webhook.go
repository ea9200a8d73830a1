package server

import (
	"crypto/subtle"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/smallbiznis/animegate/internal/bot"
	"go.uber.org/zap"
)

// TelegramWebhook accepts one update pushed by the Bot API. Dispatch is
// asynchronous, so the platform gets its 200 as soon as the update is queued.
func (s *Server) TelegramWebhook(c *gin.Context) {
	secret := c.Param("secret")
	expected := s.cfg.Telegram.WebhookSecret
	if expected == "" || subtle.ConstantTimeCompare([]byte(secret), []byte(expected)) != 1 {
		AbortWithError(c, ErrNotFound)
		return
	}

	var update tgbotapi.Update
	if err := c.ShouldBindJSON(&update); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	c.Set("update_id", update.UpdateID)

	if err := s.intake.Accept(c.Request.Context(), update); err != nil {
		if errors.Is(err, bot.ErrDispatcherStopped) {
			// a non-2xx answer makes the platform redeliver after restart
			AbortWithError(c, ErrServiceUnavailable)
			return
		}
		s.log.Warn("webhook update not dispatched", zap.Int("update_id", update.UpdateID), zap.Error(err))
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusOK)
}
