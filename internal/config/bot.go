package config

import (
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const (
	ChannelModeLink    = "link"
	ChannelModeRequest = "request"
)

// BotConfig is the operator-editable part of the configuration. It is
// reloaded without a restart whenever bot.yml changes.
type BotConfig struct {
	VIP          VIPConfig         `mapstructure:"vip"`
	Referral     ReferralConfig    `mapstructure:"referral"`
	Channels     []Channel         `mapstructure:"channels"`
	Admins       []int64           `mapstructure:"admins"`
	Promo        PromoLinks        `mapstructure:"promo"`
	Recheck      RecheckConfig     `mapstructure:"recheck"`
	Broadcast    BroadcastConfig   `mapstructure:"broadcast"`
	Throttle     ThrottleConfig    `mapstructure:"throttle"`
	AnimeChannel string            `mapstructure:"animeChannel"`
	Texts        map[string]string `mapstructure:"texts"`
}

type VIPConfig struct {
	BasePrice      int64  `mapstructure:"basePrice"`
	BasePeriodDays int    `mapstructure:"basePeriodDays"`
	Currency       string `mapstructure:"currency"`
	Plans          []int  `mapstructure:"plans"`
}

type ReferralConfig struct {
	Bonus int64 `mapstructure:"bonus"`
}

// Channel is a mandatory channel a user must join before browsing.
type Channel struct {
	ID    int64  `mapstructure:"id"`
	Link  string `mapstructure:"link"`
	Title string `mapstructure:"title"`
	Mode  string `mapstructure:"mode"`
}

type PromoLinks struct {
	Instagram string `mapstructure:"instagram"`
	Youtube   string `mapstructure:"youtube"`
}

type RecheckConfig struct {
	// FrameInterval is the delay between progress frames. Zero skips the animation.
	FrameInterval time.Duration `mapstructure:"frameInterval"`
}

type BroadcastConfig struct {
	Concurrency int `mapstructure:"concurrency"`
	PageSize    int `mapstructure:"pageSize"`
}

type ThrottleConfig struct {
	Rate  float64 `mapstructure:"rate"`
	Burst int     `mapstructure:"burst"`
}

func DefaultBotConfig() BotConfig {
	return BotConfig{
		VIP: VIPConfig{
			BasePrice:      25000,
			BasePeriodDays: 30,
			Currency:       "so'm",
			Plans:          []int{30, 60, 90},
		},
		Recheck: RecheckConfig{FrameInterval: 400 * time.Millisecond},
		Broadcast: BroadcastConfig{
			Concurrency: 8,
			PageSize:    200,
		},
		Throttle: ThrottleConfig{Rate: 2, Burst: 10},
	}
}

// IsAdmin reports whether the user is listed as an administrator in bot.yml.
func (c BotConfig) IsAdmin(userID int64) bool {
	for _, id := range c.Admins {
		if id == userID {
			return true
		}
	}
	return false
}

// Text returns the configured override for key, or def.
func (c BotConfig) Text(key, def string) string {
	if c.Texts == nil {
		return def
	}
	if v, ok := c.Texts[strings.ToLower(key)]; ok && strings.TrimSpace(v) != "" {
		return v
	}
	return def
}

type BotConfigHolder struct {
	current atomic.Value // holds BotConfig
}

func NewBotConfigHolder(log *zap.Logger) (*BotConfigHolder, error) {
	log = log.Named("bot-config")
	v := viper.New()

	v.SetConfigName("bot")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/animegate/config")
	v.AddConfigPath("/etc/animegate")
	v.AddConfigPath(".")

	v.SetEnvPrefix("ANIMEGATE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultBotConfig()
	v.SetDefault("bot.vip.basePrice", defaults.VIP.BasePrice)
	v.SetDefault("bot.vip.basePeriodDays", defaults.VIP.BasePeriodDays)
	v.SetDefault("bot.vip.currency", defaults.VIP.Currency)
	v.SetDefault("bot.vip.plans", defaults.VIP.Plans)
	v.SetDefault("bot.recheck.frameInterval", defaults.Recheck.FrameInterval)
	v.SetDefault("bot.broadcast.concurrency", defaults.Broadcast.Concurrency)
	v.SetDefault("bot.broadcast.pageSize", defaults.Broadcast.PageSize)
	v.SetDefault("bot.throttle.rate", defaults.Throttle.Rate)
	v.SetDefault("bot.throttle.burst", defaults.Throttle.Burst)

	fileFound := true
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		fileFound = false
		log.Info("bot.yml not found, using defaults")
	}

	var cfg BotConfig
	if err := v.UnmarshalKey("bot", &cfg); err != nil {
		return nil, err
	}
	if err := validateBotConfig(cfg); err != nil {
		return nil, err
	}

	holder := NewStaticBotConfigHolder(cfg)
	if !fileFound {
		return holder, nil
	}

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated BotConfig
		if err := v.UnmarshalKey("bot", &updated); err != nil {
			log.Warn("reload failed", zap.Error(err))
			return
		}
		if err := validateBotConfig(updated); err != nil {
			log.Warn("invalid config ignored", zap.Error(err))
			return
		}
		holder.Store(updated)
		log.Info("reloaded", zap.String("file", e.Name))
	})

	return holder, nil
}

// NewStaticBotConfigHolder wraps a fixed configuration.
func NewStaticBotConfigHolder(cfg BotConfig) *BotConfigHolder {
	holder := &BotConfigHolder{}
	holder.Store(cfg)
	return holder
}

func (h *BotConfigHolder) Get() BotConfig {
	return h.current.Load().(BotConfig)
}

func (h *BotConfigHolder) Store(cfg BotConfig) {
	h.current.Store(cfg)
}

func validateBotConfig(cfg BotConfig) error {
	if cfg.VIP.BasePrice <= 0 {
		return errors.New("bot.vip.basePrice must be positive")
	}
	if cfg.VIP.BasePeriodDays <= 0 {
		return errors.New("bot.vip.basePeriodDays must be positive")
	}
	if strings.TrimSpace(cfg.VIP.Currency) == "" {
		return errors.New("bot.vip.currency cannot be empty")
	}
	for _, days := range cfg.VIP.Plans {
		if days <= 0 {
			return fmt.Errorf("bot.vip.plans: invalid plan %d", days)
		}
	}
	for _, ch := range cfg.Channels {
		if ch.ID == 0 {
			return errors.New("bot.channels: id is required")
		}
		switch ch.Mode {
		case ChannelModeLink, ChannelModeRequest:
		default:
			return fmt.Errorf("bot.channels: unsupported mode %q for %d", ch.Mode, ch.ID)
		}
	}
	return nil
}
