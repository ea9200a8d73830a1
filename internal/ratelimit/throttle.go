package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/smallbiznis/animegate/internal/config"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	keyInboundThrottle = "bot:user:throttle:%d"
	localLimiterIdle   = 10 * time.Minute
	localLimiterPrune  = 4096
)

// InboundThrottle drops bursts of events from a single user. Limits come
// from the hot-reloaded bot config; a non-positive rate disables it.
type InboundThrottle struct {
	bucket *TokenBucket
	botCfg *config.BotConfigHolder
	log    *zap.Logger

	mu      sync.Mutex
	local   map[int64]*localLimiter
	nowFunc func() time.Time
}

type localLimiter struct {
	limiter  *rate.Limiter
	rate     float64
	burst    int
	lastSeen time.Time
}

func NewInboundThrottle(bucket *TokenBucket, botCfg *config.BotConfigHolder, log *zap.Logger) *InboundThrottle {
	return &InboundThrottle{
		bucket:  bucket,
		botCfg:  botCfg,
		log:     log.Named("ratelimit.throttle"),
		local:   make(map[int64]*localLimiter),
		nowFunc: time.Now,
	}
}

// Allow reports whether an event from userID may be processed now.
func (t *InboundThrottle) Allow(ctx context.Context, userID int64) bool {
	if t == nil || t.botCfg == nil {
		return true
	}
	limits := t.botCfg.Get().Throttle
	if limits.Rate <= 0 || limits.Burst <= 0 {
		return true
	}

	if t.bucket != nil {
		res, err := t.bucket.Allow(ctx, fmt.Sprintf(keyInboundThrottle, userID), limits.Rate, limits.Burst)
		if err == nil {
			return res.Allowed
		}
		// redis trouble never blocks users; fall through to the local limiter
		t.log.Warn("redis throttle failed", zap.Int64("user_id", userID), zap.Error(err))
	}
	return t.allowLocal(userID, limits.Rate, limits.Burst)
}

func (t *InboundThrottle) allowLocal(userID int64, r float64, burst int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.nowFunc()
	entry, ok := t.local[userID]
	if !ok || entry.rate != r || entry.burst != burst {
		entry = &localLimiter{
			limiter: rate.NewLimiter(rate.Limit(r), burst),
			rate:    r,
			burst:   burst,
		}
		t.local[userID] = entry
	}
	entry.lastSeen = now

	if len(t.local) > localLimiterPrune {
		for id, l := range t.local {
			if now.Sub(l.lastSeen) > localLimiterIdle {
				delete(t.local, id)
			}
		}
	}

	return entry.limiter.AllowN(now, 1)
}
