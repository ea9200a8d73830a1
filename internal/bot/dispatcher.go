package bot

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/smallbiznis/animegate/internal/config"
	obscontext "github.com/smallbiznis/animegate/internal/observability/context"
	"github.com/smallbiznis/animegate/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/animegate/internal/observability/metrics"
	"github.com/smallbiznis/animegate/internal/observability/tracing"
	"github.com/smallbiznis/animegate/internal/ratelimit"
	"github.com/smallbiznis/animegate/pkg/telemetry/correlation"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	defaultWorkers       = 8
	defaultQueueSize     = 64
	defaultHandleTimeout = 30 * time.Second
)

var ErrDispatcherStopped = errors.New("dispatcher_stopped")

type DispatcherParams struct {
	fx.In

	Log        *zap.Logger
	Config     config.Config
	Engine     *Engine
	Locker     ratelimit.UserLocker
	Throttle   *ratelimit.InboundThrottle `optional:"true"`
	Metrics    *obsmetrics.BotMetrics     `optional:"true"`
	ObsMetrics *obsmetrics.Metrics        `optional:"true"`
}

type queuedEvent struct {
	ctx context.Context
	ev  Event
}

// Dispatcher fans events out to a fixed pool of workers. Events of one
// user always land on the same worker, so they are handled in arrival
// order while different users proceed in parallel.
type Dispatcher struct {
	log        *zap.Logger
	engine     *Engine
	locker     ratelimit.UserLocker
	throttle   *ratelimit.InboundThrottle
	metrics    *obsmetrics.BotMetrics
	obsMetrics *obsmetrics.Metrics
	tracer     trace.Tracer
	timeout    time.Duration
	queueSize  int
	workers    int

	mu      sync.RWMutex
	queues  []chan queuedEvent
	running bool
	wg      sync.WaitGroup
}

func NewDispatcher(p DispatcherParams) *Dispatcher {
	workers := p.Config.Engine.Workers
	if workers <= 0 {
		workers = defaultWorkers
	}
	queueSize := p.Config.Engine.QueueSize
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	timeout := p.Config.Engine.HandleTimeout
	if timeout <= 0 {
		timeout = defaultHandleTimeout
	}
	locker := p.Locker
	if locker == nil {
		locker = ratelimit.NewKeyedMutex()
	}
	return &Dispatcher{
		log:        p.Log.Named("bot.dispatcher"),
		engine:     p.Engine,
		locker:     locker,
		throttle:   p.Throttle,
		metrics:    p.Metrics,
		obsMetrics: p.ObsMetrics,
		tracer:     otel.Tracer("animegate/bot"),
		timeout:    timeout,
		queueSize:  queueSize,
		workers:    workers,
	}
}

// Start launches the workers. It is a no-op when already running.
func (d *Dispatcher) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running {
		return
	}
	d.queues = make([]chan queuedEvent, d.workers)
	for i := range d.queues {
		queue := make(chan queuedEvent, d.queueSize)
		d.queues[i] = queue
		d.wg.Add(1)
		go d.work(queue)
	}
	d.running = true
	d.log.Info("dispatcher started", zap.Int("workers", d.workers), zap.Int("queue_size", d.queueSize))
}

// Stop closes the queues, lets the workers drain them and waits for
// background work of the engine.
func (d *Dispatcher) Stop(ctx context.Context) error {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return nil
	}
	d.running = false
	for _, queue := range d.queues {
		close(queue)
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		d.engine.Wait()
		close(done)
	}()
	select {
	case <-done:
		d.log.Info("dispatcher stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Dispatch enqueues the event on its user's worker. It blocks while that
// worker's queue is full.
func (d *Dispatcher) Dispatch(ctx context.Context, ev Event) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if !d.running {
		d.metrics.IncDropped()
		return ErrDispatcherStopped
	}
	queue := d.queues[workerIndex(ev.UserID, len(d.queues))]
	item := queuedEvent{ctx: context.WithoutCancel(ctx), ev: ev}

	d.metrics.QueueInc()
	select {
	case queue <- item:
		return nil
	case <-ctx.Done():
		d.metrics.QueueDec()
		d.metrics.IncDropped()
		return ctx.Err()
	}
}

func workerIndex(userID int64, workers int) int {
	if workers <= 1 {
		return 0
	}
	idx := userID % int64(workers)
	if idx < 0 {
		idx = -idx
	}
	return int(idx)
}

func (d *Dispatcher) work(queue <-chan queuedEvent) {
	defer d.wg.Done()
	for item := range queue {
		d.metrics.QueueDec()
		d.Process(item.ctx, item.ev)
	}
}

// Process handles one event on the calling goroutine.
func (d *Dispatcher) Process(ctx context.Context, ev Event) {
	start := time.Now()
	kind := string(ev.Kind)

	ctx, cid := correlation.ForUpdate(ctx, ev.UpdateID)
	ctx = obscontext.WithUserID(ctx, ev.UserID)
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	ctx, span := d.tracer.Start(ctx, "bot."+kind,
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(tracing.SafeAttributes(
			attribute.String("bot.event_kind", kind),
			attribute.Int64("bot.user_id", ev.UserID),
			attribute.String("correlation_id", cid),
		)...),
	)
	defer span.End()
	log := logger.WithContext(ctx, d.log)

	result := obsmetrics.EventResultHandled
	defer func() {
		if r := recover(); r != nil {
			result = obsmetrics.EventResultPanicked
			span.SetStatus(codes.Error, "panic")
			log.Error("event handler panicked", zap.Any("panic", r), zap.Stack("stack"))
		}
		d.metrics.ObserveEvent(kind, result, time.Since(start))
	}()

	if ev.Kind != EventJoinRequest && !d.throttle.Allow(ctx, ev.UserID) {
		result = obsmetrics.EventResultThrottled
		d.obsMetrics.RecordThrottleDenied(ctx, kind)
		log.Debug("event throttled")
		return
	}

	unlock, err := d.locker.Lock(ctx, ev.UserID)
	if err != nil {
		result = obsmetrics.EventResultFailed
		span.SetStatus(codes.Error, "user lock")
		log.Warn("user lock not acquired", zap.Error(err))
		return
	}
	defer unlock()

	if err := d.engine.Handle(ctx, ev); err != nil {
		result = obsmetrics.EventResultFailed
		safeErr := tracing.SafeError(err)
		span.RecordError(safeErr)
		span.SetStatus(codes.Error, "handle failed")
		log.Error("event handling failed", zap.String("kind", kind), zap.Error(safeErr))
	}
}
