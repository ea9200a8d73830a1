package metrics

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	EventResultHandled   = "handled"
	EventResultFailed    = "failed"
	EventResultPanicked  = "panicked"
	EventResultThrottled = "throttled"
)

// BotMetrics captures inbound event processing for the dispatch engine.
type BotMetrics struct {
	events     *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	queueDepth prometheus.Gauge
	dropped    prometheus.Counter
}

// NewBotMetrics registers engine collectors on the default registerer.
func NewBotMetrics(cfg Config) *BotMetrics {
	return NewBotMetricsWithRegisterer(prometheus.DefaultRegisterer, cfg)
}

// NewBotMetricsWithRegisterer registers engine collectors on the given registerer.
func NewBotMetricsWithRegisterer(registerer prometheus.Registerer, cfg Config) *BotMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	constLabels := prometheus.Labels{
		"service": defaultLabel(cfg.ServiceName, "animegate"),
		"env":     defaultLabel(cfg.Environment, "unknown"),
	}
	events := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "animegate_bot_events_total",
		Help:        "Inbound chat events by kind and result.",
		ConstLabels: constLabels,
	}, []string{"kind", "result"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:        "animegate_bot_handle_duration_seconds",
		Help:        "Time spent handling a single inbound event.",
		Buckets:     []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		ConstLabels: constLabels,
	}, []string{"kind"})
	queueDepth := prometheus.NewGauge(prometheus.GaugeOpts{
		Name:        "animegate_bot_queue_depth",
		Help:        "Events waiting in worker queues.",
		ConstLabels: constLabels,
	})
	dropped := prometheus.NewCounter(prometheus.CounterOpts{
		Name:        "animegate_bot_events_dropped_total",
		Help:        "Events dropped because the engine was stopping.",
		ConstLabels: constLabels,
	})
	registerer.MustRegister(events, duration, queueDepth, dropped)
	return &BotMetrics{events: events, duration: duration, queueDepth: queueDepth, dropped: dropped}
}

// ObserveEvent records the outcome and latency of one event.
func (m *BotMetrics) ObserveEvent(kind, result string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(kind, result).Inc()
	m.duration.WithLabelValues(kind).Observe(elapsed.Seconds())
}

func (m *BotMetrics) QueueInc() {
	if m == nil {
		return
	}
	m.queueDepth.Inc()
}

func (m *BotMetrics) QueueDec() {
	if m == nil {
		return
	}
	m.queueDepth.Dec()
}

func (m *BotMetrics) IncDropped() {
	if m == nil {
		return
	}
	m.dropped.Inc()
}

func defaultLabel(value, def string) string {
	if v := strings.TrimSpace(value); v != "" {
		return v
	}
	return def
}
