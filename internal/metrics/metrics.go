// Package metrics exposes Prometheus collectors for behavior ticks, tool
// calls and session state.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "minepilot"

// Sources feed the gauges at scrape time. Nil sources report zero.
type Sources struct {
	RunningBehaviors func() int
	Connected        func() bool
}

// Metrics implements behavior.Observer and the MCP call observer.
type Metrics struct {
	ticks     *prometheus.CounterVec
	tickTime  *prometheus.HistogramVec
	toolCalls *prometheus.CounterVec
}

// New registers all collectors on reg. Registering twice on the same
// registry panics, as with promauto.
func New(reg prometheus.Registerer, src Sources) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	m := &Metrics{
		ticks: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "behavior_ticks_total",
			Help:      "Behavior ticks by outcome.",
		}, []string{"behavior", "result"}),
		tickTime: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "behavior_tick_seconds",
			Help:      "Wall time spent in one behavior tick.",
			Buckets:   []float64{0.005, 0.025, 0.1, 0.5, 1, 2.5, 5, 15, 30},
		}, []string{"behavior"}),
		toolCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tool_calls_total",
			Help:      "Tool adapter calls by outcome.",
		}, []string{"tool", "result"}),
	}

	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "behaviors_running",
		Help:      "Behaviors currently enabled.",
	}, func() float64 {
		if src.RunningBehaviors == nil {
			return 0
		}
		return float64(src.RunningBehaviors())
	})
	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "session_connected",
		Help:      "1 while a game session is live.",
	}, func() float64 {
		if src.Connected != nil && src.Connected() {
			return 1
		}
		return 0
	})
	return m
}

func (m *Metrics) ObserveTick(behavior string, took time.Duration, err error) {
	if m == nil {
		return
	}
	m.ticks.WithLabelValues(behavior, result(err)).Inc()
	m.tickTime.WithLabelValues(behavior).Observe(took.Seconds())
}

func (m *Metrics) ObserveCall(tool string, took time.Duration, err error) {
	if m == nil {
		return
	}
	m.toolCalls.WithLabelValues(tool, result(err)).Inc()
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
