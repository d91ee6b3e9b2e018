package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveTickAndCall(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg, Sources{})

	m.ObserveTick("guard", 10*time.Millisecond, nil)
	m.ObserveTick("guard", 10*time.Millisecond, errors.New("boom"))
	m.ObserveTick("guard", 10*time.Millisecond, nil)
	m.ObserveCall("dig_block", time.Millisecond, nil)

	if got := testutil.ToFloat64(m.ticks.WithLabelValues("guard", "ok")); got != 2 {
		t.Fatalf("ok ticks = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.ticks.WithLabelValues("guard", "error")); got != 1 {
		t.Fatalf("error ticks = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.toolCalls.WithLabelValues("dig_block", "ok")); got != 1 {
		t.Fatalf("tool calls = %v, want 1", got)
	}
	if n := testutil.CollectAndCount(m.tickTime); n != 1 {
		t.Fatalf("histogram series = %d, want 1", n)
	}
}

func TestGaugesReadSources(t *testing.T) {
	reg := prometheus.NewRegistry()
	running := 3
	connected := true
	New(reg, Sources{
		RunningBehaviors: func() int { return running },
		Connected:        func() bool { return connected },
	})

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	got := map[string]float64{}
	for _, f := range families {
		if f.GetType().String() != "GAUGE" {
			continue
		}
		got[f.GetName()] = f.GetMetric()[0].GetGauge().GetValue()
	}
	if got["minepilot_behaviors_running"] != 3 || got["minepilot_session_connected"] != 1 {
		t.Fatalf("unexpected gauges %v", got)
	}

	connected = false
	families, _ = reg.Gather()
	for _, f := range families {
		if f.GetName() == "minepilot_session_connected" && f.GetMetric()[0].GetGauge().GetValue() != 0 {
			t.Fatalf("session gauge should drop to 0")
		}
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveTick("guard", time.Second, nil)
	m.ObserveCall("chat", time.Second, nil)
}
