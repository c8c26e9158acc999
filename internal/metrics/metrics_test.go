package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestMetrics_ChecksTotalIncrements(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ChecksTotal.WithLabelValues("allow").Inc()
	m.ChecksTotal.WithLabelValues("allow").Inc()
	m.ChecksTotal.WithLabelValues("deny").Inc()

	var allow, deny dto.Metric
	if err := m.ChecksTotal.WithLabelValues("allow").Write(&allow); err != nil {
		t.Fatal(err)
	}
	if got := allow.Counter.GetValue(); got != 2 {
		t.Errorf("allow count = %v, want 2", got)
	}
	if err := m.ChecksTotal.WithLabelValues("deny").Write(&deny); err != nil {
		t.Fatal(err)
	}
	if got := deny.Counter.GetValue(); got != 1 {
		t.Errorf("deny count = %v, want 1", got)
	}
}

func TestMetrics_CacheTotalByOutcome(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.CacheTotal.WithLabelValues("hit").Inc()
	m.CacheTotal.WithLabelValues("miss").Inc()
	m.CacheTotal.WithLabelValues("miss").Inc()
	m.CacheTotal.WithLabelValues("stale").Inc()

	mf, err := reg.Gather()
	if err != nil {
		t.Fatal(err)
	}
	counts := map[string]float64{}
	for _, fam := range mf {
		if fam.GetName() != "privd_decision_cache_total" {
			continue
		}
		for _, metric := range fam.GetMetric() {
			for _, lp := range metric.GetLabel() {
				if lp.GetName() == "outcome" {
					counts[lp.GetValue()] = metric.GetCounter().GetValue()
				}
			}
		}
	}
	if counts["hit"] != 1 || counts["miss"] != 2 || counts["stale"] != 1 {
		t.Errorf("unexpected counts: %+v", counts)
	}
}

func TestMetrics_ConnectionsActiveGauge(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ConnectionsActive.WithLabelValues("client").Inc()
	m.ConnectionsActive.WithLabelValues("client").Inc()
	m.ConnectionsActive.WithLabelValues("client").Dec()

	var g dto.Metric
	if err := m.ConnectionsActive.WithLabelValues("client").Write(&g); err != nil {
		t.Fatal(err)
	}
	if got := g.Gauge.GetValue(); got != 1 {
		t.Errorf("client connections = %v, want 1", got)
	}
}

func TestMetrics_MonitorAppendsCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.MonitorAppends.Inc()
	m.MonitorAppends.Inc()
	m.MonitorAppends.Inc()

	var c dto.Metric
	if err := m.MonitorAppends.Write(&c); err != nil {
		t.Fatal(err)
	}
	if got := c.Counter.GetValue(); got != 3 {
		t.Errorf("monitor appends = %v, want 3", got)
	}
}
