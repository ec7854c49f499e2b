package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// findMetric は指定名のメトリクスファミリーを返す。
func findMetric(t *testing.T, reg *prometheus.Registry, name string) *dto.MetricFamily {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() == name {
			return mf
		}
	}
	t.Fatalf("%s metric not found", name)
	return nil
}

func TestNewCollector_ReturnsNonNil(t *testing.T) {
	reg := prometheus.NewRegistry()
	if c := NewCollector(reg); c == nil {
		t.Fatal("expected non-nil Collector")
	}
}

func TestRecordSignup_IncrementsCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordSignup()
	c.RecordSignup()

	mf := findMetric(t, reg, "nakama_signups_total")
	if val := mf.GetMetric()[0].GetCounter().GetValue(); val != 2 {
		t.Errorf("signups_total = %v, want 2", val)
	}
}

func TestRecordLogin_LabelsByResult(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordLogin(true)
	c.RecordLogin(false)
	c.RecordLogin(false)

	mf := findMetric(t, reg, "nakama_logins_total")
	got := map[string]float64{}
	for _, m := range mf.GetMetric() {
		got[m.GetLabel()[0].GetValue()] = m.GetCounter().GetValue()
	}
	if got["success"] != 1 || got["failure"] != 2 {
		t.Errorf("logins_total = %v, want success=1 failure=2", got)
	}
}

func TestSubscriptionGauge_TracksOpenAndClose(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.SubscriptionOpened()
	c.SubscriptionOpened()
	c.SubscriptionClosed()

	mf := findMetric(t, reg, "nakama_live_subscriptions")
	if val := mf.GetMetric()[0].GetGauge().GetValue(); val != 1 {
		t.Errorf("live_subscriptions = %v, want 1", val)
	}
}

func TestRecordMessageSentAndSnapshots(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordMessageSent()
	c.RecordSnapshotDelivered()
	c.RecordSnapshotDelivered()
	c.RecordCommunityCreated()

	if val := findMetric(t, reg, "nakama_messages_sent_total").GetMetric()[0].GetCounter().GetValue(); val != 1 {
		t.Errorf("messages_sent_total = %v, want 1", val)
	}
	if val := findMetric(t, reg, "nakama_snapshots_delivered_total").GetMetric()[0].GetCounter().GetValue(); val != 2 {
		t.Errorf("snapshots_delivered_total = %v, want 2", val)
	}
	if val := findMetric(t, reg, "nakama_communities_created_total").GetMetric()[0].GetCounter().GetValue(); val != 1 {
		t.Errorf("communities_created_total = %v, want 1", val)
	}
}

func TestRecordHTTPStatus_LabelsByStatusCode(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordHTTPStatus(200)
	c.RecordHTTPStatus(403)
	c.RecordHTTPStatus(403)

	mf := findMetric(t, reg, "nakama_http_status_total")
	got := map[string]float64{}
	for _, m := range mf.GetMetric() {
		got[m.GetLabel()[0].GetValue()] = m.GetCounter().GetValue()
	}
	if got["200"] != 1 || got["403"] != 2 {
		t.Errorf("http_status_total = %v, want 200=1 403=2", got)
	}
}
