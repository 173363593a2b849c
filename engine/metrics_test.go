package engine

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/Meander-Cloud/go-cne/internal/daemontest"
	m "github.com/Meander-Cloud/go-cne/message"
)

func TestEngine_Metrics(t *testing.T) {
	d := daemontest.New(t, true)
	registry := prometheus.NewRegistry()
	e := newTestEngine(t, testConfig(d), &Options{Registerer: registry})
	handshake(t, d)

	if v := testutil.ToFloat64(e.metrics.ConnectionsEstablished); v != 1 {
		t.Fatalf("expected 1 connection established, got %v", v)
	}

	n := newNotifier()
	e.GetLink(1, nil, 11, n)
	if v := testutil.ToFloat64(e.metrics.Registrations); v != 1 {
		t.Fatalf("expected 1 registration, got %v", v)
	}

	offerLink(t, d, n, 0, m.RatWlan, m.RatWlan)
	if v := testutil.ToFloat64(e.metrics.CallbacksInvoked.WithLabelValues(kindLinkAvailable)); v != 1 {
		t.Fatalf("expected 1 link available callback, got %v", v)
	}

	e.ReleaseLink(1, 11)
	if v := testutil.ToFloat64(e.metrics.Registrations); v != 0 {
		t.Fatalf("expected no registrations, got %v", v)
	}

	count, err := testutil.GatherAndCount(registry, "cne_registrations", "cne_callbacks_total")
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected both collectors exported, got %d series", count)
	}
}
