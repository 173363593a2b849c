package engine

import (
	"reflect"
	"testing"

	"github.com/Meander-Cloud/go-cne/internal/daemontest"
	m "github.com/Meander-Cloud/go-cne/message"
)

func notifyBetterOf(e *Engine, role m.Role, caller Caller) bool {
	e.table.mutex.Lock()
	defer e.table.mutex.Unlock()

	return e.table.lookup(role, caller).NotifyBetter
}

func TestEngine_RefusedSendLeavesRegistration(t *testing.T) {
	d := daemontest.New(t, true)
	e := newTestEngine(t, testConfig(d), nil)
	handshake(t, d)

	n := newNotifier()
	e.GetLink(1, nil, 5, n)
	cb := offerLink(t, d, n, 0, m.RatWlan, m.RatWlan, m.RatWwan)

	d.Send(&m.Event{
		Tag:                   m.EventMorePreferredRatAvail,
		MorePreferredRatAvail: &m.MorePreferredRatAvail{RegID: 0, BetterRat: m.RatWwan},
	})
	await(t, n.better, "better link available")

	// the sender refuses everything from here on
	e.client.Close()

	before := e.Registrations()
	if len(before) != 1 {
		t.Fatalf("expected one registration, got %+v", before)
	}

	if e.ReportLinkSatisfaction(1, 5, &cb.Link, false, true) {
		t.Fatal("expected unsatisfied report refused")
	}
	if e.ReportLinkSatisfaction(1, 5, &cb.Link, true, true) {
		t.Fatal("expected satisfied report refused")
	}
	if e.SwitchLink(1, 5, nil, true) {
		t.Fatal("expected switch refused")
	}
	if e.RejectSwitch(1, 5, nil, true) {
		t.Fatal("expected reject refused")
	}

	after := e.Registrations()
	if !reflect.DeepEqual(before, after) {
		t.Fatalf("registration changed by refused calls\nbefore %+v\nafter  %+v", before, after)
	}
	if after[0].Rats[1].Tried {
		t.Fatalf("expected WWAN still untried, got %+v", after[0].Rats)
	}
	if notifyBetterOf(e, 1, 5) {
		t.Fatal("expected better link notifications left off")
	}
}
