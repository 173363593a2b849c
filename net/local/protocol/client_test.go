package protocol_test

import (
	"context"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/Meander-Cloud/go-cne/internal/daemontest"
	m "github.com/Meander-Cloud/go-cne/message"
	"github.com/Meander-Cloud/go-cne/metrics"
	lp "github.com/Meander-Cloud/go-cne/net/local/protocol"
)

type recorder struct {
	connected    chan uint32
	disconnected chan uint32
	abandoned    chan int // pending set size seen by the disconnect hook
	events       chan *m.Event
}

func newRecorder() *recorder {
	return &recorder{
		connected:    make(chan uint32, 8),
		disconnected: make(chan uint32, 8),
		abandoned:    make(chan int, 8),
		events:       make(chan *m.Event, 64),
	}
}

func (r *recorder) Connected(_ *lp.Client, cs *lp.ConnState) {
	r.connected <- cs.ConnID
}

func (r *recorder) Disconnected(c *lp.Client, cs *lp.ConnState) {
	r.abandoned <- c.PendingLen()
	r.disconnected <- cs.ConnID
}

func (r *recorder) RegRoleResponse(_ *lp.Client, rsp *m.RoleResponse) {
	r.events <- &m.Event{Tag: m.EventRegRoleResponse, RegRoleResponse: rsp}
}

func (r *recorder) CompatibleNwsResponse(_ *lp.Client, rsp *m.CompatibleNwsResponse) {
	r.events <- &m.Event{Tag: m.EventCompatibleNwsResponse, CompatibleNwsResponse: rsp}
}

func (r *recorder) ConfirmNwResponse(_ *lp.Client, rsp *m.RoleResponse) {
	r.events <- &m.Event{Tag: m.EventConfirmNwResponse, ConfirmNwResponse: rsp}
}

func (r *recorder) DeregRoleResponse(_ *lp.Client, rsp *m.RoleResponse) {
	r.events <- &m.Event{Tag: m.EventDeregRoleResponse, DeregRoleResponse: rsp}
}

func (r *recorder) BringRatDown(_ *lp.Client, cmd *m.RatCommand) {
	r.events <- &m.Event{Tag: m.EventBringRatDown, BringRatDown: cmd}
}

func (r *recorder) BringRatUp(_ *lp.Client, cmd *m.RatCommand) {
	r.events <- &m.Event{Tag: m.EventBringRatUp, BringRatUp: cmd}
}

func (r *recorder) MorePreferredRatAvail(_ *lp.Client, evt *m.MorePreferredRatAvail) {
	r.events <- &m.Event{Tag: m.EventMorePreferredRatAvail, MorePreferredRatAvail: evt}
}

func (r *recorder) RatLost(_ *lp.Client, evt *m.RatLost) {
	r.events <- &m.Event{Tag: m.EventRatLost, RatLost: evt}
}

func (r *recorder) StartScanWlan(_ *lp.Client, evt *m.StartScanWlan) {
	r.events <- &m.Event{Tag: m.EventStartScanWlan, StartScanWlan: evt}
}

func (r *recorder) InflightStatus(_ *lp.Client, evt *m.InflightStatus) {
	r.events <- &m.Event{Tag: m.EventInflightStatus, InflightStatus: evt}
}

func (r *recorder) waitConnected(t *testing.T) uint32 {
	t.Helper()

	select {
	case id := <-r.connected:
		return id
	case <-time.After(daemontest.Wait):
		t.Fatal("client never connected")
		return 0
	}
}

func (r *recorder) waitDisconnected(t *testing.T) uint32 {
	t.Helper()

	select {
	case id := <-r.disconnected:
		return id
	case <-time.After(daemontest.Wait):
		t.Fatal("client never disconnected")
		return 0
	}
}

func (r *recorder) waitEvent(t *testing.T) *m.Event {
	t.Helper()

	select {
	case evt := <-r.events:
		return evt
	case <-time.After(daemontest.Wait):
		t.Fatal("no event delivered")
		return nil
	}
}

func newTestClient(t *testing.T, address string, r *recorder) *lp.Client {
	t.Helper()

	c, err := lp.NewClient(
		&lp.ClientOptions{
			Address: address,
			Dial: func(ctx context.Context) (net.Conn, error) {
				d := &net.Dialer{Timeout: time.Second}
				return d.DialContext(ctx, "unix", address)
			},
			EventChannelLength: 64,
			WriteTimeout:       time.Second,
			ReconnectInterval:  time.Millisecond * 50,
			ReconnectLogLimit:  2,
			MaxMessageLen:      lp.MaxMessageLen,
			ClientHandler:      r,
			Metrics:            metrics.New(nil),
			LogPrefix:          "test",
		},
	)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	t.Cleanup(c.Close)
	return c
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(daemontest.Wait)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond * 5)
	}
}

func TestNewClient_InvalidOptions(t *testing.T) {
	_, err := lp.NewClient(&lp.ClientOptions{LogPrefix: "test"})
	if err == nil {
		t.Fatal("expected error for missing dialer")
	}
}

func TestClient_HandshakeStartsAtSerialZero(t *testing.T) {
	d := daemontest.New(t, true)
	r := newRecorder()
	c := newTestClient(t, d.Path(), r)
	c.Start()

	d.WaitConnected()
	r.waitConnected(t)

	req := d.Next()
	if req.Type != m.RequestInit || req.Serial != 0 {
		t.Fatalf("expected init with serial 0, got %s/%d", req.Type, req.Serial)
	}

	env := c.Obtain(m.RequestNotifyDefaultNwPref)
	env.WriteRat(m.RatWwan)
	err := c.Send(env)
	if err != nil {
		t.Fatalf("Send: %v", err)
	}

	req = d.Next()
	if req.Type != m.RequestNotifyDefaultNwPref || req.Serial != 1 || m.Rat(req.Int(0)) != m.RatWwan {
		t.Fatalf("unexpected request %+v", *req)
	}

	// acknowledged requests leave the pending set
	waitFor(t, "pending drained by acks", func() bool { return c.PendingLen() == 0 })
}

func TestClient_ReconnectAbandonsPending(t *testing.T) {
	d := daemontest.New(t, false)
	r := newRecorder()
	c := newTestClient(t, d.Path(), r)
	c.Start()

	d.WaitConnected()
	first := r.waitConnected(t)

	init := d.Expect(m.RequestInit)
	d.Ack(init.Serial, 0)

	for i := 0; i < 2; i++ {
		env := c.Obtain(m.RequestUpdateBatteryInfo)
		env.WriteInt(int32(i))
		env.WriteInt(0)
		env.WriteInt(50)
		err := c.Send(env)
		if err != nil {
			t.Fatalf("Send: %v", err)
		}
	}
	d.Expect(m.RequestUpdateBatteryInfo)
	d.Expect(m.RequestUpdateBatteryInfo)
	waitFor(t, "two pending requests", func() bool { return c.PendingLen() == 2 })

	d.Drop()
	if id := r.waitDisconnected(t); id != first {
		t.Fatalf("expected connection %d to drop, got %d", first, id)
	}
	if n := <-r.abandoned; n != 0 {
		t.Fatalf("expected pending cleared before the disconnect hook, got %d", n)
	}
	if v := testutil.ToFloat64(c.Options().Metrics.RequestsAbandon); v != 2 {
		t.Fatalf("expected 2 requests abandoned, got %v", v)
	}

	d.WaitConnected()
	if id := r.waitConnected(t); id == first {
		t.Fatalf("expected a new connection, got %d again", id)
	}

	// the handshake is the first request of the new generation
	init = d.Expect(m.RequestInit)
	if init.Serial != 0 {
		t.Fatalf("expected serial 0 after reconnect, got %d", init.Serial)
	}

	env := c.Obtain(m.RequestUpdateBatteryInfo)
	err := c.Send(env)
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	req := d.Expect(m.RequestUpdateBatteryInfo)
	if req.Serial != 1 {
		t.Fatalf("expected serial 1 after handshake, got %d", req.Serial)
	}

	// abandoned requests never reach the handler
	select {
	case evt := <-r.events:
		t.Fatalf("unexpected event %+v", evt)
	default:
	}
}

func TestClient_DispatchesEvents(t *testing.T) {
	d := daemontest.New(t, true)
	r := newRecorder()
	c := newTestClient(t, d.Path(), r)
	c.Start()

	d.WaitConnected()
	r.waitConnected(t)
	d.Expect(m.RequestInit)

	// unknown tags and unknown serials are dropped without disturbing the connection
	d.Send(&m.Event{Tag: m.EventTag(42)})
	d.Ack(777, 1)

	d.Send(&m.Event{Tag: m.EventRatLost, RatLost: &m.RatLost{RegID: 3, Rat: m.RatWwan}})
	evt := r.waitEvent(t)
	if evt.RatLost == nil || evt.RatLost.RegID != 3 || evt.RatLost.Rat != m.RatWwan {
		t.Fatalf("unexpected event %+v", evt)
	}

	d.Send(&m.Event{Tag: m.EventInflightStatus, InflightStatus: &m.InflightStatus{Status: m.InflightOn}})
	evt = r.waitEvent(t)
	if evt.InflightStatus == nil || evt.InflightStatus.Status != m.InflightOn {
		t.Fatalf("unexpected event %+v", evt)
	}

	if !c.CheckConnection() {
		t.Fatal("expected connection to survive protocol errors")
	}
}

func TestClient_OversizeRequestDropped(t *testing.T) {
	d := daemontest.New(t, true)
	r := newRecorder()
	c := newTestClient(t, d.Path(), r)
	c.Start()

	d.WaitConnected()
	r.waitConnected(t)
	d.Expect(m.RequestInit)

	env := c.Obtain(m.RequestUpdateWlanInfo)
	env.WriteString(strings.Repeat("x", int(lp.MaxMessageLen)))
	err := c.Send(env)
	if err != nil {
		t.Fatalf("Send: %v", err)
	}

	env = c.Obtain(m.RequestUpdateBatteryInfo)
	err = c.Send(env)
	if err != nil {
		t.Fatalf("Send: %v", err)
	}

	req := d.Next()
	if req.Type != m.RequestUpdateBatteryInfo {
		t.Fatalf("expected oversize request skipped, got %s", req.Type)
	}
}

func TestClient_MalformedLengthDisconnects(t *testing.T) {
	d := daemontest.New(t, true)
	r := newRecorder()
	c := newTestClient(t, d.Path(), r)
	c.Start()

	d.WaitConnected()
	first := r.waitConnected(t)
	d.Expect(m.RequestInit)

	// high prefix bytes set, a length no encoder on this wire produces
	d.WriteRaw([]byte{0, 1, 0, 0})

	if id := r.waitDisconnected(t); id != first {
		t.Fatalf("expected connection %d dropped, got %d", first, id)
	}

	d.WaitConnected()
	r.waitConnected(t)
}

func TestClient_SendWhileDisconnected(t *testing.T) {
	r := newRecorder()
	c := newTestClient(t, "/nonexistent/cnd", r)
	c.Start()

	env := c.Obtain(m.RequestInit)
	err := c.Send(env)
	if err != nil {
		t.Fatalf("expected request accepted and dropped by the sender, got %v", err)
	}
	if c.CheckConnection() {
		t.Fatal("expected no connection")
	}

	c.Close()
	err = c.Send(c.Obtain(m.RequestInit))
	if err == nil {
		t.Fatal("expected send after close refused")
	}
	closed := c.Options().Metrics.RequestsDropped.WithLabelValues(metrics.DropClosed)
	if v := testutil.ToFloat64(closed); v != 1 {
		t.Fatalf("expected 1 request dropped as closed, got %v", v)
	}
}
