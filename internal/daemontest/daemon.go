// Package daemontest runs a stand-in decision daemon on a unix socket for tests.
package daemontest

import (
	"errors"
	"net"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	m "github.com/Meander-Cloud/go-cne/message"
	lp "github.com/Meander-Cloud/go-cne/net/local/protocol"
)

const Wait = time.Second * 5

type Daemon struct {
	t        testing.TB
	dir      string
	path     string
	listener net.Listener

	// acknowledge every request with status 0 as it is read
	autoAck bool

	mutex sync.Mutex
	conn  net.Conn
	wg    sync.WaitGroup

	connch   chan net.Conn
	requests chan *lp.Request
	closech  chan struct{}
}

// New listens on a fresh socket and stops the daemon when the test ends.
func New(t testing.TB, autoAck bool) *Daemon {
	t.Helper()

	// sun_path is short, keep the directory near the root
	dir, err := os.MkdirTemp("", "cne")
	if err != nil {
		t.Fatalf("mkdir temp: %v", err)
	}
	path := filepath.Join(dir, "cnd")

	listener, err := net.Listen("unix", path)
	if err != nil {
		os.RemoveAll(dir)
		t.Fatalf("listen %s: %v", path, err)
	}

	d := &Daemon{
		t:        t,
		dir:      dir,
		path:     path,
		listener: listener,
		autoAck:  autoAck,
		connch:   make(chan net.Conn, 16),
		requests: make(chan *lp.Request, 1024),
		closech:  make(chan struct{}),
	}

	d.wg.Add(1)
	go d.acceptLoop()

	t.Cleanup(d.Close)
	return d
}

func (d *Daemon) Path() string {
	return d.path
}

func (d *Daemon) Close() {
	select {
	case <-d.closech:
		return
	default:
	}
	close(d.closech)

	d.listener.Close()
	d.Drop()
	d.wg.Wait()
	os.RemoveAll(d.dir)
}

// Drop closes the current client connection.
func (d *Daemon) Drop() {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if d.conn != nil {
		d.conn.Close()
		d.conn = nil
	}
}

func (d *Daemon) acceptLoop() {
	defer d.wg.Done()

	for {
		conn, err := d.listener.Accept()
		if err != nil {
			return
		}

		d.mutex.Lock()
		if d.conn != nil {
			d.conn.Close()
		}
		d.conn = conn
		d.mutex.Unlock()

		select {
		case d.connch <- conn:
		case <-d.closech:
			conn.Close()
			return
		}

		d.wg.Add(1)
		go d.readLoop(conn)
	}
}

func (d *Daemon) readLoop(conn net.Conn) {
	defer d.wg.Done()

	buf := make([]byte, lp.MaxMessageLen)
	for {
		data, err := lp.ReadFrame(conn, buf, lp.MaxMessageLen)
		if err != nil {
			return
		}

		req, err := lp.DecodeRequest(data)
		if err != nil {
			d.t.Errorf("daemon: decode request %X: %v", data, err)
			continue
		}

		if d.autoAck {
			d.write(conn, lp.EncodeSolicited(req.Serial, 0))
		}

		select {
		case d.requests <- req:
		case <-d.closech:
			return
		}
	}
}

func (d *Daemon) write(conn net.Conn, body []byte) error {
	frame, err := lp.EncodeFrame(body, lp.MaxMessageLen)
	if err != nil {
		return err
	}

	d.mutex.Lock()
	defer d.mutex.Unlock()

	if conn == nil {
		conn = d.conn
	}
	if conn == nil {
		return errors.New("no client connected")
	}
	_, err = conn.Write(frame)
	return err
}

// WaitConnected blocks until the client opens its next connection.
func (d *Daemon) WaitConnected() {
	d.t.Helper()

	select {
	case <-d.connch:
	case <-time.After(Wait):
		d.t.Fatalf("daemon: no connection within %v", Wait)
	}
}

// Next returns the next request read from the client.
func (d *Daemon) Next() *lp.Request {
	d.t.Helper()

	select {
	case req := <-d.requests:
		return req
	case <-time.After(Wait):
		d.t.Fatalf("daemon: no request within %v", Wait)
		return nil
	}
}

// Expect returns the next request of type t, skipping any other.
func (d *Daemon) Expect(t m.RequestType) *lp.Request {
	d.t.Helper()

	deadline := time.After(Wait)
	for {
		select {
		case req := <-d.requests:
			if req.Type == t {
				return req
			}
		case <-deadline:
			d.t.Fatalf("daemon: no %s request within %v", t, Wait)
			return nil
		}
	}
}

// None fails the test if a request of type t arrives within wait.
func (d *Daemon) None(t m.RequestType, wait time.Duration) {
	d.t.Helper()

	deadline := time.After(wait)
	for {
		select {
		case req := <-d.requests:
			if req.Type == t {
				d.t.Fatalf("daemon: unexpected %s request, fields=%v", t, req.Fields)
			}
		case <-deadline:
			return
		}
	}
}

func (d *Daemon) Ack(serial int32, status int32) {
	d.t.Helper()

	err := d.write(nil, lp.EncodeSolicited(serial, status))
	if err != nil {
		d.t.Fatalf("daemon: ack serial=%d: %v", serial, err)
	}
}

func (d *Daemon) Send(event *m.Event) {
	d.t.Helper()

	body, err := lp.EncodeEvent(event)
	if err != nil {
		d.t.Fatalf("daemon: encode %s: %v", event.Tag, err)
	}
	err = d.write(nil, body)
	if err != nil {
		d.t.Fatalf("daemon: send %s: %v", event.Tag, err)
	}
}

// WriteRaw writes b to the client as is, without framing.
func (d *Daemon) WriteRaw(b []byte) {
	d.t.Helper()

	d.mutex.Lock()
	defer d.mutex.Unlock()

	if d.conn == nil {
		d.t.Fatalf("daemon: no client connected")
	}
	_, err := d.conn.Write(b)
	if err != nil {
		d.t.Fatalf("daemon: write raw: %v", err)
	}
}
