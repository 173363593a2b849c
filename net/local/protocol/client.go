package protocol

import (
	"context"
	"fmt"
	"log"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Meander-Cloud/go-cne/arbiter"
	m "github.com/Meander-Cloud/go-cne/message"
	"github.com/Meander-Cloud/go-cne/metrics"
)

// ClientHandler receives connection lifecycle notifications and unsolicited daemon events.
// Every method is invoked on the receiver goroutine.
type ClientHandler interface {
	// handshake hook, the init request has already been queued
	Connected(*Client, *ConnState)
	// pending requests have already been abandoned
	Disconnected(*Client, *ConnState)

	RegRoleResponse(*Client, *m.RoleResponse)
	CompatibleNwsResponse(*Client, *m.CompatibleNwsResponse)
	ConfirmNwResponse(*Client, *m.RoleResponse)
	DeregRoleResponse(*Client, *m.RoleResponse)
	BringRatDown(*Client, *m.RatCommand)
	BringRatUp(*Client, *m.RatCommand)
	MorePreferredRatAvail(*Client, *m.MorePreferredRatAvail)
	RatLost(*Client, *m.RatLost)
	StartScanWlan(*Client, *m.StartScanWlan)
	InflightStatus(*Client, *m.InflightStatus)
}

type Dialer func(ctx context.Context) (net.Conn, error)

type ClientOptions struct {
	Address string
	Dial    Dialer

	EventChannelLength uint16
	WriteTimeout       time.Duration
	ReconnectInterval  time.Duration
	ReconnectLogLimit  uint16
	MaxMessageLen      uint32

	ClientHandler
	Metrics *metrics.Metrics

	LogPrefix string
	LogDebug  bool
}

type Client struct {
	options *ClientOptions
	arbiter *arbiter.Arbiter

	serials *Serials
	pool    *Pool
	pending *Pending

	inShutdown atomic.Bool
	started    atomic.Bool
	ctx        context.Context
	cancel     context.CancelFunc
	donech     chan struct{}

	// if increment overflow will wrap to zero
	connIDGen atomic.Uint32

	mutex     sync.Mutex
	connState *ConnState // current active connection, if any
}

func NewClient(options *ClientOptions) (*Client, error) {
	if options.Dial == nil {
		err := fmt.Errorf("%s: nil Dial", options.LogPrefix)
		log.Printf("%s", err.Error())
		return nil, err
	}

	if options.ClientHandler == nil {
		err := fmt.Errorf("%s: nil ClientHandler", options.LogPrefix)
		log.Printf("%s", err.Error())
		return nil, err
	}

	if options.Metrics == nil {
		err := fmt.Errorf("%s: nil Metrics", options.LogPrefix)
		log.Printf("%s", err.Error())
		return nil, err
	}

	if options.MaxMessageLen == 0 || options.MaxMessageLen > MaxMessageLen {
		err := fmt.Errorf("%s: invalid MaxMessageLen=%d", options.LogPrefix, options.MaxMessageLen)
		log.Printf("%s", err.Error())
		return nil, err
	}

	if options.ReconnectInterval <= 0 {
		err := fmt.Errorf("%s: invalid ReconnectInterval=%v", options.LogPrefix, options.ReconnectInterval)
		log.Printf("%s", err.Error())
		return nil, err
	}

	serials := &Serials{}
	ctx, cancel := context.WithCancel(context.Background())

	p := &Client{
		options: options,
		arbiter: arbiter.NewArbiter(
			&arbiter.Options{
				EventChannelLength: options.EventChannelLength,
				QueueWait: func(d time.Duration) {
					options.Metrics.SendQueueWait.Observe(d.Seconds())
				},
				LogPrefix: options.LogPrefix + "-Sender",
				LogDebug:  options.LogDebug,
			},
		),

		serials: serials,
		pool:    NewPool(serials),
		pending: NewPending(),

		ctx:    ctx,
		cancel: cancel,
		donech: make(chan struct{}),

		connState: nil,
	}

	return p, nil
}

func (p *Client) Options() *ClientOptions {
	return p.options
}

// Start launches the connection manager, it returns immediately.
func (p *Client) Start() {
	if !p.started.CompareAndSwap(false, true) {
		return
	}
	go p.run()
}

func (p *Client) Close() {
	if !p.inShutdown.CompareAndSwap(false, true) {
		return
	}
	log.Printf("%s: <%s>: protocol closing", p.options.LogPrefix, p.options.Address)

	p.cancel()

	func() {
		p.mutex.Lock()
		defer p.mutex.Unlock()

		if p.connState == nil {
			return
		}
		p.connState.Conn.Close()
	}()

	if p.started.Load() {
		<-p.donech
	}
	p.arbiter.Shutdown() // wait

	log.Printf("%s: <%s>: protocol closed", p.options.LogPrefix, p.options.Address)
}

// connection manager goroutine
func (p *Client) run() {
	defer close(p.donech)

	var failures uint32
	for {
		if p.inShutdown.Load() {
			return
		}

		p.options.Metrics.ConnectAttempts.Inc()
		conn, err := p.options.Dial(p.ctx)
		if err != nil {
			failures++
			p.options.Metrics.ConnectFailures.Inc()

			switch connectFailureLog(failures, uint32(p.options.ReconnectLogLimit)) {
			case logLoud:
				log.Printf("%s: <%s>: failed to connect, attempt=%d, retrying after %v, err=%s", p.options.LogPrefix, p.options.Address, failures, p.options.ReconnectInterval, err.Error())
			case logNotice:
				log.Printf("%s: <%s>: failed to connect after %d attempts, continuing to retry silently", p.options.LogPrefix, p.options.Address, failures)
			}

			select {
			case <-time.After(p.options.ReconnectInterval):
			case <-p.ctx.Done():
				return
			}
			continue
		}

		failures = 0
		p.serve(conn)
	}
}

type failureLog uint8

const (
	logSilent failureLog = 0
	logLoud   failureLog = 1
	logNotice failureLog = 2
)

// first limit consecutive failures are logged, the next one once more to announce silence
func connectFailureLog(failures uint32, limit uint32) failureLog {
	switch {
	case failures <= limit:
		return logLoud
	case failures == limit+1:
		return logNotice
	default:
		return logSilent
	}
}

// connection manager goroutine, returns once the connection is gone
func (p *Client) serve(conn net.Conn) {
	// serial zero is claimed before any caller can obtain from the new generation
	init := p.pool.Open(m.RequestInit)
	generation := init.generation
	connState := &ConnState{
		ConnID:     p.getNextConnID(),
		Conn:       conn,
		Generation: generation,
	}
	connState.Descriptor = fmt.Sprintf(
		"[%d]<%s>",
		connState.ConnID,
		p.options.Address,
	)

	stale := func() bool {
		p.mutex.Lock()
		defer p.mutex.Unlock()

		if p.inShutdown.Load() {
			return true
		}
		if p.connState != nil {
			log.Printf("%s: %s: overriding stale connection %s", p.options.LogPrefix, connState.Descriptor, p.connState.Descriptor)
		}
		p.connState = connState
		return false
	}()
	if stale {
		p.pool.Release(init)
		conn.Close()
		return
	}

	p.options.Metrics.ConnectionsEstablished.Inc()
	log.Printf("%s: %s: connected, generation=%d", p.options.LogPrefix, connState.Descriptor, generation)

	defer p.teardown(connState)

	p.handshake(connState, init)
	p.readLoop(connState)
}

func (p *Client) handshake(connState *ConnState, env *Envelope) {
	err := p.Send(env)
	if err != nil {
		log.Printf("%s: %s: failed to queue %s, err=%s", p.options.LogPrefix, connState.Descriptor, env, err.Error())
	}

	p.options.Connected(p, connState)
}

func (p *Client) teardown(connState *ConnState) {
	func() {
		p.mutex.Lock()
		defer p.mutex.Unlock()

		if p.connState == nil {
			log.Printf("%s: %s: no connection cached, state corrupt", p.options.LogPrefix, connState.Descriptor)
			return
		}

		if connState.ConnID != p.connState.ConnID {
			log.Printf("%s: %s: connID mismatch stack<%d>:cached<%d>, state corrupt", p.options.LogPrefix, connState.Descriptor, connState.ConnID, p.connState.ConnID)
			return
		}

		p.connState = nil
	}()

	connState.Conn.Close()

	// discard the sequence this connection ran under
	p.serials.Reset()

	abandoned := p.pending.Drain()
	for _, env := range abandoned {
		p.pool.Release(env)
	}
	p.options.Metrics.Disconnects.Inc()
	p.options.Metrics.RequestsAbandon.Add(float64(len(abandoned)))
	p.options.Metrics.RequestsPending.Set(0)

	log.Printf("%s: %s: disconnected, abandoned %d pending requests", p.options.LogPrefix, connState.Descriptor, len(abandoned))

	p.options.Disconnected(p, connState)
}

// receiver, runs on the connection manager goroutine for the life of one connection
func (p *Client) readLoop(connState *ConnState) {
	defer func() {
		rec := recover()
		if rec != nil {
			log.Printf("%s: %s: read loop recovered from panic: %+v", p.options.LogPrefix, connState.Descriptor, rec)
		}
	}()

	buf := make([]byte, p.options.MaxMessageLen)
	for {
		data, err := ReadFrame(connState.Conn, buf, p.options.MaxMessageLen)
		if err != nil {
			if p.inShutdown.Load() {
				log.Printf("%s: %s: connection closed for shutdown", p.options.LogPrefix, connState.Descriptor)
			} else {
				log.Printf("%s: %s: failed to read message, err=%s", p.options.LogPrefix, connState.Descriptor, err.Error())
			}
			return
		}
		p.options.Metrics.FramesReceived.Inc()
		if p.options.LogDebug {
			log.Printf("%s: %s: read %d bytes", p.options.LogPrefix, connState.Descriptor, len(data))
		}

		rsp, err := DecodeResponse(data)
		if err != nil {
			p.options.Metrics.MalformedFrames.Inc()
			log.Printf("%s: %s: dropping malformed message %X, err=%s", p.options.LogPrefix, connState.Descriptor, data, err.Error())
			continue
		}

		switch rsp.Kind {
		case m.ResponseSolicited:
			p.processSolicited(connState, rsp.Solicited)
		case m.ResponseUnsolicited:
			p.processUnsolicited(connState, rsp.Event)
		}
	}
}

func (p *Client) processSolicited(connState *ConnState, solicited *m.Solicited) {
	env := p.pending.Remove(solicited.Serial)
	if env == nil {
		p.options.Metrics.UnknownSerials.Inc()
		log.Printf("%s: %s: unexpected solicited response, serial=%d, status=%d", p.options.LogPrefix, connState.Descriptor, solicited.Serial, solicited.Status)
		return
	}
	p.options.Metrics.RequestsPending.Dec()

	if solicited.Status != 0 {
		p.options.Metrics.SolicitedFailed.Inc()
		log.Printf("%s: %s: %s failed, status=%d", p.options.LogPrefix, connState.Descriptor, env, solicited.Status)
	} else if p.options.LogDebug {
		log.Printf("%s: %s: %s acknowledged", p.options.LogPrefix, connState.Descriptor, env)
	}

	p.pool.Release(env)
}

func (p *Client) processUnsolicited(connState *ConnState, event *m.Event) {
	p.options.Metrics.EventsReceived.WithLabelValues(event.Tag.String()).Inc()
	if p.options.LogDebug {
		log.Printf("%s: %s: received event=%+v", p.options.LogPrefix, connState.Descriptor, event)
	}

	if event.RegRoleResponse != nil {
		p.options.RegRoleResponse(p, event.RegRoleResponse)
	} else if event.CompatibleNwsResponse != nil {
		p.options.CompatibleNwsResponse(p, event.CompatibleNwsResponse)
	} else if event.ConfirmNwResponse != nil {
		p.options.ConfirmNwResponse(p, event.ConfirmNwResponse)
	} else if event.DeregRoleResponse != nil {
		p.options.DeregRoleResponse(p, event.DeregRoleResponse)
	} else if event.BringRatDown != nil {
		p.options.BringRatDown(p, event.BringRatDown)
	} else if event.BringRatUp != nil {
		p.options.BringRatUp(p, event.BringRatUp)
	} else if event.MorePreferredRatAvail != nil {
		p.options.MorePreferredRatAvail(p, event.MorePreferredRatAvail)
	} else if event.RatLost != nil {
		p.options.RatLost(p, event.RatLost)
	} else if event.StartScanWlan != nil {
		p.options.StartScanWlan(p, event.StartScanWlan)
	} else if event.InflightStatus != nil {
		p.options.InflightStatus(p, event.InflightStatus)
	} else {
		p.options.Metrics.UnknownEvents.Inc()
		log.Printf("%s: %s: unknown unsolicited event tag=%d", p.options.LogPrefix, connState.Descriptor, event.Tag)
	}
}

func (p *Client) getNextConnID() uint32 {
	return p.connIDGen.Add(1)
}

// invoked on any goroutine
func (p *Client) CheckConnection() bool {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	return p.connState != nil
}

func (p *Client) currentConnection() *ConnState {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	return p.connState
}

func (p *Client) PendingLen() int {
	return p.pending.Len()
}
