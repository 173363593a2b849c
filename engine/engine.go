package engine

import (
	"log"
	"os"
	"sync"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Meander-Cloud/go-cne/config"
	m "github.com/Meander-Cloud/go-cne/message"
	"github.com/Meander-Cloud/go-cne/metrics"
	"github.com/Meander-Cloud/go-cne/net/local"
	lp "github.com/Meander-Cloud/go-cne/net/local/protocol"
)

// Options carries the collaborators of an engine, every field is optional.
type Options struct {
	// collectors are registered here, a private registry when nil
	Registerer prometheus.Registerer

	RouteApplier RouteApplier
	Platform     Platform
	Liveness     LivenessObserver

	// overrides the unix socket dialer
	Dial lp.Dialer
}

type Engine struct {
	c         *config.Config
	logPrefix string

	routeApplier RouteApplier
	platform     Platform
	liveness     LivenessObserver

	metrics *metrics.Metrics
	client  *lp.Client
	table   *Table

	self        Caller
	preference  atomic.Int32
	defaultConn *DefaultConnection

	hookMutex sync.Mutex
	hooks     []func(*Engine)

	inShutdown atomic.Bool
}

func NewEngine(c *config.Config, options *Options) (*Engine, error) {
	err := c.Validate()
	if err != nil {
		return nil, err
	}

	if options == nil {
		options = &Options{}
	}

	var logPrefix string
	if c.LogPrefix == "" {
		logPrefix = config.LogPrefix
	} else {
		logPrefix = c.LogPrefix
	}

	e := &Engine{
		c:         c,
		logPrefix: logPrefix,

		routeApplier: options.RouteApplier,
		platform:     options.Platform,
		liveness:     options.Liveness,

		metrics: metrics.New(options.Registerer),
		client:  nil,
		table:   NewTable(),

		self: Caller(os.Getpid()),
	}
	e.preference.Store(int32(c.NetworkPreference()))

	if e.routeApplier == nil {
		if c.WwanInterface != "" {
			e.routeApplier = NewIproute2RouteApplier(e, c.WwanInterface)
		} else {
			e.routeApplier = &LogRouteApplier{LogPrefix: logPrefix}
		}
	}
	if e.platform == nil {
		e.platform = &LogPlatform{LogPrefix: logPrefix}
	}
	if e.liveness == nil {
		e.liveness = NopLiveness{}
	}
	if c.DefaultConnection {
		e.defaultConn = newDefaultConnection(e)
	}

	e.client, err = local.NewClient(
		c,
		&Handler{e: e},
		e.metrics,
		options.Dial,
	)
	if err != nil {
		return nil, err
	}

	log.Printf(
		"%s: engine created, address=%s, defaultConnection=%t, preference=%s",
		logPrefix,
		e.client.Options().Address,
		c.DefaultConnection,
		e.NetworkPreference(),
	)

	// ownership of the socket is transferred to the connection manager goroutine
	e.client.Start()

	return e, nil
}

func (e *Engine) Shutdown() {
	if !e.inShutdown.CompareAndSwap(false, true) {
		return
	}

	if e.client != nil {
		e.client.Close() // wait
	}

	// caller watches outlive the connection, drop them with the table
	var unwatch []func()
	func() {
		e.table.mutex.Lock()
		defer e.table.mutex.Unlock()

		for regID, info := range e.table.entries {
			if info.unwatch != nil {
				unwatch = append(unwatch, info.unwatch)
			}
			e.table.remove(regID)
		}
	}()
	for _, f := range unwatch {
		f()
	}
	e.metrics.Registrations.Set(0)

	log.Printf("%s: engine shut down", e.logPrefix)
}

// OnConnected registers f to run after every handshake, on the receiver goroutine.
func (e *Engine) OnConnected(f func(*Engine)) {
	e.hookMutex.Lock()
	defer e.hookMutex.Unlock()

	e.hooks = append(e.hooks, f)
}

func (e *Engine) Connected() bool {
	return e.client.CheckConnection()
}

func (e *Engine) NetworkPreference() m.Rat {
	return m.Rat(e.preference.Load())
}

// Registrations returns a copy of every live registration.
func (e *Engine) Registrations() []Snapshot {
	return e.table.Snapshot()
}

// Self is the caller identity the default connection registers under.
func (e *Engine) Self() Caller {
	return e.self
}

// send hands env to the sender, false when it could not be queued
func (e *Engine) send(env *lp.Envelope) bool {
	descriptor := env.String()
	err := e.client.Send(env)
	if err != nil {
		log.Printf("%s: failed to queue %s, err=%s", e.logPrefix, descriptor, err.Error())
		return false
	}
	return true
}
