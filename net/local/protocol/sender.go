package protocol

import (
	"errors"
	"log"
	"time"

	"github.com/Meander-Cloud/go-cne/arbiter"
	m "github.com/Meander-Cloud/go-cne/message"
	"github.com/Meander-Cloud/go-cne/metrics"
)

// invoked on any goroutine
func (p *Client) Obtain(request m.RequestType) *Envelope {
	return p.pool.Obtain(request)
}

// Send queues env for the sender goroutine, ownership of env passes to the client either way.
func (p *Client) Send(env *Envelope) error {
	err := p.arbiter.Dispatch(
		func() {
			// invoked on arbiter goroutine
			p.write(env)
		},
	)
	if err != nil {
		reason := metrics.DropQueueFull
		if errors.Is(err, arbiter.ErrShutdown) {
			reason = metrics.DropClosed
		}
		p.drop(env, reason)
		return err
	}
	return nil
}

// invoked on arbiter goroutine
func (p *Client) write(env *Envelope) {
	connState := p.currentConnection()
	if connState == nil {
		if p.options.LogDebug {
			log.Printf("%s: <%s>: not connected, dropping %s", p.options.LogPrefix, p.options.Address, env)
		}
		p.drop(env, metrics.DropDisconnected)
		return
	}

	if env.generation != connState.Generation {
		log.Printf("%s: %s: dropping %s from generation %d", p.options.LogPrefix, connState.Descriptor, env, env.generation)
		p.drop(env, metrics.DropStale)
		return
	}

	if !connState.handshaken && env.Request != m.RequestInit {
		log.Printf("%s: %s: handshake not written, dropping %s", p.options.LogPrefix, connState.Descriptor, env)
		p.drop(env, metrics.DropHandshake)
		return
	}

	frame, err := EncodeFrame(env.Bytes(), p.options.MaxMessageLen)
	if err != nil {
		log.Printf("%s: %s: failed to encode %s, err=%s", p.options.LogPrefix, connState.Descriptor, env, err.Error())
		p.drop(env, metrics.DropOversize)
		return
	}

	// capture before env is shared with the receiver and the connection manager
	serial := env.Serial
	request := env.Request
	descriptor := env.String()

	err = p.pending.Add(env)
	if err != nil {
		log.Printf("%s: %s: %s", p.options.LogPrefix, connState.Descriptor, err.Error())
		p.drop(env, metrics.DropDuplicate)
		return
	}
	p.options.Metrics.RequestsPending.Inc()

	if p.options.WriteTimeout > 0 {
		connState.Conn.SetWriteDeadline(time.Now().UTC().Add(p.options.WriteTimeout))
	}
	n, err := connState.Conn.Write(frame)
	if err != nil {
		log.Printf("%s: %s: failed to write %s, %d bytes, err=%s", p.options.LogPrefix, connState.Descriptor, descriptor, len(frame), err.Error())

		// the connection manager may already have abandoned it
		if p.pending.RemoveEnvelope(serial, env) {
			p.options.Metrics.RequestsPending.Dec()
			p.drop(env, metrics.DropWriteError)
		}
		return
	}

	if request == m.RequestInit {
		connState.handshaken = true
	}

	p.options.Metrics.FramesSent.Inc()
	if p.options.LogDebug {
		log.Printf("%s: %s: wrote %s, %d bytes", p.options.LogPrefix, connState.Descriptor, descriptor, n)
	}
}

func (p *Client) drop(env *Envelope, reason string) {
	p.options.Metrics.RequestsDropped.WithLabelValues(reason).Inc()
	p.pool.Release(env)
}
