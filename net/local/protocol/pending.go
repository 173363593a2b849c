package protocol

import (
	"fmt"
	"sync"
)

// Pending tracks envelopes written to the daemon and not yet acknowledged, keyed by serial.
type Pending struct {
	mutex   sync.Mutex
	entries map[int32]*Envelope
}

func NewPending() *Pending {
	return &Pending{
		entries: make(map[int32]*Envelope),
	}
}

// sender goroutine
func (p *Pending) Add(env *Envelope) error {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	cached, found := p.entries[env.Serial]
	if found {
		return fmt.Errorf("serial %d already pending as %s", env.Serial, cached)
	}
	p.entries[env.Serial] = env
	return nil
}

// receiver goroutine
func (p *Pending) Remove(serial int32) *Envelope {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	env, found := p.entries[serial]
	if !found {
		return nil
	}
	delete(p.entries, serial)
	return env
}

// RemoveEnvelope removes env only if it is still the entry for serial, reporting whether it did.
func (p *Pending) RemoveEnvelope(serial int32, env *Envelope) bool {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	cached, found := p.entries[serial]
	if !found || cached != env {
		return false
	}
	delete(p.entries, serial)
	return true
}

// Drain empties the set and hands every entry to the caller.
func (p *Pending) Drain() []*Envelope {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	drained := make([]*Envelope, 0, len(p.entries))
	for serial, env := range p.entries {
		drained = append(drained, env)
		delete(p.entries, serial)
	}
	return drained
}

func (p *Pending) Len() int {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	return len(p.entries)
}
