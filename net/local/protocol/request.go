package protocol

import (
	"fmt"
	"sync"

	m "github.com/Meander-Cloud/go-cne/message"
)

// Envelope is one outbound request, owned by the sender from Obtain until matched or abandoned.
type Envelope struct {
	*body

	Serial  int32
	Request m.RequestType

	generation uint64
}

func (e *Envelope) Generation() uint64 {
	return e.generation
}

// renders serial as %04d in brackets, the form used across log lines
func (e *Envelope) String() string {
	return fmt.Sprintf("[%04d]%s", e.Serial, e.Request)
}

// Serials hands out correlation identifiers, every Reset opens a new generation starting at zero.
type Serials struct {
	mutex      sync.Mutex
	next       int32
	generation uint64
}

func (s *Serials) Next() (int32, uint64) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	serial := s.next
	s.next++
	return serial, s.generation
}

func (s *Serials) Reset() uint64 {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.next = 0
	s.generation++
	return s.generation
}

// Open starts a new generation with serial zero already taken, the handshake's serial.
func (s *Serials) Open() (int32, uint64) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.next = 1
	s.generation++
	return 0, s.generation
}

func (s *Serials) Generation() uint64 {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	return s.generation
}

// Pool recycles envelopes through a free list bounded at PoolCapacity, overflow is left to the collector.
type Pool struct {
	serials *Serials

	mutex sync.Mutex
	free  []*Envelope
}

func NewPool(serials *Serials) *Pool {
	return &Pool{
		serials: serials,
		free:    make([]*Envelope, 0, PoolCapacity),
	}
}

// any goroutine
func (p *Pool) Obtain(request m.RequestType) *Envelope {
	env := p.take()
	env.Serial, env.generation = p.serials.Next()
	p.fill(env, request)
	return env
}

// Open starts a new serial generation and returns its first envelope, serial zero.
func (p *Pool) Open(request m.RequestType) *Envelope {
	env := p.take()
	env.Serial, env.generation = p.serials.Open()
	p.fill(env, request)
	return env
}

func (p *Pool) take() *Envelope {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	n := len(p.free)
	if n == 0 {
		return &Envelope{
			body: newBody(),
		}
	}
	env := p.free[n-1]
	p.free[n-1] = nil
	p.free = p.free[:n-1]
	return env
}

func (p *Pool) fill(env *Envelope, request m.RequestType) {
	env.Request = request

	// first elements of every request body
	env.WriteInt(int32(request))
	env.WriteInt(env.Serial)
}

// Release must be called at most once per Obtain.
func (p *Pool) Release(env *Envelope) {
	if env == nil {
		return
	}
	env.reset()

	p.mutex.Lock()
	defer p.mutex.Unlock()

	if len(p.free) < PoolCapacity {
		p.free = append(p.free, env)
	}
}

func (p *Pool) FreeLen() int {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	return len(p.free)
}
