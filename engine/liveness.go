package engine

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

// LivenessObserver reports the death of a caller. onDeath runs at most once per Watch,
// on a goroutine of the observer's choosing.
type LivenessObserver interface {
	Watch(caller Caller, onDeath func()) (cancel func(), err error)
}

type NopLiveness struct{}

func (NopLiveness) Watch(Caller, func()) (func(), error) {
	return func() {}, nil
}

const PidLivenessInterval = time.Second * 2

type pidWatch struct {
	caller  Caller
	onDeath func()
}

// PidLiveness treats callers as process ids and polls them with a null signal.
type PidLiveness struct {
	interval  time.Duration
	logPrefix string

	mutex   sync.Mutex
	nextID  uint64
	watches map[uint64]*pidWatch

	stopch chan struct{}
	donech chan struct{}
}

func NewPidLiveness(interval time.Duration, logPrefix string) *PidLiveness {
	if interval <= 0 {
		interval = PidLivenessInterval
	}

	l := &PidLiveness{
		interval:  interval,
		logPrefix: logPrefix,
		watches:   make(map[uint64]*pidWatch),
		stopch:    make(chan struct{}),
		donech:    make(chan struct{}),
	}
	go l.run()
	return l
}

func (l *PidLiveness) Watch(caller Caller, onDeath func()) (func(), error) {
	if caller <= 0 {
		err := fmt.Errorf("%s: invalid caller pid=%d", l.logPrefix, caller)
		log.Printf("%s", err.Error())
		return nil, err
	}
	if !pidAlive(int(caller)) {
		err := fmt.Errorf("%s: caller pid=%d not running", l.logPrefix, caller)
		log.Printf("%s", err.Error())
		return nil, err
	}

	l.mutex.Lock()
	id := l.nextID
	l.nextID++
	l.watches[id] = &pidWatch{
		caller:  caller,
		onDeath: onDeath,
	}
	l.mutex.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			l.mutex.Lock()
			delete(l.watches, id)
			l.mutex.Unlock()
		})
	}
	return cancel, nil
}

func (l *PidLiveness) Close() {
	select {
	case <-l.stopch:
		return
	default:
	}
	close(l.stopch)
	<-l.donech
}

func (l *PidLiveness) run() {
	defer close(l.donech)

	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	for {
		select {
		case <-l.stopch:
			return
		case <-ticker.C:
			l.poll()
		}
	}
}

func (l *PidLiveness) poll() {
	var dead []*pidWatch

	l.mutex.Lock()
	for id, w := range l.watches {
		if pidAlive(int(w.caller)) {
			continue
		}
		dead = append(dead, w)
		delete(l.watches, id)
	}
	l.mutex.Unlock()

	for _, w := range dead {
		log.Printf("%s: caller pid=%d exited", l.logPrefix, w.caller)
		w.onDeath()
	}
}

// kill with signal 0 performs the permission and existence checks only
func pidAlive(pid int) bool {
	err := unix.Kill(pid, 0)
	if err == nil {
		return true
	}
	// exists but owned by someone else
	return errors.Is(err, unix.EPERM)
}
