// Package arbiter serializes outbound work onto a single scheduler goroutine.
package arbiter

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/Meander-Cloud/go-schedule/scheduler"
)

var (
	ErrShutdown  = errors.New("arbiter shut down")
	ErrQueueFull = errors.New("arbiter queue full")
)

type Options struct {
	EventChannelLength uint16

	// observes how long each job sat in the queue, optional
	QueueWait func(time.Duration)

	LogPrefix string
	LogDebug  bool
}

type job struct {
	f      func()
	queued time.Time
}

// Arbiter runs dispatched jobs one at a time, in submission order, on the scheduler goroutine.
type Arbiter struct {
	options *Options
	s       *scheduler.Scheduler[Group]
	jobs    chan *job
	free    sync.Pool

	// held shared by Dispatch, so nothing is queued once closed is set
	mutex  sync.RWMutex
	closed bool
}

func NewArbiter(options *Options) *Arbiter {
	a := &Arbiter{
		options: options,
		s: scheduler.NewScheduler[Group](
			&scheduler.Options{
				LogPrefix: options.LogPrefix + "-Scheduler",
				LogDebug:  options.LogDebug,
			},
		),
		jobs: make(chan *job, options.EventChannelLength),
		free: sync.Pool{
			New: func() any {
				return &job{}
			},
		},
	}

	a.s.ProcessAsync(
		&scheduler.ScheduleAsyncEvent[Group]{
			AsyncVariant: scheduler.NewAsyncVariant(
				false,
				[]Group{GroupSend},
				a.jobs,
				func(_ *scheduler.Scheduler[Group], _ *scheduler.AsyncVariant[Group], recv interface{}) {
					j, ok := recv.(*job)
					if !ok {
						log.Printf("%s: unexpected job %#v", options.LogPrefix, recv)
						return
					}
					a.run(j)
				},
				func(_ *scheduler.Scheduler[Group], v *scheduler.AsyncVariant[Group]) {
					log.Printf("%s: job queue released, select count: %d", options.LogPrefix, v.SelectCount)
				},
			),
		},
	)

	a.s.RunAsync()

	return a
}

// Shutdown stops the scheduler goroutine and then runs, on the calling goroutine, every job
// still queued, so that whatever a job owns is settled exactly once.
func (a *Arbiter) Shutdown() {
	a.mutex.Lock()
	if a.closed {
		a.mutex.Unlock()
		return
	}
	a.closed = true
	a.mutex.Unlock()

	a.s.Shutdown() // wait

	var drained int
	for {
		select {
		case j := <-a.jobs:
			a.run(j)
			drained++
		default:
			if drained > 0 {
				log.Printf("%s: ran %d jobs queued at shutdown", a.options.LogPrefix, drained)
			}
			return
		}
	}
}

func (a *Arbiter) run(j *job) {
	f, queued := j.f, j.queued
	j.f = nil
	j.queued = time.Time{}
	a.free.Put(j)

	start := time.Now().UTC()
	if a.options.QueueWait != nil {
		a.options.QueueWait(start.Sub(queued))
	}

	func() {
		defer func() {
			rec := recover()
			if rec != nil {
				log.Printf("%s: job recovered from panic: %+v", a.options.LogPrefix, rec)
			}
		}()
		f()
	}()

	if a.options.LogDebug {
		log.Printf(
			"%s: job queueWait=%dus, elapsed=%dus",
			a.options.LogPrefix,
			start.Sub(queued).Microseconds(),
			time.Since(start).Microseconds(),
		)
	}
}

// Dispatch queues f without blocking, any goroutine.
func (a *Arbiter) Dispatch(f func()) error {
	a.mutex.RLock()
	defer a.mutex.RUnlock()

	if a.closed {
		return fmt.Errorf("%s: %w", a.options.LogPrefix, ErrShutdown)
	}

	j, ok := a.free.Get().(*job)
	if !ok {
		j = &job{}
	}
	j.f = f
	j.queued = time.Now().UTC()

	select {
	case a.jobs <- j:
		return nil
	default:
		j.f = nil
		a.free.Put(j)

		err := fmt.Errorf("%s: %w, capacity=%d", a.options.LogPrefix, ErrQueueFull, cap(a.jobs))
		log.Printf("%s", err.Error())
		return err
	}
}
