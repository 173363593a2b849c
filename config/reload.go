package config

import (
	"fmt"
	"log"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
)

// Reloadable watches a config file and swaps in each valid revision.
type Reloadable struct {
	path      string
	current   atomic.Pointer[Config]
	mutex     sync.RWMutex
	watchers  []func(old, new *Config)
	watcher   *fsnotify.Watcher
	stopch    chan struct{}
	donech    chan struct{}
	reloading atomic.Bool
}

func NewReloadable(path string) (*Reloadable, error) {
	c, err := Load(path)
	if err != nil {
		return nil, fmt.Errorf("initial config load: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}

	// the directory, not the file: editors that save by renaming over the original would
	// otherwise leave the watch on a removed inode
	path = filepath.Clean(path)
	err = watcher.Add(filepath.Dir(path))
	if err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watch config directory: %w", err)
	}

	r := &Reloadable{
		path:    path,
		watcher: watcher,
		stopch:  make(chan struct{}),
		donech:  make(chan struct{}),
	}
	r.current.Store(c)

	go r.watchLoop()

	return r, nil
}

func (r *Reloadable) Get() *Config {
	return r.current.Load()
}

// Watch registers fn to be invoked, on the watch goroutine, after every successful reload.
func (r *Reloadable) Watch(fn func(old, new *Config)) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.watchers = append(r.watchers, fn)
}

func (r *Reloadable) Reload() error {
	if !r.reloading.CompareAndSwap(false, true) {
		return fmt.Errorf("reload already in progress")
	}
	defer r.reloading.Store(false)

	next, err := Load(r.path)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	prev := r.Get()
	err = validateTransition(prev, next)
	if err != nil {
		return fmt.Errorf("validate transition: %w", err)
	}

	r.current.Store(next)

	r.mutex.RLock()
	watchers := make([]func(old, new *Config), len(r.watchers))
	copy(watchers, r.watchers)
	r.mutex.RUnlock()

	for _, fn := range watchers {
		fn(prev, next)
	}

	return nil
}

// some fields are bound at engine construction and cannot change underneath it
func validateTransition(prev, next *Config) error {
	if prev.Address != next.Address {
		return fmt.Errorf("address change requires restart: %s -> %s", prev.Address, next.Address)
	}

	if prev.DefaultConnection != next.DefaultConnection {
		return fmt.Errorf("default connection change requires restart")
	}

	if prev.MetricsAddress != next.MetricsAddress {
		return fmt.Errorf("metrics address change requires restart")
	}

	return nil
}

func (r *Reloadable) watchLoop() {
	defer close(r.donech)

	for {
		select {
		case event, ok := <-r.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != r.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			err := r.Reload()
			if err != nil {
				log.Printf("%s: config reload failed, err=%s", r.Get().LogPrefix, err.Error())
			}
		case err, ok := <-r.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("%s: config watcher error, err=%s", r.Get().LogPrefix, err.Error())
		case <-r.stopch:
			return
		}
	}
}

func (r *Reloadable) Close() error {
	close(r.stopch)
	err := r.watcher.Close()
	<-r.donech
	return err
}
