package inference

import (
	"sync"

	"github.com/pkg/errors"
)

type state int

const (
	stateNew state = iota
	stateReady
	stateDisposed
)

// lifecycle guards a handle's init/call/dispose contract. Calls hold a read
// lock so Dispose waits for in-flight work before releasing resources.
type lifecycle struct {
	mu    sync.RWMutex
	state state
	cfg   Config
}

// init runs setup under the write lock; re-initialising a ready handle first
// runs teardown.
func (l *lifecycle) init(cfg Config, teardown, setup func() error) error {
	if err := cfg.Validate(); err != nil {
		return errors.Wrap(err, "invalid detector config")
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	switch l.state {
	case stateDisposed:
		return ErrDisposed
	case stateReady:
		if err := teardown(); err != nil {
			return errors.Wrap(err, "reinitialise")
		}
		l.state = stateNew
	}
	if err := setup(); err != nil {
		return err
	}
	l.cfg = cfg
	l.state = stateReady
	return nil
}

// enter takes the read lock for one call. The returned release must be
// called when the call finishes.
func (l *lifecycle) enter() (Config, func(), error) {
	l.mu.RLock()
	switch l.state {
	case stateDisposed:
		l.mu.RUnlock()
		return Config{}, nil, ErrDisposed
	case stateNew:
		l.mu.RUnlock()
		return Config{}, nil, ErrNotReady
	}
	return l.cfg, l.mu.RUnlock, nil
}

// dispose is idempotent; teardown only runs for a handle that was ready.
func (l *lifecycle) dispose(teardown func() error) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	prev := l.state
	l.state = stateDisposed
	if prev != stateReady {
		return nil
	}
	return teardown()
}
