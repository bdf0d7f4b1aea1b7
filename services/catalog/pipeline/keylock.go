package pipeline

import (
	"context"
	"sync"
)

// keyLock hands out one lock per key and forgets it once nobody holds
// or waits on it.
type keyLock struct {
	mutex sync.Mutex
	locks map[string]*refSlot
}

// refSlot is held by whoever put the one value in slot.
type refSlot struct {
	slot chan struct{}
	refs int
}

func newKeyLock() *keyLock {
	return &keyLock{locks: map[string]*refSlot{}}
}

// Lock waits for key until ctx is done. The returned func releases it.
func (k *keyLock) Lock(ctx context.Context, key string) (func(), error) {
	k.mutex.Lock()
	s, ok := k.locks[key]
	if !ok {
		s = &refSlot{slot: make(chan struct{}, 1)}
		k.locks[key] = s
	}
	s.refs++
	k.mutex.Unlock()

	select {
	case s.slot <- struct{}{}:
		return func() {
			<-s.slot
			k.release(key, s)
		}, nil
	case <-ctx.Done():
		k.release(key, s)
		return nil, ctx.Err()
	}
}

func (k *keyLock) release(key string, s *refSlot) {
	k.mutex.Lock()
	defer k.mutex.Unlock()
	s.refs--
	if s.refs == 0 {
		delete(k.locks, key)
	}
}
