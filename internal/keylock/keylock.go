package keylock

import "sync"

// Guard serializes critical sections by string key so that unrelated keys
// never block each other. Lock entries are reference counted and removed
// once the last holder releases, keeping the map bounded by live contention.
type Guard struct {
	mu   sync.Mutex
	keys map[string]*keyLock
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

func New() *Guard {
	return &Guard{keys: make(map[string]*keyLock)}
}

// Do runs fn while holding the exclusive lock for key.
func (g *Guard) Do(key string, fn func() error) error {
	kl := g.acquire(key)
	defer g.release(key, kl)

	kl.mu.Lock()
	defer kl.mu.Unlock()

	return fn()
}

func (g *Guard) acquire(key string) *keyLock {
	g.mu.Lock()
	defer g.mu.Unlock()

	kl, ok := g.keys[key]
	if !ok {
		kl = &keyLock{}
		g.keys[key] = kl
	}
	kl.refs++
	return kl
}

func (g *Guard) release(key string, kl *keyLock) {
	g.mu.Lock()
	defer g.mu.Unlock()

	kl.refs--
	if kl.refs == 0 {
		delete(g.keys, key)
	}
}
