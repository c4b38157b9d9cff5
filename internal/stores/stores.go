// Package stores holds the in-memory entity state the dashboard renders:
// trades, alerts, account settings, auth session, and derived statistics.
// Each store serializes access with a mutex and hands out copies, never
// internal slices. Change notification is callback-based; listeners are
// invoked after the mutation commits, without store locks held.
package stores

import "sync"

// changeFeed notifies registered listeners that a store's state changed.
type changeFeed struct {
	mu      sync.Mutex
	subs    map[uint64]func()
	nextSub uint64
}

// subscribe registers fn to run after every change. The returned function
// removes the registration and is safe to call more than once.
func (f *changeFeed) subscribe(fn func()) func() {
	f.mu.Lock()
	if f.subs == nil {
		f.subs = make(map[uint64]func())
	}
	id := f.nextSub
	f.nextSub++
	f.subs[id] = fn
	f.mu.Unlock()

	return func() {
		f.mu.Lock()
		delete(f.subs, id)
		f.mu.Unlock()
	}
}

// notify runs all registered listeners. Callers must not hold store locks.
func (f *changeFeed) notify() {
	f.mu.Lock()
	fns := make([]func(), 0, len(f.subs))
	for _, fn := range f.subs {
		fns = append(fns, fn)
	}
	f.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}
