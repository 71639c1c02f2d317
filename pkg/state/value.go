package state

import "sync"

// Value is an observable holder for the latest value of T.
//
// Set stores the value and then calls every subscriber synchronously on the
// calling goroutine, in subscription order, without holding the value's lock.
// A new subscriber is called immediately with the cached value if one has been
// set.
type Value[T any] struct {
	mu     sync.RWMutex
	val    T
	set    bool
	nextID int
	subs   []subscriber[T]
}

type subscriber[T any] struct {
	id int
	fn func(T)
}

// Get returns the latest value and whether one was ever set.
func (v *Value[T]) Get() (T, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.val, v.set
}

// Set replaces the value and notifies subscribers.
func (v *Value[T]) Set(val T) {
	v.mu.Lock()
	v.val = val
	v.set = true
	subs := make([]subscriber[T], len(v.subs))
	copy(subs, v.subs)
	v.mu.Unlock()

	for _, s := range subs {
		s.fn(val)
	}
}

// Subscribe registers fn and returns a function that removes it.
func (v *Value[T]) Subscribe(fn func(T)) func() {
	v.mu.Lock()
	v.nextID++
	id := v.nextID
	v.subs = append(v.subs, subscriber[T]{id: id, fn: fn})
	val, set := v.val, v.set
	v.mu.Unlock()

	if set {
		fn(val)
	}

	return func() {
		v.mu.Lock()
		defer v.mu.Unlock()
		for i, s := range v.subs {
			if s.id == id {
				v.subs = append(v.subs[:i], v.subs[i+1:]...)
				return
			}
		}
	}
}
