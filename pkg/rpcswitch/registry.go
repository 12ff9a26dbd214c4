package rpcswitch

import "sync"

// bucket is the list of worker methods serving one backend (or one filter
// value of a backend). Selection rotates the slice left by one and then
// picks the minimum-refcount entry, giving round-robin with least-loaded
// preference and stable, starvation-free ties (§4.6 step 4).
type bucket struct {
	entries []*WorkerMethod
}

func (b *bucket) add(wm *WorkerMethod) {
	b.entries = append(b.entries, wm)
}

func (b *bucket) remove(connID uint64) (empty bool) {
	out := b.entries[:0]
	for _, wm := range b.entries {
		if wm.OwningConnID != connID {
			out = append(out, wm)
		}
	}
	b.entries = out
	return len(b.entries) == 0
}

// Registry is the broker's worker announcement table: per backend method,
// either a flat list or, when the backend has a filter key, a map from
// filter value to list. Never both forms for the same backend (invariant
// 5). Lookups by connection id, not by pointer, so a freed connection
// can't be resurrected through a dangling registry entry (§9).
type Registry struct {
	mu       sync.RWMutex
	flat     map[string]*bucket            // backend -> bucket
	filtered map[string]map[string]*bucket // backend -> filterValue -> bucket
	count    int
}

func NewRegistry() *Registry {
	return &Registry{
		flat:     make(map[string]*bucket),
		filtered: make(map[string]map[string]*bucket),
	}
}

// Announce inserts wm into the flat bucket for its backend, or the
// filter-value bucket if wm.FilterValue is set.
func (r *Registry) Announce(wm *WorkerMethod) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if wm.FilterKey == "" {
		b, ok := r.flat[wm.Method]
		if !ok {
			b = &bucket{}
			r.flat[wm.Method] = b
		}
		b.add(wm)
		r.count++
		return
	}

	byValue, ok := r.filtered[wm.Method]
	if !ok {
		byValue = make(map[string]*bucket)
		r.filtered[wm.Method] = byValue
	}
	b, ok := byValue[wm.FilterValue]
	if !ok {
		b = &bucket{}
		byValue[wm.FilterValue] = b
	}
	b.add(wm)
	r.count++
}

// Withdraw removes every WorkerMethod owned by connID from backend's
// bucket(s), pruning empty inner and outer entries.
func (r *Registry) Withdraw(backend string, connID uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if b, ok := r.flat[backend]; ok {
		before := len(b.entries)
		if b.remove(connID) {
			delete(r.flat, backend)
		}
		r.count -= before - len(b.entries)
	}

	if byValue, ok := r.filtered[backend]; ok {
		for fv, b := range byValue {
			before := len(b.entries)
			if b.remove(connID) {
				delete(byValue, fv)
			}
			r.count -= before - len(b.entries)
		}
		if len(byValue) == 0 {
			delete(r.filtered, backend)
		}
	}
}

// Select picks a worker for backend (optionally scoped by filterValue),
// rotating the bucket left by one and returning the entry with the
// smallest connection refcount post-rotation (ties broken by post-rotation
// order). refcountOf resolves a connection id to its current refcount;
// the registry itself holds no connection pointers (§9).
func (r *Registry) Select(backend, filterValue string, refcountOf func(connID uint64) int64) (*WorkerMethod, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var b *bucket
	if filterValue != "" {
		byValue, ok := r.filtered[backend]
		if !ok {
			return nil, false
		}
		b, ok = byValue[filterValue]
		if !ok {
			return nil, false
		}
	} else {
		var ok bool
		b, ok = r.flat[backend]
		if !ok {
			return nil, false
		}
	}

	if len(b.entries) == 0 {
		return nil, false
	}
	if len(b.entries) == 1 {
		return b.entries[0], true
	}

	b.entries = append(b.entries[1:], b.entries[0])

	best := b.entries[0]
	bestRef := refcountOf(best.OwningConnID)
	for _, wm := range b.entries[1:] {
		if ref := refcountOf(wm.OwningConnID); ref < bestRef {
			best = wm
			bestRef = ref
		}
	}
	return best, true
}

// HasFilter reports whether backend is currently registered with a filter
// bucket rather than a flat one.
func (r *Registry) HasFilter(backend string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.filtered[backend]
	return ok
}

// Count returns the total number of announced (method, connection) pairs.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.count
}

// Workers returns a snapshot of every announced WorkerMethod across both
// flat and filtered buckets, for rpcswitch.get_workers.
func (r *Registry) Workers() []*WorkerMethod {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*WorkerMethod
	for _, b := range r.flat {
		out = append(out, b.entries...)
	}
	for _, byValue := range r.filtered {
		for _, b := range byValue {
			out = append(out, b.entries...)
		}
	}
	return out
}
