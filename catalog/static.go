package catalog

import (
	"sort"
	"sync"

	"github.com/kbukum/gocompose/di"
)

// Static is a mutable in-memory catalog. Subscribers are notified after every
// change, outside the catalog's lock.
type Static struct {
	mu      sync.RWMutex
	exports map[string][]di.Export

	subsMu sync.Mutex
	subs   map[uint64]func()
	next   uint64
}

// NewStatic returns a catalog holding exports.
func NewStatic(exports ...di.Export) *Static {
	s := &Static{exports: make(map[string][]di.Export), subs: make(map[uint64]func())}
	for _, e := range exports {
		s.put(e)
	}
	return s
}

// Snapshot implements di.Catalog.
func (s *Static) Snapshot() map[string][]di.Export {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string][]di.Export, len(s.exports))
	for name, es := range s.exports {
		out[name] = append([]di.Export(nil), es...)
	}
	return out
}

// OnChange implements di.Catalog.
func (s *Static) OnChange(fn func()) (cancel func()) {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	id := s.next
	s.next++
	s.subs[id] = fn
	var once sync.Once
	return func() {
		once.Do(func() {
			s.subsMu.Lock()
			delete(s.subs, id)
			s.subsMu.Unlock()
		})
	}
}

// Add publishes exports. Exports already present are not duplicated.
func (s *Static) Add(exports ...di.Export) {
	s.mu.Lock()
	changed := false
	for _, e := range exports {
		changed = s.put(e) || changed
	}
	s.mu.Unlock()
	if changed {
		s.notify()
	}
}

// Remove withdraws exports.
func (s *Static) Remove(exports ...di.Export) {
	s.mu.Lock()
	changed := false
	for _, e := range exports {
		key := e.Key()
		es := s.exports[key]
		for i, cur := range es {
			if cur.Same(e) {
				es = append(es[:i], es[i+1:]...)
				changed = true
				break
			}
		}
		if len(es) == 0 {
			delete(s.exports, key)
		} else {
			s.exports[key] = es
		}
	}
	s.mu.Unlock()
	if changed {
		s.notify()
	}
}

// Replace swaps the whole content for exports and notifies once.
func (s *Static) Replace(exports []di.Export) {
	s.mu.Lock()
	s.exports = make(map[string][]di.Export)
	for _, e := range exports {
		s.put(e)
	}
	s.mu.Unlock()
	s.notify()
}

// Names returns the export names, sorted.
func (s *Static) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.exports))
	for name := range s.exports {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (s *Static) put(e di.Export) bool {
	key := e.Key()
	for _, cur := range s.exports[key] {
		if cur.Same(e) {
			return false
		}
	}
	e.Name = key
	s.exports[key] = append(s.exports[key], e)
	return true
}

func (s *Static) notify() {
	s.subsMu.Lock()
	ids := make([]uint64, 0, len(s.subs))
	for id := range s.subs {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	fns := make([]func(), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, s.subs[id])
	}
	s.subsMu.Unlock()
	for _, fn := range fns {
		fn()
	}
}
