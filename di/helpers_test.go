package di

import (
	"reflect"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kbukum/gocompose/errors"
	"github.com/kbukum/gocompose/logger"
)

type journal struct {
	lines []string
}

type store struct {
	Journal *journal `compose:""`
	closed  int
}

func (s *store) Close() error {
	s.closed++
	return nil
}

type plugin struct {
	name string
}

type service struct {
	Store   *store    `compose:""`
	Plugins []*plugin `compose:"plugins,recompose"`
	Fixed   []*plugin `compose:"plugins"`
}

type widget struct {
	source  string
	journal *journal
	store   *store
}

func newTestContainer(t *testing.T, opts ...Option) *Container {
	t.Helper()
	c := New(append([]Option{WithLogger(logger.Nop())}, opts...)...)
	t.Cleanup(func() { _ = c.Dispose() })
	return c
}

func typeOf[T any]() reflect.Type {
	return reflect.TypeFor[T]()
}

func requireCode(t *testing.T, err error, code errors.ErrorCode) {
	t.Helper()
	require.Error(t, err)
	require.Truef(t, errors.HasCode(err, code), "expected %s, got %v", code, err)
}

// memCatalog is an in-memory Catalog for tests.
type memCatalog struct {
	mu      sync.Mutex
	exports map[string][]Export
	subs    map[int]func()
	next    int
}

func newMemCatalog() *memCatalog {
	return &memCatalog{exports: make(map[string][]Export), subs: make(map[int]func())}
}

func (m *memCatalog) Snapshot() map[string][]Export {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string][]Export, len(m.exports))
	for k, v := range m.exports {
		out[k] = append([]Export(nil), v...)
	}
	return out
}

func (m *memCatalog) OnChange(fn func()) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.next
	m.next++
	m.subs[id] = fn
	return func() {
		m.mu.Lock()
		delete(m.subs, id)
		m.mu.Unlock()
	}
}

func (m *memCatalog) set(name string, exports ...Export) {
	m.mu.Lock()
	if len(exports) == 0 {
		delete(m.exports, name)
	} else {
		m.exports[name] = exports
	}
	fns := make([]func(), 0, len(m.subs))
	for _, fn := range m.subs {
		fns = append(fns, fn)
	}
	m.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

func (m *memCatalog) subscribers() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.subs)
}
