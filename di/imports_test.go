package di

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kbukum/gocompose/errors"
)

func TestImports_RecomposableCollections(t *testing.T) {
	c := newTestContainer(t)
	require.NoError(t, c.AddType("", Describe[*service](), false))
	svc := MustResolve[*service](c, "")
	assert.Nil(t, svc.Store)
	assert.Empty(t, svc.Plugins)

	p1, p2 := &plugin{name: "a"}, &plugin{name: "b"}
	require.NoError(t, c.AddInstance("plugins", p1))
	assert.Equal(t, []*plugin{p1}, svc.Plugins)
	assert.Equal(t, []*plugin{p1}, svc.Fixed, "empty collections count as missing")

	require.NoError(t, c.AddInstance("plugins", p2))
	assert.Equal(t, []*plugin{p1, p2}, svc.Plugins)
	assert.Equal(t, []*plugin{p1}, svc.Fixed, "non-recomposable slots keep their value")

	require.NoError(t, c.AddType("", Describe[*store](), false))
	assert.NotNil(t, svc.Store)

	require.NoError(t, c.RemoveInstance("plugins", p1))
	assert.Equal(t, []*plugin{p2}, svc.Plugins)
}

func TestImports_RecomposeIsIdempotent(t *testing.T) {
	c := newTestContainer(t)
	require.NoError(t, c.AddInstance("plugins", &plugin{name: "a"}))
	require.NoError(t, c.AddType("", Describe[*service](), false))
	require.NoError(t, c.AddType("", Describe[*store](), false))
	MustResolve[*service](c, "")

	_, err := c.Recompose(0)
	require.NoError(t, err)
	before := c.Stats().Assignments

	changed, err := c.Recompose(0)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, before, c.Stats().Assignments)
}

type depHolder struct {
	Journal *journal  `compose:"dep"`
	Plugins []*plugin `compose:"plugins"`
}

func TestImports_ComposedModeRefreshesSetSlots(t *testing.T) {
	c := newTestContainer(t)
	a, b := &journal{lines: []string{"a"}}, &journal{lines: []string{"b"}}
	p1, p2 := &plugin{name: "a"}, &plugin{name: "b"}
	require.NoError(t, c.AddInstance("dep", a))
	require.NoError(t, c.AddInstance("plugins", p1))

	h := &depHolder{}
	changed, err := c.ResolveImports(h, 0)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Same(t, a, h.Journal)

	require.NoError(t, c.RemoveInstance("dep", a))
	require.NoError(t, c.AddInstance("dep", b))
	require.NoError(t, c.AddInstance("plugins", p2))

	changed, err = c.ResolveImports(h, 0)
	require.NoError(t, err)
	assert.False(t, changed, "the default mode leaves set slots alone")
	assert.Same(t, a, h.Journal)

	changed, err = c.ResolveImports(h, ResolveIfComposed)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Same(t, b, h.Journal)
	assert.Equal(t, []*plugin{p1, p2}, h.Plugins)

	changed, err = c.ResolveImports(h, ResolveIfComposed)
	require.NoError(t, err)
	assert.False(t, changed)

	empty := &depHolder{}
	changed, err = c.ResolveImports(empty, ResolveIfComposed)
	require.NoError(t, err)
	assert.False(t, changed, "unset slots are not composed yet")
	assert.Nil(t, empty.Journal)
}

type privateDepHolder struct {
	Journal *journal `compose:"pdep,recompose"`
}

func TestImports_PrivateRecomposableSlotIsStable(t *testing.T) {
	c := newTestContainer(t)
	require.NoError(t, c.AddType("pdep", Describe[*journal](), true))
	require.NoError(t, c.AddType("", Describe[*privateDepHolder](), false))
	h := MustResolve[*privateDepHolder](c, "")
	first := h.Journal
	require.NotNil(t, first)
	stats := c.Stats()

	for i := 0; i < 2; i++ {
		changed, err := c.Recompose(0)
		require.NoError(t, err)
		assert.False(t, changed)
	}
	assert.Same(t, first, h.Journal)
	assert.Equal(t, stats.Assignments, c.Stats().Assignments)
	assert.Equal(t, stats.Constructions, c.Stats().Constructions)

	require.NoError(t, c.AddInstance("other", &plugin{}))
	assert.NotSame(t, first, h.Journal, "a composition change issues a new private instance")
}

type hookCounter struct {
	resolving int
	resolved  int
}

func (h *hookCounter) OnImportsResolving()    { h.resolving++ }
func (h *hookCounter) OnImportsResolved(bool) { h.resolved++ }

type failingImport struct {
	hookCounter
	Widget *widget `compose:""`
}

func TestImports_HooksAroundEveryResolution(t *testing.T) {
	c := newTestContainer(t)
	bare := &hookCounter{}
	changed, err := c.ResolveImports(bare, 0)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, 1, bare.resolving)
	assert.Equal(t, 1, bare.resolved)

	desc := Describe[*widget](
		PrimaryConstructor(func() *widget { return &widget{} }),
		PrimaryConstructor(func(j *journal) *widget { return &widget{} }),
	)
	require.NoError(t, c.AddType("", desc, false))
	f := &failingImport{}
	_, err = c.ResolveImports(f, 0)
	requireCode(t, err, errors.ErrCodeDuplicatePrimary)
	assert.Equal(t, 1, f.resolving)
	assert.Equal(t, 1, f.resolved)
}

type hiddenImport struct {
	journal *journal `compose:""`
}

func TestImports_UnexportedSlot(t *testing.T) {
	c := newTestContainer(t)
	_, err := c.ResolveImports(&hiddenImport{}, 0)
	requireCode(t, err, errors.ErrCodeMissingWriteAccessor)

	require.NoError(t, c.AddType("", Describe[*hiddenImport](), false))
	_, err = c.GetExport("", typeOf[*hiddenImport]())
	requireCode(t, err, errors.ErrCodeMissingWriteAccessor)
}

func TestImports_ResolveImportsTarget(t *testing.T) {
	c := newTestContainer(t)
	_, err := c.ResolveImports(service{}, 0)
	requireCode(t, err, errors.ErrCodeInvalidArgument)
	_, err = c.ResolveImports(nil, 0)
	requireCode(t, err, errors.ErrCodeInvalidArgument)

	p := &plugin{name: "a"}
	require.NoError(t, c.AddInstance("plugins", p))
	svc := &service{}
	changed, err := c.ResolveImports(svc, 0)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, []*plugin{p}, svc.Plugins)

	require.NoError(t, c.AddInstance("plugins", &plugin{name: "b"}))
	assert.Len(t, svc.Plugins, 1, "explicit targets are not tracked")
}

type lazyHolder struct {
	Store *Lazy[*store]   `compose:""`
	Make  func() *journal `compose:""`
}

func TestImports_LazyShapes(t *testing.T) {
	c := newTestContainer(t)
	h := &lazyHolder{}
	_, err := c.ResolveImports(h, 0)
	require.NoError(t, err)
	require.NotNil(t, h.Store)
	require.NotNil(t, h.Make)
	assert.Nil(t, h.Store.Value())
	assert.Nil(t, h.Make())

	s, j := &store{}, &journal{}
	require.NoError(t, c.AddInstance("", s))
	require.NoError(t, c.AddInstance("", j))

	got, err := h.Store.Get()
	require.NoError(t, err)
	assert.Same(t, s, got)
	assert.Same(t, j, h.Make())

	store := h.Store
	changed, err := c.ResolveImports(h, ResolveIfMissing|ResolveIfRecomposable|ResolveIfComposed)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Same(t, store, h.Store, "set lazy slots are left alone")
}

func TestLazyOf(t *testing.T) {
	c := newTestContainer(t)
	l := LazyOf[*journal](c, "")
	assert.Nil(t, l.Value())

	j := &journal{}
	require.NoError(t, c.AddInstance("", j))
	assert.Same(t, j, l.Value())

	var empty *Lazy[*journal]
	assert.Nil(t, empty.Value())
}

type setHolder struct {
	Plugins *ExportSet[*plugin] `compose:"plugins"`
}

func TestImports_ExportSetUnderComposedMode(t *testing.T) {
	c := newTestContainer(t)
	require.NoError(t, c.AddType("", Describe[*setHolder](), false))
	h := MustResolve[*setHolder](c, "")
	assert.Zero(t, h.Plugins.Len())

	p1, p2 := &plugin{name: "a"}, &plugin{name: "b"}
	require.NoError(t, c.AddInstance("plugins", p1))
	assert.Equal(t, []*plugin{p1}, h.Plugins.Values())

	require.NoError(t, c.AddInstance("plugins", p2))
	assert.Equal(t, 1, h.Plugins.Len(), "default mode leaves composed sets alone")

	changed, err := c.Recompose(ResolveIfComposed)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.ElementsMatch(t, []*plugin{p1, p2}, h.Plugins.Values())

	changed, err = c.Recompose(ResolveIfComposed)
	require.NoError(t, err)
	assert.False(t, changed)
}

type embeddedImports struct {
	Journal *journal `compose:""`
}

type outerImports struct {
	embeddedImports
	Ignored *journal `compose:"-"`
}

func TestImports_PromotedFields(t *testing.T) {
	c := newTestContainer(t)
	j := &journal{}
	require.NoError(t, c.AddInstance("", j))

	o := &outerImports{}
	_, err := c.ResolveImports(o, 0)
	require.NoError(t, err)
	assert.Same(t, j, o.Journal)
	assert.Nil(t, o.Ignored)
}

func TestSameSet(t *testing.T) {
	a, b := &plugin{}, &plugin{}
	assert.True(t, sameSet([]any{a, b}, []any{b, a}))
	assert.False(t, sameSet([]any{a, a}, []any{a, b}))
	assert.False(t, sameSet([]any{a}, []any{a, b}))
	assert.True(t, sameSet(nil, []any{}))
}
