package di

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kbukum/gocompose/config"
	"github.com/kbukum/gocompose/errors"
)

func TestContainer_AddInstanceAndResolve(t *testing.T) {
	c := newTestContainer(t)
	j := &journal{}
	require.NoError(t, c.AddInstance("", j))

	got, err := c.GetExport("", typeOf[*journal]())
	require.NoError(t, err)
	assert.Same(t, j, got)

	byName, err := Resolve[*journal](c, NameOf[*journal]())
	require.NoError(t, err)
	assert.Same(t, j, byName)
}

func TestContainer_MissingExport(t *testing.T) {
	c := newTestContainer(t)

	got, err := c.GetExport("nothing", nil)
	require.NoError(t, err)
	assert.Nil(t, got)

	_, err = Resolve[*journal](c, "")
	requireCode(t, err, errors.ErrCodeNotFound)

	_, ok := TryResolve[*journal](c, "")
	assert.False(t, ok)

	_, err = c.GetExport("", nil)
	requireCode(t, err, errors.ErrCodeInvalidArgument)
}

func TestContainer_RejectsIneligibleExports(t *testing.T) {
	c := newTestContainer(t)

	tests := []struct {
		name string
		add  func() error
		code errors.ErrorCode
	}{
		{"nil instance", func() error { return c.AddInstance("x", nil) }, errors.ErrCodeInvalidArgument},
		{"value instance", func() error { return c.AddInstance("x", 42) }, errors.ErrCodeIneligibleExport},
		{"struct value instance", func() error { return c.AddInstance("x", journal{}) }, errors.ErrCodeIneligibleExport},
		{"nil type", func() error { return c.AddType("x", nil, false) }, errors.ErrCodeInvalidArgument},
		{"interface type", func() error { return c.AddType("x", Describe[io.Reader](), false) }, errors.ErrCodeIneligibleExport},
		{"value type", func() error { return c.AddType("x", Describe[journal](), false) }, errors.ErrCodeIneligibleExport},
		{"bad constructor", func() error {
			return c.AddType("x", Describe[*journal](Constructor(func() *store { return nil })), false)
		}, errors.ErrCodeInvalidArgument},
		{"not a function", func() error { return c.AddFactory("x", NewFactory(42), false) }, errors.ErrCodeInvalidArgument},
		{"nil catalog", func() error { return c.AddCatalog(nil) }, errors.ErrCodeInvalidArgument},
		{"nil creator", func() error { return c.AddCreator(nil) }, errors.ErrCodeInvalidArgument},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.add()
			requireCode(t, err, tt.code)
			assert.True(t, errors.IsArgument(err))
		})
	}
	assert.Empty(t, c.Registrations())
}

func TestContainer_SharedAndPrivateTypes(t *testing.T) {
	c := newTestContainer(t)
	require.NoError(t, c.AddType("shared", Describe[*journal](), false))
	require.NoError(t, c.AddType("private", Describe[*journal](), true))

	a := MustResolve[*journal](c, "shared")
	b := MustResolve[*journal](c, "shared")
	assert.Same(t, a, b)

	p1 := MustResolve[*journal](c, "private")
	p2 := MustResolve[*journal](c, "private")
	assert.NotSame(t, p1, p2)
	assert.NotSame(t, a, p1)
}

func TestContainer_SharedTypeUnderTwoNamesIsOneInstance(t *testing.T) {
	c := newTestContainer(t)
	desc := Describe[*journal]()
	require.NoError(t, c.AddType("a", desc, false))
	require.NoError(t, c.AddType("b", Describe[*journal](), false))

	assert.Same(t, MustResolve[*journal](c, "a"), MustResolve[*journal](c, "b"))
	assert.Equal(t, uint64(1), c.Stats().Constructions)
}

func TestContainer_SharingDeclarations(t *testing.T) {
	c := newTestContainer(t)

	err := c.AddType("both", Describe[*journal](Shared(), Private()), false)
	requireCode(t, err, errors.ErrCodeSharingConflict)
	assert.True(t, errors.IsComposition(err))

	err = c.AddType("shared", Describe[*journal](Shared()), true)
	requireCode(t, err, errors.ErrCodeSharingConflict)

	require.NoError(t, c.AddType("declared-private", Describe[*journal](Private()), false))
	assert.NotSame(t,
		MustResolve[*journal](c, "declared-private"),
		MustResolve[*journal](c, "declared-private"))
}

func TestContainer_TypeImportsResolvedOnConstruction(t *testing.T) {
	c := newTestContainer(t)
	j := &journal{}
	require.NoError(t, c.AddInstance("", j))
	require.NoError(t, c.AddType("", Describe[*store](), false))

	s := MustResolve[*store](c, "")
	assert.Same(t, j, s.Journal)
}

func TestContainer_FactorySharedAndPrivate(t *testing.T) {
	c := newTestContainer(t)
	j := &journal{}
	require.NoError(t, c.AddInstance("", j))

	calls := 0
	f := NewFactory(func(j *journal) (*store, error) {
		calls++
		return &store{Journal: j}, nil
	})
	require.NoError(t, c.AddFactory("", f, false))
	a := MustResolve[*store](c, "")
	b := MustResolve[*store](c, "")
	assert.Same(t, a, b)
	assert.Same(t, j, a.Journal)
	assert.Equal(t, 1, calls)

	require.NoError(t, c.AddFactory("fresh", NewFactory(func() *store { return &store{} }), true))
	assert.NotSame(t, MustResolve[*store](c, "fresh"), MustResolve[*store](c, "fresh"))
}

func TestContainer_FactoryErrorIsConstructionFailure(t *testing.T) {
	c := newTestContainer(t)
	boom := errors.New(errors.ErrCodeNotFound, "database offline")
	require.NoError(t, c.AddFactory("db", NewFactory(func() (*store, error) { return nil, boom }), false))

	_, err := c.GetExport("db", typeOf[*store]())
	requireCode(t, err, errors.ErrCodeConstructionFailed)
	assert.ErrorIs(t, err, boom)
}

func TestContainer_ReleaseOnRemoval(t *testing.T) {
	c := newTestContainer(t)
	s := &store{}
	require.NoError(t, c.AddInstance("s", s))
	require.NoError(t, c.AddInstance("t", s))

	require.NoError(t, c.RemoveInstance("s", s))
	assert.Equal(t, 0, s.closed, "still exported under t")

	require.NoError(t, c.RemoveInstance("t", s))
	assert.Equal(t, 1, s.closed)

	desc := Describe[*store]()
	require.NoError(t, c.AddType("", desc, false))
	built := MustResolve[*store](c, "")
	require.NoError(t, c.RemoveType("", desc))
	assert.Equal(t, 1, built.closed)
	assert.GreaterOrEqual(t, c.Stats().Releases, uint64(2))

	got, err := c.GetExport("", typeOf[*store]())
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestContainer_RemoveFactoryReleasesInstance(t *testing.T) {
	c := newTestContainer(t)
	f := NewFactory(func() *store { return &store{} })
	require.NoError(t, c.AddFactory("s", f, false))
	s := MustResolve[*store](c, "s")

	require.NoError(t, c.RemoveFactory("s", f))
	assert.Equal(t, 1, s.closed)
}

type awareExport struct {
	Journal *journal `compose:""`

	resolving   int
	resolved    int
	lastChanged bool
	added       []string
	removed     []string
}

func (a *awareExport) OnImportsResolving()            { a.resolving++ }
func (a *awareExport) OnImportsResolved(changed bool) { a.resolved++; a.lastChanged = changed }
func (a *awareExport) OnExportAdded(name string)      { a.added = append(a.added, name) }
func (a *awareExport) OnExportRemoved(name string)    { a.removed = append(a.removed, name) }

func TestContainer_AwareHooks(t *testing.T) {
	c := newTestContainer(t)
	a := &awareExport{}
	require.NoError(t, c.AddInstance("aware", a))
	assert.Equal(t, []string{"aware"}, a.added)
	assert.Equal(t, 1, a.resolving)
	assert.Equal(t, 1, a.resolved)
	assert.False(t, a.lastChanged)

	j := &journal{}
	require.NoError(t, c.AddInstance("", j))
	assert.True(t, a.lastChanged)
	assert.Same(t, j, a.Journal)
	assert.Equal(t, a.resolving, a.resolved)

	require.NoError(t, c.RemoveInstance("aware", a))
	assert.Equal(t, []string{"aware"}, a.removed)
}

func TestContainer_ClearKeepsContainerUsable(t *testing.T) {
	c := newTestContainer(t)
	s := &store{}
	cat := newMemCatalog()
	require.NoError(t, c.AddInstance("", s))
	require.NoError(t, c.AddCatalog(cat))
	require.Equal(t, 1, cat.subscribers())

	require.NoError(t, c.Clear())
	assert.Equal(t, 1, s.closed)
	assert.Zero(t, cat.subscribers())
	assert.Empty(t, c.Names())

	require.NoError(t, c.AddInstance("", &journal{}))
	assert.Len(t, c.Names(), 1)
}

func TestContainer_Dispose(t *testing.T) {
	c := New()
	require.NoError(t, c.AddType("", Describe[*store](), false))
	s := MustResolve[*store](c, "")
	require.NoError(t, c.AddInstance("self", c))

	require.NoError(t, c.Dispose())
	assert.Equal(t, 1, s.closed)
	require.NoError(t, c.Close())

	requireCode(t, c.AddInstance("", &journal{}), errors.ErrCodeDisposed)
	_, err := c.GetExport("", typeOf[*store]())
	requireCode(t, err, errors.ErrCodeDisposed)
	_, err = c.Recompose(0)
	requireCode(t, err, errors.ErrCodeDisposed)
	requireCode(t, c.SetParent(nil), errors.ErrCodeDisposed)
}

func TestContainer_ChangeNotifications(t *testing.T) {
	c := newTestContainer(t)
	count := 0
	cancel := c.OnChanged(func() { count++ })

	require.NoError(t, c.AddInstance("", &journal{}))
	_, err := c.Recompose(0)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	err = c.AddType("x", Describe[*journal](Shared(), Private()), false)
	require.Error(t, err)
	assert.Equal(t, 2, count, "failed staging never reaches a cycle")

	cancel()
	cancel()
	require.NoError(t, c.AddInstance("", &store{}))
	assert.Equal(t, 2, count)
}

func TestContainer_Registrations(t *testing.T) {
	c := newTestContainer(t)
	require.NoError(t, c.AddInstance("b", &journal{}))
	require.NoError(t, c.AddType("a", Describe[*store](), true))
	require.NoError(t, c.AddFactory("c", NewFactory(func() *store { return &store{} }), false))
	MustResolve[*store](c, "c")

	regs := c.Registrations()
	require.Len(t, regs, 3)
	assert.Equal(t, "a", regs[0].Name)
	assert.Equal(t, TypeKind, regs[0].Kind)
	assert.True(t, regs[0].Private)
	assert.False(t, regs[0].Materialized)
	assert.Equal(t, InstanceKind, regs[1].Kind)
	assert.Equal(t, FactoryKind, regs[2].Kind)
	assert.True(t, regs[2].Materialized)
	assert.Equal(t, []string{"a", "b", "c"}, c.Names())
}

func TestContainer_WithConfig(t *testing.T) {
	c := newTestContainer(t, WithConfig(config.CompositionConfig{DefaultMode: []string{"missing", "composed"}}))
	assert.Equal(t, ResolveIfMissing|ResolveIfComposed, c.DefaultMode())

	bad := newTestContainer(t, WithConfig(config.CompositionConfig{DefaultMode: []string{"bogus"}}))
	assert.Equal(t, DefaultMode, bad.DefaultMode())
	assert.NotEmpty(t, c.ID())
	assert.NotEqual(t, c.ID(), bad.ID())
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		in      []string
		want    Mode
		wantErr bool
	}{
		{[]string{"missing"}, ResolveIfMissing, false},
		{[]string{"Missing", " recomposable "}, DefaultMode, false},
		{[]string{"composed"}, ResolveIfComposed, false},
		{[]string{"constructing"}, 0, true},
		{[]string{"bogus"}, 0, true},
	}
	for _, tt := range tests {
		got, err := ParseMode(tt.in)
		if tt.wantErr {
			requireCode(t, err, errors.ErrCodeInvalidArgument)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
	assert.Equal(t, "missing|recomposable", DefaultMode.String())
	assert.Equal(t, "none", Mode(0).String())
}
