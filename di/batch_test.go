package di

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kbukum/gocompose/errors"
)

func TestBatch_OneNotificationPerCommit(t *testing.T) {
	c := newTestContainer(t)
	require.NoError(t, c.AddType("", Describe[*service](), false))
	svc := MustResolve[*service](c, "")

	notified := 0
	c.OnChanged(func() { notified++ })

	a, b, d := &plugin{name: "a"}, &plugin{name: "b"}, &plugin{name: "d"}
	batch := c.Batch()
	require.NoError(t, batch.AddInstance("plugins", a))
	require.NoError(t, batch.AddInstance("plugins", b))
	require.NoError(t, batch.AddInstance("plugins", d))
	require.NoError(t, batch.RemoveInstance("plugins", a))
	require.NoError(t, batch.RemoveInstance("plugins", b))
	assert.Equal(t, 5, batch.Len())
	assert.Zero(t, notified, "nothing happens before commit")

	changed, err := batch.Commit()
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, 1, notified)
	assert.Equal(t, []*plugin{d}, svc.Plugins)
	assert.Zero(t, batch.Len())
}

func TestBatch_ValidatesWhenStaged(t *testing.T) {
	c := newTestContainer(t)
	b := c.Batch()

	requireCode(t, b.AddInstance("x", 7), errors.ErrCodeIneligibleExport)
	requireCode(t, b.AddType("x", Describe[*journal](Shared()), true), errors.ErrCodeSharingConflict)
	requireCode(t, b.ResolveImports(7), errors.ErrCodeInvalidArgument)
	requireCode(t, b.AddCatalog(nil), errors.ErrCodeInvalidArgument)
	assert.Zero(t, b.Len())
}

func TestBatch_ResolveImportsAfterRecompose(t *testing.T) {
	c := newTestContainer(t)
	p := &plugin{name: "a"}
	target := &service{}

	b := c.Batch()
	require.NoError(t, b.ResolveImports(target))
	require.NoError(t, b.AddInstance("plugins", p))
	require.NoError(t, b.AddType("", Describe[*store](), false))
	changed, err := b.CommitMode(ResolveIfMissing)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, []*plugin{p}, target.Plugins)
	assert.NotNil(t, target.Store)
}

func TestBatch_CatalogAndCreatorOps(t *testing.T) {
	c := newTestContainer(t)
	cat := newMemCatalog()
	cr := &CreatorFunc{New: func(Resolver, string, reflect.Type) (any, error) { return nil, nil }}

	b := c.Batch()
	require.NoError(t, b.AddCatalog(cat))
	require.NoError(t, b.AddCatalog(cat))
	require.NoError(t, b.AddCreator(cr))
	_, err := b.Commit()
	require.NoError(t, err)
	assert.Equal(t, 1, cat.subscribers())

	b = c.Batch()
	require.NoError(t, b.RemoveCatalog(cat))
	require.NoError(t, b.RemoveCreator(cr))
	_, err = b.Commit()
	require.NoError(t, err)
	assert.Zero(t, cat.subscribers())
}
