package catalog

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kbukum/gocompose/config"
	"github.com/kbukum/gocompose/di"
	"github.com/kbukum/gocompose/errors"
	"github.com/kbukum/gocompose/logger"
)

func testTypes(t *testing.T) (*Types, *plugin, *plugin) {
	t.Helper()
	a, b := &plugin{name: "a"}, &plugin{name: "b"}
	types := NewTypes()
	require.NoError(t, types.RegisterInstance("plugin.a", a))
	require.NoError(t, types.RegisterInstance("plugin.b", b))
	require.NoError(t, types.RegisterType("host", di.Describe[*host]()))
	return types, a, b
}

func writeManifest(t *testing.T, path, content string) {
	t.Helper()
	tmp := path + ".tmp"
	require.NoError(t, os.WriteFile(tmp, []byte(content), 0o600))
	require.NoError(t, os.Rename(tmp, path))
}

const manifestA = `exports:
  - name: plugins
    type: plugin.a
  - name: host
    type: host
    private: true
`

const manifestAB = `exports:
  - name: plugins
    type: plugin.a
  - name: plugins
    type: plugin.b
`

func TestFile_Load(t *testing.T) {
	types, a, _ := testTypes(t)
	path := filepath.Join(t.TempDir(), "exports.yml")
	writeManifest(t, path, manifestA)

	f, err := NewFile(path, types, WithLogger(logger.Nop()))
	require.NoError(t, err)
	assert.Equal(t, path, f.Path())
	assert.Equal(t, []string{"host", "plugins"}, f.Names())

	snap := f.Snapshot()
	require.Len(t, snap["plugins"], 1)
	assert.Same(t, a, snap["plugins"][0].Instance)
	require.Len(t, snap["host"], 1)
	assert.True(t, snap["host"][0].Private)
}

func TestFile_LoadErrors(t *testing.T) {
	types, _, _ := testTypes(t)
	dir := t.TempDir()

	tests := []struct {
		name    string
		content string
	}{
		{"unknown tag", "exports:\n  - name: x\n    type: nope\n"},
		{"missing name", "exports:\n  - type: plugin.a\n"},
		{"malformed", "exports: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.name+".yml")
			writeManifest(t, path, tt.content)
			_, err := NewFile(path, types, WithLogger(logger.Nop()))
			assert.True(t, errors.HasCode(err, errors.ErrCodeInvalidConfig), "got %v", err)
		})
	}

	_, err := NewFile(filepath.Join(dir, "absent.yml"), types, WithLogger(logger.Nop()))
	assert.True(t, errors.HasCode(err, errors.ErrCodeInvalidConfig))
	_, err = NewFile("", types)
	assert.True(t, errors.HasCode(err, errors.ErrCodeInvalidArgument))
	_, err = NewFile("x.yml", nil)
	assert.True(t, errors.HasCode(err, errors.ErrCodeInvalidArgument))
}

func TestFile_ReloadDrivesContainer(t *testing.T) {
	types, a, b := testTypes(t)
	path := filepath.Join(t.TempDir(), "exports.yml")
	writeManifest(t, path, manifestA)
	f, err := NewFile(path, types, WithLogger(logger.Nop()))
	require.NoError(t, err)

	c := newContainer(t)
	require.NoError(t, c.AddCatalog(f))
	h := di.MustResolve[*host](c, "host")
	assert.Equal(t, []*plugin{a}, h.Plugins)
	assert.NotSame(t, h, di.MustResolve[*host](c, "host"), "host is private")

	writeManifest(t, path, manifestAB)
	require.NoError(t, f.Reload())
	_, ok := di.TryResolve[*host](c, "host")
	assert.False(t, ok)

	got, err := di.ResolveAll[*plugin](c, "plugins")
	require.NoError(t, err)
	assert.Equal(t, []*plugin{a, b}, got)

	writeManifest(t, path, "exports: [\n")
	require.Error(t, f.Reload())
	assert.Len(t, f.Snapshot()["plugins"], 2, "failed reloads keep the previous content")
}

func TestFile_Watch(t *testing.T) {
	types, _, _ := testTypes(t)
	path := filepath.Join(t.TempDir(), "exports.yml")
	writeManifest(t, path, manifestA)

	f, err := FromConfig(config.CompositionConfig{CatalogFile: path, WatchCatalog: true}, types, WithLogger(logger.Nop()))
	require.NoError(t, err)
	require.NotNil(t, f)
	f.Watch()

	c := newContainer(t)
	require.NoError(t, c.AddCatalog(f))

	writeManifest(t, path, manifestAB)
	require.Eventually(t, func() bool {
		got, err := di.ResolveAll[*plugin](c, "plugins")
		return err == nil && len(got) == 2
	}, 5*time.Second, 20*time.Millisecond)
}

func TestFile_CloseStopsWatching(t *testing.T) {
	types, _, _ := testTypes(t)
	path := filepath.Join(t.TempDir(), "exports.yml")
	writeManifest(t, path, manifestA)

	f, err := FromConfig(config.CompositionConfig{CatalogFile: path, WatchCatalog: true}, types, WithLogger(logger.Nop()))
	require.NoError(t, err)
	require.NoError(t, f.Close())
	require.NoError(t, f.Close())
	f.Watch()

	writeManifest(t, path, manifestAB)
	assert.Never(t, func() bool {
		return len(f.Snapshot()["plugins"]) != 1
	}, 300*time.Millisecond, 20*time.Millisecond)

	require.NoError(t, f.Reload())
	assert.Len(t, f.Snapshot()["plugins"], 2, "explicit reloads still work")
}

func TestFromConfig_NoFile(t *testing.T) {
	f, err := FromConfig(config.CompositionConfig{}, NewTypes())
	require.NoError(t, err)
	assert.Nil(t, f)
}
