package catalog

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/kbukum/gocompose/config"
	"github.com/kbukum/gocompose/di"
	"github.com/kbukum/gocompose/errors"
	"github.com/kbukum/gocompose/logger"
	"github.com/kbukum/gocompose/validation"
)

// Manifest is the on-disk shape of a File catalog:
//
//	exports:
//	  - name: plugins
//	    type: plugin.audit
//	  - name: session
//	    type: session.store
//	    private: true
type Manifest struct {
	Exports []ManifestEntry `yaml:"exports" mapstructure:"exports" validate:"dive"`
}

// ManifestEntry exports the item registered under Tag as Name.
type ManifestEntry struct {
	Name    string `yaml:"name" mapstructure:"name" validate:"required"`
	Tag     string `yaml:"type" mapstructure:"type" validate:"required"`
	Private bool   `yaml:"private" mapstructure:"private"`
}

// File is a catalog backed by a manifest file. Type tags are resolved
// through a Types registry. A manifest that fails to load leaves the
// previous content in place.
type File struct {
	*Static

	path  string
	types *Types
	log   *logger.Logger

	mu       sync.Mutex
	v        *viper.Viper
	watching bool
	closed   atomic.Bool
}

// FileOption configures a File.
type FileOption func(*File)

// WithLogger sets the File's logger.
func WithLogger(l *logger.Logger) FileOption {
	return func(f *File) { f.log = l }
}

// NewFile loads the manifest at path. Any format viper reads by extension
// works; YAML is the convention.
func NewFile(path string, types *Types, opts ...FileOption) (*File, error) {
	if path == "" {
		return nil, errors.InvalidArgument("path", "must not be empty")
	}
	if types == nil {
		return nil, errors.InvalidArgument("types", "must not be nil")
	}
	f := &File{Static: NewStatic(), path: path, types: types, v: viper.New()}
	for _, opt := range opts {
		opt(f)
	}
	if f.log == nil {
		f.log = logger.Get("catalog")
	}
	f.log = f.log.WithFields(logger.Fields("file", path))
	f.v.SetConfigFile(path)

	exports, err := f.read()
	if err != nil {
		return nil, err
	}
	f.Static.Replace(exports)
	return f, nil
}

// FromConfig opens the catalog named by cfg.CatalogFile and starts watching
// it when cfg.WatchCatalog is set. It returns nil when no file is configured.
func FromConfig(cfg config.CompositionConfig, types *Types, opts ...FileOption) (*File, error) {
	if cfg.CatalogFile == "" {
		return nil, nil
	}
	f, err := NewFile(cfg.CatalogFile, types, opts...)
	if err != nil {
		return nil, err
	}
	if cfg.WatchCatalog {
		f.Watch()
	}
	return f, nil
}

// Path returns the manifest path.
func (f *File) Path() string {
	return f.path
}

// Reload re-reads the manifest and publishes its content.
func (f *File) Reload() error {
	exports, err := f.read()
	if err != nil {
		f.log.Warn("catalog reload failed, keeping previous exports", logger.ErrorFields("reload", err))
		return err
	}
	f.Static.Replace(exports)
	f.log.Debug("catalog reloaded", logger.Fields(logger.FieldCount, len(exports)))
	return nil
}

// Watch reloads the manifest whenever the file changes on disk. Calling it
// again, or after Close, is a no-op.
func (f *File) Watch() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.watching || f.closed.Load() {
		return
	}
	f.watching = true
	f.v.OnConfigChange(func(e fsnotify.Event) {
		if f.closed.Load() || (!e.Has(fsnotify.Write) && !e.Has(fsnotify.Create)) {
			return
		}
		_ = f.Reload()
	})
	f.v.WatchConfig()
}

// Close stops reacting to file changes. The exports already published stay
// in place.
func (f *File) Close() error {
	if f.closed.CompareAndSwap(false, true) {
		f.log.Debug("catalog closed")
	}
	return nil
}

func (f *File) read() ([]di.Export, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.v.ReadInConfig(); err != nil {
		return nil, errors.InvalidConfig(fmt.Sprintf("reading catalog %s: %v", f.path, err)).WithCause(err)
	}
	var m Manifest
	if err := f.v.Unmarshal(&m); err != nil {
		return nil, errors.InvalidConfig(fmt.Sprintf("decoding catalog %s: %v", f.path, err)).WithCause(err)
	}
	if err := validation.Struct(&m); err != nil {
		return nil, err
	}

	exports := make([]di.Export, 0, len(m.Exports))
	for _, entry := range m.Exports {
		e, err := f.types.Export(entry.Tag, entry.Name, entry.Private)
		if err != nil {
			return nil, err
		}
		exports = append(exports, e)
	}
	return exports, nil
}
