package catalog

import (
	"fmt"
	"sort"
	"sync"

	"github.com/kbukum/gocompose/di"
	"github.com/kbukum/gocompose/errors"
)

// Types maps the type tags used in manifests to what they export: a type
// descriptor, a factory or a ready instance.
type Types struct {
	mu      sync.RWMutex
	entries map[string]di.Export
}

// NewTypes returns an empty tag registry.
func NewTypes() *Types {
	return &Types{entries: make(map[string]di.Export)}
}

// RegisterType binds tag to d.
func (t *Types) RegisterType(tag string, d *di.Type) error {
	if d == nil {
		return errors.InvalidArgument("type", "must not be nil")
	}
	return t.register(tag, di.Export{Kind: di.TypeKind, Type: d})
}

// RegisterFactory binds tag to f.
func (t *Types) RegisterFactory(tag string, f *di.Factory) error {
	if f == nil {
		return errors.InvalidArgument("factory", "must not be nil")
	}
	return t.register(tag, di.Export{Kind: di.FactoryKind, Factory: f})
}

// RegisterInstance binds tag to v.
func (t *Types) RegisterInstance(tag string, v any) error {
	if v == nil {
		return errors.InvalidArgument("instance", "must not be nil")
	}
	return t.register(tag, di.Export{Kind: di.InstanceKind, Instance: v})
}

func (t *Types) register(tag string, e di.Export) error {
	if tag == "" {
		return errors.InvalidArgument("tag", "must not be empty")
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, exists := t.entries[tag]; exists {
		return errors.InvalidArgument("tag", fmt.Sprintf("%q is already registered", tag))
	}
	t.entries[tag] = e
	return nil
}

// Export builds the export for tag under name.
func (t *Types) Export(tag, name string, private bool) (di.Export, error) {
	t.mu.RLock()
	e, ok := t.entries[tag]
	t.mu.RUnlock()
	if !ok {
		return di.Export{}, errors.InvalidConfig(fmt.Sprintf("unknown type tag %q", tag)).
			WithDetail("tag", tag)
	}
	e.Name = name
	e.Private = private && e.Kind != di.InstanceKind
	return e, nil
}

// Tags returns the registered tags, sorted.
func (t *Types) Tags() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	tags := make([]string, 0, len(t.entries))
	for tag := range t.entries {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}
