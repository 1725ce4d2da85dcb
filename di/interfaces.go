package di

import "reflect"

// Resolver looks exports up. Creators, and constructors or factories that
// declare a Resolver parameter, receive one bound to the operation that
// called them: it reuses the held lock until that operation returns.
type Resolver interface {
	// GetExport returns the first export under name assignable to typ, or nil.
	GetExport(name string, typ reflect.Type) (any, error)
	// GetExports returns every export under name assignable to typ, local
	// exports before inherited ones.
	GetExports(name string, typ reflect.Type) ([]any, error)
}

// Catalog is an external, possibly changing, source of exports.
type Catalog interface {
	// Snapshot returns the current exports keyed by export name. The Name
	// field of each Export is ignored in favour of the key.
	Snapshot() map[string][]Export
	// OnChange subscribes fn to content changes and returns an unsubscribe.
	OnChange(fn func()) (cancel func())
}

// Creator builds instances that no constructor produced.
type Creator interface {
	CanCreate(r Resolver, name string, typ reflect.Type) bool
	Create(r Resolver, name string, typ reflect.Type) (any, error)
}

// ImportAware objects are told when their imports are being resolved.
type ImportAware interface {
	OnImportsResolving()
	OnImportsResolved(changed bool)
}

// ExportAware objects are told when they start or stop being exported.
type ExportAware interface {
	OnExportAdded(name string)
	OnExportRemoved(name string)
}

// CreatorFunc adapts a pair of functions to Creator.
type CreatorFunc struct {
	Can func(r Resolver, name string, typ reflect.Type) bool
	New func(r Resolver, name string, typ reflect.Type) (any, error)
}

func (f *CreatorFunc) CanCreate(r Resolver, name string, typ reflect.Type) bool {
	return f.Can == nil || f.Can(r, name, typ)
}

func (f *CreatorFunc) Create(r Resolver, name string, typ reflect.Type) (any, error) {
	return f.New(r, name, typ)
}
