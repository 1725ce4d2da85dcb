package di

import (
	"fmt"
	"reflect"

	"github.com/kbukum/gocompose/errors"
)

// ExportKind tells which of Instance, Type or Factory an Export carries.
type ExportKind int

const (
	InstanceKind ExportKind = iota + 1
	TypeKind
	FactoryKind
)

func (k ExportKind) String() string {
	switch k {
	case InstanceKind:
		return "instance"
	case TypeKind:
		return "type"
	case FactoryKind:
		return "factory"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Export is one named contribution to a container: a ready instance, a
// constructible type, or a factory. Catalogs hand these out in snapshots.
type Export struct {
	Name     string
	Kind     ExportKind
	Instance any
	Type     *Type
	Factory  *Factory
	Private  bool
}

// InstanceExport exports v under name. An empty name defaults to v's
// contract name.
func InstanceExport(name string, v any) Export {
	return Export{Name: name, Kind: InstanceKind, Instance: v}
}

// TypeExport exports t under name.
func TypeExport(name string, t *Type, private bool) Export {
	return Export{Name: name, Kind: TypeKind, Type: t, Private: private}
}

// FactoryExport exports f under name.
func FactoryExport(name string, f *Factory, private bool) Export {
	return Export{Name: name, Kind: FactoryKind, Factory: f, Private: private}
}

// normalize validates e, fills in the default name and folds the declared
// sharing policy into Private.
func (e Export) normalize() (Export, error) {
	switch e.Kind {
	case InstanceKind:
		if isNil(e.Instance) {
			return e, errors.InvalidArgument("instance", "must not be nil")
		}
		t := reflect.TypeOf(e.Instance)
		if !isReferenceKind(t.Kind()) {
			return e, errors.Ineligible(t.String(), "only pointer, map and channel values can be exported")
		}
		if e.Name == "" {
			e.Name = ContractName(t)
		}
		e.Private = false
	case TypeKind:
		if e.Type == nil {
			return e, errors.InvalidArgument("type", "must not be nil")
		}
		if err := e.Type.validate(); err != nil {
			return e, err
		}
		private, err := e.Type.effectivePrivate(e.Private)
		if err != nil {
			return e, err
		}
		e.Private = private
		if e.Name == "" {
			e.Name = e.Type.contractName()
		}
	case FactoryKind:
		if e.Factory == nil {
			return e, errors.InvalidArgument("factory", "must not be nil")
		}
		if e.Factory.err != nil {
			return e, e.Factory.err
		}
		if e.Name == "" {
			e.Name = ContractName(e.Factory.Produces())
		}
	default:
		return e, errors.InvalidArgument("kind", fmt.Sprintf("unknown export kind %d", int(e.Kind)))
	}
	return e, nil
}

// sameItem reports whether o names the same contribution as e. The private
// flag is not part of the identity.
func (e Export) sameItem(o Export) bool {
	if e.Kind != o.Kind || e.Name != o.Name {
		return false
	}
	switch e.Kind {
	case InstanceKind:
		return sameRef(e.Instance, o.Instance)
	case TypeKind:
		return e.Type.identity() == o.Type.identity()
	case FactoryKind:
		return e.Factory == o.Factory
	}
	return false
}

func isReferenceKind(k reflect.Kind) bool {
	switch k {
	case reflect.Pointer, reflect.Map, reflect.Chan, reflect.UnsafePointer:
		return true
	}
	return false
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Chan, reflect.Func, reflect.Interface, reflect.Slice, reflect.UnsafePointer:
		return rv.IsNil()
	}
	return false
}

func interfaceOf(rv reflect.Value) any {
	if !rv.IsValid() {
		return nil
	}
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Chan, reflect.Func, reflect.Interface, reflect.Slice, reflect.UnsafePointer:
		if rv.IsNil() {
			return nil
		}
	}
	v := rv.Interface()
	if isNil(v) {
		return nil
	}
	return v
}

// sameRef is reference identity for reference kinds and equality otherwise.
func sameRef(a, b any) bool {
	if a == nil || b == nil {
		return isNil(a) && isNil(b)
	}
	ra, rb := reflect.ValueOf(a), reflect.ValueOf(b)
	if ra.Type() != rb.Type() {
		return false
	}
	switch ra.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Chan, reflect.Func, reflect.UnsafePointer:
		return ra.Pointer() == rb.Pointer()
	case reflect.Slice:
		return ra.Pointer() == rb.Pointer() && ra.Len() == rb.Len()
	}
	if ra.Type().Comparable() {
		return ra.Equal(rb)
	}
	return reflect.DeepEqual(a, b)
}

// identityKey returns a hashable key for v's identity.
func identityKey(v any) (any, bool) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Chan, reflect.Func, reflect.UnsafePointer:
		return struct {
			t reflect.Type
			p uintptr
		}{rv.Type(), rv.Pointer()}, true
	}
	if rv.IsValid() && rv.Type().Comparable() {
		return v, true
	}
	return nil, false
}

// Key returns the export name, defaulting to the contract name of what the
// export carries.
func (e Export) Key() string {
	if e.Name != "" {
		return e.Name
	}
	switch {
	case e.Kind == InstanceKind && e.Instance != nil:
		return ContractName(reflect.TypeOf(e.Instance))
	case e.Kind == TypeKind && e.Type != nil:
		return e.Type.contractName()
	case e.Kind == FactoryKind && e.Factory != nil:
		return ContractName(e.Factory.Produces())
	}
	return ""
}

// Same reports whether e and o contribute the same item under the same key.
func (e Export) Same(o Export) bool {
	if e.Kind == TypeKind && (e.Type == nil || o.Type == nil) {
		return e.Kind == o.Kind && e.Type == o.Type && e.Key() == o.Key()
	}
	e.Name, o.Name = e.Key(), o.Key()
	return e.sameItem(o)
}
