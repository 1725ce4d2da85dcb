package di

import (
	"reflect"
	"slices"
)

// shape is how a request wants its matches delivered.
type shape int

const (
	shapeSingle shape = iota
	shapeCollection
	shapeSet
	shapeLazyFunc
	shapeLazyValue
)

func (s shape) String() string {
	switch s {
	case shapeCollection:
		return "collection"
	case shapeSet:
		return "set"
	case shapeLazyFunc:
		return "lazy-func"
	case shapeLazyValue:
		return "lazy"
	default:
		return "single"
	}
}

func (s shape) lazy() bool {
	return s == shapeLazyFunc || s == shapeLazyValue
}

// request is one import or constructor parameter: an export name, the type
// each match must be assignable to, and the shape of the delivered value.
type request struct {
	name  string
	elem  reflect.Type
	outer reflect.Type
	shape shape
}

type setSlot interface {
	elemType() reflect.Type
	assign([]any)
	items() []any
}

type lazySlot interface {
	elemType() reflect.Type
	bind(func() (any, error))
}

var (
	setSlotType  = reflect.TypeFor[setSlot]()
	lazySlotType = reflect.TypeFor[lazySlot]()
)

func newRequest(name string, t reflect.Type) request {
	r := request{name: name, elem: t, outer: t}
	switch {
	case t.Implements(setSlotType):
		r.shape = shapeSet
		r.elem = reflect.Zero(t).Interface().(setSlot).elemType()
	case t.Implements(lazySlotType):
		r.shape = shapeLazyValue
		r.elem = reflect.Zero(t).Interface().(lazySlot).elemType()
	case t.Kind() == reflect.Func && t.NumIn() == 0 && t.NumOut() == 1:
		r.shape = shapeLazyFunc
		r.elem = t.Out(0)
	case t.Kind() == reflect.Slice && t.Elem().Kind() != reflect.Uint8:
		r.shape = shapeCollection
		r.elem = t.Elem()
	}
	if r.name == "" {
		r.name = ContractName(r.elem)
	}
	return r
}

// Lazy defers resolution until Get or Value is called, re-resolving each
// time. A Lazy handed out while the container was building may be called
// from the constructor or import hook that received it.
type Lazy[T any] struct {
	resolve func() (any, error)
}

// Get resolves the export now. A missing export yields the zero value and
// no error.
func (l *Lazy[T]) Get() (T, error) {
	var zero T
	if l == nil || l.resolve == nil {
		return zero, nil
	}
	v, err := l.resolve()
	if err != nil || v == nil {
		return zero, err
	}
	t, _ := v.(T)
	return t, nil
}

// Value is Get without the error.
func (l *Lazy[T]) Value() T {
	v, _ := l.Get()
	return v
}

func (*Lazy[T]) elemType() reflect.Type { return reflect.TypeFor[T]() }

func (l *Lazy[T]) bind(fn func() (any, error)) { l.resolve = fn }

// ExportSet holds every export matching an import, compared as a set when
// deciding whether a recomposition changed it.
type ExportSet[T any] struct {
	values []T
}

// Values returns a copy of the members.
func (s *ExportSet[T]) Values() []T {
	if s == nil {
		return nil
	}
	return slices.Clone(s.values)
}

// Len returns the number of members.
func (s *ExportSet[T]) Len() int {
	if s == nil {
		return 0
	}
	return len(s.values)
}

func (*ExportSet[T]) elemType() reflect.Type { return reflect.TypeFor[T]() }

func (s *ExportSet[T]) assign(vs []any) {
	s.values = make([]T, 0, len(vs))
	for _, v := range vs {
		if t, ok := v.(T); ok {
			s.values = append(s.values, t)
		}
	}
}

func (s *ExportSet[T]) items() []any {
	if s == nil {
		return nil
	}
	out := make([]any, len(s.values))
	for i, v := range s.values {
		out[i] = v
	}
	return out
}
