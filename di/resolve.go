package di

import (
	"fmt"
	"reflect"

	"github.com/kbukum/gocompose/errors"
)

// Resolve returns the export under name as T. An empty name uses T's
// contract name. A missing export is a NOT_FOUND error.
//
// Example:
//
//	store, err := di.Resolve[*inventory.Store](c, "")
//	if err != nil {
//	    return fmt.Errorf("inventory store: %w", err)
//	}
func Resolve[T any](r Resolver, name string) (T, error) {
	var zero T
	if name == "" {
		name = NameOf[T]()
	}
	v, err := r.GetExport(name, reflect.TypeFor[T]())
	if err != nil {
		return zero, err
	}
	if v == nil {
		return zero, errors.NotFound(name)
	}
	result, ok := v.(T)
	if !ok {
		return zero, errors.Newf(errors.ErrCodeNotFound, "export %s is %T, expected %T", name, v, zero)
	}
	return result, nil
}

// TryResolve returns the export under name as T, or the zero value and false
// when it is missing. Use this when a dependency is optional.
//
// Example:
//
//	if audit, ok := di.TryResolve[*audit.Log](c, "audit"); ok {
//	    audit.Record(...)
//	}
func TryResolve[T any](r Resolver, name string) (T, bool) {
	v, err := Resolve[T](r, name)
	if err != nil {
		return v, false
	}
	return v, true
}

// MustResolve is Resolve that panics on error.
func MustResolve[T any](r Resolver, name string) T {
	v, err := Resolve[T](r, name)
	if err != nil {
		panic(fmt.Sprintf("di: failed to resolve %s: %v", name, err))
	}
	return v
}

// ResolveAll returns every export under name assignable to T, local exports
// first.
func ResolveAll[T any](r Resolver, name string) ([]T, error) {
	if name == "" {
		name = NameOf[T]()
	}
	vs, err := r.GetExports(name, reflect.TypeFor[T]())
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(vs))
	for _, v := range vs {
		if t, ok := v.(T); ok {
			out = append(out, t)
		}
	}
	return out, nil
}

// LazyOf returns a handle that resolves the export under name on each
// access.
func LazyOf[T any](c *Container, name string) *Lazy[T] {
	if name == "" {
		name = NameOf[T]()
	}
	l := &Lazy[T]{}
	l.bind(c.lazyResolver(name, reflect.TypeFor[T]()).get)
	return l
}
