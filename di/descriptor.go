package di

import (
	"fmt"
	"reflect"
	"sort"
	"sync"

	"github.com/kbukum/gocompose/errors"
)

// Sharing is a type's declared lifetime policy.
type Sharing int

const (
	// SharingDefault leaves the choice to the registration's private flag.
	SharingDefault Sharing = iota
	// SharingShared requires one instance per container.
	SharingShared
	// SharingPrivate requires a fresh instance per resolution.
	SharingPrivate

	sharingConflict
)

// invokable is a validated constructor, creator method or factory function.
type invokable struct {
	fn     reflect.Value
	ftype  reflect.Type
	names  []string
	out    reflect.Type
	hasErr bool
}

func newInvokable(fn any, names []string) (*invokable, error) {
	if fn == nil {
		return nil, errors.InvalidArgument("fn", "must not be nil")
	}
	v := reflect.ValueOf(fn)
	t := v.Type()
	if t.Kind() != reflect.Func || v.IsNil() {
		return nil, errors.InvalidArgument("fn", fmt.Sprintf("%s is not a function", t))
	}
	if t.IsVariadic() {
		return nil, errors.InvalidArgument("fn", fmt.Sprintf("%s is variadic", t))
	}
	switch {
	case t.NumOut() == 1:
	case t.NumOut() == 2 && t.Out(1) == errorType:
	default:
		return nil, errors.InvalidArgument("fn", fmt.Sprintf("%s must return T or (T, error)", t))
	}
	if len(names) > t.NumIn() {
		return nil, errors.InvalidArgument("paramNames", fmt.Sprintf("%d names for %d parameters", len(names), t.NumIn()))
	}
	return &invokable{fn: v, ftype: t, names: names, out: t.Out(0), hasErr: t.NumOut() == 2}, nil
}

func (inv *invokable) paramName(i int) string {
	if i < len(inv.names) {
		return inv.names[i]
	}
	return ""
}

func (inv *invokable) call(args []reflect.Value) (any, error) {
	out := inv.fn.Call(args)
	if inv.hasErr && !out[1].IsNil() {
		return nil, out[1].Interface().(error)
	}
	return interfaceOf(out[0]), nil
}

// Type describes a constructible type: how to build it and its lifetime policy.
// Build one with Describe, DescribeType or Open.
type Type struct {
	rtype   reflect.Type
	name    string
	ctors   []*invokable
	primary []*invokable
	methods []*invokable
	sharing Sharing
	open    *openTable
	err     error
}

// TypeOption declares something about a Type.
type TypeOption func(*Type)

// Describe returns the descriptor for T.
func Describe[T any](opts ...TypeOption) *Type {
	return DescribeType(reflect.TypeFor[T](), opts...)
}

// DescribeType returns the descriptor for t.
func DescribeType(t reflect.Type, opts ...TypeOption) *Type {
	d := &Type{rtype: t}
	if t == nil {
		d.fail(errors.InvalidArgument("type", "must not be nil"))
	} else {
		d.name = t.String()
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Constructor declares a constructor. paramNames optionally override the
// export name of each parameter by position; "" keeps the default.
func Constructor(fn any, paramNames ...string) TypeOption {
	return func(t *Type) {
		if inv := t.member(fn, paramNames, true); inv != nil {
			t.ctors = append(t.ctors, inv)
		}
	}
}

// PrimaryConstructor declares the constructor that wins outright. Declaring
// more than one is a composition error reported when the type is built.
func PrimaryConstructor(fn any, paramNames ...string) TypeOption {
	return func(t *Type) {
		if inv := t.member(fn, paramNames, true); inv != nil {
			t.primary = append(t.primary, inv)
		}
	}
}

// CreatorMethod declares a function tried before any constructor. When it
// returns nil the constructors are tried next.
func CreatorMethod(fn any, paramNames ...string) TypeOption {
	return func(t *Type) {
		if inv := t.member(fn, paramNames, false); inv != nil {
			t.methods = append(t.methods, inv)
		}
	}
}

// Shared declares that the type must have one instance per container.
func Shared() TypeOption {
	return func(t *Type) { t.declare(SharingShared) }
}

// Private declares that every resolution gets a fresh instance.
func Private() TypeOption {
	return func(t *Type) { t.declare(SharingPrivate) }
}

func (t *Type) declare(s Sharing) {
	if t.sharing != SharingDefault && t.sharing != s {
		t.sharing = sharingConflict
		return
	}
	t.sharing = s
}

func (t *Type) member(fn any, names []string, strict bool) *invokable {
	inv, err := newInvokable(fn, names)
	if err != nil {
		t.fail(err)
		return nil
	}
	if t.rtype == nil {
		return inv
	}
	if !inv.out.AssignableTo(t.rtype) && (strict || !t.rtype.AssignableTo(inv.out)) {
		t.fail(errors.InvalidArgument("fn", fmt.Sprintf("%s does not produce %s", inv.ftype, t.rtype)))
		return nil
	}
	return inv
}

func (t *Type) fail(err error) {
	if t.err == nil {
		t.err = err
	}
}

// String returns the described type, or the open type's name followed by [].
func (t *Type) String() string {
	if t.open != nil {
		return t.name + "[]"
	}
	return t.name
}

// ReflectType returns the described type; nil for open types.
func (t *Type) ReflectType() reflect.Type {
	return t.rtype
}

// IsOpen reports whether t is an open generic type.
func (t *Type) IsOpen() bool {
	return t.open != nil
}

// identity is the registry key: the reflect.Type for closed types and the
// descriptor itself for open ones.
func (t *Type) identity() any {
	if t.open != nil {
		return t
	}
	return t.rtype
}

// validate reports argument errors for ineligible descriptors.
func (t *Type) validate() error {
	if t.err != nil {
		return t.err
	}
	if t.open != nil {
		return nil
	}
	if t.rtype.Kind() == reflect.Interface {
		return errors.Ineligible(t.name, "abstract types cannot be constructed")
	}
	if !isReferenceKind(t.rtype.Kind()) {
		return errors.Ineligible(t.name, "only pointer, map and channel types can be exported")
	}
	return nil
}

// effectivePrivate combines the registration flag with the declared policy.
func (t *Type) effectivePrivate(private bool) (bool, error) {
	switch t.sharing {
	case sharingConflict:
		return false, errors.SharingConflict(t.String(), "declared both shared and private")
	case SharingShared:
		if private {
			return false, errors.SharingConflict(t.String(), "declared shared but registered private")
		}
	case SharingPrivate:
		return true, nil
	}
	return private, nil
}

func (t *Type) contractName() string {
	if t.open != nil {
		return t.name
	}
	return ContractName(t.rtype)
}

// --- open generic types ---

type openTable struct {
	mu       sync.Mutex
	bindings map[reflect.Type]*Type
	order    []reflect.Type
	binder   func(reflect.Type) (*Type, bool)
	// requests maps a type asked of the Binder to the binding it produced.
	requests map[reflect.Type]*Type
}

// Open returns an open generic type descriptor named after the generic
// type's base name, e.g. "Repository" for Repository[T]. Concrete bindings
// are added with Bind or produced on demand by a Binder.
func Open(name string, opts ...TypeOption) *Type {
	t := &Type{name: name, open: &openTable{
		bindings: make(map[reflect.Type]*Type),
		requests: make(map[reflect.Type]*Type),
	}}
	if name == "" {
		t.fail(errors.InvalidArgument("name", "open types need a base name"))
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Binder supplies bindings for requested instantiations that were not bound
// up front. Results are validated and cached.
func Binder(fn func(requested reflect.Type) (*Type, bool)) TypeOption {
	return func(t *Type) {
		if t.open == nil {
			t.fail(errors.InvalidArgument("binder", fmt.Sprintf("%s is not an open type", t)))
			return
		}
		t.open.binder = fn
	}
}

// Bind adds the instantiation T to the open type and returns open.
func Bind[T any](open *Type, opts ...TypeOption) *Type {
	open.addBinding(Describe[T](opts...))
	return open
}

func (t *Type) addBinding(b *Type) {
	if t.open == nil {
		t.fail(errors.InvalidArgument("open", fmt.Sprintf("%s is not an open type", t)))
		return
	}
	if err := t.checkBinding(b); err != nil {
		t.fail(err)
		return
	}
	t.open.mu.Lock()
	defer t.open.mu.Unlock()
	if _, ok := t.open.bindings[b.rtype]; !ok {
		t.open.order = append(t.open.order, b.rtype)
	}
	t.open.bindings[b.rtype] = b
}

func (t *Type) checkBinding(b *Type) error {
	if b == nil {
		return errors.InvalidArgument("binding", "must not be nil")
	}
	if err := b.validate(); err != nil {
		return err
	}
	if base, _, ok := genericBase(b.rtype); !ok || base != t.name {
		return errors.InvalidArgument("binding", fmt.Sprintf("%s is not an instantiation of %s", b.rtype, t.name))
	}
	return nil
}

// binding finds the concrete descriptor serving requested: an exact binding,
// then the first bound instantiation assignable to it, then the Binder.
func (t *Type) binding(requested reflect.Type) (*Type, bool) {
	if isAny(requested) {
		return nil, false
	}
	o := t.open
	o.mu.Lock()
	defer o.mu.Unlock()

	if b, ok := o.bindings[requested]; ok {
		return b, true
	}
	if b, ok := o.requests[requested]; ok {
		return b, true
	}
	for _, rt := range o.order {
		if rt.AssignableTo(requested) {
			return o.bindings[rt], true
		}
	}
	if o.binder == nil {
		return nil, false
	}
	b, ok := o.binder(requested)
	if !ok || t.checkBinding(b) != nil || !b.rtype.AssignableTo(requested) {
		return nil, false
	}
	if known, ok := o.bindings[b.rtype]; ok {
		b = known
	} else {
		o.bindings[b.rtype] = b
		o.order = append(o.order, b.rtype)
	}
	o.requests[requested] = b
	return b, true
}

// boundTypes lists bound instantiations in a stable order.
func (t *Type) boundTypes() []reflect.Type {
	t.open.mu.Lock()
	defer t.open.mu.Unlock()
	out := append([]reflect.Type(nil), t.open.order...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

// --- factories ---

// Factory wraps a factory function. The handle is the factory's identity:
// registering the same handle under several names shares one instance.
type Factory struct {
	inv *invokable
	err error
}

// NewFactory wraps fn, which must return T or (T, error). paramNames
// optionally override the export name of each parameter by position.
func NewFactory(fn any, paramNames ...string) *Factory {
	inv, err := newInvokable(fn, paramNames)
	return &Factory{inv: inv, err: err}
}

// Produces returns the factory's declared result type.
func (f *Factory) Produces() reflect.Type {
	if f.inv == nil {
		return nil
	}
	return f.inv.out
}

// String describes the factory by its function type.
func (f *Factory) String() string {
	if f.inv == nil {
		return "factory(invalid)"
	}
	return f.inv.ftype.String()
}
