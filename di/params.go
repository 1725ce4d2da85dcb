package di

import (
	"reflect"
	"sync/atomic"

	"github.com/patrickmn/go-cache"

	"github.com/kbukum/gocompose/errors"
	"github.com/kbukum/gocompose/logger"
)

type paramKey struct {
	name string
	typ  reflect.Type
}

type resolved struct {
	value reflect.Value
	found bool
}

// supply builds the argument list for inv. ExportName parameters receive
// name, reflect.Type parameters receive built, Resolver parameters receive a
// view of the container, everything else is resolved as a request. full reports whether every request found a match.
func (c *Container) supply(inv *invokable, name string, built reflect.Type, memo map[paramKey]resolved) ([]reflect.Value, bool, error) {
	n := inv.ftype.NumIn()
	args := make([]reflect.Value, n)
	full := true
	for i := 0; i < n; i++ {
		pt := inv.ftype.In(i)
		switch pt {
		case exportNameType:
			args[i] = reflect.ValueOf(ExportName(name))
			continue
		case reflectTypeType:
			rv := reflect.New(reflectTypeType).Elem()
			rv.Set(reflect.ValueOf(built))
			args[i] = rv
			continue
		case resolverType:
			args[i] = valueAs(c.view(), resolverType)
			continue
		}
		req := newRequest(inv.paramName(i), pt)
		key := paramKey{name: req.name, typ: pt}
		r, ok := memo[key]
		if !ok {
			v, found, err := c.resolve(req)
			if err != nil {
				return nil, false, err
			}
			r = resolved{value: v, found: found}
			memo[key] = r
		}
		if !r.found {
			full = false
		}
		args[i] = r.value
	}
	return args, full, nil
}

// resolve produces the value for req in its shape. Single requests with no
// match are soft misses: the zero value and found=false.
func (c *Container) resolve(req request) (reflect.Value, bool, error) {
	switch req.shape {
	case shapeCollection:
		vs, err := c.lookup(req.name, req.elem, false)
		if err != nil {
			return reflect.Value{}, false, err
		}
		s := reflect.MakeSlice(req.outer, 0, len(vs))
		for _, v := range vs {
			s = reflect.Append(s, valueAs(v, req.elem))
		}
		return s, true, nil
	case shapeSet:
		vs, err := c.lookup(req.name, req.elem, false)
		if err != nil {
			return reflect.Value{}, false, err
		}
		p := reflect.New(req.outer.Elem())
		p.Interface().(setSlot).assign(vs)
		return p, true, nil
	case shapeLazyFunc:
		get := c.lazyResolver(req.name, req.elem).bound(c.session)
		elem := req.elem
		fn := reflect.MakeFunc(req.outer, func([]reflect.Value) []reflect.Value {
			v, err := get()
			if err != nil {
				c.log.Warn("lazy resolution failed", logger.ErrorFields("lazy", err))
			}
			if v == nil {
				return []reflect.Value{reflect.Zero(elem)}
			}
			return []reflect.Value{valueAs(v, elem)}
		})
		return fn, true, nil
	case shapeLazyValue:
		p := reflect.New(req.outer.Elem())
		p.Interface().(lazySlot).bind(c.lazyResolver(req.name, req.elem).bound(c.session))
		return p, true, nil
	}

	vs, err := c.lookup(req.name, req.elem, true)
	if err != nil {
		return reflect.Value{}, false, err
	}
	if len(vs) == 0 {
		c.log.Debug("import not satisfied", logger.Fields(
			logger.FieldExport, req.name, logger.FieldType, req.elem.String(), logger.FieldShape, req.shape.String()))
		return reflect.Zero(req.outer), false, nil
	}
	return valueAs(vs[0], req.outer), true, nil
}

func valueAs(v any, t reflect.Type) reflect.Value {
	rv := reflect.New(t).Elem()
	if v != nil {
		rv.Set(reflect.ValueOf(v))
	}
	return rv
}

// lazyResolver is a memoized per-(name, type) resolution closure. Lazy
// values hold one and call it on every access.
type lazyResolver struct {
	c    *Container
	name string
	typ  reflect.Type
}

func (r *lazyResolver) get() (any, error) {
	return r.c.GetExport(r.name, r.typ)
}

// bound returns a resolution func that goes through the held lock while s
// is running and through GetExport afterwards.
func (r *lazyResolver) bound(s *session) func() (any, error) {
	if s == nil {
		return r.get
	}
	return func() (any, error) {
		return sessionView{c: r.c, s: s}.GetExport(r.name, r.typ)
	}
}

func (c *Container) lazyResolver(name string, typ reflect.Type) *lazyResolver {
	key := name + "|" + ContractName(typ)
	if v, ok := c.resolvers.Get(key); ok {
		return v.(*lazyResolver)
	}
	r := &lazyResolver{c: c, name: name, typ: typ}
	c.resolvers.Set(key, r, cache.NoExpiration)
	return r
}

// session spans one locked operation on a container. Handles made during it
// keep resolving on the lock holder's behalf until it ends.
type session struct {
	done atomic.Bool
}

func (s *session) active() bool {
	return s != nil && !s.done.Load()
}

// begin opens a session. The caller holds c.mu.
func (c *Container) begin() {
	c.session = &session{}
}

// end closes the current session. The caller still holds c.mu.
func (c *Container) end() {
	if c.session != nil {
		c.session.done.Store(true)
		c.session = nil
	}
}

// sessionView is the Resolver handed to creators, creator methods and
// constructor parameters of type Resolver. While the session that made it
// runs it reads through the held lock; afterwards it locks like any caller.
type sessionView struct {
	c *Container
	s *session
}

func (c *Container) view() sessionView {
	return sessionView{c: c, s: c.session}
}

func (v sessionView) GetExport(name string, typ reflect.Type) (any, error) {
	if v.s.active() {
		return v.c.getExportLocked(name, typ)
	}
	return v.c.GetExport(name, typ)
}

func (v sessionView) GetExports(name string, typ reflect.Type) ([]any, error) {
	if v.s.active() {
		return v.c.getExportsLocked(name, typ)
	}
	return v.c.GetExports(name, typ)
}

func exportName(name string, typ reflect.Type) (string, error) {
	if name != "" {
		return name, nil
	}
	if typ == nil {
		return "", errors.InvalidArgument("name", "name or type is required")
	}
	return ContractName(typ), nil
}

func (c *Container) getExportLocked(name string, typ reflect.Type) (any, error) {
	name, err := exportName(name, typ)
	if err != nil {
		return nil, err
	}
	vs, err := c.lookup(name, typ, true)
	if err != nil || len(vs) == 0 {
		return nil, err
	}
	return vs[0], nil
}

func (c *Container) getExportsLocked(name string, typ reflect.Type) ([]any, error) {
	name, err := exportName(name, typ)
	if err != nil {
		return nil, err
	}
	return c.lookup(name, typ, false)
}
