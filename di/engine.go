package di

import (
	"cmp"
	"reflect"
	"slices"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/kbukum/gocompose/errors"
	"github.com/kbukum/gocompose/logger"
	"github.com/kbukum/gocompose/observability"
)

// lookup returns the values exported under name that are assignable to
// want, local entries before the parent chain. With single set it stops at
// the first non-nil value. The caller holds c.mu.
func (c *Container) lookup(name string, want reflect.Type, single bool) ([]any, error) {
	var out []any
	if ent := c.reg.entries[name]; ent != nil {
		vs, err := c.entryValues(ent, want, single)
		if err != nil {
			return nil, err
		}
		out = vs
		if single && len(out) > 0 {
			return out[:1], nil
		}
	}
	err := c.withParent(func(p *Container) error {
		vs, err := p.lookup(name, want, single)
		out = append(out, vs...)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Container) entryValues(ent *entry, want reflect.Type, single bool) ([]any, error) {
	var out []any
	for _, m := range ent.instances {
		v := m.item.(*instanceItem).value
		if matches(reflect.TypeOf(v), want) {
			out = append(out, v)
			if single {
				return out, nil
			}
		}
	}
	for _, m := range ent.types {
		it := m.item.(*typeItem)
		if !it.accepts(want) {
			continue
		}
		v, err := c.instantiate(it, ent.name, want)
		if err != nil {
			return nil, err
		}
		if v != nil {
			out = append(out, v)
			if single {
				return out, nil
			}
		}
	}
	for _, m := range ent.factories {
		it := m.item.(*factoryItem)
		if !it.accepts(want) {
			continue
		}
		v, err := c.invokeFactory(it, ent.name)
		if err != nil {
			return nil, err
		}
		if v != nil {
			out = append(out, v)
			if single {
				return out, nil
			}
		}
	}
	return out, nil
}

// instantiate returns the item's instance for want, building it when the
// item is private or not yet materialized.
func (c *Container) instantiate(it *typeItem, name string, want reflect.Type) (any, error) {
	desc := it.desc
	if desc.open != nil {
		b, ok := desc.binding(want)
		if !ok {
			return nil, nil
		}
		if err := checkBindingSharing(b, it.private); err != nil {
			return nil, err
		}
		desc = b
		if v, ok := it.open[b.rtype]; ok && !it.private {
			return v, nil
		}
	} else if it.closed != nil && !it.private {
		return it.closed, nil
	}

	if it.building[desc.rtype] {
		c.log.Debug("circular construction skipped", logger.Fields(
			logger.FieldExport, name, logger.FieldType, desc.String()))
		return nil, nil
	}
	it.building[desc.rtype] = true
	v, err := c.build(desc, name, want)
	delete(it.building, desc.rtype)
	if err != nil || v == nil {
		return nil, err
	}

	if it.private {
		c.noteFresh(v)
	} else if it.desc.open != nil {
		it.open[desc.rtype] = v
	} else {
		it.closed = v
	}
	return v, c.constructed(v, name, TypeKind)
}

func checkBindingSharing(b *Type, private bool) error {
	switch {
	case b.sharing == sharingConflict:
		return errors.SharingConflict(b.String(), "declared both shared and private")
	case b.sharing == SharingShared && private:
		return errors.SharingConflict(b.String(), "binding declared shared but the open type is private")
	case b.sharing == SharingPrivate && !private:
		return errors.SharingConflict(b.String(), "binding declared private but the open type is shared")
	}
	return nil
}

// build runs the construction procedure for desc inside a construct span.
func (c *Container) build(desc *Type, name string, want reflect.Type) (any, error) {
	ctx, span := c.tracer.Start(c.opContext(), observability.SpanConstruct, trace.WithAttributes(
		observability.ContainerAttr(c.id),
		attribute.String(observability.AttrExport, name),
		attribute.String(observability.AttrType, desc.String()),
	))
	prev := c.opCtx
	c.opCtx = ctx
	v, err := c.construct(desc, name, want)
	c.opCtx = prev
	observability.EndSpan(span, err)
	return v, err
}

type candidate struct {
	inv  *invokable
	args []reflect.Value
	full bool
}

// construct tries, in order: the one compatible creator method, the chosen
// constructor (or the zero instance when none is declared), then the
// container's creators.
func (c *Container) construct(desc *Type, name string, want reflect.Type) (any, error) {
	if desc.err != nil {
		return nil, desc.err
	}
	if len(desc.primary) > 1 {
		return nil, errors.DuplicatePrimary(desc.String(), len(desc.primary))
	}
	target := want
	if isAny(target) {
		target = desc.rtype
	}

	var compatible []*invokable
	for _, m := range desc.methods {
		if m.out.AssignableTo(target) {
			compatible = append(compatible, m)
		}
	}
	if len(compatible) > 1 {
		return nil, errors.DuplicateCreatorMethod(desc.String(), target.String(), len(compatible))
	}
	memo := make(map[paramKey]resolved)
	if len(compatible) == 1 {
		v, err := c.invoke(compatible[0], name, desc, memo)
		if err != nil || v != nil {
			return v, err
		}
	}

	cands, err := c.rank(desc, name, memo)
	if err != nil {
		return nil, err
	}
	if len(cands) > 0 {
		v, err := cands[0].inv.call(cands[0].args)
		if err != nil {
			return nil, errors.ConstructionFailed(name, desc.String(), err)
		}
		if v != nil {
			return v, nil
		}
	} else if len(desc.ctors) == 0 && len(desc.primary) == 0 {
		if v := zeroInstance(desc.rtype); v != nil {
			return v, nil
		}
	}

	view := c.view()
	for _, cr := range c.creators {
		if !cr.CanCreate(view, name, desc.rtype) {
			continue
		}
		v, err := cr.Create(view, name, desc.rtype)
		if err != nil {
			return nil, errors.ConstructionFailed(name, desc.String(), err)
		}
		if isNil(v) {
			return nil, nil
		}
		if !matches(reflect.TypeOf(v), target) {
			c.log.Warn("creator produced an incompatible instance", logger.Fields(
				logger.FieldExport, name, logger.FieldType, reflect.TypeOf(v).String()))
			return nil, nil
		}
		return v, nil
	}

	c.log.Debug("no construction path produced an instance", logger.Fields(
		logger.FieldExport, name, logger.FieldType, desc.String()))
	return nil, nil
}

// rank orders constructors: fully resolvable first, then by parameter count
// descending, declaration order breaking ties. A primary constructor is the
// only candidate.
func (c *Container) rank(desc *Type, name string, memo map[paramKey]resolved) ([]candidate, error) {
	ctors := desc.ctors
	if len(desc.primary) == 1 {
		ctors = desc.primary
	}
	cands := make([]candidate, 0, len(ctors))
	for _, inv := range ctors {
		args, full, err := c.supply(inv, name, desc.rtype, memo)
		if err != nil {
			return nil, err
		}
		cands = append(cands, candidate{inv: inv, args: args, full: full})
	}
	slices.SortStableFunc(cands, func(a, b candidate) int {
		if a.full != b.full {
			if a.full {
				return -1
			}
			return 1
		}
		return cmp.Compare(b.inv.ftype.NumIn(), a.inv.ftype.NumIn())
	})
	return cands, nil
}

func (c *Container) invoke(inv *invokable, name string, desc *Type, memo map[paramKey]resolved) (any, error) {
	args, _, err := c.supply(inv, name, desc.rtype, memo)
	if err != nil {
		return nil, err
	}
	v, err := inv.call(args)
	if err != nil {
		return nil, errors.ConstructionFailed(name, desc.String(), err)
	}
	return v, nil
}

func zeroInstance(t reflect.Type) any {
	switch {
	case t.Kind() == reflect.Pointer && t.Elem().Kind() == reflect.Struct:
		return reflect.New(t.Elem()).Interface()
	case t.Kind() == reflect.Map:
		return reflect.MakeMap(t).Interface()
	}
	return nil
}

// invokeFactory returns the factory item's instance, invoking the factory
// when the item is private or not yet materialized.
func (c *Container) invokeFactory(it *factoryItem, name string) (any, error) {
	if !it.private && it.instance != nil {
		return it.instance, nil
	}
	if it.building {
		c.log.Debug("circular factory call skipped", logger.Fields(
			logger.FieldExport, name, logger.FieldType, it.factory.String()))
		return nil, nil
	}
	it.building = true
	defer func() { it.building = false }()

	inv := it.factory.inv
	args, _, err := c.supply(inv, name, inv.out, make(map[paramKey]resolved))
	if err != nil {
		return nil, err
	}
	v, err := inv.call(args)
	if err != nil {
		return nil, errors.ConstructionFailed(name, it.factory.String(), err)
	}
	if v == nil {
		return nil, nil
	}
	if it.private {
		c.noteFresh(v)
	} else {
		it.instance = v
	}
	return v, c.constructed(v, name, FactoryKind)
}

// constructed runs the constructing import pass on a fresh instance and
// tells it it has been exported.
func (c *Container) constructed(v any, name string, kind ExportKind) error {
	c.stats.constructions.Add(1)
	c.metrics.RecordConstruction(c.opContext(), c.id, kind.String())
	if _, err := c.resolveImports(v, resolveWhileConstructing); err != nil {
		return err
	}
	if ea, ok := v.(ExportAware); ok {
		ea.OnExportAdded(name)
	}
	return nil
}
