package di

import (
	"sync"

	"github.com/kbukum/gocompose/errors"
)

type opKind int

const (
	opAddExport opKind = iota
	opRemoveExport
	opAddCatalog
	opRemoveCatalog
	opAddCreator
	opRemoveCreator
	opResolveImports
)

type op struct {
	kind    opKind
	export  Export
	catalog Catalog
	creator Creator
	target  any
}

// Batch stages changes and applies them in one composition cycle: one
// registry rebuild, one recomposition and at most one change notification.
// Arguments are validated when staged.
type Batch struct {
	c   *Container
	mu  sync.Mutex
	ops []op
}

// Batch starts an empty batch.
func (c *Container) Batch() *Batch {
	return &Batch{c: c}
}

// AddInstance stages exporting v under name.
func (b *Batch) AddInstance(name string, v any) error {
	return b.stageExport(opAddExport, InstanceExport(name, v))
}

// RemoveInstance stages withdrawing v from name.
func (b *Batch) RemoveInstance(name string, v any) error {
	return b.stageExport(opRemoveExport, InstanceExport(name, v))
}

// AddType stages exporting t under name.
func (b *Batch) AddType(name string, t *Type, private bool) error {
	return b.stageExport(opAddExport, TypeExport(name, t, private))
}

// RemoveType stages withdrawing t from name.
func (b *Batch) RemoveType(name string, t *Type) error {
	return b.stageExport(opRemoveExport, TypeExport(name, t, false))
}

// AddFactory stages exporting f under name.
func (b *Batch) AddFactory(name string, f *Factory, private bool) error {
	return b.stageExport(opAddExport, FactoryExport(name, f, private))
}

// RemoveFactory stages withdrawing f from name.
func (b *Batch) RemoveFactory(name string, f *Factory) error {
	return b.stageExport(opRemoveExport, FactoryExport(name, f, false))
}

// AddCatalog stages attaching cat.
func (b *Batch) AddCatalog(cat Catalog) error {
	if cat == nil {
		return errors.InvalidArgument("catalog", "must not be nil")
	}
	b.push(op{kind: opAddCatalog, catalog: cat})
	return nil
}

// RemoveCatalog stages detaching cat.
func (b *Batch) RemoveCatalog(cat Catalog) error {
	if cat == nil {
		return errors.InvalidArgument("catalog", "must not be nil")
	}
	b.push(op{kind: opRemoveCatalog, catalog: cat})
	return nil
}

// AddCreator stages appending cr to the creators.
func (b *Batch) AddCreator(cr Creator) error {
	if cr == nil {
		return errors.InvalidArgument("creator", "must not be nil")
	}
	b.push(op{kind: opAddCreator, creator: cr})
	return nil
}

// RemoveCreator stages dropping cr.
func (b *Batch) RemoveCreator(cr Creator) error {
	if cr == nil {
		return errors.InvalidArgument("creator", "must not be nil")
	}
	b.push(op{kind: opRemoveCreator, creator: cr})
	return nil
}

// ResolveImports stages an untracked import pass on target, run after the
// batch's recomposition with the commit mode.
func (b *Batch) ResolveImports(target any) error {
	if err := checkTarget(target); err != nil {
		return err
	}
	b.push(op{kind: opResolveImports, target: target})
	return nil
}

// Len returns the number of staged operations.
func (b *Batch) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.ops)
}

// Commit applies the staged operations with the container's default mode.
func (b *Batch) Commit() (bool, error) {
	return b.CommitMode(0)
}

// CommitMode applies the staged operations with mode and empties the batch.
// It reports whether any import slot changed.
func (b *Batch) CommitMode(mode Mode) (bool, error) {
	b.mu.Lock()
	ops := b.ops
	b.ops = nil
	b.mu.Unlock()
	return b.c.commit(ops, mode)
}

func (b *Batch) stageExport(kind opKind, e Export) error {
	ne, err := e.normalize()
	if err != nil {
		return err
	}
	b.push(op{kind: kind, export: ne})
	return nil
}

func (b *Batch) push(o op) {
	b.mu.Lock()
	b.ops = append(b.ops, o)
	b.mu.Unlock()
}

// apply performs one staged operation on the container's inputs. The caller
// holds c.mu.
func (c *Container) apply(o op) {
	switch o.kind {
	case opAddExport:
		for _, e := range c.direct {
			if e.sameItem(o.export) && e.Private == o.export.Private {
				return
			}
		}
		c.direct = append(c.direct, o.export)
	case opRemoveExport:
		kept := c.direct[:0]
		for _, e := range c.direct {
			if !e.sameItem(o.export) {
				kept = append(kept, e)
			}
		}
		clear(c.direct[len(kept):])
		c.direct = kept
	case opAddCatalog:
		for _, h := range c.catalogs {
			if sameRef(h.catalog, o.catalog) {
				return
			}
		}
		h := &catalogHandle{catalog: o.catalog}
		h.cancel = o.catalog.OnChange(c.requestRecompose)
		c.catalogs = append(c.catalogs, h)
	case opRemoveCatalog:
		for i, h := range c.catalogs {
			if sameRef(h.catalog, o.catalog) {
				h.cancel()
				c.catalogs = append(c.catalogs[:i], c.catalogs[i+1:]...)
				return
			}
		}
	case opAddCreator:
		for _, cr := range c.creators {
			if sameRef(cr, o.creator) {
				return
			}
		}
		c.creators = append(c.creators, o.creator)
	case opRemoveCreator:
		for i, cr := range c.creators {
			if sameRef(cr, o.creator) {
				c.creators = append(c.creators[:i], c.creators[i+1:]...)
				return
			}
		}
	}
}
