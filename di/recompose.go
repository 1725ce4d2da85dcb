package di

import (
	"context"
	"io"
	"sort"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/multierr"

	"github.com/kbukum/gocompose/errors"
	"github.com/kbukum/gocompose/logger"
	"github.com/kbukum/gocompose/observability"
)

// commit applies ops as one composition cycle and notifies listeners once
// when it succeeds.
func (c *Container) commit(ops []op, mode Mode) (bool, error) {
	if mode == 0 {
		mode = c.defaultMode
	}
	if err := c.lock(); err != nil {
		return false, err
	}
	changed, err := c.composeLocked(ops, mode)
	c.unlock(err == nil)
	return changed, err
}

// composeLocked runs one cycle inside a compose span: apply ops, rebuild the
// registry, recompose every materialized instance, then resolve the batch's
// explicit targets.
func (c *Container) composeLocked(ops []op, mode Mode) (bool, error) {
	start := time.Now()
	ctx, span := c.tracer.Start(context.Background(), observability.SpanCompose, trace.WithAttributes(
		observability.ContainerAttr(c.id),
		attribute.String(observability.AttrMode, mode.String()),
		attribute.Int(observability.AttrOps, len(ops)),
	))
	c.opCtx = ctx
	defer func() { c.opCtx = nil }()

	var targets []any
	for _, o := range ops {
		if o.kind == opResolveImports {
			targets = append(targets, o.target)
			continue
		}
		c.apply(o)
	}

	changed, err := c.compose(mode, targets)
	span.SetAttributes(attribute.Bool(observability.AttrChanged, changed))
	observability.EndSpan(span, err)
	if err != nil {
		code := "unknown"
		if e, ok := errors.As(err); ok {
			code = string(e.Code)
		}
		c.metrics.RecordError(ctx, c.id, code)
		c.log.Error("composition failed", logger.ErrorFields("compose", err))
		return changed, err
	}
	c.stats.recompositions.Add(1)
	c.metrics.RecordRecompose(ctx, c.id, changed, time.Since(start))
	c.log.Debug("composition cycle complete", logger.Fields(
		logger.FieldMode, mode.String(), logger.FieldChanged, changed, logger.FieldCount, len(ops)))
	return changed, nil
}

func (c *Container) compose(mode Mode, targets []any) (bool, error) {
	exports, err := c.inputs()
	if err != nil {
		return false, err
	}
	if err := c.rebuild(exports); err != nil {
		c.log.Warn("releasing removed exports failed", logger.ErrorFields("release", err))
	}
	changed, err := c.recomposeLocked(mode)
	if err != nil {
		return changed, err
	}
	for _, t := range targets {
		ch, err := c.resolveImports(t, mode)
		if err != nil {
			return changed, err
		}
		changed = changed || ch
	}
	return changed, nil
}

// inputs gathers direct exports followed by each catalog's snapshot.
// Ineligible catalog items are logged and skipped; composition errors such
// as sharing conflicts abort the cycle.
func (c *Container) inputs() ([]Export, error) {
	out := append([]Export(nil), c.direct...)
	for _, h := range c.catalogs {
		snap := h.catalog.Snapshot()
		names := make([]string, 0, len(snap))
		for name := range snap {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			for _, e := range snap[name] {
				e.Name = name
				ne, err := e.normalize()
				if err != nil {
					if errors.IsComposition(err) {
						return nil, err
					}
					c.log.Warn("skipping invalid catalog export", logger.Fields(
						logger.FieldExport, name, logger.FieldError, err.Error()))
					continue
				}
				out = append(out, ne)
			}
		}
	}
	return out, nil
}

// rebuild runs mark-and-sweep over exports, notifies added and removed
// instances, and closes what nothing references anymore.
func (c *Container) rebuild(exports []Export) error {
	gen := c.reg.gen
	added, removed := c.reg.rebuild(exports)
	if c.reg.gen != gen {
		c.forgetIssued()
	}
	for _, a := range added {
		if ea, ok := a.value.(ExportAware); ok {
			ea.OnExportAdded(a.name)
		}
	}
	var errs error
	for _, rm := range removed {
		vs := rm.item.values()
		for _, v := range vs {
			if ea, ok := v.(ExportAware); ok {
				ea.OnExportRemoved(rm.name)
			}
		}
		if !rm.release {
			continue
		}
		for _, v := range vs {
			errs = multierr.Append(errs, c.releaseValue(v))
		}
	}
	return errs
}

func (c *Container) releaseValue(v any) error {
	if v == any(c) {
		return nil
	}
	c.stats.releases.Add(1)
	c.metrics.RecordRelease(c.opContext(), c.id)
	closer, ok := v.(io.Closer)
	if !ok {
		return nil
	}
	return closer.Close()
}

// recomposeLocked re-resolves imports on every materialized instance, then
// on the parent chain's instances under their own locks.
func (c *Container) recomposeLocked(mode Mode) (bool, error) {
	changed := false
	for _, v := range c.reg.materialized() {
		ch, err := c.resolveImports(v, mode)
		if err != nil {
			return changed, err
		}
		changed = changed || ch
	}
	err := c.withParent(func(p *Container) error {
		ch, err := p.recomposeLocked(mode)
		changed = changed || ch
		return err
	})
	return changed, err
}

// withParent runs fn with the parent locked. Parents locked this way are
// drained once c itself is unlocked.
func (c *Container) withParent(fn func(p *Container) error) error {
	p := c.parent
	if p == nil {
		return nil
	}
	p.mu.Lock()
	p.begin()
	prev, prevFresh := p.opCtx, p.fresh
	p.opCtx, p.fresh = c.opCtx, c.fresh
	err := fn(p)
	p.opCtx, p.fresh = prev, prevFresh
	p.end()
	c.touched = append(c.touched, p)
	c.touched = append(c.touched, p.touched...)
	p.touched = nil
	p.mu.Unlock()
	return err
}

// unlock releases c.mu, fires listeners when fire is set, then runs any
// recomposition requested while the lock was held.
func (c *Container) unlock(fire bool) {
	touched := c.touched
	c.touched = nil
	c.end()
	c.mu.Unlock()
	if fire {
		c.fireChanged()
	}
	for _, p := range touched {
		p.drain()
	}
	c.drain()
}

// requestRecompose is the handler for catalog and parent change signals.
// When the container is busy the holder of the lock runs the cycle on
// release.
func (c *Container) requestRecompose() {
	if c.disposing.Load() {
		return
	}
	c.pending.Store(true)
	c.drain()
}

func (c *Container) drain() {
	for c.pending.Load() && !c.disposing.Load() {
		if !c.mu.TryLock() {
			return
		}
		if !c.pending.Swap(false) || c.disposed {
			c.mu.Unlock()
			return
		}
		c.begin()
		c.forgetIssued()
		_, err := c.composeLocked(nil, c.defaultMode)
		touched := c.touched
		c.touched = nil
		c.end()
		c.mu.Unlock()
		if err == nil {
			c.fireChanged()
		}
		for _, p := range touched {
			p.drain()
		}
	}
}
