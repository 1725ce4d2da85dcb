package di

import (
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/kbukum/gocompose/errors"
	"github.com/kbukum/gocompose/logger"
)

// Mode selects which import slots a resolution pass fills.
type Mode uint8

const (
	// ResolveIfMissing fills slots that are unset; empty collections and
	// sets count as unset.
	ResolveIfMissing Mode = 1 << iota
	// ResolveIfRecomposable re-resolves slots tagged recompose.
	ResolveIfRecomposable
	// ResolveIfComposed re-resolves set slots that already hold members.
	ResolveIfComposed

	resolveWhileConstructing
)

// DefaultMode is ResolveIfMissing | ResolveIfRecomposable.
const DefaultMode = ResolveIfMissing | ResolveIfRecomposable

var modeNames = []struct {
	mode Mode
	name string
}{
	{ResolveIfMissing, "missing"},
	{ResolveIfRecomposable, "recomposable"},
	{ResolveIfComposed, "composed"},
	{resolveWhileConstructing, "constructing"},
}

func (m Mode) String() string {
	var parts []string
	for _, mn := range modeNames {
		if m&mn.mode != 0 {
			parts = append(parts, mn.name)
		}
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "|")
}

// ParseMode combines mode names: missing, recomposable, composed.
func ParseMode(names []string) (Mode, error) {
	var m Mode
	for _, n := range names {
		found := false
		for _, mn := range modeNames[:3] {
			if strings.EqualFold(strings.TrimSpace(n), mn.name) {
				m |= mn.mode
				found = true
			}
		}
		if !found {
			return 0, errors.InvalidArgument("mode", fmt.Sprintf("unknown mode %q", n))
		}
	}
	return m, nil
}

// importTag marks an import slot: `compose:"name"` or
// `compose:"name,recompose"`. An empty name uses the slot type's contract name.
const importTag = "compose"

type slot struct {
	index        []int
	field        string
	req          request
	recomposable bool
}

type importPlan struct {
	slots []slot
	err   error
}

var plans sync.Map

func planFor(t reflect.Type) *importPlan {
	if p, ok := plans.Load(t); ok {
		return p.(*importPlan)
	}
	p, _ := plans.LoadOrStore(t, buildPlan(t))
	return p.(*importPlan)
}

func buildPlan(t reflect.Type) *importPlan {
	p := &importPlan{}
	for _, f := range reflect.VisibleFields(t) {
		tag, ok := f.Tag.Lookup(importTag)
		if !ok || tag == "-" {
			continue
		}
		if !f.IsExported() {
			p.err = errors.MissingWriteAccessor(t.String(), f.Name)
			return p
		}
		name, opts, _ := strings.Cut(tag, ",")
		s := slot{index: f.Index, field: f.Name, req: newRequest(strings.TrimSpace(name), f.Type)}
		for _, o := range strings.Split(opts, ",") {
			if strings.TrimSpace(o) == "recompose" {
				s.recomposable = true
			}
		}
		p.slots = append(p.slots, s)
	}
	return p
}

// wants decides whether a pass in mode resolves the slot holding fv.
func (s *slot) wants(fv reflect.Value, mode Mode) bool {
	unset := isUnset(fv, s.req.shape)
	if s.req.shape.lazy() {
		return unset
	}
	switch {
	case mode&resolveWhileConstructing != 0:
		return true
	case unset && mode&ResolveIfMissing != 0:
		return true
	case s.recomposable && mode&ResolveIfRecomposable != 0:
		return true
	case !unset && mode&ResolveIfComposed != 0:
		return true
	}
	return false
}

func isUnset(fv reflect.Value, sh shape) bool {
	switch sh {
	case shapeCollection:
		return fv.Len() == 0
	case shapeSet:
		return fv.IsNil() || len(fv.Interface().(setSlot).items()) == 0
	case shapeLazyFunc, shapeLazyValue:
		return fv.IsNil()
	}
	return fv.IsZero()
}

// differs reports whether nv should replace the slot's current value.
func (s *slot) differs(fv, nv reflect.Value) bool {
	switch s.req.shape {
	case shapeCollection:
		if fv.Len() != nv.Len() {
			return true
		}
		for i := 0; i < fv.Len(); i++ {
			if !sameRef(interfaceOf(fv.Index(i)), interfaceOf(nv.Index(i))) {
				return true
			}
		}
		return false
	case shapeSet:
		var old []any
		if !fv.IsNil() {
			old = fv.Interface().(setSlot).items()
		}
		return !sameSet(old, nv.Interface().(setSlot).items())
	case shapeLazyFunc, shapeLazyValue:
		return fv.IsNil()
	}
	return !sameRef(interfaceOf(fv), interfaceOf(nv))
}

func sameSet(a, b []any) bool {
	if len(a) != len(b) {
		return false
	}
	used := make([]bool, len(a))
	for _, y := range b {
		found := false
		for i, x := range a {
			if !used[i] && sameRef(x, y) {
				used[i] = true
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// resolveImports fills target's import slots according to mode and reports
// whether any slot was assigned. Targets that are not pointers to structs
// have no imports. The caller holds c.mu.
func (c *Container) resolveImports(target any, mode Mode) (changed bool, err error) {
	rv := reflect.ValueOf(target)
	if rv.Kind() != reflect.Pointer || rv.IsNil() || rv.Elem().Kind() != reflect.Struct {
		return false, nil
	}
	plan := planFor(rv.Elem().Type())
	if plan.err != nil {
		return false, plan.err
	}

	if aware, ok := target.(ImportAware); ok {
		aware.OnImportsResolving()
		defer func() { aware.OnImportsResolved(changed) }()
	}
	sv := rv.Elem()
	for i := range plan.slots {
		s := &plan.slots[i]
		fv, err := sv.FieldByIndexErr(s.index)
		if err != nil {
			c.log.Debug("import slot unreachable", logger.Fields(
				logger.FieldType, sv.Type().String(), "field", s.field))
			continue
		}
		if !fv.CanSet() {
			return changed, errors.MissingWriteAccessor(sv.Type().String(), s.field)
		}
		if !s.wants(fv, mode) || c.holdsIssued(fv, s.req.shape) {
			continue
		}
		var fresh []any
		prev := c.fresh
		c.fresh = &fresh
		nv, _, err := c.resolve(s.req)
		c.fresh = prev
		if err != nil {
			return changed, err
		}
		if !s.differs(fv, nv) {
			continue
		}
		c.trackIssued(fv, nv, s.req.shape, fresh)
		fv.Set(nv)
		changed = true
		c.stats.assignments.Add(1)
		c.metrics.RecordAssignment(c.opContext(), c.id)
	}
	return changed, nil
}

// noteFresh records v as built by a private export for the slot being
// resolved.
func (c *Container) noteFresh(v any) {
	if c.fresh != nil {
		*c.fresh = append(*c.fresh, v)
	}
}

// holdsIssued reports whether the slot holds an instance a private export
// built since the composition last changed. Resolving it again would only
// swap in another copy.
func (c *Container) holdsIssued(fv reflect.Value, sh shape) bool {
	if len(c.issued) == 0 {
		return false
	}
	for _, v := range slotValues(fv, sh) {
		if k, ok := identityKey(v); ok {
			if _, ok := c.issued[k]; ok {
				return true
			}
		}
	}
	return false
}

// trackIssued moves the issued marks from the slot's old values to the
// private instances in its new value.
func (c *Container) trackIssued(old, nv reflect.Value, sh shape, fresh []any) {
	for _, v := range slotValues(old, sh) {
		if k, ok := identityKey(v); ok {
			delete(c.issued, k)
		}
	}
	if len(fresh) == 0 {
		return
	}
	for _, v := range slotValues(nv, sh) {
		for _, f := range fresh {
			if !sameRef(v, f) {
				continue
			}
			if k, ok := identityKey(v); ok {
				if c.issued == nil {
					c.issued = make(map[any]struct{})
				}
				c.issued[k] = struct{}{}
			}
		}
	}
}

func (c *Container) forgetIssued() {
	clear(c.issued)
}

func slotValues(fv reflect.Value, sh shape) []any {
	switch sh {
	case shapeSingle:
		if v := interfaceOf(fv); v != nil {
			return []any{v}
		}
	case shapeCollection:
		out := make([]any, 0, fv.Len())
		for i := 0; i < fv.Len(); i++ {
			if v := interfaceOf(fv.Index(i)); v != nil {
				out = append(out, v)
			}
		}
		return out
	case shapeSet:
		if !fv.IsNil() {
			return fv.Interface().(setSlot).items()
		}
	}
	return nil
}
