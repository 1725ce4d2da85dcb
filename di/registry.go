package di

import (
	"reflect"
	"sort"
)

// item is one live contribution backing a registry entry.
type item interface {
	kind() ExportKind
	// values returns the instances the item currently holds.
	values() []any
}

type instanceItem struct {
	value any
}

func (*instanceItem) kind() ExportKind { return InstanceKind }
func (it *instanceItem) values() []any { return []any{it.value} }

type typeItem struct {
	desc     *Type
	private  bool
	closed   any
	open     map[reflect.Type]any
	building map[reflect.Type]bool
}

func (*typeItem) kind() ExportKind { return TypeKind }

func (it *typeItem) values() []any {
	var out []any
	if it.closed != nil {
		out = append(out, it.closed)
	}
	if len(it.open) > 0 {
		for _, rt := range it.desc.boundTypes() {
			if v, ok := it.open[rt]; ok {
				out = append(out, v)
			}
		}
	}
	return out
}

// accepts reports whether the item can produce something assignable to want.
func (it *typeItem) accepts(want reflect.Type) bool {
	if it.desc.open != nil {
		_, ok := it.desc.binding(want)
		return ok
	}
	return matches(it.desc.rtype, want)
}

type factoryItem struct {
	factory  *Factory
	private  bool
	instance any
	building bool
}

func (*factoryItem) kind() ExportKind { return FactoryKind }

func (it *factoryItem) values() []any {
	if it.instance == nil {
		return nil
	}
	return []any{it.instance}
}

func (it *factoryItem) accepts(want reflect.Type) bool {
	return matches(it.factory.Produces(), want)
}

type member struct {
	item    item
	checked bool
}

// entry is everything exported under one name.
type entry struct {
	name      string
	instances []*member
	types     []*member
	factories []*member
}

func (e *entry) empty() bool {
	return len(e.instances) == 0 && len(e.types) == 0 && len(e.factories) == 0
}

func (e *entry) members() []*member {
	out := make([]*member, 0, len(e.instances)+len(e.types)+len(e.factories))
	out = append(out, e.instances...)
	out = append(out, e.types...)
	return append(out, e.factories...)
}

type typeKey struct {
	id      any
	private bool
}

type factoryKey struct {
	f       *Factory
	private bool
}

// addition is an instance newly exported under name.
type addition struct {
	name  string
	value any
}

// removal is an item no longer exported under name. release is set when
// nothing else in the registry still references the item.
type removal struct {
	name    string
	item    item
	release bool
}

// registry maps export names to entries. Type and factory items are shared
// across entries so one shared instance serves every name it is exported
// under.
type registry struct {
	gen          uint64
	entries      map[string]*entry
	types        map[typeKey]*typeItem
	typeOrder    []*typeItem
	factories    map[factoryKey]*factoryItem
	factoryOrder []*factoryItem
}

func newRegistry() *registry {
	return &registry{
		entries:   make(map[string]*entry),
		types:     make(map[typeKey]*typeItem),
		factories: make(map[factoryKey]*factoryItem),
	}
}

// rebuild marks every member reachable from exports and sweeps the rest.
// gen advances whenever a member is added or removed. exports must already
// be normalized.
func (r *registry) rebuild(exports []Export) (added []addition, removed []removal) {
	grew := false
	for _, e := range r.entries {
		for _, m := range e.members() {
			m.checked = false
		}
	}

	for _, x := range exports {
		ent := r.entries[x.Name]
		if ent == nil {
			ent = &entry{name: x.Name}
			r.entries[x.Name] = ent
		}
		switch x.Kind {
		case InstanceKind:
			if m := findInstance(ent.instances, x.Instance); m != nil {
				m.checked = true
				continue
			}
			ent.instances = append(ent.instances, &member{item: &instanceItem{value: x.Instance}, checked: true})
			added = append(added, addition{name: x.Name, value: x.Instance})
			grew = true
		case TypeKind:
			ent.types = mark(ent.types, r.typeItem(x.Type, x.Private), &grew)
		case FactoryKind:
			ent.factories = mark(ent.factories, r.factoryItem(x.Factory, x.Private), &grew)
		}
	}

	for _, name := range r.names() {
		ent := r.entries[name]
		ent.instances = sweep(ent, ent.instances, &removed)
		ent.types = sweep(ent, ent.types, &removed)
		ent.factories = sweep(ent, ent.factories, &removed)
		if ent.empty() {
			delete(r.entries, name)
		}
	}
	r.dropUnreferenced()

	for i := range removed {
		removed[i].release = !r.references(removed[i].item)
	}
	if grew || len(removed) > 0 {
		r.gen++
	}
	return added, removed
}

func (r *registry) typeItem(t *Type, private bool) *typeItem {
	key := typeKey{id: t.identity(), private: private}
	if private {
		// private items hold no instances, so one per descriptor is enough
		key.id = t
	}
	if it, ok := r.types[key]; ok {
		return it
	}
	it := &typeItem{desc: t, private: private, building: make(map[reflect.Type]bool)}
	if t.open != nil {
		it.open = make(map[reflect.Type]any)
	}
	r.types[key] = it
	r.typeOrder = append(r.typeOrder, it)
	return it
}

func (r *registry) factoryItem(f *Factory, private bool) *factoryItem {
	key := factoryKey{f: f, private: private}
	if it, ok := r.factories[key]; ok {
		return it
	}
	it := &factoryItem{factory: f, private: private}
	r.factories[key] = it
	r.factoryOrder = append(r.factoryOrder, it)
	return it
}

func findInstance(ms []*member, v any) *member {
	for _, m := range ms {
		if sameRef(m.item.(*instanceItem).value, v) {
			return m
		}
	}
	return nil
}

func mark(ms []*member, it item, grew *bool) []*member {
	for _, m := range ms {
		if m.item == it {
			m.checked = true
			return ms
		}
	}
	*grew = true
	return append(ms, &member{item: it, checked: true})
}

func sweep(ent *entry, ms []*member, removed *[]removal) []*member {
	kept := ms[:0]
	for _, m := range ms {
		if m.checked {
			kept = append(kept, m)
			continue
		}
		*removed = append(*removed, removal{name: ent.name, item: m.item})
	}
	clear(ms[len(kept):])
	return kept
}

// dropUnreferenced forgets type and factory items no entry points at.
func (r *registry) dropUnreferenced() {
	live := make(map[item]bool)
	for _, e := range r.entries {
		for _, m := range e.members() {
			live[m.item] = true
		}
	}
	types := r.typeOrder[:0]
	for _, it := range r.typeOrder {
		if live[it] {
			types = append(types, it)
			continue
		}
		for k, v := range r.types {
			if v == it {
				delete(r.types, k)
			}
		}
	}
	clear(r.typeOrder[len(types):])
	r.typeOrder = types

	factories := r.factoryOrder[:0]
	for _, it := range r.factoryOrder {
		if live[it] {
			factories = append(factories, it)
			continue
		}
		delete(r.factories, factoryKey{f: it.factory, private: it.private})
	}
	clear(r.factoryOrder[len(factories):])
	r.factoryOrder = factories
}

// references reports whether the registry still exports it, or for an
// instance item, the same value through another member.
func (r *registry) references(it item) bool {
	inst, isInstance := it.(*instanceItem)
	for _, e := range r.entries {
		for _, m := range e.members() {
			if m.item == it {
				return true
			}
			if other, ok := m.item.(*instanceItem); ok && isInstance && sameRef(other.value, inst.value) {
				return true
			}
		}
	}
	return false
}

func (r *registry) names() []string {
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// materialized lists every instance the registry holds, each once, in a
// stable order: instance exports by name, then shared type instances, then
// shared factory instances.
func (r *registry) materialized() []any {
	var out []any
	seen := make(map[any]bool)
	add := func(v any) {
		if k, ok := identityKey(v); ok {
			if seen[k] {
				return
			}
			seen[k] = true
		}
		out = append(out, v)
	}
	for _, name := range r.names() {
		for _, m := range r.entries[name].instances {
			add(m.item.(*instanceItem).value)
		}
	}
	for _, it := range r.typeOrder {
		for _, v := range it.values() {
			add(v)
		}
	}
	for _, it := range r.factoryOrder {
		for _, v := range it.values() {
			add(v)
		}
	}
	return out
}
