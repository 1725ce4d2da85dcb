package di

import (
	"context"
	"reflect"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/multierr"

	"github.com/kbukum/gocompose/config"
	"github.com/kbukum/gocompose/errors"
	"github.com/kbukum/gocompose/logger"
	"github.com/kbukum/gocompose/observability"
)

// Container holds exports, builds instances on demand and keeps imports in
// sync as exports come and go.
//
// All state is guarded by one mutex. Constructors, factories, creators and
// import hooks run with it held and must not call back into the Container's
// exported methods. They resolve through the Resolver, func() T or *Lazy[T]
// values they were given, which reuse the held lock.
type Container struct {
	id          string
	base        *logger.Logger
	log         *logger.Logger
	tracer      trace.Tracer
	metrics     *observability.CompositionMetrics
	defaultMode Mode
	resolvers   *cache.Cache

	mu           sync.Mutex
	reg          *registry
	direct       []Export
	catalogs     []*catalogHandle
	creators     []Creator
	parent       *Container
	parentCancel func()
	disposed     bool
	opCtx        context.Context
	session      *session
	touched      []*Container
	issued       map[any]struct{}
	fresh        *[]any

	pending   atomic.Bool
	disposing atomic.Bool

	listenersMu  sync.Mutex
	listeners    map[uint64]func()
	nextListener uint64

	stats counters
}

type catalogHandle struct {
	catalog Catalog
	cancel  func()
}

// Option configures a Container.
type Option func(*options)

type options struct {
	parent  *Container
	log     *logger.Logger
	tp      trace.TracerProvider
	mp      metric.MeterProvider
	mode    Mode
	modeErr error
}

// WithParent makes p the new container's parent.
func WithParent(p *Container) Option {
	return func(o *options) { o.parent = p }
}

// WithLogger sets the logger. The default is the "di" logger from the
// logger registry.
func WithLogger(l *logger.Logger) Option {
	return func(o *options) { o.log = l }
}

// WithTracerProvider sets the tracer provider; the global one otherwise.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) { o.tp = tp }
}

// WithMeterProvider sets the meter provider; the global one otherwise.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(o *options) { o.mp = mp }
}

// WithDefaultMode sets the mode used by Commit, Recompose(0) and
// catalog-triggered recomposition.
func WithDefaultMode(m Mode) Option {
	return func(o *options) {
		if m != 0 {
			o.mode = m
		}
	}
}

// WithConfig applies the composition section of the application config.
func WithConfig(cfg config.CompositionConfig) Option {
	return func(o *options) {
		if len(cfg.DefaultMode) == 0 {
			return
		}
		m, err := ParseMode(cfg.DefaultMode)
		if err != nil {
			o.modeErr = err
			return
		}
		o.mode = m
	}
}

// New creates an empty container.
func New(opts ...Option) *Container {
	o := options{mode: DefaultMode}
	for _, opt := range opts {
		opt(&o)
	}

	id := uuid.NewString()
	base := o.log
	if base == nil {
		base = logger.Get("di")
	}
	log := base.WithFields(logger.Fields(logger.FieldContainerID, id))
	if o.modeErr != nil {
		log.Warn("ignoring configured default mode", logger.ErrorFields("config", o.modeErr))
	}

	metrics, err := observability.NewCompositionMetrics(observability.Meter(o.mp))
	if err != nil {
		log.Warn("composition metrics unavailable", logger.ErrorFields("metrics", err))
		metrics, _ = observability.NewCompositionMetrics(noop.NewMeterProvider().Meter(observability.InstrumentationName))
	}

	c := &Container{
		id:          id,
		base:        base,
		log:         log,
		tracer:      observability.Tracer(o.tp),
		metrics:     metrics,
		defaultMode: o.mode,
		resolvers:   cache.New(cache.NoExpiration, 0),
		reg:         newRegistry(),
		listeners:   make(map[uint64]func()),
	}
	if o.parent != nil {
		if err := c.SetParent(o.parent); err != nil {
			log.Warn("parent not attached", logger.ErrorFields("new", err))
		}
	}
	return c
}

// ID returns the container's unique identifier.
func (c *Container) ID() string {
	return c.id
}

// DefaultMode returns the mode used when none is given.
func (c *Container) DefaultMode() Mode {
	return c.defaultMode
}

// --- registration ---

// AddInstance exports v under name and recomposes.
func (c *Container) AddInstance(name string, v any) error {
	return c.single(func(b *Batch) error { return b.AddInstance(name, v) })
}

// RemoveInstance withdraws v from name and recomposes.
func (c *Container) RemoveInstance(name string, v any) error {
	return c.single(func(b *Batch) error { return b.RemoveInstance(name, v) })
}

// AddType exports t under name and recomposes.
func (c *Container) AddType(name string, t *Type, private bool) error {
	return c.single(func(b *Batch) error { return b.AddType(name, t, private) })
}

// RemoveType withdraws t from name and recomposes.
func (c *Container) RemoveType(name string, t *Type) error {
	return c.single(func(b *Batch) error { return b.RemoveType(name, t) })
}

// AddFactory exports f under name and recomposes.
func (c *Container) AddFactory(name string, f *Factory, private bool) error {
	return c.single(func(b *Batch) error { return b.AddFactory(name, f, private) })
}

// RemoveFactory withdraws f from name and recomposes.
func (c *Container) RemoveFactory(name string, f *Factory) error {
	return c.single(func(b *Batch) error { return b.RemoveFactory(name, f) })
}

// AddCatalog attaches cat and recomposes. The container follows the
// catalog's change notifications until it is removed.
func (c *Container) AddCatalog(cat Catalog) error {
	return c.single(func(b *Batch) error { return b.AddCatalog(cat) })
}

// RemoveCatalog detaches cat and recomposes.
func (c *Container) RemoveCatalog(cat Catalog) error {
	return c.single(func(b *Batch) error { return b.RemoveCatalog(cat) })
}

// AddCreator appends cr to the creators consulted when constructors yield
// nothing.
func (c *Container) AddCreator(cr Creator) error {
	return c.single(func(b *Batch) error { return b.AddCreator(cr) })
}

// RemoveCreator drops cr.
func (c *Container) RemoveCreator(cr Creator) error {
	return c.single(func(b *Batch) error { return b.RemoveCreator(cr) })
}

func (c *Container) single(stage func(*Batch) error) error {
	b := c.Batch()
	if err := stage(b); err != nil {
		return err
	}
	_, err := b.Commit()
	return err
}

// --- resolution ---

// GetExport returns the first export under name assignable to typ, searching
// the parent chain after local exports. A missing export is (nil, nil). An
// empty name defaults to typ's contract name.
func (c *Container) GetExport(name string, typ reflect.Type) (any, error) {
	if err := c.lock(); err != nil {
		return nil, err
	}
	defer c.unlock(false)
	return c.getExportLocked(name, typ)
}

// GetExports returns every export under name assignable to typ, local
// exports first.
func (c *Container) GetExports(name string, typ reflect.Type) ([]any, error) {
	if err := c.lock(); err != nil {
		return nil, err
	}
	defer c.unlock(false)
	return c.getExportsLocked(name, typ)
}

// ResolveImports fills target's import slots once. target is not tracked:
// later recompositions leave it alone. A zero mode uses the default.
func (c *Container) ResolveImports(target any, mode Mode) (bool, error) {
	if err := checkTarget(target); err != nil {
		return false, err
	}
	if mode == 0 {
		mode = c.defaultMode
	}
	if err := c.lock(); err != nil {
		return false, err
	}
	defer c.unlock(false)
	return c.resolveImports(target, mode)
}

func checkTarget(target any) error {
	rv := reflect.ValueOf(target)
	if target == nil || rv.Kind() != reflect.Pointer || rv.IsNil() || rv.Elem().Kind() != reflect.Struct {
		return errors.InvalidArgument("target", "must be a non-nil pointer to a struct")
	}
	return nil
}

// --- lifecycle ---

// Recompose rebuilds the registry and re-resolves imports on every
// materialized instance, the parent chain's included. A zero mode uses the
// default.
func (c *Container) Recompose(mode Mode) (bool, error) {
	return c.commit(nil, mode)
}

// Clear detaches every catalog and withdraws every direct export, releasing
// what they held. Creators and the parent link survive.
func (c *Container) Clear() error {
	if err := c.lock(); err != nil {
		return err
	}
	c.disposing.Store(true)
	c.detachCatalogs()
	c.direct = nil
	releaseErr := c.rebuild(nil)
	_, err := c.recomposeLocked(c.defaultMode)
	c.disposing.Store(false)
	c.unlock(err == nil)
	return multierr.Append(releaseErr, err)
}

// Dispose detaches the container from its parent and catalogs and releases
// every instance it owns. Disposing twice is a no-op.
func (c *Container) Dispose() error {
	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return nil
	}
	c.begin()
	c.disposing.Store(true)
	if c.parentCancel != nil {
		c.parentCancel()
		c.parentCancel = nil
	}
	c.parent = nil
	c.detachCatalogs()
	c.direct = nil
	c.creators = nil
	err := c.rebuild(nil)
	c.issued = nil
	c.disposed = true
	c.end()
	c.mu.Unlock()

	c.listenersMu.Lock()
	clear(c.listeners)
	c.listenersMu.Unlock()
	c.resolvers.Flush()
	c.log.Debug("container disposed")
	return err
}

// Close is Dispose, for io.Closer.
func (c *Container) Close() error {
	return c.Dispose()
}

func (c *Container) detachCatalogs() {
	for _, h := range c.catalogs {
		h.cancel()
	}
	c.catalogs = nil
}

// lock acquires c.mu unless the container is disposed.
func (c *Container) lock() error {
	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return errors.Disposed(c.id)
	}
	c.begin()
	return nil
}

// --- introspection ---

// RegistrationInfo describes one local registration.
type RegistrationInfo struct {
	Name         string
	Kind         ExportKind
	Type         string
	Private      bool
	Materialized bool
}

// Registrations lists the local registry, sorted by name.
func (c *Container) Registrations() []RegistrationInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []RegistrationInfo
	for _, name := range c.reg.names() {
		for _, m := range c.reg.entries[name].members() {
			info := RegistrationInfo{Name: name, Kind: m.item.kind(), Materialized: len(m.item.values()) > 0}
			switch it := m.item.(type) {
			case *instanceItem:
				info.Type = reflect.TypeOf(it.value).String()
			case *typeItem:
				info.Type = it.desc.String()
				info.Private = it.private
			case *factoryItem:
				info.Type = it.factory.String()
				info.Private = it.private
			}
			out = append(out, info)
		}
	}
	return out
}

// Names returns the local export names.
func (c *Container) Names() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reg.names()
}

// Stats is a snapshot of the container's counters.
type Stats struct {
	Recompositions uint64
	Constructions  uint64
	Assignments    uint64
	Releases       uint64
}

type counters struct {
	recompositions atomic.Uint64
	constructions  atomic.Uint64
	assignments    atomic.Uint64
	releases       atomic.Uint64
}

// Stats returns the container's counters.
func (c *Container) Stats() Stats {
	return Stats{
		Recompositions: c.stats.recompositions.Load(),
		Constructions:  c.stats.constructions.Load(),
		Assignments:    c.stats.assignments.Load(),
		Releases:       c.stats.releases.Load(),
	}
}

// OnChanged subscribes fn to composition changes. fn runs after the
// container lock is released, once per successful composition cycle.
func (c *Container) OnChanged(fn func()) (cancel func()) {
	c.listenersMu.Lock()
	defer c.listenersMu.Unlock()
	id := c.nextListener
	c.nextListener++
	c.listeners[id] = fn
	var once sync.Once
	return func() {
		once.Do(func() {
			c.listenersMu.Lock()
			delete(c.listeners, id)
			c.listenersMu.Unlock()
		})
	}
}

func (c *Container) fireChanged() {
	c.listenersMu.Lock()
	ids := make([]uint64, 0, len(c.listeners))
	for id := range c.listeners {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	fns := make([]func(), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, c.listeners[id])
	}
	c.listenersMu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

func (c *Container) opContext() context.Context {
	if c.opCtx == nil {
		return context.Background()
	}
	return c.opCtx
}
