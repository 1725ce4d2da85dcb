package bootstrap

import (
	"time"

	"github.com/kbukum/gocompose/catalog"
	"github.com/kbukum/gocompose/di"
	"github.com/kbukum/gocompose/logger"
)

// Option configures the App during creation.
type Option func(*appOptions)

type appOptions struct {
	logger          *logger.Logger
	types           *catalog.Types
	containerOpts   []di.Option
	gracefulTimeout *time.Duration
}

func resolveOptions(opts []Option) *appOptions {
	o := &appOptions{}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithLogger sets a custom logger. If not set, the global logger is
// initialized from the config's logging section.
func WithLogger(l *logger.Logger) Option {
	return func(o *appOptions) {
		o.logger = l
	}
}

// WithTypes sets the tag registry used to read the catalog file.
func WithTypes(t *catalog.Types) Option {
	return func(o *appOptions) {
		o.types = t
	}
}

// WithContainerOptions passes extra options to the root container.
func WithContainerOptions(opts ...di.Option) Option {
	return func(o *appOptions) {
		o.containerOpts = append(o.containerOpts, opts...)
	}
}

// WithGracefulTimeout sets the maximum duration for Shutdown.
func WithGracefulTimeout(d time.Duration) Option {
	return func(o *appOptions) {
		o.gracefulTimeout = &d
	}
}
