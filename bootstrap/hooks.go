package bootstrap

import (
	"context"
	"fmt"

	"go.uber.org/multierr"
)

// Hook is a lifecycle callback.
type Hook func(ctx context.Context) error

// OnStop registers hooks that run during Shutdown before the container is
// disposed, in registration order.
func (a *App) OnStop(hooks ...Hook) {
	a.onStop = append(a.onStop, hooks...)
}

// runHooks runs every hook and combines their errors.
func runHooks(ctx context.Context, hooks []Hook) error {
	var err error
	for i, h := range hooks {
		if herr := h(ctx); herr != nil {
			err = multierr.Append(err, fmt.Errorf("hook %d failed: %w", i, herr))
		}
	}
	return err
}
