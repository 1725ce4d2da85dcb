package di

import (
	"github.com/kbukum/gocompose/errors"
	"github.com/kbukum/gocompose/logger"
)

// Parent returns the container's parent, or nil.
func (c *Container) Parent() *Container {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.parent
}

// NewChild creates a container whose lookups fall back to c. The child
// recomposes whenever c's composition changes.
func (c *Container) NewChild(opts ...Option) (*Container, error) {
	if c.isDisposed() {
		return nil, errors.Disposed(c.id)
	}
	child := New(append([]Option{WithLogger(c.base), WithDefaultMode(c.defaultMode)}, opts...)...)
	if err := child.SetParent(c); err != nil {
		_ = child.Dispose()
		return nil, err
	}
	return child, nil
}

// SetParent replaces the parent link and recomposes. A nil parent detaches.
func (c *Container) SetParent(p *Container) error {
	if p == c {
		return errors.InvalidArgument("parent", "a container cannot be its own parent")
	}
	if p != nil {
		if err := c.checkParent(p); err != nil {
			return err
		}
	}
	if err := c.lock(); err != nil {
		return err
	}
	if c.parentCancel != nil {
		c.parentCancel()
		c.parentCancel = nil
	}
	c.parent = p
	c.forgetIssued()
	if p != nil {
		c.parentCancel = p.OnChanged(c.requestRecompose)
		c.log.Debug("parent attached", logger.Fields(logger.FieldParentID, p.id))
	}
	_, err := c.composeLocked(nil, c.defaultMode)
	c.unlock(err == nil)
	return err
}

// checkParent rejects disposed parents and cycles. Ancestors are locked one
// at a time with nothing else held.
func (c *Container) checkParent(p *Container) error {
	for a := p; a != nil; {
		if a == c {
			return errors.InvalidArgument("parent", "parent chain would contain a cycle")
		}
		a.mu.Lock()
		disposed, next := a.disposed, a.parent
		a.mu.Unlock()
		if disposed {
			return errors.Disposed(a.id)
		}
		a = next
	}
	return nil
}

func (c *Container) isDisposed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.disposed
}
