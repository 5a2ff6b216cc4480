// Package serviceinterfaces defines service interfaces for dependency injection and testing.
package serviceinterfaces

import (
	"context"
	"errors"
	"sync"
)

// Lifecycle defines the interface for components that hold resources between startup and shutdown
type Lifecycle interface {
	// Startup is called when the component should initialize
	Startup(ctx context.Context) error

	// Shutdown is called when the component should cleanup
	Shutdown(ctx context.Context) error

	// IsReady returns whether the component is ready to handle requests
	IsReady() bool
}

// Hooks adapts a pair of functions to Lifecycle. Either may be nil.
type Hooks struct {
	Name    string
	OnStart func(ctx context.Context) error
	OnStop  func(ctx context.Context) error

	mu    sync.RWMutex
	ready bool
}

// Startup runs OnStart and marks the component ready on success
func (h *Hooks) Startup(ctx context.Context) error {
	if h.OnStart != nil {
		if err := h.OnStart(ctx); err != nil {
			return err
		}
	}
	h.mu.Lock()
	h.ready = true
	h.mu.Unlock()
	return nil
}

// Shutdown marks the component not ready and runs OnStop
func (h *Hooks) Shutdown(ctx context.Context) error {
	h.mu.Lock()
	h.ready = false
	h.mu.Unlock()
	if h.OnStop != nil {
		return h.OnStop(ctx)
	}
	return nil
}

// IsReady reports whether Startup succeeded and Shutdown has not run
func (h *Hooks) IsReady() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.ready
}

// Group starts components in registration order and stops them in reverse
type Group struct {
	mu         sync.Mutex
	components []Lifecycle
	started    int
}

// Add registers a component
func (g *Group) Add(c Lifecycle) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.components = append(g.components, c)
}

// Startup starts every component. On failure the ones already started are shut down.
func (g *Group) Startup(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	for i := g.started; i < len(g.components); i++ {
		if err := g.components[i].Startup(ctx); err != nil {
			_ = g.shutdownLocked(ctx)
			return err
		}
		g.started = i + 1
	}
	return nil
}

// Shutdown stops started components in reverse order and joins their errors
func (g *Group) Shutdown(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.shutdownLocked(ctx)
}

func (g *Group) shutdownLocked(ctx context.Context) error {
	var errs []error
	for i := g.started - 1; i >= 0; i-- {
		if err := g.components[i].Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	g.started = 0
	return errors.Join(errs...)
}

// IsReady reports whether every component is ready
func (g *Group) IsReady() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.started < len(g.components) {
		return false
	}
	for _, c := range g.components {
		if !c.IsReady() {
			return false
		}
	}
	return true
}

var (
	_ Lifecycle = (*Hooks)(nil)
	_ Lifecycle = (*Group)(nil)
)
