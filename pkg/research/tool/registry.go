// Package tool defines the data-fetch and compute operations pipeline steps
// invoke, and the registry that times and bounds every call.
package tool

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"slingshot-be/pkg/research/citation"
	"slingshot-be/pkg/research/domain"
)

// Params are the inputs of one tool call.
type Params map[string]any

func (p Params) String(key string) string {
	v, _ := p[key].(string)
	return v
}

// Result is the structured output of a tool.
type Result struct {
	Data    map[string]any
	Sources []citation.Source
}

// Tool is a named, side-effect free operation. Implementations must honour ctx
// cancellation.
type Tool interface {
	Name() string
	Description() string
	Execute(ctx context.Context, params Params) (*Result, error)
}

// Info describes a registered tool.
type Info struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Observer receives the outcome of every invocation.
type Observer func(name string, elapsed time.Duration, err error)

type Registry struct {
	mu        sync.RWMutex
	tools     map[string]Tool
	timeout   time.Duration
	observers []Observer
}

// NewRegistry creates a registry whose calls are bounded by timeout.
func NewRegistry(timeout time.Duration) *Registry {
	return &Registry{
		tools:   make(map[string]Tool),
		timeout: timeout,
	}
}

// Register adds t, replacing any tool with the same name.
func (r *Registry) Register(t Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[t.Name()] = t
}

func (r *Registry) Observe(o Observer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.observers = append(r.observers, o)
}

func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

func (r *Registry) Has(name string) bool {
	_, ok := r.Get(name)
	return ok
}

// List returns tool names and descriptions sorted by name.
func (r *Registry) List() []Info {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Info, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, Info{Name: t.Name(), Description: t.Description()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

type outcome struct {
	res *Result
	err error
}

// Invoke runs the named tool under the registry timeout. The returned error is
// a *domain.ToolFailure for timeouts and tool errors. A tool that ignores ctx
// is abandoned when the deadline passes.
func (r *Registry) Invoke(ctx context.Context, name string, params Params) (*Result, time.Duration, error) {
	t, ok := r.Get(name)
	if !ok {
		return nil, 0, fmt.Errorf("%s: %w", name, domain.ErrUnknownTool)
	}

	callCtx := ctx
	cancel := func() {}
	if r.timeout > 0 {
		callCtx, cancel = context.WithTimeout(ctx, r.timeout)
	}
	defer cancel()

	start := time.Now()
	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				done <- outcome{err: fmt.Errorf("panic: %v", p)}
			}
		}()
		res, err := t.Execute(callCtx, params)
		done <- outcome{res: res, err: err}
	}()

	var out outcome
	select {
	case out = <-done:
	case <-callCtx.Done():
		out = outcome{err: callCtx.Err()}
	}
	elapsed := time.Since(start)

	err := out.err
	if err == nil && out.res == nil {
		err = fmt.Errorf("empty result")
	}
	if err != nil {
		// The caller's own cancellation is reported as such, not as a tool fault.
		if ctx.Err() != nil {
			err = ctx.Err()
		} else {
			err = &domain.ToolFailure{
				Tool:     name,
				TimedOut: callCtx.Err() == context.DeadlineExceeded,
				Err:      err,
			}
		}
	}

	r.notify(name, elapsed, err)
	if err != nil {
		return nil, elapsed, err
	}
	return out.res, elapsed, nil
}

func (r *Registry) notify(name string, elapsed time.Duration, err error) {
	r.mu.RLock()
	obs := r.observers
	r.mu.RUnlock()
	for _, o := range obs {
		o(name, elapsed, err)
	}
}
