// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package wildcard

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Mutation is one context field written during a call.
type Mutation struct {
	Field string
	Value any
}

type hookKey struct{}

// hook is the per-call record of the propagation engine. It travels inside
// the call's context.Context, so every goroutine the endpoint starts with
// that ctx resolves the same hook.
type hook struct {
	id       uuid.UUID
	started  time.Time
	fallback bool
	engine   *Engine

	mu        sync.Mutex
	user      map[string]any
	mutations []Mutation
	index     map[string]int
	harvested bool
	released  bool
	warned    map[string]bool

	cookieOnce   sync.Once
	cookieLoader func() map[string]any
	cookieVals   map[string]any
}

func (h *hook) cookies() map[string]any {
	h.cookieOnce.Do(func() {
		if h.cookieLoader != nil {
			h.cookieVals = h.cookieLoader()
		}
	})
	return h.cookieVals
}

// mergeUser adds fields to the user-supplied layer.
func (h *hook) mergeUser(fields map[string]any) {
	if len(fields) == 0 {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.user == nil {
		h.user = make(map[string]any, len(fields))
	}
	for k, v := range fields {
		h.user[k] = v
	}
}

func (h *hook) lookup(field string) (any, bool, error) {
	h.mu.Lock()
	if h.released {
		h.mu.Unlock()
		return nil, false, usageErrorf("cannot read context field `%s`: the endpoint call it belongs to already returned", field)
	}
	if i, ok := h.index[field]; ok {
		v := h.mutations[i].Value
		h.mu.Unlock()
		return v, true, nil
	}
	uv, inUser := h.user[field]
	h.mu.Unlock()

	// The cookie layer is evaluated outside the lock; it verifies signatures.
	cv, inCookie := h.cookies()[field]
	switch {
	case inUser && inCookie:
		h.warnOnce(field, "context field provided both by the caller and by a signed cookie; using the caller's value")
		return uv, true, nil
	case inUser:
		return uv, true, nil
	case inCookie:
		return cv, true, nil
	}
	return nil, false, nil
}

func (h *hook) set(field string, v any) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.released || h.harvested {
		return usageErrorf("cannot set context field `%s`: the endpoint call it belongs to already returned", field)
	}
	if h.index == nil {
		h.index = make(map[string]int)
	}
	if i, ok := h.index[field]; ok {
		h.mutations[i].Value = v
		return nil
	}
	h.index[field] = len(h.mutations)
	h.mutations = append(h.mutations, Mutation{Field: field, Value: v})
	return nil
}

func (h *hook) fields() (map[string]any, error) {
	h.mu.Lock()
	if h.released {
		h.mu.Unlock()
		return nil, usageErrorf("cannot read the context: the endpoint call it belongs to already returned")
	}
	h.mu.Unlock()

	out := make(map[string]any)
	for k, v := range h.cookies() {
		out[k] = v
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for k, v := range h.user {
		out[k] = v
	}
	for _, m := range h.mutations {
		out[m.Field] = m.Value
	}
	return out, nil
}

// harvest hands out the mutations exactly once. Later writes fail.
func (h *hook) harvest() []Mutation {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.harvested {
		h.engine.logger.Error("[wildcard][Internal Error] context mutations harvested twice",
			zap.String("call", h.id.String()))
		return nil
	}
	h.harvested = true
	out := h.mutations
	h.mutations, h.index = nil, nil
	return out
}

func (h *hook) release() {
	h.mu.Lock()
	if h.released {
		h.mu.Unlock()
		return
	}
	h.released = true
	pending := len(h.mutations)
	h.mu.Unlock()

	if pending > 0 {
		h.engine.logger.Error("[wildcard][Internal Error] context hook released with unharvested mutations",
			zap.String("call", h.id.String()),
			zap.Int("pending", pending))
	}
	h.engine.forget(h.id)
}

func (h *hook) warnOnce(field, msg string) {
	h.mu.Lock()
	if h.warned[field] {
		h.mu.Unlock()
		return
	}
	if h.warned == nil {
		h.warned = make(map[string]bool)
	}
	h.warned[field] = true
	h.mu.Unlock()
	h.engine.logger.Warn(msg, zap.String("field", field), zap.String("call", h.id.String()))
}

// Engine tracks the context hooks of all in-flight calls.
type Engine struct {
	logger *zap.Logger

	mu    sync.Mutex
	hooks map[uuid.UUID]*hook
}

// NewEngine returns an engine logging to logger.
func NewEngine(logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{logger: logger, hooks: make(map[uuid.UUID]*hook)}
}

// enter opens a hook for a new inbound call. The returned context carries it.
func (e *Engine) enter(ctx context.Context, user map[string]any, cookies func() map[string]any) (context.Context, *hook) {
	return e.open(ctx, user, cookies, false)
}

// enterFallback opens a hook for a call without a tracked entry point, such
// as an in-process call made outside any request.
func (e *Engine) enterFallback(ctx context.Context, user map[string]any) (context.Context, *hook) {
	return e.open(ctx, user, nil, true)
}

func (e *Engine) open(ctx context.Context, user map[string]any, cookies func() map[string]any, fallback bool) (context.Context, *hook) {
	h := &hook{
		id:           uuid.New(),
		started:      time.Now(),
		fallback:     fallback,
		engine:       e,
		cookieLoader: cookies,
	}
	h.mergeUser(user)

	e.mu.Lock()
	e.hooks[h.id] = h
	e.mu.Unlock()

	return context.WithValue(ctx, hookKey{}, h), h
}

// current returns the live hook ctx belongs to.
func (e *Engine) current(ctx context.Context) (*hook, bool) {
	h, ok := ctx.Value(hookKey{}).(*hook)
	if !ok || h.engine != e {
		return nil, false
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.released || h.harvested {
		return nil, false
	}
	return h, true
}

func (e *Engine) forget(id uuid.UUID) {
	e.mu.Lock()
	delete(e.hooks, id)
	e.mu.Unlock()
}

// InFlight returns the number of calls whose hook is still open.
func (e *Engine) InFlight() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.hooks)
}

// Sweep force-releases hooks older than maxAge and returns how many it
// released. A call that never returns keeps its hook open; this is the only
// way such a hook goes away.
func (e *Engine) Sweep(maxAge time.Duration) int {
	now := time.Now()
	var stale []*hook
	e.mu.Lock()
	for _, h := range e.hooks {
		if now.Sub(h.started) > maxAge {
			stale = append(stale, h)
		}
	}
	e.mu.Unlock()

	for _, h := range stale {
		e.logger.Warn("releasing stale context hook",
			zap.String("call", h.id.String()),
			zap.Duration("age", now.Sub(h.started)),
			zap.Bool("fallback", h.fallback))
		h.mu.Lock()
		h.harvested = true
		h.mutations, h.index = nil, nil
		h.mu.Unlock()
		h.release()
	}
	return len(stale)
}

// RunSweeper calls Sweep every interval until ctx is done.
func (e *Engine) RunSweeper(ctx context.Context, interval, maxAge time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.Sweep(maxAge)
		}
	}
}
