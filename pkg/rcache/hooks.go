package rcache

import (
	"context"
	"strings"
)

// Hooks defines event callbacks for cache operations. Hooks run synchronously
// on the calling goroutine.
type Hooks struct {
	// OnHit is called when a stored value was found and decoded
	OnHit []OnHitHook

	// OnMiss is called when no value was stored for the key
	OnMiss []OnMissHook

	// OnInvalidate is called after a key was deleted following a mutation
	OnInvalidate []OnInvalidateHook

	// OnError is called when a store or serialization step fails
	OnError []OnErrorHook
}

// Hook function type definitions
type (
	// OnHitHook receives the decoded value
	OnHitHook func(ctx context.Context, key string, value any, args Args)

	OnMissHook func(ctx context.Context, key string, args Args)

	OnInvalidateHook func(ctx context.Context, key string, args Args)

	OnErrorHook func(ctx context.Context, key string, err error)
)

// HookCondition decides whether a conditional hook runs
type HookCondition func(ctx context.Context, key string) bool

// AddOnHit adds an OnHit hook
func (h *Hooks) AddOnHit(hook OnHitHook) {
	h.OnHit = append(h.OnHit, hook)
}

// AddOnMiss adds an OnMiss hook
func (h *Hooks) AddOnMiss(hook OnMissHook) {
	h.OnMiss = append(h.OnMiss, hook)
}

// AddOnInvalidate adds an OnInvalidate hook
func (h *Hooks) AddOnInvalidate(hook OnInvalidateHook) {
	h.OnInvalidate = append(h.OnInvalidate, hook)
}

// AddOnError adds an OnError hook
func (h *Hooks) AddOnError(hook OnErrorHook) {
	h.OnError = append(h.OnError, hook)
}

// AddOnMissIf adds an OnMiss hook that only runs when cond holds
func (h *Hooks) AddOnMissIf(hook OnMissHook, cond HookCondition) {
	h.AddOnMiss(func(ctx context.Context, key string, args Args) {
		if cond(ctx, key) {
			hook(ctx, key, args)
		}
	})
}

// AddOnErrorIf adds an OnError hook that only runs when cond holds
func (h *Hooks) AddOnErrorIf(hook OnErrorHook, cond HookCondition) {
	h.AddOnError(func(ctx context.Context, key string, err error) {
		if cond(ctx, key) {
			hook(ctx, key, err)
		}
	})
}

// Merge appends all hooks of other to h
func (h *Hooks) Merge(other *Hooks) *Hooks {
	if other == nil {
		return h
	}
	h.OnHit = append(h.OnHit, other.OnHit...)
	h.OnMiss = append(h.OnMiss, other.OnMiss...)
	h.OnInvalidate = append(h.OnInvalidate, other.OnInvalidate...)
	h.OnError = append(h.OnError, other.OnError...)
	return h
}

// KeyPrefixCondition matches keys starting with prefix. Keys start with the
// operation identity, so this selects hooks per wrapped function.
func KeyPrefixCondition(prefix string) HookCondition {
	return func(_ context.Context, key string) bool {
		return strings.HasPrefix(key, prefix)
	}
}

// ContextValueCondition matches when ctx carries value under key
func ContextValueCondition(key, value any) HookCondition {
	return func(ctx context.Context, _ string) bool {
		return ctx != nil && ctx.Value(key) == value
	}
}

func (h *Hooks) invokeOnHit(ctx context.Context, key string, value any, args Args) {
	for _, hook := range h.OnHit {
		if hook != nil {
			hook(ctx, key, value, args)
		}
	}
}

func (h *Hooks) invokeOnMiss(ctx context.Context, key string, args Args) {
	for _, hook := range h.OnMiss {
		if hook != nil {
			hook(ctx, key, args)
		}
	}
}

func (h *Hooks) invokeOnInvalidate(ctx context.Context, key string, args Args) {
	for _, hook := range h.OnInvalidate {
		if hook != nil {
			hook(ctx, key, args)
		}
	}
}

func (h *Hooks) invokeOnError(ctx context.Context, key string, err error) {
	for _, hook := range h.OnError {
		if hook != nil {
			hook(ctx, key, err)
		}
	}
}
