package rcache

import (
	"fmt"
	"reflect"
)

// InvalidateOptions holds configuration options for invalidating wrappers
type InvalidateOptions struct {
	// MapArgs projects the mutator's arguments onto the read function's
	// arguments before the key is built. Identity when nil.
	MapArgs func(Args) Args

	// Receiver drops the first argument, for method expressions
	Receiver bool
}

// InvalidateOption configures InvalidateOptions
type InvalidateOption interface {
	applyInvalidate(*InvalidateOptions)
}

type invalidateOptionFunc func(*InvalidateOptions)

func (f invalidateOptionFunc) applyInvalidate(o *InvalidateOptions) { f(o) }

// MapArgs rewrites the mutator's arguments into the read function's
// arguments. Without it the key is built from the mutator's arguments
// unchanged, so both functions must take the same arguments.
func MapArgs(fn func(Args) Args) InvalidateOption {
	return invalidateOptionFunc(func(opts *InvalidateOptions) {
		opts.MapArgs = fn
	})
}

// Invalidate returns a function with mut's signature that, after mut
// succeeds, deletes the entry the read operation target cached for the
// same arguments.
//
// target is the read function itself or its identity string (required when
// the read function was wrapped WithName). When mut returns an error nothing
// is deleted. A failed delete is reported after the mutation has happened
// and is not rolled back; mutators without an error result panic with it.
func Invalidate[T any](cache *Cache, mut T, target any, options ...InvalidateOption) T {
	if err := validateMutator(mut); err != nil {
		panic("rcache.Invalidate: " + err.Error())
	}

	identity, err := targetIdentity(target)
	if err != nil {
		panic("rcache.Invalidate: " + err.Error())
	}

	opts := &InvalidateOptions{}
	for _, opt := range options {
		opt.applyInvalidate(opts)
	}

	mutValue := reflect.ValueOf(mut)
	inv := &invalidating{
		cache:    cache,
		mut:      mutValue,
		shape:    newFuncShape(mutValue.Type(), opts.Receiver),
		opts:     opts,
		identity: identity,
	}

	return reflect.MakeFunc(mutValue.Type(), inv.call).Interface().(T)
}

type invalidating struct {
	cache    *Cache
	mut      reflect.Value
	shape    *funcShape
	opts     *InvalidateOptions
	identity string
}

func (inv *invalidating) call(args []reflect.Value) []reflect.Value {
	results := inv.mut.Call(args)
	if inv.shape.returnedError(results) {
		return results
	}

	ctx, bounded := inv.shape.callContext(args)
	keyArgs := inv.shape.keyArgs(args)
	if inv.opts.MapArgs != nil {
		keyArgs = inv.opts.MapArgs(keyArgs)
	}

	key := inv.cache.Key(inv.identity, keyArgs)
	if err := inv.cache.remove(ctx, bounded, key, keyArgs); err != nil {
		if !inv.shape.hasErr {
			panic(err)
		}
		results[len(results)-1] = reflect.ValueOf(&err).Elem()
	}

	return results
}

func targetIdentity(target any) (string, error) {
	switch t := target.(type) {
	case string:
		if t == "" {
			return "", fmt.Errorf("empty target identity")
		}
		return t, nil
	case nil:
		return "", fmt.Errorf("nil target")
	default:
		return FuncIdentity(target)
	}
}

func validateMutator(mut any) error {
	fnType := reflect.TypeOf(mut)
	if fnType == nil || fnType.Kind() != reflect.Func {
		return fmt.Errorf("not a function: %T", mut)
	}
	if reflect.ValueOf(mut).IsNil() {
		return fmt.Errorf("nil function")
	}
	if fnType.IsVariadic() {
		return fmt.Errorf("variadic functions are not supported")
	}
	return nil
}
