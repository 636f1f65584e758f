package rcache

import (
	"context"
	"fmt"
	"reflect"
	"strconv"
	"time"

	"github.com/vnykmshr/rcache-go/pkg/metrics"
	"github.com/vnykmshr/rcache-go/pkg/serializer"
)

// WrapOptions holds configuration options for function wrapping
type WrapOptions struct {
	// TTL overrides the default TTL for this wrapped function
	TTL time.Duration

	// Serializer overrides the cache's default serializer
	Serializer serializer.Serializer

	// Name is the operation identity used as the key prefix. Derived from
	// the function symbol when empty.
	Name string

	// Receiver drops the first argument, for method expressions
	Receiver bool

	// DisableCache disables caching for this function (useful for testing)
	DisableCache bool

	// Dedup coalesces concurrent misses for the same key in this process
	Dedup bool
}

// WrapOption configures WrapOptions
type WrapOption interface {
	applyWrap(*WrapOptions)
}

type wrapOptionFunc func(*WrapOptions)

func (f wrapOptionFunc) applyWrap(o *WrapOptions) { f(o) }

// ReceiverOption marks the first argument as a method receiver. It applies
// to both Wrap and Invalidate.
type ReceiverOption struct{}

func (ReceiverOption) applyWrap(o *WrapOptions) { o.Receiver = true }

func (ReceiverOption) applyInvalidate(o *InvalidateOptions) { o.Receiver = true }

// WithTTL sets a custom TTL for the wrapped function
func WithTTL(ttl time.Duration) WrapOption {
	return wrapOptionFunc(func(opts *WrapOptions) {
		opts.TTL = ttl
	})
}

// WithSerializer sets the serialization strategy for the wrapped function
func WithSerializer(s serializer.Serializer) WrapOption {
	return wrapOptionFunc(func(opts *WrapOptions) {
		opts.Serializer = s
	})
}

// WithName sets the operation identity explicitly. Use it for closures and
// whenever keys must survive a rename.
func WithName(identity string) WrapOption {
	return wrapOptionFunc(func(opts *WrapOptions) {
		opts.Name = identity
	})
}

// WithReceiver excludes the first argument of a method expression such as
// (*Service).GetUser from the key
func WithReceiver() ReceiverOption {
	return ReceiverOption{}
}

// WithoutCache disables caching for the wrapped function
func WithoutCache() WrapOption {
	return wrapOptionFunc(func(opts *WrapOptions) {
		opts.DisableCache = true
	})
}

// WithInflightDedup makes concurrent misses for the same key share one
// computation and one write. Only goroutines of this process are coalesced.
//
// The function runs with the arguments of the first caller, its context
// included, and every coalesced caller receives that call's results. The
// shared write ignores the first caller's cancellation and is bounded by
// Config.OperationTimeout instead.
func WithInflightDedup() WrapOption {
	return wrapOptionFunc(func(opts *WrapOptions) {
		opts.Dedup = true
	})
}

var (
	contextType = reflect.TypeOf((*context.Context)(nil)).Elem()
	kwargsType  = reflect.TypeOf(Kwargs(nil))
)

// funcShape describes how a function's parameters and results map onto
// cache keys and cached values
type funcShape struct {
	fnType    reflect.Type
	receiver  bool
	ctxIndex  int
	hasCtx    bool
	hasKwargs bool
	hasErr    bool

	// valueType is what gets encoded: the single result type, or a struct
	// with one field per result when there are several
	valueType reflect.Type
	numValues int
}

func newFuncShape(fnType reflect.Type, receiver bool) *funcShape {
	shape := &funcShape{fnType: fnType, receiver: receiver}

	// a method expression takes its receiver ahead of the context
	if receiver {
		shape.ctxIndex = 1
	}

	numIn := fnType.NumIn()
	shape.hasCtx = numIn > shape.ctxIndex && fnType.In(shape.ctxIndex) == contextType
	shape.hasKwargs = numIn > 0 && fnType.In(numIn-1) == kwargsType

	numOut := fnType.NumOut()
	shape.hasErr = numOut > 0 && fnType.Out(numOut-1) == errorType
	shape.numValues = numOut
	if shape.hasErr {
		shape.numValues--
	}

	switch shape.numValues {
	case 0:
	case 1:
		shape.valueType = fnType.Out(0)
	default:
		fields := make([]reflect.StructField, shape.numValues)
		for i := range fields {
			name := "R" + strconv.Itoa(i)
			fields[i] = reflect.StructField{
				Name: name,
				Type: fnType.Out(i),
				Tag:  reflect.StructTag(fmt.Sprintf(`json:"r%d" msgpack:"r%d"`, i, i)),
			}
		}
		shape.valueType = reflect.StructOf(fields)
	}

	return shape
}

// callContext returns the call's context and whether store operations must
// be bounded by Config.OperationTimeout
func (s *funcShape) callContext(args []reflect.Value) (context.Context, bool) {
	if !s.hasCtx {
		return context.Background(), true
	}
	ctx, _ := args[s.ctxIndex].Interface().(context.Context)
	if ctx == nil {
		return context.Background(), true
	}
	return ctx, false
}

// keyArgs extracts the arguments that take part in the key
func (s *funcShape) keyArgs(args []reflect.Value) Args {
	end := len(args)

	var out Args
	if s.hasKwargs {
		end--
		out.Keyword, _ = args[end].Interface().(Kwargs)
	}

	out.Positional = make([]any, 0, end)
	for i, arg := range args[:end] {
		if s.hasCtx && i == s.ctxIndex {
			continue
		}
		out.Positional = append(out.Positional, arg.Interface())
	}

	if s.receiver {
		out = out.DropReceiver()
	}
	return out
}

// pack converts successful results into the value that is encoded
func (s *funcShape) pack(results []reflect.Value) any {
	if s.numValues == 1 {
		return results[0].Interface()
	}
	tuple := reflect.New(s.valueType).Elem()
	for i := 0; i < s.numValues; i++ {
		tuple.Field(i).Set(results[i])
	}
	return tuple.Interface()
}

// unpack converts a decoded value back into the function's results
func (s *funcShape) unpack(decoded reflect.Value) []reflect.Value {
	results := make([]reflect.Value, s.fnType.NumOut())
	if s.numValues == 1 {
		results[0] = decoded
	} else {
		for i := 0; i < s.numValues; i++ {
			results[i] = decoded.Field(i)
		}
	}
	if s.hasErr {
		results[len(results)-1] = reflect.Zero(errorType)
	}
	return results
}

// failure returns zero values plus err, or panics when the function has no
// error result to report it through
func (s *funcShape) failure(err error) []reflect.Value {
	if !s.hasErr {
		panic(err)
	}

	numOut := s.fnType.NumOut()
	results := make([]reflect.Value, numOut)
	for i := 0; i < numOut-1; i++ {
		results[i] = reflect.Zero(s.fnType.Out(i))
	}
	results[numOut-1] = reflect.ValueOf(&err).Elem()
	return results
}

func (s *funcShape) returnedError(results []reflect.Value) bool {
	return s.hasErr && !results[len(results)-1].IsNil()
}

// Wrap returns a function with fn's signature that serves repeated calls
// from the store.
//
// On each call the key is built from the operation identity and the
// arguments (a leading context.Context is excluded, a trailing Kwargs is the
// keyword part). A stored value is decoded and returned without calling fn.
// Otherwise fn runs; a returned error is passed through and nothing is
// stored, a result is encoded, written with the TTL and returned.
//
// Store and serialization failures are returned as the function's error.
// Functions without an error result panic with them instead.
//
// Concurrent misses on one key all run fn and all write; the last write
// wins. WithInflightDedup narrows this to one computation per process.
func Wrap[T any](cache *Cache, fn T, options ...WrapOption) T {
	if err := ValidateWrappableFunction(fn); err != nil {
		panic("rcache.Wrap: " + err.Error())
	}

	opts := &WrapOptions{
		TTL:        cache.config.DefaultTTL,
		Serializer: cache.serializer,
	}
	for _, opt := range options {
		opt.applyWrap(opts)
	}

	identity := opts.Name
	if identity == "" {
		var err error
		identity, err = FuncIdentity(fn)
		if err != nil {
			panic("rcache.Wrap: " + err.Error())
		}
	}

	fnValue := reflect.ValueOf(fn)
	w := &wrapped{
		cache:    cache,
		fn:       fnValue,
		shape:    newFuncShape(fnValue.Type(), opts.Receiver),
		opts:     opts,
		identity: identity,
	}

	return reflect.MakeFunc(fnValue.Type(), w.call).Interface().(T)
}

type wrapped struct {
	cache    *Cache
	fn       reflect.Value
	shape    *funcShape
	opts     *WrapOptions
	identity string
}

func (w *wrapped) call(args []reflect.Value) []reflect.Value {
	if w.opts.DisableCache {
		return w.fn.Call(args)
	}

	ctx, bounded := w.shape.callContext(args)
	keyArgs := w.shape.keyArgs(args)
	key := w.cache.Key(w.identity, keyArgs)

	target := reflect.New(w.shape.valueType)
	found, err := w.cache.load(ctx, bounded, key, w.opts.Serializer, target.Interface(), keyArgs)
	if err != nil {
		return w.shape.failure(err)
	}
	if found {
		return w.shape.unpack(target.Elem())
	}

	if !w.opts.Dedup {
		results, err := w.compute(ctx, bounded, key, args)
		if err != nil {
			return w.shape.failure(err)
		}
		return results
	}

	shared, err, _ := w.cache.sf.Do(key, func() (any, error) {
		return w.compute(context.WithoutCancel(ctx), true, key, args)
	})
	if err != nil {
		return w.shape.failure(err)
	}
	return shared.([]reflect.Value)
}

// compute runs fn and stores a successful result
func (w *wrapped) compute(ctx context.Context, bounded bool, key string, args []reflect.Value) ([]reflect.Value, error) {
	w.cache.stats.incInFlight()
	defer w.cache.stats.decInFlight()

	start := time.Now()
	results := w.fn.Call(args)
	if w.shape.returnedError(results) {
		w.cache.recordCacheOperation(metrics.OperationFunctionCall, metrics.ResultError, start)
		return results, nil
	}
	w.cache.recordCacheOperation(metrics.OperationFunctionCall, metrics.ResultSuccess, start)

	if err := w.cache.save(ctx, bounded, key, w.opts.Serializer, w.shape.pack(results), w.opts.TTL); err != nil {
		return nil, err
	}
	return results, nil
}

// ValidateWrappableFunction checks if a function can be wrapped
// This is useful for providing better error messages at runtime
func ValidateWrappableFunction(fn any) error {
	fnType := reflect.TypeOf(fn)
	if fnType == nil || fnType.Kind() != reflect.Func {
		return fmt.Errorf("not a function: %T", fn)
	}
	if reflect.ValueOf(fn).IsNil() {
		return fmt.Errorf("nil function")
	}

	// Check if function is variadic (not currently supported)
	if fnType.IsVariadic() {
		return fmt.Errorf("variadic functions are not supported")
	}

	numOut := fnType.NumOut()
	if numOut == 0 {
		return fmt.Errorf("functions with no return values cannot be cached")
	}

	lastIsErr := fnType.Out(numOut-1) == errorType
	if numOut == 1 && lastIsErr {
		return fmt.Errorf("functions returning only an error cannot be cached")
	}

	// If there are multiple returns, the last one should be error
	if numOut > 1 && !lastIsErr {
		return fmt.Errorf("multi-return functions must have error as the last return value")
	}

	return nil
}
