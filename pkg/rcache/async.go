package rcache

import "context"

// Result carries the outcome of an asynchronous call
type Result[R any] struct {
	Val R
	Err error
}

// Async runs fn on its own goroutine and delivers the outcome on a channel
// that receives exactly one Result and is then closed. Combined with Wrap it
// gives a future-style cached call:
//
//	getUser := rcache.Async(rcache.Wrap(cache, svc.GetUser))
//	res := <-getUser(ctx, 7)
func Async[A, R any](fn func(context.Context, A) (R, error)) func(context.Context, A) <-chan Result[R] {
	return func(ctx context.Context, arg A) <-chan Result[R] {
		ch := make(chan Result[R], 1)
		go func() {
			defer close(ch)
			val, err := fn(ctx, arg)
			ch <- Result[R]{Val: val, Err: err}
		}()
		return ch
	}
}
