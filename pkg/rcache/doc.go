// Package rcache caches the results of expensive function calls in an
// external key-value store, Redis by default, with TTL expiry.
//
// # Overview
//
// A wrapped function keeps its signature. Repeated calls with the same
// arguments are answered from the store; a mutating function can be wrapped
// so that, once it succeeds, the entry cached by a related read function for
// the same arguments is deleted.
//
// # Basic Usage
//
//	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:6379"})
//	cache, err := rcache.New(rcache.NewRedisConfigWithClient(client))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer cache.Close()
//
//	getUser := rcache.Wrap(cache, svc.GetUser, rcache.WithTTL(5*time.Minute))
//	user, err := getUser(ctx, 7) // miss: runs svc.GetUser and stores the result
//	user, err = getUser(ctx, 7)  // hit: decoded from Redis
//
// # Keys
//
// A key is the operation identity followed by the rendered arguments:
//
//	github.com/acme/users.(*Service).GetUser:(7,):{}
//
// The identity comes from the function symbol; method values bound to
// different receivers share it. Use WithName for closures or to keep keys
// stable across renames, and WithReceiver for method expressions such as
// (*Service).GetUser. A leading context.Context is never part of the key.
// Go has no keyword arguments; a trailing Kwargs parameter fills the keyword
// part, rendered sorted by name. Config.KeyHashing replaces the argument
// part with a SHA-256 or xxHash64 digest.
//
// # Serialization
//
// Each wrapped function picks a serializer.Serializer once, with
// WithSerializer. serializer.JSON is readable and interoperable and rejects
// values it cannot represent. serializer.Msgpack round-trips arbitrary Go
// types. serializer.Compressed adds gzip or deflate for large payloads.
//
// # Invalidation
//
//	updateUser := rcache.Invalidate(cache, svc.UpdateUser, svc.GetUser,
//	    rcache.MapArgs(func(a rcache.Args) rcache.Args {
//	        return rcache.Args{Positional: a.Positional[:1]}
//	    }))
//
// Without MapArgs the key is rebuilt from the mutator's own arguments.
//
// # Errors
//
// Store failures are *BackendError (errors.Is(err, ErrBackend)); encoding
// and decoding failures are *SerializationError. Neither is ever turned into
// a miss. Errors returned by the wrapped function pass through unchanged and
// are not cached.
//
// # Concurrency
//
// A Cache holds no per-key state and is safe for concurrent use.
// Concurrent misses on one key each run the function and each write; the
// last write wins. WithInflightDedup coalesces them within one process.
//
// # Observability
//
// Stats exposes atomic counters. Hooks receive hits, misses, invalidations
// and errors; CreateLoggingHooks turns them into structured logrus output.
// pkg/metrics exports the same events to Prometheus or OpenTelemetry, and
// DebugHandler serves stats and stored keys over HTTP.
package rcache
