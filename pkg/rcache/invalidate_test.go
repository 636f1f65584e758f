package rcache

import (
	"context"
	"errors"
	"testing"
	"time"
)

func firstArg(a Args) Args {
	return Args{Positional: a.Positional[:1]}
}

func TestInvalidateDeletesReadEntry(t *testing.T) {
	cache := newTestCache(t)
	svc := newUserService()
	getUser := Wrap(cache, svc.GetUser)
	ctx := context.Background()

	var deleted []int
	remove := Invalidate(cache, func(ctx context.Context, id int) (bool, error) {
		deleted = append(deleted, id)
		return true, nil
	}, svc.GetUser)

	_, _ = getUser(ctx, 1)
	_, _ = getUser(ctx, 2)

	ok, err := remove(ctx, 1)
	if err != nil || !ok {
		t.Fatalf("Expected mutator result to pass through, got %v, %v", ok, err)
	}
	if len(deleted) != 1 {
		t.Fatalf("Expected mutator to run once, ran %d times", len(deleted))
	}

	_, _ = getUser(ctx, 1)
	_, _ = getUser(ctx, 2)
	if got := svc.count("GetUser"); got != 3 {
		t.Fatalf("Expected only the invalidated entry to be recomputed, got %d calls", got)
	}
	if got := cache.Stats().Invalidations(); got != 1 {
		t.Fatalf("Expected 1 invalidation, got %d", got)
	}
}

func TestInvalidateMapArgs(t *testing.T) {
	cache := newTestCache(t)
	svc := newUserService()
	getUser := Wrap(cache, svc.GetUser)
	updateUser := Invalidate(cache, svc.UpdateUser, svc.GetUser, MapArgs(firstArg))
	ctx := context.Background()

	before, _ := getUser(ctx, 7)
	if before.Name != "User_7" {
		t.Fatalf("Unexpected initial name %s", before.Name)
	}

	if _, err := updateUser(ctx, 7, Kwargs{"name": "Updated"}); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	after, _ := getUser(ctx, 7)
	if after.Name != "Updated" {
		t.Fatalf("Expected fresh value after invalidation, got %s", after.Name)
	}
	if got := svc.count("GetUser"); got != 2 {
		t.Fatalf("Expected 2 calls, got %d", got)
	}
}

func TestInvalidateWithoutMapArgsUsesMutatorArguments(t *testing.T) {
	cache := newTestCache(t)
	svc := newUserService()
	getUser := Wrap(cache, svc.GetUser)
	updateUser := Invalidate(cache, svc.UpdateUser, svc.GetUser)
	ctx := context.Background()

	_, _ = getUser(ctx, 7)
	_, _ = updateUser(ctx, 7, Kwargs{"name": "Updated"})

	// the mutator's keyword arguments end up in the key, so the read entry survives
	stale, _ := getUser(ctx, 7)
	if stale.Name != "User_7" {
		t.Fatalf("Expected stale entry to remain, got %s", stale.Name)
	}
}

func TestInvalidateSkipsDeleteOnMutatorError(t *testing.T) {
	cache := newTestCache(t)
	svc := newUserService()
	updateUser := Invalidate(cache, svc.UpdateUser, svc.GetUser, MapArgs(firstArg))
	ctx := context.Background()

	key := testPackage + ".(*userService).GetUser:(-1,):{}"
	if err := cache.Set(ctx, key, user{ID: -1}, time.Minute); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	if _, err := updateUser(ctx, -1, nil); err != errNotFound {
		t.Fatalf("Expected the mutator's error, got %v", err)
	}

	if ok, _ := cache.Has(ctx, key); !ok {
		t.Fatal("Expected entry to survive a failed mutation")
	}
	if got := cache.Stats().Invalidations(); got != 0 {
		t.Fatalf("Expected no invalidations, got %d", got)
	}
}

func TestInvalidateAbsentKey(t *testing.T) {
	cache := newTestCache(t)
	svc := newUserService()
	updateUser := Invalidate(cache, svc.UpdateUser, svc.GetUser, MapArgs(firstArg))

	if _, err := updateUser(context.Background(), 99, nil); err != nil {
		t.Fatalf("Expected deleting an absent key to succeed, got %v", err)
	}
}

func TestInvalidateDeleteFailure(t *testing.T) {
	fs := newFaultyStore(t)
	cache := newTestCache(t, func(c *Config) { c.WithStore(fs) })
	svc := newUserService()
	updateUser := Invalidate(cache, svc.UpdateUser, svc.GetUser, MapArgs(firstArg))

	boom := errors.New("broken pipe")
	fs.fail(nil, nil, boom)

	_, err := updateUser(context.Background(), 3, Kwargs{"name": "X"})
	assertBackendError(t, err, OpDelete, boom)

	if svc.count("UpdateUser") != 1 {
		t.Fatal("Expected the mutation to have run")
	}
	svc.mu.Lock()
	name := svc.users[3].Name
	svc.mu.Unlock()
	if name != "X" {
		t.Fatalf("Expected the mutation not to be rolled back, got %q", name)
	}
}

func TestInvalidateDeleteFailureWithoutErrorResultPanics(t *testing.T) {
	fs := newFaultyStore(t)
	cache := newTestCache(t, func(c *Config) { c.WithStore(fs) })

	touch := Invalidate(cache, func(id int) int { return id }, "users.get")
	fs.fail(nil, nil, errors.New("broken pipe"))

	recovered := mustPanic(t, func() { touch(1) })
	if err, ok := recovered.(error); !ok || !errors.Is(err, ErrBackend) {
		t.Fatalf("Expected backend error panic, got %v", recovered)
	}
}

func TestInvalidateByIdentityString(t *testing.T) {
	cache := newTestCache(t)
	svc := newUserService()
	getUser := Wrap(cache, svc.GetUser, WithName("users.get"))
	updateUser := Invalidate(cache, svc.UpdateUser, "users.get", MapArgs(firstArg))
	ctx := context.Background()

	_, _ = getUser(ctx, 1)
	if ok, _ := cache.Has(ctx, "users.get:(1,):{}"); !ok {
		t.Fatal("Expected entry under the explicit identity")
	}

	_, _ = updateUser(ctx, 1, Kwargs{"name": "Renamed"})
	if ok, _ := cache.Has(ctx, "users.get:(1,):{}"); ok {
		t.Fatal("Expected entry to be deleted")
	}
}

func TestInvalidateMethodExpressions(t *testing.T) {
	cache := newTestCache(t)
	svc := newUserService()
	getUser := Wrap(cache, (*userService).GetUser, WithReceiver())
	updateUser := Invalidate(cache, (*userService).UpdateUser, (*userService).GetUser, WithReceiver(), MapArgs(firstArg))
	ctx := context.Background()

	_, _ = getUser(svc, ctx, 2)
	if _, err := updateUser(svc, ctx, 2, Kwargs{"name": "Two"}); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	u, _ := getUser(svc, ctx, 2)
	if u.Name != "Two" {
		t.Fatalf("Expected fresh value, got %s", u.Name)
	}
}

func TestInvalidateRejectsBadTargets(t *testing.T) {
	cache := newTestCache(t)
	svc := newUserService()
	wrapped := Wrap(cache, svc.GetUser)

	tests := []struct {
		name string
		call func()
	}{
		{"wrapped target", func() { Invalidate(cache, svc.UpdateUser, wrapped) }},
		{"empty identity", func() { Invalidate(cache, svc.UpdateUser, "") }},
		{"nil target", func() { Invalidate(cache, svc.UpdateUser, nil) }},
		{"mutator not a function", func() { Invalidate(cache, "update", svc.GetUser) }},
		{"variadic mutator", func() { Invalidate(cache, func(ids ...int) error { return nil }, svc.GetUser) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mustPanic(t, tt.call)
		})
	}
}

func TestInvalidateRunsHooks(t *testing.T) {
	hooks := &Hooks{}
	var invalidated []string
	hooks.AddOnInvalidate(func(ctx context.Context, key string, args Args) {
		invalidated = append(invalidated, key)
	})

	cache := newTestCache(t, func(c *Config) { c.WithHooks(hooks) })
	svc := newUserService()
	updateUser := Invalidate(cache, svc.UpdateUser, "users.get", MapArgs(firstArg))

	_, _ = updateUser(context.Background(), 5, nil)

	if len(invalidated) != 1 || invalidated[0] != "users.get:(5,):{}" {
		t.Fatalf("Unexpected invalidation events %v", invalidated)
	}
}
