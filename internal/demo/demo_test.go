package demo

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/vnykmshr/rcache-go/pkg/rcache"
)

const identityPrefix = "github.com/vnykmshr/rcache-go/internal/demo.(*Backend)."

func newService(t *testing.T) (*Service, *Backend, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	cache, err := rcache.New(rcache.NewRedisConfigWithClient(client))
	if err != nil {
		t.Fatalf("Failed to create cache: %v", err)
	}
	t.Cleanup(func() { cache.Close() })

	backend := NewBackend(0, 0)
	svc, err := NewService(cache, backend, TTLs{Fast: 300 * time.Second, Slow: time.Hour})
	if err != nil {
		t.Fatalf("Failed to create service: %v", err)
	}
	return svc, backend, mr
}

func TestGetUserCachedAsJSON(t *testing.T) {
	svc, backend, mr := newService(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		u, err := svc.GetUser(ctx, 7)
		if err != nil {
			t.Fatalf("GetUser failed: %v", err)
		}
		if u.Name != "User_7" {
			t.Fatalf("Unexpected user %+v", u)
		}
	}

	if users, _, _ := backend.Calls(); users != 1 {
		t.Fatalf("Expected 1 backend call, got %d", users)
	}

	key := rcache.DefaultKeyPrefix + identityPrefix + "GetUser:(7,):{}"
	raw, err := mr.Get(key)
	if err != nil {
		t.Fatalf("Expected %s in Redis: %v", key, err)
	}
	if raw != `{"id":7,"name":"User_7","email":"user7@example.com"}` {
		t.Fatalf("Unexpected payload %s", raw)
	}
	if ttl := mr.TTL(key); ttl != 300*time.Second {
		t.Fatalf("Expected fast TTL, got %v", ttl)
	}
}

func TestUpdateUserInvalidatesLookup(t *testing.T) {
	svc, backend, mr := newService(t)
	ctx := context.Background()

	_, _ = svc.GetUser(ctx, 7)
	updated, err := svc.UpdateUser(ctx, 7, rcache.Kwargs{"name": "X"})
	if err != nil {
		t.Fatalf("UpdateUser failed: %v", err)
	}
	if updated.Name != "X" {
		t.Fatalf("Expected updated name, got %s", updated.Name)
	}

	if mr.Exists(rcache.DefaultKeyPrefix + identityPrefix + "GetUser:(7,):{}") {
		t.Fatal("Expected lookup entry to be deleted")
	}

	u, _ := svc.GetUser(ctx, 7)
	if u.Name != "X" {
		t.Fatalf("Expected fresh lookup, got %+v", u)
	}
	if users, _, updates := backend.Calls(); users != 2 || updates != 1 {
		t.Fatalf("Unexpected call counts users=%d updates=%d", users, updates)
	}
}

func TestRunPredictionCachedWithMsgpack(t *testing.T) {
	svc, backend, mr := newService(t)
	ctx := context.Background()

	first, err := svc.RunPrediction(ctx, "model_a", []float64{1, 2, 3})
	if err != nil {
		t.Fatalf("RunPrediction failed: %v", err)
	}
	second, err := svc.RunPrediction(ctx, "model_a", []float64{1, 2, 3})
	if err != nil {
		t.Fatalf("RunPrediction failed: %v", err)
	}

	if !reflect.DeepEqual(first, second) {
		t.Fatalf("Expected cached prediction %+v, got %+v", first, second)
	}
	if second.Features[2] != 3 || second.Prediction[1] != 1 {
		t.Fatalf("Unexpected prediction %+v", second)
	}
	if _, predictions, _ := backend.Calls(); predictions != 1 {
		t.Fatalf("Expected 1 backend call, got %d", predictions)
	}

	key := rcache.DefaultKeyPrefix + identityPrefix + `RunPrediction:("model_a", [1, 2, 3]):{}`
	if ttl := mr.TTL(key); ttl != time.Hour {
		t.Fatalf("Expected slow TTL on %s, got %v", key, ttl)
	}
}

func TestGetUserErrorsAreNotCached(t *testing.T) {
	svc, backend, _ := newService(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := svc.GetUser(ctx, 0); err == nil {
			t.Fatal("Expected error for invalid id")
		}
	}
	if users, _, _ := backend.Calls(); users != 2 {
		t.Fatalf("Expected both calls to reach the backend, got %d", users)
	}
}

func TestGetUserAsync(t *testing.T) {
	svc, _, _ := newService(t)

	res := <-svc.GetUserAsync(context.Background(), 3)
	if res.Err != nil || res.Val.ID != 3 {
		t.Fatalf("Unexpected async result %+v", res)
	}
}

func TestBackendHonorsCancellation(t *testing.T) {
	backend := NewBackend(time.Second, time.Second)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	if _, err := backend.RunPrediction(ctx, "m", nil); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Expected deadline exceeded, got %v", err)
	}
}
