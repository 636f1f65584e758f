// Package demo is a mock service with a cheap user lookup, an expensive
// model prediction and a user update that invalidates the lookup. It shows
// how rcache wraps the methods of an ordinary backend.
package demo

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vnykmshr/rcache-go/pkg/compression"
	"github.com/vnykmshr/rcache-go/pkg/rcache"
	"github.com/vnykmshr/rcache-go/pkg/serializer"
)

// User is a profile returned by the lookup. It is stored as JSON.
type User struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Prediction is the output of a model run. Its integer-keyed map cannot be
// represented in JSON, so it is stored with msgpack.
type Prediction struct {
	ModelID    string
	Prediction []float64
	Confidence float64
	Features   map[int]float64
}

// Backend simulates slow upstream calls
type Backend struct {
	// UserLatency and PredictionLatency are slept on every uncached call
	UserLatency       time.Duration
	PredictionLatency time.Duration

	mu    sync.Mutex
	users map[int]User

	userCalls       atomic.Int64
	predictionCalls atomic.Int64
	updateCalls     atomic.Int64
}

// NewBackend returns a backend with the given latencies
func NewBackend(userLatency, predictionLatency time.Duration) *Backend {
	return &Backend{
		UserLatency:       userLatency,
		PredictionLatency: predictionLatency,
		users:             make(map[int]User),
	}
}

// GetUser returns the profile for id
func (b *Backend) GetUser(ctx context.Context, id int) (User, error) {
	b.userCalls.Add(1)
	if err := sleep(ctx, b.UserLatency); err != nil {
		return User{}, err
	}
	if id <= 0 {
		return User{}, fmt.Errorf("invalid user id %d", id)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	return b.userLocked(id), nil
}

// UpdateUser applies the "name" and "email" fields and returns the result
func (b *Backend) UpdateUser(ctx context.Context, id int, fields rcache.Kwargs) (User, error) {
	b.updateCalls.Add(1)
	if err := sleep(ctx, b.UserLatency); err != nil {
		return User{}, err
	}
	if id <= 0 {
		return User{}, fmt.Errorf("invalid user id %d", id)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	u := b.userLocked(id)
	if name, ok := fields["name"].(string); ok {
		u.Name = name
	}
	if email, ok := fields["email"].(string); ok {
		u.Email = email
	}
	b.users[id] = u
	return u, nil
}

// RunPrediction scales the input by one half
func (b *Backend) RunPrediction(ctx context.Context, modelID string, input []float64) (Prediction, error) {
	b.predictionCalls.Add(1)
	if err := sleep(ctx, b.PredictionLatency); err != nil {
		return Prediction{}, err
	}

	out := Prediction{
		ModelID:    modelID,
		Prediction: make([]float64, len(input)),
		Confidence: 0.95,
		Features:   make(map[int]float64, len(input)),
	}
	for i, x := range input {
		out.Prediction[i] = x * 0.5
		out.Features[i] = x
	}
	return out, nil
}

// Calls reports how often each operation reached the backend
func (b *Backend) Calls() (users, predictions, updates int64) {
	return b.userCalls.Load(), b.predictionCalls.Load(), b.updateCalls.Load()
}

func (b *Backend) userLocked(id int) User {
	if u, ok := b.users[id]; ok {
		return u
	}
	return User{ID: id, Name: fmt.Sprintf("User_%d", id), Email: fmt.Sprintf("user%d@example.com", id)}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TTLs selects how long each kind of result is kept
type TTLs struct {
	Fast time.Duration
	Slow time.Duration
}

// Service exposes the backend through the cache
type Service struct {
	GetUser       func(ctx context.Context, id int) (User, error)
	UpdateUser    func(ctx context.Context, id int, fields rcache.Kwargs) (User, error)
	RunPrediction func(ctx context.Context, modelID string, input []float64) (Prediction, error)

	// GetUserAsync delivers GetUser on a channel
	GetUserAsync func(ctx context.Context, id int) <-chan rcache.Result[User]
}

// NewService wraps backend: lookups use JSON and the fast TTL, predictions
// use compressed msgpack and the slow TTL, updates invalidate the lookup for
// the same id
func NewService(cache *rcache.Cache, backend *Backend, ttls TTLs) (*Service, error) {
	predictions, err := serializer.NewCompressed(serializer.Msgpack{}, compression.NewDefaultConfig())
	if err != nil {
		return nil, err
	}

	s := &Service{
		GetUser: rcache.Wrap(cache, backend.GetUser,
			rcache.WithTTL(ttls.Fast),
			rcache.WithSerializer(serializer.JSON{}),
		),
		RunPrediction: rcache.Wrap(cache, backend.RunPrediction,
			rcache.WithTTL(ttls.Slow),
			rcache.WithSerializer(predictions),
			rcache.WithInflightDedup(),
		),
		UpdateUser: rcache.Invalidate(cache, backend.UpdateUser, backend.GetUser,
			rcache.MapArgs(userIDOnly),
		),
	}
	s.GetUserAsync = rcache.Async(s.GetUser)
	return s, nil
}

// userIDOnly keeps the id and drops the update fields so the key matches GetUser
func userIDOnly(args rcache.Args) rcache.Args {
	if len(args.Positional) == 0 {
		return rcache.Args{}
	}
	return rcache.Args{Positional: args.Positional[:1]}
}
