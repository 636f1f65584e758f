package rcache

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/vnykmshr/rcache-go/pkg/serializer"
)

// expensiveComputation simulates CPU-bound work
func expensiveComputation(n int) (int, error) {
	result := 0
	for i := 0; i < 1000; i++ {
		result += i * n
	}
	return result, nil
}

func BenchmarkWrapHit(b *testing.B) {
	cache, _ := New(NewDefaultConfig())
	defer cache.Close()

	wrapped := Wrap(cache, expensiveComputation)
	_, _ = wrapped(42)

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = wrapped(42)
	}
}

func BenchmarkWrapMiss(b *testing.B) {
	cache, _ := New(NewDefaultConfig())
	defer cache.Close()

	wrapped := Wrap(cache, expensiveComputation)

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = wrapped(i)
	}
}

func BenchmarkWrapSerializers(b *testing.B) {
	type profile struct {
		ID    int
		Name  string
		Tags  []string
		Score float64
	}
	load := func(ctx context.Context, id int) (profile, error) {
		return profile{ID: id, Name: fmt.Sprintf("User_%d", id), Tags: []string{"a", "b", "c"}, Score: 0.5}, nil
	}

	for _, s := range []serializer.Serializer{serializer.JSON{}, serializer.Msgpack{}} {
		b.Run(s.Name(), func(b *testing.B) {
			cache, _ := New(NewDefaultConfig())
			defer cache.Close()

			wrapped := Wrap(cache, load, WithName("profile"), WithSerializer(s), WithTTL(time.Hour))
			_, _ = wrapped(context.Background(), 1)

			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				_, _ = wrapped(context.Background(), 1)
			}
		})
	}
}

func BenchmarkBuildKey(b *testing.B) {
	args := Args{
		Positional: []any{42, "model_a", []float64{0.5, 1.5, 2.5}},
		Keyword:    Kwargs{"limit": 10, "sort": "asc"},
	}

	for _, h := range []KeyHashing{KeyHashNone, KeyHashSHA256, KeyHashXXH64} {
		b.Run(h.String(), func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				_ = BuildHashedKey("svc.Predict", args, h)
			}
		})
	}
}
