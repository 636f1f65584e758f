package serializer

import (
	"errors"
	"math"
	"reflect"
	"strings"
	"testing"

	"github.com/vnykmshr/rcache-go/pkg/compression"
)

type profile struct {
	ID    int      `json:"id"`
	Name  string   `json:"name"`
	Email string   `json:"email"`
	Tags  []string `json:"tags,omitempty"`
}

type withCallback struct {
	Name     string
	Callback func()
}

type modelOutput struct {
	ModelID    string
	Prediction []float64
	Confidence float64
	Layers     map[int]*layer
	Meta       any
}

type layer struct {
	Name    string
	Weights [3]float32
	Next    *layer
}

func roundTrip[T any](t *testing.T, s Serializer, v T) T {
	t.Helper()

	data, err := s.Serialize(v)
	if err != nil {
		t.Fatalf("%s: Serialize(%T) failed: %v", s.Name(), v, err)
	}

	var out T
	if err := s.Deserialize(data, &out); err != nil {
		t.Fatalf("%s: Deserialize(%T) failed: %v", s.Name(), v, err)
	}
	return out
}

func TestJSONRoundTrip(t *testing.T) {
	s := JSON{}

	if got := roundTrip(t, s, 42); got != 42 {
		t.Fatalf("Expected 42, got %v", got)
	}
	if got := roundTrip(t, s, "héllo"); got != "héllo" {
		t.Fatalf("Expected héllo, got %q", got)
	}
	if got := roundTrip(t, s, true); !got {
		t.Fatal("Expected true")
	}
	if got := roundTrip(t, s, 2.5); got != 2.5 {
		t.Fatalf("Expected 2.5, got %v", got)
	}

	user := profile{ID: 7, Name: "User_7", Email: "user7@example.com", Tags: []string{"a", "b"}}
	if got := roundTrip(t, s, user); !reflect.DeepEqual(got, user) {
		t.Fatalf("Expected %+v, got %+v", user, got)
	}

	nested := map[string][]map[string]string{"rows": {{"k": "v"}, {"x": "y"}}}
	if got := roundTrip(t, s, nested); !reflect.DeepEqual(got, nested) {
		t.Fatalf("Expected %v, got %v", nested, got)
	}

	var nilPtr *profile
	if got := roundTrip(t, s, nilPtr); got != nil {
		t.Fatalf("Expected nil pointer, got %+v", got)
	}
}

func TestJSONIsReadable(t *testing.T) {
	data, err := JSON{}.Serialize(profile{ID: 7, Name: "User_7", Email: "user7@example.com"})
	if err != nil {
		t.Fatalf("Serialize failed: %v", err)
	}

	want := `{"id":7,"name":"User_7","email":"user7@example.com"}`
	if string(data) != want {
		t.Fatalf("Expected %s, got %s", want, data)
	}
}

func TestJSONRejectsUnsupportedValues(t *testing.T) {
	tests := []struct {
		name  string
		value any
	}{
		{"func", func() {}},
		{"channel", make(chan int)},
		{"complex", complex(1, 2)},
		{"nan", math.NaN()},
		{"inf", math.Inf(1)},
		{"int keyed map", map[int]string{1: "a"}},
		{"struct with func field", withCallback{Name: "x", Callback: func() {}}},
		{"nested channel", []any{1, map[string]any{"c": make(chan struct{})}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := JSON{}.Serialize(tt.value)
			if err == nil {
				t.Fatalf("Expected error serializing %T", tt.value)
			}

			var serr *SerializationError
			if !errors.As(err, &serr) {
				t.Fatalf("Expected *SerializationError, got %T", err)
			}
			if serr.Op != OpSerialize || serr.Format != "json" {
				t.Fatalf("Unexpected error fields: %+v", serr)
			}
			if !errors.Is(err, ErrSerialization) {
				t.Fatal("Expected errors.Is(err, ErrSerialization)")
			}
		})
	}
}

func TestJSONRejectsCycles(t *testing.T) {
	type node struct {
		Next *node
	}
	n := &node{}
	n.Next = n

	if _, err := (JSON{}).Serialize(n); !errors.Is(err, ErrSerialization) {
		t.Fatalf("Expected serialization error for cyclic value, got %v", err)
	}
}

func TestJSONSkipsIgnoredFields(t *testing.T) {
	type partial struct {
		Name     string
		Callback func() `json:"-"`
		hidden   chan int
	}

	if _, err := (JSON{}).Serialize(partial{Name: "ok", Callback: func() {}, hidden: make(chan int)}); err != nil {
		t.Fatalf("Expected ignored and unexported fields to be skipped, got %v", err)
	}
}

func TestJSONDeserializeMalformed(t *testing.T) {
	var out map[string]any
	err := JSON{}.Deserialize([]byte("{not json"), &out)
	if !errors.Is(err, ErrSerialization) {
		t.Fatalf("Expected ErrSerialization, got %v", err)
	}

	var serr *SerializationError
	if !errors.As(err, &serr) || serr.Op != OpDeserialize {
		t.Fatalf("Expected deserialize SerializationError, got %v", err)
	}
}

func TestDeserializeRequiresPointer(t *testing.T) {
	for _, s := range []Serializer{JSON{}, Msgpack{}} {
		var out int
		if err := s.Deserialize([]byte("1"), out); !errors.Is(err, ErrSerialization) {
			t.Fatalf("%s: expected error for non-pointer target, got %v", s.Name(), err)
		}
	}
}

func TestMsgpackRoundTripCustomTypes(t *testing.T) {
	s := Msgpack{}

	out := modelOutput{
		ModelID:    "model_a",
		Prediction: []float64{0.5, 1, 1.5},
		Confidence: 0.95,
		Layers: map[int]*layer{
			1: {Name: "dense", Weights: [3]float32{1, 2, 3}, Next: &layer{Name: "softmax"}},
		},
		Meta: "v1",
	}

	got := roundTrip(t, s, out)
	if !reflect.DeepEqual(got, out) {
		t.Fatalf("Expected %+v, got %+v", out, got)
	}

	keyed := map[int]string{1: "a", 2: "b"}
	if got := roundTrip(t, s, keyed); !reflect.DeepEqual(got, keyed) {
		t.Fatalf("Expected %v, got %v", keyed, got)
	}

	ptr := &profile{ID: 9, Name: "n"}
	if got := roundTrip(t, s, ptr); !reflect.DeepEqual(got, ptr) {
		t.Fatalf("Expected %+v, got %+v", ptr, got)
	}
}

func TestMsgpackRejectsUnsupportedValues(t *testing.T) {
	for _, v := range []any{func() {}, make(chan int)} {
		_, err := Msgpack{}.Serialize(v)
		if !errors.Is(err, ErrSerialization) {
			t.Fatalf("Expected ErrSerialization for %T, got %v", v, err)
		}
	}
}

func TestMsgpackDeserializeCorrupt(t *testing.T) {
	var out modelOutput
	if err := (Msgpack{}).Deserialize([]byte{0xc1}, &out); !errors.Is(err, ErrSerialization) {
		t.Fatalf("Expected ErrSerialization for corrupt payload, got %v", err)
	}
}

func TestCompressedRoundTrip(t *testing.T) {
	s, err := NewCompressed(Msgpack{}, compression.NewDefaultConfig().WithMinSize(128))
	if err != nil {
		t.Fatalf("NewCompressed failed: %v", err)
	}
	if s.Name() != "msgpack+gzip" {
		t.Fatalf("Unexpected name %q", s.Name())
	}

	big := make([]float64, 2000)
	for i := range big {
		big[i] = float64(i%10) * 0.5
	}
	value := modelOutput{ModelID: strings.Repeat("m", 10), Prediction: big, Confidence: 0.9}

	data, err := s.Serialize(value)
	if err != nil {
		t.Fatalf("Serialize failed: %v", err)
	}
	plain, _ := Msgpack{}.Serialize(value)
	if len(data) >= len(plain) {
		t.Fatalf("Expected compressed payload smaller than %d, got %d", len(plain), len(data))
	}

	var got modelOutput
	if err := s.Deserialize(data, &got); err != nil {
		t.Fatalf("Deserialize failed: %v", err)
	}
	if !reflect.DeepEqual(got, value) {
		t.Fatal("Round trip through compressed serializer changed the value")
	}

	if err := s.Deserialize([]byte{0x09}, &got); !errors.Is(err, ErrSerialization) {
		t.Fatalf("Expected ErrSerialization for bad frame, got %v", err)
	}
}

func TestCompressedPropagatesInnerErrors(t *testing.T) {
	s, err := NewCompressed(JSON{}, nil)
	if err != nil {
		t.Fatalf("NewCompressed failed: %v", err)
	}

	if _, err := s.Serialize(make(chan int)); !errors.Is(err, ErrSerialization) {
		t.Fatalf("Expected inner serialization error, got %v", err)
	}
}

type annotation struct {
	Name   string
	Score  any
	Next   *annotation
	hidden int
}

type label struct {
	Key, Value string
}

func TestJSONDynamicValues(t *testing.T) {
	s := JSON{}

	doc := map[string]any{
		"id":      7,
		"name":    "User",
		"score":   2.5,
		"big":     1e20,
		"roles":   []any{"admin", 3, nil},
		"profile": map[string]any{"age": 41, "active": true},
	}
	if got := roundTrip(t, s, doc); !reflect.DeepEqual(got, doc) {
		t.Fatalf("Expected %#v, got %#v", doc, got)
	}

	type envelope struct {
		Kind string
		Data any
	}
	env := envelope{Kind: "count", Data: []any{1, map[string]any{"n": -2}}}
	if got := roundTrip(t, s, env); !reflect.DeepEqual(got, env) {
		t.Fatalf("Expected %#v, got %#v", env, got)
	}

	// JSON does not tell integral floats from integers.
	var whole any = 2.0
	if got := roundTrip(t, s, whole); got != 2 {
		t.Fatalf("Expected int 2, got %#v", got)
	}
}

func TestJSONRejectsTrailingData(t *testing.T) {
	var out int
	if err := (JSON{}).Deserialize([]byte("1 2"), &out); !errors.Is(err, ErrSerialization) {
		t.Fatalf("Expected ErrSerialization for trailing data, got %v", err)
	}
}

func TestSelfReferencingContainersAreRejected(t *testing.T) {
	m := map[string]any{"n": 1}
	m["self"] = m

	s := []any{1, nil}
	s[1] = s

	n := &layer{Name: "loop"}
	n.Next = n

	for _, ser := range []Serializer{JSON{}, Msgpack{}} {
		for _, v := range []any{m, s, n} {
			_, err := ser.Serialize(v)
			if !errors.Is(err, ErrSerialization) || !errors.Is(err, errCycle) {
				t.Fatalf("%s: expected cycle error for %T, got %v", ser.Name(), v, err)
			}
		}
	}

	shared := []int{1, 2}
	if _, err := (Msgpack{}).Serialize([]any{shared, shared, shared[:1]}); err != nil {
		t.Fatalf("Expected repeated values to be accepted, got %v", err)
	}
}

func TestMsgpackDynamicValues(t *testing.T) {
	s := Msgpack{}

	doc := map[string]any{
		"id":      7,
		"big":     int(1) << 40,
		"neg":     -300,
		"score":   2.5,
		"ratio":   float32(0.5),
		"raw":     []byte{1, 2},
		"roles":   []any{"admin", 3},
		"profile": map[string]any{"age": 41, "active": true},
	}
	if got := roundTrip(t, s, doc); !reflect.DeepEqual(got, doc) {
		t.Fatalf("Expected %#v, got %#v", doc, got)
	}

	keyed := map[string]any{"scores": map[int]string{1: "a"}}
	got := roundTrip(t, s, keyed)
	want := map[any]any{1: "a"}
	if !reflect.DeepEqual(got["scores"], want) {
		t.Fatalf("Expected %#v, got %#v", want, got["scores"])
	}
}

func TestMsgpackRegisteredTypes(t *testing.T) {
	if err := RegisterType(10, &annotation{}); err != nil {
		t.Fatalf("RegisterType failed: %v", err)
	}
	if err := RegisterType(11, label{}); err != nil {
		t.Fatalf("RegisterType failed: %v", err)
	}

	out := modelOutput{
		ModelID: "model_a",
		Meta: &annotation{
			Name:  "x",
			Score: 3,
			Next:  &annotation{Name: "y", Score: []any{label{Key: "k", Value: "v"}}},
		},
	}
	if got := roundTrip(t, Msgpack{}, out); !reflect.DeepEqual(got, out) {
		t.Fatalf("Expected %#v, got %#v", out, got)
	}

	// Unregistered types still decode, as plain mappings.
	type plain struct{ Name string }
	got := roundTrip(t, Msgpack{}, modelOutput{Meta: plain{Name: "p"}})
	if m, ok := got.Meta.(map[string]any); !ok || m["Name"] != "p" {
		t.Fatalf("Expected map for unregistered type, got %#v", got.Meta)
	}
}

func TestRegisterTypeRejectsInvalidTypes(t *testing.T) {
	tests := []struct {
		name  string
		id    int8
		value any
	}{
		{"nil", 20, nil},
		{"scalar", 21, 42},
		{"pointer to scalar", 22, new(int)},
		{"reserved id", -1, label{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := RegisterType(tt.id, tt.value); err == nil {
				t.Fatalf("Expected error registering %T", tt.value)
			}
		})
	}
}
