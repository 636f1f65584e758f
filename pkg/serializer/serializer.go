// Package serializer converts cached results to and from bytes.
//
// Two strategies are provided. JSON is compact and readable by any language,
// but only accepts values built from null, booleans, numbers, strings,
// sequences and string-keyed mappings (structs count as mappings). Msgpack
// handles arbitrary Go value graphs including custom types, at the cost of
// an opaque binary payload. Compressed decorates either one.
package serializer

import (
	"errors"
	"fmt"
	"reflect"
)

// ErrSerialization matches every *SerializationError with errors.Is
var ErrSerialization = errors.New("serialization failed")

// Serializer converts values to bytes and back.
//
// Deserialize decodes into target, which must be a non-nil pointer to the
// type that was serialized.
type Serializer interface {
	Name() string
	Serialize(v any) ([]byte, error)
	Deserialize(data []byte, target any) error
}

// Operation names used in SerializationError
const (
	OpSerialize   = "serialize"
	OpDeserialize = "deserialize"
)

// SerializationError reports a value a strategy cannot encode, or a payload
// it cannot decode.
type SerializationError struct {
	Format string
	Op     string
	Type   string
	Err    error
}

func (e *SerializationError) Error() string {
	if e.Type == "" {
		return fmt.Sprintf("%s %s: %v", e.Format, e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s %s: %v", e.Format, e.Op, e.Type, e.Err)
}

func (e *SerializationError) Unwrap() error {
	return e.Err
}

// Is reports ErrSerialization as a match
func (e *SerializationError) Is(target error) bool {
	return target == ErrSerialization
}

func newError(format, op string, v any, err error) *SerializationError {
	typeName := ""
	if v != nil {
		typeName = reflect.TypeOf(v).String()
	}
	return &SerializationError{Format: format, Op: op, Type: typeName, Err: err}
}

func checkTarget(format string, target any) error {
	rv := reflect.ValueOf(target)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return newError(format, OpDeserialize, target, errors.New("target must be a non-nil pointer"))
	}
	return nil
}
