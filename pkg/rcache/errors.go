package rcache

import (
	"errors"
	"fmt"

	"github.com/vnykmshr/rcache-go/pkg/serializer"
)

// Store operations reported in BackendError.Op
const (
	OpGet    = "get"
	OpSet    = "set"
	OpDelete = "delete"
)

// ErrBackend matches every *BackendError via errors.Is
var ErrBackend = errors.New("rcache: backend failure")

// ErrSerialization matches every *SerializationError via errors.Is
var ErrSerialization = serializer.ErrSerialization

// SerializationError reports a value that could not be encoded or a payload
// that could not be decoded
type SerializationError = serializer.SerializationError

// BackendError reports a failed store operation. A corrupt or unreachable
// store is never reported as a cache miss.
type BackendError struct {
	Op  string
	Key string
	Err error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("rcache: %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *BackendError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrBackend
func (e *BackendError) Is(target error) bool {
	return target == ErrBackend
}
