package serializer

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"reflect"

	"github.com/vmihailenco/msgpack/v5"
)

const formatMsgpack = "msgpack"

// Msgpack is the full-fidelity strategy. It encodes arbitrary value graphs,
// custom types and non-string map keys included. Payloads are only meant to
// be read back by this package.
//
// Statically typed positions always decode to their declared type. Values
// held in empty-interface positions decode to int for integers, keep their
// float, string, bool and []byte types, and come back as []any for
// sequences and map[string]any (map[any]any when a key is not a string) for
// mappings. Custom types held in interface positions keep their concrete
// type only when registered with RegisterType.
type Msgpack struct{}

// Name returns "msgpack"
func (Msgpack) Name() string {
	return formatMsgpack
}

// Serialize encodes v. Channels, functions, values that contain themselves
// and other values without a msgpack representation fail with a
// SerializationError.
func (Msgpack) Serialize(v any) ([]byte, error) {
	if err := checkAcyclic(reflect.ValueOf(v), make(map[visit]bool)); err != nil {
		return nil, newError(formatMsgpack, OpSerialize, v, err)
	}

	data, err := msgpack.Marshal(v)
	if err != nil {
		return nil, newError(formatMsgpack, OpSerialize, v, err)
	}
	return data, nil
}

// Deserialize decodes data into target
func (Msgpack) Deserialize(data []byte, target any) error {
	if err := checkTarget(formatMsgpack, target); err != nil {
		return err
	}

	dec := msgpack.NewDecoder(bytes.NewReader(data))
	dec.SetMapDecoder(decodeDynamicMap)
	if err := dec.Decode(target); err != nil {
		return newError(formatMsgpack, OpDeserialize, target, err)
	}

	normalize(reflect.ValueOf(target), msgpackInt)
	return nil
}

// decodeDynamicMap decodes mappings held in interface positions. Mappings
// with string keys become map[string]any, any other becomes map[any]any.
func decodeDynamicMap(d *msgpack.Decoder) (any, error) {
	m, err := d.DecodeUntypedMap()
	if err != nil {
		return nil, err
	}

	out := make(map[string]any, len(m))
	for k, v := range m {
		name, ok := k.(string)
		if !ok {
			return m, nil
		}
		out[name] = v
	}
	return out, nil
}

// msgpackInt widens the compact integer types msgpack picks for interface
// positions back to int.
func msgpackInt(x any) any {
	switch n := x.(type) {
	case int8:
		return int(n)
	case int16:
		return int(n)
	case int32:
		return int(n)
	case int64:
		return int(n)
	case uint8:
		return int(n)
	case uint16:
		return int(n)
	case uint32:
		return int(n)
	case uint64:
		if n <= math.MaxInt {
			return int(n)
		}
	}
	return x
}

// RegisterType makes Msgpack restore values of value's type when they are
// held in interface positions, such as an any field holding a *Meta.
//
// value must be a struct or a pointer to a struct, of exactly the type that
// is stored: T and *T are registered separately. Once *T is registered, T
// values are only encodable where they are addressable. Only exported fields
// are encoded. extID must be unique within the process; negative ids are
// reserved by msgpack. Register types at init time, before any cache use.
func RegisterType(extID int8, value any) error {
	if extID < 0 {
		return fmt.Errorf("msgpack: extension id %d is reserved", extID)
	}

	typ := reflect.TypeOf(value)
	if typ == nil {
		return errors.New("msgpack: cannot register nil")
	}
	structType := typ
	if typ.Kind() == reflect.Pointer {
		structType = typ.Elem()
	}
	if structType.Kind() != reflect.Struct {
		return fmt.Errorf("msgpack: cannot register %s, want a struct or pointer to struct", typ)
	}

	// The payload is encoded through an unnamed copy of the struct so the
	// registered encoder is not re-entered for the value itself.
	var (
		index  []int
		fields []reflect.StructField
	)
	for i := 0; i < structType.NumField(); i++ {
		f := structType.Field(i)
		if !f.IsExported() {
			continue
		}
		index = append(index, i)
		fields = append(fields, reflect.StructField{Name: f.Name, Type: f.Type, Tag: f.Tag})
	}
	shadow := reflect.StructOf(fields)

	msgpack.RegisterExtEncoder(extID, value, func(_ *msgpack.Encoder, v reflect.Value) ([]byte, error) {
		if v.Kind() == reflect.Pointer {
			v = v.Elem()
		}
		s := reflect.New(shadow).Elem()
		for j, i := range index {
			s.Field(j).Set(v.Field(i))
		}
		return msgpack.Marshal(s.Interface())
	})

	msgpack.RegisterExtDecoder(extID, value, func(d *msgpack.Decoder, v reflect.Value, _ int) error {
		s := reflect.New(shadow).Elem()
		if err := d.DecodeValue(s); err != nil {
			return err
		}
		if v.Kind() == reflect.Pointer {
			v = v.Elem()
		}
		for j, i := range index {
			v.Field(i).Set(s.Field(j))
		}
		return nil
	})

	return nil
}

var _ Serializer = Msgpack{}
