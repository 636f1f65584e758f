package serializer

import (
	"errors"
	"fmt"
	"reflect"
)

// errCycle is wrapped when a value refers back to itself
var errCycle = errors.New("cyclic value")

// visit identifies a reference on the current path. Slices also carry their
// length so that a sub-slice sharing a backing array is not a repeat.
type visit struct {
	ptr uintptr
	typ reflect.Type
	len int
}

// enter records v on the path when it is a reference that could lead back
// to itself. It returns false when v is already on the path.
func enter(v reflect.Value, path map[visit]bool) (visit, bool, bool) {
	var key visit
	switch v.Kind() {
	case reflect.Pointer, reflect.Map:
		if v.IsNil() {
			return key, false, true
		}
		key = visit{ptr: v.Pointer(), typ: v.Type()}
	case reflect.Slice:
		if v.Len() == 0 {
			return key, false, true
		}
		key = visit{ptr: v.Pointer(), typ: v.Type(), len: v.Len()}
	default:
		return key, false, true
	}

	if path[key] {
		return key, false, false
	}
	path[key] = true
	return key, true, true
}

// checkAcyclic fails when v contains itself through a pointer, map or slice
func checkAcyclic(v reflect.Value, path map[visit]bool) error {
	if !v.IsValid() {
		return nil
	}

	key, entered, ok := enter(v, path)
	if !ok {
		return fmt.Errorf("%w through %s", errCycle, v.Type())
	}
	if entered {
		defer delete(path, key)
	}

	switch v.Kind() {
	case reflect.Pointer, reflect.Interface:
		if v.IsNil() {
			return nil
		}
		return checkAcyclic(v.Elem(), path)
	case reflect.Slice, reflect.Array:
		if isScalar(v.Type().Elem().Kind()) {
			return nil
		}
		for i := 0; i < v.Len(); i++ {
			if err := checkAcyclic(v.Index(i), path); err != nil {
				return err
			}
		}
	case reflect.Map:
		iter := v.MapRange()
		for iter.Next() {
			if err := checkAcyclic(iter.Value(), path); err != nil {
				return err
			}
		}
	case reflect.Struct:
		for i := 0; i < v.NumField(); i++ {
			if err := checkAcyclic(v.Field(i), path); err != nil {
				return err
			}
		}
	}
	return nil
}

func isScalar(k reflect.Kind) bool {
	return (k >= reflect.Bool && k <= reflect.Complex128) || k == reflect.String
}

// normalize rewrites the values held in empty-interface positions beneath v,
// which must be addressable. fix receives every concrete value found there.
func normalize(v reflect.Value, fix func(any) any) {
	switch v.Kind() {
	case reflect.Interface:
		if v.IsNil() || v.NumMethod() > 0 || !v.CanSet() {
			return
		}
		if x := normalizeAny(v.Interface(), fix); x != nil {
			v.Set(reflect.ValueOf(x))
		}
	case reflect.Pointer:
		if !v.IsNil() {
			normalize(v.Elem(), fix)
		}
	case reflect.Struct:
		for i := 0; i < v.NumField(); i++ {
			if f := v.Field(i); f.CanSet() {
				normalize(f, fix)
			}
		}
	case reflect.Slice, reflect.Array:
		if isScalar(v.Type().Elem().Kind()) {
			return
		}
		for i := 0; i < v.Len(); i++ {
			normalize(v.Index(i), fix)
		}
	case reflect.Map:
		if v.IsNil() || isScalar(v.Type().Elem().Kind()) {
			return
		}
		iter := v.MapRange()
		for iter.Next() {
			elem := reflect.New(v.Type().Elem()).Elem()
			elem.Set(iter.Value())
			normalize(elem, fix)
			v.SetMapIndex(iter.Key(), elem)
		}
	}
}

func normalizeAny(x any, fix func(any) any) any {
	switch t := x.(type) {
	case map[string]any:
		for k, e := range t {
			t[k] = normalizeAny(e, fix)
		}
		return t
	case map[any]any:
		out := make(map[any]any, len(t))
		for k, e := range t {
			out[normalizeAny(k, fix)] = normalizeAny(e, fix)
		}
		return out
	case []any:
		for i, e := range t {
			t[i] = normalizeAny(e, fix)
		}
		return t
	}

	x = fix(x)

	rv := reflect.ValueOf(x)
	switch rv.Kind() {
	case reflect.Pointer:
		if !rv.IsNil() {
			normalize(rv.Elem(), fix)
		}
	case reflect.Struct:
		cp := reflect.New(rv.Type()).Elem()
		cp.Set(rv)
		normalize(cp, fix)
		return cp.Interface()
	}
	return x
}
