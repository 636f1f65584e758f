package rcache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"reflect"
	"runtime"
	"sort"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// Kwargs carries keyword arguments. When it is the last parameter of a
// wrapped function it is rendered as the keyword part of the key.
type Kwargs map[string]any

// Args are the arguments of one call, minus any leading context.Context
type Args struct {
	Positional []any
	Keyword    Kwargs
}

// DropReceiver returns a copy without the first positional value. Used for
// method expressions, whose first argument is the receiver.
func (a Args) DropReceiver() Args {
	if len(a.Positional) == 0 {
		return a
	}
	return Args{Positional: a.Positional[1:], Keyword: a.Keyword}
}

// KeyHashing selects how the argument part of a key is written
type KeyHashing int

const (
	// KeyHashNone keeps keys readable (default)
	KeyHashNone KeyHashing = iota

	// KeyHashSHA256 replaces the arguments with their hex SHA-256
	KeyHashSHA256

	// KeyHashXXH64 replaces the arguments with their hex xxHash64
	KeyHashXXH64
)

func (h KeyHashing) String() string {
	switch h {
	case KeyHashNone:
		return "none"
	case KeyHashSHA256:
		return "sha256"
	case KeyHashXXH64:
		return "xxh64"
	default:
		return "unknown"
	}
}

// BuildKey renders identity:(positional):{keyword}. Keyword names are
// sorted, so call-site ordering does not matter.
//
//	BuildKey("svc.GetUser", Args{Positional: []any{7}}) == `svc.GetUser:(7,):{}`
func BuildKey(identity string, args Args) string {
	return identity + ":" + renderArgs(args)
}

// BuildHashedKey is BuildKey with the argument part hashed. The identity
// stays readable so keys can still be matched per operation.
func BuildHashedKey(identity string, args Args, hashing KeyHashing) string {
	rendered := renderArgs(args)

	switch hashing {
	case KeyHashSHA256:
		sum := sha256.Sum256([]byte(rendered))
		return identity + ":#" + hex.EncodeToString(sum[:])
	case KeyHashXXH64:
		return identity + ":#" + fmt.Sprintf("%016x", xxhash.Sum64String(rendered))
	default:
		return identity + ":" + rendered
	}
}

// FuncIdentity derives a stable operation identity from a function's symbol
// name. Method values and method expressions of the same method share one
// identity. Functions produced by Wrap have no symbol of their own and are
// rejected.
func FuncIdentity(fn any) (string, error) {
	v := reflect.ValueOf(fn)
	if v.Kind() != reflect.Func {
		return "", fmt.Errorf("not a function: %T", fn)
	}
	if v.IsNil() {
		return "", fmt.Errorf("nil function")
	}

	f := runtime.FuncForPC(v.Pointer())
	if f == nil {
		return "", fmt.Errorf("no symbol for %s", v.Type())
	}

	name := strings.TrimSuffix(f.Name(), "-fm")
	if strings.HasPrefix(name, "reflect.") {
		return "", fmt.Errorf("cannot derive identity for %s; pass the operation name explicitly", name)
	}

	return name, nil
}

func renderArgs(args Args) string {
	return renderTuple(args.Positional) + ":" + renderKwargs(args.Keyword)
}

func renderTuple(values []any) string {
	switch len(values) {
	case 0:
		return "()"
	case 1:
		return "(" + renderValue(values[0]) + ",)"
	}

	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = renderValue(v)
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

func renderKwargs(kw Kwargs) string {
	if len(kw) == 0 {
		return "{}"
	}

	names := make([]string, 0, len(kw))
	for name := range kw {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = strconv.Quote(name) + ": " + renderValue(kw[name])
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

func renderValue(v any) string {
	var b strings.Builder
	r := renderer{b: &b, seen: make(map[visit]bool)}
	r.render(reflect.ValueOf(v))
	return b.String()
}

var (
	stringerType = reflect.TypeOf((*fmt.Stringer)(nil)).Elem()
	errorType    = reflect.TypeOf((*error)(nil)).Elem()
)

// visit identifies a reference on the current rendering path. Slices carry
// their length so a sub-slice of the same backing array is not a repeat.
type visit struct {
	ptr uintptr
	typ reflect.Type
	len int
}

type renderer struct {
	b    *strings.Builder
	seen map[visit]bool
}

// enter marks key as being rendered. It returns false if key is already on the
// path, in which case a placeholder has been written instead.
func (r renderer) enter(key visit, placeholder string) bool {
	if r.seen[key] {
		r.b.WriteString(placeholder)
		return false
	}
	r.seen[key] = true
	return true
}

func (r renderer) render(v reflect.Value) {
	if !v.IsValid() {
		r.b.WriteString("None")
		return
	}

	switch v.Kind() {
	case reflect.Bool:
		r.b.WriteString(strconv.FormatBool(v.Bool()))
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		r.b.WriteString(strconv.FormatInt(v.Int(), 10))
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		r.b.WriteString(strconv.FormatUint(v.Uint(), 10))
	case reflect.Float32:
		r.b.WriteString(strconv.FormatFloat(v.Float(), 'g', -1, 32))
	case reflect.Float64:
		r.b.WriteString(strconv.FormatFloat(v.Float(), 'g', -1, 64))
	case reflect.String:
		r.b.WriteString(strconv.Quote(v.String()))
	case reflect.Pointer:
		if v.IsNil() {
			r.b.WriteString("None")
			return
		}
		key := visit{ptr: v.Pointer(), typ: v.Type()}
		if !r.enter(key, "<cycle>") {
			return
		}
		r.render(v.Elem())
		delete(r.seen, key)
	case reflect.Interface:
		if v.IsNil() {
			r.b.WriteString("None")
			return
		}
		r.render(v.Elem())
	case reflect.Slice:
		if v.Type().Elem().Kind() == reflect.Uint8 {
			r.b.WriteString("b" + strconv.Quote(string(v.Bytes())))
			return
		}
		if v.Len() == 0 {
			r.b.WriteString("[]")
			return
		}
		key := visit{ptr: v.Pointer(), typ: v.Type(), len: v.Len()}
		if !r.enter(key, "[...]") {
			return
		}
		r.renderList(v)
		delete(r.seen, key)
	case reflect.Array:
		r.renderList(v)
	case reflect.Map:
		if v.IsNil() {
			r.b.WriteString("{}")
			return
		}
		key := visit{ptr: v.Pointer(), typ: v.Type()}
		if !r.enter(key, "{...}") {
			return
		}
		r.renderMap(v)
		delete(r.seen, key)
	case reflect.Struct:
		r.renderStruct(v)
	case reflect.Func, reflect.Chan, reflect.UnsafePointer:
		// Addresses are not stable across processes; only the type is rendered.
		r.b.WriteString("<" + v.Type().String() + ">")
	default:
		if s, ok := describe(v); ok {
			r.b.WriteString(s)
			return
		}
		fmt.Fprintf(r.b, "%v", v)
	}
}

func (r renderer) renderList(v reflect.Value) {
	r.b.WriteByte('[')
	for i := 0; i < v.Len(); i++ {
		if i > 0 {
			r.b.WriteString(", ")
		}
		r.render(v.Index(i))
	}
	r.b.WriteByte(']')
}

func (r renderer) renderMap(v reflect.Value) {
	type pair struct{ key, value string }

	pairs := make([]pair, 0, v.Len())
	iter := v.MapRange()
	for iter.Next() {
		pairs = append(pairs, pair{
			key:   r.sub(iter.Key()),
			value: r.sub(iter.Value()),
		})
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].key < pairs[j].key })

	r.b.WriteByte('{')
	for i, p := range pairs {
		if i > 0 {
			r.b.WriteString(", ")
		}
		r.b.WriteString(p.key + ": " + p.value)
	}
	r.b.WriteByte('}')
}

func (r renderer) renderStruct(v reflect.Value) {
	t := v.Type()

	exported := make([]int, 0, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		if t.Field(i).IsExported() {
			exported = append(exported, i)
		}
	}

	// Types like time.Time keep their state private; their String form is
	// the only stable rendering available.
	if len(exported) == 0 {
		if s, ok := describe(v); ok {
			r.b.WriteString(s)
			return
		}
	}

	name := t.Name()
	if name == "" {
		name = "struct"
	}

	r.b.WriteString(name + "{")
	for n, i := range exported {
		if n > 0 {
			r.b.WriteString(", ")
		}
		r.b.WriteString(t.Field(i).Name + ": ")
		r.render(v.Field(i))
	}
	r.b.WriteByte('}')
}

func (r renderer) sub(v reflect.Value) string {
	var b strings.Builder
	renderer{b: &b, seen: r.seen}.render(v)
	return b.String()
}

func describe(v reflect.Value) (string, bool) {
	if !v.CanInterface() {
		return "", false
	}
	if v.Type().Implements(errorType) {
		return v.Interface().(error).Error(), true
	}
	if v.Type().Implements(stringerType) {
		return v.Interface().(fmt.Stringer).String(), true
	}
	if reflect.PointerTo(v.Type()).Implements(stringerType) {
		p := reflect.New(v.Type())
		p.Elem().Set(v)
		return p.Interface().(fmt.Stringer).String(), true
	}
	return "", false
}
