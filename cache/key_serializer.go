package cache

import (
	"fmt"
	"math"
	"reflect"
	"sort"
	"strconv"
	"strings"
)

// KeySeparator separates the type qualifier from the value in a normalized key.
const KeySeparator = "::"

// KeySerializer turns a caller supplied key into the string the cache indexes by.
// Two keys must serialize to the same string exactly when the cache should treat them
// as the same key.
type KeySerializer interface {
	SerializeKey(key any) (string, error)
}

// defaultKeySerializer qualifies every key with its dynamic type so that "1" and 1 stay
// distinct, compares pointers and channels by identity, and walks slices, arrays, maps
// and structs so non-comparable values can still be used as keys.
//
// Every encoded value is self-delimiting: strings are quoted, composites are bracketed
// and interface elements carry their quoted dynamic type. Floats follow ==, so 0 and
// -0 are one key and NaN is rejected because it never equals itself.
type defaultKeySerializer struct{}

// NewDefaultKeySerializer returns the serializer used when Config.KeySerializer is nil.
func NewDefaultKeySerializer() KeySerializer {
	return defaultKeySerializer{}
}

func (s defaultKeySerializer) SerializeKey(key any) (string, error) {
	if key == nil {
		return "", fmt.Errorf("%w: nil key", ErrInvalidKey)
	}
	value, err := s.serializeValue(reflect.ValueOf(key))
	if err != nil {
		return "", err
	}
	return reflect.TypeOf(key).String() + KeySeparator + value, nil
}

func (s defaultKeySerializer) serializeValue(rv reflect.Value) (string, error) {
	if !rv.IsValid() {
		return "nil", nil
	}

	switch rv.Kind() {
	case reflect.Func, reflect.UnsafePointer:
		return "", fmt.Errorf("%w: %s values cannot be keys", ErrInvalidKey, rv.Kind())

	case reflect.Ptr, reflect.Chan:
		if rv.IsNil() {
			return "", fmt.Errorf("%w: nil %s", ErrInvalidKey, rv.Kind())
		}
		return fmt.Sprintf("%s:%#x", rv.Kind(), rv.Pointer()), nil

	case reflect.Interface:
		if rv.IsNil() {
			return "nil", nil
		}
		inner, err := s.serializeValue(rv.Elem())
		if err != nil {
			return "", err
		}
		return strconv.Quote(rv.Elem().Type().String()) + ":" + inner, nil

	case reflect.String:
		return strconv.Quote(rv.String()), nil

	case reflect.Bool:
		return strconv.FormatBool(rv.Bool()), nil

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(rv.Int(), 10), nil

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return strconv.FormatUint(rv.Uint(), 10), nil

	case reflect.Float32, reflect.Float64:
		return formatFloat(rv.Float(), rv.Type().Bits())

	case reflect.Complex64, reflect.Complex128:
		bits := rv.Type().Bits() / 2
		c := rv.Complex()
		re, err := formatFloat(real(c), bits)
		if err != nil {
			return "", err
		}
		im, err := formatFloat(imag(c), bits)
		if err != nil {
			return "", err
		}
		return "complex(" + re + "," + im + ")", nil

	case reflect.Slice:
		if rv.IsNil() {
			return "slice:nil", nil
		}
		return s.serializeSequence("slice", rv)

	case reflect.Array:
		return s.serializeSequence("array", rv)

	case reflect.Map:
		if rv.IsNil() {
			return "map:nil", nil
		}
		return s.serializeMap(rv)

	case reflect.Struct:
		return s.serializeStruct(rv)

	default:
		return "", fmt.Errorf("%w: unsupported kind %s", ErrInvalidKey, rv.Kind())
	}
}

// formatFloat maps -0 onto 0 and rejects NaN.
func formatFloat(f float64, bits int) (string, error) {
	if math.IsNaN(f) {
		return "", fmt.Errorf("%w: NaN never equals itself", ErrInvalidKey)
	}
	if f == 0 {
		return "0", nil
	}
	return strconv.FormatFloat(f, 'g', -1, bits), nil
}

func (s defaultKeySerializer) serializeSequence(label string, rv reflect.Value) (string, error) {
	parts := make([]string, rv.Len())
	for i := range parts {
		part, err := s.serializeValue(rv.Index(i))
		if err != nil {
			return "", err
		}
		parts[i] = part
	}
	return fmt.Sprintf("%s[%d]:{%s}", label, len(parts), strings.Join(parts, ",")), nil
}

// serializeMap sorts entries by their serialized key for deterministic output.
func (s defaultKeySerializer) serializeMap(rv reflect.Value) (string, error) {
	pairs := make([]string, 0, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		k, err := s.serializeValue(iter.Key())
		if err != nil {
			return "", err
		}
		v, err := s.serializeValue(iter.Value())
		if err != nil {
			return "", err
		}
		pairs = append(pairs, k+"="+v)
	}
	sort.Strings(pairs)
	return fmt.Sprintf("map[%d]:{%s}", len(pairs), strings.Join(pairs, ",")), nil
}

// serializeStruct reads fields through reflection so unexported ones are included.
func (s defaultKeySerializer) serializeStruct(rv reflect.Value) (string, error) {
	t := rv.Type()
	parts := make([]string, t.NumField())
	for i := range parts {
		field, err := s.serializeValue(rv.Field(i))
		if err != nil {
			return "", err
		}
		parts[i] = t.Field(i).Name + ":" + field
	}
	return "struct{" + strings.Join(parts, ",") + "}", nil
}
