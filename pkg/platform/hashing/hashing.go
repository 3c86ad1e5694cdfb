// Package hashing computes the deterministic digests behind the audit chain.
//
// A payload is first rendered to canonical JSON: object keys sorted at every
// depth, numbers in shortest round-trip decimal form, times in RFC 3339 UTC and
// any other scalar stringified. Two payloads that differ only in key insertion
// order therefore hash identically in every process.
package hashing

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"sort"
	"strconv"
	"time"
)

// Empty is the previous-hash value of the first entry in a chain.
const Empty = ""

// Canonical renders payload as canonical JSON.
func Canonical(payload any) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeValue(&buf, payload); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ContentHash returns the lowercase hex SHA-256 of the canonical payload.
// Values that cannot be canonicalised fall back to their fmt representation,
// so the function never fails.
func ContentHash(payload any) string {
	data, err := Canonical(payload)
	if err != nil {
		data = []byte(fmt.Sprint(payload))
	}
	return Sum(data)
}

// ChainHash links payload to previous: SHA256(previous || ContentHash(payload)).
func ChainHash(payload any, previous string) string {
	return Link(previous, ContentHash(payload))
}

// Link combines an already computed content hash with the previous chain hash.
func Link(previous, contentHash string) string {
	return Sum([]byte(previous + contentHash))
}

// Sum returns the lowercase hex SHA-256 of data.
func Sum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func writeValue(buf *bytes.Buffer, v any) error {
	switch val := v.(type) {
	case nil:
		buf.WriteString("null")
		return nil
	case string:
		return writeString(buf, val)
	case bool:
		buf.WriteString(strconv.FormatBool(val))
		return nil
	case json.Number:
		f, err := val.Float64()
		if err != nil {
			return writeString(buf, val.String())
		}
		writeFloat(buf, f)
		return nil
	case time.Time:
		return writeString(buf, val.UTC().Format(time.RFC3339Nano))
	case map[string]any:
		return writeMap(buf, val)
	case []any:
		return writeSlice(buf, reflect.ValueOf(val))
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		buf.WriteString(strconv.FormatInt(rv.Int(), 10))
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		buf.WriteString(strconv.FormatUint(rv.Uint(), 10))
	case reflect.Float32, reflect.Float64:
		writeFloat(buf, rv.Float())
	case reflect.String:
		return writeString(buf, rv.String())
	case reflect.Bool:
		buf.WriteString(strconv.FormatBool(rv.Bool()))
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return writeString(buf, fmt.Sprint(v))
		}
		m := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			m[iter.Key().String()] = iter.Value().Interface()
		}
		return writeMap(buf, m)
	case reflect.Slice, reflect.Array:
		return writeSlice(buf, rv)
	case reflect.Pointer:
		if rv.IsNil() {
			buf.WriteString("null")
			return nil
		}
		return writeValue(buf, rv.Elem().Interface())
	default:
		return writeString(buf, fmt.Sprint(v))
	}
	return nil
}

func writeMap(buf *bytes.Buffer, m map[string]any) error {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	buf.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeString(buf, k); err != nil {
			return err
		}
		buf.WriteByte(':')
		if err := writeValue(buf, m[k]); err != nil {
			return fmt.Errorf("key %q: %w", k, err)
		}
	}
	buf.WriteByte('}')
	return nil
}

func writeSlice(buf *bytes.Buffer, rv reflect.Value) error {
	buf.WriteByte('[')
	for i := 0; i < rv.Len(); i++ {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeValue(buf, rv.Index(i).Interface()); err != nil {
			return err
		}
	}
	buf.WriteByte(']')
	return nil
}

func writeFloat(buf *bytes.Buffer, f float64) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		buf.WriteString(strconv.Quote(strconv.FormatFloat(f, 'g', -1, 64)))
		return
	}
	buf.WriteString(strconv.FormatFloat(f, 'f', -1, 64))
}

func writeString(buf *bytes.Buffer, s string) error {
	var tmp bytes.Buffer
	enc := json.NewEncoder(&tmp)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return fmt.Errorf("encode string: %w", err)
	}
	buf.Write(bytes.TrimSuffix(tmp.Bytes(), []byte("\n")))
	return nil
}
