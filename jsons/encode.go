// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package jsons

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"math"
	"reflect"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

var (
	timeType      = reflect.TypeOf(time.Time{})
	marshalerType = reflect.TypeOf((*json.Marshaler)(nil)).Elem()
)

// member and object keep struct fields in declaration order; encoding/json
// would sort them as map keys.
type member struct {
	key string
	val any
}

type object []member

func (o object) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, m := range o {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeJSON(&buf, m.key); err != nil {
			return nil, err
		}
		buf.WriteByte(':')
		if err := writeJSON(&buf, m.val); err != nil {
			return nil, err
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func writeJSON(buf *bytes.Buffer, v any) error {
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return err
	}
	buf.Truncate(buf.Len() - 1)
	return nil
}

func escape(s string) string {
	if strings.HasPrefix(s, prefix) {
		return prefix + s
	}
	return s
}

func plainFloat(f float64) any {
	switch {
	case math.IsNaN(f):
		return tagNaN
	case math.IsInf(f, 1):
		return tagInf
	case math.IsInf(f, -1):
		return tagNegInf
	}
	return f
}

func dateString(t time.Time) string {
	return tagDate + t.UTC().Format(DateLayout)
}

// encoder tracks the maps, slices and pointers on the path being encoded.
type encoder struct {
	seen map[seenKey]struct{}
}

type seenKey struct {
	ptr uintptr
	len int
	typ reflect.Type
}

// enter marks rv as being encoded until the returned func runs. A value
// already on the path is a cycle.
func (e *encoder) enter(rv reflect.Value, path string) (func(), error) {
	if rv.Kind() == reflect.Slice && rv.Len() == 0 {
		return func() {}, nil
	}
	key := seenKey{ptr: rv.Pointer(), typ: rv.Type()}
	if rv.Kind() == reflect.Slice {
		key.len = rv.Len()
	}
	if _, ok := e.seen[key]; ok {
		return nil, &UnsupportedValueError{Kind: "cycle", Path: path}
	}
	if e.seen == nil {
		e.seen = make(map[seenKey]struct{})
	}
	e.seen[key] = struct{}{}
	return func() { delete(e.seen, key) }, nil
}

// toPlain converts v into values encoding/json writes verbatim.
func (e *encoder) toPlain(v any, path string) (any, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case undefined:
		return tagUndefined, nil
	case string:
		return escape(t), nil
	case bool, json.Number:
		return t, nil
	case float64:
		return plainFloat(t), nil
	case float32:
		return plainFloat(float64(t)), nil
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return t, nil
	case time.Time:
		return dateString(t), nil
	case RegExp:
		return tagRegExp + t.String(), nil
	case *regexp.Regexp:
		if t == nil {
			return nil, nil
		}
		return tagRegExp + "/" + t.String() + "/", nil
	case []any:
		leave, err := e.enter(reflect.ValueOf(t), path)
		if err != nil {
			return nil, err
		}
		defer leave()
		out := make([]any, len(t))
		for i, elem := range t {
			p, err := e.toPlain(elem, path+"["+strconv.Itoa(i)+"]")
			if err != nil {
				return nil, err
			}
			out[i] = p
		}
		return out, nil
	case map[string]any:
		return e.plainMap(reflect.ValueOf(t), path)
	}
	return e.plainValue(reflect.ValueOf(v), path)
}

func (e *encoder) plainValue(rv reflect.Value, path string) (any, error) {
	if !rv.IsValid() {
		return nil, nil
	}
	if rv.Type() == timeType {
		return dateString(rv.Interface().(time.Time)), nil
	}
	if rv.Type().Implements(marshalerType) && (rv.Kind() != reflect.Pointer || !rv.IsNil()) {
		return e.plainMarshaler(rv.Interface().(json.Marshaler), path)
	}
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return nil, nil
		}
		if rv.Kind() == reflect.Pointer {
			leave, err := e.enter(rv, path)
			if err != nil {
				return nil, err
			}
			defer leave()
		}
		return e.toPlain(rv.Elem().Interface(), path)
	case reflect.Bool:
		return rv.Bool(), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return rv.Uint(), nil
	case reflect.Float32, reflect.Float64:
		return plainFloat(rv.Float()), nil
	case reflect.String:
		return escape(rv.String()), nil
	case reflect.Slice:
		if rv.IsNil() {
			return nil, nil
		}
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			return base64.StdEncoding.EncodeToString(rv.Bytes()), nil
		}
		leave, err := e.enter(rv, path)
		if err != nil {
			return nil, err
		}
		defer leave()
		fallthrough
	case reflect.Array:
		out := make([]any, rv.Len())
		for i := range out {
			p, err := e.toPlain(rv.Index(i).Interface(), path+"["+strconv.Itoa(i)+"]")
			if err != nil {
				return nil, err
			}
			out[i] = p
		}
		return out, nil
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return nil, &UnsupportedValueError{Kind: "map[" + rv.Type().Key().Kind().String() + "]", Path: path}
		}
		if rv.IsNil() {
			return nil, nil
		}
		return e.plainMap(rv, path)
	case reflect.Struct:
		return e.plainStruct(rv, path)
	}
	return nil, &UnsupportedValueError{Kind: rv.Kind().String(), Path: path}
}

func (e *encoder) plainMarshaler(m json.Marshaler, path string) (any, error) {
	data, err := m.MarshalJSON()
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	return e.toPlain(raw, path)
}

func (e *encoder) plainMap(rv reflect.Value, path string) (any, error) {
	leave, err := e.enter(rv, path)
	if err != nil {
		return nil, err
	}
	defer leave()

	keys := make([]string, 0, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		keys = append(keys, iter.Key().String())
	}
	sort.Strings(keys)
	out := make(object, 0, len(keys))
	for _, k := range keys {
		kv := reflect.ValueOf(k).Convert(rv.Type().Key())
		p, err := e.toPlain(rv.MapIndex(kv).Interface(), path+"."+k)
		if err != nil {
			return nil, err
		}
		out = append(out, member{key: k, val: p})
	}
	return out, nil
}

func (e *encoder) plainStruct(rv reflect.Value, path string) (any, error) {
	out := object{}
	if err := e.appendFields(&out, rv, path); err != nil {
		return nil, err
	}
	return out, nil
}

func (e *encoder) appendFields(out *object, rv reflect.Value, path string) error {
	rt := rv.Type()
	for i := 0; i < rt.NumField(); i++ {
		f := rt.Field(i)
		if !f.IsExported() {
			continue
		}
		tag := f.Tag.Get("json")
		if tag == "-" {
			continue
		}
		name, opts, _ := strings.Cut(tag, ",")
		fv := rv.Field(i)
		if f.Anonymous && name == "" {
			ft := f.Type
			if ft.Kind() == reflect.Pointer {
				if fv.IsNil() {
					continue
				}
				ft, fv = ft.Elem(), fv.Elem()
			}
			if ft.Kind() == reflect.Struct && ft != timeType {
				if err := e.appendFields(out, fv, path); err != nil {
					return err
				}
				continue
			}
		}
		if name == "" {
			name = f.Name
		}
		if strings.Contains(","+opts+",", ",omitempty,") && isEmptyValue(fv) {
			continue
		}
		p, err := e.toPlain(fv.Interface(), path+"."+name)
		if err != nil {
			return err
		}
		*out = append(*out, member{key: name, val: p})
	}
	return nil
}

func isEmptyValue(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Array, reflect.Map, reflect.Slice, reflect.String:
		return v.Len() == 0
	case reflect.Bool:
		return !v.Bool()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int() == 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return v.Uint() == 0
	case reflect.Float32, reflect.Float64:
		return v.Float() == 0
	case reflect.Interface, reflect.Pointer:
		return v.IsNil()
	}
	return false
}
