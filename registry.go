// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package wildcard

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"sort"
	"sync"

	"github.com/brillout/wildcard-api-sub000/jsons"
)

var (
	goContextType = reflect.TypeOf((*context.Context)(nil)).Elem()
	handleType    = reflect.TypeOf((*Context)(nil))
	errorType     = reflect.TypeOf((*error)(nil)).Elem()
)

type receiver uint8

const (
	receiveNothing receiver = iota
	receiveGoContext
	receiveHandle
)

// Endpoint is a registered function together with its calling convention.
//
// The first parameter may be a context.Context (read the call's Context
// with ContextFrom) or a *Context. The remaining parameters are filled from
// the positional call arguments. Results may be (), (T), (error) or
// (T, error).
type Endpoint struct {
	Name string

	fn        reflect.Value
	recv      receiver
	params    []reflect.Type
	variadic  bool
	hasResult bool
	hasErr    bool
}

func newEndpoint(name string, fn any) (*Endpoint, error) {
	if name == "" {
		return nil, usageErrorf("an endpoint name must be a non-empty string")
	}
	if fn == nil {
		return nil, usageErrorf("endpoint `%s` must be a function, got nil", name)
	}
	fv := reflect.ValueOf(fn)
	ft := fv.Type()
	if ft.Kind() != reflect.Func {
		return nil, usageErrorf("endpoint `%s` must be a function, got %s", name, ft.Kind())
	}
	if fv.IsNil() {
		return nil, usageErrorf("endpoint `%s` must be a function, got a nil func", name)
	}

	ep := &Endpoint{Name: name, fn: fv, variadic: ft.IsVariadic()}
	first := 0
	if ft.NumIn() > 0 {
		switch in := ft.In(0); {
		case in == goContextType:
			ep.recv, first = receiveGoContext, 1
		case in == handleType:
			ep.recv, first = receiveHandle, 1
		}
	}
	for i := first; i < ft.NumIn(); i++ {
		ep.params = append(ep.params, ft.In(i))
	}

	switch ft.NumOut() {
	case 0:
	case 1:
		if ft.Out(0) == errorType {
			ep.hasErr = true
		} else {
			ep.hasResult = true
		}
	case 2:
		if ft.Out(1) != errorType {
			return nil, usageErrorf("endpoint `%s`: second result must be error, got %s", name, ft.Out(1))
		}
		ep.hasResult, ep.hasErr = true, true
	default:
		return nil, usageErrorf("endpoint `%s` returns %d values; at most a result and an error are allowed", name, ft.NumOut())
	}
	return ep, nil
}

// bind builds the call arguments. Missing arguments are zero values and
// extra arguments are ignored.
func (e *Endpoint) bind(ctx context.Context, handle *Context, args []any) ([]reflect.Value, error) {
	in := make([]reflect.Value, 0, len(e.params)+1)
	switch e.recv {
	case receiveGoContext:
		in = append(in, reflect.ValueOf(&ctx).Elem())
	case receiveHandle:
		in = append(in, reflect.ValueOf(handle))
	}

	fixed := len(e.params)
	if e.variadic {
		fixed--
	}
	for i := 0; i < fixed; i++ {
		var arg any = jsons.Undefined
		if i < len(args) {
			arg = args[i]
		}
		v, err := bindArg(arg, e.params[i])
		if err != nil {
			return nil, &MalformedRequestError{Reason: fmt.Sprintf("argument %d of endpoint `%s`: %v", i+1, e.Name, err)}
		}
		in = append(in, v)
	}
	if e.variadic {
		elem := e.params[fixed].Elem()
		for i := fixed; i < len(args); i++ {
			v, err := bindArg(args[i], elem)
			if err != nil {
				return nil, &MalformedRequestError{Reason: fmt.Sprintf("argument %d of endpoint `%s`: %v", i+1, e.Name, err)}
			}
			in = append(in, v)
		}
	}
	return in, nil
}

// call runs the function. A function without a result yields Undefined.
func (e *Endpoint) call(in []reflect.Value) (any, error) {
	out := e.fn.Call(in)

	var (
		result any = jsons.Undefined
		err    error
	)
	if e.hasResult {
		result = out[0].Interface()
	}
	if e.hasErr {
		if ev := out[len(out)-1]; !ev.IsNil() {
			err = ev.Interface().(error)
		}
	}
	return result, err
}

// bindArg converts a decoded wire value into t.
func bindArg(arg any, t reflect.Type) (reflect.Value, error) {
	if arg == nil || jsons.IsUndefined(arg) {
		if t.Kind() == reflect.Interface && arg != nil && reflect.TypeOf(arg).Implements(t) {
			return reflect.ValueOf(arg), nil
		}
		return reflect.Zero(t), nil
	}
	av := reflect.ValueOf(arg)
	if av.Type().AssignableTo(t) {
		return av, nil
	}
	if f, ok := arg.(float64); ok {
		switch t.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
			reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			if f != math.Trunc(f) || math.IsInf(f, 0) {
				return reflect.Value{}, fmt.Errorf("%v is not an integer", f)
			}
			// Range-check before converting: out-of-range float to int
			// conversions are implementation-defined.
			v := reflect.New(t).Elem()
			if isUnsigned(t.Kind()) {
				if f < 0 || f >= 1<<64 || v.OverflowUint(uint64(f)) {
					return reflect.Value{}, fmt.Errorf("%v overflows %s", f, t)
				}
				v.SetUint(uint64(f))
			} else {
				if f < -(1<<63) || f >= 1<<63 || v.OverflowInt(int64(f)) {
					return reflect.Value{}, fmt.Errorf("%v overflows %s", f, t)
				}
				v.SetInt(int64(f))
			}
			return v, nil
		case reflect.Float32, reflect.Float64:
			return av.Convert(t), nil
		}
	}
	if av.Type().ConvertibleTo(t) && av.Kind() == t.Kind() {
		return av.Convert(t), nil
	}

	// Composite values go through encoding/json into the target type.
	data, err := json.Marshal(arg)
	if err != nil {
		return reflect.Value{}, fmt.Errorf("cannot convert %T to %s: %w", arg, t, err)
	}
	ptr := reflect.New(t)
	if err := json.Unmarshal(data, ptr.Interface()); err != nil {
		return reflect.Value{}, fmt.Errorf("cannot convert %T to %s: %w", arg, t, err)
	}
	return ptr.Elem(), nil
}

func isUnsigned(k reflect.Kind) bool {
	switch k {
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return true
	}
	return false
}

// Registry maps endpoint names to functions. It is safe for concurrent use
// but meant to be filled at startup.
type Registry struct {
	mu        sync.RWMutex
	endpoints map[string]*Endpoint
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{endpoints: make(map[string]*Endpoint)}
}

// Register adds or replaces the endpoint name.
func (r *Registry) Register(name string, fn any) error {
	ep, err := newEndpoint(name, fn)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.endpoints[name] = ep
	return nil
}

// MustRegister is Register for package-level setup code.
func (r *Registry) MustRegister(name string, fn any) {
	if err := r.Register(name, fn); err != nil {
		panic(err)
	}
}

// Exists reports whether name is registered.
func (r *Registry) Exists(name string) bool {
	_, ok := r.Get(name)
	return ok
}

// Get returns the endpoint registered under name.
func (r *Registry) Get(name string) (*Endpoint, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ep, ok := r.endpoints[name]
	return ep, ok
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.endpoints))
	for name := range r.endpoints {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of registered endpoints.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.endpoints)
}
