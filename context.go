// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package wildcard

import "context"

// Context is the ambient per-call field map an endpoint can read and write.
//
// Reads resolve, highest precedence first: fields written during this call,
// fields supplied by the caller, fields recovered from signed cookies.
// Written fields are persisted as signed cookies when the server has a
// secret key. A Context is only usable while its call runs.
type Context struct {
	hook *hook
}

// ContextFrom returns the Context of the call ctx belongs to. It never
// returns nil; outside a call every access fails with a *UsageError.
func ContextFrom(ctx context.Context) *Context {
	h, _ := ctx.Value(hookKey{}).(*hook)
	return &Context{hook: h}
}

func outsideCall(op, field string) error {
	return usageErrorf("cannot %s context field `%s`: not inside an endpoint call", op, field)
}

// Lookup returns the value of field and whether any layer defines it.
func (c *Context) Lookup(field string) (any, bool, error) {
	if c == nil || c.hook == nil {
		return nil, false, outsideCall("read", field)
	}
	return c.hook.lookup(field)
}

// Get returns the value of field, or nil when no layer defines it.
func (c *Context) Get(field string) (any, error) {
	v, _, err := c.Lookup(field)
	return v, err
}

// String returns field as a string. ok is false when the field is missing
// or holds another type.
func (c *Context) String(field string) (s string, ok bool, err error) {
	v, found, err := c.Lookup(field)
	if err != nil || !found {
		return "", false, err
	}
	s, ok = v.(string)
	return s, ok, nil
}

// Set writes field for the rest of the call; it is persisted once the call
// returns successfully. Without a secret key the write succeeds but is not
// persisted, and a warning is logged once per field.
func (c *Context) Set(field string, v any) error {
	if c == nil || c.hook == nil {
		return outsideCall("set", field)
	}
	return c.hook.set(field, v)
}

// Fields returns a snapshot of all layers merged.
func (c *Context) Fields() (map[string]any, error) {
	if c == nil || c.hook == nil {
		return nil, usageErrorf("cannot read the context: not inside an endpoint call")
	}
	return c.hook.fields()
}
