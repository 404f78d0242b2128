// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package jsons implements the extended JSON codec used on the wire.
//
// It is plain JSON where a handful of values JSON cannot express are carried
// as tagged strings:
//
//	undefined       "!undefined"
//	Date            "!Date:2006-01-02T15:04:05.000Z"
//	RegExp          "!RegExp:/source/flags"
//	NaN, ±Infinity  "!NaN", "!Infinity", "!-Infinity"
//
// Strings that already start with '!' are escaped with one more '!'.
package jsons

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const (
	prefix       = "!"
	tagUndefined = "!undefined"
	tagNaN       = "!NaN"
	tagInf       = "!Infinity"
	tagNegInf    = "!-Infinity"
	tagDate      = "!Date:"
	tagRegExp    = "!RegExp:"

	// DateLayout is the ISO-8601 layout dates are written with.
	DateLayout = "2006-01-02T15:04:05.000Z"
)

type undefined struct{}

// Undefined is the value standing for a missing value that is still
// distinguishable from null.
var Undefined = undefined{}

func (undefined) String() string { return "undefined" }

// MarshalJSON lets Undefined pass through encoding/json as null.
func (undefined) MarshalJSON() ([]byte, error) { return []byte("null"), nil }

// IsUndefined reports whether v is Undefined.
func IsUndefined(v any) bool {
	_, ok := v.(undefined)
	return ok
}

// RegExp is a regular expression literal as written by the browser, kept as
// source and flags since its dialect is not RE2.
type RegExp struct {
	Source string `json:"source"`
	Flags  string `json:"flags"`
}

func (r RegExp) String() string { return "/" + r.Source + "/" + r.Flags }

// Compile compiles the expression with Go's regexp package. The i, m and s
// flags are translated; g, u and y have no RE2 meaning and are ignored.
func (r RegExp) Compile() (*regexp.Regexp, error) {
	var flags strings.Builder
	for _, f := range r.Flags {
		switch f {
		case 'i', 'm', 's':
			flags.WriteRune(f)
		}
	}
	src := r.Source
	if flags.Len() > 0 {
		src = "(?" + flags.String() + ")" + src
	}
	return regexp.Compile(src)
}

func parseRegExp(lit string) (RegExp, error) {
	end := strings.LastIndex(lit, "/")
	if !strings.HasPrefix(lit, "/") || end < 1 {
		return RegExp{}, fmt.Errorf("jsons: invalid regexp literal %q", lit)
	}
	return RegExp{Source: lit[1:end], Flags: lit[end+1:]}, nil
}

// UnsupportedValueError is returned when a value has no wire form.
type UnsupportedValueError struct {
	Kind string
	Path string
}

func (e *UnsupportedValueError) Error() string {
	if e.Path == "" {
		return "jsons: unsupported value of kind " + e.Kind
	}
	return "jsons: unsupported value of kind " + e.Kind + " at " + e.Path
}

// ErrSyntax wraps every deserialization failure.
var ErrSyntax = errors.New("jsons: invalid input")

// Serialize encodes v.
func Serialize(v any) (string, error) {
	plain, err := (&encoder{}).toPlain(v, "")
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(plain); err != nil {
		return "", fmt.Errorf("jsons: encode: %w", err)
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

// Deserialize decodes s into the jsons value model: nil, bool, float64,
// string, []any, map[string]any, Undefined, time.Time and RegExp.
func Deserialize(s string) (any, error) {
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSyntax, err)
	}
	if dec.More() {
		return nil, fmt.Errorf("%w: trailing data", ErrSyntax)
	}
	return revive(raw)
}

func revive(v any) (any, error) {
	switch t := v.(type) {
	case json.Number:
		f, err := strconv.ParseFloat(string(t), 64)
		// Overflowing literals read as infinities, same as in the browser.
		if err != nil && !errors.Is(err, strconv.ErrRange) {
			return nil, fmt.Errorf("%w: %v", ErrSyntax, err)
		}
		return f, nil
	case string:
		return reviveString(t)
	case []any:
		for i, elem := range t {
			r, err := revive(elem)
			if err != nil {
				return nil, err
			}
			t[i] = r
		}
		return t, nil
	case map[string]any:
		for k, elem := range t {
			r, err := revive(elem)
			if err != nil {
				return nil, err
			}
			if IsUndefined(r) {
				delete(t, k)
				continue
			}
			t[k] = r
		}
		return t, nil
	default:
		return v, nil
	}
}

func reviveString(s string) (any, error) {
	if !strings.HasPrefix(s, prefix) {
		return s, nil
	}
	switch {
	case s == tagUndefined:
		return Undefined, nil
	case s == tagNaN:
		return math.NaN(), nil
	case s == tagInf:
		return math.Inf(1), nil
	case s == tagNegInf:
		return math.Inf(-1), nil
	case strings.HasPrefix(s, tagDate):
		d, err := time.Parse(time.RFC3339Nano, s[len(tagDate):])
		if err != nil {
			return nil, fmt.Errorf("%w: bad date: %v", ErrSyntax, err)
		}
		return d.UTC(), nil
	case strings.HasPrefix(s, tagRegExp):
		r, err := parseRegExp(s[len(tagRegExp):])
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrSyntax, err)
		}
		return r, nil
	case strings.HasPrefix(s, prefix+prefix):
		return s[1:], nil
	default:
		return s, nil
	}
}
