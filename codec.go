// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package wildcard

import (
	"github.com/brillout/wildcard-api-sub000/jsons"
)

// Codec serializes arguments, results and context fields. Both ends of a
// connection must use the same codec.
type Codec interface {
	Serialize(v any) (string, error)
	Deserialize(s string) (any, error)
}

// ExtendedJSONCodec is the jsons codec: JSON plus undefined, dates,
// regular expressions, NaN and infinities.
type ExtendedJSONCodec struct{}

func (ExtendedJSONCodec) Serialize(v any) (string, error) {
	return jsons.Serialize(v)
}

func (ExtendedJSONCodec) Deserialize(s string) (any, error) {
	return jsons.Deserialize(s)
}

// defaultCodec is used when no codec is specified
var defaultCodec Codec = ExtendedJSONCodec{}
