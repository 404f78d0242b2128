// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package wildcard

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// ArgsInBody is the reserved second path segment telling the server the
// arguments are in the request body.
const ArgsInBody = "args-in-body"

// RequestEnvelope is the framework-neutral form of an inbound request.
// Body may be nil, a string, a []byte, or an already decoded []any.
type RequestEnvelope struct {
	URL     string
	Method  string
	Headers http.Header
	Body    any
}

// ResponseEnvelope is the framework-neutral form of the response. A nil
// *ResponseEnvelope means the request is not for this server.
type ResponseEnvelope struct {
	StatusCode  int
	ContentType string
	Body        string
	Headers     http.Header
}

type requestKind uint8

const (
	notOurs requestKind = iota
	malformed
	introspection
	endpointCall
)

type parsedRequest struct {
	kind      requestKind
	reason    string
	name      string
	args      []any
	humanMode bool
}

func parseRequest(env RequestEnvelope, baseURL string, codec Codec) parsedRequest {
	method := strings.ToUpper(env.Method)
	if method != http.MethodGet && method != http.MethodPost {
		return parsedRequest{kind: notOurs}
	}

	path := requestPath(env.URL)
	if !strings.HasPrefix(path, baseURL) {
		// The base URL without the trailing slash still lands on introspection.
		if method == http.MethodGet && path+"/" == baseURL {
			return parsedRequest{kind: introspection, humanMode: true}
		}
		return parsedRequest{kind: notOurs}
	}
	humanMode := method == http.MethodGet

	rest := path[len(baseURL):]
	if rest == "" && humanMode {
		return parsedRequest{kind: introspection, humanMode: true}
	}

	segments := strings.SplitN(rest, "/", 2)
	name, err := url.PathUnescape(segments[0])
	if err != nil || name == "" {
		return parsedRequest{kind: malformed, humanMode: humanMode, reason: "the URL is missing the endpoint name"}
	}

	req := parsedRequest{kind: endpointCall, name: name, humanMode: humanMode}
	if len(segments) < 2 || segments[1] == "" {
		return req
	}
	if segments[1] == ArgsInBody {
		args, reason := argsFromBody(env.Body, codec)
		if reason != "" {
			return parsedRequest{kind: malformed, humanMode: humanMode, reason: reason}
		}
		req.args = args
		return req
	}

	raw, err := url.PathUnescape(segments[1])
	if err != nil {
		return parsedRequest{kind: malformed, humanMode: humanMode, reason: fmt.Sprintf("the arguments in the URL cannot be URL-decoded: %v", err)}
	}
	args, reason := decodeArgs(codec, raw, "URL")
	if reason != "" {
		return parsedRequest{kind: malformed, humanMode: humanMode, reason: reason}
	}
	req.args = args
	return req
}

// requestPath returns the still-escaped path of an absolute or
// origin-form URL.
func requestPath(rawURL string) string {
	path := rawURL
	if i := strings.Index(path, "://"); i >= 0 {
		path = path[i+len("://"):]
		if j := strings.IndexByte(path, '/'); j >= 0 {
			path = path[j:]
		} else {
			path = "/"
		}
	}
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	return path
}

func argsFromBody(body any, codec Codec) ([]any, string) {
	switch b := body.(type) {
	case []any:
		return b, ""
	case []byte:
		return argsFromBody(string(b), codec)
	case string:
		if !strings.HasPrefix(strings.TrimLeft(b, " \t\r\n"), "[") {
			return nil, "the request body must be an array of arguments"
		}
		return decodeArgs(codec, b, "request body")
	case nil:
		return nil, fmt.Sprintf("the URL contains `%s` but the request has no body", ArgsInBody)
	default:
		return nil, fmt.Sprintf("the request body must be an array of arguments, got %T", body)
	}
}

func decodeArgs(codec Codec, raw, where string) ([]any, string) {
	v, err := codec.Deserialize(raw)
	if err != nil {
		return nil, fmt.Sprintf("the arguments in the %s cannot be parsed: %v", where, err)
	}
	args, ok := v.([]any)
	if !ok {
		return nil, fmt.Sprintf("the arguments in the %s must be an array", where)
	}
	return args, ""
}
