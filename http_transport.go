// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package wildcard

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"unicode/utf8"
)

// MaxURLArgsLen is the serialized argument length from which arguments are
// sent in the request body instead of the URL.
const MaxURLArgsLen = 2000

type httpTransport struct {
	o      *dialOptions
	client *http.Client
}

func dialHTTP(o *dialOptions) (Transport, error) {
	client := o.httpClient
	if client == nil {
		client = newHTTPClient()
	}
	return &httpTransport{o: o, client: client}, nil
}

// callURL returns where a call goes and the body, if the arguments do not
// go in the URL.
func (t *httpTransport) callURL(endpoint, serialized string) (string, []byte) {
	base := t.o.serverURL + t.o.baseURL + url.PathEscape(endpoint)
	if t.o.shortURL || utf8.RuneCountInString(serialized) >= MaxURLArgsLen {
		return base + "/" + ArgsInBody, []byte(serialized)
	}
	return base + "/" + url.PathEscape(serialized), nil
}

func (t *httpTransport) Invoke(ctx context.Context, endpoint string, args []any) (any, error) {
	serialized, err := t.o.codec.Serialize(args)
	if err != nil {
		return nil, &UsageError{Msg: fmt.Sprintf("the arguments of endpoint `%s` cannot be serialized", endpoint), Err: err}
	}
	uri, body := t.callURL(endpoint, serialized)

	resp, err := sendRequest(ctx, t.o, t.client, endpoint, uri, "text/plain;charset=UTF-8", body)
	if err != nil {
		return nil, err
	}
	defer CleanlyCloseBody(resp.Body)

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, connectionFailure(endpoint, fmt.Errorf("read response: %w", err))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, codeFailure(endpoint, resp.StatusCode, errors.New(strings.TrimSpace(string(data))))
	}
	result, err := t.o.codec.Deserialize(string(data))
	if err != nil {
		return nil, codeFailure(endpoint, resp.StatusCode, fmt.Errorf("failed to decode result: %w", err))
	}
	return result, nil
}
