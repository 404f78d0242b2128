// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package wildcard

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"time"

	rpc "github.com/gorilla/rpc/v2/json2"
	"go.uber.org/zap"
)

const retryBaseWait = 100 * time.Millisecond

// newHTTPClient creates an HTTP client that keeps cookies the way a browser
// does, so signed context fields survive across calls.
func newHTTPClient() *http.Client {
	jar, _ := cookiejar.New(nil)
	return &http.Client{Jar: jar}
}

// CleanlyCloseBody drains and closes an HTTP response body to prevent
// HTTP/2 GOAWAY errors caused by closing bodies with unread data.
// See: https://github.com/golang/go/issues/46071
func CleanlyCloseBody(body io.ReadCloser) error {
	if body == nil {
		return nil
	}
	// Drain any remaining data to allow connection reuse
	_, _ = io.Copy(io.Discard, body)
	return body.Close()
}

// isRetryableError checks if an error is transient and worth retrying
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	errStr := err.Error()
	// EOF errors are often transient connection issues
	if errors.Is(err, io.EOF) || strings.Contains(errStr, "EOF") {
		return true
	}
	// Connection reset/refused are also transient
	return strings.Contains(errStr, "connection reset") ||
		strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "broken pipe")
}

// sendRequest POSTs body to uri. A returned error is a connection failure;
// any response, whatever its status, is handed to the caller.
func sendRequest(ctx context.Context, o *dialOptions, client *http.Client, endpoint, uri, contentType string, body []byte) (*http.Response, error) {
	var lastErr error
	for attempt := 0; attempt <= o.retries; attempt++ {
		if attempt > 0 {
			// Exponential backoff: 100ms, 200ms, 400ms
			waitTime := retryBaseWait * time.Duration(1<<(attempt-1))
			select {
			case <-ctx.Done():
				return nil, connectionFailure(endpoint, ctx.Err())
			case <-time.After(waitTime):
			}
		}

		// Create fresh request for each attempt (body buffer is consumed)
		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		request, err := http.NewRequestWithContext(ctx, http.MethodPost, uri, reader)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		request.Header = o.headers.Clone()
		if body != nil {
			request.Header.Set("Content-Type", contentType)
		}

		resp, err := client.Do(request)
		if err != nil {
			lastErr = err
			o.logger.Debug("request attempt failed",
				zap.String("endpoint", endpoint),
				zap.Int("attempt", attempt+1),
				zap.Bool("retryable", isRetryableError(err)),
				zap.Error(err))
			if isRetryableError(err) {
				continue // Retry on transient errors
			}
			return nil, connectionFailure(endpoint, err)
		}
		if attempt > 0 {
			o.logger.Debug("request succeeded after retry", zap.String("endpoint", endpoint), zap.Int("attempt", attempt+1))
		}
		return resp, nil
	}
	return nil, connectionFailure(endpoint, fmt.Errorf("failed to issue request after %d attempts: %w", o.retries+1, lastErr))
}

// JSONRPCMethod is the JSON-RPC method the bridge serves.
const JSONRPCMethod = "Endpoints.Call"

// JSONRPCArgs are the params of a JSON-RPC call; Args is the codec-encoded
// argument array.
type JSONRPCArgs struct {
	Endpoint string `json:"endpoint"`
	Args     string `json:"args"`
}

// JSONRPCReply is the result of a JSON-RPC call; Result is codec-encoded.
type JSONRPCReply struct {
	Result string `json:"result"`
}

type jsonrpcTransport struct {
	o      *dialOptions
	client *http.Client
	uri    string
}

func dialJSONRPC(o *dialOptions) (Transport, error) {
	client := o.httpClient
	if client == nil {
		client = newHTTPClient()
	}
	return &jsonrpcTransport{o: o, client: client, uri: o.serverURL + o.jsonrpcPath}, nil
}

func (t *jsonrpcTransport) Invoke(ctx context.Context, endpoint string, args []any) (any, error) {
	serialized, err := t.o.codec.Serialize(args)
	if err != nil {
		return nil, &UsageError{Msg: fmt.Sprintf("the arguments of endpoint `%s` cannot be serialized", endpoint), Err: err}
	}
	requestBodyBytes, err := rpc.EncodeClientRequest(JSONRPCMethod, &JSONRPCArgs{Endpoint: endpoint, Args: serialized})
	if err != nil {
		return nil, fmt.Errorf("failed to encode client params: %w", err)
	}

	resp, err := sendRequest(ctx, t.o, t.client, endpoint, t.uri, "application/json", requestBodyBytes)
	if err != nil {
		return nil, err
	}
	defer CleanlyCloseBody(resp.Body)

	// Return an error for any non successful status code
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, codeFailure(endpoint, resp.StatusCode, errors.New(strings.TrimSpace(string(msg))))
	}

	var reply JSONRPCReply
	if err := rpc.DecodeClientResponse(resp.Body, &reply); err != nil {
		var rpcErr *rpc.Error
		if errors.As(err, &rpcErr) {
			return nil, codeFailure(endpoint, jsonrpcStatus(rpcErr.Code), rpcErr)
		}
		return nil, codeFailure(endpoint, resp.StatusCode, fmt.Errorf("failed to decode client response: %w", err))
	}
	result, err := t.o.codec.Deserialize(reply.Result)
	if err != nil {
		return nil, codeFailure(endpoint, resp.StatusCode, fmt.Errorf("failed to decode result: %w", err))
	}
	return result, nil
}

// jsonrpcStatus maps bridge error codes back onto the HTTP statuses the wire
// protocol would have answered with.
func jsonrpcStatus(code rpc.ErrorCode) int {
	switch code {
	case rpc.E_NO_METHOD:
		return http.StatusNotFound
	case rpc.E_BAD_PARAMS, rpc.E_INVALID_REQ, rpc.E_PARSE:
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
