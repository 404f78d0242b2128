// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package wildcard

import (
	"crypto/sha1"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/brillout/wildcard-api-sub000/jsons"
)

const (
	contentTypeJSON = "application/json"
	contentTypeText = "text/plain"
	contentTypeHTML = "text/html"

	internalServerError = "Internal Server Error"

	// emptyEtag is the validator of the empty body.
	emptyEtag = `"0-2jmj7l5rSw0yVb/vlWAYkK/YBwk"`
)

// etag returns a strong validator derived from the body's length and SHA-1.
func etag(body string) string {
	if body == "" {
		return emptyEtag
	}
	sum := sha1.Sum([]byte(body))
	hash := base64.StdEncoding.EncodeToString(sum[:])[:27]
	return `"` + strconv.FormatInt(int64(len(body)), 16) + "-" + hash + `"`
}

func (s *Server) finish(resp *ResponseEnvelope) *ResponseEnvelope {
	if resp.Headers == nil {
		resp.Headers = make(http.Header)
	}
	resp.Headers.Set("Content-Type", resp.ContentType)
	if !s.cfg.DisableEtag {
		resp.Headers.Set("ETag", etag(resp.Body))
	}
	return resp
}

func internalErrorResponse() *ResponseEnvelope {
	return &ResponseEnvelope{
		StatusCode:  http.StatusInternalServerError,
		ContentType: contentTypeText,
		Body:        internalServerError,
	}
}

func (s *Server) malformedResponse(req parsedRequest) *ResponseEnvelope {
	if req.humanMode {
		return &ResponseEnvelope{
			StatusCode:  http.StatusBadRequest,
			ContentType: contentTypeHTML,
			Body:        renderMessagePage("Malformed request", req.reason),
		}
	}
	return &ResponseEnvelope{
		StatusCode:  http.StatusBadRequest,
		ContentType: contentTypeText,
		Body:        "Malformed request: " + req.reason,
	}
}

func (s *Server) missingEndpointResponse(req parsedRequest) *ResponseEnvelope {
	var b strings.Builder
	fmt.Fprintf(&b, "Endpoint `%s` does not exist.", req.name)
	names := s.registry.Names()
	switch {
	case len(names) == 0:
		b.WriteString("\n\nNo endpoint is defined. Register endpoints with Server.Register.")
	case !s.cfg.isProduction():
		b.WriteString("\n\nEndpoints:\n")
		for _, n := range names {
			b.WriteString(" - " + n + "\n")
		}
	}
	body := strings.TrimRight(b.String(), "\n")
	if req.humanMode {
		return &ResponseEnvelope{
			StatusCode:  http.StatusNotFound,
			ContentType: contentTypeHTML,
			Body:        renderMessagePage("Endpoint not found", body),
		}
	}
	return &ResponseEnvelope{StatusCode: http.StatusNotFound, ContentType: contentTypeText, Body: body}
}

func (s *Server) endpointErrorResponse(req parsedRequest, err error) *ResponseEnvelope {
	if req.humanMode && !s.cfg.isProduction() {
		var stack []byte
		var eerr *EndpointError
		if errors.As(err, &eerr) {
			stack = eerr.Stack
		}
		return &ResponseEnvelope{
			StatusCode:  http.StatusInternalServerError,
			ContentType: contentTypeHTML,
			Body:        renderErrorPage(req.name, err, stack),
		}
	}
	return internalErrorResponse()
}

// endpointResponse turns a settled call into a response.
func (s *Server) endpointResponse(req parsedRequest, out Outcome) *ResponseEnvelope {
	if out.Err != nil {
		var (
			missing   *MissingEndpointError
			malformed *MalformedRequestError
		)
		switch {
		case errors.As(out.Err, &missing) && !isEndpointError(out.Err):
			return s.missingEndpointResponse(req)
		case errors.As(out.Err, &malformed) && !isEndpointError(out.Err):
			return s.malformedResponse(parsedRequest{humanMode: req.humanMode, reason: malformed.Reason})
		}
		return s.endpointErrorResponse(req, out.Err)
	}

	result := out.Result
	if jsons.IsUndefined(result) {
		result = nil
	}
	body, err := s.codec.Serialize(result)
	if err != nil {
		uerr := &UsageError{Msg: fmt.Sprintf("endpoint `%s` returned a value that cannot be serialized", req.name), Err: err}
		s.logger.Error(uerr.Error(), zap.String("endpoint", req.name))
		return s.endpointErrorResponse(req, uerr)
	}

	cookies, err := s.sessionCookies(req.name, out.Mutations)
	if err != nil {
		s.logger.Error(err.Error(), zap.String("endpoint", req.name))
		return s.endpointErrorResponse(req, err)
	}

	resp := &ResponseEnvelope{StatusCode: http.StatusOK, ContentType: contentTypeJSON, Body: body}
	if req.humanMode {
		resp.ContentType = contentTypeHTML
		resp.Body = renderResultPage(req.name, body)
	}
	if len(cookies) > 0 {
		resp.Headers = make(http.Header)
		for _, c := range cookies {
			resp.Headers.Add("Set-Cookie", c.String())
		}
	}
	return resp
}

func isEndpointError(err error) bool {
	var eerr *EndpointError
	return errors.As(err, &eerr)
}

func (s *Server) introspectionResponse() *ResponseEnvelope {
	if !s.cfg.isDev() {
		return &ResponseEnvelope{
			StatusCode:  http.StatusOK,
			ContentType: contentTypeHTML,
			Body:        renderMessagePage("wildcard", "The endpoint list is only shown in development mode."),
		}
	}
	return &ResponseEnvelope{
		StatusCode:  http.StatusOK,
		ContentType: contentTypeHTML,
		Body:        renderIntrospectionPage(s.cfg.BaseURL, s.registry.Names()),
	}
}
