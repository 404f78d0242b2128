// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package wildcard

import (
	"errors"
	"net/http"

	"github.com/gorilla/rpc/v2"
	"github.com/gorilla/rpc/v2/json2"
	"go.uber.org/zap"

	"github.com/brillout/wildcard-api-sub000/jsons"
)

// endpointsService exposes the registry as the JSON-RPC service Endpoints.
type endpointsService struct {
	s *Server
}

// Call runs one endpoint. Signed cookies on the request are trusted like on
// the wire protocol, but context writes cannot be persisted: JSON-RPC
// replies carry no cookies.
func (svc *endpointsService) Call(r *http.Request, args *JSONRPCArgs, reply *JSONRPCReply) error {
	s := svc.s
	decoded, err := s.codec.Deserialize(args.Args)
	if err != nil {
		return &json2.Error{Code: json2.E_BAD_PARAMS, Message: "the arguments cannot be parsed: " + err.Error()}
	}
	list, ok := decoded.([]any)
	if !ok {
		return &json2.Error{Code: json2.E_BAD_PARAMS, Message: "the arguments must be an array"}
	}

	var userContext map[string]any
	if s.contextFunc != nil {
		if userContext, err = s.contextFunc(r); err != nil {
			s.logger.Error("computing the request context failed", zap.Error(err))
			return &json2.Error{Code: json2.E_SERVER, Message: internalServerError}
		}
	}

	out := s.runEndpoint(r.Context(), args.Endpoint, list, userContext, false, r.Header)
	if len(out.Mutations) > 0 {
		s.logger.Debug("context writes dropped by the JSON-RPC bridge",
			zap.String("endpoint", args.Endpoint),
			zap.Int("fields", len(out.Mutations)))
	}
	if out.Err != nil {
		var (
			missing   *MissingEndpointError
			malformed *MalformedRequestError
		)
		switch {
		case isEndpointError(out.Err):
		case errors.As(out.Err, &missing):
			return &json2.Error{Code: json2.E_NO_METHOD, Message: missing.Error()}
		case errors.As(out.Err, &malformed):
			return &json2.Error{Code: json2.E_BAD_PARAMS, Message: malformed.Reason}
		}
		return &json2.Error{Code: json2.E_SERVER, Message: internalServerError}
	}

	result := out.Result
	if jsons.IsUndefined(result) {
		result = nil
	}
	body, err := s.codec.Serialize(result)
	if err != nil {
		uerr := &UsageError{Msg: "endpoint `" + args.Endpoint + "` returned a value that cannot be serialized", Err: err}
		s.logger.Error(uerr.Error(), zap.String("endpoint", args.Endpoint))
		return &json2.Error{Code: json2.E_SERVER, Message: internalServerError}
	}
	reply.Result = body
	return nil
}

// JSONRPCHandler serves the registry as JSON-RPC 2.0 method Endpoints.Call.
// Mount it at DefaultJSONRPCPath for clients dialed WithTransport("jsonrpc").
func (s *Server) JSONRPCHandler() (http.Handler, error) {
	rs := rpc.NewServer()
	rs.RegisterCodec(json2.NewCodec(), "application/json")
	if err := rs.RegisterService(&endpointsService{s: s}, "Endpoints"); err != nil {
		return nil, err
	}
	return rs, nil
}
