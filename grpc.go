//go:build grpc

// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package wildcard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/encoding"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/brillout/wildcard-api-sub000/jsons"
)

const (
	grpcCodecName  = "wildcard-json"
	grpcService    = "wildcard.Endpoints"
	grpcCallMethod = "/" + grpcService + "/Call"
)

func init() {
	// Register gRPC transport when build tag is enabled
	registerTransport(TransportGRPC, dialGRPC)
	encoding.RegisterCodec(grpcCodec{})
}

// grpcCodec frames bridge messages as JSON so the bridge needs no
// generated protobuf code.
type grpcCodec struct{}

func (grpcCodec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (grpcCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }
func (grpcCodec) Name() string                       { return grpcCodecName }

type grpcCallRequest struct {
	Endpoint string `json:"endpoint"`
	Args     string `json:"args"`
}

type grpcCallReply struct {
	Result string `json:"result"`
}

type grpcEndpoints interface {
	call(ctx context.Context, req *grpcCallRequest) (*grpcCallReply, error)
}

var grpcServiceDesc = grpc.ServiceDesc{
	ServiceName: grpcService,
	HandlerType: (*grpcEndpoints)(nil),
	Methods: []grpc.MethodDesc{{
		MethodName: "Call",
		Handler:    grpcCallHandler,
	}},
	Streams: []grpc.StreamDesc{},
}

func grpcCallHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(grpcCallRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(grpcEndpoints).call(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: grpcCallMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(grpcEndpoints).call(ctx, req.(*grpcCallRequest))
	}
	return interceptor(ctx, in, info, handler)
}

type grpcBridge struct {
	s *Server
}

// RegisterGRPC serves the registry on reg as wildcard.Endpoints/Call. Signed
// cookies sent as "cookie" metadata are trusted; context writes are dropped.
func (s *Server) RegisterGRPC(reg grpc.ServiceRegistrar) {
	reg.RegisterService(&grpcServiceDesc, &grpcBridge{s: s})
}

func (b *grpcBridge) call(ctx context.Context, req *grpcCallRequest) (*grpcCallReply, error) {
	s := b.s
	decoded, err := s.codec.Deserialize(req.Args)
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "the arguments cannot be parsed: %v", err)
	}
	args, ok := decoded.([]any)
	if !ok {
		return nil, status.Error(codes.InvalidArgument, "the arguments must be an array")
	}

	headers := make(http.Header)
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		for _, c := range md.Get("cookie") {
			headers.Add("Cookie", c)
		}
	}

	out := s.runEndpoint(ctx, req.Endpoint, args, nil, false, headers)
	if len(out.Mutations) > 0 {
		s.logger.Debug("context writes dropped by the gRPC bridge",
			zap.String("endpoint", req.Endpoint),
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
			return nil, status.Error(codes.NotFound, missing.Error())
		case errors.As(out.Err, &malformed):
			return nil, status.Error(codes.InvalidArgument, malformed.Reason)
		}
		return nil, status.Error(codes.Internal, internalServerError)
	}

	result := out.Result
	if jsons.IsUndefined(result) {
		result = nil
	}
	body, err := s.codec.Serialize(result)
	if err != nil {
		uerr := &UsageError{Msg: "endpoint `" + req.Endpoint + "` returned a value that cannot be serialized", Err: err}
		s.logger.Error(uerr.Error(), zap.String("endpoint", req.Endpoint))
		return nil, status.Error(codes.Internal, internalServerError)
	}
	return &grpcCallReply{Result: body}, nil
}

// WithGRPCDialOptions passes options to grpc.NewClient.
func WithGRPCDialOptions(opts ...grpc.DialOption) DialOption {
	return func(o *dialOptions) {
		for _, opt := range opts {
			o.transportOpts = append(o.transportOpts, opt)
		}
	}
}

type grpcTransport struct {
	o    *dialOptions
	conn *grpc.ClientConn
}

func dialGRPC(o *dialOptions) (Transport, error) {
	dialOpts := []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}
	for _, opt := range o.transportOpts {
		if d, ok := opt.(grpc.DialOption); ok {
			dialOpts = append(dialOpts, d)
		}
	}
	target := o.serverURL
	if i := strings.Index(target, "://"); i >= 0 && !strings.HasPrefix(target, "passthrough:") && !strings.HasPrefix(target, "dns:") {
		target = target[i+len("://"):]
	}
	conn, err := grpc.NewClient(target, dialOpts...)
	if err != nil {
		return nil, fmt.Errorf("grpc dial: %w", err)
	}
	return &grpcTransport{o: o, conn: conn}, nil
}

func (t *grpcTransport) Invoke(ctx context.Context, endpoint string, args []any) (any, error) {
	serialized, err := t.o.codec.Serialize(args)
	if err != nil {
		return nil, &UsageError{Msg: fmt.Sprintf("the arguments of endpoint `%s` cannot be serialized", endpoint), Err: err}
	}
	var reply grpcCallReply
	err = t.conn.Invoke(ctx, grpcCallMethod, &grpcCallRequest{Endpoint: endpoint, Args: serialized}, &reply,
		grpc.CallContentSubtype(grpcCodecName))
	if err != nil {
		st := status.Convert(err)
		switch st.Code() {
		case codes.Unavailable, codes.Canceled, codes.DeadlineExceeded:
			return nil, connectionFailure(endpoint, err)
		case codes.NotFound:
			return nil, codeFailure(endpoint, http.StatusNotFound, errors.New(st.Message()))
		case codes.InvalidArgument:
			return nil, codeFailure(endpoint, http.StatusBadRequest, errors.New(st.Message()))
		}
		return nil, codeFailure(endpoint, http.StatusInternalServerError, errors.New(st.Message()))
	}
	result, err := t.o.codec.Deserialize(reply.Result)
	if err != nil {
		return nil, codeFailure(endpoint, http.StatusOK, fmt.Errorf("failed to decode result: %w", err))
	}
	return result, nil
}

func (t *grpcTransport) Close() error {
	return t.conn.Close()
}
