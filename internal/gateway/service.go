// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package gateway exposes the execution bridge over gRPC so statements can be
// submitted to a running environment from another process. Messages use the
// protobuf well-known types, so no generated code is needed on either side.
package gateway

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const (
	// ServiceName is the fully-qualified gRPC service name.
	ServiceName = "sqlaunch.Gateway"

	submitMethod = "/" + ServiceName + "/Submit"
	jobMethod    = "/" + ServiceName + "/Job"
)

// gatewayServer is the server API of the service.
type gatewayServer interface {
	// Submit executes one statement and describes the resulting job.
	Submit(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error)
	// Job describes a job by id.
	Job(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error)
}

func submitHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(gatewayServer).Submit(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: submitMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(gatewayServer).Submit(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}

func jobHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(gatewayServer).Job(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: jobMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(gatewayServer).Job(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*gatewayServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Submit", Handler: submitHandler},
		{MethodName: "Job", Handler: jobHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "sqlaunch/gateway.proto",
}
