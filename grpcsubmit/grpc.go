// Package grpcsubmit carries submissions over gRPC.
//
// The request is a Marshal-framed submission envelope; the reply is a JSON
// receipt. Rejections travel as gRPC status codes and map back to verify
// reasons on the client side.
package grpcsubmit

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// SubmissionsServer is the server API for the Submissions gRPC service.
//
// We intentionally use protobuf well-known wrapper types so this package
// does not require a protoc/codegen toolchain.
type SubmissionsServer interface {
	Submit(context.Context, *wrapperspb.BytesValue) (*wrapperspb.StringValue, error)
}

// UnimplementedSubmissionsServer can be embedded to have forward compatible implementations.
type UnimplementedSubmissionsServer struct{}

func (UnimplementedSubmissionsServer) Submit(context.Context, *wrapperspb.BytesValue) (*wrapperspb.StringValue, error) {
	return nil, status.Error(codes.Unimplemented, "method Submit not implemented")
}

// RegisterSubmissionsServer registers the Submissions service on a gRPC server.
func RegisterSubmissionsServer(s grpc.ServiceRegistrar, srv SubmissionsServer) {
	s.RegisterService(&Submissions_ServiceDesc, srv)
}

// SubmissionsClient is the client API for the Submissions gRPC service.
type SubmissionsClient interface {
	Submit(ctx context.Context, in *wrapperspb.BytesValue, opts ...grpc.CallOption) (*wrapperspb.StringValue, error)
}

type submissionsClient struct{ cc grpc.ClientConnInterface }

func NewSubmissionsClient(cc grpc.ClientConnInterface) SubmissionsClient {
	return &submissionsClient{cc: cc}
}

func (c *submissionsClient) Submit(ctx context.Context, in *wrapperspb.BytesValue, opts ...grpc.CallOption) (*wrapperspb.StringValue, error) {
	out := new(wrapperspb.StringValue)
	err := c.cc.Invoke(ctx, "/claimwire.wire.v1.Submissions/Submit", in, out, opts...)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func _Submissions_Submit_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(wrapperspb.BytesValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(SubmissionsServer).Submit(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/claimwire.wire.v1.Submissions/Submit"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(SubmissionsServer).Submit(ctx, req.(*wrapperspb.BytesValue))
	}
	return interceptor(ctx, in, info, handler)
}

// Submissions_ServiceDesc is the grpc.ServiceDesc for the Submissions service.
var Submissions_ServiceDesc = grpc.ServiceDesc{
	ServiceName: "claimwire.wire.v1.Submissions",
	HandlerType: (*SubmissionsServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Submit", Handler: _Submissions_Submit_Handler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "submissions.proto",
}
