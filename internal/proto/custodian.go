// Package proto describes the SaltCustodian gRPC service. Messages are
// protobuf well-known types, so no generated code is needed:
//
//	Store(Struct{salt, purpose, expiresInDays?})  -> Struct{saltId, expiresAt}
//	Fetch(StringValue id)                          -> Struct{salt, purpose, createdAt, accessCount}
//	Delete(StringValue id)                         -> Empty
//	Cleanup(Empty)                                 -> Int64Value deletedCount
//	Stats(Empty)                                   -> Struct{purpose: count}
//	Health(Empty)                                  -> Empty
//
// Salts travel base64 encoded inside Structs, timestamps as RFC 3339.
package proto

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const ServiceName = "saltkeeper.custodian.v1.SaltCustodian"

// Full method names, as seen by interceptors and used by clients.
const (
	MethodStore   = "/" + ServiceName + "/Store"
	MethodFetch   = "/" + ServiceName + "/Fetch"
	MethodDelete  = "/" + ServiceName + "/Delete"
	MethodCleanup = "/" + ServiceName + "/Cleanup"
	MethodStats   = "/" + ServiceName + "/Stats"
	MethodHealth  = "/" + ServiceName + "/Health"
)

// Struct field names.
const (
	FieldSalt          = "salt"
	FieldPurpose       = "purpose"
	FieldExpiresInDays = "expiresInDays"
	FieldSaltID        = "saltId"
	FieldExpiresAt     = "expiresAt"
	FieldCreatedAt     = "createdAt"
	FieldAccessCount   = "accessCount"
)

// SaltCustodianServer is implemented by the custodian.
type SaltCustodianServer interface {
	Store(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Fetch(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error)
	Delete(context.Context, *wrapperspb.StringValue) (*emptypb.Empty, error)
	Cleanup(context.Context, *emptypb.Empty) (*wrapperspb.Int64Value, error)
	Stats(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	Health(context.Context, *emptypb.Empty) (*emptypb.Empty, error)
}

// RegisterSaltCustodianServer registers srv on s.
func RegisterSaltCustodianServer(s grpc.ServiceRegistrar, srv SaltCustodianServer) {
	s.RegisterService(&SaltCustodianServiceDesc, srv)
}

// unary builds a MethodDesc handler for one method. newReq allocates the
// request message; call invokes the server.
func unary[Req any](
	fullMethod string,
	newReq func() *Req,
	call func(SaltCustodianServer, context.Context, *Req) (any, error),
) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := newReq()
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(SaltCustodianServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(SaltCustodianServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

func newStruct() *structpb.Struct        { return &structpb.Struct{} }
func newString() *wrapperspb.StringValue { return &wrapperspb.StringValue{} }
func newEmpty() *emptypb.Empty           { return &emptypb.Empty{} }

var SaltCustodianServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*SaltCustodianServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Store",
			Handler: unary(MethodStore, newStruct, func(s SaltCustodianServer, ctx context.Context, in *structpb.Struct) (any, error) {
				return s.Store(ctx, in)
			}),
		},
		{
			MethodName: "Fetch",
			Handler: unary(MethodFetch, newString, func(s SaltCustodianServer, ctx context.Context, in *wrapperspb.StringValue) (any, error) {
				return s.Fetch(ctx, in)
			}),
		},
		{
			MethodName: "Delete",
			Handler: unary(MethodDelete, newString, func(s SaltCustodianServer, ctx context.Context, in *wrapperspb.StringValue) (any, error) {
				return s.Delete(ctx, in)
			}),
		},
		{
			MethodName: "Cleanup",
			Handler: unary(MethodCleanup, newEmpty, func(s SaltCustodianServer, ctx context.Context, in *emptypb.Empty) (any, error) {
				return s.Cleanup(ctx, in)
			}),
		},
		{
			MethodName: "Stats",
			Handler: unary(MethodStats, newEmpty, func(s SaltCustodianServer, ctx context.Context, in *emptypb.Empty) (any, error) {
				return s.Stats(ctx, in)
			}),
		},
		{
			MethodName: "Health",
			Handler: unary(MethodHealth, newEmpty, func(s SaltCustodianServer, ctx context.Context, in *emptypb.Empty) (any, error) {
				return s.Health(ctx, in)
			}),
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "saltkeeper/custodian/v1/custodian.proto",
}

// WriteMethods are rate limited with the stricter write budget.
var WriteMethods = map[string]bool{
	MethodStore:   true,
	MethodDelete:  true,
	MethodCleanup: true,
}
