package grpc

import (
	"context"

	"github.com/dmitrijs2005/saltkeeper/internal/common"
	"github.com/dmitrijs2005/saltkeeper/internal/netx"
	pb "github.com/dmitrijs2005/saltkeeper/internal/proto"
	"github.com/dmitrijs2005/saltkeeper/internal/server/auth"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
)

type ctxKey string

const clientIDKey ctxKey = "clientID"

// accessTokenInterceptor requires a bearer token on every method but Health.
// All failures share one status message.
func (s *GRPCServer) accessTokenInterceptor(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
	if info.FullMethod == pb.MethodHealth {
		return handler(ctx, req)
	}

	var header string
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if values := md.Get(common.AuthorizationHeaderName); len(values) > 0 {
			header = values[0]
		}
	}

	clientID, err := auth.Authenticate(header, s.jwtSecret)
	if err != nil {
		s.logger.Warn(ctx, "rejected credential", "method", info.FullMethod)
		return nil, status.Error(codes.Unauthenticated, "unauthorized")
	}

	ctx = context.WithValue(ctx, clientIDKey, clientID)
	return handler(ctx, req)
}

// rateLimitInterceptor applies the read or write budget by peer address.
func (s *GRPCServer) rateLimitInterceptor(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
	l := s.readLimiter
	if pb.WriteMethods[info.FullMethod] {
		l = s.writeLimiter
	}
	if ok, _ := l.Allow(peerIP(ctx)); !ok {
		return nil, status.Error(codes.ResourceExhausted, "rate_limited")
	}
	return handler(ctx, req)
}

func peerIP(ctx context.Context) string {
	p, ok := peer.FromContext(ctx)
	if !ok || p.Addr == nil {
		return "unknown"
	}
	return netx.HostOnly(p.Addr.String())
}
