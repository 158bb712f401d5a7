// Package grpc serves the custodian over gRPC on the private link. It
// carries the same operations and auth as the REST API.
package grpc

import (
	"context"
	"net"

	"github.com/dmitrijs2005/saltkeeper/internal/logging"
	pb "github.com/dmitrijs2005/saltkeeper/internal/proto"
	"github.com/dmitrijs2005/saltkeeper/internal/server/config"
	"github.com/dmitrijs2005/saltkeeper/internal/server/ratelimit"
	"github.com/dmitrijs2005/saltkeeper/internal/server/rest"
	"google.golang.org/grpc"
)

type GRPCServer struct {
	address      string
	salts        rest.SaltService
	logger       logging.Logger
	jwtSecret    []byte
	readLimiter  *ratelimit.Limiter
	writeLimiter *ratelimit.Limiter
}

func NewGRPCServer(cfg *config.Config, l logging.Logger, salts rest.SaltService) *GRPCServer {
	return &GRPCServer{
		address:      cfg.EndpointAddrGRPC,
		logger:       l.With("module", "grpc_server"),
		salts:        salts,
		jwtSecret:    []byte(cfg.SecretKey),
		readLimiter:  ratelimit.New(cfg.ReadRatePerMinute),
		writeLimiter: ratelimit.New(cfg.WriteRatePerMinute),
	}
}

// newServer builds the grpc.Server with interceptors and the service
// registered.
func (s *GRPCServer) newServer() *grpc.Server {
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(s.rateLimitInterceptor, s.accessTokenInterceptor))
	pb.RegisterSaltCustodianServer(srv, &handler{salts: s.salts, logger: s.logger})
	return srv
}

func (s *GRPCServer) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}
	return s.Serve(ctx, listen)
}

// Serve accepts connections on listen until ctx is canceled.
func (s *GRPCServer) Serve(ctx context.Context, listen net.Listener) error {
	srv := s.newServer()

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC server...")
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", listen.Addr().String())

	if err := srv.Serve(listen); err != nil {
		return err
	}

	return nil
}
