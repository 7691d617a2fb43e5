package api

import (
	"context"
	"errors"
	"fmt"
	"net"

	grpc_prometheus "github.com/grpc-ecosystem/go-grpc-prometheus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// #region grpc-server
// NewGRPCServer builds a gRPC server carrying the evaluation service plus
// health and reflection, instrumented with Prometheus interceptors.
func NewGRPCServer(service EvaluationServer, opts ...grpc.ServerOption) *grpc.Server {
	grpc_prometheus.EnableHandlingTimeHistogram()
	opts = append([]grpc.ServerOption{
		grpc.ChainUnaryInterceptor(grpc_prometheus.UnaryServerInterceptor),
		grpc.ChainStreamInterceptor(grpc_prometheus.StreamServerInterceptor),
	}, opts...)
	srv := grpc.NewServer(opts...)

	RegisterEvaluationServer(srv, service)
	grpc_prometheus.Register(srv)

	hs := health.NewServer()
	for _, name := range []string{"", ServiceName} {
		hs.SetServingStatus(name, healthpb.HealthCheckResponse_SERVING)
	}
	healthpb.RegisterHealthServer(srv, hs)
	reflection.Register(srv)
	return srv
}
// #endregion grpc-server

// #region listener
// Server binds a gRPC server to a TCP listener.
type Server struct {
	srv *grpc.Server
	lis net.Listener
}

// Listen opens address and prepares the evaluation server on it.
func Listen(address string, service EvaluationServer, opts ...grpc.ServerOption) (*Server, error) {
	lis, err := net.Listen("tcp", address)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", address, err)
	}
	return &Server{srv: NewGRPCServer(service, opts...), lis: lis}, nil
}

// Serve blocks until the server stops. A graceful stop returns nil.
func (s *Server) Serve() error {
	if err := s.srv.Serve(s.lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return err
	}
	return nil
}

// Shutdown drains in-flight calls and forces a stop once ctx is done.
func (s *Server) Shutdown(ctx context.Context) {
	done := make(chan struct{})
	go func() {
		s.srv.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.srv.Stop()
		<-done
	}
}

// Addr is the bound listener address.
func (s *Server) Addr() string {
	return s.lis.Addr().String()
}
// #endregion listener
