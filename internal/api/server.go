package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	grpc_prometheus "github.com/grpc-ecosystem/go-grpc-prometheus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/miradorstack/mirador-netlog/internal/config"
)

// Server hosts the Analyzer service next to the standard health and reflection services.
type Server struct {
	grpc        *grpc.Server
	health      *health.Server
	listener    net.Listener
	drainWithin time.Duration
}

// NewServer listens on cfg.GRPCAddress and registers svc. Serving starts with Serve.
func NewServer(cfg config.ServerConfig, svc AnalyzerServer, opts ...grpc.ServerOption) (*Server, error) {
	lis, err := net.Listen("tcp", cfg.GRPCAddress)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", cfg.GRPCAddress, err)
	}

	grpc_prometheus.EnableHandlingTimeHistogram()
	gs := grpc.NewServer(append([]grpc.ServerOption{
		grpc.ChainUnaryInterceptor(grpc_prometheus.UnaryServerInterceptor),
		grpc.ChainStreamInterceptor(grpc_prometheus.StreamServerInterceptor),
	}, opts...)...)

	RegisterAnalyzerServer(gs, svc)
	grpc_prometheus.Register(gs)

	hs := health.NewServer()
	for _, name := range []string{"", AnalyzerServiceName} {
		hs.SetServingStatus(name, healthpb.HealthCheckResponse_SERVING)
	}
	healthpb.RegisterHealthServer(gs, hs)
	reflection.Register(gs)

	drain := cfg.GracefulTimeout
	if drain <= 0 {
		drain = 10 * time.Second
	}
	return &Server{grpc: gs, health: hs, listener: lis, drainWithin: drain}, nil
}

// Address is the bound listener address, useful when listening on port 0.
func (s *Server) Address() string {
	return s.listener.Addr().String()
}

// Serve handles requests until ctx is cancelled, then reports NOT_SERVING and drains
// in-flight calls. Calls still running after the drain timeout are cut off.
func (s *Server) Serve(ctx context.Context) error {
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- s.grpc.Serve(s.listener)
	}()

	select {
	case err := <-serveErr:
		if errors.Is(err, grpc.ErrServerStopped) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.health.Shutdown()
	drained := make(chan struct{})
	go func() {
		s.grpc.GracefulStop()
		close(drained)
	}()

	timer := time.NewTimer(s.drainWithin)
	defer timer.Stop()
	select {
	case <-drained:
	case <-timer.C:
		s.grpc.Stop()
		<-drained
	}
	<-serveErr
	return nil
}
