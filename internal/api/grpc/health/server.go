package health

import (
	"context"
	"errors"
	"fmt"
	"net"

	"google.golang.org/grpc"
	grpchealth "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	domain "github.com/oshokin/garden-controller/internal/domain/station"
	"github.com/oshokin/garden-controller/internal/logger"
)

// StationService is the health service name tracking the station link.
const StationService = "garden.station"

// Server serves health status for the controller.
type Server struct {
	// health holds the serving status per service.
	health *grpchealth.Server
	// grpc is the transport.
	grpc *grpc.Server
}

// NewServer creates a server reporting NOT_SERVING for every service.
func NewServer() *Server {
	hs := grpchealth.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	hs.SetServingStatus(StationService, healthpb.HealthCheckResponse_NOT_SERVING)

	gs := grpc.NewServer()
	healthpb.RegisterHealthServer(gs, hs)
	reflection.Register(gs)

	return &Server{
		health: hs,
		grpc:   gs,
	}
}

// SetStation publishes the station status.
func (s *Server) SetStation(status domain.Status) {
	serving := healthpb.HealthCheckResponse_NOT_SERVING
	if status.Phase == domain.PhaseConnected {
		serving = healthpb.HealthCheckResponse_SERVING
	}

	s.health.SetServingStatus(StationService, serving)
}

// SetServing marks the controller as a whole as serving.
func (s *Server) SetServing() {
	s.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
}

// Serve serves on lis until ctx is canceled.
func (s *Server) Serve(ctx context.Context, lis net.Listener) error {
	logger.InfoKV(ctx, "Status server listening", "listen_address", lis.Addr().String())

	// Closed after GracefulStop so Serve returns only once the server is down.
	done := make(chan struct{})

	go func() {
		<-ctx.Done()
		s.health.Shutdown()
		s.grpc.GracefulStop()
		close(done)
	}()

	if err := s.grpc.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return fmt.Errorf("serve gRPC: %w", err)
	}

	<-done
	logger.Info(ctx, "Status server stopped")

	return nil
}
