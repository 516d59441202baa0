// Package grpcapi exposes the standard gRPC health service with one entry
// per lane, so supervisors can probe each reader separately.
package grpcapi

import (
	"context"
	"errors"
	"net"

	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/BrandonDHaskell/tollgate/internal/tollgate/service"
	"github.com/BrandonDHaskell/tollgate/internal/tollgate/types"
)

const lanePrefix = "tollgate.lane."

// LaneService is the health service name for lane.
func LaneService(lane types.Lane) string {
	return lanePrefix + string(lane)
}

type Server struct {
	addr   string
	grpc   *grpc.Server
	health *health.Server
	logger logrus.FieldLogger
}

// NewServer registers the health service and subscribes it to status
// changes.  Lanes start NOT_SERVING until their reader connects.
func NewServer(addr string, status *service.StatusPublisher, logger logrus.FieldLogger) *Server {
	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	for _, l := range types.Lanes {
		hs.SetServingStatus(LaneService(l), servingStatus(status.Lane(l)))
	}

	status.OnChange(func(lane types.Lane, st types.LaneStatus) {
		hs.SetServingStatus(LaneService(lane), servingStatus(st))
	})

	gs := grpc.NewServer()
	healthpb.RegisterHealthServer(gs, hs)

	return &Server{addr: addr, grpc: gs, health: hs, logger: logger}
}

func servingStatus(st types.LaneStatus) healthpb.HealthCheckResponse_ServingStatus {
	if st.ReaderConnected {
		return healthpb.HealthCheckResponse_SERVING
	}
	return healthpb.HealthCheckResponse_NOT_SERVING
}

// Start listens on addr and serves until Shutdown.
func (s *Server) Start() error {
	lis, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	return s.Serve(lis)
}

func (s *Server) Serve(lis net.Listener) error {
	s.logger.WithField("addr", lis.Addr().String()).Info("grpc health listening")
	if err := s.grpc.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return err
	}
	return nil
}

// Shutdown marks everything NOT_SERVING and stops gracefully, falling back
// to a hard stop when ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	s.health.Shutdown()

	done := make(chan struct{})
	go func() {
		s.grpc.GracefulStop()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		s.grpc.Stop()
		return ctx.Err()
	}
}
