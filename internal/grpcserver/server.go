// Package grpcserver serves the standard gRPC health service for the store
// and search index.
package grpcserver

import (
	"context"
	"net"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"novelhub/internal/logging"
)

// Service is the health service name reported alongside the server-wide "".
const Service = "novelhub.Pipeline"

// Probe reports whether a dependency is usable.
type Probe func(ctx context.Context) error

type Server struct {
	grpc   *grpc.Server
	health *health.Server
	probes []Probe
	log    zerolog.Logger
}

func New(log zerolog.Logger, probes ...Probe) *Server {
	s := &Server{
		grpc:   grpc.NewServer(),
		health: health.NewServer(),
		probes: probes,
		log:    logging.Component(log, "grpc"),
	}
	healthpb.RegisterHealthServer(s.grpc, s.health)
	s.setStatus(healthpb.HealthCheckResponse_NOT_SERVING)
	return s
}

func (s *Server) setStatus(st healthpb.HealthCheckResponse_ServingStatus) {
	s.health.SetServingStatus("", st)
	s.health.SetServingStatus(Service, st)
}

// Check runs every probe once and publishes the result.
func (s *Server) Check(ctx context.Context) bool {
	for _, p := range s.probes {
		if err := p(ctx); err != nil {
			s.log.Warn().Err(err).Msg("health probe failed")
			s.setStatus(healthpb.HealthCheckResponse_NOT_SERVING)
			return false
		}
	}
	s.setStatus(healthpb.HealthCheckResponse_SERVING)
	return true
}

// Serve blocks until ctx is cancelled, re-running the probes every interval.
func (s *Server) Serve(ctx context.Context, ln net.Listener, interval time.Duration) error {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	s.Check(ctx)

	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				s.health.Shutdown()
				s.grpc.GracefulStop()
				return
			case <-t.C:
				s.Check(ctx)
			}
		}
	}()

	s.log.Info().Str("addr", ln.Addr().String()).Msg("listening")
	if err := s.grpc.Serve(ln); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}
