// Package rlserver exposes RL's health over gRPC's standard health/v1
// service. Wire protobuf framing of the RL write/read operations themselves
// is the external-collaborator concern spec.md §1 names as a Non-goal — this
// package only carries the ambient liveness/readiness surface a deployed
// gRPC service needs, grounded on the teacher's pkg/api.Server (NewServer/
// Start/Stop wrapping a *grpc.Server) and pkg/metrics.HealthChecker's
// critical-component readiness model.
package rlserver

import (
	"fmt"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/aruna-project/aruna-server/pkg/alog"
)

// LeaderChecker is the subset of txcontroller.Controller the server polls to
// decide whether the TC component is serving.
type LeaderChecker interface {
	IsLeader() bool
}

// Server wraps a *grpc.Server exposing only grpc_health_v1, keyed by the
// component names pkg/metrics.GetReadiness already treats as critical: "tc",
// "recordstore", "eventbus".
type Server struct {
	grpc   *grpc.Server
	health *health.Server
}

// New constructs a Server with every tracked component reporting NOT_SERVING
// until SetServing is called.
func New() *Server {
	h := health.NewServer()
	g := grpc.NewServer()
	grpc_health_v1.RegisterHealthServer(g, h)
	reflection.Register(g)

	s := &Server{grpc: g, health: h}
	for _, name := range []string{"", "tc", "recordstore", "eventbus"} {
		h.SetServingStatus(name, grpc_health_v1.HealthCheckResponse_NOT_SERVING)
	}
	return s
}

// SetServing updates one component's status. An empty name sets the
// overall service status the default health check (no service name) reports.
func (s *Server) SetServing(component string, serving bool) {
	status := grpc_health_v1.HealthCheckResponse_NOT_SERVING
	if serving {
		status = grpc_health_v1.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus(component, status)
}

// WatchLeader reads tc's current raft leadership once and mirrors it into the
// "tc" component; it does not keep watching. cmd/aruna-server calls it once
// at startup.
func (s *Server) WatchLeader(tc LeaderChecker) {
	s.SetServing("tc", tc.IsLeader())
}

// Start listens on addr and serves until Stop is called. Meant to be run in
// its own goroutine, matching the teacher's Server.Start(addr) shape.
func (s *Server) Start(addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("rlserver: listen: %w", err)
	}
	alog.WithComponent("rlserver").Info().Str("addr", addr).Msg("gRPC health server listening")
	return s.grpc.Serve(lis)
}

// Stop gracefully stops the gRPC server.
func (s *Server) Stop() {
	s.health.Shutdown()
	s.grpc.GracefulStop()
}
