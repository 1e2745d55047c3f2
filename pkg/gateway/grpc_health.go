// Copyright © 2025 Prabhjot Singh Sethi, All Rights reserved
// Author: Prabhjot Singh Sethi <prabhjot.sethi@gmail.com>

package gateway

import (
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// HealthServer exposes the standard grpc.health.v1 service for
// orchestrators that probe over gRPC
type HealthServer struct {
	*grpc.Server
	health *health.Server
}

// NewHealthServer creates a gRPC server carrying only the health
// service, reporting serving for the overall server and SourceName
func NewHealthServer(opts ...grpc.ServerOption) *HealthServer {
	s := &HealthServer{
		Server: grpc.NewServer(opts...),
		health: health.NewServer(),
	}
	healthpb.RegisterHealthServer(s.Server, s.health)
	s.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	s.health.SetServingStatus(SourceName, healthpb.HealthCheckResponse_SERVING)
	return s
}

// Shutdown marks every service as not serving and stops the server
// once pending calls are done
func (s *HealthServer) Shutdown() {
	s.health.Shutdown()
	s.Server.GracefulStop()
}
