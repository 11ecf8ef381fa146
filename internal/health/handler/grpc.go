package handler

import (
	"context"

	"google.golang.org/grpc/codes"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
)

// ServiceName is the only named service answered besides the overall server ("").
const ServiceName = "enterprise-api"

// GRPC adapts Server to grpc.health.v1.Health. Failed checks are reported as NOT_SERVING, never as an RPC error.
type GRPC struct {
	healthpb.UnimplementedHealthServer
	srv *Server
}

// NewGRPC returns the gRPC health service backed by srv.
func NewGRPC(srv *Server) *GRPC {
	return &GRPC{srv: srv}
}

// Check runs the readiness checks for Kubernetes, load balancers, and CI.
func (g *GRPC) Check(ctx context.Context, req *healthpb.HealthCheckRequest) (*healthpb.HealthCheckResponse, error) {
	if svc := req.GetService(); svc != "" && svc != ServiceName {
		return nil, status.Errorf(codes.NotFound, "unknown service %q", svc)
	}
	if !g.srv.Run(ctx).Healthy() {
		return &healthpb.HealthCheckResponse{Status: healthpb.HealthCheckResponse_NOT_SERVING}, nil
	}
	return &healthpb.HealthCheckResponse{Status: healthpb.HealthCheckResponse_SERVING}, nil
}
