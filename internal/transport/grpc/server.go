package grpc_server

import (
	"context"
	"log"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// ServiceName is the name the portal reports under in grpc.health.v1.
const ServiceName = "training.portal"

const probeTimeout = 3 * time.Second

type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthReporter keeps the gRPC health status in line with the document store.
type HealthReporter struct {
	health *health.Server
	store  Pinger
}

func NewServer(store Pinger) (*grpc.Server, *HealthReporter) {
	srv := grpc.NewServer()
	hr := &HealthReporter{health: health.NewServer(), store: store}
	healthpb.RegisterHealthServer(srv, hr.health)
	reflection.Register(srv)
	return srv, hr
}

// Probe pings the store and publishes the result.
func (r *HealthReporter) Probe(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	status := healthpb.HealthCheckResponse_SERVING
	if err := r.store.Ping(ctx); err != nil {
		log.Printf("health: store ping failed: %v", err)
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}
	r.health.SetServingStatus("", status)
	r.health.SetServingStatus(ServiceName, status)
}

func (r *HealthReporter) Shutdown() {
	r.health.Shutdown()
}
