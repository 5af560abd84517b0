package grpc_adapter

import (
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/pedromedina19/hermes-bridge/internal/core/domain"
	"github.com/pedromedina19/hermes-bridge/internal/core/ports"
)

const SubscriberService = "hermes.bridge.Subscriber"

// HealthReporter exposes the broker connection state through grpc.health.v1.
// Both the overall ("") and the subscriber service are SERVING only while connected.
type HealthReporter struct {
	server *health.Server
	logger ports.Logger
}

func NewHealthReporter(logger ports.Logger) *HealthReporter {
	h := &HealthReporter{
		server: health.NewServer(),
		logger: logger,
	}
	h.Update(domain.StateDisconnected)
	return h
}

// Update is meant to be plugged into the subscriber's state hook.
func (h *HealthReporter) Update(state domain.ConnState) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if state == domain.StateConnected {
		status = healthpb.HealthCheckResponse_SERVING
	}
	h.server.SetServingStatus("", status)
	h.server.SetServingStatus(SubscriberService, status)
	h.logger.Debug("Health status updated", "state", state.String(), "status", status.String())
}

func (h *HealthReporter) Register(s *grpc.Server) {
	healthpb.RegisterHealthServer(s, h.server)
	reflection.Register(s)
}

// Shutdown flips every service to NOT_SERVING and ignores later updates.
func (h *HealthReporter) Shutdown() {
	h.server.Shutdown()
}
