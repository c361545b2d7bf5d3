package grpc

import (
	"context"
	"net"
	"time"

	"github.com/vogiaan1904/ticketbottle-ticketlink/pkg/logger"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// RuleServiceName is the health service name reported by the rule service.
const RuleServiceName = "ticketlink.RuleService"

// HealthServer exposes grpc.health.v1 for a worker that has no RPC surface of its own.
type HealthServer struct {
	srv      *grpc.Server
	hs       *health.Server
	services []string
	l        logger.Logger
}

func NewHealthServer(l logger.Logger, services ...string) *HealthServer {
	s := &HealthServer{
		hs:       health.NewServer(),
		services: services,
		l:        l,
	}
	s.srv = grpc.NewServer(grpc.UnaryInterceptor(s.logUnary))
	healthpb.RegisterHealthServer(s.srv, s.hs)

	// Not serving until the worker reports ready.
	s.SetServing(false)

	return s
}

// SetServing flips every registered service and the overall server status.
func (s *HealthServer) SetServing(serving bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		status = healthpb.HealthCheckResponse_SERVING
	}

	s.hs.SetServingStatus("", status)
	for _, name := range s.services {
		s.hs.SetServingStatus(name, status)
	}
}

func (s *HealthServer) Serve(lnr net.Listener) error {
	return s.srv.Serve(lnr)
}

func (s *HealthServer) GracefulStop() {
	s.hs.Shutdown()
	s.srv.GracefulStop()
}

func (s *HealthServer) logUnary(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	if err != nil {
		s.l.Warnf(ctx, "delivery.grpc.%s: %v", info.FullMethod, err)
		return resp, err
	}

	s.l.Debugf(ctx, "delivery.grpc.%s: %s", info.FullMethod, time.Since(start))
	return resp, nil
}
