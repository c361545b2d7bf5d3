package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/vogiaan1904/ticketbottle-ticketlink/config"
	grpcDelivery "github.com/vogiaan1904/ticketbottle-ticketlink/internal/delivery/grpc"
	"github.com/vogiaan1904/ticketbottle-ticketlink/internal/delivery/kafka"
	"github.com/vogiaan1904/ticketbottle-ticketlink/internal/delivery/kafka/consumer"
	"github.com/vogiaan1904/ticketbottle-ticketlink/internal/delivery/kafka/producer"
	"github.com/vogiaan1904/ticketbottle-ticketlink/internal/metrics"
	"github.com/vogiaan1904/ticketbottle-ticketlink/internal/rule"
	"github.com/vogiaan1904/ticketbottle-ticketlink/internal/service"
	pkgKafka "github.com/vogiaan1904/ticketbottle-ticketlink/pkg/kafka"
	pkgLog "github.com/vogiaan1904/ticketbottle-ticketlink/pkg/logger"
	"golang.org/x/sync/errgroup"
)

const serviceName = "rule-service"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	l := pkgLog.InitializeZapLogger(pkgLog.ZapConfig{
		Level:    cfg.Log.Level,
		Mode:     cfg.Log.Mode,
		Encoding: cfg.Log.Encoding,
	})

	// Initialize Kafka producer
	kSyncProd, err := pkgKafka.NewProducer(pkgKafka.ProducerConfig{
		Brokers:      cfg.Kafka.Brokers,
		RetryMax:     cfg.Kafka.ProducerRetryMax,
		RequiredAcks: cfg.Kafka.ProducerRequiredAcks,
	})
	if err != nil {
		l.Fatalf(ctx, "Failed to initialize Kafka producer: %v", err)
	}

	// Initialize Kafka consumer
	kConsGr, err := pkgKafka.NewConsumer(pkgKafka.ConsumerConfig{
		Brokers:      cfg.Kafka.Brokers,
		GroupID:      cfg.Kafka.GroupID(serviceName),
		OldestOffset: true,
	})
	if err != nil {
		l.Fatalf(ctx, "Failed to initialize Kafka consumer: %v", err)
	}

	topics := kafka.TopicsFromConfig(cfg.Kafka)
	prod := producer.NewProducer(kSyncProd, topics, l)
	defer prod.Close()

	engine := rule.NewEngine(rule.WithLocation(cfg.TicketLink.Location))
	ruleSvc := service.NewRuleService(engine, prod, cfg.TicketLink.Location, l)

	// Request channel consumer; the same producer carries results and dead letters.
	cons := consumer.NewRuleConsumer(kConsGr, topics, ruleSvc, prod, consumer.Config{
		Location:      cfg.TicketLink.Location,
		RetryMax:      cfg.Kafka.ConsumerRetryMax,
		RetryBackoff:  cfg.Kafka.ConsumerRetryBackoff,
		RejoinBackoff: cfg.Kafka.ConsumerRejoinBackoff,
	}, l)
	if err := cons.Start(ctx); err != nil {
		l.Fatalf(ctx, "Failed to start consumer: %v", err)
	}

	// gRPC health server
	lnr, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Server.GRpcPort))
	if err != nil {
		l.Fatalf(ctx, "gRPC server failed to listen: %v", err)
	}
	healthSrv := grpcDelivery.NewHealthServer(l, grpcDelivery.RuleServiceName)
	healthSrv.SetServing(true)

	// metrics server
	r := chi.NewRouter()
	r.Method(http.MethodGet, "/metrics", metrics.Handler())
	metricsSrv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.MetricsPort),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		l.Infof(ctx, "gRPC server is listening on port: %d", cfg.Server.GRpcPort)
		if err := healthSrv.Serve(lnr); err != nil {
			return fmt.Errorf("grpc server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		l.Infof(ctx, "Metrics server is listening on port: %d", cfg.Server.MetricsPort)
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gCtx.Done()
		l.Info(ctx, "Server shutting down...")

		healthSrv.SetServing(false)
		healthSrv.GracefulStop()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return metricsSrv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		l.Errorf(ctx, "Server stopped with error: %v", err)
	}

	if err := cons.Close(); err != nil {
		l.Errorf(ctx, "Failed to close consumer: %v", err)
	}

	l.Info(ctx, "Server exited")
}
