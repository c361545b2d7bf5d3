package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/vogiaan1904/ticketbottle-ticketlink/config"
	httpDelivery "github.com/vogiaan1904/ticketbottle-ticketlink/internal/delivery/http"
	"github.com/vogiaan1904/ticketbottle-ticketlink/internal/delivery/kafka"
	"github.com/vogiaan1904/ticketbottle-ticketlink/internal/delivery/kafka/consumer"
	"github.com/vogiaan1904/ticketbottle-ticketlink/internal/delivery/kafka/producer"
	"github.com/vogiaan1904/ticketbottle-ticketlink/internal/infra/postgres"
	"github.com/vogiaan1904/ticketbottle-ticketlink/internal/infra/redis"
	"github.com/vogiaan1904/ticketbottle-ticketlink/internal/repository"
	pgRepo "github.com/vogiaan1904/ticketbottle-ticketlink/internal/repository/postgres"
	repo "github.com/vogiaan1904/ticketbottle-ticketlink/internal/repository/redis"
	"github.com/vogiaan1904/ticketbottle-ticketlink/internal/service"
	pkgGrpc "github.com/vogiaan1904/ticketbottle-ticketlink/pkg/grpc"
	pkgKafka "github.com/vogiaan1904/ticketbottle-ticketlink/pkg/kafka"
	pkgLog "github.com/vogiaan1904/ticketbottle-ticketlink/pkg/logger"
	"golang.org/x/sync/errgroup"
)

const serviceName = "ticketing-service"

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

	redisCli, err := redis.Connect(ctx, cfg.Redis)
	if err != nil {
		l.Fatalf(ctx, "Failed to connect to Redis: %v", err)
	}
	defer redis.Disconnect(redisCli)

	var userRepo repository.UserRepository
	switch cfg.TicketLink.UserStore {
	case config.UserStorePostgres:
		pool, err := postgres.Connect(ctx, cfg.Postgres)
		if err != nil {
			l.Fatalf(ctx, "Failed to connect to Postgres: %v", err)
		}
		defer postgres.Disconnect(pool)

		if err := pgRepo.EnsureSchema(ctx, pool); err != nil {
			l.Fatalf(ctx, "Failed to prepare Postgres schema: %v", err)
		}
		userRepo = pgRepo.NewPostgresUserRepository(pool, l)
	default:
		userRepo = repo.NewRedisUserRepository(redisCli, l)
	}
	tlRepo := repo.NewRedisTicketLinkRepository(redisCli, l)

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

	// Initialize services
	authSvc := service.NewAuthService(userRepo, cfg.JWT, l)
	if err := authSvc.SeedUsers(ctx, cfg.TicketLink.SeedUsers); err != nil {
		l.Fatalf(ctx, "Failed to seed users: %v", err)
	}
	tlSvc := service.NewTicketLinkService(tlRepo, prod, cfg.TicketLink.Location, l)

	// Result channel consumer
	cons := consumer.NewTicketingConsumer(kConsGr, topics, tlSvc, consumer.Config{
		Location:      cfg.TicketLink.Location,
		RetryMax:      cfg.Kafka.ConsumerRetryMax,
		RetryBackoff:  cfg.Kafka.ConsumerRetryBackoff,
		RejoinBackoff: cfg.Kafka.ConsumerRejoinBackoff,
	}, l)
	if err := cons.Start(ctx); err != nil {
		l.Fatalf(ctx, "Failed to start consumer: %v", err)
	}

	var opts []httpDelivery.Option
	if cfg.Microservice.Rule != "" {
		ruleHealth, closeRuleHealth, err := pkgGrpc.NewHealthClient(cfg.Microservice.Rule)
		if err != nil {
			l.Fatalf(ctx, "Failed to initialize rule service health client: %v", err)
		}
		defer closeRuleHealth()
		opts = append(opts, httpDelivery.WithRuleHealth(ruleHealth))
	}

	// http server
	h := httpDelivery.NewHTTPHandler(authSvc, tlSvc, l, opts...)
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler:      h.Routes(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		l.Infof(ctx, "HTTP server is listening on port: %d", cfg.Server.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gCtx.Done()
		l.Info(ctx, "Server shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		l.Errorf(ctx, "Server stopped with error: %v", err)
	}

	if err := cons.Close(); err != nil {
		l.Errorf(ctx, "Failed to close consumer: %v", err)
	}

	l.Info(ctx, "Server exited")
}
