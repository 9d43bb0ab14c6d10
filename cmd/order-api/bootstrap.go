package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/BearBump/WasteTrack/config"
	ordersapi "github.com/BearBump/WasteTrack/internal/api/orders_api"
	"github.com/BearBump/WasteTrack/internal/broker/kafka"
	"github.com/BearBump/WasteTrack/internal/cache/rediscache"
	"github.com/BearBump/WasteTrack/internal/identity/jwtauth"
	"github.com/BearBump/WasteTrack/internal/services/audit"
	"github.com/BearBump/WasteTrack/internal/services/evidence"
	"github.com/BearBump/WasteTrack/internal/services/orders"
	"github.com/BearBump/WasteTrack/internal/services/usage"
	"github.com/BearBump/WasteTrack/internal/storage/pgorders"
	"github.com/redis/go-redis/v9"
)

type orderAPIApp struct {
	ctx       context.Context
	cancel    context.CancelFunc
	opts      orderAPIOpts
	api       *ordersapi.OrdersAPI
	consumer  *kafka.Consumer
	projector *audit.Projector
	producer  *kafka.Producer
	rdb       *redis.Client
	closeDB   func()
}

func mustBootstrapOrderAPI() *orderAPIApp {
	cfgPath := os.Getenv("configPath")
	if cfgPath == "" {
		panic("configPath env var is required")
	}
	swaggerPath := os.Getenv("swaggerPath")
	if swaggerPath == "" {
		panic("swaggerPath env var is required")
	}

	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		panic(fmt.Sprintf("ошибка парсинга конфига, %v", err))
	}
	if cfg.Auth.JWTSecret == "" {
		panic("auth.jwt_secret (or JWT_SECRET) is required")
	}

	wt := cfg.WasteTrack
	grpcAddr := wt.GRPCAddr
	if grpcAddr == "" {
		grpcAddr = ":50051"
	}
	httpAddr := wt.HTTPAddr
	if httpAddr == "" {
		httpAddr = ":8080"
	}
	consumerGroup := wt.KafkaConsumerGroup
	if consumerGroup == "" {
		consumerGroup = "order-api"
	}
	auditTopic := cfg.Kafka.AuditTopicName
	if auditTopic == "" {
		auditTopic = "order.audit"
	}
	currentTTL := time.Duration(wt.CurrentStatusTTLSeconds) * time.Second
	if currentTTL <= 0 {
		currentTTL = 10 * time.Minute
	}
	usageTTL := time.Duration(wt.UsageCacheTTLSeconds) * time.Second
	if usageTTL <= 0 {
		usageTTL = time.Minute
	}
	heartbeat := time.Duration(wt.SSEHeartbeatSeconds) * time.Second
	rlPerMin := wt.RateLimitPerMinute
	if rlPerMin == 0 {
		rlPerMin = 60
	}

	st := mustOpenPostgresWithRetry(cfg.Database.ConnString(), 60*time.Second)

	rdb := rediscache.NewClient(cfg.Redis.Addr())
	rc := rediscache.New(rdb)
	notifier := rediscache.NewNotifier(rdb)

	app := &orderAPIApp{rdb: rdb, closeDB: st.Close}

	var sink orders.AuditSink = st
	if wt.AuditSink != "postgres" {
		app.producer = kafka.NewProducer(cfg.Kafka.Brokers())
		sink = kafka.NewAuditPublisher(app.producer, auditTopic)
		app.consumer = kafka.NewConsumer(cfg.Kafka.Brokers(), auditTopic, consumerGroup)
		app.projector = audit.NewProjector(st)
	}

	svc := orders.New(st, sink, st, rc, currentTTL).WithNotifier(notifier)
	ledger := evidence.New(st, st).WithNotifier(notifier)
	acct := usage.New(st, st).WithCache(rc, usageTTL)

	app.api = ordersapi.New(ordersapi.Deps{
		Orders:   svc,
		Evidence: ledger,
		Usage:    acct,
		Plans:    st,
		Sessions: jwtauth.NewVerifier(cfg.Auth.JWTSecret, cfg.Auth.Issuer),
		Changes:  notifier,
		Limiter:  rediscache.NewRateLimiter(rdb),
		Ready: map[string]func(ctx context.Context) error{
			"postgres": st.Ping,
			"redis":    rc.Ping,
		},
	}, ordersapi.Options{
		RateLimitPerMinute: rlPerMin,
		AllowedOrigins:     wt.CORSAllowedOrigins,
		SSEHeartbeat:       heartbeat,
		SwaggerPath:        swaggerPath,
	})

	app.ctx, app.cancel = signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	app.opts = orderAPIOpts{
		grpcAddr:      grpcAddr,
		httpAddr:      httpAddr,
		swaggerPath:   swaggerPath,
		topic:         auditTopic,
		consumerGroup: consumerGroup,
	}
	return app
}

func mustOpenPostgresWithRetry(connString string, wait time.Duration) *pgorders.Storage {
	deadline := time.Now().Add(wait)
	var lastErr error
	for time.Now().Before(deadline) {
		st, err := pgorders.New(connString)
		if err == nil {
			return st
		}
		lastErr = err
		time.Sleep(1 * time.Second)
	}
	panic(fmt.Sprintf("postgres is not ready after %s: %v", wait, lastErr))
}

func (a *orderAPIApp) Close() {
	if a.cancel != nil {
		a.cancel()
	}
	if a.consumer != nil {
		_ = a.consumer.Close()
	}
	if a.producer != nil {
		_ = a.producer.Close()
	}
	if a.rdb != nil {
		_ = a.rdb.Close()
	}
	if a.closeDB != nil {
		a.closeDB()
	}
}

func (a *orderAPIApp) Run() error {
	var consumer auditConsumer
	if a.consumer != nil {
		consumer = a.consumer
	}
	return runOrderAPI(a.ctx, a.opts, a.api.Routes(), consumer, a.projector)
}
