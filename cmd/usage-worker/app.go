package main

import (
	"context"
	"time"

	"github.com/BearBump/WasteTrack/config"
	"github.com/BearBump/WasteTrack/internal/broker/kafka"
	"github.com/BearBump/WasteTrack/internal/cache"
	"github.com/BearBump/WasteTrack/internal/cache/rediscache"
	"github.com/BearBump/WasteTrack/internal/services/poller"
	"github.com/BearBump/WasteTrack/internal/services/usage"
	"github.com/BearBump/WasteTrack/internal/storage/pgorders"
)

// workerStore: всё, что воркер берёт из Postgres.
type workerStore interface {
	poller.Repository
	usage.PlanStore
	usage.OrderSource
	PlanRefresher
	Ping(ctx context.Context) error
}

type workerFactories struct {
	newStorage    func(cfg *config.Config) (st workerStore, closeFn func(), err error)
	newProducer   func(cfg *config.Config) (p poller.Producer, closeFn func())
	newUsageCache func(cfg *config.Config) (c cache.BytesCache, ping func(ctx context.Context) error, closeFn func())
}

func defaultWorkerFactories() workerFactories {
	return workerFactories{
		newStorage: func(cfg *config.Config) (workerStore, func(), error) {
			st, err := pgorders.New(cfg.Database.ConnString())
			if err != nil {
				return nil, nil, err
			}
			return st, st.Close, nil
		},
		newProducer: func(cfg *config.Config) (poller.Producer, func()) {
			p := kafka.NewProducer(cfg.Kafka.Brokers())
			return p, func() { _ = p.Close() }
		},
		newUsageCache: func(cfg *config.Config) (cache.BytesCache, func(ctx context.Context) error, func()) {
			rdb := rediscache.NewClient(cfg.Redis.Addr())
			rc := rediscache.New(rdb)
			return rc, rc.Ping, func() { _ = rdb.Close() }
		},
	}
}

func plannerConfig(wt config.WasteTrackConfig) poller.PlannerConfig {
	sec := func(n int) time.Duration { return time.Duration(n) * time.Second }
	return poller.PlannerConfig{
		IdleDelay: sec(wt.WorkerNextCheckIdleSeconds),
		BusyDelay: sec(wt.WorkerNextCheckBusySeconds),
		Backoff1:  sec(wt.WorkerBackoff1Seconds),
		Backoff2:  sec(wt.WorkerBackoff2Seconds),
		Backoff3:  sec(wt.WorkerBackoff3Seconds),
		Backoff4:  sec(wt.WorkerBackoff4Seconds),
	}
}

// RunUsageWorker крутит поллер тарифов и служебный HTTP до отмены ctx.
func RunUsageWorker(ctx context.Context, cfg *config.Config, f workerFactories, httpOpts workerHTTPOpts) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	wt := cfg.WasteTrack
	topic := cfg.Kafka.PlanUsageTopicName
	if topic == "" {
		topic = "plan.usage"
	}

	pollInterval := time.Duration(wt.WorkerPollIntervalSeconds) * time.Second
	if pollInterval <= 0 {
		pollInterval = 5 * time.Second
	}
	batchSize := wt.WorkerBatchSize
	if batchSize <= 0 {
		batchSize = 100
	}
	concurrency := wt.WorkerConcurrency
	if concurrency <= 0 {
		concurrency = 10
	}
	lease := time.Duration(wt.WorkerLeaseSeconds) * time.Second
	if lease <= 0 {
		lease = 120 * time.Second
	}
	usageTTL := time.Duration(wt.UsageCacheTTLSeconds) * time.Second
	if usageTTL <= 0 {
		usageTTL = time.Minute
	}

	st, closeDB, err := f.newStorage(cfg)
	if err != nil {
		return err
	}
	if closeDB != nil {
		defer closeDB()
	}

	producer, closeProducer := f.newProducer(cfg)
	if closeProducer != nil {
		defer closeProducer()
	}

	acct := usage.New(st, st)
	ready := map[string]func(ctx context.Context) error{"postgres": st.Ping}
	if f.newUsageCache != nil {
		c, ping, closeCache := f.newUsageCache(cfg)
		if closeCache != nil {
			defer closeCache()
		}
		acct = acct.WithCache(c, usageTTL)
		if ping != nil {
			ready["redis"] = ping
		}
	}

	p := poller.New(st, acct, producer, topic).
		WithSettings(pollInterval, batchSize, concurrency, lease).
		WithPlanner(plannerConfig(wt))

	httpOpts.poller = p
	httpOpts.plans = st
	httpOpts.cfg = cfg
	httpOpts.ready = ready

	httpErr := make(chan error, 1)
	if httpOpts.swaggerPath != "" {
		if httpOpts.httpAddr == "" {
			httpOpts.httpAddr = wt.WorkerHTTPAddr
		}
		go func() { httpErr <- runWorkerHTTPServer(ctx, httpOpts) }()
	}

	runErr := make(chan error, 1)
	go func() { runErr <- p.Run(ctx) }()

	select {
	case err := <-runErr:
		return err
	case err := <-httpErr:
		if ctx.Err() != nil {
			return <-runErr
		}
		return err
	}
}
