package poller

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/BearBump/WasteTrack/internal/broker/kafka"
	"github.com/BearBump/WasteTrack/internal/broker/messages"
	"github.com/BearBump/WasteTrack/internal/models"
	"github.com/BearBump/WasteTrack/internal/storage/pgorders"
	"github.com/pkg/errors"
	kafkago "github.com/segmentio/kafka-go"
)

const PlanUsageEventType = "plan.usage"

type Repository interface {
	ClaimDuePlans(ctx context.Context, now time.Time, limit int, lease time.Duration) ([]*models.Plan, error)
	ApplyPlanCheck(ctx context.Context, c pgorders.PlanCheck) error
}

type Accountant interface {
	UsageForPlan(ctx context.Context, plan *models.Plan, now time.Time) (models.Usage, error)
}

type Producer interface {
	Publish(ctx context.Context, topic string, key, value []byte, headers ...kafkago.Header) error
}

// Poller periodically recomputes usage of due plans and announces crossed
// thresholds to Kafka.
type Poller struct {
	repo     Repository
	acct     Accountant
	producer Producer

	topic string

	planner *Planner
	now     func() time.Time

	pollInterval   time.Duration
	batchSize      int
	concurrency    int
	lease          time.Duration
	publishRetries int

	triggerCh chan struct{}

	startedAtUnixNano   int64
	lastCycleUnixNano   atomic.Int64
	lastTriggerUnixNano atomic.Int64
	totalClaimed        atomic.Int64
	totalProcessed      atomic.Int64
	totalErrors         atomic.Int64
	totalNotified       atomic.Int64
	inFlight            atomic.Int64
	lastErrorMu         sync.Mutex
	lastError           string
}

func New(repo Repository, acct Accountant, producer Producer, topic string) *Poller {
	return &Poller{
		repo: repo, acct: acct, producer: producer, topic: topic,
		planner:           DefaultPlanner(),
		now:               func() time.Time { return time.Now().UTC() },
		pollInterval:      5 * time.Second,
		batchSize:         100,
		concurrency:       10,
		lease:             120 * time.Second,
		publishRetries:    5,
		triggerCh:         make(chan struct{}, 1),
		startedAtUnixNano: time.Now().UTC().UnixNano(),
	}
}

func DefaultPlanner() *Planner {
	return NewPlanner(DefaultPlannerConfig(), nil)
}

func (p *Poller) WithSettings(pollInterval time.Duration, batchSize, concurrency int, lease time.Duration) *Poller {
	if pollInterval > 0 {
		p.pollInterval = pollInterval
	}
	if batchSize > 0 {
		p.batchSize = batchSize
	}
	if concurrency > 0 {
		p.concurrency = concurrency
	}
	if lease > 0 {
		p.lease = lease
	}
	return p
}

func (p *Poller) WithPlanner(cfg PlannerConfig) *Poller {
	p.planner = NewPlanner(cfg, nil)
	return p
}

func (p *Poller) WithClock(now func() time.Time) *Poller {
	if now != nil {
		p.now = now
	}
	return p
}

// Trigger forces an immediate poll cycle (best-effort, non-blocking).
func (p *Poller) Trigger() {
	p.lastTriggerUnixNano.Store(time.Now().UTC().UnixNano())
	select {
	case p.triggerCh <- struct{}{}:
	default:
	}
}

type Stats struct {
	StartedAt      time.Time  `json:"startedAt"`
	LastCycleAt    *time.Time `json:"lastCycleAt,omitempty"`
	LastTriggerAt  *time.Time `json:"lastTriggerAt,omitempty"`
	TotalClaimed   int64      `json:"totalClaimed"`
	TotalProcessed int64      `json:"totalProcessed"`
	TotalErrors    int64      `json:"totalErrors"`
	TotalNotified  int64      `json:"totalNotified"`
	InFlight       int64      `json:"inFlight"`
	LastError      string     `json:"lastError,omitempty"`
}

func (p *Poller) Stats() Stats {
	st := Stats{
		StartedAt:      time.Unix(0, p.startedAtUnixNano).UTC(),
		TotalClaimed:   p.totalClaimed.Load(),
		TotalProcessed: p.totalProcessed.Load(),
		TotalErrors:    p.totalErrors.Load(),
		TotalNotified:  p.totalNotified.Load(),
		InFlight:       p.inFlight.Load(),
	}
	if n := p.lastCycleUnixNano.Load(); n > 0 {
		t := time.Unix(0, n).UTC()
		st.LastCycleAt = &t
	}
	if n := p.lastTriggerUnixNano.Load(); n > 0 {
		t := time.Unix(0, n).UTC()
		st.LastTriggerAt = &t
	}
	p.lastErrorMu.Lock()
	st.LastError = p.lastError
	p.lastErrorMu.Unlock()
	return st
}

func (p *Poller) Run(ctx context.Context) error {
	t := time.NewTicker(p.pollInterval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			p.runOnce(ctx)
		case <-p.triggerCh:
			p.runOnce(ctx)
		}
	}
}

func (p *Poller) runOnce(ctx context.Context) {
	now := p.now()
	p.lastCycleUnixNano.Store(time.Now().UTC().UnixNano())

	plans, err := p.repo.ClaimDuePlans(ctx, now, p.batchSize, p.lease)
	if err != nil {
		slog.Error("claim due plans", "error", err.Error())
		p.setLastError(err)
		return
	}
	p.totalClaimed.Add(int64(len(plans)))

	sem := make(chan struct{}, p.concurrency)
	var wg sync.WaitGroup
	for _, pl := range plans {
		sem <- struct{}{}
		wg.Add(1)
		plan := pl
		p.inFlight.Add(1)
		go func() {
			defer func() {
				p.inFlight.Add(-1)
				<-sem
				wg.Done()
			}()
			if err := p.processOne(ctx, plan); err != nil {
				p.totalErrors.Add(1)
				p.setLastError(err)
				slog.Error("process plan", "plan_id", plan.ID, "customer_id", plan.CustomerID, "error", err.Error())
			}
			p.totalProcessed.Add(1)
		}()
	}
	wg.Wait()
}

// processOne recomputes usage of one plan and records the check. A threshold
// is announced at most once per cycle; a failed publish is retried on the
// next check.
func (p *Poller) processOne(ctx context.Context, plan *models.Plan) error {
	now := p.now()

	u, err := p.acct.UsageForPlan(ctx, plan, now)
	if err != nil {
		return p.fail(ctx, plan, now, errors.Wrap(err, "compute usage"))
	}

	notified := 0
	if plan.NotifiedCycleStart != nil && plan.NotifiedCycleStart.Equal(u.CycleStart) {
		notified = plan.NotifiedThreshold
	}
	if crossed := CrossedThreshold(u.Percent); crossed > notified {
		if err := p.publish(ctx, plan, u, crossed, now); err != nil {
			return p.fail(ctx, plan, now, err)
		}
		notified = crossed
		p.totalNotified.Add(1)
		slog.Info("usage threshold crossed", "plan_id", plan.ID, "customer_id", plan.CustomerID, "threshold", crossed, "percent", u.Percent)
	}

	next := now.Add(p.planner.NextCheckDelay(u.Percent))
	if u.CycleEnd.After(now) && next.After(u.CycleEnd) {
		next = u.CycleEnd
	}
	cycleStart := u.CycleStart
	err = p.repo.ApplyPlanCheck(ctx, pgorders.PlanCheck{
		PlanID:             plan.ID,
		CheckedAt:          now,
		NextCheckAt:        next,
		NotifiedThreshold:  notified,
		NotifiedCycleStart: &cycleStart,
	})
	return errors.Wrap(err, "apply plan check")
}

func (p *Poller) fail(ctx context.Context, plan *models.Plan, now time.Time, cause error) error {
	msg := cause.Error()
	err := p.repo.ApplyPlanCheck(ctx, pgorders.PlanCheck{
		PlanID:      plan.ID,
		CheckedAt:   now,
		NextCheckAt: now.Add(p.planner.BackoffDelay(plan.CheckFailCount + 1)),
		Error:       &msg,
	})
	if err != nil {
		slog.Error("apply failed plan check", "plan_id", plan.ID, "error", err.Error())
	}
	return cause
}

func (p *Poller) publish(ctx context.Context, plan *models.Plan, u models.Usage, threshold int, now time.Time) error {
	b, err := json.Marshal(messages.PlanUsageThreshold{
		PlanID:     plan.ID,
		CustomerID: plan.CustomerID,
		Threshold:  threshold,
		Consumed:   u.Consumed,
		Limit:      u.Limit,
		Percent:    u.Percent,
		CycleStart: u.CycleStart,
		CycleEnd:   u.CycleEnd,
		CheckedAt:  now,
	})
	if err != nil {
		return errors.Wrap(err, "marshal kafka msg")
	}

	header := kafkago.Header{Key: kafka.EventTypeHeader, Value: []byte(PlanUsageEventType)}
	// Kafka может быть не готова сразу после старта docker compose.
	var pubErr error
	for i := 0; i < p.publishRetries; i++ {
		if pubErr = p.producer.Publish(ctx, p.topic, []byte(plan.CustomerID), b, header); pubErr == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(150*(i+1)) * time.Millisecond):
		}
	}
	return errors.Wrap(pubErr, "publish usage threshold")
}

func (p *Poller) setLastError(err error) {
	p.lastErrorMu.Lock()
	p.lastError = err.Error()
	p.lastErrorMu.Unlock()
}
