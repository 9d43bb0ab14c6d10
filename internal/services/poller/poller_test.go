package poller

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/BearBump/WasteTrack/internal/broker/kafka"
	"github.com/BearBump/WasteTrack/internal/broker/messages"
	"github.com/BearBump/WasteTrack/internal/models"
	"github.com/BearBump/WasteTrack/internal/storage/pgorders"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
)

type fakeProducer struct {
	mu      sync.Mutex
	topic   string
	key     []byte
	value   []byte
	headers []kafkago.Header
	calls   int
	err     error
}

func (p *fakeProducer) Publish(ctx context.Context, topic string, key, value []byte, headers ...kafkago.Header) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	p.topic, p.key, p.value, p.headers = topic, key, value, headers
	return p.err
}

type fakeRepo struct {
	mu     sync.Mutex
	plans  []*models.Plan
	claims int
	checks []pgorders.PlanCheck
}

func (r *fakeRepo) ClaimDuePlans(ctx context.Context, now time.Time, limit int, lease time.Duration) ([]*models.Plan, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.claims++
	out := r.plans
	r.plans = nil
	return out, nil
}

func (r *fakeRepo) ApplyPlanCheck(ctx context.Context, c pgorders.PlanCheck) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.checks = append(r.checks, c)
	return nil
}

type fakeAccountant struct {
	u   models.Usage
	err error
}

func (a fakeAccountant) UsageForPlan(ctx context.Context, plan *models.Plan, now time.Time) (models.Usage, error) {
	return a.u, a.err
}

var (
	testNow   = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	testCycle = time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
)

func usageAt(percent float64) models.Usage {
	return models.Usage{
		CustomerID: "c1", PlanID: "p1",
		Consumed: percent, Limit: 100, Percent: percent,
		CycleStart: testCycle, CycleEnd: testCycle.Add(30 * 24 * time.Hour),
	}
}

func newTestPoller(repo *fakeRepo, acct Accountant, fp *fakeProducer) *Poller {
	p := New(repo, acct, fp, "plan.usage").WithClock(func() time.Time { return testNow })
	p.publishRetries = 1
	return p
}

func TestPoller_processOne_publishesCrossedThreshold(t *testing.T) {
	repo := &fakeRepo{}
	fp := &fakeProducer{}
	p := newTestPoller(repo, fakeAccountant{u: usageAt(85)}, fp)

	plan := &models.Plan{ID: "p1", CustomerID: "c1", LimitKg: 100, StartDate: testCycle}
	require.NoError(t, p.processOne(context.Background(), plan))

	require.Equal(t, 1, fp.calls)
	require.Equal(t, "plan.usage", fp.topic)
	require.Equal(t, []byte("c1"), fp.key)
	require.Equal(t, PlanUsageEventType, kafka.HeaderValue(fp.headers, kafka.EventTypeHeader))

	var msg messages.PlanUsageThreshold
	require.NoError(t, json.Unmarshal(fp.value, &msg))
	require.Equal(t, 80, msg.Threshold)
	require.Equal(t, 85.0, msg.Percent)

	require.Len(t, repo.checks, 1)
	c := repo.checks[0]
	require.Nil(t, c.Error)
	require.Equal(t, 80, c.NotifiedThreshold)
	require.True(t, c.NotifiedCycleStart.Equal(testCycle))
	require.Equal(t, testNow.Add(DefaultPlannerConfig().BusyDelay), c.NextCheckAt)
}

func TestPoller_processOne_oncePerCycle(t *testing.T) {
	repo := &fakeRepo{}
	fp := &fakeProducer{}
	p := newTestPoller(repo, fakeAccountant{u: usageAt(90)}, fp)

	cs := testCycle
	plan := &models.Plan{ID: "p1", CustomerID: "c1", NotifiedThreshold: 80, NotifiedCycleStart: &cs}
	require.NoError(t, p.processOne(context.Background(), plan))
	require.Equal(t, 0, fp.calls)
	require.Equal(t, 80, repo.checks[0].NotifiedThreshold)

	// следующий порог в том же цикле объявляется
	p.acct = fakeAccountant{u: usageAt(100)}
	require.NoError(t, p.processOne(context.Background(), plan))
	require.Equal(t, 1, fp.calls)
	require.Equal(t, 100, repo.checks[1].NotifiedThreshold)
}

func TestPoller_processOne_newCycleResets(t *testing.T) {
	repo := &fakeRepo{}
	fp := &fakeProducer{}
	p := newTestPoller(repo, fakeAccountant{u: usageAt(10)}, fp)

	prev := testCycle.Add(-30 * 24 * time.Hour)
	plan := &models.Plan{ID: "p1", CustomerID: "c1", NotifiedThreshold: 100, NotifiedCycleStart: &prev}
	require.NoError(t, p.processOne(context.Background(), plan))

	require.Equal(t, 0, fp.calls)
	require.Equal(t, 0, repo.checks[0].NotifiedThreshold)
	require.True(t, repo.checks[0].NotifiedCycleStart.Equal(testCycle))
	require.Equal(t, testNow.Add(DefaultPlannerConfig().IdleDelay), repo.checks[0].NextCheckAt)
}

func TestPoller_processOne_nextCheckNotAfterCycleEnd(t *testing.T) {
	repo := &fakeRepo{}
	u := usageAt(10)
	u.CycleEnd = testNow.Add(5 * time.Minute)
	p := newTestPoller(repo, fakeAccountant{u: u}, &fakeProducer{})

	require.NoError(t, p.processOne(context.Background(), &models.Plan{ID: "p1", CustomerID: "c1"}))
	require.Equal(t, u.CycleEnd, repo.checks[0].NextCheckAt)
}

func TestPoller_processOne_usageErrorBackoff(t *testing.T) {
	repo := &fakeRepo{}
	fp := &fakeProducer{}
	p := newTestPoller(repo, fakeAccountant{err: errors.New("db down")}, fp)

	err := p.processOne(context.Background(), &models.Plan{ID: "p1", CustomerID: "c1", CheckFailCount: 2})
	require.Error(t, err)
	require.Equal(t, 0, fp.calls)
	require.Len(t, repo.checks, 1)
	require.NotNil(t, repo.checks[0].Error)
	require.Contains(t, *repo.checks[0].Error, "db down")
	require.Equal(t, testNow.Add(15*time.Minute), repo.checks[0].NextCheckAt)
}

func TestPoller_processOne_publishErrorIsRetriedLater(t *testing.T) {
	repo := &fakeRepo{}
	fp := &fakeProducer{err: errors.New("kafka unavailable")}
	p := newTestPoller(repo, fakeAccountant{u: usageAt(100)}, fp)

	err := p.processOne(context.Background(), &models.Plan{ID: "p1", CustomerID: "c1"})
	require.Error(t, err)
	require.NotNil(t, repo.checks[0].Error)
	require.Nil(t, repo.checks[0].NotifiedCycleStart)
}

func TestPoller_runOnce_Stats(t *testing.T) {
	repo := &fakeRepo{plans: []*models.Plan{
		{ID: "p1", CustomerID: "c1"},
		{ID: "p2", CustomerID: "c2"},
	}}
	fp := &fakeProducer{}
	p := newTestPoller(repo, fakeAccountant{u: usageAt(100)}, fp)

	p.runOnce(context.Background())

	st := p.Stats()
	require.Equal(t, int64(2), st.TotalClaimed)
	require.Equal(t, int64(2), st.TotalProcessed)
	require.Equal(t, int64(0), st.TotalErrors)
	require.Equal(t, int64(2), st.TotalNotified)
	require.Equal(t, int64(0), st.InFlight)
	require.NotNil(t, st.LastCycleAt)
	require.Len(t, repo.checks, 2)
}

func TestPoller_WithSettings(t *testing.T) {
	p := New(nil, nil, nil, "t").
		WithSettings(5*time.Second, 7, 9, 11*time.Second)
	require.Equal(t, 5*time.Second, p.pollInterval)
	require.Equal(t, 7, p.batchSize)
	require.Equal(t, 9, p.concurrency)
	require.Equal(t, 11*time.Second, p.lease)
}
