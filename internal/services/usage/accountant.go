package usage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/BearBump/WasteTrack/internal/cache"
	"github.com/BearBump/WasteTrack/internal/models"
	"github.com/BearBump/WasteTrack/internal/pipeline"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// CycleLength: фиксированный 30-дневный цикл, не календарный месяц.
const CycleLength = 30 * 24 * time.Hour

type PlanStore interface {
	// ActivePlan returns nil, nil when the customer has no active plan.
	ActivePlan(ctx context.Context, customerID string) (*models.Plan, error)
}

type OrderSource interface {
	// ListOrdersForUsage returns the customer's orders created in [from, to).
	ListOrdersForUsage(ctx context.Context, customerID string, from, to time.Time) ([]*models.Order, error)
}

var billable = map[pipeline.StageKey]struct{}{
	pipeline.Collected: {},
	pipeline.Treated:   {},
	pipeline.Certified: {},
}

// IsBillable reports whether an order in this raw status counts toward usage.
func IsBillable(raw string) bool {
	_, ok := billable[pipeline.Normalize(raw)]
	return ok
}

type Accountant struct {
	plans  PlanStore
	orders OrderSource
	cache  cache.BytesCache
	ttl    time.Duration
}

func New(plans PlanStore, orders OrderSource) *Accountant {
	return &Accountant{plans: plans, orders: orders}
}

// WithCache enables best-effort caching of computed usage. ttl<=0 disables it.
func (a *Accountant) WithCache(c cache.BytesCache, ttl time.Duration) *Accountant {
	a.cache = c
	a.ttl = ttl
	return a
}

// CycleWindow returns the cycle containing now. Before the plan starts the
// first cycle is returned.
func CycleWindow(start, now time.Time) (time.Time, time.Time) {
	elapsed := int64(0)
	if now.After(start) {
		elapsed = int64(now.Sub(start) / CycleLength)
	}
	cycleStart := start.Add(time.Duration(elapsed) * CycleLength)
	return cycleStart, cycleStart.Add(CycleLength)
}

func (a *Accountant) Usage(ctx context.Context, customerID string, now time.Time) (models.Usage, error) {
	if customerID == "" {
		return models.Usage{}, errors.New("customerId is required")
	}
	plan, err := a.plans.ActivePlan(ctx, customerID)
	if err != nil {
		return models.Usage{}, errors.Wrap(err, "active plan")
	}
	if plan == nil {
		return models.Usage{CustomerID: customerID, NoPlan: true}, nil
	}
	return a.UsageForPlan(ctx, plan, now)
}

// UsageForPlan computes usage of a known plan.
func (a *Accountant) UsageForPlan(ctx context.Context, plan *models.Plan, now time.Time) (models.Usage, error) {
	cycleStart, cycleEnd := CycleWindow(plan.StartDate, now)
	key := cacheKey(plan.CustomerID, cycleStart)
	if u, ok := a.getCached(ctx, key); ok && u.PlanID == plan.ID {
		return u, nil
	}

	orders, err := a.orders.ListOrdersForUsage(ctx, plan.CustomerID, cycleStart, cycleEnd)
	if err != nil {
		return models.Usage{}, errors.Wrap(err, "list orders for usage")
	}

	consumed := decimal.Zero
	for _, o := range orders {
		if o.CustomerID != plan.CustomerID || !IsBillable(o.RawStatus) {
			continue
		}
		if o.CreatedAt.Before(cycleStart) || !o.CreatedAt.Before(cycleEnd) {
			continue
		}
		consumed = consumed.Add(ToKg(o.Quantity, o.Unit))
	}

	limit := decimal.NewFromFloat(plan.LimitKg)
	percent := decimal.Zero
	if limit.IsPositive() {
		percent = consumed.Div(limit).Mul(decimal.NewFromInt(100))
		if percent.GreaterThan(decimal.NewFromInt(100)) {
			percent = decimal.NewFromInt(100)
		}
	}

	u := models.Usage{
		CustomerID: plan.CustomerID,
		PlanID:     plan.ID,
		Consumed:   consumed.Round(3).InexactFloat64(),
		Limit:      plan.LimitKg,
		Percent:    percent.Round(2).InexactFloat64(),
		CycleStart: cycleStart,
		CycleEnd:   cycleEnd,
	}
	a.putCached(ctx, key, u)
	return u, nil
}

func (a *Accountant) getCached(ctx context.Context, key string) (models.Usage, bool) {
	if a.cache == nil || a.ttl <= 0 {
		return models.Usage{}, false
	}
	b, ok, err := a.cache.Get(ctx, key)
	if err != nil {
		slog.Warn("usage cache get failed", "key", key, "error", err.Error())
		return models.Usage{}, false
	}
	if !ok {
		return models.Usage{}, false
	}
	var u models.Usage
	if err := json.Unmarshal(b, &u); err != nil {
		return models.Usage{}, false
	}
	return u, true
}

func (a *Accountant) putCached(ctx context.Context, key string, u models.Usage) {
	if a.cache == nil || a.ttl <= 0 {
		return
	}
	b, err := json.Marshal(u)
	if err != nil {
		return
	}
	if err := a.cache.Set(ctx, key, b, a.ttl); err != nil {
		slog.Warn("usage cache set failed", "key", key, "error", err.Error())
	}
}

func cacheKey(customerID string, cycleStart time.Time) string {
	return fmt.Sprintf("usage:%s:%d", customerID, cycleStart.Unix())
}
