package poller

import (
	"math/rand"
	"sync"
	"time"
)

// Thresholds are the usage percents announced once per cycle, ascending.
var Thresholds = []int{80, 100}

type Rand interface {
	Intn(n int) int
}

type PlannerConfig struct {
	IdleDelay time.Duration // usage below the first threshold, default: 60 minutes
	BusyDelay time.Duration // usage at or above the first threshold, default: 10 minutes

	// Jitter spreads plans claimed together over time. 0 disables it.
	Jitter time.Duration

	Backoff1 time.Duration // default: 1 minute
	Backoff2 time.Duration // default: 5 minutes
	Backoff3 time.Duration // default: 15 minutes
	Backoff4 time.Duration // default: 60 minutes
}

func DefaultPlannerConfig() PlannerConfig {
	return PlannerConfig{
		IdleDelay: 60 * time.Minute,
		BusyDelay: 10 * time.Minute,

		Backoff1: 1 * time.Minute,
		Backoff2: 5 * time.Minute,
		Backoff3: 15 * time.Minute,
		Backoff4: 60 * time.Minute,
	}
}

// Planner is shared by the poller's goroutines; r is not safe for
// concurrent use and is guarded by mu.
type Planner struct {
	cfg PlannerConfig

	mu sync.Mutex
	r  Rand
}

func NewPlanner(cfg PlannerConfig, r Rand) *Planner {
	def := DefaultPlannerConfig()
	if cfg.IdleDelay <= 0 {
		cfg.IdleDelay = def.IdleDelay
	}
	if cfg.BusyDelay <= 0 {
		cfg.BusyDelay = def.BusyDelay
	}
	if cfg.BusyDelay > cfg.IdleDelay {
		cfg.BusyDelay = cfg.IdleDelay
	}
	if cfg.Jitter < 0 {
		cfg.Jitter = 0
	}
	if cfg.Backoff1 <= 0 {
		cfg.Backoff1 = def.Backoff1
	}
	if cfg.Backoff2 <= 0 {
		cfg.Backoff2 = def.Backoff2
	}
	if cfg.Backoff3 <= 0 {
		cfg.Backoff3 = def.Backoff3
	}
	if cfg.Backoff4 <= 0 {
		cfg.Backoff4 = def.Backoff4
	}
	if r == nil {
		r = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Planner{cfg: cfg, r: r}
}

func (p *Planner) Config() PlannerConfig {
	return p.cfg
}

// NextCheckDelay: чем ближе к лимиту, тем чаще проверяем.
func (p *Planner) NextCheckDelay(percent float64) time.Duration {
	d := p.cfg.IdleDelay
	if percent >= float64(Thresholds[0]) {
		d = p.cfg.BusyDelay
	}
	if sec := int(p.cfg.Jitter.Seconds()); sec > 0 {
		d += time.Duration(p.intn(sec+1)) * time.Second
	}
	return d
}

func (p *Planner) intn(n int) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.r.Intn(n)
}

func (p *Planner) BackoffDelay(nextFailCount int) time.Duration {
	switch {
	case nextFailCount <= 1:
		return p.cfg.Backoff1
	case nextFailCount == 2:
		return p.cfg.Backoff2
	case nextFailCount == 3:
		return p.cfg.Backoff3
	default:
		return p.cfg.Backoff4
	}
}

// CrossedThreshold returns the highest threshold reached by percent, 0 if none.
func CrossedThreshold(percent float64) int {
	crossed := 0
	for _, t := range Thresholds {
		if percent >= float64(t) {
			crossed = t
		}
	}
	return crossed
}
