package audit

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync/atomic"

	"github.com/BearBump/WasteTrack/internal/broker/messages"
	"github.com/BearBump/WasteTrack/internal/models"
	"github.com/pkg/errors"
)

type Store interface {
	// AppendAudit returns inserted=false when the event id is already stored.
	AppendAudit(ctx context.Context, ev models.AuditEvent) (bool, error)
}

// Projector переносит события аудита из Kafka в Postgres. Доставка
// at-least-once, дубли отсекаются по id события.
type Projector struct {
	store Store

	applied    atomic.Int64
	duplicates atomic.Int64
	skipped    atomic.Int64
}

type Stats struct {
	Applied    int64 `json:"applied"`
	Duplicates int64 `json:"duplicates"`
	Skipped    int64 `json:"skipped"`
}

func NewProjector(store Store) *Projector {
	return &Projector{store: store}
}

// Handle применяет одно сообщение. Битые сообщения пропускаются (nil), чтобы
// не блокировать партицию; ошибка базы возвращается, и сообщение не коммитится.
func (p *Projector) Handle(ctx context.Context, value []byte, eventType string) error {
	if eventType != "" && !strings.HasPrefix(eventType, "order.") {
		p.skipped.Add(1)
		return nil
	}
	var m messages.OrderAudit
	if err := json.Unmarshal(value, &m); err != nil {
		p.skipped.Add(1)
		slog.Warn("skip malformed audit message", "error", err.Error())
		return nil
	}
	if err := validate(m); err != nil {
		p.skipped.Add(1)
		slog.Warn("skip invalid audit message", "event_id", m.EventID, "error", err.Error())
		return nil
	}
	return p.Apply(ctx, m)
}

func (p *Projector) Apply(ctx context.Context, m messages.OrderAudit) error {
	inserted, err := p.store.AppendAudit(ctx, m.Event())
	if err != nil {
		return errors.Wrap(err, "project audit event")
	}
	if !inserted {
		p.duplicates.Add(1)
		slog.Debug("duplicate audit event", "event_id", m.EventID, "order_id", m.OrderID)
		return nil
	}
	p.applied.Add(1)
	return nil
}

func (p *Projector) Stats() Stats {
	return Stats{
		Applied:    p.applied.Load(),
		Duplicates: p.duplicates.Load(),
		Skipped:    p.skipped.Load(),
	}
}

func validate(m messages.OrderAudit) error {
	if m.EventID == "" || m.OrderID == "" {
		return errors.New("event_id and order_id are required")
	}
	if m.NewStage == "" {
		return errors.New("new_stage is required")
	}
	switch models.AuditKind(m.Kind) {
	case models.AuditKindCreated, models.AuditKindProgression, models.AuditKindCancellation, models.AuditKindOverride:
	default:
		return errors.Errorf("unknown kind %q", m.Kind)
	}
	if m.OccurredAt.IsZero() {
		return errors.New("occurred_at is required")
	}
	return nil
}
