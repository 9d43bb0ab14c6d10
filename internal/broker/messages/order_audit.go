package messages

import (
	"time"

	"github.com/BearBump/WasteTrack/internal/models"
)

// OrderAudit is one audit event on the audit topic, keyed by order id.
type OrderAudit struct {
	EventID       string    `json:"event_id"`
	OrderID       string    `json:"order_id"`
	Kind          string    `json:"kind"`
	PreviousStage string    `json:"previous_stage,omitempty"`
	NewStage      string    `json:"new_stage"`
	ActorID       string    `json:"actor_id"`
	ActorRole     string    `json:"actor_role"`
	OccurredAt    time.Time `json:"occurred_at"`
}

func NewOrderAudit(ev models.AuditEvent) OrderAudit {
	return OrderAudit{
		EventID:       ev.ID,
		OrderID:       ev.OrderID,
		Kind:          string(ev.Kind),
		PreviousStage: ev.PreviousStage,
		NewStage:      ev.NewStage,
		ActorID:       ev.ActorID,
		ActorRole:     string(ev.ActorRole),
		OccurredAt:    ev.Timestamp,
	}
}

func (m OrderAudit) Event() models.AuditEvent {
	return models.AuditEvent{
		ID:            m.EventID,
		OrderID:       m.OrderID,
		Kind:          models.AuditKind(m.Kind),
		PreviousStage: m.PreviousStage,
		NewStage:      m.NewStage,
		ActorID:       m.ActorID,
		ActorRole:     models.Role(m.ActorRole),
		Timestamp:     m.OccurredAt,
	}
}
