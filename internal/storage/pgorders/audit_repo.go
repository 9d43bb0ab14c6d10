package pgorders

import (
	"context"

	"github.com/BearBump/WasteTrack/internal/models"
	"github.com/pkg/errors"
)

// AppendAudit пишет событие; повтор того же id игнорируется (inserted=false).
func (s *Storage) AppendAudit(ctx context.Context, ev models.AuditEvent) (bool, error) {
	tag, err := s.db.Exec(ctx, `
INSERT INTO order_audit_events (
  id, order_id, kind, previous_stage, new_stage, actor_id, actor_role, occurred_at
)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
ON CONFLICT (id) DO NOTHING
`, ev.ID, ev.OrderID, string(ev.Kind), ev.PreviousStage, ev.NewStage, ev.ActorID, string(ev.ActorRole), ev.Timestamp.UTC())
	if err != nil {
		return false, errors.Wrap(err, "insert audit event")
	}
	return tag.RowsAffected() == 1, nil
}

// Append makes Storage usable as the audit sink directly.
func (s *Storage) Append(ctx context.Context, ev models.AuditEvent) error {
	_, err := s.AppendAudit(ctx, ev)
	return err
}

func (s *Storage) ListAudit(ctx context.Context, orderID string) ([]*models.AuditEvent, error) {
	rows, err := s.db.Query(ctx, `
SELECT id, order_id, kind, previous_stage, new_stage, actor_id, actor_role, occurred_at
FROM order_audit_events
WHERE order_id = $1
ORDER BY occurred_at, id
`, orderID)
	if err != nil {
		return nil, errors.Wrap(err, "select audit events")
	}
	defer rows.Close()

	out := make([]*models.AuditEvent, 0)
	for rows.Next() {
		var e models.AuditEvent
		var kind, role string
		if err := rows.Scan(&e.ID, &e.OrderID, &kind, &e.PreviousStage, &e.NewStage, &e.ActorID, &role, &e.Timestamp); err != nil {
			return nil, errors.Wrap(err, "scan audit event")
		}
		e.Kind = models.AuditKind(kind)
		e.ActorRole = models.Role(role)
		out = append(out, &e)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}
