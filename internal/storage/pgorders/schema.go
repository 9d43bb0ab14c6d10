package pgorders

import (
	"context"

	"github.com/pkg/errors"
)

func (s *Storage) initSchema(ctx context.Context) error {
	stmts := []string{
		`
CREATE TABLE IF NOT EXISTS orders (
  id TEXT PRIMARY KEY,
  customer_id TEXT NOT NULL,
  operator_id TEXT NULL,
  raw_status TEXT NOT NULL,
  quantity DOUBLE PRECISION NOT NULL DEFAULT 0,
  unit TEXT NOT NULL DEFAULT 'kg',
  scheduled_date TIMESTAMPTZ NULL,
  created_at TIMESTAMPTZ NOT NULL,
  updated_at TIMESTAMPTZ NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_orders_customer_created ON orders(customer_id, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_orders_operator ON orders(operator_id) WHERE operator_id IS NOT NULL`,
		`
CREATE TABLE IF NOT EXISTS order_audit_events (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  kind TEXT NOT NULL,
  previous_stage TEXT NOT NULL DEFAULT '',
  new_stage TEXT NOT NULL,
  actor_id TEXT NOT NULL DEFAULT '',
  actor_role TEXT NOT NULL DEFAULT '',
  occurred_at TIMESTAMPTZ NOT NULL,
  recorded_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`,
		`CREATE INDEX IF NOT EXISTS idx_order_audit_events_order ON order_audit_events(order_id, occurred_at)`,
		`
CREATE TABLE IF NOT EXISTS evidence (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
  stage_key TEXT NOT NULL,
  file_name TEXT NOT NULL,
  artifact_ref TEXT NOT NULL,
  uploaded_by TEXT NOT NULL,
  uploaded_at TIMESTAMPTZ NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_evidence_order_uploaded ON evidence(order_id, uploaded_at, id)`,
		`
CREATE TABLE IF NOT EXISTS plans (
  id TEXT PRIMARY KEY,
  customer_id TEXT NOT NULL,
  name TEXT NOT NULL DEFAULT '',
  limit_kg DOUBLE PRECISION NOT NULL,
  start_date TIMESTAMPTZ NOT NULL,
  active BOOLEAN NOT NULL DEFAULT TRUE,
  next_check_at TIMESTAMPTZ NOT NULL,
  last_checked_at TIMESTAMPTZ NULL,
  notified_threshold INT NOT NULL DEFAULT 0,
  notified_cycle_start TIMESTAMPTZ NULL,
  check_fail_count INT NOT NULL DEFAULT 0,
  last_error TEXT NULL,
  created_at TIMESTAMPTZ NOT NULL,
  updated_at TIMESTAMPTZ NOT NULL
)`,
		// Один активный тариф на клиента.
		`CREATE UNIQUE INDEX IF NOT EXISTS uq_plans_active_customer ON plans(customer_id) WHERE active`,
		`CREATE INDEX IF NOT EXISTS idx_plans_next_check_at ON plans(next_check_at) WHERE active`,
	}

	for _, q := range stmts {
		if _, err := s.db.Exec(ctx, q); err != nil {
			return errors.Wrap(err, "init schema")
		}
	}
	return nil
}
