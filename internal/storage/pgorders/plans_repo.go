package pgorders

import (
	"context"
	"time"

	"github.com/BearBump/WasteTrack/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

const planColumns = `
  id, customer_id, name, limit_kg, start_date, active,
  next_check_at, last_checked_at,
  notified_threshold, notified_cycle_start,
  check_fail_count, last_error`

func scanPlan(row pgx.Row) (*models.Plan, error) {
	var p models.Plan
	if err := row.Scan(
		&p.ID, &p.CustomerID, &p.Name, &p.LimitKg, &p.StartDate, &p.Active,
		&p.NextCheckAt, &p.LastCheckedAt,
		&p.NotifiedThreshold, &p.NotifiedCycleStart,
		&p.CheckFailCount, &p.LastError,
	); err != nil {
		return nil, err
	}
	return &p, nil
}

// CreatePlan заводит тариф; предыдущий активный тариф клиента деактивируется.
func (s *Storage) CreatePlan(ctx context.Context, p *models.Plan) error {
	now := time.Now().UTC()

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if p.Active {
		if _, err := tx.Exec(ctx, `UPDATE plans SET active = FALSE, updated_at = $2 WHERE customer_id = $1 AND active`, p.CustomerID, now); err != nil {
			return errors.Wrap(err, "deactivate plans")
		}
	}
	next := p.NextCheckAt
	if next.IsZero() {
		next = now
	}
	_, err = tx.Exec(ctx, `
INSERT INTO plans (id, customer_id, name, limit_kg, start_date, active, next_check_at, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$8)
`, p.ID, p.CustomerID, p.Name, p.LimitKg, p.StartDate.UTC(), p.Active, next.UTC(), now)
	if err != nil {
		return errors.Wrap(err, "insert plan")
	}

	if err := tx.Commit(ctx); err != nil {
		return errors.Wrap(err, "commit tx")
	}
	p.NextCheckAt = next.UTC()
	return nil
}

func (s *Storage) ActivePlan(ctx context.Context, customerID string) (*models.Plan, error) {
	p, err := scanPlan(s.db.QueryRow(ctx, `SELECT `+planColumns+` FROM plans WHERE customer_id = $1 AND active`, customerID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "select active plan")
	}
	return p, nil
}

// ClaimDuePlans выбирает пачку активных тарифов, которые пора пересчитать, и
// "бронирует" их на lease, чтобы параллельные воркеры их не взяли.
// Использует SELECT ... FOR UPDATE SKIP LOCKED.
func (s *Storage) ClaimDuePlans(ctx context.Context, now time.Time, limit int, lease time.Duration) ([]*models.Plan, error) {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	rows, err := tx.Query(ctx, `
SELECT `+planColumns+`
FROM plans
WHERE active AND next_check_at <= $1
ORDER BY next_check_at ASC
LIMIT $2
FOR UPDATE SKIP LOCKED
`, now.UTC(), limit)
	if err != nil {
		return nil, errors.Wrap(err, "select due plans")
	}

	var picked []*models.Plan
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			rows.Close()
			return nil, errors.Wrap(err, "scan due plan")
		}
		picked = append(picked, p)
	}
	rows.Close()
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}

	leaseUntil := now.UTC().Add(lease)
	for _, p := range picked {
		if _, err := tx.Exec(ctx, `UPDATE plans SET next_check_at = $2, updated_at = now() WHERE id = $1`, p.ID, leaseUntil); err != nil {
			return nil, errors.Wrap(err, "lease plan")
		}
		p.NextCheckAt = leaseUntil
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, errors.Wrap(err, "commit tx")
	}
	return picked, nil
}

// PlanCheck: результат одной проверки тарифа воркером.
type PlanCheck struct {
	PlanID      string
	CheckedAt   time.Time
	NextCheckAt time.Time

	// NotifiedThreshold/CycleStart обновляются, только если задан NotifiedCycleStart.
	NotifiedThreshold  int
	NotifiedCycleStart *time.Time

	Error *string
}

func (s *Storage) ApplyPlanCheck(ctx context.Context, c PlanCheck) error {
	if c.Error != nil && *c.Error != "" {
		_, err := s.db.Exec(ctx, `
UPDATE plans
SET
  last_checked_at = $2,
  check_fail_count = check_fail_count + 1,
  last_error = $3,
  next_check_at = $4,
  updated_at = now()
WHERE id = $1
`, c.PlanID, c.CheckedAt.UTC(), *c.Error, c.NextCheckAt.UTC())
		return errors.Wrap(err, "update plan (error)")
	}

	_, err := s.db.Exec(ctx, `
UPDATE plans
SET
  last_checked_at = $2,
  check_fail_count = 0,
  last_error = NULL,
  next_check_at = $3,
  notified_threshold = CASE WHEN $5::timestamptz IS NULL THEN notified_threshold ELSE $4 END,
  notified_cycle_start = COALESCE($5::timestamptz, notified_cycle_start),
  updated_at = now()
WHERE id = $1
`, c.PlanID, c.CheckedAt.UTC(), c.NextCheckAt.UTC(), c.NotifiedThreshold, c.NotifiedCycleStart)
	return errors.Wrap(err, "update plan (ok)")
}

// RefreshPlan ставит тариф в очередь на немедленный пересчёт.
func (s *Storage) RefreshPlan(ctx context.Context, planID string) error {
	_, err := s.db.Exec(ctx, `UPDATE plans SET next_check_at = now(), updated_at = now() WHERE id = $1`, planID)
	return errors.Wrap(err, "refresh plan")
}
