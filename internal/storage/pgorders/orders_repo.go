package pgorders

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/BearBump/WasteTrack/internal/models"
	"github.com/BearBump/WasteTrack/internal/pipeline"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

const orderColumns = `id, customer_id, operator_id, raw_status, quantity, unit, scheduled_date, created_at, updated_at`

func scanOrder(row pgx.Row) (*models.Order, error) {
	var o models.Order
	if err := row.Scan(
		&o.ID, &o.CustomerID, &o.OperatorID, &o.RawStatus,
		&o.Quantity, &o.Unit, &o.ScheduledDate,
		&o.CreatedAt, &o.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &o, nil
}

func (s *Storage) InsertOrder(ctx context.Context, o *models.Order) error {
	_, err := s.db.Exec(ctx, `
INSERT INTO orders (
  id, customer_id, operator_id, raw_status, quantity, unit, scheduled_date, created_at, updated_at
)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
`, o.ID, o.CustomerID, o.OperatorID, o.RawStatus, o.Quantity, o.Unit, o.ScheduledDate, o.CreatedAt.UTC(), o.UpdatedAt.UTC())
	return errors.Wrap(err, "insert order")
}

func (s *Storage) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	o, err := scanOrder(s.db.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errors.Wrapf(models.ErrOrderNotFound, "order %s", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, "select order")
	}
	return o, nil
}

// UpdateStage: оптимистичная запись: статус меняется, только если текущий
// raw_status всё ещё нормализуется в expected.
func (s *Storage) UpdateStage(ctx context.Context, id string, to, expected pipeline.StageKey) (*models.Order, error) {
	o, err := scanOrder(s.db.QueryRow(ctx, `
UPDATE orders
SET raw_status = $2, updated_at = now()
WHERE id = $1 AND raw_status = ANY($3)
RETURNING `+orderColumns, id, string(to), pipeline.Aliases(expected)))
	if err == nil {
		return o, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, errors.Wrap(err, "update stage")
	}

	// Ни один алиас не совпал: либо заказа нет, либо статус сменился,
	// либо в базе лежит неизвестный токен (он нормализуется в начальный этап).
	var raw string
	err = s.db.QueryRow(ctx, `SELECT raw_status FROM orders WHERE id = $1`, id).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errors.Wrapf(models.ErrOrderNotFound, "order %s", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, "select raw status")
	}
	if pipeline.Normalize(raw) != expected {
		return nil, errors.Wrapf(models.ErrConcurrentModification, "order %s is %s", id, pipeline.Normalize(raw))
	}

	o, err = scanOrder(s.db.QueryRow(ctx, `
UPDATE orders
SET raw_status = $2, updated_at = now()
WHERE id = $1 AND raw_status = $3
RETURNING `+orderColumns, id, string(to), raw))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errors.Wrapf(models.ErrConcurrentModification, "order %s changed", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, "update stage")
	}
	return o, nil
}

func (s *Storage) AssignOperator(ctx context.Context, id, operatorID string) (*models.Order, error) {
	o, err := scanOrder(s.db.QueryRow(ctx, `
UPDATE orders
SET operator_id = $2, updated_at = now()
WHERE id = $1
RETURNING `+orderColumns, id, operatorID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errors.Wrapf(models.ErrOrderNotFound, "order %s", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, "assign operator")
	}
	return o, nil
}

func (s *Storage) ListOrders(ctx context.Context, f models.OrderFilter) ([]*models.Order, error) {
	limit, offset := f.Limit, f.Offset
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	var where []string
	var args []any
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if f.CustomerID != "" {
		add("customer_id = $%d", f.CustomerID)
	}
	if f.OperatorID != "" {
		add("operator_id = $%d", f.OperatorID)
	}
	if f.CreatedFrom != nil {
		add("created_at >= $%d", f.CreatedFrom.UTC())
	}
	if f.CreatedBefore != nil {
		add("created_at < $%d", f.CreatedBefore.UTC())
	}

	q := `SELECT ` + orderColumns + ` FROM orders`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	args = append(args, limit, offset)
	q += fmt.Sprintf(` ORDER BY created_at DESC, id LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	return s.queryOrders(ctx, q, args...)
}

func (s *Storage) ListOrdersForUsage(ctx context.Context, customerID string, from, to time.Time) ([]*models.Order, error) {
	return s.queryOrders(ctx, `
SELECT `+orderColumns+`
FROM orders
WHERE customer_id = $1 AND created_at >= $2 AND created_at < $3
ORDER BY created_at
`, customerID, from.UTC(), to.UTC())
}

func (s *Storage) queryOrders(ctx context.Context, q string, args ...any) ([]*models.Order, error) {
	rows, err := s.db.Query(ctx, q, args...)
	if err != nil {
		return nil, errors.Wrap(err, "select orders")
	}
	defer rows.Close()

	out := make([]*models.Order, 0)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan order")
		}
		out = append(out, o)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}
