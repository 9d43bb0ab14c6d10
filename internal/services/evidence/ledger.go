package evidence

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/BearBump/WasteTrack/internal/access"
	"github.com/BearBump/WasteTrack/internal/models"
	"github.com/BearBump/WasteTrack/internal/pipeline"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

type OrderReader interface {
	GetOrder(ctx context.Context, id string) (*models.Order, error)
}

// Store keeps evidence records. Bytes live in the artifact storage,
// here only the reference is kept.
type Store interface {
	InsertEvidence(ctx context.Context, e *models.Evidence) error
	// ListEvidence returns records of the order, optionally of one stage
	// (empty stage means all).
	ListEvidence(ctx context.Context, orderID string, stage pipeline.StageKey) ([]*models.Evidence, error)
}

type Notifier interface {
	Notify(ctx context.Context, orderID, kind string) error
}

type Ledger struct {
	orders   OrderReader
	store    Store
	notifier Notifier

	now   func() time.Time
	newID func() string
}

func New(orders OrderReader, store Store) *Ledger {
	return &Ledger{
		orders: orders,
		store:  store,
		now:    func() time.Time { return time.Now().UTC() },
		newID:  uuid.NewString,
	}
}

func (l *Ledger) WithNotifier(n Notifier) *Ledger {
	l.notifier = n
	return l
}

func (l *Ledger) WithClock(now func() time.Time) *Ledger {
	if now != nil {
		l.now = now
	}
	return l
}

type AttachRequest struct {
	OrderID     string
	StageKey    pipeline.StageKey
	FileName    string
	ArtifactRef string
	Actor       models.Actor
}

// Attach appends one evidence record. Records are never merged: the same
// file attached twice yields two records.
func (l *Ledger) Attach(ctx context.Context, req AttachRequest) (*models.Evidence, error) {
	if req.Actor.Role != models.RoleOperator && req.Actor.Role != models.RoleAdmin {
		return nil, errors.Wrapf(models.ErrRoleNotPermitted, "role %q cannot attach evidence", req.Actor.Role)
	}
	fileName := strings.TrimSpace(req.FileName)
	ref := strings.TrimSpace(req.ArtifactRef)
	if fileName == "" || ref == "" {
		return nil, errors.Wrap(models.ErrInvalidEvidence, "fileName and artifactRef are required")
	}
	if req.OrderID == "" {
		return nil, errors.Wrap(models.ErrInvalidOrder, "orderId is required")
	}

	o, err := l.orders.GetOrder(ctx, req.OrderID)
	if err != nil {
		return nil, err
	}
	current := pipeline.Normalize(o.RawStatus)
	if pipeline.IsClosed(current) {
		return nil, errors.Wrapf(models.ErrOrderClosed, "order is %s", current)
	}
	at := pipeline.StageIndex(req.StageKey)
	if at < 0 || at > pipeline.StageIndex(current) {
		return nil, errors.Wrapf(models.ErrInvalidStage, "stage %q not reached (order is %s)", req.StageKey, current)
	}

	e := &models.Evidence{
		ID:          l.newID(),
		OrderID:     o.ID,
		StageKey:    string(req.StageKey),
		FileName:    fileName,
		ArtifactRef: ref,
		UploadedBy:  req.Actor.ID,
		UploadedAt:  l.now(),
	}
	if err := l.store.InsertEvidence(ctx, e); err != nil {
		return nil, err
	}

	slog.Info("evidence attached", "order_id", o.ID, "stage", e.StageKey, "evidence_id", e.ID, "actor_id", req.Actor.ID)
	if l.notifier != nil {
		if err := l.notifier.Notify(ctx, o.ID, "evidence"); err != nil {
			slog.Warn("change notification failed", "order_id", o.ID, "kind", "evidence", "error", err.Error())
		}
	}
	return e, nil
}

func (l *Ledger) List(ctx context.Context, actor models.Actor, orderID string) ([]*models.Evidence, error) {
	return l.list(ctx, actor, orderID, "")
}

func (l *Ledger) ListByStage(ctx context.Context, actor models.Actor, orderID string, stage pipeline.StageKey) ([]*models.Evidence, error) {
	if !pipeline.IsKnown(stage) {
		return nil, errors.Wrapf(models.ErrInvalidStage, "unknown stage %q", stage)
	}
	return l.list(ctx, actor, orderID, stage)
}

func (l *Ledger) list(ctx context.Context, actor models.Actor, orderID string, stage pipeline.StageKey) ([]*models.Evidence, error) {
	o, err := l.orders.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !access.CanReadOrder(actor, o) {
		return nil, errors.Wrapf(models.ErrForbidden, "order %s", orderID)
	}

	out, err := l.store.ListEvidence(ctx, orderID, stage)
	if err != nil {
		return nil, err
	}
	sortByUpload(out)
	return out, nil
}

// sortByUpload orders by UploadedAt ascending, ID breaks ties.
func sortByUpload(in []*models.Evidence) {
	sort.SliceStable(in, func(i, j int) bool {
		if !in[i].UploadedAt.Equal(in[j].UploadedAt) {
			return in[i].UploadedAt.Before(in[j].UploadedAt)
		}
		return in[i].ID < in[j].ID
	})
}
