package orders

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/BearBump/WasteTrack/internal/access"
	"github.com/BearBump/WasteTrack/internal/cache"
	"github.com/BearBump/WasteTrack/internal/models"
	"github.com/BearBump/WasteTrack/internal/pipeline"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

type OrderStore interface {
	InsertOrder(ctx context.Context, o *models.Order) error
	GetOrder(ctx context.Context, id string) (*models.Order, error)
	// UpdateStage writes to only if the stored status still normalizes to
	// expected, otherwise it returns models.ErrConcurrentModification.
	UpdateStage(ctx context.Context, id string, to, expected pipeline.StageKey) (*models.Order, error)
	ListOrders(ctx context.Context, f models.OrderFilter) ([]*models.Order, error)
	AssignOperator(ctx context.Context, id, operatorID string) (*models.Order, error)
}

type AuditSink interface {
	Append(ctx context.Context, ev models.AuditEvent) error
}

type AuditReader interface {
	ListAudit(ctx context.Context, orderID string) ([]*models.AuditEvent, error)
}

// Notifier publishes "something changed, re-read" hints.
type Notifier interface {
	Notify(ctx context.Context, orderID, kind string) error
}

type Service struct {
	store      OrderStore
	audit      AuditSink
	trail      AuditReader
	notifier   Notifier
	cache      cache.BytesCache
	currentTTL time.Duration

	now   func() time.Time
	newID func() string
}

func New(store OrderStore, audit AuditSink, trail AuditReader, c cache.BytesCache, currentTTL time.Duration) *Service {
	return &Service{
		store:      store,
		audit:      audit,
		trail:      trail,
		cache:      c,
		currentTTL: currentTTL,
		now:        func() time.Time { return time.Now().UTC() },
		newID:      uuid.NewString,
	}
}

func (s *Service) WithNotifier(n Notifier) *Service {
	s.notifier = n
	return s
}

func (s *Service) WithClock(now func() time.Time) *Service {
	if now != nil {
		s.now = now
	}
	return s
}

type TransitionRequest struct {
	OrderID string
	From    pipeline.StageKey
	To      pipeline.StageKey
	Actor   models.Actor
}

// TransitionResult describes an accepted transition. AuditErr is set when the
// stage change was written but its audit event was not: the change stands.
type TransitionResult struct {
	Order    *models.Order
	Event    models.AuditEvent
	AuditErr error
}

func (s *Service) CreateOrder(ctx context.Context, actor models.Actor, in models.OrderCreateInput) (*models.Order, error) {
	if !CanCreate(actor.Role) {
		return nil, errors.Wrapf(models.ErrRoleNotPermitted, "role %q cannot create orders", actor.Role)
	}
	customerID := strings.TrimSpace(in.CustomerID)
	switch actor.Role {
	case models.RoleCustomer:
		if customerID != "" && customerID != actor.ID {
			return nil, errors.Wrap(models.ErrForbidden, "customers create orders for themselves only")
		}
		customerID = actor.ID
	case models.RoleAdmin:
		if customerID == "" {
			return nil, errors.Wrap(models.ErrInvalidOrder, "customerId is required")
		}
	}
	if customerID == "" {
		return nil, errors.Wrap(models.ErrInvalidOrder, "customerId is required")
	}
	if in.Quantity < 0 {
		return nil, errors.Wrap(models.ErrInvalidOrder, "quantity must not be negative")
	}
	unit := strings.TrimSpace(in.Unit)
	if unit == "" {
		unit = "kg"
	}

	now := s.now()
	o := &models.Order{
		ID:            s.newID(),
		CustomerID:    customerID,
		RawStatus:     string(pipeline.Initial().Key),
		Quantity:      in.Quantity,
		Unit:          unit,
		CreatedAt:     now,
		ScheduledDate: in.ScheduledDate,
		UpdatedAt:     now,
	}
	if err := s.store.InsertOrder(ctx, o); err != nil {
		return nil, err
	}

	ev := models.AuditEvent{
		ID:        s.newID(),
		OrderID:   o.ID,
		Kind:      models.AuditKindCreated,
		NewStage:  o.RawStatus,
		ActorID:   actor.ID,
		ActorRole: actor.Role,
		Timestamp: now,
	}
	if err := s.appendAudit(ctx, ev); err != nil {
		slog.Error("audit append failed", "order_id", o.ID, "kind", ev.Kind, "error", err.Error())
	}
	s.notify(ctx, o.ID, "created")
	return o, nil
}

// AttemptTransition validates and applies one stage change. Nothing is
// retried here: ErrConcurrentModification means the caller must re-read.
func (s *Service) AttemptTransition(ctx context.Context, req TransitionRequest) (TransitionResult, error) {
	if req.OrderID == "" {
		return TransitionResult{}, errors.Wrap(models.ErrInvalidOrder, "orderId is required")
	}
	o, err := s.store.GetOrder(ctx, req.OrderID)
	if err != nil {
		return TransitionResult{}, err
	}

	d, err := Decide(pipeline.Normalize(o.RawStatus), req.From, req.To, req.Actor.Role)
	if err != nil {
		return TransitionResult{}, err
	}

	updated, err := s.store.UpdateStage(ctx, o.ID, d.To, d.From)
	if err != nil {
		return TransitionResult{}, err
	}
	s.dropCurrent(ctx, updated.ID)

	ev := models.AuditEvent{
		ID:            s.newID(),
		OrderID:       updated.ID,
		Kind:          d.Kind,
		PreviousStage: string(d.From),
		NewStage:      string(d.To),
		ActorID:       req.Actor.ID,
		ActorRole:     req.Actor.Role,
		Timestamp:     s.now(),
	}
	res := TransitionResult{Order: updated, Event: ev}
	if err := s.appendAudit(ctx, ev); err != nil {
		// Переход уже записан; аудит: best effort, только сообщаем.
		res.AuditErr = err
		slog.Error("audit append failed", "order_id", updated.ID, "from", d.From, "to", d.To, "error", err.Error())
	}

	slog.Info("order stage changed", "order_id", updated.ID, "from", d.From, "to", d.To, "kind", d.Kind, "actor_id", req.Actor.ID)
	s.notify(ctx, updated.ID, "stage")
	return res, nil
}

func (s *Service) GetOrder(ctx context.Context, actor models.Actor, id string) (*models.Order, error) {
	if id == "" {
		return nil, errors.Wrap(models.ErrInvalidOrder, "orderId is required")
	}
	o, ok := s.getCurrent(ctx, id)
	if !ok {
		var err error
		o, err = s.store.GetOrder(ctx, id)
		if err != nil {
			return nil, err
		}
		s.putCurrent(ctx, o)
	}
	if !access.CanReadOrder(actor, o) {
		return nil, errors.Wrapf(models.ErrForbidden, "order %s", id)
	}
	return o, nil
}

// ListOrders scopes the filter to what the actor may see: customers get
// their own orders, operators their assignments unless they ask otherwise.
func (s *Service) ListOrders(ctx context.Context, actor models.Actor, f models.OrderFilter) ([]*models.Order, error) {
	switch actor.Role {
	case models.RoleCustomer:
		f.CustomerID = actor.ID
	case models.RoleOperator:
		if f.OperatorID == "" && f.CustomerID == "" {
			f.OperatorID = actor.ID
		}
	case models.RoleAdmin:
	default:
		return nil, errors.Wrapf(models.ErrRoleNotPermitted, "role %q", actor.Role)
	}
	return s.store.ListOrders(ctx, f)
}

func (s *Service) AssignOperator(ctx context.Context, actor models.Actor, orderID, operatorID string) (*models.Order, error) {
	if actor.Role != models.RoleAdmin {
		return nil, errors.Wrapf(models.ErrRoleNotPermitted, "role %q cannot assign operators", actor.Role)
	}
	if orderID == "" || strings.TrimSpace(operatorID) == "" {
		return nil, errors.Wrap(models.ErrInvalidOrder, "orderId and operatorId are required")
	}
	o, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if st := pipeline.Normalize(o.RawStatus); pipeline.IsClosed(st) {
		return nil, errors.Wrapf(models.ErrOrderClosed, "order is %s", st)
	}
	updated, err := s.store.AssignOperator(ctx, orderID, strings.TrimSpace(operatorID))
	if err != nil {
		return nil, err
	}
	s.dropCurrent(ctx, updated.ID)
	s.notify(ctx, orderID, "operator")
	return updated, nil
}

// Progress returns the timeline of an order. For cancelled orders the audit
// trail tells at which stage the order was halted.
func (s *Service) Progress(ctx context.Context, actor models.Actor, orderID string) (pipeline.Progress, error) {
	o, err := s.GetOrder(ctx, actor, orderID)
	if err != nil {
		return pipeline.Progress{}, err
	}
	if pipeline.Normalize(o.RawStatus) != pipeline.Cancelled || s.trail == nil {
		return pipeline.ComputeProgress(o.RawStatus), nil
	}

	evs, err := s.trail.ListAudit(ctx, orderID)
	if err != nil {
		slog.Warn("audit trail unavailable, progress without halt point", "order_id", orderID, "error", err.Error())
		return pipeline.ComputeProgress(o.RawStatus), nil
	}
	return pipeline.ComputeProgressFrom(o.RawStatus, haltedAt(evs)), nil
}

func (s *Service) AuditTrail(ctx context.Context, actor models.Actor, orderID string) ([]*models.AuditEvent, error) {
	if _, err := s.GetOrder(ctx, actor, orderID); err != nil {
		return nil, err
	}
	if s.trail == nil {
		return []*models.AuditEvent{}, nil
	}
	return s.trail.ListAudit(ctx, orderID)
}

// haltedAt returns the stage left by the latest cancellation event.
func haltedAt(evs []*models.AuditEvent) pipeline.StageKey {
	var last *models.AuditEvent
	for _, e := range evs {
		if e.NewStage != string(pipeline.Cancelled) {
			continue
		}
		if last == nil || e.Timestamp.After(last.Timestamp) {
			last = e
		}
	}
	if last == nil {
		return ""
	}
	return pipeline.Normalize(last.PreviousStage)
}

func (s *Service) appendAudit(ctx context.Context, ev models.AuditEvent) error {
	if s.audit == nil {
		return nil
	}
	if err := s.audit.Append(ctx, ev); err != nil {
		return errors.Wrap(models.ErrAuditAppendFailed, err.Error())
	}
	return nil
}

func (s *Service) notify(ctx context.Context, orderID, kind string) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, orderID, kind); err != nil {
		slog.Warn("change notification failed", "order_id", orderID, "kind", kind, "error", err.Error())
	}
}

func (s *Service) getCurrent(ctx context.Context, id string) (*models.Order, bool) {
	if s.cache == nil || s.currentTTL <= 0 {
		return nil, false
	}
	b, ok, err := s.cache.Get(ctx, currentKey(id))
	if err != nil || !ok {
		return nil, false
	}
	var o models.Order
	if json.Unmarshal(b, &o) != nil {
		return nil, false
	}
	return &o, true
}

func (s *Service) putCurrent(ctx context.Context, o *models.Order) {
	if s.cache == nil || s.currentTTL <= 0 || o == nil {
		return
	}
	b, _ := json.Marshal(o)
	_ = s.cache.Set(ctx, currentKey(o.ID), b, s.currentTTL)
}

// dropCurrent сбрасывает кэш после записи: следующий GetOrder прочитает
// БД. Set здесь мог бы затереть более новую стадию от параллельного писателя.
func (s *Service) dropCurrent(ctx context.Context, id string) {
	if s.cache == nil || s.currentTTL <= 0 {
		return
	}
	if err := s.cache.Delete(ctx, currentKey(id)); err != nil {
		slog.Warn("current status cache invalidation failed", "order_id", id, "error", err.Error())
	}
}

func currentKey(id string) string {
	return fmt.Sprintf("order:%s:current", id)
}
