package audit

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/BearBump/WasteTrack/internal/broker/messages"
	"github.com/BearBump/WasteTrack/internal/models"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	seen map[string]models.AuditEvent
	err  error
}

func (f *fakeStore) AppendAudit(ctx context.Context, ev models.AuditEvent) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	if _, ok := f.seen[ev.ID]; ok {
		return false, nil
	}
	f.seen[ev.ID] = ev
	return true, nil
}

func auditMsg(t *testing.T, m messages.OrderAudit) []byte {
	t.Helper()
	b, err := json.Marshal(m)
	require.NoError(t, err)
	return b
}

var valid = messages.OrderAudit{
	EventID: "e1", OrderID: "o1", Kind: "progression",
	PreviousStage: "SCHEDULED", NewStage: "COLLECTED",
	ActorID: "op-1", ActorRole: "operator",
	OccurredAt: time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC),
}

func TestProjector_AppliesOnceAndCountsDuplicates(t *testing.T) {
	st := &fakeStore{seen: map[string]models.AuditEvent{}}
	p := NewProjector(st)

	b := auditMsg(t, valid)
	require.NoError(t, p.Handle(context.Background(), b, "order.progression"))
	require.NoError(t, p.Handle(context.Background(), b, "order.progression"))

	require.Len(t, st.seen, 1)
	ev := st.seen["e1"]
	require.Equal(t, models.AuditKindProgression, ev.Kind)
	require.Equal(t, models.RoleOperator, ev.ActorRole)
	require.Equal(t, Stats{Applied: 1, Duplicates: 1}, p.Stats())
}

func TestProjector_SkipsBadMessages(t *testing.T) {
	st := &fakeStore{seen: map[string]models.AuditEvent{}}
	p := NewProjector(st)

	noID := valid
	noID.EventID = ""
	badKind := valid
	badKind.Kind = "teleport"

	require.NoError(t, p.Handle(context.Background(), []byte("{not json"), ""))
	require.NoError(t, p.Handle(context.Background(), auditMsg(t, noID), ""))
	require.NoError(t, p.Handle(context.Background(), auditMsg(t, badKind), ""))
	require.NoError(t, p.Handle(context.Background(), auditMsg(t, valid), "plan.usage"))

	require.Empty(t, st.seen)
	require.Equal(t, int64(4), p.Stats().Skipped)
}

func TestProjector_StoreErrorIsReturned(t *testing.T) {
	p := NewProjector(&fakeStore{err: errors.New("pg down")})
	err := p.Handle(context.Background(), auditMsg(t, valid), "order.progression")
	require.Error(t, err)
	require.Contains(t, err.Error(), "project audit event")
}
