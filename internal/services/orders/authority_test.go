package orders

import (
	"testing"

	"github.com/BearBump/WasteTrack/internal/models"
	"github.com/BearBump/WasteTrack/internal/pipeline"
	"github.com/stretchr/testify/require"
)

func TestDecide_ClosedOrdersRejectEverything(t *testing.T) {
	targets := append([]pipeline.StageKey{pipeline.Cancelled}, keys()...)
	for _, closed := range []pipeline.StageKey{pipeline.Certified, pipeline.Cancelled} {
		for _, role := range []models.Role{models.RoleOperator, models.RoleAdmin} {
			for _, to := range targets {
				_, err := Decide(closed, closed, to, role)
				require.ErrorIs(t, err, models.ErrOrderClosed, "%s -> %s by %s", closed, to, role)
			}
		}
	}
}

func TestDecide_CustomerNeverTransitions(t *testing.T) {
	for _, from := range keys() {
		for _, to := range append(keys(), pipeline.Cancelled) {
			_, err := Decide(from, from, to, models.RoleCustomer)
			require.ErrorIs(t, err, models.ErrRoleNotPermitted)
		}
	}
	_, err := Decide(pipeline.Scheduled, pipeline.Scheduled, pipeline.Collected, "")
	require.ErrorIs(t, err, models.ErrRoleNotPermitted)
}

func TestDecide_OperatorForwardAndCancel(t *testing.T) {
	d, err := Decide(pipeline.Scheduled, pipeline.Scheduled, pipeline.EnRouteToPickup, models.RoleOperator)
	require.NoError(t, err)
	require.Equal(t, models.AuditKindProgression, d.Kind)

	// несколько шагов за раз
	d, err = Decide(pipeline.Collected, pipeline.Collected, pipeline.Certified, models.RoleOperator)
	require.NoError(t, err)
	require.Equal(t, models.AuditKindProgression, d.Kind)
	require.Equal(t, pipeline.Certified, d.To)

	d, err = Decide(pipeline.InTreatment, pipeline.InTreatment, pipeline.Cancelled, models.RoleOperator)
	require.NoError(t, err)
	require.Equal(t, models.AuditKindCancellation, d.Kind)
}

func TestDecide_BackwardOperatorRejectedAdminOverrides(t *testing.T) {
	st := pipeline.Stages()
	for i := 1; i < len(st)-1; i++ {
		for j := 0; j < i; j++ {
			from, to := st[i].Key, st[j].Key
			_, err := Decide(from, from, to, models.RoleOperator)
			require.ErrorIs(t, err, models.ErrInvalidTransition, "%s -> %s", from, to)

			d, err := Decide(from, from, to, models.RoleAdmin)
			require.NoError(t, err, "%s -> %s", from, to)
			require.Equal(t, models.AuditKindOverride, d.Kind)
		}
	}
}

func TestDecide_SameStageAndUnknownStages(t *testing.T) {
	_, err := Decide(pipeline.AtDepot, pipeline.AtDepot, pipeline.AtDepot, models.RoleAdmin)
	require.ErrorIs(t, err, models.ErrInvalidTransition)

	_, err = Decide(pipeline.AtDepot, pipeline.AtDepot, "DELIVERED", models.RoleOperator)
	require.ErrorIs(t, err, models.ErrInvalidTransition)

	// legacy tokens are not accepted as targets, only canonical keys
	_, err = Decide(pipeline.AtDepot, pipeline.AtDepot, "PESADA", models.RoleOperator)
	require.ErrorIs(t, err, models.ErrInvalidTransition)
}

func TestDecide_StaleFromIsConcurrentModification(t *testing.T) {
	_, err := Decide(pipeline.Weighed, pipeline.AtDepot, pipeline.Weighed, models.RoleOperator)
	require.ErrorIs(t, err, models.ErrConcurrentModification)
}

func TestCanCreate(t *testing.T) {
	require.True(t, CanCreate(models.RoleCustomer))
	require.True(t, CanCreate(models.RoleAdmin))
	require.False(t, CanCreate(models.RoleOperator))
	require.False(t, CanCreate(""))
}

func keys() []pipeline.StageKey {
	var out []pipeline.StageKey
	for _, s := range pipeline.Stages() {
		out = append(out, s.Key)
	}
	return out
}
