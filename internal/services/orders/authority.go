package orders

import (
	"github.com/BearBump/WasteTrack/internal/models"
	"github.com/BearBump/WasteTrack/internal/pipeline"
	"github.com/pkg/errors"
)

// Decision is an accepted transition, ready to be written and audited.
type Decision struct {
	From pipeline.StageKey
	To   pipeline.StageKey
	Kind models.AuditKind
}

// Decide applies the transition rules. current is the normalized stage of
// the persisted order, from is the stage the caller believes the order is in.
//
// Forward moves along the linear sequence and cancellation of an open order
// are open to operators and admins. Only admins may move backwards.
func Decide(current, from, to pipeline.StageKey, role models.Role) (Decision, error) {
	if role != models.RoleOperator && role != models.RoleAdmin {
		return Decision{}, errors.Wrapf(models.ErrRoleNotPermitted, "role %q cannot change stages", role)
	}
	if pipeline.IsClosed(current) {
		return Decision{}, errors.Wrapf(models.ErrOrderClosed, "order is %s", current)
	}
	if !pipeline.IsKnown(from) || !pipeline.IsKnown(to) {
		return Decision{}, errors.Wrapf(models.ErrInvalidTransition, "unknown stage %s -> %s", from, to)
	}
	if from != current {
		return Decision{}, errors.Wrapf(models.ErrConcurrentModification, "expected %s, order is %s", from, current)
	}
	if to == from {
		return Decision{}, errors.Wrapf(models.ErrInvalidTransition, "order is already %s", to)
	}

	d := Decision{From: from, To: to}
	if to == pipeline.Cancelled {
		d.Kind = models.AuditKindCancellation
		return d, nil
	}

	if pipeline.StageIndex(to) > pipeline.StageIndex(from) {
		d.Kind = models.AuditKindProgression
		return d, nil
	}
	if role == models.RoleAdmin {
		d.Kind = models.AuditKindOverride
		return d, nil
	}
	return Decision{}, errors.Wrapf(models.ErrInvalidTransition, "%s -> %s moves backwards", from, to)
}

// CanCreate reports whether role may open a new order.
func CanCreate(role models.Role) bool {
	return role == models.RoleCustomer || role == models.RoleAdmin
}
