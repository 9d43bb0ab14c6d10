package orders_api

import (
	"net/http"
	"strings"
	"time"

	"github.com/BearBump/WasteTrack/internal/models"
	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"
)

type createPlanRequest struct {
	Name      string     `json:"name"`
	LimitKg   float64    `json:"limitKg"`
	StartDate *time.Time `json:"startDate"`
}

type planDTO struct {
	ID         string    `json:"id"`
	CustomerID string    `json:"customerId"`
	Name       string    `json:"name"`
	LimitKg    float64   `json:"limitKg"`
	StartDate  time.Time `json:"startDate"`
	Active     bool      `json:"active"`
}

// createPlan заводит новый активный тариф клиента (только admin).
// Прежний активный тариф деактивирует хранилище.
func (a *OrdersAPI) createPlan(w http.ResponseWriter, r *http.Request) {
	if a.deps.Plans == nil {
		writeErrorCode(w, http.StatusNotImplemented, "not_implemented", "plans are not configured")
		return
	}
	actor := actorFrom(r.Context())
	if actor.Role != models.RoleAdmin {
		writeError(w, r, errors.Wrapf(models.ErrRoleNotPermitted, "role %q cannot manage plans", actor.Role))
		return
	}

	var req createPlanRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.LimitKg <= 0 {
		writeError(w, r, errors.Wrap(errBadRequest, "limitKg must be positive"))
		return
	}
	start := a.now().UTC()
	if req.StartDate != nil {
		start = req.StartDate.UTC()
	}

	p := &models.Plan{
		ID:         a.newID(),
		CustomerID: chi.URLParam(r, "customerID"),
		Name:       strings.TrimSpace(req.Name),
		LimitKg:    req.LimitKg,
		StartDate:  start,
		Active:     true,
	}
	if err := a.deps.Plans.CreatePlan(r.Context(), p); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, planDTO{
		ID:         p.ID,
		CustomerID: p.CustomerID,
		Name:       p.Name,
		LimitKg:    p.LimitKg,
		StartDate:  p.StartDate,
		Active:     p.Active,
	})
}
