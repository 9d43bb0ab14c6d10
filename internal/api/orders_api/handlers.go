package orders_api

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/BearBump/WasteTrack/internal/access"
	"github.com/BearBump/WasteTrack/internal/models"
	"github.com/BearBump/WasteTrack/internal/pipeline"
	"github.com/BearBump/WasteTrack/internal/services/evidence"
	"github.com/BearBump/WasteTrack/internal/services/orders"
	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"
)

type createOrderRequest struct {
	CustomerID    string     `json:"customerId"`
	Quantity      float64    `json:"quantity"`
	Unit          string     `json:"unit"`
	ScheduledDate *time.Time `json:"scheduledDate"`
}

type transitionRequest struct {
	From string `json:"from"`
	To   string `json:"to"`
}

type assignOperatorRequest struct {
	OperatorID string `json:"operatorId"`
}

type attachEvidenceRequest struct {
	StageKey    string `json:"stageKey"`
	FileName    string `json:"fileName"`
	ArtifactRef string `json:"artifactRef"`
}

type accessCheckRequest struct {
	Role string `json:"role"`
	Path string `json:"path"`
}

func (a *OrdersAPI) createOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	o, err := a.deps.Orders.CreateOrder(r.Context(), actorFrom(r.Context()), models.OrderCreateInput{
		CustomerID:    req.CustomerID,
		Quantity:      req.Quantity,
		Unit:          req.Unit,
		ScheduledDate: req.ScheduledDate,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Location", "/v1/orders/"+o.ID)
	writeJSON(w, http.StatusCreated, toOrderDTO(o))
}

func (a *OrdersAPI) getOrder(w http.ResponseWriter, r *http.Request) {
	o, err := a.deps.Orders.GetOrder(r.Context(), actorFrom(r.Context()), chi.URLParam(r, "orderID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderDTO(o))
}

func (a *OrdersAPI) getProgress(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "orderID")
	p, err := a.deps.Orders.Progress(r.Context(), actorFrom(r.Context()), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toProgressDTO(id, p))
}

func (a *OrdersAPI) postTransition(w http.ResponseWriter, r *http.Request) {
	var req transitionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	res, err := a.deps.Orders.AttemptTransition(r.Context(), orders.TransitionRequest{
		OrderID: chi.URLParam(r, "orderID"),
		From:    pipeline.StageKey(req.From),
		To:      pipeline.StageKey(req.To),
		Actor:   actorFrom(r.Context()),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := transitionResultDTO{
		Order: toOrderDTO(res.Order),
		Event: toAuditEventDTO(res.Event),
	}
	if res.AuditErr != nil {
		out.AuditWarning = res.AuditErr.Error()
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *OrdersAPI) putOperator(w http.ResponseWriter, r *http.Request) {
	var req assignOperatorRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	o, err := a.deps.Orders.AssignOperator(r.Context(), actorFrom(r.Context()), chi.URLParam(r, "orderID"), req.OperatorID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderDTO(o))
}

func (a *OrdersAPI) getAudit(w http.ResponseWriter, r *http.Request) {
	evs, err := a.deps.Orders.AuditTrail(r.Context(), actorFrom(r.Context()), chi.URLParam(r, "orderID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": toAuditEventDTOs(evs)})
}

func (a *OrdersAPI) postEvidence(w http.ResponseWriter, r *http.Request) {
	var req attachEvidenceRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	e, err := a.deps.Evidence.Attach(r.Context(), evidence.AttachRequest{
		OrderID:     chi.URLParam(r, "orderID"),
		StageKey:    pipeline.StageKey(req.StageKey),
		FileName:    req.FileName,
		ArtifactRef: req.ArtifactRef,
		Actor:       actorFrom(r.Context()),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toEvidenceDTO(e))
}

func (a *OrdersAPI) listEvidence(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "orderID")
	actor := actorFrom(r.Context())

	var (
		out []*models.Evidence
		err error
	)
	if stage := r.URL.Query().Get("stage"); stage != "" {
		out, err = a.deps.Evidence.ListByStage(r.Context(), actor, id, pipeline.StageKey(stage))
	} else {
		out, err = a.deps.Evidence.List(r.Context(), actor, id)
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"evidence": toEvidenceDTOs(out)})
}

func (a *OrdersAPI) getUsage(w http.ResponseWriter, r *http.Request) {
	customerID := chi.URLParam(r, "customerID")
	actor := actorFrom(r.Context())
	switch {
	case actor.Role == models.RoleAdmin:
	case actor.Role == models.RoleCustomer && actor.ID == customerID:
	default:
		writeError(w, r, errors.Wrapf(models.ErrForbidden, "usage of %s", customerID))
		return
	}

	u, err := a.deps.Usage.Usage(r.Context(), customerID, a.now())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toUsageDTO(u))
}

// listScopedOrders is the role-scoped listing: the access guard decides
// first, the service then narrows the filter to what the actor may see.
func (a *OrdersAPI) listScopedOrders(w http.ResponseWriter, r *http.Request) {
	role := chi.URLParam(r, "role")
	path := r.URL.Query().Get("path")
	if path == "" {
		path = "/" + role + "/orders"
	}

	d := access.Authorize(sessionFrom(r.Context()), access.Scope{Role: role, Path: path})
	switch d.Verdict {
	case access.VerdictAllow:
	case access.VerdictRedirect:
		target := d.RedirectTo
		if target != access.LoginPath {
			target = "/v1/scopes" + d.RedirectTo + "/orders"
		}
		w.Header().Set("Location", target)
		writeJSON(w, http.StatusSeeOther, toDecisionDTO(d))
		return
	case access.VerdictDeny:
		writeJSON(w, http.StatusForbidden, toDecisionDTO(d))
		return
	default:
		writeJSON(w, http.StatusUnauthorized, toDecisionDTO(d))
		return
	}

	f, err := parseFilter(r.URL.Query())
	if err != nil {
		writeError(w, r, err)
		return
	}
	out, err := a.deps.Orders.ListOrders(r.Context(), actorFrom(r.Context()), f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"orders": toOrderDTOs(out)})
}

// checkAccess exposes the guard for clients that route on their own.
func (a *OrdersAPI) checkAccess(w http.ResponseWriter, r *http.Request) {
	var req accessCheckRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	d := access.Authorize(sessionFrom(r.Context()), access.Scope{Role: req.Role, Path: req.Path})
	writeJSON(w, http.StatusOK, toDecisionDTO(d))
}

func parseFilter(q url.Values) (models.OrderFilter, error) {
	f := models.OrderFilter{
		CustomerID: strings.TrimSpace(q.Get("customerId")),
		OperatorID: strings.TrimSpace(q.Get("operatorId")),
	}
	var err error
	if f.Limit, err = intParam(q, "limit"); err != nil {
		return f, err
	}
	if f.Offset, err = intParam(q, "offset"); err != nil {
		return f, err
	}
	if f.CreatedFrom, err = timeParam(q, "createdFrom"); err != nil {
		return f, err
	}
	if f.CreatedBefore, err = timeParam(q, "createdBefore"); err != nil {
		return f, err
	}
	return f, nil
}

func intParam(q url.Values, name string) (int, error) {
	v := q.Get(name)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, errors.Wrapf(errBadRequest, "%s must be a non-negative integer", name)
	}
	return n, nil
}

func timeParam(q url.Values, name string) (*time.Time, error) {
	v := q.Get(name)
	if v == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return nil, errors.Wrapf(errBadRequest, "%s must be RFC3339", name)
	}
	return &t, nil
}
