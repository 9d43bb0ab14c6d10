package orders_api

import (
	"time"

	"github.com/BearBump/WasteTrack/internal/access"
	"github.com/BearBump/WasteTrack/internal/models"
	"github.com/BearBump/WasteTrack/internal/pipeline"
)

type orderDTO struct {
	ID            string     `json:"id"`
	CustomerID    string     `json:"customerId"`
	OperatorID    *string    `json:"operatorId,omitempty"`
	RawStatus     string     `json:"rawStatus"`
	Stage         string     `json:"stage"`
	Quantity      float64    `json:"quantity"`
	Unit          string     `json:"unit"`
	ScheduledDate *time.Time `json:"scheduledDate,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

type stageDTO struct {
	Key     string `json:"key"`
	Ordinal int    `json:"ordinal"`
	Title   string `json:"title"`
	State   string `json:"state"`
}

type progressDTO struct {
	OrderID   string     `json:"orderId"`
	Current   string     `json:"current"`
	Cancelled bool       `json:"cancelled"`
	Percent   float64    `json:"percent"`
	Stages    []stageDTO `json:"stages"`
}

type auditEventDTO struct {
	ID            string    `json:"id"`
	OrderID       string    `json:"orderId"`
	Kind          string    `json:"kind"`
	PreviousStage string    `json:"previousStage,omitempty"`
	NewStage      string    `json:"newStage"`
	ActorID       string    `json:"actorId"`
	ActorRole     string    `json:"actorRole"`
	Timestamp     time.Time `json:"timestamp"`
}

type evidenceDTO struct {
	ID          string    `json:"id"`
	OrderID     string    `json:"orderId"`
	StageKey    string    `json:"stageKey"`
	FileName    string    `json:"fileName"`
	ArtifactRef string    `json:"artifactRef"`
	UploadedBy  string    `json:"uploadedBy"`
	UploadedAt  time.Time `json:"uploadedAt"`
}

type usageDTO struct {
	CustomerID string     `json:"customerId"`
	NoPlan     bool       `json:"noPlan"`
	PlanID     string     `json:"planId,omitempty"`
	ConsumedKg float64    `json:"consumedKg"`
	LimitKg    float64    `json:"limitKg"`
	Percent    float64    `json:"percent"`
	CycleStart *time.Time `json:"cycleStart,omitempty"`
	CycleEnd   *time.Time `json:"cycleEnd,omitempty"`
}

type decisionDTO struct {
	Verdict    string `json:"verdict"`
	Message    string `json:"message,omitempty"`
	RedirectTo string `json:"redirectTo,omitempty"`
}

type transitionResultDTO struct {
	Order        orderDTO      `json:"order"`
	Event        auditEventDTO `json:"event"`
	AuditWarning string        `json:"auditWarning,omitempty"`
}

func toOrderDTO(o *models.Order) orderDTO {
	return orderDTO{
		ID:            o.ID,
		CustomerID:    o.CustomerID,
		OperatorID:    o.OperatorID,
		RawStatus:     o.RawStatus,
		Stage:         string(pipeline.Normalize(o.RawStatus)),
		Quantity:      o.Quantity,
		Unit:          o.Unit,
		ScheduledDate: o.ScheduledDate,
		CreatedAt:     o.CreatedAt,
		UpdatedAt:     o.UpdatedAt,
	}
}

func toOrderDTOs(in []*models.Order) []orderDTO {
	out := make([]orderDTO, 0, len(in))
	for _, o := range in {
		out = append(out, toOrderDTO(o))
	}
	return out
}

func toProgressDTO(orderID string, p pipeline.Progress) progressDTO {
	out := progressDTO{
		OrderID:   orderID,
		Current:   string(p.Current),
		Cancelled: p.Cancelled,
		Percent:   p.Percent,
		Stages:    make([]stageDTO, 0, len(p.Stages)),
	}
	for _, sp := range p.Stages {
		st, _ := pipeline.Lookup(sp.Key)
		out.Stages = append(out.Stages, stageDTO{
			Key:     string(sp.Key),
			Ordinal: sp.Ordinal,
			Title:   st.Title,
			State:   string(sp.State),
		})
	}
	return out
}

func toAuditEventDTO(e models.AuditEvent) auditEventDTO {
	return auditEventDTO{
		ID:            e.ID,
		OrderID:       e.OrderID,
		Kind:          string(e.Kind),
		PreviousStage: e.PreviousStage,
		NewStage:      e.NewStage,
		ActorID:       e.ActorID,
		ActorRole:     string(e.ActorRole),
		Timestamp:     e.Timestamp,
	}
}

func toAuditEventDTOs(in []*models.AuditEvent) []auditEventDTO {
	out := make([]auditEventDTO, 0, len(in))
	for _, e := range in {
		out = append(out, toAuditEventDTO(*e))
	}
	return out
}

func toEvidenceDTO(e *models.Evidence) evidenceDTO {
	return evidenceDTO{
		ID:          e.ID,
		OrderID:     e.OrderID,
		StageKey:    e.StageKey,
		FileName:    e.FileName,
		ArtifactRef: e.ArtifactRef,
		UploadedBy:  e.UploadedBy,
		UploadedAt:  e.UploadedAt,
	}
}

func toEvidenceDTOs(in []*models.Evidence) []evidenceDTO {
	out := make([]evidenceDTO, 0, len(in))
	for _, e := range in {
		out = append(out, toEvidenceDTO(e))
	}
	return out
}

func toUsageDTO(u models.Usage) usageDTO {
	out := usageDTO{
		CustomerID: u.CustomerID,
		NoPlan:     u.NoPlan,
		PlanID:     u.PlanID,
		ConsumedKg: u.Consumed,
		LimitKg:    u.Limit,
		Percent:    u.Percent,
	}
	if !u.NoPlan {
		cs, ce := u.CycleStart, u.CycleEnd
		out.CycleStart, out.CycleEnd = &cs, &ce
	}
	return out
}

func toDecisionDTO(d access.Decision) decisionDTO {
	return decisionDTO{Verdict: string(d.Verdict), Message: d.Message, RedirectTo: d.RedirectTo}
}
