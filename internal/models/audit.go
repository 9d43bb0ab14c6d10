package models

import "time"

type AuditKind string

const (
	AuditKindCreated      AuditKind = "created"
	AuditKindProgression  AuditKind = "progression"
	AuditKindCancellation AuditKind = "cancellation"
	AuditKindOverride     AuditKind = "override"
)

// AuditEvent is the immutable record of one accepted stage change.
type AuditEvent struct {
	ID            string
	OrderID       string
	Kind          AuditKind
	PreviousStage string
	NewStage      string
	ActorID       string
	ActorRole     Role
	Timestamp     time.Time
}
