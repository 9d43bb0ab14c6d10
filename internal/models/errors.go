package models

import "github.com/pkg/errors"

var (
	ErrInvalidTransition      = errors.New("invalid transition")
	ErrRoleNotPermitted       = errors.New("role not permitted")
	ErrOrderClosed            = errors.New("order closed")
	ErrConcurrentModification = errors.New("concurrent modification")
	ErrAuditAppendFailed      = errors.New("audit append failed")

	ErrOrderNotFound   = errors.New("order not found")
	ErrForbidden       = errors.New("forbidden")
	ErrInvalidStage    = errors.New("invalid stage")
	ErrInvalidEvidence = errors.New("invalid evidence")
	ErrInvalidOrder    = errors.New("invalid order")
)
